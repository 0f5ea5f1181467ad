// Command profile captures a CPU profile of the matching core alone,
// in-process, submitting orders back-to-back from the single goroutine
// that owns the engine — the same single-thread-owns-the-book
// invariant the protocol handler and reactor honor in the real server.
package main

import (
	"fmt"
	"os"
	"runtime/pprof"
	"time"

	"matchcore/domain"
	"matchcore/matching"
	"matchcore/orderbook"
)

func main() {
	cpuFile, err := os.Create("cpu.prof")
	if err != nil {
		panic(err)
	}
	defer cpuFile.Close()

	if err := pprof.StartCPUProfile(cpuFile); err != nil {
		panic(err)
	}
	defer pprof.StopCPUProfile()

	fmt.Println("=== matching core CPU profile ===")
	fmt.Println("writing: cpu.prof")

	engine := matching.NewEngine(matching.Config{InstrumentID: 1, BookKind: orderbook.Sharded, RingCapacity: 16384})

	const testDuration = 10 * time.Second
	fmt.Printf("duration: %v\n\n", testDuration)

	var orderCount, tradeCount int64
	deadline := time.Now().Add(testDuration)
	orderID := 0

	for time.Now().Before(deadline) {
		side := domain.SideBuy
		if orderID%2 != 0 {
			side = domain.SideSell
		}
		price := int64(50000 + orderID%200)

		result := engine.Submit(domain.OrderRequest{
			ClientID:     uint64(orderID%64) + 1,
			Side:         side,
			Type:         domain.OrderTypeLimit,
			InstrumentID: 1,
			Price:        price,
			Quantity:     1,
			Valid:        true,
		})
		orderCount++
		tradeCount += int64(len(result.Trades))

		// Drain the update ring periodically so it never fills and
		// starts silently dropping, same as the market-data thread
		// does continuously in the real process.
		if orderID%1024 == 0 {
			for {
				if _, ok := engine.Updates().TryPop(); !ok {
					break
				}
			}
		}
		orderID++
	}

	fmt.Println("\n=== results ===")
	fmt.Printf("orders submitted: %d\n", orderCount)
	fmt.Printf("trades produced:  %d\n", tradeCount)
	fmt.Printf("order rate:       %.0f orders/sec\n", float64(orderCount)/testDuration.Seconds())
	fmt.Printf("dropped updates:  %d\n", engine.DroppedUpdates())

	bids, asks := engine.Depth(5)
	fmt.Println("\nbid depth (top 5):")
	for i, level := range bids {
		fmt.Printf("  %d. price=%d qty=%d orders=%d\n", i+1, level.Price, level.Quantity, level.Orders)
	}
	fmt.Println("ask depth (top 5):")
	for i, level := range asks {
		fmt.Printf("  %d. price=%d qty=%d orders=%d\n", i+1, level.Price, level.Quantity, level.Orders)
	}

	fmt.Println("\nanalyze with:")
	fmt.Println("  go tool pprof -http=:8080 cpu.prof")
}
