// Command benchmark drives real traffic at a running exchange server
// over the wire protocol: a pool of client.Client connections submit
// orders concurrently for a fixed duration, and the throughput the
// server reports back is tallied and printed.
package main

import (
	"flag"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"matchcore/client"
	"matchcore/domain"
	"matchcore/wire"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:9000", "exchange server address")
	testDuration := flag.Duration("duration", 5*time.Second, "benchmark duration")
	numWorkers := flag.Int("workers", runtime.NumCPU()-1, "number of concurrent client connections")
	flag.Parse()
	if *numWorkers < 1 {
		*numWorkers = 1
	}

	var apiKey [wire.APIKeySize]byte
	copy(apiKey[:], []byte("dev-api-key-0001"))
	var hmacKey [wire.HMACKeySize]byte
	for i := range hmacKey {
		hmacKey[i] = byte(i + 1)
	}

	fmt.Println("=== exchange load generator ===")
	fmt.Printf("target:   %s\n", *addr)
	fmt.Printf("workers:  %d\n", *numWorkers)
	fmt.Printf("duration: %v\n\n", *testDuration)

	var (
		orderCount  atomic.Int64
		tradeCount  atomic.Int64
		rejectCount atomic.Int64
	)

	clients := make([]*client.Client, 0, *numWorkers)
	for w := 0; w < *numWorkers; w++ {
		c, err := client.Dial(*addr, apiKey, hmacKey, client.Callbacks{
			OnOrderRejected: func(client.Order, wire.OrderAckStatus) { rejectCount.Add(1) },
			OnOrderFilled:   func(client.Order, uint64, int64, int64) { tradeCount.Add(1) },
		})
		if err != nil {
			fmt.Printf("worker %d: dial failed: %v\n", w, err)
			continue
		}
		go c.Run()
		if err := c.Hello(); err != nil {
			fmt.Printf("worker %d: hello failed: %v\n", w, err)
			continue
		}
		clients = append(clients, c)
	}
	defer func() {
		for _, c := range clients {
			c.Close()
		}
	}()

	if !waitAuthenticated(clients, 2*time.Second) {
		fmt.Println("warning: not every worker authenticated before the run started")
	}

	stopChan := make(chan struct{})
	startTime := time.Now()

	for w, c := range clients {
		go func(workerID int, c *client.Client) {
			orderID := 0
			for {
				select {
				case <-stopChan:
					return
				default:
					side := domain.SideBuy
					if orderID%2 != 0 {
						side = domain.SideSell
					}
					price := int64(50000 + orderID%200)
					c.SubmitOrder(1, side, domain.OrderTypeLimit, 1, price)
					orderCount.Add(1)
					orderID++
				}
			}
		}(w, c)
	}

	ticker := time.NewTicker(1 * time.Second)
	go func() {
		for range ticker.C {
			elapsed := time.Since(startTime)
			orders := orderCount.Load()
			trades := tradeCount.Load()
			qps := float64(orders) / elapsed.Seconds()
			tps := float64(trades) / elapsed.Seconds()
			fmt.Printf("[%.0fs] orders: %d (%.0f/s) | fills: %d (%.0f/s)\n",
				elapsed.Seconds(), orders, qps, trades, tps)
		}
	}()

	time.Sleep(*testDuration)
	close(stopChan)
	ticker.Stop()
	time.Sleep(300 * time.Millisecond)

	elapsed := time.Since(startTime)
	totalOrders := orderCount.Load()
	totalTrades := tradeCount.Load()
	totalRejects := rejectCount.Load()

	qps := float64(totalOrders) / elapsed.Seconds()
	tps := float64(totalTrades) / elapsed.Seconds()

	fmt.Println("\n=== results ===")
	fmt.Printf("duration:       %v\n", elapsed)
	fmt.Printf("orders sent:    %d\n", totalOrders)
	fmt.Printf("fills observed: %d\n", totalTrades)
	fmt.Printf("rejects:        %d\n", totalRejects)
	fmt.Printf("order throughput: %.0f orders/sec\n", qps)
	fmt.Printf("fill throughput:  %.0f fills/sec\n", tps)
}

func waitAuthenticated(clients []*client.Client, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		ready := true
		for _, c := range clients {
			if !c.Authenticated() {
				ready = false
				break
			}
		}
		if ready {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}
