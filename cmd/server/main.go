// Command server is the exchange's process entry point: it loads
// configuration, wires the matching engine, session store, protocol
// handler, TCP reactor, and market-data publisher together, and runs
// until signaled to stop.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"matchcore/internal/config"
	"matchcore/internal/eventlog"
	"matchcore/marketdata"
	"matchcore/matching"
	"matchcore/orderbook"
	"matchcore/protocol"
	"matchcore/reactor"
	"matchcore/session"
	"matchcore/wire"
)

// instrumentID is the single instrument this process serves. The spec
// scopes one engine per process; multi-instrument routing is a named
// non-goal.
const instrumentID uint32 = 1

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	zapLogger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer zapLogger.Sync()
	log := eventlog.New(zapLogger, eventlog.Config{})

	if err := run(*configPath, log); err != nil {
		log.Error("fatal startup error", zap.Error(err))
		log.Close()
		os.Exit(1)
	}
}

func run(configPath string, log *eventlog.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// TODO: load real registered api-key -> hmac-key pairs from an
	// operator-provisioned credentials file; a single dev key keeps
	// this entry point runnable without one.
	creds := protocol.Credentials{}
	var apiKey [wire.APIKeySize]byte
	copy(apiKey[:], []byte("dev-api-key-0001"))
	var hmacKey [wire.HMACKeySize]byte
	for i := range hmacKey {
		hmacKey[i] = byte(i + 1)
	}
	creds[apiKey] = hmacKey

	engine := matching.NewEngine(matching.Config{
		InstrumentID: instrumentID,
		BookKind:     orderbook.Sharded,
		RingCapacity: cfg.RingCapacity,
	})
	store := session.NewStore()
	handler := protocol.New(store, engine, creds, log)

	tcpAddr := fmt.Sprintf("%s:%d", cfg.TCPBindAddr, cfg.TCPPort)
	gw, err := reactor.Listen(tcpAddr, handler, store, log, reactor.Config{
		HeartbeatTimeout: time.Duration(cfg.HeartbeatTimeoutSec) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("bind tcp listener: %w", err)
	}

	observer := marketdata.NewObserver(log)
	publisher, err := marketdata.NewPublisher(instrumentID, observer, engine.Updates(), marketdata.PublisherConfig{
		MulticastGroup:   cfg.MDMulticastGroup,
		Port:             cfg.MDPort,
		Interface:        cfg.MDInterface,
		TTL:              cfg.MDTTL,
		SnapshotInterval: time.Duration(cfg.SnapshotIntervalMs) * time.Millisecond,
		MaxDepth:         cfg.MaxBookDepth,
	}, log)
	if err != nil {
		return fmt.Errorf("open multicast publisher: %w", err)
	}
	defer publisher.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- gw.Run(ctx) }()

	runPublisherLoop(ctx, publisher)

	log.Info("shutting down", zap.String("addr", tcpAddr))
	<-errCh
	return nil
}

// runPublisherLoop polls the engine's update ring at a fixed cadence
// and blocks until ctx is cancelled. The matching thread never blocks
// on this — it only ever tries a non-blocking ring push — so a slow
// multicast send here cannot feed back into order-submission latency.
func runPublisherLoop(ctx context.Context, publisher *marketdata.Publisher) {
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			publisher.RunOnce(now)
		}
	}
}
