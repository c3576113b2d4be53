package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"main/internal/bus"
	"main/internal/feed"
	"main/internal/gateway"
	"main/internal/journal"
	"main/internal/ledger"
	"main/internal/obs"
	"main/internal/ops"
	"main/internal/risk"
	"main/internal/store"
	"main/internal/strategy"
	"main/internal/supervisor"
	"main/pkg/exception"

	"github.com/yanun0323/logs"
)

func main() {
	configPath := flag.String("config", "trader.json", "Path to JSON config")
	metricsInterval := flag.Duration("metrics-interval", 30*time.Second, "Metrics log interval (0=disable)")
	snapshotPath := flag.String("snapshot-path", "", "Final ledger snapshot output (empty=disable)")
	auditJournal := flag.Bool("audit", false, "Summarize the session journal and exit")
	flag.Parse()

	loaded, err := ops.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	if *auditJournal {
		if loaded.Journal.Dir == "" {
			log.Fatalf("audit requested but no journal directory configured")
		}
		audit, err := journal.Summarize(loaded.Journal.Dir, loaded.Journal.FilePrefix)
		if err != nil {
			log.Fatalf("journal audit failed: %v", err)
		}
		logs.Infof("journal %s: %d records, seq %d..%d", loaded.Journal.Dir, audit.Records, audit.FirstSeq, audit.LastSeq)
		for eventType, count := range audit.ByType {
			logs.Infof("  %s: %d", eventType, count)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, loaded, *metricsInterval, *snapshotPath); err != nil {
		log.Fatalf("trader failed: class=%s %v", exception.Classify(err), err)
	}
}

func run(ctx context.Context, loaded ops.Loaded, metricsInterval time.Duration, snapshotPath string) error {
	stopProfiler, err := obs.StartProfiler("trader."+loaded.Session.Name, loaded.Profiling.ServerAddress)
	if err != nil {
		return err
	}
	defer func() { _ = stopProfiler() }()

	st, err := strategy.Build(loaded.Strategy, loaded.Registry)
	if err != nil {
		return err
	}

	venue, err := gateway.NewRestClient(loaded.Gateway.BaseURL, gateway.Credentials{
		AccessID:  loaded.Gateway.AccessID,
		SecretKey: loaded.Gateway.SecretKey,
	}, nil, loaded.Registry)
	if err != nil {
		return err
	}

	if loaded.Store.Enabled {
		bars, err := store.NewPostgresStore(loaded.Store.Option)
		if err != nil {
			return err
		}
		warmupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err = store.Backfill(warmupCtx, bars, venue, loaded.Registry, loaded.Store.WarmupBars)
		if err != nil {
			// Stored history still serves warmup when the venue has
			// no kline endpoint reachable.
			logs.Warnf("bar backfill skipped: %+v", err)
		}
		err = store.Warmup(warmupCtx, bars, loaded.Registry, st, loaded.Strategy, loaded.Store.WarmupBars)
		cancel()
		_ = bars.Close()
		if err != nil {
			return err
		}
	}

	queue := bus.NewQueue(loaded.Session.QueueSize)
	book := ledger.New(loaded.Session.InitialCash)
	equity := risk.NewEquityTracker(loaded.Session.InitialCash, loaded.Limits.MaxDailyLoss, loaded.Limits.MaxTotalLoss)
	gate := risk.NewGate(loaded.Limits, loaded.Registry, equity)
	engine := strategy.NewEngine(loaded.Registry, st, 1)
	metrics := obs.NewMetrics()
	gw := gateway.New(gateway.Config{
		Session:        loaded.Session.Name,
		RequestTimeout: loaded.Gateway.RequestTimeout,
	}, venue, queue)

	var wal *journal.Writer
	if loaded.Journal.Dir != "" {
		wal, err = journal.NewWriter(loaded.Journal)
		if err != nil {
			return err
		}
		if err := wal.Start(ctx); err != nil {
			return err
		}
		defer func() { _ = wal.Close() }()
	}

	md, err := feed.New(loaded.Registry, queue)
	if err != nil {
		return err
	}
	connectFeed := func(ctx context.Context) error {
		stream := feed.NewStream(ctx, loaded.Feed.URL, loaded.Registry, md)
		if err := stream.Start(ctx); err != nil {
			return err
		}
		if err := stream.Subscribe(ctx); err != nil {
			stream.Close()
			return err
		}
		stream.Observe(ctx)
		return nil
	}

	sup := supervisor.New(supervisor.Config{
		Session:         loaded.Session.Name,
		ShutdownTimeout: loaded.Session.ShutdownTimeout,
	}, supervisor.Deps{
		Queue:         queue,
		Book:          book,
		Gate:          gate,
		Equity:        equity,
		Engine:        engine,
		Gateway:       gw,
		Journal:       wal,
		Metrics:       metrics,
		Trace:         obs.NewTraceGenerator(0),
		ReconnectFeed: connectFeed,
	}, supervisor.DefaultBackoff())

	if err := connectFeed(ctx); err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		sup.Shutdown("signal received")
	}()
	if metricsInterval > 0 {
		go logMetrics(ctx, loaded.Session.Name, metrics, metricsInterval)
	}

	if err := sup.Run(ctx); err != nil {
		return err
	}

	summary := sup.Result()
	summary.Log(loaded.Registry)
	if snapshotPath != "" {
		if err := ledger.WriteSnapshot(snapshotPath, book.Snapshot()); err != nil {
			logs.Errorf("snapshot write failed: %+v", err)
		}
	}
	return nil
}

func logMetrics(ctx context.Context, session string, metrics *obs.Metrics, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := metrics.Snapshot()
			logs.Infof("session %s metrics: events=%v riskDenies=%v queueDrops=%d journalDrops=%d orderFlowAvg=%s",
				session, snap.EventCounts, snap.RiskReasonCounts, snap.QueueDrops, snap.JournalDrops,
				snap.OrderFlowLatency.Avg)
		}
	}
}
