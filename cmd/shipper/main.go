package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/telemetrykit/lokibuf/internal/config"
	"github.com/telemetrykit/lokibuf/internal/logging"
	"github.com/telemetrykit/lokibuf/internal/logging/buffer"
	"github.com/telemetrykit/lokibuf/internal/logging/loki"
	"github.com/telemetrykit/lokibuf/internal/logging/persist"
	"github.com/telemetrykit/lokibuf/internal/tailer"
)

func main() {
	configPath := flag.String("config", "shipper.yaml", "path to the shipper config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config %s: %v", *configPath, err)
	}

	store, closeStore, err := buildStore(cfg)
	if err != nil {
		log.Fatalf("Failed to open persistence store: %v", err)
	}
	if closeStore != nil {
		defer closeStore()
	}

	engineConfig := cfg.EngineConfig(store, hostDeviceInfo{})
	sender := loki.NewSender(engineConfig)

	trigger := newSignalTrigger(syscall.SIGHUP)
	defer trigger.stop()

	engine, err := buffer.New(engineConfig, sender, trigger)
	if err != nil {
		log.Fatalf("Failed to create buffer engine: %v", err)
	}
	engine.Start()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var tailService *tailer.Service
	if cfg.Tail.Enabled {
		level, _ := logging.ParseLevel(cfg.Tail.DefaultLevel)
		tailService = tailer.New(ctx, tailer.Config{
			LogRootPath:     cfg.Tail.LogRootPath,
			ScanInterval:    time.Duration(cfg.Tail.ScanIntervalSeconds) * time.Second,
			Workers:         cfg.Tail.Workers,
			FileQueueSize:   cfg.Tail.QueueSize,
			DefaultLevel:    level,
			FileIdleTimeout: time.Duration(cfg.Tail.IdleTimeoutSeconds) * time.Second,
		}, engine)
		tailService.Start()
	}

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)
	<-signalChan
	log.Println("Received shutdown signal")

	if tailService != nil {
		tailService.Stop()
	}
	engine.Stop()

	stamp := engine.Metrics().Stamp()
	log.Printf("Final stats: appended=%d, sent batches=%d, failed batches=%d, evicted=%d, persisted=%d, recovered=%d",
		stamp.EntriesAppended, stamp.BatchesSent, stamp.BatchesFailed,
		stamp.EntriesEvicted, stamp.EntriesPersisted, stamp.EntriesRecovered)
}

func buildStore(cfg config.Config) (logging.Store, func() error, error) {
	switch cfg.Persistence.Backend {
	case "file":
		store, err := persist.NewFileStore(cfg.Persistence.Path)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	case "sqlite":
		store, err := persist.NewSQLiteStore(cfg.Persistence.Path)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return nil, nil, nil
	}
}

// signalTrigger adapts an OS signal into the engine's flush trigger source.
type signalTrigger struct {
	signals chan os.Signal
	flushes chan struct{}
}

func newSignalTrigger(sig os.Signal) *signalTrigger {
	t := &signalTrigger{
		signals: make(chan os.Signal, 1),
		flushes: make(chan struct{}, 1),
	}
	signal.Notify(t.signals, sig)
	go func() {
		for range t.signals {
			select {
			case t.flushes <- struct{}{}:
			default:
			}
		}
	}()
	return t
}

func (t *signalTrigger) Flushes() <-chan struct{} {
	return t.flushes
}

func (t *signalTrigger) stop() {
	signal.Stop(t.signals)
	close(t.signals)
}

// hostDeviceInfo labels streams with the build platform. A richer host can
// substitute its own provider through the engine config.
type hostDeviceInfo struct{}

func (hostDeviceInfo) DeviceModel() string { return runtime.GOOS + "/" + runtime.GOARCH }

func (hostDeviceInfo) OSVersion() string { return runtime.Version() }
