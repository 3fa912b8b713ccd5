package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/jonboulle/clockwork"

	httpadapter "github.com/couchcryptid/spot-price-refiner/internal/adapter/http"
	"github.com/couchcryptid/spot-price-refiner/internal/adapter/influx"
	kafkaadapter "github.com/couchcryptid/spot-price-refiner/internal/adapter/kafka"
	"github.com/couchcryptid/spot-price-refiner/internal/adapter/sqlite"
	"github.com/couchcryptid/spot-price-refiner/internal/config"
	"github.com/couchcryptid/spot-price-refiner/internal/domain"
	"github.com/couchcryptid/spot-price-refiner/internal/observability"
	"github.com/couchcryptid/spot-price-refiner/internal/pipeline"
	"github.com/couchcryptid/spot-price-refiner/internal/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	store, err := influx.NewStore(cfg, logger)
	if err != nil {
		logger.Error("failed to create influx store", "error", err)
		os.Exit(1)
	}
	closers := []namedCloser{{"influx store", store}}

	// Optional mirrors (enabled via KAFKA_BROKERS / SQLITE_PATH).
	var mirrors []pipeline.NamedSink
	if len(cfg.KafkaBrokers) > 0 {
		writer := kafkaadapter.NewWriter(cfg, logger)
		mirrors = append(mirrors, pipeline.NamedSink{Name: "kafka", Sink: writer})
		closers = append(closers, namedCloser{"kafka writer", writer})
		logger.Info("kafka mirror enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}
	if cfg.SQLitePath != "" {
		recorder, err := sqlite.Open(cfg.SQLitePath, logger)
		if err != nil {
			logger.Error("failed to open sqlite mirror", "error", err)
			os.Exit(1)
		}
		mirrors = append(mirrors, pipeline.NamedSink{Name: "sqlite", Sink: recorder})
		closers = append(closers, namedCloser{"sqlite mirror", recorder})
	}

	calendar := domain.NewCalendar(clockwork.NewRealClock(), cfg.Location)
	sink := pipeline.NewFanOut(pipeline.NamedSink{Name: "influx", Sink: store}, mirrors, logger, metrics)
	accessor := pipeline.NewAccessor(store, calendar, logger, metrics)
	refiner := pipeline.New(accessor, sink, calendar, logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched := scheduler.New(ctx, refiner, calendar, scheduler.Options{
		Spec:       cfg.RefineCron,
		Day:        cfg.RefineDay,
		Retries:    cfg.Retries,
		Backoff:    cfg.RetryBackoff,
		MaxBackoff: cfg.RetryMaxBackoff,
	}, logger, metrics)
	if err := sched.Register(); err != nil {
		logger.Error("failed to register schedule", "error", err)
		os.Exit(1)
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, store, sched, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	sched.Start()
	logger.Info("next refine run", "at", sched.Next())

	if cfg.RunOnStart {
		go func() {
			if _, err := sched.RunWithRetry(ctx, cfg.RefineDay); err != nil {
				logger.Error("startup refine run failed", "error", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := sched.Stop(shutdownCtx); err != nil {
		logger.Error("scheduler shutdown error", "error", err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	for _, c := range closers {
		if err := c.Close(); err != nil {
			logger.Error("close error", "component", c.name, "error", err)
		}
	}

	logger.Info("shutdown complete")
}

type namedCloser struct {
	name string
	io.Closer
}
