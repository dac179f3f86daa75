package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arbazkhan002/datasketch/internal/index"
	"github.com/arbazkhan002/datasketch/internal/ingest"
	"github.com/arbazkhan002/datasketch/internal/store"
	"github.com/arbazkhan002/datasketch/pkg/config"
	"github.com/arbazkhan002/datasketch/pkg/health"
	"github.com/arbazkhan002/datasketch/pkg/kafka"
	"github.com/arbazkhan002/datasketch/pkg/logger"
	"github.com/arbazkhan002/datasketch/pkg/metrics"
	"github.com/arbazkhan002/datasketch/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting indexerd", "backend", cfg.Store.Backend, "prefix", cfg.Store.Prefix)

	m := metrics.New()

	postings, err := store.Open(cfg, cfg.Store.Prefix+":index")
	if err != nil {
		slog.Error("failed to open postings store", "error", err)
		os.Exit(1)
	}
	keys, err := store.Open(cfg, cfg.Store.Prefix+":keys")
	if err != nil {
		slog.Error("failed to open keys store", "error", err)
		postings.Close()
		os.Exit(1)
	}

	idx := index.New(
		store.WithMetrics(postings, cfg.Store.Backend, m),
		store.WithMetrics(keys, cfg.Store.Backend, m),
	).Instrument(m)
	defer idx.Close()

	checker := health.NewChecker()
	checker.Register("postings-store", health.PingCheck(postings.Ping))

	var stopMetrics func(context.Context) error
	if cfg.Metrics.Enabled {
		stopMetrics = metrics.StartServer(cfg.Metrics.Port, map[string]http.Handler{
			"/healthz": checker.LiveHandler(),
			"/readyz":  checker.ReadyHandler(),
		})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handler := ingest.HandleMessage(idx, resilience.RetryConfig{}, m)
	kafkaConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.IngestTopic, handler)
	consumer := ingest.New(kafkaConsumer)

	slog.Info("indexerd ready, consuming from kafka",
		"topic", cfg.Kafka.IngestTopic,
		"group", cfg.Kafka.ConsumerGroup,
	)

	if err := consumer.Start(ctx); err != nil {
		slog.Error("consumer error", "error", err)
	}

	if stopMetrics != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := stopMetrics(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", "error", err)
		}
	}

	slog.Info("indexerd stopped")
}
