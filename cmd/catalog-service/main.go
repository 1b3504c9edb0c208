package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/dmehra2102/walkup-orders/internal/catalog/domain"
	catalogrpc "github.com/dmehra2102/walkup-orders/internal/catalog/infrastructure/grpc"
	catalogkafka "github.com/dmehra2102/walkup-orders/internal/catalog/infrastructure/kafka"
	"github.com/dmehra2102/walkup-orders/internal/catalog/infrastructure/memory"
	"github.com/dmehra2102/walkup-orders/internal/config"
	orderkafka "github.com/dmehra2102/walkup-orders/internal/order/infrastructure/kafka"
	"github.com/dmehra2102/walkup-orders/pkg/logging"
	"github.com/dmehra2102/walkup-orders/pkg/shutdown"
	"github.com/dmehra2102/walkup-orders/pkg/tracing"
)

// catalog-service is the development catalog: it serves a YAML menu fixture
// over gRPC and publishes a menu change whenever the fixture is edited.
func main() {
	cfg, err := config.Parse()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if os.Getenv("SERVICE_NAME") == "" {
		cfg.ServiceName = "catalog-service"
	}
	log := logging.New(logging.Options{Level: cfg.Log.Level, File: cfg.Log.File}).With("service", cfg.ServiceName)

	ctx, cancel := shutdown.WithSignals(context.Background(), log)
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("catalog-service stopped", "err", err)
		os.Exit(1)
	}
	log.Info("catalog-service shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	tp, err := tracing.Init(ctx, cfg.ServiceName, cfg.Tracing.Endpoint, log)
	if err != nil {
		return fmt.Errorf("otel init: %w", err)
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	items, err := memory.LoadFile(cfg.Catalog.FixturePath)
	if err != nil {
		return err
	}
	store := memory.NewStore(items)
	log.Info("menu loaded", "path", cfg.Catalog.FixturePath, "items", len(items))

	gs, err := catalogrpc.Run(cfg.GRPCAddr, catalogrpc.NewServer(log, store))
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	log.Info("grpc listening", "addr", cfg.GRPCAddr)

	writer := orderkafka.NewWriter(cfg.Kafka.Brokers)
	defer writer.Close()
	pub := catalogkafka.NewPublisher(writer, cfg.Kafka.CatalogTopic)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return store.Watch(gctx, log, cfg.Catalog.FixturePath, cfg.Catalog.PollInterval,
			func(ctx context.Context, changes []domain.MenuChange) error {
				return pub.Publish(ctx, changes...)
			})
	})
	g.Go(func() error {
		<-gctx.Done()
		gs.GracefulStop()
		return nil
	})
	return g.Wait()
}
