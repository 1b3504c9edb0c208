package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	catalogkafka "github.com/dmehra2102/walkup-orders/internal/catalog/infrastructure/kafka"
	"github.com/dmehra2102/walkup-orders/internal/config"
	"github.com/dmehra2102/walkup-orders/internal/identity"
	"github.com/dmehra2102/walkup-orders/internal/order/application"
	"github.com/dmehra2102/walkup-orders/internal/order/domain"
	ordergrpc "github.com/dmehra2102/walkup-orders/internal/order/infrastructure/grpc"
	orderhttp "github.com/dmehra2102/walkup-orders/internal/order/infrastructure/http"
	orderkafka "github.com/dmehra2102/walkup-orders/internal/order/infrastructure/kafka"
	"github.com/dmehra2102/walkup-orders/internal/order/infrastructure/memory"
	orderpg "github.com/dmehra2102/walkup-orders/internal/order/infrastructure/postgres"
	orderrt "github.com/dmehra2102/walkup-orders/internal/order/infrastructure/realtime"
	orderredis "github.com/dmehra2102/walkup-orders/internal/order/infrastructure/redis"
	"github.com/dmehra2102/walkup-orders/internal/realtime"
	"github.com/dmehra2102/walkup-orders/internal/realtime/bridge"
	"github.com/dmehra2102/walkup-orders/internal/realtime/ws"
	"github.com/dmehra2102/walkup-orders/pkg/idempotency"
	"github.com/dmehra2102/walkup-orders/pkg/logging"
	"github.com/dmehra2102/walkup-orders/pkg/outbox"
	"github.com/dmehra2102/walkup-orders/pkg/shutdown"
	"github.com/dmehra2102/walkup-orders/pkg/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := logging.New(logging.Options{Level: cfg.Log.Level, File: cfg.Log.File}).With("service", cfg.ServiceName)

	ctx, cancel := shutdown.WithSignals(context.Background(), log)
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("order-service stopped", "err", err)
		os.Exit(1)
	}
	log.Info("order-service shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	instanceID := uuid.NewString()
	log = log.With("instance", instanceID)

	tp, err := tracing.Init(ctx, cfg.ServiceName, cfg.Tracing.Endpoint, log)
	if err != nil {
		return fmt.Errorf("otel init: %w", err)
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	defer rdb.Close()
	idem := idempotency.NewStore(rdb, cfg.Orders.IdempotencyTTL)

	g, gctx := errgroup.WithContext(ctx)

	// Order store, sequencer and outbox relay
	var (
		repo application.OrderRepository
		seq  application.Sequencer
	)
	var pool *pgxpool.Pool
	if cfg.Orders.StoreBackend == "postgres" {
		pool, err = pgxpool.New(ctx, cfg.Postgres.URL)
		if err != nil {
			return fmt.Errorf("pg connect: %w", err)
		}
		defer pool.Close()
		if err := orderpg.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("pg migrate: %w", err)
		}
		repo = orderpg.NewRepository(log, pool)

		writer := orderkafka.NewWriter(cfg.Kafka.Brokers)
		defer writer.Close()
		dispatch := outbox.NewDispatcher(log, writer, cfg.Kafka.OutboxTopic)
		relay := outbox.NewRelay(log, orderpg.NewOutboxStore(log, pool), dispatch, cfg.ServiceName+"-"+instanceID)
		g.Go(func() error { return relay.Run(gctx) })
	} else {
		repo = memory.NewRepository()
		log.Warn("using in-memory order store; orders are lost on restart")
	}
	switch cfg.Orders.SequencerBackend {
	case "postgres":
		seq = orderpg.NewSequencer(pool)
	case "redis":
		seq = orderredis.NewSequencer(rdb)
	default:
		seq = memory.NewSequencer()
	}

	// Realtime router, optionally bridged to peer instances
	var opts []realtime.Option
	var runBridge func(context.Context, bridge.Sink) error
	switch cfg.Realtime.BridgeBackend {
	case "redis":
		b := bridge.NewRedis(log, rdb, cfg.Realtime.RedisChannel, instanceID)
		opts, runBridge = append(opts, realtime.WithRelay(b)), b.Run
	case "amqp":
		conn, err := amqp.Dial(cfg.AMQP.URL)
		if err != nil {
			return fmt.Errorf("amqp dial: %w", err)
		}
		defer conn.Close()
		b := bridge.NewAMQP(log, conn, cfg.AMQP.Exchange, instanceID)
		opts, runBridge = append(opts, realtime.WithRelay(b)), b.Run
	}
	router := realtime.NewRouter(log, opts...)
	if runBridge != nil {
		g.Go(func() error { return runBridge(gctx, router) })
	}

	verifier := identity.NewJWT(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	gate := realtime.NewGate(log, router, verifier)

	catalog, err := ordergrpc.NewCatalogClient(log, cfg.Catalog.Addr)
	if err != nil {
		return fmt.Errorf("catalog client: %w", err)
	}
	defer catalog.Close()

	svc := application.NewService(repo, seq, catalog, orderrt.NewNotifier(router), application.Options{
		Policy:         domain.PolicyFromString(cfg.Orders.StatusPolicy),
		Location:       cfg.Location(),
		MaxCASAttempts: cfg.Orders.MaxCASAttempts,
	})

	// Menu change feed
	reader := catalogkafka.NewReader(cfg.Kafka.Brokers, cfg.Kafka.CatalogTopic, cfg.Kafka.GroupID)
	consumer := catalogkafka.NewConsumer(log, reader, router, idem)
	g.Go(func() error { return consumer.Run(gctx) })

	// HTTP + websocket
	handler := orderhttp.NewHandler(log, svc, verifier, idem)
	wsHandler := ws.NewHandler(log, router, gate, ws.Options{
		SendBuffer:     cfg.Realtime.SendBuffer,
		AllowedOrigins: cfg.Realtime.AllowedOrigins,
	})
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.Routes(wsHandler),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	g.Go(func() error {
		log.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		router.Close()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
