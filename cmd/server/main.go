// Package main runs the market gateway: HTTP push ingress and queries,
// Kafka queue ingress, live WebSocket fan-out and the advisory boundary.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"market-gateway/internal/advisory"
	"market-gateway/internal/anomaly"
	"market-gateway/internal/api"
	"market-gateway/internal/broadcast"
	"market-gateway/internal/ingest"
	"market-gateway/internal/pipeline"
	"market-gateway/internal/storage"
	chstore "market-gateway/internal/storage/clickhouse"
	"market-gateway/internal/storage/memory"
	"market-gateway/internal/storage/migrations"
	pgstore "market-gateway/internal/storage/postgres"
)

func main() {
	// Load .env file if it exists; system env vars win.
	_ = godotenv.Load()

	// Parse flags (env vars as defaults)
	httpAddr := flag.String("http-addr", envOr("HTTP_ADDR", ":8080"), "HTTP listen address")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string for the tick archive (optional)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	kafkaBrokers := flag.String("kafka-brokers", os.Getenv("KAFKA_BROKERS"), "Comma-separated Kafka brokers (empty disables queue ingress)")
	kafkaTopic := flag.String("kafka-topic", envOr("KAFKA_TOPIC", "market_prices"), "Kafka topic for inbound price events")
	kafkaGroup := flag.String("kafka-group", envOr("KAFKA_GROUP", "gateway"), "Kafka consumer group")
	queueWorkers := flag.Int("queue-workers", 4, "Number of queue ingress workers")
	deviation := flag.Float64("deviation-threshold", 0, "Anomaly deviation threshold (0 trusts the producer flag only)")
	defaultSymbol := flag.String("default-symbol", envOr("DEFAULT_SYMBOL", "BTC-USD"), "Default symbol for advisory queries")
	groqKey := flag.String("groq-api-key", os.Getenv("GROQ_API_KEY"), "Groq API key (empty disables live advisory)")
	advisoryTimeout := flag.Duration("advisory-timeout", 10*time.Second, "Timeout per advisory call")

	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if !*useMemory && *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required unless --use-memory is set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Stores
	var (
		priceStore storage.PriceEventStore
		alertStore storage.AlertEventStore
		archive    storage.TickArchive
	)
	if *useMemory {
		priceStore = memory.NewPriceEventStore()
		alertStore = memory.NewAlertEventStore()
		logger.Info("using in-memory storage")
	} else {
		pool, err := connectPostgres(ctx, *postgresDSN, logger)
		if err != nil {
			logger.Fatal("connect postgres", zap.Error(err))
		}
		defer pool.Close()

		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			logger.Fatal("apply postgres migrations", zap.Error(err))
		}

		priceStore = pgstore.NewPriceEventStore(pool)
		alertStore = pgstore.NewAlertEventStore(pool)
	}

	if *clickhouseDSN != "" {
		conn, err := chstore.NewConn(ctx, *clickhouseDSN)
		if err != nil {
			// The archive is an analytics sink; run without it.
			logger.Warn("clickhouse unavailable, tick archive disabled", zap.Error(err))
		} else {
			defer conn.Close()
			if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
				logger.Fatal("apply clickhouse migrations", zap.Error(err))
			}
			archive = chstore.NewTickArchive(conn)
			logger.Info("tick archive enabled")
		}
	}

	// Core components
	hub := broadcast.NewHub(logger.Named("hub"))
	pipe := pipeline.New(pipeline.Options{
		PriceStore:  priceStore,
		AlertStore:  alertStore,
		TickArchive: archive,
		Evaluator:   anomaly.NewEvaluator(*deviation),
		Broadcaster: hub,
		Logger:      logger.Named("pipeline"),
	})

	// Advisory chain: live Groq commentator when configured, static tail.
	var chain []advisory.Commentator
	if *groqKey != "" {
		groq, err := advisory.NewGroqCommentator(advisory.GroqOptions{
			APIKey: *groqKey,
			Logger: logger.Named("advisory"),
		})
		if err != nil {
			logger.Fatal("configure advisory", zap.Error(err))
		}
		chain = append(chain, groq)
	} else {
		logger.Info("no advisory api key, serving static commentary")
	}
	advisor := advisory.NewService(advisory.ServiceOptions{
		Chain:   chain,
		Timeout: *advisoryTimeout,
		Logger:  logger.Named("advisory"),
	})

	// Queue ingress
	if *kafkaBrokers != "" {
		reader := ingest.NewReader(splitList(*kafkaBrokers), *kafkaTopic, *kafkaGroup)
		defer reader.Close()

		consumer := ingest.NewConsumer(ingest.ConsumerOptions{
			Reader:   reader,
			Pipeline: pipe,
			Workers:  *queueWorkers,
			Logger:   logger.Named("queue"),
		})
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("queue consumer exited", zap.Error(err))
			}
		}()
		logger.Info("queue ingress enabled",
			zap.String("topic", *kafkaTopic),
			zap.Int("workers", *queueWorkers))
	} else {
		logger.Info("no kafka brokers configured, queue ingress disabled")
	}

	// HTTP edge
	server := api.NewServer(api.Options{
		Pipeline:      pipe,
		PriceStore:    priceStore,
		AlertStore:    alertStore,
		Advisor:       advisor,
		Hub:           hub,
		DefaultSymbol: *defaultSymbol,
		Logger:        logger.Named("api"),
	})

	srv := &http.Server{Addr: *httpAddr, Handler: server.Handler()}
	go func() {
		logger.Info("http server listening", zap.String("addr", *httpAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}

	logger.Info("shutdown complete")
}

// connectPostgres retries the initial connection with exponential backoff
// so the gateway survives starting before the database.
func connectPostgres(ctx context.Context, dsn string, logger *zap.Logger) (*pgstore.Pool, error) {
	var pool *pgstore.Pool

	operation := func() error {
		var err error
		pool, err = pgstore.NewPool(ctx, dsn)
		if err != nil {
			logger.Warn("postgres not ready, retrying", zap.Error(err))
			return err
		}
		return nil
	}

	strategy := backoff.NewExponentialBackOff()
	strategy.MaxElapsedTime = 60 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(strategy, ctx)); err != nil {
		return nil, err
	}

	return pool, nil
}

// envOr returns the environment value or a default when unset.
func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// splitList parses a comma-separated list, trimming whitespace.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
