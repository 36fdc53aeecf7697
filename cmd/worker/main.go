package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/SrinuTirumanisetti/Video-Streaming-Application/internal/analysis"
	"github.com/SrinuTirumanisetti/Video-Streaming-Application/internal/infra/config"
	"github.com/SrinuTirumanisetti/Video-Streaming-Application/internal/infra/ffmpeg"
	"github.com/SrinuTirumanisetti/Video-Streaming-Application/internal/infra/metrics"
	miniofetch "github.com/SrinuTirumanisetti/Video-Streaming-Application/internal/infra/minio"
	"github.com/SrinuTirumanisetti/Video-Streaming-Application/internal/infra/postgres"
	"github.com/SrinuTirumanisetti/Video-Streaming-Application/internal/infra/rabbitmq"
	"github.com/SrinuTirumanisetti/Video-Streaming-Application/internal/infra/tracing"
	"github.com/SrinuTirumanisetti/Video-Streaming-Application/internal/ingest"
	"github.com/SrinuTirumanisetti/Video-Streaming-Application/internal/notify"
	"github.com/SrinuTirumanisetti/Video-Streaming-Application/internal/pipeline"
	"github.com/SrinuTirumanisetti/Video-Streaming-Application/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	fatalOnErr(err, "load config")

	log, err := logger.New(cfg.LogLevel)
	fatalOnErr(err, "init logger")
	defer log.Sync()

	log.Info("starting video-analysis-service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing (non-fatal if the collector is unavailable)
	tp, err := tracing.InitTracer(ctx, cfg.OTLPEndpoint)
	if err != nil {
		log.Warn("tracing init failed, continuing without tracing", zap.Error(err))
	} else {
		defer tp.Shutdown(ctx)
	}

	// Database
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	fatalOnErr(err, "connect to postgres")
	defer pool.Close()

	if err := postgres.RunMigrations(cfg.DatabaseURL, "migrations"); err != nil {
		log.Warn("migration warning", zap.Error(err))
	}
	store := postgres.NewRecordStore(pool)

	// Source storage
	fetcher, err := miniofetch.NewFetcher(miniofetch.FetcherConfig{
		Endpoint:  cfg.MinIOEndpoint,
		AccessKey: cfg.MinIOAccessKey,
		SecretKey: cfg.MinIOSecretKey,
		UseSSL:    cfg.MinIOUseSSL,
		Bucket:    cfg.MinIOUploadBucket,
	})
	fatalOnErr(err, "create minio fetcher")
	fatalOnErr(fetcher.EnsureBucket(ctx), "ensure upload bucket")

	// Pipeline
	extractor := ffmpeg.NewExtractor(ffmpeg.ExtractorConfig{
		FFmpegPath:  cfg.FFmpegPath,
		FFprobePath: cfg.FFprobePath,
		Format:      cfg.FrameFormat,
	}, log)
	analyzer := analysis.NewMarkerAnalyzer(cfg.MarkerToken)

	pipe := pipeline.New(store, fetcher, extractor, analyzer, pipeline.Config{
		TempDir:         cfg.TempDir,
		SettleDelay:     cfg.SettleDelay,
		FrameCount:      cfg.FrameCount,
		ExtractTimeout:  cfg.ExtractTimeout,
		PersistAttempts: cfg.PersistAttempts,
	}, log)

	// Notification fan-out: in-process bus (websocket observers) plus the
	// AMQP status queue for sibling services.
	bus := notify.NewBus(log)
	defer bus.Close()
	hub := notify.NewHub(bus, log)

	rmqConn, err := amqp.Dial(cfg.RabbitMQURL)
	fatalOnErr(err, "connect to rabbitmq for publisher")
	defer rmqConn.Close()

	pub, err := rabbitmq.NewPublisher(rmqConn, cfg.RabbitMQExchange)
	fatalOnErr(err, "create rabbitmq publisher")
	statusSink := rabbitmq.NewStatusSink(pub, cfg.RabbitMQStatusQueue)
	dlqPub := rabbitmq.NewDLQPublisher(pub, cfg.RabbitMQDLQ)

	sink := notify.Fanout(bus, statusSink)

	handler := ingest.NewHandler(store, store, pipe, sink, dlqPub, pipeline.Options{
		LightMode:   cfg.LightMode,
		MarkerToken: cfg.MarkerToken,
		FrameCount:  cfg.FrameCount,
	}, log)

	// HTTP: metrics, health, websocket observers
	srv := metrics.StartServer(ctx, cfg.HTTPPort, map[string]http.Handler{
		"/ws/status": hub,
	}, log)

	consumer, err := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
		URL:         cfg.RabbitMQURL,
		Queue:       cfg.RabbitMQRequestQueue,
		Exchange:    cfg.RabbitMQExchange,
		DLQ:         cfg.RabbitMQDLQ,
		StatusQueue: cfg.RabbitMQStatusQueue,
		RequestKey:  cfg.RabbitMQRequestQueue,
		StatusKey:   cfg.RabbitMQStatusQueue,
		Prefetch:    cfg.RabbitMQPrefetch,
		WorkerCount: cfg.WorkerCount,
		BaseDelayMs: cfg.RetryBaseDelay,
	}, handler.Handle, log)
	fatalOnErr(err, "create consumer")

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	log.Info("video-analysis-service started, consuming submissions")

	if err := consumer.Start(ctx); err != nil {
		log.Error("consumer error", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := pipe.Shutdown(shutdownCtx); err != nil {
		log.Warn("pipeline shutdown incomplete", zap.Error(err))
	}
	srv.Shutdown(shutdownCtx)
	consumer.Close()

	log.Info("video-analysis-service stopped")
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}
