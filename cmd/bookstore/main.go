package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/bookstore/internal/config"
	"github.com/noah-isme/bookstore/internal/events"
	"github.com/noah-isme/bookstore/internal/health"
	"github.com/noah-isme/bookstore/internal/notify"
	"github.com/noah-isme/bookstore/internal/obs"
	"github.com/noah-isme/bookstore/internal/resilience"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "bookstore")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)
	resilience.MustRegisterMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", false)
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "bookstore",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0),
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var deps infra

	if cfg.RedisURL != "" {
		redisClient := mustInitRedis(ctx, cfg.RedisURL, metricsEnabled, logger)
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error().Err(err).Msg("close redis")
			}
		}()
		deps.Redis = redisClient
	}

	if len(cfg.KafkaBrokers) > 0 {
		breaker := resilience.NewBreaker("kafka", 5, 0.5, 30*time.Second).WithLogger(logger)
		kafka := events.NewKafkaPublisher(cfg.KafkaBrokers, map[string]string{
			events.TopicOrderCreated: cfg.KafkaOrderTopic,
		}).WithBreaker(breaker)
		defer func() {
			if err := kafka.Close(); err != nil {
				logger.Error().Err(err).Msg("close kafka writer")
			}
		}()
		deps.Publishers = append(deps.Publishers, kafka)
		logger.Info().Strs("brokers", cfg.KafkaBrokers).Msg("kafka publisher enabled")
	}

	if cfg.RedisURL != "" && cfg.NotifyEnabled {
		opt, err := asynq.ParseRedisURI(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("parse redis uri for asynq")
		}
		client := asynq.NewClient(opt)
		defer func() {
			if err := client.Close(); err != nil {
				logger.Error().Err(err).Msg("close asynq client")
			}
		}()
		deps.Notifier = notify.NewQueueNotifier(client, notify.QueueOptions{
			Delay:   cfg.NotifyDelay,
			Breaker: resilience.NewBreaker("asynq", 5, 0.5, 30*time.Second).WithLogger(logger),
		})
		logger.Info().Msg("order notifications queued to worker")
	}

	application, err := newApp(ctx, cfg, logger, deps)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise application")
	}

	opts := routerOptions{
		Tracing: tracingEnabled,
		MaxBody: int64(envInt("HTTP_MAX_BODY_BYTES", 1<<20)),
		HSTS:    envBool("HTTP_ENABLE_HSTS", false),
	}
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_HTTP_BUCKETS_MS", "5,10,25,50,100,250,500,1000"))
		opts.Metrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}
	if envBool("OBS_ENABLE_PPROF", false) {
		opts.Pprof = protectPprof(newPprofMux(), os.Getenv("OBS_PPROF_USER"), os.Getenv("OBS_PPROF_PASS"))
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           application.routes(opts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	}()

	<-ctx.Done()
	health.SetReady(false)
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), envDurationMillis("SHUTDOWN_TIMEOUT_MS", 10000))
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	application.close()
	logger.Info().Msg("server stopped")
}

func mustInitRedis(ctx context.Context, url string, metrics bool, logger zerolog.Logger) *redis.Client {
	redisOpts, err := redis.ParseURL(url)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	client := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metrics {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return client
}
