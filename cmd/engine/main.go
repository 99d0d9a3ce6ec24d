// cmd/engine/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"autoapply-engine/internal/adapters/channel"
	"autoapply-engine/internal/adapters/jobsource"
	"autoapply-engine/internal/adapters/oracle"
	"autoapply-engine/internal/api"
	"autoapply-engine/internal/common/aws"
	"autoapply-engine/internal/common/breaker"
	"autoapply-engine/internal/common/config"
	"autoapply-engine/internal/common/database"
	"autoapply-engine/internal/common/logger"
	"autoapply-engine/internal/common/observability"
	"autoapply-engine/internal/engine/dedup"
	"autoapply-engine/internal/engine/matcher"
	"autoapply-engine/internal/engine/notify"
	"autoapply-engine/internal/engine/orchestrator"
	"autoapply-engine/internal/engine/quota"
	"autoapply-engine/internal/engine/submitter"
	"autoapply-engine/internal/models"
)

// observedRunner records OTel run metrics around the orchestrator.
type observedRunner struct {
	inner api.Runner
	obs   *observability.Observability
}

func (r *observedRunner) RunForUser(ctx context.Context, userID string) (models.RunSummary, error) {
	started := time.Now()
	summary, err := r.inner.RunForUser(ctx, userID)

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.obs.RecordRunProcessed(ctx, outcome)
	r.obs.RecordRunDuration(ctx, time.Since(started), outcome)

	return summary, err
}

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting automation engine...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return esClient.Ping()
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	// --- Quota ---
	quotaStore := quota.NewPostgresStore(pg.DB)
	tierLimits := make(map[models.Tier]quota.TierLimit, len(cfg.Quota.Tiers))
	for name, tl := range cfg.Quota.Tiers {
		tierLimits[models.Tier(name)] = quota.TierLimit{
			Limit:      tl.LimitPerWindow,
			WindowKind: models.WindowKind(tl.WindowKind),
		}
	}
	tracker := quota.NewTracker(quotaStore, log).WithTierLimits(tierLimits)

	// --- Dedup ---
	seenStore := dedup.NewStore(rdb.Client, pg.DB, log)

	// --- Matching ---
	oracleClient := oracle.NewClient(
		cfg.Oracle.BaseURL,
		cfg.Oracle.APIKey,
		time.Duration(cfg.Oracle.Timeout)*time.Millisecond,
		log,
	)
	oracleBreaker := breaker.New(cfg.Engine.BreakerThreshold)
	ranker := matcher.New(oracleClient, oracleBreaker, log)

	// --- Submission channel ---
	var submissionChannel submitter.Channel
	switch cfg.Submission.Mode {
	case "email":
		sesClient, err := aws.NewSESClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("ses client failed", zap.Error(err))
		}
		submissionChannel = channel.NewEmailChannel(sesClient, cfg.Submission.Email.FromEmail, log)
	default:
		submissionChannel = channel.NewPlatformChannel(
			cfg.Submission.BaseURL,
			cfg.Submission.APIKey,
			time.Duration(cfg.Submission.Timeout)*time.Millisecond,
			log,
		)
	}

	records := submitter.NewPostgresRecordStore(pg.DB)
	processor := submitter.New(submissionChannel, records, seenStore, tracker, submitter.Config{
		MaxAttempts:    cfg.Engine.MaxAttempts,
		InitialBackoff: time.Duration(cfg.Engine.RetryBackoff) * time.Millisecond,
		CallTimeout:    time.Duration(cfg.Engine.CallTimeout) * time.Millisecond,
	}, log)

	// --- Notifications ---
	var sinks []notify.Sink
	if cfg.Notifications.Email.Enabled {
		sesClient, err := aws.NewSESClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("ses client failed", zap.Error(err))
		}
		sinks = append(sinks, notify.NewEmailSink(sesClient, cfg.Notifications.Email.FromEmail))
	}
	if cfg.Notifications.SMS.Enabled {
		snsClient, err := aws.NewSNSClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("sns client failed", zap.Error(err))
		}
		sinks = append(sinks, notify.NewSMSSink(snsClient))
	}
	dispatcher := notify.NewDispatcher(sinks, 10*time.Second, log)

	// --- Orchestrator ---
	profiles := orchestrator.NewPostgresProfileStore(pg.DB)
	runLock := orchestrator.NewRunLock(rdb.Client, time.Duration(cfg.Engine.RunLockTTL)*time.Second)
	source := jobsource.NewElasticsearchSource(esClient, cfg.Database.Elasticsearch.Index, log)

	engine := orchestrator.New(profiles, tracker, seenStore, source, ranker, processor, runLock, dispatcher, orchestrator.Config{
		PoolSize:         cfg.Engine.PoolSize,
		MaxBatchSize:     cfg.Engine.MaxBatchSize,
		RunTimeout:       time.Duration(cfg.Engine.RunTimeout) * time.Millisecond,
		BreakerThreshold: cfg.Engine.BreakerThreshold,
	}, log)

	// --- HTTP server ---
	pingers := map[string]api.Pinger{
		"postgres": pg,
		"redis":    rdb,
	}
	runner := &observedRunner{inner: engine, obs: obs}
	handler := api.NewHandler(runner, tracker, records, rdb.Client,
		time.Duration(cfg.Quota.StatusCacheTTL)*time.Second, pingers, log)

	server := &http.Server{
		Addr:        cfg.Server.Address,
		Handler:     api.NewRouter(handler, log),
		ReadTimeout: time.Duration(cfg.Server.ReadTimeout) * time.Millisecond,
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Millisecond)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("HTTP server shutdown failed", zap.Error(err))
	}
	dispatcher.Wait()

	zapLog.Info("Automation engine stopped gracefully")
}
