// Command batchjobs runs the multi-tenant batch job orchestrator: the
// trigger API, worker pool, and optional cron-style scheduler for
// subscription renewal reconciliation, bulk transactional email dispatch,
// and Stripe fee/tax backfill.
package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"time"

	_ "github.com/lib/pq"
	goredis "github.com/redis/go-redis/v9"

	"github.com/eventforge/batchjobs/internal/assets"
	"github.com/eventforge/batchjobs/internal/config"
	"github.com/eventforge/batchjobs/internal/content"
	"github.com/eventforge/batchjobs/internal/email"
	"github.com/eventforge/batchjobs/internal/ledger"
	"github.com/eventforge/batchjobs/internal/logger"
	"github.com/eventforge/batchjobs/internal/metrics"
	"github.com/eventforge/batchjobs/internal/orchestrator"
	"github.com/eventforge/batchjobs/internal/rategovernor"
	"github.com/eventforge/batchjobs/internal/scheduler"
	"github.com/eventforge/batchjobs/internal/shutdown"
	"github.com/eventforge/batchjobs/internal/store"
	"github.com/eventforge/batchjobs/internal/stripeclient"
	"github.com/eventforge/batchjobs/internal/telemetry"
	"github.com/eventforge/batchjobs/internal/vault"
	"github.com/eventforge/batchjobs/internal/workflows/emaildispatch"
	"github.com/eventforge/batchjobs/internal/workflows/feestax"
	"github.com/eventforge/batchjobs/internal/workflows/subscription"
)

const release = "batchjobs@dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[batchjobs] config: %v", err)
	}

	log := logger.New(cfg.LogFormat, cfg.LogLevel)

	if err := telemetry.InitSentry(cfg.SentryDSN, release); err != nil {
		log.Error("sentry init failed, continuing without it", "error", err)
	}

	db, err := sql.Open("postgres", cfg.DatabaseDSN)
	if err != nil {
		log.Error("database open failed", "error", err)
		telemetry.CaptureError(err, nil)
		panic(err)
	}
	defer db.Close()
	db.SetMaxOpenConns(20)

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		pingCancel()
		log.Error("database ping failed", "error", err)
		telemetry.CaptureError(err, nil)
		panic(err)
	}
	pingCancel()
	log.Info("database connected")

	credentialStore := store.NewPostgresCredentialStore(db)
	v, err := vault.New(credentialStore, cfg.PaymentEncryptionKey)
	if err != nil {
		log.Error("vault init failed", "error", err)
		panic(err)
	}

	var sharedStore rategovernor.SharedStore
	if cfg.RedisAddr != "" {
		rc := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		sharedStore = rategovernor.NewRedisStore(rc)
		log.Info("rate governor shared state enabled", "redis_addr", cfg.RedisAddr)
	}
	governors := rategovernor.NewRegistry(map[string]float64{
		"STRIPE": float64(cfg.StripeRatePerSecond),
		"SES":    float64(cfg.EmailRatePerSecond),
	}, sharedStore)

	assetCtx, assetCancel := context.WithTimeout(context.Background(), 10*time.Second)
	assetFetcher, err := assets.New(assetCtx, cfg.AWSRegion)
	assetCancel()
	if err != nil {
		log.Error("asset fetcher init failed", "error", err)
		panic(err)
	}
	contentBuilder := content.New(assetFetcher)

	emailCtx, emailCancel := context.WithTimeout(context.Background(), 10*time.Second)
	sender, err := email.New(emailCtx, cfg.AWSRegion, "", "")
	emailCancel()
	if err != nil {
		log.Error("email sender init failed", "error", err)
		panic(err)
	}

	jobLedger := ledger.New(db)

	subscriptionStore := store.NewPostgresSubscriptionStore(db)
	transactionStore := store.NewPostgresTransactionStore(db)
	templateStore := store.NewPostgresTemplateStore(db)
	tenantSettingsStore := store.NewPostgresTenantSettingsStore(db)
	recipientStore := store.NewPostgresRecipientStore(db)
	sentLogStore := store.NewPostgresSentLogStore(db)
	summaryStore := store.NewPostgresManualPaymentSummaryStore(db)

	renewalWindow := time.Duration(cfg.RenewalThresholdDays) * 24 * time.Hour
	extendedThreshold := time.Duration(cfg.SubscriptionExtendedThresholdDays) * 24 * time.Hour
	reconciler := subscription.New(subscriptionStore, v, func(secret string) subscription.StripeClient {
		return stripeclient.New(secret)
	}, governors.For("STRIPE"), renewalWindow, extendedThreshold, cfg.StripeCallDelay)

	dispatcher := emaildispatch.New(templateStore, tenantSettingsStore, recipientStore, sentLogStore, contentBuilder, assetFetcher, sender, governors.For("SES"))

	settlementDelay := time.Duration(cfg.SettlementDelayDays) * 24 * time.Hour
	backfiller := feestax.New(transactionStore, summaryStore, v, func(secret string) feestax.StripeClient {
		return stripeclient.New(secret)
	}, governors.For("STRIPE"), cfg.FeeTaxBatchSize, cfg.FeeRateLimitDelay, settlementDelay)

	workflows := map[orchestrator.JobType]orchestrator.Workflow{
		orchestrator.JobSubscriptionRenewal:  reconciler,
		orchestrator.JobEmailBatch:           dispatcher,
		orchestrator.JobContactFormEmail:     dispatcher,
		orchestrator.JobPromotionTestEmail:   dispatcher,
		orchestrator.JobFeesTaxBackfill:      backfiller,
		orchestrator.JobManualPaymentSummary: backfiller,
	}

	orch := orchestrator.New(jobLedger, workflows, cfg.WorkerPoolSize, cfg.JobDeadline)
	defer orch.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched := scheduler.New(orch, log, []scheduler.Entry{
		{
			JobType:  orchestrator.JobSubscriptionRenewal,
			Interval: 1 * time.Hour,
			Request:  orchestrator.TriggerRequest{JobType: orchestrator.JobSubscriptionRenewal},
		},
		{
			JobType:  orchestrator.JobFeesTaxBackfill,
			Interval: 6 * time.Hour,
			Request:  orchestrator.TriggerRequest{JobType: orchestrator.JobFeesTaxBackfill, UseDefaultDateRange: true},
		},
	})
	sched.Start(ctx)
	defer sched.Stop()

	mux := http.NewServeMux()
	orchestrator.NewServer(orch).RegisterRoutes(mux)
	mux.Handle("/metrics", metrics.Handler())

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: mux,
	}

	if err := shutdown.GracefulServe(srv, 30*time.Second, log, cancel); err != nil {
		log.Error("server exited with error", "error", err)
		telemetry.CaptureError(err, nil)
		panic(err)
	}
}
