// Package main is the entry point for the HeirVault API server.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/heirvault/heirvault/internal/admin"
	"github.com/heirvault/heirvault/internal/api"
	"github.com/heirvault/heirvault/internal/attorney"
	"github.com/heirvault/heirvault/internal/audit"
	"github.com/heirvault/heirvault/internal/auth"
	"github.com/heirvault/heirvault/internal/billing"
	"github.com/heirvault/heirvault/internal/client"
	"github.com/heirvault/heirvault/internal/config"
	"github.com/heirvault/heirvault/internal/db"
	"github.com/heirvault/heirvault/internal/document"
	"github.com/heirvault/heirvault/internal/health"
	"github.com/heirvault/heirvault/internal/insurer"
	"github.com/heirvault/heirvault/internal/invite"
	"github.com/heirvault/heirvault/internal/mailer"
	"github.com/heirvault/heirvault/internal/middleware"
	"github.com/heirvault/heirvault/internal/ocr"
	"github.com/heirvault/heirvault/internal/pdf"
	"github.com/heirvault/heirvault/internal/policy"
	"github.com/heirvault/heirvault/internal/receipt"
	"github.com/heirvault/heirvault/internal/storage"
	"github.com/heirvault/heirvault/internal/submission"
	"github.com/heirvault/heirvault/internal/tracing"
)

// repositories bundles every persistence interface the handlers need,
// so the Postgres and in-memory wirings stay side by side.
type repositories struct {
	attorneys   attorney.Repository
	clients     client.Repository
	policies    policy.Repository
	insurers    insurer.Repository
	invites     invite.Repository
	submissions submission.Repository
	receipts    receipt.Repository
	documents   document.Repository
	audits      audit.Repository
	billing     billing.EventRepository
}

func postgresRepositories(database *sql.DB, logger *slog.Logger) *repositories {
	return &repositories{
		attorneys:   attorney.NewPostgresRepository(database),
		clients:     client.NewPostgresRepository(database, logger),
		policies:    policy.NewPostgresRepository(database, logger),
		insurers:    insurer.NewPostgresRepository(database, logger),
		invites:     invite.NewPostgresRepository(database, logger),
		submissions: submission.NewPostgresRepository(database, logger),
		receipts:    receipt.NewPostgresRepository(database, logger),
		documents:   document.NewPostgresRepository(database, logger),
		audits:      audit.NewPostgresRepository(database, logger),
		billing:     billing.NewPostgresEventRepository(database),
	}
}

func main() {
	configFile := flag.String("config", "", "path to optional YAML config file")
	help := flag.Bool("help", false, "display help message")
	flag.Parse()

	if *help {
		fmt.Println("HeirVault API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configFile)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, "config:", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "summary", cfg.LogSummary())

	ctx := context.Background()

	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	repos := postgresRepositories(database, logger)

	// Tracing is a no-op unless an OTLP endpoint is configured.
	tp, err := tracing.NewProvider(tracing.Config{
		ServiceName:  "heirvault-api",
		Enabled:      cfg.OTLPEndpoint != "",
		Environment:  cfg.Env,
		OTLPEndpoint: cfg.OTLPEndpoint,
		SamplingRate: 1.0,
		InsecureMode: cfg.Env != "production",
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("failed to shut down tracing", "error", err)
		}
	}()

	jwtService := auth.NewJWTServiceWithRotation(cfg.JWTSecret, cfg.JWTPreviousSecret)

	// Rate limit state lives in Redis when configured so limits hold
	// across instances; otherwise per-process buckets.
	var rateLimits middleware.RateLimitStore = middleware.NewInMemoryRateLimitStore()
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		rateLimits = middleware.NewRedisRateLimitStore(redisClient).WithLogger(logger)
	}

	var mail mailer.Mailer = mailer.NoopMailer{}
	switch {
	case cfg.SendGridAPIKey != "":
		m, err := mailer.NewSendGridMailer(cfg.SendGridAPIKey, "HeirVault", cfg.MailFrom)
		if err != nil {
			logger.Error("failed to configure SendGrid mailer", "error", err)
			os.Exit(1)
		}
		mail = m
	case cfg.SMTPHost != "":
		m, err := mailer.NewSMTPMailer(mailer.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
		})
		if err != nil {
			logger.Error("failed to configure SMTP mailer", "error", err)
			os.Exit(1)
		}
		mail = m
	default:
		logger.Warn("mail delivery not configured, invite and receipt emails will be dropped")
	}

	var store *storage.Service
	if cfg.S3BucketName != "" {
		store, err = storage.NewService(storage.ServiceConfig{
			BucketName:      cfg.S3BucketName,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Endpoint:        cfg.S3Endpoint,
			MaxSizeMB:       cfg.S3MaxUploadSizeMB,
		})
		if err != nil {
			logger.Error("failed to configure object storage", "error", err)
			os.Exit(1)
		}
	}

	var extractor *ocr.Client
	if cfg.OCREndpoint != "" {
		extractor = ocr.NewClient(cfg.OCREndpoint)
	}

	renderer := pdf.NewRenderer(pdf.RendererConfig{ChromiumPath: cfg.ChromiumPath})

	var billingSvc *billing.Service
	if cfg.StripeAPIKey != "" {
		billingSvc = billing.NewService(
			billing.NewStripeClient(cfg.StripeAPIKey),
			repos.billing,
			repos.attorneys,
			billing.ServiceConfig{
				PriceID:    cfg.StripePriceID,
				SuccessURL: cfg.StripeCheckoutSuccess,
				CancelURL:  cfg.StripeCheckoutCancel,
			},
			logger,
		).WithAudits(repos.audits)
	}

	policySource := api.NewPolicySource(repos.policies)
	issuer := receipt.NewIssuer(repos.receipts, policySource, logger)
	verifier := receipt.NewVerifier(repos.receipts, policySource, logger)

	dispatcher := admin.NewDispatcher(logger)
	if err := admin.RegisterBuiltins(dispatcher, admin.Deps{
		Clients:  repos.clients,
		Policies: repos.policies,
		Invites:  repos.invites,
		Verifier: verifier,
	}); err != nil {
		logger.Error("failed to register admin commands", "error", err)
		os.Exit(1)
	}

	clientHandlers := api.NewClientHandlers(repos.clients, repos.audits, logger)

	var redisChecker health.Checker
	if redisClient != nil {
		redisChecker = health.NewRedisChecker(redisClient)
	}

	mux := api.NewRouter(api.RouterConfig{
		Auth:    api.NewAuthHandlers(repos.attorneys, jwtService, logger),
		Clients: clientHandlers,
		Policies: api.NewPolicyHandlers(repos.policies, repos.insurers,
			clientHandlers, repos.audits, logger),
		Intake: api.NewIntakeHandlers(repos.invites, repos.clients, repos.policies,
			repos.insurers, repos.submissions, issuer, repos.audits, mail,
			cfg.VerifyBaseURL, logger),
		Receipts: api.NewReceiptHandlers(repos.receipts, verifier, clientHandlers,
			repos.policies, repos.insurers, renderer, repos.audits,
			cfg.VerifyBaseURL, logger),
		Invites: api.NewInviteHandlers(repos.invites, repos.attorneys, clientHandlers,
			jwtService, repos.audits, mail, cfg.VerifyBaseURL, logger),
		Documents: api.NewDocumentHandlers(repos.documents, store, extractor,
			clientHandlers, repos.audits, logger),
		Admin:   api.NewAdminHandlers(dispatcher, repos.audits, logger),
		Billing: api.NewBillingHandlers(billingSvc, cfg.StripeWebhookSecret, logger),
		Health:  api.NewHealthHandlers(health.NewDBChecker(database), redisChecker, logger),

		TokenValidator: jwtService,
		RateLimits:     rateLimits,
	})

	httpMetrics := middleware.NewMetrics()
	if err := httpMetrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register HTTP metrics", "error", err)
		os.Exit(1)
	}
	mux.Handle("GET /metrics", promhttp.Handler())

	// Outer middleware: RequestID -> Tracing -> Logging -> Metrics -> CORS.
	var handler http.Handler = mux
	handler = middleware.CORS(middleware.DefaultCORSConfig(cfg.CORSAllowedOrigins))(handler)
	handler = middleware.HTTPMetrics(httpMetrics)(handler)
	handler = middleware.Logging(logger)(handler)
	if tp.IsEnabled() {
		handler = middleware.Tracing("heirvault-api")(handler)
	}
	handler = middleware.RequestID(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", cfg.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
