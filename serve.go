package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lookout-hq/lookout/pkg/auth"
	"github.com/lookout-hq/lookout/pkg/database"
	"github.com/lookout-hq/lookout/pkg/handlers"
	"github.com/lookout-hq/lookout/pkg/llm"
	"github.com/lookout-hq/lookout/pkg/mcp"
	mcpauth "github.com/lookout-hq/lookout/pkg/mcp/auth"
	"github.com/lookout-hq/lookout/pkg/mcp/tools"
	"github.com/lookout-hq/lookout/pkg/metrics"
	"github.com/lookout-hq/lookout/pkg/middleware"
	"github.com/lookout-hq/lookout/pkg/repositories"
	"github.com/lookout-hq/lookout/pkg/scheduler"
	"github.com/lookout-hq/lookout/pkg/services"
	"github.com/lookout-hq/lookout/pkg/stripe"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, MCP endpoint and scheduled jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func serve(ctx context.Context) error {
	logger.Info("Configuration loaded",
		zap.String("version", cfg.Version),
		zap.String("env", cfg.Env),
		zap.String("base_url", cfg.BaseURL),
		zap.Bool("auth_verification", cfg.Auth.EnableVerification),
		zap.Bool("redis", cfg.Redis.Host != ""),
		zap.Bool("mcp", cfg.MCP.Enabled))

	if cfg.Database.AutoMigrate {
		if err := runMigrations(); err != nil {
			return err
		}
	}

	db, err := connectDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient, err := database.NewRedisClient(ctx, &cfg.Redis, logger)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		logger.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr()))
	} else {
		logger.Warn("Redis not configured: webhook events are not deduplicated across replicas")
	}

	verifier, err := auth.NewVerifier(ctx, auth.VerifierConfig{
		EnableVerification: cfg.Auth.EnableVerification,
		Issuers:            cfg.Auth.JWKSEndpoints,
		Audience:           cfg.Auth.Audience,
		Leeway:             cfg.Auth.Leeway,
	})
	if err != nil {
		return fmt.Errorf("creating token verifier: %w", err)
	}
	defer verifier.Close()

	m := metrics.New()
	app, err := buildApp(db, redisClient, verifier, m)
	if err != nil {
		return err
	}

	jobs, err := scheduler.New(cfg.Scheduler, app.mentions, logger)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	app.registerRoutes(mux, db, m)

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           middleware.RequestLogger(logger, m)(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Prompt processing waits on every provider.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting lookout",
			zap.String("addr", srv.Addr),
			zap.Bool("tls", cfg.TLSCertPath != ""),
			zap.Int("scheduled_jobs", jobs.Jobs()))

		var err error
		if cfg.TLSCertPath != "" {
			err = srv.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
		} else {
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	jobs.Start()

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := jobs.Stop(shutdownCtx); err != nil {
			logger.Warn("Scheduler did not stop cleanly", zap.Error(err))
		}
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}

// app holds the wired services shared by the HTTP handlers, MCP tools and scheduler.
type app struct {
	authService auth.AuthService
	users       services.UserService
	planLimits  services.PlanLimitService
	topics      services.TopicService
	prompts     services.PromptService
	processing  services.PromptProcessingService
	mentions    services.MentionAnalysisService
	suggestions services.SuggestionService
	checkout    services.CheckoutService
	reconciler  services.SubscriptionReconciler
	sessions    *auth.SessionStore
	redis       *redis.Client
}

func buildApp(db *database.DB, redisClient *redis.Client, verifier auth.TokenVerifier, m *metrics.Metrics) (*app, error) {
	userRepo := repositories.NewUserRepository()
	topicRepo := repositories.NewTopicRepository()
	promptRepo := repositories.NewPromptRepository()
	modelResultRepo := repositories.NewModelResultRepository()
	mentionRepo := repositories.NewMentionRepository()

	providers, err := llm.NewProviders(&cfg.Providers, logger)
	if err != nil {
		return nil, err
	}
	if len(providers) == 0 {
		logger.Warn("No search providers configured: prompt processing will store no results")
	}
	gateway := llm.NewGateway(providers, llm.GatewayConfig{CallTimeout: cfg.Providers.CallTimeout}, m, logger)

	planLimits := services.NewPlanLimitService(cfg.Plans, userRepo, topicRepo, promptRepo, logger)

	a := &app{
		redis:       redisClient,
		authService: auth.NewAuthService(verifier, cfg.Auth.CookieName, logger),
		users:       services.NewUserService(userRepo, logger),
		planLimits:  planLimits,
		topics:      services.NewTopicService(topicRepo, promptRepo, planLimits, logger),
		prompts:     services.NewPromptService(promptRepo, topicRepo, planLimits, logger),
		processing: services.NewPromptProcessingService(
			promptRepo, topicRepo, modelResultRepo, gateway, logger),
	}

	// The mention extractor and suggestion generator are optional; their
	// services report the missing provider on each call.
	var extractor llm.ObjectGenerator
	if c, err := llm.NewMentionExtractor(cfg, logger); err != nil {
		logger.Warn("Mention analysis disabled", zap.Error(err))
		extractor = unavailableGenerator{err: err}
	} else {
		extractor = c
	}
	a.mentions = services.NewMentionAnalysisService(
		modelResultRepo, mentionRepo, database.NewScopeProvider(db),
		extractor, cfg.Mentions.Concurrency, m, logger)

	var generator llm.ObjectGenerator
	if c, err := llm.NewSuggestionGenerator(cfg, logger); err != nil {
		logger.Warn("Suggestions disabled", zap.Error(err))
		generator = unavailableGenerator{err: err}
	} else {
		generator = c
	}
	a.suggestions = services.NewSuggestionService(generator, logger)

	var stripeClient services.StripeClient
	sc, err := stripe.NewClient(&stripe.Config{
		SecretKey: cfg.Stripe.SecretKey,
		BaseURL:   cfg.Stripe.APIBaseURL,
	}, logger)
	switch {
	case errors.Is(err, stripe.ErrNotConfigured):
		logger.Warn("Billing disabled: STRIPE_SECRET_KEY is not set")
	case err != nil:
		return nil, fmt.Errorf("creating stripe client: %w", err)
	default:
		stripeClient = sc
	}

	a.checkout = services.NewCheckoutService(cfg.Plans, userRepo, stripeClient, cfg.AppURL, logger)
	a.reconciler = services.NewSubscriptionReconciler(
		userRepo,
		planLimits,
		stripeClient,
		stripe.NewWebhookVerifier(cfg.Stripe.WebhookSecret, cfg.Stripe.WebhookTolerance),
		services.NewEventDeduper(redisClient, services.DefaultEventClaimTTL),
		m,
		logger,
	)

	if cfg.Auth.SessionSecret != "" {
		a.sessions = auth.NewSessionStore(cfg.Auth.SessionSecret, cfg.BaseURL, cfg.CookieDomain)
	} else {
		logger.Warn("SESSION_SECRET not set: checkout confirmation is not tracked")
	}

	return a, nil
}

func (a *app) registerRoutes(mux *http.ServeMux, db *database.DB, m *metrics.Metrics) {
	authMiddleware := auth.NewMiddleware(a.authService, logger)
	userScope := database.WithUserContext(db, logger)

	authOnly := handlers.RouteMiddleware(authMiddleware.RequireAuth)
	withUser := handlers.Chain(authMiddleware.RequireAuth, userScope, handlers.ProvisionUser(a.users, logger))
	system := handlers.RouteMiddleware(database.WithSystemContext(db, logger))

	handlers.NewHealthHandler(cfg, logger, a.dependencies(db)...).RegisterRoutes(mux)
	handlers.NewTopicHandler(a.topics, logger).RegisterRoutes(mux, withUser)
	handlers.NewPromptHandler(a.processing, a.prompts, logger).RegisterRoutes(mux, withUser)
	handlers.NewMentionHandler(a.mentions, logger).RegisterRoutes(mux, withUser, authOnly)
	handlers.NewSuggestionHandler(a.suggestions, logger).RegisterRoutes(mux, authOnly)
	handlers.NewBillingHandler(a.checkout, a.planLimits, a.sessions, logger).RegisterRoutes(mux, withUser)
	handlers.NewWebhookHandler(a.reconciler, logger).RegisterRoutes(mux, system)

	mux.Handle("GET /metrics", m.Handler())

	if cfg.MCP.Enabled {
		mcpServer := mcp.NewServer("lookout", cfg.Version, &tools.Deps{
			Version:    cfg.Version,
			DB:         db,
			Topics:     a.topics,
			Processing: a.processing,
			Mentions:   a.mentions,
			Logger:     logger,
		}, logger)
		mcpServer.RegisterRoutes(mux,
			middleware.MCPRequestLogger(logger, m),
			mcpauth.NewMiddleware(a.authService, logger).RequireAuth,
			database.UserScopeHandler(db, logger),
		)
	}
}

// dependencies lists what GET /health checks. Redis only degrades the report.
func (a *app) dependencies(db *database.DB) []handlers.Dependency {
	deps := []handlers.Dependency{{Name: "database", Critical: true, Check: db.Ping}}
	if a.redis != nil {
		deps = append(deps, handlers.Dependency{
			Name:  "redis",
			Check: func(ctx context.Context) error { return a.redis.Ping(ctx).Err() },
		})
	}
	return deps
}

// unavailableGenerator stands in for an LLM client whose API key is missing.
type unavailableGenerator struct {
	err error
}

func (g unavailableGenerator) GenerateObject(ctx context.Context, req llm.ObjectRequest, out any) error {
	return g.err
}
