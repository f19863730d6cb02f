package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/mustafamilyas/expense-tracker/internal/config"
	"github.com/mustafamilyas/expense-tracker/internal/handler"
	"github.com/mustafamilyas/expense-tracker/internal/logger"
	appMiddleware "github.com/mustafamilyas/expense-tracker/internal/middleware"
	"github.com/mustafamilyas/expense-tracker/internal/repository"
	"github.com/mustafamilyas/expense-tracker/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("config error")
	}
	logger.SetLevel(cfg.LogLevel)
	if cfg.LogJSON {
		logger.SetJSON()
	}

	ctx := context.Background()

	db, err := repository.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("database error")
	}
	defer db.Close()

	if err := repository.RunMigrations(ctx, db); err != nil {
		logger.Log.Fatal().Err(err).Msg("migration error")
	}
	logger.Log.Info().Msg("database connected and migrated")

	// Repositories
	userRepo := repository.NewUserRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	subRepo := repository.NewSubscriptionRepository(db)
	usageRepo := repository.NewUsageRepository(db)
	bindReqRepo := repository.NewBindRequestRepository(db)
	bindingRepo := repository.NewBindingRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)

	// Services
	authSvc := service.NewAuthService(cfg.JWTSecrets, cfg.WebTokenTTL, userRepo)
	relay := service.NewRelayVerifier(cfg.RelaySecret)
	bindReqSvc := service.NewBindRequestService(bindReqRepo, cfg.BindRequestTTL, cfg.BindBaseURL)
	bindingSvc := service.NewChatBindingService(bindReqSvc, bindingRepo)
	tierSvc := service.NewTierService(subRepo, usageRepo)
	guard := service.NewGuardService(groupRepo)

	// Handlers
	authHandler := handler.NewAuthHandler(authSvc)
	bindHandler := handler.NewBindHandler(relay, bindReqSvc, bindingSvc, guard)
	groupHandler := handler.NewGroupHandler(groupRepo, guard, tierSvc)
	ledgerHandler := handler.NewLedgerHandler(ledgerRepo, guard, tierSvc)
	billingHandler := handler.NewBillingHandler(tierSvc, usageRepo)
	healthHandler := handler.NewHealthHandler(db)

	resolver := appMiddleware.NewAuthResolver(authSvc, relay, bindingRepo)

	// Expired bind requests pile up silently; sweep them in the background.
	go sweepBindRequests(ctx, bindReqRepo)

	r := chi.NewRouter()

	r.Use(appMiddleware.Recovery)
	r.Use(appMiddleware.Logger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Relay-Signature", "X-Chat-Binding"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	globalRL := appMiddleware.NewRateLimiter(20, 40)
	r.Use(globalRL.Middleware())

	// Public routes
	r.Get("/health", healthHandler.Health)
	r.Get("/version", healthHandler.VersionInfo)
	r.Get("/api/plans", billingHandler.Plans)
	r.Post("/api/chat-bind-requests", bindHandler.Issue)

	r.Group(func(r chi.Router) {
		r.Use(appMiddleware.StrictRateLimiter())
		r.Post("/api/auth/register", authHandler.Register)
		r.Post("/api/auth/login", authHandler.Login)
	})

	// Authenticated routes (web token or relay-signed chat request)
	r.Group(func(r chi.Router) {
		r.Use(resolver.Middleware())

		r.Get("/api/auth/me", authHandler.Me)

		// Binding lifecycle
		r.Post("/api/chat-bind-requests/{id}/claim", bindHandler.Claim)
		r.Post("/api/chat-bindings", bindHandler.Accept)
		r.Get("/api/chat-bindings", bindHandler.List)
		r.Delete("/api/chat-bindings/{id}", bindHandler.Revoke)

		// Groups
		r.Get("/api/groups", groupHandler.List)
		r.Post("/api/groups", groupHandler.Create)
		r.Get("/api/groups/{id}", groupHandler.Get)
		r.Put("/api/groups/{id}", groupHandler.Update)
		r.Delete("/api/groups/{id}", groupHandler.Delete)
		r.Post("/api/groups/{id}/members", groupHandler.AddMember)
		r.Delete("/api/groups/{id}/members/{userId}", groupHandler.RemoveMember)

		// Ledger
		r.Get("/api/categories", ledgerHandler.ListCategories)
		r.Post("/api/categories", ledgerHandler.CreateCategory)
		r.Delete("/api/categories/{id}", ledgerHandler.DeleteCategory)
		r.Get("/api/budgets", ledgerHandler.ListBudgets)
		r.Post("/api/budgets", ledgerHandler.CreateBudget)
		r.Delete("/api/budgets/{id}", ledgerHandler.DeleteBudget)
		r.Get("/api/expenses", ledgerHandler.ListExpenses)
		r.Post("/api/expenses", ledgerHandler.CreateExpense)
		r.Delete("/api/expenses/{id}", ledgerHandler.DeleteExpense)

		// Billing
		r.Get("/api/billing/subscription", billingHandler.Subscription)
		r.Get("/api/billing/usage", billingHandler.Usage)
		r.Post("/api/billing/usage/recalculate", billingHandler.RecalculateUsage)
		r.Post("/api/billing/tier", billingHandler.ChangeTier)
		r.Post("/api/billing/cancel", billingHandler.Cancel)
	})

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		logger.Log.Info().Msg("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	logger.Log.Info().Str("addr", addr).Msg("server listening")
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		logger.Log.Fatal().Err(err).Msg("server error")
	}
}

func sweepBindRequests(ctx context.Context, repo *repository.BindRequestRepository) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := repo.DeleteExpired(ctx)
			if err != nil {
				logger.Log.Warn().Err(err).Msg("bind request sweep failed")
				continue
			}
			if n > 0 {
				logger.Log.Debug().Int64("removed", n).Msg("swept expired bind requests")
			}
		}
	}
}
