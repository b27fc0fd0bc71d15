package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-redis/redis/v8"

	"checkout-orchestrator/internal/config"
	"checkout-orchestrator/internal/database"
	"checkout-orchestrator/internal/infrastructure/backend"
	"checkout-orchestrator/internal/infrastructure/payment"
	"checkout-orchestrator/internal/infrastructure/session"
	"checkout-orchestrator/internal/logger"
	"checkout-orchestrator/internal/repo"
	"checkout-orchestrator/internal/server"
	"checkout-orchestrator/internal/service"
	"checkout-orchestrator/internal/service/adapter"
)

// app holds the wired dependencies shared by the commands.
type app struct {
	db       *sql.DB
	redis    *redis.Client
	selector *service.Selector
	checkout service.CheckoutService
	journal  repo.FinalizationRepo
	lookup   backend.OrderLookup
	checks   map[string]server.HealthCheck
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	db, err := database.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	a := &app{
		db:       db,
		selector: service.NewSelector(),
		journal:  repo.NewFinalizationRepo(db),
		checks:   map[string]server.HealthCheck{},
	}

	dbService := database.New(db)
	a.checks["database"] = func(ctx context.Context) error {
		if stats := dbService.Health(ctx); stats["status"] != "up" {
			return fmt.Errorf("%s", stats["error"])
		}
		return nil
	}

	var drafts repo.DraftRepo
	switch cfg.DraftStore {
	case "redis":
		client, err := session.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			db.Close()
			return nil, err
		}
		a.redis = client
		store := session.NewRedisDraftStore(client)
		a.checks["redis"] = store.Ping
		drafts = store
	default:
		drafts = repo.NewDraftRepo(db)
	}

	client := backend.NewClient(cfg.OrderAPIURL, cfg.OrderAPITimeout, cfg.BackendToken)
	paymentClient := backend.NewClient(cfg.PaymentAPIURL, cfg.ProviderTimeout, cfg.BackendToken)

	var (
		intents   payment.IntentAPI
		processor payment.CardProcessor
		wallet    payment.WalletProvider
		orders    backend.OrderAPI = client
	)
	if cfg.OrderLookup {
		a.lookup = client
	}

	if cfg.UseMockProvider {
		gw := payment.NewMockGateway()
		intents, processor, wallet = gw, gw, gw
		logger.Warn("using in-process mock payment providers", nil)
	} else {
		providers := backend.NewProviderGateway(paymentClient)
		intents, processor, wallet = paymentClient, providers, providers
	}

	finalizer := service.NewFinalizer(orders, a.journal, cfg.OrderAPITimeout)
	a.checkout = service.NewCheckoutService(
		drafts,
		a.selector,
		adapter.NewCard(intents, processor, cfg.Currency, cfg.ProviderTimeout),
		adapter.NewWallet(wallet, cfg.Currency, cfg.ProviderTimeout),
		finalizer,
		cfg.Currency,
	)
	return a, nil
}

func (a *app) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			logger.Error(err, "closing redis", nil)
		}
	}
	if err := database.New(a.db).Close(); err != nil {
		logger.Error(err, "closing database", nil)
	}
}
