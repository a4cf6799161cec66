package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/repair-desk/internal/config"
	"github.com/spec-kit/repair-desk/internal/events"
	"github.com/spec-kit/repair-desk/internal/observability"
	"github.com/spec-kit/repair-desk/internal/persistence"
	"github.com/spec-kit/repair-desk/internal/repository"
	"github.com/spec-kit/repair-desk/internal/service"
	"github.com/spec-kit/repair-desk/internal/storage"
	"github.com/spec-kit/repair-desk/internal/suggestion"
)

// runtime holds the shared dependencies of every command.
type runtime struct {
	cfg        *config.Config
	logger     *zap.Logger
	pg         *persistence.Postgres
	redis      *persistence.Redis
	store      repository.Store
	dispatcher events.Dispatcher
	files      *storage.LocalStorage

	auth        *service.AuthService
	tickets     *service.TicketService
	customers   *service.CustomerService
	attachments *service.AttachmentService
	inventory   *service.InventoryService
	suggestions *service.SuggestionService
	dashboard   *service.DashboardService
	maintenance *service.MaintenanceService
}

func newRuntime(ctx context.Context, migrate bool) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to init logger: %w", err)
	}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect postgres: %w", err)
	}

	var store repository.Store
	if pool := pg.PoolHandle(); pool != nil {
		if migrate {
			if err := persistence.RunMigrations(ctx, pool, cfg.Postgres.MigrationsDir, logger); err != nil {
				pg.Close()
				return nil, fmt.Errorf("failed to run migrations: %w", err)
			}
		}
		store = repository.NewPostgresStore(pool)
	} else {
		store = repository.NewMemoryStore()
	}

	files, err := storage.NewLocalStorage(cfg.Upload.Dir, cfg.Upload.MaxBytes)
	if err != nil {
		pg.Close()
		return nil, fmt.Errorf("failed to prepare upload dir: %w", err)
	}

	dispatcher := events.NewInMemoryDispatcher(logger)
	gateway := suggestion.New(suggestion.Config{
		Endpoint:     cfg.Suggestion.Endpoint,
		Token:        cfg.Suggestion.Token,
		Timeout:      cfg.Suggestion.Timeout,
		Provider:     cfg.Suggestion.Provider,
		Model:        cfg.Suggestion.Model,
		SystemPrompt: cfg.Suggestion.SystemPrompt,
	}, logger)

	rt := &runtime{
		cfg:        cfg,
		logger:     logger,
		pg:         pg,
		redis:      persistence.NewRedis(ctx, cfg.Redis, logger),
		store:      store,
		dispatcher: dispatcher,
		files:      files,
	}
	rt.auth = service.NewAuthService(cfg.Auth, store, logger)
	rt.tickets = service.NewTicketService(service.TicketDependencies{
		Store:      store,
		Files:      files,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	rt.customers = service.NewCustomerService(store, files, logger)
	rt.attachments = service.NewAttachmentService(store, files, dispatcher, logger)
	rt.inventory = service.NewInventoryService(store, logger)
	rt.suggestions = service.NewSuggestionService(store, gateway, logger)
	rt.dashboard = service.NewDashboardService(store)
	rt.maintenance = service.NewMaintenanceService(store, rt.tickets, rt.customers, logger)
	return rt, nil
}

func (r *runtime) close() {
	r.redis.Close()
	r.pg.Close()
	_ = r.logger.Sync()
}
