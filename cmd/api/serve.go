package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/repair-desk/internal/api/http"
	"github.com/spec-kit/repair-desk/internal/api/http/handlers"
	"github.com/spec-kit/repair-desk/internal/auth"
	"github.com/spec-kit/repair-desk/internal/observability"
	"github.com/spec-kit/repair-desk/internal/service"
	"github.com/spec-kit/repair-desk/internal/worker"
)

const notificationQueueSize = 256

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	rt, err := newRuntime(ctx, true)
	if err != nil {
		return err
	}
	defer rt.close()
	logger := rt.logger

	var notifier *worker.NotificationWorker
	if rt.redis.Enabled() {
		notifications := service.NewNotificationService(rt.dispatcher, rt.redis.Client, logger, rt.cfg.Notification)
		notifier = worker.NewNotificationWorker(notifications.Handle, notificationQueueSize, logger)
		notifier.Subscribe(rt.dispatcher)
		notifier.Start(ctx)
	} else {
		service.NewNotificationService(rt.dispatcher, nil, logger, rt.cfg.Notification).RegisterHandlers()
	}

	metrics := observability.NewMetrics()
	app := httptransport.NewApp(httptransport.AppOptions{
		Name:           rt.cfg.App.Name,
		MaxUploadBytes: rt.cfg.Upload.MaxBytes,
		RequestTimeout: rt.cfg.App.RequestTimeout,
		Logger:         logger,
		Metrics:        metrics,
		Routes: httptransport.RouteConfig{
			Health:         handlers.NewHealthHandler(rt.cfg.App.Name, rt.cfg.App.Version, rt.pg, rt.redis, metrics),
			Users:          handlers.NewUsersHandler(rt.auth),
			Customers:      handlers.NewCustomersHandler(rt.customers, rt.tickets),
			Tickets:        handlers.NewTicketsHandler(rt.tickets, rt.attachments, rt.suggestions),
			Inventory:      handlers.NewInventoryHandler(rt.inventory),
			Admin:          handlers.NewAdminHandler(rt.dashboard, rt.maintenance),
			AuthMiddleware: auth.NewAuthMiddleware(rt.auth.TokenManager(), rt.store.Repositories().Users),
		},
	})

	go func() {
		logger.Info("http server listening", zap.String("addr", rt.cfg.App.Addr()))
		if err := app.Listen(rt.cfg.App.Addr()); err != nil {
			logger.Error("fiber listen", zap.Error(err))
			cancel()
		}
	}()

	waitForShutdown(ctx, logger)

	if err := app.Shutdown(); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	cancel()
	if notifier != nil {
		notifier.Wait()
	}
	return nil
}

func waitForShutdown(ctx context.Context, logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("shutting down", zap.Error(ctx.Err()))
	}
}
