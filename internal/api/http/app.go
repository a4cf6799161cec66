package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/repair-desk/internal/observability"
)

// minBodyLimit matches fiber's default so JSON endpoints keep working with tiny upload limits.
const minBodyLimit = 4 * 1024 * 1024

// AppOptions configures the HTTP application.
type AppOptions struct {
	Name           string
	MaxUploadBytes int64
	RequestTimeout time.Duration
	Logger         *zap.Logger
	Metrics        *observability.Metrics
	Routes         RouteConfig
}

// NewApp builds the fiber application with middlewares and routes registered.
func NewApp(opts AppOptions) *fiber.App {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	bodyLimit := minBodyLimit
	// multipart framing needs headroom above the file size
	if limit := opts.MaxUploadBytes + 64*1024; limit > int64(bodyLimit) {
		bodyLimit = int(limit)
	}

	app := fiber.New(fiber.Config{
		AppName:               opts.Name,
		BodyLimit:             bodyLimit,
		DisableStartupMessage: true,
	})
	RegisterMiddlewares(app, logger, opts.Metrics, opts.RequestTimeout)
	RegisterRoutes(app, opts.Routes)
	return app
}
