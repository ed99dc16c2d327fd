package bootstrap

import (
	"strings"

	"feedpulse/adapter/in/http"
	"feedpulse/config"
	"feedpulse/core/domain"
	"feedpulse/infra/middleware"
	"feedpulse/pkg/logger"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

func NewAPI(cfg *config.Config) (*fiber.App, func(), error) {
	// Initialize logger
	logLevel := logger.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = logger.LevelDebug
	}
	logger.Init(logger.Config{
		Level:   logLevel,
		Service: "feedpulse-api",
	})

	deps, cleanup, err := NewDependencies(cfg)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize dependencies")
		return nil, nil, err
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          middleware.ErrorHandler(),
		DisableStartupMessage: cfg.IsProduction(),
		Prefork:               false,
		StrictRouting:         false,
		CaseSensitive:         false,

		ReadBufferSize:  16384,
		WriteBufferSize: 16384,

		// go-json is 2-3x faster than encoding/json for serialization
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,

		BodyLimit: 1 * 1024 * 1024, // 1MB, no large payloads on this API

		ServerHeader:       "",
		DisableDefaultDate: true,
		DisableKeepalive:   false,
	})

	// Global middleware stack (order matters)
	app.Use(middleware.Recover())
	app.Use(middleware.RequestID())
	app.Use(middleware.RequestLogger())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	// CORS - AllowCredentials:true requires explicit origins (not "*")
	allowOrigins := strings.Join(cfg.AllowedOrigins, ",")
	allowCredentials := true
	if allowOrigins == "" || allowOrigins == "*" {
		if cfg.IsProduction() {
			allowOrigins = ""
			allowCredentials = false
		} else {
			allowOrigins = "http://localhost:3000,http://localhost:5173"
		}
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowOrigins,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,X-Request-ID",
		ExposeHeaders:    "X-Request-ID",
		AllowCredentials: allowCredentials,
		MaxAge:           86400,
	}))

	// Health check
	healthHandler := http.NewHealthHandler(deps.DB, deps.Redis)
	healthHandler.Register(app)

	// Pipeline routes; dispatcher and digest parts register as disabled when
	// their backing services are not configured.
	pipelineHandler := http.NewPipelineHandler(
		deps.Pipeline,
		deps.Dispatcher,
		digestRepoOrNil(deps),
		deps.DigestBuilder,
	)
	pipelineHandler.Register(app)

	// Operator subscriber management
	recipientHandler := http.NewRecipientHandler(deps.RecipientRepo)
	recipientHandler.Register(app)

	logger.Info("API server initialized successfully")

	return app, cleanup, nil
}

// digestRepoOrNil avoids a typed-nil interface when MongoDB is not configured.
func digestRepoOrNil(deps *Dependencies) domain.DigestRepository {
	if deps.DigestRepo == nil {
		return nil
	}
	return deps.DigestRepo
}
