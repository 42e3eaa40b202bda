package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"

	"github.com/voxmind/voxmind-backend/internal/api"
	"github.com/voxmind/voxmind-backend/internal/auth"
	"github.com/voxmind/voxmind-backend/internal/config"
	"github.com/voxmind/voxmind-backend/internal/database"
	"github.com/voxmind/voxmind-backend/internal/keys"
	"github.com/voxmind/voxmind-backend/internal/repository/postgres"
	"github.com/voxmind/voxmind-backend/internal/services"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	log := newLogger(cfg.Log)

	// Connect to database
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	// Run migrations
	if err := database.RunMigrations(cfg.Database); err != nil {
		log.WithError(err).Fatal("Failed to run migrations")
	}

	// Initialize repositories
	repos := services.Repositories{
		Conversations: postgres.NewConversationRepository(db.DB),
		Messages:      postgres.NewMessageRepository(db.DB),
		Memory:        postgres.NewMemoryRepository(db.DB),
		Audio:         postgres.NewAudioRepository(db.DB),
	}

	keyring, err := newKeyring(cfg.Auth, db, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize API keys")
	}

	svc := services.NewServices(cfg, repos, keyring, log)
	svc.Tokens.Warm()
	if err := svc.Audio.Start(); err != nil {
		log.WithError(err).Fatal("Failed to schedule audio purge")
	}

	jwtService := auth.NewJWTService(cfg.Auth.JWTSecret)
	if !jwtService.Enabled() {
		log.Warn("No JWT secret configured; admin routes are unauthenticated")
	}

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "VoxMind Backend",
		ErrorHandler: customErrorHandler,
		BodyLimit:    bodyLimit(cfg.Audio),
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.Server.CORSOrigins, ","),
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET, POST, PATCH, DELETE, OPTIONS",
		AllowCredentials: true,
	}))

	api.SetupRoutes(app, svc, jwtService, db)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		log.Info("Shutting down")
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			log.WithError(err).Error("Server shutdown failed")
		}
	}()

	log.WithField("addr", cfg.Server.Addr()).Info("VoxMind backend starting")
	if err := app.Listen(cfg.Server.Addr()); err != nil {
		log.WithError(err).Fatal("Failed to start server")
	}

	// Let in-flight summaries finish before the database closes.
	svc.Shutdown()
}

func newLogger(cfg config.LogConfig) *logrus.Logger {
	log := logrus.New()
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}

// newKeyring persists submitted keys only when an encryption key is configured.
func newKeyring(cfg config.AuthConfig, db *database.DB, log logrus.FieldLogger) (*keys.Keyring, error) {
	if cfg.EncryptionKey == "" {
		log.Warn("No encryption key configured; submitted API keys are kept in memory only")
		return keys.NewKeyring(cfg, nil, nil, log), nil
	}

	sealer, err := keys.NewSealer(cfg.EncryptionKey)
	if err != nil {
		return nil, err
	}
	keyring := keys.NewKeyring(cfg, sealer, postgres.NewProviderKeyRepository(db.DB), log)
	if err := keyring.Load(context.Background()); err != nil {
		return nil, err
	}
	return keyring, nil
}

// bodyLimit leaves room for multipart framing around the largest upload.
func bodyLimit(cfg config.AudioConfig) int {
	if cfg.MaxUploadBytes <= 0 {
		return fiber.DefaultBodyLimit
	}
	return cfg.MaxUploadBytes + 64*1024
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
		"code":  code,
	})
}
