package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/sponsor-portal-api/internal/backend"
	"github.com/noah-isme/sponsor-portal-api/internal/config"
	"github.com/noah-isme/sponsor-portal-api/internal/database"
	"github.com/noah-isme/sponsor-portal-api/internal/docstore"
	"github.com/noah-isme/sponsor-portal-api/internal/flatfile"
	"github.com/noah-isme/sponsor-portal-api/internal/handler"
	"github.com/noah-isme/sponsor-portal-api/internal/middleware"
	"github.com/noah-isme/sponsor-portal-api/internal/models"
	"github.com/noah-isme/sponsor-portal-api/internal/observability"
	"github.com/noah-isme/sponsor-portal-api/internal/repository"
	"github.com/noah-isme/sponsor-portal-api/internal/router"
	"github.com/noah-isme/sponsor-portal-api/internal/service"
	"github.com/noah-isme/sponsor-portal-api/pkg/ai"
	cloud "github.com/noah-isme/sponsor-portal-api/pkg/cloudinary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()

	observability.RegisterMetrics()

	adapter := docstore.New(logger)
	selector := backend.NewSelector(adapter, logger)
	selector.OnStateChange(observability.SetBackendState)

	initCtx, cancelInit := context.WithTimeout(context.Background(), cfg.MongoConnectTimeout+cfg.MongoSelectionTimeout)
	mode := selector.Initialize(initCtx, docstore.Config{
		URI:                    cfg.MongoURI,
		Database:               cfg.MongoDatabase,
		ConnectTimeout:         cfg.MongoConnectTimeout,
		ServerSelectionTimeout: cfg.MongoSelectionTimeout,
	})
	cancelInit()
	logger.Info().Str("backend", mode).Msg("record backend selected")

	files, err := repository.OpenFlatFiles(cfg.DataDir, logger)
	if err != nil {
		log.Fatalf("failed to prepare flat files: %v", err)
	}
	records := repository.NewStudentRecordRepository(adapter, selector, files, logger)

	directory, err := openDirectory(cfg, logger)
	if err != nil {
		log.Fatalf("failed to open student directory: %v", err)
	}
	directory = repository.NewDocumentStudentDirectory(adapter, selector, directory, logger)

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(context.Background(), cfg.RedisURL)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, directory cache disabled")
			redisClient = nil
		} else {
			directory = repository.NewCachedStudentDirectory(directory, redisClient, cfg.CacheTTL, logger)
		}
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			logger.Warn().Err(err).Msg("nats unavailable, record events are logged only")
			natsConn = nil
		}
	}
	events := service.NewRecordEvents(natsConn, cfg.NATSSubject, logger)

	var blobs service.BlobStore
	if cfg.BlobStoreConfigured() {
		uploader, err := cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
		if err != nil {
			log.Fatalf("failed to create cloudinary client: %v", err)
		}
		blobs = uploader
	} else {
		logger.Warn().Msg("cloudinary credentials missing, uploads and reports are disabled")
	}

	var writer ai.NarrativeWriter
	if cfg.OpenAIAPIKey != "" {
		openAI, err := ai.NewOpenAIWriter(ai.OpenAIConfig{
			APIKey: cfg.OpenAIAPIKey,
			Model:  cfg.OpenAIModel,
			Logger: logger,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("narrative writer disabled")
		} else {
			writer = openAI
		}
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	profileService := service.NewStudentProfileService(directory, records, selector, logger)
	termService := service.NewTermService(directory, records, events, selector, validate, logger)
	biographyService := service.NewBiographyService(directory, records, events, selector, validate, logger)
	reportService := service.NewReportService(directory, records, blobs, writer, events, selector, logger)
	uploadService := service.NewUploadService(blobs, directory, records, events, selector, cfg.UploadMaxSizeMB, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    (cfg.UploadMaxSizeMB + 1) * 1024 * 1024,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AccessLog: cfg.AppEnv == "development"})
	backendState := func() string {
		// Demotes a store that failed since the last call.
		selector.UseDocumentStore()
		return selector.State()
	}
	router.Register(app, cfg, router.Dependencies{
		Backend:        selector,
		BackendState:   backendState,
		StudentHandler: handler.NewStudentHandler(profileService, termService, biographyService, validate, logger),
		ReportHandler:  handler.NewReportHandler(reportService, logger),
		UploadHandler:  handler.NewUploadHandler(uploadService, logger),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, func(ctx context.Context) {
		if err := adapter.Close(ctx); err != nil {
			logger.Warn().Err(err).Msg("failed to close document store")
		}
		if redisClient != nil {
			_ = redisClient.Close()
		}
		if natsConn != nil {
			_ = natsConn.Drain()
		}
	})
}

func openDirectory(cfg config.Config, logger zerolog.Logger) (repository.StudentDirectory, error) {
	if cfg.DirectoryDatabaseURL != "" {
		db, err := database.ConnectPostgres(cfg.DirectoryDatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := db.AutoMigrate(&models.Student{}); err != nil {
			return nil, err
		}
		return repository.NewSQLStudentDirectory(db), nil
	}

	table := flatfile.NewTable("students", filepath.Join(cfg.DataDir, cfg.DirectoryFile), models.StudentColumns, logger)
	if err := table.EnsureInitialized(); err != nil {
		return nil, err
	}
	return repository.NewCSVStudentDirectory(table), nil
}

func waitForShutdown(app *fiber.App, cleanup func(context.Context)) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
	cleanup(ctx)

	log.Println("server stopped")
}
