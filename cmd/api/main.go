package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/quill-go-api/internal/config"
	"github.com/noah-isme/quill-go-api/internal/database"
	"github.com/noah-isme/quill-go-api/internal/dto"
	"github.com/noah-isme/quill-go-api/internal/handler"
	"github.com/noah-isme/quill-go-api/internal/middleware"
	"github.com/noah-isme/quill-go-api/internal/models"
	"github.com/noah-isme/quill-go-api/internal/repository"
	"github.com/noah-isme/quill-go-api/internal/router"
	"github.com/noah-isme/quill-go-api/internal/service"
	"github.com/noah-isme/quill-go-api/pkg/ai"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.Task{},
		&models.Folder{},
		&models.Session{},
		&models.Student{},
		&models.Submission{},
		&models.Ledger{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	natsConn, err := database.ConnectNATS(cfg.NATSAddr)
	if err != nil {
		log.Fatalf("failed to connect to nats: %v", err)
	}
	if natsConn != nil {
		defer natsConn.Close()
	}

	generator, err := buildGenerator(cfg, logger)
	if err != nil {
		log.Fatalf("failed to create AI generator: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	taskCodeIndex := repository.NewTaskCodeIndex(redisClient, "quill:taskcode")
	taskRepo := repository.NewTaskRepository(db, taskCodeIndex)
	folderRepo := repository.NewFolderRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)

	runCtx, stopServices := context.WithCancel(context.Background())
	defer stopServices()

	realtimeService := service.NewRealtimeService(redisClient, "quill:realtime", natsConn, service.NewSessionOwnership(sessionRepo), logger)
	realtimeService.Start(runCtx)

	creditService := service.NewCreditService(ledgerRepo, cfg.MonthlyCreditLimit, logger)
	sessionService := service.NewSessionService(taskRepo, sessionRepo, studentRepo, creditService, generator, realtimeService, validate, logger)
	taskService := service.NewTaskService(taskRepo, folderRepo, sessionRepo, cfg.SessionRetention, validate, logger)

	studentSync := dto.SyncConfig{
		PollIntervalSeconds:    int(cfg.StudentPollInterval.Seconds()),
		MaxConsecutiveFailures: cfg.PollMaxFailures,
	}
	teacherSync := dto.SyncConfig{
		PollIntervalSeconds:    int(cfg.TeacherPollInterval.Seconds()),
		MaxConsecutiveFailures: cfg.PollMaxFailures,
	}

	sessionHandler := handler.NewSessionHandler(sessionService, studentSync, logger)
	teacherHandler := handler.NewTeacherHandler(sessionService, creditService, teacherSync, logger)
	taskHandler := handler.NewTaskHandler(taskService, logger)
	realtimeHandler := handler.NewRealtimeHandler(realtimeService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		SessionHandler:  sessionHandler,
		TeacherHandler:  teacherHandler,
		TaskHandler:     taskHandler,
		RealtimeHandler: realtimeHandler,
		JWTMiddleware:   middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func buildGenerator(cfg config.Config, logger zerolog.Logger) (ai.Generator, error) {
	switch cfg.AIProvider {
	case "anthropic":
		return ai.NewAnthropicGenerator(ai.AnthropicConfig{APIKey: cfg.AnthropicAPIKey})
	default:
		return ai.NewOpenAIGenerator(ai.OpenAIConfig{
			APIKey: cfg.OpenAIAPIKey,
			Logger: logger,
		})
	}
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
