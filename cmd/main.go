package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/mockmate/mockmate-backend/internal/clients/gcp"
	"github.com/mockmate/mockmate-backend/internal/clients/gemini"
	redisclient "github.com/mockmate/mockmate-backend/internal/clients/redis"
	"github.com/mockmate/mockmate-backend/internal/db"
	"github.com/mockmate/mockmate-backend/internal/handlers"
	"github.com/mockmate/mockmate-backend/internal/logger"
	"github.com/mockmate/mockmate-backend/internal/repos"
	"github.com/mockmate/mockmate-backend/internal/server"
	"github.com/mockmate/mockmate-backend/internal/services"
	"github.com/mockmate/mockmate-backend/internal/utils"
)

func main() {
	_ = godotenv.Load()

	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Env
	log.Info("Loading environment variables from main...")
	maxQuestions := utils.GetEnvAsInt("MAX_QUESTIONS", services.DefaultMaxQuestions, log)
	turnStateTTL := utils.GetEnvAsInt("TURN_STATE_TTL_SECONDS", 3600, log)
	corsOrigins := utils.GetEnv("CORS_ALLOW_ORIGINS", "", log)

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Error("Postgres auto migration failed", "error", err)
		os.Exit(1)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up Repos from main...")
	sessionRepo := repos.NewSessionRepo(thePG, log)
	questionRepo := repos.NewQuestionRepo(thePG, log)
	responseRepo := repos.NewResponseRepo(thePG, log)
	feedbackRepo := repos.NewFeedbackRepo(thePG, log)
	overallRepo := repos.NewOverallFeedbackRepo(thePG, log)

	// Clients
	log.Info("Setting up clients from main...")
	ctx := context.Background()

	aiClient, err := gemini.NewClient(ctx, log)
	if err != nil {
		log.Error("Could not init Gemini client", "error", err)
		os.Exit(1)
	}
	defer aiClient.Close()

	var turnStore redisclient.TurnStore
	if ts, err := redisclient.NewTurnStore(log); err != nil {
		log.Warn("Turn store unavailable, running without cache", "error", err)
	} else {
		turnStore = ts
		defer ts.Close()
	}

	var bucket gcp.Bucket
	if b, err := gcp.NewBucket(ctx, log); err != nil {
		log.Warn("Bucket unavailable, audio uploads will be skipped", "error", err)
	} else {
		bucket = b
	}

	var transcriber gcp.Transcriber
	if t, err := gcp.NewTranscriber(ctx, log); err != nil {
		log.Warn("Transcriber unavailable, audio responses will be rejected", "error", err)
	} else {
		transcriber = t
	}

	// Services
	log.Info("Setting up Services from main...")
	turnCtxService := services.NewTurnContextService(log, turnStore, sessionRepo, time.Duration(turnStateTTL)*time.Second)
	continuationService := services.NewContinuationService(log, aiClient, questionRepo, responseRepo, feedbackRepo, maxQuestions)
	lifecycleService := services.NewLifecycleService(log, aiClient, sessionRepo, questionRepo, continuationService, turnCtxService)
	finalizeService := services.NewFinalizeService(thePG, log, aiClient, sessionRepo, overallRepo, turnCtxService)
	intakeService := services.NewIntakeService(log, aiClient, transcriber, bucket, responseRepo, feedbackRepo, lifecycleService, turnCtxService, finalizeService)
	interviewService := services.NewInterviewService(log, sessionRepo, questionRepo, responseRepo, overallRepo, lifecycleService, intakeService, turnCtxService, finalizeService)

	// Handlers
	log.Info("Setting up handlers from main...")
	sessionHandler := handlers.NewSessionHandler(log, interviewService)

	// Router
	log.Info("Setting up router from main...")
	var origins []string
	if corsOrigins != "" {
		origins = strings.Split(corsOrigins, ",")
	}
	router := server.NewRouter(server.RouterConfig{
		SessionHandler: sessionHandler,
		AllowOrigins:   origins,
	})

	port := utils.GetEnv("PORT", "8080", log)
	fmt.Printf("Server listening on :%s\n", port)
	if err := router.Run(":" + port); err != nil {
		log.Warn("Server failed", "error", err)
	}
}
