package main

import (
	"alcyxob/meal-planner/internal/api"
	"alcyxob/meal-planner/internal/config"
	"alcyxob/meal-planner/internal/generation"
	"alcyxob/meal-planner/internal/grocery"
	"alcyxob/meal-planner/internal/llm"
	"alcyxob/meal-planner/internal/repository/mongo"
	"alcyxob/meal-planner/internal/service"
	"alcyxob/meal-planner/internal/storage"
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
)

// @title Meal Planner API
// @version 1.0
// @description Generates weekly meal plans, prep schedules and grocery lists.
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	log.Println("Starting Meal Planner Server...")

	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("FATAL: Could not load config: %v", err)
	}
	log.Printf("Configuration loaded. LLM provider: %s", cfg.LLM.Provider)

	// --- Database Connection ---
	dbClient, err := mongo.ConnectDB(context.Background(), cfg.Database.URI)
	if err != nil {
		log.Fatalf("FATAL: Could not connect to MongoDB: %v", err)
	}
	defer func() {
		log.Println("Disconnecting MongoDB...")
		if err := mongo.DisconnectDB(dbClient); err != nil {
			log.Printf("ERROR: Failed to disconnect MongoDB: %v", err)
		}
	}()
	appDB := dbClient.Database(cfg.Database.Name)
	log.Println("Database connection established.")

	// --- Ensure Indexes ---
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
		defer cancel()
		mongo.EnsureIndexes(ctx, appDB)
		log.Println("Index creation process completed.")
	}()

	// --- Initialize Storage ---
	transcriptStorage, err := storage.NewS3Storage(context.Background(), cfg.S3)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize S3 storage: %v", err)
	}

	// --- Initialize Model Client ---
	generator, err := llm.NewGenerator(context.Background(), cfg.LLM)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize %s client: %v", cfg.LLM.Provider, err)
	}
	if closer, ok := generator.(llm.Closer); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				log.Printf("ERROR: Failed to close model client: %v", err)
			}
		}()
	}

	// --- Initialize Repositories ---
	jobRepo := mongo.NewMongoJobRepository(appDB)
	planRepo := mongo.NewMongoMealPlanRepository(appDB)
	profileRepo := mongo.NewMongoProfileRepository(appDB)

	// --- Initialize Services ---
	orchestrator := generation.NewOrchestrator(generator, generation.Options{
		SchemaRetries:  cfg.Generation.SchemaRetries,
		RepairRetries:  cfg.Generation.RepairRetries,
		MacroTolerance: cfg.Generation.MacroTolerance,
		ChildWeight:    cfg.Household.ChildWeight,
	})
	runner := service.NewJobRunner(cfg.Generation.JobTimeout)
	jobService := service.NewJobService(jobRepo, planRepo, profileRepo, orchestrator, runner, transcriptStorage, service.JobSettings{
		StaleAfter:         cfg.Generation.StaleAfter,
		RegenerateDebounce: cfg.Generation.RegenerateDebounce,
		TranscriptPrefix:   cfg.S3.TranscriptPrefix,
		TranscriptURLTTL:   cfg.S3.TranscriptURLTTL,
	})
	planService := service.NewPlanService(planRepo)
	groceryService := service.NewGroceryService(planRepo, grocery.NewAggregator(cfg.Grocery.MajorityThreshold))

	// --- Initialize Gin Engine ---
	router := gin.Default() // Includes Logger and Recovery middleware
	api.SetupRoutes(router, cfg.JWT.Secret, jobService, planService, groceryService)

	// --- Start HTTP Server ---
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("Server starting on %s", cfg.Server.Address)

	// --- Graceful Shutdown ---
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("FATAL: ListenAndServe Error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Printf("ERROR: Server forced to shutdown: %v", err)
	}

	// Jobs that outlive the deadline are cancelled and record a failure.
	log.Println("Waiting for running generation jobs...")
	if err := runner.Shutdown(ctxShutdown); err != nil {
		log.Printf("WARN: Generation jobs did not finish in time: %v", err)
	}

	log.Println("Server exiting.")
}
