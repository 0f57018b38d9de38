package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"webresearch/internal/config"
	"webresearch/internal/crypto"
	"webresearch/internal/database"
	"webresearch/internal/handlers"
	"webresearch/internal/jobs"
	"webresearch/internal/llm"
	"webresearch/internal/logging"
	"webresearch/internal/scraper"
	"webresearch/internal/search"
	"webresearch/internal/services"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Initialize structured logging (JSON in production, text in dev)
	logging.Init()

	log.Println("🚀 Starting Web Research Assistant...")

	// Load .env file (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found or error loading it: %v", err)
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	cfg := config.Load()
	log.Printf("📋 Configuration loaded (Port: %s)", cfg.Port)

	// MongoDB
	log.Println("🔗 Connecting to MongoDB...")
	mongoDB, err := database.NewMongoDB(cfg.MongoURI)
	if err != nil {
		log.Fatalf("❌ Failed to connect to MongoDB: %v", err)
	}
	defer mongoDB.Close(context.Background())

	if err := mongoDB.Initialize(context.Background()); err != nil {
		log.Fatalf("❌ Failed to initialize MongoDB indexes: %v", err)
	}
	log.Println("✅ MongoDB connected successfully")

	// Context encryption at rest
	var encryptionService *crypto.EncryptionService
	if cfg.EncryptionMasterKey != "" {
		encryptionService, err = crypto.NewEncryptionService(cfg.EncryptionMasterKey)
		if err != nil {
			log.Fatalf("❌ Failed to initialize encryption: %v", err)
		}
		log.Println("✅ Context encryption enabled")
	} else {
		if os.Getenv("ENVIRONMENT") == "production" {
			log.Fatal("❌ ENCRYPTION_MASTER_KEY is required in production. Generate with: openssl rand -hex 32")
		}
		log.Println("⚠️ ENCRYPTION_MASTER_KEY not set - context encryption disabled (development mode only)")
	}

	// Redis (optional, shared search cache)
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		log.Println("🔗 Connecting to Redis...")
		redisService, err := services.NewRedisService(cfg.RedisURL)
		if err != nil {
			log.Printf("⚠️ Failed to connect to Redis: %v (falling back to in-memory cache)", err)
		} else {
			defer redisService.Close()
			redisClient = redisService.Client()
		}
	}

	// Services
	chatService := services.NewChatService(mongoDB, encryptionService)

	searchClient := search.NewClient(cfg.SearXNGURL, cfg.SearchTimeout, redisClient)

	scraperClient := scraper.NewClient(scraper.Options{
		MaxChars:          cfg.MaxSourceChars,
		Timeout:           cfg.ScrapeTimeout,
		AllowPrivateHosts: cfg.AllowPrivateHosts,
	})

	llmClient := llm.NewClient(llm.Options{
		BaseURL:     cfg.LLMBaseURL,
		APIKey:      cfg.LLMAPIKey,
		Model:       cfg.LLMModel,
		Temperature: cfg.LLMTemperature,
		Timeout:     cfg.LLMTimeout,
		MinContext:  cfg.MinContextChars,
	})

	// Insufficiency phrases with hot reload
	phrases, err := config.LoadPhrases(cfg.PhrasesFile)
	if err != nil {
		log.Fatalf("❌ Failed to load phrases file %s: %v", cfg.PhrasesFile, err)
	}
	matcher := services.NewPhraseMatcher(phrases)
	config.WatchPhrases(cfg.PhrasesFile, matcher.SetPhrases)
	log.Printf("✅ Loaded %d insufficiency phrases", len(phrases))

	queryService := services.NewQueryService(chatService, searchClient, scraperClient, llmClient, matcher, services.QueryOptions{
		SearchBreadth:   cfg.SearchBreadth,
		MinContextChars: cfg.MinContextChars,
	})

	// Retention cleanup
	scheduler := jobs.NewScheduler()
	if cfg.ChatRetentionDays > 0 {
		job := jobs.NewRetentionCleanupJob(chatService, cfg.ChatRetentionDays)
		if err := scheduler.Register("retention-cleanup", cfg.RetentionSchedule, job); err != nil {
			log.Fatalf("❌ Invalid retention schedule %q: %v", cfg.RetentionSchedule, err)
		}
		scheduler.Start()
		defer scheduler.Stop()
	} else {
		log.Println("⚠️ CHAT_RETENTION_DAYS not set - retention cleanup disabled")
	}

	// HTTP server
	app := fiber.New(fiber.Config{
		AppName:      "Web Research Assistant",
		ErrorHandler: errorHandler,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New())
	app.Use(limiter.New(limiter.Config{
		Max:        60,
		Expiration: 1 * time.Minute,
	}))

	prometheus := fiberprometheus.New("webresearch")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)

	queryHandler := handlers.NewQueryHandler(queryService)
	chatHandler := handlers.NewChatHandler(chatService)
	healthHandler := handlers.NewHealthHandler(mongoDB)

	app.Get("/health", healthHandler.Handle)

	api := app.Group("/api")
	api.Post("/query", queryHandler.Handle)
	api.Post("/chats", chatHandler.Create)
	api.Get("/chats", chatHandler.List)
	api.Get("/chats/:id", chatHandler.Get)
	api.Post("/chats/:id/messages", chatHandler.AddMessage)

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("🛑 Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("⚠️ Server shutdown error: %v", err)
		}
	}()

	log.Printf("🌐 Server listening on port %s", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Server error: %v", err)
	}

	log.Println("✅ Server stopped")
}

func errorHandler(c *fiber.Ctx, err error) error {
	if e, ok := err.(*fiber.Error); ok {
		return c.Status(e.Code).JSON(fiber.Map{"error": e.Message})
	}

	log.Printf("❌ [HTTP] %s %s failed: %v", c.Method(), c.Path(), err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Internal server error",
	})
}
