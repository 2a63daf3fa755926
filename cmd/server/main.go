package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"acey/internal/blobstore"
	"acey/internal/config"
	"acey/internal/database"
	"acey/internal/handlers"
	"acey/internal/jobs"
	"acey/internal/logging"
	"acey/internal/services"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/fsnotify/fsnotify"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Initialize structured logging (JSON in production, text in dev)
	logging.Init()

	log.Println("🚀 Starting Acey Orchestrator...")

	// Load .env file (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found or error loading it: %v", err)
	}

	cfg := config.Load()
	log.Printf("📋 Configuration loaded (Port: %s, Env: %s)", cfg.Port, cfg.Environment)

	// MongoDB is optional: without it, learning records stay in memory and
	// entitlement lookups degrade to safe defaults
	var mongoDB *database.MongoDB
	if cfg.MongoURI != "" {
		var err error
		mongoDB, err = database.NewMongoDB(cfg.MongoURI)
		if err != nil {
			log.Printf("⚠️ Failed to connect to MongoDB: %v (running in-memory)", err)
			mongoDB = nil
		} else {
			defer mongoDB.Close(context.Background())

			initCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := mongoDB.Initialize(initCtx); err != nil {
				log.Printf("⚠️ Failed to initialize MongoDB indexes: %v", err)
			}
			cancel()
		}
	}

	// Redis is optional: it only accelerates entitlement lookups
	var redisService *services.RedisService
	if cfg.RedisURL != "" {
		var err error
		redisService, err = services.NewRedisService(cfg.RedisURL)
		if err != nil {
			log.Printf("⚠️ Failed to connect to Redis: %v (caching disabled)", err)
			redisService = nil
		} else {
			defer redisService.Close()
		}
	}

	// Pipeline stages
	classifier := services.NewIntentClassifier()
	registry := services.NewSkillRegistry()
	entitlements := services.NewEntitlementService(mongoDB, redisService, cfg.EnterpriseOverrideUserIDs)
	access := services.NewAccessController(entitlements)
	dispatcher := services.NewDispatcher(
		&services.LocalCodeAssistant{},
		&services.LocalImageGenerator{},
		&services.LocalAudioGenerator{},
		services.NewHTTPLinkAnalyzer(cfg.LinkAnalysisRPS, cfg.LinkAnalysisBurst),
	)
	blobs := blobstore.New(cfg.BlobTTL)
	previews := services.NewPreviewGenerator(blobs)
	composer := services.NewResponseComposer()
	learning := services.NewLearningService(mongoDB)
	usage := services.NewUsageTrackingService(mongoDB)
	metrics := services.InitMetrics()

	orchestrator := services.NewOrchestratorService(
		classifier, registry, access, dispatcher, previews, composer, learning, usage, metrics,
	)

	// Extra skill manifests from file, hot-reloaded on change
	if cfg.SkillsFile != "" {
		loadSkillsFile(registry, cfg.SkillsFile)
		go watchSkillsFile(registry, cfg.SkillsFile)
	}

	// Background maintenance
	runner, err := jobs.New(blobs, learning, cfg.BlobSweepEvery, cfg.LearningFlushEvery)
	if err != nil {
		log.Fatalf("❌ Failed to create job runner: %v", err)
	}
	runner.Start()
	defer runner.Shutdown()

	// HTTP surface
	app := fiber.New(fiber.Config{
		AppName:      "Acey Orchestrator",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	app.Use(recover.New())
	app.Use(cors.New())
	app.Use(logger.New())
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: time.Minute,
	}))

	prometheusMiddleware := fiberprometheus.New("acey")
	prometheusMiddleware.RegisterAt(app, "/metrics")
	app.Use(prometheusMiddleware.Middleware)

	messageHandler := handlers.NewMessageHandler(orchestrator, composer)
	skillHandler := handlers.NewSkillHandler(registry, classifier, entitlements)
	learningHandler := handlers.NewLearningHandler(learning)
	previewHandler := handlers.NewPreviewHandler(blobs)
	wsHandler := handlers.NewChatWebSocketHandler(orchestrator, metrics)

	app.Get("/health", handlers.Health)

	api := app.Group("/api")
	api.Post("/message", messageHandler.ProcessMessage)

	api.Get("/skills", skillHandler.ListSkills)
	api.Get("/skills/:id", skillHandler.GetSkill)
	api.Post("/skills", skillHandler.RegisterSkill)
	api.Post("/skills/:id/trial", skillHandler.GrantTrial)
	api.Post("/intents/patterns", skillHandler.RegisterIntentPattern)

	api.Get("/learning/stats", learningHandler.Stats)
	api.Get("/learning/patterns", learningHandler.PatternMetrics)
	api.Get("/learning/patterns/effective", learningHandler.EffectivePatterns)
	api.Get("/learning/search", learningHandler.Search)
	api.Post("/learning/:id/feedback", learningHandler.AttachFeedback)
	api.Get("/learning/export", learningHandler.Export)
	api.Delete("/learning", learningHandler.Clear)

	api.Get("/previews/:handle", previewHandler.GetBlob)
	api.Delete("/previews/:handle", previewHandler.ReleaseBlob)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/chat", websocket.New(wsHandler.Handle))

	// Graceful shutdown
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		log.Println("🛑 Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("⚠️ Server shutdown error: %v", err)
		}
	}()

	log.Printf("🌐 Listening on :%s", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Server error: %v", err)
	}
}

// loadSkillsFile registers the manifests from the configured skills file
func loadSkillsFile(registry *services.SkillRegistry, path string) {
	loaded, err := registry.LoadManifestFile(path)
	if err != nil {
		log.Printf("⚠️ Failed to load skills file %s: %v", path, err)
		return
	}
	log.Printf("✅ Loaded %d skill manifests from %s", loaded, path)
}

// watchSkillsFile re-registers manifests whenever the skills file changes
func watchSkillsFile(registry *services.SkillRegistry, path string) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("⚠️ Failed to create skills file watcher: %v", err)
		return
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		log.Printf("⚠️ Failed to watch skills file %s: %v", path, err)
		return
	}

	// Editors often replace rather than write in place; debounce and re-add
	var lastReload time.Time
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if time.Since(lastReload) < time.Second {
				continue
			}
			lastReload = time.Now()

			log.Printf("🔄 Skills file changed, reloading...")
			loadSkillsFile(registry, path)
			_ = watcher.Add(path)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("⚠️ Skills file watcher error: %v", err)
		}
	}
}
