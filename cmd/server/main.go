package main

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/campuslink/comms-backend/internal/bus"
	"github.com/campuslink/comms-backend/internal/cache"
	"github.com/campuslink/comms-backend/internal/directory"
	"github.com/campuslink/comms-backend/internal/handlers"
	"github.com/campuslink/comms-backend/internal/middleware"
	"github.com/campuslink/comms-backend/internal/repository"
	"github.com/campuslink/comms-backend/internal/service"
	"github.com/campuslink/comms-backend/internal/storage"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/websocket/v2"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	directoryURL := os.Getenv("DIRECTORY_BASE_URL")
	if directoryURL == "" {
		log.Fatal("DIRECTORY_BASE_URL is required")
	}

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		AppName: "CampusLink Comms Backend",
		// Support mail attachments up to 10MB + overhead.
		BodyLimit: 12 * 1024 * 1024, // 12MB
	})

	// Middleware
	app.Use(requestid.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     os.Getenv("ALLOWED_ORIGINS"),
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-CL-CSRF",
		AllowMethods:     "GET, POST, PUT, DELETE, OPTIONS",
		AllowCredentials: true,
	}))

	// Initialize database connection
	db, err := repository.InitDB()
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Initialize Redis cache
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	redisPassword := os.Getenv("REDIS_PASSWORD")
	redisDB := 0
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		if parsedDB, err := strconv.Atoi(dbStr); err == nil {
			redisDB = parsedDB
		}
	}

	redisCache := cache.NewRedisCache(redisAddr, redisPassword, redisDB)
	if err := redisCache.Ping(); err != nil {
		log.Printf("WARNING: Redis connection failed: %v. Running without cache.", err)
		redisCache = nil
	} else {
		log.Println("Redis cache connected successfully")
	}

	presenceCache := cache.NewPresenceCache(redisCache)
	chatCache := cache.NewChatCache(redisCache)

	// Initialize repositories
	presenceRepo := repository.NewPresenceRepository(db)
	chatRepo := repository.NewChatMessageRepository(db)
	mailRepo := repository.NewMailMessageRepository(db)

	// Change notification fan-out
	notifyBus := bus.New()

	// User directory client (external identity service)
	dir := directory.NewHTTPDirectory(directoryURL, os.Getenv("DIRECTORY_TOKEN"))

	// Initialize S3/MinIO attachment store (best-effort; attachment
	// endpoints return 502 if missing)
	var blobStore storage.BlobStore
	if cfg, err := storage.LoadS3ConfigFromEnv(); err != nil {
		log.Printf("WARNING: attachment store not configured: %v", err)
	} else if st, err := storage.NewS3Storage(cfg); err != nil {
		log.Printf("WARNING: failed to initialize attachment store: %v", err)
	} else {
		blobStore = st
		log.Printf("Attachment store initialized successfully (bucket=%s)", cfg.Bucket)
	}

	// Initialize services
	presenceService := service.NewPresenceService(presenceRepo, presenceCache, notifyBus)
	chatService := service.NewChatService(chatRepo, presenceService, dir, notifyBus, chatCache)
	mailService := service.NewMailService(mailRepo, blobStore)

	// Initialize handlers
	wsHandler := handlers.NewWebSocketHandler(presenceService, notifyBus)
	presenceHandler := handlers.NewPresenceHandler(presenceService)
	chatHandler := handlers.NewChatHandler(chatService)
	mailHandler := handlers.NewMailHandler(mailService)

	// Protected routes
	api := app.Group("/api", middleware.OriginAllowed())
	protected := api.Group("/", middleware.AuthRequired(), middleware.CSRFRequired())

	// Presence
	protected.Post("/presence/heartbeat", limiter.New(limiter.Config{
		Max:          10,
		Expiration:   time.Minute,
		KeyGenerator: middleware.PerUserRateKey,
	}), presenceHandler.Heartbeat)
	protected.Post("/presence/offline", presenceHandler.MarkOffline)
	protected.Get("/presence", presenceHandler.List)

	// Direct chat
	protected.Get("/chat/contacts", chatHandler.GetContacts)
	protected.Get("/chat/messages", chatHandler.GetMessages)
	protected.Post("/chat/messages", chatHandler.SendMessage)
	protected.Post("/chat/conversations/:peer_id/read", chatHandler.MarkConversationRead)

	// Mailbox
	protected.Get("/mail/inbox", mailHandler.Inbox)
	protected.Get("/mail/sent", mailHandler.Sent)
	protected.Post("/mail", mailHandler.Compose)
	protected.Get("/mail/:id", mailHandler.Get)
	protected.Post("/mail/:id/star", mailHandler.ToggleStar)
	protected.Delete("/mail/:id", mailHandler.Delete)
	protected.Get("/mail/:id/attachment", mailHandler.GetAttachment)
	protected.Post("/mail/purge", mailHandler.PurgeDeleted)

	// WebSocket route (websocket upgrade needs special handling)
	app.Use(
		"/ws",
		middleware.OriginAllowed(),
		middleware.AuthRequired(),
		func(c *fiber.Ctx) error {
			// Upgrade to WebSocket
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		},
	)
	app.Get("/ws", websocket.New(wsHandler.HandleWebSocket))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":      "ok",
			"message":     "CampusLink comms backend is running",
			"subscribers": notifyBus.SubscriberCount(),
			"sockets":     wsHandler.GetHub().Count(),
		})
	})

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s...", port)
	if err := app.Listen(":" + port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
