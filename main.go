package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"skill-arena/handlers"
	"skill-arena/middleware"
	"skill-arena/models"
	"skill-arena/pkg/momo"
	"skill-arena/realtime"
	"skill-arena/services"
	"skill-arena/utils"
	"skill-arena/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 16 * 1024 * 1024, // covers cover-photo uploads
	})

	// Liveness probe first: it must answer without gateway credentials.
	handlers.SetupHealthRoutes(app)

	// Only gateway requests allowed past this point.
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	origins := strings.Split(allowedOriginsEnv, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(origins, ","),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-User-ID, X-User-Roles",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Game{},
		&models.Competition{},
		&models.Participant{},
		&models.CompetitionInvite{},
		&models.Wallet{},
		&models.LedgerEntry{},
		&models.Deposit{},
		&models.PlayerProfile{},
		&models.Friendship{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	if err := utils.InitR2(); err != nil {
		log.Printf("⚠️  R2 not configured, cover uploads disabled: %v", err)
	}

	// Live standings cache, optional.
	var live *services.LeaderboardService
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		live, err = services.NewLeaderboardService(redisAddr, os.Getenv("REDIS_PASSWORD"), envInt("REDIS_DB", 0))
		if err != nil {
			log.Printf("⚠️  Redis unavailable, running without live standings: %v", err)
			live = nil
		} else {
			defer live.Close()
		}
	}

	// Realtime hub plus its websocket listener.
	hub := realtime.NewHub()
	go hub.Run()

	serviceToken := os.Getenv("ARENA_SERVICE_TOKEN")
	wsAddr := os.Getenv("WS_ADDR")
	if wsAddr == "" {
		wsAddr = ":5301"
	}
	wsServer := realtime.NewServer(hub, wsAddr, serviceToken)
	go func() {
		if err := wsServer.ListenAndServe(); err != nil {
			log.Printf("Websocket server error: %v", err)
		}
	}()

	// Mobile-money gateway. Mock mode keeps dev environments self-contained.
	gateway := momo.NewClient(
		os.Getenv("MOMO_BASE_URL"),
		os.Getenv("MOMO_API_KEY"),
		os.Getenv("MOMO_API_SECRET"),
		strings.ToLower(os.Getenv("MOMO_MOCK")) == "true" || os.Getenv("MOMO_BASE_URL") == "",
	)

	walletService := services.NewWalletService(db, gateway)
	feeBps := envInt("PLATFORM_FEE_BPS", services.DefaultPlatformFeeBps)
	lifecycleService := services.NewLifecycleService(db, feeBps, live, hub)
	competitionService := services.NewCompetitionService(db)
	gameService := services.NewGameService(db)
	friendService := services.NewFriendService(db, hub)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go workers.PollDeposits(ctx, db, gateway, walletService, 15*time.Second)

	expiryHours := envInt("COMPETITION_EXPIRY_HOURS", 24)
	lifecycleService.StartExpiryScheduler(time.Duration(expiryHours) * time.Hour)

	handlers.SetupGameRoutes(app, gameService)
	handlers.SetupCompetitionRoutes(app, competitionService, lifecycleService)
	handlers.SetupWalletRoutes(app, walletService)
	handlers.SetupSocialRoutes(app, friendService)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Printf("✅ Websocket server running on %s", wsAddr)
	log.Println("✅ Deposit polling running (every 15s)")
	log.Printf("✅ Competition expiry job running (stale after %dh)", expiryHours)
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from gateway")

	<-ctx.Done()
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := wsServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Websocket shutdown error: %v", err)
	}
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
}
