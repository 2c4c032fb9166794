package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"bot-access-system/handlers"
	"bot-access-system/middleware"
	"bot-access-system/models"
	"bot-access-system/services"
	"bot-access-system/utils"
	"bot-access-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 20 * 1024 * 1024, // 20MB, proof screenshots only
	})

	// 🔐❗ GLOBAL: Only bot-service requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	// Every /s/ route acts on behalf of one Telegram user
	app.Use("/s", middleware.UserContextMiddleware())

	// Load allowed origins from environment variable
	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-Telegram-ID, X-Telegram-Username, X-Telegram-First-Name",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	r2Enabled, err := utils.InitR2()
	if err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Account{},
		&models.Referral{},
		&models.VerificationRequest{},
		&models.Payment{},
		&models.ConsumedAction{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	clock := utils.NewClock(utils.EnvStr("UTC", "QUOTA_TIMEZONE"))

	cfg := services.Config{
		FreeDailyLimit:           utils.EnvInt(1, "FREE_DAILY_LIMIT"),
		VIPDailyLimit:            utils.EnvInt(30, "VIP_DAILY_LIMIT"),
		VIPPlanDays:              utils.EnvInt(30, "VIP_PLAN_DAYS", "VIP_DAYS"),
		ReferralBonusCredits:     utils.EnvInt(1, "REFERRAL_BONUS_CREDITS"),
		ReferralMilestoneEvery:   utils.EnvInt(5, "REFERRAL_MILESTONE_EVERY"),
		ReferralMilestoneVIPDays: utils.EnvInt(3, "REFERRAL_MILESTONE_VIP_DAYS"),
		StrictChannelCheck:       utils.EnvBool(true, "STRICT_CHANNEL_CHECK"),
		AutoApproveSecondary:     utils.EnvBool(false, "AUTO_APPROVE_SECONDARY"),
		VerificationTTL:          time.Duration(utils.EnvInt(72, "VERIFICATION_TTL_HOURS")) * time.Hour,
	}

	botToken := os.Getenv("TELEGRAM_BOT_TOKEN")
	channel := utils.EnvStr("", "REQUIRED_CHANNEL", "PRIMARY_CHANNEL")
	if botToken == "" || channel == "" {
		log.Fatal("TELEGRAM_BOT_TOKEN and REQUIRED_CHANNEL environment variables not set")
	}
	membership := services.NewTelegramMembershipClient(botToken, channel)

	accountService := services.NewAccountService(db, clock)
	subscriptionService := services.NewSubscriptionService(db, clock)
	quotaService := services.NewQuotaService(db, clock, cfg, subscriptionService)
	referralService := services.NewReferralService(db, clock, cfg, subscriptionService)
	gateService := services.NewGateService(db, clock, cfg, referralService, membership)

	expiryWorker := workers.NewVIPExpiryWorker(db, clock, workers.LogNotifier{})
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go workers.PollVIPExpiries(ctx, expiryWorker, 1*time.Minute)

	gateService.StartMaintenanceScheduler()

	adminID := int64(utils.EnvInt(0, "ADMIN_USER_ID"))

	// ✅ Setup routes — enforced gateway auth + consistent /s/ prefix
	handlers.SetupAccessRoutes(app, accountService, gateService, quotaService, subscriptionService)
	handlers.SetupEventRoutes(app, accountService, gateService, referralService, subscriptionService, cfg, adminID)

	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("OK")
	})
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	listenAddr := utils.EnvStr(":5300", "LISTEN_ADDR")
	go func() {
		if err := app.Listen(listenAddr); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on %s", listenAddr)
	log.Printf("✅ VIP expiry polling running (every 1m)")
	log.Printf("✅ GatewayAuthMiddleware enforced globally — all requests must come from the bot service")
	log.Printf("✅ Proof uploads to R2: %t", r2Enabled)
	log.Printf("✅ Strict channel check: %t, auto-approve secondary: %t", cfg.StrictChannelCheck, cfg.AutoApproveSecondary)
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
}
