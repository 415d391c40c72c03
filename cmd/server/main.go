package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ajbunielteam/SysGranTES/internal/config"
	"github.com/ajbunielteam/SysGranTES/internal/database"
	"github.com/ajbunielteam/SysGranTES/internal/handler"
	"github.com/ajbunielteam/SysGranTES/internal/kv"
	"github.com/ajbunielteam/SysGranTES/internal/logger"
	"github.com/ajbunielteam/SysGranTES/internal/messaging"
	"github.com/ajbunielteam/SysGranTES/internal/middleware"
	"github.com/ajbunielteam/SysGranTES/internal/model"
	"github.com/ajbunielteam/SysGranTES/internal/repository"
	"github.com/ajbunielteam/SysGranTES/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

func main() {
	defer logger.Sync()
	cfg := config.Load()
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Database
	db, err := database.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := database.RunMigrations(ctx, db); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	logger.Info("migrations applied")

	// Read maps and pending messages
	var state kv.Store = kv.NewMemory()
	readiness := map[string]handler.Pinger{"database": db}
	if cfg.RedisURL != "" {
		rdb, err := kv.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer rdb.Close()
		state = rdb
		readiness["redis"] = rdb
	} else {
		logger.Warn("REDIS_URL not set, read state is kept in memory")
	}

	// Cross-instance events
	nc, err := service.ConnectNATS(cfg.NATSURL)
	if err != nil {
		logger.Fatal("failed to connect to nats", zap.Error(err))
	}
	bus := service.NewEventBus(nc)
	defer bus.Close()

	// Repositories
	messageRepo := repository.NewMessageRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	applicationRepo := repository.NewApplicationRepository(db)
	announcementRepo := repository.NewAnnouncementRepository(db)
	sessionRepo := repository.NewSessionRepository(db)

	// Services
	msgs := messaging.NewService(messageRepo, studentRepo, state, service.NewMessageNotifier(bus), messaging.Options{
		AdminID:          cfg.AdminID,
		PollInterval:     cfg.BadgePollInterval,
		SendTimeout:      cfg.SendTimeout,
		PendingTolerance: cfg.PendingTolerance,
	})
	wsHub := service.NewWSHub()
	if err := service.DeliverMessages(bus, wsHub, msgs); err != nil {
		logger.Fatal("failed to subscribe to message events", zap.Error(err))
	}

	authSvc := service.NewAuthService(studentRepo, sessionRepo, service.AdminAccount{
		ID:       cfg.AdminID,
		Username: cfg.AdminUsername,
		Password: cfg.AdminPassword,
	}, cfg.JWTSecret)
	alerts := service.NewAdminAlerts(cfg.DiscordWebhookAdmin)
	credsSvc := service.NewCredentialsService(
		service.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword),
		service.LogSMS{},
		cfg.MailFrom,
	)
	applicationSvc := service.NewApplicationService(applicationRepo, studentRepo, credsSvc, alerts, cfg.UploadDir, cfg.MaxPhotoBytes)
	studentSvc := service.NewStudentService(studentRepo, state, msgs.Names())
	announcementSvc := service.NewAnnouncementService(announcementRepo, bus)
	if err := service.DeliverAnnouncements(bus, wsHub); err != nil {
		logger.Fatal("failed to subscribe to announcements", zap.Error(err))
	}

	// Fiber app
	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
		BodyLimit:    int(cfg.MaxPhotoBytes) + 1*1024*1024,
	})

	app.Use(recover.New())
	app.Use(middleware.Logger())
	app.Use(middleware.CORS(cfg.AllowedOrigins))

	// Health
	healthH := handler.NewHealthHandler(readiness)
	app.Get("/health", healthH.Health)
	app.Get("/ready", healthH.Ready)

	// API v1
	v1 := app.Group("/api/v1")

	// Auth (public)
	authH := handler.NewAuthHandler(authSvc)
	auth := v1.Group("/auth")
	auth.Post("/admin/login", middleware.RateLimit(10, time.Minute), authH.AdminLogin)
	auth.Post("/student/login", middleware.RateLimit(10, time.Minute), authH.StudentLogin)
	auth.Post("/refresh", middleware.RateLimit(20, time.Minute), authH.Refresh)
	auth.Post("/logout", authH.Logout)

	// Applications (public intake), registered BEFORE the protected group
	applicationH := handler.NewApplicationHandler(applicationSvc)
	v1.Post("/applications", middleware.RateLimit(5, time.Minute), applicationH.Submit)

	// JWT-protected routes
	protected := v1.Group("", middleware.Auth(authSvc))

	messageH := handler.NewMessageHandler(messageRepo, service.NewMessageNotifier(bus), msgs.Admin())
	protected.Get("/messages", messageH.List)
	protected.Post("/messages", messageH.Save)

	threadH := handler.NewThreadHandler(msgs)
	protected.Get("/threads/:studentId", threadH.Get)
	protected.Post("/threads/:studentId/messages", threadH.Send)
	protected.Post("/threads/:studentId/read", threadH.Read)
	protected.Get("/unread", threadH.Unread)

	announcementH := handler.NewAnnouncementHandler(announcementSvc)
	protected.Get("/announcements", announcementH.List)

	// Admin
	admin := protected.Group("", middleware.RequireAdmin())
	studentH := handler.NewStudentHandler(studentSvc)
	admin.Get("/students", studentH.List)
	admin.Delete("/students/:id", studentH.Delete)
	admin.Get("/applications", applicationH.List)
	admin.Delete("/applications/:id", applicationH.Delete)
	admin.Post("/applications/:id/approve", applicationH.Approve)
	admin.Post("/credentials/send", handler.NewCredentialsHandler(credsSvc).Send)
	admin.Post("/announcements", announcementH.Post)
	admin.Get("/admin/stats", handler.NewAdminHandler(studentSvc, applicationSvc, msgs, wsHub).Stats)

	// WebSocket
	wsH := handler.NewWSHandler(wsHub, msgs)
	app.Get("/ws", middleware.Auth(authSvc), wsH.Upgrade)

	// Start hub
	go wsHub.Run()
	go cleanupRefreshTokens(ctx, sessionRepo)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	logger.Info("GranTES backend running",
		zap.String("port", cfg.Port),
		zap.String("env", cfg.Env),
		zap.Stringer("admin", model.AsAdmin(cfg.AdminID)),
	)

	<-quit
	logger.Info("shutting down")
	stop()
	_ = app.ShutdownWithTimeout(5 * time.Second)
	wsHub.Shutdown()
	logger.Info("server stopped")
}

func cleanupRefreshTokens(ctx context.Context, sessions *repository.SessionRepository) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sessions.CleanupExpired(ctx)
			if err != nil {
				logger.Warn("refresh token cleanup failed", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Info("expired refresh tokens removed", zap.Int64("count", n))
			}
		}
	}
}
