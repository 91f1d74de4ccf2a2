package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"taptrack/internal/auth"
	"taptrack/internal/cards"
	"taptrack/internal/checkin"
	"taptrack/internal/config"
	"taptrack/internal/events"
	"taptrack/internal/handlers"
	"taptrack/internal/httpmiddleware"
	"taptrack/internal/notify"
	"taptrack/internal/registrations"
	"taptrack/internal/store"
	"taptrack/internal/students"
)

func main() {
	cfg := config.Load()

	// Set Gin mode based on environment
	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()

	notifier := notify.NewRedisNotifier(redisClient.Client, "taptrack:pending-cards")

	studentRepo := students.NewRepository(db.Client)
	eventRepo := events.NewRepository(db.Client)
	pendingRepo := cards.NewPendingRepository(db.Client)
	regRepo := registrations.NewRepository(db.Client)
	attRepo := checkin.NewAttendanceRepository(db.Client)

	studentSvc := students.NewService(studentRepo)
	eventSvc := events.NewService(eventRepo)
	cardReg := cards.NewRegistry(pendingRepo, studentRepo, notifier, cfg.PendingCardTTL)
	importer := registrations.NewImporter(regRepo, eventSvc)
	recorder := checkin.NewRecorder(eventSvc, studentRepo, regRepo, attRepo)

	h := handlers.New(cardReg, eventSvc, importer, recorder, studentSvc, cfg)

	if cfg.DeviceSecret == "" {
		log.Println("WARNING: DEVICE_SECRET not set, device endpoints will refuse all requests")
	}
	if cfg.AdminPassword == "" {
		log.Println("WARNING: ADMIN_PASSWORD not set, admin login disabled")
	}

	r := gin.New()

	// Recovery middleware
	r.Use(gin.Recovery())

	// Custom logger
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))

	// CORS middleware
	r.Use(corsMiddleware())

	// Security headers
	r.Use(securityHeaders())

	// Rate limiting
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db.Client.PingContext(c.Request.Context()) == nil
		status := http.StatusOK
		if !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	r.POST("/v1/admin/login", h.AdminLogin)

	device := r.Group("/v1/device", auth.DeviceAuth(cfg.DeviceSecret))
	{
		device.POST("/detect-card", h.DetectCard)
		device.POST("/detect-cards-batch", h.DetectCardsBatch)
		device.GET("/card-status/:uid", h.CardStatus)
		device.GET("/active-event", h.ActiveEvent)
		device.GET("/events/:id/registrations", h.EventRegistrations)
		device.POST("/check-in", h.CheckIn)
	}

	admin := r.Group("/v1/admin", auth.AdminAuth(cfg.JWTSigningKey, cfg.JWTIssuer))
	{
		admin.POST("/events", h.CreateEvent)
		admin.GET("/events", h.ListEvents)
		admin.GET("/events/:id", h.GetEvent)
		admin.PUT("/events/:id", h.UpdateEvent)
		admin.DELETE("/events/:id", h.DeleteEvent)
		admin.POST("/events/:id/activate", h.ActivateEvent)
		admin.POST("/events/:id/end", h.EndEvent)
		admin.POST("/events/:id/registrations/import", h.ImportRegistrations)

		admin.POST("/cards/activate", h.ActivateCard)
		admin.GET("/cards/pending", h.PendingCards)
		admin.POST("/cards/pending/sweep", h.SweepPendingCards)

		admin.POST("/students", h.CreateStudent)
		admin.GET("/students", h.ListStudents)
	}

	// Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, "+auth.DeviceKeyHeader)
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		// Only add HSTS in production
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
