// Package main runs the invitations API: events, guest list imports, RSVP and the live dashboard feed.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/convites-app/backend/config"
	"github.com/convites-app/backend/internal/auth"
	"github.com/convites-app/backend/internal/convites"
	"github.com/convites-app/backend/internal/events"
	"github.com/convites-app/backend/internal/importer"
	"github.com/convites-app/backend/internal/importlogs"
	"github.com/convites-app/backend/internal/middleware"
	"github.com/convites-app/backend/internal/models"
	"github.com/convites-app/backend/internal/realtime"
	"github.com/convites-app/backend/internal/worker"
	"github.com/convites-app/backend/pkg/database"
	"github.com/convites-app/backend/pkg/queue"
	"github.com/convites-app/backend/pkg/redis"
	"github.com/convites-app/backend/pkg/response"
	"github.com/convites-app/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), cfg.Database.MaxConns, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.ImportsBucket != "" {
		s3Client, err = storage.NewS3(ctx, storage.S3Config{
			Region:          cfg.AWS.Region,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			ImportsBucket:   cfg.AWS.ImportsBucket,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled, uploads will not be archived", zap.Error(err))
			s3Client = nil
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Events
	eventRepo := events.NewRepository(pool)
	eventHandler := events.NewHandler(eventRepo, logger)
	requireOwner := events.RequireEventOwner(eventRepo)

	// Convites
	conviteRepo := convites.NewRepository(pool)
	conviteHandler := convites.NewHandler(conviteRepo, eventRepo, hub, jobQueue, logger)

	// Guest list import
	importLogRepo := importlogs.NewRepository(pool)
	pipeline := importer.NewPipeline(conviteRepo, importLogRepo, logger)
	var files importlogs.FileLinker
	if s3Client != nil {
		pipeline.SetArchiver(s3Client)
		files = s3Client
	}
	importHandler := importer.NewHandler(pipeline, cfg.Server.MaxUploadBytes, logger)
	importHandler.SetNotifier(hub)
	importLogHandler := importlogs.NewHandler(importLogRepo, files, logger)

	// Invitation delivery
	processor := worker.NewInviteProcessor(conviteRepo, eventRepo,
		worker.NewLogSender(cfg.Invite.SenderName, logger), hub, jobQueue, cfg.Invite.PublicBaseURL, logger)

	jwtValidate := func(token string) (realtime.Identity, error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return realtime.Identity{}, err
		}
		return realtime.Identity{UserID: claims.UserID, Role: claims.Role}, nil
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health and metrics
	router.GET("/health", func(c *gin.Context) {
		if err := pool.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, response.Body{Success: false, Error: "database unavailable"})
			return
		}
		if err := rdb.Healthy(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, response.Body{Success: false, Error: "redis unavailable"})
			return
		}
		response.OK(c, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	// Public invitation pages (the convite id is the guest's secret link)
	public := router.Group("/public")
	{
		public.GET("/events/:slug", eventHandler.GetPublic)
		public.GET("/convites/:convite_id", conviteHandler.GetPublic)
		public.POST("/convites/:convite_id/resposta", conviteHandler.Respond)
	}

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService), middleware.RequireRole(models.RoleOrganizer, models.RoleAdmin))
	{
		api.GET("/events", eventHandler.List)
		api.POST("/events", eventHandler.Create)

		owned := api.Group("/events/:id", requireOwner)
		owned.GET("", eventHandler.GetByID)
		owned.PATCH("", eventHandler.Update)

		// Guest list import
		owned.POST("/import", importHandler.Import)
		owned.POST("/import/preview", importHandler.Preview)
		owned.POST("/import/rows", importHandler.ImportRows)
		owned.GET("/imports", importLogHandler.ListByEvent)
		owned.GET("/imports/:import_id/file", importLogHandler.FileURL)

		// Convites
		owned.GET("/convites", conviteHandler.List)
		owned.POST("/convites", conviteHandler.Add)
		owned.GET("/convites/stats", conviteHandler.Stats)
		owned.POST("/convites/send", conviteHandler.SendAll)
		owned.POST("/convites/:convite_id/send", conviteHandler.Resend)
	}

	// WebSocket (token in query; browsers cannot set headers on upgrade)
	router.GET("/ws", realtime.ServeWs(hub, eventRepo, jwtValidate, splitOrigins(cfg.Server.CORSAllowedOrigins), logger))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	workerDone := make(chan struct{})
	if cfg.Worker.Embedded {
		go func() {
			defer close(workerDone)
			processor.Run(workerCtx, cfg.Worker.Concurrency)
		}()
		logger.Info("invite worker started", zap.Int("concurrency", cfg.Worker.Concurrency))
	} else {
		close(workerDone)
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	workerCancel()
	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		logger.Warn("invite worker did not stop in time")
	}
	logger.Info("server stopped")
}

func splitOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
