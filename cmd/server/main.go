// Package main runs the event-engagement HTTP server with WebSocket change
// notifications and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pulse-engage/backend/config"
	"github.com/pulse-engage/backend/internal/activity"
	"github.com/pulse-engage/backend/internal/auth"
	"github.com/pulse-engage/backend/internal/kvstore"
	"github.com/pulse-engage/backend/internal/media"
	"github.com/pulse-engage/backend/internal/middleware"
	"github.com/pulse-engage/backend/internal/models"
	"github.com/pulse-engage/backend/internal/polls"
	"github.com/pulse-engage/backend/internal/quizzes"
	"github.com/pulse-engage/backend/internal/realtime"
	"github.com/pulse-engage/backend/internal/worker"
	"github.com/pulse-engage/backend/pkg/database"
	"github.com/pulse-engage/backend/pkg/queue"
	"github.com/pulse-engage/backend/pkg/redis"
	"github.com/pulse-engage/backend/pkg/response"
	"github.com/pulse-engage/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			MediaBucket:          cfg.AWS.MediaBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	store := kvstore.NewPostgres(pool, logger)
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, store, jwtService, logger)
	if err := auth.EnsureAdmin(ctx, authRepo, cfg.Engagement.AdminEmail, cfg.Engagement.AdminPassword, cfg.Engagement.AdminName, logger); err != nil {
		logger.Fatal("seed admin", zap.Error(err))
	}

	// Polls
	pollRepo := polls.NewRepository(store)
	pollHandler := polls.NewHandler(pollRepo, hub, jobQueue, logger)

	// Quizzes
	quizRepo := quizzes.NewRepository(store)
	quizHandler := quizzes.NewHandler(quizRepo, hub, jobQueue, logger)

	// Activity feed
	activityRepo := activity.NewRepository(store)
	activityHandler := activity.NewHandler(activityRepo, cfg.Engagement.ActivityFeedLimit, logger)
	activityProcessor := worker.NewActivityProcessor(activityRepo, jobQueue, hub, logger)

	// Media
	mediaHandler := media.NewHandler(s3Client, logger)

	// Abandoned quiz progress cleanup
	reaper := worker.NewProgressReaper(store,
		time.Duration(cfg.Engagement.ProgressTTLHours)*time.Hour,
		time.Duration(cfg.Engagement.ReapIntervalMinutes)*time.Minute,
		logger)

	jwtValidate := func(token string) (userID, role string, err error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return "", "", err
		}
		return claims.UserID.String(), claims.Role, nil
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	router.POST("/signup", authHandler.Signup)
	router.POST("/login", authHandler.Login)

	// Public reads: audiences browse polls/quizzes/feed before logging in.
	router.GET("/polls", pollHandler.List)
	router.GET("/polls/:id", pollHandler.Get)
	router.GET("/polls/:id/results", pollHandler.Results)
	router.GET("/quizzes", quizHandler.List)
	router.GET("/quizzes/:id", quizHandler.Get)
	router.GET("/activity", activityHandler.List)

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		// Participation
		api.POST("/polls/:id/vote", pollHandler.Vote)
		api.GET("/polls/:id/vote", pollHandler.MyVote)
		api.PUT("/quizzes/:id/progress", quizHandler.SaveProgress)
		api.GET("/quizzes/:id/progress", quizHandler.GetProgress)
		api.POST("/quizzes/:id/submit", quizHandler.Submit)
		api.GET("/quizzes/:id/submission", quizHandler.MySubmission)

		// Authoring and monitoring (admin only)
		admin := api.Group("")
		admin.Use(middleware.RequireRole(string(models.RoleAdmin)))
		{
			admin.GET("/users", authHandler.List)
			admin.DELETE("/users/:id", authHandler.Delete)
			admin.POST("/polls", pollHandler.Create)
			admin.PUT("/polls/:id", pollHandler.Update)
			admin.PATCH("/polls/:id/status", pollHandler.SetStatus)
			admin.DELETE("/polls/:id", pollHandler.Delete)
			admin.POST("/quizzes", quizHandler.Create)
			admin.PUT("/quizzes/:id", quizHandler.Update)
			admin.PATCH("/quizzes/:id/status", quizHandler.SetStatus)
			admin.DELETE("/quizzes/:id", quizHandler.Delete)
			admin.GET("/quizzes/:id/full", quizHandler.GetFull)
			admin.GET("/quizzes/:id/submissions", quizHandler.Submissions)
			admin.POST("/media/upload-url", mediaHandler.UploadURL)
		}
	}

	// WebSocket change feed (token in query; no Authorization header required)
	router.GET("/ws", realtime.ServeWs(hub, logger, jwtValidate))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	go activityProcessor.Run(workerCtx)
	go reaper.Run(workerCtx)

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
