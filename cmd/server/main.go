// Package main runs the remote-support backend HTTP server with WebSocket and graceful shutdown.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	webrtc "github.com/pion/webrtc/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/lumen-support/backend/config"
	"github.com/lumen-support/backend/internal/archives"
	"github.com/lumen-support/backend/internal/artifacts"
	"github.com/lumen-support/backend/internal/audit"
	"github.com/lumen-support/backend/internal/auth"
	"github.com/lumen-support/backend/internal/middleware"
	"github.com/lumen-support/backend/internal/realtime"
	"github.com/lumen-support/backend/internal/relay"
	"github.com/lumen-support/backend/internal/tickets"
	"github.com/lumen-support/backend/internal/worker"
	"github.com/lumen-support/backend/pkg/database"
	"github.com/lumen-support/backend/pkg/queue"
	"github.com/lumen-support/backend/pkg/redis"
	"github.com/lumen-support/backend/pkg/response"
	"github.com/lumen-support/backend/pkg/storage"
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
			ArtifactsBucket:      cfg.AWS.ArtifactsBucket,
			TranscriptsBucket:    cfg.AWS.TranscriptsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)

	iceServers := make([]webrtc.ICEServer, 0, len(cfg.WebRTC.ICEUrls))
	for _, u := range cfg.WebRTC.ICEUrls {
		if u != "" {
			iceServers = append(iceServers, webrtc.ICEServer{URLs: []string{u}})
		}
	}

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Signaling relay
	controller := relay.NewController(relay.Config{
		TTL:           cfg.Relay.TTL(),
		CodeLength:    cfg.Relay.CodeLength,
		SecretBytes:   cfg.Relay.SecretBytes,
		SweepInterval: cfg.Relay.SweepInterval(),
	}, logger)
	relayHandler := relay.NewHandler(controller, logger)

	// Audit trail
	auditRepo := audit.NewRepository(pool)
	auditHandler := audit.NewHandler(auditRepo)
	controller.SetEventHandler(func(code, event string) {
		if err := auditRepo.Record(context.Background(), code, event); err != nil {
			logger.Warn("audit record failed", zap.String("code", code), zap.String("event", event), zap.Error(err))
		}
		switch event {
		case relay.EventEnded, relay.EventExpired, relay.EventControlEnabled, relay.EventControlDisabled:
			hub.NotifySessionUpdate(code, event)
		}
	})

	// Poll nudges over WebSocket
	controller.SetNotifyHandler(hub.NotifySignal)

	// Archives (queued; the worker uploads transcripts and writes the row)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	archiveRepo := archives.NewRepository(pool)
	archiveHandler := archives.NewHandler(archiveRepo, s3Client)
	archiveProcessor := worker.NewArchiveProcessor(archiveRepo, s3Client, jobQueue, logger)
	controller.SetArchiveHandler(func(arch relay.Archive) {
		transcript, err := json.Marshal(arch.Signals)
		if err != nil {
			logger.Error("marshal transcript", zap.String("code", arch.Code), zap.Error(err))
			return
		}
		payload := queue.SessionArchivePayload{
			SessionCode: arch.Code,
			FinalStatus: string(arch.Status),
			SignalCount: len(arch.Signals),
			StartedAt:   arch.CreatedAt,
			EndedAt:     arch.EndedAt,
			Transcript:  transcript,
		}
		if err := jobQueue.EnqueueSessionArchive(context.Background(), payload); err != nil {
			logger.Error("enqueue archive", zap.String("code", arch.Code), zap.Error(err))
		}
	})

	// Tickets
	ticketRepo := tickets.NewRepository(pool)
	ticketHandler := tickets.NewHandler(ticketRepo, logger)

	// Diagnostic artifacts
	artifactRepo := artifacts.NewRepository(pool)
	artifactHandler := artifacts.NewHandler(artifactRepo, controller, s3Client, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Public: session lifecycle and signal exchange (secret-authenticated)
	router.POST("/sessions", relayHandler.CreateSession)
	router.POST("/sessions/:code/signals", relayHandler.SubmitSignal)
	router.GET("/sessions/:code/signals", relayHandler.PollSignals)
	router.POST("/sessions/:code/control", relayHandler.SetRemoteControl)
	router.POST("/sessions/:code/end", relayHandler.EndSession)
	if s3Client != nil {
		router.POST("/sessions/:code/artifacts", artifactHandler.Upload)
	}

	// Public: ICE servers for both peers
	router.GET("/webrtc/config", relay.ICEConfigHandler(iceServers))

	// Public: customers file tickets without an account
	router.POST("/tickets", ticketHandler.Create)

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	// Protected API (technician JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		// Users (admin only)
		api.GET("/users", middleware.RequireRole("admin"), authHandler.List)

		// Joining a session hands out the viewer secret exactly once
		api.POST("/sessions/:code/join", relayHandler.JoinSession)

		// Tickets
		api.GET("/tickets", ticketHandler.List)
		api.GET("/tickets/:id", ticketHandler.GetByID)
		api.POST("/tickets/:id/claim", ticketHandler.Claim)
		api.PATCH("/tickets/:id/session", ticketHandler.AttachSession)
		api.POST("/tickets/:id/resolve", ticketHandler.Resolve)

		// Session history
		api.GET("/sessions/:code/audit", auditHandler.ListBySession)
		api.GET("/sessions/:code/archives", archiveHandler.ListBySession)
		api.GET("/archives/:id/transcript", archiveHandler.Transcript)
		if s3Client != nil {
			api.GET("/sessions/:code/artifacts", artifactHandler.ListBySession)
			api.GET("/artifacts/:id/download", artifactHandler.Download)
		}
	}

	// WebSocket poll nudges (session credentials in query; no JWT)
	router.GET("/ws", realtime.ServeWs(hub, logger, controller.Authorize))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Background loops: expiry sweeper and archive worker
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	go controller.Run(workerCtx)
	go archiveProcessor.Run(workerCtx)

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
