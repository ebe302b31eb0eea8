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
	"go.uber.org/zap"

	"coachdesk/internal/auth"
	"coachdesk/internal/config"
	cronrunner "coachdesk/internal/cron"
	"coachdesk/internal/db"
	"coachdesk/internal/handler"
	"coachdesk/internal/identity"
	"coachdesk/internal/logger"
	gormrepository "coachdesk/internal/repository/gorm"
	"coachdesk/internal/service"
	"coachdesk/internal/stream"
)

func main() {
	cfgPath := os.Getenv("CD_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("CD_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	store := gormrepository.New(dbConn.Gorm)
	anonymizer := identity.New(cfg.Anonymizer.Secret)
	hub := stream.NewHub(logger)

	pointsService := &service.PointsService{
		Repo:          store,
		Logger:        logger,
		StartingGrant: cfg.Points.StartingGrant,
	}
	topicService := &service.TopicService{
		Repo:                 store,
		Logger:               logger,
		DefaultMissionReward: cfg.Points.MissionReward,
	}
	voteService := &service.VoteService{
		Repo:          store,
		Anonymizer:    anonymizer,
		Logger:        logger,
		StartingGrant: cfg.Points.StartingGrant,
	}
	settlementService := &service.SettlementService{
		Repo:          store,
		Events:        hub,
		Logger:        logger,
		StartingGrant: cfg.Points.StartingGrant,
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())
	engine.Use(auth.RequireBearer(cfg.Auth))

	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm}
	healthHandler.Register(engine)
	tokenHandler := &handler.TokenHandler{Cfg: cfg.Auth}
	tokenHandler.Register(engine)
	topicHandler := &handler.TopicHandler{
		Topics: topicService,
		Settle: settlementService,
		Logger: logger,
	}
	topicHandler.Register(engine)
	voteHandler := &handler.VoteHandler{Votes: voteService, Logger: logger}
	voteHandler.Register(engine)
	pointsHandler := &handler.PointsHandler{Points: pointsService}
	pointsHandler.Register(engine)
	streamHandler := &handler.StreamHandler{Hub: hub, Logger: logger}
	streamHandler.Register(engine)

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Cron.Enabled {
		cronRunner := cronrunner.New(logger, ctx)
		_, err := cronRunner.Add("auto-close", cfg.Cron.AutoClose, func(ctx context.Context) {
			if _, err := topicService.CloseExpired(ctx); err != nil {
				logger.Warn("auto-close pass failed", zap.Error(err))
			}
		})
		if err != nil {
			logger.Warn("cron register auto-close failed", zap.Error(err))
		}
		cronRunner.Start()
		defer cronRunner.Stop()
	}

	errCh := make(chan error, 2)

	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
