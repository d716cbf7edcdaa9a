package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/damoang/angple-moderation/internal/analyzer"
	"github.com/damoang/angple-moderation/internal/config"
	"github.com/damoang/angple-moderation/internal/events"
	"github.com/damoang/angple-moderation/internal/handler"
	"github.com/damoang/angple-moderation/internal/middleware"
	"github.com/damoang/angple-moderation/internal/migration"
	"github.com/damoang/angple-moderation/internal/repository"
	"github.com/damoang/angple-moderation/internal/routes"
	"github.com/damoang/angple-moderation/internal/scheduler"
	"github.com/damoang/angple-moderation/internal/service"
	pkgcache "github.com/damoang/angple-moderation/pkg/cache"
	pkglogger "github.com/damoang/angple-moderation/pkg/logger"
	pkgredis "github.com/damoang/angple-moderation/pkg/redis"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	dotenvFiles := config.LoadDotEnv(".")

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "local"
	}
	pkglogger.InitStructured(env)
	log := pkglogger.GetLogger()
	log.Info().Str("env", env).Strs("env_files", dotenvFiles).Msg("starting angple-moderation")

	// 설정 로드
	configPath := config.ConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", configPath).Msg("failed to load config")
	}
	pkglogger.SetLevel(cfg.Server.LogLevel)
	config.LogResolved(cfg, log)
	gin.SetMode(cfg.Server.Mode)

	// MySQL 연결 (필수)
	db, err := initDB(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := migration.Run(db); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Redis 연결 (선택)
	var redisClient *goredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(ctx, pkgredis.Options{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err != nil {
			log.Warn().Err(err).Msg("continuing without Redis")
			redisClient = nil
		} else {
			log.Info().Msg("connected to Redis")
		}
	}

	// Events
	bus := events.NewBus(log.With().Str("component", "events").Logger())
	events.NewRedisPublisher(redisClient, *log).Attach(bus, events.TopicFlagRejected)

	// Repositories
	flagStore := repository.NewFlagRepository(db)
	snapshots := repository.NewContentSnapshotRepository(db)
	failures := repository.NewAnalysisFailureRepository(db)
	points := repository.NewPointRepository(db)

	// Analyzer
	analyzerClient := analyzer.NewClient(analyzer.Config{
		ProxyURL:                   cfg.Analyzer.URL,
		ProxyKey:                   cfg.Analyzer.APIKey,
		Model:                      cfg.Analyzer.Model,
		Timeout:                    cfg.Analyzer.Timeout,
		MaxRetries:                 cfg.Analyzer.MaxRetries,
		BreakerMaxRequests:         cfg.Analyzer.Breaker.MaxRequests,
		BreakerInterval:            cfg.Analyzer.Breaker.Interval,
		BreakerTimeout:             cfg.Analyzer.Breaker.Timeout,
		BreakerConsecutiveFailures: cfg.Analyzer.Breaker.ConsecutiveFailures,
	}, log.With().Str("component", "analyzer").Logger())
	if !analyzerClient.Enabled() {
		log.Warn().Msg("analyzer not configured: content will be auto-approved and queued for re-analysis")
	}

	// Services
	svcLog := log.With().Str("component", "moderation").Logger()
	effects := service.NewOutcomeEffects(bus, points, cfg.Moderation.PointsPerRejection, svcLog)
	lifecycle := service.NewFlagLifecycle(flagStore, effects, svcLog)
	appeals := service.NewAppealProcessor(flagStore, lifecycle, cfg.Moderation.MaxAppealsPerFlag, svcLog)
	moderation := service.NewModerationService(
		analyzerClient,
		service.NewAutoModerationPolicy(cfg.Moderation.AutoRejectThreshold),
		lifecycle,
		service.ModerationServiceOptions{
			Snapshots:       snapshots,
			Failures:        failures,
			AnalyzerTimeout: cfg.Analyzer.Timeout,
			ReanalysisBatch: cfg.Moderation.ReanalysisBatch,
		},
		svcLog,
	)
	cacheService := pkgcache.NewService(redisClient)
	advisor := service.NewAIAssistAdvisor(flagStore, snapshots, analyzerClient, cacheService,
		cfg.Moderation.RecommendationTTL, cfg.Analyzer.Timeout, svcLog)

	// Scheduler: 재분석 대기열
	sched := scheduler.New(cfg.Moderation.SchedulerTick, log.With().Str("component", "scheduler").Logger())
	sched.Register("reanalyze-pending", cfg.Moderation.ReanalysisInterval, func(ctx context.Context) error {
		_, err := moderation.ReanalyzePending(ctx)
		return err
	})
	sched.Register("db-stats", time.Minute, func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		middleware.SetDBConnectionsOpen(sqlDB.Stats().OpenConnections)
		return nil
	})
	sched.Start(ctx)

	// Gin 라우터
	if err := handler.RegisterValidators(); err != nil {
		log.Fatal().Err(err).Msg("failed to register validators")
	}
	allowOrigins := splitAndTrim(cfg.CORS.AllowOrigins, ",")
	if len(allowOrigins) == 0 {
		allowOrigins = []string{"http://localhost:3000"}
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowOrigins,
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", middleware.ActorHeader, "X-Request-ID"},
		AllowCredentials: true,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Remaining", "Retry-After"},
		MaxAge:           12 * time.Hour,
	}))
	router.Use(middleware.Metrics())
	router.Use(middleware.RequestLogger())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/health", func(c *gin.Context) {
		status := http.StatusOK
		dbStatus := "ok"
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			status = http.StatusServiceUnavailable
			dbStatus = "unavailable"
		}
		c.JSON(status, gin.H{
			"status":   dbStatus,
			"service":  "angple-moderation",
			"cache":    cacheService.IsAvailable(),
			"analyzer": analyzerClient.Enabled(),
			"time":     time.Now().Unix(),
		})
	})

	writeLimit := middleware.RateLimitPerActor(redisClient, middleware.RateLimitConfig{
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		Burst:             cfg.RateLimit.Burst,
		KeyPrefix:         middleware.DefaultRateLimitConfig().KeyPrefix,
		Message:           middleware.DefaultRateLimitConfig().Message,
	})
	routes.Setup(router,
		handler.NewModerationHandler(moderation, lifecycle, advisor),
		handler.NewAppealHandler(appeals),
		writeLimit,
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	sched.Stop()
	bus.Wait()
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("stopped")
}

// initDB MySQL 연결 초기화
func initDB(cfg *config.Config) (*gorm.DB, error) {
	mysqlCfg, err := mysqldriver.ParseDSN(cfg.Database.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("DSN 파싱 실패: %w", err)
	}
	if mysqlCfg.Params == nil {
		mysqlCfg.Params = map[string]string{}
	}
	mysqlCfg.Params["time_zone"] = "'+09:00'"

	logLevel := gormlogger.Warn
	if cfg.IsDevelopment() {
		logLevel = gormlogger.Info
	}
	db, err := gorm.Open(mysql.Open(mysqlCfg.FormatDSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetime) * time.Second)

	return db, nil
}

// splitAndTrim splits a string by separator and trims whitespace
func splitAndTrim(s, sep string) []string {
	var result []string
	for _, part := range strings.Split(s, sep) {
		if p := strings.TrimSpace(part); p != "" {
			result = append(result, p)
		}
	}
	return result
}
