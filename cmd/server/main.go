package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	redisClient "github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "tinylink/docs"
	"tinylink/internal/config"
	"tinylink/internal/handler"
	"tinylink/internal/middleware"
	"tinylink/internal/shortcode"
	"tinylink/internal/store"
	"tinylink/pkg/database"
	"tinylink/pkg/logger"
	"tinylink/pkg/redis"
)

const defaultConfigPath = "configs/config.yaml"

// @title TinyLink API
// @version 1.0
// @description 短链接服务：创建、跳转、点击统计
// @BasePath /
func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = defaultConfigPath
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "配置加载失败:", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Options{
		Level:      cfg.Log.Level,
		Path:       cfg.Log.Path,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
		Console:    !cfg.IsProduction(),
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "日志初始化失败:", err)
		os.Exit(1)
	}
	defer func() {
		_ = log.Sync()
	}()
	sugaredLogger := log.Sugar()

	db, err := database.Open(cfg.Database, log)
	if err != nil {
		sugaredLogger.Fatalf("数据库初始化失败: %v", err)
	}
	sugaredLogger.Infof("✅ 数据库连接成功 (%s)", cfg.Database.Driver)

	linkStore := store.New(db,
		shortcode.NewGenerator(cfg.ShortCode.Length),
		store.WithMaxAttempts(cfg.ShortCode.MaxAttempts),
	)
	migrateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = linkStore.Migrate(migrateCtx)
	cancel()
	if err != nil {
		sugaredLogger.Fatalf("数据库迁移失败: %v", err)
	}
	sugaredLogger.Info("✅ 数据库迁移成功")

	var rdb *redisClient.Client
	if cfg.Cache.Host != "" {
		rdb, err = redis.NewClient(&redis.Options{
			Host: cfg.Cache.Host, Port: cfg.Cache.Port, Password: cfg.Cache.Password, DB: cfg.Cache.DB,
		})
		if err != nil {
			// 限流退回进程内实现
			sugaredLogger.Warnf("缓存连接失败: %v", err)
		} else {
			sugaredLogger.Info("✅ 缓存连接成功")
		}
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.GinZapRecovery(log, true))
	router.Use(middleware.GinZapLogger(log))
	router.Use(middleware.Cors(cfg.Server.CORSOrigins))
	router.Use(middleware.RateLimit(rdb, &cfg.RateLimit, log))
	router.Use(middleware.ErrorHandler(log))

	if cfg.App.Swagger {
		router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}
	handler.RegisterRoutes(router, handler.NewLinkHandler(linkStore, cfg.App.Version, log))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		sugaredLogger.Infof("🚀 服务启动成功, 访问 http://localhost:%d", cfg.Server.Port)
		if cfg.App.Swagger {
			sugaredLogger.Infof("📚 Swagger 文档地址: http://localhost:%d/swagger/index.html", cfg.Server.Port)
		}
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugaredLogger.Fatalf("服务启动失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	sugaredLogger.Infof("🛑 收到信号 %s, 正在关闭服务...", sig)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		sugaredLogger.Errorf("服务关闭超时: %v", err)
	}

	if rdb != nil {
		if err := rdb.Close(); err != nil {
			sugaredLogger.Errorf("关闭 Redis 连接失败: %v", err)
		}
	}
	if err := database.Close(db); err != nil {
		sugaredLogger.Errorf("关闭数据库连接失败: %v", err)
	}
	sugaredLogger.Info("服务已退出")
}
