package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/w802474/Labeltool-fakeDataGenerator-sub000/config"
	"github.com/w802474/Labeltool-fakeDataGenerator-sub000/handler"
	"github.com/w802474/Labeltool-fakeDataGenerator-sub000/middleware"
	"github.com/w802474/Labeltool-fakeDataGenerator-sub000/service"
	"github.com/w802474/Labeltool-fakeDataGenerator-sub000/utils"
	"github.com/w802474/Labeltool-fakeDataGenerator-sub000/vision"
	"go.uber.org/zap"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	BuildID   = "unknown"
	GitCommit = "unknown"
	GitBranch = "unknown"
)

const filesRoute = "/files"

func main() {
	// 加载配置
	cfg := config.New()
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	if err := utils.InitLogger(cfg.Server.Mode); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer utils.Sync()

	utils.Logger.Info("starting labeltool server",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
		zap.String("git_branch", GitBranch),
		zap.String("storage", cfg.Storage.Driver))

	// 确保上传目录存在
	if err := os.MkdirAll(cfg.Upload.UploadDir, 0755); err != nil {
		utils.Logger.Fatal("failed to create upload directory", zap.Error(err))
	}

	// 初始化会话存储
	store, err := service.NewStore(cfg)
	if err != nil {
		utils.Logger.Fatal("failed to initialize session store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.Ping(ctx); err != nil {
		utils.Logger.Warn("session store unreachable", zap.Error(err))
	} else {
		utils.Logger.Info("session store connected")
	}

	// 初始化图像处理
	files := vision.NewFileStore(cfg.Upload.UploadDir, cfg.Server.PublicURL+filesRoute)
	processor, err := vision.NewProcessor(files, &cfg.Processing)
	if err != nil {
		utils.Logger.Fatal("failed to initialize text processor", zap.Error(err))
	}
	detector := vision.NewTesseractDetector(files, &cfg.Detection)

	sessionService := service.NewSessionService(store, detector, processor, &cfg.Processing)
	sessionHandler := handler.NewSessionHandler(cfg, sessionService, files)

	// 设置Gin模式
	gin.SetMode(cfg.Server.Mode)

	// 创建路由
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger("/health"))
	r.Use(middleware.CORS())
	r.MaxMultipartMemory = cfg.Upload.MaxSize

	// 处理产物与上传图像
	r.Static(filesRoute, cfg.Upload.UploadDir)

	// 健康检查和版本信息
	r.GET("/health", func(c *gin.Context) {
		status := "ok"
		if err := store.Ping(c.Request.Context()); err != nil {
			status = "degraded"
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  status,
			"version": Version,
		})
	})

	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
			"build_id":   BuildID,
			"git_commit": GitCommit,
			"git_branch": GitBranch,
		})
	})

	// API路由
	sessionHandler.Register(r.Group("/api/v1"))

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		utils.Logger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			utils.Logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	utils.Logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.Logger.Error("server shutdown failed", zap.Error(err))
	}
}
