package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"mememind-backend/internal/config"
	"mememind-backend/internal/handler"
	"mememind-backend/internal/service"
	"mememind-backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "./configs/config.yaml", "配置文件路径")
	flag.Parse()

	// 加载配置
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	// 初始化存储和服务
	store := service.NewStorage(cfg.Storage)
	defer func() {
		if err := store.Close(); err != nil {
			logger.Errorf("存储关闭失败: %v", err)
		}
	}()
	profileService := service.NewProfileService(store)

	memeService := service.New(cfg)
	defer memeService.Close()

	// 模板目录加载失败时列表为空，不影响生成
	loadCtx, cancelLoad := context.WithTimeout(context.Background(), cfg.Catalog.Timeout)
	if err := memeService.LoadCatalog(loadCtx); err != nil {
		logger.Warnf("模板目录加载失败: %v", err)
	}
	cancelLoad()

	// 初始化处理器和路由
	gin.SetMode(gin.ReleaseMode)
	router := handler.NewRouter(cfg,
		handler.NewMemeHandler(memeService, profileService),
		handler.NewAuthHandler(profileService),
	)

	server := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Infof("服务器启动在端口 %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("服务器启动失败: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return memeService.RunCleanup(gctx)
	})

	// 等待信号优雅关闭
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("服务器正在关闭...")
		// 先关闭会话，结束 SSE 长连接
		memeService.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Errorf("服务器异常退出: %v", err)
	}
	logger.Info("服务器已关闭")
}
