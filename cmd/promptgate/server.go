package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/BaSui01/promptgate/api/handlers"
	"github.com/BaSui01/promptgate/config"
	"github.com/BaSui01/promptgate/internal/metrics"
	"github.com/BaSui01/promptgate/internal/render"
	"github.com/BaSui01/promptgate/internal/server"
	"github.com/BaSui01/promptgate/llm"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 是 PromptGate 的主服务器
type Server struct {
	cfg    *config.Config
	loader *config.Loader
	logger *zap.Logger
	level  zap.AtomicLevel

	generator llm.Generator

	// Handlers
	healthHandler   *handlers.HealthHandler
	generateHandler *handlers.GenerateHandler

	// 指标收集器
	metricsCollector *metrics.Collector

	// 配置热重载
	reloader *config.Reloader
}

// NewServer 创建新的服务器实例
func NewServer(cfg *config.Config, loader *config.Loader, generator llm.Generator, logger *zap.Logger, level zap.AtomicLevel) *Server {
	return &Server{
		cfg:       cfg,
		loader:    loader,
		logger:    logger,
		level:     level,
		generator: generator,
	}
}

// =============================================================================
// 🔧 初始化方法
// =============================================================================

// initHandlers 初始化指标收集器与所有 handlers
func (s *Server) initHandlers() error {
	s.metricsCollector = metrics.NewCollector("promptgate", s.logger)

	renderer, err := render.New()
	if err != nil {
		return fmt.Errorf("failed to init renderer: %w", err)
	}

	generator := s.metricsCollector.InstrumentGenerator(s.generator)

	s.generateHandler = handlers.NewGenerateHandler(generator, renderer, handlers.GenerateOptions{
		DefaultLevel: s.cfg.LLM.ModerationLevel(),
		Generation: llm.GenerationConfig{
			MaxOutputTokens: int32(s.cfg.LLM.Generation.MaxOutputTokens),
			Temperature:     float32(s.cfg.LLM.Generation.Temperature),
			TopP:            float32(s.cfg.LLM.Generation.TopP),
		},
		MaxPromptBytes: s.cfg.Server.MaxPromptBytes,
	}, s.logger)

	s.healthHandler = handlers.NewHealthHandler(
		handlers.NewServiceInfo(s.generator, Version, BuildTime, GitCommit), s.logger)
	s.healthHandler.RegisterCheck(handlers.NewGeneratorHealthCheck(s.generator))
	s.healthHandler.RegisterCheck(handlers.NewFuncHealthCheck("config", func(context.Context) error {
		return s.currentConfig().Validate()
	}))

	s.logger.Info("Handlers initialized",
		zap.String("provider", s.generator.Name()),
		zap.String("default_moderation_level", string(s.generateHandler.DefaultLevel())))
	return nil
}

// initReloader 配置文件存在时启用热重载
func (s *Server) initReloader() {
	if s.loader == nil || s.loader.ConfigPath() == "" {
		return
	}

	s.reloader = config.NewReloader(s.loader, s.cfg, s.logger)
	s.reloader.OnReload(s.applyConfig)
}

// currentConfig 返回热重载后的最新配置
func (s *Server) currentConfig() *config.Config {
	if s.reloader != nil {
		return s.reloader.Current()
	}
	return s.cfg
}

// applyConfig 应用可热更新的配置项
func (s *Server) applyConfig(_, newCfg *config.Config) {
	s.level.SetLevel(parseLogLevel(newCfg.Log.Level))
	s.generateHandler.SetDefaultLevel(newCfg.LLM.ModerationLevel())
}

// =============================================================================
// 🌐 HTTP 路由
// =============================================================================

// Handler 构建带中间件链的业务 handler，ctx 控制限流器清理 goroutine 的生命周期
func (s *Server) Handler(ctx context.Context) (http.Handler, error) {
	if s.generateHandler == nil {
		if err := s.initHandlers(); err != nil {
			return nil, err
		}
	}

	mux := http.NewServeMux()

	// 生成接口
	mux.HandleFunc("/{$}", s.generateHandler.HandleGenerate)
	mux.HandleFunc("/api/v1/generate", s.generateHandler.HandleGenerate)
	if s.cfg.Server.EnableUI {
		mux.HandleFunc("/ui", s.generateHandler.HandleUI)
	}

	// 健康检查端点
	mux.HandleFunc("/health", s.healthHandler.HandleHealth)
	mux.HandleFunc("/healthz", s.healthHandler.HandleHealthz)
	mux.HandleFunc("/ready", s.healthHandler.HandleReady)
	mux.HandleFunc("/readyz", s.healthHandler.HandleReady)

	// 版本信息端点
	mux.HandleFunc("/version", s.healthHandler.HandleVersion)

	middlewares := []Middleware{
		Recovery(s.logger),
		RequestID(),
		OTelTracing(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.metricsCollector),
		CORS(s.cfg.Server.CORSAllowedOrigins),
	}
	if s.cfg.Server.RateLimitRPS > 0 {
		middlewares = append(middlewares,
			RateLimiter(ctx, s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst, s.logger))
	}

	return Chain(mux, middlewares...), nil
}

// =============================================================================
// 🚀 运行与关闭
// =============================================================================

// httpServerConfig 业务端口配置
func (s *Server) httpServerConfig() server.Config {
	return server.Config{
		Name:            "http",
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     s.cfg.Server.IdleTimeout,
		MaxHeaderBytes:  1 << 20, // 1 MB
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
		TLSCertFile:     s.cfg.Server.TLSCertFile,
		TLSKeyFile:      s.cfg.Server.TLSKeyFile,
	}
}

// metricsServerConfig Metrics 端口配置，不启用 TLS
func (s *Server) metricsServerConfig() server.Config {
	return server.Config{
		Name:            "metrics",
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     s.cfg.Server.IdleTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}
}

// Run 启动业务与 Metrics 服务器，阻塞直到 ctx 取消或任一服务器异常退出
func (s *Server) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	handler, err := s.Handler(gctx)
	if err != nil {
		return err
	}

	httpManager := server.NewManager(handler, s.httpServerConfig(), s.logger)
	g.Go(func() error { return httpManager.Run(gctx) })

	if s.cfg.Server.MetricsPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", s.metricsCollector.Handler())

		metricsManager := server.NewManager(mux, s.metricsServerConfig(), s.logger)
		g.Go(func() error { return metricsManager.Run(gctx) })
	}

	s.initReloader()
	if s.reloader != nil {
		if err := s.reloader.Watch(gctx); err != nil {
			s.logger.Warn("Config hot reload disabled", zap.Error(err))
		}
		defer func() {
			if err := s.reloader.Stop(); err != nil {
				s.logger.Error("Config watcher shutdown error", zap.Error(err))
			}
		}()
	}

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
		zap.Bool("tls", s.cfg.Server.TLSCertFile != ""),
		zap.Bool("hot_reload_enabled", s.reloader != nil),
	)

	err = g.Wait()
	s.logger.Info("Graceful shutdown completed")
	return err
}
