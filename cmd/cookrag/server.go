package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BaSui01/cookrag"
	"github.com/BaSui01/cookrag/api/handlers"
	"github.com/BaSui01/cookrag/config"
	"github.com/BaSui01/cookrag/internal/server"
)

// sweepInterval 过期缓存和会话的后台清扫间隔。
const sweepInterval = time.Minute

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 是 CookRAG 的主服务器
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	pipeline    *cookrag.Pipeline
	httpManager *server.Manager

	// Handlers
	healthHandler  *handlers.HealthHandler
	askHandler     *handlers.AskHandler
	sessionHandler *handlers.SessionHandler
	statsHandler   *handlers.StatsHandler

	// 后台任务生命周期（限流清理和过期清扫共用）
	backgroundCtx    context.Context
	backgroundCancel context.CancelFunc
	wg               sync.WaitGroup
}

// NewServer 创建新的服务器实例
func NewServer(cfg *config.Config, logger *zap.Logger) *Server {
	return &Server{
		cfg:    cfg,
		logger: logger,
	}
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start 组装流水线、加载知识库并启动 HTTP 服务
func (s *Server) Start() error {
	// 1. 组装流水线
	p, err := cookrag.New(s.cfg, s.logger)
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}
	s.pipeline = p

	// 2. 加载知识库并建索引
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	if err := p.LoadAndIndex(ctx); err != nil {
		return fmt.Errorf("failed to load knowledge base: %w", err)
	}

	// 3. 初始化 Handlers
	s.initHandlers()
	s.backgroundCtx, s.backgroundCancel = context.WithCancel(context.Background())

	// 4. 启动 HTTP 服务器
	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	// 5. 启动后台清扫
	s.startBackgroundSweeper()

	s.logger.Info("All servers started", zap.String("addr", s.httpManager.Addr()))
	return nil
}

// =============================================================================
// 🔧 初始化方法
// =============================================================================

func (s *Server) initHandlers() {
	s.healthHandler = handlers.NewHealthHandler(s.logger)
	s.healthHandler.RegisterCheck(handlers.NewFuncHealthCheck("knowledge_base", func(ctx context.Context) error {
		if s.pipeline.Store().GetStats().TotalFragments == 0 {
			return fmt.Errorf("no fragments indexed")
		}
		return nil
	}))

	s.askHandler = handlers.NewAskHandler(
		s.pipeline.Orchestrator(),
		s.pipeline.Sessions(),
		s.cfg.Server.AskTimeout,
		s.logger,
	)
	s.sessionHandler = handlers.NewSessionHandler(s.pipeline.Sessions(), s.logger)
	s.statsHandler = handlers.NewStatsHandler(
		s.pipeline.Cache(),
		s.pipeline.Sessions(),
		s.pipeline.Store(),
		s.logger,
	)
}

// =============================================================================
// 🌐 HTTP 服务器
// =============================================================================

func (s *Server) startHTTPServer() error {
	mux := http.NewServeMux()

	// 健康检查和版本
	mux.HandleFunc("/healthz", s.healthHandler.HandleHealthz)
	mux.HandleFunc("/readyz", s.healthHandler.HandleReady)
	mux.HandleFunc("/version", s.healthHandler.HandleVersion(Version, BuildTime, GitCommit))

	// Prometheus 指标
	mux.Handle("/metrics", promhttp.Handler())

	// API 路由
	mux.HandleFunc("/api/v1/ask", s.askHandler.HandleAsk)
	mux.HandleFunc("/api/v1/ask/stream", s.askHandler.HandleAskStream)
	mux.HandleFunc("/api/v1/sessions", s.sessionHandler.HandleCreate)
	mux.HandleFunc("/api/v1/sessions/", s.sessionHandler.HandleSession)
	mux.HandleFunc("/api/v1/stats", s.statsHandler.HandleStats)

	// 中间件链
	handler := Chain(mux,
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		CORS(s.cfg.Server.CORSAllowedOrigins),
		RateLimiter(s.backgroundCtx, s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst, s.logger),
	)

	serverConfig := server.Config{
		Addr:            s.cfg.Server.Addr,
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.httpManager = server.NewManager(handler, serverConfig, s.logger)
	return s.httpManager.Start()
}

// =============================================================================
// 🧹 后台清扫
// =============================================================================

// startBackgroundSweeper 周期性清理过期缓存和会话，并刷新活跃会话指标。
func (s *Server) startBackgroundSweeper() {
	ctx := s.backgroundCtx

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				expiredAnswers := s.pipeline.Cache().SweepExpired()
				expiredSessions := s.pipeline.Sessions().SweepExpired()
				s.pipeline.Collector().SetActiveSessions(s.pipeline.Sessions().ActiveCount())
				if expiredAnswers > 0 || expiredSessions > 0 {
					s.logger.Debug("swept expired entries",
						zap.Int("answers", expiredAnswers),
						zap.Int("sessions", expiredSessions))
				}
			}
		}
	}()
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// WaitForShutdown 等待关闭信号并优雅关闭
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}
	s.Shutdown()
}

// Shutdown 优雅关闭所有服务
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown...")

	if s.backgroundCancel != nil {
		s.backgroundCancel()
	}

	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(context.Background()); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}

	if s.pipeline != nil {
		if err := s.pipeline.Close(); err != nil {
			s.logger.Error("pipeline close error", zap.Error(err))
		}
	}

	s.wg.Wait()
	s.logger.Info("Graceful shutdown completed")
}
