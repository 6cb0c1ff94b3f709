package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/opdss/tablib/metrics"
	"go.uber.org/zap"
)

type Config struct {
	Endpoint        string        `help:"访问地址" default:"http://localhost:8989"`
	Address         string        `help:"监听地址" default:"0.0.0.0:8989"`
	Mode            string        `help:"gin 模式,可选[debug|release|test]" releaseDefault:"release" default:"debug"`
	ShutdownTimeout time.Duration `help:"关闭时等待请求结束的时间" default:"5s"`
	MetricsPath     string        `help:"prometheus 指标地址,为空不开启" default:"/metrics"`
}

type Server struct {
	*gin.Engine
	httpSrv *http.Server
	logger  *zap.Logger
	config  Config
}

// NewEngine 创建 gin，panic 恢复后仍记录请求日志和指标
func NewEngine(logger *zap.Logger, conf Config, m *metrics.Metrics) *gin.Engine {
	if conf.Mode != "" {
		gin.SetMode(conf.Mode)
	}
	engine := gin.New()
	engine.Use(Logger(logger), Metrics(m), Recovery(logger))
	if m != nil && conf.MetricsPath != "" {
		engine.GET(conf.MetricsPath, gin.WrapH(m.Handler()))
	}
	return engine
}

func NewServer(engine *gin.Engine, logger *zap.Logger, conf Config) *Server {
	if conf.ShutdownTimeout <= 0 {
		conf.ShutdownTimeout = 5 * time.Second
	}
	return &Server{
		Engine: engine,
		logger: logger,
		config: conf,
	}
}

// Start 阻塞直到服务关闭
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve 在已有的监听上提供服务，ctx 结束时优雅关闭
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.httpSrv = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
	s.logger.Sugar().Infof("http server start: %s; endpoint: %s", ln.Addr(), s.config.Endpoint)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = s.Stop(context.Background())
		case <-done:
		}
	}()

	if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Sugar().Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()
	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Sugar().Error("Server forced to shutdown: ", err)
		return err
	}

	s.logger.Sugar().Info("Server exiting")
	return nil
}
