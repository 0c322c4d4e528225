package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	srv    *http.Server
	logger *zap.Logger
}

func NewServer(addr string, engine *gin.Engine, logger *zap.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Start 在后台启动 HTTP 服务，监听失败时写入 errCh
func (s *Server) Start(errCh chan<- error) {
	go func() {
		s.logger.Info("HTTP server starting", zap.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
}

// Shutdown 优雅关闭，最多等待 timeout
func (s *Server) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
