package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// 运维端点只返回小响应，超时固定
const (
	opsReadTimeout     = 10 * time.Second
	opsWriteTimeout    = 30 * time.Second
	opsShutdownTimeout = 10 * time.Second
)

// OpsServer 在计划执行期间提供 /metrics、/healthz 与 /runs
type OpsServer struct {
	addr   string
	srv    *http.Server
	logger *zap.Logger

	mu       sync.Mutex
	listener net.Listener
	closed   bool
}

// NewOpsServer 创建监听 addr 的运维服务器，Start 之前不占用端口
func NewOpsServer(addr string, handler http.Handler, logger *zap.Logger) *OpsServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpsServer{
		addr: addr,
		srv: &http.Server{
			Handler:           handler,
			ReadTimeout:       opsReadTimeout,
			ReadHeaderTimeout: opsReadTimeout,
			WriteTimeout:      opsWriteTimeout,
		},
		logger: logger.With(zap.String("component", "ops_server")),
	}
}

// Start 绑定端口并在后台服务，不阻塞
func (s *OpsServer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.closed:
		return fmt.Errorf("ops server is closed")
	case s.listener != nil:
		return fmt.Errorf("ops server already started on %s", s.listener.Addr())
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln
	s.logger.Info("ops server listening", zap.String("addr", ln.Addr().String()))

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("ops server stopped unexpectedly", zap.Error(err))
		}
	}()
	return nil
}

// Shutdown 排空进行中的请求。可重复调用；未启动时只标记关闭。
func (s *OpsServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.listener == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, opsShutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown ops server: %w", err)
	}
	s.logger.Info("ops server stopped")
	return nil
}

// Addr 返回实际绑定地址；启动前返回配置地址
func (s *OpsServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}
