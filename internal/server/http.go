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

	"github.com/cory-johannsen/bedrockbridge/internal/config"
)

// HTTPService runs an http.Server as a lifecycle Service.
type HTTPService struct {
	srv             *http.Server
	shutdownTimeout time.Duration
	logger          *zap.Logger

	mu       sync.Mutex
	listener net.Listener
	ready    chan struct{}
	onStop   []func()
}

// NewHTTPService builds an HTTPService serving handler on cfg.Addr().
//
// Precondition: handler and logger must be non-nil.
func NewHTTPService(cfg config.ServerConfig, handler http.Handler, logger *zap.Logger) *HTTPService {
	return &HTTPService{
		srv: &http.Server{
			Addr:         cfg.Addr(),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		shutdownTimeout: cfg.ShutdownTimeout,
		logger:          logger,
		ready:           make(chan struct{}),
	}
}

// OnStop registers fn to run after the server stops accepting requests and
// before in-flight requests are drained. Hijacked connections (WebSockets) are
// not tracked by http.Server, so their owners close them here.
func (h *HTTPService) OnStop(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onStop = append(h.onStop, fn)
}

// Start listens and serves until Stop is called.
//
// Postcondition: Returns nil after a graceful Stop, or the listen/serve error.
func (h *HTTPService) Start() error {
	lis, err := net.Listen("tcp", h.srv.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", h.srv.Addr, err)
	}
	h.mu.Lock()
	h.listener = lis
	h.mu.Unlock()
	close(h.ready)

	h.logger.Info("http server listening",
		zap.String("addr", lis.Addr().String()),
	)
	if err := h.srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts the server down within the configured timeout.
func (h *HTTPService) Stop() {
	h.mu.Lock()
	hooks := append([]func(){}, h.onStop...)
	h.mu.Unlock()

	h.srv.SetKeepAlivesEnabled(false)
	for _, fn := range hooks {
		fn()
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
	defer cancel()
	if err := h.srv.Shutdown(ctx); err != nil {
		h.logger.Warn("http shutdown incomplete", zap.Error(err))
	}
}

// Ready is closed once the listener is bound.
func (h *HTTPService) Ready() <-chan struct{} {
	return h.ready
}

// Addr returns the bound listen address, or empty string if not yet listening.
func (h *HTTPService) Addr() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.listener != nil {
		return h.listener.Addr().String()
	}
	return ""
}
