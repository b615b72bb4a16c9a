// Package httpd runs an HTTP handler with graceful shutdown on interrupt.
package httpd

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/docker/go-units"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"
)

// Defaults for the server settings
const (
	DefaultAddress         = ":8080"
	DefaultCleanupTimeout  = 15 * time.Second
	DefaultMaxHeaderSize   = "1MB"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultKeepAlivePeriod = 3 * time.Minute
)

// Settings of the server, bindable to command line flags
type Settings struct {
	Address        string
	CleanupTimeout time.Duration
	MaxHeaderSize  string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	KeepAlive      time.Duration
}

// DefaultSettings for the server
func DefaultSettings() Settings {
	return Settings{
		Address:        DefaultAddress,
		CleanupTimeout: DefaultCleanupTimeout,
		MaxHeaderSize:  DefaultMaxHeaderSize,
		ReadTimeout:    DefaultReadTimeout,
		WriteTimeout:   DefaultWriteTimeout,
		KeepAlive:      DefaultKeepAlivePeriod,
	}
}

// RegisterFlags binds settings to the specified pflag set
func (s *Settings) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&s.Address, "address", s.Address, "the address to listen on")
	fs.DurationVar(&s.CleanupTimeout, "cleanup-timeout", s.CleanupTimeout, "grace period for which to wait before shutting down the server")
	fs.StringVar(&s.MaxHeaderSize, "max-header-size", s.MaxHeaderSize,
		"controls the maximum number of bytes the server will read parsing the request header's keys and values, including the request line. It does not limit the size of the request body")
	fs.DurationVar(&s.ReadTimeout, "read-timeout", s.ReadTimeout, "maximum duration before timing out read of the request")
	fs.DurationVar(&s.WriteTimeout, "write-timeout", s.WriteTimeout, "maximum duration before timing out write of the response")
	fs.DurationVar(&s.KeepAlive, "keep-alive", s.KeepAlive, "sets the TCP keep-alive timeouts on accepted connections, 0 disables keep-alives")
}

// Option for the server
type Option func(*Server)

// HandlesRequestsWith handles the http requests to the server
func HandlesRequestsWith(h http.Handler) Option {
	return func(s *Server) {
		s.handler = h
	}
}

// LogsWith provides a logger to the server
func LogsWith(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSettings overrides the default settings
func WithSettings(settings Settings) Option {
	return func(s *Server) {
		s.settings = settings
	}
}

// OnShutdown runs the provided functions once the listener is closed
func OnShutdown(handlers ...func()) Option {
	return func(s *Server) {
		s.onShutdown = append(s.onShutdown, handlers...)
	}
}

// Server serves a single HTTP listener
type Server struct {
	settings     Settings
	handler      http.Handler
	logger       *zap.Logger
	onShutdown   []func()
	listener     net.Listener
	shutdown     chan struct{}
	shuttingDown int32
	interrupt    chan os.Signal
}

// New creates a server but does not start listening
func New(opts ...Option) *Server {
	s := &Server{
		settings:  DefaultSettings(),
		handler:   http.NotFoundHandler(),
		logger:    zap.NewNop(),
		shutdown:  make(chan struct{}),
		interrupt: make(chan os.Signal, 1),
	}
	for _, apply := range opts {
		apply(s)
	}
	return s
}

// GetHandler returns a handler useful for testing
func (s *Server) GetHandler() http.Handler {
	return s.handler
}

// Listen creates the listener for the server
func (s *Server) Listen() error {
	if s.listener != nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.settings.Address)
	if err != nil {
		return err
	}
	s.listener = listener
	return nil
}

// Addr of the listener, once listening
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) httpServer() (*http.Server, error) {
	maxHeader, err := units.RAMInBytes(s.settings.MaxHeaderSize)
	if err != nil {
		return nil, err
	}
	srv := &http.Server{
		Handler:        s.handler,
		MaxHeaderBytes: int(maxHeader),
		ReadTimeout:    s.settings.ReadTimeout,
		WriteTimeout:   s.settings.WriteTimeout,
	}
	if s.settings.CleanupTimeout > 0 {
		srv.IdleTimeout = s.settings.CleanupTimeout
	}
	srv.SetKeepAlivesEnabled(s.settings.KeepAlive > 0)
	return srv, nil
}

// Serve requests until Shutdown is called or the process is interrupted
func (s *Server) Serve() error {
	if err := s.Listen(); err != nil {
		return err
	}
	srv, err := s.httpServer()
	if err != nil {
		return err
	}

	signal.Notify(s.interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(s.interrupt)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-s.interrupt:
			s.logger.Info("shutting down")
			_ = s.Shutdown()
		case <-s.shutdown:
		}
		s.handleShutdown(srv)
	}()

	addr := s.listener.Addr().String()
	s.logger.Info("serving", zap.String("address", "http://"+addr))
	err = srv.Serve(s.listener)
	if err == http.ErrServerClosed {
		err = nil
	}
	if err != nil {
		_ = s.Shutdown()
	}
	wg.Wait()
	s.logger.Info("stopped serving", zap.String("address", "http://"+addr))
	return err
}

// Shutdown the server. Pending requests are given the cleanup timeout to complete.
func (s *Server) Shutdown() error {
	if atomic.CompareAndSwapInt32(&s.shuttingDown, 0, 1) {
		close(s.shutdown)
	}
	return nil
}

func (s *Server) handleShutdown(srv *http.Server) {
	timeout := s.settings.CleanupTimeout
	if timeout <= 0 {
		timeout = DefaultCleanupTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		s.logger.Warn("http server shutdown", zap.Error(err))
		return
	}
	for _, run := range s.onShutdown {
		run()
	}
}
