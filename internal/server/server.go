package server

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"

	"github.com/ngenohkevin/hftp/config"
	"github.com/ngenohkevin/hftp/internal/files"
	"github.com/ngenohkevin/hftp/internal/log"
)

var (
	// ErrAlreadyStarted is returned by a second Start
	ErrAlreadyStarted = errors.New("server already started")
	// ErrServerStopped is returned by Start after Stop
	ErrServerStopped = errors.New("server stopped")
)

// Server accepts connections on one TCP port and hands each to its own
// goroutine. It stops accepting as soon as the shared running flag is cleared.
type Server struct {
	cfg        *config.Config
	root       *files.Root
	router     *gin.Engine
	handlers   *Handlers
	running    *atomic.Bool
	httpServer *http.Server
	listener   *pollingListener

	mu      sync.Mutex
	started bool
	stopped bool

	serveDone chan struct{}
	serveErr  error

	activeConns atomic.Int64
}

// New creates a server for cfg. The running flag is owned by the caller and
// must be true for the accept loop to run.
func New(cfg *config.Config, running *atomic.Bool) (*Server, error) {
	// Set Gin mode based on debug flag
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	root, err := files.NewRoot(cfg.RootDir)
	if err != nil {
		return nil, err
	}

	handlers, err := NewHandlers(root)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:       cfg,
		root:      root,
		router:    gin.New(),
		handlers:  handlers,
		running:   running,
		serveDone: make(chan struct{}),
	}

	if err := s.setupTemplates(); err != nil {
		return nil, err
	}
	s.setupMiddleware()
	s.setupRoutes()

	return s, nil
}

func (s *Server) setupTemplates() error {
	tmpl, err := template.New("").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return fmt.Errorf("failed to parse templates: %w", err)
	}
	s.router.SetHTMLTemplate(tmpl)
	return nil
}

func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.router.Use(RecoveryMiddleware())

	// Request IDs and access log
	s.router.Use(RequestIDMiddleware())
	s.router.Use(LoggerMiddleware())

	// Drain keep-alive connections once shutdown starts
	s.router.Use(DrainMiddleware(s.running))
}

func (s *Server) setupRoutes() {
	// Every path and method goes through the method table; unknown methods
	// fall through to NoRoute and get a 405 there.
	s.router.Any("/*path", s.handlers.Dispatch)
	s.router.NoRoute(s.handlers.Dispatch)
}

// Start binds the configured address and starts serving in the background.
// A bind failure is returned to the caller.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrServerStopped
	}
	if s.started {
		return ErrAlreadyStarted
	}

	addr := s.cfg.Addr()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", addr, err)
	}
	tcpLn, ok := ln.(*net.TCPListener)
	if !ok {
		ln.Close()
		return fmt.Errorf("unexpected listener type %T", ln)
	}

	s.listener = newPollingListener(tcpLn, s.running, s.cfg.PollInterval)
	s.httpServer = &http.Server{
		Handler:   s.router,
		ErrorLog:  log.StdLogger(),
		ConnState: s.trackConn,
	}
	s.started = true

	log.Info("Serving %s on %s", s.root.Dir(), s.listener.Addr())

	go s.serve(s.httpServer, s.listener)
	return nil
}

func (s *Server) serve(srv *http.Server, ln net.Listener) {
	defer close(s.serveDone)

	err := srv.Serve(ln)
	if err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, net.ErrClosed) {
		s.serveErr = fmt.Errorf("accept loop failed: %w", err)
		log.Error("%v", s.serveErr)
		return
	}
	log.Debug("Accept loop exited")
}

// Wait blocks until the accept loop exits. A stop caused by the running flag
// or by Stop is not an error.
func (s *Server) Wait() error {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return nil
	}

	<-s.serveDone
	return s.serveErr
}

// Stop clears the running flag, closes the listener and waits for in-flight
// requests until ctx is done, then closes whatever connections remain. It is
// safe to call more than once and concurrently with Start.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	srv := s.httpServer
	s.mu.Unlock()

	s.running.Store(false)
	defer s.handlers.Close()

	if srv == nil {
		return nil
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("Closing %d connection(s) still open after grace period", s.ActiveConnections())
		_ = srv.Close()
		return fmt.Errorf("failed to shut down gracefully: %w", err)
	}
	return nil
}

// Addr returns the bound address, or nil before Start
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Port returns the bound TCP port, or 0 before Start
func (s *Server) Port() int {
	if addr, ok := s.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return 0
}

// ActiveConnections returns the number of open client connections
func (s *Server) ActiveConnections() int64 {
	return s.activeConns.Load()
}

// Root returns the served directory
func (s *Server) Root() *files.Root {
	return s.root
}

// Router returns the Gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) trackConn(conn net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		n := s.activeConns.Add(1)
		log.Debug("Connection from %s opened (%d active)", conn.RemoteAddr(), n)
	case http.StateHijacked, http.StateClosed:
		n := s.activeConns.Add(-1)
		log.Debug("Connection from %s closed (%d active)", conn.RemoteAddr(), n)
	}
}
