package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultReadHeaderTimeout = 5 * time.Second
	defaultShutdownTimeout   = 5 * time.Second
)

// Config defines the inputs for the relay transport boundary.
type Config struct {
	HTTPAddr          string
	TLSCertFile       string
	TLSKeyFile        string
	PingInterval      time.Duration
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// Server hosts the relay HTTP/WebSocket process.
type Server struct {
	httpAddr        string
	tlsCertFile     string
	tlsKeyFile      string
	shutdownTimeout time.Duration
	httpServer      *http.Server
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The relay is origin-agnostic: clients are game devices, not browsers
	// bound to one page origin.
	CheckOrigin: func(*http.Request) bool { return true },
}

// NewHandler creates relay routes with the default heartbeat interval.
func NewHandler() http.Handler {
	return newHandler(defaultPingInterval)
}

// NewHandlerWithPingInterval creates relay routes with a custom heartbeat
// interval, primarily for tests that exercise liveness timeouts.
func NewHandlerWithPingInterval(pingInterval time.Duration) http.Handler {
	return newHandler(pingInterval)
}

func newHandler(pingInterval time.Duration) http.Handler {
	rl := newRelay(pingInterval)
	mux := http.NewServeMux()
	mux.HandleFunc("/up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("relay: websocket upgrade failed for remote=%s: %v", r.RemoteAddr, err)
			return
		}
		rl.handleConn(ws)
	})

	return mux
}

// NewServer builds a configured relay server.
func NewServer(config Config) (*Server, error) {
	httpAddr := strings.TrimSpace(config.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("http address is required")
	}
	if config.ReadHeaderTimeout <= 0 {
		config.ReadHeaderTimeout = defaultReadHeaderTimeout
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = defaultShutdownTimeout
	}
	tlsCertFile := strings.TrimSpace(config.TLSCertFile)
	tlsKeyFile := strings.TrimSpace(config.TLSKeyFile)
	if (tlsCertFile == "") != (tlsKeyFile == "") {
		return nil, errors.New("tls cert and key files must be set together")
	}

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           newHandler(config.PingInterval),
		ReadHeaderTimeout: config.ReadHeaderTimeout,
	}

	return &Server{
		httpAddr:        httpAddr,
		tlsCertFile:     tlsCertFile,
		tlsKeyFile:      tlsKeyFile,
		shutdownTimeout: config.ShutdownTimeout,
		httpServer:      httpServer,
	}, nil
}

// Run creates and serves a relay server until the context ends.
func Run(ctx context.Context, config Config) error {
	server, err := NewServer(config)
	if err != nil {
		return fmt.Errorf("init relay server: %w", err)
	}

	if err := server.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("serve relay: %w", err)
	}
	return nil
}

// ListenAndServe runs the HTTP server until the context ends. When TLS cert
// and key files are configured the relay serves wss, otherwise plain ws.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("relay server is nil")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	serveErr := make(chan error, 1)
	if s.tlsCertFile != "" {
		log.Printf("relay server listening on %s (tls)", s.httpAddr)
		go func() {
			serveErr <- s.httpServer.ListenAndServeTLS(s.tlsCertFile, s.tlsKeyFile)
		}()
	} else {
		log.Printf("relay server listening on %s", s.httpAddr)
		go func() {
			serveErr <- s.httpServer.ListenAndServe()
		}()
	}

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}
