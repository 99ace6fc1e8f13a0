package nats

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

// Embedded server defaults.
const (
	DefaultPort         = 4222
	DefaultHost         = "127.0.0.1"
	DefaultReadyTimeout = 5 * time.Second

	// Timing messages are a few hundred bytes; the cap only guards against
	// stray publishers.
	maxPayload = 64 * 1024
)

// ServerOptions configures the embedded NATS server. Zero fields take the
// defaults above. A negative Port picks a free one.
type ServerOptions struct {
	Host         string
	Port         int
	Name         string
	ReadyTimeout time.Duration
	Logger       *slog.Logger
}

// Server runs an in-process NATS server that the bridge and the control
// subscriber connect to, and that remote `signalnode control` calls reach.
type Server struct {
	opts   ServerOptions
	ns     *server.Server
	logger *slog.Logger
}

// NewServer creates a stopped server.
func NewServer(opts ServerOptions) *Server {
	if opts.Host == "" {
		opts.Host = DefaultHost
	}
	if opts.Port == 0 {
		opts.Port = DefaultPort
	}
	if opts.Name == "" {
		opts.Name = "signalnode"
	}
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = DefaultReadyTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{opts: opts, logger: logger.With("component", "nats-server")}
}

// Start launches the server and blocks until it accepts connections.
func (s *Server) Start() error {
	if s.ns != nil {
		return errors.New("nats server already running")
	}

	port := s.opts.Port
	if port < 0 {
		port = server.RANDOM_PORT
	}
	ns, err := server.NewServer(&server.Options{
		ServerName: s.opts.Name,
		Host:       s.opts.Host,
		Port:       port,
		MaxPayload: maxPayload,
		NoLog:      true,
		NoSigs:     true,
	})
	if err != nil {
		return fmt.Errorf("create nats server: %w", err)
	}

	go ns.Start()
	if !ns.ReadyForConnections(s.opts.ReadyTimeout) {
		ns.Shutdown()
		return fmt.Errorf("nats server not ready after %s", s.opts.ReadyTimeout)
	}

	s.ns = ns
	s.logger.Info("NATS server started", "url", ns.ClientURL())
	return nil
}

// Stop shuts the server down and waits for it to exit.
func (s *Server) Stop() {
	if s.ns == nil {
		return
	}
	s.logger.Info("Stopping NATS server")
	s.ns.Shutdown()
	s.ns.WaitForShutdown()
	s.ns = nil
}

// ClientURL is the URL local clients connect to. Before Start it is built
// from the configured address.
func (s *Server) ClientURL() string {
	if s.ns != nil {
		return s.ns.ClientURL()
	}
	return fmt.Sprintf("nats://%s:%d", s.opts.Host, s.opts.Port)
}

// IsRunning reports whether the server accepts connections.
func (s *Server) IsRunning() bool {
	return s.ns != nil && s.ns.Running()
}

// NumClients is the number of open client connections.
func (s *Server) NumClients() int {
	if s.ns == nil {
		return 0
	}
	return s.ns.NumClients()
}
