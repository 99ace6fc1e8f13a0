// Package api serves the HTTP interface: subdevice state and streaming,
// controls, format queries, the pad topology, runtime logging levels, the
// event stream and the read-only debug files.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/smazurov/signalnode/internal/api/models"
	"github.com/smazurov/signalnode/internal/controls"
	"github.com/smazurov/signalnode/internal/diag"
	"github.com/smazurov/signalnode/internal/events"
	"github.com/smazurov/signalnode/internal/fault"
	"github.com/smazurov/signalnode/internal/logging"
	"github.com/smazurov/signalnode/internal/subdev"
	"github.com/smazurov/signalnode/internal/version"
)

// LEDStatus reports the indicator LED.
type LEDStatus interface {
	Device() string
	State() string
}

// Options configures the API server.
type Options struct {
	AuthUsername string
	AuthPassword string
	CORSOrigin   string

	Host  *subdev.Host
	Bus   *events.Bus
	Debug *controls.DebugFlag
	LED   LEDStatus // optional

	PrometheusHandler http.Handler // optional
	DiagLimit         int          // per-file size limit of /debug, 0 for the default
}

// Server is the Huma v2 API server.
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	options    *Options
	host       *subdev.Host
	eventBus   *events.Bus
	logger     *slog.Logger
}

// NewServer creates the API server using Go 1.22+ native routing.
func NewServer(opts *Options) *Server {
	mux := http.NewServeMux()

	if opts.CORSOrigin != "" {
		mux.HandleFunc("OPTIONS /", preflightHandler(opts.CORSOrigin))
	}

	config := huma.DefaultConfig("SignalNode API", version.Version)
	config.Info.Description = "Signal detection and format negotiation for analog video front ends"
	// Empty servers list makes OpenAPI use relative paths.
	config.Servers = []*huma.Server{}
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"basicAuth": {
			Type:   "http",
			Scheme: "basic",
		},
	}

	api := humago.New(mux, config)

	server := &Server{
		api:      api,
		mux:      mux,
		options:  opts,
		host:     opts.Host,
		eventBus: opts.Bus,
		logger:   logging.GetLogger("api"),
	}

	if opts.CORSOrigin != "" {
		api.UseMiddleware(corsMiddleware(opts.CORSOrigin))
	}
	api.UseMiddleware(loggingMiddleware)
	if opts.AuthUsername != "" && opts.AuthPassword != "" {
		api.UseMiddleware(basicAuthMiddleware(api, opts.AuthUsername, opts.AuthPassword))
	}

	if opts.PrometheusHandler != nil {
		mux.Handle("GET /metrics", opts.PrometheusHandler)
	}
	mux.Handle("GET /debug/", http.StripPrefix("/debug/", http.FileServerFS(diag.NewFS(opts.Host, opts.DiagLimit))))

	server.registerRoutes()
	return server
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// API returns the Huma API instance.
func (s *Server) API() huma.API {
	return s.api
}

// Start serves on addr until Stop is called.
func (s *Server) Start(addr string) error {
	s.logger.Info("Starting SignalNode API server", "addr", addr)
	s.logger.Info("OpenAPI documentation available", "url", "http://"+addr+"/docs")

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.mux,
	}
	if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the server down, waiting for in-flight requests until ctx ends.
// Event streams are cut immediately.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server")
	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return s.httpServer.Close()
	}
	return nil
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Check API health status",
		Tags:        []string{"health"},
		Security:    []map[string][]string{}, // no auth
	}, func(_ context.Context, _ *struct{}) (*models.HealthResponse, error) {
		return &models.HealthResponse{
			Body: models.HealthData{
				Status:  "ok",
				Message: "API is healthy",
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Description: "Get application version information",
		Tags:        []string{"system"},
		Security:    []map[string][]string{}, // no auth
	}, func(_ context.Context, _ *struct{}) (*models.VersionResponse, error) {
		info := version.Get()
		return &models.VersionResponse{
			Body: models.VersionData{
				Name:      info.Name,
				Version:   info.Version,
				GitCommit: info.GitCommit,
				BuildDate: info.BuildDate,
				GoVersion: info.GoVersion,
				Platform:  info.Platform,
			},
		}, nil
	})

	s.registerSubdeviceRoutes()
	s.registerControlRoutes()
	s.registerFormatRoutes()
	s.registerRuntimeRoutes()
	s.registerSSERoutes()
}

// withAuth returns the basic auth security requirement.
func withAuth() []map[string][]string {
	return []map[string][]string{
		{"basicAuth": {}},
	}
}

// toHTTPError maps a fault code onto an HTTP status.
func toHTTPError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch fault.CodeOf(err) {
	case fault.CodeInvalidArgument, fault.CodeOutOfRange, fault.CodeInvalidLink:
		return huma.Error400BadRequest(msg, err)
	case fault.CodeReadOnly:
		return huma.Error403Forbidden(msg, err)
	case fault.CodeNotFound:
		return huma.Error404NotFound(msg, err)
	case fault.CodeAlreadyExists:
		return huma.Error409Conflict(msg, err)
	case fault.CodeDetection:
		return huma.Error503ServiceUnavailable(msg, err)
	default:
		return huma.Error500InternalServerError(msg, err)
	}
}
