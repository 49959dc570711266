// Package api serves the sensor controls and stream state over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	kinect "github.com/kevmo314/go-kinect"
	"github.com/kevmo314/go-kinect/internal/events"
	"github.com/kevmo314/go-kinect/internal/logging"
)

type Options struct {
	Device *kinect.Device
	// Bus, when set, feeds the last frame of each stream into the stream
	// responses.
	Bus *events.Bus
	// MetricsHandler, when set, is served at /metrics.
	MetricsHandler http.Handler
}

type Server struct {
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	device     *kinect.Device
	logger     *slog.Logger

	mu          sync.Mutex
	lastFrames  map[string]events.FrameEvent
	unsubscribe []func()
}

func NewServer(opts Options) *Server {
	mux := http.NewServeMux()

	config := huma.DefaultConfig("Kinect API", "1.0.0")
	config.Info.Description = "LED, tilt, accelerometer and stream controls of a Kinect sensor"
	config.Servers = []*huma.Server{}
	api := humago.New(mux, config)

	s := &Server{
		api:        api,
		mux:        mux,
		device:     opts.Device,
		logger:     logging.GetLogger("api"),
		lastFrames: make(map[string]events.FrameEvent),
	}
	api.UseMiddleware(LoggingMiddleware)

	if opts.MetricsHandler != nil {
		mux.Handle("GET /metrics", opts.MetricsHandler)
	}
	if opts.Bus != nil {
		s.unsubscribe = append(s.unsubscribe, opts.Bus.Subscribe(s.onFrame))
	}

	s.registerRoutes()
	return s
}

func (s *Server) onFrame(e events.FrameEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFrames[e.Stream] = e
}

func (s *Server) lastFrame(stream string) (events.FrameEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lastFrames[stream]
	return e, ok
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) API() huma.API {
	return s.api
}

// Start serves on addr until Stop is called.
func (s *Server) Start(addr string) error {
	s.logger.Info("starting api server", "addr", addr)
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.mux,
	}
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	for _, unsubscribe := range s.unsubscribe {
		unsubscribe()
	}
	s.unsubscribe = nil
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("stopping api server")
	return s.httpServer.Shutdown(ctx)
}

type HealthResponse struct {
	Body struct {
		Status string `json:"status" example:"ok" doc:"Service status"`
		Device string `json:"device" example:"kinect0" doc:"Device name"`
		Motor  bool   `json:"motor" doc:"Whether a motor is paired with the camera"`
	}
}

type LogsResponse struct {
	Body struct {
		Entries []logging.Entry `json:"entries" doc:"Recent log entries, oldest first"`
	}
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Tags:        []string{"health"},
	}, func(ctx context.Context, input *struct{}) (*HealthResponse, error) {
		resp := &HealthResponse{}
		resp.Body.Status = "ok"
		resp.Body.Device = s.device.Name()
		resp.Body.Motor = s.device.HasMotor()
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-logs",
		Method:      http.MethodGet,
		Path:        "/api/logs",
		Summary:     "Recent logs",
		Tags:        []string{"logs"},
	}, func(ctx context.Context, input *struct{}) (*LogsResponse, error) {
		resp := &LogsResponse{}
		resp.Body.Entries = logging.History().Entries()
		return resp, nil
	})

	s.registerMotorRoutes()
	s.registerStreamRoutes()
}

// toHTTPError maps device errors to API errors.
func toHTTPError(msg string, err error) error {
	switch {
	case errors.Is(err, kinect.ErrNoMotor):
		return huma.Error404NotFound(msg, err)
	case errors.Is(err, kinect.ErrInvalidLED), errors.Is(err, kinect.ErrInvalidTilt), errors.Is(err, kinect.ErrInvalidFormat):
		return huma.Error400BadRequest(msg, err)
	case errors.Is(err, kinect.ErrNotOpen), errors.Is(err, kinect.ErrClosed):
		return huma.Error409Conflict(msg, err)
	case errors.Is(err, kinect.ErrDisconnected):
		return huma.Error503ServiceUnavailable(msg, err)
	}
	return huma.Error500InternalServerError(msg, err)
}
