package agentrpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"

	"github.com/nixlim/buzz/internal/config"
	"github.com/nixlim/buzz/internal/notify"
)

// Shower displays a decoded notification. *agent.Agent implements it.
type Shower interface {
	ShowNotification(ctx context.Context, n notify.Notification) error
}

// GRPCServer accepts show requests over the OTLP Logs service.
type GRPCServer struct {
	collogspb.UnimplementedLogsServiceServer

	cfg    config.AgentConfig
	target Shower
	log    *slog.Logger

	mu       sync.Mutex
	server   *grpc.Server
	listener net.Listener
}

func NewGRPCServer(cfg config.AgentConfig, target Shower, log *slog.Logger) *GRPCServer {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &GRPCServer{cfg: cfg, target: target, log: log.With("component", "agentrpc")}
}

// Start binds cfg.Bind:cfg.GRPCPort and serves until Stop.
func (s *GRPCServer) Start() error {
	addr := net.JoinHostPort(s.cfg.Bind, strconv.Itoa(s.cfg.GRPCPort))
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.serve(lis)
	return nil
}

func (s *GRPCServer) serve(lis net.Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.listener = lis
	s.server = grpc.NewServer()
	collogspb.RegisterLogsServiceServer(s.server, s)

	go func() {
		if err := s.server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			s.log.Error("grpc server exited", "error", err)
		}
	}()
	s.log.Info("agent grpc listening", "addr", lis.Addr().String())
}

// Addr returns the bound address, or "" before Start.
func (s *GRPCServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *GRPCServer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server != nil {
		s.server.GracefulStop()
		s.server = nil
	}
}

// Export shows every record in req. Records that fail to decode or display
// are reported through partial success rather than failing the call.
func (s *GRPCServer) Export(ctx context.Context, req *collogspb.ExportLogsServiceRequest) (*collogspb.ExportLogsServiceResponse, error) {
	s.log.Debug("export received", "bytes", proto.Size(req))

	var rejected int64
	var firstErr error
	for _, rl := range req.GetResourceLogs() {
		origin := resourceOrigin(rl.GetResource())
		if s.cfg.Origin != "" && origin != "" && origin != s.cfg.Origin {
			s.log.Warn("show request from foreign origin", "origin", origin, "want", s.cfg.Origin)
		}
		for _, sl := range rl.GetScopeLogs() {
			for _, lr := range sl.GetLogRecords() {
				n, err := DecodeNotification(lr)
				if err == nil {
					err = s.target.ShowNotification(ctx, n)
				}
				if err != nil {
					rejected++
					if firstErr == nil {
						firstErr = err
					}
				}
			}
		}
	}

	resp := &collogspb.ExportLogsServiceResponse{}
	if rejected > 0 {
		s.log.Warn("show requests rejected", "count", rejected, "error", firstErr)
		resp.PartialSuccess = &collogspb.ExportLogsPartialSuccess{
			RejectedLogRecords: rejected,
			ErrorMessage:       firstErr.Error(),
		}
	}
	return resp, nil
}

// HTTPServer exposes an http.Handler, normally the agent's fetch proxy, on
// cfg.Bind:cfg.HTTPPort.
type HTTPServer struct {
	cfg     config.AgentConfig
	handler http.Handler
	log     *slog.Logger

	server   *http.Server
	listener net.Listener
}

func NewHTTPServer(cfg config.AgentConfig, handler http.Handler, log *slog.Logger) *HTTPServer {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &HTTPServer{cfg: cfg, handler: handler, log: log.With("component", "agenthttp")}
}

func (h *HTTPServer) Start() error {
	addr := net.JoinHostPort(h.cfg.Bind, strconv.Itoa(h.cfg.HTTPPort))
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	h.serve(lis)
	return nil
}

func (h *HTTPServer) serve(lis net.Listener) {
	h.listener = lis
	h.server = &http.Server{
		Handler:      h.handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	go func() {
		if err := h.server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.log.Error("http server exited", "error", err)
		}
	}()
	h.log.Info("agent http listening", "addr", lis.Addr().String())
}

func (h *HTTPServer) Addr() string {
	if h.listener == nil {
		return ""
	}
	return h.listener.Addr().String()
}

func (h *HTTPServer) Stop() {
	if h.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = h.server.Shutdown(ctx)
}
