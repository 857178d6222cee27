package server

import (
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthServer serves grpc.health.v1 for orchestrators that probe over gRPC.
type HealthServer struct {
	grpc   *grpc.Server
	health *health.Server
	lis    net.Listener
	logger *slog.Logger
}

// ListenHealth binds addr and registers the health service as SERVING.
func ListenHealth(addr string, logger *slog.Logger) (*HealthServer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	gs := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	return &HealthServer{grpc: gs, health: hs, lis: lis, logger: logger}, nil
}

func (h *HealthServer) Addr() string { return h.lis.Addr().String() }

// Serve blocks until Stop.
func (h *HealthServer) Serve() error {
	h.logger.Info("grpc health listening", "addr", h.Addr())
	return h.grpc.Serve(h.lis)
}

// Stop reports NOT_SERVING, then stops the server gracefully.
func (h *HealthServer) Stop() {
	h.health.Shutdown()
	h.grpc.GracefulStop()
}
