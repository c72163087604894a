package server

import (
	"context"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// HealthServer is a gRPC server carrying only grpc.health.v1, for probes.
type HealthServer struct {
	grpc   *grpc.Server
	health *health.Server
	log    *slog.Logger
}

func NewHealthServer(logger *slog.Logger) *HealthServer {
	if logger == nil {
		logger = slog.Default()
	}
	gs := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	// Reflection for grpcurl
	reflection.Register(gs)
	return &HealthServer{grpc: gs, health: hs, log: logger}
}

// Watch flips the serving status whenever check changes outcome, polling every interval.
func (h *HealthServer) Watch(ctx context.Context, interval time.Duration, check func(context.Context) error) {
	if check == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	serving := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := check(ctx)
			switch {
			case err != nil && serving:
				h.log.Warn("grpc.health.not_serving", "err", err)
				h.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
				serving = false
			case err == nil && !serving:
				h.log.Info("grpc.health.serving")
				h.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
				serving = true
			}
		}
	}
}

// Serve blocks until the listener fails or Stop is called.
func (h *HealthServer) Serve(lis net.Listener) error {
	h.log.Info("grpc.serve", "addr", lis.Addr().String())
	return h.grpc.Serve(lis)
}

func (h *HealthServer) Stop() {
	h.health.Shutdown()
	h.grpc.GracefulStop()
}
