package api

import (
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// PipelineService is the gRPC health service name tracking the processing loop.
const PipelineService = "netsentinel.Pipeline"

func newGRPCServer(h *health.Server) *grpc.Server {
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, h)
	return srv
}

// watchHealth mirrors pipeline liveness into the gRPC health server until
// shutdown.
func (s *Server) watchHealth() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		s.updateHealth()
		select {
		case <-ticker.C:
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Server) updateHealth() {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if s.healthStatus().ProcessorAlive {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(PipelineService, status)
}
