package server

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthMonitor keeps the gRPC health status in step with the database.
type HealthMonitor struct {
	srv      *health.Server
	ping     func(ctx context.Context) error
	interval time.Duration
	logger   *slog.Logger
}

// RegisterHealth registers the standard gRPC health service on s.
func RegisterHealth(s *grpc.Server, ping func(ctx context.Context) error, interval time.Duration, logger *slog.Logger) *HealthMonitor {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	return &HealthMonitor{srv: hs, ping: ping, interval: interval, logger: logger}
}

// Check pings once and publishes the result.
func (m *HealthMonitor) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	st := healthpb.HealthCheckResponse_SERVING
	if m.ping != nil {
		if err := m.ping(ctx); err != nil {
			m.logger.Warn("health check failed", "error", err)
			st = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	m.srv.SetServingStatus("", st)
	return st
}

// Run checks on every tick until ctx is done, then marks the server as
// shutting down.
func (m *HealthMonitor) Run(ctx context.Context) {
	m.Check(ctx)
	t := time.NewTicker(m.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			m.srv.Shutdown()
			return
		case <-t.C:
			m.Check(ctx)
		}
	}
}
