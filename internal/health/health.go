// Package health reports service readiness over HTTP and the gRPC health
// protocol from one set of dependency checks.
package health

import (
	"context"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"messaging-service/internal/observability"
)

const checkTimeout = 2 * time.Second

// Check returns nil when the dependency is usable.
type Check func(ctx context.Context) error

// Server owns the gRPC health endpoint and the readiness checks behind it.
type Server struct {
	service string
	grpc    *grpc.Server
	status  *grpchealth.Server
	log     zerolog.Logger

	mu     sync.RWMutex
	checks map[string]Check
}

func NewServer(service string, log zerolog.Logger) *Server {
	srv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(observability.GRPCServerMetricsUnaryInterceptor()),
	)
	status := grpchealth.NewServer()
	healthpb.RegisterHealthServer(srv, status)

	s := &Server{
		service: service,
		grpc:    srv,
		status:  status,
		log:     log.With().Str("component", "health").Logger(),
		checks:  make(map[string]Check),
	}
	s.setServing(true)
	return s
}

// AddCheck registers a named dependency check.
func (s *Server) AddCheck(name string, check Check) {
	s.mu.Lock()
	s.checks[name] = check
	s.mu.Unlock()
}

// Check runs every registered check, publishes the combined status on the
// gRPC endpoint and returns per-check results.
func (s *Server) Check(ctx context.Context) (map[string]string, bool) {
	s.mu.RLock()
	checks := make(map[string]Check, len(s.checks))
	names := make([]string, 0, len(s.checks))
	for name, check := range s.checks {
		checks[name] = check
		names = append(names, name)
	}
	s.mu.RUnlock()
	sort.Strings(names)

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	results := make(map[string]string, len(names))
	healthy := true
	for _, name := range names {
		if err := checks[name](ctx); err != nil {
			s.log.Warn().Err(err).Str("check", name).Msg("health check failed")
			results[name] = err.Error()
			healthy = false
			continue
		}
		results[name] = "ok"
	}
	s.setServing(healthy)
	return results, healthy
}

// Watch re-runs the checks every interval until ctx ends, so gRPC watchers
// see status changes without anyone polling /healthz.
func (s *Server) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Check(ctx)
		}
	}
}

// Handler serves GET /healthz.
func (s *Server) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		results, ok := s.Check(c.Request.Context())
		if !ok {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "checks": results})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "checks": results})
	}
}

// Serve blocks serving the gRPC health protocol on lis.
func (s *Server) Serve(lis net.Listener) error {
	return s.grpc.Serve(lis)
}

// Stop reports NOT_SERVING to watchers and drains in-flight calls.
func (s *Server) Stop() {
	s.status.Shutdown()
	s.grpc.GracefulStop()
}

func (s *Server) setServing(ok bool) {
	status := healthpb.HealthCheckResponse_SERVING
	if !ok {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.status.SetServingStatus("", status)
	s.status.SetServingStatus(s.service, status)
}
