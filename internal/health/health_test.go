package health

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

func dialHealth(t *testing.T, s *Server) healthpb.HealthClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return healthpb.NewHealthClient(conn)
}

func TestGRPCStatusFollowsChecks(t *testing.T) {
	s := NewServer("messaging-service", zerolog.Nop())
	client := dialHealth(t, s)

	resp, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: "messaging-service"})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())

	s.AddCheck("postgres", func(context.Context) error { return errors.New("connection refused") })
	_, ok := s.Check(context.Background())
	require.False(t, ok)

	resp, err = client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: "messaging-service"})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())
}

func TestHTTPHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := NewServer("messaging-service", zerolog.Nop())
	healthy := true
	s.AddCheck("postgres", func(context.Context) error {
		if healthy {
			return nil
		}
		return errors.New("down")
	})

	r := gin.New()
	r.GET("/healthz", s.Handler())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"postgres":"ok"`)

	healthy = false
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "down")
}

func TestWatchStopsWithContext(t *testing.T) {
	s := NewServer("messaging-service", zerolog.Nop())
	calls := make(chan struct{}, 8)
	s.AddCheck("probe", func(context.Context) error {
		select {
		case calls <- struct{}{}:
		default:
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Watch(ctx, 5*time.Millisecond)
		close(done)
	}()

	<-calls
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watch did not return after cancel")
	}
}
