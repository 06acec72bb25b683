package observability

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// StateFunc returns a JSON-encodable view of the live client.
type StateFunc func() any

// HealthFunc reports whether the client currently holds a registered link.
type HealthFunc func() bool

// DebugServer exposes /metrics, /healthz and /state on a local address.
type DebugServer struct {
	addr   string
	logger zerolog.Logger
	engine *gin.Engine
	srv    *http.Server
}

// NewDebugServer builds the router. corsOrigins, when set, lets browser
// dashboards on those origins poll the endpoints.
func NewDebugServer(addr string, corsOrigins []string, logger zerolog.Logger, state StateFunc, healthy HealthFunc) *DebugServer {
	gin.SetMode(gin.ReleaseMode)
	RegisterMetrics()

	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(logger), RequestMetricsMiddleware("ircterm"))
	if origins := normalizeOrigins(corsOrigins); len(origins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins: origins,
			AllowMethods: []string{"GET"},
			AllowHeaders: []string{"Origin", "Content-Type"},
			MaxAge:       12 * time.Hour,
		}))
	}
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		if healthy != nil && !healthy() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "disconnected"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/state", func(c *gin.Context) {
		if state == nil {
			c.JSON(http.StatusOK, gin.H{})
			return
		}
		c.JSON(http.StatusOK, state())
	})

	return &DebugServer{
		addr:   addr,
		logger: logger,
		engine: r,
		srv:    &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second},
	}
}

// Handler is exposed for tests.
func (s *DebugServer) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is canceled.
func (s *DebugServer) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("debug server listening")

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(shutdownCtx)
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// normalizeOrigins keeps http(s) origins; cors.New panics on anything else.
func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if strings.HasPrefix(o, "http://") || strings.HasPrefix(o, "https://") {
			out = append(out, o)
		}
	}
	return out
}
