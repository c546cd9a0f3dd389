package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/arbbot/types"
)

// AttemptSource exposes recently recorded execution outcomes.
type AttemptSource interface {
	Recent() []*types.ExecutionOutcome
	Unknown() []*types.ExecutionOutcome
}

// Server exposes /metrics and /attempts.
type Server struct {
	e      *echo.Echo
	ln     net.Listener
	logger *zap.Logger
}

// NewServer binds addr and builds the endpoint server; nothing is served
// until Serve. attempts may be nil.
func NewServer(addr string, gatherer prometheus.Gatherer, attempts AttemptSource, logger *zap.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to bind metrics address %q: %w", addr, err)
	}

	e := echo.New()
	e.Listener = ln
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	e.Server.ReadTimeout = 15 * time.Second
	e.Server.WriteTimeout = 30 * time.Second
	e.Server.IdleTimeout = 60 * time.Second

	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/attempts", func(c echo.Context) error {
		out := []*types.ExecutionOutcome{}
		if attempts != nil {
			// Unknown outcomes need manual reconciliation; ?all=true lists
			// everything still in the history.
			if c.QueryParam("all") == "true" {
				out = append(out, attempts.Recent()...)
			} else {
				out = append(out, attempts.Unknown()...)
			}
		}
		c.Response().Header().Set("Cache-Control", "no-store")
		return c.JSON(http.StatusOK, out)
	})

	return &Server{e: e, ln: ln, logger: logger.Named("metrics")}, nil
}

// Addr returns the bound address, resolving a ":0" port.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Close releases the listener of a server that was never served.
func (s *Server) Close() error {
	if err := s.ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.e
}

// Serve accepts on the bound listener until ctx is cancelled and then shuts
// down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Serving metrics", zap.String("addr", s.Addr()))
		errCh <- s.e.Start(s.Addr())
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.e.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
