// Package server is the optional debug introspection HTTP server
// SPEC_FULL.md §12 describes: /healthz, /status, /metrics. It never
// mutates the graph, is off by default, and is only ever wired up by
// cmd/worldforge when config.Config.MetricsAddr is set.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"

	"github.com/chris-arsenault/penguin-tales-sub002/domain/graph"
	"github.com/chris-arsenault/penguin-tales-sub002/internal/config"
	"github.com/chris-arsenault/penguin-tales-sub002/internal/version"
	"github.com/chris-arsenault/penguin-tales-sub002/pkg/logger"
	"github.com/chris-arsenault/penguin-tales-sub002/pkg/tracing"
)

var Module = fx.Module("server",
	fx.Provide(NewEcho),
	fx.Invoke(StartServer),
)

// EchoParams are the dependencies for creating the debug server's Echo
// instance.
type EchoParams struct {
	fx.In

	Config *config.Config
	Log    *slog.Logger
	Store  *graph.Store
}

// NewEcho builds the debug server's router. Called unconditionally by the
// fx graph; StartServer is what actually decides whether to listen.
func NewEcho(p EchoParams) *echo.Echo {
	log := p.Log.With(logger.Scope("server"))

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	tracing.RegisterEchoMiddleware(e, p.Config)

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			return c.Request().URL.Path == "/healthz"
		},
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Info("debug server request",
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			)
			return nil
		},
	}))

	e.GET("/healthz", handleHealthz)
	e.GET("/status", handleStatus(p.Store))
	e.GET("/version", handleVersion)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return e
}

func handleHealthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func handleVersion(c echo.Context) error {
	return c.JSON(http.StatusOK, version.Info())
}

// statusResponse is the /status JSON shape: current tick/epoch/pressures/
// entity counts, the read-only snapshot SPEC_FULL.md §12 names.
type statusResponse struct {
	Tick               int                `json:"tick"`
	Epoch              int                `json:"epoch"`
	CurrentEraID       string             `json:"currentEraId"`
	Pressures          map[string]float64 `json:"pressures"`
	TotalEntities      int                `json:"totalEntities"`
	TotalRelationships int                `json:"totalRelationships"`
}

func handleStatus(store *graph.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, statusResponse{
			Tick:               store.Tick(),
			Epoch:              store.Epoch(),
			CurrentEraID:       store.CurrentEra(),
			Pressures:          store.Pressures(),
			TotalEntities:      store.TotalEntities(),
			TotalRelationships: store.TotalRelationships(),
		})
	}
}

// StartServer starts the debug server only when cfg.MetricsAddr is
// configured. Empty means disabled — the common case, per SPEC_FULL.md
// §12's "off by default".
func StartServer(lc fx.Lifecycle, e *echo.Echo, cfg *config.Config, log *slog.Logger) {
	if cfg.MetricsAddr == "" {
		return
	}
	log = log.With(logger.Scope("server"))

	httpServer := &http.Server{
		Addr:         cfg.MetricsAddr,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("starting debug introspection server", slog.String("address", httpServer.Addr))
			go func() {
				if err := e.StartServer(httpServer); err != nil && err != http.ErrServerClosed {
					log.Error("debug server error", logger.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("shutting down debug introspection server")
			shutdownCtx, cancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
			defer cancel()
			if err := e.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("internal/server: shutdown: %w", err)
			}
			return nil
		},
	})
}
