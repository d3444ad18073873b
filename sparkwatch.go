// Package sparkwatch monitors a running Apache Spark application. It folds
// snapshots from the Spark REST API into an immutable state tree, raises
// memory alerts, and serves the result over HTTP, SSE and MCP.
package sparkwatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/ashita-ai/sparkwatch/api"
	"github.com/ashita-ai/sparkwatch/internal/config"
	"github.com/ashita-ai/sparkwatch/internal/mcp"
	"github.com/ashita-ai/sparkwatch/internal/monitor"
	"github.com/ashita-ai/sparkwatch/internal/ratelimit"
	"github.com/ashita-ai/sparkwatch/internal/reducer"
	"github.com/ashita-ai/sparkwatch/internal/server"
	"github.com/ashita-ai/sparkwatch/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

// App is a fully wired sparkwatch instance.
type App struct {
	cfg          config.Config
	monitor      *monitor.Monitor
	srv          *server.Server
	limiter      ratelimit.Limiter
	detach       func()
	otelShutdown telemetry.Shutdown
	now          func() time.Time
	logger       *slog.Logger
	version      string
}

// New wires the monitor, HTTP server and optional MCP endpoint.
// It does NOT start any goroutines or accept HTTP connections; call Run().
func New(opts ...Option) (*App, error) {
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	var cfg config.Config
	if o.cfg != nil {
		cfg = *o.cfg
	} else {
		// Load .env file if present (non-fatal; production won't have one).
		_ = godotenv.Load()
		loaded, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	if o.port != 0 {
		cfg.Port = o.port
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	version := o.version
	if version == "" {
		version = "dev"
	}
	now := o.now
	if now == nil {
		now = time.Now
	}

	logger.Info("sparkwatch starting", "version", version, "port", cfg.Port)

	otelShutdown, err := telemetry.Init(context.Background(), telemetry.Config{
		Endpoint:    cfg.OTELEndpoint,
		ServiceName: cfg.ServiceName,
		Version:     version,
		Insecure:    cfg.OTELInsecure,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	hooks := make([]monitor.AlertHook, 0, len(o.alertHooks))
	for _, h := range o.alertHooks {
		hooks = append(hooks, h)
	}
	mon := monitor.New(reducer.New(o.sqlAggregator, logger), logger, hooks...)

	broker := server.NewBroker(logger)
	detach := broker.Attach(mon)

	var limiter ratelimit.Limiter = ratelimit.NoopLimiter{}
	if cfg.RateLimitEnabled {
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		logger.Info("rate limiting enabled", "rps", cfg.RateLimitRPS, "burst", cfg.RateLimitBurst)
	}

	srvCfg := server.ServerConfig{
		Monitor:             mon,
		Logger:              logger,
		Limiter:             limiter,
		Broker:              broker,
		Now:                 now,
		Port:                cfg.Port,
		ReadTimeout:         cfg.ReadTimeout,
		WriteTimeout:        cfg.WriteTimeout,
		Version:             version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		OpenAPISpec:         api.OpenAPISpec,
	}
	if cfg.MCPEnabled {
		srvCfg.MCPServer = mcp.New(mon, logger, version).MCPServer()
	}
	for _, mw := range o.middlewares {
		srvCfg.Middlewares = append(srvCfg.Middlewares, mw)
	}

	return &App{
		cfg:          cfg,
		monitor:      mon,
		srv:          server.New(srvCfg),
		limiter:      limiter,
		detach:       detach,
		otelShutdown: otelShutdown,
		now:          now,
		logger:       logger,
		version:      version,
	}, nil
}

// Handler returns the root HTTP handler, middleware included.
func (a *App) Handler() http.Handler { return a.srv.Handler() }

// Dispatch folds ev into the state as if it had arrived over HTTP. Pointer
// variants such as *Init are accepted. A malformed event, or a nil pointer,
// returns an error wrapping ErrMalformedSnapshot. The returned bool reports
// whether the state tree changed.
func (a *App) Dispatch(ctx context.Context, ev Event) (bool, error) {
	res, err := a.monitor.Dispatch(ctx, ev)
	if err != nil {
		return false, err
	}
	return res.Changed, nil
}

// SetEnvironment records driver environment info for the driver memory rule.
func (a *App) SetEnvironment(ctx context.Context, env EnvironmentInfo) {
	a.monitor.SetEnvironment(ctx, env)
}

// State returns the current state root. Callers must not mutate it.
func (a *App) State() *AppState { return a.monitor.State() }

// Alerts returns the active alerts.
func (a *App) Alerts() []Alert { return a.monitor.Alerts() }

// Run starts the HTTP server and the duration clock, then blocks until ctx
// is cancelled or the server fails. Shutdown runs before Run returns.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := a.srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return a.monitor.RunClock(gctx, a.cfg.TickInterval, a.now)
	})
	g.Go(func() error {
		<-gctx.Done()
		return a.shutdown()
	})

	return g.Wait()
}

// shutdown drains HTTP, then releases the limiter, broker and OTEL providers.
func (a *App) shutdown() error {
	a.logger.Info("sparkwatch shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.srv.Shutdown(ctx); err != nil {
		a.logger.Error("http shutdown error", "error", err)
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	a.detach()
	_ = a.limiter.Close()
	if err := a.otelShutdown(ctx); err != nil {
		a.logger.Warn("telemetry shutdown error", "error", err)
	}

	a.logger.Info("sparkwatch stopped")
	return errors.Join(errs...)
}
