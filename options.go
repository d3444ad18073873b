package sparkwatch

import (
	"log/slog"
	"time"
)

// Option configures an App.
type Option func(*resolvedOptions)

// resolvedOptions holds all extension points after applying defaults.
// Unexported; callers use the With* functions.
type resolvedOptions struct {
	cfg           *Config
	port          int
	logger        *slog.Logger
	version       string
	alertHooks    []AlertHook
	sqlAggregator SQLAggregator
	middlewares   []Middleware
	now           func() time.Time
}

// WithConfig replaces environment loading with an explicit configuration.
// The configuration is still validated.
func WithConfig(cfg Config) Option {
	return func(o *resolvedOptions) { o.cfg = &cfg }
}

// WithPort overrides the TCP port from config (SPARKWATCH_PORT env var).
func WithPort(port int) Option {
	return func(o *resolvedOptions) { o.port = port }
}

// WithLogger sets the structured logger for the App.
// If not set, the default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithVersion sets the version string reported in the health endpoint and logs.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}

// WithAlertHook registers a hook notified whenever alerts are raised or cleared.
// Multiple hooks may be registered; all registered hooks receive every transition.
func WithAlertHook(hook AlertHook) Option {
	return func(o *resolvedOptions) { o.alertHooks = append(o.alertHooks, hook) }
}

// WithSQLAggregator replaces the built-in SQL calculator.
// Only the last call wins.
func WithSQLAggregator(agg SQLAggregator) Option {
	return func(o *resolvedOptions) { o.sqlAggregator = agg }
}

// WithMiddleware registers an outermost HTTP middleware.
// Multiple middlewares may be registered. Applied in registration order:
// the first-registered middleware is outermost (called first by every request).
func WithMiddleware(mw Middleware) Option {
	return func(o *resolvedOptions) { o.middlewares = append(o.middlewares, mw) }
}

// WithClock sets the wall clock used for Init defaults and duration ticks.
func WithClock(now func() time.Time) Option {
	return func(o *resolvedOptions) { o.now = now }
}
