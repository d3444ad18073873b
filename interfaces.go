package sparkwatch

import (
	"context"
	"net/http"
)

// AlertHook receives alert transitions after each dispatch. raised holds
// alerts that were not active before; cleared holds ids that no longer hold.
// Hooks run in registration order while the dispatch lock is held, so
// transitions arrive in commit order. A hook must not call back into the
// App's Dispatch or SetEnvironment. Failures are logged but do not fail the
// originating dispatch.
type AlertHook interface {
	AlertsChanged(ctx context.Context, raised []Alert, cleared []string) error
}

// AlertHookFunc adapts a function to AlertHook.
type AlertHookFunc func(ctx context.Context, raised []Alert, cleared []string) error

// AlertsChanged calls f.
func (f AlertHookFunc) AlertsChanged(ctx context.Context, raised []Alert, cleared []string) error {
	return f(ctx, raised, cleared)
}

// SQLAggregator derives the SQL store from a SetSQL list and merges per-node
// metrics into it. When provided via WithSQLAggregator it replaces the
// built-in calculator. Implementations must return prev (or store) unchanged
// when nothing differs, so the state root keeps its identity.
type SQLAggregator interface {
	Calculate(prev *SQLStore, sqls []SQLExecution) *SQLStore
	UpdateMetrics(store *SQLStore, sqlID string, metrics []SQLNodeMetrics) *SQLStore
}

// Middleware wraps the root HTTP handler.
// Applied outermost (before routing), so it sees all requests including /health.
// Multiple middlewares are applied in registration order (first-registered = outermost).
type Middleware func(http.Handler) http.Handler
