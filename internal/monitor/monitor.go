// Package monitor owns the live application state. It serializes events
// through the reducer, re-evaluates alerts after every dispatch and fans the
// result out to listeners (SSE, MCP) and alert hooks.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ashita-ai/sparkwatch/internal/model"
	"github.com/ashita-ai/sparkwatch/internal/reducer"
	"github.com/ashita-ai/sparkwatch/internal/service/alerts"
	"github.com/ashita-ai/sparkwatch/internal/telemetry"
)

// KindEnvironment labels changes caused by SetEnvironment. It is not a
// reducer event.
const KindEnvironment model.EventKind = "set_environment"

// Snapshot is an immutable view of everything the monitor holds.
type Snapshot struct {
	State       *model.AppState
	Alerts      []model.Alert
	Environment *model.EnvironmentInfo
	Executors   []model.Executor
}

// Change describes the effect of one dispatch.
type Change struct {
	Kind    model.EventKind
	Prev    *model.AppState
	State   *model.AppState
	Alerts  []model.Alert
	Raised  []model.Alert
	Cleared []string
}

// StateChanged reports whether the dispatch produced a new root.
func (c Change) StateChanged() bool { return c.Prev != c.State }

// AlertsChanged reports whether any alert was raised or cleared.
func (c Change) AlertsChanged() bool { return len(c.Raised) > 0 || len(c.Cleared) > 0 }

// Result is returned from Dispatch.
type Result struct {
	Kind    model.EventKind
	Changed bool
	Raised  []model.Alert
}

// AlertHook is notified after a dispatch raises or clears alerts. Hooks run
// in dispatch order while the dispatch lock is held, so a clear is never
// delivered before its raise. They must not call back into the Monitor.
// Errors are logged and never fail the dispatch.
type AlertHook interface {
	AlertsChanged(ctx context.Context, raised []model.Alert, cleared []string) error
}

// Listener receives every Change in dispatch order. It runs while the
// dispatch lock is held and must not block or call back into the Monitor.
type Listener func(Change)

// Monitor is safe for concurrent use. Reads are lock-free.
type Monitor struct {
	reducer *reducer.Reducer
	logger  *slog.Logger

	mu        sync.Mutex // serializes Dispatch and SetEnvironment
	snapshot  atomic.Pointer[Snapshot]
	hooks     []AlertHook
	listeners map[int]Listener
	nextID    int
	lmu       sync.RWMutex

	dispatched metric.Int64Counter
	ignored    metric.Int64Counter
	rejected   metric.Int64Counter
	raised     metric.Int64Counter
}

// New creates a Monitor with an empty, uninitialized state.
func New(r *reducer.Reducer, logger *slog.Logger, hooks ...AlertHook) *Monitor {
	if r == nil {
		r = reducer.New(nil, logger)
	}
	if logger == nil {
		logger = slog.Default()
	}
	m := &Monitor{
		reducer:   r,
		logger:    logger,
		hooks:     hooks,
		listeners: make(map[int]Listener),
	}
	m.snapshot.Store(&Snapshot{State: &model.AppState{}})
	m.registerMetrics()
	return m
}

func (m *Monitor) registerMetrics() {
	meter := telemetry.Meter("sparkwatch/monitor")
	m.dispatched, _ = meter.Int64Counter("sparkwatch.events.dispatched",
		metric.WithDescription("Events folded into the state tree"),
	)
	m.ignored, _ = meter.Int64Counter("sparkwatch.events.ignored",
		metric.WithDescription("Events that left the state tree unchanged"),
	)
	m.rejected, _ = meter.Int64Counter("sparkwatch.events.rejected",
		metric.WithDescription("Events rejected as malformed"),
	)
	m.raised, _ = meter.Int64Counter("sparkwatch.alerts.raised",
		metric.WithDescription("Alerts newly raised by an evaluation pass"),
	)
	_, _ = meter.Int64ObservableGauge("sparkwatch.alerts.active",
		metric.WithDescription("Alerts currently holding"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(len(m.snapshot.Load().Alerts)))
			return nil
		}),
	)
	_, _ = meter.Int64ObservableGauge("sparkwatch.app.duration_ms",
		metric.WithDescription("Duration of the monitored application"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			if s := m.snapshot.Load().State; s.Status != nil {
				o.Observe(s.Status.Duration)
			}
			return nil
		}),
	)
	_, _ = meter.Int64ObservableGauge("sparkwatch.stages.active_tasks",
		metric.WithDescription("Tasks running across active stages"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			if s := m.snapshot.Load().State; s.Status != nil && s.Status.Stages != nil {
				o.Observe(s.Status.Stages.TotalActiveTasks)
			}
			return nil
		}),
	)
	_, _ = meter.Float64ObservableGauge("sparkwatch.executors.activity_rate",
		metric.WithDescription("Share of executor core time spent running tasks, in percent"),
		metric.WithFloat64Callback(func(_ context.Context, o metric.Float64Observer) error {
			if s := m.snapshot.Load().State; s.Status != nil && s.Status.Executors != nil {
				o.Observe(s.Status.Executors.ActivityRate)
			}
			return nil
		}),
	)
}

// Snapshot returns the current view. Callers must not mutate it.
func (m *Monitor) Snapshot() *Snapshot { return m.snapshot.Load() }

// State returns the current state root.
func (m *Monitor) State() *model.AppState { return m.snapshot.Load().State }

// Alerts returns the alerts from the latest evaluation pass.
func (m *Monitor) Alerts() []model.Alert { return m.snapshot.Load().Alerts }

// Environment returns the last environment info, or nil.
func (m *Monitor) Environment() *model.EnvironmentInfo { return m.snapshot.Load().Environment }

// OnChange registers l and returns a function that removes it.
func (m *Monitor) OnChange(l Listener) (remove func()) {
	m.lmu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = l
	m.lmu.Unlock()
	return func() {
		m.lmu.Lock()
		delete(m.listeners, id)
		m.lmu.Unlock()
	}
}

// Dispatch folds ev into the state, re-evaluates alerts and notifies
// listeners and hooks. Pointer variants are accepted. A malformed event
// returns an error wrapping model.ErrMalformedSnapshot and changes nothing.
func (m *Monitor) Dispatch(ctx context.Context, ev model.Event) (Result, error) {
	ev, err := model.Normalize(ev)
	if err != nil {
		m.rejected.Add(ctx, 1)
		return Result{}, fmt.Errorf("monitor: dispatch: %w", err)
	}
	kind := ev.Kind()
	attrs := metric.WithAttributes(attribute.String("kind", string(kind)))

	m.mu.Lock()
	defer m.mu.Unlock()

	cur := m.snapshot.Load()
	next, err := m.reducer.Apply(cur.State, ev)
	if err != nil {
		m.rejected.Add(ctx, 1, attrs)
		m.logger.Warn("monitor: event rejected", "kind", kind, "error", err)
		return Result{Kind: kind}, fmt.Errorf("monitor: dispatch %s: %w", kind, err)
	}

	executors := cur.Executors
	switch e := ev.(type) {
	case model.Init:
		executors = nil
	case model.SetExecutors:
		if next.Initialized {
			executors = e.Executors
		}
	}

	change := m.commit(cur, next, cur.Environment, executors, kind)

	m.dispatched.Add(ctx, 1, attrs)
	if !change.StateChanged() {
		m.ignored.Add(ctx, 1, attrs)
	}
	m.runHooks(ctx, change)

	return Result{Kind: kind, Changed: change.StateChanged(), Raised: change.Raised}, nil
}

// SetEnvironment records driver environment info, which only feeds the
// driver memory rule. Alerts are re-evaluated immediately.
func (m *Monitor) SetEnvironment(ctx context.Context, env model.EnvironmentInfo) Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur := m.snapshot.Load()
	change := m.commit(cur, cur.State, &env, cur.Executors, KindEnvironment)
	m.runHooks(ctx, change)
	return Result{Kind: KindEnvironment, Changed: change.AlertsChanged(), Raised: change.Raised}
}

// commit must be called with m.mu held.
func (m *Monitor) commit(cur *Snapshot, state *model.AppState, env *model.EnvironmentInfo, executors []model.Executor, kind model.EventKind) Change {
	evaluated := alerts.EvaluateMemoryAlerts(state.Status, state.Config, env, executors)
	raised, cleared := alerts.Diff(cur.Alerts, evaluated)

	m.snapshot.Store(&Snapshot{
		State:       state,
		Alerts:      evaluated,
		Environment: env,
		Executors:   executors,
	})

	change := Change{
		Kind:    kind,
		Prev:    cur.State,
		State:   state,
		Alerts:  evaluated,
		Raised:  raised,
		Cleared: cleared,
	}

	m.lmu.RLock()
	for _, l := range m.listeners {
		l(change)
	}
	m.lmu.RUnlock()
	return change
}

// runHooks must be called with m.mu held.
func (m *Monitor) runHooks(ctx context.Context, c Change) {
	if !c.AlertsChanged() {
		return
	}
	if len(c.Raised) > 0 {
		m.raised.Add(ctx, int64(len(c.Raised)))
	}
	for _, a := range c.Raised {
		m.logger.Info("monitor: alert raised", "id", a.ID, "type", a.Type, "title", a.Title)
	}
	for _, id := range c.Cleared {
		m.logger.Info("monitor: alert cleared", "id", id)
	}
	for _, h := range m.hooks {
		if err := h.AlertsChanged(ctx, c.Raised, c.Cleared); err != nil {
			m.logger.Warn("monitor: alert hook failed", "error", err)
		}
	}
}
