// Package reducer is the state machine that folds snapshot events into the
// application state tree.
//
// Reduce is pure and synchronous: it never mutates the state it is given and
// returns the very same pointer when an event changes nothing. Changed
// subtrees get new pointers; untouched ones are shared with the previous root.
package reducer

import (
	"fmt"
	"log/slog"

	"github.com/ashita-ai/sparkwatch/internal/model"
	"github.com/ashita-ai/sparkwatch/internal/service/aggregate"
	"github.com/ashita-ai/sparkwatch/internal/service/sqlstate"
)

// Reducer applies events to AppState.
type Reducer struct {
	sql    sqlstate.Aggregator
	logger *slog.Logger
}

// New creates a Reducer. A nil aggregator selects sqlstate.Calculator and a
// nil logger selects slog.Default.
func New(sql sqlstate.Aggregator, logger *slog.Logger) *Reducer {
	if sql == nil {
		sql = sqlstate.Calculator{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reducer{sql: sql, logger: logger}
}

type applyFunc func(r *Reducer, state *model.AppState, ev model.Event) (*model.AppState, error)

// transition describes how one event kind is handled.
type transition struct {
	// requiresInit events arriving before Init are dropped as no-ops. Out of
	// order delivery is normal while the poller starts up.
	requiresInit bool
	apply        applyFunc
}

var transitions = map[model.EventKind]transition{
	model.EventInit:          {requiresInit: false, apply: handle((*Reducer).initialize)},
	model.EventSetStages:     {requiresInit: true, apply: handle((*Reducer).setStages)},
	model.EventSetExecutors:  {requiresInit: true, apply: handle((*Reducer).setExecutors)},
	model.EventSetSQL:        {requiresInit: false, apply: handle((*Reducer).setSQL)},
	model.EventSetSQLMetrics: {requiresInit: true, apply: handle((*Reducer).setSQLMetrics)},
	model.EventTickDuration:  {requiresInit: true, apply: handle((*Reducer).tickDuration)},
}

// handle adapts a typed handler to applyFunc. Apply normalizes pointer
// variants first, so a mismatch means a foreign type reused a known kind;
// it falls through unchanged.
func handle[E model.Event](fn func(r *Reducer, state *model.AppState, ev E) (*model.AppState, error)) applyFunc {
	return func(r *Reducer, state *model.AppState, ev model.Event) (*model.AppState, error) {
		e, ok := ev.(E)
		if !ok {
			return state, nil
		}
		return fn(r, state, e)
	}
}

// RequiresInit reports whether events of kind are ignored before Init.
func RequiresInit(kind model.EventKind) bool {
	return transitions[kind].requiresInit
}

// Apply folds ev into state. Pointer variants are handled like values.
// Unknown kinds and premature events return state unchanged with a nil
// error. A malformed event, including a nil pointer variant, returns state
// unchanged and an error wrapping model.ErrMalformedSnapshot.
func (r *Reducer) Apply(state *model.AppState, ev model.Event) (*model.AppState, error) {
	if ev == nil {
		return state, nil
	}
	ev, err := model.Normalize(ev)
	if err != nil {
		return state, err
	}
	kind := ev.Kind()
	t, ok := transitions[kind]
	if !ok {
		r.logger.Debug("reducer: unknown event ignored", "kind", kind)
		return state, nil
	}
	if err := ev.Validate(); err != nil {
		return state, err
	}
	if t.requiresInit && (state == nil || !state.Initialized) {
		r.logger.Debug("reducer: event before init ignored", "kind", kind)
		return state, nil
	}

	next, err := t.apply(r, state, ev)
	if err != nil {
		return state, err
	}
	return next, nil
}

// Reduce is Apply for callers that only want the next state. Rejected
// events are logged and leave state unchanged.
func (r *Reducer) Reduce(state *model.AppState, ev model.Event) *model.AppState {
	next, err := r.Apply(state, ev)
	if err != nil {
		r.logger.Warn("reducer: event rejected", "error", err)
		return state
	}
	return next
}

// initialize always builds a fresh tree; there is nothing to memoize against.
func (r *Reducer) initialize(_ *model.AppState, e model.Init) (*model.AppState, error) {
	appName, cfg, err := aggregate.Config(*e.Config)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrMalformedSnapshot, err)
	}
	meta := aggregate.RunMetadata(appName, e.AppID, e.Attempt)

	r.logger.Info("reducer: application initialized",
		"app_id", meta.AppID, "app_name", meta.AppName, "spark_version", meta.SparkVersion,
		"running", meta.Running())

	return &model.AppState{
		Initialized: true,
		RunMetadata: meta,
		Config:      cfg,
		Status:      &model.StatusStore{Duration: aggregate.Duration(meta, e.CurrentTime)},
	}, nil
}

func (r *Reducer) setStages(state *model.AppState, e model.SetStages) (*model.AppState, error) {
	stages := aggregate.StageSummary(state.Status.Stages, e.Stages)
	if stages == state.Status.Stages {
		return state, nil
	}
	return withStatus(state, func(s *model.StatusStore) { s.Stages = stages }), nil
}

// setExecutors reads the stage summary currently in the tree for the
// activity numerator, so it sees the latest SetStages.
func (r *Reducer) setExecutors(state *model.AppState, e model.SetExecutors) (*model.AppState, error) {
	executors := aggregate.ExecutorStatus(state.Status.Executors, state.Status.Stages, e.Executors, state.Config.ExecutorMemoryBytes)
	if executors == state.Status.Executors {
		return state, nil
	}
	return withStatus(state, func(s *model.StatusStore) { s.Executors = executors }), nil
}

func (r *Reducer) setSQL(state *model.AppState, e model.SetSQL) (*model.AppState, error) {
	var prev *model.SQLStore
	if state != nil {
		prev = state.SQL
	}
	sql := r.sql.Calculate(prev, e.SQLs)
	if sql == prev {
		return state, nil
	}
	next := model.AppState{}
	if state != nil {
		next = *state
	}
	next.SQL = sql
	return &next, nil
}

func (r *Reducer) setSQLMetrics(state *model.AppState, e model.SetSQLMetrics) (*model.AppState, error) {
	if state.SQL == nil {
		r.logger.Debug("reducer: sql metrics before sql ignored", "sql_id", e.SQLID)
		return state, nil
	}
	sql := r.sql.UpdateMetrics(state.SQL, e.SQLID, e.Metrics)
	if sql == state.SQL {
		return state, nil
	}
	next := *state
	next.SQL = sql
	return &next, nil
}

// tickDuration is the only transition expected to change the root on every
// call while the application runs. Once the run has an end time the duration
// is fixed and the state is returned as is.
func (r *Reducer) tickDuration(state *model.AppState, e model.TickDuration) (*model.AppState, error) {
	d := aggregate.Duration(state.RunMetadata, e.CurrentTime)
	if d == state.Status.Duration {
		return state, nil
	}
	return withStatus(state, func(s *model.StatusStore) { s.Duration = d }), nil
}

// withStatus copies the root and the status node, applies edit to the copy
// and leaves every other subtree shared.
func withStatus(state *model.AppState, edit func(*model.StatusStore)) *model.AppState {
	status := *state.Status
	edit(&status)
	next := *state
	next.Status = &status
	return &next
}
