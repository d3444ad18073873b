package model

import (
	"errors"
	"fmt"
	"reflect"
)

// ErrMalformedSnapshot is returned when an event carries a snapshot the
// poller should have rejected. The state tree is left untouched.
var ErrMalformedSnapshot = errors.New("malformed snapshot")

// EventKind identifies an Event variant.
type EventKind string

const (
	EventInit          EventKind = "init"
	EventSetStages     EventKind = "set_stages"
	EventSetExecutors  EventKind = "set_executors"
	EventSetSQL        EventKind = "set_sql"
	EventSetSQLMetrics EventKind = "set_sql_metrics"
	EventTickDuration  EventKind = "tick_duration"
)

// Event is one input to the reducer. Exactly one variant is handled per
// dispatch; kinds the reducer does not know are ignored.
type Event interface {
	Kind() EventKind
	Validate() error
}

// Init starts (or restarts) monitoring of an application.
type Init struct {
	Config      *SparkConfiguration `json:"config"`
	AppID       string              `json:"app_id"`
	Attempt     Attempt             `json:"attempt"`
	CurrentTime int64               `json:"current_time"` // epoch ms
}

func (Init) Kind() EventKind { return EventInit }

func (e Init) Validate() error {
	if e.Config == nil {
		return malformed(e, "config is required")
	}
	if e.AppID == "" {
		return malformed(e, "app_id is required")
	}
	if e.Attempt.StartTimeEpoch <= 0 {
		return malformed(e, "attempt start time is required")
	}
	if e.Attempt.EndTimeEpoch != RunningEndTime && e.Attempt.EndTimeEpoch < e.Attempt.StartTimeEpoch {
		return malformed(e, fmt.Sprintf("attempt end time %d is before start time %d (use -1 while running)",
			e.Attempt.EndTimeEpoch, e.Attempt.StartTimeEpoch))
	}
	return nil
}

// SetStages carries the latest full stage list.
type SetStages struct {
	Stages []Stage `json:"stages"`
}

func (SetStages) Kind() EventKind { return EventSetStages }

func (e SetStages) Validate() error {
	for _, s := range e.Stages {
		if err := s.Validate(); err != nil {
			return malformed(e, err.Error())
		}
	}
	return nil
}

// SetExecutors carries the latest full executor list, driver included.
type SetExecutors struct {
	Executors []Executor `json:"executors"`
}

func (SetExecutors) Kind() EventKind { return EventSetExecutors }

func (e SetExecutors) Validate() error {
	drivers := 0
	for _, ex := range e.Executors {
		if err := ex.Validate(); err != nil {
			return malformed(e, err.Error())
		}
		if ex.IsDriver() {
			drivers++
		}
	}
	if drivers != 1 {
		return malformed(e, fmt.Sprintf("expected exactly one driver record, got %d", drivers))
	}
	return nil
}

// SetSQL carries the latest SQL execution list.
type SetSQL struct {
	SQLs []SQLExecution `json:"sqls"`
}

func (SetSQL) Kind() EventKind { return EventSetSQL }

func (e SetSQL) Validate() error {
	for _, q := range e.SQLs {
		if err := q.Validate(); err != nil {
			return malformed(e, err.Error())
		}
	}
	return nil
}

// SetSQLMetrics refreshes node metrics of one query.
type SetSQLMetrics struct {
	SQLID   string           `json:"sql_id"`
	Metrics []SQLNodeMetrics `json:"metrics"`
}

func (SetSQLMetrics) Kind() EventKind { return EventSetSQLMetrics }

func (e SetSQLMetrics) Validate() error {
	if e.SQLID == "" {
		return malformed(e, "sql_id is required")
	}
	return nil
}

// TickDuration recomputes the run duration against CurrentTime.
type TickDuration struct {
	CurrentTime int64 `json:"current_time"` // epoch ms
}

func (TickDuration) Kind() EventKind { return EventTickDuration }

func (TickDuration) Validate() error { return nil }

// Normalize returns ev with pointer variants dereferenced, so &Init{} is
// handled like Init{}. A nil event or a nil pointer is malformed.
func Normalize(ev Event) (Event, error) {
	switch e := ev.(type) {
	case nil:
		return nil, fmt.Errorf("%w: nil event", ErrMalformedSnapshot)
	case *Init:
		return deref(e)
	case *SetStages:
		return deref(e)
	case *SetExecutors:
		return deref(e)
	case *SetSQL:
		return deref(e)
	case *SetSQLMetrics:
		return deref(e)
	case *TickDuration:
		return deref(e)
	}
	if v := reflect.ValueOf(ev); v.Kind() == reflect.Pointer && v.IsNil() {
		return nil, fmt.Errorf("%w: nil %T", ErrMalformedSnapshot, ev)
	}
	return ev, nil
}

func deref[E Event](e *E) (Event, error) {
	if e == nil {
		return nil, fmt.Errorf("%w: nil %T", ErrMalformedSnapshot, e)
	}
	return *e, nil
}

func malformed(e Event, msg string) error {
	return fmt.Errorf("%w: %s: %s", ErrMalformedSnapshot, e.Kind(), msg)
}
