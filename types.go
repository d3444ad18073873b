package sparkwatch

import (
	"github.com/ashita-ai/sparkwatch/internal/config"
	"github.com/ashita-ai/sparkwatch/internal/model"
)

// Config is the runtime configuration accepted by WithConfig. Without it, New
// reads SPARKWATCH_* environment variables.
type Config = config.Config

// Snapshot payloads accepted by App.Dispatch. They mirror the Spark REST API
// shapes so a poller can forward responses unchanged.
type (
	Event              = model.Event
	EventKind          = model.EventKind
	Init               = model.Init
	SetStages          = model.SetStages
	SetExecutors       = model.SetExecutors
	SetSQL             = model.SetSQL
	SetSQLMetrics      = model.SetSQLMetrics
	TickDuration       = model.TickDuration
	SparkConfiguration = model.SparkConfiguration
	Attempt            = model.Attempt
	Stage              = model.Stage
	Executor           = model.Executor
	EnvironmentInfo    = model.EnvironmentInfo
	SQLExecution       = model.SQLExecution
	SQLNode            = model.SQLNode
	SQLMetric          = model.SQLMetric
	SQLNodeMetrics     = model.SQLNodeMetrics
)

// Derived state.
type (
	AppState = model.AppState
	SQLStore = model.SQLStore
	Alert    = model.Alert
)

// ErrMalformedSnapshot is wrapped by Dispatch when a payload violates its
// shape constraints. The state is left unchanged.
var ErrMalformedSnapshot = model.ErrMalformedSnapshot
