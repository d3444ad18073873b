package model

// StageStatus is the coarse activity label derived from active task count.
type StageStatus string

const (
	StageStatusIdle    StageStatus = "idle"
	StageStatusWorking StageStatus = "working"
)

// AppState is the root of the derived state tree. Every transition produces
// a new root; unchanged subtrees keep their previous pointers so readers can
// detect "no change" by identity. Never mutate a published AppState.
//
// RunMetadata, Config and Status are non-nil iff Initialized.
type AppState struct {
	Initialized bool         `json:"initialized"`
	RunMetadata *RunMetadata `json:"run_metadata,omitempty"`
	Config      *ConfigStore `json:"config,omitempty"`
	Status      *StatusStore `json:"status,omitempty"`
	SQL         *SQLStore    `json:"sql,omitempty"`
}

// RunMetadata is created once, on Init, and never mutated afterwards.
type RunMetadata struct {
	AppID        string `json:"app_id"`
	AppName      string `json:"app_name"`
	SparkVersion string `json:"spark_version"`
	StartTime    int64  `json:"start_time"`
	EndTime      *int64 `json:"end_time,omitempty"` // nil while running
}

// Running reports whether the application has not finished yet.
func (m *RunMetadata) Running() bool {
	return m.EndTime == nil
}

// ConfigStore is the flattened configuration pulled from the environment
// snapshot, plus the resource sizes the alert rules need.
type ConfigStore struct {
	Properties           map[string]string `json:"properties"`
	ExecutorMemoryBytes  int64             `json:"executor_memory_bytes"`
	ExecutorMemoryString string            `json:"executor_memory"`
	DriverMemoryBytes    int64             `json:"driver_memory_bytes"`
}

// StatusStore holds the live aggregates.
type StatusStore struct {
	Duration  int64           `json:"duration"` // ms
	Stages    *StageSummary   `json:"stages,omitempty"`
	Executors *ExecutorStatus `json:"executors,omitempty"`
}

// StageSummary aggregates every non-skipped stage.
type StageSummary struct {
	TotalActiveTasks    int64       `json:"total_active_tasks"`
	TotalPendingTasks   int64       `json:"total_pending_tasks"`
	TotalInputBytes     int64       `json:"total_input_bytes"`
	TotalOutputBytes    int64       `json:"total_output_bytes"`
	TotalDiskSpillBytes int64       `json:"total_disk_spill_bytes"`
	TotalInput          string      `json:"total_input"`
	TotalOutput         string      `json:"total_output"`
	TotalDiskSpill      string      `json:"total_disk_spill"`
	TotalTaskTimeMs     int64       `json:"total_task_time_ms"`
	Status              StageStatus `json:"status"`
}

// ExecutorStatus aggregates executor records.
type ExecutorStatus struct {
	NumOfExecutors int     `json:"num_of_executors"`
	TotalCoreHour  float64 `json:"total_core_hour"`
	ActivityRate   float64 `json:"activity_rate"` // percentage in [0, 100]

	MaxExecutorMemoryBytes      int64   `json:"max_executor_memory_bytes"`
	MaxExecutorMemoryPercentage float64 `json:"max_executor_memory_percentage"`
}
