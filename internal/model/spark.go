package model

import (
	"fmt"
)

// DriverExecutorID is the fixed executor id Spark assigns to the driver.
const DriverExecutorID = "driver"

// StageStatusSkipped marks stages Spark never ran. They are excluded from
// every aggregate.
const StageStatusSkipped = "SKIPPED"

// SparkConfiguration mirrors the api/v1/applications/[app-id]/environment
// endpoint. Property sets arrive as ordered [key, value] pairs.
type SparkConfiguration struct {
	SparkProperties  [][2]string       `json:"sparkProperties"`
	SystemProperties [][2]string       `json:"systemProperties"`
	Runtime          map[string]string `json:"runtime"`
}

// SparkPropertiesMap flattens SparkProperties. Later duplicates win.
func (c SparkConfiguration) SparkPropertiesMap() map[string]string {
	return pairsToMap(c.SparkProperties)
}

// SystemPropertiesMap flattens SystemProperties. Later duplicates win.
func (c SparkConfiguration) SystemPropertiesMap() map[string]string {
	return pairsToMap(c.SystemProperties)
}

func pairsToMap(pairs [][2]string) map[string]string {
	m := make(map[string]string, len(pairs))
	for _, p := range pairs {
		m[p[0]] = p[1]
	}
	return m
}

// RunningEndTime is the EndTimeEpoch Spark reports for a running attempt.
const RunningEndTime int64 = -1

// Attempt is one application attempt as reported by the applications endpoint.
type Attempt struct {
	AppSparkVersion string `json:"appSparkVersion"`
	StartTimeEpoch  int64  `json:"startTimeEpoch"`
	EndTimeEpoch    int64  `json:"endTimeEpoch"` // -1 while the application is running
}

// Stage is one record from the stages endpoint. Only the fields the
// aggregates read are kept.
type Stage struct {
	StageID          int64  `json:"stageId"`
	Status           string `json:"status"`
	NumActiveTasks   int64  `json:"numActiveTasks"`
	NumTasks         int64  `json:"numTasks"`
	NumFailedTasks   int64  `json:"numFailedTasks"`
	NumCompleteTasks int64  `json:"numCompleteTasks"`
	InputBytes       int64  `json:"inputBytes"`
	OutputBytes      int64  `json:"outputBytes"`
	DiskBytesSpilled int64  `json:"diskBytesSpilled"`
	ExecutorRunTime  int64  `json:"executorRunTime"`
}

// Validate rejects records a well-behaved poller would never produce.
func (s Stage) Validate() error {
	if s.Status == "" {
		return fmt.Errorf("stage %d: status is required", s.StageID)
	}
	if s.NumActiveTasks < 0 || s.NumTasks < 0 || s.NumFailedTasks < 0 || s.NumCompleteTasks < 0 {
		return fmt.Errorf("stage %d: task counts must be non-negative", s.StageID)
	}
	if s.InputBytes < 0 || s.OutputBytes < 0 || s.DiskBytesSpilled < 0 || s.ExecutorRunTime < 0 {
		return fmt.Errorf("stage %d: byte and time totals must be non-negative", s.StageID)
	}
	return nil
}

// Executor is one record from the allexecutors endpoint, already shaped by
// the poller: HeapMemoryUsageBytes is the peak JVM heap it observed.
type Executor struct {
	ID                   string `json:"id"`
	IsActive             bool   `json:"isActive"`
	TotalDuration        int64  `json:"totalDuration"`
	MaxTasks             int64  `json:"maxTasks"`
	TotalCores           int64  `json:"totalCores"`
	HeapMemoryUsageBytes int64  `json:"heapMemoryUsageBytes"`
}

// IsDriver reports whether the record describes the driver process.
func (e Executor) IsDriver() bool {
	return e.ID == DriverExecutorID
}

// Validate rejects records a well-behaved poller would never produce.
func (e Executor) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("executor: id is required")
	}
	if e.TotalDuration < 0 || e.MaxTasks < 0 || e.TotalCores < 0 || e.HeapMemoryUsageBytes < 0 {
		return fmt.Errorf("executor %s: counters must be non-negative", e.ID)
	}
	return nil
}

// FindDriver returns the driver record, if present.
func FindDriver(executors []Executor) (Executor, bool) {
	for _, e := range executors {
		if e.IsDriver() {
			return e, true
		}
	}
	return Executor{}, false
}

// EnvironmentInfo carries facts the poller derives outside the REST API.
type EnvironmentInfo struct {
	DriverXmxBytes *int64 `json:"driverXmxBytes,omitempty"`
}
