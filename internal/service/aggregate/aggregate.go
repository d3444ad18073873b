// Package aggregate computes the derived summaries of the state tree from raw
// Spark snapshots. Every function is pure. Results go through memo.Keep so a
// recomputation that changes nothing hands back the previous pointer.
package aggregate

import (
	"fmt"
	"math"

	"github.com/ashita-ai/sparkwatch/internal/format"
	"github.com/ashita-ai/sparkwatch/internal/memo"
	"github.com/ashita-ai/sparkwatch/internal/model"
)

// Configuration keys copied into ConfigStore.Properties.
const (
	KeyAppName        = "spark.app.name"
	KeyAppID          = "spark.app.id"
	KeyMaster         = "spark.master"
	KeyExecutorMemory = "spark.executor.memory"
	KeyDriverMemory   = "spark.driver.memory"
	KeyJavaCommand    = "sun.java.command"
	KeyJavaVersion    = "javaVersion"
	KeyScalaVersion   = "scalaVersion"
)

// defaultMemory is Spark's default for both driver and executor memory.
const defaultMemory = "1g"

// RunMetadata builds the immutable run metadata. An end time of -1 means the
// application is still running and is stored as nil.
func RunMetadata(appName, appID string, attempt model.Attempt) *model.RunMetadata {
	var endTime *int64
	if attempt.EndTimeEpoch != model.RunningEndTime {
		end := attempt.EndTimeEpoch
		endTime = &end
	}
	return &model.RunMetadata{
		AppID:        appID,
		AppName:      appName,
		SparkVersion: attempt.AppSparkVersion,
		StartTime:    attempt.StartTimeEpoch,
		EndTime:      endTime,
	}
}

// Config flattens the environment snapshot. Application properties supply
// the name, id, master and memory settings; system and runtime properties
// supply the version facts. It returns the application name alongside.
func Config(cfg model.SparkConfiguration) (string, *model.ConfigStore, error) {
	spark := cfg.SparkPropertiesMap()
	system := cfg.SystemPropertiesMap()

	props := map[string]string{
		KeyAppName:      spark[KeyAppName],
		KeyAppID:        spark[KeyAppID],
		KeyJavaCommand:  system[KeyJavaCommand],
		KeyMaster:       spark[KeyMaster],
		KeyJavaVersion:  cfg.Runtime[KeyJavaVersion],
		KeyScalaVersion: cfg.Runtime[KeyScalaVersion],
	}

	executorMemory := valueOr(spark[KeyExecutorMemory], defaultMemory)
	executorBytes, err := format.ParseSparkSize(executorMemory)
	if err != nil {
		return "", nil, fmt.Errorf("aggregate: %s: %w", KeyExecutorMemory, err)
	}
	driverBytes, err := format.ParseSparkSize(valueOr(spark[KeyDriverMemory], defaultMemory))
	if err != nil {
		return "", nil, fmt.Errorf("aggregate: %s: %w", KeyDriverMemory, err)
	}

	return spark[KeyAppName], &model.ConfigStore{
		Properties:           props,
		ExecutorMemoryBytes:  executorBytes,
		ExecutorMemoryString: executorMemory,
		DriverMemoryBytes:    driverBytes,
	}, nil
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// Duration is the run's wall time in ms: end minus start once finished,
// otherwise currentTime minus start.
func Duration(meta *model.RunMetadata, currentTime int64) int64 {
	if meta.EndTime != nil {
		return *meta.EndTime - meta.StartTime
	}
	return currentTime - meta.StartTime
}

// StageSummary folds every non-skipped stage into one summary.
func StageSummary(prev *model.StageSummary, stages []model.Stage) *model.StageSummary {
	var active, pending, input, output, spill, taskTime int64
	for _, s := range stages {
		if s.Status == model.StageStatusSkipped {
			continue
		}
		active += s.NumActiveTasks
		pending += s.NumTasks - s.NumActiveTasks - s.NumFailedTasks - s.NumCompleteTasks
		input += s.InputBytes
		output += s.OutputBytes
		spill += s.DiskBytesSpilled
		taskTime += s.ExecutorRunTime
	}

	status := model.StageStatusWorking
	if active == 0 {
		status = model.StageStatusIdle
	}

	return memo.Keep(prev, &model.StageSummary{
		TotalActiveTasks:    active,
		TotalPendingTasks:   pending,
		TotalInputBytes:     input,
		TotalOutputBytes:    output,
		TotalDiskSpillBytes: spill,
		TotalInput:          format.HumanFileSize(input),
		TotalOutput:         format.HumanFileSize(output),
		TotalDiskSpill:      format.HumanFileSize(spill),
		TotalTaskTimeMs:     taskTime,
		Status:              status,
	})
}

// ExecutorStatus folds executor records into utilization figures.
//
// stages is the stage summary the activity numerator is read from; it must be
// the one currently in the tree. A nil summary means no task time is known
// yet and the activity rate is 0. executorMemoryBytes is the configured
// executor heap, used for the memory percentage.
//
// In local mode (no active executors besides the driver) the driver runs the
// tasks, so the potential task time comes from the driver alone. Otherwise it
// is summed over non-driver executors only.
func ExecutorStatus(prev *model.ExecutorStatus, stages *model.StageSummary, executors []model.Executor, executorMemoryBytes int64) *model.ExecutorStatus {
	driver, _ := model.FindDriver(executors)

	var numActive int
	var executorPotential, maxMemory int64
	var coreHours float64
	for _, e := range executors {
		coreHours += float64(e.TotalCores) * msToHours(e.TotalDuration)
		if e.IsDriver() {
			continue
		}
		if e.IsActive {
			numActive++
		}
		executorPotential += e.TotalDuration * e.MaxTasks
		maxMemory = max(maxMemory, e.HeapMemoryUsageBytes)
	}

	potential := executorPotential
	if numActive == 0 {
		potential = driver.TotalDuration * driver.MaxTasks
	}

	var activityRate float64
	if potential != 0 && stages != nil {
		activityRate = math.Min(100, float64(stages.TotalTaskTimeMs)/float64(potential)*100)
	}

	return memo.Keep(prev, &model.ExecutorStatus{
		NumOfExecutors:              numActive,
		TotalCoreHour:               coreHours,
		ActivityRate:                activityRate,
		MaxExecutorMemoryBytes:      maxMemory,
		MaxExecutorMemoryPercentage: format.Percentage(float64(maxMemory), float64(executorMemoryBytes)),
	})
}

func msToHours(ms int64) float64 {
	return float64(ms) / 1000 / 60 / 60
}
