// Package alerts evaluates rule-based alerts over the derived state tree.
// Each pass is independent: it returns every alert that currently holds and
// does not remember previous passes. Diff lets a caller find what is new.
package alerts

import (
	"fmt"

	"github.com/ashita-ai/sparkwatch/internal/format"
	"github.com/ashita-ai/sparkwatch/internal/model"
)

// Memory thresholds are percentages of the provisioned heap.
const (
	MemoryTooHighThreshold = 95
	MemoryTooLowThreshold  = 70

	memoryIncreaseRatio = 0.2
	memoryDecreaseRatio = 0.2
)

// Role selects which process a memory rule describes.
type Role string

const (
	RoleExecutor Role = "executor"
	RoleDriver   Role = "driver"
)

const memoryLocation = "In: Summary Page -> Memory Usage"

// EvaluateMemoryAlerts checks executor and driver heap usage against the
// provisioned capacity. Any argument may be nil; rules lacking their inputs
// are skipped.
func EvaluateMemoryAlerts(status *model.StatusStore, cfg *model.ConfigStore, env *model.EnvironmentInfo, executors []model.Executor) []model.Alert {
	var out []model.Alert

	if status != nil && status.Executors != nil && status.Executors.MaxExecutorMemoryBytes > 0 &&
		cfg != nil && cfg.ExecutorMemoryBytes > 0 {
		if a, ok := checkMemoryUsage(status.Executors.MaxExecutorMemoryPercentage,
			cfg.ExecutorMemoryBytes, cfg.ExecutorMemoryString, RoleExecutor); ok {
			out = append(out, a)
		}
	}

	if env != nil && env.DriverXmxBytes != nil && *env.DriverXmxBytes > 0 {
		capacity := *env.DriverXmxBytes
		driver, _ := model.FindDriver(executors)
		// Zero observed usage means the poller has no heap reading yet.
		if driver.HeapMemoryUsageBytes > 0 {
			pct := format.Percentage(float64(driver.HeapMemoryUsageBytes), float64(capacity))
			if a, ok := checkMemoryUsage(pct, capacity, format.SparkConfigSize(float64(capacity)), RoleDriver); ok {
				out = append(out, a)
			}
		}
	}

	return out
}

// checkMemoryUsage applies the high rule to both roles and the low rule to
// executors only. At most one alert is produced.
func checkMemoryUsage(pct float64, capacity int64, capacityString string, role Role) (model.Alert, bool) {
	switch {
	case pct > MemoryTooHighThreshold:
		return memoryAlert(role, "High", model.AlertTypeError, pct, capacityString,
			float64(capacity)*(1+memoryIncreaseRatio)), true
	case role == RoleExecutor && pct < MemoryTooLowThreshold:
		return memoryAlert(role, "Low", model.AlertTypeWarning, pct, capacityString,
			float64(capacity)*(1-memoryDecreaseRatio)), true
	default:
		return model.Alert{}, false
	}
}

func memoryAlert(role Role, level string, alertType model.AlertType, pct float64, current string, suggestedBytes float64) model.Alert {
	name := fmt.Sprintf("%sMemoryToo%s", role, level)
	suggested := format.SparkConfigSize(suggestedBytes)
	roleTitle := map[Role]string{RoleExecutor: "Executor", RoleDriver: "Driver"}[role]

	metric := "memory"
	if role == RoleDriver {
		metric = "driverMemory"
	}

	var title, message, suggestion string
	if level == "High" {
		title = roleTitle + " Memory Under-Provisioned"
		message = fmt.Sprintf("Max %s memory usage is %.2f%%, which is too high and can cause spills and OOMs", role, pct)
		suggestion = fmt.Sprintf("Increase %s memory by setting \"spark.%s.memory\" to %s (up from %q, leaving headroom above the current %.2f%% usage)",
			role, role, suggested, current, pct)
	} else {
		title = roleTitle + " Memory Over-Provisioned"
		message = fmt.Sprintf("Max %s memory usage is %.2f%%, which is low enough to provision less memory and cut cost", role, pct)
		suggestion = fmt.Sprintf("Decrease %s memory by setting \"spark.%s.memory\" to %s (down from %q, keeping a safety margin above the current %.2f%% usage)",
			role, role, suggested, current, pct)
	}

	return model.Alert{
		ID:         fmt.Sprintf("%s_%.2f", name, pct),
		Name:       name,
		Title:      title,
		Location:   memoryLocation,
		Message:    message,
		Suggestion: suggestion,
		Type:       alertType,
		Source:     model.AlertSource{Type: "status", Metric: metric},
	}
}
