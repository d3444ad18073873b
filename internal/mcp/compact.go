package mcp

import (
	"math"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/ashita-ai/sparkwatch/internal/model"
)

const maxCompactDescription = 200

// compactStatus is the summary returned by sparkwatch_status: the numbers an
// assistant needs to reason about the run, with sizes already humanized.
func compactStatus(state *model.AppState, alerts []model.Alert) map[string]any {
	m := map[string]any{"initialized": state.Initialized}

	if meta := state.RunMetadata; meta != nil {
		m["app_id"] = meta.AppID
		m["app_name"] = meta.AppName
		m["spark_version"] = meta.SparkVersion
		m["running"] = meta.Running()
		m["started_at"] = time.UnixMilli(meta.StartTime).UTC()
	}

	if status := state.Status; status != nil {
		m["duration"] = (time.Duration(status.Duration) * time.Millisecond).Round(time.Second).String()
		if st := status.Stages; st != nil {
			m["stages"] = map[string]any{
				"status":        st.Status,
				"active_tasks":  st.TotalActiveTasks,
				"pending_tasks": st.TotalPendingTasks,
				"input":         st.TotalInput,
				"output":        st.TotalOutput,
				"disk_spill":    st.TotalDiskSpill,
			}
		}
		if ex := status.Executors; ex != nil {
			e := map[string]any{
				"count":         ex.NumOfExecutors,
				"core_hours":    round2(ex.TotalCoreHour),
				"activity_rate": round2(ex.ActivityRate),
			}
			if ex.MaxExecutorMemoryBytes > 0 {
				e["max_memory"] = humanize.IBytes(uint64(ex.MaxExecutorMemoryBytes))
				e["max_memory_percentage"] = round2(ex.MaxExecutorMemoryPercentage)
			}
			m["executors"] = e
		}
	}

	if cfg := state.Config; cfg != nil && cfg.ExecutorMemoryString != "" {
		m["executor_memory"] = cfg.ExecutorMemoryString
	}

	if state.SQL != nil {
		running := 0
		for _, q := range state.SQL.SQLs {
			if q.Status == "RUNNING" {
				running++
			}
		}
		m["sql"] = map[string]any{"total": len(state.SQL.SQLs), "running": running}
	}

	counts := map[model.AlertType]int{}
	for _, a := range alerts {
		counts[a.Type]++
	}
	m["alerts"] = map[string]any{
		"errors":   counts[model.AlertTypeError],
		"warnings": counts[model.AlertTypeWarning],
	}
	return m
}

// compactSQL drops plan nodes; they are available from the sql resource.
func compactSQL(q model.SQLSummary) map[string]any {
	return map[string]any{
		"id":          q.ID,
		"status":      q.Status,
		"description": truncate(q.Description, maxCompactDescription),
		"duration_ms": q.Duration,
		"nodes":       len(q.Nodes),
	}
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
