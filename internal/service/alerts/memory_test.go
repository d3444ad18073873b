package alerts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/sparkwatch/internal/format"
	"github.com/ashita-ai/sparkwatch/internal/model"
)

const gib = int64(1 << 30)

func executorInputs(pct float64) (*model.StatusStore, *model.ConfigStore) {
	status := &model.StatusStore{
		Executors: &model.ExecutorStatus{
			MaxExecutorMemoryBytes:      int64(float64(4*gib) * pct / 100),
			MaxExecutorMemoryPercentage: pct,
		},
	}
	cfg := &model.ConfigStore{ExecutorMemoryBytes: 4 * gib, ExecutorMemoryString: "4g"}
	return status, cfg
}

func TestExecutorMemoryThresholds(t *testing.T) {
	tests := []struct {
		name     string
		pct      float64
		wantName string
		wantType model.AlertType
	}{
		{"too high", 96, "executorMemoryTooHigh", model.AlertTypeError},
		{"too low", 65, "executorMemoryTooLow", model.AlertTypeWarning},
		{"healthy", 80, "", ""},
		{"upper boundary", 95, "", ""},
		{"lower boundary", 70, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, cfg := executorInputs(tt.pct)
			got := EvaluateMemoryAlerts(status, cfg, nil, nil)
			if tt.wantName == "" {
				assert.Empty(t, got)
				return
			}
			require.Len(t, got, 1)
			assert.Equal(t, tt.wantName, got[0].Name)
			assert.Equal(t, tt.wantType, got[0].Type)
			assert.Equal(t, model.AlertSource{Type: "status", Metric: "memory"}, got[0].Source)
		})
	}
}

func TestExecutorTooHighSuggestsTwentyPercentMore(t *testing.T) {
	status, cfg := executorInputs(96)
	got := EvaluateMemoryAlerts(status, cfg, nil, nil)
	require.Len(t, got, 1)

	want := format.SparkConfigSize(float64(4*gib) * 1.2)
	assert.Equal(t, "4.8g", want)
	assert.Contains(t, got[0].Suggestion, want)
	assert.Contains(t, got[0].Suggestion, `"spark.executor.memory"`)
	assert.Equal(t, "executorMemoryTooHigh_96.00", got[0].ID)
}

func TestExecutorTooLowSuggestsTwentyPercentLess(t *testing.T) {
	status, cfg := executorInputs(65)
	got := EvaluateMemoryAlerts(status, cfg, nil, nil)
	require.Len(t, got, 1)
	assert.Contains(t, got[0].Suggestion, format.SparkConfigSize(float64(4*gib)*0.8))
}

func TestAlertIDTracksPercentage(t *testing.T) {
	s1, cfg := executorInputs(96.123)
	s2, _ := executorInputs(97.5)
	a := EvaluateMemoryAlerts(s1, cfg, nil, nil)
	b := EvaluateMemoryAlerts(s2, cfg, nil, nil)
	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.Equal(t, "executorMemoryTooHigh_96.12", a[0].ID)
	assert.NotEqual(t, a[0].ID, b[0].ID)
	assert.Equal(t, a[0].Name, b[0].Name)
}

func TestExecutorRuleNeedsObservedUsageAndCapacity(t *testing.T) {
	status := &model.StatusStore{Executors: &model.ExecutorStatus{}}
	cfg := &model.ConfigStore{ExecutorMemoryBytes: 4 * gib}
	assert.Empty(t, EvaluateMemoryAlerts(status, cfg, nil, nil))

	status, _ = executorInputs(50)
	assert.Empty(t, EvaluateMemoryAlerts(status, &model.ConfigStore{}, nil, nil))
	assert.Empty(t, EvaluateMemoryAlerts(nil, nil, nil, nil))
}

func driverInputs(usage int64) (*model.EnvironmentInfo, []model.Executor) {
	xmx := int64(100)
	return &model.EnvironmentInfo{DriverXmxBytes: &xmx}, []model.Executor{
		{ID: "driver", HeapMemoryUsageBytes: usage},
		{ID: "1", HeapMemoryUsageBytes: 1},
	}
}

func TestDriverMemoryTooHigh(t *testing.T) {
	env, execs := driverInputs(96)
	got := EvaluateMemoryAlerts(nil, nil, env, execs)
	require.Len(t, got, 1)
	assert.Equal(t, "driverMemoryTooHigh", got[0].Name)
	assert.Equal(t, model.AlertTypeError, got[0].Type)
	assert.Equal(t, "driverMemory", got[0].Source.Metric)
	assert.Equal(t, "Driver Memory Under-Provisioned", got[0].Title)
}

func TestDriverHasNoLowRule(t *testing.T) {
	env, execs := driverInputs(10)
	assert.Empty(t, EvaluateMemoryAlerts(nil, nil, env, execs))
}

func TestDriverZeroUsageIsNotEvaluated(t *testing.T) {
	env, execs := driverInputs(0)
	assert.Empty(t, EvaluateMemoryAlerts(nil, nil, env, execs))

	// No driver record at all.
	assert.Empty(t, EvaluateMemoryAlerts(nil, nil, env, nil))
}

func TestExecutorAndDriverIndependent(t *testing.T) {
	status, cfg := executorInputs(60)
	env, execs := driverInputs(99)
	got := EvaluateMemoryAlerts(status, cfg, env, execs)
	require.Len(t, got, 2)
	assert.Equal(t, "executorMemoryTooLow", got[0].Name)
	assert.Equal(t, "driverMemoryTooHigh", got[1].Name)
}

func TestDiff(t *testing.T) {
	a := model.Alert{ID: "a"}
	b := model.Alert{ID: "b"}
	c := model.Alert{ID: "c"}

	raised, cleared := Diff([]model.Alert{a, b}, []model.Alert{b, c})
	assert.Equal(t, []model.Alert{c}, raised)
	assert.Equal(t, []string{"a"}, cleared)

	raised, cleared = Diff(nil, nil)
	assert.Empty(t, raised)
	assert.Empty(t, cleared)
}
