package reducer

import (
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/sparkwatch/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestReducer() *Reducer {
	return New(nil, testLogger())
}

func initEvent(endTime int64, now int64) model.Init {
	return model.Init{
		Config: &model.SparkConfiguration{
			SparkProperties: [][2]string{
				{"spark.app.name", "nightly-etl"},
				{"spark.app.id", "app-20240101-0001"},
				{"spark.executor.memory", "2g"},
			},
			Runtime: map[string]string{"javaVersion": "17.0.9"},
		},
		AppID:       "app-20240101-0001",
		Attempt:     model.Attempt{AppSparkVersion: "3.5.0", StartTimeEpoch: 1_000, EndTimeEpoch: endTime},
		CurrentTime: now,
	}
}

func stagesEvent(active int64) model.SetStages {
	return model.SetStages{Stages: []model.Stage{
		{StageID: 0, Status: "SKIPPED", NumTasks: 3},
		{StageID: 1, Status: "ACTIVE", NumActiveTasks: active, NumTasks: 10, NumFailedTasks: 1, NumCompleteTasks: 3,
			InputBytes: 1024, OutputBytes: 512, ExecutorRunTime: 500},
	}}
}

func executorsEvent() model.SetExecutors {
	return model.SetExecutors{Executors: []model.Executor{
		{ID: "driver", IsActive: true, TotalDuration: 10_000, MaxTasks: 1},
		{ID: "1", IsActive: true, TotalDuration: 1_000, MaxTasks: 1, TotalCores: 1, HeapMemoryUsageBytes: 1 << 30},
	}}
}

func initialized(t *testing.T, r *Reducer) *model.AppState {
	t.Helper()
	s := r.Reduce(&model.AppState{}, initEvent(-1, 5_000))
	require.True(t, s.Initialized)
	return s
}

func TestInitBuildsState(t *testing.T) {
	r := newTestReducer()
	s := initialized(t, r)

	require.NotNil(t, s.RunMetadata)
	require.NotNil(t, s.Config)
	require.NotNil(t, s.Status)
	assert.Equal(t, "nightly-etl", s.RunMetadata.AppName)
	assert.Equal(t, "3.5.0", s.RunMetadata.SparkVersion)
	assert.Nil(t, s.RunMetadata.EndTime)
	assert.Equal(t, int64(4_000), s.Status.Duration)
	assert.Equal(t, "17.0.9", s.Config.Properties["javaVersion"])
	assert.Equal(t, int64(2<<30), s.Config.ExecutorMemoryBytes)
}

func TestEventsBeforeInitAreNoOps(t *testing.T) {
	r := newTestReducer()
	empty := &model.AppState{}

	for _, ev := range []model.Event{
		stagesEvent(2),
		executorsEvent(),
		model.SetSQLMetrics{SQLID: "0"},
		model.TickDuration{CurrentTime: 10_000},
	} {
		next, err := r.Apply(empty, ev)
		require.NoError(t, err, ev.Kind())
		assert.Same(t, empty, next, ev.Kind())
		assert.True(t, RequiresInit(ev.Kind()))
	}
}

func TestSetSQLBeforeInitIsAccepted(t *testing.T) {
	r := newTestReducer()
	empty := &model.AppState{}
	next := r.Reduce(empty, model.SetSQL{SQLs: []model.SQLExecution{{ID: "0", Status: "RUNNING"}}})

	require.NotSame(t, empty, next)
	assert.False(t, next.Initialized)
	require.NotNil(t, next.SQL)
	assert.Len(t, next.SQL.SQLs, 1)
}

type unknownEvent struct{}

func (unknownEvent) Kind() model.EventKind { return "bogus" }
func (unknownEvent) Validate() error       { return nil }

func TestUnknownEventPassesThrough(t *testing.T) {
	r := newTestReducer()
	s := initialized(t, r)
	assert.Same(t, s, r.Reduce(s, unknownEvent{}))
	assert.Same(t, s, r.Reduce(s, nil))
}

func TestPointerEventsMatchValues(t *testing.T) {
	r := newTestReducer()
	byValue := initialized(t, r)

	ev := initEvent(-1, 5_000)
	byPointer, err := r.Apply(&model.AppState{}, &ev)
	require.NoError(t, err)
	assert.Equal(t, byValue, byPointer)

	stages := stagesEvent(2)
	next, err := r.Apply(byPointer, &stages)
	require.NoError(t, err)
	assert.Equal(t, r.Reduce(byValue, stages).Status, next.Status)

	sqls := model.SetSQL{SQLs: []model.SQLExecution{{ID: "0", Status: "RUNNING"}}}
	next, err = r.Apply(next, &sqls)
	require.NoError(t, err)
	require.NotNil(t, next.SQL)
	assert.Len(t, next.SQL.SQLs, 1)
}

func TestSetStagesIdempotent(t *testing.T) {
	r := newTestReducer()
	s0 := initialized(t, r)

	s1 := r.Reduce(s0, stagesEvent(2))
	require.NotSame(t, s0, s1)
	require.NotNil(t, s1.Status.Stages)
	assert.Equal(t, int64(2), s1.Status.Stages.TotalActiveTasks)
	assert.Equal(t, int64(4), s1.Status.Stages.TotalPendingTasks)
	assert.Equal(t, "1.00 KB", s1.Status.Stages.TotalInput)
	assert.Equal(t, model.StageStatusWorking, s1.Status.Stages.Status)
	// The previous root is untouched.
	assert.Nil(t, s0.Status.Stages)
	// Untouched subtrees are shared.
	assert.Same(t, s0.RunMetadata, s1.RunMetadata)
	assert.Same(t, s0.Config, s1.Config)

	s2 := r.Reduce(s1, stagesEvent(2))
	assert.Same(t, s1, s2)
	assert.Same(t, s1.Status.Stages, s2.Status.Stages)
}

func TestSetExecutorsIdempotent(t *testing.T) {
	r := newTestReducer()
	s := r.Reduce(initialized(t, r), stagesEvent(2))

	s1 := r.Reduce(s, executorsEvent())
	require.NotNil(t, s1.Status.Executors)
	assert.Same(t, s.Status.Stages, s1.Status.Stages)

	s2 := r.Reduce(s1, executorsEvent())
	assert.Same(t, s1, s2)
	assert.Same(t, s1.Status.Executors, s2.Status.Executors)
}

func TestSetExecutorsUsesLatestStageSummary(t *testing.T) {
	r := newTestReducer()
	s := initialized(t, r)

	// No stages yet: activity numerator unknown.
	s = r.Reduce(s, executorsEvent())
	assert.Equal(t, 0.0, s.Status.Executors.ActivityRate)
	assert.Equal(t, 1, s.Status.Executors.NumOfExecutors)
	assert.InDelta(t, 50.0, s.Status.Executors.MaxExecutorMemoryPercentage, 1e-9)

	// 500ms of task time over 1000ms of potential executor time.
	s = r.Reduce(s, stagesEvent(2))
	s = r.Reduce(s, executorsEvent())
	assert.InDelta(t, 50.0, s.Status.Executors.ActivityRate, 1e-9)
}

func TestTickDurationMonotonicWhileRunning(t *testing.T) {
	r := newTestReducer()
	s := initialized(t, r)

	prev := s.Status.Duration
	for _, now := range []int64{6_000, 7_000, 9_500} {
		next := r.Reduce(s, model.TickDuration{CurrentTime: now})
		assert.Greater(t, next.Status.Duration, prev)
		prev = next.Status.Duration
		s = next
	}
	assert.Equal(t, int64(8_500), s.Status.Duration)
}

func TestTickDurationFixedOnceFinished(t *testing.T) {
	r := newTestReducer()
	s := initialized(t, r)
	s = r.Reduce(s, stagesEvent(0))

	// A new Init carrying the end time replaces the whole tree.
	finished := r.Reduce(s, initEvent(3_000, 50_000))
	require.NotNil(t, finished.RunMetadata.EndTime)
	assert.Nil(t, finished.Status.Stages)
	assert.Equal(t, int64(2_000), finished.Status.Duration)

	for _, now := range []int64{60_000, 70_000} {
		next := r.Reduce(finished, model.TickDuration{CurrentTime: now})
		assert.Same(t, finished, next)
	}
}

func TestSetSQLMetrics(t *testing.T) {
	r := newTestReducer()
	s := initialized(t, r)

	// Metrics before any SQL list are ignored.
	assert.Same(t, s, r.Reduce(s, model.SetSQLMetrics{SQLID: "0"}))

	s = r.Reduce(s, model.SetSQL{SQLs: []model.SQLExecution{{
		ID: "0", Status: "RUNNING",
		Nodes: []model.SQLNode{{NodeID: 1, NodeName: "Scan"}},
	}}})
	require.NotNil(t, s.SQL)

	metrics := model.SetSQLMetrics{SQLID: "0", Metrics: []model.SQLNodeMetrics{
		{NodeID: 1, Metrics: []model.SQLMetric{{Name: "rows", Value: "5"}}},
	}}
	s1 := r.Reduce(s, metrics)
	require.NotSame(t, s, s1)
	assert.Same(t, s.Status, s1.Status)
	assert.Equal(t, "5", s1.SQL.SQLs[0].Nodes[0].Metrics[0].Value)

	assert.Same(t, s1, r.Reduce(s1, metrics))
}

func TestMalformedEventsRejected(t *testing.T) {
	r := newTestReducer()
	s := initialized(t, r)

	tests := []struct {
		name string
		ev   model.Event
	}{
		{"init without config", model.Init{AppID: "a", Attempt: model.Attempt{StartTimeEpoch: 1}}},
		{"init with bad memory", model.Init{
			Config:  &model.SparkConfiguration{SparkProperties: [][2]string{{"spark.executor.memory", "huge"}}},
			AppID:   "a",
			Attempt: model.Attempt{StartTimeEpoch: 1, EndTimeEpoch: -1},
		}},
		{"init ending before start", initEvent(500, 5_000)},
		{"executors without driver", model.SetExecutors{Executors: []model.Executor{{ID: "1"}}}},
		{"two drivers", model.SetExecutors{Executors: []model.Executor{{ID: "driver"}, {ID: "driver"}}}},
		{"negative stage counter", model.SetStages{Stages: []model.Stage{{Status: "ACTIVE", NumTasks: -1}}}},
		{"stage without status", model.SetStages{Stages: []model.Stage{{NumTasks: 1}}}},
		{"sql metrics without id", model.SetSQLMetrics{}},
		{"nil init pointer", (*model.Init)(nil)},
		{"nil tick pointer", (*model.TickDuration)(nil)},
		{"nil unknown pointer", (*unknownEvent)(nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, err := r.Apply(s, tt.ev)
			require.Error(t, err)
			assert.True(t, errors.Is(err, model.ErrMalformedSnapshot))
			assert.Same(t, s, next)
			assert.Same(t, s, r.Reduce(s, tt.ev))
		})
	}
}

func TestEmptyExecutorListIsMalformed(t *testing.T) {
	r := newTestReducer()
	s := initialized(t, r)
	_, err := r.Apply(s, model.SetExecutors{})
	assert.ErrorIs(t, err, model.ErrMalformedSnapshot)
}
