package sqlstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/sparkwatch/internal/model"
)

func sampleSQLs() []model.SQLExecution {
	return []model.SQLExecution{
		{
			ID: "0", Status: "RUNNING", Description: "insert into t", Duration: 1200,
			Nodes: []model.SQLNode{
				{NodeID: 1, NodeName: "Scan parquet", Metrics: []model.SQLMetric{{Name: "number of output rows", Value: "10"}}},
				{NodeID: 2, NodeName: "Exchange"},
			},
		},
	}
}

func TestCalculateKeepsPrevious(t *testing.T) {
	var c Calculator
	first := c.Calculate(nil, sampleSQLs())
	require.Len(t, first.SQLs, 1)
	assert.Equal(t, "insert into t", first.SQLs[0].Description)

	second := c.Calculate(first, sampleSQLs())
	assert.Same(t, first, second)

	changed := sampleSQLs()
	changed[0].Status = "COMPLETED"
	third := c.Calculate(second, changed)
	assert.NotSame(t, second, third)
	assert.Equal(t, "COMPLETED", third.SQLs[0].Status)
}

func TestCalculateEmpty(t *testing.T) {
	var c Calculator
	first := c.Calculate(nil, nil)
	assert.Same(t, first, c.Calculate(first, []model.SQLExecution{}))
}

func TestUpdateMetrics(t *testing.T) {
	var c Calculator
	store := c.Calculate(nil, sampleSQLs())

	updated := c.UpdateMetrics(store, "0", []model.SQLNodeMetrics{
		{NodeID: 1, Metrics: []model.SQLMetric{{Name: "number of output rows", Value: "20"}}},
	})
	require.NotSame(t, store, updated)
	assert.Equal(t, "20", updated.SQLs[0].Nodes[0].Metrics[0].Value)
	// The original store is not mutated.
	assert.Equal(t, "10", store.SQLs[0].Nodes[0].Metrics[0].Value)
}

func TestUpdateMetricsNoChange(t *testing.T) {
	var c Calculator
	store := c.Calculate(nil, sampleSQLs())

	same := c.UpdateMetrics(store, "0", []model.SQLNodeMetrics{
		{NodeID: 1, Metrics: []model.SQLMetric{{Name: "number of output rows", Value: "10"}}},
		{NodeID: 99, Metrics: []model.SQLMetric{{Name: "x", Value: "1"}}},
	})
	assert.Same(t, store, same)

	assert.Same(t, store, c.UpdateMetrics(store, "missing", nil))
	assert.Nil(t, c.UpdateMetrics(nil, "0", nil))
}
