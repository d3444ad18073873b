// Package sqlstate derives the SQL slice of the state tree from the sql
// endpoint and from per-query metric refreshes.
package sqlstate

import (
	"slices"

	"github.com/ashita-ai/sparkwatch/internal/memo"
	"github.com/ashita-ai/sparkwatch/internal/model"
)

// Aggregator computes SQL state. Both methods must return the store they were
// given when nothing changed, and must never mutate it.
type Aggregator interface {
	Calculate(prev *model.SQLStore, sqls []model.SQLExecution) *model.SQLStore
	UpdateMetrics(store *model.SQLStore, sqlID string, metrics []model.SQLNodeMetrics) *model.SQLStore
}

// Calculator is the default Aggregator.
type Calculator struct{}

var _ Aggregator = Calculator{}

// Calculate rebuilds the store from the full execution list, keeping prev
// when the result is identical.
func (Calculator) Calculate(prev *model.SQLStore, sqls []model.SQLExecution) *model.SQLStore {
	summaries := make([]model.SQLSummary, 0, len(sqls))
	for _, q := range sqls {
		summaries = append(summaries, model.SQLSummary{
			ID:             q.ID,
			Status:         q.Status,
			Description:    q.Description,
			SubmissionTime: q.SubmissionTime,
			Duration:       q.Duration,
			Nodes:          cloneNodes(q.Nodes),
		})
	}
	return memo.Keep(prev, &model.SQLStore{SQLs: summaries})
}

// UpdateMetrics replaces node metrics of one query. Unknown queries and
// unknown nodes are ignored.
func (Calculator) UpdateMetrics(store *model.SQLStore, sqlID string, metrics []model.SQLNodeMetrics) *model.SQLStore {
	if store == nil {
		return nil
	}
	q, idx, ok := store.Find(sqlID)
	if !ok {
		return store
	}

	var nodes []model.SQLNode
	for _, m := range metrics {
		i := slices.IndexFunc(q.Nodes, func(n model.SQLNode) bool { return n.NodeID == m.NodeID })
		if i < 0 || slices.Equal(q.Nodes[i].Metrics, m.Metrics) {
			continue
		}
		if nodes == nil {
			nodes = slices.Clone(q.Nodes)
		}
		nodes[i].Metrics = slices.Clone(m.Metrics)
	}
	if nodes == nil {
		return store
	}

	q.Nodes = nodes
	sqls := slices.Clone(store.SQLs)
	sqls[idx] = q
	return &model.SQLStore{SQLs: sqls}
}

func cloneNodes(nodes []model.SQLNode) []model.SQLNode {
	out := make([]model.SQLNode, len(nodes))
	for i, n := range nodes {
		out[i] = model.SQLNode{
			NodeID:   n.NodeID,
			NodeName: n.NodeName,
			Metrics:  slices.Clone(n.Metrics),
		}
	}
	return out
}
