package model

import "fmt"

// SQLExecution is one record from the sql endpoint.
type SQLExecution struct {
	ID             string    `json:"id"`
	Status         string    `json:"status"`
	Description    string    `json:"description"`
	SubmissionTime string    `json:"submissionTime"`
	Duration       int64     `json:"duration"`
	Nodes          []SQLNode `json:"nodes"`
}

// SQLNode is one operator in a SQL plan.
type SQLNode struct {
	NodeID   int64       `json:"nodeId"`
	NodeName string      `json:"nodeName"`
	Metrics  []SQLMetric `json:"metrics"`
}

// SQLMetric is one named metric value, already rendered by Spark.
type SQLMetric struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// SQLNodeMetrics is a metrics refresh for a single node of a running query.
type SQLNodeMetrics struct {
	NodeID  int64       `json:"nodeId"`
	Metrics []SQLMetric `json:"metrics"`
}

// Validate rejects executions without an id.
func (s SQLExecution) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("sql: id is required")
	}
	if s.Duration < 0 {
		return fmt.Errorf("sql %s: duration must be non-negative", s.ID)
	}
	return nil
}

// SQLStore is the derived SQL slice of the state tree.
type SQLStore struct {
	SQLs []SQLSummary `json:"sqls"`
}

// Find returns the summary with the given id.
func (s *SQLStore) Find(id string) (SQLSummary, int, bool) {
	for i, q := range s.SQLs {
		if q.ID == id {
			return q, i, true
		}
	}
	return SQLSummary{}, -1, false
}

// SQLSummary is one query as stored in the state tree.
type SQLSummary struct {
	ID             string    `json:"id"`
	Status         string    `json:"status"`
	Description    string    `json:"description"`
	SubmissionTime string    `json:"submission_time"`
	Duration       int64     `json:"duration"`
	Nodes          []SQLNode `json:"nodes"`
}
