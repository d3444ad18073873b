package mcp

import (
	"context"
	"strings"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/ashita-ai/sparkwatch/internal/model"
)

const (
	defaultSQLLimit = 20
	maxSQLLimit     = 100
)

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcplib.NewTool("sparkwatch_status",
			mcplib.WithDescription(`Summarize the monitored Spark application.

Returns run metadata, duration, stage totals (active and pending tasks,
input, output, spill), executor usage (core hours, activity rate, peak heap)
and the number of active alerts by severity. Call this first when asked how a
Spark job is doing.`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
		),
		s.handleStatus,
	)

	s.mcpServer.AddTool(
		mcplib.NewTool("sparkwatch_alerts",
			mcplib.WithDescription(`List active alerts with their suggested fix.

Each alert carries a message explaining what was observed and a suggestion
naming the Spark setting to change and the value to change it to.`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("type",
				mcplib.Description("Only return alerts of this severity"),
				mcplib.Enum(string(model.AlertTypeError), string(model.AlertTypeWarning)),
			),
		),
		s.handleAlerts,
	)

	s.mcpServer.AddTool(
		mcplib.NewTool("sparkwatch_sql",
			mcplib.WithDescription(`List SQL executions of the application, most recent first.

Plan nodes and their metrics are omitted; read sparkwatch://sql/{id} for the
full execution.`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("status",
				mcplib.Description("Only return executions with this status, e.g. RUNNING, COMPLETED, FAILED"),
			),
			mcplib.WithNumber("limit",
				mcplib.Description("Maximum number of executions to return"),
				mcplib.Min(1),
				mcplib.Max(maxSQLLimit),
				mcplib.DefaultNumber(defaultSQLLimit),
			),
		),
		s.handleSQL,
	)
}

func (s *Server) handleStatus(_ context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	return jsonResult(compactStatus(s.monitor.State(), s.monitor.Alerts()))
}

func (s *Server) handleAlerts(_ context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	alerts := s.monitor.Alerts()
	if t := request.GetString("type", ""); t != "" {
		at, ok := model.ParseAlertType(t)
		if !ok {
			return errorResult("type must be error or warning"), nil
		}
		alerts = model.FilterAlerts(alerts, at)
	}
	return jsonResult(map[string]any{
		"alerts": nonNil(alerts),
		"total":  len(alerts),
	})
}

func (s *Server) handleSQL(_ context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	limit := request.GetInt("limit", defaultSQLLimit)
	if limit < 1 || limit > maxSQLLimit {
		return errorResult("limit must be between 1 and 100"), nil
	}
	status := request.GetString("status", "")

	state := s.monitor.State()
	var sqls []model.SQLSummary
	if state.SQL != nil {
		sqls = state.SQL.SQLs
	}

	out := make([]map[string]any, 0, min(limit, len(sqls)))
	for i := len(sqls) - 1; i >= 0 && len(out) < limit; i-- {
		if status != "" && !strings.EqualFold(sqls[i].Status, status) {
			continue
		}
		out = append(out, compactSQL(sqls[i]))
	}
	return jsonResult(map[string]any{
		"sqls":  out,
		"total": len(sqls),
	})
}
