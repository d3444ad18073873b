package mcp

import (
	"context"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	// diagnose-run walks the assistant through a health check of the application.
	s.mcpServer.AddPrompt(
		mcplib.NewPrompt("diagnose-run",
			mcplib.WithPromptDescription("Check the monitored Spark application for resource problems"),
		),
		s.handleDiagnoseRunPrompt,
	)

	// explain-alert turns one alert into a concrete configuration change.
	s.mcpServer.AddPrompt(
		mcplib.NewPrompt("explain-alert",
			mcplib.WithPromptDescription("Explain an active alert and the configuration change it suggests"),
			mcplib.WithArgument("alert_id",
				mcplib.ArgumentDescription("The id of an active alert, e.g. executorMemoryTooHigh_97.50"),
				mcplib.RequiredArgument(),
			),
		),
		s.handleExplainAlertPrompt,
	)
}

func (s *Server) handleDiagnoseRunPrompt(_ context.Context, _ mcplib.GetPromptRequest) (*mcplib.GetPromptResult, error) {
	return &mcplib.GetPromptResult{
		Description: "Diagnose the monitored Spark application",
		Messages: []mcplib.PromptMessage{
			{
				Role: mcplib.RoleUser,
				Content: mcplib.TextContent{
					Type: "text",
					Text: `Check how the monitored Spark application is doing:

1. CALL sparkwatch_status. If initialized is false, the poller has not
   reported the application yet; say so and stop.

2. CALL sparkwatch_alerts. For every error alert, state the observed value
   and the exact setting from its suggestion. Then cover warnings.

3. LOOK at executors.activity_rate. Below 50% usually means executors sit idle
   waiting for tasks; consider dynamic allocation or fewer executors.

4. If stages.disk_spill is non-zero, call it out: spill points at too little
   execution memory or skewed partitions.

5. If SQL executions are running, CALL sparkwatch_sql with status="RUNNING"
   to name the long-running queries.

Finish with a short list of recommended configuration changes.`,
				},
			},
		},
	}, nil
}

func (s *Server) handleExplainAlertPrompt(_ context.Context, request mcplib.GetPromptRequest) (*mcplib.GetPromptResult, error) {
	alertID := request.Params.Arguments["alert_id"]
	if alertID == "" {
		return nil, fmt.Errorf("alert_id argument is required")
	}

	for _, a := range s.monitor.Alerts() {
		if a.ID != alertID {
			continue
		}
		return &mcplib.GetPromptResult{
			Description: fmt.Sprintf("Explain alert %s", alertID),
			Messages: []mcplib.PromptMessage{
				{
					Role: mcplib.RoleUser,
					Content: mcplib.TextContent{
						Type: "text",
						Text: fmt.Sprintf(`Explain this Spark alert to an engineer and tell them what to change.

Title: %s
Severity: %s
Where: %s
Observed: %s
Suggested fix: %s

Say what the alert means for the job, whether it risks failure (errors) or
only wastes resources (warnings), and how to apply the suggested setting
with spark-submit --conf or in spark-defaults.conf.`, a.Title, a.Type, a.Location, a.Message, a.Suggestion),
					},
				},
			},
		}, nil
	}
	return nil, fmt.Errorf("alert %q is not active", alertID)
}
