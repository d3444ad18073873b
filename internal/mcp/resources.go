package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	mcplib "github.com/mark3labs/mcp-go/mcp"
)

const (
	stateURI     = "sparkwatch://state"
	alertsURI    = "sparkwatch://alerts"
	sqlURIPrefix = "sparkwatch://sql/"
)

func (s *Server) registerResources() {
	s.mcpServer.AddResource(
		mcplib.NewResource(
			stateURI,
			"Application State",
			mcplib.WithResourceDescription("Full derived state of the monitored Spark application"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleStateResource,
	)

	s.mcpServer.AddResource(
		mcplib.NewResource(
			alertsURI,
			"Active Alerts",
			mcplib.WithResourceDescription("Alerts raised by the latest evaluation pass"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleAlertsResource,
	)

	s.mcpServer.AddResourceTemplate(
		mcplib.NewResourceTemplate(
			sqlURIPrefix+"{id}",
			"SQL Execution",
			mcplib.WithTemplateDescription("One SQL execution with its plan nodes and metrics"),
			mcplib.WithTemplateMIMEType("application/json"),
		),
		s.handleSQLResource,
	)
}

func (s *Server) handleStateResource(_ context.Context, _ mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	return jsonContents(stateURI, s.monitor.State())
}

func (s *Server) handleAlertsResource(_ context.Context, _ mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	alerts := s.monitor.Alerts()
	return jsonContents(alertsURI, map[string]any{
		"alerts": nonNil(alerts),
		"total":  len(alerts),
	})
}

func (s *Server) handleSQLResource(_ context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	uri := request.Params.URI
	id, err := parseSQLURI(uri)
	if err != nil {
		return nil, err
	}
	state := s.monitor.State()
	if state.SQL == nil {
		return nil, fmt.Errorf("mcp: sql %s: no SQL executions recorded", id)
	}
	q, _, ok := state.SQL.Find(id)
	if !ok {
		return nil, fmt.Errorf("mcp: sql %s: not found", id)
	}
	return jsonContents(uri, q)
}

// parseSQLURI extracts the execution id from sparkwatch://sql/{id}.
func parseSQLURI(uri string) (string, error) {
	id, ok := strings.CutPrefix(uri, sqlURIPrefix)
	if !ok {
		return "", fmt.Errorf("mcp: invalid sql URI: %q", uri)
	}
	if id == "" {
		return "", fmt.Errorf("mcp: invalid sql URI: empty id")
	}
	if strings.Contains(id, "/") {
		return "", fmt.Errorf("mcp: invalid sql URI: %q", uri)
	}
	return id, nil
}

func jsonContents(uri string, v any) ([]mcplib.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal %s: %w", uri, err)
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
