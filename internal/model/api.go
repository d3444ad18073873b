package model

import (
	"time"
)

// APIResponse is the standard response envelope for all HTTP API responses.
type APIResponse struct {
	Data any          `json:"data,omitempty"`
	Meta ResponseMeta `json:"meta"`
}

// APIError is the standard error response envelope.
type APIError struct {
	Error ErrorDetail  `json:"error"`
	Meta  ResponseMeta `json:"meta"`
}

// ResponseMeta contains request metadata included in every response.
type ResponseMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorDetail describes an API error.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorCode constants for standard API error codes.
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeInternalError = "INTERNAL_ERROR"
	ErrCodeRateLimited   = "RATE_LIMITED"
)

// InitRequest is the request body for POST /v1/events/init.
// CurrentTime defaults to the server clock when omitted.
type InitRequest struct {
	Config      *SparkConfiguration `json:"config"`
	AppID       string              `json:"app_id"`
	Attempt     Attempt             `json:"attempt"`
	CurrentTime *int64              `json:"current_time,omitempty"`
}

// DispatchResponse reports what an ingested event did to the state tree.
type DispatchResponse struct {
	Kind      EventKind `json:"kind"`
	Changed   bool      `json:"changed"`
	NewAlerts []Alert   `json:"new_alerts"`
}

// AlertsResponse is the response for GET /v1/alerts.
type AlertsResponse struct {
	Alerts []Alert `json:"alerts"`
	Total  int     `json:"total"`
}

// HealthResponse is the response for GET /health.
type HealthResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Initialized bool   `json:"initialized"`
	SSEBroker   string `json:"sse_broker,omitempty"`
	Subscribers int    `json:"subscribers"`
	Uptime      int64  `json:"uptime_seconds"`
}
