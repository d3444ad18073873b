package server

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashita-ai/sparkwatch/internal/model"
	"github.com/ashita-ai/sparkwatch/internal/monitor"
)

// Handlers holds HTTP handler dependencies.
type Handlers struct {
	monitor             *monitor.Monitor
	broker              *Broker
	logger              *slog.Logger
	startedAt           time.Time
	version             string
	maxRequestBodyBytes int64
	now                 func() time.Time
	openapiSpec         []byte
}

// HandlersDeps holds all dependencies for constructing Handlers.
// Broker, Now and OpenAPISpec are optional.
type HandlersDeps struct {
	Monitor             *monitor.Monitor
	Broker              *Broker
	Logger              *slog.Logger
	Version             string
	MaxRequestBodyBytes int64
	Now                 func() time.Time
	OpenAPISpec         []byte
}

// NewHandlers creates a new Handlers with all dependencies.
func NewHandlers(d HandlersDeps) *Handlers {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	maxBody := d.MaxRequestBodyBytes
	if maxBody <= 0 {
		maxBody = 4 * 1024 * 1024
	}
	return &Handlers{
		monitor:             d.Monitor,
		broker:              d.Broker,
		logger:              d.Logger,
		startedAt:           now(),
		version:             d.Version,
		maxRequestBodyBytes: maxBody,
		now:                 now,
		openapiSpec:         d.OpenAPISpec,
	}
}

// HandleInit handles POST /v1/events/init.
func (h *Handlers) HandleInit(w http.ResponseWriter, r *http.Request) {
	var req model.InitRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	ev := model.Init{
		Config:      req.Config,
		AppID:       req.AppID,
		Attempt:     req.Attempt,
		CurrentTime: h.now().UnixMilli(),
	}
	if req.CurrentTime != nil {
		ev.CurrentTime = *req.CurrentTime
	}
	h.dispatch(w, r, ev)
}

// HandleStages handles POST /v1/events/stages.
func (h *Handlers) HandleStages(w http.ResponseWriter, r *http.Request) {
	var ev model.SetStages
	if err := decodeJSON(w, r, &ev, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	h.dispatch(w, r, ev)
}

// HandleExecutors handles POST /v1/events/executors.
func (h *Handlers) HandleExecutors(w http.ResponseWriter, r *http.Request) {
	var ev model.SetExecutors
	if err := decodeJSON(w, r, &ev, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	h.dispatch(w, r, ev)
}

// HandleSQL handles POST /v1/events/sql.
func (h *Handlers) HandleSQL(w http.ResponseWriter, r *http.Request) {
	var ev model.SetSQL
	if err := decodeJSON(w, r, &ev, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	h.dispatch(w, r, ev)
}

// HandleSQLMetrics handles POST /v1/events/sql/{sql_id}/metrics.
func (h *Handlers) HandleSQLMetrics(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Metrics []model.SQLNodeMetrics `json:"metrics"`
	}
	if err := decodeJSON(w, r, &body, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	h.dispatch(w, r, model.SetSQLMetrics{SQLID: r.PathValue("sql_id"), Metrics: body.Metrics})
}

// HandleEnvironment handles POST /v1/events/environment.
func (h *Handlers) HandleEnvironment(w http.ResponseWriter, r *http.Request) {
	var env model.EnvironmentInfo
	if err := decodeJSON(w, r, &env, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if env.DriverXmxBytes != nil && *env.DriverXmxBytes < 0 {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "driverXmxBytes must be non-negative")
		return
	}
	res := h.monitor.SetEnvironment(r.Context(), env)
	writeJSON(w, r, http.StatusOK, dispatchResponse(res))
}

func (h *Handlers) dispatch(w http.ResponseWriter, r *http.Request, ev model.Event) {
	res, err := h.monitor.Dispatch(r.Context(), ev)
	if err != nil {
		if errors.Is(err, model.ErrMalformedSnapshot) {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
			return
		}
		h.logger.Error("dispatch failed", "kind", ev.Kind(), "error", err)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "failed to apply event")
		return
	}
	writeJSON(w, r, http.StatusOK, dispatchResponse(res))
}

func dispatchResponse(res monitor.Result) model.DispatchResponse {
	return model.DispatchResponse{
		Kind:      res.Kind,
		Changed:   res.Changed,
		NewAlerts: nonNil(res.Raised),
	}
}

// HandleState handles GET /v1/state.
func (h *Handlers) HandleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, h.monitor.State())
}

// HandleAlerts handles GET /v1/alerts. The optional type query parameter
// keeps only alerts of that type.
func (h *Handlers) HandleAlerts(w http.ResponseWriter, r *http.Request) {
	alerts := h.monitor.Alerts()
	if t := r.URL.Query().Get("type"); t != "" {
		at, ok := model.ParseAlertType(t)
		if !ok {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "type must be error or warning")
			return
		}
		alerts = model.FilterAlerts(alerts, at)
	}
	writeJSON(w, r, http.StatusOK, model.AlertsResponse{Alerts: nonNil(alerts), Total: len(alerts)})
}

// HandleSubscribe handles GET /v1/subscribe (SSE). The current state and
// alerts are sent first so a client never starts from an empty view.
func (h *Handlers) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	if h.broker == nil {
		writeError(w, r, http.StatusServiceUnavailable, model.ErrCodeInternalError, "SSE not available")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "streaming not supported")
		return
	}

	// Subscribe before reading the snapshot so no change falls in between.
	ch := h.broker.Subscribe()
	defer h.broker.Unsubscribe(ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	// Disable the server's WriteTimeout for this long-lived connection.
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	snap := h.monitor.Snapshot()
	if event, err := stateEvent(snap.State); err == nil {
		_, _ = w.Write(event)
	}
	if event, err := alertsEvent(snap.Alerts, nil, nil); err == nil {
		_, _ = w.Write(event)
	}
	flusher.Flush()

	keepalive := time.NewTicker(15 * time.Second)
	defer keepalive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-keepalive.C:
			if _, err := w.Write([]byte(":keepalive\n\n")); err != nil {
				return
			}
			flusher.Flush()
		case event, ok := <-ch:
			if !ok {
				return
			}
			if _, err := w.Write(event); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := model.HealthResponse{
		Status:      "healthy",
		Version:     h.version,
		Initialized: h.monitor.State().Initialized,
		Uptime:      int64(h.now().Sub(h.startedAt).Seconds()),
	}
	if h.broker != nil {
		resp.SSEBroker = "running"
		resp.Subscribers = h.broker.Len()
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// HandleOpenAPISpec serves the embedded OpenAPI specification.
func (h *Handlers) HandleOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	if len(h.openapiSpec) == 0 {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(h.openapiSpec)
}
