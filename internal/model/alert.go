package model

// AlertType is the alert severity.
type AlertType string

const (
	AlertTypeError   AlertType = "error"
	AlertTypeWarning AlertType = "warning"
)

// AlertSource ties an alert back to the state slice and metric that raised it.
type AlertSource struct {
	Type   string `json:"type"`
	Metric string `json:"metric"`
}

// Alert is one actionable finding from an evaluation pass. ID changes when the
// triggering value changes; consumers wanting one alert per incident should
// bucket by Name.
type Alert struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Title      string      `json:"title"`
	Location   string      `json:"location"`
	Message    string      `json:"message"`
	Suggestion string      `json:"suggestion"`
	Type       AlertType   `json:"type"`
	Source     AlertSource `json:"source"`
}

// ParseAlertType accepts "error" or "warning".
func ParseAlertType(s string) (AlertType, bool) {
	switch t := AlertType(s); t {
	case AlertTypeError, AlertTypeWarning:
		return t, true
	default:
		return "", false
	}
}

// FilterAlerts returns the alerts of type t, preserving order.
func FilterAlerts(alerts []Alert, t AlertType) []Alert {
	var out []Alert
	for _, a := range alerts {
		if a.Type == t {
			out = append(out, a)
		}
	}
	return out
}
