package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	measurementRequests   = "http_requests"
	measurementAuthEvents = "auth_events"
)

// RequestStat describes one handled HTTP request.
type RequestStat struct {
	Method string
	// Route is the matched route pattern, not the raw path, to keep tag
	// cardinality bounded.
	Route    string
	Status   int
	Strategy string
	Duration time.Duration
	At       time.Time
}

// WriteRequestStat records a handled request. Safe on a nil or closed client.
func (c *Client) WriteRequestStat(s RequestStat) {
	if !c.IsConnected() {
		return
	}

	route := s.Route
	if route == "" {
		route = "unmatched"
	}
	strategy := s.Strategy
	if strategy == "" {
		strategy = "none"
	}
	at := s.At
	if at.IsZero() {
		at = time.Now()
	}

	point := write.NewPoint(
		measurementRequests,
		map[string]string{
			"method":       s.Method,
			"route":        route,
			"status_class": statusClass(s.Status),
			"strategy":     strategy,
		},
		map[string]interface{}{
			"status":      s.Status,
			"duration_ms": float64(s.Duration.Microseconds()) / 1000,
		},
		at,
	)
	c.writeAPI.WritePoint(point)
}

// WriteAuthEvent records the outcome of an authentication action such as
// "login" with outcome "success" or "invalid_credentials".
func (c *Client) WriteAuthEvent(action, outcome string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		measurementAuthEvents,
		map[string]string{
			"action":  action,
			"outcome": outcome,
		},
		map[string]interface{}{
			"count": 1,
		},
		time.Now(),
	)
	c.writeAPI.WritePoint(point)
}

// statusClass maps 404 to "4xx".
func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return strconv.Itoa(status/100) + "xx"
}
