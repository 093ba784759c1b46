package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRequest(t *testing.T) {
	m := New("test")

	m.ObserveRequest(http.MethodGet, "/users/{id}", http.StatusForbidden, 12*time.Millisecond)
	m.ObserveRequest(http.MethodGet, "/users/{id}", http.StatusForbidden, 3*time.Millisecond)
	m.ObserveRequest(http.MethodPost, "", http.StatusNotFound, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/users/{id}", "403")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("POST", "unmatched", "404")))
}

func TestAuthOutcome(t *testing.T) {
	m := New("test")

	m.AuthOutcome("login", "success")
	m.AuthOutcome("login", "invalid_credentials")
	m.AuthOutcome("login", "invalid_credentials")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.authOutcomes.WithLabelValues("login", "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.authOutcomes.WithLabelValues("login", "invalid_credentials")))
}

func TestInFlight(t *testing.T) {
	m := New("test")

	m.InFlight(1)
	m.InFlight(1)
	m.InFlight(-1)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpInFlight))
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New("1.2.3")
	m.AuthOutcome("refresh", "success")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	text := string(body)

	assert.True(t, strings.Contains(text, `ams_build_info{version="1.2.3"} 1`), "build_info missing")
	assert.Contains(t, text, `ams_auth_outcomes_total{action="refresh",outcome="success"} 1`)
	assert.Contains(t, text, "go_goroutines")
}

func TestIndependentRegistries(t *testing.T) {
	// Two instances must not panic on duplicate registration.
	a, b := New("a"), New("b")
	a.AuthOutcome("login", "success")

	assert.Equal(t, 0.0, testutil.ToFloat64(b.authOutcomes.WithLabelValues("login", "success")))
}
