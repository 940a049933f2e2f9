package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledIsNoop(t *testing.T) {
	Reset()
	m := NewLifecycle()
	assert.Nil(t, m)

	// Every method must accept a nil receiver.
	m.ObserveEnable(time.Second, nil)
	m.RecordReconciled("evicted", 1)
	m.SetDrainPending(3)
	m.ObserveDrain(time.Second, true)
	m.SetSessions(2)
	m.RecordAuth("login", nil)
	m.RecordTask("cleanup", nil)
	m.RecordBackup("start", nil)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEnabled(t *testing.T) {
	InitRegistry()
	t.Cleanup(Reset)

	m := NewLifecycle()
	require.NotNil(t, m)

	m.ObserveEnable(10*time.Millisecond, nil)
	m.ObserveEnable(10*time.Millisecond, errors.New("boom"))
	m.RecordReconciled("evicted", 3)
	m.ObserveDrain(2*time.Second, true)
	m.SetSessions(4)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.enables.WithLabelValues("failure")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.reconciled.WithLabelValues("evicted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.drainTimeouts))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.sessions))

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "authkeep_sessions 4"))
}
