package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tessera/internal/services/scheduler"
)

func TestHealthHandlerReportsOK(t *testing.T) {
	h := NewStatusHandler(nil, nil, arbor.NewLogger())

	rec := httptest.NewRecorder()
	h.HealthHandler(rec, httptest.NewRequest("GET", "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["version"])
}

func TestVersionHandler(t *testing.T) {
	h := NewStatusHandler(nil, nil, arbor.NewLogger())

	rec := httptest.NewRecorder()
	h.VersionHandler(rec, httptest.NewRequest("GET", "/api/version", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body["version"])
}

func TestNotFoundHandler(t *testing.T) {
	h := NewStatusHandler(nil, nil, arbor.NewLogger())

	rec := httptest.NewRecorder()
	h.NotFoundHandler(rec, httptest.NewRequest("GET", "/api/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTriggerJobWithoutScheduler(t *testing.T) {
	h := NewStatusHandler(nil, nil, arbor.NewLogger())

	rec := httptest.NewRecorder()
	h.TriggerJobHandler(rec, httptest.NewRequest("POST", "/api/jobs/trigger?name=health_probe", nil))

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestTriggerJobRunsRegisteredJob(t *testing.T) {
	logger := arbor.NewLogger()
	sched := scheduler.NewService(logger)

	ran := make(chan struct{}, 1)
	require.NoError(t, sched.RegisterJob("probe", "@hourly", func() error {
		ran <- struct{}{}
		return nil
	}))
	require.NoError(t, sched.Start())
	defer sched.Stop()

	h := NewStatusHandler(nil, sched, logger)

	rec := httptest.NewRecorder()
	h.TriggerJobHandler(rec, httptest.NewRequest("POST", "/api/jobs/trigger?name=probe", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run after trigger")
	}
}

func TestTriggerJobRequiresName(t *testing.T) {
	logger := arbor.NewLogger()
	sched := scheduler.NewService(logger)
	require.NoError(t, sched.Start())
	defer sched.Stop()

	h := NewStatusHandler(nil, sched, logger)

	rec := httptest.NewRecorder()
	h.TriggerJobHandler(rec, httptest.NewRequest("POST", "/api/jobs/trigger", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.TriggerJobHandler(rec, httptest.NewRequest("POST", "/api/jobs/trigger?name=missing", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
}
