package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duewatch/internal/types"
)

type mockRunner struct {
	summary types.SweepSummary
	err     error

	gotDryRun bool
	gotForce  bool
	calls     int
}

func (m *mockRunner) TriggerManual(ctx context.Context, dryRun, force bool) (types.SweepSummary, error) {
	m.calls++
	m.gotDryRun = dryRun
	m.gotForce = force
	return m.summary, m.err
}

type mockHistory struct {
	runs []*types.SweepRun
	err  error
}

func (m *mockHistory) ListRuns(ctx context.Context, limit int) ([]*types.SweepRun, error) {
	return m.runs, m.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func schedulerRouter(runner *mockRunner, history *mockHistory) http.Handler {
	r := chi.NewRouter()
	NewSchedulerHandler(runner, history, testLogger()).RegisterRoutes(r)
	return r
}

func TestHandleRunEmptyBody(t *testing.T) {
	runner := &mockRunner{summary: types.SweepSummary{Checked: 3, Notified: 1, Skipped: 2}}
	router := schedulerRouter(runner, &mockHistory{})

	req := httptest.NewRequest(http.MethodPost, "/scheduler/run", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp RunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 3, resp.Result.Checked)
	assert.Equal(t, 1, resp.Result.Notified)
	assert.False(t, runner.gotDryRun)
	assert.False(t, runner.gotForce)
}

func TestHandleRunDryRunForce(t *testing.T) {
	runner := &mockRunner{summary: types.SweepSummary{Checked: 1, Notified: 1}}
	router := schedulerRouter(runner, &mockHistory{})

	req := httptest.NewRequest(http.MethodPost, "/scheduler/run",
		strings.NewReader(`{"dry_run":true,"force":true}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, runner.gotDryRun)
	assert.True(t, runner.gotForce)

	var resp RunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Message, "dry run")
}

func TestHandleRunPartialFailuresStillSucceed(t *testing.T) {
	runner := &mockRunner{summary: types.SweepSummary{Checked: 5, Notified: 3, Failed: 2}}
	router := schedulerRouter(runner, &mockHistory{})

	req := httptest.NewRequest(http.MethodPost, "/scheduler/run", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp RunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Contains(t, resp.Message, "failures")
	assert.Equal(t, 2, resp.Result.Failed)
}

func TestHandleRunConflictWhileSweeping(t *testing.T) {
	runner := &mockRunner{err: types.NewAppError(types.ErrCodeConflictSweepRunning, "a sweep is already running", nil)}
	router := schedulerRouter(runner, &mockHistory{})

	req := httptest.NewRequest(http.MethodPost, "/scheduler/run", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), string(types.ErrCodeConflictSweepRunning))
}

func TestHandleRunRejectsUnknownFields(t *testing.T) {
	runner := &mockRunner{}
	router := schedulerRouter(runner, &mockHistory{})

	req := httptest.NewRequest(http.MethodPost, "/scheduler/run",
		strings.NewReader(`{"dry_run":true,"nope":1}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, runner.calls)
}

func TestHandleListSweeps(t *testing.T) {
	history := &mockHistory{runs: []*types.SweepRun{
		{ID: 2, Trigger: "manual", Status: "success"},
		{ID: 1, Trigger: "scheduled", Status: "success"},
	}}
	router := schedulerRouter(&mockRunner{}, history)

	req := httptest.NewRequest(http.MethodGet, "/sweeps", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Sweeps []*types.SweepRun `json:"sweeps"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Sweeps, 2)
}

func TestHandleListSweepsInvalidLimit(t *testing.T) {
	router := schedulerRouter(&mockRunner{}, &mockHistory{})

	req := httptest.NewRequest(http.MethodGet, "/sweeps?limit=zero", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
