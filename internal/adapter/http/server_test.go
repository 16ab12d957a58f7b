package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	httpadapter "github.com/couchcryptid/region-sentinel/internal/adapter/http"
	"github.com/couchcryptid/region-sentinel/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRegions struct {
	readyErr  error
	status    map[string]*domain.RegionVersion
	statusErr error
	syncOK    bool
	syncErr   error
	synced    []string
}

func (m *mockRegions) CheckReadiness(_ context.Context) error { return m.readyErr }

func (m *mockRegions) RegionStatus(_ context.Context, id string) (*domain.RegionVersion, error) {
	if m.statusErr != nil {
		return nil, m.statusErr
	}
	v, ok := m.status[id]
	if !ok && id == "atlantis" {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownRegion, id)
	}
	return v, nil
}

func (m *mockRegions) TriggerSync(_ context.Context, id string) (bool, error) {
	m.synced = append(m.synced, id)
	return m.syncOK, m.syncErr
}

func newTestServer(m *mockRegions) *httpadapter.Server {
	return httpadapter.NewServer(":0", m, slog.Default())
}

func serve(srv *httpadapter.Server, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestHealthzReturns200(t *testing.T) {
	rec := serve(newTestServer(&mockRegions{}), http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec := serve(newTestServer(&mockRegions{}), http.MethodGet, "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	rec := serve(newTestServer(&mockRegions{readyErr: fmt.Errorf("no region has synced yet")}), http.MethodGet, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"not ready","error":"no region has synced yet"}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	rec := serve(newTestServer(&mockRegions{}), http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestRegionStatus(t *testing.T) {
	synced := time.Date(2026, 2, 1, 8, 30, 0, 0, time.UTC)
	m := &mockRegions{status: map[string]*domain.RegionVersion{
		"chiang-mai": {RegionID: "chiang-mai", Version: synced.UnixMilli(), LastCheck: synced, FeatureCount: 312},
	}}
	rec := serve(newTestServer(m), http.MethodGet, "/regions/chiang-mai")

	assert.Equal(t, http.StatusOK, rec.Code)
	var body domain.RegionVersion
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "chiang-mai", body.RegionID)
	assert.Equal(t, 312, body.FeatureCount)
	assert.True(t, synced.Equal(body.LastCheck))
}

func TestRegionStatus_NotFound(t *testing.T) {
	srv := newTestServer(&mockRegions{})

	rec := serve(srv, http.MethodGet, "/regions/pai")
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"region has not synced yet"}`, rec.Body.String())

	assert.Equal(t, http.StatusNotFound, serve(srv, http.MethodGet, "/regions/atlantis").Code, "unknown region")
	assert.Equal(t, http.StatusNotFound, serve(srv, http.MethodGet, "/regions/pai").Code, "never synced")
}

func TestRegionStatus_StoreError(t *testing.T) {
	rec := serve(newTestServer(&mockRegions{statusErr: fmt.Errorf("redis down")}), http.MethodGet, "/regions/pai")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRegionSync(t *testing.T) {
	tests := []struct {
		name     string
		m        *mockRegions
		wantCode int
		wantOK   bool
	}{
		{"success", &mockRegions{syncOK: true}, http.StatusOK, true},
		{"sync failed", &mockRegions{syncOK: false}, http.StatusOK, false},
		{"unknown", &mockRegions{syncErr: fmt.Errorf("%w: x", domain.ErrUnknownRegion)}, http.StatusNotFound, false},
		{"busy", &mockRegions{syncErr: fmt.Errorf("%w: x", domain.ErrSyncInProgress)}, http.StatusConflict, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(newTestServer(tt.m), http.MethodPost, "/regions/pai/sync")
			require.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, []string{"pai"}, tt.m.synced)
			if tt.wantCode != http.StatusOK {
				return
			}
			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, "pai", body["region_id"])
			assert.Equal(t, tt.wantOK, body["ok"])
		})
	}
}

func TestRegionSync_RequiresPost(t *testing.T) {
	m := &mockRegions{}
	rec := serve(newTestServer(m), http.MethodGet, "/regions/pai/sync")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Empty(t, m.synced)
}
