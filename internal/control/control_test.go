package control

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cortexvms/vms-core/internal/app"
	"github.com/cortexvms/vms-core/internal/config"
	"github.com/cortexvms/vms-core/internal/eventbus"
	"github.com/cortexvms/vms-core/internal/logging"
	"github.com/cortexvms/vms-core/internal/store/sqlstore"
	"github.com/cortexvms/vms-core/internal/transcoder"
	"github.com/cortexvms/vms-core/internal/vault"
	"github.com/cortexvms/vms-core/internal/vmscore"
)

// noopDriver never spawns a real subprocess; it's enough for an Application
// to construct (but not necessarily start) Supervisors under test.
type noopDriver struct{}

func (noopDriver) StartLiveSegmenter(ctx context.Context, cameraID, ingressURL, streamDir string) (transcoder.Handle, error) {
	return nil, context.Canceled
}
func (noopDriver) StartRecording(ctx context.Context, cameraID, ingressURL, outputPath string) (transcoder.Handle, error) {
	return nil, context.Canceled
}
func (noopDriver) TakeSnapshot(ctx context.Context, cameraID, ingressURL, outputPath string) error {
	return context.Canceled
}
func (noopDriver) ExtractFrame(ctx context.Context, ingressURL, outputPath string) error {
	return context.Canceled
}

func newTestServer(t *testing.T, requireAuth bool) *Server {
	t.Helper()
	dir := t.TempDir()

	st, err := sqlstore.Open(config.DatabaseConfig{Path: filepath.Join(dir, "control-test.db"), MaxOpenConns: 1}, dir)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	v, err := vault.New([]byte("control-test-master-secret-0123"), "test")
	require.NoError(t, err)

	bus := eventbus.New(8)
	cfg := &config.Config{
		ANPR: config.ANPRConfig{
			EnabledEnv:         "CONTROL_TEST_ANPR_DISABLED_NEVER_SET",
			DetectorBinaryEnv:  "CONTROL_TEST_DETECTOR_UNSET",
			ExtractorBinaryEnv: "CONTROL_TEST_EXTRACTOR_UNSET",
		},
		Health:    config.HealthConfig{IntervalSeconds: 30, TimeoutSeconds: 2},
		Retention: config.RetentionConfig{SweepIntervalHours: 24},
		Storage:   config.StorageConfig{TempDir: dir},
	}
	application := app.New(cfg, st, v, bus, noopDriver{}, logging.NewLogger("control-test"))

	secCfg := config.SecurityConfig{RequireAuth: requireAuth, MutatingRoles: "operator,admin"}
	srv, err := New(application, config.ServerConfig{RateLimitRequests: 1000}, secCfg, "control-test-jwt-secret", logging.NewLogger("control-test"))
	require.NoError(t, err)
	return srv
}

func doRequest(t *testing.T, srv *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, req)
	return rec
}

func TestServer_ListCamerasEmpty(t *testing.T) {
	srv := newTestServer(t, false)
	rec := doRequest(t, srv, http.MethodGet, "/cameras", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var views []cameraView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Empty(t, views)
}

func TestServer_CreateCameraMasksUsernameAndOmitsSecret(t *testing.T) {
	srv := newTestServer(t, false)
	rec := doRequest(t, srv, http.MethodPost, "/cameras", cameraRequest{
		Name:       "front-door",
		IngressURL: "rtsp://cam1/stream",
		Username:   "admin",
		Password:   "hunter2",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotContains(t, rec.Body.String(), "hunter2")

	var view cameraView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Equal(t, "a***n", view.Username)
	require.NotEmpty(t, view.ID)
}

func TestServer_GetCameraNotFound(t *testing.T) {
	srv := newTestServer(t, false)
	rec := doRequest(t, srv, http.MethodGet, "/cameras/00000000-0000-0000-0000-000000000000", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_GetCameraInvalidIDRejected(t *testing.T) {
	srv := newTestServer(t, false)
	rec := doRequest(t, srv, http.MethodGet, "/cameras/not-a-uuid", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_DeleteThenGetReturnsNotFound(t *testing.T) {
	srv := newTestServer(t, false)
	createRec := doRequest(t, srv, http.MethodPost, "/cameras", cameraRequest{
		Name: "temp", IngressURL: "rtsp://temp",
	})
	require.Equal(t, http.StatusCreated, createRec.Code)
	var created cameraView
	require.NoError(t, json.Unmarshal(createRec.Body.Bytes(), &created))

	delRec := doRequest(t, srv, http.MethodDelete, "/cameras/"+created.ID, nil)
	require.Equal(t, http.StatusNoContent, delRec.Code)

	getRec := doRequest(t, srv, http.MethodGet, "/cameras/"+created.ID, nil)
	require.Equal(t, http.StatusNotFound, getRec.Code)
}

func TestServer_CreateCameraRejectsOutOfRangeRetentionDays(t *testing.T) {
	srv := newTestServer(t, false)
	rec := doRequest(t, srv, http.MethodPost, "/cameras", cameraRequest{
		Name:       "bad-retention",
		IngressURL: "rtsp://cam1/stream",
		Recording:  vmscore.RecordingPolicy{Mode: vmscore.RecordingContinuous, SegmentSeconds: 10, RetentionDays: -5},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_HLSSegmentRejectsPathTraversal(t *testing.T) {
	srv := newTestServer(t, false)
	rec := doRequest(t, srv, http.MethodGet, "/cameras/00000000-0000-0000-0000-000000000000/hls/..", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_SystemStatsPassesThrough(t *testing.T) {
	srv := newTestServer(t, false)
	rec := doRequest(t, srv, http.MethodGet, "/system/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_RequireAuthRejectsUnauthenticatedReads(t *testing.T) {
	srv := newTestServer(t, true)
	rec := doRequest(t, srv, http.MethodGet, "/cameras", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServer_MetricsIsNeverAuthGated(t *testing.T) {
	srv := newTestServer(t, true)
	rec := doRequest(t, srv, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}
