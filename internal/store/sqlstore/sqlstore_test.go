package sqlstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/cortexvms/vms-core/internal/config"
	"github.com/cortexvms/vms-core/internal/store"
	"github.com/cortexvms/vms-core/internal/vmscore"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(config.DatabaseConfig{
		Path:          filepath.Join(dir, "vms.db"),
		BusyTimeoutMs: 5000,
		MaxOpenConns:  1,
	}, dir)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_CameraRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cam := &vmscore.Camera{
		ID:         uuid.New().String(),
		Name:       "front-door",
		IngressURL: "rtsp://cam1/stream",
		Status:     vmscore.CameraOffline,
		Recording:  vmscore.RecordingPolicy{Mode: vmscore.RecordingManual, SegmentSeconds: 30, RetentionDays: 14},
		ANPR:       vmscore.ANPRPolicy{Enabled: true, SampleEveryNFrames: 5, ConfidenceThreshold: 0.6},
		Tags:       []string{"entrance", "exterior"},
	}
	require.NoError(t, s.PutCamera(ctx, cam))

	got, err := s.GetCamera(ctx, cam.ID)
	require.NoError(t, err)
	require.Equal(t, cam.Name, got.Name)
	require.Equal(t, cam.IngressURL, got.IngressURL)
	require.ElementsMatch(t, cam.Tags, got.Tags)
	require.True(t, got.ANPR.Enabled)

	list, err := s.ListCameras(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestStore_GetCamera_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetCamera(context.Background(), "missing")
	require.Error(t, err)
	require.True(t, vmscore.OfKind(err, vmscore.KindNotFound))
}

func TestStore_DeleteCameraCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cam := &vmscore.Camera{ID: uuid.New().String(), Name: "cam", IngressURL: "rtsp://x"}
	require.NoError(t, s.PutCamera(ctx, cam))

	rec := &vmscore.Recording{ID: uuid.New().String(), CameraID: cam.ID, Date: "2026-07-30", StartTime: time.Now(), Path: "/records/a.mp4"}
	require.NoError(t, s.PutRecording(ctx, rec))

	evt := &vmscore.ANPREvent{ID: uuid.New().String(), CameraID: cam.ID, Timestamp: time.Now(), Plate: "ABC123", Confidence: 0.9, SnapshotPath: "/snap.jpg"}
	require.NoError(t, s.PutANPREvent(ctx, evt))

	require.NoError(t, s.DeleteCamera(ctx, cam.ID))

	_, err := s.GetCamera(ctx, cam.ID)
	require.Error(t, err)
	_, err = s.GetRecording(ctx, rec.ID)
	require.Error(t, err)
	_, err = s.GetANPREvent(ctx, evt.ID)
	require.Error(t, err)
}

func TestStore_RecordingLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cam := &vmscore.Camera{ID: uuid.New().String(), Name: "cam", IngressURL: "rtsp://x"}
	require.NoError(t, s.PutCamera(ctx, cam))

	rec := &vmscore.Recording{ID: uuid.New().String(), CameraID: cam.ID, Date: "2026-07-30", StartTime: time.Now(), Path: "/records/b.mp4"}
	require.NoError(t, s.PutRecording(ctx, rec))

	got, err := s.GetRecording(ctx, rec.ID)
	require.NoError(t, err)
	require.True(t, got.Active())

	end := rec.StartTime.Add(time.Hour)
	rec.EndTime = &end
	rec.DurationS = 3600
	rec.SizeBytes = 1024
	require.NoError(t, s.PutRecording(ctx, rec))

	got, err = s.GetRecording(ctx, rec.ID)
	require.NoError(t, err)
	require.False(t, got.Active())
	require.Equal(t, 3600, got.DurationS)

	list, err := s.ListRecordings(ctx, store.RecordingFilter{CameraID: cam.ID})
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestStore_ANPREventFilterByPlate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cam := &vmscore.Camera{ID: uuid.New().String(), Name: "cam", IngressURL: "rtsp://x"}
	require.NoError(t, s.PutCamera(ctx, cam))

	for _, plate := range []string{"ABC123", "XYZ999"} {
		evt := &vmscore.ANPREvent{
			ID: uuid.New().String(), CameraID: cam.ID, Timestamp: time.Now(),
			Plate: plate, Confidence: 0.9, SnapshotPath: "/s.jpg",
		}
		require.NoError(t, s.PutANPREvent(ctx, evt))
	}

	results, err := s.ListANPREvents(ctx, store.ANPREventFilter{Plate: "abc"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "ABC123", results[0].Plate)

	count, err := s.CountANPREvents(ctx, cam.ID, nil)
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestStore_SystemStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cam := &vmscore.Camera{ID: uuid.New().String(), Name: "cam", IngressURL: "rtsp://x", Status: vmscore.CameraOnline}
	require.NoError(t, s.PutCamera(ctx, cam))

	stats, err := s.SystemStats(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.TotalCameras)
	require.Equal(t, 1, stats.OnlineCameras)
}

func TestStore_UserRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := &vmscore.User{ID: uuid.New().String(), Email: "Admin@Example.com", PasswordHash: "hash", Role: vmscore.RoleAdmin, CreatedAt: time.Now()}
	require.NoError(t, s.PutUser(ctx, u))

	got, err := s.GetUserByEmail(ctx, "admin@example.com")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)
	require.Equal(t, vmscore.RoleAdmin, got.Role)
}
