package retention

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexvms/vms-core/internal/config"
	"github.com/cortexvms/vms-core/internal/logging"
	"github.com/cortexvms/vms-core/internal/store"
	"github.com/cortexvms/vms-core/internal/vmscore"
)

type fakeRetentionStore struct {
	mu         sync.Mutex
	cameras    []*vmscore.Camera
	recordings map[string]*vmscore.Recording
	deleted    []string
}

func newFakeRetentionStore() *fakeRetentionStore {
	return &fakeRetentionStore{recordings: make(map[string]*vmscore.Recording)}
}

func (s *fakeRetentionStore) PutUser(ctx context.Context, u *vmscore.User) error { return nil }
func (s *fakeRetentionStore) GetUser(ctx context.Context, id string) (*vmscore.User, error) {
	return nil, vmscore.New(vmscore.KindNotFound, "fakeRetentionStore", "not found")
}
func (s *fakeRetentionStore) GetUserByEmail(ctx context.Context, email string) (*vmscore.User, error) {
	return nil, vmscore.New(vmscore.KindNotFound, "fakeRetentionStore", "not found")
}
func (s *fakeRetentionStore) DeleteUser(ctx context.Context, id string) error { return nil }

func (s *fakeRetentionStore) PutCamera(ctx context.Context, c *vmscore.Camera) error { return nil }
func (s *fakeRetentionStore) GetCamera(ctx context.Context, id string) (*vmscore.Camera, error) {
	return nil, vmscore.New(vmscore.KindNotFound, "fakeRetentionStore", "not found")
}
func (s *fakeRetentionStore) ListCameras(ctx context.Context) ([]*vmscore.Camera, error) {
	return s.cameras, nil
}
func (s *fakeRetentionStore) DeleteCamera(ctx context.Context, id string) error { return nil }

func (s *fakeRetentionStore) PutRecording(ctx context.Context, r *vmscore.Recording) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordings[r.ID] = r
	return nil
}
func (s *fakeRetentionStore) GetRecording(ctx context.Context, id string) (*vmscore.Recording, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.recordings[id]
	if !ok {
		return nil, vmscore.New(vmscore.KindNotFound, "fakeRetentionStore", "not found")
	}
	return r, nil
}
func (s *fakeRetentionStore) ListRecordings(ctx context.Context, filter store.RecordingFilter) ([]*vmscore.Recording, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*vmscore.Recording
	for _, r := range s.recordings {
		if filter.CameraID != "" && r.CameraID != filter.CameraID {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}
func (s *fakeRetentionStore) DeleteRecording(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.recordings[id]; !ok {
		return vmscore.New(vmscore.KindNotFound, "fakeRetentionStore", "not found")
	}
	delete(s.recordings, id)
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *fakeRetentionStore) PutANPREvent(ctx context.Context, e *vmscore.ANPREvent) error { return nil }
func (s *fakeRetentionStore) GetANPREvent(ctx context.Context, id string) (*vmscore.ANPREvent, error) {
	return nil, vmscore.New(vmscore.KindNotFound, "fakeRetentionStore", "not found")
}
func (s *fakeRetentionStore) ListANPREvents(ctx context.Context, filter store.ANPREventFilter) ([]*vmscore.ANPREvent, error) {
	return nil, nil
}
func (s *fakeRetentionStore) CountANPREvents(ctx context.Context, cameraID string, since *time.Time) (int, error) {
	return 0, nil
}
func (s *fakeRetentionStore) DeleteANPREvent(ctx context.Context, id string) error { return nil }

func (s *fakeRetentionStore) SystemStats(ctx context.Context) (*vmscore.SystemStats, error) {
	return nil, nil
}
func (s *fakeRetentionStore) Close() error { return nil }

func (s *fakeRetentionStore) deletedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.deleted))
	copy(out, s.deleted)
	return out
}

func testLogger() *logging.Logger { return logging.NewLogger("retention-test") }

func TestCollector_DeletesExpiredFinalizedRecording(t *testing.T) {
	st := newFakeRetentionStore()
	st.cameras = []*vmscore.Camera{{ID: "cam-1", Recording: vmscore.RecordingPolicy{RetentionDays: 7}}}

	dir := t.TempDir()
	path := filepath.Join(dir, "old.mp4")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	end := time.Now().Add(-9 * 24 * time.Hour)
	st.recordings["rec-1"] = &vmscore.Recording{
		ID: "rec-1", CameraID: "cam-1",
		StartTime: time.Now().Add(-10 * 24 * time.Hour),
		EndTime:   &end,
		Path:      path,
	}

	c := New(config.RetentionConfig{SweepIntervalHours: 24}, st, testLogger())
	c.sweep(context.Background())

	assert.Equal(t, []string{"rec-1"}, st.deletedIDs())
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestCollector_RecordingWithinRetentionIsKept(t *testing.T) {
	st := newFakeRetentionStore()
	st.cameras = []*vmscore.Camera{{ID: "cam-1", Recording: vmscore.RecordingPolicy{RetentionDays: 30}}}

	end := time.Now().Add(-1 * time.Hour)
	st.recordings["rec-1"] = &vmscore.Recording{
		ID: "rec-1", CameraID: "cam-1",
		StartTime: time.Now().Add(-2 * time.Hour),
		EndTime:   &end,
		Path:      filepath.Join(t.TempDir(), "recent.mp4"),
	}

	c := New(config.RetentionConfig{}, st, testLogger())
	c.sweep(context.Background())

	assert.Empty(t, st.deletedIDs())
}

func TestCollector_ActiveRecordingIsNeverDeleted(t *testing.T) {
	st := newFakeRetentionStore()
	st.cameras = []*vmscore.Camera{{ID: "cam-1", Recording: vmscore.RecordingPolicy{RetentionDays: 1}}}

	st.recordings["rec-1"] = &vmscore.Recording{
		ID: "rec-1", CameraID: "cam-1",
		StartTime: time.Now().Add(-10 * 24 * time.Hour),
		EndTime:   nil,
		Path:      filepath.Join(t.TempDir(), "active.mp4"),
	}

	c := New(config.RetentionConfig{}, st, testLogger())
	c.sweep(context.Background())

	assert.Empty(t, st.deletedIDs())
}

func TestCollector_MissingFileIsNotAnError(t *testing.T) {
	st := newFakeRetentionStore()
	st.cameras = []*vmscore.Camera{{ID: "cam-1", Recording: vmscore.RecordingPolicy{RetentionDays: 1}}}

	end := time.Now().Add(-25 * time.Hour)
	st.recordings["rec-1"] = &vmscore.Recording{
		ID: "rec-1", CameraID: "cam-1",
		StartTime: time.Now().Add(-48 * time.Hour),
		EndTime:   &end,
		Path:      filepath.Join(t.TempDir(), "already-gone.mp4"),
	}

	c := New(config.RetentionConfig{}, st, testLogger())
	require.NotPanics(t, func() { c.sweep(context.Background()) })

	assert.Equal(t, []string{"rec-1"}, st.deletedIDs())
}

func TestCollector_ZeroRetentionDaysSkipsCamera(t *testing.T) {
	st := newFakeRetentionStore()
	st.cameras = []*vmscore.Camera{{ID: "cam-1", Recording: vmscore.RecordingPolicy{RetentionDays: 0}}}

	end := time.Now().Add(-100 * 24 * time.Hour)
	st.recordings["rec-1"] = &vmscore.Recording{
		ID: "rec-1", CameraID: "cam-1",
		StartTime: time.Now().Add(-100 * 24 * time.Hour),
		EndTime:   &end,
		Path:      filepath.Join(t.TempDir(), "ancient.mp4"),
	}

	c := New(config.RetentionConfig{}, st, testLogger())
	c.sweep(context.Background())

	assert.Empty(t, st.deletedIDs())
}

func TestCollector_RunSweepsOnceAtStartupBeforeFirstTick(t *testing.T) {
	st := newFakeRetentionStore()
	st.cameras = []*vmscore.Camera{{ID: "cam-1", Recording: vmscore.RecordingPolicy{RetentionDays: 1}}}

	end := time.Now().Add(-48 * time.Hour)
	st.recordings["rec-1"] = &vmscore.Recording{
		ID: "rec-1", CameraID: "cam-1",
		StartTime: time.Now().Add(-72 * time.Hour),
		EndTime:   &end,
		Path:      filepath.Join(t.TempDir(), "gone.mp4"),
	}

	c := New(config.RetentionConfig{SweepIntervalHours: 24}, st, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return len(st.deletedIDs()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}
