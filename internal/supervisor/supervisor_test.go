package supervisor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cortexvms/vms-core/internal/eventbus"
	"github.com/cortexvms/vms-core/internal/logging"
	"github.com/cortexvms/vms-core/internal/store"
	"github.com/cortexvms/vms-core/internal/transcoder"
	"github.com/cortexvms/vms-core/internal/vmscore"
)

// fakeHandle is an in-memory transcoder.Handle controlled by the test.
type fakeHandle struct {
	activity transcoder.Activity
	exited   chan struct{}
	mu       sync.Mutex
	status   transcoder.Status
	err      error
	stopped  bool
}

func newFakeHandle(activity transcoder.Activity) *fakeHandle {
	return &fakeHandle{activity: activity, exited: make(chan struct{}), status: transcoder.StatusRunning}
}

func (h *fakeHandle) Activity() transcoder.Activity { return h.activity }
func (h *fakeHandle) Status() transcoder.Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}
func (h *fakeHandle) Exited() <-chan struct{} { return h.exited }
func (h *fakeHandle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}
func (h *fakeHandle) Stop(ctx context.Context, grace time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped || h.status == transcoder.StatusExited {
		return nil
	}
	h.stopped = true
	h.status = transcoder.StatusExited
	close(h.exited)
	return nil
}

// fakeDriver returns fakeHandles the test can exit on demand, and never
// touches a real subprocess.
type fakeDriver struct {
	mu       sync.Mutex
	handles  []*fakeHandle
	failNext bool
}

func (d *fakeDriver) StartLiveSegmenter(ctx context.Context, cameraID, ingressURL, streamDir string) (transcoder.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h := newFakeHandle(transcoder.ActivityLiveSegmenter)
	d.handles = append(d.handles, h)
	return h, nil
}

func (d *fakeDriver) StartRecording(ctx context.Context, cameraID, ingressURL, outputPath string) (transcoder.Handle, error) {
	return newFakeHandle(transcoder.ActivityRecording), nil
}

func (d *fakeDriver) TakeSnapshot(ctx context.Context, cameraID, ingressURL, outputPath string) error {
	return nil
}

func (d *fakeDriver) ExtractFrame(ctx context.Context, ingressURL, outputPath string) error {
	return nil
}

func (d *fakeDriver) lastHandle() *fakeHandle {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.handles[len(d.handles)-1]
}

// fakeStore is a minimal in-memory store.Store sufficient for supervisor tests.
type fakeStore struct {
	mu         sync.Mutex
	recordings map[string]*vmscore.Recording
}

func newFakeStore() *fakeStore { return &fakeStore{recordings: make(map[string]*vmscore.Recording)} }

func (s *fakeStore) PutUser(ctx context.Context, u *vmscore.User) error { return nil }
func (s *fakeStore) GetUser(ctx context.Context, id string) (*vmscore.User, error) {
	return nil, vmscore.New(vmscore.KindNotFound, "fakeStore", "not found")
}
func (s *fakeStore) GetUserByEmail(ctx context.Context, email string) (*vmscore.User, error) {
	return nil, vmscore.New(vmscore.KindNotFound, "fakeStore", "not found")
}
func (s *fakeStore) DeleteUser(ctx context.Context, id string) error { return nil }

func (s *fakeStore) PutCamera(ctx context.Context, c *vmscore.Camera) error { return nil }
func (s *fakeStore) GetCamera(ctx context.Context, id string) (*vmscore.Camera, error) {
	return nil, vmscore.New(vmscore.KindNotFound, "fakeStore", "not found")
}
func (s *fakeStore) ListCameras(ctx context.Context) ([]*vmscore.Camera, error) { return nil, nil }
func (s *fakeStore) DeleteCamera(ctx context.Context, id string) error          { return nil }

func (s *fakeStore) PutRecording(ctx context.Context, r *vmscore.Recording) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordings[r.ID] = r
	return nil
}
func (s *fakeStore) GetRecording(ctx context.Context, id string) (*vmscore.Recording, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.recordings[id]
	if !ok {
		return nil, vmscore.New(vmscore.KindNotFound, "fakeStore", "not found")
	}
	return r, nil
}
func (s *fakeStore) ListRecordings(ctx context.Context, filter store.RecordingFilter) ([]*vmscore.Recording, error) {
	return nil, nil
}
func (s *fakeStore) DeleteRecording(ctx context.Context, id string) error { return nil }

func (s *fakeStore) PutANPREvent(ctx context.Context, e *vmscore.ANPREvent) error { return nil }
func (s *fakeStore) GetANPREvent(ctx context.Context, id string) (*vmscore.ANPREvent, error) {
	return nil, vmscore.New(vmscore.KindNotFound, "fakeStore", "not found")
}
func (s *fakeStore) ListANPREvents(ctx context.Context, filter store.ANPREventFilter) ([]*vmscore.ANPREvent, error) {
	return nil, nil
}
func (s *fakeStore) CountANPREvents(ctx context.Context, cameraID string, since *time.Time) (int, error) {
	return 0, nil
}
func (s *fakeStore) DeleteANPREvent(ctx context.Context, id string) error { return nil }

func (s *fakeStore) SystemStats(ctx context.Context) (*vmscore.SystemStats, error) { return nil, nil }
func (s *fakeStore) Close() error                                                  { return nil }

func testCamera() *vmscore.Camera {
	return &vmscore.Camera{
		ID:         "cam-1",
		Name:       "front-door",
		IngressURL: "rtsp://cam1/stream",
		Status:     vmscore.CameraOffline,
	}
}

func newTestSupervisor(t *testing.T, driver transcoder.Driver) (*Supervisor, context.Context, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	sup := New(testCamera(), driver, newFakeStore(), eventbus.New(8), t.TempDir(), logging.NewLogger("supervisor-test"))
	go sup.Run(ctx)
	t.Cleanup(cancel)
	return sup, ctx, cancel
}

func TestSupervisor_StartTransitionsToOnline(t *testing.T) {
	sup, ctx, _ := newTestSupervisor(t, &fakeDriver{})
	require.NoError(t, sup.Start(ctx))
	require.Equal(t, StateOnline, sup.State())
}

func TestSupervisor_StartIsIdempotent(t *testing.T) {
	driver := &fakeDriver{}
	sup, ctx, _ := newTestSupervisor(t, driver)
	require.NoError(t, sup.Start(ctx))
	require.NoError(t, sup.Start(ctx))
	require.Len(t, driver.handles, 1)
}

func TestSupervisor_StopTransitionsToIdle(t *testing.T) {
	sup, ctx, _ := newTestSupervisor(t, &fakeDriver{})
	require.NoError(t, sup.Start(ctx))
	require.NoError(t, sup.Stop(ctx))
	require.Equal(t, StateIdle, sup.State())
}

func TestSupervisor_BeginEndRecordingLifecycle(t *testing.T) {
	sup, ctx, _ := newTestSupervisor(t, &fakeDriver{})
	require.NoError(t, sup.Start(ctx))

	id, err := sup.BeginRecording(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	_, err = sup.BeginRecording(ctx)
	require.Error(t, err)
	require.True(t, vmscore.OfKind(err, vmscore.KindConflict))

	rec, err := sup.EndRecording(ctx)
	require.NoError(t, err)
	require.Equal(t, id, rec.ID)
	require.NotNil(t, rec.EndTime)

	_, err = sup.EndRecording(ctx)
	require.Error(t, err)
	require.True(t, vmscore.OfKind(err, vmscore.KindNotFound))
}

func TestSupervisor_SnapshotRequiresOnline(t *testing.T) {
	sup, ctx, _ := newTestSupervisor(t, &fakeDriver{})
	_, err := sup.Snapshot(ctx)
	require.Error(t, err)
	require.True(t, vmscore.OfKind(err, vmscore.KindConflict))

	require.NoError(t, sup.Start(ctx))
	path, err := sup.Snapshot(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, path)
}

func TestSupervisor_SegmenterExitTriggersReconnectingThenRestart(t *testing.T) {
	driver := &fakeDriver{}
	sup, ctx, _ := newTestSupervisor(t, driver)
	require.NoError(t, sup.Start(ctx))

	h := driver.lastHandle()
	h.mu.Lock()
	h.status = transcoder.StatusExited
	close(h.exited)
	h.mu.Unlock()

	require.Eventually(t, func() bool {
		return sup.State() == StateReconnecting
	}, time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		return sup.State() == StateOnline
	}, 10*time.Second, 50*time.Millisecond)
}

func TestSupervisor_DeleteFinalizesRecordingThenStopsLive(t *testing.T) {
	sup, ctx, _ := newTestSupervisor(t, &fakeDriver{})
	require.NoError(t, sup.Start(ctx))
	_, err := sup.BeginRecording(ctx)
	require.NoError(t, err)

	require.NoError(t, sup.Delete(ctx))
	require.Equal(t, StateIdle, sup.State())
}

func TestSupervisor_HealthTransitionRestartsFromIdle(t *testing.T) {
	driver := &fakeDriver{}
	sup, ctx, _ := newTestSupervisor(t, driver)

	require.NoError(t, sup.NotifyHealth(ctx, true, vmscore.ObservedMetadata{FPS: 25}))
	require.Equal(t, StateOnline, sup.State())
}

// TestSupervisor_SpawnLiveDoesNotResetBackoffImmediately guards against a
// regression where a successful start alone cleared consecutiveFailures: the
// counter must only reset after stableOnlineWindow of uninterrupted Online
// (SPEC_FULL §4.2), never at spawn time.
func TestSupervisor_SpawnLiveDoesNotResetBackoffImmediately(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	sup := New(testCamera(), &fakeDriver{}, newFakeStore(), eventbus.New(8), t.TempDir(), logging.NewLogger("supervisor-test"))

	sup.consecutiveFailures = 3
	require.NoError(t, sup.spawnLive(ctx))
	require.Equal(t, StateOnline, sup.State())
	require.Equal(t, 3, sup.consecutiveFailures)
}

func TestSupervisor_HandleStableOnlineResetsBackoffOnlyAtMatchingGenerationAndState(t *testing.T) {
	sup := New(testCamera(), &fakeDriver{}, newFakeStore(), eventbus.New(8), t.TempDir(), logging.NewLogger("supervisor-test"))

	sup.consecutiveFailures = 5
	sup.backoffGeneration = 2
	sup.setState(StateOnline)
	sup.handleStableOnline(1) // stale generation: a newer spawn or stop superseded it
	require.Equal(t, 5, sup.consecutiveFailures)

	sup.setState(StateReconnecting)
	sup.handleStableOnline(2) // matching generation, but no longer Online
	require.Equal(t, 5, sup.consecutiveFailures)

	sup.setState(StateOnline)
	sup.handleStableOnline(2)
	require.Equal(t, 0, sup.consecutiveFailures)
}

// TestSupervisor_CrashLoopAccumulatesFailuresToFailed drives a camera that
// restarts successfully but exits again before stableOnlineWindow elapses,
// every cycle. Before the stable-online-timer fix this never reached
// giveUpThreshold because spawnLive cleared consecutiveFailures on every
// restart; it now accumulates and reaches Failed.
func TestSupervisor_CrashLoopAccumulatesFailuresToFailed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	sup := New(testCamera(), &fakeDriver{}, newFakeStore(), eventbus.New(8), t.TempDir(), logging.NewLogger("supervisor-test"))

	require.NoError(t, sup.spawnLive(ctx))
	require.Equal(t, StateOnline, sup.State())

	for i := 1; i <= giveUpThreshold; i++ {
		gen := sup.backoffGeneration
		sup.handleSegmenterExited(ctx, gen)
		if i < giveUpThreshold {
			require.Equal(t, StateReconnecting, sup.State())
			require.NoError(t, sup.spawnLive(ctx)) // restart succeeds well before the stable-online window
		}
	}

	require.Equal(t, StateFailed, sup.State())
	require.Equal(t, giveUpThreshold, sup.consecutiveFailures)
}
