package supervisor

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cortexvms/vms-core/internal/eventbus"
	"github.com/cortexvms/vms-core/internal/logging"
	"github.com/cortexvms/vms-core/internal/metrics"
	"github.com/cortexvms/vms-core/internal/store"
	"github.com/cortexvms/vms-core/internal/transcoder"
	"github.com/cortexvms/vms-core/internal/vmscore"
)

const cmdQueueSize = 16

// stableOnlineWindow is how long a live segmenter must stay Online before
// the backoff counter resets (SPEC_FULL §4.2). A var, not a const, so
// tests can shrink it instead of waiting out the real window.
var stableOnlineWindow = 60 * time.Second

// Supervisor owns one camera's live/record/snapshot Transcoder Driver
// activities and its finite-state machine. All mutation happens inside
// the goroutine started by Run, reached only through the command channel,
// giving the per-camera single-writer discipline of SPEC_FULL §5.
type Supervisor struct {
	driver  transcoder.Driver
	store   store.Store
	bus     *eventbus.Bus
	logger  *logging.Logger
	baseDir string

	cmdCh chan command

	statusMu sync.RWMutex
	state    State
	camera   *vmscore.Camera

	// loop-owned; never touched outside the Run goroutine.
	consecutiveFailures int
	backoffGeneration   int
	liveHandle          transcoder.Handle
	recordingHandle     transcoder.Handle
	activeRecording     *vmscore.Recording
}

// New constructs a Supervisor for cam. Call Run in its own goroutine to
// start processing commands.
func New(cam *vmscore.Camera, driver transcoder.Driver, st store.Store, bus *eventbus.Bus, baseDir string, logger *logging.Logger) *Supervisor {
	return &Supervisor{
		driver:  driver,
		store:   st,
		bus:     bus,
		baseDir: baseDir,
		logger:  logger.WithField("camera_id", cam.ID),
		cmdCh:   make(chan command, cmdQueueSize),
		state:   StateIdle,
		camera:  cam,
	}
}

// State returns the supervisor's current FSM state. Safe for concurrent use.
func (s *Supervisor) State() State {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.state
}

func (s *Supervisor) setState(next State) {
	s.statusMu.Lock()
	s.state = next
	s.statusMu.Unlock()
}

// Run processes commands until ctx is cancelled, then gracefully stops any
// running children before returning.
func (s *Supervisor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return
		case cmd := <-s.cmdCh:
			s.dispatch(ctx, cmd)
		}
	}
}

func (s *Supervisor) shutdown() {
	stopCtx := context.Background()
	if s.activeRecording != nil {
		s.finalizeRecording()
	}
	if s.liveHandle != nil {
		_ = s.liveHandle.Stop(stopCtx, 2*time.Second)
		s.liveHandle = nil
	}
	s.setState(StateIdle)
}

func (s *Supervisor) send(ctx context.Context, kind commandKind, payload interface{}) (interface{}, error) {
	cmd, reply := newCommand(kind, payload)
	select {
	case s.cmdCh <- cmd:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case r := <-reply:
		return r.value, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Start is idempotent: a call while already Starting/Online is a no-op.
func (s *Supervisor) Start(ctx context.Context) error {
	_, err := s.send(ctx, cmdStart, nil)
	return err
}

func (s *Supervisor) Stop(ctx context.Context) error {
	_, err := s.send(ctx, cmdStop, nil)
	return err
}

func (s *Supervisor) Restart(ctx context.Context) error {
	_, err := s.send(ctx, cmdRestart, nil)
	return err
}

// BeginRecording returns the new Recording's id, or a Conflict error if a
// recording is already active.
func (s *Supervisor) BeginRecording(ctx context.Context) (string, error) {
	v, err := s.send(ctx, cmdBeginRecording, nil)
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// EndRecording finalizes and returns the active Recording, or a NotFound
// error if none is active.
func (s *Supervisor) EndRecording(ctx context.Context) (*vmscore.Recording, error) {
	v, err := s.send(ctx, cmdEndRecording, nil)
	if err != nil {
		return nil, err
	}
	return v.(*vmscore.Recording), nil
}

// Snapshot returns the absolute path of a freshly captured frame, or a
// Conflict error when the camera is not Online.
func (s *Supervisor) Snapshot(ctx context.Context) (string, error) {
	v, err := s.send(ctx, cmdSnapshot, nil)
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// UpdateConfig validates and applies a revised camera configuration,
// transitioning to Restarting when the ingress URL or protocol flags change.
func (s *Supervisor) UpdateConfig(ctx context.Context, cam *vmscore.Camera) error {
	_, err := s.send(ctx, cmdUpdateConfig, updateConfigPayload{camera: cam})
	return err
}

// Delete finalizes any active recording, stops the live child, and leaves
// the supervisor in Idle so the caller can safely remove the camera's
// Metadata Store row (SPEC_FULL §4.2 "an incoming delete camera command
// must first stop recording... then stop the live child").
func (s *Supervisor) Delete(ctx context.Context) error {
	_, err := s.send(ctx, cmdDelete, nil)
	return err
}

// NotifyHealth feeds a Health Prober observation into the supervisor's
// serialized command stream.
func (s *Supervisor) NotifyHealth(ctx context.Context, online bool, observed vmscore.ObservedMetadata) error {
	_, err := s.send(ctx, cmdHealthTransition, healthTransitionPayload{online: online, observed: observed})
	return err
}

func (s *Supervisor) dispatch(ctx context.Context, cmd command) {
	switch cmd.kind {
	case cmdStart:
		cmd.reply <- result{err: s.handleStart(ctx)}
	case cmdStop:
		cmd.reply <- result{err: s.handleStop(ctx)}
	case cmdRestart:
		cmd.reply <- result{err: s.handleRestart(ctx)}
	case cmdBeginRecording:
		id, err := s.handleBeginRecording(ctx)
		cmd.reply <- result{value: id, err: err}
	case cmdEndRecording:
		rec, err := s.handleEndRecording()
		cmd.reply <- result{value: rec, err: err}
	case cmdSnapshot:
		path, err := s.handleSnapshot(ctx)
		cmd.reply <- result{value: path, err: err}
	case cmdUpdateConfig:
		cmd.reply <- result{err: s.handleUpdateConfig(ctx, cmd.payload.(updateConfigPayload))}
	case cmdDelete:
		cmd.reply <- result{err: s.handleDelete(ctx)}
	case cmdHealthTransition:
		cmd.reply <- result{err: s.handleHealthTransition(ctx, cmd.payload.(healthTransitionPayload))}
	case cmdSegmenterExited:
		s.handleSegmenterExited(ctx, cmd.payload.(int))
		close(cmd.reply)
	case cmdBackoffRestart:
		gen := cmd.payload.(int)
		if gen == s.backoffGeneration && s.State() == StateReconnecting {
			_ = s.handleRestart(ctx)
		}
		close(cmd.reply)
	case cmdStableOnline:
		s.handleStableOnline(cmd.payload.(int))
		close(cmd.reply)
	}
}

// handleStableOnline resets the crash-loop backoff counter once the live
// child spawned as generation gen has stayed Online for stableOnlineWindow.
// A generation mismatch means a newer spawn (or stop) has already
// superseded it; a state other than Online means it didn't make it.
func (s *Supervisor) handleStableOnline(gen int) {
	if gen == s.backoffGeneration && s.State() == StateOnline {
		s.consecutiveFailures = 0
	}
}

func (s *Supervisor) handleStart(ctx context.Context) error {
	switch s.State() {
	case StateStarting, StateOnline:
		return nil // idempotent
	}
	return s.spawnLive(ctx)
}

func (s *Supervisor) spawnLive(ctx context.Context) error {
	streamDir := filepath.Join(s.baseDir, "streams", s.camera.ID, "live")
	h, err := s.driver.StartLiveSegmenter(ctx, s.camera.ID, s.camera.IngressURL, streamDir)
	if err != nil {
		s.setState(StateFailed)
		return vmscore.Wrap(vmscore.KindTransient, "supervisor.spawnLive", "failed to start live segmenter", err)
	}
	s.liveHandle = h
	s.setState(StateStarting)
	s.watchSegmenterExit(h)
	gen := s.backoffGeneration

	// The spec models "segmenter success" as observing the first segment;
	// a successful process start is treated as that signal here since the
	// Transcoder Driver reports process-level state, not playlist content.
	s.setState(StateOnline)
	metrics.SetCameraStatus(s.camera.ID, string(s.camera.Status), string(vmscore.CameraOnline))
	s.camera.Status = vmscore.CameraOnline
	s.bus.Publish(eventbus.TopicCameraStatus, s.camera.ID)
	s.watchStableOnline(ctx, gen)
	return nil
}

// watchStableOnline resets the backoff counter once the live child has run
// Online for stableOnlineWindow without exiting. gen pins the check to the
// child generation spawned alongside it, so a crash-loop that never reaches
// the window never resets consecutiveFailures (SPEC_FULL §4.2).
func (s *Supervisor) watchStableOnline(ctx context.Context, gen int) {
	go func() {
		timer := time.NewTimer(stableOnlineWindow)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return
		}
		cmd, reply := newCommand(cmdStableOnline, gen)
		select {
		case s.cmdCh <- cmd:
			<-reply
		case <-ctx.Done():
		}
	}()
}

// watchSegmenterExit translates the handle's async exit into a serialized
// command so only the Run goroutine ever observes it.
func (s *Supervisor) watchSegmenterExit(h transcoder.Handle) {
	s.backoffGeneration++
	gen := s.backoffGeneration
	go func() {
		<-h.Exited()
		cmd, reply := newCommand(cmdSegmenterExited, gen)
		s.cmdCh <- cmd
		<-reply
	}()
}

func (s *Supervisor) handleSegmenterExited(ctx context.Context, generation int) {
	if generation != s.backoffGeneration {
		return // stale watcher from a prior generation of the live child
	}
	switch s.State() {
	case StateStopping, StateIdle:
		return // expected exit from a graceful stop already in flight
	}

	s.consecutiveFailures++
	if s.consecutiveFailures >= giveUpThreshold {
		s.setState(StateFailed)
		s.camera.Status = vmscore.CameraError
		s.bus.Publish(eventbus.TopicCameraStatus, s.camera.ID)
		return
	}

	s.setState(StateReconnecting)
	s.camera.Status = vmscore.CameraReconnecting
	s.bus.Publish(eventbus.TopicCameraStatus, s.camera.ID)

	delay := time.Duration(nextBackoffSeconds(s.consecutiveFailures)) * time.Second
	gen := s.backoffGeneration
	go func() {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return
		}
		cmd, reply := newCommand(cmdBackoffRestart, gen)
		select {
		case s.cmdCh <- cmd:
			<-reply
		case <-ctx.Done():
		}
	}()
}

func (s *Supervisor) handleStop(ctx context.Context) error {
	switch s.State() {
	case StateIdle, StateStopping:
		return nil
	}
	s.setState(StateStopping)
	if s.activeRecording != nil {
		s.finalizeRecording()
	}
	if s.liveHandle != nil {
		if err := s.liveHandle.Stop(ctx, 2*time.Second); err != nil {
			s.logger.WithError(err).Warn("live segmenter did not stop cleanly")
		}
		s.liveHandle = nil
	}
	s.backoffGeneration++ // invalidate any in-flight exit watcher/backoff timer
	s.setState(StateIdle)
	s.camera.Status = vmscore.CameraOffline
	s.bus.Publish(eventbus.TopicCameraStatus, s.camera.ID)
	return nil
}

func (s *Supervisor) handleRestart(ctx context.Context) error {
	if err := s.handleStop(ctx); err != nil {
		return err
	}
	return s.spawnLive(ctx)
}

func (s *Supervisor) handleBeginRecording(ctx context.Context) (string, error) {
	if s.activeRecording != nil {
		return "", vmscore.New(vmscore.KindConflict, "supervisor.BeginRecording", "recording already active")
	}

	now := time.Now().UTC()
	rec := &vmscore.Recording{
		ID:        uuid.New().String(),
		CameraID:  s.camera.ID,
		Date:      now.Format("2006-01-02"),
		StartTime: now,
		Path:      filepath.Join(s.baseDir, "records", s.camera.ID, now.Format("2006-01-02"), fmt.Sprintf("%s.mp4", uuid.New().String())),
	}

	h, err := s.driver.StartRecording(ctx, s.camera.ID, s.camera.IngressURL, rec.Path)
	if err != nil {
		return "", vmscore.Wrap(vmscore.KindTransient, "supervisor.BeginRecording", "failed to start recording", err)
	}
	if err := s.store.PutRecording(ctx, rec); err != nil {
		_ = h.Stop(context.Background(), 2*time.Second)
		return "", err
	}

	s.activeRecording = rec
	s.recordingHandle = h
	metrics.ActiveRecordings.WithLabelValues(s.camera.ID).Inc()
	s.bus.Publish(eventbus.TopicRecordingStarted, rec.ID)
	return rec.ID, nil
}

func (s *Supervisor) handleEndRecording() (*vmscore.Recording, error) {
	if s.activeRecording == nil {
		return nil, vmscore.New(vmscore.KindNotFound, "supervisor.EndRecording", "no active recording")
	}
	rec := s.finalizeRecording()
	return rec, nil
}

// finalizeRecording stops the recording child, stamps end time, and
// persists the finalized row. Returns the finalized recording, or nil if
// none was active.
func (s *Supervisor) finalizeRecording() *vmscore.Recording {
	if s.activeRecording == nil {
		return nil
	}
	rec := s.activeRecording
	if s.recordingHandle != nil {
		_ = s.recordingHandle.Stop(context.Background(), 2*time.Second)
		s.recordingHandle = nil
	}
	end := time.Now().UTC()
	rec.EndTime = &end
	rec.DurationS = int(end.Sub(rec.StartTime).Seconds())

	if err := s.store.PutRecording(context.Background(), rec); err != nil {
		s.logger.WithError(err).Error("failed to persist finalized recording")
	}
	metrics.ActiveRecordings.WithLabelValues(s.camera.ID).Dec()
	s.bus.Publish(eventbus.TopicRecordingStopped, rec.ID)
	s.activeRecording = nil
	return rec
}

func (s *Supervisor) handleSnapshot(ctx context.Context) (string, error) {
	if s.State() != StateOnline {
		return "", vmscore.New(vmscore.KindConflict, "supervisor.Snapshot", "camera is not online")
	}
	path := filepath.Join(s.baseDir, "snapshots", s.camera.ID, fmt.Sprintf("%s.jpg", uuid.New().String()))
	if err := s.driver.TakeSnapshot(ctx, s.camera.ID, s.camera.IngressURL, path); err != nil {
		return "", vmscore.Wrap(vmscore.KindTransient, "supervisor.Snapshot", "snapshot capture failed", err)
	}
	return path, nil
}

func (s *Supervisor) handleUpdateConfig(ctx context.Context, p updateConfigPayload) error {
	ingressChanged := p.camera.IngressURL != s.camera.IngressURL
	protocolChanged := p.camera.ProtocolHLS != s.camera.ProtocolHLS ||
		p.camera.ProtocolRecord != s.camera.ProtocolRecord ||
		p.camera.ProtocolANPR != s.camera.ProtocolANPR

	if !ingressChanged && !protocolChanged {
		s.camera = p.camera
		return nil
	}

	s.setState(StateRestarting)
	if s.activeRecording != nil && ingressChanged {
		s.finalizeRecording()
	}
	if s.liveHandle != nil {
		_ = s.liveHandle.Stop(ctx, 2*time.Second)
		s.liveHandle = nil
	}
	s.backoffGeneration++
	s.camera = p.camera
	s.setState(StateStarting)
	return s.spawnLive(ctx)
}

func (s *Supervisor) handleDelete(ctx context.Context) error {
	if s.activeRecording != nil {
		s.finalizeRecording()
	}
	if s.liveHandle != nil {
		_ = s.liveHandle.Stop(ctx, 2*time.Second)
		s.liveHandle = nil
	}
	s.backoffGeneration++
	s.setState(StateIdle)
	return nil
}

func (s *Supervisor) handleHealthTransition(ctx context.Context, p healthTransitionPayload) error {
	s.camera.ObservedMetadata = p.observed
	previous := s.camera.Status
	if p.online {
		s.camera.Status = vmscore.CameraOnline
		if s.State() == StateIdle || s.State() == StateFailed {
			if err := s.spawnLive(ctx); err != nil {
				return err
			}
		}
	} else {
		s.camera.Status = vmscore.CameraOffline
	}
	if previous != s.camera.Status {
		s.bus.Publish(eventbus.TopicCameraStatus, s.camera.ID)
	}
	return nil
}

