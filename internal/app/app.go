package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cortexvms/vms-core/internal/anpr"
	"github.com/cortexvms/vms-core/internal/config"
	"github.com/cortexvms/vms-core/internal/eventbus"
	"github.com/cortexvms/vms-core/internal/health"
	"github.com/cortexvms/vms-core/internal/logging"
	"github.com/cortexvms/vms-core/internal/retention"
	"github.com/cortexvms/vms-core/internal/store"
	"github.com/cortexvms/vms-core/internal/supervisor"
	"github.com/cortexvms/vms-core/internal/transcoder"
	"github.com/cortexvms/vms-core/internal/vault"
	"github.com/cortexvms/vms-core/internal/vmscore"
)

// cameraFabric is the set of long-running goroutines one camera owns.
type cameraFabric struct {
	supervisor *supervisor.Supervisor
	worker     *anpr.Worker
	cancel     context.CancelFunc
}

// Application is the composition root: it wires the Metadata Store,
// Credential Vault, Event Bus, Health Prober, Retention Collector, and the
// per-camera Supervisor/ANPR Worker fabric, and is the single place the
// Control Surface calls into.
type Application struct {
	cfg    *config.Config
	store  store.Store
	vault  *vault.Vault
	bus    *eventbus.Bus
	driver transcoder.Driver
	logger *logging.Logger

	prober    *health.Prober
	retention *retention.Collector
	dedup     *anpr.Dedup
	anprPool  *anpr.Pool
	detector  anpr.Detector
	extractor anpr.Extractor

	anprGloballyEnabled bool

	// baseDir is the filesystem root the Supervisor joins its hardcoded
	// "streams"/"records"/"snapshots" subdirectory names onto (SPEC_FULL
	// §6.3). The Control Surface's file-serving routes read from the same
	// literal subdirectory names under baseDir so the two agree without
	// needing the configured directory-name fields to be threaded through
	// the Supervisor itself.
	baseDir       string
	streamsDir    string
	recordingsDir string
	snapshotsDir  string
	tempDir       string

	mu        sync.RWMutex
	cameras   map[string]*cameraFabric
	runCtx    context.Context
	runCancel context.CancelFunc
	wg        sync.WaitGroup
}

// New constructs the Application. Call Run to start the ambient loops
// (health prober, retention collector, dedup pruner) and any cameras
// already present in the store; use the Create*/control methods
// afterward to bring up additional cameras at runtime.
func New(cfg *config.Config, st store.Store, v *vault.Vault, bus *eventbus.Bus, driver transcoder.Driver, logger *logging.Logger) *Application {
	detector := anpr.NewCLIDetector(cfg.ANPR.DetectorBinaryEnv)
	extractor := anpr.NewCLIExtractor(cfg.ANPR.ExtractorBinaryEnv)

	dedupWindow := time.Duration(cfg.ANPR.DedupWindowSeconds) * time.Second
	dedupMaxAge := time.Duration(cfg.ANPR.DedupMaxAgeSeconds) * time.Second

	return &Application{
		cfg:                 cfg,
		store:                st,
		vault:                v,
		bus:                  bus,
		driver:               driver,
		logger:               logger,
		prober:               health.New(cfg.Health, bus, logger.WithField("component", "health")),
		retention:            retention.New(cfg.Retention, st, logger),
		dedup:                anpr.NewDedup(dedupWindow, dedupMaxAge),
		anprPool:             anpr.NewPool(cfg.ANPR.WorkerPoolSize),
		detector:             detector,
		extractor:            extractor,
		anprGloballyEnabled:  os.Getenv(cfg.ANPR.EnabledEnv) != "false",
		baseDir:              ".",
		streamsDir:           filepath.Join(".", "streams"),
		recordingsDir:        filepath.Join(".", "records"),
		snapshotsDir:         filepath.Join(".", "snapshots"),
		tempDir:              cfg.Storage.TempDir,
		cameras:              make(map[string]*cameraFabric),
	}
}

// StreamsDir, RecordingsDir, and SnapshotsDir expose the filesystem roots
// the Control Surface's file-serving routes read from, matching the
// Supervisor's hardcoded layout (SPEC_FULL §6.3).
func (a *Application) StreamsDir() string    { return a.streamsDir }
func (a *Application) RecordingsDir() string { return a.recordingsDir }
func (a *Application) SnapshotsDir() string  { return a.snapshotsDir }

// Store exposes the Metadata Store for the Control Surface's read-only
// list/get routes, which need no Supervisor involvement.
func (a *Application) Store() store.Store { return a.store }

// Bus exposes the Event Bus so the WebSocket hub can subscribe directly.
func (a *Application) Bus() *eventbus.Bus { return a.bus }

// Run starts the ambient loops and a Supervisor/ANPR Worker pair for every
// camera already in the Metadata Store, then blocks until ctx is
// cancelled or a component returns a fatal error.
func (a *Application) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.runCtx = runCtx
	a.runCancel = cancel
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error { a.prober.Run(gctx); return nil })
	g.Go(func() error { a.retention.Run(gctx); return nil })
	g.Go(func() error {
		a.dedup.Run(gctx, time.Duration(a.cfg.ANPR.DedupPruneInterval)*time.Second)
		return nil
	})

	cams, err := a.store.ListCameras(runCtx)
	if err != nil {
		return fmt.Errorf("app: loading cameras at startup: %w", err)
	}
	for _, cam := range cams {
		if err := a.startCamera(runCtx, cam); err != nil {
			a.logger.WithField("camera_id", cam.ID).WithError(err).Error("failed to start camera at startup")
		}
	}

	err = g.Wait()
	a.wg.Wait()
	return err
}

// Shutdown cancels every running component and waits for their goroutines
// to exit.
func (a *Application) Shutdown() {
	if a.runCancel != nil {
		a.runCancel()
	}
	a.wg.Wait()
}

// startCamera brings up a Supervisor (and, if the camera's ANPR policy and
// the global switch both allow it, an ANPR Worker) for cam, registers it
// with the Health Prober, and tracks its goroutines for shutdown.
func (a *Application) startCamera(parent context.Context, cam *vmscore.Camera) error {
	a.mu.Lock()
	if _, exists := a.cameras[cam.ID]; exists {
		a.mu.Unlock()
		return vmscore.New(vmscore.KindConflict, "app.startCamera", "camera already running: "+cam.ID)
	}
	a.mu.Unlock()

	camCtx, cancel := context.WithCancel(parent)
	sup := supervisor.New(cam, a.driver, a.store, a.bus, a.baseDir, a.logger)

	fab := &cameraFabric{supervisor: sup, cancel: cancel}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		sup.Run(camCtx)
	}()

	a.prober.Watch(health.Target{CameraID: cam.ID, IngressURL: cam.IngressURL, Notifier: sup})

	if a.anprGloballyEnabled && cam.ProtocolANPR && cam.ANPR.Enabled {
		worker := anpr.New(anpr.Params{
			CameraID:            cam.ID,
			IngressURL:          cam.IngressURL,
			ConfidenceThreshold: cam.ANPR.ConfidenceThreshold,
			FrameExtractor:      a.driver,
			Detector:            a.detector,
			TextExtractor:       a.extractor,
			Pool:                a.anprPool,
			Dedup:               a.dedup,
			Store:               a.store,
			Bus:                 a.bus,
			TempDir:             a.tempDir,
			ANPRConfig:          a.cfg.ANPR,
		}, a.logger)
		fab.worker = worker

		sampleEvery := cam.ANPR.SampleEveryNFrames
		if sampleEvery <= 0 {
			sampleEvery = 5
		}
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			worker.Run(camCtx, sampleEvery)
		}()
	}

	a.mu.Lock()
	a.cameras[cam.ID] = fab
	a.mu.Unlock()

	return nil
}

// stopCamera cancels cam's Supervisor/Worker goroutines and stops probing
// it, without touching the Metadata Store.
func (a *Application) stopCamera(cameraID string) {
	a.mu.Lock()
	fab, ok := a.cameras[cameraID]
	if ok {
		delete(a.cameras, cameraID)
	}
	a.mu.Unlock()
	if !ok {
		return
	}
	a.prober.Unwatch(cameraID)
	fab.cancel()
}

func (a *Application) supervisorFor(cameraID string) (*supervisor.Supervisor, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	fab, ok := a.cameras[cameraID]
	if !ok {
		return nil, false
	}
	return fab.supervisor, true
}

func (a *Application) workerFor(cameraID string) (*anpr.Worker, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	fab, ok := a.cameras[cameraID]
	if !ok || fab.worker == nil {
		return nil, false
	}
	return fab.worker, true
}

