package anpr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cortexvms/vms-core/internal/config"
	"github.com/cortexvms/vms-core/internal/eventbus"
	"github.com/cortexvms/vms-core/internal/logging"
	"github.com/cortexvms/vms-core/internal/metrics"
	"github.com/cortexvms/vms-core/internal/store"
	"github.com/cortexvms/vms-core/internal/vmscore"
)

// FrameExtractor is the subset of transcoder.Driver the Worker needs.
type FrameExtractor interface {
	ExtractFrame(ctx context.Context, ingressURL, outputPath string) error
}

// Worker is the ANPR pipeline for one camera: extract a frame, detect
// candidate plate regions, extract each region's text, accept/suppress,
// persist, and publish (SPEC_FULL §4.4).
type Worker struct {
	cameraID   string
	ingressURL string
	threshold  float64

	extractor FrameExtractor
	detector  Detector
	textOCR   Extractor
	pool      *Pool
	dedup     *Dedup
	store     store.Store
	bus       *eventbus.Bus
	logger    *logging.Logger
	tempDir   string

	detectorTimeout  time.Duration
	extractorTimeout time.Duration
	extractTimeout   time.Duration
}

// Params bundles a Worker's construction arguments.
type Params struct {
	CameraID            string
	IngressURL          string
	ConfidenceThreshold float64
	FrameExtractor      FrameExtractor
	Detector            Detector
	TextExtractor       Extractor
	Pool                *Pool
	Dedup               *Dedup
	Store               store.Store
	Bus                 *eventbus.Bus
	TempDir             string
	ANPRConfig          config.ANPRConfig
}

// New builds a Worker from p.
func New(p Params, logger *logging.Logger) *Worker {
	return &Worker{
		cameraID:         p.CameraID,
		ingressURL:       p.IngressURL,
		threshold:        p.ConfidenceThreshold,
		extractor:        p.FrameExtractor,
		detector:         p.Detector,
		textOCR:          p.TextExtractor,
		pool:             p.Pool,
		dedup:            p.Dedup,
		store:            p.Store,
		bus:              p.Bus,
		tempDir:          p.TempDir,
		logger:           logger.WithField("camera_id", p.CameraID),
		detectorTimeout:  durationOrDefault(p.ANPRConfig.DetectorTimeoutSecs, 15),
		extractorTimeout: durationOrDefault(p.ANPRConfig.ExtractorTimeoutSecs, 15),
		extractTimeout:   5 * time.Second,
	}
}

func durationOrDefault(seconds float64, fallback float64) time.Duration {
	if seconds <= 0 {
		seconds = fallback
	}
	return time.Duration(seconds * float64(time.Second))
}

// Run ticks at sampleEveryNFrames*1000ms until ctx is cancelled, per
// SPEC_FULL §4.4's literal (if oddly named) declared semantics.
func (w *Worker) Run(ctx context.Context, sampleEveryNFrames int) {
	if sampleEveryNFrames <= 0 {
		sampleEveryNFrames = 1
	}
	interval := time.Duration(sampleEveryNFrames) * time.Second

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

// TriggerOnce runs a single one-shot tick, bypassing the sampling interval
// but not the dedup filter or the shared inference pool.
func (w *Worker) TriggerOnce(ctx context.Context) error {
	release, ok := w.pool.TryAcquire()
	if !ok {
		return vmscore.New(vmscore.KindTransient, "anpr.TriggerOnce", "inference pool exhausted")
	}
	defer release()
	return w.runTick(ctx)
}

func (w *Worker) tick(ctx context.Context) {
	release, ok := w.pool.TryAcquire()
	if !ok {
		return // skip; ticks are not retried per SPEC_FULL §4.4 failure semantics
	}
	defer release()

	if err := w.runTick(ctx); err != nil {
		w.logger.WithError(err).DebugWithContext(ctx, "anpr tick did not produce an event")
	}
}

// runTick performs steps 1-8 of SPEC_FULL §4.4 and returns an error only
// for observability; a "no plate found" outcome is not an error.
func (w *Worker) runTick(ctx context.Context) error {
	framePath := filepath.Join(w.tempDir, fmt.Sprintf("frame_%s_%d.jpg", w.cameraID, time.Now().UnixMilli()))
	defer os.Remove(framePath) // delete the temp frame on every exit path

	extractCtx, cancel := context.WithTimeout(ctx, w.extractTimeout)
	defer cancel()
	if err := w.extractor.ExtractFrame(extractCtx, w.ingressURL, framePath); err != nil {
		return vmscore.Wrap(vmscore.KindTransient, "anpr.runTick", "frame extraction failed", err)
	}

	detectCtx, cancel := context.WithTimeout(ctx, w.detectorTimeout)
	defer cancel()
	regions, err := w.detector.Detect(detectCtx, framePath)
	if err != nil {
		return vmscore.Wrap(vmscore.KindTransient, "anpr.runTick", "detector call failed", err)
	}

	for _, region := range regions {
		if err := w.processRegion(ctx, framePath, region); err != nil {
			w.logger.WithError(err).DebugWithContext(ctx, "region did not produce an event")
		}
	}
	return nil
}

func (w *Worker) processRegion(ctx context.Context, framePath string, region Region) error {
	extractCtx, cancel := context.WithTimeout(ctx, w.extractorTimeout)
	defer cancel()

	plate, err := w.textOCR.Extract(extractCtx, framePath, region)
	if err != nil {
		return vmscore.Wrap(vmscore.KindTransient, "anpr.processRegion", "text extraction failed", err)
	}
	plate = normalizePlate(plate)

	if plate == "" || region.Confidence < w.threshold {
		return nil
	}

	now := time.Now().UTC()
	if !w.dedup.Accept(w.cameraID, plate, now) {
		metrics.ANPRSuppressedTotal.WithLabelValues(w.cameraID).Inc()
		return nil
	}

	evt := &vmscore.ANPREvent{
		ID:           uuid.New().String(),
		CameraID:     w.cameraID,
		Timestamp:    now,
		Plate:        plate,
		Confidence:   region.Confidence,
		SnapshotPath: framePath,
		BoundingBox:  vmscore.BoundingBox{X: region.BoundingBox.X, Y: region.BoundingBox.Y, W: region.BoundingBox.W, H: region.BoundingBox.H},
	}
	if err := w.store.PutANPREvent(ctx, evt); err != nil {
		return err
	}

	metrics.ANPREventsTotal.WithLabelValues(w.cameraID).Inc()
	w.bus.Publish(eventbus.TopicANPREvent, evt)
	return nil
}

// normalizePlate uppercases and strips non-alphanumeric characters, then
// enforces the spec's length-3 floor; anything shorter is treated as no
// plate found.
func normalizePlate(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(raw) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	plate := b.String()
	if len(plate) < 3 {
		return ""
	}
	return plate
}
