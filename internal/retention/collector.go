package retention

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/cortexvms/vms-core/internal/config"
	"github.com/cortexvms/vms-core/internal/logging"
	"github.com/cortexvms/vms-core/internal/metrics"
	"github.com/cortexvms/vms-core/internal/store"
)

const defaultSweepInterval = 24 * time.Hour

// Collector is the Retention Collector: it sweeps all cameras' recordings
// once at startup and then every interval, deleting the file and then the
// row for any finalized recording older than that camera's configured
// retention window.
type Collector struct {
	store    store.Store
	logger   *logging.Logger
	interval time.Duration
}

// New builds a Collector. A non-positive SweepIntervalHours falls back to
// the spec's 24h default.
func New(cfg config.RetentionConfig, st store.Store, logger *logging.Logger) *Collector {
	interval := defaultSweepInterval
	if cfg.SweepIntervalHours > 0 {
		interval = time.Duration(cfg.SweepIntervalHours) * time.Hour
	}
	return &Collector{store: st, logger: logger, interval: interval}
}

// Run sweeps once immediately, then every interval, until ctx is cancelled.
func (c *Collector) Run(ctx context.Context) {
	c.sweep(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sweep(ctx)
		}
	}
}

func (c *Collector) sweep(ctx context.Context) {
	start := time.Now()
	defer func() {
		metrics.RetentionSweepDuration.Observe(time.Since(start).Seconds())
	}()

	cameras, err := c.store.ListCameras(ctx)
	if err != nil {
		c.logger.WithError(err).Error("retention sweep could not list cameras")
		return
	}

	for _, cam := range cameras {
		if err := ctx.Err(); err != nil {
			return
		}
		c.sweepCamera(ctx, cam.ID, cam.Recording.RetentionDays)
	}
}

func (c *Collector) sweepCamera(ctx context.Context, cameraID string, retentionDays int) {
	if retentionDays <= 0 {
		return
	}
	cutoff := time.Now().Add(-time.Duration(retentionDays) * 24 * time.Hour)

	recordings, err := c.store.ListRecordings(ctx, store.RecordingFilter{CameraID: cameraID})
	if err != nil {
		c.logger.WithError(err).WithField("camera_id", cameraID).Error("retention sweep could not list recordings")
		return
	}

	for _, rec := range recordings {
		if rec.Active() || !rec.StartTime.Before(cutoff) {
			continue
		}
		c.deleteExpired(ctx, rec.ID, rec.Path)
	}
}

func (c *Collector) deleteExpired(ctx context.Context, recordingID, path string) {
	outcome := "deleted"
	if err := os.Remove(path); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			c.logger.WithError(err).WithField("recording_id", recordingID).Warn("failed to remove expired recording file")
			return
		}
		outcome = "file_missing"
	}

	if err := c.store.DeleteRecording(ctx, recordingID); err != nil {
		c.logger.WithError(err).WithField("recording_id", recordingID).Warn("failed to delete expired recording row")
		return
	}

	metrics.RetentionDeletedTotal.WithLabelValues(outcome).Inc()
	c.logger.WithField("recording_id", recordingID).Debug("expired recording purged")
}
