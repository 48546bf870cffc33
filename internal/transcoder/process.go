package transcoder

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/cortexvms/vms-core/internal/config"
	"github.com/cortexvms/vms-core/internal/logging"
	"github.com/cortexvms/vms-core/internal/metrics"
	"github.com/cortexvms/vms-core/internal/vmscore"
)

// FFmpegDriver is the in-tree Driver implementation, grounded on the
// teacher's ffmpeg process manager: every child runs in its own process
// group so a graceful-terminate signal reaches helpers the binary itself
// may fork, and a background goroutine per child reports its exit.
type FFmpegDriver struct {
	binaryPath string
	cfg        config.TranscoderConfig
	logger     *logging.Logger
}

// NewDriver resolves the transcoder binary path from the environment
// variable named by cfg.BinaryPathEnv, falling back to "ffmpeg" on PATH.
func NewDriver(cfg config.TranscoderConfig, logger *logging.Logger) *FFmpegDriver {
	binary := "ffmpeg"
	if cfg.BinaryPathEnv != "" {
		if v := os.Getenv(cfg.BinaryPathEnv); v != "" {
			binary = v
		}
	}
	return &FFmpegDriver{binaryPath: binary, cfg: cfg, logger: logger}
}

func (d *FFmpegDriver) gracefulTimeout() time.Duration {
	if d.cfg.GracefulTimeoutSecs <= 0 {
		return 2 * time.Second
	}
	return time.Duration(d.cfg.GracefulTimeoutSecs * float64(time.Second))
}

// StartLiveSegmenter spawns a long-running ffmpeg producing a rolling HLS
// playlist under streamDir/index.m3u8: 2s segments, a 6-segment window,
// old segments deleted, TCP-forced RTSP transport, and a low-latency
// encode preset, per SPEC_FULL §4.1.
func (d *FFmpegDriver) StartLiveSegmenter(ctx context.Context, cameraID, ingressURL, streamDir string) (Handle, error) {
	segSeconds := d.cfg.SegmentSeconds
	if segSeconds <= 0 {
		segSeconds = 2
	}
	window := d.cfg.SegmentWindow
	if window <= 0 {
		window = 6
	}

	args := []string{
		"-rtsp_transport", "tcp",
		"-i", ingressURL,
		"-c:v", "libx264", "-preset", "veryfast", "-tune", "zerolatency",
		"-c:a", "aac",
		"-f", "hls",
		"-hls_time", strconv.Itoa(segSeconds),
		"-hls_list_size", strconv.Itoa(window),
		"-hls_flags", "delete_segments+append_list",
		"-use_wallclock_as_timestamps", "1",
		streamDir + "/index.m3u8",
	}
	return d.start(ctx, ActivityLiveSegmenter, cameraID, args)
}

// StartRecording writes a single container file at outputPath, copying
// codecs without re-encoding when the source is compatible.
func (d *FFmpegDriver) StartRecording(ctx context.Context, cameraID, ingressURL, outputPath string) (Handle, error) {
	args := []string{
		"-rtsp_transport", "tcp",
		"-i", ingressURL,
		"-c", "copy",
		outputPath,
	}
	return d.start(ctx, ActivityRecording, cameraID, args)
}

// TakeSnapshot blocks until one frame has been written to outputPath.
func (d *FFmpegDriver) TakeSnapshot(ctx context.Context, cameraID, ingressURL, outputPath string) error {
	timeout := d.cfg.SnapshotTimeoutSecs
	if timeout <= 0 {
		timeout = 10
	}
	args := []string{
		"-rtsp_transport", "tcp",
		"-i", ingressURL,
		"-vframes", "1",
		"-y", outputPath,
	}
	return d.runOnce(ctx, time.Duration(timeout*float64(time.Second)), args)
}

// ExtractFrame is TakeSnapshot's ANPR-path equivalent: it addresses
// ingressURL directly rather than a running live pipeline.
func (d *FFmpegDriver) ExtractFrame(ctx context.Context, ingressURL, outputPath string) error {
	timeout := d.cfg.ExtractTimeoutSecs
	if timeout <= 0 {
		timeout = 5
	}
	args := []string{
		"-rtsp_transport", "tcp",
		"-i", ingressURL,
		"-vframes", "1",
		"-y", outputPath,
	}
	return d.runOnce(ctx, time.Duration(timeout*float64(time.Second)), args)
}

// runOnce runs the transcoder binary to completion with a bounded timeout,
// used by the two single-frame operations that the caller waits on
// synchronously rather than tracking via a Handle.
func (d *FFmpegDriver) runOnce(ctx context.Context, timeout time.Duration, args []string) error {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, d.binaryPath, args...)
	if err := cmd.Run(); err != nil {
		metrics.TranscoderProcessExitsTotal.WithLabelValues(string(ActivityFrameExtract), "error").Inc()
		return vmscore.Wrap(vmscore.KindTransient, "transcoder.runOnce", "transcoder process failed", err)
	}
	metrics.TranscoderProcessExitsTotal.WithLabelValues(string(ActivityFrameExtract), "ok").Inc()
	return nil
}

func (d *FFmpegDriver) start(ctx context.Context, activity Activity, cameraID string, args []string) (Handle, error) {
	cmd := exec.Command(d.binaryPath, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	h := &handle{
		activity: activity,
		cmd:      cmd,
		status:   StatusStarting,
		exited:   make(chan struct{}),
		logger:   d.logger,
	}

	if err := cmd.Start(); err != nil {
		return nil, vmscore.Wrap(vmscore.KindTransient, "transcoder.start", fmt.Sprintf("failed to start %s for camera %s", activity, cameraID), err)
	}
	h.pgid = cmd.Process.Pid
	h.status = StatusRunning

	go h.watch()

	d.logger.WithFields(logging.Fields{
		"camera_id": cameraID,
		"activity":  string(activity),
		"pid":       strconv.Itoa(h.pgid),
	}).Info("transcoder process started")

	return h, nil
}

// handle implements Handle for an FFmpegDriver-spawned child.
type handle struct {
	activity Activity
	cmd      *exec.Cmd
	pgid     int
	logger   *logging.Logger

	mu     sync.Mutex
	status Status
	err    error
	exited chan struct{}
}

func (h *handle) Activity() Activity { return h.activity }

func (h *handle) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

func (h *handle) Exited() <-chan struct{} { return h.exited }

func (h *handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

func (h *handle) watch() {
	err := h.cmd.Wait()

	h.mu.Lock()
	h.status = StatusExited
	h.err = err
	h.mu.Unlock()
	close(h.exited)

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.TranscoderProcessExitsTotal.WithLabelValues(string(h.activity), outcome).Inc()
}

// Stop sends SIGTERM to the child's process group, waits up to grace for
// exit, then escalates to SIGKILL. Safe to call after the child has
// already exited.
func (h *handle) Stop(ctx context.Context, grace time.Duration) error {
	h.mu.Lock()
	if h.status == StatusExited {
		h.mu.Unlock()
		return nil
	}
	h.status = StatusStopping
	pgid := h.pgid
	h.mu.Unlock()

	_ = unix.Kill(-pgid, syscall.SIGTERM)

	select {
	case <-h.exited:
		return nil
	case <-time.After(grace):
	case <-ctx.Done():
	}

	select {
	case <-h.exited:
		return nil
	default:
	}

	_ = unix.Kill(-pgid, syscall.SIGKILL)

	select {
	case <-h.exited:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
