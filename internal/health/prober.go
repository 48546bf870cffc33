// Package health implements the Health Prober (SPEC_FULL §4.3): a single
// long-lived ticker loop that checks RTSP reachability for every monitored
// camera and feeds transitions to the owning Camera Supervisor, grounded on
// the teacher's health_monitor.go ticker-and-bounded-probe pattern.
package health

import (
	"context"
	"errors"
	"net"
	"net/url"
	"sync"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/cortexvms/vms-core/internal/config"
	"github.com/cortexvms/vms-core/internal/eventbus"
	"github.com/cortexvms/vms-core/internal/logging"
	"github.com/cortexvms/vms-core/internal/metrics"
	"github.com/cortexvms/vms-core/internal/vmscore"
)

// Notifier is the subset of Camera Supervisor behavior the Prober needs;
// supervisor.Supervisor satisfies it.
type Notifier interface {
	NotifyHealth(ctx context.Context, online bool, observed vmscore.ObservedMetadata) error
}

// Target is one camera under watch.
type Target struct {
	CameraID   string
	IngressURL string
	Notifier   Notifier
}

// Prober runs the periodic reachability loop for every registered Target.
type Prober struct {
	interval time.Duration
	timeout  time.Duration
	bus      *eventbus.Bus
	logger   *logging.Logger

	mu        sync.RWMutex
	targets   map[string]*Target
	lastState map[string]vmscore.CameraStatus
}

// New builds a Prober from cfg. A non-positive IntervalSeconds defaults to
// 30s; a non-positive TimeoutSeconds defaults to one third of the interval.
func New(cfg config.HealthConfig, bus *eventbus.Bus, logger *logging.Logger) *Prober {
	interval := time.Duration(cfg.IntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = interval / 3
	}
	return &Prober{
		interval:  interval,
		timeout:   timeout,
		bus:       bus,
		logger:    logger,
		targets:   make(map[string]*Target),
		lastState: make(map[string]vmscore.CameraStatus),
	}
}

// Watch registers or replaces a camera's probe target.
func (p *Prober) Watch(t Target) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.targets[t.CameraID] = &t
}

// Unwatch removes a camera from the monitored set.
func (p *Prober) Unwatch(cameraID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.targets, cameraID)
	delete(p.lastState, cameraID)
}

// Run ticks every interval until ctx is cancelled, probing every currently
// watched camera on each tick. Pacing uses a token-bucket limiter rather
// than time.Ticker so a slow tick (every camera's probes still in flight
// when the next interval elapses) never queues a burst of catch-up ticks.
func (p *Prober) Run(ctx context.Context) {
	limiter := rate.NewLimiter(rate.Every(p.interval), 1)
	for {
		if err := limiter.Wait(ctx); err != nil {
			return
		}
		p.tick(ctx)
	}
}

func (p *Prober) tick(ctx context.Context) {
	p.mu.RLock()
	targets := make([]*Target, 0, len(p.targets))
	for _, t := range p.targets {
		targets = append(targets, t)
	}
	p.mu.RUnlock()

	var wg sync.WaitGroup
	for _, t := range targets {
		wg.Add(1)
		go func(t *Target) {
			defer wg.Done()
			p.probeOne(ctx, t)
		}(t)
	}
	wg.Wait()
}

func (p *Prober) probeOne(ctx context.Context, t *Target) {
	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	reachable, reason := p.dial(probeCtx, t.IngressURL)
	status := vmscore.CameraOffline
	if reachable {
		status = vmscore.CameraOnline
	} else {
		metrics.HealthProbeFailuresTotal.WithLabelValues(t.CameraID, reason).Inc()
	}

	p.mu.Lock()
	previous, known := p.lastState[t.CameraID]
	p.lastState[t.CameraID] = status
	p.mu.Unlock()

	if known && previous == status {
		return
	}

	payload := map[string]interface{}{
		"id":       t.CameraID,
		"status":   status,
		"observed": vmscore.ObservedMetadata{},
	}
	if reason != "" {
		payload["error"] = reason
	}
	p.bus.Publish(eventbus.TopicCameraStatus, payload)

	if status == vmscore.CameraOnline && previous != vmscore.CameraOnline {
		if err := t.Notifier.NotifyHealth(ctx, true, vmscore.ObservedMetadata{}); err != nil {
			p.logger.WithError(err).WithField("camera_id", t.CameraID).Warn("failed to notify supervisor of online transition")
		}
	} else if status == vmscore.CameraOffline {
		if err := t.Notifier.NotifyHealth(ctx, false, vmscore.ObservedMetadata{}); err != nil {
			p.logger.WithError(err).WithField("camera_id", t.CameraID).Warn("failed to notify supervisor of offline transition")
		}
	}
}

// dial performs a bare TCP dial to the RTSP host:port extracted from
// ingressURL, distinguishing "host unreachable" from other failures for
// the optional error/reason field, per SPEC_FULL §4.3.
func (p *Prober) dial(ctx context.Context, ingressURL string) (bool, string) {
	u, err := url.Parse(ingressURL)
	if err != nil {
		return false, "invalid_url"
	}
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "554" // RTSP default
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, port))
	if err != nil {
		if ctx.Err() != nil {
			return false, "timeout"
		}
		if errors.Is(err, syscall.ECONNREFUSED) {
			return false, "refused"
		}
		return false, "unreachable"
	}
	_ = conn.Close()
	return true, ""
}
