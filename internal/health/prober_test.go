package health

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cortexvms/vms-core/internal/config"
	"github.com/cortexvms/vms-core/internal/eventbus"
	"github.com/cortexvms/vms-core/internal/logging"
	"github.com/cortexvms/vms-core/internal/vmscore"
)

type fakeNotifier struct {
	mu      sync.Mutex
	calls   []bool
}

func (f *fakeNotifier) NotifyHealth(ctx context.Context, online bool, observed vmscore.ObservedMetadata) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, online)
	return nil
}

func (f *fakeNotifier) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func listenOnce(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()
	return ln.Addr().String()
}

func TestProber_OfflineToOnlineNotifiesSupervisor(t *testing.T) {
	addr := listenOnce(t)
	bus := eventbus.New(8)
	sub := bus.Subscribe(eventbus.TopicCameraStatus)
	defer bus.Unsubscribe(sub)

	p := New(config.HealthConfig{IntervalSeconds: 1, TimeoutSeconds: 1}, bus, logging.NewLogger("health-test"))
	notifier := &fakeNotifier{}
	p.Watch(Target{CameraID: "cam-1", IngressURL: "rtsp://" + addr, Notifier: notifier})

	ctx := context.Background()
	p.tick(ctx)

	require.Eventually(t, func() bool { return notifier.callCount() == 1 }, time.Second, 10*time.Millisecond)

	select {
	case evt := <-sub.Events:
		require.Equal(t, eventbus.TopicCameraStatus, evt.Topic)
	default:
		t.Fatal("expected a camera-status event on first tick")
	}
}

func TestProber_RepeatedOnlineDoesNotRenotify(t *testing.T) {
	addr := listenOnce(t)
	bus := eventbus.New(8)
	p := New(config.HealthConfig{IntervalSeconds: 1, TimeoutSeconds: 1}, bus, logging.NewLogger("health-test"))
	notifier := &fakeNotifier{}
	p.Watch(Target{CameraID: "cam-1", IngressURL: "rtsp://" + addr, Notifier: notifier})

	ctx := context.Background()
	p.tick(ctx)
	require.Eventually(t, func() bool { return notifier.callCount() == 1 }, time.Second, 10*time.Millisecond)

	p.tick(ctx)
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 1, notifier.callCount())
}

func TestProber_UnreachableHostReportsOffline(t *testing.T) {
	bus := eventbus.New(8)
	p := New(config.HealthConfig{IntervalSeconds: 1, TimeoutSeconds: 1}, bus, logging.NewLogger("health-test"))
	notifier := &fakeNotifier{}
	p.Watch(Target{CameraID: "cam-1", IngressURL: "rtsp://127.0.0.1:1", Notifier: notifier})

	ctx := context.Background()
	p.tick(ctx)

	p.mu.RLock()
	status := p.lastState["cam-1"]
	p.mu.RUnlock()
	require.Equal(t, vmscore.CameraOffline, status)
}

func TestProber_UnwatchStopsFurtherProbing(t *testing.T) {
	bus := eventbus.New(8)
	p := New(config.HealthConfig{}, bus, logging.NewLogger("health-test"))
	notifier := &fakeNotifier{}
	p.Watch(Target{CameraID: "cam-1", IngressURL: "rtsp://127.0.0.1:1", Notifier: notifier})
	p.Unwatch("cam-1")

	p.mu.RLock()
	_, known := p.targets["cam-1"]
	p.mu.RUnlock()
	require.False(t, known)
}

func TestNew_DefaultsAppliedForNonPositiveConfig(t *testing.T) {
	p := New(config.HealthConfig{}, eventbus.New(8), logging.NewLogger("health-test"))
	require.Equal(t, 30*time.Second, p.interval)
	require.Equal(t, 10*time.Second, p.timeout)
}
