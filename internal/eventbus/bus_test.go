package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBus_PublishDeliversToSubscriber(t *testing.T) {
	b := New(4)
	sub := b.Subscribe(TopicCameraAdded)
	defer b.Unsubscribe(sub)

	b.Publish(TopicCameraAdded, "cam-1")

	select {
	case evt := <-sub.Events:
		require.Equal(t, TopicCameraAdded, evt.Topic)
		require.Equal(t, "cam-1", evt.Payload)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBus_SubscriberOnlyReceivesSubscribedTopics(t *testing.T) {
	b := New(4)
	sub := b.Subscribe(TopicCameraAdded)
	defer b.Unsubscribe(sub)

	b.Publish(TopicCameraDeleted, "cam-1")

	select {
	case evt := <-sub.Events:
		t.Fatalf("unexpected event delivered: %+v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBus_DropsOldestWhenQueueFull(t *testing.T) {
	b := New(2)
	sub := b.Subscribe(TopicANPREvent)
	defer b.Unsubscribe(sub)

	b.Publish(TopicANPREvent, "first")
	b.Publish(TopicANPREvent, "second")
	b.Publish(TopicANPREvent, "third")

	first := <-sub.Events
	second := <-sub.Events

	require.Equal(t, "second", first.Payload)
	require.Equal(t, "third", second.Payload)
}

func TestBus_FanOutToMultipleSubscribers(t *testing.T) {
	b := New(4)
	a := b.Subscribe(TopicCameraStatus)
	c := b.Subscribe(TopicCameraStatus)
	defer b.Unsubscribe(a)
	defer b.Unsubscribe(c)

	b.Publish(TopicCameraStatus, "online")

	for _, sub := range []*Subscription{a, c} {
		select {
		case evt := <-sub.Events:
			require.Equal(t, "online", evt.Payload)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for fan-out delivery")
		}
	}
}

func TestBus_UnsubscribeClosesChannel(t *testing.T) {
	b := New(4)
	sub := b.Subscribe(TopicRecordingStarted)
	b.Unsubscribe(sub)

	_, ok := <-sub.Events
	require.False(t, ok, "channel should be closed after Unsubscribe")

	// Unsubscribing twice must not panic.
	b.Unsubscribe(sub)
}

func TestBus_FIFOOrderingAcrossTopics(t *testing.T) {
	b := New(8)
	sub := b.Subscribe(TopicCameraAdded, TopicCameraUpdated, TopicCameraDeleted)
	defer b.Unsubscribe(sub)

	b.Publish(TopicCameraAdded, 1)
	b.Publish(TopicCameraUpdated, 2)
	b.Publish(TopicCameraDeleted, 3)

	var got []int
	for i := 0; i < 3; i++ {
		evt := <-sub.Events
		got = append(got, evt.Payload.(int))
	}
	require.Equal(t, []int{1, 2, 3}, got)
}

func TestBus_UnsubscribedTargetDoesNotReceiveAfterRemoval(t *testing.T) {
	b := New(4)
	sub := b.Subscribe(TopicCameraAdded)
	b.Unsubscribe(sub)

	// Publishing after unsubscribe must not panic or deadlock.
	b.Publish(TopicCameraAdded, "late")
}

func TestNew_NonPositiveQueueSizeFallsBackToDefault(t *testing.T) {
	b := New(0)
	require.Equal(t, defaultQueueSize, b.queueSize)
}
