// Package eventbus is the in-process, topic-based publish/subscribe
// mechanism that Camera Supervisors, the Health Prober, and the ANPR Worker
// pool feed, and that the external control surface's WebSocket adaptor
// consumes (SPEC_FULL §4.5).
//
// Delivery is non-blocking and at-most-once: each subscriber owns a bounded
// channel, and Publish never waits on a slow or stalled subscriber. When a
// subscriber's queue is full, the oldest queued message is dropped to make
// room for the new one, and a dropped counter increments — a live feed that
// falls behind loses history rather than stalling every other subscriber or
// every publisher, the same trade-off the teacher's websocket EventManager
// topic registry makes at the subscription level, carried through to actual
// queued delivery here.
package eventbus
