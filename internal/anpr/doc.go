// Package anpr implements the ANPR Worker (SPEC_FULL §4.4): a per-camera
// periodic sampler that extracts a frame, calls an external two-stage
// detector/extractor pipeline, applies a dedup filter, and emits ANPR
// events onto the Event Bus. Inference calls across all cameras share a
// single bounded pool of slots, grounded on the teacher's bounded worker
// pool (internal/camera/bounded_worker_pool.go).
package anpr
