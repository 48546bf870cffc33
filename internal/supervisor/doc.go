// Package supervisor implements the per-camera Camera Supervisor (SPEC_FULL
// §4.2): a finite-state machine that owns all of one camera's Transcoder
// Driver activities (live segmenter, recording, snapshot) and is the only
// goroutine allowed to mutate that camera's status, live/record handles, or
// ANPR dedup state. All commands for a camera are serialized through a
// single bounded channel, grounded on the teacher's central mutex-guarded
// controller but restructured around an explicit command loop per camera
// instead of one shared controller for the whole fleet.
package supervisor
