// Package retention implements the Retention Collector (SPEC_FULL §4.6): a
// background sweep that deletes expired, finalized recordings — file then
// row — once at startup and every SweepIntervalHours thereafter. Grounded
// on the teacher's RecordingManager.CleanupOldRecordings age-based purge
// (internal/mediamtx/recording_manager.go), generalized from a global
// max-age/max-count sweep to a per-camera retention-days sweep driven by
// each camera's RecordingPolicy.
package retention
