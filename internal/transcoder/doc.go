// Package transcoder wraps an external media-processing binary (SPEC_FULL
// §4.1), spawning, monitoring, and terminating child processes for the four
// operations a Camera Supervisor needs: starting a live HLS-style segmenter,
// starting a recording, taking a single snapshot, and extracting a single
// frame for ANPR. The Driver never restarts a child on its own; that policy
// lives in the supervisor.
package transcoder
