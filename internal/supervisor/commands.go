package supervisor

import "github.com/cortexvms/vms-core/internal/vmscore"

// commandKind enumerates the Supervisor's public command surface
// (SPEC_FULL §4.2 "Public contract").
type commandKind int

const (
	cmdStart commandKind = iota
	cmdStop
	cmdRestart
	cmdBeginRecording
	cmdEndRecording
	cmdSnapshot
	cmdUpdateConfig
	cmdDelete
	cmdHealthTransition
	cmdSegmenterExited
	cmdBackoffRestart
	cmdStableOnline
)

// command is the single message type carried on a Supervisor's command
// channel, giving the per-camera single-writer discipline required by
// SPEC_FULL §5.
type command struct {
	kind    commandKind
	reply   chan result
	payload interface{}
}

type result struct {
	value interface{}
	err   error
}

func newCommand(kind commandKind, payload interface{}) (command, chan result) {
	reply := make(chan result, 1)
	return command{kind: kind, reply: reply, payload: payload}, reply
}

// healthTransitionPayload carries a Health Prober observation into the
// supervisor's single-writer loop.
type healthTransitionPayload struct {
	online   bool
	observed vmscore.ObservedMetadata
}

// updateConfigPayload carries a revised camera configuration.
type updateConfigPayload struct {
	camera *vmscore.Camera
}
