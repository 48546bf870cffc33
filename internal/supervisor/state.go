package supervisor

// State is the Camera Supervisor's finite-state-machine position,
// independent of the observed vmscore.CameraStatus the Health Prober
// reports (a supervisor can be Online while the camera's last-known
// observed status is stale).
type State string

const (
	StateIdle         State = "idle"
	StateStarting     State = "starting"
	StateOnline       State = "online"
	StateReconnecting State = "reconnecting"
	StateRestarting   State = "restarting"
	StateStopping     State = "stopping"
	StateFailed       State = "failed"
)

// giveUpThreshold is the number of consecutive failed restart attempts
// after which Reconnecting gives up and transitions to Failed rather than
// continuing to back off (SPEC_FULL §4.2 Open Question: chosen as 8,
// see DESIGN.md).
const giveUpThreshold = 8

const (
	initialBackoff = 5  // seconds
	maxBackoff     = 60 // seconds cap
)

// nextBackoffSeconds returns the delay before restart attempt number
// `failures` (1-indexed), doubling from initialBackoff up to maxBackoff.
func nextBackoffSeconds(failures int) int {
	if failures <= 1 {
		return initialBackoff
	}
	delay := initialBackoff
	for i := 1; i < failures; i++ {
		delay *= 2
		if delay >= maxBackoff {
			return maxBackoff
		}
	}
	return delay
}
