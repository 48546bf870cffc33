package app

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/cortexvms/vms-core/internal/eventbus"
	"github.com/cortexvms/vms-core/internal/vmscore"
)

// CameraInput is the Control Surface's camera create/update payload,
// carrying an optional plaintext credential that Application seals into
// the Camera's StoredSecret before anything touches the Metadata Store.
type CameraInput struct {
	Name           string
	Location       string
	IngressURL     string
	Username       string
	Password       string // plaintext; sealed via the Credential Vault, never persisted as-is
	Tags           []string
	ProtocolHLS    bool
	ProtocolRecord bool
	ProtocolANPR   bool
	Grid           vmscore.GridPosition
	Recording      vmscore.RecordingPolicy
	ANPR           vmscore.ANPRPolicy
}

// applyPolicyDefaults substitutes DefaultRecordingPolicy/DefaultANPRPolicy
// for a zero-value policy, so a caller that leaves recording or ANPR
// unconfigured gets a valid "off" policy rather than tripping Validate's
// range checks on an unset 0.
func (in *CameraInput) applyPolicyDefaults() {
	if in.Recording == (vmscore.RecordingPolicy{}) {
		in.Recording = vmscore.DefaultRecordingPolicy()
	}
	if in.ANPR == (vmscore.ANPRPolicy{}) {
		in.ANPR = vmscore.DefaultANPRPolicy()
	}
}

// CreateCamera persists a new Camera, seals its credential (if any), and
// brings up its Supervisor/ANPR Worker fabric.
func (a *Application) CreateCamera(ctx context.Context, in CameraInput) (*vmscore.Camera, error) {
	if in.IngressURL == "" {
		return nil, vmscore.New(vmscore.KindValidation, "app.CreateCamera", "ingressURL is required")
	}
	in.applyPolicyDefaults()
	if err := in.Recording.Validate("app.CreateCamera"); err != nil {
		return nil, err
	}
	if err := in.ANPR.Validate("app.CreateCamera"); err != nil {
		return nil, err
	}

	sealed := ""
	if in.Password != "" {
		s, err := a.vault.Seal(in.Password)
		if err != nil {
			return nil, vmscore.Wrap(vmscore.KindFatal, "app.CreateCamera", "failed to seal credential", err)
		}
		sealed = s
	}

	now := time.Now().UTC()
	cam := &vmscore.Camera{
		ID:             uuid.New().String(),
		Name:           in.Name,
		Location:       in.Location,
		IngressURL:     in.IngressURL,
		Username:       in.Username,
		StoredSecret:   sealed,
		Tags:           in.Tags,
		ProtocolHLS:    in.ProtocolHLS,
		ProtocolRecord: in.ProtocolRecord,
		ProtocolANPR:   in.ProtocolANPR,
		Grid:           in.Grid,
		Recording:      in.Recording,
		ANPR:           in.ANPR,
		Status:         vmscore.CameraOffline,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := a.store.PutCamera(ctx, cam); err != nil {
		return nil, err
	}
	a.bus.Publish(eventbus.TopicCameraAdded, cam)

	if a.runCtx != nil {
		if err := a.startCamera(a.runCtx, cam); err != nil {
			a.logger.WithField("camera_id", cam.ID).WithError(err).Error("failed to start newly created camera")
		}
	}
	return cam, nil
}

// GetCamera reads a single camera from the Metadata Store.
func (a *Application) GetCamera(ctx context.Context, id string) (*vmscore.Camera, error) {
	return a.store.GetCamera(ctx, id)
}

// ListCameras reads every camera from the Metadata Store.
func (a *Application) ListCameras(ctx context.Context) ([]*vmscore.Camera, error) {
	return a.store.ListCameras(ctx)
}

// UpdateCamera applies in to the existing camera row, seals a new
// credential if one was supplied, persists the result, and forwards the
// revised configuration to the running Supervisor (if any), which decides
// for itself whether the change requires a restart.
func (a *Application) UpdateCamera(ctx context.Context, id string, in CameraInput) (*vmscore.Camera, error) {
	in.applyPolicyDefaults()
	if err := in.Recording.Validate("app.UpdateCamera"); err != nil {
		return nil, err
	}
	if err := in.ANPR.Validate("app.UpdateCamera"); err != nil {
		return nil, err
	}

	cam, err := a.store.GetCamera(ctx, id)
	if err != nil {
		return nil, err
	}
	before := *cam

	cam.Name = in.Name
	cam.Location = in.Location
	cam.IngressURL = in.IngressURL
	cam.Username = in.Username
	cam.Tags = in.Tags
	cam.ProtocolHLS = in.ProtocolHLS
	cam.ProtocolRecord = in.ProtocolRecord
	cam.ProtocolANPR = in.ProtocolANPR
	cam.Grid = in.Grid
	cam.Recording = in.Recording
	cam.ANPR = in.ANPR
	cam.UpdatedAt = time.Now().UTC()

	credentialChanged := false
	if in.Password != "" {
		sealed, err := a.vault.Seal(in.Password)
		if err != nil {
			return nil, vmscore.Wrap(vmscore.KindFatal, "app.UpdateCamera", "failed to seal credential", err)
		}
		cam.StoredSecret = sealed
		credentialChanged = true
	}

	if err := a.store.PutCamera(ctx, cam); err != nil {
		return nil, err
	}

	// Invariant 9: updating a camera with identical content is a no-op -
	// no bus event, regardless of whether the supervisor ends up restarting.
	if credentialChanged || !sameCameraConfig(before, *cam) {
		a.bus.Publish(eventbus.TopicCameraUpdated, cam)
	}

	if sup, ok := a.supervisorFor(id); ok {
		if err := sup.UpdateConfig(ctx, cam); err != nil {
			return cam, err
		}
	}
	return cam, nil
}

// sameCameraConfig reports whether a and b carry identical caller-facing
// configuration, ignoring bookkeeping fields (timestamps, StoredSecret,
// runtime status) that UpdateCamera never accepts from CameraInput.
func sameCameraConfig(a, b vmscore.Camera) bool {
	return a.Name == b.Name &&
		a.Location == b.Location &&
		a.IngressURL == b.IngressURL &&
		a.Username == b.Username &&
		equalStringSlices(a.Tags, b.Tags) &&
		a.ProtocolHLS == b.ProtocolHLS &&
		a.ProtocolRecord == b.ProtocolRecord &&
		a.ProtocolANPR == b.ProtocolANPR &&
		a.Grid == b.Grid &&
		a.Recording == b.Recording &&
		a.ANPR == b.ANPR
}

func equalStringSlices(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// DeleteCamera stops the camera's Supervisor (which finalizes any active
// recording first), unregisters its ANPR Worker and health probe target,
// and removes its Metadata Store row.
func (a *Application) DeleteCamera(ctx context.Context, id string) error {
	if sup, ok := a.supervisorFor(id); ok {
		if err := sup.Delete(ctx); err != nil {
			return err
		}
	}
	a.stopCamera(id)

	if err := a.store.DeleteCamera(ctx, id); err != nil {
		return err
	}
	a.bus.Publish(eventbus.TopicCameraDeleted, id)
	return nil
}

// StartRecording begins a new recording on cameraID's Supervisor.
func (a *Application) StartRecording(ctx context.Context, cameraID string) (string, error) {
	sup, ok := a.supervisorFor(cameraID)
	if !ok {
		return "", vmscore.New(vmscore.KindNotFound, "app.StartRecording", "camera not running: "+cameraID)
	}
	return sup.BeginRecording(ctx)
}

// StopRecording finalizes cameraID's active recording.
func (a *Application) StopRecording(ctx context.Context, cameraID string) (*vmscore.Recording, error) {
	sup, ok := a.supervisorFor(cameraID)
	if !ok {
		return nil, vmscore.New(vmscore.KindNotFound, "app.StopRecording", "camera not running: "+cameraID)
	}
	return sup.EndRecording(ctx)
}

// Snapshot captures a single still frame from cameraID.
func (a *Application) Snapshot(ctx context.Context, cameraID string) (string, error) {
	sup, ok := a.supervisorFor(cameraID)
	if !ok {
		return "", vmscore.New(vmscore.KindNotFound, "app.Snapshot", "camera not running: "+cameraID)
	}
	return sup.Snapshot(ctx)
}

// TriggerANPR runs a one-shot ANPR tick for cameraID outside its periodic
// schedule. Returns NotFound if the camera has no ANPR Worker running
// (ANPR disabled globally, by policy, or the camera itself is unknown).
func (a *Application) TriggerANPR(ctx context.Context, cameraID string) error {
	worker, ok := a.workerFor(cameraID)
	if !ok {
		return vmscore.New(vmscore.KindNotFound, "app.TriggerANPR", "no ANPR worker running for camera: "+cameraID)
	}
	return worker.TriggerOnce(ctx)
}
