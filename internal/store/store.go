package store

import (
	"context"
	"time"

	"github.com/cortexvms/vms-core/internal/vmscore"
)

// RecordingFilter narrows ListRecordings by optional camera, start, and end.
type RecordingFilter struct {
	CameraID string
	From     *time.Time
	To       *time.Time
}

// ANPREventFilter narrows ListANPREvents; Plate matches as a case-insensitive substring.
type ANPREventFilter struct {
	CameraID string
	From     *time.Time
	To       *time.Time
	Plate    string
}

// Store is the Metadata Store capability consumed by the Camera Supervisor,
// ANPR Worker, Retention Collector, and Control Surface. There is exactly
// one implementation in-tree (sqlstore), but components depend on this
// interface so tests can substitute an in-memory fake.
type Store interface {
	// Users
	PutUser(ctx context.Context, u *vmscore.User) error
	GetUser(ctx context.Context, id string) (*vmscore.User, error)
	GetUserByEmail(ctx context.Context, email string) (*vmscore.User, error)
	DeleteUser(ctx context.Context, id string) error

	// Cameras
	PutCamera(ctx context.Context, c *vmscore.Camera) error
	GetCamera(ctx context.Context, id string) (*vmscore.Camera, error)
	ListCameras(ctx context.Context) ([]*vmscore.Camera, error)
	DeleteCamera(ctx context.Context, id string) error

	// Recordings
	PutRecording(ctx context.Context, r *vmscore.Recording) error
	GetRecording(ctx context.Context, id string) (*vmscore.Recording, error)
	ListRecordings(ctx context.Context, filter RecordingFilter) ([]*vmscore.Recording, error)
	DeleteRecording(ctx context.Context, id string) error

	// ANPR events
	PutANPREvent(ctx context.Context, e *vmscore.ANPREvent) error
	GetANPREvent(ctx context.Context, id string) (*vmscore.ANPREvent, error)
	ListANPREvents(ctx context.Context, filter ANPREventFilter) ([]*vmscore.ANPREvent, error)
	CountANPREvents(ctx context.Context, cameraID string, since *time.Time) (int, error)
	DeleteANPREvent(ctx context.Context, id string) error

	// SystemStats aggregates counts for the control surface's /system/stats route.
	SystemStats(ctx context.Context) (*vmscore.SystemStats, error)

	// Close releases any underlying resources (connections, file handles).
	Close() error
}
