package vmscore

import (
	"fmt"
	"time"
)

// CameraStatus is the observed reachability state of a camera, maintained
// by the Health Prober and read by the Camera Supervisor.
type CameraStatus string

const (
	CameraOffline      CameraStatus = "offline"
	CameraOnline       CameraStatus = "online"
	CameraReconnecting CameraStatus = "reconnecting"
	CameraError        CameraStatus = "error"
)

// RecordingMode is a camera's configured recording policy.
type RecordingMode string

const (
	RecordingOff        RecordingMode = "off"
	RecordingManual     RecordingMode = "manual"
	RecordingContinuous RecordingMode = "continuous"
)

// UserRole gates which control-surface routes an authenticated caller may use.
type UserRole string

const (
	RoleViewer   UserRole = "viewer"
	RoleOperator UserRole = "operator"
	RoleAdmin    UserRole = "admin"
)

// GridPosition is a camera's position in the operator's viewing grid.
type GridPosition struct {
	Row    int
	Column int
	Size   int
}

// RecordingPolicy is a camera's recording configuration.
type RecordingPolicy struct {
	Mode            RecordingMode
	SegmentSeconds  int // [1,60]
	RetentionDays   int // [1,365]
}

// ANPRPolicy is a camera's ANPR configuration.
type ANPRPolicy struct {
	Enabled             bool
	SampleEveryNFrames  int     // [1,30]
	ConfidenceThreshold float64 // [0.1,1.0]
}

// DefaultRecordingPolicy is substituted for a caller-supplied zero-value
// RecordingPolicy (recording left unconfigured), so an unset policy reads
// as "off with sane numbers" rather than tripping Validate's range checks.
func DefaultRecordingPolicy() RecordingPolicy {
	return RecordingPolicy{Mode: RecordingOff, SegmentSeconds: 10, RetentionDays: 30}
}

// DefaultANPRPolicy is substituted for a caller-supplied zero-value
// ANPRPolicy, mirroring DefaultRecordingPolicy.
func DefaultANPRPolicy() ANPRPolicy {
	return ANPRPolicy{Enabled: false, SampleEveryNFrames: 5, ConfidenceThreshold: 0.6}
}

// Validate rejects a RecordingPolicy outside the Data Model's documented
// ranges. op names the caller for the returned Error.
func (p RecordingPolicy) Validate(op string) error {
	if p.SegmentSeconds < 1 || p.SegmentSeconds > 60 {
		return New(KindValidation, op, fmt.Sprintf("recording.segmentSeconds out of range [1,60]: %d", p.SegmentSeconds))
	}
	if p.RetentionDays < 1 || p.RetentionDays > 365 {
		return New(KindValidation, op, fmt.Sprintf("recording.retentionDays out of range [1,365]: %d", p.RetentionDays))
	}
	return nil
}

// Validate rejects an ANPRPolicy outside the Data Model's documented ranges.
// op names the caller for the returned Error.
func (p ANPRPolicy) Validate(op string) error {
	if p.SampleEveryNFrames < 1 || p.SampleEveryNFrames > 30 {
		return New(KindValidation, op, fmt.Sprintf("anpr.sampleEveryNFrames out of range [1,30]: %d", p.SampleEveryNFrames))
	}
	if p.ConfidenceThreshold < 0.1 || p.ConfidenceThreshold > 1.0 {
		return New(KindValidation, op, fmt.Sprintf("anpr.confidenceThreshold out of range [0.1,1.0]: %f", p.ConfidenceThreshold))
	}
	return nil
}

// ObservedMetadata is stream characteristics as last reported by the
// transcoder or health prober.
type ObservedMetadata struct {
	FPS        float64
	BitrateKbps int
	Width       int
	Height      int
}

// Camera is the root entity the Supervisor fabric is built around.
type Camera struct {
	ID       string
	Name     string
	Location string
	// IngressURL is the RTSP source URL, possibly containing a username but
	// never a plaintext password — the password lives in StoredSecret.
	IngressURL   string
	Username     string
	StoredSecret string // vault ciphertext, empty if the camera needs no credential
	Tags         []string

	ProtocolHLS    bool
	ProtocolRecord bool
	ProtocolANPR   bool

	Grid       GridPosition
	Recording  RecordingPolicy
	ANPR       ANPRPolicy

	Status           CameraStatus
	LastSeen         time.Time
	ObservedMetadata ObservedMetadata

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Recording is a single on-disk recording segment file and its metadata.
type Recording struct {
	ID         string
	CameraID   string
	Date       string // logical date, YYYY-MM-DD
	StartTime  time.Time
	EndTime    *time.Time // nil while active
	Path       string     // absolute on-disk path
	DurationS  int
	SizeBytes  int64
	Container  string
	Metadata   ObservedMetadata
}

// Active reports whether the recording has not yet been finalized.
func (r *Recording) Active() bool {
	return r.EndTime == nil
}

// BoundingBox is a plate detection's location in source pixels.
type BoundingBox struct {
	X, Y, W, H int
}

// ANPREvent is an immutable license-plate recognition result.
type ANPREvent struct {
	ID              string
	CameraID        string
	Timestamp       time.Time
	Plate           string // normalized: uppercase alphanumeric, len >= 3
	Confidence      float64
	SnapshotPath    string
	BoundingBox     BoundingBox
	DetectorMeta    map[string]string
}

// User is the account entity persisted by the Metadata Store; authentication
// logic itself is out of scope for the core.
type User struct {
	ID           string
	Email        string
	PasswordHash string // opaque; the core never sees plaintext
	Role         UserRole
	CreatedAt    time.Time
}

// SystemStats aggregates counters for the control surface's /system/stats route.
type SystemStats struct {
	TotalCameras        int
	OnlineCameras       int
	ActiveRecordings    int
	ANPREventsToday     int
	StorageUsedBytes    *uint64 // nil when unavailable
	StorageTotalBytes   *uint64
}
