package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cortexvms/vms-core/internal/vmscore"
)

func (s *Store) PutCamera(ctx context.Context, c *vmscore.Camera) error {
	const q = `
	INSERT INTO cameras (
		id, name, location, ingress_url, username, stored_secret, tags,
		protocol_hls, protocol_record, protocol_anpr,
		grid_row, grid_col, grid_size,
		recording_mode, recording_segment_seconds, recording_retention_days,
		anpr_enabled, anpr_sample_every_n_frames, anpr_confidence_threshold,
		status, last_seen, observed_fps, observed_bitrate_kbps, observed_width, observed_height,
		created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name,
		location = excluded.location,
		ingress_url = excluded.ingress_url,
		username = excluded.username,
		stored_secret = excluded.stored_secret,
		tags = excluded.tags,
		protocol_hls = excluded.protocol_hls,
		protocol_record = excluded.protocol_record,
		protocol_anpr = excluded.protocol_anpr,
		grid_row = excluded.grid_row,
		grid_col = excluded.grid_col,
		grid_size = excluded.grid_size,
		recording_mode = excluded.recording_mode,
		recording_segment_seconds = excluded.recording_segment_seconds,
		recording_retention_days = excluded.recording_retention_days,
		anpr_enabled = excluded.anpr_enabled,
		anpr_sample_every_n_frames = excluded.anpr_sample_every_n_frames,
		anpr_confidence_threshold = excluded.anpr_confidence_threshold,
		status = excluded.status,
		last_seen = excluded.last_seen,
		observed_fps = excluded.observed_fps,
		observed_bitrate_kbps = excluded.observed_bitrate_kbps,
		observed_width = excluded.observed_width,
		observed_height = excluded.observed_height,
		updated_at = excluded.updated_at
	`
	var lastSeen sql.NullInt64
	if !c.LastSeen.IsZero() {
		lastSeen = sql.NullInt64{Int64: c.LastSeen.Unix(), Valid: true}
	}
	now := time.Now().Unix()
	createdAt := now
	if !c.CreatedAt.IsZero() {
		createdAt = c.CreatedAt.Unix()
	}

	_, err := s.db.ExecContext(ctx, q,
		c.ID, c.Name, c.Location, c.IngressURL, c.Username, c.StoredSecret, strings.Join(c.Tags, ","),
		boolToInt(c.ProtocolHLS), boolToInt(c.ProtocolRecord), boolToInt(c.ProtocolANPR),
		c.Grid.Row, c.Grid.Column, c.Grid.Size,
		string(c.Recording.Mode), c.Recording.SegmentSeconds, c.Recording.RetentionDays,
		boolToInt(c.ANPR.Enabled), c.ANPR.SampleEveryNFrames, c.ANPR.ConfidenceThreshold,
		string(c.Status), lastSeen, c.ObservedMetadata.FPS, c.ObservedMetadata.BitrateKbps,
		c.ObservedMetadata.Width, c.ObservedMetadata.Height,
		createdAt, now,
	)
	if err != nil {
		return fmt.Errorf("sqlstore: put camera: %w", err)
	}
	return nil
}

func (s *Store) GetCamera(ctx context.Context, id string) (*vmscore.Camera, error) {
	row := s.db.QueryRowContext(ctx, cameraSelect+` WHERE id = ?`, id)
	return scanCamera(row)
}

func (s *Store) ListCameras(ctx context.Context) ([]*vmscore.Camera, error) {
	rows, err := s.db.QueryContext(ctx, cameraSelect+` ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: list cameras: %w", err)
	}
	defer rows.Close()

	var out []*vmscore.Camera
	for rows.Next() {
		c, err := scanCameraRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) DeleteCamera(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlstore: delete camera: %w", err)
	}
	defer tx.Rollback()

	// cascade: ANPR events and recordings belonging to this camera.
	if _, err := tx.ExecContext(ctx, `DELETE FROM anpr_events WHERE camera_id = ?`, id); err != nil {
		return fmt.Errorf("sqlstore: cascade delete anpr events: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM recordings WHERE camera_id = ?`, id); err != nil {
		return fmt.Errorf("sqlstore: cascade delete recordings: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM cameras WHERE id = ?`, id); err != nil {
		return fmt.Errorf("sqlstore: delete camera: %w", err)
	}

	return tx.Commit()
}

const cameraSelect = `SELECT
	id, name, location, ingress_url, username, stored_secret, tags,
	protocol_hls, protocol_record, protocol_anpr,
	grid_row, grid_col, grid_size,
	recording_mode, recording_segment_seconds, recording_retention_days,
	anpr_enabled, anpr_sample_every_n_frames, anpr_confidence_threshold,
	status, last_seen, observed_fps, observed_bitrate_kbps, observed_width, observed_height,
	created_at, updated_at
FROM cameras`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCamera(row *sql.Row) (*vmscore.Camera, error) {
	c, err := scanCameraFields(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, vmscore.New(vmscore.KindNotFound, "sqlstore.GetCamera", "camera not found")
	}
	return c, err
}

func scanCameraRows(rows *sql.Rows) (*vmscore.Camera, error) {
	return scanCameraFields(rows)
}

func scanCameraFields(scanner rowScanner) (*vmscore.Camera, error) {
	var c vmscore.Camera
	var tags string
	var protoHLS, protoRecord, protoANPR, anprEnabled int
	var recordingMode, status string
	var lastSeen sql.NullInt64
	var createdAt, updatedAt int64

	err := scanner.Scan(
		&c.ID, &c.Name, &c.Location, &c.IngressURL, &c.Username, &c.StoredSecret, &tags,
		&protoHLS, &protoRecord, &protoANPR,
		&c.Grid.Row, &c.Grid.Column, &c.Grid.Size,
		&recordingMode, &c.Recording.SegmentSeconds, &c.Recording.RetentionDays,
		&anprEnabled, &c.ANPR.SampleEveryNFrames, &c.ANPR.ConfidenceThreshold,
		&status, &lastSeen, &c.ObservedMetadata.FPS, &c.ObservedMetadata.BitrateKbps,
		&c.ObservedMetadata.Width, &c.ObservedMetadata.Height,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if tags != "" {
		c.Tags = strings.Split(tags, ",")
	}
	c.ProtocolHLS = protoHLS != 0
	c.ProtocolRecord = protoRecord != 0
	c.ProtocolANPR = protoANPR != 0
	c.Recording.Mode = vmscore.RecordingMode(recordingMode)
	c.ANPR.Enabled = anprEnabled != 0
	c.Status = vmscore.CameraStatus(status)
	if lastSeen.Valid {
		c.LastSeen = time.Unix(lastSeen.Int64, 0).UTC()
	}
	c.CreatedAt = time.Unix(createdAt, 0).UTC()
	c.UpdatedAt = time.Unix(updatedAt, 0).UTC()

	return &c, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
