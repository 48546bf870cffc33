package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cortexvms/vms-core/internal/store"
	"github.com/cortexvms/vms-core/internal/vmscore"
)

func (s *Store) PutRecording(ctx context.Context, r *vmscore.Recording) error {
	const q = `
	INSERT INTO recordings (
		id, camera_id, date, start_time, end_time, path,
		duration_seconds, size_bytes, container,
		observed_fps, observed_bitrate_kbps, observed_width, observed_height
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		end_time = excluded.end_time,
		duration_seconds = excluded.duration_seconds,
		size_bytes = excluded.size_bytes,
		observed_fps = excluded.observed_fps,
		observed_bitrate_kbps = excluded.observed_bitrate_kbps,
		observed_width = excluded.observed_width,
		observed_height = excluded.observed_height
	`
	var endTime sql.NullInt64
	if r.EndTime != nil {
		endTime = sql.NullInt64{Int64: r.EndTime.Unix(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, q,
		r.ID, r.CameraID, r.Date, r.StartTime.Unix(), endTime, r.Path,
		r.DurationS, r.SizeBytes, r.Container,
		r.Metadata.FPS, r.Metadata.BitrateKbps, r.Metadata.Width, r.Metadata.Height,
	)
	if err != nil {
		return fmt.Errorf("sqlstore: put recording: %w", err)
	}
	return nil
}

func (s *Store) GetRecording(ctx context.Context, id string) (*vmscore.Recording, error) {
	row := s.db.QueryRowContext(ctx, recordingSelect+` WHERE id = ?`, id)
	r, err := scanRecording(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, vmscore.New(vmscore.KindNotFound, "sqlstore.GetRecording", "recording not found")
	}
	return r, err
}

func (s *Store) ListRecordings(ctx context.Context, filter store.RecordingFilter) ([]*vmscore.Recording, error) {
	query := recordingSelect + ` WHERE 1=1`
	var args []interface{}

	if filter.CameraID != "" {
		query += ` AND camera_id = ?`
		args = append(args, filter.CameraID)
	}
	if filter.From != nil {
		query += ` AND start_time >= ?`
		args = append(args, filter.From.Unix())
	}
	if filter.To != nil {
		query += ` AND start_time <= ?`
		args = append(args, filter.To.Unix())
	}
	query += ` ORDER BY start_time DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: list recordings: %w", err)
	}
	defer rows.Close()

	var out []*vmscore.Recording
	for rows.Next() {
		r, err := scanRecording(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) DeleteRecording(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM recordings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlstore: delete recording: %w", err)
	}
	return nil
}

const recordingSelect = `SELECT
	id, camera_id, date, start_time, end_time, path,
	duration_seconds, size_bytes, container,
	observed_fps, observed_bitrate_kbps, observed_width, observed_height
FROM recordings`

func scanRecording(scanner rowScanner) (*vmscore.Recording, error) {
	var r vmscore.Recording
	var startTime int64
	var endTime sql.NullInt64

	err := scanner.Scan(
		&r.ID, &r.CameraID, &r.Date, &startTime, &endTime, &r.Path,
		&r.DurationS, &r.SizeBytes, &r.Container,
		&r.Metadata.FPS, &r.Metadata.BitrateKbps, &r.Metadata.Width, &r.Metadata.Height,
	)
	if err != nil {
		return nil, err
	}

	r.StartTime = time.Unix(startTime, 0).UTC()
	if endTime.Valid {
		t := time.Unix(endTime.Int64, 0).UTC()
		r.EndTime = &t
	}
	return &r, nil
}
