package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cortexvms/vms-core/internal/store"
	"github.com/cortexvms/vms-core/internal/vmscore"
)

func (s *Store) PutANPREvent(ctx context.Context, e *vmscore.ANPREvent) error {
	meta, err := json.Marshal(e.DetectorMeta)
	if err != nil {
		return fmt.Errorf("sqlstore: marshal detector metadata: %w", err)
	}

	const q = `
	INSERT INTO anpr_events (
		id, camera_id, timestamp, plate, confidence, snapshot_path,
		bbox_x, bbox_y, bbox_w, bbox_h, detector_meta
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, q,
		e.ID, e.CameraID, e.Timestamp.Unix(), e.Plate, e.Confidence, e.SnapshotPath,
		e.BoundingBox.X, e.BoundingBox.Y, e.BoundingBox.W, e.BoundingBox.H, meta,
	)
	if err != nil {
		return fmt.Errorf("sqlstore: put anpr event: %w", err)
	}
	return nil
}

func (s *Store) GetANPREvent(ctx context.Context, id string) (*vmscore.ANPREvent, error) {
	row := s.db.QueryRowContext(ctx, anprSelect+` WHERE id = ?`, id)
	e, err := scanANPREvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, vmscore.New(vmscore.KindNotFound, "sqlstore.GetANPREvent", "anpr event not found")
	}
	return e, err
}

func (s *Store) ListANPREvents(ctx context.Context, filter store.ANPREventFilter) ([]*vmscore.ANPREvent, error) {
	query := anprSelect + ` WHERE 1=1`
	var args []interface{}

	if filter.CameraID != "" {
		query += ` AND camera_id = ?`
		args = append(args, filter.CameraID)
	}
	if filter.From != nil {
		query += ` AND timestamp >= ?`
		args = append(args, filter.From.Unix())
	}
	if filter.To != nil {
		query += ` AND timestamp <= ?`
		args = append(args, filter.To.Unix())
	}
	if filter.Plate != "" {
		query += ` AND plate LIKE ? ESCAPE '\'`
		args = append(args, "%"+escapeLike(strings.ToUpper(filter.Plate))+"%")
	}
	query += ` ORDER BY timestamp DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: list anpr events: %w", err)
	}
	defer rows.Close()

	var out []*vmscore.ANPREvent
	for rows.Next() {
		e, err := scanANPREvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) CountANPREvents(ctx context.Context, cameraID string, since *time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM anpr_events WHERE camera_id = ?`
	args := []interface{}{cameraID}
	if since != nil {
		query += ` AND timestamp >= ?`
		args = append(args, since.Unix())
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("sqlstore: count anpr events: %w", err)
	}
	return count, nil
}

func (s *Store) DeleteANPREvent(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM anpr_events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlstore: delete anpr event: %w", err)
	}
	return nil
}

const anprSelect = `SELECT
	id, camera_id, timestamp, plate, confidence, snapshot_path,
	bbox_x, bbox_y, bbox_w, bbox_h, detector_meta
FROM anpr_events`

func scanANPREvent(scanner rowScanner) (*vmscore.ANPREvent, error) {
	var e vmscore.ANPREvent
	var ts int64
	var meta []byte

	err := scanner.Scan(
		&e.ID, &e.CameraID, &ts, &e.Plate, &e.Confidence, &e.SnapshotPath,
		&e.BoundingBox.X, &e.BoundingBox.Y, &e.BoundingBox.W, &e.BoundingBox.H, &meta,
	)
	if err != nil {
		return nil, err
	}

	e.Timestamp = time.Unix(ts, 0).UTC()
	if len(meta) > 0 {
		_ = json.Unmarshal(meta, &e.DetectorMeta)
	}
	return &e, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
