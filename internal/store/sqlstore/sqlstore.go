// Package sqlstore is the one in-tree implementation of store.Store, backed
// by an embedded SQLite database (modernc.org/sqlite, pure Go, no CGO) so
// the service binary stays a single static artifact.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cortexvms/vms-core/internal/config"
	"github.com/cortexvms/vms-core/internal/store"
	"github.com/cortexvms/vms-core/internal/vmscore"
	"github.com/shirou/gopsutil/v3/disk"
)

const schemaVersion = 1

var _ store.Store = (*Store)(nil)

// Store is the SQLite-backed Metadata Store.
type Store struct {
	db      *sql.DB
	baseDir string // filesystem root used for SystemStats.storage, best-effort
}

// Open opens (creating if necessary) the SQLite database at cfg.Path with
// WAL journaling and a busy timeout, matching the pack's embedded-database
// operational defaults, then runs idempotent migrations.
func Open(cfg config.DatabaseConfig, baseDir string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)",
		cfg.Path, cfg.BusyTimeoutMs)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open failed: %w", err)
	}

	maxConns := cfg.MaxOpenConns
	if maxConns <= 0 {
		maxConns = 1
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlstore: ping failed: %w", err)
	}

	s := &Store{db: db, baseDir: baseDir}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlstore: migration failed: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS cameras (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		location TEXT,
		ingress_url TEXT NOT NULL,
		username TEXT,
		stored_secret TEXT,
		tags TEXT,
		protocol_hls INTEGER NOT NULL DEFAULT 0,
		protocol_record INTEGER NOT NULL DEFAULT 0,
		protocol_anpr INTEGER NOT NULL DEFAULT 0,
		grid_row INTEGER NOT NULL DEFAULT 0,
		grid_col INTEGER NOT NULL DEFAULT 0,
		grid_size INTEGER NOT NULL DEFAULT 1,
		recording_mode TEXT NOT NULL DEFAULT 'off',
		recording_segment_seconds INTEGER NOT NULL DEFAULT 60,
		recording_retention_days INTEGER NOT NULL DEFAULT 30,
		anpr_enabled INTEGER NOT NULL DEFAULT 0,
		anpr_sample_every_n_frames INTEGER NOT NULL DEFAULT 5,
		anpr_confidence_threshold REAL NOT NULL DEFAULT 0.6,
		status TEXT NOT NULL DEFAULT 'offline',
		last_seen INTEGER,
		observed_fps REAL,
		observed_bitrate_kbps INTEGER,
		observed_width INTEGER,
		observed_height INTEGER,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_cameras_name ON cameras(name);

	CREATE TABLE IF NOT EXISTS recordings (
		id TEXT PRIMARY KEY,
		camera_id TEXT NOT NULL,
		date TEXT NOT NULL,
		start_time INTEGER NOT NULL,
		end_time INTEGER,
		path TEXT NOT NULL UNIQUE,
		duration_seconds INTEGER NOT NULL DEFAULT 0,
		size_bytes INTEGER NOT NULL DEFAULT 0,
		container TEXT NOT NULL DEFAULT 'mp4',
		observed_fps REAL,
		observed_bitrate_kbps INTEGER,
		observed_width INTEGER,
		observed_height INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_recordings_camera_start ON recordings(camera_id, start_time DESC);
	CREATE INDEX IF NOT EXISTS idx_recordings_active ON recordings(camera_id) WHERE end_time IS NULL;

	CREATE TABLE IF NOT EXISTS anpr_events (
		id TEXT PRIMARY KEY,
		camera_id TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		plate TEXT NOT NULL,
		confidence REAL NOT NULL,
		snapshot_path TEXT NOT NULL,
		bbox_x INTEGER NOT NULL,
		bbox_y INTEGER NOT NULL,
		bbox_w INTEGER NOT NULL,
		bbox_h INTEGER NOT NULL,
		detector_meta TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_anpr_camera_ts ON anpr_events(camera_id, timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_anpr_plate ON anpr_events(plate);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	_, err := s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion))
	return err
}

// Close closes the underlying database connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// SystemStats aggregates counters for the control surface's /system/stats
// route. Storage figures are populated best-effort via gopsutil/v3/disk;
// a stat failure degrades to omitted fields rather than an error, per
// SPEC_FULL §9.
func (s *Store) SystemStats(ctx context.Context) (*vmscore.SystemStats, error) {
	stats := &vmscore.SystemStats{}

	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cameras`)
	if err := row.Scan(&stats.TotalCameras); err != nil {
		return nil, fmt.Errorf("sqlstore: count cameras: %w", err)
	}

	row = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cameras WHERE status = 'online'`)
	if err := row.Scan(&stats.OnlineCameras); err != nil {
		return nil, fmt.Errorf("sqlstore: count online cameras: %w", err)
	}

	row = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM recordings WHERE end_time IS NULL`)
	if err := row.Scan(&stats.ActiveRecordings); err != nil {
		return nil, fmt.Errorf("sqlstore: count active recordings: %w", err)
	}

	midnight := time.Now().Truncate(24 * time.Hour)
	row = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM anpr_events WHERE timestamp >= ?`, midnight.Unix())
	if err := row.Scan(&stats.ANPREventsToday); err != nil {
		return nil, fmt.Errorf("sqlstore: count anpr events: %w", err)
	}

	if usage, err := disk.UsageWithContext(ctx, s.baseDir); err == nil {
		used := usage.Used
		total := usage.Total
		stats.StorageUsedBytes = &used
		stats.StorageTotalBytes = &total
	}

	return stats, nil
}
