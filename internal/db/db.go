// Package db persists the bridge's transmit journal: every KOMSI frame
// written to the dashboard and every field change it carried.
package db

import (
	"database/sql"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB wraps the journal database handle.
type DB struct {
	*sql.DB
}

// FrameRecord is one journaled transmit.
type FrameRecord struct {
	FrameID   string    `json:"frame_id"`
	Raw       []byte    `json:"-"`
	RawHex    string    `json:"raw_hex"`
	Commands  int       `json:"commands"`
	Forced    bool      `json:"forced"`
	CreatedAt time.Time `json:"created_at"`
}

// ChangeRecord is one field change carried by a journaled frame.
type ChangeRecord struct {
	FrameID  string `json:"frame_id"`
	Field    string `json:"field"`
	OldValue uint32 `json:"old_value"`
	NewValue uint32 `json:"new_value"`
}

// Open opens (or creates) the journal at path and brings its schema up to
// date.
func Open(path string) (*DB, error) {
	handle, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	d := &DB{handle}
	if err := d.migrateUp(); err != nil {
		handle.Close()
		return nil, err
	}
	return d, nil
}

func (d *DB) migrateUp() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(d.DB, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	// Note: m is not closed because that would close the underlying DB
	// connection.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate journal schema: %w", err)
	}
	return nil
}

// RecordFrame journals one transmitted frame together with the field changes
// it carried, atomically.
func (d *DB) RecordFrame(frame FrameRecord, changes []ChangeRecord) error {
	tx, err := d.Begin()
	if err != nil {
		return fmt.Errorf("begin journal tx: %w", err)
	}
	defer tx.Rollback()

	createdAt := frame.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = tx.Exec(
		`INSERT INTO frames (frame_id, raw_hex, commands, forced, created_at) VALUES (?, ?, ?, ?, ?)`,
		frame.FrameID, hex.EncodeToString(frame.Raw), frame.Commands, frame.Forced, createdAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert frame: %w", err)
	}

	for _, c := range changes {
		_, err = tx.Exec(
			`INSERT INTO changes (frame_id, field, old_value, new_value) VALUES (?, ?, ?, ?)`,
			frame.FrameID, c.Field, c.OldValue, c.NewValue,
		)
		if err != nil {
			return fmt.Errorf("insert change %s: %w", c.Field, err)
		}
	}

	return tx.Commit()
}

// RecentFrames returns the most recently journaled frames, newest first.
func (d *DB) RecentFrames(limit int) ([]FrameRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.Query(
		`SELECT frame_id, raw_hex, commands, forced, created_at
		 FROM frames ORDER BY created_at DESC, frame_id LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query frames: %w", err)
	}
	defer rows.Close()

	var frames []FrameRecord
	for rows.Next() {
		var f FrameRecord
		if err := rows.Scan(&f.FrameID, &f.RawHex, &f.Commands, &f.Forced, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan frame: %w", err)
		}
		if f.Raw, err = hex.DecodeString(f.RawHex); err != nil {
			return nil, fmt.Errorf("frame %s holds invalid hex: %w", f.FrameID, err)
		}
		frames = append(frames, f)
	}
	return frames, rows.Err()
}

// FieldHistory returns the most recent journaled changes of one field,
// newest first.
func (d *DB) FieldHistory(field string, limit int) ([]ChangeRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.Query(
		`SELECT c.frame_id, c.field, c.old_value, c.new_value
		 FROM changes c JOIN frames f ON f.frame_id = c.frame_id
		 WHERE c.field = ? ORDER BY f.created_at DESC, c.change_id DESC LIMIT ?`,
		field, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query changes: %w", err)
	}
	defer rows.Close()

	var changes []ChangeRecord
	for rows.Next() {
		var c ChangeRecord
		if err := rows.Scan(&c.FrameID, &c.Field, &c.OldValue, &c.NewValue); err != nil {
			return nil, fmt.Errorf("scan change: %w", err)
		}
		changes = append(changes, c)
	}
	return changes, rows.Err()
}
