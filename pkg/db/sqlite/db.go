// Copyright 2025 Velda Inc
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"velda.io/wslattr/pkg/db"
)

type SqliteDatabase struct {
	db *sql.DB
}

var _ db.Journal = (*SqliteDatabase)(nil)

func NewSqliteDatabase(dbPath string) (*SqliteDatabase, error) {
	conn, err := sql.Open("sqlite", dbPath+
		"?_pragma=journal_mode(WAL)&"+
		"_pragma=busy_timeout(5000)&"+ // ms; avoids immediate SQLITE_BUSY
		"_pragma=synchronous(NORMAL)&"+ // good balance for WAL
		"_pragma=foreign_keys(1)&"+
		"_pragma=wal_autocheckpoint=1000")
	if err != nil {
		return nil, err
	}
	if dbPath == ":memory:" {
		// Every connection of an in-memory database is a separate database.
		conn.SetMaxOpenConns(1)
	}

	if _, err := conn.Exec("PRAGMA foreign_keys = ON"); err != nil {
		conn.Close()
		return nil, err
	}

	sqliteDB := &SqliteDatabase{db: conn}
	if err := sqliteDB.Init(); err != nil {
		conn.Close()
		return nil, err
	}
	return sqliteDB, nil
}

func (s *SqliteDatabase) Close() error {
	return s.db.Close()
}

func (s *SqliteDatabase) Init() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS runs(
	id TEXT PRIMARY KEY,
	root TEXT NOT NULL,
	distro TEXT NOT NULL DEFAULT '',
	dry_run INTEGER NOT NULL DEFAULT 0,
	start_time TEXT NOT NULL,
	finish_time TEXT DEFAULT NULL,
	migrated INTEGER NOT NULL DEFAULT 0,
	already_migrated INTEGER NOT NULL DEFAULT 0,
	ambiguous INTEGER NOT NULL DEFAULT 0,
	failed INTEGER NOT NULL DEFAULT 0,
	cancelled INTEGER NOT NULL DEFAULT 0
)`)
	if err != nil {
		return fmt.Errorf("failed to create runs table: %w", err)
	}

	_, err = s.db.Exec(`
CREATE TABLE IF NOT EXISTS run_files(
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	path TEXT NOT NULL,
	outcome TEXT NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	time TEXT NOT NULL
)`)
	if err != nil {
		return fmt.Errorf("failed to create run_files table: %w", err)
	}

	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_run_files_run ON run_files(run_id, outcome)`)
	if err != nil {
		return fmt.Errorf("failed to create run_files index: %w", err)
	}
	return nil
}

// Fixed width so that timestamps sort as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s sql.NullString) time.Time {
	if !s.Valid {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (s *SqliteDatabase) BeginRun(ctx context.Context, run db.Run) error {
	if run.StartTime.IsZero() {
		run.StartTime = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs(id, root, distro, dry_run, start_time) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Root, run.Distro, run.DryRun, formatTime(run.StartTime))
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}
	return nil
}

func (s *SqliteDatabase) RecordFile(ctx context.Context, runID string, rec db.FileRecord) error {
	if rec.Time.IsZero() {
		rec.Time = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_files(run_id, path, outcome, error, time) VALUES (?, ?, ?, ?, ?)`,
		runID, rec.Path, rec.Outcome, rec.Error, formatTime(rec.Time))
	if err != nil {
		return fmt.Errorf("failed to record %s: %w", rec.Path, err)
	}
	return nil
}

func (s *SqliteDatabase) FinishRun(ctx context.Context, runID string, summary db.RunSummary) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE runs SET finish_time = ?, migrated = ?, already_migrated = ?, ambiguous = ?, failed = ?, cancelled = ?
WHERE id = ?`,
		formatTime(time.Now()), summary.Migrated, summary.AlreadyMigrated, summary.Ambiguous, summary.Failed, summary.Cancelled, runID)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", runID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %s: %w", runID, db.ErrNotFound)
	}
	return nil
}

const runColumns = "id, root, distro, dry_run, start_time, finish_time, migrated, already_migrated, ambiguous, failed, cancelled"

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (db.Run, error) {
	var run db.Run
	var start, finish sql.NullString
	err := row.Scan(&run.ID, &run.Root, &run.Distro, &run.DryRun, &start, &finish,
		&run.Summary.Migrated, &run.Summary.AlreadyMigrated, &run.Summary.Ambiguous,
		&run.Summary.Failed, &run.Summary.Cancelled)
	if err != nil {
		return run, err
	}
	run.StartTime = parseTime(start)
	run.FinishTime = parseTime(finish)
	return run, nil
}

func (s *SqliteDatabase) ListRuns(ctx context.Context, limit int) ([]db.Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY start_time DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var runs []db.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun accepts a full run ID or a unique prefix of one.
func (s *SqliteDatabase) GetRun(ctx context.Context, runID string) (db.Run, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ? OR id LIKE ? LIMIT 2`, runID, runID+"%")
	if err != nil {
		return db.Run{}, err
	}
	defer rows.Close()
	var runs []db.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return db.Run{}, err
		}
		if run.ID == runID {
			return run, nil
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return db.Run{}, err
	}
	switch len(runs) {
	case 0:
		return db.Run{}, fmt.Errorf("run %s: %w", runID, db.ErrNotFound)
	case 1:
		return runs[0], nil
	}
	return db.Run{}, fmt.Errorf("run ID prefix %s is ambiguous", runID)
}

func (s *SqliteDatabase) RunFiles(ctx context.Context, runID string, onlyFailed bool) ([]db.FileRecord, error) {
	query := `SELECT path, outcome, error, time FROM run_files WHERE run_id = ?`
	if onlyFailed {
		query += ` AND error != ''`
	}
	query += ` ORDER BY id`
	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []db.FileRecord
	for rows.Next() {
		var rec db.FileRecord
		var ts sql.NullString
		if err := rows.Scan(&rec.Path, &rec.Outcome, &rec.Error, &ts); err != nil {
			return nil, err
		}
		rec.Time = parseTime(ts)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return out, nil
}
