// Copyright 2025 Velda Inc
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"velda.io/wslattr/pkg/db"
)

func newTestDb(t *testing.T) *SqliteDatabase {
	t.Helper()
	conn, err := NewSqliteDatabase(":memory:")
	require.NoError(t, err, "Failed to create database")
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestSqliteJournal(t *testing.T) {
	s := newTestDb(t)
	ctx := context.Background()

	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.BeginRun(ctx, db.Run{ID: "run-1", Root: `C:\distro\rootfs`, Distro: "Ubuntu", StartTime: start}))

	t.Run("RecordFiles", func(t *testing.T) {
		assert.NoError(t, s.RecordFile(ctx, "run-1", db.FileRecord{Path: "/etc/passwd", Outcome: "migrated"}))
		assert.NoError(t, s.RecordFile(ctx, "run-1", db.FileRecord{Path: "/bin", Outcome: "already_migrated"}))
		assert.NoError(t, s.RecordFile(ctx, "run-1", db.FileRecord{Path: "/odd", Outcome: "refused", Error: "ambiguous"}))

		all, err := s.RunFiles(ctx, "run-1", false)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "/etc/passwd", all[0].Path)
		assert.False(t, all[0].Time.IsZero())

		failed, err := s.RunFiles(ctx, "run-1", true)
		require.NoError(t, err)
		require.Len(t, failed, 1)
		assert.Equal(t, "/odd", failed[0].Path)
		assert.Equal(t, "ambiguous", failed[0].Error)
	})

	t.Run("FinishRun", func(t *testing.T) {
		summary := db.RunSummary{Migrated: 1, AlreadyMigrated: 1, Ambiguous: 1}
		require.NoError(t, s.FinishRun(ctx, "run-1", summary))

		run, err := s.GetRun(ctx, "run-1")
		require.NoError(t, err)
		assert.Equal(t, summary, run.Summary)
		assert.Equal(t, "Ubuntu", run.Distro)
		assert.True(t, run.StartTime.Equal(start))
		assert.False(t, run.FinishTime.IsZero())
		assert.Equal(t, 3, run.Summary.Total())
	})

	t.Run("UnknownRun", func(t *testing.T) {
		_, err := s.GetRun(ctx, "missing")
		assert.ErrorIs(t, err, db.ErrNotFound)
		assert.ErrorIs(t, s.FinishRun(ctx, "missing", db.RunSummary{}), db.ErrNotFound)
		assert.Error(t, s.RecordFile(ctx, "missing", db.FileRecord{Path: "/x", Outcome: "migrated"}), "foreign key must reject unknown runs")
	})
}

func TestListRunsAndPrefix(t *testing.T) {
	s := newTestDb(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"aaaa-1", "aaab-2", "bbbb-3"} {
		require.NoError(t, s.BeginRun(ctx, db.Run{ID: id, Root: "/r", StartTime: base.Add(time.Duration(i) * time.Hour), DryRun: i == 2}))
	}

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "bbbb-3", runs[0].ID, "newest first")
	assert.True(t, runs[0].DryRun)

	runs, err = s.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	run, err := s.GetRun(ctx, "bb")
	require.NoError(t, err)
	assert.Equal(t, "bbbb-3", run.ID)

	_, err = s.GetRun(ctx, "aa")
	assert.ErrorContains(t, err, "ambiguous")

	run, err = s.GetRun(ctx, "aaab")
	require.NoError(t, err)
	assert.Equal(t, "aaab-2", run.ID)
}

func TestReopenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	ctx := context.Background()

	s, err := NewSqliteDatabase(path)
	require.NoError(t, err)
	require.NoError(t, s.BeginRun(ctx, db.Run{ID: "persisted", Root: "/r"}))
	require.NoError(t, s.Close())

	s, err = NewSqliteDatabase(path)
	require.NoError(t, err)
	defer s.Close()
	run, err := s.GetRun(ctx, "persisted")
	require.NoError(t, err)
	assert.Equal(t, "/r", run.Root)
}
