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
package db

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

// Run is one downgrade invocation.
type Run struct {
	ID         string
	Root       string
	Distro     string
	DryRun     bool
	StartTime  time.Time
	FinishTime time.Time
	Summary    RunSummary
}

// RunSummary is the tally of a finished run.
type RunSummary struct {
	Migrated        int
	AlreadyMigrated int
	Ambiguous       int
	Failed          int
	Cancelled       bool
}

func (s RunSummary) Total() int {
	return s.Migrated + s.AlreadyMigrated + s.Ambiguous + s.Failed
}

// FileRecord is the outcome for one path of a run.
type FileRecord struct {
	Path    string
	Outcome string
	Error   string
	Time    time.Time
}

// Journal keeps a durable record of downgrade runs so a partially finished
// tree migration can be inspected afterwards.
type Journal interface {
	BeginRun(ctx context.Context, run Run) error
	RecordFile(ctx context.Context, runID string, rec FileRecord) error
	FinishRun(ctx context.Context, runID string, summary RunSummary) error

	ListRuns(ctx context.Context, limit int) ([]Run, error)
	GetRun(ctx context.Context, runID string) (Run, error)
	RunFiles(ctx context.Context, runID string, onlyFailed bool) ([]FileRecord, error)

	Close() error
}
