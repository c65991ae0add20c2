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
package migrate

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"velda.io/wslattr/pkg/db"
	"velda.io/wslattr/pkg/ntfs"
	"velda.io/wslattr/pkg/wslfile"
)

// Options control a tree migration. All fields are optional.
type Options struct {
	// FS lists the tree to walk. Defaults to os.DirFS(root).
	FS fs.FS
	// Journal records the run and every file outcome.
	Journal db.Journal
	Metrics *Metrics
	// Progress is called after every file.
	Progress func(path string, outcome Outcome, err error)
	// DryRun performs every write against an in-memory copy.
	DryRun bool
	// Distro is recorded in the journal.
	Distro string
}

// Failure is a file that was refused or failed.
type Failure struct {
	Path    string
	Outcome Outcome
	Err     error
}

// Report is the tally of one tree migration.
type Report struct {
	RunID    string
	Root     string
	DryRun   bool
	Summary  db.RunSummary
	Failures []Failure
	Duration time.Duration
}

// Record tallies the outcome of one path.
func (r *Report) Record(path string, o Outcome, err error) {
	switch o {
	case Migrated:
		r.Summary.Migrated++
	case AlreadyMigrated:
		r.Summary.AlreadyMigrated++
	case Refused:
		r.Summary.Ambiguous++
	default:
		r.Summary.Failed++
	}
	if err != nil {
		r.Failures = append(r.Failures, Failure{Path: path, Outcome: o, Err: err})
	}
}

// OK reports whether every file was migrated or already migrated.
func (r *Report) OK() bool {
	return len(r.Failures) == 0 && !r.Summary.Cancelled
}

// Tree migrates every entry under root, one file at a time. A per-file
// error is logged and tallied and the walk goes on. Files migrated before a
// failure are not rolled back. Cancelling ctx stops the walk between files
// and returns the partial report with ctx's error.
func Tree(ctx context.Context, opener ntfs.Opener, root string, opts Options) (*Report, error) {
	fsys := opts.FS
	if fsys == nil {
		fsys = os.DirFS(root)
	}
	if opts.DryRun {
		opener = ntfs.NewDryRunOpener(opener)
	}
	report := &Report{RunID: uuid.NewString(), Root: root, DryRun: opts.DryRun}
	start := time.Now()

	if opts.Journal != nil {
		err := opts.Journal.BeginRun(ctx, db.Run{
			ID:        report.RunID,
			Root:      root,
			Distro:    opts.Distro,
			DryRun:    opts.DryRun,
			StartTime: start,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to start journal run: %w", err)
		}
	}

	walkErr := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		path := filepath.Join(root, filepath.FromSlash(p))
		var outcome Outcome
		if err != nil {
			// Unreadable directory: its children are skipped, the rest goes on.
			outcome = Failed
		} else {
			fileStart := time.Now()
			outcome, err = Path(opener, path)
			opts.Metrics.Observe(outcome, time.Since(fileStart))
		}
		report.Record(path, outcome, err)
		if err != nil {
			log.Printf("downgrade %s %s: %v", outcome, path, err)
		}
		if opts.Journal != nil {
			rec := db.FileRecord{Path: path, Outcome: outcome.String(), Time: time.Now()}
			if err != nil {
				rec.Error = err.Error()
			}
			if jerr := opts.Journal.RecordFile(ctx, report.RunID, rec); jerr != nil {
				log.Printf("failed to journal %s: %v", path, jerr)
			}
		}
		if opts.Progress != nil {
			opts.Progress(path, outcome, err)
		}
		return nil
	})
	report.Duration = time.Since(start)
	if errors.Is(walkErr, context.Canceled) || errors.Is(walkErr, context.DeadlineExceeded) {
		report.Summary.Cancelled = true
	} else if walkErr != nil {
		report.Record(root, Failed, walkErr)
	}

	if opts.Journal != nil {
		// The run is closed even when ctx is already done.
		if err := opts.Journal.FinishRun(context.WithoutCancel(ctx), report.RunID, report.Summary); err != nil {
			log.Printf("failed to finish journal run %s: %v", report.RunID, err)
		}
	}
	if report.Summary.Cancelled {
		return report, walkErr
	}
	return report, nil
}

// VersionSetter records the attribute scheme of a distro.
type VersionSetter interface {
	SetFsType(name string, t wslfile.FsType) error
}

// Distro migrates the rootfs of an installed distro and then marks the
// distro as lxfs. The mark is skipped for dry runs and cancelled walks.
func Distro(ctx context.Context, opener ntfs.Opener, name, basePath string, setter VersionSetter, opts Options) (*Report, error) {
	opts.Distro = name
	report, err := Tree(ctx, opener, filepath.Join(basePath, "rootfs"), opts)
	if err != nil {
		return report, err
	}
	if opts.DryRun {
		return report, nil
	}
	if !report.OK() {
		log.Printf("%s: %d files were not migrated", name, len(report.Failures))
	}
	if err := setter.SetFsType(name, wslfile.Lxfs); err != nil {
		return report, fmt.Errorf("failed to set %s version to %d: %w", name, wslfile.Lxfs.Version(), err)
	}
	return report, nil
}
