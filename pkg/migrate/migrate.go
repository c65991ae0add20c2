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

// Package migrate converts files from the wslfs attribute scheme back to
// lxfs, the reverse of what `wslconfig /upgrade` does.
package migrate

import (
	"errors"
	"fmt"

	"velda.io/wslattr/pkg/ea"
	"velda.io/wslattr/pkg/lxfs"
	"velda.io/wslattr/pkg/metadata"
	"velda.io/wslattr/pkg/ntfs"
	"velda.io/wslattr/pkg/posix"
	"velda.io/wslattr/pkg/reparse"
	"velda.io/wslattr/pkg/wslfile"
	"velda.io/wslattr/pkg/wslfs"
)

// State is the migration state of one file.
type State int

const (
	NeedsConversion State = iota
	AlreadyCompact
	Ambiguous
)

func (s State) String() string {
	switch s {
	case NeedsConversion:
		return "needs_conversion"
	case AlreadyCompact:
		return "already_compact"
	case Ambiguous:
		return "ambiguous"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Outcome is what happened to one file.
type Outcome int

const (
	Migrated Outcome = iota
	AlreadyMigrated
	Refused
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Migrated:
		return "migrated"
	case AlreadyMigrated:
		return "already_migrated"
	case Refused:
		return "refused"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Evaluate classifies a loaded file.
func Evaluate(set *metadata.Set) State {
	lx, ws := set.Claims()
	switch {
	case lx && ws:
		return Ambiguous
	case lx:
		return AlreadyCompact
	}
	return NeedsConversion
}

// Plan is the set of writes that converts one file.
type Plan struct {
	// Attrb is the new LXATTRB record.
	Attrb lxfs.Attrb
	// Xattrs are the LX.* attributes relinked into LXXATTR.
	Xattrs *lxfs.XattrList
	// Entries go to disk in a single EA write: the lxfs entries followed by
	// empty values for every wslfs entry.
	Entries []ea.Entry

	// ReparseTag is deleted after the EA write when HasReparse is set.
	ReparseTag uint32
	HasReparse bool

	// Symlink is written as the file content when IsSymlink is set.
	Symlink   string
	IsSymlink bool
}

// Build computes the conversion of a file that needs it. Absent wslfs
// fields become zero.
func Build(basic ntfs.BasicInfo, set *metadata.Set) (*Plan, error) {
	ws := set.Wslfs
	p := &Plan{Attrb: lxfs.NewAttrb(basic), Xattrs: &lxfs.XattrList{}}

	p.Attrb.UID, _ = ws.UID()
	p.Attrb.GID, _ = ws.GID()
	p.Attrb.Mode, _ = ws.Mode()
	dev, _ := ws.Dev()
	p.Attrb.Rdev = posix.MakeDev(dev.Major, dev.Minor)
	p.Entries = append(p.Entries, ea.NewEntry(lxfs.EaAttrb, p.Attrb.Encode()))

	dots := ws.DotEntries()
	for _, d := range dots {
		if err := p.Xattrs.Set(d.Name, d.Value); err != nil {
			return nil, err
		}
	}
	if p.Xattrs.Len() > 0 {
		buf, err := p.Xattrs.Encode()
		if err != nil {
			return nil, err
		}
		p.Entries = append(p.Entries, ea.NewEntry(lxfs.EaXattr, buf))
	} else if e, ok := set.Chain.Get(lxfs.EaXattr); ok && !e.Removed() {
		// A stale list without a record would otherwise outlive the move.
		p.Entries = append(p.Entries, ea.NewEntry(lxfs.EaXattr, nil))
	}

	for _, name := range wslfs.ScalarNames {
		p.Entries = append(p.Entries, ea.NewEntry(name, nil))
	}
	for _, d := range dots {
		p.Entries = append(p.Entries, ea.NewEntry(d.EaName, nil))
	}

	if t, ok := ws.ReparseType(); ok && t != reparse.Unknown {
		p.ReparseTag, p.HasReparse = t.Tag(), true
	}
	p.Symlink, p.IsSymlink = ws.Symlink()
	return p, nil
}

// Apply performs the writes of p: the EA write, then the reparse point
// delete, then the symlink content. The three steps are not atomic.
func (p *Plan) Apply(f *wslfile.File) error {
	if err := f.WriteEA(p.Entries); err != nil {
		return fmt.Errorf("write EA: %w", err)
	}
	if p.HasReparse {
		if err := reparse.Delete(f.Handle, p.ReparseTag); err != nil {
			return fmt.Errorf("delete reparse point: %w", err)
		}
	}
	if p.IsSymlink {
		if err := f.ReopenToWrite(); err != nil {
			return err
		}
		if err := f.Handle.WriteContent([]byte(p.Symlink)); err != nil {
			return fmt.Errorf("write symlink target: %w", err)
		}
	}
	return nil
}

// File migrates one loaded file. A file that lxfs already claims is left
// untouched and reported as AlreadyMigrated; a file both schemes claim is
// refused with ErrAmbiguousScheme.
func File(f *wslfile.File, set *metadata.Set) (Outcome, error) {
	switch Evaluate(set) {
	case AlreadyCompact:
		return AlreadyMigrated, nil
	case Ambiguous:
		return Refused, fmt.Errorf("%s: %w", f.Path, wslfile.ErrAmbiguousScheme)
	}
	p, err := Build(f.Basic, set)
	if err != nil {
		return Failed, fmt.Errorf("%s: %w", f.Path, err)
	}
	if err := p.Apply(f); err != nil {
		return Failed, fmt.Errorf("%s: %w", f.Path, err)
	}
	return Migrated, nil
}

// Path opens, loads and migrates one file.
func Path(opener ntfs.Opener, path string) (Outcome, error) {
	f, err := wslfile.Open(opener, path)
	if err != nil {
		return Failed, err
	}
	defer f.Close()
	set, err := metadata.Load(f)
	if err != nil {
		return Failed, fmt.Errorf("%s: %w", path, err)
	}
	return File(f, set)
}

// IsRefusal reports whether err is a refusal rather than a failure.
func IsRefusal(err error) bool {
	return errors.Is(err, wslfile.ErrAmbiguousScheme)
}
