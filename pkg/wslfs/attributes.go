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

// Package wslfs implements the later WSL1 attribute scheme: one EA per
// scalar ($LXUID, $LXGID, $LXMOD, $LXDEV), one LX.<NAME> EA per extended
// attribute and special files recorded as reparse points.
package wslfs

import (
	"encoding/binary"
	"fmt"
	"strings"

	"velda.io/wslattr/pkg/ea"
	"velda.io/wslattr/pkg/ntfs"
	"velda.io/wslattr/pkg/posix"
	"velda.io/wslattr/pkg/reparse"
	"velda.io/wslattr/pkg/wslfile"
)

const (
	EaUID = "$LXUID"
	EaGID = "$LXGID"
	EaMod = "$LXMOD"
	EaDev = "$LXDEV"

	// DotPrefix starts the EA name of every extended attribute.
	DotPrefix = "LX."
	// MarkerSize is the opaque prefix of every LX.* value.
	MarkerSize = 4
)

// ScalarNames are the four scalar EAs, in the order they are written.
var ScalarNames = []string{EaUID, EaGID, EaMod, EaDev}

// Dev is the $LXDEV value.
type Dev struct {
	Major uint32
	Minor uint32
}

// Attributes is the wslfs view of one file. It edits the decoded chain in
// place so Save only writes what changed.
type Attributes struct {
	chain *ea.Chain

	reparseType reparse.Type
	hasReparse  bool
	symlink     string
}

var _ wslfile.Attributes = (*Attributes)(nil)

// Load interprets the wslfs entries of chain. When tag is LX_SYMLINK the
// target is read from the reparse point of h.
func Load(chain *ea.Chain, tag uint32, hasTag bool, h ntfs.Handle) (*Attributes, error) {
	a := &Attributes{chain: chain}
	for _, name := range ScalarNames {
		e, ok := chain.Get(name)
		if !ok || e.Removed() {
			continue
		}
		want := 4
		if name == EaDev {
			want = 8
		}
		if len(e.Value) != want {
			return nil, fmt.Errorf("%w: %s is %d bytes, want %d", wslfile.ErrMalformedAttribute, name, len(e.Value), want)
		}
	}
	for _, e := range chain.Entries {
		if isDot(e.Name) && !e.Removed() && len(e.Value) < MarkerSize {
			return nil, fmt.Errorf("%w: %s value is shorter than its marker", wslfile.ErrMalformedAttribute, e.Name)
		}
	}
	if hasTag {
		a.reparseType, a.hasReparse = reparse.FromTag(tag), true
		if a.reparseType == reparse.Symlink {
			target, err := reparse.ReadSymlink(h)
			if err != nil {
				return nil, err
			}
			a.symlink = target
		}
	}
	return a, nil
}

// LoadFile reads the EA chain of f and loads it.
func LoadFile(f *wslfile.File) (*Attributes, error) {
	chain, err := f.ReadEA()
	if err != nil {
		return nil, err
	}
	tag, ok := f.ReparseTag()
	return Load(chain, tag, ok, f.Handle)
}

func isDot(name []byte) bool {
	return len(name) > len(DotPrefix) && strings.EqualFold(string(name[:len(DotPrefix)]), DotPrefix)
}

func (a *Attributes) FsType() wslfile.FsType { return wslfile.Wslfs }

// Maybe reports whether any scalar, any LX.* attribute or a WSL reparse tag
// is present. Reparse tags owned by other software do not count.
func (a *Attributes) Maybe() bool {
	for _, name := range ScalarNames {
		if e, ok := a.chain.Get(name); ok && !e.Removed() {
			return true
		}
	}
	if len(a.dotEntries()) > 0 {
		return true
	}
	return a.hasReparse && a.reparseType != reparse.Unknown
}

// ReparseType is the file type recorded in the reparse tag.
func (a *Attributes) ReparseType() (reparse.Type, bool) {
	return a.reparseType, a.hasReparse
}

func (a *Attributes) scalar(name string) (uint32, bool) {
	e, ok := a.chain.Get(name)
	if !ok || e.Removed() {
		return 0, false
	}
	return binary.LittleEndian.Uint32(e.Value), true
}

// Dev returns $LXDEV.
func (a *Attributes) Dev() (Dev, bool) {
	e, ok := a.chain.Get(EaDev)
	if !ok || e.Removed() {
		return Dev{}, false
	}
	return Dev{
		Major: binary.LittleEndian.Uint32(e.Value[0:4]),
		Minor: binary.LittleEndian.Uint32(e.Value[4:8]),
	}, true
}

func (a *Attributes) UID() (uint32, bool)  { return a.scalar(EaUID) }
func (a *Attributes) GID() (uint32, bool)  { return a.scalar(EaGID) }
func (a *Attributes) Mode() (uint32, bool) { return a.scalar(EaMod) }

func (a *Attributes) DevMajor() (uint32, bool) {
	d, ok := a.Dev()
	return d.Major, ok
}

func (a *Attributes) DevMinor() (uint32, bool) {
	d, ok := a.Dev()
	return d.Minor, ok
}

func (a *Attributes) Symlink() (string, bool) {
	return a.symlink, a.hasReparse && a.reparseType == reparse.Symlink
}

func (a *Attributes) setScalar(name string, v uint32) {
	a.chain.Set(name, binary.LittleEndian.AppendUint32(nil, v))
}

func (a *Attributes) SetUID(uid uint32)   { a.setScalar(EaUID, uid) }
func (a *Attributes) SetGID(gid uint32)   { a.setScalar(EaGID, gid) }
func (a *Attributes) SetMode(mode uint32) { a.setScalar(EaMod, mode) }

func (a *Attributes) SetDev(d Dev) {
	v := binary.LittleEndian.AppendUint32(nil, d.Major)
	v = binary.LittleEndian.AppendUint32(v, d.Minor)
	a.chain.Set(EaDev, v)
}

func (a *Attributes) SetDevMajor(major uint32) {
	d, _ := a.Dev()
	d.Major = major
	a.SetDev(d)
}

func (a *Attributes) SetDevMinor(minor uint32) {
	d, _ := a.Dev()
	d.Minor = minor
	a.SetDev(d)
}

// DotEntry is one live LX.* EA.
type DotEntry struct {
	// EaName is the name on disk, LX. prefix included.
	EaName string
	// Name is the attribute name for display: no prefix, lower case.
	Name string
	// Value is the attribute value without the marker.
	Value []byte
}

func (a *Attributes) dotEntries() []DotEntry {
	var out []DotEntry
	for _, e := range a.chain.Entries {
		if !isDot(e.Name) || e.Removed() {
			continue
		}
		out = append(out, DotEntry{
			EaName: string(e.Name),
			Name:   strings.ToLower(string(e.Name[len(DotPrefix):])),
			Value:  e.Value[MarkerSize:],
		})
	}
	return out
}

// DotEntries lists the live LX.* EAs in chain order.
func (a *Attributes) DotEntries() []DotEntry {
	return a.dotEntries()
}

func (a *Attributes) Xattrs() []wslfile.Xattr {
	var out []wslfile.Xattr
	for _, d := range a.dotEntries() {
		out = append(out, wslfile.Xattr{Name: d.Name, Value: d.Value})
	}
	return out
}

// EaName is the on-disk EA name of attribute name.
func EaName(name string) string {
	return DotPrefix + strings.ToUpper(name)
}

// findDot looks an attribute up by its case-folded name.
func (a *Attributes) findDot(name string) *ea.Entry {
	want := EaName(name)
	for i := range a.chain.Entries {
		e := &a.chain.Entries[i]
		if isDot(e.Name) && strings.EqualFold(string(e.Name), want) {
			return e
		}
	}
	return nil
}

// SetAttr stores value under LX.<NAME>. An existing entry keeps its marker.
func (a *Attributes) SetAttr(name string, value []byte) error {
	if name == "" || len(EaName(name)) > ea.MaxNameLength {
		return fmt.Errorf("%w: %q", wslfile.ErrInvalidName, name)
	}
	if MarkerSize+len(value) > ea.MaxValueLength {
		return fmt.Errorf("%w: value of %q is %d bytes", ea.ErrEntryTooLarge, name, len(value))
	}
	marker := make([]byte, MarkerSize)
	e := a.findDot(name)
	if e != nil && len(e.Value) >= MarkerSize {
		copy(marker, e.Value[:MarkerSize])
	}
	v := append(marker, value...)
	if e != nil {
		e.SetValue(v)
		return nil
	}
	a.chain.Set(EaName(name), v)
	return nil
}

func (a *Attributes) RmAttr(name string) bool {
	e := a.findDot(name)
	if e == nil || e.Removed() {
		return false
	}
	e.SetValue(nil)
	return true
}

// SetSymlink points the LX_SYMLINK reparse point at target, replacing a
// reparse point of another type. The S_IFLNK mode is written by Save.
func (a *Attributes) SetSymlink(f *wslfile.File, target string) error {
	if err := f.ReopenToWrite(); err != nil {
		return err
	}
	if err := reparse.Replace(f.Handle, reparse.Symlink, target); err != nil {
		return err
	}
	a.reparseType, a.hasReparse, a.symlink = reparse.Symlink, true, target
	mode, ok := a.Mode()
	if !ok || posix.TypeOf(mode) != posix.TypeLink {
		mode = posix.S_IFLNK | 0o777
	}
	a.SetMode(mode)
	return nil
}

// Entries returns the EA entries that changed since load.
func (a *Attributes) Entries() []ea.Entry {
	return a.chain.Changed()
}

func (a *Attributes) Save(f *wslfile.File) error {
	changed := a.chain.Changed()
	if err := f.WriteEA(changed); err != nil {
		return err
	}
	// Written entries now match the disk; removed ones are gone.
	live := a.chain.Live()
	buf, err := ea.Encode(live)
	if err != nil {
		return err
	}
	if len(live) == 0 {
		buf = nil
	}
	chain, err := ea.ParseChain(buf)
	if err != nil {
		return err
	}
	a.chain = chain
	return nil
}
