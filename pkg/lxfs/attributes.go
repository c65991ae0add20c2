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
package lxfs

import (
	"fmt"

	"velda.io/wslattr/pkg/ea"
	"velda.io/wslattr/pkg/ntfs"
	"velda.io/wslattr/pkg/posix"
	"velda.io/wslattr/pkg/wslfile"
)

// MaxSymlinkSize bounds the file content read as a symlink target.
const MaxSymlinkSize = 4096

// ContentReader reads the start of the file content.
type ContentReader interface {
	ReadContent(limit int) ([]byte, error)
}

// Attributes is the lxfs view of one file.
type Attributes struct {
	attrb        *Attrb
	attrbChanged bool
	xattrs       *XattrList

	symlink    string
	hasSymlink bool

	basic ntfs.BasicInfo
}

var _ wslfile.Attributes = (*Attributes)(nil)

// Load interprets the LXATTRB and LXXATTR entries of chain. The symlink
// target of a link is read from content.
func Load(chain *ea.Chain, basic ntfs.BasicInfo, content ContentReader) (*Attributes, error) {
	a := &Attributes{basic: basic}
	if e, ok := chain.Get(EaAttrb); ok && !e.Removed() {
		attrb, err := DecodeAttrb(e.Value)
		if err != nil {
			return nil, err
		}
		a.attrb = &attrb
	}
	if e, ok := chain.Get(EaXattr); ok && !e.Removed() {
		l, err := DecodeXattrList(e.Value)
		if err != nil {
			return nil, err
		}
		a.xattrs = l
	}
	if a.attrb != nil && posix.TypeOf(a.attrb.Mode) == posix.TypeLink {
		data, err := content.ReadContent(MaxSymlinkSize)
		if err != nil {
			return nil, fmt.Errorf("read symlink target: %w", err)
		}
		a.symlink, a.hasSymlink = string(data), true
	}
	return a, nil
}

// LoadFile reads the EA chain of f and loads it.
func LoadFile(f *wslfile.File) (*Attributes, error) {
	chain, err := f.ReadEA()
	if err != nil {
		return nil, err
	}
	return Load(chain, f.Basic, f.Handle)
}

// New returns attributes for a file that has no lxfs records yet.
func New(basic ntfs.BasicInfo) *Attributes {
	return &Attributes{basic: basic}
}

func (a *Attributes) FsType() wslfile.FsType { return wslfile.Lxfs }

func (a *Attributes) Maybe() bool {
	return a.attrb != nil
}

// Attrb returns the fixed record, if any.
func (a *Attributes) Attrb() (Attrb, bool) {
	if a.attrb == nil {
		return Attrb{}, false
	}
	return *a.attrb, true
}

func (a *Attributes) field(get func(*Attrb) uint32) (uint32, bool) {
	if a.attrb == nil {
		return 0, false
	}
	return get(a.attrb), true
}

func (a *Attributes) UID() (uint32, bool) {
	return a.field(func(r *Attrb) uint32 { return r.UID })
}

func (a *Attributes) GID() (uint32, bool) {
	return a.field(func(r *Attrb) uint32 { return r.GID })
}

func (a *Attributes) Mode() (uint32, bool) {
	return a.field(func(r *Attrb) uint32 { return r.Mode })
}

func (a *Attributes) DevMajor() (uint32, bool) {
	return a.field(func(r *Attrb) uint32 { return posix.Major(r.Rdev) })
}

func (a *Attributes) DevMinor() (uint32, bool) {
	return a.field(func(r *Attrb) uint32 { return posix.Minor(r.Rdev) })
}

func (a *Attributes) Symlink() (string, bool) {
	return a.symlink, a.hasSymlink
}

func (a *Attributes) Xattrs() []wslfile.Xattr {
	if a.xattrs == nil {
		return nil
	}
	return a.xattrs.Xattrs()
}

// mutate creates the default record on first use.
func (a *Attributes) mutate(fn func(*Attrb)) {
	if a.attrb == nil {
		r := NewAttrb(a.basic)
		a.attrb = &r
	}
	fn(a.attrb)
	a.attrbChanged = true
}

func (a *Attributes) SetUID(uid uint32) {
	a.mutate(func(r *Attrb) { r.UID = uid })
}

func (a *Attributes) SetGID(gid uint32) {
	a.mutate(func(r *Attrb) { r.GID = gid })
}

func (a *Attributes) SetMode(mode uint32) {
	a.mutate(func(r *Attrb) { r.Mode = mode })
}

func (a *Attributes) SetDevMajor(major uint32) {
	a.mutate(func(r *Attrb) { r.Rdev = posix.MakeDev(major, posix.Minor(r.Rdev)) })
}

func (a *Attributes) SetDevMinor(minor uint32) {
	a.mutate(func(r *Attrb) { r.Rdev = posix.MakeDev(posix.Major(r.Rdev), minor) })
}

// SetAttrb replaces the whole fixed record.
func (a *Attributes) SetAttrb(r Attrb) {
	a.mutate(func(cur *Attrb) { *cur = r })
}

func (a *Attributes) SetAttr(name string, value []byte) error {
	if a.xattrs == nil {
		a.xattrs = &XattrList{}
	}
	return a.xattrs.Set(name, value)
}

func (a *Attributes) RmAttr(name string) bool {
	if a.xattrs == nil {
		return false
	}
	return a.xattrs.Remove(name)
}

// SetSymlink turns the file into a symlink to target: the mode type
// becomes S_IFLNK and the target is written as the file content.
func (a *Attributes) SetSymlink(f *wslfile.File, target string) error {
	a.mutate(func(r *Attrb) {
		perm := r.Mode & posix.PermMask
		if posix.TypeOf(r.Mode) != posix.TypeLink {
			perm = 0o777
		}
		r.Mode = posix.S_IFLNK | perm
	})
	if err := f.ReopenToWrite(); err != nil {
		return err
	}
	if err := f.Handle.WriteContent([]byte(target)); err != nil {
		return err
	}
	a.symlink, a.hasSymlink = target, true
	return nil
}

// Entries returns the EA entries that changed since load. An emptied
// LXXATTR is deleted.
func (a *Attributes) Entries() ([]ea.Entry, error) {
	var out []ea.Entry
	if a.attrbChanged {
		out = append(out, ea.NewEntry(EaAttrb, a.attrb.Encode()))
	}
	if a.xattrs != nil && a.xattrs.changed {
		if a.xattrs.Len() == 0 {
			out = append(out, ea.NewEntry(EaXattr, nil))
		} else {
			b, err := a.xattrs.Encode()
			if err != nil {
				return nil, err
			}
			out = append(out, ea.NewEntry(EaXattr, b))
		}
	}
	return out, nil
}

func (a *Attributes) Save(f *wslfile.File) error {
	entries, err := a.Entries()
	if err != nil {
		return err
	}
	if err := f.WriteEA(entries); err != nil {
		return err
	}
	a.attrbChanged = false
	if a.xattrs != nil {
		a.xattrs.changed = false
	}
	return nil
}
