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
package wslfile

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAmbiguousScheme means both schemes claim the file.
	ErrAmbiguousScheme = errors.New("both lxfs and wslfs metadata exist")
	// ErrUnsupportedSchemeless means neither scheme claims the file and no
	// scheme was given explicitly.
	ErrUnsupportedSchemeless = errors.New("neither lxfs nor wslfs metadata exists")
	// ErrMalformedAttribute is a scheme attribute with an impossible size
	// or version.
	ErrMalformedAttribute = errors.New("malformed attribute")
	// ErrInvalidName is an extended attribute name the scheme cannot store.
	ErrInvalidName = errors.New("invalid attribute name")
)

// FsType identifies the on-disk scheme of a WSL1 distro.
type FsType int

const (
	// None is a distro without either WSL1 scheme, i.e. WSL2.
	None FsType = iota
	// Lxfs stores one fixed LXATTRB record and an LXXATTR list.
	Lxfs
	// Wslfs stores $LXUID, $LXGID, $LXMOD, $LXDEV and one LX.* EA per
	// extended attribute, with special files as reparse points.
	Wslfs
)

func (t FsType) String() string {
	switch t {
	case Lxfs:
		return "lxfs"
	case Wslfs:
		return "wslfs"
	}
	return "wsl2"
}

// Version is the Lxss registry Version value for t.
func (t FsType) Version() uint32 {
	switch t {
	case Lxfs:
		return 1
	case Wslfs:
		return 2
	}
	return 0
}

// FsTypeFromVersion maps the Lxss registry Version value.
func FsTypeFromVersion(v uint32) FsType {
	switch v {
	case 1:
		return Lxfs
	case 2:
		return Wslfs
	}
	return None
}

func ParseFsType(s string) (FsType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lxfs":
		return Lxfs, nil
	case "wslfs":
		return Wslfs, nil
	case "wsl2", "none", "":
		return None, nil
	}
	return None, fmt.Errorf("unknown fs type %q, expected lxfs or wslfs", s)
}

// Set implements pflag.Value.
func (t *FsType) Set(s string) error {
	v, err := ParseFsType(s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Type implements pflag.Value.
func (t *FsType) Type() string {
	return "lxfs|wslfs"
}

func (t FsType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *FsType) UnmarshalText(b []byte) error {
	return t.Set(string(b))
}

// Xattr is a Linux extended attribute as presented to users: the name
// without any scheme prefix and the raw value.
type Xattr struct {
	Name  string
	Value []byte
}

// Attributes is the per-file metadata of one scheme. Getters report false
// when the scheme holds no value. The first setter call on a file the
// scheme does not claim creates the scheme's records with defaults.
// Nothing reaches the disk until Save.
type Attributes interface {
	FsType() FsType
	// Maybe reports whether the scheme claims the file.
	Maybe() bool

	UID() (uint32, bool)
	GID() (uint32, bool)
	Mode() (uint32, bool)
	DevMajor() (uint32, bool)
	DevMinor() (uint32, bool)
	// Symlink is the link target, when the scheme records one.
	Symlink() (string, bool)
	// Xattrs lists the extended attributes that are not removed.
	Xattrs() []Xattr

	SetUID(uid uint32)
	SetGID(gid uint32)
	SetMode(mode uint32)
	SetDevMajor(major uint32)
	SetDevMinor(minor uint32)

	SetAttr(name string, value []byte) error
	// RmAttr marks the attribute for removal and reports whether it existed.
	RmAttr(name string) bool

	// SetSymlink changes the link target the way the scheme stores it.
	SetSymlink(f *File, target string) error

	// Save writes the changed EA entries to f.
	Save(f *File) error
}
