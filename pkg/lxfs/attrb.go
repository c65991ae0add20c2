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

// Package lxfs implements the original WSL1 attribute scheme: a fixed
// LXATTRB record per file, an LXXATTR list for extended attributes and
// symlink targets kept as file content.
package lxfs

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"velda.io/wslattr/pkg/ntfs"
	"velda.io/wslattr/pkg/posix"
	"velda.io/wslattr/pkg/wslfile"
)

const (
	EaAttrb = "LXATTRB"
	EaXattr = "LXXATTR"

	AttrbSize    = 56
	AttrbVersion = 1
)

// Attrb is the LXATTRB value. Times are Unix seconds with a separate
// nanosecond field.
type Attrb struct {
	Flags     uint16
	Version   uint16
	Mode      uint32
	UID       uint32
	GID       uint32
	Rdev      uint32
	AtimeNsec uint32
	MtimeNsec uint32
	CtimeNsec uint32
	Atime     uint64
	Mtime     uint64
	Ctime     uint64
}

// NewAttrb returns the record a file gets when it has none: root owned,
// 0755 for directories and 0644 otherwise, times from basic.
func NewAttrb(basic ntfs.BasicInfo) Attrb {
	a := Attrb{Version: AttrbVersion, Mode: posix.DefaultFileMode}
	if basic.IsDir() {
		a.Mode = posix.DefaultDirMode
	}
	a.SetTimes(basic)
	return a
}

// SetTimes copies access, write and change times from basic.
func (a *Attrb) SetTimes(basic ntfs.BasicInfo) {
	a.Atime, a.AtimeNsec = unixTime(basic.LastAccessTime)
	a.Mtime, a.MtimeNsec = unixTime(basic.LastWriteTime)
	a.Ctime, a.CtimeNsec = unixTime(basic.ChangeTime)
}

func unixTime(ft ntfs.FileTime) (uint64, uint32) {
	sec, nsec := ft.Unix()
	if sec < 0 {
		return 0, 0
	}
	return uint64(sec), uint32(nsec)
}

// DecodeAttrb parses an LXATTRB value.
func DecodeAttrb(b []byte) (Attrb, error) {
	var a Attrb
	if len(b) != AttrbSize {
		return a, fmt.Errorf("%w: %s is %d bytes, want %d", wslfile.ErrMalformedAttribute, EaAttrb, len(b), AttrbSize)
	}
	if err := binary.Read(bytes.NewReader(b), binary.LittleEndian, &a); err != nil {
		return a, fmt.Errorf("%w: %s: %v", wslfile.ErrMalformedAttribute, EaAttrb, err)
	}
	if a.Version != AttrbVersion {
		return a, fmt.Errorf("%w: %s version %d", wslfile.ErrMalformedAttribute, EaAttrb, a.Version)
	}
	return a, nil
}

func (a Attrb) Encode() []byte {
	buf := bytes.NewBuffer(make([]byte, 0, AttrbSize))
	if err := binary.Write(buf, binary.LittleEndian, a); err != nil {
		// Fixed size struct into a buffer of exactly its size.
		panic(err)
	}
	return buf.Bytes()
}
