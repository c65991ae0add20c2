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

//go:build linux

package ntfs

import (
	"encoding/binary"
	"errors"
	"io"
	"io/fs"
	"os"

	"golang.org/x/sys/unix"

	"velda.io/wslattr/pkg/ea"
)

// ntfs-3g exposes raw NTFS metadata through these extended attributes.
const (
	xattrEA      = "system.ntfs_ea"
	xattrReparse = "system.ntfs_reparse_data"
	xattrTimes   = "system.ntfs_times"
	xattrAttrib  = "system.ntfs_attrib"
)

type ntfs3gOpener struct{}

// NewOpener returns a backend for NTFS volumes mounted with ntfs-3g.
func NewOpener() Opener {
	return ntfs3gOpener{}
}

func (ntfs3gOpener) Open(path string, writable bool) (Handle, error) {
	if _, err := os.Lstat(path); err != nil {
		return nil, &OpError{Op: "open", Path: path, Err: err}
	}
	f := &ntfs3gFile{path: path, writable: writable}
	data, err := f.getxattr(xattrReparse)
	if err != nil {
		return nil, &OpError{Op: "getxattr " + xattrReparse, Path: path, Err: err}
	}
	if len(data) >= 4 {
		f.tag, f.hasTag = binary.LittleEndian.Uint32(data), true
	}
	return f, nil
}

type ntfs3gFile struct {
	path     string
	writable bool
	tag      uint32
	hasTag   bool
}

func (f *ntfs3gFile) Path() string   { return f.path }
func (f *ntfs3gFile) Writable() bool { return f.writable }

func (f *ntfs3gFile) writeCheck(op string) error {
	if !f.writable {
		return &OpError{Op: op, Path: f.path, Err: ErrReadOnly}
	}
	return nil
}

// getxattr returns nil when the attribute is absent.
func (f *ntfs3gFile) getxattr(name string) ([]byte, error) {
	for {
		sz, err := unix.Lgetxattr(f.path, name, nil)
		if errors.Is(err, unix.ENODATA) {
			return nil, nil
		}
		if errors.Is(err, unix.ENOTSUP) {
			return nil, ErrUnsupported
		}
		if err != nil {
			return nil, err
		}
		if sz == 0 {
			return nil, nil
		}
		buf := make([]byte, sz)
		n, err := unix.Lgetxattr(f.path, name, buf)
		if errors.Is(err, unix.ERANGE) {
			// Grew between the two calls.
			continue
		}
		if err != nil {
			return nil, err
		}
		return buf[:n], nil
	}
}

func (f *ntfs3gFile) ReadEA() ([]byte, error) {
	data, err := f.getxattr(xattrEA)
	if err != nil {
		return nil, &OpError{Op: "getxattr " + xattrEA, Path: f.path, Err: err}
	}
	return data, nil
}

// WriteEA merges chain into the current set since ntfs-3g replaces the
// whole EA stream at once.
func (f *ntfs3gFile) WriteEA(chain []byte) error {
	if err := f.writeCheck("setxattr " + xattrEA); err != nil {
		return err
	}
	update, err := ea.Decode(chain)
	if err != nil {
		return &OpError{Op: "setxattr " + xattrEA, Path: f.path, Err: err}
	}
	cur, err := f.ReadEA()
	if err != nil {
		return err
	}
	current, err := ea.Decode(cur)
	if err != nil {
		return &OpError{Op: "setxattr " + xattrEA, Path: f.path, Err: err}
	}
	merged := ea.Apply(current, update)
	if len(merged) == 0 {
		err := unix.Lremovexattr(f.path, xattrEA)
		if err != nil && !errors.Is(err, unix.ENODATA) {
			return &OpError{Op: "removexattr " + xattrEA, Path: f.path, Err: err}
		}
		return nil
	}
	buf, err := ea.Encode(merged)
	if err != nil {
		return &OpError{Op: "setxattr " + xattrEA, Path: f.path, Err: err}
	}
	if err := unix.Lsetxattr(f.path, xattrEA, buf, 0); err != nil {
		return &OpError{Op: "setxattr " + xattrEA, Path: f.path, Err: err}
	}
	return nil
}

func (f *ntfs3gFile) ReparseTag() (uint32, bool) {
	return f.tag, f.hasTag
}

func (f *ntfs3gFile) QueryReparsePoint(buf []byte) (int, error) {
	data, err := f.getxattr(xattrReparse)
	if err != nil {
		return 0, &OpError{Op: "getxattr " + xattrReparse, Path: f.path, Err: err}
	}
	if len(data) == 0 {
		return 0, &OpError{Op: "getxattr " + xattrReparse, Path: f.path, Err: ErrNotReparsePoint}
	}
	n := copy(buf, data)
	if n < len(data) {
		return n, ErrMoreData
	}
	return n, nil
}

func (f *ntfs3gFile) SetReparsePoint(data []byte) error {
	if err := f.writeCheck("setxattr " + xattrReparse); err != nil {
		return err
	}
	if len(data) < ReparseHeaderSize {
		return &OpError{Op: "setxattr " + xattrReparse, Path: f.path, Err: fs.ErrInvalid}
	}
	if err := unix.Lsetxattr(f.path, xattrReparse, data, 0); err != nil {
		return &OpError{Op: "setxattr " + xattrReparse, Path: f.path, Err: err}
	}
	f.tag, f.hasTag = binary.LittleEndian.Uint32(data), true
	return nil
}

func (f *ntfs3gFile) DeleteReparsePoint(tag uint32) error {
	if err := f.writeCheck("removexattr " + xattrReparse); err != nil {
		return err
	}
	if !f.hasTag {
		return &OpError{Op: "removexattr " + xattrReparse, Path: f.path, Err: ErrNotReparsePoint}
	}
	if f.tag != tag {
		return &OpError{Op: "removexattr " + xattrReparse, Path: f.path, Err: ErrTagMismatch}
	}
	if err := unix.Lremovexattr(f.path, xattrReparse); err != nil {
		return &OpError{Op: "removexattr " + xattrReparse, Path: f.path, Err: err}
	}
	f.tag, f.hasTag = 0, false
	return nil
}

func (f *ntfs3gFile) BasicInfo() (BasicInfo, error) {
	times, err := f.getxattr(xattrTimes)
	if err != nil {
		return BasicInfo{}, &OpError{Op: "getxattr " + xattrTimes, Path: f.path, Err: err}
	}
	var b BasicInfo
	// create, last write, last access, change; older ntfs-3g omit change.
	if len(times) >= 24 {
		b.CreationTime = FileTime(binary.LittleEndian.Uint64(times[0:]))
		b.LastWriteTime = FileTime(binary.LittleEndian.Uint64(times[8:]))
		b.LastAccessTime = FileTime(binary.LittleEndian.Uint64(times[16:]))
	}
	if len(times) >= 32 {
		b.ChangeTime = FileTime(binary.LittleEndian.Uint64(times[24:]))
	} else {
		b.ChangeTime = b.LastWriteTime
	}
	attrib, err := f.getxattr(xattrAttrib)
	if err != nil {
		return BasicInfo{}, &OpError{Op: "getxattr " + xattrAttrib, Path: f.path, Err: err}
	}
	if len(attrib) >= 4 {
		b.FileAttributes = binary.LittleEndian.Uint32(attrib)
	}
	return b, nil
}

func (f *ntfs3gFile) ReadContent(limit int) ([]byte, error) {
	fh, err := os.OpenFile(f.path, os.O_RDONLY|unix.O_NOFOLLOW, 0)
	if err != nil {
		return nil, &OpError{Op: "read", Path: f.path, Err: err}
	}
	defer fh.Close()
	data, err := io.ReadAll(io.LimitReader(fh, int64(limit)))
	if err != nil {
		return nil, &OpError{Op: "read", Path: f.path, Err: err}
	}
	return data, nil
}

func (f *ntfs3gFile) WriteContent(data []byte) error {
	if err := f.writeCheck("write"); err != nil {
		return err
	}
	fh, err := os.OpenFile(f.path, os.O_WRONLY|os.O_TRUNC|unix.O_NOFOLLOW, 0)
	if err != nil {
		return &OpError{Op: "write", Path: f.path, Err: err}
	}
	if _, err := fh.Write(data); err != nil {
		fh.Close()
		return &OpError{Op: "write", Path: f.path, Err: err}
	}
	if err := fh.Close(); err != nil {
		return &OpError{Op: "write", Path: f.path, Err: err}
	}
	return nil
}

func (f *ntfs3gFile) Close() error {
	return nil
}
