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

// Package ntfs is the file level I/O used by the attribute codecs: the raw
// EA buffer, the reparse point, the basic timestamps and the file content of
// a single NTFS file.
package ntfs

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrMoreData is returned by QueryReparsePoint when the buffer could not
	// hold the whole reparse point. The fixed header has been filled in.
	ErrMoreData = errors.New("reparse buffer too small")
	// ErrUnsupported is returned by backends that cannot reach NTFS metadata.
	ErrUnsupported = errors.New("NTFS metadata is not supported on this platform")
	// ErrReadOnly is returned by mutating calls on a handle opened for reading.
	ErrReadOnly = errors.New("file handle is read-only")
	// ErrNotReparsePoint is returned when a file carries no reparse point.
	ErrNotReparsePoint = errors.New("file is not a reparse point")
	// ErrTagMismatch is returned when deleting a reparse point of another tag.
	ErrTagMismatch = errors.New("reparse tag mismatch")
)

const (
	FileAttributeDirectory    = 0x10
	FileAttributeReparsePoint = 0x400

	// ReparseHeaderSize is tag u32, data length u16, reserved u16.
	ReparseHeaderSize = 8
)

// OpError records the failing call, the file and the OS status.
type OpError struct {
	Op   string
	Path string
	Err  error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// FileTime is a Windows FILETIME: 100ns ticks since 1601-01-01 UTC.
type FileTime uint64

// Ticks between 1601-01-01 and 1970-01-01.
const unixEpochTicks = 116444736000000000

// Unix returns seconds and nanoseconds since the Unix epoch.
func (t FileTime) Unix() (sec int64, nsec int64) {
	d := int64(t) - unixEpochTicks
	sec = d / 10000000
	nsec = (d % 10000000) * 100
	if nsec < 0 {
		sec--
		nsec += int64(time.Second)
	}
	return sec, nsec
}

func (t FileTime) Time() time.Time {
	return time.Unix(t.Unix())
}

// FileTimeFromUnix converts Unix seconds and nanoseconds into a FileTime.
func FileTimeFromUnix(sec int64, nsec int64) FileTime {
	return FileTime(sec*10000000 + nsec/100 + unixEpochTicks)
}

// BasicInfo is FILE_BASIC_INFO.
type BasicInfo struct {
	CreationTime   FileTime
	LastAccessTime FileTime
	LastWriteTime  FileTime
	ChangeTime     FileTime
	FileAttributes uint32
}

func (b BasicInfo) IsDir() bool {
	return b.FileAttributes&FileAttributeDirectory != 0
}

// Handle is one open file. Reads and writes are never mixed on the same
// handle: mutating calls fail with ErrReadOnly unless the handle was opened
// writable.
type Handle interface {
	Path() string
	Writable() bool

	// ReadEA returns the full EA chain, or nil when the file has none.
	ReadEA() ([]byte, error)
	// WriteEA upserts every entry of chain by name. Entries with an empty
	// value are deleted. Entries not in chain are left untouched.
	WriteEA(chain []byte) error

	// ReparseTag returns the reparse tag, if the file is a reparse point.
	ReparseTag() (uint32, bool)
	// QueryReparsePoint copies the reparse point into buf and returns its
	// size. A short buffer yields ErrMoreData with the header copied.
	QueryReparsePoint(buf []byte) (int, error)
	SetReparsePoint(data []byte) error
	// DeleteReparsePoint removes the reparse point if it has the given tag.
	DeleteReparsePoint(tag uint32) error

	BasicInfo() (BasicInfo, error)

	// ReadContent reads at most limit bytes from the start of the file.
	ReadContent(limit int) ([]byte, error)
	// WriteContent replaces the file content with data.
	WriteContent(data []byte) error

	Close() error
}

// Opener opens files for the codecs. The same path is opened twice when a
// read is followed by a write.
type Opener interface {
	Open(path string, writable bool) (Handle, error)
}
