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

// Package reparse reads and writes the reparse points WSL uses to mark
// special files. Only LX_SYMLINK carries data:
//
//	ReparseTag        uint32 = 0xA000001D
//	ReparseDataLength uint16 = 4 + len(target)
//	Reserved          uint16
//	Signature         uint32 = 2
//	Target            [ReparseDataLength-4]byte, UTF-8, no terminator
package reparse

import (
	"encoding/binary"
	"errors"
	"fmt"

	"velda.io/wslattr/pkg/ntfs"
	"velda.io/wslattr/pkg/posix"
)

const (
	TagLxSymlink = 0xA000001D
	TagAfUnix    = 0x80000023
	TagLxFifo    = 0x80000024
	TagLxChr     = 0x80000025
	TagLxBlk     = 0x80000026

	SymlinkSignature = 2

	// symlinkHeaderSize is the reparse header plus the signature.
	symlinkHeaderSize = ntfs.ReparseHeaderSize + 4
	// initialBufferSize fits targets up to 52 bytes in a single query.
	initialBufferSize = 64
)

var (
	ErrMalformedReparseData = errors.New("malformed reparse data")
	ErrReparseReadFailed    = errors.New("reading reparse point failed")
)

// Type is the file type a WSL reparse tag stands for.
type Type int

const (
	Unknown Type = iota
	Symlink
	Fifo
	Chr
	Blk
	Socket
)

// FromTag maps a reparse tag to a Type. Tags not owned by WSL are Unknown.
func FromTag(tag uint32) Type {
	switch tag {
	case TagLxSymlink:
		return Symlink
	case TagLxFifo:
		return Fifo
	case TagLxChr:
		return Chr
	case TagLxBlk:
		return Blk
	case TagAfUnix:
		return Socket
	}
	return Unknown
}

// FromMode picks the Type for the file type bits of mode.
func FromMode(mode uint32) Type {
	switch posix.TypeOf(mode) {
	case posix.TypeLink:
		return Symlink
	case posix.TypeFifo:
		return Fifo
	case posix.TypeChr:
		return Chr
	case posix.TypeBlk:
		return Blk
	case posix.TypeSock:
		return Socket
	}
	return Unknown
}

// Tag is the reparse tag for t, or 0 for Unknown.
func (t Type) Tag() uint32 {
	switch t {
	case Symlink:
		return TagLxSymlink
	case Fifo:
		return TagLxFifo
	case Chr:
		return TagLxChr
	case Blk:
		return TagLxBlk
	case Socket:
		return TagAfUnix
	}
	return 0
}

// ModeType is the S_IFMT value of t, or 0 for Unknown.
func (t Type) ModeType() uint32 {
	switch t {
	case Symlink:
		return posix.S_IFLNK
	case Fifo:
		return posix.S_IFIFO
	case Chr:
		return posix.S_IFCHR
	case Blk:
		return posix.S_IFBLK
	case Socket:
		return posix.S_IFSOCK
	}
	return 0
}

func (t Type) String() string {
	switch t {
	case Symlink:
		return "SYMLINK"
	case Fifo:
		return "FIFO"
	case Chr:
		return "CHR"
	case Blk:
		return "BLK"
	case Socket:
		return "AF_UNIX"
	}
	return "UNKNOWN"
}

// ParseSymlink validates an LX_SYMLINK reparse buffer and returns the target.
func ParseSymlink(data []byte) (string, error) {
	if len(data) < symlinkHeaderSize {
		return "", fmt.Errorf("%w: %d bytes is shorter than the symlink header", ErrMalformedReparseData, len(data))
	}
	if tag := binary.LittleEndian.Uint32(data[0:4]); tag != TagLxSymlink {
		return "", fmt.Errorf("%w: tag %#x is not LX_SYMLINK", ErrMalformedReparseData, tag)
	}
	dataLen := int(binary.LittleEndian.Uint16(data[4:6]))
	if dataLen < 4 || ntfs.ReparseHeaderSize+dataLen > len(data) {
		return "", fmt.Errorf("%w: data length %d does not fit %d bytes", ErrMalformedReparseData, dataLen, len(data))
	}
	if sig := binary.LittleEndian.Uint32(data[8:12]); sig != SymlinkSignature {
		return "", fmt.Errorf("%w: symlink signature %#x", ErrMalformedReparseData, sig)
	}
	return string(data[symlinkHeaderSize : ntfs.ReparseHeaderSize+dataLen]), nil
}

// BuildSymlink lays out an LX_SYMLINK reparse buffer for target.
func BuildSymlink(target string) ([]byte, error) {
	dataLen := 4 + len(target)
	if ntfs.ReparseHeaderSize+dataLen > ntfs.MaxReparseSize {
		return nil, fmt.Errorf("symlink target of %d bytes does not fit a reparse point", len(target))
	}
	buf := make([]byte, ntfs.ReparseHeaderSize+dataLen)
	binary.LittleEndian.PutUint32(buf[0:4], TagLxSymlink)
	binary.LittleEndian.PutUint16(buf[4:6], uint16(dataLen))
	binary.LittleEndian.PutUint32(buf[8:12], SymlinkSignature)
	copy(buf[symlinkHeaderSize:], target)
	return buf, nil
}

// BuildEmpty lays out a reparse buffer with no data, as used by the FIFO,
// CHR, BLK and AF_UNIX tags.
func BuildEmpty(tag uint32) []byte {
	buf := make([]byte, ntfs.ReparseHeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], tag)
	return buf
}

// Read returns the raw reparse point of h. The first query uses a small
// buffer; if it is too short the declared data length is read from the
// returned header and the query is retried once with the exact size.
func Read(h ntfs.Handle) ([]byte, error) {
	buf := make([]byte, initialBufferSize)
	n, err := h.QueryReparsePoint(buf)
	if errors.Is(err, ntfs.ErrMoreData) {
		dataLen := int(binary.LittleEndian.Uint16(buf[4:6]))
		buf = make([]byte, ntfs.ReparseHeaderSize+dataLen)
		n, err = h.QueryReparsePoint(buf)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrReparseReadFailed, h.Path(), err)
	}
	return buf[:n], nil
}

// ReadSymlink reads and parses the LX_SYMLINK reparse point of h.
func ReadSymlink(h ntfs.Handle) (string, error) {
	data, err := Read(h)
	if err != nil {
		return "", err
	}
	return ParseSymlink(data)
}

// WriteSymlink stores target as the LX_SYMLINK reparse point of h. A reparse
// point of another tag must have been deleted first.
func WriteSymlink(h ntfs.Handle, target string) error {
	data, err := BuildSymlink(target)
	if err != nil {
		return err
	}
	return h.SetReparsePoint(data)
}

// Delete removes the reparse point of h if it carries tag.
func Delete(h ntfs.Handle, tag uint32) error {
	return h.DeleteReparsePoint(tag)
}

// Replace makes t the reparse point of h, deleting a reparse point of a
// different tag first since a type change cannot be done in one overwrite.
func Replace(h ntfs.Handle, t Type, target string) error {
	if t == Unknown {
		return fmt.Errorf("no reparse tag for file type %s", t)
	}
	if cur, ok := h.ReparseTag(); ok && cur != t.Tag() {
		if err := Delete(h, cur); err != nil {
			return err
		}
	}
	if t == Symlink {
		return WriteSymlink(h, target)
	}
	return h.SetReparsePoint(BuildEmpty(t.Tag()))
}
