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
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"velda.io/wslattr/pkg/wslfile"
)

// LXXATTR layout:
//
//	Flags   uint16 = 0
//	Version uint16 = 1
//	then records, unaligned:
//	NextEntryOffset uint32, 0 on the last record
//	ValueLength     uint16
//	NameLength      uint8
//	Name            [NameLength]byte
//	Value           [ValueLength]byte
const (
	xattrHeaderSize = 4
	xattrRecordSize = 7
	XattrVersion    = 1
)

var ErrMalformedXattr = errors.New("malformed LXXATTR")

type xattrEntry struct {
	name    string
	value   []byte
	removed bool
}

// XattrList is a decoded LXXATTR value.
type XattrList struct {
	entries []xattrEntry
	changed bool
}

// DecodeXattrList parses an LXXATTR value.
func DecodeXattrList(b []byte) (*XattrList, error) {
	if len(b) < xattrHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the header", ErrMalformedXattr, len(b))
	}
	if v := binary.LittleEndian.Uint16(b[2:4]); v != XattrVersion {
		return nil, fmt.Errorf("%w: version %d", ErrMalformedXattr, v)
	}
	l := &XattrList{}
	size := uint64(len(b))
	off := uint64(xattrHeaderSize)
	if off == size {
		return l, nil
	}
	for {
		if off+xattrRecordSize > size {
			return nil, fmt.Errorf("%w: record at offset %d exceeds %d bytes", ErrMalformedXattr, off, size)
		}
		next := uint64(binary.LittleEndian.Uint32(b[off:]))
		valueLen := uint64(binary.LittleEndian.Uint16(b[off+4:]))
		nameLen := uint64(b[off+6])
		nameStart := off + xattrRecordSize
		end := nameStart + nameLen + valueLen
		if end > size {
			return nil, fmt.Errorf("%w: record at offset %d ends at %d past %d bytes", ErrMalformedXattr, off, end, size)
		}
		l.entries = append(l.entries, xattrEntry{
			name:  string(b[nameStart : nameStart+nameLen]),
			value: bytes.Clone(b[nameStart+nameLen : end]),
		})
		if next == 0 {
			return l, nil
		}
		if next < end-off {
			return nil, fmt.Errorf("%w: record at offset %d overlaps its successor (next %d)", ErrMalformedXattr, off, next)
		}
		off += next
	}
}

// Encode lays out the live entries. Removed entries are dropped.
func (l *XattrList) Encode() ([]byte, error) {
	live := l.live()
	size := xattrHeaderSize
	for _, e := range live {
		size += xattrRecordSize + len(e.name) + len(e.value)
	}
	b := make([]byte, size)
	binary.LittleEndian.PutUint16(b[2:4], XattrVersion)
	off := xattrHeaderSize
	for i, e := range live {
		if len(e.name) == 0 || len(e.name) > 0xff {
			return nil, fmt.Errorf("%w: name %q must be 1 to 255 bytes", wslfile.ErrInvalidName, e.name)
		}
		if len(e.value) > 0xffff {
			return nil, fmt.Errorf("%w: value of %q is %d bytes", ErrMalformedXattr, e.name, len(e.value))
		}
		rec := xattrRecordSize + len(e.name) + len(e.value)
		if i < len(live)-1 {
			binary.LittleEndian.PutUint32(b[off:], uint32(rec))
		}
		binary.LittleEndian.PutUint16(b[off+4:], uint16(len(e.value)))
		b[off+6] = uint8(len(e.name))
		copy(b[off+xattrRecordSize:], e.name)
		copy(b[off+xattrRecordSize+len(e.name):], e.value)
		off += rec
	}
	return b, nil
}

func (l *XattrList) live() []xattrEntry {
	var out []xattrEntry
	for _, e := range l.entries {
		if !e.removed {
			out = append(out, e)
		}
	}
	return out
}

// Len is the number of live entries.
func (l *XattrList) Len() int {
	return len(l.live())
}

// Get returns the value of name.
func (l *XattrList) Get(name string) ([]byte, bool) {
	for _, e := range l.entries {
		if e.name == name && !e.removed {
			return e.value, true
		}
	}
	return nil, false
}

// Set upserts name. Names are compared exactly.
func (l *XattrList) Set(name string, value []byte) error {
	if len(name) == 0 || len(name) > 0xff {
		return fmt.Errorf("%w: name %q must be 1 to 255 bytes", wslfile.ErrInvalidName, name)
	}
	l.changed = true
	for i := range l.entries {
		if l.entries[i].name == name {
			l.entries[i].value = bytes.Clone(value)
			l.entries[i].removed = false
			return nil
		}
	}
	l.entries = append(l.entries, xattrEntry{name: name, value: bytes.Clone(value)})
	return nil
}

// Remove marks name removed; it is dropped by the next Encode.
func (l *XattrList) Remove(name string) bool {
	for i := range l.entries {
		if l.entries[i].name == name && !l.entries[i].removed {
			l.entries[i].removed = true
			l.changed = true
			return true
		}
	}
	return false
}

func (l *XattrList) Xattrs() []wslfile.Xattr {
	var out []wslfile.Xattr
	for _, e := range l.live() {
		out = append(out, wslfile.Xattr{Name: e.name, Value: e.value})
	}
	return out
}
