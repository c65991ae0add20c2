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

// Package ea encodes and decodes NTFS extended attribute chains, the
// FILE_FULL_EA_INFORMATION list returned by NtQueryEaFile and consumed by
// NtSetEaFile.
//
// Each record is laid out as:
//
//	NextEntryOffset uint32
//	Flags           uint8
//	EaNameLength    uint8
//	EaValueLength   uint16
//	EaName          [EaNameLength]byte
//	                0x00
//	EaValue         [EaValueLength]byte
//	                zero padding to a 4 byte boundary
//
// The last record has NextEntryOffset 0.
package ea

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// HeaderSize is the fixed part of a record before the name.
	HeaderSize = 8 // 4 + 1 + 1 + 2
	// Align is the record alignment inside a chain.
	Align = 4

	MaxNameLength  = 0xFF
	MaxValueLength = 0xFFFF

	// FlagNeedEa marks an attribute that must be understood by the reader.
	FlagNeedEa = 0x80
)

var (
	ErrMalformedChain = errors.New("malformed EA chain")
	ErrEntryTooLarge  = errors.New("EA entry too large")
)

// Entry is a single named extended attribute.
//
// Name and Value returned by Decode alias the decoded buffer. They are
// replaced by private copies the first time the entry is mutated, and Owned
// reports whether that has happened.
type Entry struct {
	Flags uint8
	Name  []byte
	Value []byte

	owned bool
}

// NewEntry returns an owned entry holding copies of name and value.
func NewEntry(name string, value []byte) Entry {
	return Entry{
		Name:  []byte(name),
		Value: bytes.Clone(value),
		owned: true,
	}
}

// Owned reports whether the entry was created or mutated in memory rather
// than borrowed from a decoded buffer.
func (e *Entry) Owned() bool {
	return e.owned
}

// SetValue replaces the value with a copy of v.
func (e *Entry) SetValue(v []byte) {
	if !e.owned {
		e.Name = bytes.Clone(e.Name)
		e.owned = true
	}
	if v == nil {
		v = []byte{}
	}
	e.Value = bytes.Clone(v)
}

// Removed reports whether the entry carries the empty value that deletes
// an attribute when written.
func (e *Entry) Removed() bool {
	return len(e.Value) == 0
}

// NameIs compares the on-disk name byte for byte.
func (e *Entry) NameIs(name string) bool {
	return string(e.Name) == name
}

func (e Entry) String() string {
	return fmt.Sprintf("%s[%d]", e.Name, len(e.Value))
}

// recordSize is the unpadded size of a record.
func recordSize(nameLen, valueLen uint64) uint64 {
	return HeaderSize + nameLen + 1 + valueLen
}

func alignUp(n uint64) uint64 {
	return (n + Align - 1) &^ (Align - 1)
}

// Decode parses a chain. An empty buffer holds no entries. Every record must
// lie entirely inside buf; anything else is ErrMalformedChain.
func Decode(buf []byte) ([]Entry, error) {
	if len(buf) == 0 {
		return nil, nil
	}
	var (
		entries []Entry
		off     uint64
		size    = uint64(len(buf))
	)
	for {
		if off+HeaderSize > size {
			return nil, fmt.Errorf("%w: header at offset %d exceeds buffer of %d bytes", ErrMalformedChain, off, size)
		}
		hdr := buf[off : off+HeaderSize]
		next := uint64(binary.LittleEndian.Uint32(hdr[0:4]))
		flags := hdr[4]
		nameLen := uint64(hdr[5])
		valueLen := uint64(binary.LittleEndian.Uint16(hdr[6:8]))

		end := off + recordSize(nameLen, valueLen)
		if end > size {
			return nil, fmt.Errorf("%w: record at offset %d ends at %d past buffer of %d bytes", ErrMalformedChain, off, end, size)
		}
		nameStart := off + HeaderSize
		valueStart := nameStart + nameLen + 1
		entries = append(entries, Entry{
			Flags: flags,
			Name:  buf[nameStart : nameStart+nameLen : nameStart+nameLen],
			Value: buf[valueStart:end:end],
		})

		if next == 0 {
			return entries, nil
		}
		if next < end-off {
			return nil, fmt.Errorf("%w: record at offset %d overlaps its successor (next %d)", ErrMalformedChain, off, next)
		}
		if next%Align != 0 {
			return nil, fmt.Errorf("%w: record at offset %d has unaligned next offset %d", ErrMalformedChain, off, next)
		}
		off += next
	}
}

// EncodedSize returns the number of bytes Encode produces for entries.
func EncodedSize(entries []Entry) int {
	var n uint64
	for i := range entries {
		n += alignUp(recordSize(uint64(len(entries[i].Name)), uint64(len(entries[i].Value))))
	}
	return int(n)
}

// Encode lays entries out back to back, each padded to a 4 byte boundary.
// Empty values are kept: written through NtSetEaFile they delete the
// attribute of that name.
func Encode(entries []Entry) ([]byte, error) {
	buf := make([]byte, EncodedSize(entries))
	var off uint64
	for i := range entries {
		e := &entries[i]
		if len(e.Name) == 0 {
			return nil, fmt.Errorf("%w: entry %d has an empty name", ErrEntryTooLarge, i)
		}
		if len(e.Name) > MaxNameLength {
			return nil, fmt.Errorf("%w: name %q is %d bytes, max %d", ErrEntryTooLarge, e.Name, len(e.Name), MaxNameLength)
		}
		if len(e.Value) > MaxValueLength {
			return nil, fmt.Errorf("%w: value of %q is %d bytes, max %d", ErrEntryTooLarge, e.Name, len(e.Value), MaxValueLength)
		}
		size := alignUp(recordSize(uint64(len(e.Name)), uint64(len(e.Value))))
		rec := buf[off : off+size]
		if i < len(entries)-1 {
			binary.LittleEndian.PutUint32(rec[0:4], uint32(size))
		}
		rec[4] = e.Flags
		rec[5] = uint8(len(e.Name))
		binary.LittleEndian.PutUint16(rec[6:8], uint16(len(e.Value)))
		n := copy(rec[HeaderSize:], e.Name)
		copy(rec[HeaderSize+n+1:], e.Value)
		off += size
	}
	return buf, nil
}
