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
package ntfs

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io/fs"
	"path/filepath"
	"sync"

	"velda.io/wslattr/pkg/ea"
)

// MaxReparseSize is MAXIMUM_REPARSE_DATA_BUFFER_SIZE.
const MaxReparseSize = 16 * 1024

// MemNode is the NTFS metadata of one in-memory file.
type MemNode struct {
	EA      []byte
	Reparse []byte
	Basic   BasicInfo
	Content []byte

	// contentFrom lazily supplies Content for snapshots of real files.
	contentFrom func(limit int) ([]byte, error)
}

// MemVolume is an in-memory set of files keyed by path. It implements
// Opener with the same semantics as the OS backends.
type MemVolume struct {
	mu    sync.Mutex
	nodes map[string]*MemNode
}

func NewMemVolume() *MemVolume {
	return &MemVolume{nodes: make(map[string]*MemNode)}
}

// Add stores node at path, replacing any previous file.
func (v *MemVolume) Add(path string, node *MemNode) *MemNode {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.nodes[filepath.Clean(path)] = node
	return node
}

// Node returns the file at path.
func (v *MemVolume) Node(path string) (*MemNode, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	n, ok := v.nodes[filepath.Clean(path)]
	return n, ok
}

func (v *MemVolume) Open(path string, writable bool) (Handle, error) {
	n, ok := v.Node(path)
	if !ok {
		return nil, &OpError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}
	return &MemFile{vol: v, node: n, path: path, writable: writable}, nil
}

// MemFile is a handle on a MemNode. The counters record how the handle was
// used.
type MemFile struct {
	vol      *MemVolume
	node     *MemNode
	path     string
	writable bool
	closed   bool

	ReparseQueries int
	EAWrites       int
}

func (f *MemFile) Path() string   { return f.path }
func (f *MemFile) Writable() bool { return f.writable }

func (f *MemFile) check(op string, write bool) error {
	if f.closed {
		return &OpError{Op: op, Path: f.path, Err: fs.ErrClosed}
	}
	if write && !f.writable {
		return &OpError{Op: op, Path: f.path, Err: ErrReadOnly}
	}
	return nil
}

func (f *MemFile) ReadEA() ([]byte, error) {
	if err := f.check("read EA", false); err != nil {
		return nil, err
	}
	f.vol.mu.Lock()
	defer f.vol.mu.Unlock()
	if len(f.node.EA) == 0 {
		return nil, nil
	}
	return bytes.Clone(f.node.EA), nil
}

func (f *MemFile) WriteEA(chain []byte) error {
	if err := f.check("write EA", true); err != nil {
		return err
	}
	update, err := ea.Decode(chain)
	if err != nil {
		return &OpError{Op: "write EA", Path: f.path, Err: err}
	}
	f.vol.mu.Lock()
	defer f.vol.mu.Unlock()
	current, err := ea.Decode(f.node.EA)
	if err != nil {
		return &OpError{Op: "write EA", Path: f.path, Err: err}
	}
	merged := ea.Apply(current, update)
	f.EAWrites++
	if len(merged) == 0 {
		f.node.EA = nil
		return nil
	}
	buf, err := ea.Encode(merged)
	if err != nil {
		return &OpError{Op: "write EA", Path: f.path, Err: err}
	}
	f.node.EA = buf
	return nil
}

func (f *MemFile) ReparseTag() (uint32, bool) {
	f.vol.mu.Lock()
	defer f.vol.mu.Unlock()
	return reparseTag(f.node.Reparse)
}

func reparseTag(data []byte) (uint32, bool) {
	if len(data) < 4 {
		return 0, false
	}
	return binary.LittleEndian.Uint32(data), true
}

func (f *MemFile) QueryReparsePoint(buf []byte) (int, error) {
	if err := f.check("query reparse point", false); err != nil {
		return 0, err
	}
	f.vol.mu.Lock()
	defer f.vol.mu.Unlock()
	f.ReparseQueries++
	data := f.node.Reparse
	if len(data) == 0 {
		return 0, &OpError{Op: "query reparse point", Path: f.path, Err: ErrNotReparsePoint}
	}
	n := copy(buf, data)
	if n < len(data) {
		return n, ErrMoreData
	}
	return n, nil
}

func (f *MemFile) SetReparsePoint(data []byte) error {
	if err := f.check("set reparse point", true); err != nil {
		return err
	}
	tag, ok := reparseTag(data)
	if !ok || len(data) < ReparseHeaderSize || len(data) > MaxReparseSize {
		return &OpError{Op: "set reparse point", Path: f.path, Err: fs.ErrInvalid}
	}
	f.vol.mu.Lock()
	defer f.vol.mu.Unlock()
	if cur, ok := reparseTag(f.node.Reparse); ok && cur != tag {
		return &OpError{Op: "set reparse point", Path: f.path, Err: ErrTagMismatch}
	}
	f.node.Reparse = bytes.Clone(data)
	f.node.Basic.FileAttributes |= FileAttributeReparsePoint
	return nil
}

func (f *MemFile) DeleteReparsePoint(tag uint32) error {
	if err := f.check("delete reparse point", true); err != nil {
		return err
	}
	f.vol.mu.Lock()
	defer f.vol.mu.Unlock()
	cur, ok := reparseTag(f.node.Reparse)
	if !ok {
		return &OpError{Op: "delete reparse point", Path: f.path, Err: ErrNotReparsePoint}
	}
	if cur != tag {
		return &OpError{Op: "delete reparse point", Path: f.path, Err: ErrTagMismatch}
	}
	f.node.Reparse = nil
	f.node.Basic.FileAttributes &^= FileAttributeReparsePoint
	return nil
}

func (f *MemFile) BasicInfo() (BasicInfo, error) {
	if err := f.check("query basic info", false); err != nil {
		return BasicInfo{}, err
	}
	f.vol.mu.Lock()
	defer f.vol.mu.Unlock()
	return f.node.Basic, nil
}

func (f *MemFile) ReadContent(limit int) ([]byte, error) {
	if err := f.check("read", false); err != nil {
		return nil, err
	}
	f.vol.mu.Lock()
	defer f.vol.mu.Unlock()
	if f.node.Content == nil && f.node.contentFrom != nil {
		data, err := f.node.contentFrom(limit)
		if err != nil {
			return nil, err
		}
		return data, nil
	}
	data := f.node.Content
	if len(data) > limit {
		data = data[:limit]
	}
	return bytes.Clone(data), nil
}

func (f *MemFile) WriteContent(data []byte) error {
	if err := f.check("write", true); err != nil {
		return err
	}
	f.vol.mu.Lock()
	defer f.vol.mu.Unlock()
	f.node.Content = bytes.Clone(data)
	if f.node.Content == nil {
		f.node.Content = []byte{}
	}
	f.node.contentFrom = nil
	return nil
}

func (f *MemFile) Close() error {
	f.closed = true
	return nil
}

// Snapshot copies the metadata of h into a MemNode. File content is not
// copied; it is read from the path through src when first needed.
func Snapshot(src Opener, h Handle) (*MemNode, error) {
	node := &MemNode{}
	var err error
	if node.EA, err = h.ReadEA(); err != nil {
		return nil, err
	}
	if _, ok := h.ReparseTag(); ok {
		buf := make([]byte, MaxReparseSize)
		n, err := h.QueryReparsePoint(buf)
		if err != nil {
			return nil, err
		}
		node.Reparse = buf[:n]
	}
	if node.Basic, err = h.BasicInfo(); err != nil {
		return nil, err
	}
	path := h.Path()
	node.contentFrom = func(limit int) ([]byte, error) {
		r, err := src.Open(path, false)
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return r.ReadContent(limit)
	}
	return node, nil
}

// DryRunOpener serves files from an in-memory copy of Source. Writes land in
// the copy and never reach Source.
type DryRunOpener struct {
	Source Opener
	vol    *MemVolume
}

func NewDryRunOpener(source Opener) *DryRunOpener {
	return &DryRunOpener{Source: source, vol: NewMemVolume()}
}

func (d *DryRunOpener) Open(path string, writable bool) (Handle, error) {
	if _, ok := d.vol.Node(path); !ok {
		h, err := d.Source.Open(path, false)
		if err != nil {
			return nil, err
		}
		node, err := Snapshot(d.Source, h)
		h.Close()
		if err != nil {
			return nil, err
		}
		d.vol.Add(path, node)
	}
	return d.vol.Open(path, writable)
}

// Volume exposes the copy, mostly for reporting what a dry run changed.
func (d *DryRunOpener) Volume() *MemVolume {
	return d.vol
}

// IsNotExist reports whether err means the file is missing.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
