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

// Package wslfile opens a file of a WSL1 distro and defines the interface
// shared by the two on-disk attribute schemes.
package wslfile

import (
	"velda.io/wslattr/pkg/ea"
	"velda.io/wslattr/pkg/ntfs"
)

// File is an open file together with the metadata captured at open time.
// It starts read-only; ReopenToWrite swaps the handle for a writable one.
type File struct {
	Path   string
	Handle ntfs.Handle
	Basic  ntfs.BasicInfo

	opener ntfs.Opener
}

// Open opens path read-only and queries its basic information.
func Open(opener ntfs.Opener, path string) (*File, error) {
	h, err := opener.Open(path, false)
	if err != nil {
		return nil, err
	}
	basic, err := h.BasicInfo()
	if err != nil {
		h.Close()
		return nil, err
	}
	return &File{Path: path, Handle: h, Basic: basic, opener: opener}, nil
}

func (f *File) Writable() bool {
	return f.Handle.Writable()
}

// ReparseTag is the reparse tag of the file, if any.
func (f *File) ReparseTag() (uint32, bool) {
	return f.Handle.ReparseTag()
}

// ReopenToWrite closes the read handle and opens the path again for
// writing. It is a no-op on a writable file.
func (f *File) ReopenToWrite() error {
	if f.Writable() {
		return nil
	}
	h, err := f.opener.Open(f.Path, true)
	if err != nil {
		return err
	}
	f.Handle.Close()
	f.Handle = h
	return nil
}

// ReadEA reads and decodes the EA chain. A file without EAs yields an
// empty chain.
func (f *File) ReadEA() (*ea.Chain, error) {
	raw, err := f.Handle.ReadEA()
	if err != nil {
		return nil, err
	}
	return ea.ParseChain(raw)
}

// WriteEA writes entries in one call, reopening for write if needed.
func (f *File) WriteEA(entries []ea.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	buf, err := ea.Encode(entries)
	if err != nil {
		return err
	}
	if err := f.ReopenToWrite(); err != nil {
		return err
	}
	return f.Handle.WriteEA(buf)
}

func (f *File) Close() error {
	return f.Handle.Close()
}
