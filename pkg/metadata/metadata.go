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

// Package metadata loads both attribute schemes of a file from a single EA
// read and picks the one that applies.
package metadata

import (
	"velda.io/wslattr/pkg/ea"
	"velda.io/wslattr/pkg/lxfs"
	"velda.io/wslattr/pkg/wslfile"
	"velda.io/wslattr/pkg/wslfs"
)

// Set is everything read from one file.
type Set struct {
	File  *wslfile.File
	Chain *ea.Chain
	// HasEA is false when the file carries no EAs at all.
	HasEA bool

	Lxfs  *lxfs.Attributes
	Wslfs *wslfs.Attributes
}

// Load reads the EA chain of f once and interprets it as both schemes.
func Load(f *wslfile.File) (*Set, error) {
	raw, err := f.Handle.ReadEA()
	if err != nil {
		return nil, err
	}
	// Each scheme gets its own decode; wslfs edits its chain in place.
	lxChain, err := ea.ParseChain(raw)
	if err != nil {
		return nil, err
	}
	wsChain, err := ea.ParseChain(raw)
	if err != nil {
		return nil, err
	}
	s := &Set{File: f, Chain: lxChain, HasEA: len(raw) > 0}
	if s.Lxfs, err = lxfs.Load(lxChain, f.Basic, f.Handle); err != nil {
		return nil, err
	}
	tag, ok := f.ReparseTag()
	if s.Wslfs, err = wslfs.Load(wsChain, tag, ok, f.Handle); err != nil {
		return nil, err
	}
	return s, nil
}

// Claims reports which schemes claim the file.
func (s *Set) Claims() (lx bool, ws bool) {
	return s.Lxfs.Maybe(), s.Wslfs.Maybe()
}

// Select returns the scheme to edit. An explicit override wins. Otherwise
// the single claiming scheme is used; both claiming is ErrAmbiguousScheme
// and neither is ErrUnsupportedSchemeless.
func (s *Set) Select(override wslfile.FsType) (wslfile.Attributes, error) {
	switch override {
	case wslfile.Lxfs:
		return s.Lxfs, nil
	case wslfile.Wslfs:
		return s.Wslfs, nil
	}
	lx, ws := s.Claims()
	switch {
	case lx && ws:
		return nil, wslfile.ErrAmbiguousScheme
	case ws:
		return s.Wslfs, nil
	case lx:
		return s.Lxfs, nil
	}
	return nil, wslfile.ErrUnsupportedSchemeless
}
