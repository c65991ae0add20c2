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
package metadata

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"velda.io/wslattr/pkg/ea"
	"velda.io/wslattr/pkg/lxfs"
	"velda.io/wslattr/pkg/ntfs"
	"velda.io/wslattr/pkg/wslfile"
	"velda.io/wslattr/pkg/wslfs"
)

func load(t *testing.T, entries ...ea.Entry) *Set {
	t.Helper()
	vol := ntfs.NewMemVolume()
	node := &ntfs.MemNode{}
	if len(entries) > 0 {
		b, err := ea.Encode(entries)
		require.NoError(t, err)
		node.EA = b
	}
	vol.Add("/f", node)
	f, err := wslfile.Open(vol, "/f")
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	s, err := Load(f)
	require.NoError(t, err)
	return s
}

var (
	attrb = ea.NewEntry(lxfs.EaAttrb, lxfs.NewAttrb(ntfs.BasicInfo{}).Encode())
	uid   = ea.NewEntry(wslfs.EaUID, binary.LittleEndian.AppendUint32(nil, 1000))
)

func TestSchemeExclusivity(t *testing.T) {
	s := load(t, attrb)
	lx, ws := s.Claims()
	assert.True(t, lx)
	assert.False(t, ws)
	a, err := s.Select(wslfile.None)
	require.NoError(t, err)
	assert.Equal(t, wslfile.Lxfs, a.FsType())

	s = load(t, uid)
	lx, ws = s.Claims()
	assert.False(t, lx)
	assert.True(t, ws)
	a, err = s.Select(wslfile.None)
	require.NoError(t, err)
	assert.Equal(t, wslfile.Wslfs, a.FsType())
	assert.True(t, s.HasEA)
}

func TestSelectAmbiguous(t *testing.T) {
	s := load(t, attrb, uid)
	lx, ws := s.Claims()
	assert.True(t, lx && ws)
	_, err := s.Select(wslfile.None)
	assert.ErrorIs(t, err, wslfile.ErrAmbiguousScheme)

	a, err := s.Select(wslfile.Wslfs)
	require.NoError(t, err, "an explicit scheme resolves the ambiguity")
	assert.Equal(t, wslfile.Wslfs, a.FsType())
}

func TestSelectSchemeless(t *testing.T) {
	s := load(t)
	assert.False(t, s.HasEA)
	_, err := s.Select(wslfile.None)
	assert.ErrorIs(t, err, wslfile.ErrUnsupportedSchemeless)

	a, err := s.Select(wslfile.Lxfs)
	require.NoError(t, err)
	a.SetUID(7)
	require.NoError(t, a.Save(s.File))
	assert.True(t, s.Lxfs.Maybe(), "the first edit creates the record")
}

func TestLoadMalformedChain(t *testing.T) {
	vol := ntfs.NewMemVolume()
	vol.Add("/f", &ntfs.MemNode{EA: []byte{8, 0, 0, 0, 0, 9, 0}})
	f, err := wslfile.Open(vol, "/f")
	require.NoError(t, err)
	defer f.Close()
	_, err = Load(f)
	assert.ErrorIs(t, err, ea.ErrMalformedChain)
}
