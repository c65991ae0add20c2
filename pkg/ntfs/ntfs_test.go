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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"velda.io/wslattr/pkg/ea"
)

func TestFileTime(t *testing.T) {
	tests := []struct {
		name string
		ft   FileTime
		sec  int64
		nsec int64
	}{
		{"unix epoch", unixEpochTicks, 0, 0},
		{"one tick", unixEpochTicks + 1, 0, 100},
		{"2020-01-01", 132223104000000000, 1577836800, 0},
		{"before 1970", unixEpochTicks - 1, -1, 999999900},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sec, nsec := tt.ft.Unix()
			assert.Equal(t, tt.sec, sec)
			assert.Equal(t, tt.nsec, nsec)
			assert.Equal(t, tt.ft, FileTimeFromUnix(sec, nsec))
		})
	}
	assert.Equal(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), FileTime(132223104000000000).Time().UTC())
}

func encode(t *testing.T, entries ...ea.Entry) []byte {
	t.Helper()
	b, err := ea.Encode(entries)
	require.NoError(t, err)
	return b
}

func TestMemFileEA(t *testing.T) {
	vol := NewMemVolume()
	vol.Add("/f", &MemNode{EA: encode(t, ea.NewEntry("A", []byte{1}), ea.NewEntry("B", []byte{2}))})

	ro, err := vol.Open("/f", false)
	require.NoError(t, err)
	err = ro.WriteEA(encode(t, ea.NewEntry("A", nil)))
	assert.ErrorIs(t, err, ErrReadOnly)
	require.NoError(t, ro.Close())

	rw, err := vol.Open("/f", true)
	require.NoError(t, err)
	require.NoError(t, rw.WriteEA(encode(t, ea.NewEntry("A", nil), ea.NewEntry("C", []byte{3}))))
	raw, err := rw.ReadEA()
	require.NoError(t, err)
	got, err := ea.Decode(raw)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "B", string(got[0].Name))
	assert.Equal(t, "C", string(got[1].Name))

	require.NoError(t, rw.WriteEA(encode(t, ea.NewEntry("B", nil), ea.NewEntry("C", nil))))
	raw, err = rw.ReadEA()
	require.NoError(t, err)
	assert.Nil(t, raw)
	assert.Equal(t, 2, rw.(*MemFile).EAWrites)
}

func TestMemFileReparse(t *testing.T) {
	vol := NewMemVolume()
	data := []byte{0x1d, 0, 0, 0xa0, 6, 0, 0, 0, 2, 0, 0, 0, 'a', 'b'}
	vol.Add("/l", &MemNode{Reparse: data, Basic: BasicInfo{FileAttributes: FileAttributeReparsePoint}})

	h, err := vol.Open("/l", true)
	require.NoError(t, err)
	tag, ok := h.ReparseTag()
	require.True(t, ok)
	assert.Equal(t, uint32(0xA000001D), tag)

	short := make([]byte, 8)
	n, err := h.QueryReparsePoint(short)
	assert.ErrorIs(t, err, ErrMoreData)
	assert.Equal(t, 8, n)
	assert.Equal(t, data[:8], short)

	full := make([]byte, 64)
	n, err = h.QueryReparsePoint(full)
	require.NoError(t, err)
	assert.Equal(t, data, full[:n])

	other := []byte{0x24, 0, 0, 0x80, 0, 0, 0, 0}
	assert.ErrorIs(t, h.SetReparsePoint(other), ErrTagMismatch)
	assert.ErrorIs(t, h.DeleteReparsePoint(0x80000024), ErrTagMismatch)
	require.NoError(t, h.DeleteReparsePoint(0xA000001D))
	_, ok = h.ReparseTag()
	assert.False(t, ok)
	assert.ErrorIs(t, h.DeleteReparsePoint(0xA000001D), ErrNotReparsePoint)
	require.NoError(t, h.SetReparsePoint(other))

	basic, err := h.BasicInfo()
	require.NoError(t, err)
	assert.NotZero(t, basic.FileAttributes&FileAttributeReparsePoint)
}

func TestMemOpenMissing(t *testing.T) {
	_, err := NewMemVolume().Open("/missing", false)
	assert.True(t, IsNotExist(err))
}

func TestDryRunOpener(t *testing.T) {
	src := NewMemVolume()
	orig := encode(t, ea.NewEntry("A", []byte{1}))
	src.Add("/f", &MemNode{EA: orig, Content: []byte("target")})

	dry := NewDryRunOpener(src)
	h, err := dry.Open("/f", true)
	require.NoError(t, err)
	require.NoError(t, h.WriteEA(encode(t, ea.NewEntry("A", nil))))

	content, err := h.ReadContent(100)
	require.NoError(t, err)
	assert.Equal(t, "target", string(content))
	require.NoError(t, h.WriteContent([]byte("changed")))

	// Reopening sees the dry-run state.
	h2, err := dry.Open("/f", false)
	require.NoError(t, err)
	raw, err := h2.ReadEA()
	require.NoError(t, err)
	assert.Nil(t, raw)

	node, _ := src.Node("/f")
	assert.Equal(t, orig, node.EA)
	assert.Equal(t, "target", string(node.Content))
}
