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
package wslfs

import (
	"encoding/binary"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"velda.io/wslattr/pkg/ea"
	"velda.io/wslattr/pkg/ntfs"
	"velda.io/wslattr/pkg/posix"
	"velda.io/wslattr/pkg/reparse"
	"velda.io/wslattr/pkg/wslfile"
)

func u32(v uint32) []byte {
	return binary.LittleEndian.AppendUint32(nil, v)
}

func mustEncode(t *testing.T, entries ...ea.Entry) []byte {
	t.Helper()
	b, err := ea.Encode(entries)
	require.NoError(t, err)
	return b
}

func openFile(t *testing.T, vol *ntfs.MemVolume, path string) (*wslfile.File, *Attributes) {
	t.Helper()
	f, err := wslfile.Open(vol, path)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	a, err := LoadFile(f)
	require.NoError(t, err)
	return f, a
}

func TestLoadScalars(t *testing.T) {
	vol := ntfs.NewMemVolume()
	vol.Add("/f", &ntfs.MemNode{EA: mustEncode(t,
		ea.NewEntry(EaUID, u32(1000)),
		ea.NewEntry(EaGID, u32(100)),
		ea.NewEntry(EaMod, u32(0o100755)),
		ea.NewEntry(EaDev, append(u32(37), u32(13)...)),
		ea.NewEntry("LX.user.Test", []byte{9, 9, 9, 9, 'h', 'i'}),
	)})
	_, a := openFile(t, vol, "/f")
	require.True(t, a.Maybe())

	uid, ok := a.UID()
	assert.True(t, ok)
	assert.EqualValues(t, 1000, uid)
	gid, _ := a.GID()
	assert.EqualValues(t, 100, gid)
	mode, _ := a.Mode()
	assert.EqualValues(t, 0o100755, mode)
	d, ok := a.Dev()
	assert.True(t, ok)
	assert.Equal(t, Dev{Major: 37, Minor: 13}, d)

	dots := a.DotEntries()
	require.Len(t, dots, 1)
	assert.Equal(t, "LX.user.Test", dots[0].EaName)
	assert.Equal(t, "user.test", dots[0].Name)
	assert.Equal(t, []byte("hi"), dots[0].Value)
}

func TestLoadMalformed(t *testing.T) {
	for name, entry := range map[string]ea.Entry{
		"short uid":    ea.NewEntry(EaUID, []byte{1, 2}),
		"short dev":    ea.NewEntry(EaDev, u32(1)),
		"short marker": ea.NewEntry("LX.X", []byte{1, 2}),
	} {
		t.Run(name, func(t *testing.T) {
			vol := ntfs.NewMemVolume()
			vol.Add("/f", &ntfs.MemNode{EA: mustEncode(t, entry)})
			f, err := wslfile.Open(vol, "/f")
			require.NoError(t, err)
			defer f.Close()
			_, err = LoadFile(f)
			assert.ErrorIs(t, err, wslfile.ErrMalformedAttribute)
		})
	}
}

func TestMaybe(t *testing.T) {
	cases := []struct {
		name string
		node *ntfs.MemNode
		want bool
	}{
		{"empty", &ntfs.MemNode{}, false},
		{"lxfs only", &ntfs.MemNode{EA: mustEncode(t, ea.NewEntry("LXATTRB", make([]byte, 56)))}, false},
		{"scalar", &ntfs.MemNode{EA: mustEncode(t, ea.NewEntry(EaGID, u32(0)))}, true},
		{"dot", &ntfs.MemNode{EA: mustEncode(t, ea.NewEntry("LX.A", make([]byte, 4)))}, true},
		{"fifo", &ntfs.MemNode{Reparse: reparse.BuildEmpty(reparse.TagLxFifo)}, true},
		{"foreign tag", &ntfs.MemNode{Reparse: reparse.BuildEmpty(0x80000017)}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			vol := ntfs.NewMemVolume()
			vol.Add("/f", c.node)
			_, a := openFile(t, vol, "/f")
			assert.Equal(t, c.want, a.Maybe())
		})
	}
}

func TestSetAttr(t *testing.T) {
	vol := ntfs.NewMemVolume()
	node := vol.Add("/f", &ntfs.MemNode{EA: mustEncode(t,
		ea.NewEntry(EaUID, u32(0)),
		ea.NewEntry("LX.USER.KEEP", []byte{7, 0, 0, 0, 'a'}),
	)})

	f, a := openFile(t, vol, "/f")
	require.NoError(t, a.SetAttr("user.keep", []byte("b")))
	require.NoError(t, a.SetAttr("user.new", []byte("c")))
	assert.ErrorIs(t, a.SetAttr("", []byte("x")), wslfile.ErrInvalidName)
	assert.ErrorIs(t, a.SetAttr(strings.Repeat("n", 253), nil), wslfile.ErrInvalidName)
	a.SetUID(1000)
	require.Len(t, a.Entries(), 3)
	require.NoError(t, a.Save(f))
	assert.Empty(t, a.Entries(), "nothing is pending after save")

	chain, err := ea.ParseChain(node.EA)
	require.NoError(t, err)
	e, ok := chain.Get("LX.USER.KEEP")
	require.True(t, ok)
	assert.Equal(t, []byte{7, 0, 0, 0, 'b'}, e.Value, "the marker is kept")
	e, ok = chain.Get("LX.USER.NEW")
	require.True(t, ok)
	assert.Equal(t, []byte{0, 0, 0, 0, 'c'}, e.Value)

	f, a = openFile(t, vol, "/f")
	assert.Equal(t, []wslfile.Xattr{
		{Name: "user.keep", Value: []byte("b")},
		{Name: "user.new", Value: []byte("c")},
	}, a.Xattrs())
	assert.True(t, a.RmAttr("User.Keep"))
	assert.False(t, a.RmAttr("user.missing"))
	require.NoError(t, a.Save(f))

	chain, err = ea.ParseChain(node.EA)
	require.NoError(t, err)
	_, ok = chain.Get("LX.USER.KEEP")
	assert.False(t, ok)
	uid, _ := a.UID()
	assert.EqualValues(t, 1000, uid)
}

func TestSetDev(t *testing.T) {
	vol := ntfs.NewMemVolume()
	vol.Add("/dev/sda", &ntfs.MemNode{})
	f, a := openFile(t, vol, "/dev/sda")
	assert.False(t, a.Maybe())
	a.SetDevMajor(8)
	a.SetDevMinor(0)
	a.SetMode(posix.S_IFBLK | 0o660)
	require.NoError(t, a.Save(f))

	_, a = openFile(t, vol, "/dev/sda")
	major, _ := a.DevMajor()
	assert.EqualValues(t, 8, major)
	assert.True(t, a.Maybe())
}

func TestSetSymlink(t *testing.T) {
	vol := ntfs.NewMemVolume()
	node := vol.Add("/link", &ntfs.MemNode{
		Reparse: reparse.BuildEmpty(reparse.TagLxFifo),
		EA:      mustEncode(t, ea.NewEntry(EaMod, u32(posix.S_IFIFO|0o644))),
	})

	f, a := openFile(t, vol, "/link")
	require.NoError(t, a.SetSymlink(f, "/etc/alternatives/editor"))
	require.NoError(t, a.Save(f))

	tag, ok := reparseTag(node)
	require.True(t, ok)
	assert.EqualValues(t, reparse.TagLxSymlink, tag)

	_, a = openFile(t, vol, "/link")
	target, ok := a.Symlink()
	require.True(t, ok)
	assert.Equal(t, "/etc/alternatives/editor", target)
	mode, _ := a.Mode()
	assert.EqualValues(t, posix.S_IFLNK|0o777, mode)
	typ, _ := a.ReparseType()
	assert.Equal(t, reparse.Symlink, typ)
}

func reparseTag(n *ntfs.MemNode) (uint32, bool) {
	if len(n.Reparse) < 4 {
		return 0, false
	}
	return binary.LittleEndian.Uint32(n.Reparse), true
}

func TestEaName(t *testing.T) {
	assert.Equal(t, "LX.SECURITY.CAPABILITY", EaName("security.capability"))
}
