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
	"encoding/binary"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"velda.io/wslattr/pkg/ea"
	"velda.io/wslattr/pkg/ntfs"
	"velda.io/wslattr/pkg/posix"
	"velda.io/wslattr/pkg/wslfile"
)

func TestAttrbLayout(t *testing.T) {
	a := Attrb{
		Version:   AttrbVersion,
		Mode:      0o100755,
		UID:       1000,
		GID:       100,
		Rdev:      posix.MakeDev(37, 13),
		AtimeNsec: 1,
		MtimeNsec: 2,
		CtimeNsec: 3,
		Atime:     0x1111,
		Mtime:     0x2222,
		Ctime:     0x3333,
	}
	b := a.Encode()
	require.Len(t, b, AttrbSize)
	le := binary.LittleEndian
	assert.EqualValues(t, 0, le.Uint16(b[0:]))
	assert.EqualValues(t, 1, le.Uint16(b[2:]))
	assert.EqualValues(t, 0o100755, le.Uint32(b[4:]))
	assert.EqualValues(t, 1000, le.Uint32(b[8:]))
	assert.EqualValues(t, 100, le.Uint32(b[12:]))
	assert.EqualValues(t, 0x250d, le.Uint32(b[16:]))
	assert.EqualValues(t, 1, le.Uint32(b[20:]))
	assert.EqualValues(t, 2, le.Uint32(b[24:]))
	assert.EqualValues(t, 3, le.Uint32(b[28:]))
	assert.EqualValues(t, 0x1111, le.Uint64(b[32:]))
	assert.EqualValues(t, 0x2222, le.Uint64(b[40:]))
	assert.EqualValues(t, 0x3333, le.Uint64(b[48:]))

	got, err := DecodeAttrb(b)
	require.NoError(t, err)
	assert.Equal(t, a, got)
}

func TestDecodeAttrbRejects(t *testing.T) {
	_, err := DecodeAttrb(make([]byte, AttrbSize-1))
	assert.ErrorIs(t, err, wslfile.ErrMalformedAttribute)

	b := Attrb{Version: 2}.Encode()
	_, err = DecodeAttrb(b)
	assert.ErrorIs(t, err, wslfile.ErrMalformedAttribute)
}

func TestNewAttrb(t *testing.T) {
	basic := ntfs.BasicInfo{
		LastAccessTime: ntfs.FileTimeFromUnix(1700000000, 500),
		LastWriteTime:  ntfs.FileTimeFromUnix(1700000001, 0),
		ChangeTime:     ntfs.FileTimeFromUnix(1700000002, 0),
	}
	a := NewAttrb(basic)
	assert.EqualValues(t, posix.DefaultFileMode, a.Mode)
	assert.EqualValues(t, 1700000000, a.Atime)
	assert.EqualValues(t, 500, a.AtimeNsec)
	assert.EqualValues(t, 1700000001, a.Mtime)
	assert.EqualValues(t, 1700000002, a.Ctime)

	basic.FileAttributes = ntfs.FileAttributeDirectory
	assert.EqualValues(t, posix.DefaultDirMode, NewAttrb(basic).Mode)
}

func TestXattrListLayout(t *testing.T) {
	l := &XattrList{}
	require.NoError(t, l.Set("user.a", []byte("xy")))
	require.NoError(t, l.Set("b", []byte{}))
	b, err := l.Encode()
	require.NoError(t, err)

	want := []byte{
		0, 0, 1, 0,
		15, 0, 0, 0, 2, 0, 6, 'u', 's', 'e', 'r', '.', 'a', 'x', 'y',
		0, 0, 0, 0, 0, 0, 1, 'b',
	}
	if diff := cmp.Diff(want, b); diff != "" {
		t.Errorf("LXXATTR layout mismatch (-want +got):\n%s", diff)
	}

	got, err := DecodeXattrList(b)
	require.NoError(t, err)
	assert.Equal(t, l.Xattrs(), got.Xattrs())
}

func TestXattrListEmpty(t *testing.T) {
	l, err := DecodeXattrList([]byte{0, 0, 1, 0})
	require.NoError(t, err)
	assert.Zero(t, l.Len())

	_, err = DecodeXattrList([]byte{0, 0, 2, 0})
	assert.ErrorIs(t, err, ErrMalformedXattr)
	_, err = DecodeXattrList([]byte{0, 0})
	assert.ErrorIs(t, err, ErrMalformedXattr)
}

func TestXattrListTruncated(t *testing.T) {
	l := &XattrList{}
	require.NoError(t, l.Set("security.capability", []byte{1, 2, 3, 4, 5}))
	require.NoError(t, l.Set("user.comment", []byte("hi")))
	b, err := l.Encode()
	require.NoError(t, err)
	for n := xattrHeaderSize + 1; n < len(b); n++ {
		_, err := DecodeXattrList(b[:n])
		assert.ErrorIs(t, err, ErrMalformedXattr, "prefix of %d bytes", n)
	}
}

func TestXattrListEdit(t *testing.T) {
	l := &XattrList{}
	assert.ErrorIs(t, l.Set("", []byte("x")), wslfile.ErrInvalidName)
	require.NoError(t, l.Set("user.x", []byte("1")))
	require.NoError(t, l.Set("USER.X", []byte("2")))
	assert.Equal(t, 2, l.Len(), "names are case sensitive")

	assert.True(t, l.Remove("user.x"))
	assert.False(t, l.Remove("user.x"))
	_, ok := l.Get("user.x")
	assert.False(t, ok)

	b, err := l.Encode()
	require.NoError(t, err)
	got, err := DecodeXattrList(b)
	require.NoError(t, err)
	assert.Equal(t, []wslfile.Xattr{{Name: "USER.X", Value: []byte("2")}}, got.Xattrs())
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

func TestAttributesEdit(t *testing.T) {
	vol := ntfs.NewMemVolume()
	node := vol.Add("/f", &ntfs.MemNode{EA: mustEncode(t, ea.NewEntry("OTHER", []byte("o")))})

	f, a := openFile(t, vol, "/f")
	assert.False(t, a.Maybe())
	_, ok := a.UID()
	assert.False(t, ok)

	a.SetUID(1000)
	a.SetGID(100)
	require.NoError(t, a.SetAttr("user.test", []byte("hello")))
	require.NoError(t, a.Save(f))
	assert.True(t, a.Maybe())

	_, a = openFile(t, vol, "/f")
	uid, _ := a.UID()
	gid, _ := a.GID()
	mode, _ := a.Mode()
	assert.EqualValues(t, 1000, uid)
	assert.EqualValues(t, 100, gid)
	assert.EqualValues(t, posix.DefaultFileMode, mode)
	assert.Equal(t, []wslfile.Xattr{{Name: "user.test", Value: []byte("hello")}}, a.Xattrs())

	chain, err := ea.ParseChain(node.EA)
	require.NoError(t, err)
	_, ok = chain.Get("OTHER")
	assert.True(t, ok, "unrelated EAs survive")

	f, a = openFile(t, vol, "/f")
	assert.True(t, a.RmAttr("user.test"))
	require.NoError(t, a.Save(f))
	chain, err = ea.ParseChain(node.EA)
	require.NoError(t, err)
	_, ok = chain.Get(EaXattr)
	assert.False(t, ok, "an emptied list is deleted")
}

func TestAttributesDevice(t *testing.T) {
	vol := ntfs.NewMemVolume()
	vol.Add("/dev/tty", &ntfs.MemNode{})
	f, a := openFile(t, vol, "/dev/tty")
	a.SetMode(posix.S_IFCHR | 0o620)
	a.SetDevMajor(4)
	a.SetDevMinor(300)
	require.NoError(t, a.Save(f))

	_, a = openFile(t, vol, "/dev/tty")
	major, _ := a.DevMajor()
	minor, _ := a.DevMinor()
	assert.EqualValues(t, 4, major)
	assert.EqualValues(t, 300, minor)
}

func TestAttributesSymlink(t *testing.T) {
	vol := ntfs.NewMemVolume()
	node := vol.Add("/lib", &ntfs.MemNode{Content: []byte("old")})
	f, a := openFile(t, vol, "/lib")
	_, ok := a.Symlink()
	assert.False(t, ok)

	require.NoError(t, a.SetSymlink(f, "usr/lib"))
	require.NoError(t, a.Save(f))
	assert.Equal(t, []byte("usr/lib"), node.Content)

	_, a = openFile(t, vol, "/lib")
	target, ok := a.Symlink()
	require.True(t, ok)
	assert.Equal(t, "usr/lib", target)
	mode, _ := a.Mode()
	assert.EqualValues(t, posix.S_IFLNK|0o777, mode)
}

func TestLoadMalformed(t *testing.T) {
	vol := ntfs.NewMemVolume()
	vol.Add("/bad", &ntfs.MemNode{EA: mustEncode(t, ea.NewEntry(EaAttrb, []byte{1, 2, 3}))})
	f, err := wslfile.Open(vol, "/bad")
	require.NoError(t, err)
	defer f.Close()
	_, err = LoadFile(f)
	assert.ErrorIs(t, err, wslfile.ErrMalformedAttribute)
}

func mustEncode(t *testing.T, entries ...ea.Entry) []byte {
	t.Helper()
	b, err := ea.Encode(entries)
	require.NoError(t, err)
	return b
}
