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
package migrate

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"velda.io/wslattr/pkg/ea"
	"velda.io/wslattr/pkg/lxfs"
	"velda.io/wslattr/pkg/metadata"
	"velda.io/wslattr/pkg/ntfs"
	"velda.io/wslattr/pkg/posix"
	"velda.io/wslattr/pkg/reparse"
	"velda.io/wslattr/pkg/wslfile"
	"velda.io/wslattr/pkg/wslfs"
)

var testBasic = ntfs.BasicInfo{
	CreationTime:   ntfs.FileTimeFromUnix(1600000000, 0),
	LastAccessTime: ntfs.FileTimeFromUnix(1700000001, 100),
	LastWriteTime:  ntfs.FileTimeFromUnix(1700000002, 200),
	ChangeTime:     ntfs.FileTimeFromUnix(1700000003, 300),
}

func u32(v uint32) []byte {
	return binary.LittleEndian.AppendUint32(nil, v)
}

func dev(major, minor uint32) []byte {
	return binary.LittleEndian.AppendUint32(u32(major), minor)
}

func dot(value string) []byte {
	return append([]byte{1, 0, 0, 0}, value...)
}

func encodeEA(t *testing.T, entries ...ea.Entry) []byte {
	t.Helper()
	buf, err := ea.Encode(entries)
	require.NoError(t, err)
	return buf
}

func readChain(t *testing.T, vol *ntfs.MemVolume, path string) *ea.Chain {
	t.Helper()
	node, ok := vol.Node(path)
	require.True(t, ok)
	chain, err := ea.ParseChain(node.EA)
	require.NoError(t, err)
	return chain
}

func loadLxfs(t *testing.T, vol *ntfs.MemVolume, path string) *lxfs.Attributes {
	t.Helper()
	f, err := wslfile.Open(vol, path)
	require.NoError(t, err)
	defer f.Close()
	set, err := metadata.Load(f)
	require.NoError(t, err)
	assert.False(t, set.Wslfs.Maybe(), "wslfs must not claim a migrated file")
	require.True(t, set.Lxfs.Maybe())
	return set.Lxfs
}

func TestMigrateFidelity(t *testing.T) {
	vol := ntfs.NewMemVolume()
	vol.Add("/r/file", &ntfs.MemNode{
		Basic: testBasic,
		EA: encodeEA(t,
			ea.NewEntry(wslfs.EaUID, u32(1000)),
			ea.NewEntry(wslfs.EaGID, u32(100)),
			ea.NewEntry(wslfs.EaMod, u32(0o100755)),
			ea.NewEntry(wslfs.EaDev, dev(0, 0)),
			ea.NewEntry("LX.user.test", dot("hello")),
			ea.NewEntry("UNRELATED", []byte("keep")),
		),
	})

	outcome, err := Path(vol, "/r/file")
	require.NoError(t, err)
	assert.Equal(t, Migrated, outcome)

	chain := readChain(t, vol, "/r/file")
	for _, name := range append(wslfs.ScalarNames, "LX.user.test") {
		_, ok := chain.Get(name)
		assert.False(t, ok, "%s should be gone", name)
	}
	e, ok := chain.Get("UNRELATED")
	require.True(t, ok)
	assert.Equal(t, []byte("keep"), e.Value)

	e, ok = chain.Get(lxfs.EaAttrb)
	require.True(t, ok)
	attrb, err := lxfs.DecodeAttrb(e.Value)
	require.NoError(t, err)
	assert.EqualValues(t, 1000, attrb.UID)
	assert.EqualValues(t, 100, attrb.GID)
	assert.EqualValues(t, 0o100755, attrb.Mode)
	assert.EqualValues(t, 0, attrb.Rdev)
	assert.EqualValues(t, 1700000001, attrb.Atime)
	assert.EqualValues(t, 100, attrb.AtimeNsec)
	assert.EqualValues(t, 1700000002, attrb.Mtime)
	assert.EqualValues(t, 1700000003, attrb.Ctime)

	e, ok = chain.Get(lxfs.EaXattr)
	require.True(t, ok)
	list, err := lxfs.DecodeXattrList(e.Value)
	require.NoError(t, err)
	assert.Equal(t, 1, list.Len())
	v, ok := list.Get("user.test")
	require.True(t, ok)
	assert.Equal(t, []byte("hello"), v)
}

func TestMigrateIdempotent(t *testing.T) {
	vol := ntfs.NewMemVolume()
	vol.Add("/r/file", &ntfs.MemNode{
		Basic: testBasic,
		EA:    encodeEA(t, ea.NewEntry(wslfs.EaUID, u32(1000)), ea.NewEntry(wslfs.EaMod, u32(0o100644))),
	})

	outcome, err := Path(vol, "/r/file")
	require.NoError(t, err)
	require.Equal(t, Migrated, outcome)

	node, _ := vol.Node("/r/file")
	first := bytes.Clone(node.EA)
	for i := 0; i < 2; i++ {
		outcome, err = Path(vol, "/r/file")
		require.NoError(t, err)
		assert.Equal(t, AlreadyMigrated, outcome)
		assert.Equal(t, first, node.EA, "an lxfs file must not be rewritten")
	}
}

func TestMigrateNoLxxattrWithoutAttributes(t *testing.T) {
	vol := ntfs.NewMemVolume()
	vol.Add("/r/file", &ntfs.MemNode{Basic: testBasic, EA: encodeEA(t, ea.NewEntry(wslfs.EaUID, u32(5)))})

	_, err := Path(vol, "/r/file")
	require.NoError(t, err)
	chain := readChain(t, vol, "/r/file")
	_, ok := chain.Get(lxfs.EaXattr)
	assert.False(t, ok)
	assert.Len(t, chain.Entries, 1)
}

func TestMigrateSymlink(t *testing.T) {
	const target = "../lib/x86_64-linux-gnu/libc.so.6"
	data, err := reparse.BuildSymlink(target)
	require.NoError(t, err)

	vol := ntfs.NewMemVolume()
	vol.Add("/r/link", &ntfs.MemNode{
		Basic:   ntfs.BasicInfo{FileAttributes: ntfs.FileAttributeReparsePoint},
		Reparse: data,
		EA:      encodeEA(t, ea.NewEntry(wslfs.EaMod, u32(posix.S_IFLNK|0o777))),
	})

	outcome, err := Path(vol, "/r/link")
	require.NoError(t, err)
	assert.Equal(t, Migrated, outcome)

	node, _ := vol.Node("/r/link")
	assert.Nil(t, node.Reparse)
	assert.Zero(t, node.Basic.FileAttributes&ntfs.FileAttributeReparsePoint)
	assert.Equal(t, []byte(target), node.Content)

	a := loadLxfs(t, vol, "/r/link")
	got, ok := a.Symlink()
	require.True(t, ok)
	assert.Equal(t, target, got)
}

func TestMigrateDevice(t *testing.T) {
	vol := ntfs.NewMemVolume()
	vol.Add("/r/sda1", &ntfs.MemNode{
		Reparse: reparse.BuildEmpty(reparse.TagLxBlk),
		EA: encodeEA(t,
			ea.NewEntry(wslfs.EaMod, u32(posix.S_IFBLK|0o660)),
			ea.NewEntry(wslfs.EaDev, dev(8, 1)),
		),
	})

	_, err := Path(vol, "/r/sda1")
	require.NoError(t, err)
	node, _ := vol.Node("/r/sda1")
	assert.Nil(t, node.Reparse)

	a := loadLxfs(t, vol, "/r/sda1")
	major, _ := a.DevMajor()
	minor, _ := a.DevMinor()
	assert.EqualValues(t, 8, major)
	assert.EqualValues(t, 1, minor)
}

func TestMigrateKeepsForeignReparsePoint(t *testing.T) {
	foreign := reparse.BuildEmpty(0x8000001B)
	vol := ntfs.NewMemVolume()
	vol.Add("/r/app", &ntfs.MemNode{Reparse: foreign, EA: encodeEA(t, ea.NewEntry(wslfs.EaUID, u32(1)))})

	_, err := Path(vol, "/r/app")
	require.NoError(t, err)
	node, _ := vol.Node("/r/app")
	assert.Equal(t, foreign, node.Reparse)
}

func TestMigrateRefusesAmbiguous(t *testing.T) {
	vol := ntfs.NewMemVolume()
	orig := encodeEA(t,
		ea.NewEntry(lxfs.EaAttrb, lxfs.NewAttrb(testBasic).Encode()),
		ea.NewEntry(wslfs.EaUID, u32(1000)),
	)
	vol.Add("/r/both", &ntfs.MemNode{EA: bytes.Clone(orig)})

	outcome, err := Path(vol, "/r/both")
	assert.Equal(t, Refused, outcome)
	assert.ErrorIs(t, err, wslfile.ErrAmbiguousScheme)
	assert.True(t, IsRefusal(err))
	node, _ := vol.Node("/r/both")
	assert.Equal(t, orig, node.EA)
}

func TestEvaluate(t *testing.T) {
	cases := []struct {
		name    string
		entries []ea.Entry
		want    State
	}{
		{"none", nil, NeedsConversion},
		{"wslfs", []ea.Entry{ea.NewEntry(wslfs.EaGID, u32(1))}, NeedsConversion},
		{"lxfs", []ea.Entry{ea.NewEntry(lxfs.EaAttrb, lxfs.NewAttrb(testBasic).Encode())}, AlreadyCompact},
		{"both", []ea.Entry{
			ea.NewEntry(lxfs.EaAttrb, lxfs.NewAttrb(testBasic).Encode()),
			ea.NewEntry("LX.SECURITY.CAPABILITY", dot("x")),
		}, Ambiguous},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			vol := ntfs.NewMemVolume()
			node := &ntfs.MemNode{}
			if len(c.entries) > 0 {
				node.EA = encodeEA(t, c.entries...)
			}
			vol.Add("/f", node)
			f, err := wslfile.Open(vol, "/f")
			require.NoError(t, err)
			defer f.Close()
			set, err := metadata.Load(f)
			require.NoError(t, err)
			assert.Equal(t, c.want, Evaluate(set))
		})
	}
}

func TestMigrateMissingFile(t *testing.T) {
	outcome, err := Path(ntfs.NewMemVolume(), "/nope")
	assert.Equal(t, Failed, outcome)
	assert.True(t, ntfs.IsNotExist(err))
}
