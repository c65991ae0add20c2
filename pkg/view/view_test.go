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
package view

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"velda.io/wslattr/pkg/distro"
	"velda.io/wslattr/pkg/ea"
	"velda.io/wslattr/pkg/lxfs"
	"velda.io/wslattr/pkg/metadata"
	"velda.io/wslattr/pkg/ntfs"
	"velda.io/wslattr/pkg/posix"
	"velda.io/wslattr/pkg/wslfile"
	"velda.io/wslattr/pkg/wslfs"
)

func u32(v uint32) []byte {
	return binary.LittleEndian.AppendUint32(nil, v)
}

func dot(v string) []byte {
	return append([]byte{0, 0, 0, 0}, v...)
}

func loadSet(t *testing.T, entries ...ea.Entry) *metadata.Set {
	t.Helper()
	vol := ntfs.NewMemVolume()
	ft := ntfs.FileTimeFromUnix(0, 0)
	node := &ntfs.MemNode{Basic: ntfs.BasicInfo{
		CreationTime:   ft,
		LastAccessTime: ft,
		LastWriteTime:  ft,
		ChangeTime:     ft,
	}}
	if len(entries) > 0 {
		b, err := ea.Encode(entries)
		require.NoError(t, err)
		node.EA = b
	}
	vol.Add("/f", node)
	f, err := wslfile.Open(vol, "/f")
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	s, err := metadata.Load(f)
	require.NoError(t, err)
	return s
}

func accounts(t *testing.T) *distro.Accounts {
	a, err := distro.LoadAccounts(fstest.MapFS{
		"etc/passwd": {Data: []byte("root:x:0:0::/root:/bin/sh\nalice:x:1000:1000::/home/alice:/bin/bash\n")},
		"etc/group":  {Data: []byte("root:x:0:\nstaff:x:50:\n")},
	})
	require.NoError(t, err)
	return a
}

func row(label, value string) string {
	return fmt.Sprintf("%-28s%s\n", label, value)
}

const epoch = "1970-01-01 00:00:00.0000000 UTC"

var timeRows = row("CreationTime:", epoch) + row("LastAccessTime:", epoch) +
	row("LastWriteTime:", epoch) + row("ChangeTime:", epoch)

func TestRenderWslfs(t *testing.T) {
	s := loadSet(t,
		ea.NewEntry(wslfs.EaUID, u32(1000)),
		ea.NewEntry(wslfs.EaGID, u32(50)),
		ea.NewEntry(wslfs.EaMod, u32(posix.S_IFREG|0o644)),
		ea.NewEntry("LX.USER.ZED", dot("z")),
		ea.NewEntry("LX.USER.ALPHA", dot("a\tb")),
	)
	v := Build(s, accounts(t))
	require.NotNil(t, v.Wslfs)
	assert.Nil(t, v.Lxfs)
	assert.Nil(t, v.Wslfs.Dev)

	var buf bytes.Buffer
	require.NoError(t, v.Render(&buf))
	want := timeRows +
		row("$LXUID:", "1000 (alice)") +
		row("$LXGID:", "50 (staff)") +
		row("$LXMOD:", "100644 -rw-r--r--") +
		"Linux extended attributes(LX.*):\n" +
		"  user.alpha                a\\011b\n" +
		"  user.zed                  z\n"
	assert.Equal(t, want, buf.String())
}

func TestRenderLxfs(t *testing.T) {
	r := lxfs.NewAttrb(ntfs.BasicInfo{
		LastAccessTime: ntfs.FileTimeFromUnix(0, 0),
		LastWriteTime:  ntfs.FileTimeFromUnix(0, 0),
		ChangeTime:     ntfs.FileTimeFromUnix(0, 0),
	})
	r.UID = 7
	r.Rdev = posix.MakeDev(8, 1)
	l := &lxfs.XattrList{}
	require.NoError(t, l.Set("user.k", []byte("v")))
	xb, err := l.Encode()
	require.NoError(t, err)
	s := loadSet(t, ea.NewEntry(lxfs.EaAttrb, r.Encode()), ea.NewEntry(lxfs.EaXattr, xb))

	v := Build(s, nil)
	require.NotNil(t, v.Lxfs)
	assert.Nil(t, v.Wslfs)
	assert.Equal(t, Device{Major: 8, Minor: 1}, v.Lxfs.Dev)
	assert.Equal(t, time.Unix(0, 0).UTC(), v.Lxfs.Mtime)

	var buf bytes.Buffer
	require.NoError(t, v.Render(&buf))
	assert.Contains(t, buf.String(), row("LXATTRB:", "Version: 1 Flags: 0"))
	assert.Contains(t, buf.String(), row("  Uid:", "7"))
	assert.Contains(t, buf.String(), row("  Rdev:", "Device type: 8, 1"))
	assert.Contains(t, buf.String(), row("  Mode:", "100644 -rw-r--r--"))
	assert.Contains(t, buf.String(), "Linux extended attributes(LXXATTR):\n  user.k                    v\n")
}

func TestRenderNoEA(t *testing.T) {
	s := loadSet(t)
	v := Build(s, nil)
	var buf bytes.Buffer
	require.NoError(t, v.Render(&buf))
	assert.Equal(t, "no EAs exists\n"+timeRows, buf.String())
}

func TestPrintYaml(t *testing.T) {
	s := loadSet(t, ea.NewEntry(wslfs.EaUID, u32(0)))
	v := Build(s, accounts(t))

	var buf bytes.Buffer
	require.NoError(t, v.Print("yaml", &buf))
	assert.Contains(t, buf.String(), "wslfs:\n  uid:\n    id: 0\n    name: root\n")
	assert.NotContains(t, buf.String(), "lxfs:")
	assert.Error(t, v.Print("xml", &buf))
}
