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

// Package view renders the metadata of one file for people.
package view

import (
	"fmt"
	"io"
	"time"

	"github.com/emirpasic/gods/maps/treemap"

	"velda.io/wslattr/pkg/distro"
	"velda.io/wslattr/pkg/escape"
	"velda.io/wslattr/pkg/metadata"
	"velda.io/wslattr/pkg/posix"
	"velda.io/wslattr/pkg/utils"
	"velda.io/wslattr/pkg/wslfile"
)

// TimeFormat matches FILETIME precision.
const TimeFormat = "2006-01-02 15:04:05.0000000 UTC"

const labelWidth = 28

type Times struct {
	Creation   time.Time `json:"creation" yaml:"creation"`
	LastAccess time.Time `json:"lastAccess" yaml:"lastAccess"`
	LastWrite  time.Time `json:"lastWrite" yaml:"lastWrite"`
	Change     time.Time `json:"change" yaml:"change"`
}

type Account struct {
	ID   uint32 `json:"id" yaml:"id"`
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
}

func (a Account) String() string {
	if a.Name == "" {
		return fmt.Sprint(a.ID)
	}
	return fmt.Sprintf("%d (%s)", a.ID, a.Name)
}

type Mode struct {
	Value uint32 `json:"value" yaml:"value"`
	Perms string `json:"perms" yaml:"perms"`
}

type Device struct {
	Major uint32 `json:"major" yaml:"major"`
	Minor uint32 `json:"minor" yaml:"minor"`
}

// Attr is an extended attribute with its value escaped for display.
type Attr struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// WslfsView holds the wslfs records that are present.
type WslfsView struct {
	ReparseType string   `json:"reparseType,omitempty" yaml:"reparseType,omitempty"`
	Symlink     string   `json:"symlink,omitempty" yaml:"symlink,omitempty"`
	UID         *Account `json:"uid,omitempty" yaml:"uid,omitempty"`
	GID         *Account `json:"gid,omitempty" yaml:"gid,omitempty"`
	Mode        *Mode    `json:"mode,omitempty" yaml:"mode,omitempty"`
	Dev         *Device  `json:"dev,omitempty" yaml:"dev,omitempty"`
	Attrs       []Attr   `json:"attrs,omitempty" yaml:"attrs,omitempty"`
}

// LxfsView holds the LXATTRB record and the LXXATTR list.
type LxfsView struct {
	Version uint16    `json:"version" yaml:"version"`
	Flags   uint16    `json:"flags" yaml:"flags"`
	UID     Account   `json:"uid" yaml:"uid"`
	GID     Account   `json:"gid" yaml:"gid"`
	Mode    Mode      `json:"mode" yaml:"mode"`
	Dev     Device    `json:"dev" yaml:"dev"`
	Atime   time.Time `json:"atime" yaml:"atime"`
	Mtime   time.Time `json:"mtime" yaml:"mtime"`
	Ctime   time.Time `json:"ctime" yaml:"ctime"`
	Symlink string    `json:"symlink,omitempty" yaml:"symlink,omitempty"`
	Attrs   []Attr    `json:"attrs,omitempty" yaml:"attrs,omitempty"`
}

type FileView struct {
	Path   string     `json:"path" yaml:"path"`
	Times  Times      `json:"times" yaml:"times"`
	HasEA  bool       `json:"hasEA" yaml:"hasEA"`
	Distro string     `json:"distro,omitempty" yaml:"distro,omitempty"`
	Wslfs  *WslfsView `json:"wslfs,omitempty" yaml:"wslfs,omitempty"`
	Lxfs   *LxfsView  `json:"lxfs,omitempty" yaml:"lxfs,omitempty"`
}

// Build collects what set holds. accounts may be nil, in which case ids are
// shown without names.
func Build(set *metadata.Set, accounts *distro.Accounts) *FileView {
	basic := set.File.Basic
	v := &FileView{
		Path:  set.File.Path,
		HasEA: set.HasEA,
		Times: Times{
			Creation:   basic.CreationTime.Time().UTC(),
			LastAccess: basic.LastAccessTime.Time().UTC(),
			LastWrite:  basic.LastWriteTime.Time().UTC(),
			Change:     basic.ChangeTime.Time().UTC(),
		},
	}
	var users, groups *distro.Table
	if accounts != nil {
		users, groups = accounts.Users, accounts.Groups
	}
	if ws := set.Wslfs; ws.Maybe() {
		wv := &WslfsView{}
		if t, ok := ws.ReparseType(); ok {
			wv.ReparseType = t.String()
		}
		wv.Symlink, _ = ws.Symlink()
		if id, ok := ws.UID(); ok {
			a := account(users, id)
			wv.UID = &a
		}
		if id, ok := ws.GID(); ok {
			a := account(groups, id)
			wv.GID = &a
		}
		if m, ok := ws.Mode(); ok {
			wv.Mode = &Mode{Value: m, Perms: posix.Perms(m)}
		}
		if d, ok := ws.Dev(); ok {
			wv.Dev = &Device{Major: d.Major, Minor: d.Minor}
		}
		wv.Attrs = sortedAttrs(ws.Xattrs())
		v.Wslfs = wv
	}
	if r, ok := set.Lxfs.Attrb(); ok {
		lv := &LxfsView{
			Version: r.Version,
			Flags:   r.Flags,
			UID:     account(users, r.UID),
			GID:     account(groups, r.GID),
			Mode:    Mode{Value: r.Mode, Perms: posix.Perms(r.Mode)},
			Dev:     Device{Major: posix.Major(r.Rdev), Minor: posix.Minor(r.Rdev)},
			Atime:   time.Unix(int64(r.Atime), int64(r.AtimeNsec)).UTC(),
			Mtime:   time.Unix(int64(r.Mtime), int64(r.MtimeNsec)).UTC(),
			Ctime:   time.Unix(int64(r.Ctime), int64(r.CtimeNsec)).UTC(),
		}
		lv.Symlink, _ = set.Lxfs.Symlink()
		lv.Attrs = sortedAttrs(set.Lxfs.Xattrs())
		v.Lxfs = lv
	}
	return v
}

func account(t *distro.Table, id uint32) Account {
	a := Account{ID: id}
	if t != nil {
		a.Name, _ = t.Name(id)
	}
	return a
}

func sortedAttrs(list []wslfile.Xattr) []Attr {
	m := treemap.NewWithStringComparator()
	for _, x := range list {
		m.Put(x.Name, escape.Octal(x.Value, true))
	}
	var out []Attr
	it := m.Iterator()
	for it.Next() {
		out = append(out, Attr{Name: it.Key().(string), Value: it.Value().(string)})
	}
	return out
}

func formatTime(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}

func line(w io.Writer, label string, format string, args ...any) {
	fmt.Fprintf(w, "%-*s%s\n", labelWidth, label, fmt.Sprintf(format, args...))
}

// Render writes the text form of v.
func (v *FileView) Render(w io.Writer) error {
	ew := &errWriter{w: w}
	if !v.HasEA {
		fmt.Fprintln(ew, "no EAs exists")
	}
	line(ew, "CreationTime:", "%s", formatTime(v.Times.Creation))
	line(ew, "LastAccessTime:", "%s", formatTime(v.Times.LastAccess))
	line(ew, "LastWriteTime:", "%s", formatTime(v.Times.LastWrite))
	line(ew, "ChangeTime:", "%s", formatTime(v.Times.Change))

	if ws := v.Wslfs; ws != nil {
		if ws.ReparseType != "" {
			line(ew, "File Type(Reparse Tag):", "%s", ws.ReparseType)
			if ws.Symlink != "" {
				line(ew, "Symlink:", "-> %s", ws.Symlink)
			}
		}
		if ws.UID != nil {
			line(ew, "$LXUID:", "%s", ws.UID)
		}
		if ws.GID != nil {
			line(ew, "$LXGID:", "%s", ws.GID)
		}
		if ws.Mode != nil {
			line(ew, "$LXMOD:", "%o %s", ws.Mode.Value, ws.Mode.Perms)
		}
		if ws.Dev != nil {
			line(ew, "$LXDEV:", "Device type: %d, %d", ws.Dev.Major, ws.Dev.Minor)
		}
		renderAttrs(ew, "Linux extended attributes(LX.*):", ws.Attrs)
	}

	if lx := v.Lxfs; lx != nil {
		line(ew, "LXATTRB:", "Version: %d Flags: %d", lx.Version, lx.Flags)
		line(ew, "  Uid:", "%s", lx.UID)
		line(ew, "  Gid:", "%s", lx.GID)
		line(ew, "  Mode:", "%o %s", lx.Mode.Value, lx.Mode.Perms)
		line(ew, "  Rdev:", "Device type: %d, %d", lx.Dev.Major, lx.Dev.Minor)
		line(ew, "  Atime:", "%s", formatTime(lx.Atime))
		line(ew, "  Mtime:", "%s", formatTime(lx.Mtime))
		line(ew, "  Ctime:", "%s", formatTime(lx.Ctime))
		if lx.Symlink != "" {
			line(ew, "Symlink:", "-> %s", lx.Symlink)
		}
		renderAttrs(ew, "Linux extended attributes(LXXATTR):", lx.Attrs)
	}
	return ew.err
}

func renderAttrs(w io.Writer, title string, attrs []Attr) {
	if len(attrs) == 0 {
		return
	}
	fmt.Fprintln(w, title)
	for _, a := range attrs {
		fmt.Fprintf(w, "  %-*s%s\n", labelWidth-2, a.Name, a.Value)
	}
}

// Print writes v as text, json or yaml.
func (v *FileView) Print(format string, w io.Writer) error {
	switch format {
	case "", "text":
		return v.Render(w)
	}
	return utils.PrintObject(v, format, w)
}

// errWriter keeps the first write error.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(p []byte) (int, error) {
	if e.err != nil {
		return 0, e.err
	}
	n, err := e.w.Write(p)
	e.err = err
	return n, err
}
