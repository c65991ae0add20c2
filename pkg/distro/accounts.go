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
package distro

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strconv"
	"strings"

	"github.com/emirpasic/gods/maps/hashbidimap"
)

// Table maps account names to ids and back, as read from /etc/passwd or
// /etc/group. When two names share an id the first one is reported by Name.
type Table struct {
	ids     *hashbidimap.Map
	aliases map[string]uint32
}

func newTable() *Table {
	return &Table{ids: hashbidimap.New(), aliases: make(map[string]uint32)}
}

func (t *Table) add(name string, id uint32) {
	if _, ok := t.ids.Get(name); ok {
		return
	}
	if _, ok := t.ids.GetKey(id); ok {
		t.aliases[name] = id
		return
	}
	t.ids.Put(name, id)
}

// ID returns the id of name.
func (t *Table) ID(name string) (uint32, bool) {
	if v, ok := t.ids.Get(name); ok {
		return v.(uint32), true
	}
	id, ok := t.aliases[name]
	return id, ok
}

// Name returns the name of id.
func (t *Table) Name(id uint32) (string, bool) {
	k, ok := t.ids.GetKey(id)
	if !ok {
		return "", false
	}
	return k.(string), true
}

func (t *Table) Len() int {
	return t.ids.Size() + len(t.aliases)
}

// parse reads colon separated records with the id in the third field.
func (t *Table) parse(r io.Reader) error {
	s := bufio.NewScanner(r)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, ":")
		if len(fields) < 3 || fields[0] == "" {
			continue
		}
		id, err := strconv.ParseUint(fields[2], 10, 32)
		if err != nil {
			continue
		}
		t.add(fields[0], uint32(id))
	}
	return s.Err()
}

// Accounts are the user and group tables of a distro.
type Accounts struct {
	Users  *Table
	Groups *Table
}

// LoadAccounts reads etc/passwd and etc/group from the root of fsys. A
// missing file yields an empty table.
func LoadAccounts(fsys fs.FS) (*Accounts, error) {
	a := &Accounts{Users: newTable(), Groups: newTable()}
	for _, f := range []struct {
		path  string
		table *Table
	}{
		{"etc/passwd", a.Users},
		{"etc/group", a.Groups},
	} {
		r, err := fsys.Open(f.path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		err = f.table.parse(r)
		r.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", f.path, err)
		}
	}
	return a, nil
}

// LookupID parses s as a numeric id or looks it up as a name in t. A nil
// table only accepts numbers.
func LookupID(t *Table, s string) (uint32, error) {
	if id, err := strconv.ParseUint(s, 10, 32); err == nil {
		return uint32(id), nil
	}
	if t == nil {
		return 0, fmt.Errorf("%q is not a number and no distro is loaded to look it up", s)
	}
	id, ok := t.ID(s)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownAccount, s)
	}
	return id, nil
}

var ErrUnknownAccount = errors.New("unknown account")
