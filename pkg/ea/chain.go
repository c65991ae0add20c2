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
package ea

// Chain is a decoded EA buffer that can be edited by name.
//
// Removal is two-phase: Remove only empties the value. The entry is written
// with the empty value, which the OS treats as a delete, and Live hides it.
type Chain struct {
	Entries []Entry
}

// ParseChain decodes buf into a Chain.
func ParseChain(buf []byte) (*Chain, error) {
	entries, err := Decode(buf)
	if err != nil {
		return nil, err
	}
	return &Chain{Entries: entries}, nil
}

// Index returns the position of the first entry called name, or -1.
func (c *Chain) Index(name string) int {
	for i := range c.Entries {
		if c.Entries[i].NameIs(name) {
			return i
		}
	}
	return -1
}

// Get returns the first entry called name.
func (c *Chain) Get(name string) (*Entry, bool) {
	i := c.Index(name)
	if i < 0 {
		return nil, false
	}
	return &c.Entries[i], true
}

// Set replaces the value of an existing entry or appends a new one.
func (c *Chain) Set(name string, value []byte) *Entry {
	if e, ok := c.Get(name); ok {
		e.SetValue(value)
		return e
	}
	c.Entries = append(c.Entries, NewEntry(name, value))
	return &c.Entries[len(c.Entries)-1]
}

// Remove marks the entry called name for deletion. It reports whether such
// an entry existed.
func (c *Chain) Remove(name string) bool {
	e, ok := c.Get(name)
	if !ok {
		return false
	}
	e.SetValue(nil)
	return true
}

// Changed returns the entries created or mutated since decode, in order.
func (c *Chain) Changed() []Entry {
	var out []Entry
	for _, e := range c.Entries {
		if e.owned {
			out = append(out, e)
		}
	}
	return out
}

// Live returns the entries that still carry a value.
func (c *Chain) Live() []Entry {
	var out []Entry
	for _, e := range c.Entries {
		if !e.Removed() {
			out = append(out, e)
		}
	}
	return out
}

// Apply merges update into current the way NtSetEaFile does: entries of
// update replace entries of the same name, entries with an empty value
// delete them, and every other entry of current is kept in place. The
// result never holds empty values.
func Apply(current, update []Entry) []Entry {
	out := make([]Entry, 0, len(current)+len(update))
	for _, e := range current {
		if !e.Removed() {
			out = append(out, e)
		}
	}
	for _, u := range update {
		found := -1
		for i := range out {
			if string(out[i].Name) == string(u.Name) {
				found = i
				break
			}
		}
		switch {
		case u.Removed() && found >= 0:
			out = append(out[:found], out[found+1:]...)
		case u.Removed():
		case found >= 0:
			out[found] = u
		default:
			out = append(out, u)
		}
	}
	return out
}
