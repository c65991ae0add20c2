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
	"errors"
	"fmt"
	"log"
	"os"

	"velda.io/wslattr/pkg/wslfile"
)

// Registry lists installed distros.
type Registry interface {
	List() ([]Distro, error)
	// Default returns the distro started by a bare `wsl`.
	Default() (*Distro, error)
	// SetFsType records the attribute scheme of the distro called name.
	SetFsType(name string, t wslfile.FsType) error
}

// Lookup finds the distro called name.
func Lookup(r Registry, name string) (*Distro, error) {
	list, err := r.List()
	if err != nil {
		return nil, err
	}
	for i := range list {
		if list[i].Name == name {
			return &list[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
}

// Multi consults several registries in order. The first registry that knows
// a name wins.
type Multi []Registry

func (m Multi) List() ([]Distro, error) {
	var out []Distro
	seen := make(map[string]bool)
	var errs []error
	for _, r := range m {
		list, err := r.List()
		if err != nil {
			if !errors.Is(err, ErrNoRegistry) {
				errs = append(errs, err)
			}
			continue
		}
		for _, d := range list {
			if !seen[d.Name] {
				seen[d.Name] = true
				out = append(out, d)
			}
		}
	}
	if len(out) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

func (m Multi) Default() (*Distro, error) {
	var errs []error
	for _, r := range m {
		d, err := r.Default()
		if err == nil {
			return d, nil
		}
		errs = append(errs, err)
	}
	return nil, fmt.Errorf("%w: no default distro: %w", ErrNotFound, errors.Join(errs...))
}

func (m Multi) SetFsType(name string, t wslfile.FsType) error {
	for _, r := range m {
		if _, err := Lookup(r, name); err != nil {
			continue
		}
		return r.SetFsType(name, t)
	}
	return fmt.Errorf("%w: %s", ErrNotFound, name)
}

// Resolve picks the distro a command applies to, trying in order the name
// given on the command line, the distro holding path, the WSL UNC current
// directory and the default distro. WSL2 distros found on the way are
// skipped, except a named one which is an error. A nil result means no
// distro applies.
func Resolve(r Registry, name, path string) (*Distro, error) {
	if name != "" {
		d, err := Lookup(r, name)
		if err != nil {
			return nil, err
		}
		if d.IsWSL2() {
			return nil, fmt.Errorf("%w: %s", ErrWSL2, d.Name)
		}
		d.Source = SourceArg
		return d, nil
	}

	accept := func(d *Distro, src Source) *Distro {
		if d == nil {
			return nil
		}
		if d.IsWSL2() {
			log.Printf("distro %s from %s is WSL2, ignoring it", d.Name, src)
			return nil
		}
		d.Source = src
		return d
	}

	if path != "" && !IsUnixAbsolute(path) {
		if d := accept(byPath(r, path), SourcePath); d != nil {
			return d, nil
		}
	}
	if cwd, err := os.Getwd(); err == nil {
		if unc, _, ok := ParseUNC(cwd); ok {
			d, _ := Lookup(r, unc)
			if d := accept(d, SourceCurrentDir); d != nil {
				return d, nil
			}
		}
	}
	d, err := r.Default()
	if err != nil {
		return nil, nil
	}
	return accept(d, SourceDefault), nil
}

func byPath(r Registry, path string) *Distro {
	if name, _, ok := ParseUNC(path); ok {
		d, _ := Lookup(r, name)
		return d
	}
	list, err := r.List()
	if err != nil {
		return nil
	}
	for i := range list {
		if list[i].Contains(path) {
			return &list[i]
		}
	}
	return nil
}
