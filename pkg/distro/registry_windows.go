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

//go:build windows

package distro

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sys/windows/registry"

	"velda.io/wslattr/pkg/wslfile"
)

const (
	lxssKey = `SOFTWARE\Microsoft\Windows\CurrentVersion\Lxss`
	// flagWSL2 is set in Flags for distros running under the WSL2 VM.
	flagWSL2 = 0x08
)

// lxssRegistry reads HKCU\...\Lxss, one subkey per distro named by GUID.
type lxssRegistry struct{}

// NewRegistry returns the Lxss registry of the current user.
func NewRegistry() Registry {
	return lxssRegistry{}
}

func openLxss(access uint32) (registry.Key, error) {
	k, err := registry.OpenKey(registry.CURRENT_USER, lxssKey, access)
	if errors.Is(err, registry.ErrNotExist) {
		return k, fmt.Errorf("%w: no WSL distro is installed", ErrNotFound)
	}
	return k, err
}

func loadKey(parent registry.Key, id string) (*Distro, error) {
	k, err := registry.OpenKey(parent, id, registry.QUERY_VALUE)
	if err != nil {
		return nil, err
	}
	defer k.Close()
	name, _, err := k.GetStringValue("DistributionName")
	if err != nil {
		return nil, fmt.Errorf("distro %s: DistributionName: %w", id, err)
	}
	base, _, err := k.GetStringValue("BasePath")
	if err != nil {
		return nil, fmt.Errorf("distro %s: BasePath: %w", id, err)
	}
	d := &Distro{ID: id, Name: name, BasePath: strings.TrimPrefix(base, `\\?\`)}
	flags, _, err := k.GetIntegerValue("Flags")
	if err == nil && flags&flagWSL2 != 0 {
		return d, nil
	}
	if version, _, err := k.GetIntegerValue("Version"); err == nil {
		d.FsType = wslfile.FsTypeFromVersion(uint32(version))
	}
	return d, nil
}

func (lxssRegistry) List() ([]Distro, error) {
	k, err := openLxss(registry.ENUMERATE_SUB_KEYS | registry.QUERY_VALUE)
	if err != nil {
		return nil, err
	}
	defer k.Close()
	ids, err := k.ReadSubKeyNames(-1)
	if err != nil {
		return nil, err
	}
	var out []Distro
	for _, id := range ids {
		d, err := loadKey(k, id)
		if err != nil {
			// Not a distro, e.g. AppxInstallerCache.
			continue
		}
		out = append(out, *d)
	}
	return out, nil
}

func (lxssRegistry) Default() (*Distro, error) {
	k, err := openLxss(registry.QUERY_VALUE)
	if err != nil {
		return nil, err
	}
	defer k.Close()
	id, _, err := k.GetStringValue("DefaultDistribution")
	if err != nil {
		return nil, fmt.Errorf("%w: DefaultDistribution: %w", ErrNotFound, err)
	}
	return loadKey(k, id)
}

func (r lxssRegistry) SetFsType(name string, t wslfile.FsType) error {
	d, err := Lookup(r, name)
	if err != nil {
		return err
	}
	if t == wslfile.None {
		return fmt.Errorf("cannot convert %s to WSL2 by setting its Version", name)
	}
	k, err := registry.OpenKey(registry.CURRENT_USER, lxssKey+`\`+d.ID, registry.SET_VALUE)
	if err != nil {
		return err
	}
	defer k.Close()
	return k.SetDWordValue("Version", t.Version())
}
