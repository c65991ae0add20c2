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

// Package distro locates installed WSL distros and maps Linux paths and
// account names onto them.
package distro

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"velda.io/wslattr/pkg/wslfile"
)

var (
	ErrNotFound = errors.New("distro not found")
	// ErrWSL2 is returned when a WSL1 operation targets a WSL2 distro.
	ErrWSL2 = errors.New("distro is WSL2")
	// ErrNoRegistry is returned where the Lxss registry does not exist.
	ErrNoRegistry = errors.New("WSL registry is not available on this platform")
)

// Source records how a distro was chosen.
type Source int

const (
	SourceArg Source = iota
	SourcePath
	SourceCurrentDir
	SourceDefault
)

func (s Source) String() string {
	switch s {
	case SourceArg:
		return "argument"
	case SourcePath:
		return "file path"
	case SourceCurrentDir:
		return "current directory"
	case SourceDefault:
		return "default distro"
	}
	return fmt.Sprintf("Source(%d)", int(s))
}

// Distro is one installed distro.
type Distro struct {
	// ID is the registry key of the distro, empty for configured distros.
	ID       string         `yaml:"id,omitempty" json:"id,omitempty"`
	Name     string         `yaml:"name" json:"name"`
	BasePath string         `yaml:"base_path" json:"base_path"`
	FsType   wslfile.FsType `yaml:"fs_type" json:"fs_type"`
	Source   Source         `yaml:"-" json:"-"`
}

// IsWSL2 reports whether the distro uses neither WSL1 scheme.
func (d *Distro) IsWSL2() bool {
	return d.FsType == wslfile.None
}

// Rootfs is the directory holding the Linux file tree.
func (d *Distro) Rootfs() string {
	return filepath.Join(d.BasePath, "rootfs")
}

// RootfsPath maps an absolute Linux path to the file inside the rootfs.
func (d *Distro) RootfsPath(unixPath string) string {
	rel := strings.TrimLeft(unixPath, "/")
	if rel == "" {
		return d.Rootfs()
	}
	return filepath.Join(d.Rootfs(), filepath.FromSlash(rel))
}

// Contains reports whether the Windows path p lies under the distro's
// base path. Windows paths compare case-insensitively.
func (d *Distro) Contains(p string) bool {
	base := strings.ToLower(strings.TrimRight(normalize(d.BasePath), `\`))
	p = strings.ToLower(normalize(p))
	return base != "" && (p == base || strings.HasPrefix(p, base+`\`))
}

func normalize(p string) string {
	p = strings.ReplaceAll(p, "/", `\`)
	return strings.TrimPrefix(p, `\\?\`)
}
