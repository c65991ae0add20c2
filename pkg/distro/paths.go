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
	"path/filepath"
	"runtime"
	"strings"
)

var (
	// ErrDistroRequired is returned for a Linux path when no distro is known.
	ErrDistroRequired  = errors.New("a distro is required to resolve a Linux path")
	ErrUnsupportedPath = errors.New("unsupported path")
)

// IsUnixAbsolute reports whether p is a Linux absolute path like /usr/bin.
func IsUnixAbsolute(p string) bool {
	return strings.HasPrefix(p, "/")
}

// IsDrivePath reports whether p starts with a drive letter like C:\.
func IsDrivePath(p string) bool {
	if len(p) < 3 || p[1] != ':' || (p[2] != '\\' && p[2] != '/') {
		return false
	}
	c := p[0] | 0x20
	return c >= 'a' && c <= 'z'
}

// isWSLServer matches the host part of \\wsl$\<distro> and
// \\wsl.localhost\<distro>.
func isWSLServer(s string) bool {
	return strings.EqualFold(s, "wsl$") || strings.EqualFold(s, "wsl.localhost")
}

// ParseUNC splits a WSL UNC path into the distro name and the Linux path
// inside it. Both \\server\share and \\?\UNC\server\share forms are
// accepted. ok is false for paths that are not WSL UNC paths.
func ParseUNC(p string) (distro string, unixPath string, ok bool) {
	p = strings.ReplaceAll(p, "/", `\`)
	switch {
	case strings.HasPrefix(strings.ToUpper(p), `\\?\UNC\`):
		p = p[len(`\\?\UNC\`):]
	case strings.HasPrefix(p, `\\`) && !strings.HasPrefix(p, `\\?\`) && !strings.HasPrefix(p, `\\.\`):
		p = p[2:]
	default:
		return "", "", false
	}
	parts := strings.SplitN(p, `\`, 3)
	if len(parts) < 2 || !isWSLServer(parts[0]) || parts[1] == "" {
		return "", "", false
	}
	unixPath = "/"
	if len(parts) == 3 {
		unixPath += strings.Trim(strings.ReplaceAll(parts[2], `\`, "/"), "/")
	}
	return parts[1], unixPath, true
}

// IsUNC reports whether p is any UNC path.
func IsUNC(p string) bool {
	p = strings.ReplaceAll(p, "/", `\`)
	return strings.HasPrefix(p, `\\`) && !strings.HasPrefix(p, `\\?\`) ||
		strings.HasPrefix(strings.ToUpper(p), `\\?\UNC\`)
}

// ResolvePath turns the path given by a user into the path of the NTFS file
// to open.
//
//   - /usr/bin is looked up in the rootfs of d.
//   - \\wsl$\<name>\usr\bin is looked up in the rootfs of d, which must be
//     called <name>.
//   - C:\dir\file is used as is.
//
// On platforms other than Windows a Linux absolute path without a distro is
// taken as a local path, which is how ntfs-3g mounts are addressed.
func ResolvePath(d *Distro, in string) (string, error) {
	if IsUnixAbsolute(in) {
		if d != nil {
			return d.RootfsPath(in), nil
		}
		if runtime.GOOS != "windows" {
			return filepath.Clean(in), nil
		}
		return "", fmt.Errorf("%w: %s", ErrDistroRequired, in)
	}
	if name, unixPath, ok := ParseUNC(in); ok {
		if d == nil {
			return "", fmt.Errorf("%w: %s", ErrDistroRequired, in)
		}
		if !strings.EqualFold(name, d.Name) {
			return "", fmt.Errorf("distro %s does not match the WSL path %s", d.Name, in)
		}
		return d.RootfsPath(unixPath), nil
	}
	if IsUNC(in) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedPath, in)
	}
	if IsDrivePath(in) {
		return in, nil
	}
	return filepath.Abs(in)
}
