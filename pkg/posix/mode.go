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

// Package posix holds st_mode and st_rdev helpers for metadata stored by
// WSL on behalf of Linux processes.
package posix

const (
	S_IFMT   = 0o170000
	S_IFSOCK = 0o140000
	S_IFLNK  = 0o120000
	S_IFREG  = 0o100000
	S_IFBLK  = 0o060000
	S_IFDIR  = 0o040000
	S_IFCHR  = 0o020000
	S_IFIFO  = 0o010000

	S_ISUID = 0o4000
	S_ISGID = 0o2000
	S_ISVTX = 0o1000

	PermMask = 0o7777

	DefaultFileMode = S_IFREG | 0o644
	DefaultDirMode  = S_IFDIR | 0o755
)

// Type is the file type encoded in the S_IFMT bits.
type Type uint32

const (
	TypeFifo    Type = S_IFIFO
	TypeChr     Type = S_IFCHR
	TypeDir     Type = S_IFDIR
	TypeBlk     Type = S_IFBLK
	TypeReg     Type = S_IFREG
	TypeLink    Type = S_IFLNK
	TypeSock    Type = S_IFSOCK
	TypeUnknown Type = S_IFMT
)

func TypeOf(mode uint32) Type {
	switch t := Type(mode & S_IFMT); t {
	case TypeFifo, TypeChr, TypeDir, TypeBlk, TypeReg, TypeLink, TypeSock:
		return t
	}
	return TypeUnknown
}

func (t Type) String() string {
	switch t {
	case TypeFifo:
		return "FIFO"
	case TypeChr:
		return "CHR"
	case TypeDir:
		return "DIRECTORY"
	case TypeBlk:
		return "BLK"
	case TypeReg:
		return "FILE"
	case TypeLink:
		return "SYMLINK"
	case TypeSock:
		return "SOCKET"
	}
	return "UNKNOWN"
}

// typeChar is the first column of "ls -l".
func (t Type) typeChar() byte {
	switch t {
	case TypeFifo:
		return 'p'
	case TypeChr:
		return 'c'
	case TypeDir:
		return 'd'
	case TypeBlk:
		return 'b'
	case TypeReg:
		return '-'
	case TypeLink:
		return 'l'
	case TypeSock:
		return 's'
	}
	return '?'
}

// Perms renders mode like "ls -l", e.g. "drwxr-xr-t".
func Perms(mode uint32) string {
	b := []byte("?---------")
	b[0] = TypeOf(mode).typeChar()
	const rwx = "rwx"
	for i := 0; i < 9; i++ {
		if mode&(1<<(8-i)) != 0 {
			b[1+i] = rwx[i%3]
		}
	}
	special := func(pos int, bit uint32, set, unset byte) {
		if mode&bit == 0 {
			return
		}
		if b[pos] == 'x' {
			b[pos] = set
		} else {
			b[pos] = unset
		}
	}
	special(3, S_ISUID, 's', 'S')
	special(6, S_ISGID, 's', 'S')
	special(9, S_ISVTX, 't', 'T')
	return string(b)
}

// MakeDev packs major and minor the way the Linux kernel encodes a 32 bit
// dev_t: 12 bits of major and 20 bits of minor, minor split around major.
func MakeDev(major, minor uint32) uint32 {
	return (minor & 0xff) | ((major & 0xfff) << 8) | ((minor &^ 0xff) << 12)
}

func Major(dev uint32) uint32 {
	return (dev >> 8) & 0xfff
}

func Minor(dev uint32) uint32 {
	return (dev & 0xff) | ((dev >> 12) & 0xfff00)
}
