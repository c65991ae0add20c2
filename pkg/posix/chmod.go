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
package posix

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidMode = errors.New("invalid mode")

const (
	whoUser  = S_ISUID | 0o700
	whoGroup = S_ISGID | 0o070
	whoOther = S_ISVTX | 0o007
	whoAll   = whoUser | whoGroup | whoOther
)

// Chmod applies a chmod(1) mode expression to mode and returns the result.
// The file type bits are never changed. expr is either an octal number of
// up to four digits or a comma separated list of symbolic clauses such as
// "u+x,g-w,o=r", "a+X" or "+t". No umask is applied.
func Chmod(mode uint32, expr string) (uint32, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return mode, fmt.Errorf("%w: empty expression", ErrInvalidMode)
	}
	if isOctal(expr) {
		if len(expr) > 4 {
			return mode, fmt.Errorf("%w: %q has more than four octal digits", ErrInvalidMode, expr)
		}
		v, err := strconv.ParseUint(expr, 8, 32)
		if err != nil {
			return mode, fmt.Errorf("%w: %q: %v", ErrInvalidMode, expr, err)
		}
		return mode&^PermMask | uint32(v), nil
	}
	for _, clause := range strings.Split(expr, ",") {
		var err error
		if mode, err = applyClause(mode, clause); err != nil {
			return mode, fmt.Errorf("%w: %q", err, expr)
		}
	}
	return mode, nil
}

func isOctal(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '7' {
			return false
		}
	}
	return true
}

func applyClause(mode uint32, clause string) (uint32, error) {
	i := 0
	var who uint32
	for ; i < len(clause) && strings.IndexByte("ugoa", clause[i]) >= 0; i++ {
		switch clause[i] {
		case 'u':
			who |= whoUser
		case 'g':
			who |= whoGroup
		case 'o':
			who |= whoOther
		case 'a':
			who |= whoAll
		}
	}
	if who == 0 {
		who = whoAll
	}
	if i == len(clause) {
		return mode, fmt.Errorf("%w: clause %q has no operator", ErrInvalidMode, clause)
	}
	for i < len(clause) {
		op := clause[i]
		if op != '+' && op != '-' && op != '=' {
			return mode, fmt.Errorf("%w: unexpected %q in clause %q", ErrInvalidMode, op, clause)
		}
		i++
		var perm uint32
		if i < len(clause) && strings.IndexByte("ugo", clause[i]) >= 0 {
			perm = copyClass(mode, clause[i])
			i++
		} else {
			for ; i < len(clause) && strings.IndexByte("rwxXst", clause[i]) >= 0; i++ {
				switch clause[i] {
				case 'r':
					perm |= 0o444
				case 'w':
					perm |= 0o222
				case 'x':
					perm |= 0o111
				case 'X':
					if TypeOf(mode) == TypeDir || mode&0o111 != 0 {
						perm |= 0o111
					}
				case 's':
					perm |= S_ISUID | S_ISGID
				case 't':
					perm |= S_ISVTX
				}
			}
		}
		bits := perm & who
		switch op {
		case '+':
			mode |= bits
		case '-':
			mode &^= bits
		case '=':
			mode = mode&^who | bits
		}
	}
	return mode, nil
}

// copyClass spreads the rwx bits of one class over all three classes.
func copyClass(mode uint32, class byte) uint32 {
	var shift uint
	switch class {
	case 'u':
		shift = 6
	case 'g':
		shift = 3
	}
	return ((mode >> shift) & 0o7) * 0o111
}
