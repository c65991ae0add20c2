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

// Package escape renders attribute values for display and parses values
// typed on the command line, in the notation of getfattr(1).
package escape

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var ErrInvalidValue = errors.New("invalid escaped value")

// Octal escapes control characters and invalid UTF-8 as \ooo, and `\` and
// `"` with a backslash. Printable non-ASCII runes are kept when keepUTF8 is
// set and escaped byte by byte otherwise.
func Octal(b []byte, keepUTF8 bool) string {
	var sb strings.Builder
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		switch {
		case r == utf8.RuneError && size <= 1:
			fmt.Fprintf(&sb, `\%03o`, b[0])
		case r < utf8.RuneSelf && unicode.IsControl(r):
			fmt.Fprintf(&sb, `\%03o`, r)
		case r == '\\' || r == '"':
			sb.WriteByte('\\')
			sb.WriteRune(r)
		case r < utf8.RuneSelf:
			sb.WriteRune(r)
		case keepUTF8 && !unicode.IsControl(r):
			sb.WriteRune(r)
		default:
			for _, c := range b[:size] {
				fmt.Fprintf(&sb, `\%03o`, c)
			}
		}
		b = b[size:]
	}
	return sb.String()
}

// Hex renders b as lower case hex digits.
func Hex(b []byte) string {
	return hex.EncodeToString(b)
}

// Base64 renders b in standard padded base64.
func Base64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// Unescape parses a value: 0s<base64>, 0x<hex> or text with the escapes
// produced by Octal.
func Unescape(s string) ([]byte, error) {
	if len(s) >= 2 && s[0] == '0' {
		switch s[1] {
		case 's', 'S':
			b, err := base64.StdEncoding.DecodeString(s[2:])
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
			}
			return b, nil
		case 'x', 'X':
			b, err := hex.DecodeString(s[2:])
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
			}
			return b, nil
		}
	}
	return unescapeOctal(s)
}

func unescapeOctal(s string) ([]byte, error) {
	out := make([]byte, 0, len(s))
	for {
		i := strings.IndexByte(s, '\\')
		if i < 0 {
			return append(out, s...), nil
		}
		out = append(out, s[:i]...)
		s = s[i:]
		if len(s) >= 2 && (s[1] == '\\' || s[1] == '"') {
			out = append(out, s[1])
			s = s[2:]
			continue
		}
		if len(s) < 4 {
			return nil, fmt.Errorf("%w: truncated escape %q", ErrInvalidValue, s)
		}
		v, err := strconv.ParseUint(s[1:4], 8, 8)
		if err != nil {
			return nil, fmt.Errorf("%w: bad octal escape %q", ErrInvalidValue, s[:4])
		}
		out = append(out, byte(v))
		s = s[4:]
	}
}
