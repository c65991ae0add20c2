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
package escape

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sample = []byte{'a', 'b', '\\', 't', '\\', 'n', 0x1b, '$'}

func TestUnescape(t *testing.T) {
	for _, in := range []string{
		"0x61625c745c6e1b24",
		"0X61625C745C6E1B24",
		"0sYWJcdFxuGyQ=",
		`ab\\t\\n\033$`,
	} {
		got, err := Unescape(in)
		require.NoError(t, err, in)
		assert.Equal(t, sample, got, in)
	}

	got, err := Unescape(`say \"hi\"`)
	require.NoError(t, err)
	assert.Equal(t, `say "hi"`, string(got))

	got, err = Unescape("plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", string(got))
}

func TestUnescapeInvalid(t *testing.T) {
	for _, in := range []string{"0x123", "0xzz", "0s!!", `\9`, `\12`, `\800`} {
		_, err := Unescape(in)
		assert.ErrorIs(t, err, ErrInvalidValue, in)
	}
}

func TestEscape(t *testing.T) {
	assert.Equal(t, "61625c745c6e1b24", Hex(sample))
	assert.Equal(t, "YWJcdFxuGyQ=", Base64(sample))
	assert.Equal(t, `ab\\t\\n\033$`, Octal(sample, false))
}

func TestOctalUTF8(t *testing.T) {
	v := []byte("é\xff")
	assert.Equal(t, `\303\251\377`, Octal(v, false))
	assert.Equal(t, `é\377`, Octal(v, true))

	got, err := Unescape(Octal(v, false))
	require.NoError(t, err)
	assert.Equal(t, v, got)
}
