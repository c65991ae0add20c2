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
package utils

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	ID    string `json:"id" yaml:"id"`
	Count int    `json:"count" yaml:"count"`
	Inner struct {
		Name string `json:"name" yaml:"name"`
	} `json:"inner" yaml:"inner"`
}

func TestPrintListOutput(t *testing.T) {
	a := row{ID: "a", Count: 3}
	a.Inner.Name = "x"
	b := row{ID: "b"}

	var buf bytes.Buffer
	require.NoError(t, PrintListOutput(nil, []row{a, b}, true, "id,N=count,inner.name", &buf))
	assert.Equal(t, "Id  N  Name\na   3  x\nb   0  \n", buf.String())
}

func TestPrintObject(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintObject(row{ID: "a", Count: 1}, "yaml", &buf))
	assert.Equal(t, "id: a\ncount: 1\ninner:\n  name: \"\"\n", buf.String())

	buf.Reset()
	require.NoError(t, PrintListOutput(row{ID: "a"}, []row(nil), false, "json", &buf))
	assert.Contains(t, buf.String(), `"id": "a"`)

	assert.Error(t, PrintObject(1, "xml", &buf))
}
