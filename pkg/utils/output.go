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
/*
Shared printing utilities (json/yaml/table) and a simple dot-path extractor
for selecting fields as columns.
*/
package utils

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

type fieldSpec struct {
	Name string
	Path string
}

// parseFields parses "Name=path,other.path" into column specs. A column
// without a name is named after the last path element.
func parseFields(fieldsSpec string) []fieldSpec {
	var specs []fieldSpec
	for _, p := range strings.Split(fieldsSpec, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if strings.Contains(p, "=") {
			kv := strings.SplitN(p, "=", 2)
			specs = append(specs, fieldSpec{Name: strings.TrimSpace(kv[0]), Path: strings.TrimSpace(kv[1])})
		} else {
			specs = append(specs, fieldSpec{Name: pathBase(p), Path: p})
		}
	}
	return specs
}

// PrintListOutput prints full as json or yaml when fieldsSpec asks for it,
// and otherwise one table row per item with the columns of fieldsSpec.
// Paths address the json form of an item.
func PrintListOutput[T any](full any, list []T, header bool, fieldsSpec string, w io.Writer) error {
	if fieldsSpec == "json" || fieldsSpec == "yaml" {
		return PrintObject(full, fieldsSpec, w)
	}
	specs := parseFields(fieldsSpec)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if header {
		fmt.Fprintln(tw, strings.Join(columnNames(specs), "\t"))
	}
	for _, item := range list {
		obj, err := toGeneric(item)
		if err != nil {
			return err
		}
		cols := []string{}
		for _, sp := range specs {
			cols = append(cols, extractByPath(obj, sp.Path))
		}
		fmt.Fprintln(tw, strings.Join(cols, "\t"))
	}
	return tw.Flush()
}

// PrintObject writes v as indented json or as yaml.
func PrintObject(v any, outFmt string, w io.Writer) error {
	switch outFmt {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format: %s", outFmt)
	}
}

func toGeneric(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var obj any
	if err := json.Unmarshal(b, &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

func pathBase(p string) string {
	parts := strings.Split(p, ".")
	if len(parts) == 0 {
		return p
	}
	return strings.Title(parts[len(parts)-1])
}

func columnNames(specs []fieldSpec) []string {
	out := make([]string, 0, len(specs))
	for _, s := range specs {
		out = append(out, s.Name)
	}
	return out
}

func extractByPath(obj interface{}, path string) string {
	if path == "" {
		b, _ := json.Marshal(obj)
		return string(b)
	}
	parts := strings.Split(path, ".")
	cur := obj
	for _, p := range parts {
		switch v := cur.(type) {
		case map[string]interface{}:
			if vv, ok := v[p]; ok {
				cur = vv
				continue
			}
			return ""
		case []interface{}:
			idx := -1
			if i, err := strconv.Atoi(p); err == nil {
				idx = i
			}
			if idx >= 0 && idx < len(v) {
				cur = v[idx]
				continue
			}
			return ""
		default:
			return fmt.Sprintf("%v", cur)
		}
	}
	switch t := cur.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	}
}
