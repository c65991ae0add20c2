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

//go:build !windows

package distro

import "velda.io/wslattr/pkg/wslfile"

type noRegistry struct{}

// NewRegistry returns a registry without entries: the Lxss key only exists
// on Windows.
func NewRegistry() Registry {
	return noRegistry{}
}

func (noRegistry) List() ([]Distro, error) {
	return nil, ErrNoRegistry
}

func (noRegistry) Default() (*Distro, error) {
	return nil, ErrNoRegistry
}

func (noRegistry) SetFsType(string, wslfile.FsType) error {
	return ErrNoRegistry
}
