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
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"velda.io/wslattr/pkg/clientlib"
	"velda.io/wslattr/pkg/distro"
	"velda.io/wslattr/pkg/metadata"
	"velda.io/wslattr/pkg/ntfs"
	"velda.io/wslattr/pkg/utils"
	"velda.io/wslattr/pkg/wslfile"
)

// Replaced in tests.
var opener ntfs.Opener = ntfs.NewOpener()

var newRegistry = clientlib.Registry

var loadAccounts = func(d *distro.Distro) (*distro.Accounts, error) {
	return distro.LoadAccounts(os.DirFS(d.Rootfs()))
}

// target is a command line path resolved against the selected distro.
type target struct {
	distro   *distro.Distro
	path     string
	accounts *distro.Accounts
}

func (t *target) users() *distro.Table {
	if t.accounts == nil {
		return nil
	}
	return t.accounts.Users
}

func (t *target) groups() *distro.Table {
	if t.accounts == nil {
		return nil
	}
	return t.accounts.Groups
}

func resolveTarget(cmd *cobra.Command, path string) (*target, error) {
	name, _ := cmd.Flags().GetString("distro")
	d, err := distro.Resolve(newRegistry(), name, path)
	if err != nil {
		return nil, err
	}
	t := &target{distro: d}
	if d == nil {
		DebugLog("No distro loaded")
	} else {
		cmd.PrintErrf("distro: %s loaded from %s\n", d.Name, d.Source)
		if t.accounts, err = loadAccounts(d); err != nil {
			cmd.PrintErrf("%sFailed to read accounts of %s: %v%s\n", utils.ColorYellow, d.Name, err, utils.ColorReset)
		}
	}
	if t.path, err = distro.ResolvePath(d, path); err != nil {
		return nil, err
	}
	DebugLog("Real path: %s", t.path)
	return t, nil
}

func loadSet(path string) (*metadata.Set, error) {
	f, err := wslfile.Open(opener, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	set, err := metadata.Load(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return set, nil
}

// change is a file opened for one metadata edit.
type change struct {
	*target
	set   *metadata.Set
	attrs wslfile.Attributes
}

func addChangeFlags(cmd *cobra.Command) {
	cmd.Flags().VarP(new(wslfile.FsType), "fs-type", "t", "WSL1 scheme to edit, lxfs or wslfs. Overrides the scheme of --distro")
}

func openChange(cmd *cobra.Command, path string) (*change, error) {
	t, err := resolveTarget(cmd, path)
	if err != nil {
		return nil, err
	}
	set, err := loadSet(t.path)
	if err != nil {
		return nil, err
	}
	if !set.HasEA {
		cmd.PrintErrln("no EAs exists")
	}
	attrs, err := selectScheme(cmd, t.distro, set)
	if err != nil {
		set.File.Close()
		return nil, err
	}
	return &change{target: t, set: set, attrs: attrs}, nil
}

// selectScheme prefers --fs-type, then the scheme of a distro named with
// --distro, then whichever scheme claims the file.
func selectScheme(cmd *cobra.Command, d *distro.Distro, set *metadata.Set) (wslfile.Attributes, error) {
	if f := cmd.Flags().Lookup("fs-type"); f != nil && f.Changed {
		t := *f.Value.(*wslfile.FsType)
		if t == wslfile.None {
			return nil, errors.New("--fs-type must be lxfs or wslfs")
		}
		cmd.PrintErrf("use fs_type: %s from --fs-type\n", t)
		return set.Select(t)
	}
	if d != nil && d.Source == distro.SourceArg && !d.IsWSL2() {
		cmd.PrintErrf("use fs_type: %s from --distro %s\n", d.FsType, d.Name)
		return set.Select(d.FsType)
	}
	attrs, err := set.Select(wslfile.None)
	if err != nil {
		return nil, fmt.Errorf("cannot determine fs_type: %w", err)
	}
	return attrs, nil
}

func (c *change) save() error {
	return c.attrs.Save(c.set.File)
}

func (c *change) Close() error {
	return c.set.File.Close()
}

func optional(v uint32, ok bool) string {
	if !ok {
		return "none"
	}
	return fmt.Sprint(v)
}

func outputFormat(cmd *cobra.Command) string {
	out, err := clientlib.GetFlagValue(cmd, clientlib.KeyOutput)
	if err != nil || out == "" {
		return "text"
	}
	return out
}

// printList prints list as a table of fields, or full as json or yaml.
func printList[T any](cmd *cobra.Command, full any, list []T, fields string) error {
	switch out := outputFormat(cmd); out {
	case "json", "yaml":
		fields = out
	case "text":
	default:
		return fmt.Errorf("unknown output format: %s", out)
	}
	return utils.PrintListOutput(full, list, true, fields, cmd.OutOrStdout())
}
