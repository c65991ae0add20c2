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
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"velda.io/wslattr/pkg/clientlib"
	"velda.io/wslattr/pkg/distro"
	"velda.io/wslattr/pkg/wslfile"
)

var distroCmd = &cobra.Command{
	Use:   "distro",
	Short: "Manage known WSL distros",
	Long: `Manage known WSL distros.

Distros registered with WSL are found in the Lxss registry. Copies of a
distro folder, e.g. a backup or an export, can be added by hand.`,
}

var distroListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered and configured distros",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := newRegistry().List()
		if err != nil {
			return err
		}
		return printList(cmd, list, list, "Name=name,Fs Type=fs_type,Base Path=base_path")
	},
}

var distroAddCmd = &cobra.Command{
	Use:   "add <name> <base-path>",
	Short: "Add a distro folder by hand",
	Long: `Add a distro folder by hand. The base path is the folder holding rootfs.

Examples:
  wslattr distro add ubuntu-backup --fs-type wslfs 'E:\backup\Ubuntu'`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags().Lookup("fs-type")
		fsType := *f.Value.(*wslfile.FsType)
		if fsType == wslfile.None {
			return fmt.Errorf("--fs-type must be lxfs or wslfs")
		}
		basePath, err := filepath.Abs(args[1])
		if err != nil {
			return err
		}
		cfg, err := clientlib.GlobalConfig()
		if err != nil {
			return err
		}
		d := distro.Distro{Name: args[0], BasePath: basePath, FsType: fsType}
		if err := cfg.AddDistro(d); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "distro %s added: %s (%s)\n", d.Name, d.BasePath, d.FsType)
		return nil
	},
}

var distroRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a distro added by hand",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := clientlib.GlobalConfig()
		if err != nil {
			return err
		}
		return cfg.RemoveDistro(args[0])
	},
}

func init() {
	rootCmd.AddCommand(distroCmd)
	distroCmd.AddCommand(distroListCmd)
	distroCmd.AddCommand(distroAddCmd)
	distroCmd.AddCommand(distroRemoveCmd)
	addChangeFlags(distroAddCmd)
	distroAddCmd.MarkFlagRequired("fs-type")
}
