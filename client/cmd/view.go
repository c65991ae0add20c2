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
	"github.com/spf13/cobra"

	"velda.io/wslattr/pkg/view"
)

var viewCmd = &cobra.Command{
	Use:   "view <path>",
	Short: "Show the WSL1 metadata of a file",
	Long: `Show the file times and the lxfs and wslfs metadata of a file.

User and group names are looked up in the distro when one is loaded.

Examples:
  wslattr view -d Ubuntu /usr/bin/sudo
  wslattr view -o yaml 'D:\wsl\ubuntu\rootfs\etc\hostname'`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runView(cmd, args[0])
	},
}

func runView(cmd *cobra.Command, path string) error {
	t, err := resolveTarget(cmd, path)
	if err != nil {
		return err
	}
	set, err := loadSet(t.path)
	if err != nil {
		return err
	}
	defer set.File.Close()
	v := view.Build(set, t.accounts)
	if t.distro != nil {
		v.Distro = t.distro.Name
	}
	return v.Print(outputFormat(cmd), cmd.OutOrStdout())
}

func init() {
	rootCmd.AddCommand(viewCmd)
}
