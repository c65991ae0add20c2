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

	"github.com/spf13/cobra"

	"velda.io/wslattr/pkg/posix"
)

var chmodCmd = &cobra.Command{
	Use:   "chmod <mode> <path>",
	Short: "Change the permission bits of a file",
	Long: `Change the permission bits of a file. The mode is octal or symbolic.

Examples:
  wslattr chmod 0755 -d Ubuntu /usr/local/bin/tool
  wslattr chmod u+x,g-w -d Ubuntu /home/alice/run.sh`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openChange(cmd, args[1])
		if err != nil {
			return err
		}
		defer c.Close()
		mode, ok := c.attrs.Mode()
		if !ok {
			mode = posix.DefaultFileMode
		}
		newMode, err := posix.Chmod(mode, args[0])
		if err != nil {
			return err
		}
		c.attrs.SetMode(newMode)
		if err := c.save(); err != nil {
			return fmt.Errorf("chmod for %s: %06o / %s --> %06o / %s: %w",
				c.attrs.FsType(), mode, posix.Perms(mode), newMode, posix.Perms(newMode), err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "chmod for %s: %06o / %s --> %06o / %s\n",
			c.attrs.FsType(), mode, posix.Perms(mode), newMode, posix.Perms(newMode))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(chmodCmd)
	addChangeFlags(chmodCmd)
}
