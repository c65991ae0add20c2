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
)

var relinkCmd = &cobra.Command{
	Use:   "relink <path> <target>",
	Short: "Point a symlink at a new target",
	Long: `Point a symlink at a new target. A file that is not a symlink becomes one.

lxfs keeps the target as the file content, wslfs in an LX_SYMLINK reparse point.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openChange(cmd, args[0])
		if err != nil {
			return err
		}
		defer c.Close()
		old, ok := c.attrs.Symlink()
		if !ok {
			old = "none"
		}
		if err := c.attrs.SetSymlink(c.set.File, args[1]); err != nil {
			return fmt.Errorf("relink for %s: %w", c.attrs.FsType(), err)
		}
		if err := c.save(); err != nil {
			return fmt.Errorf("relink for %s: %w", c.attrs.FsType(), err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "relink for %s %s --> %s\n", c.attrs.FsType(), old, args[1])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(relinkCmd)
	addChangeFlags(relinkCmd)
}
