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

	"velda.io/wslattr/pkg/distro"
)

var chownCmd = &cobra.Command{
	Use:   "chown <user> <path>",
	Short: "Change the owner of a file",
	Long: `Change the owner of a file. The user is a uid, or a user name of the
distro given with --distro or found from the path.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openChange(cmd, args[1])
		if err != nil {
			return err
		}
		defer c.Close()
		uid, err := distro.LookupID(c.users(), args[0])
		if err != nil {
			return fmt.Errorf("no user %s: %w", args[0], err)
		}
		old := optional(c.attrs.UID())
		c.attrs.SetUID(uid)
		if err := c.save(); err != nil {
			return fmt.Errorf("chown for %s %s --> %d: %w", c.attrs.FsType(), old, uid, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "chown for %s %s --> %d\n", c.attrs.FsType(), old, uid)
		return nil
	},
}

var chgrpCmd = &cobra.Command{
	Use:   "chgrp <group> <path>",
	Short: "Change the group of a file",
	Long: `Change the group of a file. The group is a gid, or a group name of the
distro given with --distro or found from the path.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openChange(cmd, args[1])
		if err != nil {
			return err
		}
		defer c.Close()
		gid, err := distro.LookupID(c.groups(), args[0])
		if err != nil {
			return fmt.Errorf("no group %s: %w", args[0], err)
		}
		old := optional(c.attrs.GID())
		c.attrs.SetGID(gid)
		if err := c.save(); err != nil {
			return fmt.Errorf("chgrp for %s %s --> %d: %w", c.attrs.FsType(), old, gid, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "chgrp for %s %s --> %d\n", c.attrs.FsType(), old, gid)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(chownCmd)
	rootCmd.AddCommand(chgrpCmd)
	addChangeFlags(chownCmd)
	addChangeFlags(chgrpCmd)
}
