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

	"velda.io/wslattr/pkg/escape"
)

var setAttrCmd = &cobra.Command{
	Use:   "set-attr <path>",
	Short: "Set a Linux extended attribute of a file",
	Long: `Set a Linux extended attribute of a file.

The value is text with \ooo escapes, 0x<hex> or 0s<base64>.

Examples:
  wslattr set-attr -d Ubuntu -n user.comment -v 'hello\012' /etc/motd
  wslattr set-attr -d Ubuntu -n security.capability -v 0x0100000200200000 /usr/bin/ping`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		raw, _ := cmd.Flags().GetString("value")
		value, err := escape.Unescape(raw)
		if err != nil {
			return err
		}
		c, err := openChange(cmd, args[0])
		if err != nil {
			return err
		}
		defer c.Close()
		if err := c.attrs.SetAttr(name, value); err != nil {
			return fmt.Errorf("set_attr for %s: %w", c.attrs.FsType(), err)
		}
		if err := c.save(); err != nil {
			return fmt.Errorf("set_attr for %s: %w", c.attrs.FsType(), err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "set_attr for %s\n", c.attrs.FsType())
		return nil
	},
}

var rmAttrCmd = &cobra.Command{
	Use:   "rm-attr <path>",
	Short: "Remove a Linux extended attribute of a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		c, err := openChange(cmd, args[0])
		if err != nil {
			return err
		}
		defer c.Close()
		if !c.attrs.RmAttr(name) {
			fmt.Fprintf(cmd.OutOrStdout(), "rm_attr for %s: %s does not exist\n", c.attrs.FsType(), name)
			return nil
		}
		if err := c.save(); err != nil {
			return fmt.Errorf("rm_attr for %s: %w", c.attrs.FsType(), err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "rm_attr for %s\n", c.attrs.FsType())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(setAttrCmd)
	rootCmd.AddCommand(rmAttrCmd)
	for _, c := range []*cobra.Command{setAttrCmd, rmAttrCmd} {
		addChangeFlags(c)
		c.Flags().StringP("name", "n", "", "Attribute name, e.g. user.comment")
		c.MarkFlagRequired("name")
	}
	setAttrCmd.Flags().StringP("value", "v", "", "Attribute value")
}
