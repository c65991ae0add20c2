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
	"strings"

	"github.com/spf13/cobra"

	"velda.io/wslattr/pkg/ea"
	"velda.io/wslattr/pkg/escape"
	"velda.io/wslattr/pkg/wslfile"
)

var getEaCmd = &cobra.Command{
	Use:   "get-ea <path>",
	Short: "Dump the raw NTFS extended attributes of a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		t, err := resolveTarget(cmd, args[0])
		if err != nil {
			return err
		}
		f, err := wslfile.Open(opener, t.path)
		if err != nil {
			return err
		}
		defer f.Close()
		chain, err := f.ReadEA()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(chain.Entries) == 0 {
			fmt.Fprintln(out, "no EAs exists")
			return nil
		}
		var entries []ea.Entry
		for _, e := range chain.Entries {
			// NTFS compares EA names case-insensitively.
			if name == "" || strings.EqualFold(string(e.Name), name) {
				entries = append(entries, e)
			}
		}
		fmt.Fprintf(out, "EAs count: %d\n", len(entries))
		for _, e := range entries {
			fmt.Fprintf(out, "  EA:%s = 0x%s\n", escape.Octal(e.Name, false), escape.Hex(e.Value))
		}
		return nil
	},
}

var setEaCmd = &cobra.Command{
	Use:   "set-ea <path>",
	Short: "Write one raw NTFS extended attribute of a file",
	Long: `Write one raw NTFS extended attribute of a file. Without --value the
attribute is deleted.

This bypasses both attribute schemes and can leave a file unreadable to WSL.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		raw, _ := cmd.Flags().GetString("value")
		value, err := escape.Unescape(raw)
		if err != nil {
			return err
		}
		t, err := resolveTarget(cmd, args[0])
		if err != nil {
			return err
		}
		f, err := wslfile.Open(opener, t.path)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := f.WriteEA([]ea.Entry{ea.NewEntry(name, value)}); err != nil {
			return fmt.Errorf("set_ea %s: %w", name, err)
		}
		if len(value) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "set_ea: deleted %s\n", name)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "set_ea: wrote %s, %d bytes\n", name, len(value))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(getEaCmd)
	rootCmd.AddCommand(setEaCmd)
	getEaCmd.Flags().StringP("name", "n", "", "Only show the EA with this name")
	setEaCmd.Flags().StringP("name", "n", "", "EA name, e.g. $LXUID")
	setEaCmd.Flags().StringP("value", "v", "", "EA value: text with \\ooo escapes, 0x<hex> or 0s<base64>")
	setEaCmd.MarkFlagRequired("name")
}
