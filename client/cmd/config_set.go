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

	"velda.io/wslattr/pkg/clientlib"
	"velda.io/wslattr/pkg/distro"
)

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Save a setting",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		if err := checkKey(key); err != nil {
			return err
		}
		switch key {
		case clientlib.KeyDefaultDistro:
			if _, err := distro.Lookup(newRegistry(), value); err != nil {
				return err
			}
		case clientlib.KeyOutput:
			if value != "text" && value != "json" && value != "yaml" {
				return fmt.Errorf("unknown output format %q, expected text, json or yaml", value)
			}
		}
		cfg, err := clientlib.GlobalConfig()
		if err != nil {
			return err
		}
		return cfg.SetConfig(key, value)
	},
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Remove a setting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkKey(args[0]); err != nil {
			return err
		}
		cfg, err := clientlib.GlobalConfig()
		if err != nil {
			return err
		}
		return cfg.DeleteConfig(args[0])
	},
}

func init() {
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configUnsetCmd)
}
