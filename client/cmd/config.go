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
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"velda.io/wslattr/pkg/clientlib"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage wslattr settings",
	Long: `Manage wslattr settings. Known keys: ` + strings.Join(clientlib.Keys, ", ") + `.`,
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := clientlib.GlobalConfig()
		if err != nil {
			return err
		}
		all, err := cfg.ListConfigs()
		if err != nil {
			return err
		}
		type setting struct {
			Key   string `json:"key" yaml:"key"`
			Value string `json:"value" yaml:"value"`
		}
		var list []setting
		for _, k := range clientlib.SortedKeys(all) {
			list = append(list, setting{Key: k, Value: all[k]})
		}
		return printList(cmd, all, list, "Key=key,Value=value")
	},
}

func checkKey(key string) error {
	if !slices.Contains(clientlib.Keys, key) {
		return fmt.Errorf("unknown config key %q, expected one of %s", key, strings.Join(clientlib.Keys, ", "))
	}
	return nil
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configListCmd)
}
