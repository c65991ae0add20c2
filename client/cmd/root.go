// Copyright 2025 Velda Inc
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"velda.io/wslattr/pkg/clientlib"
)

var rootCmd = &cobra.Command{
	Use:   "wslattr [path]",
	Short: "Inspect and edit WSL1 Linux metadata of files from the NTFS side",
	Long: `Inspect and edit the Linux metadata WSL1 keeps in NTFS extended attributes.

Given only a path, wslattr shows the metadata of that file.

Examples:
  # Show a file by its Linux path in a distro
  wslattr -d Ubuntu /etc/passwd

  # Show a file by its WSL UNC path
  wslattr '\\wsl$\Ubuntu\etc\passwd'`,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return clientlib.InitConfig()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return cmd.Help()
		}
		return runView(cmd, args[0])
	},
}

// Exported for addition from other packages
var RootCmd = rootCmd

func DebugLog(format string, args ...interface{}) {
	clientlib.DebugLog(format, args...)
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	clientlib.InitConfigFlags(rootCmd)
	flags := rootCmd.PersistentFlags()
	flags.StringP("distro", "d", "", "WSL distro from the registry or the config, for paths and account names")
	flags.StringP("output", "o", "text", "Output format: text, json or yaml")
}
