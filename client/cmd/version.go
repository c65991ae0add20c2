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
	"runtime/debug"

	"github.com/spf13/cobra"
	"velda.io/wslattr"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the wslattr version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		buildInfo, hasBuildInfo := debug.ReadBuildInfo()
		version := wslattr.Version
		if version == "" && hasBuildInfo && buildInfo.Main.Version != "(devel)" {
			version = buildInfo.Main.Version
		}
		if version == "" {
			version = "dev"
		}
		verbose, _ := cmd.Flags().GetBool("verbose")
		out := cmd.OutOrStdout()
		if !verbose {
			fmt.Fprintln(out, version)
			return nil
		}
		fmt.Fprintln(out, "version:", version)
		if !hasBuildInfo {
			cmd.PrintErrln("No build info available")
			return nil
		}
		fmt.Fprintln(out, "go:", buildInfo.GoVersion)
		for _, setting := range buildInfo.Settings {
			fmt.Fprintf(out, "%s: %s\n", setting.Key, setting.Value)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolP("verbose", "v", false, "Show detailed version information")
}
