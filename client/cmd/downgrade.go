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
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"velda.io/wslattr/pkg/clientlib"
	"velda.io/wslattr/pkg/db"
	"velda.io/wslattr/pkg/db/sqlite"
	"velda.io/wslattr/pkg/distro"
	"velda.io/wslattr/pkg/migrate"
	"velda.io/wslattr/pkg/ntfs"
	"velda.io/wslattr/pkg/utils"
	"velda.io/wslattr/pkg/wslfile"
)

var downgradeCmd = &cobra.Command{
	Use:   "downgrade [path]",
	Short: "Convert wslfs metadata to lxfs, the reverse of 'wslconfig /upgrade'",
	Long: `Convert wslfs metadata to lxfs, the reverse of 'wslconfig /upgrade'.

With --distro every file of the distro rootfs is converted and the distro is
then registered as lxfs. With a path only that file or directory tree is
converted. Files lxfs already claims are skipped; files both schemes claim
are refused.

Examples:
  wslattr downgrade -d Ubuntu
  wslattr downgrade --dry-run 'D:\wsl\ubuntu\rootfs\home'`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("distro")
		if len(args) == 1 && name != "" {
			return errors.New("path and --distro are conflicted")
		}
		if len(args) == 0 && name == "" {
			return errors.New("there must be one of path or --distro")
		}
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		opts := migrate.Options{DryRun: dryRun, Metrics: migrate.NewMetrics()}
		journal, err := openJournal(cmd)
		if err != nil {
			return err
		}
		if journal != nil {
			defer journal.Close()
			opts.Journal = journal
		}
		opts.Progress = progressPrinter(cmd)

		var report *migrate.Report
		if name != "" {
			report, err = downgradeDistro(cmd, name, opts)
		} else {
			report, err = downgradePath(cmd, args[0], opts)
		}
		if metricsFile, _ := cmd.Flags().GetString("metrics-file"); metricsFile != "" && report != nil {
			if merr := opts.Metrics.WriteTextfile(metricsFile); merr != nil {
				cmd.PrintErrf("Failed to write metrics to %s: %v\n", metricsFile, merr)
			}
		}
		if report != nil {
			printReport(cmd.OutOrStdout(), report)
		}
		if err != nil {
			return err
		}
		if !report.OK() {
			return fmt.Errorf("%d files were not migrated", len(report.Failures))
		}
		return nil
	},
}

func downgradeDistro(cmd *cobra.Command, name string, opts migrate.Options) (*migrate.Report, error) {
	reg := newRegistry()
	d, err := distro.Lookup(reg, name)
	if err != nil {
		return nil, err
	}
	switch d.FsType {
	case wslfile.None:
		return nil, fmt.Errorf("WSL distro: %s: %w", d.Name, distro.ErrWSL2)
	case wslfile.Lxfs:
		return nil, fmt.Errorf("WSL distro: %s is lxfs already", d.Name)
	}
	report, err := migrate.Distro(cmd.Context(), opener, d.Name, d.BasePath, reg, opts)
	if err == nil && !opts.DryRun {
		cmd.PrintErrf("set %s fs_type(Version) to %d\n", d.Name, wslfile.Lxfs.Version())
	}
	return report, err
}

func downgradePath(cmd *cobra.Command, path string, opts migrate.Options) (*migrate.Report, error) {
	p, err := distro.ResolvePath(nil, path)
	if err != nil {
		return nil, err
	}
	st, err := os.Stat(p)
	if err != nil {
		return nil, err
	}
	if st.IsDir() {
		return migrate.Tree(cmd.Context(), opener, p, opts)
	}
	o := opener
	if opts.DryRun {
		o = ntfs.NewDryRunOpener(o)
	}
	outcome, err := migrate.Path(o, p)
	if opts.Progress != nil {
		opts.Progress(p, outcome, err)
	}
	report := &migrate.Report{Root: p, DryRun: opts.DryRun}
	report.Record(p, outcome, err)
	return report, nil
}

// openJournal opens the journal named by --journal or the config, or the
// default one in the config directory. --no-journal disables it.
func openJournal(cmd *cobra.Command) (db.Journal, error) {
	if off, _ := cmd.Flags().GetBool("no-journal"); off {
		return nil, nil
	}
	path, err := clientlib.GetFlagValue(cmd, clientlib.KeyJournal)
	if err != nil {
		return nil, err
	}
	if path == "" {
		path = filepath.Join(clientlib.GetConfigDir(), "journal.db")
	}
	DebugLog("Using journal: %s", path)
	j, err := sqlite.NewSqliteDatabase(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal %s: %w", path, err)
	}
	return j, nil
}

func progressPrinter(cmd *cobra.Command) func(string, migrate.Outcome, error) {
	if quiet, _ := cmd.Flags().GetBool("quiet"); quiet {
		return nil
	}
	out := cmd.OutOrStdout()
	color := false
	if f, ok := out.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return func(path string, o migrate.Outcome, err error) {
		var c string
		switch o {
		case migrate.Migrated:
			c = utils.ColorGreen
		case migrate.AlreadyMigrated:
			c = utils.ColorLightGray
		case migrate.Refused:
			c = utils.ColorYellow
		default:
			c = utils.ColorRed
		}
		line := fmt.Sprintf("%-16s %s", o, path)
		if err != nil && !errors.Is(err, wslfile.ErrAmbiguousScheme) {
			line += ": " + err.Error()
		}
		if color {
			fmt.Fprintf(out, "%s%s%s\n", c, line, utils.ColorReset)
		} else {
			fmt.Fprintln(out, line)
		}
	}
}

func printReport(w io.Writer, r *migrate.Report) {
	s := r.Summary
	fmt.Fprintf(w, "downgrade %s: %d migrated, %d already migrated, %d ambiguous, %d failed",
		r.Root, s.Migrated, s.AlreadyMigrated, s.Ambiguous, s.Failed)
	if r.DryRun {
		fmt.Fprint(w, " (dry run)")
	}
	if s.Cancelled {
		fmt.Fprint(w, " (cancelled)")
	}
	fmt.Fprintln(w)
	if r.RunID != "" {
		fmt.Fprintf(w, "run: %s\n", r.RunID)
	}
}

func init() {
	rootCmd.AddCommand(downgradeCmd)
	flags := downgradeCmd.Flags()
	flags.Bool("dry-run", false, "Convert an in-memory copy and report what would change")
	flags.String(clientlib.KeyJournal, "", "Journal database. Defaults to the journal setting or journal.db in the config directory")
	flags.Bool("no-journal", false, "Do not record the run")
	flags.String("metrics-file", "", "Write per-outcome counters to this file in the Prometheus text format")
	flags.BoolP("quiet", "q", false, "Only print the summary")
}
