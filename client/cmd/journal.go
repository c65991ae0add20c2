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
	"time"

	"github.com/spf13/cobra"

	"velda.io/wslattr/pkg/db"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Inspect recorded downgrade runs",
}

// runRow is the listing form of a run.
type runRow struct {
	ID       string `json:"id" yaml:"id"`
	Root     string `json:"root" yaml:"root"`
	Distro   string `json:"distro" yaml:"distro"`
	DryRun   bool   `json:"dry_run" yaml:"dry_run"`
	Start    string `json:"start" yaml:"start"`
	Finished string `json:"finished" yaml:"finished"`

	Migrated        int  `json:"migrated" yaml:"migrated"`
	AlreadyMigrated int  `json:"already_migrated" yaml:"already_migrated"`
	Ambiguous       int  `json:"ambiguous" yaml:"ambiguous"`
	Failed          int  `json:"failed" yaml:"failed"`
	Cancelled       bool `json:"cancelled" yaml:"cancelled"`
}

func formatRunTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(time.DateTime)
}

func toRunRow(r db.Run) runRow {
	return runRow{
		ID:              r.ID,
		Root:            r.Root,
		Distro:          r.Distro,
		DryRun:          r.DryRun,
		Start:           formatRunTime(r.StartTime),
		Finished:        formatRunTime(r.FinishTime),
		Migrated:        r.Summary.Migrated,
		AlreadyMigrated: r.Summary.AlreadyMigrated,
		Ambiguous:       r.Summary.Ambiguous,
		Failed:          r.Summary.Failed,
		Cancelled:       r.Summary.Cancelled,
	}
}

func mustJournal(cmd *cobra.Command) (db.Journal, error) {
	j, err := openJournal(cmd)
	if err != nil {
		return nil, err
	}
	if j == nil {
		return nil, errors.New("the journal is disabled")
	}
	return j, nil
}

var journalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		j, err := mustJournal(cmd)
		if err != nil {
			return err
		}
		defer j.Close()
		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := j.ListRuns(cmd.Context(), limit)
		if err != nil {
			return err
		}
		rows := make([]runRow, 0, len(runs))
		for _, r := range runs {
			rows = append(rows, toRunRow(r))
		}
		return printList(cmd, rows, rows, "Id=id,Start=start,Root=root,Migrated=migrated,Failed=failed,Ambiguous=ambiguous")
	},
}

var journalShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a run and the outcome of its files",
	Long:  `Show a run and the outcome of its files. A unique prefix of the run ID is enough.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		j, err := mustJournal(cmd)
		if err != nil {
			return err
		}
		defer j.Close()
		run, err := j.GetRun(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		onlyFailed, _ := cmd.Flags().GetBool("failed")
		files, err := j.RunFiles(cmd.Context(), run.ID, onlyFailed)
		if err != nil {
			return err
		}
		type fileRow struct {
			Path    string `json:"path" yaml:"path"`
			Outcome string `json:"outcome" yaml:"outcome"`
			Error   string `json:"error,omitempty" yaml:"error,omitempty"`
		}
		rows := make([]fileRow, 0, len(files))
		for _, f := range files {
			rows = append(rows, fileRow{Path: f.Path, Outcome: f.Outcome, Error: f.Error})
		}
		full := struct {
			Run   runRow    `json:"run" yaml:"run"`
			Files []fileRow `json:"files" yaml:"files"`
		}{toRunRow(run), rows}
		if out := outputFormat(cmd); out == "json" || out == "yaml" {
			return printList(cmd, full, rows, "")
		}
		r := full.Run
		fmt.Fprintf(cmd.OutOrStdout(), "run %s of %s started %s finished %s: %d migrated, %d already migrated, %d ambiguous, %d failed\n",
			r.ID, r.Root, r.Start, r.Finished, r.Migrated, r.AlreadyMigrated, r.Ambiguous, r.Failed)
		return printList(cmd, full, rows, "Outcome=outcome,Path=path,Error=error")
	},
}

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalListCmd)
	journalCmd.AddCommand(journalShowCmd)
	journalCmd.PersistentFlags().String("journal", "", "Journal database. Defaults to the journal setting or journal.db in the config directory")
	journalListCmd.Flags().Int("limit", 20, "Maximum number of runs, 0 for all")
	journalShowCmd.Flags().Bool("failed", false, "Only show files that were refused or failed")
}
