// Copyright 2024 Scorehub, Inc.
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

package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/scorehub/scorevc/history"
)

func newBlameCmd() *cobra.Command {
	var (
		remote    string
		repo      string
		branch    string
		track     string
		beatStart float64
		beatEnd   float64
	)

	cmd := &cobra.Command{
		Use:   "blame",
		Short: "attribute every live note to the revision that last changed it",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, head, err := fetchBranch(cmd, remote, repo, branch)
			if err != nil {
				return err
			}

			opts := history.BlameOptions{Track: track}
			if cmd.Flags().Changed("from") {
				opts.BeatStart = &beatStart
			}
			if cmd.Flags().Changed("to") {
				opts.BeatEnd = &beatEnd
			}

			anns, err := history.Blame(cmd.Context(), db, head, opts, newLogger())
			if err != nil {
				return err
			}

			yellow := color.New(color.FgYellow).SprintFunc()
			green := color.New(color.FgGreen).SprintFunc()
			for _, ann := range anns {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s beat %-7.3g pitch %-3d vel %-3d  %s  %s\n",
					yellow(shortID(ann.Revision)),
					green(ann.RegionID),
					ann.Note.Start,
					ann.Note.Pitch,
					ann.Note.Velocity,
					ann.Author,
					ann.Message,
				)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&remote, "remote", "http://localhost:8520", "remote server URL")
	cmd.Flags().StringVar(&repo, "repo", "", "repository id")
	cmd.Flags().StringVar(&branch, "branch", "main", "branch name")
	cmd.Flags().StringVar(&track, "track", "", "limit blame to one track")
	cmd.Flags().Float64Var(&beatStart, "from", 0, "start of the beat range (inclusive)")
	cmd.Flags().Float64Var(&beatEnd, "to", 0, "end of the beat range (exclusive)")
	_ = cmd.MarkFlagRequired("repo")
	return cmd
}
