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
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/scorehub/scorevc/history"
	"github.com/scorehub/scorevc/remotestorage"
	"github.com/scorehub/scorevc/scoredb"
	"github.com/scorehub/scorevc/store/objects"
)

// shortID trims a revision id for display: the digest prefix of a sealed
// id, the leading segment of a UUID otherwise.
func shortID(id scoredb.RevisionID) string {
	s := string(id)
	if i := strings.IndexByte(s, ':'); i >= 0 {
		s = s[i+1:]
	}
	if len(s) > 12 {
		s = s[:12]
	}
	return s
}

// fetchBranch pulls a branch from the remote into a fresh in-memory
// database and returns it with the branch head.
func fetchBranch(cmd *cobra.Command, remote, repo, branch string) (*scoredb.Database, scoredb.RevisionID, error) {
	client := remotestorage.NewClient(remote, repo, newLogger())
	db := scoredb.NewDatabase(objects.NewMemoryStore())
	head, err := client.PullBranch(cmd.Context(), db, branch)
	if err != nil {
		return nil, "", err
	}
	return db, head, nil
}

func newLogCmd() *cobra.Command {
	var (
		remote string
		repo   string
		branch string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "log",
		Short: "show branch history, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, head, err := fetchBranch(cmd, remote, repo, branch)
			if err != nil {
				return err
			}

			revs, err := history.Log(cmd.Context(), db, head)
			if err != nil {
				return err
			}
			if limit > 0 && len(revs) > limit {
				revs = revs[:limit]
			}

			yellow := color.New(color.FgYellow).SprintFunc()
			cyan := color.New(color.FgCyan).SprintFunc()
			for _, rev := range revs {
				marker := ""
				if rev.IsMerge() {
					marker = cyan(" (merge)")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s%s  %s  %s\n    %s\n",
					yellow(shortID(rev.ID)),
					marker,
					rev.Meta.Author,
					humanize.Time(rev.Meta.Timestamp),
					rev.Meta.Message,
				)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&remote, "remote", "http://localhost:8520", "remote server URL")
	cmd.Flags().StringVar(&repo, "repo", "", "repository id")
	cmd.Flags().StringVar(&branch, "branch", "main", "branch name")
	cmd.Flags().IntVar(&limit, "limit", 0, "show at most this many revisions (0 = all)")
	_ = cmd.MarkFlagRequired("repo")
	return cmd
}
