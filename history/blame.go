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

package history

import (
	"context"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/scorehub/scorevc/diff"
	"github.com/scorehub/scorevc/score"
	"github.com/scorehub/scorevc/scoredb"
)

// Annotation attributes one live note to the revision that last introduced
// or changed it.
type Annotation struct {
	RegionID  string             `json:"regionId"`
	Track     string             `json:"track"`
	Note      score.NoteEvent    `json:"note"`
	Revision  scoredb.RevisionID `json:"revision"`
	Author    string             `json:"author"`
	Message   string             `json:"message"`
	Timestamp time.Time          `json:"timestamp"`
}

// BlameOptions narrows blame to a track and/or a beat range. A nil bound
// leaves that side open; the range is [start, end).
type BlameOptions struct {
	Track     string
	BeatStart *float64
	BeatEnd   *float64
}

func (o BlameOptions) admits(track string, note score.NoteEvent) bool {
	if o.Track != "" && o.Track != track {
		return false
	}
	if o.BeatStart != nil && note.Start < *o.BeatStart {
		return false
	}
	if o.BeatEnd != nil && note.Start >= *o.BeatEnd {
		return false
	}
	return true
}

type noteKey struct {
	regionID string
	id       score.NoteID
}

// Blame walks the full DAG from |ref|, diffing each revision against its
// first parent, and attributes every live note at |ref| to the newest
// ancestor whose diff set the note to its current payload. Revisions whose
// snapshots cannot be read are skipped with a log line rather than failing
// the whole walk.
func Blame(ctx context.Context, db *scoredb.Database, ref scoredb.RevisionID, opts BlameOptions, lgr *logrus.Entry) ([]Annotation, error) {
	if lgr == nil {
		lgr = logrus.NewEntry(logrus.StandardLogger())
	}

	live, err := db.Snapshot(ctx, ref)
	if err != nil {
		return nil, err
	}

	// The live notes still awaiting attribution.
	pending := map[noteKey]Annotation{}
	for _, regionID := range live.RegionIDs() {
		region := live.Regions[regionID]
		for _, note := range region.Notes {
			if !opts.admits(region.Track, note) {
				continue
			}
			pending[noteKey{regionID, note.ID()}] = Annotation{
				RegionID: regionID,
				Track:    region.Track,
				Note:     note,
			}
		}
	}

	subgraph, err := Ancestors(ctx, db, ref)
	if err != nil {
		return nil, err
	}
	revs := make([]*scoredb.Revision, 0, len(subgraph))
	for _, rev := range subgraph {
		revs = append(revs, rev)
	}
	order := topoSort(revs, subgraph)

	var out []Annotation

	// Newest first: the first revision whose first-parent diff set a note
	// to its live payload is the one that last touched it.
	for i := len(order) - 1; i >= 0 && len(pending) > 0; i-- {
		rev := subgraph[order[i]]

		snap, err := db.Snapshot(ctx, rev.ID)
		if err != nil {
			lgr.WithError(err).WithField("revision", rev.ID).Warn("skipping unreadable revision in blame")
			continue
		}

		parentSnap := score.NewSnapshot()
		if !rev.IsRoot() {
			parentSnap, err = db.Snapshot(ctx, rev.Parents[0])
			if err != nil {
				lgr.WithError(err).WithField("revision", rev.Parents[0]).Warn("skipping unreadable parent in blame")
				continue
			}
		}

		for _, cs := range diff.Snapshots(parentSnap, snap) {
			for _, nc := range cs.Notes {
				if nc.Type == diff.Removed {
					continue
				}
				key := noteKey{cs.RegionID, nc.ID}
				ann, ok := pending[key]
				if !ok || ann.Note != nc.After {
					continue
				}
				ann.Revision = rev.ID
				ann.Author = rev.Meta.Author
				ann.Message = rev.Meta.Message
				ann.Timestamp = rev.Meta.Timestamp
				out = append(out, ann)
				delete(pending, key)
			}
		}
	}

	if len(pending) > 0 {
		lgr.WithField("notes", len(pending)).Warn("blame left notes unattributed")
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.RegionID != b.RegionID {
			return a.RegionID < b.RegionID
		}
		if a.Note.Start != b.Note.Start {
			return a.Note.Start < b.Note.Start
		}
		return a.Note.Pitch < b.Note.Pitch
	})
	return out, nil
}
