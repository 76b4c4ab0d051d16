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

// Package diff computes structured differences between snapshots at
// note/controller granularity. A note is the "same" note across versions
// when its (pitch, start) identity matches; a controller event when its
// (kind, controller, position) identity matches. The merge engine, blame
// and changeset views all share this identity rule.
package diff

import (
	"sort"

	"github.com/scorehub/scorevc/score"
)

// ChangeType classifies one event-level change.
type ChangeType string

const (
	Added    ChangeType = "added"
	Removed  ChangeType = "removed"
	Modified ChangeType = "modified"
)

// NoteChange is a single note difference, with explicit before/after
// payloads. Before is zero for Added, After is zero for Removed.
type NoteChange struct {
	Type   ChangeType      `json:"type"`
	ID     score.NoteID    `json:"-"`
	Before score.NoteEvent `json:"before,omitempty"`
	After  score.NoteEvent `json:"after,omitempty"`
}

// ControllerChange is a single controller-event difference.
type ControllerChange struct {
	Type   ChangeType            `json:"type"`
	ID     score.ControllerID    `json:"-"`
	Before score.ControllerEvent `json:"before,omitempty"`
	After  score.ControllerEvent `json:"after,omitempty"`
}

// RegionChangeSet is the reviewable unit of change for one (track, region)
// pair between two snapshots.
type RegionChangeSet struct {
	RegionID      string             `json:"regionId"`
	Track         string             `json:"track"`
	RegionAdded   bool               `json:"regionAdded,omitempty"`
	RegionRemoved bool               `json:"regionRemoved,omitempty"`
	Notes         []NoteChange       `json:"notes,omitempty"`
	Controllers   []ControllerChange `json:"controllers,omitempty"`
}

// IsEmpty returns true if the changeset records no differences.
func (cs RegionChangeSet) IsEmpty() bool {
	return !cs.RegionAdded && !cs.RegionRemoved && len(cs.Notes) == 0 && len(cs.Controllers) == 0
}

// Regions diffs two versions of a region, keyed by event identity. The
// returned changes are ordered by position so output is deterministic.
func Regions(from, to score.Region) RegionChangeSet {
	cs := RegionChangeSet{RegionID: to.ID, Track: to.Track}
	if cs.RegionID == "" {
		cs.RegionID = from.ID
	}
	if cs.Track == "" {
		cs.Track = from.Track
	}

	fromNotes, toNotes := from.NoteIndex(), to.NoteIndex()
	for id, before := range fromNotes {
		after, ok := toNotes[id]
		if !ok {
			cs.Notes = append(cs.Notes, NoteChange{Type: Removed, ID: id, Before: before})
		} else if before != after {
			cs.Notes = append(cs.Notes, NoteChange{Type: Modified, ID: id, Before: before, After: after})
		}
	}
	for id, after := range toNotes {
		if _, ok := fromNotes[id]; !ok {
			cs.Notes = append(cs.Notes, NoteChange{Type: Added, ID: id, After: after})
		}
	}
	sortNoteChanges(cs.Notes)

	fromCtrl, toCtrl := from.ControllerIndex(), to.ControllerIndex()
	for id, before := range fromCtrl {
		after, ok := toCtrl[id]
		if !ok {
			cs.Controllers = append(cs.Controllers, ControllerChange{Type: Removed, ID: id, Before: before})
		} else if before != after {
			cs.Controllers = append(cs.Controllers, ControllerChange{Type: Modified, ID: id, Before: before, After: after})
		}
	}
	for id, after := range toCtrl {
		if _, ok := fromCtrl[id]; !ok {
			cs.Controllers = append(cs.Controllers, ControllerChange{Type: Added, ID: id, After: after})
		}
	}
	sortControllerChanges(cs.Controllers)

	return cs
}

// Snapshots diffs two snapshots region by region. Regions present only in
// |to| are RegionAdded with every event Added; regions present only in
// |from| are RegionRemoved with every event Removed. Output is ordered by
// region id.
func Snapshots(from, to score.Snapshot) []RegionChangeSet {
	ids := map[string]struct{}{}
	for id := range from.Regions {
		ids[id] = struct{}{}
	}
	for id := range to.Regions {
		ids[id] = struct{}{}
	}

	ordered := make([]string, 0, len(ids))
	for id := range ids {
		ordered = append(ordered, id)
	}
	sort.Strings(ordered)

	var out []RegionChangeSet
	for _, id := range ordered {
		fromRegion, inFrom := from.Region(id)
		toRegion, inTo := to.Region(id)

		cs := Regions(fromRegion, toRegion)
		cs.RegionAdded = !inFrom && inTo
		cs.RegionRemoved = inFrom && !inTo
		if !cs.IsEmpty() {
			out = append(out, cs)
		}
	}
	return out
}

func sortNoteChanges(changes []NoteChange) {
	sort.SliceStable(changes, func(i, j int) bool {
		a, b := changes[i].ID, changes[j].ID
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		return a.Pitch < b.Pitch
	})
}

func sortControllerChanges(changes []ControllerChange) {
	sort.SliceStable(changes, func(i, j int) bool {
		a, b := changes[i].ID, changes[j].ID
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Controller != b.Controller {
			return a.Controller < b.Controller
		}
		return a.Position < b.Position
	})
}
