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

// Package merge reconciles diverging edits with a three-way merge at
// note/controller granularity. Conflicts are a first-class return value,
// never an error: a merge either produces a merged snapshot with zero
// conflicts or a non-empty conflict list with no snapshot.
package merge

import (
	"fmt"

	"github.com/scorehub/scorevc/score"
)

// ConflictKind classifies a merge conflict.
type ConflictKind string

const (
	// ConflictNote: both sides changed the same note identity to different
	// payloads, or one side removed a note the other modified.
	ConflictNote ConflictKind = "note"

	// ConflictController: the controller-stream equivalent of ConflictNote.
	ConflictController ConflictKind = "controller"

	// ConflictRegionRemoved: one side removed a region the other edited.
	ConflictRegionRemoved ConflictKind = "region_removed"
)

// Conflict is one irreconcilable divergence, carrying the two divergent
// payloads. Left/Right hold score.NoteEvent, score.ControllerEvent or
// score.Region values depending on Kind; a removed side is nil.
type Conflict struct {
	Kind        ConflictKind `json:"kind"`
	RegionID    string       `json:"regionId"`
	Description string       `json:"description"`
	Left        any          `json:"left"`
	Right       any          `json:"right"`
}

func (c Conflict) String() string {
	return fmt.Sprintf("%s conflict in region %s: %s", c.Kind, c.RegionID, c.Description)
}

// Result is the outcome of a three-way merge. Exactly one of
// (HasSnapshot, len(Conflicts) > 0) holds — a conflicted merge never
// carries a partial snapshot.
type Result struct {
	Snapshot    score.Snapshot
	HasSnapshot bool
	Conflicts   []Conflict
	Stats       Stats
}

// Stats summarizes what the merge did.
type Stats struct {
	Adds          int
	Removes       int
	Modifications int
	AutoResolved  int
}

// Ok returns true if the merge produced a snapshot.
func (r Result) Ok() bool {
	return r.HasSnapshot
}
