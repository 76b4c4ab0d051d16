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

package merge

import (
	"fmt"
	"sort"

	"github.com/scorehub/scorevc/diff"
	"github.com/scorehub/scorevc/score"
)

// ThreeWay merges |left| and |right| against their common ancestor |base|.
// It is pure and deterministic: identical inputs always produce
// byte-identical output, regardless of call order or process.
//
// Per region, per event identity: unchanged on both sides keeps the base;
// changed on exactly one side takes the change; independent additions
// union; divergent edits of the same identity conflict; removal on one side
// with modification on the other conflicts. A region removed on one side
// and edited on the other is a region_removed conflict.
func ThreeWay(base, left, right score.Snapshot) Result {
	var (
		conflicts []Conflict
		stats     Stats
	)
	merged := map[string]score.Region{}

	for _, id := range unionRegionIDs(base, left, right) {
		b, inBase := base.Region(id)
		l, inLeft := left.Region(id)
		r, inRight := right.Region(id)

		switch {
		case inBase && !inLeft && !inRight:
			// Removed on both sides.
			stats.Removes += len(b.Notes) + len(b.Controllers)

		case inBase && !inLeft:
			if regionEdited(b, r) {
				rCopy := r.Clone()
				conflicts = append(conflicts, Conflict{
					Kind:        ConflictRegionRemoved,
					RegionID:    id,
					Description: fmt.Sprintf("region %s removed on one side but modified on the other", id),
					Left:        nil,
					Right:       rCopy,
				})
			} else {
				stats.Removes += len(b.Notes) + len(b.Controllers)
			}

		case inBase && !inRight:
			if regionEdited(b, l) {
				lCopy := l.Clone()
				conflicts = append(conflicts, Conflict{
					Kind:        ConflictRegionRemoved,
					RegionID:    id,
					Description: fmt.Sprintf("region %s removed on one side but modified on the other", id),
					Left:        lCopy,
					Right:       nil,
				})
			} else {
				stats.Removes += len(b.Notes) + len(b.Controllers)
			}

		case !inBase && inLeft && !inRight:
			merged[id] = l.Clone()
			stats.Adds += len(l.Notes) + len(l.Controllers)

		case !inBase && !inLeft && inRight:
			merged[id] = r.Clone()
			stats.Adds += len(r.Notes) + len(r.Controllers)

		default:
			// Present on both sides (base region may be absent when both
			// sides added the same region id independently).
			region, cs := mergeRegion(id, b, l, r, &stats)
			if len(cs) > 0 {
				conflicts = append(conflicts, cs...)
			} else {
				merged[id] = region
			}
		}
	}

	if len(conflicts) > 0 {
		return Result{Conflicts: conflicts, Stats: stats}
	}
	return Result{Snapshot: score.Snapshot{Regions: merged}, HasSnapshot: true, Stats: stats}
}

// regionEdited returns true if |edited| differs from |base| in any event.
func regionEdited(base, edited score.Region) bool {
	return !diff.Regions(base, edited).IsEmpty()
}

func mergeRegion(id string, base, left, right score.Region, stats *Stats) (score.Region, []Conflict) {
	out := score.Region{ID: id, Track: pickTrack(base, left, right)}
	var conflicts []Conflict

	notes, noteConflicts := mergeNotes(id, base, left, right, stats)
	conflicts = append(conflicts, noteConflicts...)
	out.Notes = notes

	ctrls, ctrlConflicts := mergeControllers(id, base, left, right, stats)
	conflicts = append(conflicts, ctrlConflicts...)
	out.Controllers = ctrls

	return out, conflicts
}

func pickTrack(base, left, right score.Region) string {
	if left.Track != "" {
		return left.Track
	}
	if right.Track != "" {
		return right.Track
	}
	return base.Track
}

func mergeNotes(regionID string, base, left, right score.Region, stats *Stats) ([]score.NoteEvent, []Conflict) {
	bIdx, lIdx, rIdx := base.NoteIndex(), left.NoteIndex(), right.NoteIndex()

	var merged []score.NoteEvent
	var conflicts []Conflict

	keep := func(n score.NoteEvent) {
		merged = append(merged, n)
	}

	for _, nid := range sortedNoteIDs(bIdx, lIdx, rIdx) {
		b, inB := bIdx[nid]
		l, inL := lIdx[nid]
		r, inR := rIdx[nid]

		if inB {
			lSame := inL && l == b
			rSame := inR && r == b

			switch {
			case lSame && rSame:
				keep(b)
			case lSame:
				// Right side decides.
				if inR {
					keep(r)
					stats.Modifications++
					stats.AutoResolved++
				} else {
					stats.Removes++
					stats.AutoResolved++
				}
			case rSame:
				if inL {
					keep(l)
					stats.Modifications++
					stats.AutoResolved++
				} else {
					stats.Removes++
					stats.AutoResolved++
				}
			case !inL && !inR:
				// Removed on both sides.
				stats.Removes++
			case inL && inR && l == r:
				// Both sides made the identical edit.
				keep(l)
				stats.Modifications++
			case !inL:
				conflicts = append(conflicts, noteConflict(regionID, nid,
					"removed on one side but modified on the other", nil, &r))
			case !inR:
				conflicts = append(conflicts, noteConflict(regionID, nid,
					"removed on one side but modified on the other", &l, nil))
			default:
				conflicts = append(conflicts, noteConflict(regionID, nid,
					"modified to different payloads on both sides", &l, &r))
			}
			continue
		}

		// Not in base: pure additions.
		switch {
		case inL && inR && l == r:
			keep(l)
			stats.Adds++
		case inL && inR:
			conflicts = append(conflicts, noteConflict(regionID, nid,
				"added with different payloads on both sides", &l, &r))
		case inL:
			keep(l)
			stats.Adds++
		case inR:
			keep(r)
			stats.Adds++
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		a, b := merged[i], merged[j]
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		if a.Pitch != b.Pitch {
			return a.Pitch < b.Pitch
		}
		return a.Channel < b.Channel
	})
	return merged, conflicts
}

func mergeControllers(regionID string, base, left, right score.Region, stats *Stats) ([]score.ControllerEvent, []Conflict) {
	bIdx, lIdx, rIdx := base.ControllerIndex(), left.ControllerIndex(), right.ControllerIndex()

	var merged []score.ControllerEvent
	var conflicts []Conflict

	for _, cid := range sortedControllerIDs(bIdx, lIdx, rIdx) {
		b, inB := bIdx[cid]
		l, inL := lIdx[cid]
		r, inR := rIdx[cid]

		if inB {
			lSame := inL && l == b
			rSame := inR && r == b

			switch {
			case lSame && rSame:
				merged = append(merged, b)
			case lSame:
				if inR {
					merged = append(merged, r)
					stats.Modifications++
					stats.AutoResolved++
				} else {
					stats.Removes++
					stats.AutoResolved++
				}
			case rSame:
				if inL {
					merged = append(merged, l)
					stats.Modifications++
					stats.AutoResolved++
				} else {
					stats.Removes++
					stats.AutoResolved++
				}
			case !inL && !inR:
				stats.Removes++
			case inL && inR && l == r:
				merged = append(merged, l)
				stats.Modifications++
			case !inL:
				conflicts = append(conflicts, controllerConflict(regionID, cid,
					"removed on one side but modified on the other", nil, &r))
			case !inR:
				conflicts = append(conflicts, controllerConflict(regionID, cid,
					"removed on one side but modified on the other", &l, nil))
			default:
				conflicts = append(conflicts, controllerConflict(regionID, cid,
					"modified to different payloads on both sides", &l, &r))
			}
			continue
		}

		switch {
		case inL && inR && l == r:
			merged = append(merged, l)
			stats.Adds++
		case inL && inR:
			conflicts = append(conflicts, controllerConflict(regionID, cid,
				"added with different payloads on both sides", &l, &r))
		case inL:
			merged = append(merged, l)
			stats.Adds++
		case inR:
			merged = append(merged, r)
			stats.Adds++
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		a, b := merged[i], merged[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Controller != b.Controller {
			return a.Controller < b.Controller
		}
		return a.Position < b.Position
	})
	return merged, conflicts
}

func noteConflict(regionID string, id score.NoteID, desc string, left, right *score.NoteEvent) Conflict {
	c := Conflict{
		Kind:        ConflictNote,
		RegionID:    regionID,
		Description: fmt.Sprintf("%s %s", id, desc),
	}
	if left != nil {
		c.Left = *left
	}
	if right != nil {
		c.Right = *right
	}
	return c
}

func controllerConflict(regionID string, id score.ControllerID, desc string, left, right *score.ControllerEvent) Conflict {
	c := Conflict{
		Kind:        ConflictController,
		RegionID:    regionID,
		Description: fmt.Sprintf("%s %s", id, desc),
	}
	if left != nil {
		c.Left = *left
	}
	if right != nil {
		c.Right = *right
	}
	return c
}

func unionRegionIDs(snaps ...score.Snapshot) []string {
	set := map[string]struct{}{}
	for _, s := range snaps {
		for id := range s.Regions {
			set[id] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func sortedNoteIDs(idxs ...map[score.NoteID]score.NoteEvent) []score.NoteID {
	set := map[score.NoteID]struct{}{}
	for _, idx := range idxs {
		for id := range idx {
			set[id] = struct{}{}
		}
	}
	out := make([]score.NoteID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		return out[i].Pitch < out[j].Pitch
	})
	return out
}

func sortedControllerIDs(idxs ...map[score.ControllerID]score.ControllerEvent) []score.ControllerID {
	set := map[score.ControllerID]struct{}{}
	for _, idx := range idxs {
		for id := range idx {
			set[id] = struct{}{}
		}
	}
	out := make([]score.ControllerID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Controller != b.Controller {
			return a.Controller < b.Controller
		}
		return a.Position < b.Position
	})
	return out
}
