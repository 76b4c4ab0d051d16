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

// Package plan turns a target state into an ordered, hashable operation
// sequence against a working snapshot. The op sequence is canonically
// sorted, so identical (target, working) pairs always build the identical
// plan with the identical hash.
package plan

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/scorehub/scorevc/diff"
	"github.com/scorehub/scorevc/merge"
	"github.com/scorehub/scorevc/score"
)

// OpKind names one apply-operation.
type OpKind string

const (
	OpAddNote          OpKind = "add_note"
	OpRemoveNote       OpKind = "remove_note"
	OpModifyNote       OpKind = "modify_note"
	OpSetController    OpKind = "set_controller"
	OpRemoveController OpKind = "remove_controller"
)

// Op is a single apply-operation. Note is set for note ops, Controller for
// controller ops. For remove_note only the note identity fields matter; the
// full payload is carried anyway so applications can verify what they
// remove.
type Op struct {
	Kind       OpKind                 `json:"kind"`
	RegionID   string                 `json:"regionId"`
	Track      string                 `json:"track,omitempty"`
	Position   float64                `json:"position"`
	Note       *score.NoteEvent       `json:"note,omitempty"`
	Controller *score.ControllerEvent `json:"controller,omitempty"`
}

// Plan is an ordered apply-operation sequence plus the stable hash of its
// canonical form.
type Plan struct {
	Ops  []Op   `json:"ops"`
	Hash string `json:"hash"`
}

// IsEmpty returns true when the working state already matches the target.
func (p Plan) IsEmpty() bool {
	return len(p.Ops) == 0
}

// ConflictedError refuses plan building for a conflicted merge, surfacing
// the conflict list instead of a partial plan.
type ConflictedError struct {
	Conflicts []merge.Conflict
}

func (e *ConflictedError) Error() string {
	return fmt.Sprintf("cannot build a checkout plan from a merge with %d conflicts", len(e.Conflicts))
}

var ErrConflicted = errors.New("merge result has conflicts")

func (e *ConflictedError) Unwrap() error {
	return ErrConflicted
}

// Build computes the plan transforming |working| into |target|.
func Build(target, working score.Snapshot) (Plan, error) {
	var ops []Op
	for _, cs := range diff.Snapshots(working, target) {
		for _, nc := range cs.Notes {
			op := Op{RegionID: cs.RegionID, Track: cs.Track, Position: nc.ID.Start}
			switch nc.Type {
			case diff.Added:
				after := nc.After
				op.Kind, op.Note = OpAddNote, &after
			case diff.Removed:
				before := nc.Before
				op.Kind, op.Note = OpRemoveNote, &before
			case diff.Modified:
				after := nc.After
				op.Kind, op.Note = OpModifyNote, &after
			}
			ops = append(ops, op)
		}
		for _, cc := range cs.Controllers {
			op := Op{RegionID: cs.RegionID, Track: cs.Track, Position: cc.ID.Position}
			switch cc.Type {
			case diff.Removed:
				before := cc.Before
				op.Kind, op.Controller = OpRemoveController, &before
			default:
				after := cc.After
				op.Kind, op.Controller = OpSetController, &after
			}
			ops = append(ops, op)
		}
	}

	sortOps(ops)

	h, err := hashOps(ops)
	if err != nil {
		return Plan{}, err
	}
	return Plan{Ops: ops, Hash: h}, nil
}

// BuildFromMerge builds the plan realizing a merge result. When the merge
// had conflicts it refuses outright with a ConflictedError carrying them —
// never a partial plan.
func BuildFromMerge(res merge.Result, working score.Snapshot) (Plan, error) {
	if !res.Ok() {
		return Plan{}, &ConflictedError{Conflicts: res.Conflicts}
	}
	return Build(res.Snapshot, working)
}

// Apply replays the plan over |working| and returns the resulting
// snapshot. Applying the plan built by Build(target, working) yields a
// snapshot content-equal to target.
func Apply(p Plan, working score.Snapshot) (score.Snapshot, error) {
	out := working.Clone()
	for _, op := range p.Ops {
		region, ok := out.Region(op.RegionID)
		if !ok {
			region = score.Region{ID: op.RegionID, Track: op.Track}
		}

		switch op.Kind {
		case OpAddNote, OpModifyNote:
			if op.Note == nil {
				return score.Snapshot{}, fmt.Errorf("op %s on region %s has no note payload", op.Kind, op.RegionID)
			}
			idx := region.NoteIndex()
			idx[op.Note.ID()] = *op.Note
			region.Notes = notesFromIndex(idx)
		case OpRemoveNote:
			if op.Note == nil {
				return score.Snapshot{}, fmt.Errorf("op %s on region %s has no note payload", op.Kind, op.RegionID)
			}
			idx := region.NoteIndex()
			delete(idx, op.Note.ID())
			region.Notes = notesFromIndex(idx)
		case OpSetController:
			if op.Controller == nil {
				return score.Snapshot{}, fmt.Errorf("op %s on region %s has no controller payload", op.Kind, op.RegionID)
			}
			idx := region.ControllerIndex()
			idx[op.Controller.ID()] = *op.Controller
			region.Controllers = controllersFromIndex(idx)
		case OpRemoveController:
			if op.Controller == nil {
				return score.Snapshot{}, fmt.Errorf("op %s on region %s has no controller payload", op.Kind, op.RegionID)
			}
			idx := region.ControllerIndex()
			delete(idx, op.Controller.ID())
			region.Controllers = controllersFromIndex(idx)
		default:
			return score.Snapshot{}, fmt.Errorf("unknown op kind %q", op.Kind)
		}

		if len(region.Notes) == 0 && len(region.Controllers) == 0 {
			out = out.WithoutRegion(op.RegionID)
		} else {
			out.Regions[op.RegionID] = region
		}
	}
	return out, nil
}

// sortOps orders by (region, position, kind) — the canonical plan order.
func sortOps(ops []Op) {
	sort.SliceStable(ops, func(i, j int) bool {
		a, b := ops[i], ops[j]
		if a.RegionID != b.RegionID {
			return a.RegionID < b.RegionID
		}
		if a.Position != b.Position {
			return a.Position < b.Position
		}
		return a.Kind < b.Kind
	})
}

// hashOps returns the fixed-width hex digest of the canonical op encoding.
func hashOps(ops []Op) (string, error) {
	if ops == nil {
		ops = []Op{}
	}
	data, err := json.Marshal(ops)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func notesFromIndex(idx map[score.NoteID]score.NoteEvent) []score.NoteEvent {
	out := make([]score.NoteEvent, 0, len(idx))
	for _, n := range idx {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		if out[i].Pitch != out[j].Pitch {
			return out[i].Pitch < out[j].Pitch
		}
		return out[i].Channel < out[j].Channel
	})
	return out
}

func controllersFromIndex(idx map[score.ControllerID]score.ControllerEvent) []score.ControllerEvent {
	out := make([]score.ControllerEvent, 0, len(idx))
	for _, c := range idx {
		out = append(out, c)
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
