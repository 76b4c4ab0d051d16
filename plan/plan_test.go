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

package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scorehub/scorevc/merge"
	"github.com/scorehub/scorevc/score"
)

func region(id string, notes ...score.NoteEvent) score.Region {
	return score.Region{ID: id, Track: "piano", Notes: notes}
}

func snapshotOf(regions ...score.Region) score.Snapshot {
	s := score.NewSnapshot()
	for _, r := range regions {
		s.Regions[r.ID] = r
	}
	return s
}

func TestBuildEmptyWhenStatesMatch(t *testing.T) {
	s := snapshotOf(region("r1", score.NoteEvent{Pitch: 60, Start: 0, Duration: 1, Velocity: 64}))

	p, err := Build(s, s.Clone())
	require.NoError(t, err)
	assert.True(t, p.IsEmpty())
	assert.Len(t, p.Hash, 64)
}

func TestBuildProducesOrderedOps(t *testing.T) {
	working := snapshotOf(
		region("r1",
			score.NoteEvent{Pitch: 60, Start: 0, Duration: 1, Velocity: 64},
			score.NoteEvent{Pitch: 62, Start: 2, Duration: 1, Velocity: 64}),
		region("r2", score.NoteEvent{Pitch: 40, Start: 0, Duration: 4, Velocity: 80}))
	target := snapshotOf(
		region("r1",
			score.NoteEvent{Pitch: 60, Start: 0, Duration: 1, Velocity: 100}, // modified
			score.NoteEvent{Pitch: 64, Start: 1, Duration: 1, Velocity: 64}), // added; pitch 62 removed
		region("r2", score.NoteEvent{Pitch: 40, Start: 0, Duration: 4, Velocity: 80}))

	p, err := Build(target, working)
	require.NoError(t, err)
	require.Len(t, p.Ops, 3)

	assert.Equal(t, OpModifyNote, p.Ops[0].Kind)
	assert.Equal(t, 100, p.Ops[0].Note.Velocity)
	assert.Equal(t, OpAddNote, p.Ops[1].Kind)
	assert.Equal(t, 64, p.Ops[1].Note.Pitch)
	assert.Equal(t, OpRemoveNote, p.Ops[2].Kind)
	assert.Equal(t, 62, p.Ops[2].Note.Pitch)

	for _, op := range p.Ops {
		assert.Equal(t, "r1", op.RegionID)
	}
}

func TestBuildHashIsStable(t *testing.T) {
	working := snapshotOf(region("r1", score.NoteEvent{Pitch: 60, Start: 0, Duration: 1, Velocity: 64}))
	target := snapshotOf(
		region("r1", score.NoteEvent{Pitch: 60, Start: 0, Duration: 1, Velocity: 90}),
		region("r2", score.NoteEvent{Pitch: 48, Start: 0, Duration: 2, Velocity: 70}))

	first, err := Build(target, working)
	require.NoError(t, err)
	second, err := Build(target.Clone(), working.Clone())
	require.NoError(t, err)

	assert.Equal(t, first.Hash, second.Hash)
	assert.Equal(t, first.Ops, second.Ops)
}

func TestBuildHashChangesWithTarget(t *testing.T) {
	working := snapshotOf(region("r1", score.NoteEvent{Pitch: 60, Start: 0, Duration: 1, Velocity: 64}))
	a := snapshotOf(region("r1", score.NoteEvent{Pitch: 60, Start: 0, Duration: 1, Velocity: 90}))
	b := snapshotOf(region("r1", score.NoteEvent{Pitch: 60, Start: 0, Duration: 1, Velocity: 91}))

	pa, err := Build(a, working)
	require.NoError(t, err)
	pb, err := Build(b, working)
	require.NoError(t, err)
	assert.NotEqual(t, pa.Hash, pb.Hash)
}

func TestApplyRealizesTarget(t *testing.T) {
	working := snapshotOf(
		region("r1",
			score.NoteEvent{Pitch: 60, Start: 0, Duration: 1, Velocity: 64},
			score.NoteEvent{Pitch: 62, Start: 2, Duration: 1, Velocity: 64}),
		region("gone", score.NoteEvent{Pitch: 30, Start: 0, Duration: 1, Velocity: 64}))
	target := snapshotOf(
		region("r1",
			score.NoteEvent{Pitch: 60, Start: 0, Duration: 1, Velocity: 100},
			score.NoteEvent{Pitch: 64, Start: 1, Duration: 1, Velocity: 64}),
		region("r3", score.NoteEvent{Pitch: 50, Start: 0, Duration: 2, Velocity: 75}))
	target.Regions["r3"] = score.Region{
		ID:    "r3",
		Track: "piano",
		Notes: target.Regions["r3"].Notes,
		Controllers: []score.ControllerEvent{
			{Kind: score.ControllerCC, Controller: 1, Position: 0, Value: 42},
		},
	}

	p, err := Build(target, working)
	require.NoError(t, err)

	got, err := Apply(p, working)
	require.NoError(t, err)
	assert.True(t, score.Equal(got, target))
}

func TestApplyControllerOps(t *testing.T) {
	working := snapshotOf(score.Region{ID: "r1", Controllers: []score.ControllerEvent{
		{Kind: score.ControllerCC, Controller: 1, Position: 0, Value: 10},
		{Kind: score.ControllerCC, Controller: 7, Position: 1, Value: 90},
	}})
	target := snapshotOf(score.Region{ID: "r1", Controllers: []score.ControllerEvent{
		{Kind: score.ControllerCC, Controller: 1, Position: 0, Value: 50},
	}})

	p, err := Build(target, working)
	require.NoError(t, err)
	require.Len(t, p.Ops, 2)

	got, err := Apply(p, working)
	require.NoError(t, err)
	assert.True(t, score.Equal(got, target))
}

func TestBuildFromMergeRefusesConflicts(t *testing.T) {
	res := merge.Result{Conflicts: []merge.Conflict{
		{Kind: merge.ConflictNote, RegionID: "r1", Description: "divergent velocity"},
	}}

	_, err := BuildFromMerge(res, score.NewSnapshot())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConflicted)

	var ce *ConflictedError
	require.ErrorAs(t, err, &ce)
	require.Len(t, ce.Conflicts, 1)
	assert.Equal(t, "r1", ce.Conflicts[0].RegionID)
}

func TestBuildFromMergeCleanResult(t *testing.T) {
	base := snapshotOf(region("r1", score.NoteEvent{Pitch: 60, Start: 0, Duration: 1, Velocity: 64}))
	left := base.WithRegion(region("r2", score.NoteEvent{Pitch: 62, Start: 0, Duration: 1, Velocity: 64}))

	res := merge.ThreeWay(base, left, base.Clone())
	require.True(t, res.Ok())

	p, err := BuildFromMerge(res, base)
	require.NoError(t, err)
	require.Len(t, p.Ops, 1)
	assert.Equal(t, OpAddNote, p.Ops[0].Kind)
	assert.Equal(t, "r2", p.Ops[0].RegionID)

	got, err := Apply(p, base)
	require.NoError(t, err)
	assert.True(t, score.Equal(got, res.Snapshot))
}
