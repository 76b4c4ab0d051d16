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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scorehub/scorevc/score"
)

func noteRegion(id string, notes ...score.NoteEvent) score.Region {
	return score.Region{ID: id, Track: "piano", Notes: notes}
}

func snapshotOf(regions ...score.Region) score.Snapshot {
	s := score.NewSnapshot()
	for _, r := range regions {
		s.Regions[r.ID] = r
	}
	return s
}

func TestDivergentVelocityEditsConflict(t *testing.T) {
	base := snapshotOf(noteRegion("r1", score.NoteEvent{Pitch: 60, Start: 0, Duration: 1, Velocity: 64}))
	left := snapshotOf(noteRegion("r1", score.NoteEvent{Pitch: 60, Start: 0, Duration: 1, Velocity: 50}))
	right := snapshotOf(noteRegion("r1", score.NoteEvent{Pitch: 60, Start: 0, Duration: 1, Velocity: 80}))

	res := ThreeWay(base, left, right)
	assert.False(t, res.Ok())
	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, ConflictNote, res.Conflicts[0].Kind)
	assert.Equal(t, "r1", res.Conflicts[0].RegionID)
	assert.Equal(t, 50, res.Conflicts[0].Left.(score.NoteEvent).Velocity)
	assert.Equal(t, 80, res.Conflicts[0].Right.(score.NoteEvent).Velocity)
}

func TestDisjointRegionAdditionsUnion(t *testing.T) {
	base := snapshotOf(noteRegion("r1", score.NoteEvent{Pitch: 60, Start: 0, Duration: 1, Velocity: 64}))
	left := base.WithRegion(noteRegion("r2", score.NoteEvent{Pitch: 62, Start: 0, Duration: 1, Velocity: 64}))
	right := base.WithRegion(noteRegion("r3", score.NoteEvent{Pitch: 64, Start: 0, Duration: 1, Velocity: 64}))

	res := ThreeWay(base, left, right)
	require.True(t, res.Ok())
	assert.Empty(t, res.Conflicts)
	assert.Equal(t, []string{"r1", "r2", "r3"}, res.Snapshot.RegionIDs())
	assert.Equal(t, 2, res.Stats.Adds)
}

func TestOneSideChangeAutoResolves(t *testing.T) {
	base := snapshotOf(noteRegion("r1", score.NoteEvent{Pitch: 60, Start: 0, Duration: 1, Velocity: 64}))
	left := snapshotOf(noteRegion("r1", score.NoteEvent{Pitch: 60, Start: 0, Duration: 1, Velocity: 100}))

	res := ThreeWay(base, left, base.Clone())
	require.True(t, res.Ok())
	assert.Equal(t, 100, res.Snapshot.Regions["r1"].Notes[0].Velocity)
	assert.Equal(t, 1, res.Stats.AutoResolved)
}

func TestAdditionsAtDifferentIdentitiesUnion(t *testing.T) {
	base := snapshotOf(noteRegion("r1", score.NoteEvent{Pitch: 60, Start: 0, Duration: 1, Velocity: 64}))
	left := snapshotOf(noteRegion("r1",
		score.NoteEvent{Pitch: 60, Start: 0, Duration: 1, Velocity: 64},
		score.NoteEvent{Pitch: 64, Start: 1, Duration: 1, Velocity: 64}))
	right := snapshotOf(noteRegion("r1",
		score.NoteEvent{Pitch: 60, Start: 0, Duration: 1, Velocity: 64},
		score.NoteEvent{Pitch: 67, Start: 2, Duration: 1, Velocity: 64}))

	res := ThreeWay(base, left, right)
	require.True(t, res.Ok())
	assert.Len(t, res.Snapshot.Regions["r1"].Notes, 3)
}

func TestIdenticalAdditionsDoNotConflict(t *testing.T) {
	base := snapshotOf(noteRegion("r1"))
	add := snapshotOf(noteRegion("r1", score.NoteEvent{Pitch: 72, Start: 4, Duration: 1, Velocity: 90}))

	res := ThreeWay(base, add, add.Clone())
	require.True(t, res.Ok())
	assert.Len(t, res.Snapshot.Regions["r1"].Notes, 1)
}

func TestRemovedOnBothSides(t *testing.T) {
	base := snapshotOf(noteRegion("r1",
		score.NoteEvent{Pitch: 60, Start: 0, Duration: 1, Velocity: 64},
		score.NoteEvent{Pitch: 62, Start: 1, Duration: 1, Velocity: 64}))
	both := snapshotOf(noteRegion("r1", score.NoteEvent{Pitch: 60, Start: 0, Duration: 1, Velocity: 64}))

	res := ThreeWay(base, both, both.Clone())
	require.True(t, res.Ok())
	assert.Len(t, res.Snapshot.Regions["r1"].Notes, 1)
}

func TestRemovedVersusModifiedConflicts(t *testing.T) {
	base := snapshotOf(noteRegion("r1", score.NoteEvent{Pitch: 60, Start: 0, Duration: 1, Velocity: 64}))
	removed := snapshotOf(noteRegion("r1"))
	modified := snapshotOf(noteRegion("r1", score.NoteEvent{Pitch: 60, Start: 0, Duration: 1, Velocity: 90}))

	res := ThreeWay(base, removed, modified)
	assert.False(t, res.Ok())
	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, ConflictNote, res.Conflicts[0].Kind)
	assert.Nil(t, res.Conflicts[0].Left)
	assert.Equal(t, 90, res.Conflicts[0].Right.(score.NoteEvent).Velocity)
}

func TestRegionRemovedVersusEditedConflicts(t *testing.T) {
	base := snapshotOf(noteRegion("r1", score.NoteEvent{Pitch: 60, Start: 0, Duration: 1, Velocity: 64}))
	removed := score.NewSnapshot()
	edited := snapshotOf(noteRegion("r1", score.NoteEvent{Pitch: 60, Start: 0, Duration: 1, Velocity: 90}))

	res := ThreeWay(base, removed, edited)
	assert.False(t, res.Ok())
	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, ConflictRegionRemoved, res.Conflicts[0].Kind)
}

func TestRegionRemovedUneditedIsClean(t *testing.T) {
	base := snapshotOf(noteRegion("r1", score.NoteEvent{Pitch: 60, Start: 0, Duration: 1, Velocity: 64}))
	removed := score.NewSnapshot()

	res := ThreeWay(base, removed, base.Clone())
	require.True(t, res.Ok())
	assert.True(t, res.Snapshot.IsEmpty())
}

func TestControllerStreamsUseSameRules(t *testing.T) {
	baseRegion := score.Region{ID: "r1", Controllers: []score.ControllerEvent{
		{Kind: score.ControllerCC, Controller: 1, Position: 0, Value: 10},
	}}
	leftRegion := score.Region{ID: "r1", Controllers: []score.ControllerEvent{
		{Kind: score.ControllerCC, Controller: 1, Position: 0, Value: 20},
	}}
	rightRegion := score.Region{ID: "r1", Controllers: []score.ControllerEvent{
		{Kind: score.ControllerCC, Controller: 1, Position: 0, Value: 30},
	}}

	res := ThreeWay(snapshotOf(baseRegion), snapshotOf(leftRegion), snapshotOf(rightRegion))
	assert.False(t, res.Ok())
	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, ConflictController, res.Conflicts[0].Kind)

	// One-sided controller edits resolve cleanly.
	res = ThreeWay(snapshotOf(baseRegion), snapshotOf(leftRegion), snapshotOf(baseRegion))
	require.True(t, res.Ok())
	assert.Equal(t, 20, res.Snapshot.Regions["r1"].Controllers[0].Value)
}

func TestConflictDetectionIsSymmetric(t *testing.T) {
	base := snapshotOf(noteRegion("r1", score.NoteEvent{Pitch: 60, Start: 0, Duration: 1, Velocity: 64}))
	left := snapshotOf(noteRegion("r1", score.NoteEvent{Pitch: 60, Start: 0, Duration: 1, Velocity: 50}))
	right := snapshotOf(noteRegion("r1", score.NoteEvent{Pitch: 60, Start: 0, Duration: 1, Velocity: 80}))

	forward := ThreeWay(base, left, right)
	backward := ThreeWay(base, right, left)

	require.Len(t, forward.Conflicts, 1)
	require.Len(t, backward.Conflicts, 1)
	assert.Equal(t, forward.Conflicts[0].Left, backward.Conflicts[0].Right)
	assert.Equal(t, forward.Conflicts[0].Right, backward.Conflicts[0].Left)
}

func TestMergeIsDeterministic(t *testing.T) {
	base := snapshotOf(
		noteRegion("r1", score.NoteEvent{Pitch: 60, Start: 0, Duration: 1, Velocity: 64}),
		noteRegion("r9", score.NoteEvent{Pitch: 40, Start: 0, Duration: 2, Velocity: 64}))
	left := base.WithRegion(noteRegion("r2", score.NoteEvent{Pitch: 62, Start: 0, Duration: 1, Velocity: 64}))
	right := base.WithRegion(noteRegion("r3", score.NoteEvent{Pitch: 65, Start: 0, Duration: 1, Velocity: 64}))

	first := ThreeWay(base, left, right)
	second := ThreeWay(base, left, right)
	require.True(t, first.Ok())
	require.True(t, second.Ok())

	fe, err := score.Encode(first.Snapshot)
	require.NoError(t, err)
	se, err := score.Encode(second.Snapshot)
	require.NoError(t, err)
	assert.Equal(t, fe, se, "identical inputs must produce byte-identical merges")
}

func TestConflictedMergeCarriesNoSnapshot(t *testing.T) {
	base := snapshotOf(noteRegion("r1", score.NoteEvent{Pitch: 60, Start: 0, Duration: 1, Velocity: 64}))
	left := snapshotOf(
		noteRegion("r1", score.NoteEvent{Pitch: 60, Start: 0, Duration: 1, Velocity: 50}),
		noteRegion("r2", score.NoteEvent{Pitch: 70, Start: 0, Duration: 1, Velocity: 64}))
	right := snapshotOf(noteRegion("r1", score.NoteEvent{Pitch: 60, Start: 0, Duration: 1, Velocity: 80}))

	res := ThreeWay(base, left, right)
	assert.False(t, res.Ok())
	assert.NotEmpty(t, res.Conflicts)
	// All-or-nothing: the clean r2 addition must not leak out.
	assert.True(t, res.Snapshot.IsEmpty())
}
