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

package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scorehub/scorevc/score"
)

func TestRegionsClassifiesNoteChanges(t *testing.T) {
	from := score.Region{ID: "r1", Track: "piano", Notes: []score.NoteEvent{
		{Pitch: 60, Start: 0, Duration: 1, Velocity: 90}, // kept
		{Pitch: 62, Start: 1, Duration: 1, Velocity: 90}, // removed
		{Pitch: 64, Start: 2, Duration: 1, Velocity: 90}, // modified
	}}
	to := score.Region{ID: "r1", Track: "piano", Notes: []score.NoteEvent{
		{Pitch: 60, Start: 0, Duration: 1, Velocity: 90},
		{Pitch: 64, Start: 2, Duration: 1, Velocity: 40},
		{Pitch: 67, Start: 3, Duration: 1, Velocity: 90}, // added
	}}

	cs := Regions(from, to)
	require.Len(t, cs.Notes, 3)

	byID := map[score.NoteID]NoteChange{}
	for _, c := range cs.Notes {
		byID[c.ID] = c
	}
	assert.Equal(t, Removed, byID[score.NoteID{Pitch: 62, Start: 1}].Type)
	assert.Equal(t, Modified, byID[score.NoteID{Pitch: 64, Start: 2}].Type)
	assert.Equal(t, 90, byID[score.NoteID{Pitch: 64, Start: 2}].Before.Velocity)
	assert.Equal(t, 40, byID[score.NoteID{Pitch: 64, Start: 2}].After.Velocity)
	assert.Equal(t, Added, byID[score.NoteID{Pitch: 67, Start: 3}].Type)
}

func TestRegionsDiffsControllerStreams(t *testing.T) {
	from := score.Region{ID: "r1", Controllers: []score.ControllerEvent{
		{Kind: score.ControllerCC, Controller: 1, Position: 0, Value: 10},
		{Kind: score.ControllerPitchBend, Position: 1, Value: 8192},
	}}
	to := score.Region{ID: "r1", Controllers: []score.ControllerEvent{
		{Kind: score.ControllerCC, Controller: 1, Position: 0, Value: 99},
	}}

	cs := Regions(from, to)
	require.Len(t, cs.Controllers, 2)

	assert.Equal(t, Modified, cs.Controllers[0].Type)
	assert.Equal(t, 99, cs.Controllers[0].After.Value)
	assert.Equal(t, Removed, cs.Controllers[1].Type)
}

func TestSnapshotsMarksRegionLifecycle(t *testing.T) {
	from := score.NewSnapshot().WithRegion(score.Region{ID: "r1", Track: "piano",
		Notes: []score.NoteEvent{{Pitch: 60, Start: 0, Duration: 1, Velocity: 90}}})
	to := score.NewSnapshot().WithRegion(score.Region{ID: "r2", Track: "bass",
		Notes: []score.NoteEvent{{Pitch: 40, Start: 0, Duration: 1, Velocity: 70}}})

	changes := Snapshots(from, to)
	require.Len(t, changes, 2)

	assert.Equal(t, "r1", changes[0].RegionID)
	assert.True(t, changes[0].RegionRemoved)
	assert.Equal(t, Removed, changes[0].Notes[0].Type)

	assert.Equal(t, "r2", changes[1].RegionID)
	assert.True(t, changes[1].RegionAdded)
	assert.Equal(t, Added, changes[1].Notes[0].Type)
}

func TestSnapshotsIdenticalInputsYieldNoChanges(t *testing.T) {
	s := score.NewSnapshot().WithRegion(score.Region{ID: "r1",
		Notes: []score.NoteEvent{{Pitch: 60, Start: 0, Duration: 1, Velocity: 90}}})

	assert.Empty(t, Snapshots(s, s.Clone()))
}

func TestSnapshotsOutputIsDeterministic(t *testing.T) {
	from := score.NewSnapshot()
	to := score.NewSnapshot().
		WithRegion(score.Region{ID: "zeta", Notes: []score.NoteEvent{{Pitch: 50, Start: 0, Duration: 1, Velocity: 1}}}).
		WithRegion(score.Region{ID: "alpha", Notes: []score.NoteEvent{{Pitch: 51, Start: 0, Duration: 1, Velocity: 1}}})

	first := Snapshots(from, to)
	second := Snapshots(from, to)
	require.Equal(t, first, second)
	assert.Equal(t, "alpha", first[0].RegionID)
	assert.Equal(t, "zeta", first[1].RegionID)
}
