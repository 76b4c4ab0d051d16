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

package score

import (
	"sort"
)

// Region is one (track, region) unit of content: an ordered note list plus
// its controller streams.
type Region struct {
	ID          string            `json:"id"`
	Track       string            `json:"track"`
	Notes       []NoteEvent       `json:"notes"`
	Controllers []ControllerEvent `json:"controllers,omitempty"`
}

// Snapshot is the materialized content reachable from a revision: region id
// to region content. Snapshots are immutable once sealed; mutate a copy.
type Snapshot struct {
	Regions map[string]Region `json:"regions"`
}

func NewSnapshot() Snapshot {
	return Snapshot{Regions: map[string]Region{}}
}

// IsEmpty returns true if the snapshot holds no regions.
func (s Snapshot) IsEmpty() bool {
	return len(s.Regions) == 0
}

// Region returns the region with |id| and whether it exists.
func (s Snapshot) Region(id string) (Region, bool) {
	r, ok := s.Regions[id]
	return r, ok
}

// WithRegion returns a copy of s with |r| added or replaced.
func (s Snapshot) WithRegion(r Region) Snapshot {
	out := s.Clone()
	out.Regions[r.ID] = r
	return out
}

// WithoutRegion returns a copy of s with region |id| removed.
func (s Snapshot) WithoutRegion(id string) Snapshot {
	out := s.Clone()
	delete(out.Regions, id)
	return out
}

// RegionIDs returns the region ids in lexical order.
func (s Snapshot) RegionIDs() []string {
	ids := make([]string, 0, len(s.Regions))
	for id := range s.Regions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// NoteCount returns the total number of notes across all regions.
func (s Snapshot) NoteCount() int {
	n := 0
	for _, r := range s.Regions {
		n += len(r.Notes)
	}
	return n
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := NewSnapshot()
	for id, r := range s.Regions {
		out.Regions[id] = r.Clone()
	}
	return out
}

// Clone returns a deep copy of the region.
func (r Region) Clone() Region {
	out := Region{ID: r.ID, Track: r.Track}
	if r.Notes != nil {
		out.Notes = make([]NoteEvent, len(r.Notes))
		copy(out.Notes, r.Notes)
	}
	if r.Controllers != nil {
		out.Controllers = make([]ControllerEvent, len(r.Controllers))
		copy(out.Controllers, r.Controllers)
	}
	return out
}

// NoteIndex returns the region's notes keyed by diff identity.
func (r Region) NoteIndex() map[NoteID]NoteEvent {
	idx := make(map[NoteID]NoteEvent, len(r.Notes))
	for _, n := range r.Notes {
		idx[n.ID()] = n
	}
	return idx
}

// ControllerIndex returns the region's controller events keyed by diff
// identity.
func (r Region) ControllerIndex() map[ControllerID]ControllerEvent {
	idx := make(map[ControllerID]ControllerEvent, len(r.Controllers))
	for _, c := range r.Controllers {
		idx[c.ID()] = c
	}
	return idx
}

// Validate checks every event in the region.
func (r Region) Validate() error {
	for _, n := range r.Notes {
		if err := n.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks every region in the snapshot.
func (s Snapshot) Validate() error {
	for _, r := range s.Regions {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// normalize sorts notes by (start, pitch, channel) and controllers by
// (kind, controller, position) so canonical encoding is order-insensitive.
func (r Region) normalize() Region {
	out := r.Clone()
	sort.SliceStable(out.Notes, func(i, j int) bool {
		a, b := out.Notes[i], out.Notes[j]
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		if a.Pitch != b.Pitch {
			return a.Pitch < b.Pitch
		}
		return a.Channel < b.Channel
	})
	sort.SliceStable(out.Controllers, func(i, j int) bool {
		a, b := out.Controllers[i], out.Controllers[j]
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
