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

// Package score models the musical content a revision seals: per-region note
// lists and controller streams. The engine treats this content as opaque
// structured data; it never interprets it musically.
package score

import (
	"errors"
	"fmt"
)

var ErrInvalidEvent = errors.New("invalid event")

// NoteEvent is a single note within a region. Diff identity within a region
// is (Pitch, Start); the remaining fields are payload.
type NoteEvent struct {
	Pitch    int     `json:"pitch"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	Velocity int     `json:"velocity"`
	Channel  int     `json:"channel"`
}

// NoteID is the diff identity of a note within its region.
type NoteID struct {
	Pitch int
	Start float64
}

func (n NoteEvent) ID() NoteID {
	return NoteID{Pitch: n.Pitch, Start: n.Start}
}

func (id NoteID) String() string {
	return fmt.Sprintf("note(%d@%g)", id.Pitch, id.Start)
}

// Validate enforces the MIDI-range invariants on the event payload.
func (n NoteEvent) Validate() error {
	if n.Pitch < 0 || n.Pitch > 127 {
		return fmt.Errorf("%w: pitch %d out of range [0,127]", ErrInvalidEvent, n.Pitch)
	}
	if n.Velocity < 0 || n.Velocity > 127 {
		return fmt.Errorf("%w: velocity %d out of range [0,127]", ErrInvalidEvent, n.Velocity)
	}
	if n.Duration <= 0 {
		return fmt.Errorf("%w: duration %g must be positive", ErrInvalidEvent, n.Duration)
	}
	return nil
}

// ControllerKind distinguishes the controller streams a region carries.
type ControllerKind string

const (
	ControllerCC         ControllerKind = "cc"
	ControllerPitchBend  ControllerKind = "pitch_bend"
	ControllerAftertouch ControllerKind = "aftertouch"
)

// ControllerEvent is one point in a region's controller stream. Diff
// identity is (Kind, Controller, Position); Value is payload. Controller is
// the CC number for ControllerCC and zero for the other kinds.
type ControllerEvent struct {
	Kind       ControllerKind `json:"kind"`
	Controller int            `json:"controller"`
	Position   float64        `json:"position"`
	Value      int            `json:"value"`
}

// ControllerID is the diff identity of a controller event within its region.
type ControllerID struct {
	Kind       ControllerKind
	Controller int
	Position   float64
}

func (c ControllerEvent) ID() ControllerID {
	return ControllerID{Kind: c.Kind, Controller: c.Controller, Position: c.Position}
}

func (id ControllerID) String() string {
	if id.Kind == ControllerCC {
		return fmt.Sprintf("cc%d@%g", id.Controller, id.Position)
	}
	return fmt.Sprintf("%s@%g", id.Kind, id.Position)
}
