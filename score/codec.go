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
	"encoding/json"

	"github.com/scorehub/scorevc/store/hash"
)

// manifest is the serialized form of a Snapshot: regions in lexical id
// order, events in normalized order. Identical snapshots always encode to
// identical bytes, which is what makes snapshot manifests content-addressable.
type manifest struct {
	Regions []Region `json:"regions"`
}

// Encode returns the canonical byte encoding of the snapshot.
func Encode(s Snapshot) ([]byte, error) {
	m := manifest{Regions: make([]Region, 0, len(s.Regions))}
	for _, id := range s.RegionIDs() {
		m.Regions = append(m.Regions, s.Regions[id].normalize())
	}
	return json.Marshal(m)
}

// Decode parses a canonical snapshot encoding.
func Decode(data []byte) (Snapshot, error) {
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Snapshot{}, err
	}
	s := NewSnapshot()
	for _, r := range m.Regions {
		s.Regions[r.ID] = r
	}
	return s, nil
}

// HashOf returns the content hash of the snapshot's canonical encoding.
func HashOf(s Snapshot) (hash.Hash, error) {
	data, err := Encode(s)
	if err != nil {
		return hash.Hash{}, err
	}
	return hash.Of(data), nil
}

// Equal reports whether two snapshots have identical content.
func Equal(a, b Snapshot) bool {
	ah, aerr := HashOf(a)
	bh, berr := HashOf(b)
	if aerr != nil || berr != nil {
		return false
	}
	return ah == bh
}
