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

// Package scoredb is the revision engine: an append-only commit graph of
// immutable revisions, the merge-base resolver over it, and branch heads
// updated by compare-and-swap. The graph is an id-indexed arena (revision
// id to record) with a derived child index built on demand, not a pointer
// graph.
package scoredb

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/scorehub/scorevc/store/hash"
)

// RevisionID is an opaque revision identifier: a content hash for sealed
// revisions, a UUID for revisions minted before sealing. Ids are
// equality-comparable only and carry no ordering.
type RevisionID string

// CommitMeta carries the who/when/why of a revision.
type CommitMeta struct {
	Author    string    `json:"author"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Revision is one immutable node of the commit graph. Non-merge revisions
// have exactly one parent (a root has zero); merge revisions have exactly
// two distinct parents, neither an ancestor of the other.
type Revision struct {
	ID         RevisionID   `json:"id"`
	Parents    []RevisionID `json:"parents"`
	Meta       CommitMeta   `json:"meta"`
	SnapshotID hash.Hash    `json:"snapshotId"`
}

// IsRoot returns true if the revision has no parents.
func (r *Revision) IsRoot() bool {
	return len(r.Parents) == 0
}

// IsMerge returns true if the revision has a second parent.
func (r *Revision) IsMerge() bool {
	return len(r.Parents) == 2
}

// sealedPayload is the canonical byte content a sealed revision id is a
// digest of. The id field itself is excluded.
type sealedPayload struct {
	Parents    []RevisionID `json:"parents"`
	Meta       CommitMeta   `json:"meta"`
	SnapshotID string       `json:"snapshotId"`
}

func (r *Revision) sealedBytes() ([]byte, error) {
	parents := r.Parents
	if parents == nil {
		parents = []RevisionID{}
	}
	return json.Marshal(sealedPayload{
		Parents:    parents,
		Meta:       r.Meta,
		SnapshotID: r.SnapshotID.String(),
	})
}

// Seal computes and assigns the content-derived id for the revision.
func (r *Revision) Seal() error {
	data, err := r.sealedBytes()
	if err != nil {
		return err
	}
	r.ID = RevisionID(hash.Of(data).String())
	return nil
}

// Verify recomputes the sealed id and checks it against r.ID. A mismatch is
// an ErrProtocolViolation; ids that are not content hashes (UUIDs) pass
// unchecked.
func (r *Revision) Verify() error {
	if _, err := hash.Parse(string(r.ID)); err != nil {
		return nil
	}
	data, err := r.sealedBytes()
	if err != nil {
		return err
	}
	if want := RevisionID(hash.Of(data).String()); r.ID != want {
		return fmt.Errorf("%w: revision %s does not match its content hash", ErrProtocolViolation, r.ID)
	}
	return nil
}

// validateShape checks the parent-count invariant. Ancestry between merge
// parents is checked at graph insertion, where history is available.
func (r *Revision) validateShape() error {
	switch len(r.Parents) {
	case 0, 1:
		return nil
	case 2:
		if r.Parents[0] == r.Parents[1] {
			return fmt.Errorf("%w: merge revision %s has duplicate parents", ErrProtocolViolation, r.ID)
		}
		return nil
	default:
		return fmt.Errorf("%w: revision %s has %d parents", ErrProtocolViolation, r.ID, len(r.Parents))
	}
}
