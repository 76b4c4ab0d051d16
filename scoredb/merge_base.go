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

package scoredb

import (
	"context"
)

// MergeBase returns the nearest common ancestor of |a| and |b|, or
// ErrNoCommonAncestor for disconnected histories. Identical ids return that
// id; if one revision is an ancestor of the other, the ancestor is
// returned.
//
// Ancestor sets expand breadth-first over parent links from both ids in
// lockstep, testing for intersection after every level. Lockstep expansion
// keeps the intersection nearest on both deep linear chains and diamond
// topologies.
func (db *Database) MergeBase(ctx context.Context, a, b RevisionID) (RevisionID, error) {
	if _, err := db.Resolve(ctx, a); err != nil {
		return "", err
	}
	if _, err := db.Resolve(ctx, b); err != nil {
		return "", err
	}
	if a == b {
		return a, nil
	}

	seenA := map[RevisionID]struct{}{a: {}}
	seenB := map[RevisionID]struct{}{b: {}}
	frontierA := []RevisionID{a}
	frontierB := []RevisionID{b}

	// Frontier order follows parent order, so ties on diamond topologies
	// always resolve the same way.
	for len(frontierA) > 0 || len(frontierB) > 0 {
		var err error
		frontierA, err = db.expandFrontier(ctx, frontierA, seenA)
		if err != nil {
			return "", err
		}
		if id, ok := firstIntersection(frontierA, seenB); ok {
			return id, nil
		}

		frontierB, err = db.expandFrontier(ctx, frontierB, seenB)
		if err != nil {
			return "", err
		}
		if id, ok := firstIntersection(frontierB, seenA); ok {
			return id, nil
		}
	}

	return "", ErrNoCommonAncestor
}

// IsAncestor returns true if |anc| is an ancestor of |desc| (or the same
// revision).
func (db *Database) IsAncestor(ctx context.Context, anc, desc RevisionID) (bool, error) {
	if anc == desc {
		return true, nil
	}

	seen := map[RevisionID]struct{}{desc: {}}
	frontier := []RevisionID{desc}
	for len(frontier) > 0 {
		var err error
		frontier, err = db.expandFrontier(ctx, frontier, seen)
		if err != nil {
			return false, err
		}
		for _, id := range frontier {
			if id == anc {
				return true, nil
			}
		}
	}
	return false, nil
}

// expandFrontier replaces |frontier| with the unseen parents of its
// members, marking them seen. Revisions whose parents are absent from the
// graph terminate their chain silently; disconnected history is a valid
// state, not an error.
func (db *Database) expandFrontier(ctx context.Context, frontier []RevisionID, seen map[RevisionID]struct{}) ([]RevisionID, error) {
	var next []RevisionID
	for _, id := range frontier {
		rev, err := db.Resolve(ctx, id)
		if err != nil {
			continue
		}
		for _, p := range rev.Parents {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			next = append(next, p)
		}
	}
	return next, nil
}

func firstIntersection(frontier []RevisionID, other map[RevisionID]struct{}) (RevisionID, bool) {
	for _, id := range frontier {
		if _, ok := other[id]; ok {
			return id, true
		}
	}
	return "", false
}
