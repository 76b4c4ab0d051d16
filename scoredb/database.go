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
	"fmt"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/scorehub/scorevc/score"
	"github.com/scorehub/scorevc/store/hash"
	"github.com/scorehub/scorevc/store/objects"
)

const snapshotCacheSize = 256

// Database is one repository: its revision graph, branch heads and backing
// object store. Snapshot materializations are cached per revision.
type Database struct {
	mu        sync.RWMutex
	revisions map[RevisionID]*Revision
	children  map[RevisionID][]RevisionID // derived; nil until built, reset on insert

	branches *BranchSet
	store    objects.Store
	cache    *lru.Cache[RevisionID, score.Snapshot]
}

func NewDatabase(store objects.Store) *Database {
	cache, err := lru.New[RevisionID, score.Snapshot](snapshotCacheSize)
	if err != nil {
		// Only fails for a non-positive size.
		panic(err)
	}
	return &Database{
		revisions: map[RevisionID]*Revision{},
		branches:  NewBranchSet(),
		store:     store,
		cache:     cache,
	}
}

// Branches returns the branch head table for this database.
func (db *Database) Branches() *BranchSet {
	return db.branches
}

// Store returns the backing object store.
func (db *Database) Store() objects.Store {
	return db.store
}

// Resolve returns the revision with |id|. Revisions are immutable; callers
// must not modify the returned value.
func (db *Database) Resolve(ctx context.Context, id RevisionID) (*Revision, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rev, ok := db.revisions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRevisionNotFound, id)
	}
	return rev, nil
}

// Has returns true if the revision is present.
func (db *Database) Has(id RevisionID) bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	_, ok := db.revisions[id]
	return ok
}

// Insert adds a revision to the graph. Inserting an already-present id is a
// no-op. Sealed ids are verified against content, the parent-shape invariant
// is enforced, and for merge revisions whose parents are both resolvable the
// parents must not be ancestors of one another. Violations are fatal
// ErrProtocolViolation failures.
func (db *Database) Insert(ctx context.Context, rev *Revision) error {
	if rev.ID == "" {
		return fmt.Errorf("%w: revision has no id", ErrProtocolViolation)
	}
	if err := rev.Verify(); err != nil {
		return err
	}
	if err := rev.validateShape(); err != nil {
		return err
	}

	if rev.IsMerge() && db.Has(rev.Parents[0]) && db.Has(rev.Parents[1]) {
		for _, pair := range [][2]RevisionID{
			{rev.Parents[0], rev.Parents[1]},
			{rev.Parents[1], rev.Parents[0]},
		} {
			anc, err := db.IsAncestor(ctx, pair[0], pair[1])
			if err != nil {
				return err
			}
			if anc {
				return fmt.Errorf("%w: merge revision %s parent %s is an ancestor of parent %s",
					ErrProtocolViolation, rev.ID, pair[0], pair[1])
			}
		}
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.revisions[rev.ID]; ok {
		return nil
	}
	db.revisions[rev.ID] = rev
	db.children = nil
	return nil
}

// Parents returns the parent ids of |id|.
func (db *Database) Parents(ctx context.Context, id RevisionID) ([]RevisionID, error) {
	rev, err := db.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	return rev.Parents, nil
}

// Children returns the derived child ids of |id|, in lexical order. The
// reverse-adjacency index is built on demand and discarded on insert.
func (db *Database) Children(id RevisionID) []RevisionID {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.children == nil {
		db.children = map[RevisionID][]RevisionID{}
		for _, rev := range db.revisions {
			for _, p := range rev.Parents {
				db.children[p] = append(db.children[p], rev.ID)
			}
		}
		for _, kids := range db.children {
			sort.Slice(kids, func(i, j int) bool { return kids[i] < kids[j] })
		}
	}
	return db.children[id]
}

// All returns every revision, ordered by timestamp then id so output is
// stable across runs.
func (db *Database) All() []*Revision {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := make([]*Revision, 0, len(db.revisions))
	for _, rev := range db.revisions {
		out = append(out, rev)
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := out[i].Meta.Timestamp, out[j].Meta.Timestamp
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Len returns the number of revisions in the graph.
func (db *Database) Len() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.revisions)
}

// Snapshot materializes the content at |id|, reading the revision's sealed
// manifest from the object store. Materializations are cached.
func (db *Database) Snapshot(ctx context.Context, id RevisionID) (score.Snapshot, error) {
	if snap, ok := db.cache.Get(id); ok {
		return snap, nil
	}

	rev, err := db.Resolve(ctx, id)
	if err != nil {
		return score.Snapshot{}, err
	}

	obj, err := db.store.Get(ctx, rev.SnapshotID)
	if err != nil {
		return score.Snapshot{}, err
	}
	if obj.IsEmpty() {
		return score.Snapshot{}, fmt.Errorf("%w: snapshot object %s for revision %s",
			ErrRevisionNotFound, rev.SnapshotID, id)
	}

	snap, err := score.Decode(obj.Content())
	if err != nil {
		return score.Snapshot{}, fmt.Errorf("%w: undecodable snapshot for revision %s: %v",
			ErrProtocolViolation, id, err)
	}

	db.cache.Add(id, snap)
	return snap, nil
}

// WriteSnapshot seals |snap| into the object store under |path| and returns
// its content id.
func (db *Database) WriteSnapshot(ctx context.Context, path string, snap score.Snapshot) (hash.Hash, error) {
	data, err := score.Encode(snap)
	if err != nil {
		return hash.Hash{}, err
	}
	obj := objects.NewObject(path, data)
	if err := db.store.Put(ctx, obj); err != nil {
		return hash.Hash{}, err
	}
	return obj.ID(), nil
}

// Commit seals |snap| and appends a revision on |branch|, whose parent is
// the branch's current head (none for the first commit). The head moves by
// compare-and-swap, so a concurrent commit to the same branch loses with
// ErrHeadMoved rather than silently clobbering.
func (db *Database) Commit(ctx context.Context, branch, path string, snap score.Snapshot, meta CommitMeta) (*Revision, error) {
	return db.commit(ctx, branch, path, snap, meta, nil)
}

// CommitMerge is Commit with a second parent: the branch head plus
// |mergeParent|.
func (db *Database) CommitMerge(ctx context.Context, branch, path string, snap score.Snapshot, meta CommitMeta, mergeParent RevisionID) (*Revision, error) {
	if !db.Has(mergeParent) {
		return nil, fmt.Errorf("%w: merge parent %s", ErrRevisionNotFound, mergeParent)
	}
	return db.commit(ctx, branch, path, snap, meta, &mergeParent)
}

func (db *Database) commit(ctx context.Context, branch, path string, snap score.Snapshot, meta CommitMeta, mergeParent *RevisionID) (*Revision, error) {
	if err := snap.Validate(); err != nil {
		return nil, err
	}

	snapID, err := db.WriteSnapshot(ctx, path, snap)
	if err != nil {
		return nil, err
	}

	head, hasHead := db.branches.Head(branch)

	var parents []RevisionID
	if hasHead {
		parents = append(parents, head)
	}
	if mergeParent != nil {
		if !hasHead {
			return nil, fmt.Errorf("%w: cannot merge into branch %q with no head", ErrBranchNotFound, branch)
		}
		if *mergeParent == head {
			return nil, ErrUpToDate
		}
		parents = append(parents, *mergeParent)
	}

	rev := &Revision{Parents: parents, Meta: meta, SnapshotID: snapID}
	if err := rev.Seal(); err != nil {
		return nil, err
	}
	if err := db.Insert(ctx, rev); err != nil {
		return nil, err
	}

	var old *RevisionID
	if hasHead {
		old = &head
	}
	if err := db.branches.CompareAndSwap(branch, old, rev.ID); err != nil {
		return nil, err
	}
	db.cache.Add(rev.ID, snap.Clone())
	return rev, nil
}
