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
	"fmt"
	"sort"
	"sync"
)

// Branch is a named head pointer.
type Branch struct {
	Name string     `json:"name"`
	Head RevisionID `json:"head"`
}

// BranchSet maps branch names to head revision ids. Heads are shared
// mutable state; every update goes through CompareAndSwap so concurrent
// writers cannot silently clobber one another.
type BranchSet struct {
	mu    sync.Mutex
	heads map[string]RevisionID
}

func NewBranchSet() *BranchSet {
	return &BranchSet{heads: map[string]RevisionID{}}
}

// Head returns the head of |name| and whether the branch exists.
func (bs *BranchSet) Head(name string) (RevisionID, bool) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	head, ok := bs.heads[name]
	return head, ok
}

// CompareAndSwap moves |name| to |newHead| iff the current head matches
// |old|. A nil |old| asserts the branch does not exist yet. Returns
// ErrHeadMoved when the expectation fails.
func (bs *BranchSet) CompareAndSwap(name string, old *RevisionID, newHead RevisionID) error {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	current, exists := bs.heads[name]
	if old == nil {
		if exists {
			return fmt.Errorf("%w: branch %q already exists at %s", ErrHeadMoved, name, current)
		}
	} else if !exists || current != *old {
		return fmt.Errorf("%w: branch %q expected %s", ErrHeadMoved, name, *old)
	}

	bs.heads[name] = newHead
	return nil
}

// List returns all branches in name order.
func (bs *BranchSet) List() []Branch {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	out := make([]Branch, 0, len(bs.heads))
	for name, head := range bs.heads {
		out = append(out, Branch{Name: name, Head: head})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
