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

// Package history provides read-only analytics over the commit graph:
// topological ordering, a renderable DAG export, and per-note blame.
package history

import (
	"context"
	"sort"

	"github.com/scorehub/scorevc/scoredb"
)

// TopologicalOrder returns every revision id with parents before children.
// Ties break by (timestamp, id), so the order is stable across runs.
// Revisions whose parents never resolve (truncated histories) are appended
// at the end in timestamp order rather than dropped.
func TopologicalOrder(db *scoredb.Database) []scoredb.RevisionID {
	revs := db.All()
	present := make(map[scoredb.RevisionID]*scoredb.Revision, len(revs))
	for _, rev := range revs {
		present[rev.ID] = rev
	}
	return topoSort(revs, present)
}

func topoSort(revs []*scoredb.Revision, present map[scoredb.RevisionID]*scoredb.Revision) []scoredb.RevisionID {
	inDegree := make(map[scoredb.RevisionID]int, len(revs))
	children := make(map[scoredb.RevisionID][]scoredb.RevisionID, len(revs))
	for _, rev := range revs {
		degree := 0
		for _, p := range rev.Parents {
			if _, ok := present[p]; ok {
				degree++
				children[p] = append(children[p], rev.ID)
			}
		}
		inDegree[rev.ID] = degree
	}

	var ready []*scoredb.Revision
	for _, rev := range revs {
		if inDegree[rev.ID] == 0 {
			ready = append(ready, rev)
		}
	}

	byAge := func(a, b *scoredb.Revision) bool {
		if !a.Meta.Timestamp.Equal(b.Meta.Timestamp) {
			return a.Meta.Timestamp.Before(b.Meta.Timestamp)
		}
		return a.ID < b.ID
	}

	out := make([]scoredb.RevisionID, 0, len(revs))
	emitted := make(map[scoredb.RevisionID]struct{}, len(revs))
	for len(ready) > 0 {
		sort.SliceStable(ready, func(i, j int) bool { return byAge(ready[i], ready[j]) })
		next := ready[0]
		ready = ready[1:]

		out = append(out, next.ID)
		emitted[next.ID] = struct{}{}

		for _, childID := range children[next.ID] {
			inDegree[childID]--
			if inDegree[childID] == 0 {
				ready = append(ready, present[childID])
			}
		}
	}

	// Anything not emitted sits on a cycle-like malformation; surface it in
	// timestamp order instead of silently dropping history.
	var leftovers []*scoredb.Revision
	for _, rev := range revs {
		if _, ok := emitted[rev.ID]; !ok {
			leftovers = append(leftovers, rev)
		}
	}
	sort.SliceStable(leftovers, func(i, j int) bool { return byAge(leftovers[i], leftovers[j]) })
	for _, rev := range leftovers {
		out = append(out, rev.ID)
	}
	return out
}

// Edge is one child-to-parent link of the DAG.
type Edge struct {
	Child  scoredb.RevisionID `json:"child"`
	Parent scoredb.RevisionID `json:"parent"`
}

// Graph is a renderable export of the commit DAG: a topological index plus
// the edge list.
type Graph struct {
	Order []scoredb.RevisionID `json:"order"`
	Edges []Edge               `json:"edges"`
}

// Export builds the DAG export for the whole database. Edges follow the
// topological order of their child, parents in stored order, so the export
// is deterministic.
func Export(db *scoredb.Database) Graph {
	g := Graph{Order: TopologicalOrder(db)}
	for _, id := range g.Order {
		rev, err := db.Resolve(context.Background(), id)
		if err != nil {
			continue
		}
		for _, p := range rev.Parents {
			g.Edges = append(g.Edges, Edge{Child: id, Parent: p})
		}
	}
	return g
}

// Ancestors returns |from| plus every resolvable ancestor, as a set.
// Missing parents terminate their chains silently.
func Ancestors(ctx context.Context, db *scoredb.Database, from scoredb.RevisionID) (map[scoredb.RevisionID]*scoredb.Revision, error) {
	rev, err := db.Resolve(ctx, from)
	if err != nil {
		return nil, err
	}

	out := map[scoredb.RevisionID]*scoredb.Revision{from: rev}
	frontier := []scoredb.RevisionID{from}
	for len(frontier) > 0 {
		id := frontier[0]
		frontier = frontier[1:]
		for _, p := range out[id].Parents {
			if _, ok := out[p]; ok {
				continue
			}
			parent, err := db.Resolve(ctx, p)
			if err != nil {
				continue
			}
			out[p] = parent
			frontier = append(frontier, p)
		}
	}
	return out, nil
}

// Log returns the ancestors of |from| newest-first: the reversed
// topological order of the reachable subgraph.
func Log(ctx context.Context, db *scoredb.Database, from scoredb.RevisionID) ([]*scoredb.Revision, error) {
	subgraph, err := Ancestors(ctx, db, from)
	if err != nil {
		return nil, err
	}

	revs := make([]*scoredb.Revision, 0, len(subgraph))
	for _, rev := range subgraph {
		revs = append(revs, rev)
	}
	sort.SliceStable(revs, func(i, j int) bool {
		ti, tj := revs[i].Meta.Timestamp, revs[j].Meta.Timestamp
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return revs[i].ID < revs[j].ID
	})

	order := topoSort(revs, subgraph)
	index := make(map[scoredb.RevisionID]int, len(order))
	for i, id := range order {
		index[id] = i
	}
	sort.SliceStable(revs, func(i, j int) bool { return index[revs[i].ID] > index[revs[j].ID] })
	return revs, nil
}
