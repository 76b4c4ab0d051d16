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

// Package remotesrv hosts repositories for remote clients: push with a
// fast-forward guarantee, pull by have-set difference, branch listing. The
// HTTP layer is a thin JSON shim over the Hub, which owns all protocol
// semantics.
package remotesrv

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/scorehub/scorevc/remotesapi"
	"github.com/scorehub/scorevc/scoredb"
	"github.com/scorehub/scorevc/store/hash"
	"github.com/scorehub/scorevc/store/objects"
)

var (
	// ErrRepoNotFound is returned for pulls against a repository the hub
	// has never seen. Push creates repositories on demand instead.
	ErrRepoNotFound = errors.New("repository not found")

	// ErrBadRequest marks a structurally invalid protocol request.
	ErrBadRequest = errors.New("bad request")
)

// StoreFactory builds the object store backing a newly created repository.
type StoreFactory func(repoID string) (objects.Store, error)

// Hub owns every hosted repository. Push and pull are safe for concurrent
// use; head updates go through the branch set's compare-and-swap, so two
// racing pushes to one branch cannot both win.
type Hub struct {
	mu       sync.Mutex
	repos    map[string]*scoredb.Database
	newStore StoreFactory
	lgr      *logrus.Entry
}

// NewHub returns a Hub creating repositories with |newStore|, or in-memory
// stores when it is nil.
func NewHub(lgr *logrus.Entry, newStore StoreFactory) *Hub {
	if lgr == nil {
		lgr = logrus.NewEntry(logrus.StandardLogger())
	}
	if newStore == nil {
		newStore = func(string) (objects.Store, error) {
			return objects.NewMemoryStore(), nil
		}
	}
	return &Hub{
		repos:    map[string]*scoredb.Database{},
		newStore: newStore,
		lgr:      lgr,
	}
}

// Repo returns the database for |repoID| if it exists.
func (h *Hub) Repo(repoID string) (*scoredb.Database, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	db, ok := h.repos[repoID]
	return db, ok
}

func (h *Hub) ensureRepo(repoID string) (*scoredb.Database, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if db, ok := h.repos[repoID]; ok {
		return db, nil
	}
	store, err := h.newStore(repoID)
	if err != nil {
		return nil, err
	}
	db := scoredb.NewDatabase(store)
	h.repos[repoID] = db
	h.lgr.WithField("repo", repoID).Info("created repository")
	return db, nil
}

// Head returns the head of |branch| in |repoID|, if both exist.
func (h *Hub) Head(repoID, branch string) (scoredb.RevisionID, bool) {
	db, ok := h.Repo(repoID)
	if !ok {
		return "", false
	}
	return db.Branches().Head(branch)
}

// Branches lists the branches of |repoID|.
func (h *Hub) Branches(repoID string) ([]scoredb.Branch, error) {
	db, ok := h.Repo(repoID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRepoNotFound, repoID)
	}
	return db.Branches().List(), nil
}

// Push applies a push request. The repository and branch are created on
// demand. When the branch exists, the new head must descend from the
// current head through the parent links of the pushed batch alone; the hub
// never searches its own graph for the connection, so a client that pushes
// a divergent head with an incomplete batch is rejected with
// ErrNonFastForward rather than accepted by accident. Force skips the
// check. Revisions and objects are ingested idempotently, then the head
// moves by compare-and-swap.
//
// A push whose head is already the branch head, or whose head the batch
// shows to be an ancestor of the branch head, is a successful no-op.
func (h *Hub) Push(ctx context.Context, req remotesapi.PushRequest) (remotesapi.PushResponse, error) {
	if req.RepoID == "" || req.Branch == "" || req.NewHead == "" {
		return remotesapi.PushResponse{}, fmt.Errorf("%w: repoId, branch and newHead are required", ErrBadRequest)
	}

	db, err := h.ensureRepo(req.RepoID)
	if err != nil {
		return remotesapi.PushResponse{}, err
	}

	lgr := h.lgr.WithFields(logrus.Fields{
		"repo":    req.RepoID,
		"branch":  req.Branch,
		"newHead": req.NewHead,
	})

	newHead := scoredb.RevisionID(req.NewHead)
	head, exists := db.Branches().Head(req.Branch)

	if exists && !req.Force {
		switch err := canFastForward(req.Revisions, head, newHead); {
		case err == nil:
		case errors.Is(err, scoredb.ErrUpToDate), errors.Is(err, scoredb.ErrIsAhead):
			lgr.Info("push is a no-op, head unchanged")
			return remotesapi.PushResponse{OK: true, RemoteHead: string(head)}, nil
		default:
			lgr.WithField("remoteHead", head).Warn("rejecting non-fast-forward push")
			return remotesapi.PushResponse{}, err
		}
	}

	if err := h.ingest(ctx, db, req, lgr); err != nil {
		return remotesapi.PushResponse{}, err
	}
	if !db.Has(newHead) {
		return remotesapi.PushResponse{}, fmt.Errorf("%w: new head %s is neither pushed nor present", ErrBadRequest, newHead)
	}

	var old *scoredb.RevisionID
	if exists {
		old = &head
	}
	if err := db.Branches().CompareAndSwap(req.Branch, old, newHead); err != nil {
		return remotesapi.PushResponse{}, err
	}

	lgr.Info("push accepted")
	return remotesapi.PushResponse{OK: true, RemoteHead: req.NewHead}, nil
}

// canFastForward decides whether moving |head| to |newHead| is a
// fast-forward, consulting only the parent links carried by |batch|.
// Returns nil for a fast-forward, ErrUpToDate or ErrIsAhead for no-ops,
// and ErrNonFastForward otherwise.
func canFastForward(batch []remotesapi.Revision, head, newHead scoredb.RevisionID) error {
	if head == newHead {
		return scoredb.ErrUpToDate
	}

	parents := make(map[scoredb.RevisionID][]scoredb.RevisionID, len(batch))
	for _, rev := range batch {
		ps := make([]scoredb.RevisionID, len(rev.ParentIDs))
		for i, p := range rev.ParentIDs {
			ps[i] = scoredb.RevisionID(p)
		}
		parents[scoredb.RevisionID(rev.ID)] = ps
	}

	if batchReaches(parents, newHead, head) {
		return nil
	}
	if batchReaches(parents, head, newHead) {
		return scoredb.ErrIsAhead
	}
	return fmt.Errorf("%w: %s does not descend from %s in the pushed history", scoredb.ErrNonFastForward, newHead, head)
}

// batchReaches walks parent links in |parents| from |from|, reporting
// whether |to| is reachable. Ids absent from the map terminate their chain.
func batchReaches(parents map[scoredb.RevisionID][]scoredb.RevisionID, from, to scoredb.RevisionID) bool {
	seen := map[scoredb.RevisionID]struct{}{}
	frontier := []scoredb.RevisionID{from}
	for len(frontier) > 0 {
		id := frontier[0]
		frontier = frontier[1:]
		if id == to {
			return true
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		frontier = append(frontier, parents[id]...)
	}
	return false
}

// ingest stores the request's objects and revisions. Both are idempotent,
// so replaying a half-applied push converges instead of erroring.
func (h *Hub) ingest(ctx context.Context, db *scoredb.Database, req remotesapi.PushRequest, lgr *logrus.Entry) error {
	var byteCount uint64
	for _, wire := range req.Objects {
		obj, err := wire.ToObject()
		if err != nil {
			return fmt.Errorf("%w: %v", scoredb.ErrProtocolViolation, err)
		}
		if err := db.Store().Put(ctx, obj); err != nil {
			return err
		}
		byteCount += obj.Size()
	}

	for _, wire := range req.Revisions {
		rev, err := wire.ToRevision()
		if err != nil {
			return fmt.Errorf("%w: %v", scoredb.ErrProtocolViolation, err)
		}
		if err := db.Insert(ctx, rev); err != nil {
			return err
		}
	}

	lgr.WithFields(logrus.Fields{
		"revisions": len(req.Revisions),
		"objects":   len(req.Objects),
		"bytes":     humanize.Bytes(byteCount),
	}).Debug("ingested push payload")
	return nil
}

// Pull returns the branch head plus every revision and object the caller's
// have-sets lack. There is no ancestry traversal: presence is decided by id
// membership alone, so a pull after any successful push always converges.
func (h *Hub) Pull(ctx context.Context, req remotesapi.PullRequest) (remotesapi.PullResponse, error) {
	if req.RepoID == "" || req.Branch == "" {
		return remotesapi.PullResponse{}, fmt.Errorf("%w: repoId and branch are required", ErrBadRequest)
	}

	db, ok := h.Repo(req.RepoID)
	if !ok {
		return remotesapi.PullResponse{}, fmt.Errorf("%w: %s", ErrRepoNotFound, req.RepoID)
	}
	head, ok := db.Branches().Head(req.Branch)
	if !ok {
		return remotesapi.PullResponse{}, fmt.Errorf("%w: %s", scoredb.ErrBranchNotFound, req.Branch)
	}

	haveRevs := make(map[scoredb.RevisionID]struct{}, len(req.HaveRevisionIDs))
	for _, id := range req.HaveRevisionIDs {
		haveRevs[scoredb.RevisionID(id)] = struct{}{}
	}

	resp := remotesapi.PullResponse{RemoteHead: string(head)}
	for _, rev := range db.All() {
		if _, ok := haveRevs[rev.ID]; !ok {
			resp.Revisions = append(resp.Revisions, remotesapi.FromRevision(rev))
		}
	}

	want, err := db.Store().IDs(ctx)
	if err != nil {
		return remotesapi.PullResponse{}, err
	}
	for _, id := range req.HaveObjectIDs {
		have, err := hash.Parse(id)
		if err != nil {
			return remotesapi.PullResponse{}, fmt.Errorf("%w: bad object id %q", ErrBadRequest, id)
		}
		want.Remove(have)
	}

	var byteCount uint64
	err = db.Store().GetMany(ctx, want, func(obj objects.Object) {
		resp.Objects = append(resp.Objects, remotesapi.FromObject(obj))
		byteCount += obj.Size()
	})
	if err != nil {
		return remotesapi.PullResponse{}, err
	}
	sort.Slice(resp.Objects, func(i, j int) bool { return resp.Objects[i].ID < resp.Objects[j].ID })

	h.lgr.WithFields(logrus.Fields{
		"repo":      req.RepoID,
		"branch":    req.Branch,
		"revisions": len(resp.Revisions),
		"objects":   len(resp.Objects),
		"bytes":     humanize.Bytes(byteCount),
	}).Debug("served pull")
	return resp, nil
}
