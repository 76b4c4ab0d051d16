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

// Package remotesapi defines the wire types of the push/pull protocol:
// JSON over HTTP, revisions and objects carried inline. Both sides of the
// protocol depend only on this package.
package remotesapi

import (
	"fmt"
	"time"

	"github.com/scorehub/scorevc/scoredb"
	"github.com/scorehub/scorevc/store/hash"
	"github.com/scorehub/scorevc/store/objects"
)

// Revision is the wire form of one commit-graph node.
type Revision struct {
	ID         string    `json:"id"`
	ParentIDs  []string  `json:"parentIds"`
	Author     string    `json:"author"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
	SnapshotID string    `json:"snapshotId"`
}

// Object is the wire form of one stored blob. Content rides as base64 in
// JSON.
type Object struct {
	ID      string `json:"id"`
	Path    string `json:"path"`
	Content []byte `json:"content"`
}

// PushRequest proposes moving |Branch| to |NewHead|, carrying every
// revision and object the client believes the remote lacks. Force skips
// the fast-forward check.
type PushRequest struct {
	RepoID    string     `json:"repoId"`
	Branch    string     `json:"branch"`
	NewHead   string     `json:"newHead"`
	Revisions []Revision `json:"revisions,omitempty"`
	Objects   []Object   `json:"objects,omitempty"`
	Force     bool       `json:"force,omitempty"`
}

// PushResponse reports the post-push head.
type PushResponse struct {
	OK         bool   `json:"ok"`
	RemoteHead string `json:"remoteHead"`
}

// PullRequest asks for everything reachable state the caller lacks on
// |Branch|, given the revision and object ids it already has.
type PullRequest struct {
	RepoID          string   `json:"repoId"`
	Branch          string   `json:"branch"`
	HaveRevisionIDs []string `json:"haveRevisionIds,omitempty"`
	HaveObjectIDs   []string `json:"haveObjectIds,omitempty"`
}

// PullResponse carries the remote head plus the revisions and objects
// absent from the caller's have-sets.
type PullResponse struct {
	RemoteHead string     `json:"remoteHead"`
	Revisions  []Revision `json:"revisions,omitempty"`
	Objects    []Object   `json:"objects,omitempty"`
}

// ErrorResponse is the body of every non-2xx protocol answer. Code is one
// of the Code* constants; RemoteHead is set where it helps the client
// recover (non-fast-forward, head races).
type ErrorResponse struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	RemoteHead string `json:"remoteHead,omitempty"`
}

const (
	CodeNotFound          = "not_found"
	CodeNonFastForward    = "non_fast_forward"
	CodeHeadMoved         = "head_moved"
	CodeProtocolViolation = "protocol_violation"
	CodeBadRequest        = "bad_request"
	CodeInternal          = "internal"
)

// FromRevision converts a graph revision to its wire form.
func FromRevision(rev *scoredb.Revision) Revision {
	parents := make([]string, len(rev.Parents))
	for i, p := range rev.Parents {
		parents[i] = string(p)
	}
	return Revision{
		ID:         string(rev.ID),
		ParentIDs:  parents,
		Author:     rev.Meta.Author,
		Message:    rev.Meta.Message,
		Timestamp:  rev.Meta.Timestamp,
		SnapshotID: rev.SnapshotID.String(),
	}
}

// ToRevision converts a wire revision back to a graph revision. The sealed
// id is not re-verified here; graph insertion does that.
func (r Revision) ToRevision() (*scoredb.Revision, error) {
	snapID, err := hash.Parse(r.SnapshotID)
	if err != nil {
		return nil, fmt.Errorf("revision %s: bad snapshot id %q: %w", r.ID, r.SnapshotID, err)
	}
	parents := make([]scoredb.RevisionID, len(r.ParentIDs))
	for i, p := range r.ParentIDs {
		parents[i] = scoredb.RevisionID(p)
	}
	return &scoredb.Revision{
		ID:      scoredb.RevisionID(r.ID),
		Parents: parents,
		Meta: scoredb.CommitMeta{
			Author:    r.Author,
			Message:   r.Message,
			Timestamp: r.Timestamp,
		},
		SnapshotID: snapID,
	}, nil
}

// FromObject converts a stored object to its wire form.
func FromObject(obj objects.Object) Object {
	return Object{
		ID:      obj.ID().String(),
		Path:    obj.Path(),
		Content: obj.Content(),
	}
}

// ToObject rebuilds the stored object, recomputing its content id. A wire
// id that disagrees with the content digest is rejected.
func (o Object) ToObject() (objects.Object, error) {
	obj := objects.NewObject(o.Path, o.Content)
	if o.ID != "" && o.ID != obj.ID().String() {
		return objects.Object{}, fmt.Errorf("object %s: content hashes to %s", o.ID, obj.ID())
	}
	return obj, nil
}
