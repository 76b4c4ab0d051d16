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

package remotestorage

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/scorehub/scorevc/remotesapi"
	"github.com/scorehub/scorevc/scoredb"
	"github.com/scorehub/scorevc/store/objects"
)

// PushBranch pushes |branch| of the local database to the remote. The full
// local graph and object set ride along; the remote ingests idempotently,
// so over-sending costs bandwidth but never correctness.
func (c *Client) PushBranch(ctx context.Context, db *scoredb.Database, branch string, force bool) (remotesapi.PushResponse, error) {
	head, ok := db.Branches().Head(branch)
	if !ok {
		return remotesapi.PushResponse{}, fmt.Errorf("%w: %s", scoredb.ErrBranchNotFound, branch)
	}

	var revs []remotesapi.Revision
	for _, rev := range db.All() {
		revs = append(revs, remotesapi.FromRevision(rev))
	}

	ids, err := db.Store().IDs(ctx)
	if err != nil {
		return remotesapi.PushResponse{}, err
	}
	var objs []remotesapi.Object
	var byteCount uint64
	err = db.Store().GetMany(ctx, ids, func(obj objects.Object) {
		objs = append(objs, remotesapi.FromObject(obj))
		byteCount += obj.Size()
	})
	if err != nil {
		return remotesapi.PushResponse{}, err
	}

	c.lgr.WithFields(logrus.Fields{
		"branch":    branch,
		"revisions": len(revs),
		"bytes":     humanize.Bytes(byteCount),
	}).Info("pushing branch")

	return c.Push(ctx, remotesapi.PushRequest{
		Branch:    branch,
		NewHead:   string(head),
		Revisions: revs,
		Objects:   objs,
		Force:     force,
	})
}

// PullBranch pulls |branch| from the remote into the local database and
// moves the local branch head to the remote head. Returns the new head.
func (c *Client) PullBranch(ctx context.Context, db *scoredb.Database, branch string) (scoredb.RevisionID, error) {
	var haveRevs []string
	for _, rev := range db.All() {
		haveRevs = append(haveRevs, string(rev.ID))
	}
	ids, err := db.Store().IDs(ctx)
	if err != nil {
		return "", err
	}
	var haveObjs []string
	for id := range ids {
		haveObjs = append(haveObjs, id.String())
	}

	resp, err := c.Pull(ctx, remotesapi.PullRequest{
		Branch:          branch,
		HaveRevisionIDs: haveRevs,
		HaveObjectIDs:   haveObjs,
	})
	if err != nil {
		return "", err
	}

	var byteCount uint64
	for _, wire := range resp.Objects {
		obj, err := wire.ToObject()
		if err != nil {
			return "", fmt.Errorf("%w: %v", scoredb.ErrProtocolViolation, err)
		}
		if err := db.Store().Put(ctx, obj); err != nil {
			return "", err
		}
		byteCount += obj.Size()
	}
	for _, wire := range resp.Revisions {
		rev, err := wire.ToRevision()
		if err != nil {
			return "", fmt.Errorf("%w: %v", scoredb.ErrProtocolViolation, err)
		}
		if err := db.Insert(ctx, rev); err != nil {
			return "", err
		}
	}

	newHead := scoredb.RevisionID(resp.RemoteHead)
	if head, ok := db.Branches().Head(branch); ok {
		if head != newHead {
			if err := db.Branches().CompareAndSwap(branch, &head, newHead); err != nil {
				return "", err
			}
		}
	} else if err := db.Branches().CompareAndSwap(branch, nil, newHead); err != nil {
		return "", err
	}

	c.lgr.WithFields(logrus.Fields{
		"branch":    branch,
		"revisions": len(resp.Revisions),
		"bytes":     humanize.Bytes(byteCount),
		"head":      resp.RemoteHead,
	}).Info("pulled branch")
	return newHead, nil
}
