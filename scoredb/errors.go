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

import "errors"

var (
	// ErrRevisionNotFound is returned for lookups of unknown revision ids.
	// Always recoverable by the caller.
	ErrRevisionNotFound = errors.New("revision not found")

	// ErrBranchNotFound is returned for lookups of unknown branches.
	ErrBranchNotFound = errors.New("branch not found")

	// ErrNoCommonAncestor is returned when two revisions have disconnected
	// histories.
	ErrNoCommonAncestor = errors.New("no common ancestor")

	// ErrUpToDate signals a fast-forward target identical to the current
	// head. Accepting it is a no-op.
	ErrUpToDate = errors.New("everything up-to-date")

	// ErrIsAhead signals that the current head already descends from the
	// proposed head.
	ErrIsAhead = errors.New("current head is ahead of the proposed head")

	// ErrNonFastForward signals a divergent head update. Recoverable via
	// force or a client-side rebase.
	ErrNonFastForward = errors.New("non fast-forward update")

	// ErrHeadMoved is returned when a compare-and-swap on a branch head
	// loses the race to a concurrent update.
	ErrHeadMoved = errors.New("branch head moved concurrently")

	// ErrProtocolViolation marks an integrity failure: a mismatched hash on
	// a sealed revision, a malformed merge revision, and the like. Fatal —
	// callers must halt rather than attempt recovery, since continuing
	// risks silently corrupting history.
	ErrProtocolViolation = errors.New("protocol violation")
)
