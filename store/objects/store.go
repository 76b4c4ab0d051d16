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

package objects

import (
	"context"
	"errors"

	"github.com/scorehub/scorevc/store/hash"
)

var ErrObjectNotFound = errors.New("object not found")

// Store is content-addressed blob storage. Writes are append-only and
// idempotent: putting an object whose id is already present is a no-op, so
// concurrent duplicate writes race harmlessly.
type Store interface {
	// Get returns the object stored at |h|, or EmptyObject if absent.
	Get(ctx context.Context, h hash.Hash) (Object, error)

	// GetMany sends every object of |hashes| present in the store to
	// |found|. Absent hashes are silently skipped.
	GetMany(ctx context.Context, hashes hash.HashSet, found func(Object)) error

	// Has returns true iff the content at |h| is in the store.
	Has(ctx context.Context, h hash.Hash) (bool, error)

	// HasMany returns the members of |hashes| absent from the store.
	HasMany(ctx context.Context, hashes hash.HashSet) (absent hash.HashSet, err error)

	// Put stores |obj|. Upon return the object is visible to Get and Has.
	Put(ctx context.Context, obj Object) error

	// IDs returns the ids of every stored object.
	IDs(ctx context.Context) (hash.HashSet, error)
}
