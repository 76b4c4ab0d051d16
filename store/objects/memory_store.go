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
	"sync"

	"github.com/scorehub/scorevc/store/hash"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-memory Store, used by the hub and by tests.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[hash.Hash]Object
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[hash.Hash]Object)}
}

func (ms *MemoryStore) Get(ctx context.Context, h hash.Hash) (Object, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	if obj, ok := ms.data[h]; ok {
		return obj, nil
	}
	return EmptyObject, nil
}

func (ms *MemoryStore) GetMany(ctx context.Context, hashes hash.HashSet, found func(Object)) error {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	for h := range hashes {
		if obj, ok := ms.data[h]; ok {
			found(obj)
		}
	}
	return nil
}

func (ms *MemoryStore) Has(ctx context.Context, h hash.Hash) (bool, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	_, ok := ms.data[h]
	return ok, nil
}

func (ms *MemoryStore) HasMany(ctx context.Context, hashes hash.HashSet) (hash.HashSet, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	absent := hash.HashSet{}
	for h := range hashes {
		if _, ok := ms.data[h]; !ok {
			absent.Insert(h)
		}
	}
	return absent, nil
}

func (ms *MemoryStore) Put(ctx context.Context, obj Object) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, ok := ms.data[obj.ID()]; ok {
		// Same content id means same bytes. Nothing to do.
		return nil
	}
	ms.data[obj.ID()] = obj
	return nil
}

func (ms *MemoryStore) IDs(ctx context.Context) (hash.HashSet, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	ids := make(hash.HashSet, len(ms.data))
	for h := range ms.data {
		ids.Insert(h)
	}
	return ids, nil
}

// Len returns the number of stored objects.
func (ms *MemoryStore) Len() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return len(ms.data)
}
