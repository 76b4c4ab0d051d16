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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scorehub/scorevc/store/hash"
)

func testStores(t *testing.T) map[string]Store {
	fileStore, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	return map[string]Store{
		"memory": NewMemoryStore(),
		"file":   fileStore,
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, st := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			obj := NewObject("tracks/lead.region", []byte("note payload"))
			require.NoError(t, st.Put(ctx, obj))

			got, err := st.Get(ctx, obj.ID())
			require.NoError(t, err)
			assert.Equal(t, obj.Path(), got.Path())
			assert.Equal(t, obj.Content(), got.Content())
			assert.Equal(t, obj.ID(), got.ID())

			ok, err := st.Has(ctx, obj.ID())
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestGetAbsentReturnsEmpty(t *testing.T) {
	ctx := context.Background()
	for name, st := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			got, err := st.Get(ctx, hash.Of([]byte("never stored")))
			require.NoError(t, err)
			assert.True(t, got.IsEmpty())
		})
	}
}

func TestPutIsIdempotent(t *testing.T) {
	ctx := context.Background()
	for name, st := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			a := NewObject("a.region", []byte("same bytes"))
			b := NewObject("b.region", []byte("same bytes"))
			assert.Equal(t, a.ID(), b.ID(), "identical content dedupes regardless of path")

			require.NoError(t, st.Put(ctx, a))
			require.NoError(t, st.Put(ctx, b))

			ids, err := st.IDs(ctx)
			require.NoError(t, err)
			assert.Len(t, ids, 1)
		})
	}
}

func TestHasManyReportsAbsent(t *testing.T) {
	ctx := context.Background()
	for name, st := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			stored := NewObject("x", []byte("stored"))
			require.NoError(t, st.Put(ctx, stored))

			missing := hash.Of([]byte("missing"))
			absent, err := st.HasMany(ctx, hash.NewHashSet(stored.ID(), missing))
			require.NoError(t, err)
			assert.True(t, absent.Has(missing))
			assert.False(t, absent.Has(stored.ID()))
		})
	}
}

func TestGetManySkipsAbsent(t *testing.T) {
	ctx := context.Background()
	for name, st := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			a := NewObject("a", []byte("aaa"))
			b := NewObject("b", []byte("bbb"))
			require.NoError(t, st.Put(ctx, a))
			require.NoError(t, st.Put(ctx, b))

			want := hash.NewHashSet(a.ID(), b.ID(), hash.Of([]byte("absent")))
			var got []Object
			require.NoError(t, st.GetMany(ctx, want, func(o Object) {
				got = append(got, o)
			}))
			assert.Len(t, got, 2)
		})
	}
}
