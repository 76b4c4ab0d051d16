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

// Package hash provides content digests for the object store. An object id
// is the digest of its own bytes, rendered as "<algorithm>:<hex-digest>",
// so identical content always maps to the same id.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Algorithm is the digest algorithm used for all content ids.
const Algorithm = "sha256"

// ByteLen is the length of a raw digest in bytes.
const ByteLen = sha256.Size

// StringLen is the length of the string form: "sha256:" + 64 hex chars.
const StringLen = len(Algorithm) + 1 + 2*ByteLen

var ErrInvalidHash = errors.New("invalid hash string")

// Hash is a content digest. The zero value is the "empty" hash and is not a
// valid id for stored content.
type Hash [ByteLen]byte

// Of returns the Hash of |data|.
func Of(data []byte) Hash {
	return Hash(sha256.Sum256(data))
}

// IsEmpty returns true if h is the zero hash.
func (h Hash) IsEmpty() bool {
	return h == Hash{}
}

// String returns the canonical "<algorithm>:<hex-digest>" form.
func (h Hash) String() string {
	return Algorithm + ":" + hex.EncodeToString(h[:])
}

// Parse parses the canonical string form of a Hash. Only the form String
// emits is accepted: uppercase digests are rejected, so every id has
// exactly one string spelling.
func Parse(s string) (Hash, error) {
	prefix := Algorithm + ":"
	if len(s) != StringLen || !strings.HasPrefix(s, prefix) {
		return Hash{}, fmt.Errorf("%w: %q", ErrInvalidHash, s)
	}
	digest := s[len(prefix):]
	for i := 0; i < len(digest); i++ {
		c := digest[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return Hash{}, fmt.Errorf("%w: %q", ErrInvalidHash, s)
		}
	}
	raw, err := hex.DecodeString(digest)
	if err != nil {
		return Hash{}, fmt.Errorf("%w: %q", ErrInvalidHash, s)
	}
	var h Hash
	copy(h[:], raw)
	return h, nil
}

// Less orders hashes bytewise. Hashes carry no semantic ordering; this
// exists so sets can be emitted deterministically.
func (h Hash) Less(other Hash) bool {
	for i := 0; i < ByteLen; i++ {
		if h[i] != other[i] {
			return h[i] < other[i]
		}
	}
	return false
}

// HashSet is a set of Hashes.
type HashSet map[Hash]struct{}

func NewHashSet(hashes ...Hash) HashSet {
	hs := make(HashSet, len(hashes))
	for _, h := range hashes {
		hs.Insert(h)
	}
	return hs
}

func (hs HashSet) Insert(h Hash) {
	hs[h] = struct{}{}
}

func (hs HashSet) Has(h Hash) bool {
	_, ok := hs[h]
	return ok
}

func (hs HashSet) Remove(h Hash) {
	delete(hs, h)
}

func (hs HashSet) Copy() HashSet {
	out := make(HashSet, len(hs))
	for h := range hs {
		out[h] = struct{}{}
	}
	return out
}
