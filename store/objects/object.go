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

// Package objects implements content-addressed storage for the blobs a
// revision references: snapshot manifests, region payloads and anything else
// the engine seals by digest.
package objects

import (
	"github.com/scorehub/scorevc/store/hash"
)

// Object is a blob plus the logical path it was stored under. The id is
// derived from content alone, so two pushes of the same bytes under
// different paths share storage.
type Object struct {
	path    string
	content []byte
	id      hash.Hash
}

// EmptyObject is what Get returns for an absent id.
var EmptyObject = Object{}

// NewObject returns an Object for |content| at logical |path|, computing
// its content id.
func NewObject(path string, content []byte) Object {
	return Object{path: path, content: content, id: hash.Of(content)}
}

func (o Object) ID() hash.Hash {
	return o.id
}

func (o Object) Path() string {
	return o.path
}

func (o Object) Content() []byte {
	return o.content
}

func (o Object) Size() uint64 {
	return uint64(len(o.content))
}

func (o Object) IsEmpty() bool {
	return len(o.content) == 0 && o.id.IsEmpty()
}
