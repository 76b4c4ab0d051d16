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
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/snappy"

	"github.com/scorehub/scorevc/store/hash"
)

var _ Store = (*FileStore)(nil)

const fileStoreExt = ".sz"

// FileStore persists objects as snappy-compressed files, fanned out into
// subdirectories by the first byte of the digest. Writes go through a temp
// file and rename, so a crash never leaves a torn object behind.
type FileStore struct {
	root string
}

func NewFileStore(root string) (*FileStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &FileStore{root: root}, nil
}

func (fs *FileStore) pathFor(h hash.Hash) string {
	enc := hex.EncodeToString(h[:])
	return filepath.Join(fs.root, enc[:2], enc+fileStoreExt)
}

func (fs *FileStore) Get(ctx context.Context, h hash.Hash) (Object, error) {
	raw, err := os.ReadFile(fs.pathFor(h))
	if os.IsNotExist(err) {
		return EmptyObject, nil
	} else if err != nil {
		return EmptyObject, err
	}

	obj, err := decodeObjectFile(raw)
	if err != nil {
		return EmptyObject, err
	}
	if obj.ID() != h {
		return EmptyObject, fmt.Errorf("object file %s content does not match its digest", h)
	}
	return obj, nil
}

func (fs *FileStore) GetMany(ctx context.Context, hashes hash.HashSet, found func(Object)) error {
	for h := range hashes {
		obj, err := fs.Get(ctx, h)
		if err != nil {
			return err
		}
		if !obj.IsEmpty() {
			found(obj)
		}
	}
	return nil
}

func (fs *FileStore) Has(ctx context.Context, h hash.Hash) (bool, error) {
	_, err := os.Stat(fs.pathFor(h))
	if os.IsNotExist(err) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	return true, nil
}

func (fs *FileStore) HasMany(ctx context.Context, hashes hash.HashSet) (hash.HashSet, error) {
	absent := hash.HashSet{}
	for h := range hashes {
		ok, err := fs.Has(ctx, h)
		if err != nil {
			return nil, err
		}
		if !ok {
			absent.Insert(h)
		}
	}
	return absent, nil
}

func (fs *FileStore) Put(ctx context.Context, obj Object) error {
	dest := fs.pathFor(obj.ID())
	if _, err := os.Stat(dest); err == nil {
		// Already stored. Content ids guarantee the bytes match.
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), "put-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err = tmp.Write(encodeObjectFile(obj)); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dest)
}

func (fs *FileStore) IDs(ctx context.Context) (hash.HashSet, error) {
	ids := hash.HashSet{}
	err := filepath.WalkDir(fs.root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(d.Name(), fileStoreExt) {
			return err
		}
		raw, err := hex.DecodeString(strings.TrimSuffix(d.Name(), fileStoreExt))
		if err != nil || len(raw) != hash.ByteLen {
			// Not one of ours. Leave it alone.
			return nil
		}
		var h hash.Hash
		copy(h[:], raw)
		ids.Insert(h)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Object files hold a snappy-compressed envelope of path length, path and
// content bytes.
func encodeObjectFile(obj Object) []byte {
	p := []byte(obj.Path())
	envelope := make([]byte, 4+len(p)+len(obj.Content()))
	binary.BigEndian.PutUint32(envelope, uint32(len(p)))
	copy(envelope[4:], p)
	copy(envelope[4+len(p):], obj.Content())
	return snappy.Encode(nil, envelope)
}

func decodeObjectFile(raw []byte) (Object, error) {
	envelope, err := snappy.Decode(nil, raw)
	if err != nil {
		return EmptyObject, err
	}
	if len(envelope) < 4 {
		return EmptyObject, fmt.Errorf("object file too short: %d bytes", len(envelope))
	}
	plen := int(binary.BigEndian.Uint32(envelope))
	if len(envelope) < 4+plen {
		return EmptyObject, fmt.Errorf("object file truncated: path length %d exceeds payload", plen)
	}
	return NewObject(string(envelope[4:4+plen]), envelope[4+plen:]), nil
}
