package main

import (
	"os"
	"path/filepath"

	"objectchain/core"
)

// fileBlobStore is the on-disk BlobStore backing the `map` CLI commands: one
// file per node, named by its hex object id, under a single directory. This
// gives the map subcommand a persistent store independent of any chain's
// state store, for inspecting or building ObjectMap trees outside of a
// running chain.
type fileBlobStore struct {
	dir string
}

func newFileBlobStore(dir string) (*fileBlobStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &fileBlobStore{dir: dir}, nil
}

func (f *fileBlobStore) path(id core.ObjectId) string {
	return filepath.Join(f.dir, id.String()+".obj")
}

func (f *fileBlobStore) GetBlob(id core.ObjectId) ([]byte, error) {
	b, err := os.ReadFile(f.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, core.NewErr(core.ErrNotFound, "blob %s", id)
		}
		return nil, err
	}
	return b, nil
}

func (f *fileBlobStore) PutBlob(id core.ObjectId, data []byte) error {
	return os.WriteFile(f.path(id), data, 0o644)
}
