package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	registry "github.com/ocireg/registry"
	"github.com/opencontainers/go-digest"
)

// blobStore implements registry.BlobStore (C2) over a plain local
// filesystem root, one subdirectory per repository (spec §4.2). It is
// intentionally a thin wrapper around os file operations: the teacher's
// pluggable storagedriver.StorageDriver abstraction exists to support
// cloud backends (S3, Azure, Swift) that are out of this spec's scope
// (single local filesystem root, §1 Non-goals) — see DESIGN.md.
type blobStore struct {
	root       string
	repository string
}

var _ registry.BlobStore = (*blobStore)(nil)

func newBlobStore(root, repository string) *blobStore {
	return &blobStore{root: root, repository: repository}
}

func (bs *blobStore) blobPath(dgst digest.Digest) (string, error) {
	return pathFor(bs.root, blobDataPathSpec{repository: bs.repository, digest: dgst})
}

// Exists reports whether the blob exists, an O(1) filesystem stat (spec
// §4.2 "exists").
func (bs *blobStore) Exists(ctx context.Context, dgst digest.Digest) (bool, error) {
	p, err := bs.blobPath(dgst)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(p)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// Stat returns the descriptor for a committed blob.
func (bs *blobStore) Stat(ctx context.Context, dgst digest.Digest) (registry.Descriptor, error) {
	p, err := bs.blobPath(dgst)
	if err != nil {
		return registry.Descriptor{}, err
	}
	fi, err := os.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return registry.Descriptor{}, registry.ErrBlobUnknown{Digest: dgst}
		}
		return registry.Descriptor{}, err
	}
	return registry.Descriptor{Digest: dgst, Size: fi.Size()}, nil
}

// Open returns a handle streaming the committed blob's bytes. Because
// commit uses an atomic rename (see commit below), a reader that opens
// successfully always sees a complete file: the OS never exposes a
// half-renamed file to a concurrent open (spec §4.2 invariant).
func (bs *blobStore) Open(ctx context.Context, dgst digest.Digest) (io.ReadSeekCloser, error) {
	p, err := bs.blobPath(dgst)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, registry.ErrBlobUnknown{Digest: dgst}
		}
		return nil, err
	}
	return f, nil
}

// commit atomically renames scratchPath, whose bytes have already been
// verified to hash to dgst, into its final content-addressed location.
// The repository subdirectory is created lazily. If the destination
// already exists, the commit is a no-op success: the existing bytes are
// identical by digest equality, so the scratch file (the loser of a
// commit race) is simply discarded (spec §4.2 "Concurrent commits ...
// race; the winner's file is kept").
func (bs *blobStore) commit(dgst digest.Digest, scratchPath string) error {
	dst, err := bs.blobPath(dgst)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("storage: create repository blob directory: %w", err)
	}

	if _, err := os.Stat(dst); err == nil {
		// Idempotent: content is already present under this digest.
		_ = os.Remove(scratchPath)
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}

	if err := os.Rename(scratchPath, dst); err != nil {
		if os.IsExist(err) {
			_ = os.Remove(scratchPath)
			return nil
		}
		return fmt.Errorf("storage: commit blob: %w", err)
	}
	return nil
}
