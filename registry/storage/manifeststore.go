package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	registry "github.com/ocireg/registry"
	"github.com/ocireg/registry/digestengine"
	"github.com/ocireg/registry/manifest"
	"github.com/opencontainers/go-digest"
)

// manifestStore implements registry.ManifestService (C4): it persists
// manifest bytes addressed by their own digest and enforces referential
// integrity against the blob store (or, for an index, against itself) at
// write time (spec §4.4).
type manifestStore struct {
	root       string
	repository string
	blobs      *blobStore
}

var _ registry.ManifestService = (*manifestStore)(nil)

func (ms *manifestStore) manifestPath(dgst digest.Digest) (string, error) {
	return pathFor(ms.root, manifestDataPathSpec{repository: ms.repository, digest: dgst})
}

func (ms *manifestStore) Exists(ctx context.Context, dgst digest.Digest) (bool, error) {
	p, err := ms.manifestPath(dgst)
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

func (ms *manifestStore) Get(ctx context.Context, dgst digest.Digest) (registry.Manifest, error) {
	p, err := ms.manifestPath(dgst)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, registry.ErrManifestUnknown{Name: ms.repository, Reference: dgst.String()}
		}
		return nil, err
	}
	return manifest.Parse("", raw)
}

// Put validates m's references, computes its canonical digest, and
// persists the bytes (spec §4.4 put_manifest steps 1-5). It does not
// handle the tag indirection (step 6); callers needing a tagged push
// follow Put with TagService.Tag, as the facade (C6) does.
func (ms *manifestStore) Put(ctx context.Context, m registry.Manifest) (digest.Digest, error) {
	_, raw, err := m.Payload()
	if err != nil {
		return "", registry.ErrManifestInvalid{Reason: err}
	}

	d, ok := m.(*manifest.Deserialized)
	if !ok {
		return "", registry.ErrManifestInvalid{Reason: fmt.Errorf("unrecognized manifest implementation %T", m)}
	}

	if err := ms.verifyReferences(ctx, d); err != nil {
		return "", err
	}

	dgst := digestengine.FromBytes(raw)

	p, err := ms.manifestPath(dgst)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", err
	}
	if err := writeFileAtomic(p, raw); err != nil {
		return "", err
	}

	return dgst, nil
}

// verifyReferences checks every digest m.References() names against the
// appropriate store: the blob store for an ordinary manifest, or this
// same manifest store for an index's child manifests (spec §9).
func (ms *manifestStore) verifyReferences(ctx context.Context, d *manifest.Deserialized) error {
	for _, ref := range d.References() {
		var exists bool
		var err error
		if d.IsIndex() {
			exists, err = ms.Exists(ctx, ref.Digest)
		} else {
			exists, err = ms.blobs.Exists(ctx, ref.Digest)
		}
		if err != nil {
			return err
		}
		if !exists {
			return registry.ErrManifestBlobUnknown{Digest: ref.Digest}
		}
	}
	return nil
}

func (ms *manifestStore) Delete(ctx context.Context, dgst digest.Digest) error {
	return registry.ErrUnsupported
}

// writeFileAtomic writes data to path via a same-directory temp file and
// rename, so a concurrent reader never observes a partially-written
// manifest (spec §4.4 "Steps 5 and 6 MUST be atomic").
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".manifest-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if _, err := os.Stat(path); err == nil {
		// Idempotent: identical content already present under this digest.
		os.Remove(tmpName)
		return nil
	}
	return os.Rename(tmpName, path)
}
