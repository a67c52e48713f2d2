// Package storage implements C2 (Blob Store), C3 (Upload Session
// Manager), and C4 (Manifest Store) over a local filesystem root, laid
// out exactly as spec.md §6 describes.
package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	registry "github.com/ocireg/registry"
	"github.com/ocireg/registry/reference"
)

// Registry is the top-level storage handle: a filesystem root plus the
// shared upload session table (spec §5 "Global state: the session table
// is process-wide"). It is the storage-layer half of C6; the facade
// (registry/handlers) wraps it with HTTP semantics.
type Registry struct {
	root    string
	uploads *UploadManager
}

// NewRegistry opens (creating if necessary) a filesystem-backed registry
// rooted at root. uploadTTL configures the idle-session sweep (spec
// §4.3); zero selects DefaultUploadTTL.
func NewRegistry(root string, uploadTTL time.Duration) (*Registry, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	return &Registry{
		root:    absRoot,
		uploads: NewUploadManager(absRoot, uploadTTL),
	}, nil
}

// Uploads returns the shared upload session manager (C3).
func (r *Registry) Uploads() *UploadManager { return r.uploads }

// Root returns the absolute filesystem path this registry is rooted at.
func (r *Registry) Root() string { return r.root }

// Repository validates name (spec §4.5 C5) and returns a handle scoped to
// it. The store additionally rejects, as defense in depth, any name that
// would escape the storage root once joined into a path, even though
// reference.ParseName already rejects "." and ".." components.
func (r *Registry) Repository(ctx context.Context, name string) (*repository, error) {
	normalized, err := reference.ParseName(name)
	if err != nil {
		return nil, registry.ErrNameInvalid{Name: name, Reason: err}
	}

	blobDir := filepath.Join(r.root, "blobs", normalized)
	if !strings.HasPrefix(blobDir, filepath.Join(r.root, "blobs")+string(filepath.Separator)) {
		return nil, registry.ErrNameInvalid{Name: name, Reason: fmt.Errorf("escapes storage root")}
	}

	return &repository{root: r.root, name: normalized, uploads: r.uploads}, nil
}

// repository is a registry.Repository bound to one normalized name.
type repository struct {
	root    string
	name    string
	uploads *UploadManager
}

var _ registry.Repository = (*repository)(nil)

func (rp *repository) Named() string { return rp.name }

func (rp *repository) Blobs(ctx context.Context) registry.BlobStore {
	return newBlobStore(rp.root, rp.name)
}

func (rp *repository) Manifests(ctx context.Context) registry.ManifestService {
	return &manifestStore{root: rp.root, repository: rp.name, blobs: newBlobStore(rp.root, rp.name)}
}

func (rp *repository) Tags(ctx context.Context) registry.TagService {
	return &tagStore{root: rp.root, repository: rp.name}
}
