// Package registry defines the core, transport-independent types and
// interfaces implementing the OCI/Docker Registry HTTP API v2 storage and
// upload engine: content-addressed blobs, resumable uploads, and
// referentially-checked manifests, scoped to an arbitrary-depth repository
// namespace.
package registry

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/opencontainers/go-digest"
)

// Descriptor describes targeted content. It mirrors the OCI content
// descriptor: a digest, a size, and a media type, enough to address and
// validate a blob or manifest without inspecting its bytes.
type Descriptor struct {
	// MediaType describes the type of the content. It is optional and
	// informational only; it does not affect validation behavior.
	MediaType string `json:"mediaType,omitempty"`

	// Size is the size of the described content, in bytes.
	Size int64 `json:"size"`

	// Digest uniquely identifies the content by content-address.
	Digest digest.Digest `json:"digest"`
}

// BlobStore describes the read and existence operations a repository's
// content-addressed blob namespace exposes, independent of the upload
// protocol used to populate it.
type BlobStore interface {
	// Exists reports whether a blob identified by dgst has been committed.
	Exists(ctx context.Context, dgst digest.Digest) (bool, error)

	// Open returns a handle that streams the committed blob's bytes. The
	// returned ReadSeekCloser always reflects a fully-written, digest
	// verified blob; it never observes a partially-written file.
	Open(ctx context.Context, dgst digest.Digest) (io.ReadSeekCloser, error)

	// Stat returns the descriptor for a committed blob.
	Stat(ctx context.Context, dgst digest.Digest) (Descriptor, error)
}

// BlobUploadSession mirrors the mutable state of one in-progress blob
// upload (spec §3 "Upload Session U" / §4.3 C3).
type BlobUploadSession interface {
	// ID is the session's UUID.
	ID() string

	// StartedAt is the session's creation time.
	StartedAt() time.Time

	// Size is the number of bytes accepted so far (the session's offset).
	Size() int64

	// Write appends p to the upload, advancing the offset and the running
	// digest. Patches on the same session are never concurrent.
	Write(p []byte) (int, error)

	// ReadFrom appends all bytes from r, as Write does.
	ReadFrom(r io.Reader) (int64, error)

	// Commit finalizes the session: the accumulated bytes must hash to
	// desc.Digest or the commit fails and the session is aborted.
	Commit(ctx context.Context, desc Descriptor) (Descriptor, error)

	// Cancel aborts the session, discarding any data written so far.
	// Idempotent.
	Cancel(ctx context.Context) error
}

// ManifestService describes the OCI manifest CRUD surface scoped to one
// repository (spec §4.4 C4).
type ManifestService interface {
	// Exists reports whether a manifest addressable by dgst exists.
	Exists(ctx context.Context, dgst digest.Digest) (bool, error)

	// Get retrieves a manifest by digest.
	Get(ctx context.Context, dgst digest.Digest) (Manifest, error)

	// Put validates m's blob references against the repository's blob
	// store and persists it, returning its canonical digest.
	Put(ctx context.Context, m Manifest) (digest.Digest, error)

	// Delete is unsupported in v1; see ErrUnsupported.
	Delete(ctx context.Context, dgst digest.Digest) error
}

// Manifest is a parsed manifest document: its raw bytes plus the set of
// blobs (or, for an index, child manifests) it references.
type Manifest interface {
	// Payload returns the manifest's content type and raw serialized bytes.
	// dig(M) (spec §3) is always sha256 of these bytes.
	Payload() (mediaType string, payload []byte, err error)

	// References returns the descriptors of content this manifest refers
	// to: layer and config blobs for an image manifest, child manifests
	// for an index.
	References() []Descriptor
}

// TagService manages the mutable tag -> digest indirection for a
// repository (part of C4's reference resolution).
type TagService interface {
	// Get resolves a tag to the digest it currently points at.
	Get(ctx context.Context, tag string) (digest.Digest, error)

	// Tag creates or replaces tag's mapping to dgst. The operation is
	// atomic with respect to concurrent Get calls: readers never observe a
	// torn mapping.
	Tag(ctx context.Context, tag string, dgst digest.Digest) error

	// All lists the known tags, lexically sorted.
	All(ctx context.Context) ([]string, error)
}

// Repository is the handle C6 obtains for one namespace entry, composing
// its blob and manifest sub-stores.
type Repository interface {
	// Named returns the repository's normalized name.
	Named() string

	Blobs(ctx context.Context) BlobStore
	Manifests(ctx context.Context) ManifestService
	Tags(ctx context.Context) TagService
}

// Sentinel and structured errors returned by the core. The facade (C6)
// maps these to OCI error codes; it never invents new kinds (spec §7).
var (
	// ErrUnsupported is returned by operations this implementation
	// deliberately does not support in v1 (manifest deletion).
	ErrUnsupported = fmt.Errorf("operation unsupported")

	// ErrAccessDenied is returned when the opaque authorization decision
	// supplied by the external policy component denies a request.
	ErrAccessDenied = fmt.Errorf("access denied")
)

// ErrBlobUnknown is returned when a referenced digest has no corresponding
// blob in the repository.
type ErrBlobUnknown struct {
	Digest digest.Digest
}

func (e ErrBlobUnknown) Error() string {
	return fmt.Sprintf("blob unknown: %s", e.Digest)
}

// ErrBlobInvalidDigest is returned when uploaded content's computed digest
// does not match the digest claimed by the client.
type ErrBlobInvalidDigest struct {
	Claimed  digest.Digest
	Computed digest.Digest
}

func (e ErrBlobInvalidDigest) Error() string {
	return fmt.Sprintf("content digest %s does not match claimed digest %s", e.Computed, e.Claimed)
}

// ErrUploadUnknown is returned when an upload session UUID is not
// registered (never existed, already terminated, or swept by the TTL).
type ErrUploadUnknown struct {
	ID string
}

func (e ErrUploadUnknown) Error() string {
	return fmt.Sprintf("upload unknown: %s", e.ID)
}

// ErrUploadClosed is returned when an operation is attempted against a
// session that has already transitioned to a terminal state.
type ErrUploadClosed struct {
	ID string
}

func (e ErrUploadClosed) Error() string {
	return fmt.Sprintf("upload closed: %s", e.ID)
}

// ErrUploadConflict is returned when a patch's declared start offset does
// not match the session's current offset (spec §4.3, out-of-order chunk).
type ErrUploadConflict struct {
	Expected int64
	Provided int64
}

func (e ErrUploadConflict) Error() string {
	return fmt.Sprintf("upload conflict: expected offset %d, got %d", e.Expected, e.Provided)
}

// ErrManifestUnknown is returned when a manifest or tag reference cannot
// be resolved within a repository.
type ErrManifestUnknown struct {
	Name      string
	Reference string
}

func (e ErrManifestUnknown) Error() string {
	return fmt.Sprintf("manifest unknown: %s@%s", e.Name, e.Reference)
}

// ErrManifestBlobUnknown is returned when a manifest references a digest
// absent from the repository's blob (or, for indexes, manifest) store.
type ErrManifestBlobUnknown struct {
	Digest digest.Digest
}

func (e ErrManifestBlobUnknown) Error() string {
	return fmt.Sprintf("manifest references unknown blob: %s", e.Digest)
}

// ErrManifestInvalid is returned for malformed JSON, an unrecognized
// schema, or a digest-reference/self-digest mismatch.
type ErrManifestInvalid struct {
	Reason error
}

func (e ErrManifestInvalid) Error() string {
	return fmt.Sprintf("manifest invalid: %v", e.Reason)
}

func (e ErrManifestInvalid) Unwrap() error { return e.Reason }

// ErrNameInvalid is returned when a repository name fails normalization.
type ErrNameInvalid struct {
	Name   string
	Reason error
}

func (e ErrNameInvalid) Error() string {
	return fmt.Sprintf("repository name %q invalid: %v", e.Name, e.Reason)
}

func (e ErrNameInvalid) Unwrap() error { return e.Reason }
