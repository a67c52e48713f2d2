package storage

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	registry "github.com/ocireg/registry"
	"github.com/ocireg/registry/digestengine"
	"github.com/ocireg/registry/manifest"
	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := NewRegistry(t.TempDir(), time.Minute)
	require.NoError(t, err)
	return reg
}

// pushBlob drives a full begin/patch/finalize cycle and returns the
// committed digest, mirroring the teacher's TestSimpleBlobUpload flow.
func pushBlob(t *testing.T, reg *Registry, repoName string, content []byte) digest.Digest {
	t.Helper()
	ctx := context.Background()

	s, err := reg.Uploads().Begin(ctx, repoName)
	require.NoError(t, err)

	n, err := reg.Uploads().Patch(ctx, s.ID(), bytes.NewReader(content), nil)
	require.NoError(t, err)
	require.EqualValues(t, len(content), n)

	desc, err := reg.Uploads().Finalize(ctx, s.ID(), digestengine.FromBytes(content), nil)
	require.NoError(t, err)
	return desc.Digest
}

func TestBlobUploadAndPull(t *testing.T) {
	reg := newTestRegistry(t)
	content := []byte("hello registry")

	dgst := pushBlob(t, reg, "foo/bar", content)
	require.Equal(t, digestengine.FromBytes(content), dgst)

	repo, err := reg.Repository(context.Background(), "foo/bar")
	require.NoError(t, err)

	blobs := repo.Blobs(context.Background())
	exists, err := blobs.Exists(context.Background(), dgst)
	require.NoError(t, err)
	require.True(t, exists)

	rsc, err := blobs.Open(context.Background(), dgst)
	require.NoError(t, err)
	defer rsc.Close()

	got, err := io.ReadAll(rsc)
	require.NoError(t, err)
	require.Equal(t, content, got)
}

func TestFinalizeDigestMismatchAbortsSession(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	s, err := reg.Uploads().Begin(ctx, "foo")
	require.NoError(t, err)

	_, err = reg.Uploads().Patch(ctx, s.ID(), bytes.NewReader([]byte("payload")), nil)
	require.NoError(t, err)

	wrongDigest := digestengine.FromBytes([]byte("not the payload"))
	_, err = reg.Uploads().Finalize(ctx, s.ID(), wrongDigest, nil)
	require.Error(t, err)
	var mismatch registry.ErrBlobInvalidDigest
	require.ErrorAs(t, err, &mismatch)

	_, err = reg.Uploads().Get(s.ID())
	require.Error(t, err)
}

func TestPatchOutOfOrderConflict(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	s, err := reg.Uploads().Begin(ctx, "foo")
	require.NoError(t, err)

	_, err = reg.Uploads().Patch(ctx, s.ID(), bytes.NewReader([]byte("first")), nil)
	require.NoError(t, err)

	badStart := int64(0)
	_, err = reg.Uploads().Patch(ctx, s.ID(), bytes.NewReader([]byte("second")), &badStart)
	require.Error(t, err)
	var conflict registry.ErrUploadConflict
	require.ErrorAs(t, err, &conflict)
	require.EqualValues(t, 5, conflict.Expected)

	offset, _, err := reg.Uploads().Status(s.ID())
	require.NoError(t, err)
	require.EqualValues(t, 5, offset, "rejected patch must not mutate session state")
}

func TestAbortRemovesSession(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	s, err := reg.Uploads().Begin(ctx, "foo")
	require.NoError(t, err)
	require.NoError(t, reg.Uploads().Abort(ctx, s.ID()))

	_, err = reg.Uploads().Get(s.ID())
	require.Error(t, err)

	// Idempotent.
	require.NoError(t, reg.Uploads().Abort(ctx, s.ID()))
}

func TestManifestPushRejectsMissingBlob(t *testing.T) {
	reg := newTestRegistry(t)
	repo, err := reg.Repository(context.Background(), "foo")
	require.NoError(t, err)

	missingDigest := digestengine.FromBytes([]byte("absent"))
	raw := singleManifestJSON(missingDigest.String(), missingDigest.String())

	m, err := manifest.Parse(manifest.MediaTypeOCIManifest, raw)
	require.NoError(t, err)

	_, err = repo.Manifests(context.Background()).Put(context.Background(), m)
	require.Error(t, err)
	var blobUnknown registry.ErrManifestBlobUnknown
	require.ErrorAs(t, err, &blobUnknown)
}

func TestManifestPushAndTagResolution(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()
	repo, err := reg.Repository(ctx, "foo")
	require.NoError(t, err)

	configDigest := pushBlob(t, reg, "foo", []byte("config bytes"))
	layerDigest := pushBlob(t, reg, "foo", []byte("layer bytes"))

	raw := singleManifestJSON(configDigest.String(), layerDigest.String())
	m, err := manifest.Parse(manifest.MediaTypeOCIManifest, raw)
	require.NoError(t, err)

	dgst, err := repo.Manifests(ctx).Put(ctx, m)
	require.NoError(t, err)

	require.NoError(t, repo.Tags(ctx).Tag(ctx, "latest", dgst))

	resolved, err := repo.Tags(ctx).Get(ctx, "latest")
	require.NoError(t, err)
	require.Equal(t, dgst, resolved)

	got, err := repo.Manifests(ctx).Get(ctx, dgst)
	require.NoError(t, err)
	_, payload, err := got.Payload()
	require.NoError(t, err)
	require.Equal(t, raw, payload)
}

func TestRepositoryRejectsInvalidName(t *testing.T) {
	reg := newTestRegistry(t)
	_, err := reg.Repository(context.Background(), "Foo/Bar")
	require.Error(t, err)
	var nameInvalid registry.ErrNameInvalid
	require.ErrorAs(t, err, &nameInvalid)
}

// singleManifestJSON builds a minimal OCI manifest referencing a config
// and a layer blob by digest, used across the manifest tests above.
func singleManifestJSON(configDigest, layerDigest string) []byte {
	return []byte(`{
		"schemaVersion": 2,
		"mediaType": "` + manifest.MediaTypeOCIManifest + `",
		"config": {"mediaType": "application/vnd.oci.image.config.v1+json", "digest": "` + configDigest + `", "size": 6},
		"layers": [{"mediaType": "application/vnd.oci.image.layer.v1.tar", "digest": "` + layerDigest + `", "size": 11}]
	}`)
}
