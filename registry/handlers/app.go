// Package handlers implements C6, the Registry Facade: the single
// inward-facing API the transport uses, composing C2-C5 and owning
// concurrency policy and the storage root (spec §4.6). It also contains
// the thin net/http + gorilla/mux transport glue needed to exercise the
// facade, grounded in the teacher's registry/handlers package.
package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	registry "github.com/ocireg/registry"
	"github.com/ocireg/registry/internal/dcontext"
	"github.com/ocireg/registry/manifest"
	"github.com/ocireg/registry/reference"
	"github.com/ocireg/registry/registry/storage"
	"github.com/opencontainers/go-digest"
	"github.com/sirupsen/logrus"
)

// AccessDecision is the opaque authorization decision an external policy
// component hands the facade per request (spec §1 "the core receives ...
// an authorization decision per request from an external policy
// component"). The core never evaluates policy itself.
type AccessDecision struct {
	Principal string
	Allowed   bool
}

// AccessController is implemented by the external collaborator that
// authenticates and authorizes a request. A nil AccessController allows
// everything, which is useful for tests and for a registry run with no
// policy layer configured.
type AccessController interface {
	Authorize(ctx context.Context, r *http.Request, repository string) (AccessDecision, error)
}

// App is the Registry Facade (C6). It is the sole component aware of the
// storage root path, and it owns the upload session table's lifecycle
// (start/stop of the idle sweep).
type App struct {
	reg              *storage.Registry
	access           AccessController
	readOnly         bool
	stopSweep        func()
	stopWatchScratch func()
}

// Config configures a new App.
type Config struct {
	// StorageRoot is the filesystem directory backing blobs, manifests,
	// and in-progress uploads (spec §6 "Persisted state layout").
	StorageRoot string

	// UploadTTL is the idle timeout after which an open upload session
	// is swept (spec §4.3); zero selects storage.DefaultUploadTTL.
	UploadTTL time.Duration

	// Access authorizes each request. Nil allows everything.
	Access AccessController

	// ReadOnly disables all mutating operations (push, upload, delete),
	// mirroring the teacher's App.readOnly / Config.Storage.ReadOnly.
	ReadOnly bool
}

// NewApp constructs a Registry Facade rooted at cfg.StorageRoot.
func NewApp(cfg Config) (*App, error) {
	reg, err := storage.NewRegistry(cfg.StorageRoot, cfg.UploadTTL)
	if err != nil {
		return nil, err
	}

	app := &App{reg: reg, access: cfg.Access, readOnly: cfg.ReadOnly}
	app.reg.Uploads().StartSweeper(context.Background(), time.Minute)

	stop, err := app.reg.Uploads().WatchScratch(context.Background())
	if err != nil {
		logrus.Warnf("facade: scratch watcher disabled: %v", err)
		stop = func() {}
	}
	app.stopWatchScratch = stop

	return app, nil
}

// Close stops the background sweeper and scratch watcher.
func (app *App) Close() {
	app.reg.Uploads().Stop()
	app.stopWatchScratch()
}

// repository resolves and authorizes name, returning the storage handle
// C2-C4 are reached through.
func (app *App) repository(ctx context.Context, r *http.Request, name string) (registry.Repository, error) {
	if app.access != nil {
		decision, err := app.access.Authorize(ctx, r, name)
		if err != nil {
			return nil, err
		}
		if !decision.Allowed {
			return nil, registry.ErrAccessDenied
		}
	}
	return app.reg.Repository(ctx, name)
}

// PullManifest implements the "pull_manifest" facade operation (spec
// §4.6): resolve reference (tag or digest) and return the manifest bytes,
// content type, and canonical digest.
func (app *App) PullManifest(ctx context.Context, r *http.Request, name, ref string) (mediaType string, raw []byte, dgst digest.Digest, err error) {
	repo, err := app.repository(ctx, r, name)
	if err != nil {
		return "", nil, "", err
	}

	parsedRef, err := reference.ParseReference(ref)
	if err != nil {
		return "", nil, "", registry.ErrManifestInvalid{Reason: err}
	}

	dgst = parsedRef.Digest
	if !parsedRef.IsDigest() {
		dgst, err = repo.Tags(ctx).Get(ctx, parsedRef.Tag)
		if err != nil {
			return "", nil, "", err
		}
	}

	m, err := repo.Manifests(ctx).Get(ctx, dgst)
	if err != nil {
		return "", nil, "", err
	}
	mediaType, raw, err = m.Payload()
	if err != nil {
		return "", nil, "", err
	}
	return mediaType, raw, dgst, nil
}

// PullBlob implements "pull_blob": return a read handle and its length.
func (app *App) PullBlob(ctx context.Context, r *http.Request, name string, dgst digest.Digest) (io.ReadSeekCloser, int64, error) {
	repo, err := app.repository(ctx, r, name)
	if err != nil {
		return nil, 0, err
	}
	blobs := repo.Blobs(ctx)
	desc, err := blobs.Stat(ctx, dgst)
	if err != nil {
		return nil, 0, err
	}
	rsc, err := blobs.Open(ctx, dgst)
	if err != nil {
		return nil, 0, err
	}
	return rsc, desc.Size, nil
}

// BeginUpload implements "begin_upload": allocate a session and return
// its UUID and initial offset.
func (app *App) BeginUpload(ctx context.Context, r *http.Request, name string) (uuid string, offset int64, err error) {
	if app.readOnly {
		return "", 0, registry.ErrUnsupported
	}
	repo, err := app.repository(ctx, r, name)
	if err != nil {
		return "", 0, err
	}
	_ = repo // validates and authorizes the repository name up front

	s, err := app.reg.Uploads().Begin(ctx, name)
	if err != nil {
		return "", 0, err
	}
	return s.ID(), s.Size(), nil
}

// PatchUpload implements "patch_upload": append bytes, optionally
// checked against an expected start offset, returning the new offset.
func (app *App) PatchUpload(ctx context.Context, uuid string, body io.Reader, rangeStart *int64) (int64, error) {
	if app.readOnly {
		return 0, registry.ErrUnsupported
	}
	return app.reg.Uploads().Patch(ctx, uuid, body, rangeStart)
}

// CompleteUpload implements "complete_upload": finalize a session against
// a claimed digest, returning the committed digest.
func (app *App) CompleteUpload(ctx context.Context, uuid string, claimed digest.Digest, trailing io.Reader) (digest.Digest, error) {
	if app.readOnly {
		return "", registry.ErrUnsupported
	}
	desc, err := app.reg.Uploads().Finalize(ctx, uuid, claimed, trailing)
	if err != nil {
		return "", err
	}
	return desc.Digest, nil
}

// CancelUpload aborts an in-progress session.
func (app *App) CancelUpload(ctx context.Context, uuid string) error {
	return app.reg.Uploads().Abort(ctx, uuid)
}

// UploadStatus implements the GET/HEAD status check on an upload.
func (app *App) UploadStatus(ctx context.Context, uuid string) (offset int64, repository string, err error) {
	return app.reg.Uploads().Status(uuid)
}

// PushManifest implements "push_manifest": parse, validate references,
// persist by digest, and (for a tag reference) atomically update the tag
// indirection (spec §4.4 put_manifest).
func (app *App) PushManifest(ctx context.Context, r *http.Request, name, ref, contentType string, raw []byte) (digest.Digest, error) {
	if app.readOnly {
		return "", registry.ErrUnsupported
	}
	repo, err := app.repository(ctx, r, name)
	if err != nil {
		return "", err
	}

	parsed, err := manifest.Parse(contentType, raw)
	if err != nil {
		return "", err
	}

	parsedRef, err := reference.ParseReference(ref)
	if err != nil {
		return "", registry.ErrManifestInvalid{Reason: err}
	}

	dgst, err := repo.Manifests(ctx).Put(ctx, parsed)
	if err != nil {
		return "", err
	}

	if parsedRef.IsDigest() {
		if parsedRef.Digest != dgst {
			return "", registry.ErrManifestInvalid{Reason: fmt.Errorf("digest reference %s does not match content digest %s", parsedRef.Digest, dgst)}
		}
		return dgst, nil
	}

	if err := repo.Tags(ctx).Tag(ctx, parsedRef.Tag, dgst); err != nil {
		return "", err
	}

	dcontext.GetLogger(ctx).WithField("repository", name).WithField("tag", parsedRef.Tag).WithField("digest", dgst).
		Info("manifest pushed")
	return dgst, nil
}

// DeleteManifest implements "delete_manifest", which v1 does not support
// (spec §4.4, §6).
func (app *App) DeleteManifest(ctx context.Context, r *http.Request, name, ref string) error {
	return registry.ErrUnsupported
}

// ListTags returns the repository's known tags (supplemented extension
// point, spec §1 "tag listing ... noted as extension points").
func (app *App) ListTags(ctx context.Context, r *http.Request, name string) ([]string, error) {
	repo, err := app.repository(ctx, r, name)
	if err != nil {
		return nil, err
	}
	return repo.Tags(ctx).All(ctx)
}
