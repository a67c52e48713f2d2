package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/opencontainers/go-digest"

	"github.com/ocireg/registry/registry/api/errcode"
)

// blobUploadHandler serves the four resumable upload endpoints (spec
// §4.3 C3): POST begins a session, PATCH appends a chunk, PUT finalizes
// it, and DELETE cancels it, mirroring the teacher's
// registry/handlers/blobupload.go dispatch but against the Registry
// Facade instead of a distribution.BlobWriter.
type blobUploadHandler struct {
	app *App
}

// StartBlobUpload implements begin_upload (spec §4.3): POST
// /v2/<name>/blobs/uploads/, optionally completed in one shot when the
// client supplies "digest" and a request body (the monolithic upload
// shortcut, a supplemented feature grounded in the Rust original).
func (buh *blobUploadHandler) StartBlobUpload(w http.ResponseWriter, r *http.Request) {
	name := mustVar(r, "name")

	uuid, _, err := buh.app.BeginUpload(r.Context(), r, name)
	if err != nil {
		serveError(w, err)
		return
	}

	if dgstStr := r.FormValue("digest"); dgstStr != "" {
		dgst, err := digest.Parse(dgstStr)
		if err != nil {
			serveError(w, errInvalidDigest(dgstStr))
			return
		}
		if _, err := buh.app.PatchUpload(r.Context(), uuid, r.Body, nil); err != nil {
			serveError(w, err)
			return
		}
		buh.completeUpload(w, r, uuid, dgst)
		return
	}

	w.Header().Set("Location", uploadLocation(name, uuid, 0))
	w.Header().Set("Docker-Upload-UUID", uuid)
	w.Header().Set("Range", "0-0")
	w.WriteHeader(http.StatusAccepted)
}

// GetUploadStatus implements the upload status check: GET/HEAD
// /v2/<name>/blobs/uploads/<uuid> (spec §4.3 status).
func (buh *blobUploadHandler) GetUploadStatus(w http.ResponseWriter, r *http.Request) {
	name := mustVar(r, "name")
	uuid := mustVar(r, "uuid")

	offset, _, err := buh.app.UploadStatus(r.Context(), uuid)
	if err != nil {
		serveError(w, err)
		return
	}

	w.Header().Set("Location", uploadLocation(name, uuid, offset))
	w.Header().Set("Docker-Upload-UUID", uuid)
	w.Header().Set("Range", rangeHeader(offset))
	w.WriteHeader(http.StatusNoContent)
}

// PatchBlobData implements patch_upload: PATCH
// /v2/<name>/blobs/uploads/<uuid> (spec §4.3). A Content-Range header, if
// present, is validated against the session's current offset before any
// byte is accepted (spec §8 invariant 7).
func (buh *blobUploadHandler) PatchBlobData(w http.ResponseWriter, r *http.Request) {
	name := mustVar(r, "name")
	uuid := mustVar(r, "uuid")

	var expectedStart *int64
	if cr := r.Header.Get("Content-Range"); cr != "" {
		start, end, err := parseContentRange(cr)
		if err != nil || start > end {
			serveError(w, errcode.ErrorCodeRangeInvalid.WithDetail(fmt.Sprintf("invalid Content-Range %q", cr)))
			return
		}
		if cl := r.Header.Get("Content-Length"); cl != "" {
			clInt, err := strconv.ParseInt(cl, 10, 64)
			if err != nil || clInt != (end-start)+1 {
				serveError(w, errcode.ErrorCodeSizeInvalid)
				return
			}
		}
		expectedStart = &start
	}

	offset, err := buh.app.PatchUpload(r.Context(), uuid, r.Body, expectedStart)
	if err != nil {
		serveError(w, err)
		return
	}

	w.Header().Set("Location", uploadLocation(name, uuid, offset))
	w.Header().Set("Docker-Upload-UUID", uuid)
	w.Header().Set("Range", rangeHeader(offset))
	w.WriteHeader(http.StatusAccepted)
}

// PutBlobUploadComplete implements complete_upload: PUT
// /v2/<name>/blobs/uploads/<uuid>?digest=... (spec §4.3), accepting an
// optional trailing chunk in the request body.
func (buh *blobUploadHandler) PutBlobUploadComplete(w http.ResponseWriter, r *http.Request) {
	uuid := mustVar(r, "uuid")

	dgstStr := r.FormValue("digest")
	if dgstStr == "" {
		serveError(w, errcode.ErrorCodeDigestInvalid.WithDetail("digest missing"))
		return
	}
	dgst, err := digest.Parse(dgstStr)
	if err != nil {
		serveError(w, errInvalidDigest(dgstStr))
		return
	}

	buh.completeUpload(w, r, uuid, dgst)
}

func (buh *blobUploadHandler) completeUpload(w http.ResponseWriter, r *http.Request, uuid string, dgst digest.Digest) {
	name := mustVar(r, "name")

	committed, err := buh.app.CompleteUpload(r.Context(), uuid, dgst, r.Body)
	if err != nil {
		serveError(w, err)
		return
	}

	w.Header().Set("Location", blobLocation(name, committed))
	w.Header().Set("Docker-Content-Digest", committed.String())
	w.Header().Set("Content-Length", "0")
	w.WriteHeader(http.StatusCreated)
}

// CancelBlobUpload implements abort: DELETE
// /v2/<name>/blobs/uploads/<uuid> (spec §4.3).
func (buh *blobUploadHandler) CancelBlobUpload(w http.ResponseWriter, r *http.Request) {
	uuid := mustVar(r, "uuid")
	if err := buh.app.CancelUpload(r.Context(), uuid); err != nil {
		serveError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func uploadLocation(name, uuid string, offset int64) string {
	return fmt.Sprintf("/v2/%s/blobs/uploads/%s", name, uuid)
}

func blobLocation(name string, dgst digest.Digest) string {
	return fmt.Sprintf("/v2/%s/blobs/%s", name, dgst)
}

func rangeHeader(offset int64) string {
	if offset == 0 {
		return "0-0"
	}
	return fmt.Sprintf("0-%d", offset-1)
}
