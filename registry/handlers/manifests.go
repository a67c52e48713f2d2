package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/ocireg/registry/registry/api/errcode"
)

// maxManifestBodySize bounds how much of a manifest PUT body is read into
// memory before parsing (spec §9 caps manifest size defensively, even
// though the wire protocol does not mandate one).
const maxManifestBodySize = 4 * 1024 * 1024

// manifestHandler serves GET/HEAD/PUT/DELETE on a manifest reference,
// which is either a tag or a digest (spec §4.4 C4), mirroring the
// teacher's registry/handlers/manifests.go dispatch against the Registry
// Facade.
type manifestHandler struct {
	app *App
}

// GetManifest implements pull_manifest: GET/HEAD
// /v2/<name>/manifests/<reference> (spec §4.4).
func (mh *manifestHandler) GetManifest(w http.ResponseWriter, r *http.Request) {
	name := mustVar(r, "name")
	ref := mustVar(r, "reference")

	mediaType, raw, dgst, err := mh.app.PullManifest(r.Context(), r, name, ref)
	if err != nil {
		serveError(w, err)
		return
	}

	w.Header().Set("Content-Type", mediaType)
	w.Header().Set("Content-Length", strconv.Itoa(len(raw)))
	w.Header().Set("Docker-Content-Digest", dgst.String())

	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}
	w.Write(raw)
}

// PutManifest implements push_manifest: PUT /v2/<name>/manifests/<reference>
// (spec §4.4 put_manifest). The reference may be a tag (updating the
// tag's indirection) or a digest (which must equal the content's own
// digest).
func (mh *manifestHandler) PutManifest(w http.ResponseWriter, r *http.Request) {
	name := mustVar(r, "name")
	ref := mustVar(r, "reference")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxManifestBodySize+1))
	if err != nil {
		serveError(w, errcode.ErrorCodeUnknown.WithDetail(err.Error()))
		return
	}
	if len(body) > maxManifestBodySize {
		serveError(w, errcode.ErrorCodeManifestInvalid.WithDetail("manifest exceeds maximum size"))
		return
	}

	contentType := r.Header.Get("Content-Type")

	dgst, err := mh.app.PushManifest(r.Context(), r, name, ref, contentType, body)
	if err != nil {
		serveError(w, err)
		return
	}

	w.Header().Set("Location", manifestLocation(name, ref))
	w.Header().Set("Docker-Content-Digest", dgst.String())
	w.WriteHeader(http.StatusCreated)
}

// DeleteManifest implements delete_manifest, unsupported in v1 (spec
// §4.4, §6).
func (mh *manifestHandler) DeleteManifest(w http.ResponseWriter, r *http.Request) {
	name := mustVar(r, "name")
	ref := mustVar(r, "reference")

	if err := mh.app.DeleteManifest(r.Context(), r, name, ref); err != nil {
		serveError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func manifestLocation(name, ref string) string {
	return "/v2/" + name + "/manifests/" + ref
}

// tagsHandler serves the supplemented tag-listing extension point: GET
// /v2/<name>/tags/list.
type tagsHandler struct {
	app *App
}

func (th *tagsHandler) ListTags(w http.ResponseWriter, r *http.Request) {
	name := mustVar(r, "name")

	tags, err := th.app.ListTags(r.Context(), r, name)
	if err != nil {
		serveError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Name string   `json:"name"`
		Tags []string `json:"tags"`
	}{Name: name, Tags: tags})
}
