package handlers

import (
	"net/http"
	"strconv"

	"github.com/opencontainers/go-digest"
)

// blobHandler serves GET/HEAD on a single blob digest (spec §4.2
// pull_blob), streaming bytes straight from the facade's read handle.
type blobHandler struct {
	app *App
}

func (bh *blobHandler) serveBlob(w http.ResponseWriter, r *http.Request) {
	name := mustVar(r, "name")
	dgstStr := mustVar(r, "digest")

	dgst, err := digest.Parse(dgstStr)
	if err != nil {
		serveError(w, errInvalidDigest(dgstStr))
		return
	}

	rsc, size, err := bh.app.PullBlob(r.Context(), r, name, dgst)
	if err != nil {
		serveError(w, err)
		return
	}
	defer rsc.Close()

	w.Header().Set("Docker-Content-Digest", dgst.String())
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Cache-Control", "max-age=31536000")

	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}

	http.ServeContent(w, r, dgst.String(), modTimeUnset, rsc)
}
