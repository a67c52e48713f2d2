package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"sort"

	gorillahandlers "github.com/gorilla/handlers"

	"github.com/ocireg/registry/internal/dcontext"
	v2 "github.com/ocireg/registry/registry/api/v2"
)

// NewRouter builds the complete HTTP handler for app: the gorilla/mux
// route table from registry/api/v2 wired to this package's endpoint
// handlers, matching the teacher's router construction in
// registry/handlers/app.go but without the pull-through-cache and
// notification middleware this implementation does not carry.
func NewRouter(app *App) http.Handler {
	router := v2.Router()

	router.Get(v2.RouteNameBase).Handler(http.HandlerFunc(app.serveBase))

	bh := &blobHandler{app: app}
	router.Get(v2.RouteNameBlob).Handler(gorillahandlers.MethodHandler{
		http.MethodGet:  http.HandlerFunc(bh.serveBlob),
		http.MethodHead: http.HandlerFunc(bh.serveBlob),
	})

	buh := &blobUploadHandler{app: app}
	router.Get(v2.RouteNameBlobUpload).Handler(gorillahandlers.MethodHandler{
		http.MethodPost: http.HandlerFunc(buh.StartBlobUpload),
	})
	chunkMethods := gorillahandlers.MethodHandler{
		http.MethodGet:  http.HandlerFunc(buh.GetUploadStatus),
		http.MethodHead: http.HandlerFunc(buh.GetUploadStatus),
	}
	if !app.readOnly {
		chunkMethods[http.MethodPatch] = http.HandlerFunc(buh.PatchBlobData)
		chunkMethods[http.MethodPut] = http.HandlerFunc(buh.PutBlobUploadComplete)
		chunkMethods[http.MethodDelete] = http.HandlerFunc(buh.CancelBlobUpload)
	}
	router.Get(v2.RouteNameBlobUploadChunk).Handler(chunkMethods)

	mh := &manifestHandler{app: app}
	manifestMethods := gorillahandlers.MethodHandler{
		http.MethodGet:  http.HandlerFunc(mh.GetManifest),
		http.MethodHead: http.HandlerFunc(mh.GetManifest),
	}
	if !app.readOnly {
		manifestMethods[http.MethodPut] = http.HandlerFunc(mh.PutManifest)
		manifestMethods[http.MethodDelete] = http.HandlerFunc(mh.DeleteManifest)
	}
	router.Get(v2.RouteNameManifest).Handler(manifestMethods)

	th := &tagsHandler{app: app}
	router.Get(v2.RouteNameTags).Handler(gorillahandlers.MethodHandler{
		http.MethodGet: http.HandlerFunc(th.ListTags),
	})

	router.Get(v2.RouteNameCatalog).Handler(gorillahandlers.MethodHandler{
		http.MethodGet: http.HandlerFunc(app.serveCatalog),
	})

	return withRequestLogging(router)
}

// serveBase implements GET /v2/, the API version probe clients use to
// confirm the server speaks this protocol before sending real requests
// (spec §1, a supplemented feature grounded in the Rust original's index
// route).
func (app *App) serveBase(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Docker-Distribution-Api-Version", "registry/2.0")
	writeJSON(w, http.StatusOK, struct{}{})
}

// serveCatalog implements the supplemented GET /v2/_catalog extension
// point: every repository with at least one tag, found by walking the
// manifests directory for "tags" subdirectories; a repository whose
// manifests were pushed only by digest is not listed (spec §1 notes catalog listing as an
// extension point left to a future iteration; this is a minimal one).
func (app *App) serveCatalog(w http.ResponseWriter, r *http.Request) {
	root := app.reg.Root()
	manifestsDir := filepath.Join(root, "manifests")

	var repos []string
	err := filepath.WalkDir(manifestsDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() && d.Name() == "tags" {
			rel, relErr := filepath.Rel(manifestsDir, filepath.Dir(path))
			if relErr == nil {
				repos = append(repos, filepath.ToSlash(rel))
			}
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		serveError(w, err)
		return
	}

	sort.Strings(repos)
	writeJSON(w, http.StatusOK, struct {
		Repositories []string `json:"repositories"`
	}{Repositories: repos})
}

// withRequestLogging attaches a request-scoped logger to the context
// (mirroring the teacher's dcontext-based request logging in
// registry/handlers/context.go) before delegating to next.
func withRequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := dcontext.WithLogger(r.Context(), dcontext.GetLogger(r.Context()).WithField("http.request.method", r.Method).WithField("http.request.uri", r.URL.Path))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
