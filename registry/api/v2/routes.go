// Package v2 defines the HTTP route table for the OCI/Docker Registry API
// v2 surface, mirroring the teacher's root-level routes.go but widened to
// accept a repository name of arbitrary depth (spec §3 "an arbitrary
// number of slash-separated segments", a deliberate generalization of the
// Rust original's three-level cap).
package v2

import (
	"github.com/gorilla/mux"
)

// Route names, used by handlers to reverse a URL and by tests to locate
// a registered route without hard-coding its path.
const (
	RouteNameBase            = "base"
	RouteNameManifest        = "manifest"
	RouteNameTags            = "tags"
	RouteNameBlob            = "blob"
	RouteNameBlobUpload      = "blob-upload"
	RouteNameBlobUploadChunk = "blob-upload-chunk"
	RouteNameCatalog         = "catalog"
)

// nameComponent is one "/"-separated repository path segment (spec §3).
const nameComponent = `[a-z0-9]+(?:[._-][a-z0-9]+)*`

// nameRegexp matches a full repository name of one or more nameComponent
// segments, joined by "/", with no depth limit.
const nameRegexp = nameComponent + `(?:/` + nameComponent + `)*`

// digestRegexp matches an "<algorithm>:<hex>" content digest.
const digestRegexp = `[A-Za-z0-9_+.-]+:[A-Fa-f0-9]+`

// Router builds the gorilla/mux router implementing every route this
// facade serves, registering each path pattern under one of the route
// names above.
func Router() *mux.Router {
	router := mux.NewRouter().StrictSlash(true)

	router.Path("/v2/").Name(RouteNameBase)
	router.Path("/v2/{name:" + nameRegexp + "}/manifests/{reference:[^/]+}").Name(RouteNameManifest)
	router.Path("/v2/{name:" + nameRegexp + "}/tags/list").Name(RouteNameTags)
	router.Path("/v2/{name:" + nameRegexp + "}/blobs/{digest:" + digestRegexp + "}").Name(RouteNameBlob)
	router.Path("/v2/{name:" + nameRegexp + "}/blobs/uploads/").Name(RouteNameBlobUpload)
	router.Path("/v2/{name:" + nameRegexp + "}/blobs/uploads/{uuid:[^/]+}").Name(RouteNameBlobUploadChunk)
	router.Path("/v2/_catalog").Name(RouteNameCatalog)

	return router
}
