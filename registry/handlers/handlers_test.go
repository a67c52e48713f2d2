package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ocireg/registry/digestengine"
	"github.com/ocireg/registry/manifest"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	app, err := NewApp(Config{StorageRoot: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(app.Close)
	return httptest.NewServer(NewRouter(app))
}

// TestEndToEndBlobAndManifestPush exercises begin_upload -> patch_upload
// -> complete_upload -> push_manifest -> pull_manifest -> pull_blob end to
// end over real HTTP, mirroring the teacher's registry/handlers/api_test.go
// style of driving the facade through its public HTTP surface.
func TestEndToEndBlobAndManifestPush(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	repo := "library/app"
	layer := []byte("layer contents")
	layerDigest := digestengine.FromBytes(layer)

	uploadURL := uploadBlob(t, srv.URL, repo, layer, layerDigest.String())
	require.NotEmpty(t, uploadURL)

	config := []byte("{}")
	configDigest := digestengine.FromBytes(config)
	uploadBlob(t, srv.URL, repo, config, configDigest.String())

	manifestRaw := []byte(fmt.Sprintf(`{
		"schemaVersion": 2,
		"mediaType": %q,
		"config": {"mediaType": "application/vnd.oci.image.config.v1+json", "digest": %q, "size": %d},
		"layers": [{"mediaType": "application/vnd.oci.image.layer.v1.tar", "digest": %q, "size": %d}]
	}`, manifest.MediaTypeOCIManifest, configDigest.String(), len(config), layerDigest.String(), len(layer)))

	req, err := http.NewRequest(http.MethodPut, srv.URL+"/v2/"+repo+"/manifests/latest", bytes.NewReader(manifestRaw))
	require.NoError(t, err)
	req.Header.Set("Content-Type", manifest.MediaTypeOCIManifest)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	manifestDigest := resp.Header.Get("Docker-Content-Digest")
	require.NotEmpty(t, manifestDigest)

	getResp, err := http.Get(srv.URL + "/v2/" + repo + "/manifests/latest")
	require.NoError(t, err)
	defer getResp.Body.Close()
	require.Equal(t, http.StatusOK, getResp.StatusCode)
	require.Equal(t, manifestDigest, getResp.Header.Get("Docker-Content-Digest"))

	blobResp, err := http.Get(srv.URL + "/v2/" + repo + "/blobs/" + layerDigest.String())
	require.NoError(t, err)
	defer blobResp.Body.Close()
	require.Equal(t, http.StatusOK, blobResp.StatusCode)

	tagsResp, err := http.Get(srv.URL + "/v2/" + repo + "/tags/list")
	require.NoError(t, err)
	defer tagsResp.Body.Close()
	var tagsBody struct {
		Tags []string `json:"tags"`
	}
	require.NoError(t, json.NewDecoder(tagsResp.Body).Decode(&tagsBody))
	require.Contains(t, tagsBody.Tags, "latest")
}

func TestDigestMismatchRejected(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	startResp, err := http.Post(srv.URL+"/v2/foo/blobs/uploads/", "", nil)
	require.NoError(t, err)
	startResp.Body.Close()
	require.Equal(t, http.StatusAccepted, startResp.StatusCode)
	location := startResp.Header.Get("Location")

	wrongDigest := digestengine.FromBytes([]byte("something else"))
	req, err := http.NewRequest(http.MethodPut, srv.URL+location+"?digest="+wrongDigest.String(), bytes.NewReader([]byte("actual content")))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPullUnknownBlobReturns404(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	missing := digestengine.FromBytes([]byte("nope"))
	resp, err := http.Get(srv.URL + "/v2/foo/blobs/" + missing.String())
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestBaseRoute(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v2/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "registry/2.0", resp.Header.Get("Docker-Distribution-Api-Version"))
}

// uploadBlob drives a monolithic POST-with-digest upload to completion and
// returns the Location header of the completed blob.
func uploadBlob(t *testing.T, baseURL, repo string, content []byte, dgst string) string {
	t.Helper()

	req, err := http.NewRequest(http.MethodPost, baseURL+"/v2/"+repo+"/blobs/uploads/?digest="+dgst, bytes.NewReader(content))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return resp.Header.Get("Location")
}
