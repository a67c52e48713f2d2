package errcode

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorCodeWithDetail(t *testing.T) {
	err := ErrorCodeBlobUnknown.WithDetail("sha256:deadbeef")
	require.Equal(t, ErrorCodeBlobUnknown, err.ErrorCode())
	require.Equal(t, "sha256:deadbeef", err.Detail)
}

func TestErrorCodeStringRoundTrip(t *testing.T) {
	var ec ErrorCode
	require.NoError(t, ec.UnmarshalText([]byte("MANIFEST_UNKNOWN")))
	require.Equal(t, ErrorCodeManifestUnknown, ec)
}

func TestErrorsMarshalJSON(t *testing.T) {
	errs := Errors{ErrorCodeDigestInvalid.WithDetail("bad digest")}
	raw, err := json.Marshal(errs)
	require.NoError(t, err)

	var decoded struct {
		Errors []struct {
			Code string `json:"code"`
		} `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Len(t, decoded.Errors, 1)
	require.Equal(t, "DIGEST_INVALID", decoded.Errors[0].Code)
}

func TestServeJSONSetsStatus(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, ServeJSON(w, ErrorCodeManifestUnknown.WithDetail("missing")))
	require.Equal(t, 404, w.Code)
	require.Equal(t, "application/json", w.Header().Get("Content-Type"))
}

func TestServeJSONUnknownErrorDefaultsTo500(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, ServeJSON(w, errors.New("boom")))
	require.Equal(t, 500, w.Code)
}
