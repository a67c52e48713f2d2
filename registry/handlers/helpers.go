package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/ocireg/registry/registry/api/errcode"
)

// writeJSON encodes v as the response body with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// modTimeUnset is passed to http.ServeContent for content this facade
// never tracks a modification time for; every blob is immutable once
// committed; go-digest, Content-Length, and the name are what it needs.
var modTimeUnset time.Time

// mustVar fetches a gorilla/mux path variable. The router only ever
// dispatches to these handlers with the variable already present, so a
// miss indicates a route table bug rather than a client error.
func mustVar(r *http.Request, key string) string {
	v, ok := mux.Vars(r)[key]
	if !ok {
		panic(fmt.Sprintf("handlers: route variable %q not present", key))
	}
	return v
}

func errInvalidDigest(s string) error {
	return errcode.ErrorCodeDigestInvalid.WithDetail(fmt.Sprintf("invalid digest %q", s))
}

// parseContentRange parses a "Content-Range: <start>-<end>" header value
// (the registry protocol's own reduced form, not a full RFC 7233 byte
// range), used by PatchBlobData to validate chunk ordering (spec §4.3
// patch).
func parseContentRange(cr string) (start, end int64, err error) {
	parts := strings.SplitN(cr, "-", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid content range format: %s", cr)
	}
	start, err = strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, err
	}
	end, err = strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}
