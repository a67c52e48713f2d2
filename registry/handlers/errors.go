package handlers

import (
	"errors"
	"net/http"

	registry "github.com/ocireg/registry"
	"github.com/ocireg/registry/registry/api/errcode"
)

// toErrorCode maps the core's sentinel and structured errors onto the
// registered OCI error codes (spec §7 "Propagation policy: the storage
// engine's errors map onto exactly the taxonomy in this section; the
// facade introduces no new kinds"). An error the core never produces
// falls back to ErrorCodeUnknown via errcode.ServeJSON.
func toErrorCode(err error) error {
	if _, ok := err.(errcode.ErrorCoder); ok {
		return err
	}

	switch {
	case errors.Is(err, registry.ErrUnsupported):
		return errcode.ErrorCodeUnsupported
	case errors.Is(err, registry.ErrAccessDenied):
		return errcode.ErrorCodeDenied
	}

	switch e := err.(type) {
	case registry.ErrBlobUnknown:
		return errcode.ErrorCodeBlobUnknown.WithDetail(e.Digest)
	case registry.ErrBlobInvalidDigest:
		return errcode.ErrorCodeDigestInvalid.WithDetail(e.Error())
	case registry.ErrUploadUnknown:
		return errcode.ErrorCodeBlobUploadUnknown.WithDetail(e.ID)
	case registry.ErrUploadClosed:
		return errcode.ErrorCodeBlobUploadInvalid.WithDetail(e.Error())
	case registry.ErrUploadConflict:
		return errcode.ErrorCodeRangeInvalid.WithDetail(e.Error())
	case registry.ErrManifestUnknown:
		return errcode.ErrorCodeManifestUnknown.WithDetail(e.Error())
	case registry.ErrManifestBlobUnknown:
		return errcode.ErrorCodeManifestBlobUnknown.WithDetail(e.Digest)
	case registry.ErrManifestInvalid:
		return errcode.ErrorCodeManifestInvalid.WithDetail(e.Error())
	case registry.ErrNameInvalid:
		return errcode.ErrorCodeNameInvalid.WithDetail(e.Error())
	default:
		return errcode.ErrorCodeUnknown.WithDetail(err.Error())
	}
}

// serveError writes err as an OCI error envelope with the appropriate
// HTTP status, logging any failure to do so itself.
func serveError(w http.ResponseWriter, err error) {
	if writeErr := errcode.ServeJSON(w, toErrorCode(err)); writeErr != nil {
		http.Error(w, writeErr.Error(), http.StatusInternalServerError)
	}
}
