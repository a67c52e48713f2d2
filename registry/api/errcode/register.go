package errcode

import (
	"net/http"
	"sort"
	"sync"
)

var (
	errorCodeToDescriptors = map[ErrorCode]ErrorDescriptor{}
	idToDescriptors        = map[string]ErrorDescriptor{}
	groupToDescriptors     = map[string][]ErrorDescriptor{}
	mu                     sync.Mutex
	nextCode               = 1
)

// register registers an ErrorDescriptor under the given group, assigning
// it a process-unique ErrorCode.
func register(group string, descriptor ErrorDescriptor) ErrorCode {
	mu.Lock()
	defer mu.Unlock()

	descriptor.Code = ErrorCode(nextCode)
	nextCode++

	errorCodeToDescriptors[descriptor.Code] = descriptor
	groupToDescriptors[group] = append(groupToDescriptors[group], descriptor)
	idToDescriptors[descriptor.Value] = descriptor

	return descriptor.Code
}

// GetGroupNames returns the list of Error group names that have been
// registered, sorted lexically.
func GetGroupNames() []string {
	keys := []string{}
	for k := range groupToDescriptors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ErrorCodes returns the list of all registered ErrorCodes, sorted by
// their value.
func ErrorCodes() []ErrorCode {
	var codes []ErrorCode
	for code := range errorCodeToDescriptors {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}

const errGroup = "registry.api.v2"

var (
	// ErrorCodeUnknown is a generic error used when no situation-specific
	// error applies.
	ErrorCodeUnknown = register("errcode", ErrorDescriptor{
		Value:          "UNKNOWN",
		Message:        "unknown error",
		Description:    "Generic error returned when the error does not have an API classification.",
		HTTPStatusCode: http.StatusInternalServerError,
	})

	// ErrorCodeUnsupported is returned when an operation is not
	// supported (spec §4.4 "Delete is unsupported in v1").
	ErrorCodeUnsupported = register(errGroup, ErrorDescriptor{
		Value:          "UNSUPPORTED",
		Message:        "The operation is unsupported.",
		Description:    "The operation was unsupported due to a missing implementation or invalid set of parameters.",
		HTTPStatusCode: http.StatusMethodNotAllowed,
	})

	// ErrorCodeUnauthorized is returned when a request requires
	// authentication and none was supplied.
	ErrorCodeUnauthorized = register(errGroup, ErrorDescriptor{
		Value:          "UNAUTHORIZED",
		Message:        "authentication required",
		Description:    "The client could not be authenticated.",
		HTTPStatusCode: http.StatusUnauthorized,
	})

	// ErrorCodeDenied is returned when the external authorization
	// decision denies a request (spec §1 "authorization decision").
	ErrorCodeDenied = register(errGroup, ErrorDescriptor{
		Value:          "DENIED",
		Message:        "requested access to the resource is denied",
		Description:    "The authorization decision for the operation on the resource was deny.",
		HTTPStatusCode: http.StatusForbidden,
	})

	// ErrorCodeDigestInvalid is returned when uploading a blob if the
	// provided digest does not match the uploaded content, or a digest
	// string fails to parse (spec §7 "DigestInvalid").
	ErrorCodeDigestInvalid = register(errGroup, ErrorDescriptor{
		Value:          "DIGEST_INVALID",
		Message:        "provided digest did not match uploaded content",
		Description:    "The digest check on the uploaded blob failed, or the supplied digest string could not be parsed.",
		HTTPStatusCode: http.StatusBadRequest,
	})

	// ErrorCodeSizeInvalid is returned when a declared Content-Length
	// does not match the bytes actually supplied.
	ErrorCodeSizeInvalid = register(errGroup, ErrorDescriptor{
		Value:          "SIZE_INVALID",
		Message:        "provided length did not match content length",
		Description:    "The provided content length did not match the uploaded content.",
		HTTPStatusCode: http.StatusBadRequest,
	})

	// ErrorCodeNameInvalid is returned when a repository name fails
	// normalization (spec §4.5 C5).
	ErrorCodeNameInvalid = register(errGroup, ErrorDescriptor{
		Value:          "NAME_INVALID",
		Message:        "invalid repository name",
		Description:    "Invalid repository name encountered either during manifest validation or any API operation.",
		HTTPStatusCode: http.StatusBadRequest,
	})

	// ErrorCodeNameUnknown is returned when the repository is not known.
	ErrorCodeNameUnknown = register(errGroup, ErrorDescriptor{
		Value:          "NAME_UNKNOWN",
		Message:        "repository name not known to registry",
		Description:    "This is returned if the name used during an operation is unknown to the registry.",
		HTTPStatusCode: http.StatusNotFound,
	})

	// ErrorCodeManifestUnknown is returned when a manifest or tag
	// reference is not found (spec §7 "ManifestUnknown").
	ErrorCodeManifestUnknown = register(errGroup, ErrorDescriptor{
		Value:          "MANIFEST_UNKNOWN",
		Message:        "manifest unknown",
		Description:    "This error is returned when the manifest, identified by name and tag or digest, is unknown to the repository.",
		HTTPStatusCode: http.StatusNotFound,
	})

	// ErrorCodeManifestInvalid is returned when JSON is invalid, the
	// schema is unrecognized, or the self-digest doesn't match (spec §7
	// "ManifestInvalid"); a missing referenced blob is reported as
	// ErrorCodeManifestBlobUnknown instead.
	ErrorCodeManifestInvalid = register(errGroup, ErrorDescriptor{
		Value:          "MANIFEST_INVALID",
		Message:        "manifest invalid",
		Description:    "During upload, manifests undergo several checks ensuring validity. If those checks fail, this error may be returned, unless a more specific error is included.",
		HTTPStatusCode: http.StatusBadRequest,
	})

	// ErrorCodeManifestBlobUnknown is returned when a manifest
	// references a blob unknown to the repository (spec §4.4 step 3).
	ErrorCodeManifestBlobUnknown = register(errGroup, ErrorDescriptor{
		Value:          "MANIFEST_BLOB_UNKNOWN",
		Message:        "blob unknown to registry",
		Description:    "This error may be returned when a manifest blob is unknown to the registry.",
		HTTPStatusCode: http.StatusBadRequest,
	})

	// ErrorCodeBlobUnknown is returned when a referenced blob cannot be
	// found (spec §7 "BlobUnknown").
	ErrorCodeBlobUnknown = register(errGroup, ErrorDescriptor{
		Value:          "BLOB_UNKNOWN",
		Message:        "blob unknown to registry",
		Description:    "This error may be returned when a blob is unknown to the registry in a specified repository.",
		HTTPStatusCode: http.StatusNotFound,
	})

	// ErrorCodeBlobUploadUnknown is returned when an upload session UUID
	// is not registered (spec §7 "UploadUnknown").
	ErrorCodeBlobUploadUnknown = register(errGroup, ErrorDescriptor{
		Value:          "BLOB_UPLOAD_UNKNOWN",
		Message:        "blob upload unknown to registry",
		Description:    "If a blob upload has been cancelled or was never started, this error code may be returned.",
		HTTPStatusCode: http.StatusNotFound,
	})

	// ErrorCodeBlobUploadInvalid is returned when an upload's state is
	// inconsistent with the requested operation.
	ErrorCodeBlobUploadInvalid = register(errGroup, ErrorDescriptor{
		Value:          "BLOB_UPLOAD_INVALID",
		Message:        "blob upload invalid",
		Description:    "The blob upload encountered an error and can no longer proceed.",
		HTTPStatusCode: http.StatusBadRequest,
	})

	// ErrorCodeRangeInvalid is returned when a chunked upload's declared
	// Content-Range does not match the session's current offset (spec
	// §4.3 "Conflict" / §6 "416 on offset conflict").
	ErrorCodeRangeInvalid = register(errGroup, ErrorDescriptor{
		Value:          "RANGE_INVALID",
		Message:        "requested range not satisfiable",
		Description:    "When a layer is uploaded out of order, this error will be returned.",
		HTTPStatusCode: http.StatusRequestedRangeNotSatisfiable,
	})
)
