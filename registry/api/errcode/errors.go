// Package errcode implements C7, the OCI-conformant error taxonomy and its
// HTTP status mapping (spec §6 "Error response body", §7). Errors are
// registered once at init time with Register, yielding a process-wide
// unique ErrorCode that behaves like any other error value and can be
// enriched with WithDetail before being serialized by ServeJSON.
package errcode

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// ErrorCode represents the unique, registered identifier for a kind of
// error the registry's API surface can produce.
type ErrorCode int

// ErrorDescriptor provides relevant information about a given error code.
type ErrorDescriptor struct {
	// Code is the error code that this descriptor describes.
	Code ErrorCode

	// Value provides a unique, string key, often UPPERCASE with
	// underscores, to identify the error code. This is the OCI
	// distribution spec "code" field.
	Value string

	// Message is a short, human readable description of the error
	// condition included in API responses.
	Message string

	// Description provides a complete account of the errors purpose,
	// suitable for use in documentation.
	Description string

	// HTTPStatusCode provides the http status code that is associated
	// with this error condition.
	HTTPStatusCode int
}

// ErrorCoder is implemented by error types that carry a registered
// ErrorCode, letting ServeJSON map them to an HTTP status without a type
// switch over every concrete error type in the registry.
type ErrorCoder interface {
	ErrorCode() ErrorCode
}

// Error provides a wrapper around ErrorCode with extra Details provided.
type Error struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Detail  interface{} `json:"detail,omitempty"`
}

// ErrorCode returns the ID/Value of this Error.
func (e Error) ErrorCode() ErrorCode {
	return e.Code
}

// Error returns a human readable representation of the error.
func (e Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code.String(), e.Message)
}

// WithDetail creates a new Error struct based on the passed-in info and
// set the Details field appropriately.
func (ec ErrorCode) WithDetail(detail interface{}) Error {
	return Error{
		Code:    ec,
		Message: ec.Message(),
		Detail:  detail,
	}
}

// WithMessage creates a new Error struct, overriding the default message.
func (ec ErrorCode) WithMessage(message string) Error {
	return Error{
		Code:    ec,
		Message: message,
	}
}

var _ error = ErrorCode(0)
var _ error = Error{}

// Error returns the error code's human-readable message.
func (ec ErrorCode) Error() string {
	return ec.Message()
}

// Descriptor returns the descriptor for the error code.
func (ec ErrorCode) Descriptor() ErrorDescriptor {
	d, ok := errorCodeToDescriptors[ec]
	if !ok {
		return ErrorCodeUnknown.Descriptor()
	}
	return d
}

// String returns the canonical identifier for this error code.
func (ec ErrorCode) String() string {
	return ec.Descriptor().Value
}

// Message returned the human-readable error message for this error code.
func (ec ErrorCode) Message() string {
	return ec.Descriptor().Message
}

// MarshalText encodes the receiver into UTF-8-encoded text and returns
// the result.
func (ec ErrorCode) MarshalText() (text []byte, err error) {
	return []byte(ec.String()), nil
}

// UnmarshalText decodes the form generated by MarshalText.
func (ec *ErrorCode) UnmarshalText(text []byte) error {
	desc, ok := idToDescriptors[string(text)]
	if !ok {
		*ec = ErrorCodeUnknown
		return nil
	}
	*ec = desc.Code
	return nil
}

// Errors provides the envelope for multiple errors and a JSON API for
// errors, matching the OCI distribution specification's error body
// (spec §6): {"errors":[{"code":...,"message":...,"detail":...}]}.
type Errors []error

func (errs Errors) Error() string {
	switch len(errs) {
	case 0:
		return "<nil>"
	case 1:
		return errs[0].Error()
	default:
		msg := "errors:\n"
		for _, err := range errs {
			msg += err.Error() + "\n"
		}
		return msg
	}
}

// MarshalJSON converts slice of error, ErrorCode or Error into a JSON
// structure.
func (errs Errors) MarshalJSON() ([]byte, error) {
	var tmpErrs struct {
		Errors []Error `json:"errors,omitempty"`
	}

	for _, daErr := range errs {
		var err Error

		switch daErr := daErr.(type) {
		case ErrorCode:
			err = daErr.WithDetail(nil)
		case Error:
			err = daErr
		default:
			err = ErrorCodeUnknown.WithDetail(daErr.Error())
		}

		tmpErrs.Errors = append(tmpErrs.Errors, err)
	}

	return json.Marshal(tmpErrs)
}

// UnmarshalJSON deserializes []byte to Errors.
func (errs *Errors) UnmarshalJSON(data []byte) error {
	var tmpErrs struct {
		Errors []Error
	}

	if err := json.Unmarshal(data, &tmpErrs); err != nil {
		return err
	}

	var newErrs Errors
	for _, daErr := range tmpErrs.Errors {
		newErrs = append(newErrs, daErr)
	}
	*errs = newErrs
	return nil
}

// ServeJSON attempts to serve the errcode in a JSON envelope. It marshals
// err, sets the Content-Type header, and writes the associated HTTP
// status code (spec §7 "Propagation policy"). Unrecognized error types
// fall back to ErrorCodeUnknown / 500, matching the teacher's
// registry/api/errcode/handler.go.
func ServeJSON(w http.ResponseWriter, err error) error {
	w.Header().Set("Content-Type", "application/json")
	var sc int

	switch errs := err.(type) {
	case Errors:
		if len(errs) < 1 {
			break
		}
		if coder, ok := errs[0].(ErrorCoder); ok {
			sc = coder.ErrorCode().Descriptor().HTTPStatusCode
		}
	case ErrorCoder:
		sc = errs.ErrorCode().Descriptor().HTTPStatusCode
		err = Errors{err}
	default:
		err = Errors{err}
	}

	if sc == 0 {
		sc = http.StatusInternalServerError
	}

	w.WriteHeader(sc)
	return json.NewEncoder(w).Encode(err)
}
