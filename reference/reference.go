// Package reference implements the repository-name namespace model (spec
// §3 "Repository name R", §4.5 C5) and reference parsing: the manifest
// "reference" string supplied in a pull/push URL, which is either a tag
// or a digest.
package reference

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/opencontainers/go-digest"
)

// NameTotalLengthMax is the maximum total number of characters in a
// normalized repository name (spec §3).
const NameTotalLengthMax = 255

var (
	// ErrNameEmpty is returned for an empty repository name.
	ErrNameEmpty = errors.New("repository name must have at least one component")

	// ErrNameTooLong is returned when a repository name exceeds
	// NameTotalLengthMax.
	ErrNameTooLong = fmt.Errorf("repository name must not be more than %d characters", NameTotalLengthMax)

	// ErrNameContainsInvalidComponent is returned when any path segment
	// fails the component grammar, or is "." or "..".
	ErrNameContainsInvalidComponent = errors.New("repository name contains an invalid component")

	// ErrReferenceInvalidFormat is returned when a reference string is
	// neither a valid tag nor a valid digest.
	ErrReferenceInvalidFormat = errors.New("invalid reference format")
)

// componentRegexp matches a single repository path segment: spec §3
// "[a-z0-9]+(?:[._-][a-z0-9]+)*".
var componentRegexp = regexp.MustCompile(`^[a-z0-9]+(?:[._-][a-z0-9]+)*$`)

// tagRegexp matches a tag reference: spec §3
// "[A-Za-z0-9_][A-Za-z0-9._-]{0,127}".
var tagRegexp = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9._-]{0,127}$`)

// ParseName validates and normalizes a repository name built from one or
// more URL path segments, with no limit on their number, joined by the
// caller into a single slash-separated string. It rejects empty segments, ".", "..", segments
// failing the component grammar, names exceeding NameTotalLengthMax, and
// any non-UTF-8 byte sequence.
func ParseName(name string) (string, error) {
	if name == "" {
		return "", ErrNameEmpty
	}
	if len(name) > NameTotalLengthMax {
		return "", ErrNameTooLong
	}
	if strings.ToValidUTF8(name, "�") != name {
		return "", fmt.Errorf("%w: invalid UTF-8", ErrNameContainsInvalidComponent)
	}

	segments := strings.Split(name, "/")
	for _, seg := range segments {
		if seg == "" || seg == "." || seg == ".." {
			return "", ErrNameContainsInvalidComponent
		}
		if !componentRegexp.MatchString(seg) {
			return "", fmt.Errorf("%w: %q", ErrNameContainsInvalidComponent, seg)
		}
	}

	// Defense in depth (spec §4.5): reject anything that would escape the
	// repository's subtree once concatenated into a filesystem path, even
	// though the component grammar above already disallows "." and "..".
	if strings.Contains(name, "..") || strings.HasPrefix(name, "/") {
		return "", ErrNameContainsInvalidComponent
	}

	return name, nil
}

// IsTag reports whether ref has valid tag syntax.
func IsTag(ref string) bool {
	return tagRegexp.MatchString(ref)
}

// Reference is the parsed form of a manifest URL reference: either a tag
// or a digest, the two namespaces being disjoint by syntax (spec §3
// "Reference").
type Reference struct {
	Tag    string
	Digest digest.Digest
}

// IsDigest reports whether the reference resolved to a digest rather
// than a tag.
func (r Reference) IsDigest() bool {
	return r.Digest != ""
}

func (r Reference) String() string {
	if r.IsDigest() {
		return r.Digest.String()
	}
	return r.Tag
}

// ParseReference classifies ref as a digest reference if it parses as
// "<alg>:<hex>", otherwise requires tag syntax.
func ParseReference(ref string) (Reference, error) {
	if dgst, err := digest.Parse(ref); err == nil {
		return Reference{Digest: dgst}, nil
	}
	if IsTag(ref) {
		return Reference{Tag: ref}, nil
	}
	return Reference{}, ErrReferenceInvalidFormat
}
