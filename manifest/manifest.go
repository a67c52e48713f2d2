// Package manifest implements C8, parsing the manifest JSON formats the
// registry accepts (spec §4.4 step 1: "a recognized schema") and exposing
// the set of digests each one references, without pulling in a full
// image-spec validation stack.
package manifest

import (
	"encoding/json"
	"fmt"

	registry "github.com/ocireg/registry"
	v1 "github.com/opencontainers/image-spec/specs-go/v1"
)

// Recognized media types (spec §4.4 "OCI image manifest v1, Docker
// manifest v2 schema 2, or a manifest index / Docker manifest list").
const (
	MediaTypeDockerSchema2Manifest = "application/vnd.docker.distribution.manifest.v2+json"
	MediaTypeDockerManifestList    = "application/vnd.docker.distribution.manifest.list.v2+json"
	MediaTypeOCIManifest           = v1.MediaTypeImageManifest
	MediaTypeOCIIndex              = v1.MediaTypeImageIndex
)

// versioned is the common "schemaVersion"/"mediaType" envelope every
// supported schema starts with, used to sniff which concrete type to
// unmarshal into (mirrors the teacher's manifest.Versioned, shared by
// manifest/schema2, manifest/ocischema and manifest/manifestlist).
type versioned struct {
	SchemaVersion int    `json:"schemaVersion"`
	MediaType     string `json:"mediaType,omitempty"`
}

// single is the shape shared by a Docker schema2 manifest and an OCI
// image manifest: one config blob plus a list of layer blobs.
type single struct {
	versioned
	Config v1.Descriptor   `json:"config"`
	Layers []v1.Descriptor `json:"layers"`
}

// index is the shape shared by a Docker manifest list and an OCI image
// index: a list of child manifest descriptors, not blobs.
type index struct {
	versioned
	Manifests []v1.Descriptor `json:"manifests"`
}

// Deserialized wraps a parsed manifest together with the exact bytes it
// was parsed from, the way the teacher's DeserializedManifest does, so
// that Payload() always returns byte-identical content to what was
// pushed (spec §3 "dig(M) = sha256 of its raw bytes").
type Deserialized struct {
	mediaType string
	raw       []byte
	refs      []registry.Descriptor
	// isIndex is true when refs names child manifests rather than blobs
	// (spec §9 "must look up child digests in the manifest store, not
	// the blob store").
	isIndex bool
}

var _ registry.Manifest = (*Deserialized)(nil)

// Payload returns the manifest's declared content type and exact bytes.
func (d *Deserialized) Payload() (string, []byte, error) {
	return d.mediaType, d.raw, nil
}

// References returns the blob (or, for an index, manifest) descriptors
// this manifest refers to.
func (d *Deserialized) References() []registry.Descriptor {
	return d.refs
}

// IsIndex reports whether this manifest is a multi-platform index, whose
// referents must be validated against the manifest store rather than the
// blob store (spec §9).
func (d *Deserialized) IsIndex() bool {
	return d.isIndex
}

// Parse sniffs contentType (falling back to the document's own
// "mediaType" field) and unmarshals raw into a Deserialized manifest.
// An unrecognized schema, or JSON that does not parse at all, is
// surfaced as registry.ErrManifestInvalid (spec §4.4 step 1, §9 "source
// silently ignores some parse errors ... this spec requires they
// surface").
func Parse(contentType string, raw []byte) (*Deserialized, error) {
	var v versioned
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, registry.ErrManifestInvalid{Reason: fmt.Errorf("invalid JSON: %w", err)}
	}

	mediaType := contentType
	if mediaType == "" {
		mediaType = v.MediaType
	}
	// A client-declared Content-Type always wins sniffing when it names a
	// type we recognize; otherwise fall back to the document's own field.
	if !isRecognized(mediaType) && isRecognized(v.MediaType) {
		mediaType = v.MediaType
	}

	switch mediaType {
	case MediaTypeDockerSchema2Manifest, MediaTypeOCIManifest:
		var s single
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, registry.ErrManifestInvalid{Reason: err}
		}
		refs := make([]registry.Descriptor, 0, 1+len(s.Layers))
		refs = append(refs, toDescriptor(s.Config))
		for _, l := range s.Layers {
			refs = append(refs, toDescriptor(l))
		}
		return &Deserialized{mediaType: mediaType, raw: raw, refs: refs}, nil

	case MediaTypeDockerManifestList, MediaTypeOCIIndex:
		var idx index
		if err := json.Unmarshal(raw, &idx); err != nil {
			return nil, registry.ErrManifestInvalid{Reason: err}
		}
		refs := make([]registry.Descriptor, 0, len(idx.Manifests))
		for _, m := range idx.Manifests {
			refs = append(refs, toDescriptor(m))
		}
		return &Deserialized{mediaType: mediaType, raw: raw, refs: refs, isIndex: true}, nil

	default:
		return nil, registry.ErrManifestInvalid{Reason: fmt.Errorf("unrecognized manifest media type %q", mediaType)}
	}
}

func isRecognized(mt string) bool {
	switch mt {
	case MediaTypeDockerSchema2Manifest, MediaTypeOCIManifest, MediaTypeDockerManifestList, MediaTypeOCIIndex:
		return true
	default:
		return false
	}
}

func toDescriptor(d v1.Descriptor) registry.Descriptor {
	return registry.Descriptor{
		MediaType: d.MediaType,
		Size:      d.Size,
		Digest:    d.Digest,
	}
}
