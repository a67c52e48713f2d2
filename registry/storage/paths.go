package storage

import (
	"fmt"
	"path/filepath"

	"github.com/opencontainers/go-digest"
)

// pathSpec abstracts the digest or UUID bits that make up a path into a
// formatter-independent value, the way the teacher's registry/storage
// paths.go separates pathSpec types from path formatting. Unlike the
// teacher, our store is scoped per-repository and keeps exactly the
// four-directory layout spec.md §6 specifies; there is no sharded,
// cross-repository blob pool.
//
//	<root>/
//	  blobs/<repo>/<alg>:<hex>
//	  manifests/<repo>/<alg>:<hex>
//	  manifests/<repo>/tags/<tag>
//	  scratch/<uuid>
type pathSpec interface {
	pathComponents() []string
}

type blobDataPathSpec struct {
	repository string
	digest     digest.Digest
}

func (p blobDataPathSpec) pathComponents() []string {
	return []string{"blobs", p.repository, p.digest.String()}
}

type manifestDataPathSpec struct {
	repository string
	digest     digest.Digest
}

func (p manifestDataPathSpec) pathComponents() []string {
	return []string{"manifests", p.repository, p.digest.String()}
}

type manifestTagPathSpec struct {
	repository string
	tag        string
}

func (p manifestTagPathSpec) pathComponents() []string {
	return []string{"manifests", p.repository, "tags", p.tag}
}

type manifestTagsDirPathSpec struct {
	repository string
}

func (p manifestTagsDirPathSpec) pathComponents() []string {
	return []string{"manifests", p.repository, "tags"}
}

type uploadScratchPathSpec struct {
	id string
}

func (p uploadScratchPathSpec) pathComponents() []string {
	return []string{"scratch", p.id}
}

// pathFor resolves spec to an absolute path rooted at root.
func pathFor(root string, spec pathSpec) (string, error) {
	comps := spec.pathComponents()
	for _, c := range comps {
		if c == "" {
			return "", fmt.Errorf("storage: empty path component in %T", spec)
		}
	}
	elems := append([]string{root}, comps...)
	return filepath.Join(elems...), nil
}
