package storage

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	registry "github.com/ocireg/registry"
	"github.com/ocireg/registry/digestengine"
	"github.com/opencontainers/go-digest"
)

// tagStore implements registry.TagService by storing each tag as a small
// indirection file containing the digest string it points at (spec §4.4
// step 6, §6 "manifests/<repo>/tags/<tag>"). Writes go through a
// temp-file-then-rename so concurrent Get calls never observe a torn
// write (spec §4.4 "atomic with respect to concurrent get_manifest").
type tagStore struct {
	root       string
	repository string
}

var _ registry.TagService = (*tagStore)(nil)

func (t *tagStore) tagPath(tag string) (string, error) {
	return pathFor(t.root, manifestTagPathSpec{repository: t.repository, tag: tag})
}

func (t *tagStore) Get(ctx context.Context, tag string) (digest.Digest, error) {
	p, err := t.tagPath(tag)
	if err != nil {
		return "", err
	}
	content, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return "", registry.ErrManifestUnknown{Name: t.repository, Reference: tag}
		}
		return "", err
	}
	dgst, err := digestengine.Parse(string(content))
	if err != nil {
		// A dangling or corrupt link is indistinguishable from "not
		// found" to the caller (spec §4.4 get_manifest).
		return "", registry.ErrManifestUnknown{Name: t.repository, Reference: tag}
	}
	return dgst, nil
}

func (t *tagStore) Tag(ctx context.Context, tag string, dgst digest.Digest) error {
	p, err := t.tagPath(tag)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), ".tag-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(dgst.String()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	return os.Rename(tmpName, p)
}

func (t *tagStore) All(ctx context.Context) ([]string, error) {
	dir, err := pathFor(t.root, manifestTagsDirPathSpec{repository: t.repository})
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var tags []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		tags = append(tags, e.Name())
	}
	sort.Strings(tags)
	return tags, nil
}
