package manifest

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func descriptorJSON(mediaType, digest string, size int64) map[string]interface{} {
	return map[string]interface{}{
		"mediaType": mediaType,
		"digest":    digest,
		"size":      size,
	}
}

func TestParseSingleManifest(t *testing.T) {
	configDigest := "sha256:" + strings.Repeat("1", 64)
	layerDigest := "sha256:" + strings.Repeat("2", 64)

	raw, err := json.Marshal(map[string]interface{}{
		"schemaVersion": 2,
		"mediaType":     MediaTypeDockerSchema2Manifest,
		"config":        descriptorJSON("application/vnd.docker.container.image.v1+json", configDigest, 100),
		"layers": []interface{}{
			descriptorJSON("application/vnd.docker.image.rootfs.diff.tar.gzip", layerDigest, 200),
		},
	})
	require.NoError(t, err)

	m, err := Parse(MediaTypeDockerSchema2Manifest, raw)
	require.NoError(t, err)
	require.False(t, m.IsIndex())

	refs := m.References()
	require.Len(t, refs, 2)
	require.Equal(t, configDigest, refs[0].Digest.String())
	require.Equal(t, layerDigest, refs[1].Digest.String())

	mediaType, payload, err := m.Payload()
	require.NoError(t, err)
	require.Equal(t, MediaTypeDockerSchema2Manifest, mediaType)
	require.Equal(t, raw, payload)
}

func TestParseIndexManifest(t *testing.T) {
	childDigest := "sha256:" + strings.Repeat("3", 64)

	raw, err := json.Marshal(map[string]interface{}{
		"schemaVersion": 2,
		"mediaType":     MediaTypeOCIIndex,
		"manifests": []interface{}{
			descriptorJSON(MediaTypeOCIManifest, childDigest, 300),
		},
	})
	require.NoError(t, err)

	m, err := Parse("", raw)
	require.NoError(t, err)
	require.True(t, m.IsIndex())
	require.Len(t, m.References(), 1)
	require.Equal(t, childDigest, m.References()[0].Digest.String())
}

func TestParseUnrecognizedMediaType(t *testing.T) {
	raw := []byte(`{"schemaVersion":2,"mediaType":"application/vnd.example.unknown+json"}`)
	_, err := Parse("", raw)
	require.Error(t, err)
}

func TestParseInvalidJSON(t *testing.T) {
	_, err := Parse(MediaTypeOCIManifest, []byte("not json"))
	require.Error(t, err)
}
