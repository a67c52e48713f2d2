package digestengine

import (
	"testing"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/require"
)

func TestFromBytes(t *testing.T) {
	dgst := FromBytes([]byte("hello world"))
	require.Equal(t, digest.Canonical, dgst.Algorithm())
	require.NoError(t, dgst.Validate())
}

func TestHasherMatchesFromBytes(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")

	h := NewHasher()
	h.Update(data[:10])
	h.Update(data[10:])
	require.Equal(t, FromBytes(data), h.Finalize())
}

func TestParseRoundTrip(t *testing.T) {
	dgst := FromBytes([]byte("content"))

	parsed, err := Parse(dgst.String())
	require.NoError(t, err)
	require.Equal(t, dgst, parsed)
}

func TestParseInvalid(t *testing.T) {
	_, err := Parse("not-a-digest")
	require.Error(t, err)
}
