package reference

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseNameValid(t *testing.T) {
	cases := []string{
		"foo",
		"foo/bar",
		"foo/bar/baz",
		"foo/bar/baz/qux",
		"my-app_v2.0",
		"a1/b2/c3/d4/e5",
	}
	for _, name := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := ParseName(name)
			require.NoError(t, err)
			require.Equal(t, name, got)
		})
	}
}

func TestParseNameInvalid(t *testing.T) {
	cases := []string{
		"",
		"Foo",
		"foo//bar",
		"foo/../bar",
		"/foo",
		"foo/.",
		strings.Repeat("a", NameTotalLengthMax+1),
	}
	for _, name := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseName(name)
			require.Error(t, err)
		})
	}
}

func TestIsTag(t *testing.T) {
	require.True(t, IsTag("latest"))
	require.True(t, IsTag("v1.2.3"))
	require.False(t, IsTag(""))
	require.False(t, IsTag(".leadingdot"))
}

func TestParseReferenceDigest(t *testing.T) {
	ref, err := ParseReference("sha256:" + strings.Repeat("a", 64))
	require.NoError(t, err)
	require.True(t, ref.IsDigest())
	require.Empty(t, ref.Tag)
}

func TestParseReferenceTag(t *testing.T) {
	ref, err := ParseReference("latest")
	require.NoError(t, err)
	require.False(t, ref.IsDigest())
	require.Equal(t, "latest", ref.Tag)
}

func TestParseReferenceInvalid(t *testing.T) {
	_, err := ParseReference("")
	require.Error(t, err)
}
