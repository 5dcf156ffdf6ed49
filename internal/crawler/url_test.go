package crawler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeURLStripsFragment(t *testing.T) {
	got, err := NormalizeURL("https://docs.example.com/guide#install")
	require.NoError(t, err)
	require.Equal(t, "https://docs.example.com/guide", got)
}

func TestNormalizeURLKeepsQueryAndTrailingSlash(t *testing.T) {
	got, err := NormalizeURL("https://docs.example.com/guide/?v=2")
	require.NoError(t, err)
	require.Equal(t, "https://docs.example.com/guide/?v=2", got)
}

func TestValidateURL(t *testing.T) {
	cases := []struct {
		url  string
		want bool
	}{
		{"https://docs.example.com/guide", true},
		{"http://docs.example.com/", true},
		{"https://docs.example.com/api?page=2", true},
		{"", false},
		{"#section", false},
		{"mailto:help@example.com", false},
		{"tel:+15555550100", false},
		{"javascript:void(0)", false},
		{"ftp://example.com/file", false},
		{"https://", false},
		{"https://docs.example.com/manual.pdf", false},
		{"https://docs.example.com/logo.png", false},
		{"https://docs.example.com/styles.css", false},
		{"https://docs.example.com/archive.tar.gz", false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, ValidateURL(tc.url), "url %q", tc.url)
	}
}

func TestSameDomain(t *testing.T) {
	require.True(t, SameDomain("https://docs.example.com/a", "https://docs.example.com"))
	require.True(t, SameDomain("https://DOCS.EXAMPLE.COM/a", "https://docs.example.com"))
	require.False(t, SameDomain("https://example.com/a", "https://docs.example.com"))
	require.False(t, SameDomain("http://docs.example.com/a", "https://docs.example.com"))
	require.False(t, SameDomain("https://docs.example.com:8080/a", "https://docs.example.com"))
}

func TestBaseDomain(t *testing.T) {
	got, err := BaseDomain("https://docs.example.com/guide/install#top")
	require.NoError(t, err)
	require.Equal(t, "https://docs.example.com", got)
}
