package url

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAndValidate(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid http", "http://example.com", false},
		{"valid https with path", "https://example.com/path?q=1", false},
		{"empty", "", true},
		{"whitespace", "   ", true},
		{"no scheme", "example.com/path", true},
		{"ftp scheme", "ftp://example.com", true},
		{"javascript scheme", "javascript:alert(1)", true},
		{"scheme only", "https://", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseAndValidate(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercases scheme and host", "HTTPS://Example.COM/Path", "https://example.com/Path"},
		{"strips default https port", "https://example.com:443/a", "https://example.com/a"},
		{"strips default http port", "http://example.com:80/a", "http://example.com/a"},
		{"keeps custom port", "https://example.com:8443/a", "https://example.com:8443/a"},
		{"removes fragment", "https://example.com/a#section", "https://example.com/a"},
		{"sorts query params", "https://example.com/a?z=1&a=2&m=3", "https://example.com/a?a=2&m=3&z=1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeQueryOrderIndependent(t *testing.T) {
	a, err := Normalize("https://example.com/x?b=2&a=1&c=3")
	require.NoError(t, err)
	b, err := Normalize("https://example.com/x?c=3&a=1&b=2")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestOrigin(t *testing.T) {
	origin, err := Origin("https://Example.com:8443/path?q=1")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com:8443", origin)

	origin, err = Origin("http://example.com/robots.txt")
	require.NoError(t, err)
	assert.Equal(t, "http://example.com", origin)
}

func TestRegistrableDomain(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"https://www.example.com/page", "example.com"},
		{"https://a.b.example.co.uk/x", "example.co.uk"},
		{"https://example.com:8080", "example.com"},
		{"http://localhost:9000/x", "localhost"},
	}

	for _, tt := range tests {
		got, err := RegistrableDomain(tt.input)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "input: %s", tt.input)
	}
}
