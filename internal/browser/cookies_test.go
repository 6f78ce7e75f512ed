package browser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCookiesEmptyPath(t *testing.T) {
	cookies, err := loadCookies("")
	require.NoError(t, err)
	assert.Nil(t, cookies)
}

func TestLoadCookiesMissingFileIsFreshLogin(t *testing.T) {
	cookies, err := loadCookies(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Nil(t, cookies)
}

func TestSaveAndLoadCookiesRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")
	saved := []Cookie{
		{
			Name:     "session",
			Value:    "abc123",
			Domain:   ".example.com",
			Path:     "/",
			Expires:  1900000000,
			HTTPOnly: true,
			Secure:   true,
			SameSite: "Lax",
		},
		{Name: "lang", Value: "ru", Domain: ".example.com", Path: "/"},
	}

	require.NoError(t, saveCookies(path, saved))

	loaded, err := loadCookies(path)
	require.NoError(t, err)
	assert.Equal(t, saved, loaded)
}

func TestLoadCookiesMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o600))

	_, err := loadCookies(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse cookie file")
}
