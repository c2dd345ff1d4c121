package presigned_test

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/cloud-gallery/pkg/gallery/presigned"
)

func parse(t *testing.T, raw string) (string, url.Values) {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u.Path, u.Query()
}

func TestSigner_SignAndValidate(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	signer := presigned.New(
		presigned.WithSecretKey("test-secret-key-at-least-32-bytes!!"),
		presigned.WithClock(func() time.Time { return now }),
	)

	raw, expiresAt, err := signer.SignURL("http://localhost:8080/upload/", "PUT", "originals/a b.png", "image/png", 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, now.Add(15*time.Minute), expiresAt)
	assert.True(t, strings.HasPrefix(raw, "http://localhost:8080/upload/originals/a%20b.png?"))

	path, q := parse(t, raw)
	assert.Equal(t, "/upload/originals/a b.png", path)

	t.Run("Valid", func(t *testing.T) {
		assert.NoError(t, signer.ValidateQuery(q, "PUT", "originals/a b.png", "image/png"))
	})

	t.Run("ContentTypeParametersIgnored", func(t *testing.T) {
		assert.NoError(t, signer.ValidateQuery(q, "PUT", "originals/a b.png", "IMAGE/PNG; charset=binary"))
	})

	t.Run("WrongContentType", func(t *testing.T) {
		err := signer.ValidateQuery(q, "PUT", "originals/a b.png", "image/jpeg")
		assert.ErrorIs(t, err, presigned.ErrInvalidSignature)
	})

	t.Run("WrongMethod", func(t *testing.T) {
		err := signer.ValidateQuery(q, "GET", "originals/a b.png", "image/png")
		assert.ErrorIs(t, err, presigned.ErrInvalidSignature)
	})

	t.Run("WrongKey", func(t *testing.T) {
		err := signer.ValidateQuery(q, "PUT", "originals/other.png", "image/png")
		assert.ErrorIs(t, err, presigned.ErrInvalidSignature)
	})

	t.Run("Missing", func(t *testing.T) {
		err := signer.ValidateQuery(url.Values{}, "PUT", "k", "image/png")
		assert.ErrorIs(t, err, presigned.ErrMissingSignature)
		assert.True(t, presigned.IsAuthError(err))
	})

	t.Run("Expired", func(t *testing.T) {
		later := presigned.New(
			presigned.WithSecretKey("test-secret-key-at-least-32-bytes!!"),
			presigned.WithClock(func() time.Time { return now.Add(time.Hour) }),
		)
		err := later.ValidateQuery(q, "PUT", "originals/a b.png", "image/png")
		assert.ErrorIs(t, err, presigned.ErrExpired)
	})
}

func TestSigner_NoSecret(t *testing.T) {
	signer := presigned.New()
	assert.False(t, signer.IsEnabled())

	_, _, err := signer.SignURL("http://x", "PUT", "k", "", time.Minute)
	assert.ErrorIs(t, err, presigned.ErrNoSecretKey)
	assert.NoError(t, signer.ValidateQuery(url.Values{}, "PUT", "k", ""))
}
