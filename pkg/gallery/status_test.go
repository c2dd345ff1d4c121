package gallery

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    Status
		wantErr bool
	}{
		{"READY", StatusReady, false},
		{"ready", StatusReady, false},
		{" Ready\n", StatusReady, false},
		{"\tpending ", StatusPending, false},
		{"Failed", StatusFailed, false},
		{"UPLOADING", "", true},
		{"", "", true},
		{"READY!", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStatus(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidStatus)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStatus_Terminal(t *testing.T) {
	assert.False(t, StatusPending.IsTerminal())
	assert.True(t, StatusReady.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
	assert.False(t, Status("ready").Valid())
}

func TestCanIngest(t *testing.T) {
	ok, err := canIngest(StatusPending)
	assert.NoError(t, err)
	assert.True(t, ok)

	for _, s := range []Status{StatusReady, StatusFailed} {
		ok, err := canIngest(s)
		assert.NoError(t, err)
		assert.False(t, ok)
	}

	_, err = canIngest(Status("bogus"))
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestCanTransition(t *testing.T) {
	assert.NoError(t, canTransition(StatusPending, StatusReady))
	assert.NoError(t, canTransition(StatusPending, StatusFailed))
	assert.ErrorIs(t, canTransition(StatusReady, StatusFailed), ErrRaceLost)
	assert.ErrorIs(t, canTransition(StatusFailed, StatusReady), ErrRaceLost)
	assert.ErrorIs(t, canTransition(StatusReady, StatusReady), ErrRaceLost)
	assert.ErrorIs(t, canTransition(Status("x"), StatusReady), ErrInvalidStatus)
}

func TestKeys(t *testing.T) {
	id := uuid.MustParse("7c9e6679-7425-40de-944b-e07fc1f90ae7")

	assert.Equal(t, "originals/7c9e6679-7425-40de-944b-e07fc1f90ae7.jpg", OriginalKey(id, "image/jpeg"))
	assert.Equal(t, "originals/7c9e6679-7425-40de-944b-e07fc1f90ae7.png", OriginalKey(id, "image/png"))
	assert.Equal(t, "thumb/7c9e6679-7425-40de-944b-e07fc1f90ae7.jpg", ThumbnailKey(id))

	got, err := ImageIDFromKey(OriginalKey(id, "image/gif"))
	require.NoError(t, err)
	assert.Equal(t, id, got)

	got, err = ImageIDFromKey("/" + OriginalKey(id, "image/png"))
	require.NoError(t, err)
	assert.Equal(t, id, got)

	for _, key := range []string{
		ThumbnailKey(id),
		"originals/nested/" + id.String() + ".png",
		"originals/" + id.String() + ".txt",
		"originals/" + id.String(),
		"originals/7C9E6679-7425-40DE-944B-E07FC1F90AE7.png",
		"originals/{" + id.String() + "}.png",
		"originals/urn:uuid:" + id.String() + ".png",
	} {
		_, err = ImageIDFromKey(key)
		assert.ErrorIs(t, err, ErrIgnoredKey, key)
	}
}

func TestContentTypeAllowed(t *testing.T) {
	assert.True(t, contentTypeAllowed("image/png", DefaultAllowedContentTypes))
	assert.False(t, contentTypeAllowed("image/webp", DefaultAllowedContentTypes))
	assert.True(t, contentTypeAllowed("image/webp", []string{"image/*"}))
	assert.False(t, contentTypeAllowed("video/mp4", []string{"image/*"}))

	ct, err := NormalizeContentType("Image/PNG; q=1")
	require.NoError(t, err)
	assert.Equal(t, "image/png", ct)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(&ImageError{Op: "ingest", Err: ErrFetchFailure}))
	assert.True(t, IsTransient(ErrClassificationFailure))
	assert.False(t, IsTransient(ErrOrphanObject))
	assert.False(t, IsTransient(ErrInvalidImage))
	assert.False(t, IsTransient(nil))
	assert.True(t, IsPermanent(&ImageError{Err: ErrInvalidImage}))
}
