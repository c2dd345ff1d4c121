package s3

import (
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublicURL(t *testing.T) {
	u, err := PublicURL("https://cdn.example.com/", "thumb/abc.jpg")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/thumb/abc.jpg", u)

	u, err = PublicURL("https://cdn.example.com/media", "thumb/abc.jpg")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/media/thumb/abc.jpg", u)
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(&types.NoSuchKey{}))
	assert.True(t, isNotFound(&smithy.GenericAPIError{Code: "NoSuchKey"}))
	assert.False(t, isNotFound(&smithy.GenericAPIError{Code: "AccessDenied"}))
	assert.False(t, isNotFound(errors.New("connection reset")))
}

func TestNew_RequiresBucket(t *testing.T) {
	_, err := New(t.Context(), Config{})
	assert.Error(t, err)
}
