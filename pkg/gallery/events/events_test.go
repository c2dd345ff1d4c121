package events_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/cloud-gallery/pkg/gallery/events"
)

const awsEvent = `{
  "Records": [
    {
      "eventVersion": "2.1",
      "eventSource": "aws:s3",
      "eventTime": "2024-03-01T10:00:00.000Z",
      "eventName": "ObjectCreated:Put",
      "s3": {
        "bucket": {"name": "gallery"},
        "object": {"key": "originals/my+photo%281%29.jpg", "size": 2048}
      }
    },
    {
      "eventVersion": "2.1",
      "eventSource": "aws:s3",
      "eventName": "ObjectRemoved:Delete",
      "s3": {"bucket": {"name": "gallery"}, "object": {"key": "originals/gone.jpg"}}
    }
  ]
}`

const minioEvent = `{
  "EventName": "s3:ObjectCreated:Put",
  "Key": "gallery/originals/abc.png",
  "Records": [
    {
      "eventVersion": "2.0",
      "eventSource": "minio:s3",
      "eventName": "s3:ObjectCreated:Put",
      "s3": {"bucket": {"name": "gallery"}, "object": {"key": "originals%2Fabc.png", "size": 10}}
    }
  ]
}`

func TestParse(t *testing.T) {
	t.Run("AWS", func(t *testing.T) {
		got, err := events.Parse([]byte(awsEvent))
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "gallery", got[0].Bucket)
		assert.Equal(t, "originals/my photo(1).jpg", got[0].Key)
		assert.Equal(t, int64(2048), got[0].Size)
		assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), got[0].EventTime.UTC())
	})

	t.Run("MinIO", func(t *testing.T) {
		got, err := events.Parse([]byte(minioEvent))
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "originals/abc.png", got[0].Key)
	})

	t.Run("TestEvent", func(t *testing.T) {
		got, err := events.Parse([]byte(`{"Service":"Amazon S3","Event":"s3:TestEvent","Bucket":"gallery"}`))
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("Malformed", func(t *testing.T) {
		_, err := events.Parse([]byte(`{"Records": [`))
		assert.Error(t, err)
	})
}

func TestNewObjectCreated_RoundTrip(t *testing.T) {
	n := events.NewObjectCreated("gallery", "originals/a b.png", 5, time.Now())
	data, err := json.Marshal(n)
	require.NoError(t, err)

	got, err := events.Parse(data)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "originals/a b.png", got[0].Key)
}

func TestIsObjectCreated(t *testing.T) {
	assert.True(t, events.IsObjectCreated("ObjectCreated:Put"))
	assert.True(t, events.IsObjectCreated("s3:ObjectCreated:CompleteMultipartUpload"))
	assert.False(t, events.IsObjectCreated("ObjectRemoved:Delete"))
	assert.False(t, events.IsObjectCreated(""))
}
