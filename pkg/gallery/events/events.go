// Package events decodes S3-style bucket notifications, as sent by AWS S3
// and by MinIO's webhook and Kafka targets.
package events

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Notification is the envelope of an S3 event notification.
type Notification struct {
	// EventName and Key are only set by MinIO.
	EventName string   `json:"EventName,omitempty"`
	Key       string   `json:"Key,omitempty"`
	Records   []Record `json:"Records"`
}

// Record is a single bucket event.
type Record struct {
	EventVersion string    `json:"eventVersion"`
	EventSource  string    `json:"eventSource"`
	EventTime    time.Time `json:"eventTime"`
	EventName    string    `json:"eventName"`
	S3           S3Entity  `json:"s3"`
}

// S3Entity identifies the bucket and object of a Record.
type S3Entity struct {
	Bucket struct {
		Name string `json:"name"`
	} `json:"bucket"`
	Object struct {
		Key       string `json:"key"`
		Size      int64  `json:"size,omitempty"`
		ETag      string `json:"eTag,omitempty"`
		Sequencer string `json:"sequencer,omitempty"`
	} `json:"object"`
}

// ObjectCreated is a decoded object-created event with an unescaped key.
type ObjectCreated struct {
	Bucket    string
	Key       string
	Size      int64
	EventTime time.Time
}

// IsObjectCreated matches "ObjectCreated:Put" and MinIO's "s3:ObjectCreated:Put".
func IsObjectCreated(eventName string) bool {
	return strings.HasPrefix(strings.TrimPrefix(eventName, "s3:"), "ObjectCreated:")
}

// Parse decodes a notification and returns its object-created records.
// Other event kinds, including the s3:TestEvent sent when a notification is
// configured, yield no records and no error.
func Parse(data []byte) ([]ObjectCreated, error) {
	var n Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("decode notification: %w", err)
	}

	var out []ObjectCreated
	for _, rec := range n.Records {
		if !IsObjectCreated(rec.EventName) {
			continue
		}
		// Keys arrive URL-encoded with '+' for spaces.
		key, err := url.QueryUnescape(rec.S3.Object.Key)
		if err != nil {
			return nil, fmt.Errorf("decode object key %q: %w", rec.S3.Object.Key, err)
		}
		out = append(out, ObjectCreated{
			Bucket:    rec.S3.Bucket.Name,
			Key:       key,
			Size:      rec.S3.Object.Size,
			EventTime: rec.EventTime,
		})
	}
	return out, nil
}

// NewObjectCreated builds a single-record notification for a put, in the
// same shape S3 would send.
func NewObjectCreated(bucket, key string, size int64, at time.Time) Notification {
	rec := Record{
		EventVersion: "2.1",
		EventSource:  "aws:s3",
		EventTime:    at.UTC(),
		EventName:    "ObjectCreated:Put",
	}
	rec.S3.Bucket.Name = bucket
	rec.S3.Object.Key = url.QueryEscape(key)
	rec.S3.Object.Size = size
	return Notification{Records: []Record{rec}}
}
