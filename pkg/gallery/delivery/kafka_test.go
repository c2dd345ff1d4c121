package delivery_test

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/cloud-gallery/pkg/gallery/delivery"
)

// Requires a broker with topic auto-creation, e.g. TEST_KAFKA_BROKERS=localhost:9092.
func TestKafka_PublishConsume(t *testing.T) {
	brokers := os.Getenv("TEST_KAFKA_BROKERS")
	if brokers == "" || testing.Short() {
		t.Skip("TEST_KAFKA_BROKERS not set")
	}

	cfg := delivery.KafkaConfig{
		Brokers: strings.Split(brokers, ","),
		Topic:   "gallery-test-" + uuid.NewString()[:8],
		GroupID: "gallery-test",
	}

	publisher := delivery.NewKafkaPublisher(cfg, "gallery")
	defer publisher.Close()

	k := key()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, publisher.Publish(ctx, k))

	h := newScripted()
	consumer := delivery.NewKafkaConsumer(cfg, delivery.NewRunner(h, fastPolicy(1)), nil)
	defer consumer.Close()

	done := make(chan error, 1)
	go func() { done <- consumer.Run(ctx) }()

	assert.Eventually(t, func() bool {
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.calls[k] == 1
	}, 25*time.Second, 100*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}
