package kafka

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/opinion-miner/internal/config"
	apperrors "github.com/turtacn/opinion-miner/pkg/errors"
)

func TestValidateProducerConfig(t *testing.T) {
	assert.NoError(t, ValidateProducerConfig(ProducerConfig{Brokers: []string{"localhost:9092"}}))
	assert.Error(t, ValidateProducerConfig(ProducerConfig{}))
	assert.Error(t, ValidateProducerConfig(ProducerConfig{Brokers: []string{"b"}, MaxRetries: -1}))
}

func TestProducerConfigFrom(t *testing.T) {
	cfg := ProducerConfigFrom(config.KafkaConfig{Brokers: []string{"k1:9092"}, MaxRetries: 5})
	assert.Equal(t, []string{"k1:9092"}, cfg.Brokers)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, "all", cfg.Acks)
}

func TestProducer_Publish(t *testing.T) {
	w := &mockKafkaWriter{}
	p := newProducer(w, ProducerConfig{Brokers: []string{"b"}}, nil)

	err := p.Publish(context.Background(), &ProducerMessage{
		Topic:   "opinion.document.annotated",
		Key:     []byte("incoming/r1.json"),
		Value:   []byte(`{"ok":true}`),
		Headers: map[string]string{HeaderEventType: EventDocumentAnnotated},
	})
	require.NoError(t, err)
	require.Len(t, w.messages, 1)

	m := w.messages[0]
	assert.Equal(t, "opinion.document.annotated", m.Topic)
	assert.Equal(t, "incoming/r1.json", string(m.Key))
	assert.False(t, m.Time.IsZero())
	require.Len(t, m.Headers, 1)
	assert.Equal(t, HeaderEventType, m.Headers[0].Key)
	assert.Equal(t, int64(1), p.Stats().MessagesSent)
}

func TestProducer_PublishValidation(t *testing.T) {
	p := newProducer(&mockKafkaWriter{}, ProducerConfig{Brokers: []string{"b"}, MaxMessageBytes: 8}, nil)
	ctx := context.Background()

	err := p.Publish(ctx, &ProducerMessage{Value: []byte("x")})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation))

	err = p.Publish(ctx, &ProducerMessage{Topic: "t"})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation))

	err = p.Publish(ctx, &ProducerMessage{Topic: "t", Value: []byte(strings.Repeat("x", 9))})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation))
}

func TestProducer_PublishWriteError(t *testing.T) {
	p := newProducer(&mockKafkaWriter{err: errors.New("broker down")}, ProducerConfig{Brokers: []string{"b"}}, nil)

	err := p.Publish(context.Background(), &ProducerMessage{Topic: "t", Value: []byte("v")})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeMessaging))
	assert.Equal(t, int64(1), p.Stats().MessagesFailed)
}

func TestProducer_Close(t *testing.T) {
	w := &mockKafkaWriter{}
	p := newProducer(w, ProducerConfig{Brokers: []string{"b"}}, nil)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.True(t, w.closed)

	err := p.Publish(context.Background(), &ProducerMessage{Topic: "t", Value: []byte("v")})
	assert.ErrorIs(t, err, ErrProducerClosed)
}
