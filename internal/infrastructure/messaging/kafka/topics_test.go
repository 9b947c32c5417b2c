package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/opinion-miner/internal/config"
	"github.com/turtacn/opinion-miner/internal/infrastructure/monitoring/logging"
)

func TestEventEnvelope_RoundTrip(t *testing.T) {
	submitted := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	env, err := NewEventEnvelope(EventDocumentSubmitted, "test", DocumentSubmittedPayload{
		Key: "incoming/r1.json", SubmittedAt: submitted,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, env.EventID)
	assert.Equal(t, "v1", env.SchemaVersion)

	pm, err := env.ToMessage("opinion.document.submitted", "incoming/r1.json")
	require.NoError(t, err)
	assert.Equal(t, "incoming/r1.json", string(pm.Key))
	assert.Equal(t, EventDocumentSubmitted, pm.Headers[HeaderEventType])

	decoded, err := MessageToEventEnvelope(&Message{Value: pm.Value})
	require.NoError(t, err)
	assert.Equal(t, env.EventID, decoded.EventID)

	var payload DocumentSubmittedPayload
	require.NoError(t, decoded.DecodePayload(&payload))
	assert.Equal(t, "incoming/r1.json", payload.Key)
	assert.True(t, submitted.Equal(payload.SubmittedAt))
}

func TestEventEnvelope_KeyDefaultsToEventID(t *testing.T) {
	env, err := NewEventEnvelope(EventDocumentFailed, "test", DocumentAnnotatedPayload{Key: "k"})
	require.NoError(t, err)
	pm, err := env.ToMessage("t", "")
	require.NoError(t, err)
	assert.Equal(t, env.EventID, string(pm.Key))
}

func TestMessageToEventEnvelope_Invalid(t *testing.T) {
	_, err := MessageToEventEnvelope(&Message{})
	assert.Error(t, err)
	_, err = MessageToEventEnvelope(&Message{Value: []byte("{")})
	assert.Error(t, err)

	env := &EventEnvelope{EventID: "e1"}
	assert.Error(t, env.DecodePayload(&DocumentSubmittedPayload{}))
}

func TestDefaultTopics(t *testing.T) {
	cfg := config.KafkaConfig{SubmittedTopic: "in", AnnotatedTopic: "out", DeadLetterTopic: "dlq"}
	topics := DefaultTopics(cfg)
	require.Len(t, topics, 3)
	assert.Equal(t, "in", topics[0].Name)
	assert.Equal(t, "dlq", topics[2].Name)

	cfg.DeadLetterTopic = ""
	assert.Len(t, DefaultTopics(cfg), 2)
}

func TestTopicManager_EnsureTopicsSkipsExisting(t *testing.T) {
	conn := &mockKafkaConn{partitions: map[string][]kafka.Partition{"in": {{Topic: "in"}}}}
	m := &TopicManager{conn: conn, logger: logging.NewNopLogger()}

	err := m.EnsureTopics(context.Background(), []TopicConfig{
		{Name: "in", NumPartitions: 1, ReplicationFactor: 1},
		{Name: "out", NumPartitions: 2, ReplicationFactor: 1, RetentionMs: 1000},
	})
	require.NoError(t, err)
	require.Len(t, conn.created, 1)
	assert.Equal(t, "out", conn.created[0].Topic)
	assert.Equal(t, "1000", conn.created[0].ConfigEntries[0].ConfigValue)
}

func TestTopicManager_AlreadyExistsIsNotAnError(t *testing.T) {
	m := &TopicManager{conn: &mockKafkaConn{createErr: kafka.TopicAlreadyExists}, logger: logging.NewNopLogger()}
	assert.NoError(t, m.CreateTopic(context.Background(), TopicConfig{Name: "x", NumPartitions: 1, ReplicationFactor: 1}))
}

func TestTopicManager_CreateTopicValidation(t *testing.T) {
	m := &TopicManager{conn: &mockKafkaConn{}, logger: logging.NewNopLogger()}
	assert.Error(t, m.CreateTopic(context.Background(), TopicConfig{}))
	assert.Error(t, m.CreateTopic(context.Background(), TopicConfig{Name: "x"}))
}
