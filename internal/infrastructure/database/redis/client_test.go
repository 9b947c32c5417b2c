package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/opinion-miner/internal/config"
	"github.com/turtacn/opinion-miner/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/opinion-miner/pkg/errors"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewClient(config.RedisConfig{Addr: mr.Addr(), KeyPrefix: "test:"}, logging.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestNewClient_Success(t *testing.T) {
	client, _ := newTestClient(t)
	assert.NoError(t, client.Ping(context.Background()))
}

func TestNewClient_ConnectionFailed(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	client, err := NewClient(config.RedisConfig{Addr: addr}, logging.NewNopLogger())
	assert.Error(t, err)
	assert.Nil(t, client)
	assert.True(t, errors.IsCode(err, errors.ErrCodeCache))
}

func TestClient_Key(t *testing.T) {
	client, _ := newTestClient(t)
	assert.Equal(t, "test:entities:stdin:target", client.Key("entities", "stdin", "target"))
}

func TestClient_Close(t *testing.T) {
	client, _ := newTestClient(t)

	assert.NoError(t, client.Close())
	assert.NoError(t, client.Close(), "closing twice is harmless")

	assert.Equal(t, ErrClientClosed, client.Ping(context.Background()))
	_, err := client.GetUnderlyingClient()
	assert.Equal(t, ErrClientClosed, err)
}
