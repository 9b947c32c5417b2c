package redis

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/turtacn/opinion-miner/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/opinion-miner/internal/intelligence/opinion"
	"github.com/turtacn/opinion-miner/pkg/errors"
)

// EntityStore keeps the span entity lines of every mined document layer in
// Redis lists:
//
//	<prefix>entities:<doc>:<layer>   list of entity lines
//	<prefix>entities:<doc>           set of stored layers
type EntityStore struct {
	client *Client
	ttl    time.Duration
	logger logging.Logger
}

// NewEntityStore creates a store whose keys expire after ttl.  A zero ttl
// keeps them forever.
func NewEntityStore(client *Client, ttl time.Duration, log logging.Logger) *EntityStore {
	return &EntityStore{client: client, ttl: ttl, logger: logging.OrNop(log).Named("entity-store")}
}

func (s *EntityStore) layerKey(docID, layer string) string {
	return s.client.Key("entities", docID, layer)
}

func (s *EntityStore) indexKey(docID string) string {
	return s.client.Key("entities", docID)
}

// SaveEntityLines replaces the stored lines of one document layer.
func (s *EntityStore) SaveEntityLines(ctx context.Context, docID, layer string, lines []string) error {
	rdb, err := s.client.GetUnderlyingClient()
	if err != nil {
		return err
	}
	key := s.layerKey(docID, layer)
	index := s.indexKey(docID)

	_, err = rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, key)
		if len(lines) > 0 {
			values := make([]interface{}, len(lines))
			for i, l := range lines {
				values[i] = l
			}
			p.RPush(ctx, key, values...)
		}
		p.SAdd(ctx, index, layer)
		if s.ttl > 0 {
			p.Expire(ctx, key, s.ttl)
			p.Expire(ctx, index, s.ttl)
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeCache, "failed to save entity lines").
			WithDetailf("document=%s layer=%s", docID, layer)
	}
	s.logger.Debug("entity lines saved",
		logging.String("document", docID),
		logging.String("layer", layer),
		logging.Int("lines", len(lines)),
	)
	return nil
}

// LoadEntityLines returns the stored lines of a document layer.  A layer
// never saved is reported as not found; a saved empty layer is not.
func (s *EntityStore) LoadEntityLines(ctx context.Context, docID, layer string) ([]string, error) {
	rdb, err := s.client.GetUnderlyingClient()
	if err != nil {
		return nil, err
	}
	known, err := rdb.SIsMember(ctx, s.indexKey(docID), layer).Result()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCache, "failed to read entity index")
	}
	if !known {
		return nil, errors.NotFound("no entities stored").WithDetailf("document=%s layer=%s", docID, layer)
	}
	lines, err := rdb.LRange(ctx, s.layerKey(docID, layer), 0, -1).Result()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCache, "failed to read entity lines")
	}
	return lines, nil
}

// LoadEntities parses the stored lines of a document layer.
func (s *EntityStore) LoadEntities(ctx context.Context, docID, layer string) ([]*opinion.SpanEntity, error) {
	lines, err := s.LoadEntityLines(ctx, docID, layer)
	if err != nil {
		return nil, err
	}
	return opinion.ReadEntities(strings.NewReader(strings.Join(lines, "\n")))
}

// Layers returns the stored layers of a document.
func (s *EntityStore) Layers(ctx context.Context, docID string) ([]string, error) {
	rdb, err := s.client.GetUnderlyingClient()
	if err != nil {
		return nil, err
	}
	layers, err := rdb.SMembers(ctx, s.indexKey(docID)).Result()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCache, "failed to read entity index")
	}
	return layers, nil
}

// DeleteDocument drops every stored layer of a document.
func (s *EntityStore) DeleteDocument(ctx context.Context, docID string) error {
	layers, err := s.Layers(ctx, docID)
	if err != nil {
		return err
	}
	rdb, err := s.client.GetUnderlyingClient()
	if err != nil {
		return err
	}
	keys := []string{s.indexKey(docID)}
	for _, l := range layers {
		keys = append(keys, s.layerKey(docID, l))
	}
	if err := rdb.Del(ctx, keys...).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCache, "failed to delete entities").WithDetail(docID)
	}
	return nil
}
