package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"thinktank-service/internal/app"
	"thinktank-service/internal/domain"
)

// DocStore implements app.DocumentStore on Redis. Each document is a
// hash (doc:{path}) with JSON-encoded field values; each collection is
// a sorted set (col:{collection}) scored by a per-collection counter
// so listings keep insertion order.
type DocStore struct {
	client *redis.Client
}

func NewDocStore(client *redis.Client) *DocStore {
	return &DocStore{client: client}
}

func (s *DocStore) Exists(ctx context.Context, path string) (bool, error) {
	n, err := s.client.Exists(ctx, docKey(path)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

func (s *DocStore) Read(ctx context.Context, path string) (app.Record, error) {
	raw, err := s.client.HGetAll(ctx, docKey(path)).Result()
	if err != nil {
		return app.Record{}, fmt.Errorf("redis read: %w", err)
	}
	if len(raw) == 0 {
		return app.Record{}, nil
	}
	return app.Record{Present: true, Fields: decodeFields(raw)}, nil
}

func (s *DocStore) WriteMerge(ctx context.Context, path string, fields app.Fields) error {
	encoded, err := encodeFields(fields)
	if err != nil {
		return err
	}

	exists, err := s.client.Exists(ctx, docKey(path)).Result()
	if err != nil {
		return fmt.Errorf("redis merge: %w", err)
	}
	if exists == 0 {
		if err := s.registerChild(ctx, path); err != nil {
			return err
		}
	}

	if err := s.client.HSet(ctx, docKey(path), encoded...).Err(); err != nil {
		return fmt.Errorf("redis merge: %w", err)
	}
	return nil
}

func (s *DocStore) WriteOverwrite(ctx context.Context, path string, fields app.Fields) error {
	exists, err := s.client.Exists(ctx, docKey(path)).Result()
	if err != nil {
		return fmt.Errorf("redis overwrite: %w", err)
	}
	if exists == 0 {
		return domain.ErrNotFound
	}

	encoded, err := encodeFields(fields)
	if err != nil {
		return err
	}
	if err := s.client.HSet(ctx, docKey(path), encoded...).Err(); err != nil {
		return fmt.Errorf("redis overwrite: %w", err)
	}
	return nil
}

func (s *DocStore) ListChildren(ctx context.Context, collection string) ([]app.Child, error) {
	ids, err := s.client.ZRange(ctx, colKey(collection), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list children: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, docKey(collection+"/"+id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("redis list children: %w", err)
	}

	children := make([]app.Child, 0, len(ids))
	for i, id := range ids {
		raw, err := cmds[i].Result()
		if err != nil {
			return nil, fmt.Errorf("redis list children: %w", err)
		}
		children = append(children, app.Child{ID: id, Fields: decodeFields(raw)})
	}
	return children, nil
}

func (s *DocStore) registerChild(ctx context.Context, path string) error {
	idx := strings.LastIndex(path, "/")
	if idx <= 0 {
		return nil
	}
	collection, id := path[:idx], path[idx+1:]
	seq, err := s.client.Incr(ctx, "colseq:"+collection).Result()
	if err != nil {
		return fmt.Errorf("redis register child: %w", err)
	}
	err = s.client.ZAddNX(ctx, colKey(collection), redis.Z{Score: float64(seq), Member: id}).Err()
	if err != nil {
		return fmt.Errorf("redis register child: %w", err)
	}
	return nil
}

func docKey(path string) string {
	return "doc:" + path
}

func colKey(collection string) string {
	return "col:" + collection
}

func encodeFields(fields app.Fields) ([]any, error) {
	encoded := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode field %s: %w", k, err)
		}
		encoded = append(encoded, k, string(data))
	}
	return encoded, nil
}

func decodeFields(raw map[string]string) app.Fields {
	fields := make(app.Fields, len(raw))
	for k, v := range raw {
		var value any
		if err := json.Unmarshal([]byte(v), &value); err != nil {
			value = v
		}
		fields[k] = value
	}
	return fields
}
