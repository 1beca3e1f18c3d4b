package notes

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures a RedisStore.
type RedisConfig struct {
	Client *redis.Client

	// KeyPrefix is prepended to every key. Default: "notes:".
	KeyPrefix string
}

// RedisStore keeps notes in Redis hashes. An INCR counter allocates ids and
// a list keeps them in creation order.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a store over an existing client.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("redis client is required")
	}

	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "notes:"
	}

	return &RedisStore{client: cfg.Client, prefix: cfg.KeyPrefix}, nil
}

func (s *RedisStore) seqKey() string { return s.prefix + "seq" }
func (s *RedisStore) idsKey() string { return s.prefix + "ids" }
func (s *RedisStore) noteKey(id string) string { return s.prefix + "note:" + id }

// List returns all notes in creation order.
func (s *RedisStore) List(ctx context.Context) ([]*Note, error) {
	ids, err := s.client.LRange(ctx, s.idsKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list note ids: %w", err)
	}

	if len(ids) == 0 {
		return nil, nil
	}

	pipe := s.client.Pipeline()

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, s.noteKey(id))
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("load notes: %w", err)
	}

	out := make([]*Note, 0, len(ids))

	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}

		out = append(out, &Note{ID: ids[i], Title: fields["title"], Content: fields["content"]})
	}

	return out, nil
}

// Get returns the note with the given id.
func (s *RedisStore) Get(ctx context.Context, id string) (*Note, error) {
	if _, err := strconv.ParseUint(id, 10, 64); err != nil {
		return nil, ErrNotFound
	}

	fields, err := s.client.HGetAll(ctx, s.noteKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("get note %s: %w", id, err)
	}

	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	return &Note{ID: id, Title: fields["title"], Content: fields["content"]}, nil
}

// Create allocates an id and stores the note.
func (s *RedisStore) Create(ctx context.Context, title, content string) (*Note, error) {
	seq, err := s.client.Incr(ctx, s.seqKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("allocate note id: %w", err)
	}

	id := strconv.FormatInt(seq, 10)

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.noteKey(id), "title", title, "content", content)
		pipe.RPush(ctx, s.idsKey(), id)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store note %s: %w", id, err)
	}

	return &Note{ID: id, Title: title, Content: content}, nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
