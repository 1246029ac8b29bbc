// Package redisstore persists collections in Redis: a hash of JSON bodies
// per collection path, a sorted set for insertion order and a pub/sub
// channel announcing changes.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mamadbah2/argan/internal/repository"
)

const keyPrefix = "argan:"

var _ repository.Store = (*Store)(nil)

// Store is a Redis-backed repository.Store.
type Store struct {
	client *redis.Client
	logger *zap.Logger
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, opts *redis.Options, logger *zap.Logger) (*Store, error) {
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return NewWithClient(client, logger), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{client: client, logger: logger}
}

// Collection returns the collection stored under path.
func (s *Store) Collection(path string) repository.Collection {
	return &collection{
		client:   s.client,
		logger:   s.logger.With(zap.String("path", path)),
		hashKey:  keyPrefix + path,
		orderKey: keyPrefix + path + ":order",
		seqKey:   keyPrefix + path + ":seq",
		channel:  keyPrefix + "changes:" + path,
	}
}

// Close releases the Redis connection pool.
func (s *Store) Close(context.Context) error {
	return s.client.Close()
}

type collection struct {
	client   *redis.Client
	logger   *zap.Logger
	hashKey  string
	orderKey string
	seqKey   string
	channel  string
}

func (c *collection) List(ctx context.Context) ([]repository.Document, error) {
	ids, err := c.client.ZRange(ctx, c.orderKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read order %s: %w", c.orderKey, err)
	}
	if len(ids) == 0 {
		return []repository.Document{}, nil
	}

	values, err := c.client.HMGet(ctx, c.hashKey, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("read documents %s: %w", c.hashKey, err)
	}

	docs := make([]repository.Document, 0, len(ids))
	for i, value := range values {
		body, ok := value.(string)
		if !ok {
			// Order entry without a body; a concurrent delete is in flight.
			continue
		}
		docs = append(docs, repository.Document{ID: ids[i], Data: []byte(body)})
	}
	return docs, nil
}

func (c *collection) Get(ctx context.Context, id string) (repository.Document, error) {
	body, err := c.client.HGet(ctx, c.hashKey, id).Result()
	if errors.Is(err, redis.Nil) {
		return repository.Document{}, repository.ErrNotFound
	}
	if err != nil {
		return repository.Document{}, fmt.Errorf("get %s/%s: %w", c.hashKey, id, err)
	}
	return repository.Document{ID: id, Data: []byte(body)}, nil
}

func (c *collection) Upsert(ctx context.Context, id string, data []byte) (string, error) {
	if id == "" {
		id = uuid.NewString()
	}

	seq, err := c.client.Incr(ctx, c.seqKey).Result()
	if err != nil {
		return "", fmt.Errorf("next sequence %s: %w", c.seqKey, err)
	}

	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, c.hashKey, id, string(data))
		pipe.ZAddNX(ctx, c.orderKey, redis.Z{Score: float64(seq), Member: id})
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("upsert %s/%s: %w", c.hashKey, id, err)
	}

	c.publish(ctx, id)
	return id, nil
}

func (c *collection) Delete(ctx context.Context, id string) error {
	var removed *redis.IntCmd
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.HDel(ctx, c.hashKey, id)
		pipe.ZRem(ctx, c.orderKey, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", c.hashKey, id, err)
	}
	if removed.Val() == 0 {
		return repository.ErrNotFound
	}

	c.publish(ctx, id)
	return nil
}

// Subscribe listens on the collection channel and pushes a fresh snapshot
// for every change message, starting with the current contents.
func (c *collection) Subscribe(ctx context.Context, fn repository.SnapshotFunc) (func(), error) {
	pubsub := c.client.Subscribe(ctx, c.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", c.channel, err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.deliver(fn)
		for range pubsub.Channel() {
			c.deliver(fn)
		}
	}()

	return func() {
		_ = pubsub.Close()
		<-done
	}, nil
}

func (c *collection) deliver(fn repository.SnapshotFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	docs, err := c.List(ctx)
	if err != nil {
		c.logger.Error("snapshot reload failed", zap.Error(err))
		return
	}
	fn(docs)
}

func (c *collection) publish(ctx context.Context, id string) {
	if err := c.client.Publish(ctx, c.channel, id).Err(); err != nil {
		// The write is committed; subscribers catch up on the next change.
		c.logger.Warn("change notification failed", zap.String("id", id), zap.Error(err))
	}
}
