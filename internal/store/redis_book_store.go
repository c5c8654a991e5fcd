package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Anilcodes01/proto-book/internal/domain"
	"github.com/Anilcodes01/proto-book/internal/id"
)

const (
	redisKeyPrefix   = "proto-book:book:"
	redisMaxAttempts = 5
)

type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisBookStore keeps each record as a JSON document under its own key.
type RedisBookStore struct {
	client *redis.Client
}

func NewRedisBookStore(ctx context.Context, cfg RedisConfig) (*RedisBookStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisBookStore{client: client}, nil
}

func (s *RedisBookStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisBookStore) Close() error {
	return s.client.Close()
}

func (s *RedisBookStore) Create(ctx context.Context, book domain.Book) (domain.Book, error) {
	if book.ID == "" {
		book.ID = id.New()
	}
	now := time.Now().UTC()
	book.CreatedAt = now
	book.UpdatedAt = now

	payload, err := json.Marshal(book)
	if err != nil {
		return domain.Book{}, fmt.Errorf("marshal book: %w", err)
	}

	ok, err := s.client.SetNX(ctx, bookKey(book.ID), payload, 0).Result()
	if err != nil {
		return domain.Book{}, fmt.Errorf("redis set book: %w", err)
	}
	if !ok {
		return domain.Book{}, fmt.Errorf("book %s already exists", book.ID)
	}

	return book, nil
}

func (s *RedisBookStore) Get(ctx context.Context, id string) (domain.Book, bool, error) {
	book, err := s.get(ctx, s.client, id)
	if errors.Is(err, ErrBookNotFound) {
		return domain.Book{}, false, nil
	}
	if err != nil {
		return domain.Book{}, false, err
	}
	return book, true, nil
}

// Update applies the change inside an optimistic WATCH transaction, retrying
// when another writer touched the record in between.
func (s *RedisBookStore) Update(ctx context.Context, id string, update domain.BookUpdate) error {
	key := bookKey(id)
	txf := func(tx *redis.Tx) error {
		book, err := s.get(ctx, tx, id)
		if err != nil {
			return err
		}

		update.Apply(&book)
		book.UpdatedAt = time.Now().UTC()

		payload, err := json.Marshal(book)
		if err != nil {
			return fmt.Errorf("marshal book: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < redisMaxAttempts; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil && !errors.Is(err, ErrBookNotFound) {
			return fmt.Errorf("redis update book: %w", err)
		}
		return err
	}
	return fmt.Errorf("redis update book %s: too much contention", id)
}

func (s *RedisBookStore) get(ctx context.Context, c stringGetter, id string) (domain.Book, error) {
	raw, err := c.Get(ctx, bookKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Book{}, ErrBookNotFound
	}
	if err != nil {
		return domain.Book{}, fmt.Errorf("redis get book: %w", err)
	}

	var book domain.Book
	if err := json.Unmarshal(raw, &book); err != nil {
		return domain.Book{}, fmt.Errorf("unmarshal book: %w", err)
	}
	return book, nil
}

func bookKey(id string) string {
	return redisKeyPrefix + id
}
