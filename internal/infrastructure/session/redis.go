// Package session stores checkout drafts in redis, keyed by checkout session.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"checkout-orchestrator/internal/domain"
)

const defaultOperationTimeout = 3 * time.Second

func draftKey(sessionID string) string { return "checkout:draft:" + sessionID }
func cartKey(sessionID string) string  { return "checkout:cart:" + sessionID }

type RedisDraftStore struct {
	client *redis.Client
}

// NewRedisClient accepts either a redis:// URL or a bare host:port.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	var opts *redis.Options
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: addr}
	}
	opts.PoolSize = 10
	opts.MinIdleConns = 2
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func NewRedisDraftStore(client *redis.Client) *RedisDraftStore {
	return &RedisDraftStore{client: client}
}

func (s *RedisDraftStore) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, defaultOperationTimeout)
}

func (s *RedisDraftStore) GetDraft(ctx context.Context, sessionID string) (*domain.OrderDraft, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	raw, err := s.client.Get(ctx, draftKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var draft domain.OrderDraft
	if err := json.Unmarshal(raw, &draft); err != nil {
		return nil, fmt.Errorf("decode draft for session %s: %w", sessionID, err)
	}
	return &draft, nil
}

func (s *RedisDraftStore) ClearDraft(ctx context.Context, sessionID string) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	return s.client.Del(ctx, draftKey(sessionID)).Err()
}

func (s *RedisDraftStore) ClearCart(ctx context.Context, sessionID string) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	return s.client.Del(ctx, cartKey(sessionID)).Err()
}

// Put writes a draft and cart snapshot the way the cart/shipping step does.
// A zero ttl keeps the keys until cleared.
func (s *RedisDraftStore) Put(ctx context.Context, sessionID string, draft domain.OrderDraft, cart domain.CartSnapshot, ttl time.Duration) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	d, err := json.Marshal(draft)
	if err != nil {
		return err
	}
	c, err := json.Marshal(cart)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, draftKey(sessionID), d, ttl)
	pipe.Set(ctx, cartKey(sessionID), c, ttl)
	_, err = pipe.Exec(ctx)
	return err
}

// Ping is used by the health endpoint.
func (s *RedisDraftStore) Ping(ctx context.Context) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	return s.client.Ping(ctx).Err()
}
