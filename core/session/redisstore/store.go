// Package redisstore provides the Redis-backed session.Store used in
// production deployments. Sessions live in one hash per call with a rolling
// TTL; validation outcomes travel over a per-call append-only stream so a
// reader in another process can rendezvous with the outcome without polling.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/voxline/callcore/core/session"
)

// Store implements session.Store on Redis. Field writes land in a local
// working copy; Persist flushes the whole session hash in one pipeline so
// fresh readers never observe a partial multi-field update.
type Store struct {
	client     *redis.Client
	sessionTTL time.Duration

	mu      sync.Mutex
	working map[string]map[string]any
}

var _ session.Store = (*Store)(nil)

// Options configures the store.
type Options struct {
	// Addr is the Redis host:port.
	Addr     string
	Password string
	DB       int
	// SessionTTL bounds retention of persisted sessions. Zero keeps the
	// default of 24 hours.
	SessionTTL time.Duration
}

// DefaultSessionTTL is applied when Options.SessionTTL is zero.
const DefaultSessionTTL = 24 * time.Hour

// New connects to Redis and verifies the connection before returning.
func New(ctx context.Context, opts Options) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	ttl := opts.SessionTTL
	if ttl == 0 {
		ttl = DefaultSessionTTL
	}

	return &Store{
		client:     client,
		sessionTTL: ttl,
		working:    map[string]map[string]any{},
	}, nil
}

// Close releases the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) Get(ctx context.Context, callConnectionID, key string, fallback any) (any, error) {
	s.mu.Lock()
	if fields, ok := s.working[callConnectionID]; ok {
		if value, ok := fields[key]; ok {
			s.mu.Unlock()
			return value, nil
		}
		s.mu.Unlock()
		return fallback, nil
	}
	s.mu.Unlock()

	// Cold working copy: hydrate it from the persisted hash once so later
	// reads and writes stay local until the next Persist.
	fields, err := s.loadPersisted(ctx, callConnectionID)
	if err != nil {
		return fallback, err
	}

	s.mu.Lock()
	if _, ok := s.working[callConnectionID]; !ok {
		s.working[callConnectionID] = fields
	}
	value, ok := s.working[callConnectionID][key]
	s.mu.Unlock()

	if !ok {
		return fallback, nil
	}
	return value, nil
}

func (s *Store) Set(ctx context.Context, callConnectionID, key string, value any) error {
	return s.Update(ctx, callConnectionID, map[string]any{key: value})
}

func (s *Store) Update(ctx context.Context, callConnectionID string, fields map[string]any) error {
	// Touch the working copy first so updates layer on persisted state.
	if _, err := s.Get(ctx, callConnectionID, "", nil); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	working, ok := s.working[callConnectionID]
	if !ok {
		working = map[string]any{}
		s.working[callConnectionID] = working
	}
	for key, value := range fields {
		working[key] = value
	}
	return nil
}

func (s *Store) Persist(ctx context.Context, callConnectionID string) error {
	s.mu.Lock()
	working, ok := s.working[callConnectionID]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	encoded := make(map[string]string, len(working))
	for key, value := range working {
		raw, err := json.Marshal(value)
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("failed to encode session field %s: %w", key, err)
		}
		encoded[key] = string(raw)
	}
	s.mu.Unlock()

	if len(encoded) == 0 {
		return nil
	}

	key := sessionKey(callConnectionID)
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, encoded)
	pipe.Expire(ctx, key, s.sessionTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to persist session %s: %w", callConnectionID, err)
	}
	return nil
}

func (s *Store) Fresh(ctx context.Context, callConnectionID, key string) (any, error) {
	raw, err := s.client.HGet(ctx, sessionKey(callConnectionID), key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session field %s: %w", key, err)
	}
	return decodeField(raw), nil
}

func (s *Store) PresentationSessionID(ctx context.Context, callConnectionID string) (string, error) {
	value, err := s.Get(ctx, callConnectionID, session.KeyPresentationID, "")
	if err != nil {
		return "", err
	}
	if id, ok := value.(string); ok && id != "" {
		return id, nil
	}

	id := uuid.NewString()
	if err := s.Set(ctx, callConnectionID, session.KeyPresentationID, id); err != nil {
		return "", err
	}
	if err := s.Persist(ctx, callConnectionID); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) NotifyValidationOutcome(ctx context.Context, callConnectionID string, validated bool) error {
	key := outcomeStreamKey(callConnectionID)
	if err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: key,
		MaxLen: 8,
		Approx: true,
		Values: map[string]any{"validated": strconv.FormatBool(validated)},
	}).Err(); err != nil {
		return fmt.Errorf("failed to publish validation outcome: %w", err)
	}

	if err := s.client.Expire(ctx, key, s.sessionTTL).Err(); err != nil {
		logger.WarnContext(ctx, "failed to set TTL on validation outcome stream",
			"call_connection_id", callConnectionID, "error", err)
	}
	return nil
}

func (s *Store) AwaitValidationOutcome(ctx context.Context, callConnectionID string, timeout time.Duration) (bool, error) {
	// Read from the stream head: an outcome published before the wait began
	// still satisfies the rendezvous.
	streams, err := s.client.XRead(ctx, &redis.XReadArgs{
		Streams: []string{outcomeStreamKey(callConnectionID), "0"},
		Count:   1,
		Block:   timeout,
	}).Result()
	if err == redis.Nil {
		return false, session.ErrAwaitTimeout
	}
	if err != nil {
		return false, fmt.Errorf("failed to await validation outcome: %w", err)
	}

	for _, stream := range streams {
		for _, message := range stream.Messages {
			if raw, ok := message.Values["validated"].(string); ok {
				validated, err := strconv.ParseBool(raw)
				if err != nil {
					continue
				}
				return validated, nil
			}
		}
	}
	return false, session.ErrAwaitTimeout
}

func (s *Store) loadPersisted(ctx context.Context, callConnectionID string) (map[string]any, error) {
	encoded, err := s.client.HGetAll(ctx, sessionKey(callConnectionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", callConnectionID, err)
	}

	fields := make(map[string]any, len(encoded))
	for key, raw := range encoded {
		fields[key] = decodeField(raw)
	}
	return fields, nil
}

func decodeField(raw string) any {
	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		// Pre-JSON writers may have stored bare strings; surface them as-is.
		return raw
	}
	return value
}

func sessionKey(callConnectionID string) string {
	return fmt.Sprintf("call:%s:session", callConnectionID)
}

func outcomeStreamKey(callConnectionID string) string {
	return fmt.Sprintf("call:%s:dtmf:outcome", callConnectionID)
}
