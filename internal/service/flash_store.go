package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"tabayyan/internal/domain"
)

// FlashStore guarda mensajes de una sola lectura por sesion.
type FlashStore interface {
	Add(ctx context.Context, sessionID string, flash domain.Flash) error
	// Pop devuelve y elimina los mensajes pendientes.
	Pop(ctx context.Context, sessionID string) ([]domain.Flash, error)
}

const defaultFlashTTL = 10 * time.Minute

type memoryFlashes struct {
	flashes []domain.Flash
	touched time.Time
}

type memoryFlashStore struct {
	mu    sync.Mutex
	ttl   time.Duration
	items map[string]*memoryFlashes
	now   func() time.Time
	swept time.Time
}

// NewMemoryFlashStore descarta los mensajes no leidos tras el mismo TTL que Redis.
func NewMemoryFlashStore() FlashStore {
	return &memoryFlashStore{
		ttl:   defaultFlashTTL,
		items: make(map[string]*memoryFlashes),
		now:   time.Now,
	}
}

func (s *memoryFlashStore) Add(_ context.Context, sessionID string, flash domain.Flash) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if now.Sub(s.swept) >= memorySweepEvery {
		s.swept = now
		for id, f := range s.items {
			if now.Sub(f.touched) >= s.ttl {
				delete(s.items, id)
			}
		}
	}
	f, ok := s.items[sessionID]
	if !ok || now.Sub(f.touched) >= s.ttl {
		f = &memoryFlashes{}
		s.items[sessionID] = f
	}
	f.flashes = append(f.flashes, flash)
	f.touched = now
	return nil
}

func (s *memoryFlashStore) Pop(_ context.Context, sessionID string) ([]domain.Flash, error) {
	sessionID = strings.TrimSpace(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.items[sessionID]
	if !ok {
		return nil, nil
	}
	delete(s.items, sessionID)
	if s.now().Sub(f.touched) >= s.ttl {
		return nil, nil
	}
	return f.flashes, nil
}

type redisFlashStore struct {
	client redisListClient
	prefix string
	ttl    time.Duration
}

func NewRedisFlashStore(client *redis.Client) FlashStore {
	if client == nil {
		return nil
	}
	return &redisFlashStore{
		client: client,
		prefix: "session:flash:",
		ttl:    defaultFlashTTL,
	}
}

func (s *redisFlashStore) Add(ctx context.Context, sessionID string, flash domain.Flash) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil
	}
	raw, err := json.Marshal(flash)
	if err != nil {
		return fmt.Errorf("marshal flash: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	key := s.prefix + sessionID
	if err := s.client.RPush(ctx, key, string(raw)).Err(); err != nil {
		return fmt.Errorf("rpush flash: %w", err)
	}
	return s.client.Expire(ctx, key, s.ttl).Err()
}

func (s *redisFlashStore) Pop(ctx context.Context, sessionID string) ([]domain.Flash, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	key := s.prefix + sessionID
	// LRANGE y DEL en MULTI/EXEC: un Add concurrente no se pierde entre ambos.
	var lrange *redis.StringSliceCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		lrange = pipe.LRange(ctx, key, 0, -1)
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("pop flash: %w", err)
	}
	raw := lrange.Val()
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]domain.Flash, 0, len(raw))
	for _, item := range raw {
		var f domain.Flash
		if err := json.Unmarshal([]byte(item), &f); err == nil {
			out = append(out, f)
		}
	}
	return out, nil
}
