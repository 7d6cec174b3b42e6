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

// HistoryStore guarda el historial de chat por sesion de navegador.
type HistoryStore interface {
	Append(ctx context.Context, sessionID string, entries ...domain.HistoryEntry) error
	List(ctx context.Context, sessionID string) ([]domain.HistoryEntry, error)
	Clear(ctx context.Context, sessionID string) error
}

const (
	defaultHistoryMax = 100
	defaultHistoryTTL = 24 * time.Hour
	memorySweepEvery  = time.Minute
)

type memoryHistory struct {
	entries []domain.HistoryEntry
	touched time.Time
}

type memoryHistoryStore struct {
	mu    sync.Mutex
	max   int
	ttl   time.Duration
	items map[string]*memoryHistory
	now   func() time.Time
	swept time.Time
}

// NewMemoryHistoryStore conserva como maximo maxEntries por sesion y olvida
// las sesiones sin actividad durante ttl, igual que el store de Redis.
func NewMemoryHistoryStore(maxEntries int, ttl time.Duration) HistoryStore {
	if maxEntries <= 0 {
		maxEntries = defaultHistoryMax
	}
	if ttl <= 0 {
		ttl = defaultHistoryTTL
	}
	return &memoryHistoryStore{
		max:   maxEntries,
		ttl:   ttl,
		items: make(map[string]*memoryHistory),
		now:   time.Now,
	}
}

func (s *memoryHistoryStore) Append(_ context.Context, sessionID string, entries ...domain.HistoryEntry) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" || len(entries) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.sweepLocked(now)
	h := s.lookupLocked(sessionID, now)
	if h == nil {
		h = &memoryHistory{}
		s.items[sessionID] = h
	}
	list := append(h.entries, entries...)
	if len(list) > s.max {
		list = append([]domain.HistoryEntry(nil), list[len(list)-s.max:]...)
	}
	h.entries = list
	h.touched = now
	return nil
}

func (s *memoryHistoryStore) List(_ context.Context, sessionID string) ([]domain.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.lookupLocked(strings.TrimSpace(sessionID), s.now())
	if h == nil {
		return []domain.HistoryEntry{}, nil
	}
	out := make([]domain.HistoryEntry, len(h.entries))
	copy(out, h.entries)
	return out, nil
}

func (s *memoryHistoryStore) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, strings.TrimSpace(sessionID))
	return nil
}

// lookupLocked devuelve la sesion vigente o nil, borrando la que expiro.
func (s *memoryHistoryStore) lookupLocked(sessionID string, now time.Time) *memoryHistory {
	h, ok := s.items[sessionID]
	if !ok {
		return nil
	}
	if now.Sub(h.touched) >= s.ttl {
		delete(s.items, sessionID)
		return nil
	}
	return h
}

func (s *memoryHistoryStore) sweepLocked(now time.Time) {
	if now.Sub(s.swept) < memorySweepEvery {
		return
	}
	s.swept = now
	for id, h := range s.items {
		if now.Sub(h.touched) >= s.ttl {
			delete(s.items, id)
		}
	}
}

// redisListClient es el subconjunto de *redis.Client usado por los stores de lista.
type redisListClient interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	LTrim(ctx context.Context, key string, start, stop int64) *redis.StatusCmd
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	TxPipelined(ctx context.Context, fn func(redis.Pipeliner) error) ([]redis.Cmder, error)
}

type redisHistoryStore struct {
	client redisListClient
	prefix string
	max    int
	ttl    time.Duration
}

// NewRedisHistoryStore guarda el historial en listas de Redis que expiran tras ttl sin actividad.
func NewRedisHistoryStore(client *redis.Client, maxEntries int, ttl time.Duration) HistoryStore {
	if client == nil {
		return nil
	}
	if maxEntries <= 0 {
		maxEntries = defaultHistoryMax
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &redisHistoryStore{
		client: client,
		prefix: "chat:history:",
		max:    maxEntries,
		ttl:    ttl,
	}
}

func (s *redisHistoryStore) Append(ctx context.Context, sessionID string, entries ...domain.HistoryEntry) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" || len(entries) == 0 {
		return nil
	}
	values := make([]interface{}, 0, len(entries))
	for _, e := range entries {
		raw, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal history entry: %w", err)
		}
		values = append(values, string(raw))
	}

	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	key := s.prefix + sessionID
	if err := s.client.RPush(ctx, key, values...).Err(); err != nil {
		return fmt.Errorf("rpush history: %w", err)
	}
	if err := s.client.LTrim(ctx, key, int64(-s.max), -1).Err(); err != nil {
		return fmt.Errorf("ltrim history: %w", err)
	}
	return s.client.Expire(ctx, key, s.ttl).Err()
}

func (s *redisHistoryStore) List(ctx context.Context, sessionID string) ([]domain.HistoryEntry, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return []domain.HistoryEntry{}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	raw, err := s.client.LRange(ctx, s.prefix+sessionID, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange history: %w", err)
	}
	out := make([]domain.HistoryEntry, 0, len(raw))
	for _, item := range raw {
		var e domain.HistoryEntry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *redisHistoryStore) Clear(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	return s.client.Del(ctx, s.prefix+sessionID).Err()
}
