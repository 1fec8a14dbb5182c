package otp

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Challenge is one outstanding verification code for a phone number.
type Challenge struct {
	Code     string    `json:"code"`
	DeviceID string    `json:"device_id"`
	SentAt   time.Time `json:"sent_at"`
}

// ChallengeStore keeps OTP challenges with an expiry. One challenge per
// phone number; putting a new one replaces the old.
type ChallengeStore interface {
	Put(ctx context.Context, phone string, ch Challenge, ttl time.Duration) error
	Get(ctx context.Context, phone string) (Challenge, bool, error)
	Delete(ctx context.Context, phone string) error
}

// GenerateCode returns a random six digit verification code.
func GenerateCode() (string, error) {
	max := big.NewInt(1000000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

type redisStore struct {
	client *redis.Client
}

// NewRedisStore connects a ChallengeStore to Redis at addr.
func NewRedisStore(addr string) ChallengeStore {
	return &redisStore{client: redis.NewClient(&redis.Options{Addr: addr})}
}

func (s *redisStore) key(phone string) string {
	return "otp:challenge:" + phone
}

func (s *redisStore) Put(ctx context.Context, phone string, ch Challenge, ttl time.Duration) error {
	payload, err := json.Marshal(ch)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(phone), payload, ttl).Err()
}

func (s *redisStore) Get(ctx context.Context, phone string) (Challenge, bool, error) {
	raw, err := s.client.Get(ctx, s.key(phone)).Result()
	if err == redis.Nil {
		return Challenge{}, false, nil
	}
	if err != nil {
		return Challenge{}, false, err
	}

	var ch Challenge
	if err := json.Unmarshal([]byte(raw), &ch); err != nil {
		return Challenge{}, false, err
	}
	return ch, true, nil
}

func (s *redisStore) Delete(ctx context.Context, phone string) error {
	return s.client.Del(ctx, s.key(phone)).Err()
}

type memoryEntry struct {
	ch        Challenge
	expiresAt time.Time
}

// MemoryStore is an in-process ChallengeStore used in tests and local runs
// without Redis.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry)}
}

func (s *MemoryStore) Put(ctx context.Context, phone string, ch Challenge, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[phone] = memoryEntry{ch: ch, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, phone string) (Challenge, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[phone]
	if !ok {
		return Challenge{}, false, nil
	}
	if time.Now().After(entry.expiresAt) {
		delete(s.entries, phone)
		return Challenge{}, false, nil
	}
	return entry.ch, true, nil
}

func (s *MemoryStore) Delete(ctx context.Context, phone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, phone)
	return nil
}
