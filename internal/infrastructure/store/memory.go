package store

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// DefaultTTL bounds how long an abandoned login can come back.
const DefaultTTL = 10 * time.Minute

// Memory keeps outstanding state tokens in process. Only suitable for a
// single instance; use Redis when running more than one.
type Memory struct {
	mu     sync.Mutex
	tokens *gocache.Cache
	ttl    time.Duration
}

func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{tokens: gocache.New(ttl, time.Minute), ttl: ttl}
}

func (m *Memory) Issue(ctx context.Context) (string, error) {
	tok, err := newToken()
	if err != nil {
		return "", err
	}
	m.tokens.Set(tok, struct{}{}, m.ttl)
	return tok, nil
}

// ValidateAndConsume deletes the token and reports whether it was
// outstanding. Lookup and delete share one lock so concurrent callers
// cannot both see true.
func (m *Memory) ValidateAndConsume(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tokens.Get(token); !ok {
		return false, nil
	}
	m.tokens.Delete(token)
	return true, nil
}

// Len reports outstanding, unexpired tokens.
func (m *Memory) Len() int { return m.tokens.ItemCount() }
