package directory

import (
	"context"
	"strings"
	"sync"

	"cookout-auth/internal/domain/oauth"
	"cookout-auth/internal/domain/support"
)

// Memory is an in-process user directory for local development.
type Memory struct {
	mu     sync.RWMutex
	users  map[string]oauth.LocalUser
	claims map[string]map[string]any
}

func NewMemory() *Memory {
	return &Memory{users: map[string]oauth.LocalUser{}, claims: map[string]map[string]any{}}
}

func (m *Memory) GetUser(ctx context.Context, uid string) (oauth.LocalUser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[uid]
	if !ok {
		return oauth.LocalUser{}, oauth.ErrUserNotFound
	}
	return u, nil
}

func (m *Memory) GetUserByEmail(ctx context.Context, email string) (oauth.LocalUser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Email != "" && strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return oauth.LocalUser{}, oauth.ErrUserNotFound
}

func (m *Memory) CreateUser(ctx context.Context, u oauth.LocalUser) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.UID]; ok {
		return oauth.ErrUserExists
	}
	m.users[u.UID] = u
	return nil
}

func (m *Memory) UpdateUser(ctx context.Context, uid string, upd support.Update) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[uid]
	if !ok {
		return oauth.ErrUserNotFound
	}
	if upd.Disabled != nil {
		u.Disabled = *upd.Disabled
	}
	if upd.Claims != nil {
		m.claims[uid] = upd.Claims
	}
	m.users[uid] = u
	return nil
}

// Claims returns the custom claims stored for uid.
func (m *Memory) Claims(uid string) map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.claims[uid]
}

// Len reports the number of users.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users)
}
