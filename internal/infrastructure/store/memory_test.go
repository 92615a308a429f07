package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_IssueValidatesOnce(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Minute)

	tok, err := m.Issue(ctx)
	require.NoError(t, err)
	assert.Len(t, tok, 2*tokenBytes)

	ok, err := m.ValidateAndConsume(ctx, tok)
	require.NoError(t, err)
	assert.True(t, ok)

	for i := 0; i < 3; i++ {
		ok, err = m.ValidateAndConsume(ctx, tok)
		require.NoError(t, err)
		assert.False(t, ok)
	}
}

func TestMemory_UnknownToken(t *testing.T) {
	m := NewMemory(time.Minute)
	for _, tok := range []string{"", "deadbeef", "never-issued"} {
		ok, err := m.ValidateAndConsume(context.Background(), tok)
		require.NoError(t, err)
		assert.False(t, ok, tok)
	}
}

func TestMemory_Expiry(t *testing.T) {
	m := NewMemory(20 * time.Millisecond)
	tok, err := m.Issue(context.Background())
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	ok, err := m.ValidateAndConsume(context.Background(), tok)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemory_ConcurrentValidateSingleWinner(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Minute)
	tok, err := m.Issue(ctx)
	require.NoError(t, err)

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := m.ValidateAndConsume(ctx, tok); ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, wins)
	assert.Zero(t, m.Len())
}

func TestMemory_TokensAreDistinct(t *testing.T) {
	m := NewMemory(time.Minute)
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		tok, err := m.Issue(context.Background())
		require.NoError(t, err)
		require.False(t, seen[tok])
		seen[tok] = true
	}
	assert.Equal(t, 100, m.Len())
}
