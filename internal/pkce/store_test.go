package pkce

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dropDatabas3/socialauth/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBegin_VerifierAndChallenge(t *testing.T) {
	s := NewStore(cache.NewMemory("", 0), 0)

	p, challenge, err := s.Begin(context.Background(), "discord")
	require.NoError(t, err)

	assert.GreaterOrEqual(t, len(p.Verifier), 43)
	assert.Regexp(t, `^[A-Za-z0-9\-._~]+$`, p.Verifier)
	assert.NotEmpty(t, p.State)
	assert.Equal(t, "discord", p.Provider)

	sum := sha256.Sum256([]byte(p.Verifier))
	assert.Equal(t, base64.RawURLEncoding.EncodeToString(sum[:]), challenge)
}

func TestBegin_UniqueStates(t *testing.T) {
	s := NewStore(cache.NewMemory("", 0), 0)
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		p, _, err := s.Begin(context.Background(), "github")
		require.NoError(t, err)
		require.False(t, seen[p.State], "state reused")
		seen[p.State] = true
	}
}

func TestConsume_ExactlyOnce(t *testing.T) {
	ctx := context.Background()
	s := NewStore(cache.NewMemory("", 0), 0)
	p, _, err := s.Begin(ctx, "discord")
	require.NoError(t, err)

	got, err := s.Consume(ctx, p.State)
	require.NoError(t, err)
	assert.Equal(t, p.Verifier, got.Verifier)

	_, err = s.Consume(ctx, p.State)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConsume_UnknownAndEmpty(t *testing.T) {
	s := NewStore(cache.NewMemory("", 0), 0)
	_, err := s.Consume(context.Background(), "never-issued")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Consume(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConsume_Expired(t *testing.T) {
	ctx := context.Background()
	s := NewStore(cache.NewMemory("", 0), time.Minute)
	base := time.Now()
	s.now = func() time.Time { return base }

	p, _, err := s.Begin(ctx, "discord")
	require.NoError(t, err)

	s.now = func() time.Time { return base.Add(2 * time.Minute) }
	_, err = s.Consume(ctx, p.State)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConsume_Concurrent(t *testing.T) {
	ctx := context.Background()
	s := NewStore(cache.NewMemory("", 0), 0)
	p, _, err := s.Begin(ctx, "discord")
	require.NoError(t, err)

	var ok atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Consume(ctx, p.State); err == nil {
				ok.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), ok.Load())
}
