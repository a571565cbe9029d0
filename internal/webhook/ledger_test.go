package webhook

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLedgerMarkIfNew(t *testing.T) {
	l := NewMemoryLedger(10)
	ctx := context.Background()

	first, err := l.MarkIfNew(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := l.MarkIfNew(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, again)
	assert.Equal(t, 1, l.Len())
}

func TestMemoryLedgerMarkIfNewClaimsOnceUnderContention(t *testing.T) {
	l := NewMemoryLedger(10)
	ctx := context.Background()

	const workers = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	claims := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			first, err := l.MarkIfNew(ctx, "evt_contended")
			require.NoError(t, err)
			if first {
				mu.Lock()
				claims++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, claims, "exactly one caller may claim an identifier")
}

func TestMemoryLedgerForgetReleasesClaim(t *testing.T) {
	l := NewMemoryLedger(10)
	ctx := context.Background()

	first, err := l.MarkIfNew(ctx, "evt_1")
	require.NoError(t, err)
	require.True(t, first)

	require.NoError(t, l.Forget(ctx, "evt_1"))
	assert.Equal(t, 0, l.Len())

	reclaimed, err := l.MarkIfNew(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, reclaimed, "a released identifier can be claimed again")

	// Forgetting an unknown identifier is a no-op.
	require.NoError(t, l.Forget(ctx, "evt_never_seen"))
}

func TestMemoryLedgerEvictsOldestAtCapacity(t *testing.T) {
	l := NewMemoryLedger(3)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		first, err := l.MarkIfNew(ctx, fmt.Sprintf("evt_%d", i))
		require.NoError(t, err)
		require.True(t, first)
	}

	assert.Equal(t, 3, l.Len(), "size never exceeds the configured capacity")

	// The rest are still held.
	for i := 1; i < 4; i++ {
		first, err := l.MarkIfNew(ctx, fmt.Sprintf("evt_%d", i))
		require.NoError(t, err)
		assert.False(t, first, "evt_%d must still be recorded", i)
	}

	// The oldest identifier was evicted and can be claimed anew.
	first, err := l.MarkIfNew(ctx, "evt_0")
	require.NoError(t, err)
	assert.True(t, first)
}
