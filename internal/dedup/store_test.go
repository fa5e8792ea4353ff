package dedup

import (
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vkuzmenko/dexleads/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "leads.jsonl"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_RecordTerminalIdempotent(t *testing.T) {
	s := openTestStore(t)

	key := model.PairKey("ethereum", "0xAbC")
	inserted, err := s.RecordTerminal(key, OutcomeNotified, nil)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.True(t, s.HasTerminal(key))
	assert.Equal(t, 1, s.Len())

	// Same outcome again is a no-op and does not report an insert.
	inserted, err = s.RecordTerminal(key, OutcomeNotified, nil)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, 1, s.Len())
}

func TestStore_ConflictDetection(t *testing.T) {
	s := openTestStore(t)

	key := "ethereum:0xdef"
	require.NoError(t, s.RecordSkip(key, "stale"))

	inserted, err := s.RecordTerminal(key, OutcomeNotified, nil)
	require.Error(t, err)
	assert.False(t, inserted)

	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, SkipOutcome("stale"), conflict.Existing)
	assert.Equal(t, OutcomeNotified, conflict.Attempted)

	// The original record must be untouched.
	entry, ok := s.Get(key)
	require.True(t, ok)
	assert.Equal(t, SkipOutcome("stale"), entry.Outcome)
}

func TestStore_ConcurrentFinalizeSameKey(t *testing.T) {
	s := openTestStore(t)
	key := "bsc:0x123"

	const attempts = 32
	var wg sync.WaitGroup
	var inserts atomic.Int64
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			inserted, err := s.RecordTerminal(key, OutcomeNotified, nil)
			if inserted {
				inserts.Add(1)
			}
			errs[i] = err
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "attempt %d", i)
	}
	// Exactly one caller wins the insert; the rest are no-ops.
	assert.Equal(t, int64(1), inserts.Load())
	assert.Equal(t, 1, s.Len())
}

func TestStore_ReplayAcrossRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leads.jsonl")

	s, err := Open(path)
	require.NoError(t, err)

	lead := &model.Lead{Chain: "base", TokenSymbol: "TEST", TokenAddress: "0x1"}
	_, err = s.RecordTerminal("base:0x1", OutcomeNotified, lead)
	require.NoError(t, err)
	require.NoError(t, s.RecordSkip("base:0x2", "no_telegram"))
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	assert.True(t, reopened.HasTerminal("base:0x1"))
	assert.True(t, reopened.HasTerminal("base:0x2"))
	assert.Equal(t, 2, reopened.Len())

	entry, ok := reopened.Get("base:0x1")
	require.True(t, ok)
	require.NotNil(t, entry.Lead)
	assert.Equal(t, "TEST", entry.Lead.TokenSymbol)

	// A recorded outcome survives restart unchanged: same outcome no-ops,
	// different outcome conflicts.
	inserted, err := reopened.RecordTerminal("base:0x1", OutcomeNotified, nil)
	require.NoError(t, err)
	assert.False(t, inserted)
	var conflict *ConflictError
	require.True(t, errors.As(reopened.RecordSkip("base:0x1", "stale"), &conflict))
}

func TestStore_Recent(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.RecordSkip("ethereum:0x1", "stale"))
	require.NoError(t, s.RecordSkip("ethereum:0x2", "no_telegram"))
	_, err := s.RecordTerminal("ethereum:0x3", OutcomeNotified, nil)
	require.NoError(t, err)

	recent := s.Recent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "ethereum:0x3", recent[0].Key)
	assert.Equal(t, "ethereum:0x2", recent[1].Key)

	all := s.Recent(0)
	assert.Len(t, all, 3)
}
