package dedup

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/paperfeed/core"
	"github.com/poiesic/paperfeed/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeChecker records batch sizes and can fail selected batches.
type fakeChecker struct {
	mu       sync.Mutex
	present  map[string]bool
	batches  [][]string
	failCall int // 1-based call number to fail, 0 for none
}

func (f *fakeChecker) ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, append([]string(nil), ids...))
	if f.failCall == len(f.batches) {
		return nil, errors.New("throughput exceeded")
	}
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = f.present[id]
	}
	return out, nil
}

func makeIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("2401.%05dv1", i)
	}
	return ids
}

func TestNewIndexValidation(t *testing.T) {
	_, err := NewIndex(nil)
	assert.ErrorIs(t, err, ErrCheckerRequired)

	_, err = NewIndex(&fakeChecker{}, WithBatchSize(0))
	assert.Error(t, err)
}

func TestExistingBatchesLookups(t *testing.T) {
	ids := makeIDs(250)
	checker := &fakeChecker{present: map[string]bool{ids[0]: true, ids[150]: true, ids[249]: true}}
	idx, err := NewIndex(checker)
	require.NoError(t, err)

	got, err := idx.Existing(context.Background(), ids)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{ids[0]: true, ids[150]: true, ids[249]: true}, got)

	require.Len(t, checker.batches, 3)
	assert.Len(t, checker.batches[0], 100)
	assert.Len(t, checker.batches[1], 100)
	assert.Len(t, checker.batches[2], 50)
}

func TestExistingEmptyInput(t *testing.T) {
	checker := &fakeChecker{}
	idx, err := NewIndex(checker)
	require.NoError(t, err)

	got, err := idx.Existing(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Empty(t, checker.batches)
}

func TestExistingPartialFailure(t *testing.T) {
	ids := makeIDs(30)
	checker := &fakeChecker{
		present:  map[string]bool{ids[1]: true, ids[15]: true, ids[25]: true},
		failCall: 2,
	}
	idx, err := NewIndex(checker, WithBatchSize(10))
	require.NoError(t, err)

	got, err := idx.Existing(context.Background(), ids)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLookupFailed)

	// The failed middle batch does not corrupt the others.
	assert.Equal(t, map[string]bool{ids[1]: true, ids[25]: true}, got)
	assert.Len(t, checker.batches, 3, "all batches are attempted")
}

func TestFilterNewWithBadger(t *testing.T) {
	repo, _, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()
	ctx := context.Background()

	ids := makeIDs(10)
	var candidates []core.Paper
	for _, id := range ids {
		candidates = append(candidates, core.Paper{ID: id, Title: "t", Published: time.Now().Add(-time.Hour)})
	}
	require.NoError(t, repo.PutPapers(ctx, candidates[0], candidates[3], candidates[5], candidates[9]))

	idx, err := NewIndex(repo, WithBatchSize(3))
	require.NoError(t, err)

	fresh, skipped, err := idx.FilterNew(ctx, candidates)
	require.NoError(t, err)
	assert.Equal(t, 4, skipped)
	require.Len(t, fresh, 6)
	assert.Equal(t, []string{ids[1], ids[2], ids[4], ids[6], ids[7], ids[8]}, paperIDs(fresh))
}

func TestFilterNewDropsDuplicateCandidates(t *testing.T) {
	idx, err := NewIndex(&fakeChecker{})
	require.NoError(t, err)

	papers := []core.Paper{{ID: "a"}, {ID: "b"}, {ID: "a"}}
	fresh, skipped, err := idx.FilterNew(context.Background(), papers)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, paperIDs(fresh))
	assert.Equal(t, 1, skipped)
}

func TestFilterNewSurfacesPartialFailure(t *testing.T) {
	checker := &fakeChecker{present: map[string]bool{"a": true}, failCall: 1}
	idx, err := NewIndex(checker, WithBatchSize(1))
	require.NoError(t, err)

	fresh, skipped, err := idx.FilterNew(context.Background(), []core.Paper{{ID: "a"}, {ID: "b"}})
	assert.ErrorIs(t, err, ErrLookupFailed)
	assert.Equal(t, 0, skipped)
	assert.Equal(t, []string{"a", "b"}, paperIDs(fresh), "unknown ids are handed back to the caller")
}

func paperIDs(papers []core.Paper) []string {
	out := make([]string, len(papers))
	for i, p := range papers {
		out[i] = p.ID
	}
	return out
}
