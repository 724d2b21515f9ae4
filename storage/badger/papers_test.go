package badger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/poiesic/paperfeed/core"
	"github.com/poiesic/paperfeed/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T, opts ...PaperOption) (storage.PaperRepository, storage.CheckpointRepository) {
	t.Helper()
	papers, checkpoints, backend, err := NewMemoryRepositories(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	return papers, checkpoints
}

func testPaper(id string, published time.Time) core.Paper {
	return core.Paper{
		ID:         id,
		Title:      "Paper " + id,
		Abstract:   "Abstract of " + id,
		Categories: []string{"cs.LG"},
		Published:  published,
		Summary:    &core.Summary{Headline: "Headline " + id, Tags: []string{"LLM"}},
		Embedding:  core.Vector{0.6, 0.8},
	}
}

func TestPutAndGetPaper(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.PutPapers(ctx, testPaper("2405.00001v1", base)))

	got, err := repo.GetPaper(ctx, "2405.00001v1")
	require.NoError(t, err)
	assert.Equal(t, "Paper 2405.00001v1", got.Title)
	assert.Equal(t, core.Vector{0.6, 0.8}, got.Embedding, "embeddings are stored, not stripped")

	_, err = repo.GetPaper(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestGetPapersSkipsMissing(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.PutPapers(ctx, testPaper("a", base), testPaper("b", base)))

	got, err := repo.GetPapers(ctx, "a", "missing", "b")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
}

func TestExistingIDs(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.PutPapers(ctx, testPaper("a", base), testPaper("c", base)))

	got, err := repo.ExistingIDs(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"a": true, "b": false, "c": true}, got)
}

func TestRecentPapersNewestFirst(t *testing.T) {
	repo, _ := newTestRepo(t, WithWriteBatch(3))
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	var papers []core.Paper
	for i := range 10 {
		papers = append(papers, testPaper(fmt.Sprintf("p%02d", i), base.Add(time.Duration(i)*time.Hour)))
	}
	require.NoError(t, repo.PutPapers(ctx, papers...))

	recent, err := repo.RecentPapers(ctx, 4)
	require.NoError(t, err)
	require.Len(t, recent, 4)
	assert.Equal(t, []string{"p09", "p08", "p07", "p06"}, ids(recent))

	count, err := repo.CountPapers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, count)
}

func TestRecentPapersUndatedSortOldest(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.PutPapers(ctx,
		testPaper("dated", base),
		testPaper("undated", time.Time{}),
		testPaper("pre-epoch", time.Date(1965, 1, 1, 0, 0, 0, 0, time.UTC)),
	))

	recent, err := repo.RecentPapers(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"dated"}, ids(recent))

	all, err := repo.RecentPapers(ctx, 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "dated", all[0].ID)
}

func TestPublishedKeyClampsNegativeTimes(t *testing.T) {
	epoch := makePublishedKey(time.Unix(0, 0), "x")
	assert.Equal(t, epoch, makePublishedKey(time.Time{}, "x"))
	assert.Equal(t, epoch, makePublishedKey(time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC), "x"))
}

func TestRecentPapersRejectsBadLimit(t *testing.T) {
	repo, _ := newTestRepo(t)
	_, err := repo.RecentPapers(context.Background(), 0)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func TestPutReplacesPublicationIndex(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.PutPapers(ctx, testPaper("a", base), testPaper("b", base.Add(time.Hour))))
	// Re-publish "a" later than "b".
	require.NoError(t, repo.PutPapers(ctx, testPaper("a", base.Add(2*time.Hour))))

	recent, err := repo.RecentPapers(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(recent))

	count, err := repo.CountPapers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestPutRejectsEmptyID(t *testing.T) {
	repo, _ := newTestRepo(t)
	err := repo.PutPapers(context.Background(), core.Paper{Title: "no id"})
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func TestPapersExpire(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for badger TTL expiry")
	}
	repo, _ := newTestRepo(t, WithTTL(time.Second))
	ctx := context.Background()

	require.NoError(t, repo.PutPapers(ctx, testPaper("a", time.Now().Add(-time.Hour))))
	time.Sleep(2100 * time.Millisecond)

	_, err := repo.GetPaper(ctx, "a")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	recent, err := repo.RecentPapers(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestCheckpointRoundTrip(t *testing.T) {
	_, checkpoints := newTestRepo(t)
	ctx := context.Background()

	cp, err := checkpoints.LoadCheckpoint(ctx, "backfill")
	require.NoError(t, err)
	assert.Nil(t, cp)

	require.NoError(t, checkpoints.SaveCheckpoint(ctx, &core.Checkpoint{Job: "backfill", Start: 150, Processed: 42}))

	cp, err = checkpoints.LoadCheckpoint(ctx, "backfill")
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, 150, cp.Start)
	assert.Equal(t, 42, cp.Processed)
	assert.False(t, cp.UpdatedAt.IsZero())

	require.NoError(t, checkpoints.DeleteCheckpoint(ctx, "backfill"))
	cp, err = checkpoints.LoadCheckpoint(ctx, "backfill")
	require.NoError(t, err)
	assert.Nil(t, cp)
}

func ids(papers []core.Paper) []string {
	out := make([]string, len(papers))
	for i, p := range papers {
		out[i] = p.ID
	}
	return out
}
