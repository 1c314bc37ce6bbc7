package retriever

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"askpdf/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func match(score float64, page int, text string) types.Match {
	return types.Match{Text: text, PageNumber: page, Preview: text, Score: score}
}

func TestSelectStrictThresholdAboveFiveCandidates(t *testing.T) {
	candidates := []types.Match{
		match(0.80, 1, "first"),
		match(0.651, 2, "second"),
		match(0.65, 3, "third"),
		match(0.64, 4, "fourth"),
		match(0.60, 5, "fifth"),
		match(0.59, 6, "sixth"),
	}

	selected := Select(candidates)
	require.Len(t, selected, 2)
	assert.Equal(t, "first", selected[0].Text)
	assert.Equal(t, "second", selected[1].Text, "0.651 clears the strict bar, 0.65 does not")
}

func TestSelectLooseThresholdAtFiveOrFewer(t *testing.T) {
	candidates := []types.Match{
		match(0.65, 1, "first"),
		match(0.61, 2, "second"),
		match(0.60, 3, "third"),
	}

	selected := Select(candidates)
	require.Len(t, selected, 2)
	assert.Equal(t, "first", selected[0].Text)
	assert.Equal(t, "second", selected[1].Text, "0.60 is not strictly above the loose bar")
}

func TestSelectCapsQualifyingMatches(t *testing.T) {
	var candidates []types.Match
	for i := 0; i < TopK; i++ {
		candidates = append(candidates, match(0.9-float64(i)*0.01, i+1, fmt.Sprintf("chunk %d", i)))
	}

	selected := Select(candidates)
	assert.Len(t, selected, MaxQualifying)
}

func TestSelectFallsBackToTopTwoRawMatches(t *testing.T) {
	candidates := []types.Match{
		match(0.50, 1, "first"),
		match(0.40, 2, "second"),
		match(0.30, 3, "third"),
	}

	selected := Select(candidates)
	require.Len(t, selected, FallbackCount)
	assert.Equal(t, "first", selected[0].Text)
	assert.Equal(t, "second", selected[1].Text)
}

func TestSelectEmptyCandidatesYieldNothing(t *testing.T) {
	assert.Empty(t, Select(nil))
	assert.Equal(t, "", BuildContext(Select(nil)))
}

func TestSelectDeduplicatesByPreviewPrefix(t *testing.T) {
	shared := strings.Repeat("x", DedupPrefixLen)
	candidates := []types.Match{
		match(0.90, 1, shared+" tail one"),
		match(0.85, 2, shared+" tail two"),
		match(0.80, 3, "a genuinely different chunk of text"),
	}

	selected := Select(candidates)
	require.Len(t, selected, 2)
	assert.Equal(t, 1, selected[0].PageNumber, "the higher scored duplicate wins")
	assert.Equal(t, 3, selected[1].PageNumber)
}

func TestBuildContextAnnotatesPages(t *testing.T) {
	got := BuildContext([]types.Match{
		match(0.9, 3, "refunds are processed in 14 days"),
		match(0.8, 7, "contact support for exceptions"),
	})

	assert.Equal(t,
		"[Page 3] refunds are processed in 14 days\n\n[Page 7] contact support for exceptions",
		got)
}

func TestBuildContextTruncatesToByteCeiling(t *testing.T) {
	big := strings.Repeat("a", MaxContextBytes)
	got := BuildContext([]types.Match{
		match(0.9, 1, big),
		match(0.8, 2, big),
	})

	assert.Len(t, got, MaxContextBytes)
}

type stubVectorStore struct {
	matches []types.Match
	err     error
}

func (s *stubVectorStore) Upsert(context.Context, []types.VectorRecord) error { return nil }

func (s *stubVectorStore) Query(context.Context, []float32, string, int, int) ([]types.Match, error) {
	return s.matches, s.err
}

func (s *stubVectorStore) DeleteByFileKey(context.Context, string) (int, error) { return 0, nil }

type stubEmbedder struct{ err error }

func (s *stubEmbedder) Embed(context.Context, string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []float32{1, 2, 3}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRetrieveWrapsQueryFailure(t *testing.T) {
	r := New(&stubVectorStore{err: errors.New("index down")}, &stubEmbedder{}, discardLogger())

	_, err := r.Retrieve(context.Background(), "question", "doc-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrRetrieval)
}

func TestRetrieveWrapsEmbeddingFailure(t *testing.T) {
	r := New(&stubVectorStore{}, &stubEmbedder{err: errors.New("quota")}, discardLogger())

	_, err := r.Retrieve(context.Background(), "question", "doc-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrRetrieval)
}

func TestRetrieveReturnsContextAndMatches(t *testing.T) {
	r := New(&stubVectorStore{matches: []types.Match{
		match(0.9, 2, "the policy allows refunds within 14 days"),
	}}, &stubEmbedder{}, discardLogger())

	result, err := r.Retrieve(context.Background(), "what is the refund policy?", "doc-1")
	require.NoError(t, err)
	assert.Len(t, result.Matches, 1)
	assert.Equal(t, "[Page 2] the policy allows refunds within 14 days", result.Context)
}
