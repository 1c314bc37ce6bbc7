package retriever

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"askpdf/model"
	"askpdf/store"
	"askpdf/types"
)

const (
	// TopK is how many raw candidates are pulled from the vector index.
	TopK = 10

	// MaxQualifying caps the matches that make it into the context.
	MaxQualifying = 6

	// The score bar tightens when the index returned plenty of candidates
	// and loosens when it did not, to avoid starving the answer of context.
	StrictThreshold   = 0.65
	LooseThreshold    = 0.60
	AdaptiveCandidate = 5

	// FallbackCount raw matches are used when nothing clears the bar.
	FallbackCount = 2

	// MinChunkLength filters noise chunks at query time.
	MinChunkLength = 50

	// DedupPrefixLen is how many leading preview characters two matches
	// must share to be considered duplicates.
	DedupPrefixLen = 50

	// MaxContextBytes bounds the joined context string.
	MaxContextBytes = 5000
)

// Result carries the prompt context plus the matches behind it, which the
// orchestrator turns into citations.
type Result struct {
	Context string
	Matches []types.Match
}

// Retriever embeds a question and assembles grounded context for it from
// the vectors of a single document.
type Retriever struct {
	vectors  store.VectorStorer
	embedder model.EmbedderInterface
	logger   *slog.Logger
}

func New(vectors store.VectorStorer, embedder model.EmbedderInterface, logger *slog.Logger) *Retriever {
	return &Retriever{
		vectors:  vectors,
		embedder: embedder,
		logger:   logger,
	}
}

func (r *Retriever) Retrieve(ctx context.Context, question, fileKey string) (Result, error) {
	vector, err := r.embedder.Embed(ctx, question)
	if err != nil {
		return Result{}, fmt.Errorf("%w: embed question: %v", types.ErrRetrieval, err)
	}

	candidates, err := r.vectors.Query(ctx, vector, fileKey, TopK, MinChunkLength)
	if err != nil {
		return Result{}, fmt.Errorf("%w: query index: %v", types.ErrRetrieval, err)
	}

	matches := Select(candidates)
	r.logger.Debug("retrieval complete",
		"fileKey", fileKey, "candidates", len(candidates), "selected", len(matches))

	return Result{
		Context: BuildContext(matches),
		Matches: matches,
	}, nil
}

// Select applies the adaptive threshold, caps, dedups, and falls back to the
// top raw matches when nothing qualifies. Candidates must arrive sorted by
// score descending, which is how the index returns them.
func Select(candidates []types.Match) []types.Match {
	threshold := LooseThreshold
	if len(candidates) > AdaptiveCandidate {
		threshold = StrictThreshold
	}

	var qualifying []types.Match
	for _, m := range candidates {
		if m.Score > threshold {
			qualifying = append(qualifying, m)
		}
	}

	if len(qualifying) == 0 {
		if len(candidates) == 0 {
			return nil
		}
		n := FallbackCount
		if n > len(candidates) {
			n = len(candidates)
		}
		return dedup(candidates[:n])
	}

	if len(qualifying) > MaxQualifying {
		qualifying = qualifying[:MaxQualifying]
	}
	return dedup(qualifying)
}

// dedup collapses matches whose leading preview characters are identical,
// keeping the first (highest scored) occurrence.
func dedup(matches []types.Match) []types.Match {
	seen := make(map[string]bool, len(matches))
	out := matches[:0:0]
	for _, m := range matches {
		key := dedupKey(m)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, m)
	}
	return out
}

func dedupKey(m types.Match) string {
	s := m.Preview
	if s == "" {
		s = m.Text
	}
	if len(s) > DedupPrefixLen {
		s = s[:DedupPrefixLen]
	}
	return s
}

// BuildContext joins the matches into a page-annotated prompt context,
// hard-truncated to MaxContextBytes.
func BuildContext(matches []types.Match) string {
	if len(matches) == 0 {
		return ""
	}
	parts := make([]string, 0, len(matches))
	for _, m := range matches {
		parts = append(parts, fmt.Sprintf("[Page %d] %s", m.PageNumber, m.Text))
	}
	joined := strings.Join(parts, "\n\n")
	if len(joined) > MaxContextBytes {
		joined = joined[:MaxContextBytes]
	}
	return joined
}
