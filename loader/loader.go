package loader

import (
	"context"
	"crypto/md5"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"askpdf/model"
	"askpdf/store"
	"askpdf/types"
)

const (
	// MinChunkLength is the post-cleaning floor below which a chunk carries
	// too little signal to embed.
	MinChunkLength = 50

	// PreviewLength bounds the stored chunk preview.
	PreviewLength = 100

	// MaxMetadataTextBytes bounds the full text stored alongside a vector.
	MaxMetadataTextBytes = 36000
)

var (
	spaceRe = regexp.MustCompile(`\s+`)
	junkRe  = regexp.MustCompile(`[^\w\s.,!?;:]`)
)

// Loader runs the ingestion pipeline: download, extract per-page text,
// split, clean, embed, upsert. A failed step aborts the whole run; the
// deterministic record ids make re-runs idempotent.
type Loader struct {
	files    store.FileStore
	vectors  store.VectorStorer
	embedder model.EmbedderInterface
	splitter *RecursiveSplitter
	logger   *slog.Logger

	// extract is swappable for tests that feed synthetic pages.
	extract func(data []byte) ([]Page, error)
}

func New(files store.FileStore, vectors store.VectorStorer, embedder model.EmbedderInterface, logger *slog.Logger) *Loader {
	return &Loader{
		files:    files,
		vectors:  vectors,
		embedder: embedder,
		splitter: NewRecursiveSplitter(),
		logger:   logger,
		extract:  ExtractPages,
	}
}

// Ingest makes the document's content queryable by retrieval calls scoped
// to the same file key.
func (l *Loader) Ingest(ctx context.Context, fileKey string) error {
	data, err := l.files.Download(ctx, fileKey)
	if err != nil {
		return fmt.Errorf("%w: download %s: %v", types.ErrIngestion, fileKey, err)
	}

	pages, err := l.extract(data)
	if err != nil {
		return fmt.Errorf("%w: extract %s: %v", types.ErrIngestion, fileKey, err)
	}

	chunks := l.chunkPages(fileKey, pages)
	if len(chunks) == 0 {
		l.logger.Warn("no chunks survived cleaning", "fileKey", fileKey, "pages", len(pages))
		return nil
	}

	records := make([]types.VectorRecord, 0, len(chunks))
	for _, chunk := range chunks {
		vector, err := l.embedder.Embed(ctx, chunk.Text)
		if err != nil {
			return fmt.Errorf("%w: embed chunk for %s: %v", types.ErrIngestion, fileKey, err)
		}
		records = append(records, types.VectorRecord{
			ID:     recordID(fileKey, chunk.Text),
			Values: vector,
			Metadata: types.RecordMetadata{
				Text:        truncateBytes(chunk.Text, MaxMetadataTextBytes),
				PageNumber:  chunk.PageNumber,
				FileKey:     fileKey,
				ChunkLength: chunk.Length,
				Preview:     chunk.Preview,
			},
		})
	}

	if err := l.vectors.Upsert(ctx, records); err != nil {
		return fmt.Errorf("%w: upsert vectors for %s: %v", types.ErrIngestion, fileKey, err)
	}

	l.logger.Info("document ingested", "fileKey", fileKey, "pages", len(pages), "chunks", len(records))
	return nil
}

// DeleteVectors removes every vector belonging to the document.
func (l *Loader) DeleteVectors(ctx context.Context, fileKey string) error {
	deleted, err := l.vectors.DeleteByFileKey(ctx, fileKey)
	if err != nil {
		return fmt.Errorf("delete vectors for %s: %w", fileKey, err)
	}
	l.logger.Info("document vectors deleted", "fileKey", fileKey, "count", deleted)
	return nil
}

func (l *Loader) chunkPages(fileKey string, pages []Page) []types.Chunk {
	var chunks []types.Chunk
	for _, page := range pages {
		for _, piece := range l.splitter.Split(page.Text) {
			cleaned := Clean(piece)
			if len(cleaned) < MinChunkLength {
				continue
			}
			chunks = append(chunks, types.Chunk{
				Text:       cleaned,
				PageNumber: page.Number,
				Length:     len(cleaned),
				Preview:    truncateBytes(cleaned, PreviewLength),
				FileKey:    fileKey,
			})
		}
	}
	return chunks
}

// Clean collapses runs of whitespace and strips characters that carry no
// semantic weight for embedding.
func Clean(text string) string {
	text = junkRe.ReplaceAllString(text, "")
	text = spaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

func recordID(fileKey, cleanedText string) string {
	return fmt.Sprintf("%s#%x", fileKey, md5.Sum([]byte(cleanedText)))
}

func truncateBytes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
