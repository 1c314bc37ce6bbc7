package loader

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

type fakeFileStore struct {
	data map[string][]byte
}

func (f *fakeFileStore) Download(_ context.Context, fileKey string) ([]byte, error) {
	data, ok := f.data[fileKey]
	if !ok {
		return nil, types.ErrNotFound
	}
	return data, nil
}

func (f *fakeFileStore) Upload(_ context.Context, data []byte, name string) (string, error) {
	f.data[name] = data
	return name, nil
}

func (f *fakeFileStore) Delete(_ context.Context, fileKey string) error {
	delete(f.data, fileKey)
	return nil
}

type fakeVectorStore struct {
	records map[string]types.VectorRecord
	queryFn func() ([]types.Match, error)
}

func (f *fakeVectorStore) Upsert(_ context.Context, records []types.VectorRecord) error {
	for _, r := range records {
		f.records[r.ID] = r
	}
	return nil
}

func (f *fakeVectorStore) Query(context.Context, []float32, string, int, int) ([]types.Match, error) {
	if f.queryFn != nil {
		return f.queryFn()
	}
	return nil, nil
}

func (f *fakeVectorStore) DeleteByFileKey(_ context.Context, fileKey string) (int, error) {
	deleted := 0
	for id := range f.records {
		if strings.HasPrefix(id, fileKey+"#") {
			delete(f.records, id)
			deleted++
		}
	}
	return deleted, nil
}

type fakeEmbedder struct {
	err   error
	calls int
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []float32{float32(len(text)), 1, 2}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestLoader(pages []Page) (*Loader, *fakeVectorStore, *fakeEmbedder) {
	vectors := &fakeVectorStore{records: make(map[string]types.VectorRecord)}
	embedder := &fakeEmbedder{}
	files := &fakeFileStore{data: map[string][]byte{"doc-1": []byte("%PDF")}}

	l := New(files, vectors, embedder, discardLogger())
	l.extract = func([]byte) ([]Page, error) { return pages, nil }
	return l, vectors, embedder
}

func longPage(number int) Page {
	var sb strings.Builder
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&sb, "Paragraph %d of page %d explains the refund policy in enough words to matter. ", i, number)
	}
	return Page{Number: number, Text: sb.String()}
}

func TestIngestProducesDeterministicIDs(t *testing.T) {
	l, vectors, _ := newTestLoader([]Page{longPage(1), longPage(2)})

	require.NoError(t, l.Ingest(context.Background(), "doc-1"))
	require.NotEmpty(t, vectors.records)

	for id, record := range vectors.records {
		assert.True(t, strings.HasPrefix(id, "doc-1#"), "id %q should be scoped to the file key", id)
		assert.Equal(t, "doc-1", record.Metadata.FileKey)
		assert.GreaterOrEqual(t, record.Metadata.ChunkLength, MinChunkLength)
		assert.LessOrEqual(t, len(record.Metadata.Preview), PreviewLength)
	}
}

func TestIngestIsIdempotent(t *testing.T) {
	l, vectors, _ := newTestLoader([]Page{longPage(1)})

	require.NoError(t, l.Ingest(context.Background(), "doc-1"))
	first := len(vectors.records)
	require.Greater(t, first, 0)

	require.NoError(t, l.Ingest(context.Background(), "doc-1"))
	assert.Equal(t, first, len(vectors.records), "re-ingestion must not duplicate vectors")
}

func TestIngestRejectsShortChunks(t *testing.T) {
	l, vectors, embedder := newTestLoader([]Page{{Number: 1, Text: "Too short."}})

	require.NoError(t, l.Ingest(context.Background(), "doc-1"))
	assert.Empty(t, vectors.records)
	assert.Zero(t, embedder.calls, "nothing below the floor should be embedded")
}

func TestIngestAbortsOnEmbeddingFailure(t *testing.T) {
	l, vectors, embedder := newTestLoader([]Page{longPage(1)})
	embedder.err = errors.New("provider down")

	err := l.Ingest(context.Background(), "doc-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrIngestion)
	assert.Empty(t, vectors.records)
}

func TestIngestFailsOnMissingFile(t *testing.T) {
	l, _, _ := newTestLoader(nil)

	err := l.Ingest(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrIngestion)
}

func TestDeleteVectorsRemovesOnlyOwnedRecords(t *testing.T) {
	l, vectors, _ := newTestLoader([]Page{longPage(1)})

	require.NoError(t, l.Ingest(context.Background(), "doc-1"))
	vectors.records["other#abc"] = types.VectorRecord{ID: "other#abc"}

	require.NoError(t, l.DeleteVectors(context.Background(), "doc-1"))
	assert.Len(t, vectors.records, 1)
	assert.Contains(t, vectors.records, "other#abc")
}

func TestClean(t *testing.T) {
	assert.Equal(t, "Hello, world! How are you?", Clean("  Hello,\n\nworld!   How  are\tyou?  "))
	assert.Equal(t, "price is 100 dollars.", Clean("price is  #100* dollars."))
}
