package store

import (
	"context"
	"fmt"

	"askpdf/types"

	"github.com/pgvector/pgvector-go"
)

// VectorStorer is the vector index boundary. Records are scoped to a file
// key; deterministic ids make upserts idempotent and deletes are batched
// by id prefix until the index reports no further rows.
type VectorStorer interface {
	Upsert(ctx context.Context, records []types.VectorRecord) error
	Query(ctx context.Context, vector []float32, fileKey string, topK, minLength int) ([]types.Match, error)
	DeleteByFileKey(ctx context.Context, fileKey string) (int, error)
}

// deleteBatchSize bounds one round of the prefix-scan delete, mirroring a
// paginated index API where a single call is not guaranteed to clear a
// document with many chunks.
const deleteBatchSize = 100

func (p *PostgresStore) Upsert(ctx context.Context, records []types.VectorRecord) error {
	query := `
	INSERT INTO vectors (id, file_key, page_number, chunk_length, preview, content, embedding)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (id) DO UPDATE SET
		page_number = EXCLUDED.page_number,
		chunk_length = EXCLUDED.chunk_length,
		preview = EXCLUDED.preview,
		content = EXCLUDED.content,
		embedding = EXCLUDED.embedding
	`
	for _, r := range records {
		_, err := p.pool.Exec(ctx, query,
			r.ID,
			r.Metadata.FileKey,
			r.Metadata.PageNumber,
			r.Metadata.ChunkLength,
			r.Metadata.Preview,
			r.Metadata.Text,
			pgvector.NewVector(r.Values),
		)
		if err != nil {
			return fmt.Errorf("upsert vector %s: %w", r.ID, err)
		}
	}
	return nil
}

// Query returns the topK nearest vectors for the file key whose chunk
// length is at least minLength, scored by cosine similarity descending.
func (p *PostgresStore) Query(ctx context.Context, vector []float32, fileKey string, topK, minLength int) ([]types.Match, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("empty query vector")
	}

	query := `
	SELECT content, page_number, preview, 1 - (embedding <=> $1) AS score
	FROM vectors
	WHERE file_key = $2 AND chunk_length >= $3
	ORDER BY embedding <=> $1
	LIMIT $4
	`
	rows, err := p.pool.Query(ctx, query, pgvector.NewVector(vector), fileKey, minLength, topK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []types.Match
	for rows.Next() {
		var m types.Match
		if err := rows.Scan(&m.Text, &m.PageNumber, &m.Preview, &m.Score); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// DeleteByFileKey removes every vector whose id starts with "fileKey#",
// looping in batches until a round deletes nothing. Returns the total
// number of rows removed.
func (p *PostgresStore) DeleteByFileKey(ctx context.Context, fileKey string) (int, error) {
	prefix := fileKey + "#"
	total := 0
	for {
		tag, err := p.pool.Exec(ctx, `
			DELETE FROM vectors WHERE id IN (
				SELECT id FROM vectors WHERE id LIKE $1 || '%' LIMIT $2
			)`, prefix, deleteBatchSize)
		if err != nil {
			return total, err
		}
		deleted := int(tag.RowsAffected())
		total += deleted
		if deleted == 0 {
			return total, nil
		}
	}
}
