// Package retrieval implements the retrieval subsystem's semantic_search
// operation (§6), backed by a PostgreSQL table with a pgvector column.
// Chunking and embedding of source documents into that table is out of
// scope; this package only serves the query side consumed by C5.
package retrieval

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/birddigital/voicebridge/pkg/bridge"
)

// Schema is the SQL DDL for the knowledge_chunk table.
const Schema = `
CREATE TABLE IF NOT EXISTS knowledge_chunk (
    id         TEXT PRIMARY KEY,
    agent_id   TEXT NOT NULL,
    filename   TEXT NOT NULL,
    content    TEXT NOT NULL,
    embedding  VECTOR(1536) NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_knowledge_chunk_agent ON knowledge_chunk(agent_id);
`

// Embedder turns a query string into a vector comparable against the
// stored chunk embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Index implements bridge.Retriever against a pgvector-backed table.
type Index struct {
	pool     *pgxpool.Pool
	embedder Embedder
}

var _ bridge.Retriever = (*Index)(nil)

// New constructs an Index over pool, embedding queries with embedder.
func New(pool *pgxpool.Pool, embedder Embedder) *Index {
	return &Index{pool: pool, embedder: embedder}
}

// SemanticSearch implements bridge.Retriever. It embeds query, finds the k
// nearest chunks scoped to agentID by cosine distance, and filters out any
// below minSimilarity (cosine similarity = 1 - cosine distance).
func (idx *Index) SemanticSearch(ctx context.Context, agentID, query string, k int, minSimilarity float64) ([]bridge.RetrievalResult, error) {
	vec, err := idx.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("retrieval: embed query: %w", err)
	}
	queryVec := pgvector.NewVector(vec)

	const q = `
		SELECT content, filename, 1 - (embedding <=> $1) AS similarity
		FROM   knowledge_chunk
		WHERE  agent_id = $2
		ORDER  BY embedding <=> $1
		LIMIT  $3`

	rows, err := idx.pool.Query(ctx, q, queryVec, agentID, k)
	if err != nil {
		return nil, fmt.Errorf("retrieval: search: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (bridge.RetrievalResult, error) {
		var r bridge.RetrievalResult
		err := row.Scan(&r.Text, &r.Filename, &r.Similarity)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("retrieval: scan rows: %w", err)
	}

	return filterBySimilarity(results, minSimilarity), nil
}

func filterBySimilarity(results []bridge.RetrievalResult, minSimilarity float64) []bridge.RetrievalResult {
	filtered := results[:0]
	for _, r := range results {
		if r.Similarity >= minSimilarity {
			filtered = append(filtered, r)
		}
	}
	return filtered
}
