// Package catalog implements similarity search over the SINAPI composition
// catalog, backed by PostgreSQL with pgvector.
package catalog

import (
	"context"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/obradoria/budget-agent/internal/db"
	"github.com/obradoria/budget-agent/internal/model"
	"github.com/obradoria/budget-agent/pkg/llm"
)

// Searcher finds catalog compositions similar to a free-text description.
type Searcher interface {
	// Search returns up to topK candidates ordered by descending similarity.
	// Candidates below the configured floor are filtered out.
	Search(ctx context.Context, query string, topK int) ([]model.Candidate, error)
	// Ping verifies the catalog database is reachable.
	Ping(ctx context.Context) error
}

const searchSQL = `
SELECT c.codigo,
       c.nome,
       c.descricao,
       c.unidade_medida,
       1 - (ce.embedding <=> $1::vector) AS similaridade
FROM composicao_embeddings ce
JOIN composicao c ON ce.codigo_composicao = c.codigo
WHERE 1 - (ce.embedding <=> $1::vector) >= $2
ORDER BY ce.embedding <=> $1::vector
LIMIT $3`

// PgSearcher runs pgvector cosine-similarity queries against the catalog.
type PgSearcher struct {
	pool     db.Pool
	embedder llm.Embedder
	floor    float64
}

// NewPgSearcher creates a catalog searcher. Results with similarity below
// floor are dropped before returning.
func NewPgSearcher(pool db.Pool, embedder llm.Embedder, floor float64) *PgSearcher {
	return &PgSearcher{pool: pool, embedder: embedder, floor: floor}
}

func (s *PgSearcher) Search(ctx context.Context, query string, topK int) ([]model.Candidate, error) {
	if strings.TrimSpace(query) == "" {
		return nil, eris.New("catalog: empty search query")
	}
	if topK <= 0 {
		topK = 5
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: embed query")
	}

	rows, err := s.pool.Query(ctx, searchSQL, vectorLiteral(vec), s.floor, topK)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: similarity query")
	}
	defer rows.Close()

	var out []model.Candidate
	for rows.Next() {
		var c model.Candidate
		if err := rows.Scan(&c.Code, &c.Name, &c.Description, &c.Unit, &c.Similarity); err != nil {
			return nil, eris.Wrap(err, "catalog: scan candidate")
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "catalog: iterate candidates")
	}

	zap.L().Debug("catalog search",
		zap.String("query", query),
		zap.Int("candidates", len(out)),
	)
	return out, nil
}

func (s *PgSearcher) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return eris.Wrap(err, "catalog: ping")
	}
	return nil
}

// vectorLiteral renders a float slice as a pgvector text literal:
// "[0.1,0.2,...]".
func vectorLiteral(vec []float32) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, f := range vec {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	sb.WriteByte(']')
	return sb.String()
}
