package vector

import (
	"cmp"
	"context"
	"database/sql"
	"fmt"
	"slices"

	"github.com/hyperjump/principia/internal/models"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// PgVectorIndex stores passages in a Postgres table with a pgvector column.
// The collection name is used as the table name.
type PgVectorIndex struct {
	db         *sql.DB
	collection string
	dimensions int
}

// NewPgVectorIndex opens a connection pool for dsn and verifies it.
func NewPgVectorIndex(ctx context.Context, dsn, collection string, dimensions int) (*PgVectorIndex, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, models.NewServiceError("pgvector", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, models.NewServiceError("pgvector", err)
	}
	return &PgVectorIndex{db: db, collection: collection, dimensions: dimensions}, nil
}

func (p *PgVectorIndex) table() string {
	return pq.QuoteIdentifier(p.collection)
}

func (p *PgVectorIndex) CollectionExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := p.db.QueryRowContext(ctx, `SELECT to_regclass($1) IS NOT NULL`, pq.QuoteIdentifier(name)).Scan(&exists)
	if err != nil {
		return false, models.NewServiceError("pgvector", err)
	}
	return exists, nil
}

// CreateCollection creates the table with an HNSW cosine index and a title index.
func (p *PgVectorIndex) CreateCollection(ctx context.Context, name string, dims int, distance Distance) error {
	if distance != DistanceCosine {
		return fmt.Errorf("unsupported distance: %s", distance)
	}
	table := pq.QuoteIdentifier(name)
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY,
			seq BIGSERIAL,
			title TEXT NOT NULL,
			url TEXT NOT NULL DEFAULT '',
			chunk_index INTEGER NOT NULL,
			source_type TEXT NOT NULL,
			text TEXT NOT NULL,
			embedding vector(%d) NOT NULL
		)`, table, dims),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING hnsw (embedding vector_cosine_ops)`,
			pq.QuoteIdentifier(name+"_embedding_idx"), table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (title)`,
			pq.QuoteIdentifier(name+"_title_idx"), table),
	}
	for _, stmt := range stmts {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return models.NewServiceError("pgvector", err)
		}
	}
	return nil
}

func (p *PgVectorIndex) Upsert(ctx context.Context, points []Point) error {
	if err := checkDims(points, p.dimensions); err != nil {
		return err
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return models.NewServiceError("pgvector", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE title = ANY($1)`, p.table()), pq.Array(titlesOf(points))); err != nil {
		return models.NewServiceError("pgvector", err)
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, title, url, chunk_index, source_type, text, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title, url = EXCLUDED.url, chunk_index = EXCLUDED.chunk_index,
			source_type = EXCLUDED.source_type, text = EXCLUDED.text, embedding = EXCLUDED.embedding`, p.table()))
	if err != nil {
		return models.NewServiceError("pgvector", err)
	}
	defer stmt.Close()
	for _, pt := range points {
		_, err := stmt.ExecContext(ctx, pt.ID, pt.Passage.Title, pt.Passage.SourceURL, pt.Passage.ChunkIndex,
			string(pt.Passage.SourceType), pt.Passage.Text, pgvector.NewVector(pt.Vector))
		if err != nil {
			return models.NewServiceError("pgvector", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return models.NewServiceError("pgvector", err)
	}
	return nil
}

func (p *PgVectorIndex) DeleteByTitle(ctx context.Context, title string) error {
	if _, err := p.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE title = $1`, p.table()), title); err != nil {
		return models.NewServiceError("pgvector", err)
	}
	return nil
}

func (p *PgVectorIndex) Search(ctx context.Context, query []float32, limit int) ([]*VectorResult, error) {
	if len(query) != p.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), p.dimensions)
	}
	if limit <= 0 {
		return []*VectorResult{}, nil
	}
	// Ordering by distance alone lets Postgres use the HNSW index; ties are broken below.
	rows, err := p.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, seq, title, url, chunk_index, source_type, text, 1 - (embedding <=> $1) AS score
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2`, p.table()), pgvector.NewVector(query), limit)
	if err != nil {
		return nil, models.NewServiceError("pgvector", err)
	}
	defer rows.Close()

	hits := make([]pgHit, 0, limit)
	for rows.Next() {
		var (
			h          pgHit
			sourceType string
		)
		if err := rows.Scan(&h.result.ID, &h.seq, &h.result.Passage.Title, &h.result.Passage.SourceURL,
			&h.result.Passage.ChunkIndex, &sourceType, &h.result.Passage.Text, &h.result.Score); err != nil {
			return nil, models.NewServiceError("pgvector", err)
		}
		h.result.Passage.SourceType = models.SourceType(sourceType)
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, models.NewServiceError("pgvector", err)
	}
	return orderHits(hits), nil
}

type pgHit struct {
	result VectorResult
	seq    int64
}

// orderHits sorts hits by descending score, equal scores by insertion sequence.
func orderHits(hits []pgHit) []*VectorResult {
	slices.SortStableFunc(hits, func(a, b pgHit) int {
		if c := cmp.Compare(b.result.Score, a.result.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})
	results := make([]*VectorResult, len(hits))
	for i := range hits {
		results[i] = &hits[i].result
	}
	return results
}

func (p *PgVectorIndex) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := p.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT count(*) FROM %s`, p.table())).Scan(&n); err != nil {
		return 0, models.NewServiceError("pgvector", err)
	}
	return n, nil
}

func (p *PgVectorIndex) Close() error {
	return p.db.Close()
}
