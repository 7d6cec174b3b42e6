package repository

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"tabayyan/internal/domain"
)

type FAQRepository interface {
	List(ctx context.Context) ([]domain.FAQ, error)
	ListMissingEmbeddings(ctx context.Context, limit int) ([]domain.FAQ, error)
	UpdateEmbedding(ctx context.Context, id string, embedding pgvector.Vector) error
	Search(ctx context.Context, queryEmbedding pgvector.Vector, k int) ([]domain.FAQ, error)
	SearchText(ctx context.Context, query string, k int) ([]domain.FAQ, error)
}

type PgFAQRepository struct {
	pool *pgxpool.Pool
}

func NewPgFAQRepository(pool *pgxpool.Pool) *PgFAQRepository {
	return &PgFAQRepository{pool: pool}
}

func (r *PgFAQRepository) List(ctx context.Context) ([]domain.FAQ, error) {
	const query = `
		SELECT id, question, answer, category, created_at
		FROM faqs
		ORDER BY category, created_at
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFAQs(rows)
}

func (r *PgFAQRepository) ListMissingEmbeddings(ctx context.Context, limit int) ([]domain.FAQ, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
		SELECT id, question, answer, category, created_at
		FROM faqs
		WHERE embedding IS NULL
		ORDER BY created_at
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFAQs(rows)
}

func (r *PgFAQRepository) UpdateEmbedding(ctx context.Context, id string, embedding pgvector.Vector) error {
	_, err := r.pool.Exec(ctx, `UPDATE faqs SET embedding = $2 WHERE id = $1`, id, embedding)
	return err
}

// Search ordena por distancia coseno contra el embedding de la consulta.
func (r *PgFAQRepository) Search(ctx context.Context, queryEmbedding pgvector.Vector, k int) ([]domain.FAQ, error) {
	if k <= 0 {
		k = 3
	}
	const query = `
		SELECT id, question, answer, category, created_at
		FROM faqs
		WHERE embedding IS NOT NULL
		ORDER BY embedding <=> $1
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, queryEmbedding, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFAQs(rows)
}

func (r *PgFAQRepository) SearchText(ctx context.Context, q string, k int) ([]domain.FAQ, error) {
	if k <= 0 {
		k = 3
	}
	const query = `
		SELECT id, question, answer, category, created_at
		FROM faqs
		WHERE question ILIKE $1 ESCAPE '\' OR answer ILIKE $1 ESCAPE '\'
		ORDER BY created_at
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, containsPattern(q), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFAQs(rows)
}

// containsPattern arma un patron LIKE de subcadena tratando % _ y \ como literales.
func containsPattern(q string) string {
	return "%" + likeEscaper.Replace(q) + "%"
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func scanFAQs(rows pgxRows) ([]domain.FAQ, error) {
	faqs := []domain.FAQ{}
	for rows.Next() {
		var f domain.FAQ
		if err := rows.Scan(&f.ID, &f.Question, &f.Answer, &f.Category, &f.CreatedAt); err != nil {
			return nil, err
		}
		faqs = append(faqs, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return faqs, nil
}

// pgxRows is a minimal interface to allow scanning from pgx rows and simplify testing.
type pgxRows interface {
	Next() bool
	Scan(...interface{}) error
	Err() error
	Close()
}
