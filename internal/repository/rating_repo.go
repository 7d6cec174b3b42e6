package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"tabayyan/internal/domain"
)

type RatingRepository interface {
	Create(ctx context.Context, rating domain.Rating) error
}

type PgRatingRepository struct {
	pool *pgxpool.Pool
}

func NewPgRatingRepository(pool *pgxpool.Pool) *PgRatingRepository {
	return &PgRatingRepository{pool: pool}
}

func (r *PgRatingRepository) Create(ctx context.Context, rating domain.Rating) error {
	const query = `
		INSERT INTO ratings (id, user_id, session_id, question, answer, score, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	// Los invitados no tienen fila en users.
	var userID interface{}
	if rating.UserID != "" {
		userID = rating.UserID
	}

	_, err := r.pool.Exec(ctx, query,
		rating.ID,
		userID,
		nullableText(rating.SessionID),
		nullableText(rating.Question),
		rating.Answer,
		rating.Score,
		nullableText(rating.Comment),
		rating.CreatedAt,
	)
	return err
}

type StaffQuestionRepository interface {
	Create(ctx context.Context, question domain.StaffQuestion) error
}

type PgStaffQuestionRepository struct {
	pool *pgxpool.Pool
}

func NewPgStaffQuestionRepository(pool *pgxpool.Pool) *PgStaffQuestionRepository {
	return &PgStaffQuestionRepository{pool: pool}
}

func (r *PgStaffQuestionRepository) Create(ctx context.Context, question domain.StaffQuestion) error {
	const query = `
		INSERT INTO staff_questions (id, user_id, subject, body, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.pool.Exec(ctx, query,
		question.ID,
		question.UserID,
		question.Subject,
		question.Body,
		question.CreatedAt,
	)
	return err
}

func nullableText(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
