package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"eduplatform/backend/internal/quiz/domain"
)

const quizColumns = `id, course_id, title, description, questions, time_limit_minutes,
	passing_score, allow_retake, max_attempts, shuffle_questions, created_at, updated_at`

// PostgresRepository persists quizzes in the quizzes table. Questions are a jsonb array.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*domain.Quiz, error) {
	q, err := scanQuiz(r.pool.QueryRow(ctx, `SELECT `+quizColumns+` FROM quizzes WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return q, err
}

func (r *PostgresRepository) Save(ctx context.Context, q *domain.Quiz) error {
	if q.UpdatedAt.IsZero() {
		q.UpdatedAt = time.Now().UTC()
	}
	if q.CreatedAt.IsZero() {
		q.CreatedAt = q.UpdatedAt
	}
	questions := q.Questions
	if questions == nil {
		questions = []domain.Question{}
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO quizzes (`+quizColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			questions = EXCLUDED.questions,
			time_limit_minutes = EXCLUDED.time_limit_minutes,
			passing_score = EXCLUDED.passing_score,
			allow_retake = EXCLUDED.allow_retake,
			max_attempts = EXCLUDED.max_attempts,
			shuffle_questions = EXCLUDED.shuffle_questions,
			updated_at = EXCLUDED.updated_at`,
		q.ID, q.CourseID, q.Title, q.Description, questions, q.TimeLimitMinutes,
		q.PassingScore, q.AllowRetake, q.MaxAttempts, q.ShuffleQuestions, q.CreatedAt, q.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving quiz: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListByCourse(ctx context.Context, courseID string) ([]*domain.Quiz, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+quizColumns+` FROM quizzes WHERE course_id = $1 ORDER BY created_at, id`, courseID)
	if err != nil {
		return nil, fmt.Errorf("querying quizzes: %w", err)
	}
	defer rows.Close()

	out := []*domain.Quiz{}
	for rows.Next() {
		q, err := scanQuiz(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating quiz rows: %w", err)
	}
	return out, nil
}

func scanQuiz(row pgx.Row) (*domain.Quiz, error) {
	var q domain.Quiz
	err := row.Scan(
		&q.ID, &q.CourseID, &q.Title, &q.Description, &q.Questions, &q.TimeLimitMinutes,
		&q.PassingScore, &q.AllowRetake, &q.MaxAttempts, &q.ShuffleQuestions, &q.CreatedAt, &q.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning quiz: %w", err)
	}
	return &q, nil
}
