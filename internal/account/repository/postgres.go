package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"eduplatform/backend/internal/account/domain"
)

const accountColumns = `id, name, email, password_hash, role, status, bio, avatar, phone,
	enrolled_courses, completed_courses, created_courses, certificates, course_progress,
	created_at, updated_at`

// PostgresRepository stores accounts as one row per document.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository returns an account repository backed by pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	return scanAccount(row)
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE lower(email) = $1`,
		domain.NormalizeEmail(email))
	return scanAccount(row)
}

func (r *PostgresRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE lower(email) = $1)`,
		domain.NormalizeEmail(email)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking account email: %w", err)
	}
	return exists, nil
}

// Save upserts the full row. Concurrent saves of one account are last-writer-wins.
func (r *PostgresRepository) Save(ctx context.Context, a *domain.Account) error {
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = time.Now().UTC()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = a.UpdatedAt
	}
	progress := a.CourseProgress
	if progress == nil {
		progress = map[string]float64{}
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			password_hash = EXCLUDED.password_hash,
			role = EXCLUDED.role,
			status = EXCLUDED.status,
			bio = EXCLUDED.bio,
			avatar = EXCLUDED.avatar,
			phone = EXCLUDED.phone,
			enrolled_courses = EXCLUDED.enrolled_courses,
			completed_courses = EXCLUDED.completed_courses,
			created_courses = EXCLUDED.created_courses,
			certificates = EXCLUDED.certificates,
			course_progress = EXCLUDED.course_progress,
			updated_at = EXCLUDED.updated_at`,
		a.ID, a.Name, domain.NormalizeEmail(a.Email), a.PasswordHash, string(a.Role), string(a.Status),
		a.Bio, a.Avatar, a.Phone,
		nonNil(a.EnrolledCourses), nonNil(a.CompletedCourses), nonNil(a.CreatedCourses), nonNil(a.Certificates),
		progress, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("saving account: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListEnrollments(ctx context.Context) (map[string]int64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT course_id, count(*)
		FROM accounts, unnest(enrolled_courses) AS course_id
		GROUP BY course_id`)
	if err != nil {
		return nil, fmt.Errorf("querying enrollments: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var id string
		var n int64
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("scanning enrollment row: %w", err)
		}
		counts[id] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating enrollment rows: %w", err)
	}
	return counts, nil
}

func (r *PostgresRepository) CountByRole(ctx context.Context) (map[domain.Role]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT role, count(*) FROM accounts GROUP BY role`)
	if err != nil {
		return nil, fmt.Errorf("counting accounts: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.Role]int64)
	for rows.Next() {
		var role string
		var n int64
		if err := rows.Scan(&role, &n); err != nil {
			return nil, fmt.Errorf("scanning role count: %w", err)
		}
		counts[domain.Role(role)] = n
	}
	return counts, rows.Err()
}

func (r *PostgresRepository) CountByStatus(ctx context.Context) (map[domain.Status]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, count(*) FROM accounts GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("counting accounts by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.Status]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scanning status count: %w", err)
		}
		counts[domain.Status(status)] = n
	}
	return counts, rows.Err()
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		a            domain.Account
		role, status string
	)
	err := row.Scan(
		&a.ID, &a.Name, &a.Email, &a.PasswordHash, &role, &status, &a.Bio, &a.Avatar, &a.Phone,
		&a.EnrolledCourses, &a.CompletedCourses, &a.CreatedCourses, &a.Certificates, &a.CourseProgress,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scanning account: %w", err)
	}
	a.Role = domain.Role(role)
	a.Status = domain.Status(status)
	return &a, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
