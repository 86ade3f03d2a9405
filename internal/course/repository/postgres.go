package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"eduplatform/backend/internal/course/domain"
)

const courseColumns = `id, title, description, instructor_id, instructor_name, category, level,
	duration, price, rating, enrollment_count, skills, status, is_published,
	allow_certification, passing_score, created_at, updated_at, image_url, lessons`

const publicPredicate = `is_published AND status = 'PUBLISHED'`

// PostgresRepository persists courses in the courses table.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*domain.Course, error) {
	c, err := scanCourse(r.pool.QueryRow(ctx, `SELECT `+courseColumns+` FROM courses WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

// Save upserts every column except enrollment_count, which only the atomic
// counter operations write.
func (r *PostgresRepository) Save(ctx context.Context, c *domain.Course) error {
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = time.Now().UTC()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = c.UpdatedAt
	}
	skills := c.Skills
	if skills == nil {
		skills = []string{}
	}
	lessons := c.Lessons
	if lessons == nil {
		lessons = []domain.Lesson{}
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO courses (`+courseColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			instructor_id = EXCLUDED.instructor_id,
			instructor_name = EXCLUDED.instructor_name,
			category = EXCLUDED.category,
			level = EXCLUDED.level,
			duration = EXCLUDED.duration,
			price = EXCLUDED.price,
			rating = EXCLUDED.rating,
			skills = EXCLUDED.skills,
			status = EXCLUDED.status,
			is_published = EXCLUDED.is_published,
			allow_certification = EXCLUDED.allow_certification,
			passing_score = EXCLUDED.passing_score,
			updated_at = EXCLUDED.updated_at,
			image_url = EXCLUDED.image_url,
			lessons = EXCLUDED.lessons`,
		c.ID, c.Title, c.Description, c.InstructorID, c.InstructorName, c.Category, string(c.Level),
		c.Duration, c.Price, c.Rating, c.EnrollmentCount, skills, string(c.Status), c.Published,
		c.AllowCertification, c.PassingScore, c.CreatedAt, c.UpdatedAt, c.ImageURL, lessons,
	)
	if err != nil {
		return fmt.Errorf("saving course: %w", err)
	}
	return nil
}

func (r *PostgresRepository) IncrementEnrollment(ctx context.Context, id string) (int64, bool, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `
		UPDATE courses
		SET enrollment_count = enrollment_count + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING enrollment_count`, id).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("incrementing enrollment: %w", err)
	}
	return count, true, nil
}

func (r *PostgresRepository) SetEnrollmentCount(ctx context.Context, id string, count int64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE courses SET enrollment_count = $2, updated_at = NOW()
		WHERE id = $1 AND enrollment_count <> $2`, id, count)
	if err != nil {
		return fmt.Errorf("setting enrollment count: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListPublished(ctx context.Context, page Page) (*Result, error) {
	return r.Search(ctx, Filter{}, page)
}

func (r *PostgresRepository) Search(ctx context.Context, f Filter, page Page) (*Result, error) {
	where, args := f.predicate()
	return r.queryPage(ctx, where, args, page)
}

func (r *PostgresRepository) ListByInstructor(ctx context.Context, instructorID string, page Page) (*Result, error) {
	return r.queryPage(ctx, `instructor_id = $1`, []any{instructorID}, page)
}

func (r *PostgresRepository) queryPage(ctx context.Context, where string, args []any, page Page) (*Result, error) {
	page = page.Normalize()

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM courses WHERE `+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting courses: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM courses WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		courseColumns, where, page.Size, page.Offset())
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying courses: %w", err)
	}
	defer rows.Close()

	res := &Result{Total: total, Page: page, Courses: []*domain.Course{}}
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		res.Courses = append(res.Courses, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating course rows: %w", err)
	}
	return res, nil
}

func (r *PostgresRepository) CategoryStatistics(ctx context.Context) ([]CategoryStat, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT category, count(*), COALESCE(avg(rating), 0)
		FROM courses WHERE `+publicPredicate+`
		GROUP BY category
		ORDER BY count(*) DESC, category`)
	if err != nil {
		return nil, fmt.Errorf("grouping courses by category: %w", err)
	}
	stats, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (CategoryStat, error) {
		var st CategoryStat
		err := row.Scan(&st.Category, &st.Count, &st.AvgRating)
		return st, err
	})
	if err != nil {
		return nil, fmt.Errorf("collecting category statistics: %w", err)
	}
	return stats, nil
}

func (r *PostgresRepository) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM courses ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing course ids: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collecting course ids: %w", err)
	}
	return ids, nil
}

func (r *PostgresRepository) CountByStatus(ctx context.Context) (map[domain.Status]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, count(*) FROM courses GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("counting courses: %w", err)
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

// predicate builds the WHERE clause for f. Only published courses are searchable.
func (f Filter) predicate() (string, []any) {
	clauses := []string{publicPredicate}
	var args []any
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		add(`(title ILIKE $%[1]d OR description ILIKE $%[1]d OR EXISTS (SELECT 1 FROM unnest(skills) s WHERE s ILIKE $%[1]d))`, "%"+q+"%")
	}
	if f.Category != "" {
		add(`category = $%d`, f.Category)
	}
	if f.Level != "" {
		add(`level = $%d`, string(f.Level))
	}
	if f.MinPrice != nil {
		add(`price >= $%d`, *f.MinPrice)
	}
	if f.MaxPrice != nil {
		add(`price <= $%d`, *f.MaxPrice)
	}
	if f.Free {
		clauses = append(clauses, `price = 0`)
	}
	return strings.Join(clauses, " AND "), args
}

func scanCourse(row pgx.Row) (*domain.Course, error) {
	var (
		c             domain.Course
		level, status string
	)
	err := row.Scan(
		&c.ID, &c.Title, &c.Description, &c.InstructorID, &c.InstructorName, &c.Category, &level,
		&c.Duration, &c.Price, &c.Rating, &c.EnrollmentCount, &c.Skills, &status, &c.Published,
		&c.AllowCertification, &c.PassingScore, &c.CreatedAt, &c.UpdatedAt, &c.ImageURL, &c.Lessons,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning course: %w", err)
	}
	c.Level = domain.Level(level)
	c.Status = domain.Status(status)
	return &c, nil
}
