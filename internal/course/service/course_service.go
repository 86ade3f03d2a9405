// Package service implements the course catalog: authoring, publication, and
// public listing.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	accountdomain "eduplatform/backend/internal/account/domain"
	"eduplatform/backend/internal/course/domain"
	"eduplatform/backend/internal/course/repository"
	"eduplatform/backend/internal/platform/lock"
)

var (
	// ErrInvalidCourse wraps every rejected course field.
	ErrInvalidCourse = errors.New("invalid course")
	// ErrNotCourseOwner is returned when a non-admin modifies another instructor's course.
	ErrNotCourseOwner = errors.New("only the course instructor or an admin can modify this course")
)

// CourseRepo is the minimal course store needed by the service.
type CourseRepo interface {
	FindByID(ctx context.Context, id string) (*domain.Course, error)
	Save(ctx context.Context, c *domain.Course) error
	ListPublished(ctx context.Context, page repository.Page) (*repository.Result, error)
	Search(ctx context.Context, f repository.Filter, page repository.Page) (*repository.Result, error)
	ListByInstructor(ctx context.Context, instructorID string, page repository.Page) (*repository.Result, error)
	CountByStatus(ctx context.Context) (map[domain.Status]int64, error)
	CategoryStatistics(ctx context.Context) ([]repository.CategoryStat, error)
}

// AccountRepo is the minimal identity store needed by the service.
type AccountRepo interface {
	FindByID(ctx context.Context, id string) (*accountdomain.Account, error)
	Save(ctx context.Context, a *accountdomain.Account) error
}

// CourseInput carries the author-editable fields of a course.
type CourseInput struct {
	Title              string
	Description        string
	Category           string
	Level              string
	Duration           string
	Price              float64
	ImageURL           string
	Skills             []string
	Lessons            []LessonInput
	AllowCertification *bool
	PassingScore       *int
}

// LessonInput is one lesson as supplied by an author. A blank ID gets a new one;
// a zero Order takes the lesson's position in the list.
type LessonInput struct {
	ID          string
	Title       string
	Description string
	Duration    string
	Type        string
	Content     string
	VideoURL    string
	QuizID      string
	Order       int
}

// SearchInput is a catalog query. An unrecognized Level is ignored.
type SearchInput struct {
	Query    string
	Category string
	Level    string
	MinPrice *float64
	MaxPrice *float64
}

// Statistics counts courses by publication state.
type Statistics struct {
	TotalCourses     int64 `json:"totalCourses"`
	PublishedCourses int64 `json:"publishedCourses"`
	DraftCourses     int64 `json:"draftCourses"`
}

// CourseService implements course operations.
type CourseService struct {
	courses  CourseRepo
	accounts AccountRepo
	locker   lock.Locker
	log      zerolog.Logger
	now      func() time.Time
}

// NewCourseService returns a CourseService. locker guards the instructor's
// account write on Create; nil uses an in-process lock.
func NewCourseService(courses CourseRepo, accounts AccountRepo, locker lock.Locker, log zerolog.Logger) *CourseService {
	if locker == nil {
		locker = lock.NewLocal()
	}
	return &CourseService{courses: courses, accounts: accounts, locker: locker, log: log, now: time.Now}
}

// Create saves a draft course owned by instructor and records it in the
// instructor's created set. The second write is best-effort.
func (s *CourseService) Create(ctx context.Context, instructor *accountdomain.Account, in CourseInput) (*domain.Course, error) {
	if instructor == nil {
		return nil, accountdomain.ErrAccountNotFound
	}
	now := s.now().UTC()
	c := &domain.Course{
		ID:                 uuid.New().String(),
		InstructorID:       instructor.ID,
		InstructorName:     instructor.Name,
		Status:             domain.StatusDraft,
		AllowCertification: true,
		PassingScore:       domain.DefaultPassingScore,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := apply(c, in); err != nil {
		return nil, err
	}
	if err := s.courses.Save(ctx, c); err != nil {
		return nil, err
	}
	s.recordCreated(ctx, instructor.ID, c.ID)
	s.log.Info().Str("course_id", c.ID).Str("instructor_id", instructor.ID).Msg("Course created")
	return c, nil
}

func (s *CourseService) recordCreated(ctx context.Context, instructorID, courseID string) {
	logFailure := func(err error) {
		s.log.Warn().Err(err).Str("instructor_id", instructorID).Str("course_id", courseID).
			Msg("Course saved but not added to instructor's created courses")
	}
	release, err := s.locker.Acquire(ctx, lock.AccountKey(instructorID))
	if err != nil {
		logFailure(err)
		return
	}
	defer release()
	acct, err := s.accounts.FindByID(ctx, instructorID)
	if err != nil || acct == nil {
		logFailure(err)
		return
	}
	acct.AddCreatedCourse(courseID)
	acct.UpdatedAt = s.now().UTC()
	if err := s.accounts.Save(ctx, acct); err != nil {
		logFailure(err)
	}
}

// Get returns the course for id. Courses outside the public catalog are only
// visible to their instructor and admins; everyone else gets ErrCourseNotFound.
func (s *CourseService) Get(ctx context.Context, viewer *accountdomain.Account, id string) (*domain.Course, error) {
	c, err := s.courses.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil || (!c.IsPublic() && !canModify(viewer, c)) {
		return nil, domain.ErrCourseNotFound
	}
	return c, nil
}

// Update overwrites the author-editable fields.
func (s *CourseService) Update(ctx context.Context, actor *accountdomain.Account, id string, in CourseInput) (*domain.Course, error) {
	return s.modify(ctx, actor, id, func(c *domain.Course) error { return apply(c, in) })
}

// Publish moves the course into the public catalog.
func (s *CourseService) Publish(ctx context.Context, actor *accountdomain.Account, id string) (*domain.Course, error) {
	return s.modify(ctx, actor, id, func(c *domain.Course) error {
		c.Publish()
		return nil
	})
}

// Archive soft-deletes the course.
func (s *CourseService) Archive(ctx context.Context, actor *accountdomain.Account, id string) (*domain.Course, error) {
	return s.modify(ctx, actor, id, func(c *domain.Course) error {
		c.Archive()
		return nil
	})
}

func (s *CourseService) modify(ctx context.Context, actor *accountdomain.Account, id string, fn func(*domain.Course) error) (*domain.Course, error) {
	c, err := s.courses.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, domain.ErrCourseNotFound
	}
	if !canModify(actor, c) {
		return nil, ErrNotCourseOwner
	}
	if err := fn(c); err != nil {
		return nil, err
	}
	c.UpdatedAt = s.now().UTC()
	if err := s.courses.Save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// ListPublished pages through the public catalog.
func (s *CourseService) ListPublished(ctx context.Context, page repository.Page) (*repository.Result, error) {
	return s.courses.ListPublished(ctx, page.Normalize())
}

// Search filters the public catalog.
func (s *CourseService) Search(ctx context.Context, in SearchInput, page repository.Page) (*repository.Result, error) {
	f := repository.Filter{
		Query:    strings.TrimSpace(in.Query),
		Category: strings.TrimSpace(in.Category),
		MinPrice: in.MinPrice,
		MaxPrice: in.MaxPrice,
	}
	if in.Level != "" {
		if lvl, err := domain.ParseLevel(in.Level); err == nil {
			f.Level = lvl
		} else {
			s.log.Debug().Str("level", in.Level).Msg("Ignoring unrecognized level filter")
		}
	}
	return s.courses.Search(ctx, f, page.Normalize())
}

// ListFree pages through published courses with a zero price.
func (s *CourseService) ListFree(ctx context.Context, page repository.Page) (*repository.Result, error) {
	return s.courses.Search(ctx, repository.Filter{Free: true}, page.Normalize())
}

// ListByInstructor pages through every course of instructorID, drafts and
// archived included. Only that instructor and admins may list them.
func (s *CourseService) ListByInstructor(ctx context.Context, viewer *accountdomain.Account, instructorID string, page repository.Page) (*repository.Result, error) {
	if viewer == nil || (viewer.Role != accountdomain.RoleAdmin && viewer.ID != instructorID) {
		return nil, ErrNotCourseOwner
	}
	return s.courses.ListByInstructor(ctx, instructorID, page.Normalize())
}

// CategoryStatistics counts published courses and averages their rating per category.
func (s *CourseService) CategoryStatistics(ctx context.Context) ([]repository.CategoryStat, error) {
	stats, err := s.courses.CategoryStatistics(ctx)
	if err != nil {
		return nil, err
	}
	if stats == nil {
		stats = []repository.CategoryStat{}
	}
	return stats, nil
}

// Statistics counts all, published, and draft courses.
func (s *CourseService) Statistics(ctx context.Context) (*Statistics, error) {
	byStatus, err := s.courses.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	st := &Statistics{
		PublishedCourses: byStatus[domain.StatusPublished],
		DraftCourses:     byStatus[domain.StatusDraft],
	}
	for _, n := range byStatus {
		st.TotalCourses += n
	}
	return st, nil
}

func lessons(in []LessonInput) ([]domain.Lesson, error) {
	out := make([]domain.Lesson, 0, len(in))
	for i, l := range in {
		typ, err := domain.ParseLessonType(l.Type)
		if err != nil {
			return nil, fmt.Errorf("%w: lesson %d: %v", ErrInvalidCourse, i+1, err)
		}
		id := strings.TrimSpace(l.ID)
		if id == "" {
			id = uuid.New().String()
		}
		out = append(out, domain.Lesson{
			ID:          id,
			Title:       strings.TrimSpace(l.Title),
			Description: l.Description,
			Duration:    l.Duration,
			Type:        typ,
			Content:     l.Content,
			VideoURL:    strings.TrimSpace(l.VideoURL),
			QuizID:      strings.TrimSpace(l.QuizID),
			Order:       l.Order,
		})
	}
	return out, nil
}

func canModify(actor *accountdomain.Account, c *domain.Course) bool {
	if actor == nil {
		return false
	}
	return actor.Role == accountdomain.RoleAdmin || actor.ID == c.InstructorID
}

func apply(c *domain.Course, in CourseInput) error {
	level := domain.LevelBeginner
	if strings.TrimSpace(in.Level) != "" {
		l, err := domain.ParseLevel(in.Level)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidCourse, err)
		}
		level = l
	}
	c.Title = strings.TrimSpace(in.Title)
	c.Description = in.Description
	c.Category = strings.TrimSpace(in.Category)
	c.Level = level
	c.Duration = in.Duration
	c.Price = in.Price
	c.ImageURL = strings.TrimSpace(in.ImageURL)
	c.Skills = in.Skills
	lessons, err := lessons(in.Lessons)
	if err != nil {
		return err
	}
	c.SetLessons(lessons)
	if in.AllowCertification != nil {
		c.AllowCertification = *in.AllowCertification
	}
	if in.PassingScore != nil {
		c.PassingScore = *in.PassingScore
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCourse, err)
	}
	return nil
}
