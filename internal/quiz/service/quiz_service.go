// Package service manages the quizzes attached to courses.
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
	coursedomain "eduplatform/backend/internal/course/domain"
	"eduplatform/backend/internal/quiz/domain"
)

var (
	// ErrInvalidQuiz wraps every rejected quiz field.
	ErrInvalidQuiz = errors.New("invalid quiz")
	// ErrNotCourseOwner is returned when a non-admin edits quizzes of another instructor's course.
	ErrNotCourseOwner = errors.New("only the course instructor or an admin can manage its quizzes")
)

// QuizRepo is the minimal quiz store needed by the service.
type QuizRepo interface {
	FindByID(ctx context.Context, id string) (*domain.Quiz, error)
	Save(ctx context.Context, q *domain.Quiz) error
	ListByCourse(ctx context.Context, courseID string) ([]*domain.Quiz, error)
}

// CourseFinder resolves the course a quiz belongs to.
type CourseFinder interface {
	FindByID(ctx context.Context, id string) (*coursedomain.Course, error)
}

// QuestionInput is one question as supplied by an author.
type QuestionInput struct {
	ID            string
	Prompt        string
	Type          string
	Options       []string
	CorrectAnswer string
	CorrectIndex  *int
	CorrectBool   *bool
	Explanation   string
	Points        int
}

// QuizInput carries the author-editable fields of a quiz. Nil pointers keep
// the current value, or the default on create.
type QuizInput struct {
	Title            string
	Description      string
	Questions        []QuestionInput
	TimeLimitMinutes *int
	PassingScore     *int
	AllowRetake      *bool
	MaxAttempts      *int
	ShuffleQuestions bool
}

// QuizService implements quiz operations. Answers are only returned to the
// course instructor and admins.
type QuizService struct {
	quizzes QuizRepo
	courses CourseFinder
	log     zerolog.Logger
	now     func() time.Time
}

func NewQuizService(quizzes QuizRepo, courses CourseFinder, log zerolog.Logger) *QuizService {
	return &QuizService{quizzes: quizzes, courses: courses, log: log, now: time.Now}
}

// Create adds a quiz to courseID.
func (s *QuizService) Create(ctx context.Context, actor *accountdomain.Account, courseID string, in QuizInput) (*domain.Quiz, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if course == nil {
		return nil, coursedomain.ErrCourseNotFound
	}
	if !canManage(actor, course) {
		return nil, ErrNotCourseOwner
	}
	now := s.now().UTC()
	q := &domain.Quiz{
		ID:           uuid.New().String(),
		CourseID:     course.ID,
		PassingScore: domain.DefaultPassingScore,
		AllowRetake:  true,
		MaxAttempts:  domain.DefaultMaxAttempts,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := apply(q, in); err != nil {
		return nil, err
	}
	if err := s.quizzes.Save(ctx, q); err != nil {
		return nil, err
	}
	s.log.Info().Str("quiz_id", q.ID).Str("course_id", course.ID).Int("questions", len(q.Questions)).Msg("Quiz created")
	return q, nil
}

// Update overwrites the author-editable fields of quiz id.
func (s *QuizService) Update(ctx context.Context, actor *accountdomain.Account, id string, in QuizInput) (*domain.Quiz, error) {
	q, course, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canManage(actor, course) {
		return nil, ErrNotCourseOwner
	}
	if err := apply(q, in); err != nil {
		return nil, err
	}
	q.UpdatedAt = s.now().UTC()
	if err := s.quizzes.Save(ctx, q); err != nil {
		return nil, err
	}
	return q, nil
}

// Get returns quiz id. The quiz is visible wherever its course is; viewers who
// cannot manage the course get it without answers.
func (s *QuizService) Get(ctx context.Context, viewer *accountdomain.Account, id string) (*domain.Quiz, error) {
	q, course, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	manager := canManage(viewer, course)
	if !course.IsPublic() && !manager {
		return nil, domain.ErrQuizNotFound
	}
	if !manager {
		return q.WithoutAnswers(), nil
	}
	return q, nil
}

// ListByCourse returns the quizzes of courseID under the same visibility as Get.
func (s *QuizService) ListByCourse(ctx context.Context, viewer *accountdomain.Account, courseID string) ([]*domain.Quiz, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		return nil, err
	}
	manager := course != nil && canManage(viewer, course)
	if course == nil || (!course.IsPublic() && !manager) {
		return nil, coursedomain.ErrCourseNotFound
	}
	quizzes, err := s.quizzes.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Quiz, 0, len(quizzes))
	for _, q := range quizzes {
		if !manager {
			q = q.WithoutAnswers()
		}
		out = append(out, q)
	}
	return out, nil
}

func (s *QuizService) load(ctx context.Context, id string) (*domain.Quiz, *coursedomain.Course, error) {
	q, err := s.quizzes.FindByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if q == nil {
		return nil, nil, domain.ErrQuizNotFound
	}
	course, err := s.courses.FindByID(ctx, q.CourseID)
	if err != nil {
		return nil, nil, err
	}
	if course == nil {
		s.log.Warn().Str("quiz_id", q.ID).Str("course_id", q.CourseID).Msg("Quiz references a missing course")
		return nil, nil, domain.ErrQuizNotFound
	}
	return q, course, nil
}

func canManage(actor *accountdomain.Account, c *coursedomain.Course) bool {
	if actor == nil {
		return false
	}
	return actor.Role == accountdomain.RoleAdmin || actor.ID == c.InstructorID
}

func apply(q *domain.Quiz, in QuizInput) error {
	q.Title = strings.TrimSpace(in.Title)
	q.Description = in.Description
	q.ShuffleQuestions = in.ShuffleQuestions
	if in.TimeLimitMinutes != nil {
		q.TimeLimitMinutes = in.TimeLimitMinutes
	}
	if in.PassingScore != nil {
		q.PassingScore = *in.PassingScore
	}
	if in.AllowRetake != nil {
		q.AllowRetake = *in.AllowRetake
	}
	if in.MaxAttempts != nil {
		q.MaxAttempts = *in.MaxAttempts
	}
	questions := make([]domain.Question, 0, len(in.Questions))
	for i, qi := range in.Questions {
		typ, err := domain.ParseQuestionType(qi.Type)
		if err != nil {
			return fmt.Errorf("%w: question %d: %v", ErrInvalidQuiz, i+1, err)
		}
		id := strings.TrimSpace(qi.ID)
		if id == "" {
			id = uuid.New().String()
		}
		points := qi.Points
		if points == 0 {
			points = domain.DefaultPoints
		}
		questions = append(questions, domain.Question{
			ID:            id,
			Prompt:        strings.TrimSpace(qi.Prompt),
			Type:          typ,
			Options:       qi.Options,
			CorrectAnswer: strings.TrimSpace(qi.CorrectAnswer),
			CorrectIndex:  qi.CorrectIndex,
			CorrectBool:   qi.CorrectBool,
			Explanation:   qi.Explanation,
			Points:        points,
		})
	}
	q.Questions = questions
	if err := q.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidQuiz, err)
	}
	return nil
}
