package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	accountdomain "eduplatform/backend/internal/account/domain"
	coursedomain "eduplatform/backend/internal/course/domain"
	"eduplatform/backend/internal/quiz/domain"
)

type memQuizzes struct {
	mu sync.Mutex
	m  map[string]*domain.Quiz
}

func (r *memQuizzes) FindByID(ctx context.Context, id string) (*domain.Quiz, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.m[id]
	if !ok {
		return nil, nil
	}
	cp := *q
	return &cp, nil
}

func (r *memQuizzes) Save(ctx context.Context, q *domain.Quiz) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *q
	r.m[q.ID] = &cp
	return nil
}

func (r *memQuizzes) ListByCourse(ctx context.Context, courseID string) ([]*domain.Quiz, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Quiz
	for _, q := range r.m {
		if q.CourseID == courseID {
			cp := *q
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memCourses map[string]*coursedomain.Course

func (m memCourses) FindByID(ctx context.Context, id string) (*coursedomain.Course, error) {
	return m[id], nil
}

var (
	owner   = &accountdomain.Account{ID: "i1", Role: accountdomain.RoleInstructor}
	rival   = &accountdomain.Account{ID: "i2", Role: accountdomain.RoleInstructor}
	admin   = &accountdomain.Account{ID: "ad", Role: accountdomain.RoleAdmin}
	learner = &accountdomain.Account{ID: "s1", Role: accountdomain.RoleStudent}
)

func intPtr(n int) *int { return &n }

func newService() (*QuizService, *memQuizzes) {
	courses := memCourses{
		"draft": {ID: "draft", InstructorID: owner.ID, Status: coursedomain.StatusDraft},
		"live":  {ID: "live", InstructorID: owner.ID, Status: coursedomain.StatusPublished, Published: true},
	}
	quizzes := &memQuizzes{m: map[string]*domain.Quiz{}}
	s := NewQuizService(quizzes, courses, zerolog.Nop())
	s.now = func() time.Time { return time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC) }
	return s, quizzes
}

func input() QuizInput {
	return QuizInput{
		Title: "Checkpoint",
		Questions: []QuestionInput{
			{Prompt: "Pick", Type: "multiple_choice", Options: []string{"a", "b"}, CorrectIndex: intPtr(0), Explanation: "a"},
			{Prompt: "Answer", Type: "numeric", CorrectAnswer: " 42 ", Points: 3},
		},
	}
}

func TestCreate_Defaults(t *testing.T) {
	s, quizzes := newService()
	q, err := s.Create(context.Background(), owner, "live", input())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if q.PassingScore != domain.DefaultPassingScore || !q.AllowRetake || q.MaxAttempts != domain.DefaultMaxAttempts {
		t.Errorf("defaults = %+v", q)
	}
	if q.Questions[0].Points != domain.DefaultPoints || q.Questions[1].CorrectAnswer != "42" {
		t.Errorf("questions = %+v", q.Questions)
	}
	if q.Questions[0].ID == "" || q.Questions[0].ID == q.Questions[1].ID {
		t.Errorf("question ids = %q, %q", q.Questions[0].ID, q.Questions[1].ID)
	}
	if saved, _ := quizzes.FindByID(context.Background(), q.ID); saved == nil || saved.CourseID != "live" {
		t.Errorf("saved quiz = %+v", saved)
	}
}

func TestCreate_Errors(t *testing.T) {
	s, _ := newService()
	ctx := context.Background()
	if _, err := s.Create(ctx, owner, "missing", input()); !errors.Is(err, coursedomain.ErrCourseNotFound) {
		t.Errorf("missing course: err = %v", err)
	}
	if _, err := s.Create(ctx, rival, "live", input()); !errors.Is(err, ErrNotCourseOwner) {
		t.Errorf("rival: err = %v", err)
	}
	if _, err := s.Create(ctx, admin, "live", input()); err != nil {
		t.Errorf("admin Create: %v", err)
	}
	bad := input()
	bad.Questions[0].Type = "essay"
	if _, err := s.Create(ctx, owner, "live", bad); !errors.Is(err, ErrInvalidQuiz) {
		t.Errorf("bad type: err = %v", err)
	}
	bad = input()
	bad.Questions[0].CorrectIndex = intPtr(5)
	if _, err := s.Create(ctx, owner, "live", bad); !errors.Is(err, ErrInvalidQuiz) {
		t.Errorf("bad index: err = %v", err)
	}
}

func TestGet_HidesAnswersFromLearners(t *testing.T) {
	s, _ := newService()
	ctx := context.Background()
	q, _ := s.Create(ctx, owner, "live", input())

	got, err := s.Get(ctx, learner, q.ID)
	if err != nil {
		t.Fatalf("learner Get: %v", err)
	}
	if got.Questions[0].CorrectIndex != nil || got.Questions[0].Explanation != "" || got.Questions[1].CorrectAnswer != "" {
		t.Errorf("learner sees answers: %+v", got.Questions)
	}
	got, err = s.Get(ctx, owner, q.ID)
	if err != nil || got.Questions[0].CorrectIndex == nil {
		t.Errorf("owner Get = %+v, %v", got, err)
	}
	if _, err := s.Get(ctx, nil, "nope"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Errorf("missing quiz: err = %v", err)
	}
}

func TestGet_DraftCourseQuizHidden(t *testing.T) {
	s, _ := newService()
	ctx := context.Background()
	q, _ := s.Create(ctx, owner, "draft", input())
	if _, err := s.Get(ctx, learner, q.ID); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Errorf("learner on draft course: err = %v", err)
	}
	if _, err := s.ListByCourse(ctx, nil, "draft"); !errors.Is(err, coursedomain.ErrCourseNotFound) {
		t.Errorf("anonymous list on draft course: err = %v", err)
	}
	list, err := s.ListByCourse(ctx, owner, "draft")
	if err != nil || len(list) != 1 {
		t.Errorf("owner list = %v, %v", list, err)
	}
}

func TestListByCourse_Redacted(t *testing.T) {
	s, _ := newService()
	ctx := context.Background()
	_, _ = s.Create(ctx, owner, "live", input())
	_, _ = s.Create(ctx, owner, "live", input())

	list, err := s.ListByCourse(ctx, learner, "live")
	if err != nil || len(list) != 2 {
		t.Fatalf("ListByCourse = %v, %v", list, err)
	}
	for _, q := range list {
		if q.Questions[0].CorrectIndex != nil {
			t.Errorf("quiz %s leaks answers", q.ID)
		}
	}
}

func TestUpdate(t *testing.T) {
	s, _ := newService()
	ctx := context.Background()
	q, _ := s.Create(ctx, owner, "live", input())

	in := input()
	in.Title = "Final"
	in.PassingScore = intPtr(90)
	in.TimeLimitMinutes = intPtr(15)
	up, err := s.Update(ctx, owner, q.ID, in)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if up.Title != "Final" || up.PassingScore != 90 || *up.TimeLimitMinutes != 15 || up.CourseID != "live" {
		t.Errorf("updated quiz = %+v", up)
	}
	if _, err := s.Update(ctx, rival, q.ID, in); !errors.Is(err, ErrNotCourseOwner) {
		t.Errorf("rival update: err = %v", err)
	}
	in.TimeLimitMinutes = intPtr(0)
	if _, err := s.Update(ctx, owner, q.ID, in); !errors.Is(err, ErrInvalidQuiz) {
		t.Errorf("zero time limit: err = %v", err)
	}
}
