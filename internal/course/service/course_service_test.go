package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	accountdomain "eduplatform/backend/internal/account/domain"
	"eduplatform/backend/internal/course/domain"
	"eduplatform/backend/internal/course/repository"
)

type memCourseRepo struct {
	mu      sync.Mutex
	m       map[string]*domain.Course
	lastF   repository.Filter
	lastP   repository.Page
	saveErr error
}

func newMemCourseRepo() *memCourseRepo {
	return &memCourseRepo{m: make(map[string]*domain.Course)}
}

func (r *memCourseRepo) FindByID(ctx context.Context, id string) (*domain.Course, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.m[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *memCourseRepo) Save(ctx context.Context, c *domain.Course) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	cp := *c
	r.m[c.ID] = &cp
	return nil
}

func (r *memCourseRepo) ListPublished(ctx context.Context, page repository.Page) (*repository.Result, error) {
	return r.Search(ctx, repository.Filter{}, page)
}

func (r *memCourseRepo) Search(ctx context.Context, f repository.Filter, page repository.Page) (*repository.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastF, r.lastP = f, page
	res := &repository.Result{Page: page}
	for _, c := range r.m {
		if c.IsPublic() && (!f.Free || c.IsFree()) {
			res.Courses = append(res.Courses, c)
			res.Total++
		}
	}
	return res, nil
}

func (r *memCourseRepo) ListByInstructor(ctx context.Context, instructorID string, page repository.Page) (*repository.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastP = page
	res := &repository.Result{Page: page}
	for _, c := range r.m {
		if c.InstructorID == instructorID {
			res.Courses = append(res.Courses, c)
			res.Total++
		}
	}
	return res, nil
}

func (r *memCourseRepo) CategoryStatistics(ctx context.Context) ([]repository.CategoryStat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byCat := map[string]*repository.CategoryStat{}
	for _, c := range r.m {
		if !c.IsPublic() {
			continue
		}
		st, ok := byCat[c.Category]
		if !ok {
			st = &repository.CategoryStat{Category: c.Category}
			byCat[c.Category] = st
		}
		st.AvgRating = (st.AvgRating*float64(st.Count) + c.Rating) / float64(st.Count+1)
		st.Count++
	}
	var out []repository.CategoryStat
	for _, st := range byCat {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Category < out[j].Category
	})
	return out, nil
}

func (r *memCourseRepo) CountByStatus(ctx context.Context) (map[domain.Status]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[domain.Status]int64)
	for _, c := range r.m {
		out[c.Status]++
	}
	return out, nil
}

type memAccountRepo struct {
	mu      sync.Mutex
	m       map[string]*accountdomain.Account
	saveErr error
}

func (r *memAccountRepo) FindByID(ctx context.Context, id string) (*accountdomain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.m[id].Clone(), nil
}

func (r *memAccountRepo) Save(ctx context.Context, a *accountdomain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.m[a.ID] = a.Clone()
	return nil
}

var (
	instructor = &accountdomain.Account{ID: "i1", Name: "Ines Instructor", Role: accountdomain.RoleInstructor}
	other      = &accountdomain.Account{ID: "i2", Name: "Other", Role: accountdomain.RoleInstructor}
	admin      = &accountdomain.Account{ID: "ad", Name: "Admin", Role: accountdomain.RoleAdmin}
	learner    = &accountdomain.Account{ID: "s1", Name: "Sam", Role: accountdomain.RoleStudent}
)

func newService() (*CourseService, *memCourseRepo, *memAccountRepo) {
	courses := newMemCourseRepo()
	accounts := &memAccountRepo{m: map[string]*accountdomain.Account{instructor.ID: instructor.Clone()}}
	return NewCourseService(courses, accounts, nil, zerolog.Nop()), courses, accounts
}

func TestCreate(t *testing.T) {
	s, _, accounts := newService()
	c, err := s.Create(context.Background(), instructor, CourseInput{Title: "Go Basics", Level: "intermediate", Price: 10})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if c.Status != domain.StatusDraft || c.Published || c.EnrollmentCount != 0 || c.Rating != 0 {
		t.Errorf("new course state = %+v", c)
	}
	if c.InstructorName != "Ines Instructor" || c.Level != domain.LevelIntermediate {
		t.Errorf("instructor name/level = %q/%q", c.InstructorName, c.Level)
	}
	if !c.AllowCertification || c.PassingScore != domain.DefaultPassingScore {
		t.Errorf("certification defaults = %v/%d", c.AllowCertification, c.PassingScore)
	}
	acct, _ := accounts.FindByID(context.Background(), instructor.ID)
	if len(acct.CreatedCourses) != 1 || acct.CreatedCourses[0] != c.ID {
		t.Errorf("created set = %v", acct.CreatedCourses)
	}
}

func TestCreate_InstructorWriteIsBestEffort(t *testing.T) {
	s, courses, accounts := newService()
	accounts.saveErr = errors.New("account store down")
	c, err := s.Create(context.Background(), instructor, CourseInput{Title: "Go Basics"})
	if err != nil {
		t.Fatalf("Create must succeed when only the instructor write fails: %v", err)
	}
	if got, _ := courses.FindByID(context.Background(), c.ID); got == nil {
		t.Error("course not saved")
	}
}

func TestCreate_Invalid(t *testing.T) {
	s, _, _ := newService()
	for _, in := range []CourseInput{
		{Title: ""},
		{Title: "x", Price: -1},
		{Title: "x", Level: "guru"},
	} {
		if _, err := s.Create(context.Background(), instructor, in); !errors.Is(err, ErrInvalidCourse) {
			t.Errorf("Create(%+v): err = %v, want ErrInvalidCourse", in, err)
		}
	}
}

func TestPublishAndArchive(t *testing.T) {
	s, _, _ := newService()
	ctx := context.Background()
	c, _ := s.Create(ctx, instructor, CourseInput{Title: "Go Basics"})

	if _, err := s.Publish(ctx, other, c.ID); !errors.Is(err, ErrNotCourseOwner) {
		t.Errorf("publish by another instructor: err = %v", err)
	}
	pub, err := s.Publish(ctx, instructor, c.ID)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if !pub.IsPublic() {
		t.Error("published course should be public")
	}
	arch, err := s.Archive(ctx, admin, c.ID)
	if err != nil {
		t.Fatalf("Archive by admin: %v", err)
	}
	if arch.Status != domain.StatusArchived || arch.IsPublic() {
		t.Errorf("archived course = %+v", arch)
	}
	if _, err := s.Publish(ctx, instructor, "missing"); !errors.Is(err, domain.ErrCourseNotFound) {
		t.Errorf("missing course: err = %v", err)
	}
}

func TestGet_Visibility(t *testing.T) {
	s, _, _ := newService()
	ctx := context.Background()
	c, _ := s.Create(ctx, instructor, CourseInput{Title: "Draft"})

	if _, err := s.Get(ctx, learner, c.ID); !errors.Is(err, domain.ErrCourseNotFound) {
		t.Errorf("draft seen by student: err = %v", err)
	}
	if _, err := s.Get(ctx, nil, c.ID); !errors.Is(err, domain.ErrCourseNotFound) {
		t.Errorf("draft seen anonymously: err = %v", err)
	}
	if _, err := s.Get(ctx, instructor, c.ID); err != nil {
		t.Errorf("owner Get: %v", err)
	}
	_, _ = s.Publish(ctx, instructor, c.ID)
	if _, err := s.Get(ctx, nil, c.ID); err != nil {
		t.Errorf("published course anonymously: %v", err)
	}
}

func TestUpdate_KeepsCounter(t *testing.T) {
	s, courses, _ := newService()
	ctx := context.Background()
	c, _ := s.Create(ctx, instructor, CourseInput{Title: "Old"})
	courses.mu.Lock()
	courses.m[c.ID].EnrollmentCount = 7
	courses.mu.Unlock()

	up, err := s.Update(ctx, instructor, c.ID, CourseInput{Title: "New", Skills: []string{"go"}})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if up.Title != "New" || up.EnrollmentCount != 7 || up.Status != domain.StatusDraft {
		t.Errorf("updated course = %+v", up)
	}
}

func TestSearch_IgnoresBadLevelAndNormalizesPage(t *testing.T) {
	s, courses, _ := newService()
	_, err := s.Search(context.Background(), SearchInput{Query: " go ", Level: "unknown"}, repository.Page{Number: -1, Size: 1000})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if courses.lastF.Query != "go" || courses.lastF.Level != "" {
		t.Errorf("filter = %+v", courses.lastF)
	}
	if courses.lastP.Number != 0 || courses.lastP.Size != repository.MaxPageSize {
		t.Errorf("page = %+v", courses.lastP)
	}
	_, _ = s.Search(context.Background(), SearchInput{Level: "advanced"}, repository.Page{})
	if courses.lastF.Level != domain.LevelAdvanced {
		t.Errorf("level = %q", courses.lastF.Level)
	}
}

func TestStatistics(t *testing.T) {
	s, _, _ := newService()
	ctx := context.Background()
	a, _ := s.Create(ctx, instructor, CourseInput{Title: "A"})
	_, _ = s.Create(ctx, instructor, CourseInput{Title: "B"})
	c, _ := s.Create(ctx, instructor, CourseInput{Title: "C"})
	_, _ = s.Publish(ctx, instructor, a.ID)
	_, _ = s.Archive(ctx, instructor, c.ID)

	st, err := s.Statistics(ctx)
	if err != nil {
		t.Fatalf("Statistics: %v", err)
	}
	if *st != (Statistics{TotalCourses: 3, PublishedCourses: 1, DraftCourses: 1}) {
		t.Errorf("Statistics = %+v", *st)
	}
}

func TestCreate_WithLessons(t *testing.T) {
	s, _, _ := newService()
	c, err := s.Create(context.Background(), instructor, CourseInput{
		Title:    "Go Basics",
		ImageURL: " https://cdn.example.com/go.png ",
		Lessons: []LessonInput{
			{Title: "Wrap-up quiz", Type: "quiz", QuizID: "q1", Order: 3},
			{ID: "intro", Title: "Intro", Type: "video", VideoURL: "https://v.example.com/1", Order: 1},
			{Title: "Reading", Type: "Text", Content: "Read chapter 1", Order: 2},
		},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if c.ImageURL != "https://cdn.example.com/go.png" {
		t.Errorf("ImageURL = %q", c.ImageURL)
	}
	if len(c.Lessons) != 3 {
		t.Fatalf("lessons = %+v", c.Lessons)
	}
	if c.Lessons[0].ID != "intro" || c.Lessons[1].Type != domain.LessonText || c.Lessons[2].QuizID != "q1" {
		t.Errorf("lessons out of order or mangled: %+v", c.Lessons)
	}
	if c.Lessons[1].ID == "" || c.Lessons[2].ID == "" || c.Lessons[1].ID == c.Lessons[2].ID {
		t.Errorf("generated lesson ids = %q, %q", c.Lessons[1].ID, c.Lessons[2].ID)
	}
}

func TestCreate_InvalidLessons(t *testing.T) {
	s, _, _ := newService()
	for _, ls := range [][]LessonInput{
		{{Title: "x", Type: "podcast"}},
		{{Title: "", Type: "text"}},
		{{Title: "x", Type: "quiz"}},
	} {
		if _, err := s.Create(context.Background(), instructor, CourseInput{Title: "Go", Lessons: ls}); !errors.Is(err, ErrInvalidCourse) {
			t.Errorf("lessons %+v: err = %v, want ErrInvalidCourse", ls, err)
		}
	}
}

func TestListFree(t *testing.T) {
	s, _, _ := newService()
	ctx := context.Background()
	free, _ := s.Create(ctx, instructor, CourseInput{Title: "Free"})
	paid, _ := s.Create(ctx, instructor, CourseInput{Title: "Paid", Price: 30})
	_, _ = s.Create(ctx, instructor, CourseInput{Title: "Free draft"})
	_, _ = s.Publish(ctx, instructor, free.ID)
	_, _ = s.Publish(ctx, instructor, paid.ID)

	res, err := s.ListFree(ctx, repository.Page{})
	if err != nil {
		t.Fatalf("ListFree: %v", err)
	}
	if res.Total != 1 || res.Courses[0].ID != free.ID {
		t.Errorf("free courses = %+v", res.Courses)
	}
}

func TestListByInstructor(t *testing.T) {
	s, _, _ := newService()
	ctx := context.Background()
	_, _ = s.Create(ctx, instructor, CourseInput{Title: "Draft"})
	pub, _ := s.Create(ctx, instructor, CourseInput{Title: "Live"})
	_, _ = s.Publish(ctx, instructor, pub.ID)

	for _, viewer := range []*accountdomain.Account{instructor, admin} {
		res, err := s.ListByInstructor(ctx, viewer, instructor.ID, repository.Page{Size: 500})
		if err != nil {
			t.Fatalf("ListByInstructor as %s: %v", viewer.ID, err)
		}
		if res.Total != 2 {
			t.Errorf("as %s: total = %d, want 2", viewer.ID, res.Total)
		}
	}
	for _, viewer := range []*accountdomain.Account{other, learner, nil} {
		if _, err := s.ListByInstructor(ctx, viewer, instructor.ID, repository.Page{}); !errors.Is(err, ErrNotCourseOwner) {
			t.Errorf("viewer %v: err = %v, want ErrNotCourseOwner", viewer, err)
		}
	}
}

func TestCategoryStatistics(t *testing.T) {
	s, courses, _ := newService()
	ctx := context.Background()
	if st, err := s.CategoryStatistics(ctx); err != nil || st == nil || len(st) != 0 {
		t.Fatalf("empty CategoryStatistics = %v, %v", st, err)
	}
	for _, in := range []CourseInput{
		{Title: "A", Category: "Programming"},
		{Title: "B", Category: "Programming"},
		{Title: "C", Category: "Data"},
	} {
		c, _ := s.Create(ctx, instructor, in)
		_, _ = s.Publish(ctx, instructor, c.ID)
		courses.mu.Lock()
		courses.m[c.ID].Rating = 4
		courses.mu.Unlock()
	}
	_, _ = s.Create(ctx, instructor, CourseInput{Title: "D", Category: "Data"})

	st, err := s.CategoryStatistics(ctx)
	if err != nil {
		t.Fatalf("CategoryStatistics: %v", err)
	}
	want := []repository.CategoryStat{
		{Category: "Programming", Count: 2, AvgRating: 4},
		{Category: "Data", Count: 1, AvgRating: 4},
	}
	if len(st) != len(want) || st[0] != want[0] || st[1] != want[1] {
		t.Errorf("CategoryStatistics = %+v, want %+v", st, want)
	}
}
