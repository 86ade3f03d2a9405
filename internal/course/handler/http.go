// Package handler serves the course catalog and enrollment endpoints over HTTP.
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	accountdomain "eduplatform/backend/internal/account/domain"
	"eduplatform/backend/internal/course/domain"
	"eduplatform/backend/internal/course/repository"
	"eduplatform/backend/internal/course/service"
	enrollment "eduplatform/backend/internal/enrollment/service"
	"eduplatform/backend/internal/platform/httpx"
	"eduplatform/backend/internal/server/middleware"
)

// CourseService is the catalog surface used by the handler.
type CourseService interface {
	Create(ctx context.Context, instructor *accountdomain.Account, in service.CourseInput) (*domain.Course, error)
	Get(ctx context.Context, viewer *accountdomain.Account, id string) (*domain.Course, error)
	Update(ctx context.Context, actor *accountdomain.Account, id string, in service.CourseInput) (*domain.Course, error)
	Publish(ctx context.Context, actor *accountdomain.Account, id string) (*domain.Course, error)
	Archive(ctx context.Context, actor *accountdomain.Account, id string) (*domain.Course, error)
	ListPublished(ctx context.Context, page repository.Page) (*repository.Result, error)
	Search(ctx context.Context, in service.SearchInput, page repository.Page) (*repository.Result, error)
	ListFree(ctx context.Context, page repository.Page) (*repository.Result, error)
	ListByInstructor(ctx context.Context, viewer *accountdomain.Account, instructorID string, page repository.Page) (*repository.Result, error)
	Statistics(ctx context.Context) (*service.Statistics, error)
	CategoryStatistics(ctx context.Context) ([]repository.CategoryStat, error)
}

// Enroller performs enrollments.
type Enroller interface {
	Enroll(ctx context.Context, accountID, courseID string) (*enrollment.Result, error)
}

// CourseResponse is the JSON view of a course.
type CourseResponse struct {
	ID                 string    `json:"id"`
	Title              string    `json:"title"`
	Description        string    `json:"description"`
	InstructorID       string    `json:"instructorId"`
	InstructorName     string    `json:"instructorName"`
	Category           string    `json:"category"`
	Level              string    `json:"level"`
	Duration           string    `json:"duration"`
	Price              float64   `json:"price"`
	Rating             float64   `json:"rating"`
	EnrollmentCount    int64     `json:"enrollmentCount"`
	ImageURL           string    `json:"imageUrl"`
	Skills             []string  `json:"skills"`
	Lessons            []Lesson  `json:"lessons"`
	Status             string    `json:"status"`
	Published          bool      `json:"isPublished"`
	AllowCertification bool      `json:"allowCertification"`
	PassingScore       int       `json:"passingScore"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// Lesson is the JSON view of a lesson.
type Lesson struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Duration    string `json:"duration"`
	Type        string `json:"type"`
	Content     string `json:"content"`
	VideoURL    string `json:"videoUrl"`
	QuizID      string `json:"quizId"`
	Order       int    `json:"order"`
}

func newCourseResponse(c *domain.Course) *CourseResponse {
	skills := c.Skills
	if skills == nil {
		skills = []string{}
	}
	lessons := make([]Lesson, 0, len(c.Lessons))
	for _, l := range c.Lessons {
		lessons = append(lessons, Lesson{
			ID:          l.ID,
			Title:       l.Title,
			Description: l.Description,
			Duration:    l.Duration,
			Type:        string(l.Type),
			Content:     l.Content,
			VideoURL:    l.VideoURL,
			QuizID:      l.QuizID,
			Order:       l.Order,
		})
	}
	return &CourseResponse{
		ID:                 c.ID,
		Title:              c.Title,
		Description:        c.Description,
		InstructorID:       c.InstructorID,
		InstructorName:     c.InstructorName,
		Category:           c.Category,
		Level:              string(c.Level),
		Duration:           c.Duration,
		Price:              c.Price,
		Rating:             c.Rating,
		EnrollmentCount:    c.EnrollmentCount,
		ImageURL:           c.ImageURL,
		Skills:             skills,
		Lessons:            lessons,
		Status:             string(c.Status),
		Published:          c.Published,
		AllowCertification: c.AllowCertification,
		PassingScore:       c.PassingScore,
		CreatedAt:          c.CreatedAt,
		UpdatedAt:          c.UpdatedAt,
	}
}

// PageResponse is one page of courses.
type PageResponse struct {
	Content       []*CourseResponse `json:"content"`
	TotalElements int64             `json:"totalElements"`
	TotalPages    int64             `json:"totalPages"`
	Number        int               `json:"number"`
	Size          int               `json:"size"`
}

func newPageResponse(res *repository.Result) *PageResponse {
	out := &PageResponse{
		Content:       make([]*CourseResponse, 0, len(res.Courses)),
		TotalElements: res.Total,
		Number:        res.Page.Number,
		Size:          res.Page.Size,
	}
	for _, c := range res.Courses {
		out.Content = append(out.Content, newCourseResponse(c))
	}
	if res.Page.Size > 0 {
		out.TotalPages = (res.Total + int64(res.Page.Size) - 1) / int64(res.Page.Size)
	}
	return out
}

type lessonRequest struct {
	ID          string `json:"id" validate:"max=64"`
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=5000"`
	Duration    string `json:"duration" validate:"max=100"`
	Type        string `json:"type" validate:"required"`
	Content     string `json:"content" validate:"max=100000"`
	VideoURL    string `json:"videoUrl" validate:"omitempty,url"`
	QuizID      string `json:"quizId" validate:"max=64"`
	Order       int    `json:"order" validate:"gte=0"`
}

type courseRequest struct {
	Title              string          `json:"title" validate:"required,max=200"`
	Description        string          `json:"description" validate:"max=5000"`
	Category           string          `json:"category" validate:"max=100"`
	Level              string          `json:"level"`
	Duration           string          `json:"duration" validate:"max=100"`
	Price              float64         `json:"price" validate:"gte=0"`
	ImageURL           string          `json:"imageUrl" validate:"omitempty,url,max=2048"`
	Skills             []string        `json:"skills" validate:"max=50,dive,max=100"`
	Lessons            []lessonRequest `json:"lessons" validate:"max=200,dive"`
	AllowCertification *bool           `json:"allowCertification"`
	PassingScore       *int            `json:"passingScore" validate:"omitempty,gte=0,lte=100"`
}

func (r courseRequest) input() service.CourseInput {
	in := service.CourseInput{
		Title:              r.Title,
		Description:        r.Description,
		Category:           r.Category,
		Level:              r.Level,
		Duration:           r.Duration,
		Price:              r.Price,
		ImageURL:           r.ImageURL,
		Skills:             r.Skills,
		AllowCertification: r.AllowCertification,
		PassingScore:       r.PassingScore,
	}
	for _, l := range r.Lessons {
		in.Lessons = append(in.Lessons, service.LessonInput{
			ID:          l.ID,
			Title:       l.Title,
			Description: l.Description,
			Duration:    l.Duration,
			Type:        l.Type,
			Content:     l.Content,
			VideoURL:    l.VideoURL,
			QuizID:      l.QuizID,
			Order:       l.Order,
		})
	}
	return in
}

type enrollResponse struct {
	Message         string `json:"message"`
	CourseID        string `json:"courseId"`
	EnrollmentCount int64  `json:"enrollmentCount"`
}

type enrollErrorBody struct {
	Error   string `json:"error"`
	Partial bool   `json:"partial"`
}

// Handler serves /courses.
type Handler struct {
	courses  CourseService
	enroller Enroller
	validate *validator.Validate
	log      zerolog.Logger
}

// New returns a Handler.
func New(courses CourseService, enroller Enroller, v *validator.Validate, log zerolog.Logger) *Handler {
	if v == nil {
		v = validator.New()
	}
	return &Handler{courses: courses, enroller: enroller, validate: v, log: log}
}

// Routes lists the endpoints served by h.
func (h *Handler) Routes() []httpx.Route {
	return []httpx.Route{
		{Pattern: "GET /courses/public", Handler: h.listPublished},
		{Pattern: "GET /courses/public/free", Handler: h.listFree},
		{Pattern: "GET /courses/public/categories", Handler: h.categoryStatistics},
		{Pattern: "GET /instructors/{id}/courses", Role: accountdomain.RoleInstructor, Handler: h.listByInstructor},
		{Pattern: "GET /courses/search", Handler: h.search},
		{Pattern: "GET /courses/statistics", Role: accountdomain.RoleAdmin, Handler: h.statistics},
		{Pattern: "GET /courses/{id}", Handler: h.get},
		{Pattern: "POST /courses", Role: accountdomain.RoleInstructor, Audit: true, Handler: h.create},
		{Pattern: "PUT /courses/{id}", Role: accountdomain.RoleInstructor, Audit: true, Handler: h.update},
		{Pattern: "DELETE /courses/{id}", Role: accountdomain.RoleInstructor, Audit: true, Handler: h.archive},
		{Pattern: "POST /courses/{id}/publish", Role: accountdomain.RoleInstructor, Audit: true, Handler: h.publish},
		// Enroll outcomes are audited by the coordinator, which knows partial from total failure.
		{Pattern: "POST /courses/{id}/enroll", Role: accountdomain.RoleStudent, Handler: h.enroll},
	}
}

func page(r *http.Request) repository.Page {
	return repository.Page{
		Number: httpx.QueryInt(r, "page", 0),
		Size:   httpx.QueryInt(r, "size", repository.DefaultPageSize),
	}
}

func viewer(r *http.Request) *accountdomain.Account {
	p, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		return nil
	}
	return p.Account
}

func (h *Handler) listPublished(w http.ResponseWriter, r *http.Request) {
	res, err := h.courses.ListPublished(r.Context(), page(r))
	if err != nil {
		h.internal(w, err, "Failed to list courses")
		return
	}
	httpx.WriteJSON(w, h.log, http.StatusOK, newPageResponse(res))
}

func (h *Handler) listFree(w http.ResponseWriter, r *http.Request) {
	res, err := h.courses.ListFree(r.Context(), page(r))
	if err != nil {
		h.internal(w, err, "Failed to list free courses")
		return
	}
	httpx.WriteJSON(w, h.log, http.StatusOK, newPageResponse(res))
}

func (h *Handler) listByInstructor(w http.ResponseWriter, r *http.Request) {
	res, err := h.courses.ListByInstructor(r.Context(), viewer(r), r.PathValue("id"), page(r))
	if err != nil {
		h.courseError(w, err, "Failed to list instructor courses")
		return
	}
	httpx.WriteJSON(w, h.log, http.StatusOK, newPageResponse(res))
}

func (h *Handler) categoryStatistics(w http.ResponseWriter, r *http.Request) {
	st, err := h.courses.CategoryStatistics(r.Context())
	if err != nil {
		h.internal(w, err, "Category statistics unavailable")
		return
	}
	httpx.WriteJSON(w, h.log, http.StatusOK, st)
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := h.courses.Search(r.Context(), service.SearchInput{
		Query:    q.Get("q"),
		Category: q.Get("category"),
		Level:    q.Get("level"),
		MinPrice: httpx.QueryFloat(r, "minPrice"),
		MaxPrice: httpx.QueryFloat(r, "maxPrice"),
	}, page(r))
	if err != nil {
		h.internal(w, err, "Failed to search courses")
		return
	}
	httpx.WriteJSON(w, h.log, http.StatusOK, newPageResponse(res))
}

func (h *Handler) statistics(w http.ResponseWriter, r *http.Request) {
	st, err := h.courses.Statistics(r.Context())
	if err != nil {
		h.internal(w, err, "Statistics unavailable")
		return
	}
	httpx.WriteJSON(w, h.log, http.StatusOK, st)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	c, err := h.courses.Get(r.Context(), viewer(r), r.PathValue("id"))
	if err != nil {
		h.courseError(w, err, "Failed to load course")
		return
	}
	httpx.WriteJSON(w, h.log, http.StatusOK, newCourseResponse(c))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req courseRequest
	if err := httpx.Decode(r, h.validate, &req); err != nil {
		httpx.WriteError(w, h.log, http.StatusBadRequest, err.Error())
		return
	}
	c, err := h.courses.Create(r.Context(), viewer(r), req.input())
	if err != nil {
		h.courseError(w, err, "Failed to create course")
		return
	}
	httpx.WriteJSON(w, h.log, http.StatusCreated, newCourseResponse(c))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var req courseRequest
	if err := httpx.Decode(r, h.validate, &req); err != nil {
		httpx.WriteError(w, h.log, http.StatusBadRequest, err.Error())
		return
	}
	c, err := h.courses.Update(r.Context(), viewer(r), r.PathValue("id"), req.input())
	if err != nil {
		h.courseError(w, err, "Failed to update course")
		return
	}
	httpx.WriteJSON(w, h.log, http.StatusOK, newCourseResponse(c))
}

func (h *Handler) publish(w http.ResponseWriter, r *http.Request) {
	c, err := h.courses.Publish(r.Context(), viewer(r), r.PathValue("id"))
	if err != nil {
		h.courseError(w, err, "Failed to publish course")
		return
	}
	httpx.WriteJSON(w, h.log, http.StatusOK, newCourseResponse(c))
}

func (h *Handler) archive(w http.ResponseWriter, r *http.Request) {
	c, err := h.courses.Archive(r.Context(), viewer(r), r.PathValue("id"))
	if err != nil {
		h.courseError(w, err, "Failed to archive course")
		return
	}
	httpx.WriteJSON(w, h.log, http.StatusOK, newCourseResponse(c))
}

func (h *Handler) enroll(w http.ResponseWriter, r *http.Request) {
	acct := viewer(r)
	if acct == nil {
		httpx.WriteError(w, h.log, http.StatusUnauthorized, "Unauthorized")
		return
	}
	courseID := r.PathValue("id")
	res, err := h.enroller.Enroll(r.Context(), acct.ID, courseID)
	if err == nil {
		httpx.WriteJSON(w, h.log, http.StatusOK, enrollResponse{
			Message:         "Enrolled successfully",
			CourseID:        courseID,
			EnrollmentCount: res.EnrollmentCount,
		})
		return
	}
	var ee *enrollment.EnrollmentError
	partial := errors.As(err, &ee) && ee.Kind == enrollment.PartialFailure
	switch {
	case errors.Is(err, enrollment.ErrAlreadyEnrolled):
		httpx.WriteError(w, h.log, http.StatusConflict, "User already enrolled in this course")
	case errors.Is(err, accountdomain.ErrAccountNotFound):
		httpx.WriteError(w, h.log, http.StatusNotFound, "User not found")
	case errors.Is(err, domain.ErrCourseNotFound):
		httpx.WriteJSON(w, h.log, http.StatusNotFound, enrollErrorBody{Error: "Course not found", Partial: partial})
	default:
		httpx.WriteJSON(w, h.log, http.StatusInternalServerError, enrollErrorBody{Error: "Enrollment failed", Partial: partial})
	}
}

func (h *Handler) courseError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, domain.ErrCourseNotFound):
		httpx.WriteError(w, h.log, http.StatusNotFound, "Course not found")
	case errors.Is(err, service.ErrNotCourseOwner):
		httpx.WriteError(w, h.log, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrInvalidCourse):
		httpx.WriteError(w, h.log, http.StatusBadRequest, err.Error())
	case errors.Is(err, accountdomain.ErrAccountNotFound):
		httpx.WriteError(w, h.log, http.StatusBadRequest, "User not found")
	default:
		h.internal(w, err, msg)
	}
}

func (h *Handler) internal(w http.ResponseWriter, err error, msg string) {
	h.log.Error().Err(err).Msg(msg)
	httpx.WriteError(w, h.log, http.StatusInternalServerError, msg)
}
