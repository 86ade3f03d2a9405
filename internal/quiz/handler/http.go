// Package handler serves course quizzes over HTTP.
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	accountdomain "eduplatform/backend/internal/account/domain"
	coursedomain "eduplatform/backend/internal/course/domain"
	"eduplatform/backend/internal/platform/httpx"
	"eduplatform/backend/internal/quiz/domain"
	"eduplatform/backend/internal/quiz/service"
	"eduplatform/backend/internal/server/middleware"
)

// QuizService is the quiz surface used by the handler.
type QuizService interface {
	Create(ctx context.Context, actor *accountdomain.Account, courseID string, in service.QuizInput) (*domain.Quiz, error)
	Update(ctx context.Context, actor *accountdomain.Account, id string, in service.QuizInput) (*domain.Quiz, error)
	Get(ctx context.Context, viewer *accountdomain.Account, id string) (*domain.Quiz, error)
	ListByCourse(ctx context.Context, viewer *accountdomain.Account, courseID string) ([]*domain.Quiz, error)
}

// QuestionResponse is the JSON view of a question. Answer fields are omitted
// when the viewer may not see them.
type QuestionResponse struct {
	ID                   string   `json:"id"`
	Question             string   `json:"question"`
	Type                 string   `json:"type"`
	Options              []string `json:"options"`
	CorrectAnswer        string   `json:"correctAnswer,omitempty"`
	CorrectAnswerIndex   *int     `json:"correctAnswerIndex,omitempty"`
	CorrectAnswerBoolean *bool    `json:"correctAnswerBoolean,omitempty"`
	Explanation          string   `json:"explanation,omitempty"`
	Points               int      `json:"points"`
}

// QuizResponse is the JSON view of a quiz.
type QuizResponse struct {
	ID               string             `json:"id"`
	CourseID         string             `json:"courseId"`
	Title            string             `json:"title"`
	Description      string             `json:"description"`
	Questions        []QuestionResponse `json:"questions"`
	TotalPoints      int                `json:"totalPoints"`
	TimeLimitMinutes *int               `json:"timeLimitMinutes"`
	PassingScore     int                `json:"passingScore"`
	AllowRetake      bool               `json:"allowRetake"`
	MaxAttempts      int                `json:"maxAttempts"`
	ShuffleQuestions bool               `json:"shuffleQuestions"`
	CreatedAt        time.Time          `json:"createdAt"`
	UpdatedAt        time.Time          `json:"updatedAt"`
}

func newQuizResponse(q *domain.Quiz) *QuizResponse {
	out := &QuizResponse{
		ID:               q.ID,
		CourseID:         q.CourseID,
		Title:            q.Title,
		Description:      q.Description,
		Questions:        make([]QuestionResponse, 0, len(q.Questions)),
		TotalPoints:      q.TotalPoints(),
		TimeLimitMinutes: q.TimeLimitMinutes,
		PassingScore:     q.PassingScore,
		AllowRetake:      q.AllowRetake,
		MaxAttempts:      q.MaxAttempts,
		ShuffleQuestions: q.ShuffleQuestions,
		CreatedAt:        q.CreatedAt,
		UpdatedAt:        q.UpdatedAt,
	}
	for _, qu := range q.Questions {
		options := qu.Options
		if options == nil {
			options = []string{}
		}
		out.Questions = append(out.Questions, QuestionResponse{
			ID:                   qu.ID,
			Question:             qu.Prompt,
			Type:                 string(qu.Type),
			Options:              options,
			CorrectAnswer:        qu.CorrectAnswer,
			CorrectAnswerIndex:   qu.CorrectIndex,
			CorrectAnswerBoolean: qu.CorrectBool,
			Explanation:          qu.Explanation,
			Points:               qu.Points,
		})
	}
	return out
}

type questionRequest struct {
	ID                   string   `json:"id" validate:"max=64"`
	Question             string   `json:"question" validate:"required,max=2000"`
	Type                 string   `json:"type" validate:"required"`
	Options              []string `json:"options" validate:"max=20,dive,max=500"`
	CorrectAnswer        string   `json:"correctAnswer" validate:"max=500"`
	CorrectAnswerIndex   *int     `json:"correctAnswerIndex"`
	CorrectAnswerBoolean *bool    `json:"correctAnswerBoolean"`
	Explanation          string   `json:"explanation" validate:"max=2000"`
	Points               int      `json:"points" validate:"gte=0"`
}

type quizRequest struct {
	CourseID         string            `json:"courseId"`
	Title            string            `json:"title" validate:"required,max=200"`
	Description      string            `json:"description" validate:"max=5000"`
	Questions        []questionRequest `json:"questions" validate:"max=200,dive"`
	TimeLimitMinutes *int              `json:"timeLimitMinutes" validate:"omitempty,gte=1"`
	PassingScore     *int              `json:"passingScore" validate:"omitempty,gte=0,lte=100"`
	AllowRetake      *bool             `json:"allowRetake"`
	MaxAttempts      *int              `json:"maxAttempts" validate:"omitempty,gte=1"`
	ShuffleQuestions bool              `json:"shuffleQuestions"`
}

func (r quizRequest) input() service.QuizInput {
	in := service.QuizInput{
		Title:            r.Title,
		Description:      r.Description,
		TimeLimitMinutes: r.TimeLimitMinutes,
		PassingScore:     r.PassingScore,
		AllowRetake:      r.AllowRetake,
		MaxAttempts:      r.MaxAttempts,
		ShuffleQuestions: r.ShuffleQuestions,
	}
	for _, q := range r.Questions {
		in.Questions = append(in.Questions, service.QuestionInput{
			ID:            q.ID,
			Prompt:        q.Question,
			Type:          q.Type,
			Options:       q.Options,
			CorrectAnswer: q.CorrectAnswer,
			CorrectIndex:  q.CorrectAnswerIndex,
			CorrectBool:   q.CorrectAnswerBoolean,
			Explanation:   q.Explanation,
			Points:        q.Points,
		})
	}
	return in
}

// Handler serves /quizzes and /courses/{id}/quizzes.
type Handler struct {
	quizzes  QuizService
	validate *validator.Validate
	log      zerolog.Logger
}

// New returns a Handler.
func New(quizzes QuizService, v *validator.Validate, log zerolog.Logger) *Handler {
	if v == nil {
		v = validator.New()
	}
	return &Handler{quizzes: quizzes, validate: v, log: log}
}

// Routes lists the endpoints served by h.
func (h *Handler) Routes() []httpx.Route {
	return []httpx.Route{
		{Pattern: "GET /courses/{id}/quizzes", Handler: h.listByCourse},
		{Pattern: "GET /quizzes/{id}", Handler: h.get},
		{Pattern: "POST /quizzes", Role: accountdomain.RoleInstructor, Audit: true, Handler: h.create},
		{Pattern: "PUT /quizzes/{id}", Role: accountdomain.RoleInstructor, Audit: true, Handler: h.update},
	}
}

func viewer(r *http.Request) *accountdomain.Account {
	p, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		return nil
	}
	return p.Account
}

func (h *Handler) listByCourse(w http.ResponseWriter, r *http.Request) {
	quizzes, err := h.quizzes.ListByCourse(r.Context(), viewer(r), r.PathValue("id"))
	if err != nil {
		h.quizError(w, err, "Failed to list quizzes")
		return
	}
	out := make([]*QuizResponse, 0, len(quizzes))
	for _, q := range quizzes {
		out = append(out, newQuizResponse(q))
	}
	httpx.WriteJSON(w, h.log, http.StatusOK, out)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	q, err := h.quizzes.Get(r.Context(), viewer(r), r.PathValue("id"))
	if err != nil {
		h.quizError(w, err, "Failed to load quiz")
		return
	}
	httpx.WriteJSON(w, h.log, http.StatusOK, newQuizResponse(q))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req quizRequest
	if err := httpx.Decode(r, h.validate, &req); err != nil {
		httpx.WriteError(w, h.log, http.StatusBadRequest, err.Error())
		return
	}
	if req.CourseID == "" {
		httpx.WriteError(w, h.log, http.StatusBadRequest, "courseId is required")
		return
	}
	q, err := h.quizzes.Create(r.Context(), viewer(r), req.CourseID, req.input())
	if err != nil {
		h.quizError(w, err, "Failed to create quiz")
		return
	}
	httpx.WriteJSON(w, h.log, http.StatusCreated, newQuizResponse(q))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var req quizRequest
	if err := httpx.Decode(r, h.validate, &req); err != nil {
		httpx.WriteError(w, h.log, http.StatusBadRequest, err.Error())
		return
	}
	q, err := h.quizzes.Update(r.Context(), viewer(r), r.PathValue("id"), req.input())
	if err != nil {
		h.quizError(w, err, "Failed to update quiz")
		return
	}
	httpx.WriteJSON(w, h.log, http.StatusOK, newQuizResponse(q))
}

func (h *Handler) quizError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, domain.ErrQuizNotFound):
		httpx.WriteError(w, h.log, http.StatusNotFound, "Quiz not found")
	case errors.Is(err, coursedomain.ErrCourseNotFound):
		httpx.WriteError(w, h.log, http.StatusNotFound, "Course not found")
	case errors.Is(err, service.ErrNotCourseOwner):
		httpx.WriteError(w, h.log, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrInvalidQuiz):
		httpx.WriteError(w, h.log, http.StatusBadRequest, err.Error())
	default:
		h.log.Error().Err(err).Msg(msg)
		httpx.WriteError(w, h.log, http.StatusInternalServerError, msg)
	}
}
