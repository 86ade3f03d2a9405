// seed inserts development sample data for local testing: one account per role,
// a few courses with lessons and a quiz, and a disabled sample authorization policy.
// Idempotent: skips inserts if the dev admin (admin@example.com) already exists.
package main

import (
	"context"
	"time"

	"eduplatform/backend/internal/account/domain"
	accountrepo "eduplatform/backend/internal/account/repository"
	"eduplatform/backend/internal/config"
	coursedomain "eduplatform/backend/internal/course/domain"
	courserepo "eduplatform/backend/internal/course/repository"
	"eduplatform/backend/internal/db"
	"eduplatform/backend/internal/logger"
	policydomain "eduplatform/backend/internal/policy/domain"
	policyrepo "eduplatform/backend/internal/policy/repository"
	quizdomain "eduplatform/backend/internal/quiz/domain"
	quizrepo "eduplatform/backend/internal/quiz/repository"
	"eduplatform/backend/internal/security"
)

// suspendedPolicy denies every role-gated route to suspended accounts when enabled.
const suspendedPolicy = `package eduplatform.authz

deny if input.principal.status == "SUSPENDED"
`

const (
	devPassword     = "password123"
	devAdminID      = "dev-admin-001"
	devInstructorID = "dev-instructor-001"
	devStudentID    = "dev-student-001"
	devPolicyID     = "dev-policy-001"
	devQuizID       = "dev-quiz-001"
	adminEmail      = "admin@example.com"
)

func main() {
	log := logger.New(logger.Options{Development: true})
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	if cfg.DatabaseURL == "" {
		log.Fatal().Msg("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	ctx := context.Background()
	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("db")
	}
	defer pool.Close()

	accounts := accountrepo.NewPostgresRepository(pool)
	courses := courserepo.NewPostgresRepository(pool)
	policies := policyrepo.NewPostgresRepository(pool)
	quizzes := quizrepo.NewPostgresRepository(pool)

	exists, err := accounts.ExistsByEmail(ctx, adminEmail)
	if err != nil {
		log.Fatal().Err(err).Msg("seed check")
	}
	if exists {
		log.Info().Msg("Seed already applied (admin@example.com exists). Skipping.")
		return
	}

	hash, err := security.NewHasher(cfg.BcryptCost).Hash(devPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("hash password")
	}
	now := time.Now().UTC()

	devAccounts := []*domain.Account{
		{ID: devAdminID, Name: "Dev Admin", Email: adminEmail, Role: domain.RoleAdmin},
		{ID: devInstructorID, Name: "Dev Instructor", Email: "instructor@example.com", Role: domain.RoleInstructor},
		{ID: devStudentID, Name: "Dev Student", Email: "student@example.com", Role: domain.RoleStudent},
	}
	for _, a := range devAccounts {
		a.PasswordHash = hash
		a.Status = domain.StatusActive
		a.CreatedAt, a.UpdatedAt = now, now
	}

	devCourses := []*coursedomain.Course{
		{ID: "dev-course-001", Title: "Go Fundamentals", Category: "Programming", Level: coursedomain.LevelBeginner,
			Duration: "6 weeks", Price: 0, Skills: []string{"go", "testing"},
			Lessons: []coursedomain.Lesson{
				{ID: "dev-lesson-001", Title: "Tour of Go", Type: coursedomain.LessonVideo, VideoURL: "https://go.dev/tour", Order: 1},
				{ID: "dev-lesson-002", Title: "Writing tests", Type: coursedomain.LessonText, Content: "Table-driven tests with the testing package.", Order: 2},
				{ID: "dev-lesson-003", Title: "Checkpoint", Type: coursedomain.LessonQuiz, QuizID: devQuizID, Order: 3},
			}},
		{ID: "dev-course-002", Title: "Distributed Systems", Category: "Programming", Level: coursedomain.LevelAdvanced,
			Duration: "10 weeks", Price: 49.99, Skills: []string{"consensus", "replication"}},
		{ID: "dev-course-003", Title: "Draft: Databases", Category: "Data", Level: coursedomain.LevelIntermediate,
			Duration: "8 weeks", Price: 19.99},
	}
	instructor := devAccounts[1]
	for i, c := range devCourses {
		c.InstructorID = instructor.ID
		c.InstructorName = instructor.Name
		c.AllowCertification = true
		c.PassingScore = coursedomain.DefaultPassingScore
		c.Status = coursedomain.StatusDraft
		if i < 2 {
			c.Publish()
		}
		c.CreatedAt, c.UpdatedAt = now, now
		if err := courses.Save(ctx, c); err != nil {
			log.Fatal().Err(err).Str("course_id", c.ID).Msg("seed course")
		}
		instructor.AddCreatedCourse(c.ID)
	}

	correct := 0
	quiz := &quizdomain.Quiz{
		ID:           devQuizID,
		CourseID:     devCourses[0].ID,
		Title:        "Go Fundamentals checkpoint",
		PassingScore: quizdomain.DefaultPassingScore,
		AllowRetake:  true,
		MaxAttempts:  quizdomain.DefaultMaxAttempts,
		Questions: []quizdomain.Question{
			{ID: "dev-question-001", Prompt: "Which keyword starts a goroutine?", Type: quizdomain.QuestionMultipleChoice,
				Options: []string{"go", "async", "spawn"}, CorrectIndex: &correct, Points: quizdomain.DefaultPoints},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := quizzes.Save(ctx, quiz); err != nil {
		log.Fatal().Err(err).Msg("seed quiz")
	}

	for _, a := range devAccounts {
		if err := accounts.Save(ctx, a); err != nil {
			log.Fatal().Err(err).Str("email", a.Email).Msg("seed account")
		}
	}

	if err := policies.Create(ctx, &policydomain.Policy{
		ID:        devPolicyID,
		Name:      "deny-suspended-accounts",
		Rules:     suspendedPolicy,
		Enabled:   false,
		CreatedAt: now,
	}); err != nil {
		log.Fatal().Err(err).Msg("seed policy")
	}

	log.Info().Int("accounts", len(devAccounts)).Int("courses", len(devCourses)).Int("quizzes", 1).
		Str("password", devPassword).Msg("Seed applied")
}
