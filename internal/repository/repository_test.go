package repository

import (
	"activity_engine/internal/engine"
	"activity_engine/internal/model"
	"activity_engine/pkg/database"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func quizRaw(id string) engine.RawActivity {
	correct := 1
	return engine.RawActivity{
		ID: id, Title: "Quiz " + id, Type: "quiz", Points: 10,
		Content: engine.RawContent{Questions: []engine.RawQuestion{
			{ID: "q1", Question: "2+2?", Options: []string{"3", "4"}, CorrectAnswer: &correct},
		}},
	}
}

func TestActivityRepository(t *testing.T) {
	repo := NewActivityRepository(openTestDB(t))
	for i, id := range []string{"a2", "a1", "a3"} {
		a, err := model.NewActivity("lesson-1", "class-1", 3-i, quizRaw(id))
		if err != nil {
			t.Fatal(err)
		}
		if err := repo.Create(a); err != nil {
			t.Fatalf("Create(%s): %v", id, err)
		}
	}
	other, _ := model.NewActivity("lesson-2", "class-1", 1, quizRaw("b1"))
	if err := repo.Create(other); err != nil {
		t.Fatal(err)
	}

	got, err := repo.FindByID("a1")
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	parsed, err := got.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if parsed.Kind() != engine.KindQuiz || parsed.Points != 10 {
		t.Fatalf("parsed = %+v", parsed)
	}

	lesson, err := repo.ListByLesson("lesson-1")
	if err != nil {
		t.Fatalf("ListByLesson: %v", err)
	}
	if len(lesson) != 3 || lesson[0].ID != "a3" || lesson[2].ID != "a2" {
		t.Fatalf("lesson order = %v", ids(lesson))
	}
	class, _ := repo.ListByClass("class-1")
	if len(class) != 4 {
		t.Fatalf("class activities = %d, want 4", len(class))
	}

	if _, err := repo.FindByID("missing"); err != gorm.ErrRecordNotFound {
		t.Fatalf("missing err = %v", err)
	}
}

func TestActivityUpsert(t *testing.T) {
	repo := NewActivityRepository(openTestDB(t))
	a, _ := model.NewActivity("lesson-1", "class-1", 1, quizRaw("a1"))
	if err := repo.Upsert(a); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	raw := quizRaw("a1")
	raw.Title = "Renamed"
	b, _ := model.NewActivity("lesson-9", "class-1", 2, raw)
	if err := repo.Upsert(b); err != nil {
		t.Fatalf("second Upsert: %v", err)
	}
	got, _ := repo.FindByID("a1")
	if got.Title != "Renamed" || got.LessonID != "lesson-9" {
		t.Fatalf("after upsert = %+v", got)
	}
}

func ids(list []model.Activity) []string {
	out := make([]string, len(list))
	for i, a := range list {
		out[i] = a.ID
	}
	return out
}

func TestAttemptResultRepository(t *testing.T) {
	repo := NewAttemptResultRepository(openTestDB(t))
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	three, four := 3, 4
	results := []engine.Result{
		{SessionID: "s1", LearnerID: "u1", ActivityID: "a1", Kind: engine.KindQuiz, Score: 75, CorrectCount: &three, TotalCount: &four, Points: 10, CompletedAt: base},
		{SessionID: "s2", LearnerID: "u2", ActivityID: "a1", Kind: engine.KindQuiz, Score: 100, Points: 10, CompletedAt: base.Add(time.Minute),
			Items: []engine.ItemOutcome{{ItemID: "q1", Answered: true, Correct: true}}},
		{SessionID: "s3", LearnerID: "u1", ActivityID: "a2", Kind: engine.KindSpeaking, Abandoned: true, Points: 5, CompletedAt: base.Add(2 * time.Minute)},
	}
	for _, res := range results {
		if err := repo.Create(model.NewAttemptResult(res, "lesson-1", "class-1")); err != nil {
			t.Fatalf("Create(%s): %v", res.SessionID, err)
		}
	}
	if err := repo.Create(model.NewAttemptResult(results[0], "lesson-1", "class-1")); err != nil {
		t.Fatalf("duplicate Create should be ignored: %v", err)
	}

	all, err := repo.ListByLesson("lesson-1", "")
	if err != nil {
		t.Fatalf("ListByLesson: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("lesson results = %d, want 3", len(all))
	}
	mine, _ := repo.ListByLesson("lesson-1", "u1")
	if len(mine) != 2 || mine[0].SessionID != "s1" {
		t.Fatalf("learner results = %+v", mine)
	}

	back := all[0].ToResult()
	if back.CorrectCount == nil || *back.CorrectCount != 3 || back.Score != 75 {
		t.Fatalf("round trip = %+v", back)
	}
	if items := all[1].ToResult().Items; len(items) != 1 || !items[0].Correct {
		t.Fatalf("items = %+v", items)
	}

	page, total, err := repo.ListByLearner("u1", 1, 1)
	if err != nil {
		t.Fatalf("ListByLearner: %v", err)
	}
	if total != 2 || len(page) != 1 || page[0].SessionID != "s3" {
		t.Fatalf("page = %+v total %d", page, total)
	}

	got, err := repo.FindBySession("s2")
	if err != nil || got.LearnerID != "u2" {
		t.Fatalf("FindBySession = %+v, %v", got, err)
	}
}
