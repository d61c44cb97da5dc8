package app_test

import (
	"context"
	"testing"

	"thinktank-service/internal/app"
	"thinktank-service/internal/infra/memory"
)

func TestCatalogSubjectsAndLessons(t *testing.T) {
	ctx := context.Background()
	store := memory.NewDocStore()
	seedTestCatalog(t, store)
	createUser(t, store, "u1", "Alice")

	catalog := app.NewCatalogSource(store)

	subjects, err := catalog.Subjects(ctx)
	if err != nil {
		t.Fatalf("subjects: %v", err)
	}
	if len(subjects) != 2 {
		t.Fatalf("expected 2 subjects, got %+v", subjects)
	}
	if subjects[0].ID != "math" || subjects[0].Label != "Math" {
		t.Fatalf("expected display-cased label, got %+v", subjects[0])
	}

	progress := app.NewProgressService(store)
	if _, err := progress.MarkLessonComplete(ctx, "u1", "math", "lesson1"); err != nil {
		t.Fatalf("mark: %v", err)
	}

	lessons, err := catalog.Lessons(ctx, "u1", "math")
	if err != nil {
		t.Fatalf("lessons: %v", err)
	}
	if len(lessons) != 2 {
		t.Fatalf("expected 2 lessons, got %+v", lessons)
	}
	if !lessons[0].Finished || lessons[1].Finished {
		t.Fatalf("expected only lesson1 finished, got %+v", lessons)
	}

	// An anonymous listing carries no completion flags.
	lessons, err = catalog.Lessons(ctx, "", "math")
	if err != nil {
		t.Fatalf("lessons: %v", err)
	}
	if lessons[0].Finished {
		t.Fatalf("expected no completion flags without a user, got %+v", lessons)
	}
}

func TestCatalogQuestionsKeepStoredOrder(t *testing.T) {
	ctx := context.Background()
	store := memory.NewDocStore()
	seedTestCatalog(t, store)

	for _, q := range sampleQuestions() {
		path := app.LessonQuestionsCollection("math", "lesson1") + "/" + q.ID
		err := store.WriteMerge(ctx, path, app.Fields{
			"question": q.Prompt,
			"options":  q.Options,
			"answer":   q.Answer,
		})
		if err != nil {
			t.Fatalf("seed question: %v", err)
		}
	}

	catalog := app.NewCatalogSource(store)
	questions, err := catalog.Questions(ctx, "math", "lesson1")
	if err != nil {
		t.Fatalf("questions: %v", err)
	}
	if len(questions) != 3 {
		t.Fatalf("expected 3 questions, got %d", len(questions))
	}
	for i, want := range sampleQuestions() {
		got := questions[i]
		if got.ID != want.ID || got.Prompt != want.Prompt || got.Answer != want.Answer {
			t.Fatalf("question %d: expected %+v, got %+v", i, want, got)
		}
		if len(got.Options) != len(want.Options) || got.Options[0] != want.Options[0] {
			t.Fatalf("question %d options drifted: %+v", i, got.Options)
		}
	}
}
