package app

import (
	"context"
	"fmt"
	"strings"

	"thinktank-service/internal/domain"
)

// QuestionSource loads a lesson's question set. Implementations may
// cache (memory or Redis) in front of the catalog.
type QuestionSource interface {
	Questions(ctx context.Context, subjectID, lessonID string) ([]domain.Question, error)
}

// CatalogSource reads subjects, lessons, and questions straight from
// the document store. It is the uncached QuestionSource.
type CatalogSource struct {
	store DocumentStore
}

func NewCatalogSource(store DocumentStore) *CatalogSource {
	return &CatalogSource{store: store}
}

// Subjects lists the subject catalog. Labels are display-cased subject ids.
func (c *CatalogSource) Subjects(ctx context.Context) ([]domain.Subject, error) {
	children, err := c.store.ListChildren(ctx, "subjects")
	if err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	subjects := make([]domain.Subject, 0, len(children))
	for _, child := range children {
		subjects = append(subjects, domain.Subject{
			ID:    child.ID,
			Label: titleCase(child.ID),
		})
	}
	return subjects, nil
}

// Lessons lists a subject's lessons with the given user's completion
// flags folded in. A lesson counts as finished only when the per-user
// record exists and carries finished=true.
func (c *CatalogSource) Lessons(ctx context.Context, userID, subjectID string) ([]domain.Lesson, error) {
	if subjectID == "" {
		return nil, domain.ErrInvalidInput
	}
	children, err := c.store.ListChildren(ctx, SubjectLessonsCollection(subjectID))
	if err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}

	lessons := make([]domain.Lesson, 0, len(children))
	for _, child := range children {
		finished := false
		if userID != "" {
			record, err := c.store.Read(ctx, UserLessonPath(userID, subjectID, child.ID))
			if err != nil {
				return nil, fmt.Errorf("read completion: %w", err)
			}
			finished = record.Present && boolField(record.Fields, "finished")
		}
		lessons = append(lessons, domain.Lesson{ID: child.ID, Finished: finished})
	}
	return lessons, nil
}

// Questions loads the question set of one lesson in catalog order.
func (c *CatalogSource) Questions(ctx context.Context, subjectID, lessonID string) ([]domain.Question, error) {
	if subjectID == "" || lessonID == "" {
		return nil, domain.ErrInvalidInput
	}
	children, err := c.store.ListChildren(ctx, LessonQuestionsCollection(subjectID, lessonID))
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	questions := make([]domain.Question, 0, len(children))
	for _, child := range children {
		questions = append(questions, domain.Question{
			ID:      child.ID,
			Prompt:  stringField(child.Fields, "question"),
			Options: stringSliceField(child.Fields, "options"),
			Answer:  stringField(child.Fields, "answer"),
		})
	}
	return questions, nil
}

func titleCase(id string) string {
	if id == "" {
		return id
	}
	return strings.ToUpper(id[:1]) + id[1:]
}
