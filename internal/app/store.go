package app

import (
	"context"
	"time"
)

// Fields holds the named values of one document.
type Fields map[string]any

// Record is the tagged result of reading a document. Present
// distinguishes "record exists with finished=false" from "no record at
// all"; both count as not finished, but the distinction stays visible
// to callers.
type Record struct {
	Present bool
	Fields  Fields
}

// Child is one entry of a collection listing, in insertion order.
type Child struct {
	ID     string
	Fields Fields
}

// DocumentStore abstracts the hierarchical document database the app
// persists into (in-memory, Redis, or Postgres). Paths are
// slash-separated, alternating collection and document segments.
type DocumentStore interface {
	// Exists reports whether a document is present at path.
	Exists(ctx context.Context, path string) (bool, error)
	// Read returns the document at path, or an absent Record.
	Read(ctx context.Context, path string) (Record, error)
	// WriteMerge creates the document if absent, else shallow-merges fields into it.
	WriteMerge(ctx context.Context, path string, fields Fields) error
	// WriteOverwrite replaces the named fields on an existing document.
	// It fails with domain.ErrNotFound when the document is absent.
	WriteOverwrite(ctx context.Context, path string, fields Fields) error
	// ListChildren returns the documents of a collection in insertion order.
	ListChildren(ctx context.Context, collection string) ([]Child, error)
}

// Path builders for the collections the app uses.

func UserPath(userID string) string {
	return "users/" + userID
}

func UserLessonPath(userID, subjectID, lessonID string) string {
	return "users/" + userID + "/subjects/" + subjectID + "/lessons/" + lessonID
}

func SubjectLessonsCollection(subjectID string) string {
	return "subjects/" + subjectID + "/lessons"
}

func LessonQuestionsCollection(subjectID, lessonID string) string {
	return SubjectLessonsCollection(subjectID) + "/" + lessonID + "/questions"
}

func ChatPath(chatID string) string {
	return "chats/" + chatID
}

// Field accessors tolerant of the type drift between in-memory values
// and values round-tripped through JSON (numbers become float64,
// times become RFC 3339 strings).

func boolField(fields Fields, key string) bool {
	v, ok := fields[key].(bool)
	return ok && v
}

func stringField(fields Fields, key string) string {
	v, _ := fields[key].(string)
	return v
}

func intField(fields Fields, key string) int {
	switch v := fields[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func timeField(fields Fields, key string) time.Time {
	switch v := fields[key].(type) {
	case time.Time:
		return v
	case string:
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

func stringSliceField(fields Fields, key string) []string {
	switch v := fields[key].(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
