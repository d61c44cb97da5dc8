package redis

import (
	"context"
	"errors"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"thinktank-service/internal/app"
	"thinktank-service/internal/domain"
)

func newTestStore(t *testing.T) *DocStore {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	return NewDocStore(newClient(mr))
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}

func TestDocStoreMergeAndRead(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	record, err := store.Read(ctx, "users/u1")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if record.Present {
		t.Fatalf("expected absent record, got %+v", record)
	}

	err = store.WriteMerge(ctx, "users/u1", app.Fields{"name": "Alice", "levelsCompleted": 2})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if err := store.WriteMerge(ctx, "users/u1", app.Fields{"email": "alice@example.com"}); err != nil {
		t.Fatalf("merge: %v", err)
	}

	record, err = store.Read(ctx, "users/u1")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !record.Present {
		t.Fatalf("expected present record")
	}
	// Numbers round-trip through JSON as float64.
	if record.Fields["name"] != "Alice" || record.Fields["email"] != "alice@example.com" || record.Fields["levelsCompleted"] != float64(2) {
		t.Fatalf("unexpected fields: %+v", record.Fields)
	}

	exists, err := store.Exists(ctx, "users/u1")
	if err != nil || !exists {
		t.Fatalf("expected document to exist, got %v %v", exists, err)
	}
}

func TestDocStoreOverwriteRequiresDocument(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	err := store.WriteOverwrite(ctx, "users/u1", app.Fields{"levelsCompleted": 1})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	_ = store.WriteMerge(ctx, "users/u1", app.Fields{"name": "Alice"})
	if err := store.WriteOverwrite(ctx, "users/u1", app.Fields{"levelsCompleted": 3}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	record, _ := store.Read(ctx, "users/u1")
	if record.Fields["levelsCompleted"] != float64(3) || record.Fields["name"] != "Alice" {
		t.Fatalf("unexpected fields after overwrite: %+v", record.Fields)
	}
}

func TestDocStoreListChildrenKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for _, id := range []string{"c", "a", "b"} {
		if err := store.WriteMerge(ctx, "subjects/"+id, app.Fields{"name": id}); err != nil {
			t.Fatalf("merge: %v", err)
		}
	}
	// Re-merging must not move the document.
	_ = store.WriteMerge(ctx, "subjects/c", app.Fields{"name": "c2"})

	children, err := store.ListChildren(ctx, "subjects")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(children) != 3 {
		t.Fatalf("expected 3 children, got %d", len(children))
	}
	for i, want := range []string{"c", "a", "b"} {
		if children[i].ID != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, children[i].ID)
		}
	}
	if children[0].Fields["name"] != "c2" {
		t.Fatalf("expected merged fields in listing, got %+v", children[0].Fields)
	}
}

func TestDocStoreNestedPaths(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	path := app.UserLessonPath("u1", "math", "lesson1")
	if err := store.WriteMerge(ctx, path, app.Fields{"finished": true}); err != nil {
		t.Fatalf("merge: %v", err)
	}

	children, err := store.ListChildren(ctx, "users/u1/subjects/math/lessons")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(children) != 1 || children[0].ID != "lesson1" || children[0].Fields["finished"] != true {
		t.Fatalf("unexpected children: %+v", children)
	}
}
