package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"thinktank-service/internal/app"
	"thinktank-service/internal/domain"
	"thinktank-service/internal/infra/memory"
)

func TestUpsertCreatesThenUpdates(t *testing.T) {
	ctx := context.Background()
	store := memory.NewDocStore()
	users := app.NewUserServiceWithClock(store, func() time.Time {
		return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	})

	created, err := users.Upsert(ctx, "u1", "Alice", "alice@example.com", 0)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if !created {
		t.Fatalf("expected first upsert to create")
	}

	created, err = users.Upsert(ctx, "u1", "Alice Smith", "alice@example.com", 0)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if created {
		t.Fatalf("expected second upsert to update in place")
	}

	user, err := users.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if user.Name != "Alice Smith" || user.Email != "alice@example.com" {
		t.Fatalf("expected refreshed profile, got %+v", user)
	}
}

func TestUpsertOnlyRaisesCompletedCount(t *testing.T) {
	ctx := context.Background()
	store := memory.NewDocStore()
	users := app.NewUserService(store)

	if _, err := users.Upsert(ctx, "u1", "Alice", "alice@example.com", 5); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	// A stale client reporting a lower count must not clobber the store.
	if _, err := users.Upsert(ctx, "u1", "Alice", "alice@example.com", 2); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	user, _ := users.Get(ctx, "u1")
	if user.LevelsCompleted != 5 {
		t.Fatalf("expected count to hold at 5, got %d", user.LevelsCompleted)
	}

	if _, err := users.Upsert(ctx, "u1", "Alice", "alice@example.com", 7); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	user, _ = users.Get(ctx, "u1")
	if user.LevelsCompleted != 7 {
		t.Fatalf("expected count raised to 7, got %d", user.LevelsCompleted)
	}
}

func TestGetMissingUser(t *testing.T) {
	users := app.NewUserService(memory.NewDocStore())
	if _, err := users.Get(context.Background(), "nobody"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := users.Get(context.Background(), ""); err != domain.ErrInvalidInput {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestListExcludesRequester(t *testing.T) {
	ctx := context.Background()
	users := app.NewUserService(memory.NewDocStore())

	for _, u := range [][2]string{{"u1", "Alice"}, {"u2", "Bob"}, {"u3", "Cara"}} {
		if _, err := users.Upsert(ctx, u[0], u[1], u[0]+"@example.com", 0); err != nil {
			t.Fatalf("upsert %s: %v", u[0], err)
		}
	}

	all, err := users.List(ctx, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 || all[0].ID != "u1" || all[2].ID != "u3" {
		t.Fatalf("expected all users in creation order, got %+v", all)
	}

	contacts, err := users.List(ctx, "u2")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(contacts) != 2 {
		t.Fatalf("expected 2 contacts, got %+v", contacts)
	}
	for _, c := range contacts {
		if c.ID == "u2" {
			t.Fatalf("expected requester hidden, got %+v", contacts)
		}
	}
}

func TestSetCompletedCount(t *testing.T) {
	ctx := context.Background()
	users := app.NewUserService(memory.NewDocStore())

	if err := users.SetCompletedCount(ctx, "ghost", 3); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for missing profile, got %v", err)
	}

	if _, err := users.Upsert(ctx, "u1", "Alice", "alice@example.com", 9); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := users.SetCompletedCount(ctx, "u1", 3); err != nil {
		t.Fatalf("set count: %v", err)
	}
	user, _ := users.Get(ctx, "u1")
	if user.LevelsCompleted != 3 {
		t.Fatalf("expected overwrite to 3, got %d", user.LevelsCompleted)
	}
}
