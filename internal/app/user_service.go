package app

import (
	"context"
	"fmt"
	"time"

	"thinktank-service/internal/domain"
)

// UserService manages the users/{userId} profile documents created on
// first sign-in. Identity itself comes from the external auth
// provider; this service only mirrors the profile into the store.
type UserService struct {
	store DocumentStore
	now   func() time.Time
}

func NewUserService(store DocumentStore) *UserService {
	return NewUserServiceWithClock(store, time.Now)
}

// NewUserServiceWithClock allows deterministic timestamps in tests.
func NewUserServiceWithClock(store DocumentStore, now func() time.Time) *UserService {
	return &UserService{store: store, now: now}
}

// Upsert creates the profile on first sign-in, otherwise refreshes
// name and email. levelsCompleted is only raised, never lowered: a
// stale value from a client can't clobber a recount. Reports whether
// the document was created.
func (s *UserService) Upsert(ctx context.Context, userID, name, email string, levelsCompleted int) (bool, error) {
	if userID == "" {
		return false, domain.ErrInvalidInput
	}

	record, err := s.store.Read(ctx, UserPath(userID))
	if err != nil {
		return false, fmt.Errorf("read user: %w", err)
	}
	now := s.now().UTC()

	if record.Present {
		fields := Fields{
			"name":      name,
			"email":     email,
			"updatedAt": now,
		}
		if levelsCompleted > intField(record.Fields, "levelsCompleted") {
			fields["levelsCompleted"] = levelsCompleted
		}
		if err := s.store.WriteOverwrite(ctx, UserPath(userID), fields); err != nil {
			return false, fmt.Errorf("update user: %w", err)
		}
		return false, nil
	}

	err = s.store.WriteMerge(ctx, UserPath(userID), Fields{
		"name":            name,
		"email":           email,
		"levelsCompleted": levelsCompleted,
		"createdAt":       now,
		"updatedAt":       now,
	})
	if err != nil {
		return false, fmt.Errorf("create user: %w", err)
	}
	return true, nil
}

// Get reads one profile.
func (s *UserService) Get(ctx context.Context, userID string) (domain.User, error) {
	if userID == "" {
		return domain.User{}, domain.ErrInvalidInput
	}
	record, err := s.store.Read(ctx, UserPath(userID))
	if err != nil {
		return domain.User{}, fmt.Errorf("read user: %w", err)
	}
	if !record.Present {
		return domain.User{}, domain.ErrNotFound
	}
	return decodeUser(userID, record.Fields), nil
}

// List returns every profile in enumeration order, optionally hiding
// the requesting user (the chat contact list).
func (s *UserService) List(ctx context.Context, excludeUserID string) ([]domain.User, error) {
	children, err := s.store.ListChildren(ctx, "users")
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users := make([]domain.User, 0, len(children))
	for _, child := range children {
		if child.ID == excludeUserID {
			continue
		}
		users = append(users, decodeUser(child.ID, child.Fields))
	}
	return users, nil
}

// SetCompletedCount overwrites the persisted completed-lesson count.
func (s *UserService) SetCompletedCount(ctx context.Context, userID string, count int) error {
	if userID == "" {
		return domain.ErrInvalidInput
	}
	err := s.store.WriteOverwrite(ctx, UserPath(userID), Fields{
		"levelsCompleted": count,
		"updatedAt":       s.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("set completed count: %w", err)
	}
	return nil
}

func decodeUser(id string, fields Fields) domain.User {
	return domain.User{
		ID:              id,
		Name:            stringField(fields, "name"),
		Email:           stringField(fields, "email"),
		LevelsCompleted: intField(fields, "levelsCompleted"),
		CreatedAt:       timeField(fields, "createdAt"),
		UpdatedAt:       timeField(fields, "updatedAt"),
	}
}
