package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"thinktank-service/internal/domain"
)

// ProgressService owns lesson completion and leaderboard aggregation.
// The persisted levelsCompleted field is never trusted as a cache: both
// the single-user recount and the full aggregation rederive it by
// walking the subject/lesson catalog and reading per-user completion
// records. The walk is O(users x subjects x lessons) with no index,
// a known ceiling at this catalog size; batching reads would be fine,
// approximating counts would not.
type ProgressService struct {
	store DocumentStore
	now   func() time.Time
}

func NewProgressService(store DocumentStore) *ProgressService {
	return NewProgressServiceWithClock(store, time.Now)
}

// NewProgressServiceWithClock allows deterministic timestamps in tests.
func NewProgressServiceWithClock(store DocumentStore, now func() time.Time) *ProgressService {
	return &ProgressService{store: store, now: now}
}

// MarkLessonComplete durably marks one lesson finished for one user and
// refreshes that user's total. The mark-write is an idempotent merge;
// calling twice leaves the same logical state. If the mark-write fails
// the recount is not attempted.
func (s *ProgressService) MarkLessonComplete(ctx context.Context, userID, subjectID, lessonID string) (int, error) {
	if userID == "" || subjectID == "" || lessonID == "" {
		return 0, domain.ErrInvalidInput
	}

	err := s.store.WriteMerge(ctx, UserLessonPath(userID, subjectID, lessonID), Fields{
		"finished":    true,
		"completedAt": s.now().UTC(),
	})
	if err != nil {
		return 0, fmt.Errorf("mark lesson complete: %w", err)
	}

	return s.RecountUser(ctx, userID)
}

// RecountUser rederives the user's completed-lesson count from actual
// completion records and persists it. Completion records for lessons
// that are no longer in the catalog are not counted; the records
// themselves are left in place.
func (s *ProgressService) RecountUser(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, domain.ErrInvalidInput
	}

	total, err := s.countCompleted(ctx, userID)
	if err != nil {
		return 0, err
	}

	if err := s.store.WriteOverwrite(ctx, UserPath(userID), Fields{"levelsCompleted": total}); err != nil {
		return 0, fmt.Errorf("persist count for %s: %w", userID, err)
	}
	return total, nil
}

func (s *ProgressService) countCompleted(ctx context.Context, userID string) (int, error) {
	subjects, err := s.store.ListChildren(ctx, "subjects")
	if err != nil {
		return 0, fmt.Errorf("list subjects: %w", err)
	}

	total := 0
	for _, subject := range subjects {
		lessons, err := s.store.ListChildren(ctx, SubjectLessonsCollection(subject.ID))
		if err != nil {
			return 0, fmt.Errorf("list lessons for %s: %w", subject.ID, err)
		}
		for _, lesson := range lessons {
			record, err := s.store.Read(ctx, UserLessonPath(userID, subject.ID, lesson.ID))
			if err != nil {
				return 0, fmt.Errorf("read completion: %w", err)
			}
			// An absent record reads as not finished.
			if record.Present && boolField(record.Fields, "finished") {
				total++
			}
		}
	}
	return total, nil
}

// Leaderboard recomputes every user's completed-lesson count, persists
// the corrected counts, and returns the ranked snapshot. Counts sort
// descending; ties keep user enumeration order (stable sort, no
// secondary key). Ranks are dense and 1-based, so tied counts still
// get distinct ranks. Any store failure aborts the whole run; a
// partial leaderboard is never returned.
//
// excludeUserID is a view-level filter for call sites that hide the
// requesting user; the excluded user is dropped before ranking and
// still gets their count persisted.
func (s *ProgressService) Leaderboard(ctx context.Context, excludeUserID string) (domain.Leaderboard, error) {
	users, err := s.store.ListChildren(ctx, "users")
	if err != nil {
		return domain.Leaderboard{}, fmt.Errorf("list users: %w", err)
	}

	entries := make([]domain.LeaderboardEntry, 0, len(users))
	for _, user := range users {
		count, err := s.RecountUser(ctx, user.ID)
		if err != nil {
			return domain.Leaderboard{}, err
		}
		if user.ID == excludeUserID {
			continue
		}
		entries = append(entries, domain.LeaderboardEntry{
			UserID:          user.ID,
			Name:            stringField(user.Fields, "name"),
			LevelsCompleted: count,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].LevelsCompleted > entries[j].LevelsCompleted
	})

	for i := range entries {
		entries[i].Rank = i + 1
		entries[i].Medal = domain.MedalForRank(entries[i].Rank)
	}

	return domain.Leaderboard{Entries: entries, GeneratedAt: s.now().UTC()}, nil
}
