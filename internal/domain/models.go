package domain

import "time"

// User is the profile document stored at users/{userId}.
type User struct {
	ID              string    `json:"userId"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	LevelsCompleted int       `json:"levelsCompleted"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Subject is a top-level topic grouping lessons (e.g. "math").
type Subject struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Lesson is a gated unit of quiz questions within a subject. Finished
// reflects the requesting user's completion record, not a property of
// the catalog entry itself.
type Lesson struct {
	ID       string `json:"id"`
	Finished bool   `json:"finished"`
}

// Completion is the per-user lesson record stored at
// users/{userId}/subjects/{subjectId}/lessons/{lessonId}. Absence of
// the record means the lesson is not completed.
type Completion struct {
	Finished    bool      `json:"finished"`
	CompletedAt time.Time `json:"completedAt"`
}

// Question is a catalog entry under a lesson. Options keep their
// stored order; shuffling happens per quiz round and is never
// written back.
type Question struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"question"`
	Options []string `json:"options"`
	Answer  string   `json:"answer"`
}

// Medal is awarded to the top three leaderboard ranks.
type Medal string

const (
	MedalGold   Medal = "gold"
	MedalSilver Medal = "silver"
	MedalBronze Medal = "bronze"
)

// MedalForRank maps a 1-based rank to its medal; ranks past bronze get none.
func MedalForRank(rank int) Medal {
	switch rank {
	case 1:
		return MedalGold
	case 2:
		return MedalSilver
	case 3:
		return MedalBronze
	default:
		return ""
	}
}

// LeaderboardEntry is a derived, never-persisted ranked view of a user.
type LeaderboardEntry struct {
	UserID          string `json:"userId"`
	Name            string `json:"name"`
	LevelsCompleted int    `json:"levelsCompleted"`
	Rank            int    `json:"rank"`
	Medal           Medal  `json:"medal,omitempty"`
}

// Leaderboard is the full ranked snapshot produced by one aggregation run.
type Leaderboard struct {
	Entries     []LeaderboardEntry `json:"entries"`
	GeneratedAt time.Time          `json:"generatedAt"`
}

// ChatMessage is one element of a chat document's messages array.
type ChatMessage struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
	ReadStatus bool      `json:"readStatus"`
}

// AnswerResult summarizes scoring one quiz question.
type AnswerResult struct {
	QuestionID string `json:"questionId"`
	Correct    bool   `json:"correct"`
	Awarded    int    `json:"awarded"`
	TotalScore int    `json:"totalScore"`
}

// QuizSummary reports a finished quiz round. LessonCompleted is true
// only on a perfect score, which is the sole trigger for marking the
// lesson complete.
type QuizSummary struct {
	Score           int  `json:"score"`
	MaxScore        int  `json:"maxScore"`
	Perfect         bool `json:"perfect"`
	LessonCompleted bool `json:"lessonCompleted"`
	LevelsCompleted int  `json:"levelsCompleted"`
}
