package app

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"thinktank-service/internal/domain"
)

const pointsPerQuestion = 10

// QuizPrompt is a question as shown to the player: the correct answer
// stays server-side.
type QuizPrompt struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"question"`
	Options []string `json:"options"`
}

// QuizRound is the client view of a started quiz session.
type QuizRound struct {
	SessionID       string       `json:"sessionId"`
	SubjectID       string       `json:"subject"`
	LessonID        string       `json:"lesson"`
	Questions       []QuizPrompt `json:"questions"`
	QuestionSeconds int          `json:"questionSeconds"`
}

// QuizService runs single-player quiz rounds over a lesson's question
// set. Question and option order are shuffled per round and never
// persisted. A perfect score is the sole trigger for marking the
// lesson complete.
type QuizService struct {
	questions    QuestionSource
	progress     *ProgressService
	questionTime time.Duration
	now          func() time.Time

	mu     sync.Mutex
	rnd    *rand.Rand
	rounds map[string]*quizRound
}

type quizRound struct {
	userID    string
	subjectID string
	lessonID  string
	questions []domain.Question
	index     int
	score     int
	deadline  time.Time
}

func NewQuizService(questions QuestionSource, progress *ProgressService, questionTime time.Duration) *QuizService {
	return NewQuizServiceWithClock(questions, progress, questionTime, time.Now, time.Now().UnixNano())
}

// NewQuizServiceWithClock pins the clock and shuffle seed for tests.
func NewQuizServiceWithClock(questions QuestionSource, progress *ProgressService, questionTime time.Duration, now func() time.Time, seed int64) *QuizService {
	if questionTime <= 0 {
		questionTime = 30 * time.Second
	}
	return &QuizService{
		questions:    questions,
		progress:     progress,
		questionTime: questionTime,
		now:          now,
		rnd:          rand.New(rand.NewSource(seed)),
		rounds:       make(map[string]*quizRound),
	}
}

// Start loads and shuffles the lesson's questions and opens a round.
func (s *QuizService) Start(ctx context.Context, userID, subjectID, lessonID string) (QuizRound, error) {
	if userID == "" || subjectID == "" || lessonID == "" {
		return QuizRound{}, domain.ErrInvalidInput
	}

	loaded, err := s.questions.Questions(ctx, subjectID, lessonID)
	if err != nil {
		return QuizRound{}, err
	}
	if len(loaded) == 0 {
		return QuizRound{}, domain.ErrNoQuestions
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	shuffled := make([]domain.Question, len(loaded))
	copy(shuffled, loaded)
	s.rnd.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	for i := range shuffled {
		options := append([]string(nil), shuffled[i].Options...)
		s.rnd.Shuffle(len(options), func(a, b int) {
			options[a], options[b] = options[b], options[a]
		})
		shuffled[i].Options = options
	}

	sessionID := uuid.NewString()
	s.rounds[sessionID] = &quizRound{
		userID:    userID,
		subjectID: subjectID,
		lessonID:  lessonID,
		questions: shuffled,
		deadline:  s.now().Add(s.questionTime),
	}

	prompts := make([]QuizPrompt, 0, len(shuffled))
	for _, q := range shuffled {
		prompts = append(prompts, QuizPrompt{ID: q.ID, Prompt: q.Prompt, Options: q.Options})
	}
	return QuizRound{
		SessionID:       sessionID,
		SubjectID:       subjectID,
		LessonID:        lessonID,
		Questions:       prompts,
		QuestionSeconds: int(s.questionTime / time.Second),
	}, nil
}

// Answer scores the round's current question. An answer after the
// per-question deadline scores zero, same as a wrong option.
func (s *QuizService) Answer(sessionID, questionID, option string) (domain.AnswerResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	round, ok := s.rounds[sessionID]
	if !ok {
		return domain.AnswerResult{}, domain.ErrSessionNotFound
	}
	if round.index >= len(round.questions) {
		return domain.AnswerResult{}, domain.ErrSessionFinished
	}

	current := round.questions[round.index]
	if questionID != current.ID {
		return domain.AnswerResult{}, domain.ErrQuestionNotFound
	}

	correct := option == current.Answer && !s.now().After(round.deadline)
	awarded := 0
	if correct {
		awarded = pointsPerQuestion
		round.score += awarded
	}
	round.index++
	round.deadline = s.now().Add(s.questionTime)

	return domain.AnswerResult{
		QuestionID: questionID,
		Correct:    correct,
		Awarded:    awarded,
		TotalScore: round.score,
	}, nil
}

// Finish closes the round. On a perfect score it marks the lesson
// complete through the progress service and reports the refreshed
// total; anything less leaves completion state untouched.
func (s *QuizService) Finish(ctx context.Context, sessionID string) (domain.QuizSummary, error) {
	s.mu.Lock()
	round, ok := s.rounds[sessionID]
	if ok {
		delete(s.rounds, sessionID)
	}
	s.mu.Unlock()

	if !ok {
		return domain.QuizSummary{}, domain.ErrSessionNotFound
	}

	maxScore := len(round.questions) * pointsPerQuestion
	summary := domain.QuizSummary{
		Score:    round.score,
		MaxScore: maxScore,
		Perfect:  maxScore > 0 && round.score == maxScore,
	}
	if !summary.Perfect {
		return summary, nil
	}

	total, err := s.progress.MarkLessonComplete(ctx, round.userID, round.subjectID, round.lessonID)
	if err != nil {
		return domain.QuizSummary{}, err
	}
	summary.LessonCompleted = true
	summary.LevelsCompleted = total
	return summary, nil
}
