package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"thinktank-service/internal/app"
	"thinktank-service/internal/domain"
)

// QuestionCache caches lesson question sets in Redis (hash per lesson)
// and falls back to the underlying source on cache miss.
// Questions are stored as: HSET questions:{subject}:{lesson} {questionID} {json}
type QuestionCache struct {
	client *redis.Client
	source app.QuestionSource
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewQuestionCache(client *redis.Client, source app.QuestionSource, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		client: client,
		source: source,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuestionCache) Questions(ctx context.Context, subjectID, lessonID string) ([]domain.Question, error) {
	key := c.key(subjectID, lessonID)

	cached, err := c.client.HGetAll(ctx, key).Result()
	if err == nil && len(cached) > 0 {
		return decodeQuestions(cached), nil
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		cached, err := c.client.HGetAll(ctx, key).Result()
		if err == nil && len(cached) > 0 {
			return decodeQuestions(cached), nil
		}

		questions, err := c.source.Questions(ctx, subjectID, lessonID)
		if err != nil {
			return nil, err
		}

		ttl := c.ttlWithJitter()
		pipe := c.client.Pipeline()
		for i, q := range questions {
			data, err := json.Marshal(cachedQuestion{Seq: i, Question: q})
			if err != nil {
				continue
			}
			pipe.HSet(ctx, key, q.ID, string(data))
		}
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		_, _ = pipe.Exec(ctx)

		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (c *QuestionCache) key(subjectID, lessonID string) string {
	return "questions:" + subjectID + ":" + lessonID
}

// cachedQuestion carries the catalog position alongside the question,
// since HGetAll returns hash fields in arbitrary order.
type cachedQuestion struct {
	Seq int `json:"seq"`
	domain.Question
}

func decodeQuestions(cached map[string]string) []domain.Question {
	entries := make([]cachedQuestion, 0, len(cached))
	for id, raw := range cached {
		var entry cachedQuestion
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			continue
		}
		entry.Question.ID = id
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Seq < entries[j].Seq })

	questions := make([]domain.Question, 0, len(entries))
	for _, entry := range entries {
		questions = append(questions, entry.Question)
	}
	return questions
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
