package cli

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"thinktank-service/internal/app"
	"thinktank-service/internal/config"
	pgstore "thinktank-service/internal/infra/postgres"
	redisstore "thinktank-service/internal/infra/redis"
)

// NewSeedCmd loads a small sample catalog into the configured backend.
func NewSeedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed the sample subject/lesson catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), *configPath)
		},
	}
}

func runSeed(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	var store app.DocumentStore
	switch {
	case cfg.Postgres.URL != "":
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		store = pgstore.NewDocStore(pool)
	case cfg.Redis.Addr != "":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		store = redisstore.NewDocStore(client)
	default:
		return fmt.Errorf("seed needs a postgres url or redis addr configured")
	}

	if err := seedCatalog(ctx, store); err != nil {
		return err
	}
	log.Printf("sample catalog seeded")
	return nil
}

type seedQuestion struct {
	id      string
	prompt  string
	options []string
	answer  string
}

// seedCatalog writes a minimal catalog; the start command also uses it
// for the in-memory dev backend.
func seedCatalog(ctx context.Context, store app.DocumentStore) error {
	catalog := map[string]map[string][]seedQuestion{
		"math": {
			"lesson1": {
				{id: "q1", prompt: "What is 2 + 2?", options: []string{"3", "4", "5"}, answer: "4"},
				{id: "q2", prompt: "What is 9 - 3?", options: []string{"5", "6", "7"}, answer: "6"},
			},
			"lesson2": {
				{id: "q1", prompt: "What is 6 x 7?", options: []string{"42", "48", "36"}, answer: "42"},
			},
		},
		"science": {
			"lesson1": {
				{id: "q1", prompt: "Water boils at what temperature (C)?", options: []string{"90", "100", "110"}, answer: "100"},
			},
		},
	}

	for subjectID, lessons := range catalog {
		if err := store.WriteMerge(ctx, "subjects/"+subjectID, app.Fields{"name": subjectID}); err != nil {
			return fmt.Errorf("seed subject %s: %w", subjectID, err)
		}
		for lessonID, questions := range lessons {
			lessonPath := app.SubjectLessonsCollection(subjectID) + "/" + lessonID
			if err := store.WriteMerge(ctx, lessonPath, app.Fields{"name": lessonID}); err != nil {
				return fmt.Errorf("seed lesson %s/%s: %w", subjectID, lessonID, err)
			}
			for _, q := range questions {
				questionPath := app.LessonQuestionsCollection(subjectID, lessonID) + "/" + q.id
				err := store.WriteMerge(ctx, questionPath, app.Fields{
					"question": q.prompt,
					"options":  q.options,
					"answer":   q.answer,
				})
				if err != nil {
					return fmt.Errorf("seed question %s/%s/%s: %w", subjectID, lessonID, q.id, err)
				}
			}
		}
	}
	return nil
}
