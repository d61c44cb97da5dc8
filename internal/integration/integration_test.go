package integration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"thinktank-service/internal/app"
	"thinktank-service/internal/domain"
	pgstore "thinktank-service/internal/infra/postgres"
	pgmigrations "thinktank-service/internal/infra/postgres/migrations"
	infraredis "thinktank-service/internal/infra/redis"
)

func TestCompletionAndLeaderboardEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	migrateDB(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	store := pgstore.NewDocStore(pool)
	seedCatalog(t, ctx, store)

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	users := app.NewUserService(store)
	progress := app.NewProgressService(store)
	catalog := app.NewCatalogSource(store)
	questions := infraredis.NewQuestionCache(redisClient, catalog, 5*time.Minute)
	quiz := app.NewQuizService(questions, progress, 30*time.Second)

	for _, u := range [][2]string{{"u1", "Alice"}, {"u2", "Bob"}} {
		if _, err := users.Upsert(ctx, u[0], u[1], u[0]+"@example.com", 0); err != nil {
			t.Fatalf("upsert %s: %v", u[0], err)
		}
	}

	total, err := progress.MarkLessonComplete(ctx, "u1", "math", "lesson1")
	if err != nil {
		t.Fatalf("mark: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected count 1, got %d", total)
	}

	// A perfect quiz round completes the second lesson through the
	// Redis-cached question path.
	round, err := quiz.Start(ctx, "u1", "math", "lesson2")
	if err != nil {
		t.Fatalf("start quiz: %v", err)
	}
	for _, q := range round.Questions {
		if _, err := quiz.Answer(round.SessionID, q.ID, "right"); err != nil {
			t.Fatalf("answer: %v", err)
		}
	}
	summary, err := quiz.Finish(ctx, round.SessionID)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if !summary.Perfect || !summary.LessonCompleted || summary.LevelsCompleted != 2 {
		t.Fatalf("expected perfect round to complete lesson2, got %+v", summary)
	}

	board, err := progress.Leaderboard(ctx, "")
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(board.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %+v", board.Entries)
	}
	if board.Entries[0].UserID != "u1" || board.Entries[0].LevelsCompleted != 2 || board.Entries[0].Medal != domain.MedalGold {
		t.Fatalf("expected u1 leading with 2, got %+v", board.Entries[0])
	}
	if board.Entries[1].UserID != "u2" || board.Entries[1].Rank != 2 || board.Entries[1].Medal != domain.MedalSilver {
		t.Fatalf("expected u2 second, got %+v", board.Entries[1])
	}
}

func seedCatalog(t *testing.T, ctx context.Context, store app.DocumentStore) {
	t.Helper()
	if err := store.WriteMerge(ctx, "subjects/math", app.Fields{"name": "math"}); err != nil {
		t.Fatalf("seed subject: %v", err)
	}
	for _, lesson := range []string{"lesson1", "lesson2"} {
		err := store.WriteMerge(ctx, app.SubjectLessonsCollection("math")+"/"+lesson, app.Fields{"name": lesson})
		if err != nil {
			t.Fatalf("seed lesson: %v", err)
		}
	}
	err := store.WriteMerge(ctx, app.LessonQuestionsCollection("math", "lesson2")+"/q1", app.Fields{
		"question": "Pick the right option",
		"options":  []string{"right", "wrong"},
		"answer":   "right",
	})
	if err != nil {
		t.Fatalf("seed question: %v", err)
	}
}

func migrateDB(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "think", "POSTGRES_PASSWORD": "thinkpass", "POSTGRES_DB": "thinkdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://think:thinkpass@%s:%s/thinkdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
