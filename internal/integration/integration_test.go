package integration

import (
	"context"
	"database/sql"
	"encoding/json"
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

	"quizmaster/internal/app"
	"quizmaster/internal/domain"
	pgloader "quizmaster/internal/infra/postgres"
	pgmigrations "quizmaster/internal/infra/postgres/migrations"
	infraredis "quizmaster/internal/infra/redis"
)

func TestLibraryGameEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedQuiz(t, ctx, pgURL, "capitals", sampleQuiz())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}

	loader := pgloader.NewQuizLoader(pool)
	quizRepo := infraredis.NewQuizRepository(redisClient, loader, 5*time.Minute)
	rooms := infraredis.NewRoomStore(redisClient, 5*time.Minute)
	sessions := infraredis.NewSessionStore(redisClient, 5*time.Minute)
	service := app.NewRoomService(rooms, sessions, quizRepo)

	host, err := service.CreateRoomFromLibrary(ctx, "Alice", "capitals")
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	player, err := service.JoinRoom(ctx, host.RoomID, "Bob")
	if err != nil {
		t.Fatalf("join room: %v", err)
	}

	hostEngine, err := service.Engine(ctx, host.Token)
	if err != nil {
		t.Fatalf("host engine: %v", err)
	}
	hostEngine.SetSettleDelay(0)
	if err := hostEngine.Run(ctx); err != nil {
		t.Fatalf("run host engine: %v", err)
	}
	defer hostEngine.Close()

	playerEngine, err := service.Engine(ctx, player.Token)
	if err != nil {
		t.Fatalf("player engine: %v", err)
	}
	if err := playerEngine.Run(ctx); err != nil {
		t.Fatalf("run player engine: %v", err)
	}
	defer playerEngine.Close()

	if err := hostEngine.StartGame(ctx); err != nil {
		t.Fatalf("start game: %v", err)
	}

	question := waitEvent(t, playerEngine, app.EventQuestion)
	if question.Question == nil || question.Question.Index != 0 {
		t.Fatalf("unexpected question event: %+v", question)
	}
	waitEvent(t, hostEngine, app.EventQuestion)

	// The player answers correctly; option order was shuffled at creation.
	correct := -1
	for i, opt := range question.Question.Options {
		if opt == "4" {
			correct = i
		}
	}
	result, err := playerEngine.SubmitAnswer(ctx, correct)
	if err != nil {
		t.Fatalf("submit answer: %v", err)
	}
	if !result.Correct || result.Awarded < app.BasePoints {
		t.Fatalf("unexpected answer result: %+v", result)
	}

	// Both mark ready; the single question means the host finishes the game.
	if err := playerEngine.MarkReady(ctx); err != nil {
		t.Fatalf("player ready: %v", err)
	}
	if err := hostEngine.MarkReady(ctx); err != nil {
		t.Fatalf("host ready: %v", err)
	}
	waitEvent(t, playerEngine, app.EventFinished)
	waitEvent(t, hostEngine, app.EventFinished)

	room, err := rooms.GetRoom(ctx, host.RoomID)
	if err != nil {
		t.Fatalf("get room: %v", err)
	}
	if room.State != domain.StateFinished {
		t.Fatalf("expected finished room, got %s", room.State)
	}

	players, err := rooms.ListPlayers(ctx, host.RoomID)
	if err != nil {
		t.Fatalf("list players: %v", err)
	}
	scores := map[string]int{}
	for _, p := range players {
		scores[p.Name] = p.Score
	}
	if scores["Bob"] < app.BasePoints || scores["Alice"] != 0 {
		t.Fatalf("unexpected scores: %+v", scores)
	}
}

func waitEvent(t *testing.T, engine *app.Engine, want app.EventType) app.Event {
	t.Helper()
	deadline := time.After(15 * time.Second)
	for {
		select {
		case ev, ok := <-engine.Events():
			if !ok {
				t.Fatalf("events closed while waiting for %s", want)
			}
			if ev.Type == want {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
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
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
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

func seedQuiz(t *testing.T, ctx context.Context, dsn, id string, quiz domain.Quiz) {
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

	data, err := json.Marshal(quiz)
	if err != nil {
		t.Fatalf("marshal quiz: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO quizzes (id, data) VALUES (? , ?::jsonb) ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data`, id, string(data)); err != nil {
		t.Fatalf("insert quiz: %v", err)
	}
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		Title: "Arithmetic",
		Questions: []domain.Question{
			{
				Question: "What is 2 + 2?",
				Options:  []string{"3", "4", "5"},
				Correct:  1,
			},
		},
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
