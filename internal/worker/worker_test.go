package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"twinforge/backend/internal/ai"
	"twinforge/backend/internal/auth"
	"twinforge/backend/internal/config"
	"twinforge/backend/internal/db"

	"github.com/jackc/pgx/v5/pgxpool"
)

func TestJobBackoff(t *testing.T) {
	base := 30 * time.Second
	max := 10 * time.Minute

	cases := []struct {
		attempts int
		want     time.Duration
	}{
		{attempts: 0, want: 30 * time.Second},
		{attempts: 1, want: 30 * time.Second},
		{attempts: 2, want: 60 * time.Second},
		{attempts: 3, want: 120 * time.Second},
		{attempts: 4, want: 240 * time.Second},
		{attempts: 5, want: 480 * time.Second},
		{attempts: 6, want: max},
		{attempts: 30, want: max},
	}
	for _, tc := range cases {
		if got := jobBackoff(base, max, tc.attempts); got != tc.want {
			t.Fatalf("jobBackoff(attempts=%d) = %v, want %v", tc.attempts, got, tc.want)
		}
	}

	if got := jobBackoff(0, 0, 1); got != 30*time.Second {
		t.Fatalf("zero base should fall back to 30s, got %v", got)
	}
}

func TestHandleRejectsUnknownJobType(t *testing.T) {
	w := &Worker{}
	err := w.handle(context.Background(), job{jobType: "reticulate_splines"})
	var permanent permanentError
	if !errors.As(err, &permanent) {
		t.Fatalf("unknown job type should be a permanent failure, got %v", err)
	}
}

func TestSynthesizeBackstoryJob(t *testing.T) {
	databaseURL := os.Getenv("TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, databaseURL)
	if err != nil {
		t.Fatalf("db connect failed: %v", err)
	}
	defer pool.Close()

	cfg := config.Load()
	cfg.DatabaseURL = databaseURL
	cfg.MigrationsDir = migrationDirForTests(t)

	if err := db.RunMigrations(ctx, pool, cfg.MigrationsDir); err != nil {
		t.Fatalf("migrations failed: %v", err)
	}

	unique := time.Now().UnixNano()
	twinID := insertTestTwin(t, ctx, pool, unique)

	messages, _ := json.Marshal([]string{
		"morning trail run before work",
		"morning trail run before work",
		"finally finished the sourdough starter",
	})
	if _, err := pool.Exec(ctx, `
		INSERT INTO twin_sources(twin_id, platform, title, messages, top_n, min_distance, batch_id)
		VALUES ($1, 'instagram', 'Instagram posts', $2::jsonb, 10, 0.7, $3)
	`, twinID, messages, fmt.Sprintf("batch-%d", unique)); err != nil {
		t.Fatalf("insert twin source failed: %v", err)
	}

	if err := EnqueueBackstorySynthesis(ctx, pool, twinID, fmt.Sprintf("batch-%d", unique)); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	worker := New(cfg, pool, ai.NewMockClient())
	synthesized := false
	for i := 0; i < 20; i++ {
		if err := worker.processOne(ctx); err != nil {
			t.Fatalf("process job failed: %v", err)
		}

		var story string
		var version int
		if err := pool.QueryRow(ctx, `
			SELECT backstory, backstory_version FROM twins WHERE id = $1
		`, twinID).Scan(&story, &version); err != nil {
			t.Fatalf("load twin failed: %v", err)
		}
		if story != "" {
			if version != 1 {
				t.Fatalf("expected backstory_version 1 after synthesis, got %d", version)
			}
			synthesized = true
			break
		}
	}
	if !synthesized {
		t.Fatalf("backstory was not synthesized")
	}

	var status string
	err = pool.QueryRow(ctx, `
		SELECT status FROM jobs
		WHERE twin_id = $1 AND job_type = 'synthesize_backstory'
		ORDER BY id DESC LIMIT 1
	`, twinID).Scan(&status)
	if err != nil {
		t.Fatalf("load job status failed: %v", err)
	}
	if status != "DONE" {
		t.Fatalf("expected job DONE, got %s", status)
	}
}

func TestAgentPostJobWithoutBackstoryGoesDead(t *testing.T) {
	databaseURL := os.Getenv("TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, databaseURL)
	if err != nil {
		t.Fatalf("db connect failed: %v", err)
	}
	defer pool.Close()

	cfg := config.Load()
	cfg.DatabaseURL = databaseURL
	cfg.MigrationsDir = migrationDirForTests(t)

	if err := db.RunMigrations(ctx, pool, cfg.MigrationsDir); err != nil {
		t.Fatalf("migrations failed: %v", err)
	}

	unique := time.Now().UnixNano()
	twinID := insertTestTwin(t, ctx, pool, unique)

	traceID, err := EnqueueAgentPost(ctx, pool, twinID, "rainy mornings")
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	worker := New(cfg, pool, ai.NewMockClient())
	dead := false
	for i := 0; i < 20; i++ {
		if err := worker.processOne(ctx); err != nil {
			t.Fatalf("process job failed: %v", err)
		}

		var status, lastError string
		if err := pool.QueryRow(ctx, `
			SELECT status, COALESCE(last_error, '') FROM jobs WHERE trace_id = $1
		`, traceID).Scan(&status, &lastError); err != nil {
			t.Fatalf("load job failed: %v", err)
		}
		if status == "DEAD" {
			if lastError == "" {
				t.Fatalf("dead job should record last_error")
			}
			dead = true
			break
		}
	}
	if !dead {
		t.Fatalf("job for twin without backstory should go DEAD without retries")
	}
}

func insertTestTwin(t *testing.T, ctx context.Context, pool *pgxpool.Pool, unique int64) string {
	t.Helper()

	hash, err := auth.HashPassword("password123")
	if err != nil {
		t.Fatalf("hash password failed: %v", err)
	}

	var userID string
	err = pool.QueryRow(ctx, `
		INSERT INTO users(email, password_hash, display_name)
		VALUES ($1, $2, $3)
		RETURNING id::text
	`, fmt.Sprintf("worker-%d@example.com", unique), hash, "Worker Test").Scan(&userID)
	if err != nil {
		t.Fatalf("insert user failed: %v", err)
	}

	var twinID string
	err = pool.QueryRow(ctx, `
		INSERT INTO twins(user_id, name, origin)
		VALUES ($1, $2, 'source')
		RETURNING id::text
	`, userID, fmt.Sprintf("twin-%d", unique)).Scan(&twinID)
	if err != nil {
		t.Fatalf("insert twin failed: %v", err)
	}
	return twinID
}

func migrationDirForTests(t *testing.T) string {
	t.Helper()

	candidates := []string{
		filepath.Clean(filepath.Join("..", "..", "migrations")),
		filepath.Clean(filepath.Join("migrations")),
	}
	for _, candidate := range candidates {
		if stat, err := os.Stat(candidate); err == nil && stat.IsDir() {
			return candidate
		}
	}
	t.Fatalf("could not locate migrations directory")
	return ""
}
