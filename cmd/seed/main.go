package main

import (
	"context"
	"encoding/json"
	"log"

	"twinforge/backend/internal/auth"
	"twinforge/backend/internal/backstory"
	"twinforge/backend/internal/config"
	"twinforge/backend/internal/db"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer pool.Close()

	if err := db.RunMigrations(ctx, pool, cfg.MigrationsDir); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	missions := []struct {
		Code        string
		Title       string
		Description string
		Points      int
	}{
		{Code: "first-twin", Title: "Create your first twin", Description: "Create a twin and give it a name.", Points: 10},
		{Code: "first-export", Title: "Feed your twin", Description: "Upload a social export to any twin.", Points: 25},
		{Code: "first-backstory", Title: "Bring it to life", Description: "Generate a backstory for one of your twins.", Points: 50},
		{Code: "first-chat", Title: "Say hello", Description: "Have a chat exchange with your twin.", Points: 15},
		{Code: "first-merge", Title: "Mad science", Description: "Merge two twins into a hybrid persona.", Points: 100},
		{Code: "first-agent-post", Title: "Let it loose", Description: "Let your twin publish an autonomous post.", Points: 75},
	}

	for _, mission := range missions {
		if _, err := pool.Exec(ctx, `
			INSERT INTO missions(code, title, description, points)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (code) DO UPDATE
			SET title=EXCLUDED.title, description=EXCLUDED.description, points=EXCLUDED.points
		`, mission.Code, mission.Title, mission.Description, mission.Points); err != nil {
			log.Fatalf("seed mission %s failed: %v", mission.Code, err)
		}
	}

	seedDemoTwin(ctx, pool)

	log.Printf("seed completed: %d missions", len(missions))
}

// seedDemoTwin creates a demo account with one twin and a small Instagram
// source, so a fresh environment has something to synthesize against.
func seedDemoTwin(ctx context.Context, pool *pgxpool.Pool) {
	hash, err := auth.HashPassword("demo-password")
	if err != nil {
		log.Fatalf("seed demo user failed: %v", err)
	}

	var userID string
	err = pool.QueryRow(ctx, `
		INSERT INTO users(email, password_hash, display_name)
		VALUES ('demo@twinforge.dev', $1, 'Demo')
		ON CONFLICT (email) DO UPDATE SET display_name=EXCLUDED.display_name
		RETURNING id::text
	`, hash).Scan(&userID)
	if err != nil {
		log.Fatalf("seed demo user failed: %v", err)
	}

	var twinID string
	err = pool.QueryRow(ctx, `
		SELECT id::text FROM twins WHERE user_id = $1 AND name = 'Demo Twin'
	`, userID).Scan(&twinID)
	if err != nil {
		err = pool.QueryRow(ctx, `
			INSERT INTO twins(user_id, name) VALUES ($1, 'Demo Twin')
			RETURNING id::text
		`, userID).Scan(&twinID)
		if err != nil {
			log.Fatalf("seed demo twin failed: %v", err)
		}
	}

	var sources int
	if err := pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM twin_sources WHERE twin_id = $1
	`, twinID).Scan(&sources); err != nil {
		log.Fatalf("seed demo source failed: %v", err)
	}
	if sources > 0 {
		return
	}

	messages, _ := json.Marshal([]string{
		"long run by the river this morning",
		"long run by the river this morning",
		"testing a new pour-over ratio, 1:16 wins",
		"finally fixed the squeaky pedal on the commuter bike",
	})
	if _, err := pool.Exec(ctx, `
		INSERT INTO twin_sources(twin_id, platform, title, messages, top_n, min_distance, batch_id)
		VALUES ($1, 'instagram', 'Instagram posts', $2::jsonb, $3, $4, 'seed')
	`, twinID, messages, backstory.PostsBudget.TopN, backstory.PostsBudget.MinDistance); err != nil {
		log.Fatalf("seed demo source failed: %v", err)
	}
}
