package worker

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	jobTypeSynthesizeBackstory = "synthesize_backstory"
	jobTypeAgentPost           = "agent_post"
)

// Execer is satisfied by both pgxpool.Pool and pgx.Tx, so enqueueing can
// ride an existing transaction.
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// EnqueueBackstorySynthesis queues an async backstory regeneration for a
// twin, typically right after an export lands.
func EnqueueBackstorySynthesis(ctx context.Context, db Execer, twinID, batchID string) error {
	payload, err := json.Marshal(map[string]string{"batch_id": batchID})
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, `
		INSERT INTO jobs(job_type, twin_id, payload, trace_id)
		VALUES ($1, $2, $3::jsonb, $4)
	`, jobTypeSynthesizeBackstory, twinID, payload, uuid.NewString())
	return err
}

// EnqueueAgentPost queues one autonomous post and returns the trace id.
func EnqueueAgentPost(ctx context.Context, db Execer, twinID, topic string) (string, error) {
	payload, err := json.Marshal(map[string]string{"topic": topic})
	if err != nil {
		return "", err
	}
	traceID := uuid.NewString()
	_, err = db.Exec(ctx, `
		INSERT INTO jobs(job_type, twin_id, payload, trace_id)
		VALUES ($1, $2, $3::jsonb, $4)
	`, jobTypeAgentPost, twinID, payload, traceID)
	if err != nil {
		return "", err
	}
	return traceID, nil
}
