package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"twinforge/backend/internal/ai"
	"twinforge/backend/internal/ai/prompts"
	"twinforge/backend/internal/backstory"
	"twinforge/backend/internal/common"
	"twinforge/backend/internal/config"
	"twinforge/backend/internal/observability"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Worker struct {
	cfg     config.Config
	db      *pgxpool.Pool
	llm     ai.Client
	synth   *backstory.Synthesizer
	logger  *observability.Logger
	metrics *observability.WorkerMetrics
}

// permanentError marks a job failure that retrying cannot fix.
type permanentError struct {
	message string
}

func (e permanentError) Error() string {
	return e.message
}

type job struct {
	id       int64
	jobType  string
	twinID   string
	payload  []byte
	attempts int
	traceID  string
}

func New(cfg config.Config, db *pgxpool.Pool, llm ai.Client) *Worker {
	return &Worker{
		cfg:     cfg,
		db:      db,
		llm:     llm,
		synth:   backstory.New(llm),
		logger:  observability.NewLogger("worker"),
		metrics: observability.NewWorkerMetrics(),
	}
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.WorkerPollEvery)
	defer ticker.Stop()

	for {
		if err := w.processOne(ctx); err != nil {
			w.logger.Error("worker_process_error", observability.Fields{"error": err.Error()})
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// processOne claims at most one due job with SKIP LOCKED and runs it. A nil
// return with no work done is normal.
func (w *Worker) processOne(ctx context.Context) error {
	claimed, err := w.claimJob(ctx)
	if err != nil || claimed == nil {
		return err
	}

	started := time.Now()
	taskCtx, cancel := context.WithTimeout(ctx, w.cfg.WorkerTaskTimeout)
	defer cancel()

	err = w.handle(taskCtx, *claimed)
	if err != nil {
		status := w.markJobFailed(ctx, *claimed, err)
		w.metrics.ObserveJobProcessed(claimed.jobType, status, time.Since(started))
		w.logger.Error("job_failed", observability.Fields{
			"job_id":   claimed.id,
			"job_type": claimed.jobType,
			"trace_id": claimed.traceID,
			"status":   status,
			"error":    err.Error(),
		})
		return nil
	}

	if err := w.markJobDone(ctx, claimed.id); err != nil {
		return err
	}
	w.metrics.ObserveJobProcessed(claimed.jobType, "done", time.Since(started))
	w.logger.Info("job_done", observability.Fields{
		"job_id":   claimed.id,
		"job_type": claimed.jobType,
		"trace_id": claimed.traceID,
	})
	return nil
}

func (w *Worker) claimJob(ctx context.Context) (*job, error) {
	tx, err := w.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var claimed job
	err = tx.QueryRow(ctx, `
		SELECT id, job_type, twin_id::text, payload, attempts, trace_id
		FROM jobs
		WHERE status IN ('PENDING', 'FAILED')
		  AND attempts < $1
		  AND available_at <= NOW()
		ORDER BY created_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`, w.cfg.JobMaxAttempts).Scan(
		&claimed.id, &claimed.jobType, &claimed.twinID,
		&claimed.payload, &claimed.attempts, &claimed.traceID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE jobs
		SET status = 'PROCESSING', locked_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`, claimed.id); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &claimed, nil
}

func (w *Worker) handle(ctx context.Context, claimed job) error {
	switch claimed.jobType {
	case jobTypeSynthesizeBackstory:
		return w.synthesizeBackstory(ctx, claimed)
	case jobTypeAgentPost:
		return w.generateAgentPost(ctx, claimed)
	default:
		return permanentError{message: fmt.Sprintf("unsupported job type: %s", claimed.jobType)}
	}
}

func (w *Worker) synthesizeBackstory(ctx context.Context, claimed job) error {
	var version int
	err := w.db.QueryRow(ctx, `
		SELECT backstory_version FROM twins WHERE id = $1
	`, claimed.twinID).Scan(&version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return permanentError{message: "twin no longer exists"}
		}
		return err
	}

	groups, err := w.loadBudgetedGroups(ctx, claimed.twinID)
	if err != nil {
		return err
	}
	if len(groups) == 0 {
		return permanentError{message: "twin has no ingested sources"}
	}

	story, err := w.synth.SynthesizeBudgeted(ctx, groups)
	if err != nil {
		if errors.Is(err, ai.ErrEmptyResponse) {
			return permanentError{message: err.Error()}
		}
		return err
	}
	story = common.TruncateRunes(story, w.cfg.BackstoryMaxLen)

	tag, err := w.db.Exec(ctx, `
		UPDATE twins
		SET backstory = $1, backstory_version = backstory_version + 1, updated_at = NOW()
		WHERE id = $2 AND backstory_version = $3
	`, story, claimed.twinID, version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Someone regenerated while this job ran; their result stands.
		w.logger.Warn("backstory_version_conflict", observability.Fields{
			"twin_id":  claimed.twinID,
			"trace_id": claimed.traceID,
		})
	}
	return nil
}

func (w *Worker) loadBudgetedGroups(ctx context.Context, twinID string) ([]backstory.BudgetedGroup, error) {
	rows, err := w.db.Query(ctx, `
		SELECT title, messages, top_n, min_distance
		FROM twin_sources
		WHERE twin_id = $1
		ORDER BY created_at ASC, id ASC
	`, twinID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []backstory.BudgetedGroup
	for rows.Next() {
		var (
			title       string
			messagesRaw []byte
			topN        int
			minDistance float64
		)
		if err := rows.Scan(&title, &messagesRaw, &topN, &minDistance); err != nil {
			return nil, err
		}
		var messages []string
		if err := json.Unmarshal(messagesRaw, &messages); err != nil {
			return nil, err
		}
		groups = append(groups, backstory.BudgetedGroup{
			Group:  backstory.MessageGroup{Title: title, Messages: messages},
			Budget: backstory.Budget{TopN: topN, MinDistance: minDistance},
		})
	}
	return groups, rows.Err()
}

func (w *Worker) generateAgentPost(ctx context.Context, claimed job) error {
	var payload struct {
		Topic string `json:"topic"`
	}
	if err := json.Unmarshal(claimed.payload, &payload); err != nil {
		return permanentError{message: fmt.Sprintf("malformed payload: %v", err)}
	}

	var (
		name  string
		story string
	)
	err := w.db.QueryRow(ctx, `
		SELECT name, backstory FROM twins WHERE id = $1
	`, claimed.twinID).Scan(&name, &story)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return permanentError{message: "twin no longer exists"}
		}
		return err
	}
	if strings.TrimSpace(story) == "" {
		return permanentError{message: "twin has no backstory"}
	}

	prompt := prompts.AgentPost(name, story, payload.Topic)
	content, err := w.llm.GenerateText(ctx, prompt.System, prompt.User)
	if err != nil {
		if errors.Is(err, ai.ErrEmptyResponse) {
			return permanentError{message: err.Error()}
		}
		return err
	}

	_, err = w.db.Exec(ctx, `
		INSERT INTO agent_posts(twin_id, topic, content) VALUES ($1, $2, $3)
	`, claimed.twinID, payload.Topic, content)
	return err
}

func (w *Worker) markJobDone(ctx context.Context, jobID int64) error {
	_, err := w.db.Exec(ctx, `
		UPDATE jobs
		SET status = 'DONE', locked_at = NULL, updated_at = NOW()
		WHERE id = $1
	`, jobID)
	return err
}

// markJobFailed records the failure and either schedules a retry with
// exponential backoff or parks the job as DEAD. Returns the resulting
// status for metrics.
func (w *Worker) markJobFailed(ctx context.Context, claimed job, cause error) string {
	attempts := claimed.attempts + 1

	var permanent permanentError
	dead := errors.As(cause, &permanent) || attempts >= w.cfg.JobMaxAttempts

	status := "FAILED"
	if dead {
		status = "DEAD"
	} else {
		w.metrics.IncrementJobRetry(claimed.jobType)
	}

	delay := jobBackoff(w.cfg.JobRetryBase, w.cfg.JobRetryMax, attempts)
	_, err := w.db.Exec(ctx, `
		UPDATE jobs
		SET status = $1,
		    attempts = $2,
		    available_at = NOW() + ($3 || ' seconds')::interval,
		    locked_at = NULL,
		    last_error = $4,
		    updated_at = NOW()
		WHERE id = $5
	`, status, attempts, int(delay.Seconds()), common.TruncateRunes(cause.Error(), 500), claimed.id)
	if err != nil {
		w.logger.Error("job_status_update_failed", observability.Fields{
			"job_id": claimed.id,
			"error":  err.Error(),
		})
	}
	return strings.ToLower(status)
}

// jobBackoff doubles the base delay per attempt and caps it.
func jobBackoff(base, max time.Duration, attempts int) time.Duration {
	if base <= 0 {
		base = 30 * time.Second
	}
	if attempts < 1 {
		attempts = 1
	}

	delay := base
	for i := 1; i < attempts; i++ {
		delay *= 2
		if max > 0 && delay >= max {
			return max
		}
	}
	if max > 0 && delay > max {
		return max
	}
	return delay
}
