package api

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"twinforge/backend/internal/ai/prompts"
	"twinforge/backend/internal/common"
	"twinforge/backend/internal/observability"
	"twinforge/backend/internal/safety"
)

type userRateLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	buckets map[string]rateLimitBucket
}

type rateLimitBucket struct {
	count       int
	windowStart time.Time
}

func newUserRateLimiter(limit int, window time.Duration) *userRateLimiter {
	if limit <= 0 {
		limit = 20
	}
	if window <= 0 {
		window = time.Minute
	}
	return &userRateLimiter{
		limit:   limit,
		window:  window,
		buckets: map[string]rateLimitBucket{},
	}
}

func (l *userRateLimiter) allow(key string) bool {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	bucket, exists := l.buckets[key]
	if !exists || now.Sub(bucket.windowStart) >= l.window {
		l.buckets[key] = rateLimitBucket{count: 1, windowStart: now}
		return true
	}
	if bucket.count >= l.limit {
		return false
	}
	bucket.count++
	l.buckets[key] = bucket
	return true
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUserID(w, r)
	if !ok {
		return
	}
	twin, ok := s.twinFromPath(w, r, userID)
	if !ok {
		return
	}

	var body struct {
		Message string `json:"message"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if err := safety.ValidateChatMessage(body.Message, s.cfg.ChatMessageMaxLen); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	message := strings.TrimSpace(body.Message)

	if !s.chatLimiter.allow(userID + ":" + twin.ID) {
		s.metrics.IncRateLimited("chat")
		writeTooManyRequests(w, "slow down")
		return
	}

	var sentToday int
	err := s.db.QueryRow(r.Context(), `
		SELECT COUNT(*) FROM chat_messages
		WHERE user_id = $1 AND role = 'user' AND created_at >= date_trunc('day', NOW())
	`, userID).Scan(&sentToday)
	if err != nil {
		writeInternalError(w, "could not check quota")
		return
	}
	if sentToday >= s.cfg.DailyChatQuota {
		s.metrics.IncRateLimited("chat_quota")
		writeTooManyRequests(w, "daily chat quota reached")
		return
	}

	if strings.TrimSpace(twin.Backstory) == "" {
		writeBadRequest(w, "twin has no backstory yet")
		return
	}

	history, err := s.loadChatHistory(r, twin.ID, userID, s.cfg.ChatHistoryWindow)
	if err != nil {
		writeInternalError(w, "could not load chat history")
		return
	}

	turns := make([]prompts.ChatTurn, 0, len(history))
	for _, entry := range history {
		turns = append(turns, prompts.ChatTurn{Role: entry.Role, Content: entry.Content})
	}
	prompt := prompts.TwinChat(twin.Name, twin.Backstory, turns, message)

	started := time.Now()
	reply, err := s.llm.GenerateText(r.Context(), prompt.System, prompt.User)
	s.metrics.ObserveLLMCall("text", time.Since(started))
	if err != nil {
		s.logger.Error("chat_generation_failed", observability.Fields{
			"twin_id": twin.ID,
			"error":   err.Error(),
		})
		writeBadGateway(w, "twin is unavailable right now")
		return
	}
	reply = common.TruncateRunes(reply, s.cfg.ChatMessageMaxLen*4)

	tx, err := s.db.Begin(r.Context())
	if err != nil {
		writeInternalError(w, "could not save chat")
		return
	}
	defer tx.Rollback(r.Context())

	if _, err := tx.Exec(r.Context(), `
		INSERT INTO chat_messages(twin_id, user_id, role, content) VALUES ($1, $2, 'user', $3)
	`, twin.ID, userID, message); err != nil {
		writeInternalError(w, "could not save chat")
		return
	}

	var out ChatMessage
	err = tx.QueryRow(r.Context(), `
		INSERT INTO chat_messages(twin_id, user_id, role, content) VALUES ($1, $2, 'twin', $3)
		RETURNING id::text, role, content, created_at
	`, twin.ID, userID, reply).Scan(&out.ID, &out.Role, &out.Content, &out.CreatedAt)
	if err != nil {
		writeInternalError(w, "could not save chat")
		return
	}

	if err := tx.Commit(r.Context()); err != nil {
		writeInternalError(w, "could not save chat")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) loadChatHistory(r *http.Request, twinID, userID string, limit int) ([]ChatMessage, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(r.Context(), `
		SELECT id::text, role, content, created_at
		FROM (
			SELECT id, role, content, created_at
			FROM chat_messages
			WHERE twin_id = $1 AND user_id = $2
			ORDER BY created_at DESC, id DESC
			LIMIT $3
		) recent
		ORDER BY created_at ASC, id ASC
	`, twinID, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []ChatMessage{}
	for rows.Next() {
		var message ChatMessage
		if err := rows.Scan(&message.ID, &message.Role, &message.Content, &message.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}
	return messages, rows.Err()
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUserID(w, r)
	if !ok {
		return
	}
	twin, ok := s.twinFromPath(w, r, userID)
	if !ok {
		return
	}

	history, err := s.loadChatHistory(r, twin.ID, userID, 100)
	if err != nil {
		writeInternalError(w, "could not load chat history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": history})
}
