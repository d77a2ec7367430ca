package api

import (
	"net/http"
	"strings"

	"twinforge/backend/internal/common"
	"twinforge/backend/internal/observability"
	"twinforge/backend/internal/worker"
)

// handleRequestAgentPost queues an autonomous post for the twin; the worker
// generates and stores the content.
func (s *Server) handleRequestAgentPost(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUserID(w, r)
	if !ok {
		return
	}
	twin, ok := s.twinFromPath(w, r, userID)
	if !ok {
		return
	}
	if strings.TrimSpace(twin.Backstory) == "" {
		writeBadRequest(w, "twin has no backstory yet")
		return
	}

	var body struct {
		Topic string `json:"topic"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	topic := common.TruncateRunes(strings.TrimSpace(body.Topic), 120)
	if topic == "" {
		writeBadRequest(w, "topic is required")
		return
	}

	traceID, err := worker.EnqueueAgentPost(r.Context(), s.db, twin.ID, topic)
	if err != nil {
		writeInternalError(w, "could not queue post")
		return
	}

	s.logger.Info("agent_post_queued", observability.Fields{
		"twin_id":  twin.ID,
		"trace_id": traceID,
	})
	writeJSON(w, http.StatusAccepted, map[string]string{"trace_id": traceID, "state": "queued"})
}

func (s *Server) handleListAgentPosts(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUserID(w, r)
	if !ok {
		return
	}
	twin, ok := s.twinFromPath(w, r, userID)
	if !ok {
		return
	}

	rows, err := s.db.Query(r.Context(), `
		SELECT id::text, topic, content, created_at
		FROM agent_posts
		WHERE twin_id = $1
		ORDER BY created_at DESC
		LIMIT 50
	`, twin.ID)
	if err != nil {
		writeInternalError(w, "could not list posts")
		return
	}
	defer rows.Close()

	posts := []AgentPost{}
	for rows.Next() {
		var post AgentPost
		if err := rows.Scan(&post.ID, &post.Topic, &post.Content, &post.CreatedAt); err != nil {
			writeInternalError(w, "could not list posts")
			return
		}
		posts = append(posts, post)
	}
	writeJSON(w, http.StatusOK, map[string]any{"posts": posts})
}
