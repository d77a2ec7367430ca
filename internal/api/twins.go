package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"twinforge/backend/internal/backstory"
	"twinforge/backend/internal/common"
	"twinforge/backend/internal/ingest"
	"twinforge/backend/internal/observability"
	"twinforge/backend/internal/worker"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

func (s *Server) loadOwnedTwin(r *http.Request, userID, twinID string) (Twin, error) {
	var twin Twin
	err := s.db.QueryRow(r.Context(), `
		SELECT id::text, name, origin, backstory, backstory_version, avatar_url, created_at, updated_at
		FROM twins
		WHERE id = $1 AND user_id = $2
	`, twinID, userID).Scan(
		&twin.ID, &twin.Name, &twin.Origin, &twin.Backstory,
		&twin.BackstoryVersion, &twin.AvatarURL, &twin.CreatedAt, &twin.UpdatedAt,
	)
	return twin, err
}

func (s *Server) twinFromPath(w http.ResponseWriter, r *http.Request, userID string) (Twin, bool) {
	twinID, err := validateUUID(chi.URLParam(r, "id"), "twin id")
	if err != nil {
		writeBadRequest(w, err.Error())
		return Twin{}, false
	}

	twin, err := s.loadOwnedTwin(r, userID, twinID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeNotFound(w, "twin not found")
			return Twin{}, false
		}
		writeInternalError(w, "could not load twin")
		return Twin{}, false
	}
	return twin, true
}

func (s *Server) handleListTwins(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUserID(w, r)
	if !ok {
		return
	}

	rows, err := s.db.Query(r.Context(), `
		SELECT id::text, name, origin, backstory, backstory_version, avatar_url, created_at, updated_at
		FROM twins
		WHERE user_id = $1
		ORDER BY created_at ASC
	`, userID)
	if err != nil {
		writeInternalError(w, "could not list twins")
		return
	}
	defer rows.Close()

	twins := []Twin{}
	for rows.Next() {
		var twin Twin
		if err := rows.Scan(
			&twin.ID, &twin.Name, &twin.Origin, &twin.Backstory,
			&twin.BackstoryVersion, &twin.AvatarURL, &twin.CreatedAt, &twin.UpdatedAt,
		); err != nil {
			writeInternalError(w, "could not list twins")
			return
		}
		twins = append(twins, twin)
	}
	writeJSON(w, http.StatusOK, map[string]any{"twins": twins})
}

func (s *Server) handleCreateTwin(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUserID(w, r)
	if !ok {
		return
	}

	var body struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	name, err := validateTwinName(body.Name)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	var twin Twin
	err = s.db.QueryRow(r.Context(), `
		INSERT INTO twins(user_id, name)
		VALUES ($1, $2)
		RETURNING id::text, name, origin, backstory, backstory_version, avatar_url, created_at, updated_at
	`, userID, name).Scan(
		&twin.ID, &twin.Name, &twin.Origin, &twin.Backstory,
		&twin.BackstoryVersion, &twin.AvatarURL, &twin.CreatedAt, &twin.UpdatedAt,
	)
	if err != nil {
		writeInternalError(w, "could not create twin")
		return
	}
	writeJSON(w, http.StatusCreated, twin)
}

func (s *Server) handleGetTwin(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUserID(w, r)
	if !ok {
		return
	}
	twin, ok := s.twinFromPath(w, r, userID)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, twin)
}

func (s *Server) handleDeleteTwin(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUserID(w, r)
	if !ok {
		return
	}
	twin, ok := s.twinFromPath(w, r, userID)
	if !ok {
		return
	}

	if _, err := s.db.Exec(r.Context(), `DELETE FROM twins WHERE id = $1`, twin.ID); err != nil {
		writeInternalError(w, "could not delete twin")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUserID(w, r)
	if !ok {
		return
	}
	twin, ok := s.twinFromPath(w, r, userID)
	if !ok {
		return
	}

	rows, err := s.db.Query(r.Context(), `
		SELECT id::text, platform, title, jsonb_array_length(messages), batch_id, created_at
		FROM twin_sources
		WHERE twin_id = $1
		ORDER BY created_at ASC, id ASC
	`, twin.ID)
	if err != nil {
		writeInternalError(w, "could not list sources")
		return
	}
	defer rows.Close()

	sources := []TwinSource{}
	for rows.Next() {
		var source TwinSource
		if err := rows.Scan(&source.ID, &source.Platform, &source.Title, &source.MessageCount, &source.BatchID, &source.CreatedAt); err != nil {
			writeInternalError(w, "could not list sources")
			return
		}
		sources = append(sources, source)
	}
	writeJSON(w, http.StatusOK, map[string]any{"sources": sources})
}

// handleIngestSource accepts a raw platform export, parses it into budgeted
// message groups, replaces any previous groups for that platform, and queues
// an async backstory regeneration.
func (s *Server) handleIngestSource(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUserID(w, r)
	if !ok {
		return
	}
	twin, ok := s.twinFromPath(w, r, userID)
	if !ok {
		return
	}

	platform, err := ingest.ParsePlatform(chi.URLParam(r, "platform"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeBadRequest(w, "could not read export body")
		return
	}

	ownerName := strings.TrimSpace(r.URL.Query().Get("owner_name"))
	if ownerName == "" {
		_ = s.db.QueryRow(r.Context(), `SELECT display_name FROM users WHERE id = $1`, userID).Scan(&ownerName)
	}

	groups, err := ingest.Parse(platform, raw, ownerName)
	if err != nil {
		writeBadRequest(w, "could not parse export")
		return
	}
	if len(groups) == 0 {
		writeBadRequest(w, "export contained no usable messages")
		return
	}

	batchID := uuid.NewString()
	tx, err := s.db.Begin(r.Context())
	if err != nil {
		writeInternalError(w, "could not store export")
		return
	}
	defer tx.Rollback(r.Context())

	if _, err := tx.Exec(r.Context(), `
		DELETE FROM twin_sources WHERE twin_id = $1 AND platform = $2
	`, twin.ID, string(platform)); err != nil {
		writeInternalError(w, "could not store export")
		return
	}

	for _, bg := range groups {
		messagesRaw, err := json.Marshal(bg.Group.Messages)
		if err != nil {
			writeInternalError(w, "could not store export")
			return
		}
		if _, err := tx.Exec(r.Context(), `
			INSERT INTO twin_sources(twin_id, platform, title, messages, top_n, min_distance, batch_id)
			VALUES ($1, $2, $3, $4::jsonb, $5, $6, $7)
		`, twin.ID, string(platform), bg.Group.Title, messagesRaw, bg.Budget.TopN, bg.Budget.MinDistance, batchID); err != nil {
			writeInternalError(w, "could not store export")
			return
		}
	}

	if err := worker.EnqueueBackstorySynthesis(r.Context(), tx, twin.ID, batchID); err != nil {
		writeInternalError(w, "could not queue synthesis")
		return
	}

	if err := tx.Commit(r.Context()); err != nil {
		writeInternalError(w, "could not store export")
		return
	}

	s.logger.Info("export_ingested", observability.Fields{
		"twin_id":  twin.ID,
		"platform": string(platform),
		"batch_id": batchID,
		"groups":   len(groups),
	})
	writeJSON(w, http.StatusAccepted, map[string]any{
		"batch_id":        batchID,
		"groups":          len(groups),
		"synthesis_state": "queued",
	})
}

func (s *Server) loadBudgetedGroups(r *http.Request, twinID string) ([]backstory.BudgetedGroup, error) {
	rows, err := s.db.Query(r.Context(), `
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

// handleRegenerateBackstory synthesizes synchronously and persists with a
// version check, so two concurrent regenerations cannot silently overwrite
// each other.
func (s *Server) handleRegenerateBackstory(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUserID(w, r)
	if !ok {
		return
	}
	twin, ok := s.twinFromPath(w, r, userID)
	if !ok {
		return
	}

	groups, err := s.loadBudgetedGroups(r, twin.ID)
	if err != nil {
		writeInternalError(w, "could not load sources")
		return
	}
	if len(groups) == 0 {
		writeBadRequest(w, "twin has no ingested sources")
		return
	}

	story, err := s.synth.SynthesizeBudgeted(r.Context(), groups)
	if err != nil {
		if errors.Is(err, backstory.ErrGenerationFailed) {
			s.metrics.ObserveSynthesis("regenerate", "failed")
			s.logger.Error("backstory_generation_failed", observability.Fields{
				"twin_id": twin.ID,
				"error":   err.Error(),
			})
			writeBadGateway(w, "backstory generation failed")
			return
		}
		writeInternalError(w, "could not synthesize backstory")
		return
	}
	story = common.TruncateRunes(story, s.cfg.BackstoryMaxLen)

	tag, err := s.db.Exec(r.Context(), `
		UPDATE twins
		SET backstory = $1, backstory_version = backstory_version + 1, updated_at = NOW()
		WHERE id = $2 AND backstory_version = $3
	`, story, twin.ID, twin.BackstoryVersion)
	if err != nil {
		writeInternalError(w, "could not persist backstory")
		return
	}
	if tag.RowsAffected() == 0 {
		s.metrics.ObserveSynthesis("regenerate", "conflict")
		writeConflict(w, "backstory changed concurrently, retry")
		return
	}

	s.metrics.ObserveSynthesis("regenerate", "ok")
	twin.Backstory = story
	twin.BackstoryVersion++
	writeJSON(w, http.StatusOK, twin)
}
