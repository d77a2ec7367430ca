package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"twinforge/backend/internal/ai/prompts"
	"twinforge/backend/internal/backstory"
	"twinforge/backend/internal/common"
	"twinforge/backend/internal/observability"

	"github.com/jackc/pgx/v5"
)

// handleMergeTwins builds a hybrid twin from two parents. Generation failure
// degrades to the raw merge prompt as backstory; avatar failure degrades to
// no avatar. Neither fails the merge.
func (s *Server) handleMergeTwins(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUserID(w, r)
	if !ok {
		return
	}

	var body struct {
		TwinAID string `json:"twin_a_id"`
		TwinBID string `json:"twin_b_id"`
		Name    string `json:"name"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	twinAID, err := validateUUID(body.TwinAID, "twin_a_id")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	twinBID, err := validateUUID(body.TwinBID, "twin_b_id")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if twinAID == twinBID {
		writeBadRequest(w, "cannot merge a twin with itself")
		return
	}
	name, err := validateTwinName(body.Name)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	twinA, err := s.loadOwnedTwin(r, userID, twinAID)
	if err == nil {
		var twinB Twin
		twinB, err = s.loadOwnedTwin(r, userID, twinBID)
		if err == nil {
			s.mergeTwins(w, r, userID, name, twinA, twinB)
			return
		}
	}
	if errors.Is(err, pgx.ErrNoRows) {
		writeNotFound(w, "twin not found")
		return
	}
	writeInternalError(w, "could not load twins")
}

func (s *Server) mergeTwins(w http.ResponseWriter, r *http.Request, userID, name string, twinA, twinB Twin) {
	if strings.TrimSpace(twinA.Backstory) == "" || strings.TrimSpace(twinB.Backstory) == "" {
		writeBadRequest(w, "both twins need a backstory before merging")
		return
	}

	prompt := prompts.MergeBackstory(twinA.Name, twinA.Backstory, twinB.Name, twinB.Backstory)

	started := time.Now()
	story, err := s.synth.Generate(r.Context(), prompt)
	s.metrics.ObserveLLMCall("text", time.Since(started))
	if err != nil {
		if !errors.Is(err, backstory.ErrGenerationFailed) {
			writeInternalError(w, "could not merge twins")
			return
		}
		// Degraded merge: the assembled prompt text stands in for the
		// backstory rather than failing the whole operation.
		s.metrics.ObserveSynthesis("merge", "fallback")
		s.logger.Warn("merge_generation_fallback", observability.Fields{
			"twin_a": twinA.ID,
			"twin_b": twinB.ID,
			"error":  err.Error(),
		})
		story = prompt.User
	} else {
		s.metrics.ObserveSynthesis("merge", "ok")
	}
	story = common.TruncateRunes(story, s.cfg.BackstoryMaxLen)

	avatarURL := ""
	imageStarted := time.Now()
	if url, err := s.llm.GenerateImage(r.Context(), prompts.Avatar(story)); err != nil {
		s.logger.Warn("merge_avatar_failed", observability.Fields{
			"twin_a": twinA.ID,
			"twin_b": twinB.ID,
			"error":  err.Error(),
		})
	} else {
		avatarURL = url
	}
	s.metrics.ObserveLLMCall("image", time.Since(imageStarted))

	var merged Twin
	err = s.db.QueryRow(r.Context(), `
		INSERT INTO twins(user_id, name, origin, backstory, backstory_version, avatar_url)
		VALUES ($1, $2, 'merged', $3, 1, $4)
		RETURNING id::text, name, origin, backstory, backstory_version, avatar_url, created_at, updated_at
	`, userID, name, story, avatarURL).Scan(
		&merged.ID, &merged.Name, &merged.Origin, &merged.Backstory,
		&merged.BackstoryVersion, &merged.AvatarURL, &merged.CreatedAt, &merged.UpdatedAt,
	)
	if err != nil {
		writeInternalError(w, "could not create merged twin")
		return
	}

	s.logger.Info("twins_merged", observability.Fields{
		"twin_a": twinA.ID,
		"twin_b": twinB.ID,
		"merged": merged.ID,
	})
	writeJSON(w, http.StatusCreated, merged)
}
