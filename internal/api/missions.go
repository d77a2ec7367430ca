package api

import (
	"errors"
	"net/http"

	"twinforge/backend/internal/observability"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func (s *Server) handleListMissions(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUserID(w, r)
	if !ok {
		return
	}

	rows, err := s.db.Query(r.Context(), `
		SELECT m.id::text, m.code, m.title, m.description, m.points,
		       EXISTS(SELECT 1 FROM mission_completions c WHERE c.mission_id = m.id AND c.user_id = $1)
		FROM missions m
		ORDER BY m.points ASC, m.code ASC
	`, userID)
	if err != nil {
		writeInternalError(w, "could not list missions")
		return
	}
	defer rows.Close()

	missions := []Mission{}
	for rows.Next() {
		var mission Mission
		if err := rows.Scan(&mission.ID, &mission.Code, &mission.Title, &mission.Description, &mission.Points, &mission.Completed); err != nil {
			writeInternalError(w, "could not list missions")
			return
		}
		missions = append(missions, mission)
	}
	writeJSON(w, http.StatusOK, map[string]any{"missions": missions})
}

// handleCompleteMission credits the mission's points exactly once per user.
func (s *Server) handleCompleteMission(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUserID(w, r)
	if !ok {
		return
	}

	missionID, err := validateUUID(chi.URLParam(r, "id"), "mission id")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	tx, err := s.db.Begin(r.Context())
	if err != nil {
		writeInternalError(w, "could not complete mission")
		return
	}
	defer tx.Rollback(r.Context())

	var points int
	err = tx.QueryRow(r.Context(), `SELECT points FROM missions WHERE id = $1`, missionID).Scan(&points)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeNotFound(w, "mission not found")
			return
		}
		writeInternalError(w, "could not complete mission")
		return
	}

	if _, err := tx.Exec(r.Context(), `
		INSERT INTO mission_completions(mission_id, user_id) VALUES ($1, $2)
	`, missionID, userID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			writeConflict(w, "mission already completed")
			return
		}
		writeInternalError(w, "could not complete mission")
		return
	}

	var total int
	err = tx.QueryRow(r.Context(), `
		UPDATE users SET points = points + $1 WHERE id = $2 RETURNING points
	`, points, userID).Scan(&total)
	if err != nil {
		writeInternalError(w, "could not complete mission")
		return
	}

	if err := tx.Commit(r.Context()); err != nil {
		writeInternalError(w, "could not complete mission")
		return
	}

	s.logger.Info("mission_completed", observability.Fields{
		"mission_id": missionID,
		"user_id":    userID,
		"points":     points,
	})
	writeJSON(w, http.StatusOK, map[string]any{"awarded": points, "total_points": total})
}
