package api

import (
	"errors"
	"net/http"

	"twinforge/backend/internal/auth"
	"twinforge/backend/internal/observability"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email       string `json:"email"`
		Password    string `json:"password"`
		DisplayName string `json:"display_name"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	email, err := validateEmail(body.Email)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if err := validatePassword(body.Password); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	hash, err := auth.HashPassword(body.Password)
	if err != nil {
		writeInternalError(w, "could not create account")
		return
	}

	var userID string
	err = s.db.QueryRow(r.Context(), `
		INSERT INTO users(email, password_hash, display_name)
		VALUES ($1, $2, $3)
		RETURNING id::text
	`, email, hash, body.DisplayName).Scan(&userID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			writeConflict(w, "email already registered")
			return
		}
		writeInternalError(w, "could not create account")
		return
	}

	token, err := auth.CreateToken(s.cfg.JWTSecret, userID, s.cfg.TokenTTL)
	if err != nil {
		writeInternalError(w, "could not create token")
		return
	}

	s.logger.Info("user_signed_up", observability.Fields{"user_id": userID})
	writeJSON(w, http.StatusCreated, map[string]any{"token": token, "user_id": userID})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	email, err := validateEmail(body.Email)
	if err != nil {
		writeUnauthorized(w, "invalid credentials")
		return
	}

	var (
		userID string
		hash   string
	)
	err = s.db.QueryRow(r.Context(), `
		SELECT id::text, password_hash FROM users WHERE email = $1
	`, email).Scan(&userID, &hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeUnauthorized(w, "invalid credentials")
			return
		}
		writeInternalError(w, "could not log in")
		return
	}

	if !auth.VerifyPassword(hash, body.Password) {
		writeUnauthorized(w, "invalid credentials")
		return
	}

	token, err := auth.CreateToken(s.cfg.JWTSecret, userID, s.cfg.TokenTTL)
	if err != nil {
		writeInternalError(w, "could not create token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": token, "user_id": userID})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUserID(w, r)
	if !ok {
		return
	}

	var user User
	err := s.db.QueryRow(r.Context(), `
		SELECT id::text, email, display_name, points, created_at
		FROM users WHERE id = $1
	`, userID).Scan(&user.ID, &user.Email, &user.DisplayName, &user.Points, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeNotFound(w, "user not found")
			return
		}
		writeInternalError(w, "could not load user")
		return
	}
	writeJSON(w, http.StatusOK, user)
}
