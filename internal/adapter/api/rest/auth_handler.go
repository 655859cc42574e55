package rest

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"go-marketplace/internal/core/domain/auth"
	"go-marketplace/internal/core/ports"
)

// SessionOpener prepares per-user favorites state after a login.
type SessionOpener interface {
	OpenSession(userID string)
}

type AuthHandler struct {
	service  ports.AuthService
	sessions SessionOpener
	logger   *slog.Logger
}

func NewAuthHandler(service ports.AuthService, sessions SessionOpener, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{service: service, sessions: sessions, logger: logger}
}

// SignUp handles POST /signup
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	if err := h.service.SignUp(r.Context(), req.Email, req.Password); err != nil {
		switch {
		case errors.Is(err, auth.ErrEmailTaken):
			respondError(w, http.StatusConflict, err)
		case errors.Is(err, auth.ErrInvalidCredentials):
			respondError(w, http.StatusBadRequest, err)
		default:
			h.logger.ErrorContext(r.Context(), "failed to sign up", "error", err)
			respondError(w, http.StatusInternalServerError, errors.New("failed to create account"))
		}
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// Login handles POST /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	token, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			respondError(w, http.StatusUnauthorized, err)
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to log in", "error", err)
		respondError(w, http.StatusInternalServerError, errors.New("failed to log in"))
		return
	}

	uid, err := h.service.Verify(token)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "issued token does not verify", "error", err)
		respondError(w, http.StatusInternalServerError, errors.New("failed to log in"))
		return
	}
	h.sessions.OpenSession(uid)
	writeJSON(w, http.StatusOK, tokenResponse{Token: token})
}
