package rest

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"go-marketplace/internal/core/domain/favorites"
)

// Pagination helper
type Pagination struct {
	Limit  int
	Offset int
}

func NewPagination(r *http.Request) Pagination {
	pageStr := r.URL.Query().Get("page")
	page, _ := strconv.Atoi(pageStr)
	if page < 1 {
		page = 1
	}

	limitStr := r.URL.Query().Get("limit")
	limit, _ := strconv.Atoi(limitStr)
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	offset := (page - 1) * limit
	return Pagination{Limit: limit, Offset: offset}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type favoriteResponse struct {
	ListingID string `json:"listing_id"`
	Favorite  bool   `json:"favorite"`
}

type outcomeResponse struct {
	ListingID string `json:"listing_id"`
	Favorite  bool   `json:"favorite"`
	Outcome   string `json:"outcome"`
	Error     string `json:"error,omitempty"`
}

type idsResponse struct {
	UserID    string   `json:"user_id"`
	IDs       []string `json:"ids"`
	Freshness string   `json:"freshness"`
}

// outcomeStatus maps a settled toggle to its HTTP status and body.
func outcomeStatus(listingID string, o favorites.Outcome) (int, outcomeResponse) {
	resp := outcomeResponse{ListingID: listingID, Outcome: o.Kind()}
	switch o := o.(type) {
	case favorites.Committed:
		resp.Favorite = o.Favorite
		return http.StatusOK, resp
	case favorites.RolledBack:
		resp.Favorite = o.Favorite
		if o.Reason != nil {
			resp.Error = o.Reason.Error()
		}
		if errors.Is(o.Reason, favorites.ErrValidation) {
			return http.StatusUnprocessableEntity, resp
		}
		return http.StatusServiceUnavailable, resp
	case favorites.AuthRequired:
		resp.Error = "sign in to save favorites"
		return http.StatusUnauthorized, resp
	}
	return http.StatusInternalServerError, resp
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

func respondError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
