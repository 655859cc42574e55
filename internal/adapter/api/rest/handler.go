package rest

import (
	"encoding/json"
	"errors"
	"iter"
	"log/slog"
	"net/http"

	"go-marketplace/internal/core/domain/favorites"
	"go-marketplace/internal/core/ports"
)

type Handler struct {
	sync     ports.FavoriteSync
	listings ports.FavoriteListingService
	logger   *slog.Logger
}

func NewHandler(sync ports.FavoriteSync, listings ports.FavoriteListingService, logger *slog.Logger) *Handler {
	return &Handler{sync: sync, listings: listings, logger: logger}
}

// Status handles GET /favorites/{listingID}. It answers from the cache and
// starts hydration when the user's set has not been loaded yet.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	listingID := r.PathValue("listingID")
	if listingID == "" {
		respondError(w, http.StatusBadRequest, errors.New("missing listing id"))
		return
	}
	writeJSON(w, http.StatusOK, favoriteResponse{
		ListingID: listingID,
		Favorite:  h.sync.Favorites(r.Context(), userID(r)).Contains(listingID),
	})
}

// Toggle handles POST /favorites/{listingID}/toggle
func (h *Handler) Toggle(w http.ResponseWriter, r *http.Request) {
	listingID := r.PathValue("listingID")
	outcome := h.sync.Toggle(r.Context(), userID(r), listingID)
	h.writeOutcome(w, r, listingID, outcome)
}

// Add handles PUT /favorites/{listingID}
func (h *Handler) Add(w http.ResponseWriter, r *http.Request) {
	listingID := r.PathValue("listingID")
	outcome := h.sync.SetFavorite(r.Context(), userID(r), listingID, favorites.Add)
	h.writeOutcome(w, r, listingID, outcome)
}

// Remove handles DELETE /favorites/{listingID}
func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	listingID := r.PathValue("listingID")
	outcome := h.sync.SetFavorite(r.Context(), userID(r), listingID, favorites.Remove)
	h.writeOutcome(w, r, listingID, outcome)
}

func (h *Handler) writeOutcome(w http.ResponseWriter, r *http.Request, listingID string, outcome favorites.Outcome) {
	code, resp := outcomeStatus(listingID, outcome)
	if code >= http.StatusInternalServerError {
		h.logger.WarnContext(r.Context(), "favorite change rolled back", "listing_id", listingID, "error", resp.Error)
	}
	writeJSON(w, code, resp)
}

// IDs handles GET /favorites/ids. It waits for hydration; when the store is
// down a previously loaded set is still served with its freshness.
func (h *Handler) IDs(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	set, err := h.sync.Hydrate(r.Context(), uid)
	if err != nil {
		h.logger.WarnContext(r.Context(), "failed to hydrate favorites", "user_id", uid, "error", err)
		if set.Freshness == favorites.Unloaded || set.Freshness == favorites.Loading {
			respondError(w, http.StatusServiceUnavailable, errors.New("favorites are temporarily unavailable"))
			return
		}
	}
	writeJSON(w, http.StatusOK, idsResponse{
		UserID:    uid,
		IDs:       set.IDs(),
		Freshness: set.Freshness.String(),
	})
}

// List handles GET /favorites with streaming
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := NewPagination(r)

	seq, err := h.listings.FavoriteListings(ctx, userID(r), p.Limit, p.Offset)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list favorite listings", "error", err)
		respondError(w, http.StatusInternalServerError, errors.New("failed to load favorites"))
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)

	// Stream response using NDJSON (Newline Delimited JSON)
	h.streamResponse(w, r, seq)
}

func (h *Handler) streamResponse(w http.ResponseWriter, r *http.Request, seq iter.Seq2[favorites.Listing, error]) {
	enc := json.NewEncoder(w)
	flusher, _ := w.(http.Flusher)
	for item, err := range seq {
		if err != nil {
			h.logger.ErrorContext(r.Context(), "stream error", "err", err)
			return
		}
		if err := enc.Encode(item); err != nil {
			h.logger.ErrorContext(r.Context(), "encode error", "err", err)
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// EndSession handles DELETE /session
func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request) {
	h.sync.EndSession(userID(r))
	w.WriteHeader(http.StatusNoContent)
}
