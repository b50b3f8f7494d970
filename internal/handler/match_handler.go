package handler

import (
	"errors"
	"net/http"

	"github.com/mpetrov/fogline/internal/auth"
	"github.com/mpetrov/fogline/internal/content"
	"github.com/mpetrov/fogline/internal/service"
	"github.com/mpetrov/fogline/pkg/stratego"
)

// MatchHandler handles match lifecycle endpoints.
type MatchHandler struct {
	matchSvc *service.MatchService
}

// NewMatchHandler creates a MatchHandler.
func NewMatchHandler(matchSvc *service.MatchService) *MatchHandler {
	return &MatchHandler{matchSvc: matchSvc}
}

// CreateMatch handles POST /api/v1/matches
func (h *MatchHandler) CreateMatch(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	var req struct {
		Name  string `json:"name"`
		MapID string `json:"map_id,omitempty"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	match, err := h.matchSvc.CreateMatch(r.Context(), req.Name, userID, req.MapID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, match)
}

// ListMatches handles GET /api/v1/matches
func (h *MatchHandler) ListMatches(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	filter := r.URL.Query().Get("filter")
	matches, err := h.matchSvc.ListMatches(r.Context(), userID, filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if matches == nil {
		writeJSON(w, http.StatusOK, []struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, matches)
}

// GetMatch handles GET /api/v1/matches/{id}
func (h *MatchHandler) GetMatch(w http.ResponseWriter, r *http.Request) {
	matchID := r.PathValue("id")
	match, err := h.matchSvc.GetMatch(r.Context(), matchID)
	if err != nil {
		writeError(w, matchErrStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, match)
}

// DeleteMatch handles DELETE /api/v1/matches/{id}
func (h *MatchHandler) DeleteMatch(w http.ResponseWriter, r *http.Request) {
	matchID := r.PathValue("id")
	userID := auth.UserIDFromContext(r.Context())

	if err := h.matchSvc.DeleteMatch(r.Context(), matchID, userID); err != nil {
		writeError(w, matchErrStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// JoinMatch handles POST /api/v1/matches/{id}/join
func (h *MatchHandler) JoinMatch(w http.ResponseWriter, r *http.Request) {
	matchID := r.PathValue("id")
	userID := auth.UserIDFromContext(r.Context())

	match, err := h.matchSvc.JoinMatch(r.Context(), matchID, userID)
	if err != nil {
		writeError(w, matchErrStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, match)
}

// SelectArmy handles POST /api/v1/matches/{id}/army
func (h *MatchHandler) SelectArmy(w http.ResponseWriter, r *http.Request) {
	matchID := r.PathValue("id")
	userID := auth.UserIDFromContext(r.Context())

	var req struct {
		RosterID string `json:"roster_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.RosterID == "" {
		writeError(w, http.StatusBadRequest, "roster_id is required")
		return
	}

	if err := h.matchSvc.SelectArmy(r.Context(), matchID, userID, req.RosterID); err != nil {
		writeError(w, matchErrStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "selected"})
}

// SubmitPlacement handles POST /api/v1/matches/{id}/placement
func (h *MatchHandler) SubmitPlacement(w http.ResponseWriter, r *http.Request) {
	matchID := r.PathValue("id")
	userID := auth.UserIDFromContext(r.Context())

	var req struct {
		Random     bool                      `json:"random,omitempty"`
		Placements []stratego.PlacementInput `json:"placements"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var err error
	if req.Random {
		err = h.matchSvc.SubmitRandomPlacement(r.Context(), matchID, userID)
	} else {
		err = h.matchSvc.SubmitPlacement(r.Context(), matchID, userID, req.Placements)
	}
	if err != nil {
		var setupErr *stratego.SetupError
		if errors.As(err, &setupErr) {
			writeError(w, http.StatusUnprocessableEntity, setupErr.Error())
			return
		}
		writeError(w, matchErrStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "placed"})
}

// ConfirmSetup handles POST /api/v1/matches/{id}/ready
func (h *MatchHandler) ConfirmSetup(w http.ResponseWriter, r *http.Request) {
	matchID := r.PathValue("id")
	userID := auth.UserIDFromContext(r.Context())

	if err := h.matchSvc.ConfirmSetup(r.Context(), matchID, userID); err != nil {
		writeError(w, matchErrStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Move handles POST /api/v1/matches/{id}/moves
func (h *MatchHandler) Move(w http.ResponseWriter, r *http.Request) {
	matchID := r.PathValue("id")
	userID := auth.UserIDFromContext(r.Context())

	var req service.MoveInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.matchSvc.Move(r.Context(), matchID, userID, req)
	if err != nil {
		var moveErr *stratego.MoveError
		if errors.As(err, &moveErr) {
			writeError(w, http.StatusUnprocessableEntity, moveErr.Error())
			return
		}
		writeError(w, matchErrStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Forfeit handles POST /api/v1/matches/{id}/forfeit
func (h *MatchHandler) Forfeit(w http.ResponseWriter, r *http.Request) {
	matchID := r.PathValue("id")
	userID := auth.UserIDFromContext(r.Context())

	if err := h.matchSvc.Forfeit(r.Context(), matchID, userID); err != nil {
		writeError(w, matchErrStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "forfeited"})
}

// GetView handles GET /api/v1/matches/{id}/view — the fog-of-war board as
// seen by the requesting user.
func (h *MatchHandler) GetView(w http.ResponseWriter, r *http.Request) {
	matchID := r.PathValue("id")
	userID := auth.UserIDFromContext(r.Context())

	view, err := h.matchSvc.GetView(r.Context(), matchID, userID)
	if err != nil {
		writeError(w, matchErrStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// ListRosters handles GET /api/v1/content/rosters
func (h *MatchHandler) ListRosters(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.matchSvc.Content().Rosters())
}

// ListMaps handles GET /api/v1/content/maps
func (h *MatchHandler) ListMaps(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.matchSvc.Content().Maps())
}

// matchErrStatus maps service errors to HTTP status codes.
func matchErrStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrMatchNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrNotCreator), errors.Is(err, service.ErrNotInMatch):
		return http.StatusForbidden
	case errors.Is(err, service.ErrMatchNotWaiting),
		errors.Is(err, service.ErrMatchNotInSetup),
		errors.Is(err, service.ErrMatchNotPlaying),
		errors.Is(err, service.ErrMatchPaused),
		errors.Is(err, service.ErrMatchFull),
		errors.Is(err, service.ErrAlreadyJoined),
		errors.Is(err, service.ErrNotPlaced),
		errors.Is(err, service.ErrAlreadyStarted),
		errors.Is(err, content.ErrUnknownRoster),
		errors.Is(err, content.ErrUnknownMap):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
