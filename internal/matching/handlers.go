package matching

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/emberdate/ember-backend/internal/common/utils"
)

type Handler struct {
	service Service
	hub     *Hub
}

func NewHandler(service Service, hub *Hub) *Handler {
	return &Handler{service: service, hub: hub}
}

func (h *Handler) RecordSwipe(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(int64)

	var dto SwipeRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if err := utils.ValidateStruct(&dto); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.service.RecordSwipe(r.Context(), userID, &dto)
	if err != nil {
		switch {
		case errors.Is(err, ErrSelfSwipe), errors.Is(err, ErrInvalidDirection):
			utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		default:
			utils.RespondWithError(w, http.StatusInternalServerError, "Failed to record swipe")
		}
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, result)
}

func (h *Handler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(int64)

	params := &RecommendationsParams{Limit: 20}

	if limit := r.URL.Query().Get("limit"); limit != "" {
		l, err := strconv.Atoi(limit)
		if err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		params.Limit = l
	}
	if offset := r.URL.Query().Get("offset"); offset != "" {
		o, err := strconv.Atoi(offset)
		if err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, "Invalid offset")
			return
		}
		params.Offset = o
	}
	params.BestEffort = r.URL.Query().Get("best_effort") == "true"

	start := time.Now()
	recommendations, err := h.service.GetRecommendations(r.Context(), userID, params)
	observeRankingDuration(time.Since(start).Seconds())

	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidLimit), errors.Is(err, ErrInvalidOffset):
			utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrRankingTimeout):
			utils.RespondWithError(w, http.StatusGatewayTimeout, err.Error())
		case errors.Is(err, ErrCandidatePool):
			utils.RespondWithError(w, http.StatusServiceUnavailable, "Recommendations temporarily unavailable")
		default:
			utils.RespondWithError(w, http.StatusInternalServerError, "Failed to get recommendations")
		}
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, recommendations)
}

// GetMatchFactors serves the explainability endpoint: the per-factor
// breakdown for one (viewer, candidate) pair.
func (h *Handler) GetMatchFactors(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(int64)

	vars := mux.Vars(r)
	candidateID, err := strconv.ParseInt(vars["userId"], 10, 64)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	score, err := h.service.GetMatchFactors(r.Context(), userID, candidateID)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, err.Error())
			return
		}
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to compute match factors")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, score)
}

func (h *Handler) GetMatches(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(int64)

	matches, err := h.service.GetMatches(r.Context(), userID)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to get matches")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, matches)
}

func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	h.hub.ServeWS(w, r)
}
