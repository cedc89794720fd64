package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"trailQuestAPI/internal/progression"
	"trailQuestAPI/middleware"
	"trailQuestAPI/services"
)

type ChallengeHandler struct {
	challengeService *services.ChallengeService
}

func NewChallengeHandler(challengeService *services.ChallengeService) *ChallengeHandler {
	return &ChallengeHandler{
		challengeService: challengeService,
	}
}

func (h *ChallengeHandler) GetChallenges(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	challenges, err := h.challengeService.GetChallenges(ctx)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, challenges)
}

func (h *ChallengeHandler) GetChallenge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	challengeID, ok := challengeIDFromRequest(w, r)
	if !ok {
		return
	}

	ch, err := h.challengeService.GetChallenge(ctx, challengeID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, ch)
}

func (h *ChallengeHandler) JoinChallenge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}
	challengeID, ok := challengeIDFromRequest(w, r)
	if !ok {
		return
	}

	p, err := h.challengeService.JoinChallenge(ctx, clerkID, challengeID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, p)
}

func (h *ChallengeHandler) LogActivity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}
	challengeID, ok := challengeIDFromRequest(w, r)
	if !ok {
		return
	}

	var req services.LogActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.challengeService.LogActivity(ctx, clerkID, challengeID, &req)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

func (h *ChallengeHandler) RestartChallenge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}
	challengeID, ok := challengeIDFromRequest(w, r)
	if !ok {
		return
	}

	p, err := h.challengeService.RestartChallenge(ctx, clerkID, challengeID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, p)
}

func (h *ChallengeHandler) AbandonChallenge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}
	challengeID, ok := challengeIDFromRequest(w, r)
	if !ok {
		return
	}

	p, err := h.challengeService.AbandonChallenge(ctx, clerkID, challengeID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, p)
}

func (h *ChallengeHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	filter := services.ProgressFilter(r.URL.Query().Get("filter"))
	if filter == "" {
		filter = services.FilterAll
	}

	report, err := h.challengeService.GetProgress(ctx, clerkID, filter)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, report)
}

func challengeIDFromRequest(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	challengeID, err := uuid.Parse(mux.Vars(r)["challengeID"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid challenge id")
		return uuid.Nil, false
	}
	return challengeID, true
}

// respondServiceError maps the engine's typed outcomes to HTTP statuses. A
// strict-mode streak break is a modeled outcome, not a fault: it comes back
// 200 with the FAILED progress snapshot so clients can tell "challenge over"
// from "try again".
func respondServiceError(w http.ResponseWriter, err error) {
	var failed *progression.ChallengeFailedError
	var invalidState *progression.InvalidStateError
	switch {
	case errors.As(err, &failed):
		respondWithJSON(w, http.StatusOK, map[string]any{
			"status":   "failed",
			"message":  failed.Error(),
			"progress": failed.Progress,
		})
	case errors.As(err, &invalidState):
		respondWithError(w, http.StatusConflict, invalidState.Error())
	case errors.Is(err, progression.ErrNotJoined):
		respondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, progression.ErrNotFound):
		respondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, progression.ErrInvalidInput):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, progression.ErrConflict):
		respondWithError(w, http.StatusConflict, "Temporary write contention, please retry")
	default:
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// Helper functions
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}
