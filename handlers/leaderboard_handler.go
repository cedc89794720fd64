package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"trailQuestAPI/internal/types/leaderboard"
	"trailQuestAPI/middleware"
	"trailQuestAPI/services"
)

type LeaderboardHandler struct {
	leaderboardService *services.LeaderboardService
}

func NewLeaderboardHandler(leaderboardService *services.LeaderboardService) *LeaderboardHandler {
	return &LeaderboardHandler{
		leaderboardService: leaderboardService,
	}
}

// GetLeaderboard ranks users by ?metric= over ?window=, defaulting to
// all-time distance.
func (h *LeaderboardHandler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	metric := leaderboard.Metric(r.URL.Query().Get("metric"))
	if metric == "" {
		metric = leaderboard.MetricDistance
	}
	window := leaderboard.TimeWindow(r.URL.Query().Get("window"))
	if window == "" {
		window = leaderboard.WindowAllTime
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = parsed
	}

	board, err := h.leaderboardService.GetLeaderboard(ctx, clerkID, metric, window, limit)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, board)
}
