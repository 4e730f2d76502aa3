package rpc

import (
	"net/http"

	"github.com/pkg/errors"
	"github.com/velotype/velotype/config/params"
	"github.com/velotype/velotype/server/core/rating"
	"github.com/velotype/velotype/server/core/scoring"
	"github.com/velotype/velotype/server/daily"
	veloDB "github.com/velotype/velotype/server/db"
)

type leaderboardEntry struct {
	Rank              int    `json:"rank"`
	UserID            string `json:"userId"`
	Username          string `json:"username"`
	Rating            int    `json:"rating"`
	CompetitiveRating *int   `json:"competitiveRating,omitempty"`
	Tier              string `json:"tier"`
}

type leaderboardResponse struct {
	Entries []leaderboardEntry `json:"entries"`
}

func (s *Service) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	db, ok := s.database(w)
	if !ok {
		return
	}
	size := params.VeloTypeConfig().LeaderboardSize
	limit := queryLimit(r, size, size)
	rows, err := db.Leaderboard(r.Context(), limit)
	if err != nil {
		handleError(w, "internal error", http.StatusInternalServerError)
		return
	}
	entries := make([]leaderboardEntry, 0, len(rows))
	for _, row := range rows {
		if row.Rating == nil {
			continue
		}
		user, err := db.User(r.Context(), row.UserID)
		if err != nil {
			// A rating row without its account row should not exist;
			// skip it rather than fail the whole board.
			log.WithField("userId", row.UserID).Warn("Ladder row without account")
			continue
		}
		entries = append(entries, leaderboardEntry{
			Rank:              len(entries) + 1,
			UserID:            row.UserID,
			Username:          user.Username,
			Rating:            *row.Rating,
			CompetitiveRating: row.CompetitiveRating,
			Tier:              rating.TierName(rating.TierIndex(*row.Rating)),
		})
	}
	writeJSON(w, http.StatusOK, &leaderboardResponse{Entries: entries})
}

func (s *Service) handleDaily(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.dailyService(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, svc.Challenge())
}

type dailySubmitRequest struct {
	Typed           string `json:"typed"`
	ElapsedMs       int64  `json:"elapsedMs"`
	Samples         []int  `json:"samples,omitempty"`
	TotalErrors     *int   `json:"totalErrors,omitempty"`
	TotalKeystrokes *int   `json:"totalKeystrokes,omitempty"`
}

func (s *Service) handleDailySubmit(w http.ResponseWriter, r *http.Request) {
	ident, ok := s.authed(w, r)
	if !ok {
		return
	}
	svc, ok := s.dailyService(w)
	if !ok {
		return
	}
	var req dailySubmitRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ElapsedMs < 1 {
		handleError(w, "invalid payload", http.StatusBadRequest)
		return
	}
	score, err := svc.Submit(r.Context(), ident.ID, ident.Username, scoring.Submission{
		Typed:           req.Typed,
		ElapsedMs:       req.ElapsedMs,
		Samples:         req.Samples,
		TotalErrors:     req.TotalErrors,
		TotalKeystrokes: req.TotalKeystrokes,
	})
	if err != nil {
		switch {
		case errors.Is(err, veloDB.ErrDuplicateDailyScore):
			handleError(w, "already submitted today", http.StatusConflict)
		case errors.Is(err, daily.ErrNoDatabase):
			handleError(w, "database unavailable", http.StatusServiceUnavailable)
		default:
			log.WithError(err).Error("Could not record daily score")
			handleError(w, "internal error", http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusOK, score)
}

type dailyBoardEntry struct {
	Rank     int     `json:"rank"`
	UserID   string  `json:"userId"`
	Username string  `json:"username"`
	Wpm      float64 `json:"wpm"`
	Accuracy float64 `json:"accuracy"`
	Score    float64 `json:"score"`
}

type dailyBoardResponse struct {
	Day     string            `json:"day"`
	Entries []dailyBoardEntry `json:"entries"`
	// Rank is the caller's own standing, present only for authenticated
	// callers who played that day.
	Rank int `json:"rank,omitempty"`
}

func (s *Service) handleDailyLeaderboard(w http.ResponseWriter, r *http.Request) {
	ident, ok := s.caller(w, r)
	if !ok {
		return
	}
	svc, ok := s.dailyService(w)
	if !ok {
		return
	}
	day, err := svc.ParseDay(r.URL.Query().Get("day"))
	if err != nil {
		handleError(w, "malformed day", http.StatusBadRequest)
		return
	}
	scores, err := svc.Standings(r.Context(), day)
	if err != nil {
		if errors.Is(err, daily.ErrNoDatabase) {
			handleError(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		handleError(w, "internal error", http.StatusInternalServerError)
		return
	}
	resp := &dailyBoardResponse{Day: day, Entries: make([]dailyBoardEntry, 0, len(scores))}
	for i, row := range scores {
		resp.Entries = append(resp.Entries, dailyBoardEntry{
			Rank:     i + 1,
			UserID:   row.UserID,
			Username: row.Username,
			Wpm:      row.Wpm,
			Accuracy: row.Accuracy,
			Score:    row.Score,
		})
	}
	if ident != nil {
		rank, err := svc.Rank(r.Context(), day, ident.ID)
		if err == nil {
			resp.Rank = rank
		} else if !errors.Is(err, veloDB.ErrNotFound) {
			handleError(w, "internal error", http.StatusInternalServerError)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
