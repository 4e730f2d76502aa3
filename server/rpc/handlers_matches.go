package rpc

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	veloDB "github.com/velotype/velotype/server/db"
	"github.com/velotype/velotype/server/types"
)

const (
	defaultMatchPageSize = 20
	maxMatchPageSize     = 100
)

type opponentSummary struct {
	UserID   string            `json:"userId"`
	Username string            `json:"username"`
	Result   types.MatchResult `json:"result,omitempty"`
	Wpm      *float64          `json:"wpm,omitempty"`
}

// matchSummary is the caller-centric history row: their own result and
// headline metrics plus a thin view of the opponent.
type matchSummary struct {
	MatchID     string            `json:"matchId"`
	Mode        string            `json:"mode"`
	Status      types.MatchStatus `json:"status"`
	EndReason   string            `json:"endReason,omitempty"`
	Created     time.Time         `json:"created"`
	Completed   *time.Time        `json:"completed,omitempty"`
	Result      types.MatchResult `json:"result,omitempty"`
	Wpm         *float64          `json:"wpm,omitempty"`
	Accuracy    *float64          `json:"accuracy,omitempty"`
	RatingDelta *int              `json:"ratingDelta,omitempty"`
	Opponent    *opponentSummary  `json:"opponent,omitempty"`
}

type matchListResponse struct {
	Matches []matchSummary `json:"matches"`
}

func (s *Service) handleMatches(w http.ResponseWriter, r *http.Request) {
	ident, ok := s.authed(w, r)
	if !ok {
		return
	}
	db, ok := s.database(w)
	if !ok {
		return
	}
	limit := queryLimit(r, defaultMatchPageSize, maxMatchPageSize)
	records, err := db.UserMatches(r.Context(), ident.ID, limit)
	if err != nil {
		handleError(w, "internal error", http.StatusInternalServerError)
		return
	}
	matches := make([]matchSummary, 0, len(records))
	for _, rec := range records {
		if rec.Match == nil {
			continue
		}
		self, opp := rec.Player(ident.ID)
		if self == nil {
			continue
		}
		sum := matchSummary{
			MatchID:     rec.Match.ID,
			Mode:        rec.Match.Mode,
			Status:      rec.Match.Status,
			EndReason:   rec.Match.EndReason,
			Created:     rec.Match.Created,
			Completed:   rec.Match.Completed,
			Result:      self.Result,
			Wpm:         self.Wpm,
			Accuracy:    self.Accuracy,
			RatingDelta: self.RatingDelta,
		}
		if opp != nil {
			sum.Opponent = &opponentSummary{
				UserID:   opp.UserID,
				Username: opp.Username,
				Result:   opp.Result,
				Wpm:      opp.Wpm,
			}
		}
		matches = append(matches, sum)
	}
	writeJSON(w, http.StatusOK, &matchListResponse{Matches: matches})
}

// handleMatch serves the full record of one match. Only its two participants
// may read it; everyone else gets the same 404 as for an unknown id.
func (s *Service) handleMatch(w http.ResponseWriter, r *http.Request) {
	ident, ok := s.authed(w, r)
	if !ok {
		return
	}
	db, ok := s.database(w)
	if !ok {
		return
	}
	rec, err := db.Match(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, veloDB.ErrNotFound) {
			handleError(w, "match not found", http.StatusNotFound)
			return
		}
		handleError(w, "internal error", http.StatusInternalServerError)
		return
	}
	if self, _ := rec.Player(ident.ID); self == nil {
		handleError(w, "match not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
