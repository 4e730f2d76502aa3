package rating

import (
	"github.com/velotype/velotype/server/types"
)

// PlacementGameOf converts one of a player's match rows into a calibration
// game. ok is false when the row cannot calibrate: draws, abandoned matches
// and matches the player never submitted a round in.
func PlacementGameOf(self *types.MatchPlayer, opponentRating *int) (PlacementGame, bool) {
	if self == nil || self.Wpm == nil {
		return PlacementGame{}, false
	}
	if self.Result != types.ResultWin && self.Result != types.ResultLoss {
		return PlacementGame{}, false
	}
	g := PlacementGame{
		Won:            self.Result == types.ResultWin,
		Wpm:            *self.Wpm,
		OpponentRating: opponentRating,
	}
	if self.Accuracy != nil {
		g.Accuracy = *self.Accuracy
	}
	if self.Consistency != nil {
		g.Consistency = *self.Consistency
	}
	return g, true
}

// QualifyingGames extracts up to limit calibration games from match history
// rows. Input comes newest-first as the gateway returns it; output is
// oldest-first as the calibration math consumes it. The opponent rating of
// each game is the opponent's main rating going into that match.
func QualifyingGames(records []*types.MatchRecord, userID string, limit int) []PlacementGame {
	games := make([]PlacementGame, 0, limit)
	for _, rec := range records {
		if len(games) == limit {
			break
		}
		if rec.Match.Status != types.MatchCompleted {
			continue
		}
		self, opp := rec.Player(userID)
		if opp == nil {
			continue
		}
		if g, ok := PlacementGameOf(self, opp.RatingBefore); ok {
			games = append(games, g)
		}
	}
	for i, j := 0, len(games)-1; i < j; i, j = i+1, j-1 {
		games[i], games[j] = games[j], games[i]
	}
	return games
}

// RecentGames converts completed match history rows into overperformance
// accelerator entries. Rows without submissions keep nil metrics and are
// skipped by the accelerator itself.
func RecentGames(records []*types.MatchRecord, userID string) []HistoryGame {
	history := make([]HistoryGame, 0, len(records))
	for _, rec := range records {
		if rec.Match.Status != types.MatchCompleted {
			continue
		}
		self, _ := rec.Player(userID)
		if self == nil {
			continue
		}
		history = append(history, HistoryGame{Wpm: self.Wpm, Accuracy: self.Accuracy})
	}
	return history
}
