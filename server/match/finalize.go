package match

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/velotype/velotype/config/params"
	"github.com/velotype/velotype/server/core/rating"
	"github.com/velotype/velotype/server/core/scoring"
	veloDB "github.com/velotype/velotype/server/db"
	"github.com/velotype/velotype/server/db/iface"
	"github.com/velotype/velotype/server/types"
	"github.com/velotype/velotype/server/wire"
)

const (
	dbTimeout = 10 * time.Second
	// historyScanLimit bounds the match-history read that backfills
	// placement calibration; non-qualifying rows (draws, abandoned
	// matches) are skipped, so the scan reads past the window size.
	historyScanLimit = 20
)

// ratingChanges is everything rating resolution produced for one match.
type ratingChanges struct {
	rows   []*types.Rating
	counts []types.PlacementCount
	seeds  []types.PlacementSeed
	frame  map[string]wire.RatingChange
}

// finalize ends the match exactly once: it freezes the runtime state, builds
// the persisted rows, resolves ratings, commits everything in one
// transaction, notifies connected participants and releases the room.
// Blocking on the database here is safe; the room is already terminal and
// re-entry is guarded.
func (r *Room) finalize(endReason, winnerID, forfeitedID string, abandoned bool) {
	if r.finalized {
		return
	}
	r.finalized = true
	r.abandoned = abandoned
	r.phase = phaseComplete
	r.timerSeq++
	for uid, t := range r.graceTimers {
		t.Stop()
		delete(r.graceTimers, uid)
	}

	now := r.now()
	record := r.buildRecord(now, endReason, winnerID, forfeitedID, abandoned)
	complete := &wire.MatchComplete{
		MatchID:   r.cfg.MatchID,
		EndReason: endReason,
		Forfeited: forfeitedID,
		Hp:        r.hpSnapshot(),
		RoundWins: r.winsSnapshot(),
	}
	if winnerID != "" {
		complete.WinnerID = &winnerID
	}

	if db := r.svc.db(); db != nil {
		ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
		defer cancel()
		outcome := &types.MatchOutcome{Record: record}
		var resolveErr error
		if !abandoned && r.cfg.Mode == ModeRanked {
			changes, err := r.resolveRatings(ctx, db, record, forfeitedID)
			if err != nil {
				resolveErr = err
			} else {
				outcome.Ratings = changes.rows
				outcome.PlacementCounts = changes.counts
				outcome.PlacementSeeds = changes.seeds
				complete.Ratings = changes.frame
			}
		}
		var persistErr error
		if resolveErr == nil {
			persistErr = db.SaveMatchOutcome(ctx, outcome)
		}
		if resolveErr != nil || persistErr != nil {
			err := resolveErr
			if err == nil {
				err = persistErr
			}
			// Operational incident: the match ran to completion but its
			// outcome could not be committed. Clients are told, the ladder
			// stays untouched and the row keeps its pre-final status.
			r.log.WithError(err).WithField("endReason", endReason).Error("Could not persist match outcome")
			record.Match.Status = types.MatchAbandoned
			complete.Ratings = nil
			matchPersistFailures.Inc()
			r.broadcast(wire.MsgError, &wire.ErrorMessage{Message: "internal error"})
		}
	}

	matchesCompletedTotal.WithLabelValues(endReason).Inc()
	r.broadcast(wire.MsgMatchComplete, complete)
	r.svc.removeRoom(r.cfg.MatchID)
	r.log.WithFields(map[string]interface{}{
		"endReason": endReason,
		"rounds":    r.resolvedRounds,
		"winner":    winnerID,
	}).Info("Match finalized")
}

// buildRecord freezes the runtime state into the persisted match and player
// rows. Per-match metrics are averages over resolved rounds; a player who
// never submitted keeps nil metric pointers.
func (r *Room) buildRecord(now time.Time, endReason, winnerID, forfeitedID string, abandoned bool) *types.MatchRecord {
	status := types.MatchCompleted
	if abandoned {
		status = types.MatchAbandoned
	}
	m := &types.Match{
		ID:               r.cfg.MatchID,
		Seed:             r.cfg.Seed,
		Mode:             r.cfg.Mode,
		Status:           status,
		RoundTimeSeconds: r.cfg.RoundTimeSeconds,
		RoundsPlayed:     r.resolvedRounds,
		EndReason:        endReason,
		Created:          r.cfg.CreatedAt,
		Completed:        &now,
	}
	if winnerID != "" {
		m.WinnerID = &winnerID
	}
	record := &types.MatchRecord{Match: m}
	for _, p := range r.cfg.Players {
		agg := r.aggregates[p.UserID]
		player := &types.MatchPlayer{
			MatchID:         r.cfg.MatchID,
			UserID:          p.UserID,
			Username:        p.Username,
			RoundsWon:       r.roundWins[p.UserID],
			DamageDealt:     agg.damageDealt,
			DamageTaken:     agg.damageTaken,
			CorrectChars:    agg.correctChars,
			TotalTyped:      agg.totalTyped,
			Errors:          agg.errors,
			HpRemaining:     r.hp[p.UserID],
			Forfeited:       p.UserID == forfeitedID,
			ProgressSamples: agg.samples,
		}
		if !abandoned {
			switch {
			case winnerID == "":
				player.Result = types.ResultDraw
			case winnerID == p.UserID:
				player.Result = types.ResultWin
			default:
				player.Result = types.ResultLoss
			}
		}
		if agg.submittedRounds > 0 {
			player.Wpm = floatPtr(mean(agg.wpm))
			player.RawWpm = floatPtr(mean(agg.rawWpm))
			player.Accuracy = floatPtr(mean(agg.accuracy))
			player.Consistency = floatPtr(mean(agg.consistency))
			player.Score = floatPtr(mean(agg.score))
		}
		record.Players = append(record.Players, player)
	}
	return record
}

// resolveRatings applies the ladder policy to both players: calibration
// counters and seeds for unranked players, Elo plus the overperformance
// accelerator and the Apex competitive lifecycle for ranked ones. Reads use
// the pre-match ladder; the produced rows commit atomically with the match.
func (r *Room) resolveRatings(ctx context.Context, db iface.Database, record *types.MatchRecord, forfeitedID string) (*ratingChanges, error) {
	c := params.VeloTypeConfig()
	changes := &ratingChanges{frame: make(map[string]wire.RatingChange, 2)}

	rows := make(map[string]*types.Rating, 2)
	for _, p := range r.cfg.Players {
		row, err := db.Rating(ctx, p.UserID)
		if err != nil {
			if !errors.Is(err, veloDB.ErrNotFound) {
				return nil, errors.Wrap(err, "could not read ladder row")
			}
			row = &types.Rating{UserID: p.UserID}
		}
		rows[p.UserID] = row
	}

	for i, p := range r.cfg.Players {
		self := record.Players[i]
		oppInfo := r.cfg.Players[1-i]
		oppRow := rows[oppInfo.UserID]
		row := rows[p.UserID]

		if row.Rating == nil {
			games := row.PlacementGamesPlayed + 1
			if games > c.PlacementRequired {
				games = c.PlacementRequired
			}
			changes.counts = append(changes.counts, types.PlacementCount{UserID: p.UserID, Games: games})
			if games == c.PlacementRequired {
				seedGames, err := r.placementHistory(ctx, db, p.UserID, self, oppRow.Rating)
				if err != nil {
					return nil, err
				}
				changes.seeds = append(changes.seeds, types.PlacementSeed{
					UserID:        p.UserID,
					InitialRating: rating.CalculatePlacementRating(seedGames),
				})
			}
			continue
		}

		before := *row.Rating
		outcome := scoring.Loss
		switch self.Result {
		case types.ResultWin:
			outcome = scoring.Win
		case types.ResultDraw:
			outcome = scoring.Draw
		}
		oppRating := c.BasePlacementRating
		if oppRow.Rating != nil {
			oppRating = *oppRow.Rating
		}
		margin := scoreOf(self) - scoreOf(record.Players[1-i])
		forfeited := p.UserID == forfeitedID
		delta := scoring.EloDelta(before, oppRating, outcome, margin, r.hp[p.UserID], forfeited)
		newRating := before + delta
		if newRating < 0 {
			newRating = 0
			delta = newRating - before
		}

		history, err := r.overperfHistory(ctx, db, p.UserID, self)
		if err != nil {
			return nil, err
		}
		if promoted, ok := rating.ApplyOverperformance(newRating, history); ok {
			delta += promoted - newRating
			newRating = promoted
		}

		above, err := db.CountRatingsAbove(ctx, newRating)
		if err != nil {
			return nil, errors.Wrap(err, "could not compute ladder position")
		}
		comp := rating.ResolveCompetitive(newRating, above+1, row.CompetitiveRating, delta)

		after := newRating
		changes.rows = append(changes.rows, &types.Rating{
			UserID:               p.UserID,
			Rating:               &after,
			CompetitiveRating:    comp,
			PlacementGamesPlayed: row.PlacementGamesPlayed,
			Updated:              *record.Match.Completed,
		})
		b, d := before, delta
		self.RatingBefore = &b
		self.RatingAfter = &after
		self.RatingDelta = &d
		changes.frame[p.UserID] = wire.RatingChange{Before: &b, After: &after, Delta: &d}
	}
	return changes, nil
}

// placementHistory collects the last qualifying calibration games in
// chronological order, the just-finished match included. The current match
// is not persisted yet, so its game is appended in memory.
func (r *Room) placementHistory(ctx context.Context, db iface.Database, uid string, self *types.MatchPlayer, currentOppRating *int) ([]rating.PlacementGame, error) {
	c := params.VeloTypeConfig()
	limit := c.PlacementRequired
	current, ok := rating.PlacementGameOf(self, currentOppRating)
	if ok {
		limit--
	}
	records, err := db.UserMatches(ctx, uid, historyScanLimit)
	if err != nil {
		return nil, errors.Wrap(err, "could not read match history")
	}
	games := rating.QualifyingGames(records, uid, limit)
	if ok {
		games = append(games, current)
	}
	return games, nil
}

// overperfHistory is the recent-game window feeding the overperformance
// accelerator, the just-finished match included.
func (r *Room) overperfHistory(ctx context.Context, db iface.Database, uid string, self *types.MatchPlayer) ([]rating.HistoryGame, error) {
	c := params.VeloTypeConfig()
	records, err := db.UserMatches(ctx, uid, c.OverperfWindow-1)
	if err != nil {
		return nil, errors.Wrap(err, "could not read match history")
	}
	history := make([]rating.HistoryGame, 0, c.OverperfWindow)
	history = append(history, rating.HistoryGame{Wpm: self.Wpm, Accuracy: self.Accuracy})
	return append(history, rating.RecentGames(records, uid)...), nil
}

func scoreOf(p *types.MatchPlayer) float64 {
	if p.Score != nil {
		return *p.Score
	}
	return 0
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func floatPtr(v float64) *float64 {
	return &v
}
