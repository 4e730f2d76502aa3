// Package types defines the persisted data model of the match core: accounts,
// ladder ratings, match results and daily challenge scores. The persistence
// gateway stores these as snappy-compressed JSON; the HTTP layer reuses the
// same shapes for its responses.
package types

import (
	"encoding/json"
	"time"
)

// User is one account row. Emails never land on disk in plaintext: only the
// HMAC lookup hash and an AES-GCM blob are stored.
type User struct {
	ID           string          `json:"id"`
	Username     string          `json:"username"`
	EmailHash    string          `json:"emailHash,omitempty"`
	EmailCipher  []byte          `json:"emailCipher,omitempty"`
	PasswordHash []byte          `json:"passwordHash,omitempty"`
	Settings     json.RawMessage `json:"settings,omitempty"`
	Created      time.Time       `json:"created"`
}

// Rating is the 1:1 ladder row of a user. Rating is nil while the account is
// still in placement. CompetitiveRating is non-nil only while the main rating
// sits at or above the Apex threshold and the player holds a leaderboard slot.
type Rating struct {
	UserID               string    `json:"userId"`
	Rating               *int      `json:"rating"`
	CompetitiveRating    *int      `json:"competitiveRating"`
	PlacementGamesPlayed int       `json:"placementGamesPlayed"`
	Updated              time.Time `json:"updated"`
}

// MatchStatus of a persisted match row.
type MatchStatus string

const (
	// MatchPending is set between pairing and the first join.
	MatchPending MatchStatus = "pending"
	// MatchInProgress is set once the room goes live.
	MatchInProgress MatchStatus = "in-progress"
	// MatchCompleted is a finalised match with persisted outcomes.
	MatchCompleted MatchStatus = "completed"
	// MatchAbandoned marks matches that could not be finalised durably.
	MatchAbandoned MatchStatus = "abandoned"
)

// MatchResult of one player's side.
type MatchResult string

const (
	// ResultWin ...
	ResultWin MatchResult = "win"
	// ResultLoss ...
	ResultLoss MatchResult = "loss"
	// ResultDraw ...
	ResultDraw MatchResult = "draw"
)

// Match is the per-match row shared by both players.
type Match struct {
	ID               string      `json:"id"`
	Seed             string      `json:"seed"`
	Mode             string      `json:"mode"`
	Status           MatchStatus `json:"status"`
	RoundTimeSeconds int         `json:"roundTimeSeconds"`
	RoundsPlayed     int         `json:"roundsPlayed"`
	WinnerID         *string     `json:"winnerId,omitempty"`
	EndReason        string      `json:"endReason,omitempty"`
	Created          time.Time   `json:"created"`
	Completed        *time.Time  `json:"completed,omitempty"`
}

// MatchPlayer is one player's side of a match, keyed (matchId, userId).
// Metric pointers stay nil when the match ended without a single submission
// from this player. Invariants: damageDealt mirrors the opponent's
// damageTaken; results are complementary or both draw; ratingAfter =
// ratingBefore + ratingDelta when ratingBefore is non-nil.
type MatchPlayer struct {
	MatchID         string      `json:"matchId"`
	UserID          string      `json:"userId"`
	Username        string      `json:"username"`
	Result          MatchResult `json:"result,omitempty"`
	Wpm             *float64    `json:"wpm,omitempty"`
	RawWpm          *float64    `json:"rawWpm,omitempty"`
	Accuracy        *float64    `json:"accuracy,omitempty"`
	Consistency     *float64    `json:"consistency,omitempty"`
	Score           *float64    `json:"score,omitempty"`
	RoundsWon       int         `json:"roundsWon"`
	DamageDealt     int         `json:"damageDealt"`
	DamageTaken     int         `json:"damageTaken"`
	CorrectChars    int         `json:"correctChars"`
	TotalTyped      int         `json:"totalTyped"`
	Errors          int         `json:"errors"`
	HpRemaining     int         `json:"hpRemaining"`
	Forfeited       bool        `json:"forfeited,omitempty"`
	RatingBefore    *int        `json:"ratingBefore,omitempty"`
	RatingAfter     *int        `json:"ratingAfter,omitempty"`
	RatingDelta     *int        `json:"ratingDelta,omitempty"`
	ProgressSamples []int       `json:"progressSamples,omitempty"`
}

// MatchRecord bundles a match row with its player rows for reads and for the
// single-transaction match write.
type MatchRecord struct {
	Match   *Match         `json:"match"`
	Players []*MatchPlayer `json:"players"`
}

// Player splits the record into one user's row and the opponent row. Either
// may be nil when the record does not carry that side.
func (r *MatchRecord) Player(userID string) (self, opponent *MatchPlayer) {
	for _, p := range r.Players {
		if p.UserID == userID {
			self = p
		} else {
			opponent = p
		}
	}
	return self, opponent
}

// DailyScore is one daily-challenge attempt, unique per (userId, day).
type DailyScore struct {
	UserID       string    `json:"userId"`
	Username     string    `json:"username"`
	Day          string    `json:"day"`
	Seed         string    `json:"seed"`
	Wpm          float64   `json:"wpm"`
	RawWpm       float64   `json:"rawWpm"`
	Accuracy     float64   `json:"accuracy"`
	Consistency  float64   `json:"consistency"`
	Score        float64   `json:"score"`
	CorrectChars int       `json:"correctChars"`
	TotalTyped   int       `json:"totalTyped"`
	Errors       int       `json:"errors"`
	Created      time.Time `json:"created"`
}

// PlacementCount carries one player's new placement counter.
type PlacementCount struct {
	UserID string `json:"userId"`
	Games  int    `json:"games"`
}

// PlacementSeed carries one player's freshly calculated initial rating.
type PlacementSeed struct {
	UserID        string `json:"userId"`
	InitialRating int    `json:"initialRating"`
}

// MatchOutcome is everything match finalisation persists. The gateway writes
// it in one transaction.
type MatchOutcome struct {
	Record          *MatchRecord
	Ratings         []*Rating
	PlacementCounts []PlacementCount
	PlacementSeeds  []PlacementSeed
}
