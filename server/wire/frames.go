// Package wire defines the framed JSON protocol spoken over a match session:
// a tagged envelope with one strict payload schema per frame type. Dynamic
// shapes stop at this boundary; everything past it is typed.
package wire

import "encoding/json"

// Client frame types.
const (
	MsgJoin     = "join"
	MsgProgress = "progress"
	MsgResult   = "result"
	MsgForfeit  = "forfeit"
	MsgDrawVote = "draw_vote"
	MsgPing     = "ping"
	MsgLeave    = "leave"
)

// Server frame types.
const (
	MsgWelcome          = "welcome"
	MsgQueued           = "queued"
	MsgMatchFound       = "MATCH_FOUND"
	MsgJoined           = "joined"
	MsgOpponentJoined   = "opponent_joined"
	MsgOpponentLeft     = "opponent_left"
	MsgOpponentProgress = "opponent_progress"
	MsgOpponentFinished = "opponent_finished"
	MsgResultReceived   = "result_received"
	MsgRoundEnd         = "round_end"
	MsgMatchComplete    = "match_complete"
	MsgStateRecovery    = "match_state_recovery"
	MsgPong             = "pong"
	MsgError            = "error"
)

// Draw vote values.
const (
	VoteDraw     = "draw"
	VoteContinue = "continue"
)

// Session close codes.
const (
	// CloseNormal ends a session cleanly (logout, superseded socket).
	CloseNormal = 1000
	// ClosePolicy ends a session for a policy violation (invalid token).
	ClosePolicy = 1008
	// CloseInternal ends a session after an unrecoverable server error.
	CloseInternal = 1011
)

// Envelope is the outer shape of every frame in both directions.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Join binds a session to a match room, or to the matchmaking queue when
// MatchID is empty.
type Join struct {
	MatchID string `json:"matchId"`
	Token   string `json:"token"`
}

// Progress is a live typing snapshot, forwarded to the opponent.
type Progress struct {
	ProgressIndex int   `json:"progressIndex"`
	TypedLength   int   `json:"typedLength"`
	MistakesCount int   `json:"mistakesCount"`
	ElapsedMs     int64 `json:"elapsedMs"`
}

// Result is a round submission. Elapsed time is server-authoritative and
// never read from the client. TotalErrors and TotalKeystrokes are optional
// keystroke-level telemetry for the accuracy calculation.
type Result struct {
	Typed           string `json:"typed"`
	Samples         []int  `json:"samples"`
	TotalErrors     *int   `json:"totalErrors,omitempty"`
	TotalKeystrokes *int   `json:"totalKeystrokes,omitempty"`
}

// Forfeit concedes the match.
type Forfeit struct{}

// DrawVote casts a vote during an open draw window.
type DrawVote struct {
	Vote string `json:"vote"`
}

// Ping is a heartbeat; the server echoes it as a Pong immediately.
type Ping struct {
	ClientTs int64 `json:"clientTs"`
}

// Leave exits the matchmaking queue.
type Leave struct{}

// Welcome greets a freshly opened session.
type Welcome struct {
	ServerTime int64 `json:"serverTime"`
}

// Queued acks entry into the matchmaking queue.
type Queued struct {
	EnqueuedAt int64 `json:"enqueuedAt"`
	Rating     int   `json:"rating"`
}

// MatchFoundPlayer identifies one side of a fresh pairing.
type MatchFoundPlayer struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// MatchFound carries the full client-visible match config. The client derives
// every round text locally from the seed.
type MatchFound struct {
	MatchID          string             `json:"matchId"`
	Seed             string             `json:"seed"`
	Mode             string             `json:"mode"`
	Players          []MatchFoundPlayer `json:"players"`
	Ratings          map[string]int     `json:"ratings,omitempty"`
	RoundTimeSeconds int                `json:"roundTimeSeconds"`
	TextLength       int                `json:"textLength"`
	Difficulty       string             `json:"difficulty"`
	Punctuation      bool               `json:"punctuation"`
	StartAt          int64              `json:"startAt"`
	MaxRounds        int                `json:"maxRounds"`
	PrepSeconds      int                `json:"prepSeconds"`
	CountdownSeconds int                `json:"countdownSeconds"`
	BreakSeconds     int                `json:"breakSeconds"`
}

// Joined acks a join into a match room.
type Joined struct {
	MatchID    string `json:"matchId"`
	UserID     string `json:"userId"`
	ServerTime int64  `json:"serverTime"`
}

// OpponentJoined notifies that the other participant is in the room.
type OpponentJoined struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// OpponentLeft notifies that the other participant disconnected and the
// reconnect grace timer started.
type OpponentLeft struct {
	UserID  string `json:"userId"`
	GraceMs uint64 `json:"graceMs"`
}

// OpponentProgress forwards the opponent's live typing snapshot.
type OpponentProgress struct {
	UserID string `json:"userId"`
	Progress
}

// OpponentFinished notifies that the opponent submitted the current round.
type OpponentFinished struct {
	UserID      string `json:"userId"`
	RoundNumber int    `json:"roundNumber"`
}

// ResultReceived acks a round submission.
type ResultReceived struct {
	RoundNumber int `json:"roundNumber"`
}

// RoundEnd reports a resolved round to both sides. Winner is a user id, or
// "draw" for an even round. NextRoundStartAt is zero on the final round.
type RoundEnd struct {
	RoundNumber        int                `json:"roundNumber"`
	Winner             string             `json:"winner"`
	Hp                 map[string]int     `json:"hp"`
	RoundWins          map[string]int     `json:"roundWins"`
	Scores             map[string]float64 `json:"scores"`
	Damage             map[string]int     `json:"damage"`
	Wpm                map[string]float64 `json:"wpm"`
	Accuracy           map[string]float64 `json:"accuracy"`
	OvertimeActive     bool               `json:"overtimeActive"`
	DrawWindowOpen     bool               `json:"drawWindowOpen"`
	DrawWindowClosesAt int64              `json:"drawWindowClosesAt,omitempty"`
	NextRoundStartAt   int64              `json:"nextRoundStartAt,omitempty"`
}

// RatingChange is one player's rating movement in a match_complete frame.
type RatingChange struct {
	Before *int `json:"before"`
	After  *int `json:"after"`
	Delta  *int `json:"delta"`
}

// MatchComplete reports the final outcome to any connected participants.
type MatchComplete struct {
	MatchID   string                  `json:"matchId"`
	WinnerID  *string                 `json:"winnerId"`
	EndReason string                  `json:"endReason"`
	Forfeited string                  `json:"forfeited,omitempty"`
	Hp        map[string]int          `json:"hp"`
	RoundWins map[string]int          `json:"roundWins"`
	Ratings   map[string]RatingChange `json:"ratings,omitempty"`
}

// StateRecovery resynchronises a reconnecting participant mid-match.
type StateRecovery struct {
	ServerTime        int64          `json:"serverTime"`
	MatchID           string         `json:"matchId"`
	Seed              string         `json:"seed"`
	Mode              string         `json:"mode"`
	RoundNumber       int            `json:"roundNumber"`
	RoundStartAt      int64          `json:"roundStartAt"`
	RoundTimeSeconds  int            `json:"roundTimeSeconds"`
	MaxRounds         int            `json:"maxRounds"`
	RoundWins         map[string]int `json:"roundWins"`
	OvertimeActive    bool           `json:"overtimeActive"`
	DrawWindowOpen    bool           `json:"drawWindowOpen"`
	Hp                map[string]int `json:"hp"`
	OpponentProgress  *Progress      `json:"opponentProgress,omitempty"`
	OpponentSubmitted bool           `json:"opponentSubmitted"`
}

// Pong echoes a heartbeat with the server clock for client-side offset
// estimation.
type Pong struct {
	ClientTs int64 `json:"clientTs"`
	ServerTs int64 `json:"serverTs"`
}

// ErrorMessage reports a recoverable protocol error inline.
type ErrorMessage struct {
	Message string `json:"message"`
}
