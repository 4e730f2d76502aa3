// Package match implements the match orchestrator: one owner goroutine per
// live match serialising every state transition, from the lobby handshake
// through typing rounds, combat resolution, overtime draw votes and the
// single finalisation that persists outcomes and rating movements.
package match

import (
	"time"

	"github.com/velotype/velotype/config/params"
	"github.com/velotype/velotype/server/wire"
)

// ModeRanked is the only matchmade mode; daily challenges never enter a room.
const ModeRanked = "ranked"

// regulationRounds is the best-of-six regulation length. Overtime flags and
// draw windows key off it even when a room is configured to run longer.
const regulationRounds = 6

// PlayerInfo identifies one paired participant. Rating is nil while the
// player is still in placement.
type PlayerInfo struct {
	UserID   string
	Username string
	Rating   *int
}

// Config is the immutable plan of one match, fixed at pairing time. Clients
// receive the same values in the MATCH_FOUND frame and derive all round texts
// from Seed locally.
type Config struct {
	MatchID          string
	Seed             string
	Mode             string
	Players          [2]PlayerInfo
	CreatedAt        time.Time
	StartAt          time.Time
	RoundTimeSeconds int
	TextLength       int
	Difficulty       string
	Punctuation      bool
	MaxRounds        int
	PrepSeconds      int
	CountdownSeconds int
	BreakSeconds     int
}

// NewConfig builds the plan of a fresh ranked match from the game config.
func NewConfig(matchID, seed string, players [2]PlayerInfo, createdAt time.Time) *Config {
	c := params.VeloTypeConfig()
	return &Config{
		MatchID:          matchID,
		Seed:             seed,
		Mode:             ModeRanked,
		Players:          players,
		CreatedAt:        createdAt,
		StartAt:          createdAt.Add(time.Duration(c.DefaultPrepSeconds) * time.Second),
		RoundTimeSeconds: c.DefaultRoundTimeSeconds,
		TextLength:       c.DefaultTextLength,
		Difficulty:       c.DefaultDifficulty,
		Punctuation:      c.DefaultPunctuation,
		MaxRounds:        c.DefaultMaxRounds,
		PrepSeconds:      c.DefaultPrepSeconds,
		CountdownSeconds: c.DefaultCountdownSeconds,
		BreakSeconds:     c.DefaultBreakSeconds,
	}
}

// MatchFound renders the config as the pairing announcement frame.
func (c *Config) MatchFound() *wire.MatchFound {
	frame := &wire.MatchFound{
		MatchID:          c.MatchID,
		Seed:             c.Seed,
		Mode:             c.Mode,
		RoundTimeSeconds: c.RoundTimeSeconds,
		TextLength:       c.TextLength,
		Difficulty:       c.Difficulty,
		Punctuation:      c.Punctuation,
		StartAt:          c.StartAt.UnixMilli(),
		MaxRounds:        c.MaxRounds,
		PrepSeconds:      c.PrepSeconds,
		CountdownSeconds: c.CountdownSeconds,
		BreakSeconds:     c.BreakSeconds,
	}
	for _, p := range c.Players {
		frame.Players = append(frame.Players, wire.MatchFoundPlayer{UserID: p.UserID, Username: p.Username})
		if p.Rating != nil {
			if frame.Ratings == nil {
				frame.Ratings = make(map[string]int, len(c.Players))
			}
			frame.Ratings[p.UserID] = *p.Rating
		}
	}
	return frame
}

// player returns the PlayerInfo of a participant, or nil for strangers.
func (c *Config) player(userID string) *PlayerInfo {
	for i := range c.Players {
		if c.Players[i].UserID == userID {
			return &c.Players[i]
		}
	}
	return nil
}

// opponent returns the other participant's PlayerInfo.
func (c *Config) opponent(userID string) *PlayerInfo {
	for i := range c.Players {
		if c.Players[i].UserID != userID {
			return &c.Players[i]
		}
	}
	return nil
}
