// Package params defines the game configuration for the VeloType match core:
// rating policy, combat tuning, match timings, matchmaking windows and the
// connection-layer limits.
package params

// GameConfig contains every tunable constant of the match core. Values are
// read through VeloTypeConfig() and may be replaced wholesale for tests via
// OverrideVeloTypeConfig.
type GameConfig struct {
	ConfigName string `yaml:"CONFIG_NAME"` // ConfigName for logging and config file checks.

	// Placement and rating constants.
	BasePlacementRating        int     `yaml:"BASE_PLACEMENT_RATING"`        // BasePlacementRating seeds calibration mid-ladder.
	MaxPlacementRating         int     `yaml:"MAX_PLACEMENT_RATING"`        // MaxPlacementRating caps placement; cannot place into Apex.
	PlacementRequired          int     `yaml:"PLACEMENT_REQUIRED"`          // PlacementRequired is the number of calibration games.
	PlacementKFactor           float64 `yaml:"PLACEMENT_K_FACTOR"`          // PlacementKFactor is the Elo K used during calibration.
	PlacementPerfSpread        float64 `yaml:"PLACEMENT_PERF_SPREAD"`       // PlacementPerfSpread scales the per-game performance signal.
	PlacementConsistencySpread float64 `yaml:"PLACEMENT_CONSISTENCY_SPREAD"` // PlacementConsistencySpread scales the per-game consistency bonus.
	RankedKFactor              float64 `yaml:"RANKED_K_FACTOR"`             // RankedKFactor is the Elo K for completed ranked matches.
	EloMarginWeight            float64 `yaml:"ELO_MARGIN_WEIGHT"`           // EloMarginWeight scales the score-margin multiplier.
	EloRemainingHpWeight       float64 `yaml:"ELO_REMAINING_HP_WEIGHT"`     // EloRemainingHpWeight scales the winner HP multiplier.
	ForfeitRatingPenalty       int     `yaml:"FORFEIT_RATING_PENALTY"`      // ForfeitRatingPenalty is the flat extra loss for the forfeiter.
	ApexThreshold              int     `yaml:"APEX_THRESHOLD"`              // ApexThreshold is the main rating floor for Apex.
	ApexLeaderboardSlots       int     `yaml:"APEX_LEADERBOARD_SLOTS"`      // ApexLeaderboardSlots bounds promotion by ladder position.
	TierWidth                  int     `yaml:"TIER_WIDTH"`                  // TierWidth is the rating span of one tier.
	MaxTierIndex               int     `yaml:"MAX_TIER_INDEX"`              // MaxTierIndex is the top tier (Velocity 3).
	OverperfWindow             int     `yaml:"OVERPERF_WINDOW"`             // OverperfWindow is how many recent games feed the accelerator.
	OverperfMinGames           int     `yaml:"OVERPERF_MIN_GAMES"`          // OverperfMinGames is the minimum usable games in the window.
	OverperfMinAccuracy        float64 `yaml:"OVERPERF_MIN_ACCURACY"`       // OverperfMinAccuracy gates the accelerator.
	OverperfCombatScore        float64 `yaml:"OVERPERF_COMBAT_SCORE"`       // OverperfCombatScore is the tier-inference threshold.
	OverperfMaxTierJump        int     `yaml:"OVERPERF_MAX_TIER_JUMP"`      // OverperfMaxTierJump caps a single promotion.

	// Combat tuning.
	StartingHp            int     `yaml:"STARTING_HP"`              // StartingHp per player at match start.
	MaxDamagePerRound     int     `yaml:"MAX_DAMAGE_PER_ROUND"`     // MaxDamagePerRound clamps round damage.
	MaxCharsPerSecRanked  int     `yaml:"MAX_CHARS_PER_SEC_RANKED"` // MaxCharsPerSecRanked bounds plausible typing speed in ranked rounds.
	MaxCharsPerSecDaily   int     `yaml:"MAX_CHARS_PER_SEC_DAILY"`  // MaxCharsPerSecDaily bounds plausible typing speed in daily submissions.
	BaseWpmCeiling        float64 `yaml:"BASE_WPM_CEILING"`         // BaseWpmCeiling is the expected WPM at rating 0.
	WpmCeilingDivisor     float64 `yaml:"WPM_CEILING_DIVISOR"`      // WpmCeilingDivisor converts rating into additional expected WPM.
	CombatWpmWeight       float64 `yaml:"COMBAT_WPM_WEIGHT"`        // CombatWpmWeight in the combat score.
	CombatAccuracyWeight  float64 `yaml:"COMBAT_ACCURACY_WEIGHT"`   // CombatAccuracyWeight in the combat score.
	PerfWpmWeight         float64 `yaml:"PERF_WPM_WEIGHT"`          // PerfWpmWeight in the placement performance signal.
	PerfAccuracyWeight    float64 `yaml:"PERF_ACCURACY_WEIGHT"`     // PerfAccuracyWeight in the placement performance signal.
	PerfConsistencyWeight float64 `yaml:"PERF_CONSISTENCY_WEIGHT"`  // PerfConsistencyWeight in the placement performance signal.

	// Match timing. Millisecond values mirror the wire protocol, second values
	// mirror the match config handed to clients.
	DefaultMaxRounds        int    `yaml:"DEFAULT_MAX_ROUNDS"`         // DefaultMaxRounds of regulation play.
	DefaultRoundTimeSeconds int    `yaml:"DEFAULT_ROUND_TIME_SECONDS"` // DefaultRoundTimeSeconds per typing round.
	DefaultPrepSeconds      int    `yaml:"DEFAULT_PREP_SECONDS"`       // DefaultPrepSeconds between pairing and the first countdown.
	DefaultCountdownSeconds int    `yaml:"DEFAULT_COUNTDOWN_SECONDS"`  // DefaultCountdownSeconds before each round.
	DefaultBreakSeconds     int    `yaml:"DEFAULT_BREAK_SECONDS"`      // DefaultBreakSeconds between rounds.
	DrawWindowSeconds       int    `yaml:"DRAW_WINDOW_SECONDS"`        // DrawWindowSeconds for overtime draw votes.
	SubmitGraceMs           uint64 `yaml:"SUBMIT_GRACE_MS"`            // SubmitGraceMs after the round deadline before force-resolving.
	ReconnectGraceMs        uint64 `yaml:"RECONNECT_GRACE_MS"`         // ReconnectGraceMs before a disconnected player forfeits.

	// Round text.
	DefaultTextLength  int    `yaml:"DEFAULT_TEXT_LENGTH"` // DefaultTextLength of ranked round texts.
	DefaultDifficulty  string `yaml:"DEFAULT_DIFFICULTY"`  // DefaultDifficulty of ranked round texts.
	DefaultPunctuation bool   `yaml:"DEFAULT_PUNCTUATION"` // DefaultPunctuation toggles punctuation in ranked texts.

	// Matchmaking.
	MatchScanIntervalSeconds int `yaml:"MATCH_SCAN_INTERVAL_SECONDS"` // MatchScanIntervalSeconds between pairing sweeps.
	MatchWindowBase          int `yaml:"MATCH_WINDOW_BASE"`           // MatchWindowBase rating gap accepted immediately.
	MatchWindowGrowthPerSec  int `yaml:"MATCH_WINDOW_GROWTH_PER_SEC"` // MatchWindowGrowthPerSec widens the gap while waiting.
	MatchWindowMax           int `yaml:"MATCH_WINDOW_MAX"`            // MatchWindowMax caps the expansion window.

	// Connection layer.
	RateLimitCapacity  int64   `yaml:"RATE_LIMIT_CAPACITY"`   // RateLimitCapacity is the per-connection burst size.
	RateLimitPerSecond float64 `yaml:"RATE_LIMIT_PER_SECOND"` // RateLimitPerSecond is the per-connection refill rate.

	// Daily challenge.
	DailySeedPrefix      string `yaml:"DAILY_SEED_PREFIX"`      // DailySeedPrefix prepended to the day string.
	DailyTextLength      int    `yaml:"DAILY_TEXT_LENGTH"`      // DailyTextLength of the daily text.
	DailyLeaderboardSize int    `yaml:"DAILY_LEADERBOARD_SIZE"` // DailyLeaderboardSize rows returned by the read path.
	LeaderboardSize      int    `yaml:"LEADERBOARD_SIZE"`       // LeaderboardSize rows returned by the ladder read path.

	// Auth.
	TokenTTLHours         int `yaml:"TOKEN_TTL_HOURS"`          // TokenTTLHours for a standard session token.
	TokenRememberTTLHours int `yaml:"TOKEN_REMEMBER_TTL_HOURS"` // TokenRememberTTLHours when remember is requested.
}
