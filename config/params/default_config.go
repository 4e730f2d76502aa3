package params

// DefaultConfig returns the production configuration of the match core.
func DefaultConfig() *GameConfig {
	return defaultGameConfig
}

// UseDefaultConfig for match core services.
func UseDefaultConfig() {
	OverrideVeloTypeConfig(DefaultConfig())
}

var defaultGameConfig = &GameConfig{
	ConfigName: "default",

	// Placement and rating constants.
	BasePlacementRating:        1050,
	MaxPlacementRating:         2099,
	PlacementRequired:          5,
	PlacementKFactor:           40,
	PlacementPerfSpread:        22,
	PlacementConsistencySpread: 4,
	RankedKFactor:              32,
	EloMarginWeight:            0.25,
	EloRemainingHpWeight:       0.15,
	ForfeitRatingPenalty:       15,
	ApexThreshold:              2100,
	ApexLeaderboardSlots:       1500,
	TierWidth:                  100,
	MaxTierIndex:               20, // Velocity 3 covers [2000, 2099].
	OverperfWindow:             10,
	OverperfMinGames:           6,
	OverperfMinAccuracy:        0.90,
	OverperfCombatScore:        82,
	OverperfMaxTierJump:        2,

	// Combat tuning.
	StartingHp:            100,
	MaxDamagePerRound:     35,
	MaxCharsPerSecRanked:  45,
	MaxCharsPerSecDaily:   20,
	BaseWpmCeiling:        40,
	WpmCeilingDivisor:     20, // 145 expected WPM at the Apex threshold.
	CombatWpmWeight:       0.75,
	CombatAccuracyWeight:  0.25,
	PerfWpmWeight:         0.7,
	PerfAccuracyWeight:    0.25,
	PerfConsistencyWeight: 0.05,

	// Match timing.
	DefaultMaxRounds:        6,
	DefaultRoundTimeSeconds: 30,
	DefaultPrepSeconds:      10,
	DefaultCountdownSeconds: 3,
	DefaultBreakSeconds:     7,
	DrawWindowSeconds:       7,
	SubmitGraceMs:           30000,
	ReconnectGraceMs:        30000,

	// Round text. Long enough that a round rarely ends on text exhaustion.
	DefaultTextLength:  250,
	DefaultDifficulty:  "medium",
	DefaultPunctuation: true,

	// Matchmaking.
	MatchScanIntervalSeconds: 1,
	MatchWindowBase:          100,
	MatchWindowGrowthPerSec:  50,
	MatchWindowMax:           800,

	// Connection layer.
	RateLimitCapacity:  30,
	RateLimitPerSecond: 10,

	// Daily challenge.
	DailySeedPrefix:      "veloxtype-daily-",
	DailyTextLength:      200,
	DailyLeaderboardSize: 100,
	LeaderboardSize:      100,

	// Auth.
	TokenTTLHours:         24,
	TokenRememberTTLHours: 720,
}
