package params

// MinimalTestConfig returns a config with sub-second match timings so room
// lifecycle tests run in real time without multi-second sleeps.
func MinimalTestConfig() *GameConfig {
	c := DefaultConfig().Copy()
	c.ConfigName = "minimal"
	c.DefaultRoundTimeSeconds = 1
	c.DefaultPrepSeconds = 0
	c.DefaultCountdownSeconds = 0
	c.DefaultBreakSeconds = 0
	c.DrawWindowSeconds = 1
	c.SubmitGraceMs = 300
	c.ReconnectGraceMs = 300
	c.DefaultTextLength = 40
	c.MatchScanIntervalSeconds = 1
	return c
}

// SetupTestConfigCleanup preserves the current config and restores it when the
// test and all its subtests complete.
func SetupTestConfigCleanup(t interface{ Cleanup(func()) }) {
	prev := VeloTypeConfig()
	t.Cleanup(func() {
		OverrideVeloTypeConfig(prev)
	})
}
