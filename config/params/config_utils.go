package params

import (
	"sync"

	"github.com/mohae/deepcopy"
)

var gameConfig = DefaultConfig()
var gameConfigLock sync.RWMutex

// VeloTypeConfig retrieves the current game config.
func VeloTypeConfig() *GameConfig {
	gameConfigLock.RLock()
	defer gameConfigLock.RUnlock()
	return gameConfig
}

// OverrideVeloTypeConfig by replacing the config. The preferred pattern is to
// call VeloTypeConfig(), change the specific parameters, and then call
// OverrideVeloTypeConfig(c). Any subsequent calls to params.VeloTypeConfig()
// will return this new configuration.
func OverrideVeloTypeConfig(c *GameConfig) {
	gameConfigLock.Lock()
	defer gameConfigLock.Unlock()
	gameConfig = c
}

// Copy returns a deep copy of the config object.
func (c *GameConfig) Copy() *GameConfig {
	gameConfigLock.RLock()
	defer gameConfigLock.RUnlock()
	config, ok := deepcopy.Copy(*c).(GameConfig)
	if !ok {
		config = *defaultGameConfig
	}
	return &config
}
