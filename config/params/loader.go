package params

import (
	"io/ioutil"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

// LoadConfigFile loads a yaml game config file and applies it on top of the
// default configuration.
func LoadConfigFile(configFileName string) {
	yamlFile, err := ioutil.ReadFile(configFileName) // #nosec G304
	if err != nil {
		log.WithError(err).Fatal("Failed to read game config file.")
	}
	conf := DefaultConfig().Copy()
	if err := yaml.UnmarshalStrict(yamlFile, conf); err != nil {
		if _, ok := err.(*yaml.TypeError); !ok {
			log.WithError(err).Fatal("Failed to parse game config yaml file.")
		} else {
			log.WithError(err).Error("There were some issues parsing the game config from the yaml file")
		}
	}
	if err := conf.Validate(); err != nil {
		log.WithError(err).Fatal("Invalid game config file.")
	}
	log.Debugf("Config file values: %+v", conf)
	OverrideVeloTypeConfig(conf)
}

// Validate rejects configs that would wedge a match room or make rating
// arithmetic meaningless.
func (c *GameConfig) Validate() error {
	if c.DefaultMaxRounds < 1 {
		return errors.New("DEFAULT_MAX_ROUNDS must be at least 1")
	}
	if c.DefaultRoundTimeSeconds < 1 {
		return errors.New("DEFAULT_ROUND_TIME_SECONDS must be at least 1")
	}
	if c.PlacementRequired < 1 {
		return errors.New("PLACEMENT_REQUIRED must be at least 1")
	}
	if c.BasePlacementRating < 0 || c.BasePlacementRating > c.MaxPlacementRating {
		return errors.New("BASE_PLACEMENT_RATING must sit inside [0, MAX_PLACEMENT_RATING]")
	}
	if c.MaxPlacementRating >= c.ApexThreshold {
		return errors.New("MAX_PLACEMENT_RATING must stay below APEX_THRESHOLD")
	}
	if c.TierWidth < 1 || c.MaxTierIndex < 1 {
		return errors.New("tier ladder requires TIER_WIDTH and MAX_TIER_INDEX of at least 1")
	}
	if c.RateLimitCapacity < 1 || c.RateLimitPerSecond <= 0 {
		return errors.New("rate limit requires positive capacity and refill")
	}
	switch c.DefaultDifficulty {
	case "easy", "medium", "hard":
	default:
		return errors.Errorf("unknown DEFAULT_DIFFICULTY %q", c.DefaultDifficulty)
	}
	return nil
}
