package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LeagueSeed describes one tier of the league ladder as declared in
// the seed file. Tiers must be contiguous starting at 1.
type LeagueSeed struct {
	Name              string `yaml:"name"`
	Tier              int    `yaml:"tier"`
	MembersCount      int    `yaml:"members_count"`
	PromotedCount     int    `yaml:"promoted_count"`
	RelegatedCount    int    `yaml:"relegated_count"`
	PromotionEnabled  bool   `yaml:"promotion_enabled"`
	RelegationEnabled bool   `yaml:"relegation_enabled"`
}

type seedFile struct {
	Leagues []LeagueSeed `yaml:"leagues"`
}

// LoadLeagueSeeds reads the league ladder definition from a YAML file.
func LoadLeagueSeeds(path string) ([]LeagueSeed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read league seed file: %w", err)
	}

	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse league seed file: %w", err)
	}

	if err := validateSeeds(f.Leagues); err != nil {
		return nil, err
	}

	return f.Leagues, nil
}

// validateSeeds checks that tiers form a contiguous ladder starting at 1,
// which the promotion engine assumes.
func validateSeeds(seeds []LeagueSeed) error {
	if len(seeds) == 0 {
		return fmt.Errorf("league seed file defines no leagues")
	}

	byTier := make(map[int]string, len(seeds))
	for _, s := range seeds {
		if s.Tier < 1 {
			return fmt.Errorf("league %q has invalid tier %d", s.Name, s.Tier)
		}
		if other, dup := byTier[s.Tier]; dup {
			return fmt.Errorf("leagues %q and %q share tier %d", other, s.Name, s.Tier)
		}
		byTier[s.Tier] = s.Name
	}

	for tier := 1; tier <= len(seeds); tier++ {
		if _, ok := byTier[tier]; !ok {
			return fmt.Errorf("league ladder has a gap at tier %d", tier)
		}
	}

	return nil
}
