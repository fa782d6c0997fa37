package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v2"
)

// ChallengeSettingsYAML is the on-disk shape of the challenge settings
// singleton (spec §9 Open Question 2: spec.md names the knobs but never
// gives them a concrete config source). Operators who want to tune
// challenge pacing without a redeploy edit this file instead of env vars.
type ChallengeSettingsYAML struct {
	MaxPendingPerUser     int `yaml:"max_pending_per_user"`
	MaxActivePerUser      int `yaml:"max_active_per_user"`
	CooldownMinutes       int `yaml:"cooldown_minutes"`
	AcceptDeadlineMinutes int `yaml:"accept_deadline_minutes"`
}

// LoadChallengeSettings loads the challenge settings singleton from a YAML
// file, falling back to the ChallengeConfig env-derived defaults already
// loaded into cfg when the file is absent.
func LoadChallengeSettings(path string, fallback ChallengeConfig) (ChallengeConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fallback, nil
		}
		return ChallengeConfig{}, fmt.Errorf("read challenge settings: %w", err)
	}

	var parsed ChallengeSettingsYAML
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return ChallengeConfig{}, fmt.Errorf("parse challenge settings: %w", err)
	}

	return ChallengeConfig{
		MaxPendingPerUser:     parsed.MaxPendingPerUser,
		MaxActivePerUser:      parsed.MaxActivePerUser,
		CooldownMinutes:       parsed.CooldownMinutes,
		AcceptDeadlineMinutes: parsed.AcceptDeadlineMinutes,
	}, nil
}
