package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models laborguard.yml: the numeric compliance policy the engine
// enforces. Defaults reproduce the legal-limit constants the platform was
// built around; deployments tune them per jurisdiction.
type Config struct {
	Compliance struct {
		// LegalLimitDays is the number of consecutive days a contractor may
		// work for one client before the relationship starts to look like
		// employment.
		LegalLimitDays int `yaml:"legal_limit_days"`
		// BlockTriggerDays is the streak length at which the continuity
		// check blocks automatically.
		BlockTriggerDays    int `yaml:"block_trigger_days"`
		ContinuityBlockDays int `yaml:"continuity_block_days"`
		LookbackDays        int `yaml:"lookback_days"`
		MaxStreakWalk       int `yaml:"max_streak_walk"`
	} `yaml:"compliance"`
	Risk struct {
		// GateLevels are the upper bounds of the allocation-gating scale:
		// score <= Low is low, <= Medium is medium, <= High is high,
		// above High is critical.
		GateLevels struct {
			Low    int `yaml:"low"`
			Medium int `yaml:"medium"`
			High   int `yaml:"high"`
		} `yaml:"gate_levels"`
		// FleetLevels are the lower bounds of the 0-100 composite scale.
		FleetLevels struct {
			Medium   int `yaml:"medium"`
			High     int `yaml:"high"`
			Critical int `yaml:"critical"`
		} `yaml:"fleet_levels"`
	} `yaml:"risk"`
	Autonomy struct {
		LowThreshold int `yaml:"low_threshold"`
	} `yaml:"autonomy"`
	// Incidents maps incident types to automatic block rules. Types absent
	// from the map never trigger a block.
	Incidents map[string]IncidentRule `yaml:"incidents"`
}

type IncidentRule struct {
	Type   string `yaml:"type"`
	Days   int    `yaml:"days,omitempty"`
	Reason string `yaml:"reason"`
}

const fileName = "laborguard.yml"

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, fileName)
}

// Load reads laborguard.yml from the workspace, falling back to defaults
// when the file does not exist.
func Load(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses and validates a config document.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in policy.
func Default() *Config {
	cfg := &Config{}
	cfg.Compliance.LegalLimitDays = 2
	cfg.Compliance.BlockTriggerDays = 3
	cfg.Compliance.ContinuityBlockDays = 7
	cfg.Compliance.LookbackDays = 30
	cfg.Compliance.MaxStreakWalk = 10
	cfg.Risk.GateLevels.Low = 50
	cfg.Risk.GateLevels.Medium = 100
	cfg.Risk.GateLevels.High = 150
	cfg.Risk.FleetLevels.Medium = 30
	cfg.Risk.FleetLevels.High = 50
	cfg.Risk.FleetLevels.Critical = 70
	cfg.Autonomy.LowThreshold = 30
	cfg.Incidents = map[string]IncidentRule{
		"absence": {
			Type:   "temporary",
			Days:   3,
			Reason: "Unjustified absence - automatic 3-day block",
		},
		"misconduct": {
			Type:   "permanent",
			Reason: "Misconduct - permanent block pending administrative review",
		},
		"accident": {
			Type:   "permanent",
			Reason: "Registered accident - blocked until investigation and retraining",
		},
	}
	return cfg
}

// Validate ensures the policy is internally consistent.
func (c *Config) Validate() error {
	if c.Compliance.LegalLimitDays < 1 {
		return fmt.Errorf("compliance.legal_limit_days must be >= 1")
	}
	if c.Compliance.BlockTriggerDays <= c.Compliance.LegalLimitDays {
		return fmt.Errorf("compliance.block_trigger_days must exceed legal_limit_days")
	}
	if c.Compliance.ContinuityBlockDays < 1 {
		return fmt.Errorf("compliance.continuity_block_days must be >= 1")
	}
	if c.Compliance.LookbackDays < 1 || c.Compliance.MaxStreakWalk < 1 {
		return fmt.Errorf("compliance lookback_days and max_streak_walk must be >= 1")
	}
	g := c.Risk.GateLevels
	if !(g.Low < g.Medium && g.Medium < g.High) {
		return fmt.Errorf("risk.gate_levels must be strictly increasing")
	}
	f := c.Risk.FleetLevels
	if !(f.Medium < f.High && f.High < f.Critical) {
		return fmt.Errorf("risk.fleet_levels must be strictly increasing")
	}
	if f.Critical > 100 {
		return fmt.Errorf("risk.fleet_levels.critical cannot exceed 100")
	}
	if c.Autonomy.LowThreshold < 0 || c.Autonomy.LowThreshold > 100 {
		return fmt.Errorf("autonomy.low_threshold must be in [0,100]")
	}
	for name, rule := range c.Incidents {
		switch rule.Type {
		case "temporary":
			if rule.Days < 1 {
				return fmt.Errorf("incident rule %s: temporary blocks need days >= 1", name)
			}
		case "permanent":
		default:
			return fmt.Errorf("incident rule %s: type must be temporary or permanent", name)
		}
		if rule.Reason == "" {
			return fmt.Errorf("incident rule %s: reason is required", name)
		}
	}
	return nil
}

// ToYAML renders the config for export.
func (c *Config) ToYAML() ([]byte, error) {
	return yaml.Marshal(c)
}
