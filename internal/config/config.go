// Package config loads the enumerated configuration surface from spec §6:
// beat scheduler, warm scheduler, MAPE-K monitor/planner, and validator
// knobs, from a single YAML file, the way the teacher's internal/config
// loads its server/slm/kubernetes sections.
package config

import (
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// MaxRunLen is the hot kernel's compile-time run-window bound (spec §6);
// unlike every other knob below it is not configurable.
const MaxRunLen = 8

type Config struct {
	Beat        BeatConfig        `yaml:"beat"`
	Warm        WarmConfig        `yaml:"warm"`
	Monitor     MonitorConfig     `yaml:"monitor"`
	Planner     PlannerConfig     `yaml:"planner"`
	Validator   ValidatorConfig   `yaml:"validator"`
	ColdPlanner ColdPlannerConfig `yaml:"cold_planner"`
	Byzantine   ByzantineConfig   `yaml:"byzantine"`
}

type BeatConfig struct {
	DomainCount            int `yaml:"domain_count" validate:"required,min=1"`
	RingCapacityPerDomain  int `yaml:"ring_capacity_per_domain" validate:"required,min=1"`
	HighWaterMarkPerDomain int `yaml:"high_water_mark_per_domain" validate:"required,min=1"`
	TicksPerCycle          int `yaml:"ticks_per_cycle" validate:"required,min=1,max=8"`
}

type WarmConfig struct {
	EpochTickBudget int `yaml:"epoch_tick_budget" validate:"required,min=1,max=8"`
}

type MonitorConfig struct {
	MaxHistorySize int `yaml:"max_history_size" validate:"required,min=1"`
}

type PlannerConfig struct {
	SuccessRateAdmitThreshold float64 `yaml:"success_rate_admit_threshold" validate:"min=0,max=1"`
	RiskRequiresApproval      string  `yaml:"risk_requires_approval" validate:"oneof=low medium high critical"`
}

type ValidatorConfig struct {
	MinSectors int `yaml:"min_sectors" validate:"min=0"`
	MaxTicks   int `yaml:"max_ticks" validate:"required,min=1,max=8"`
}

// ColdPlannerConfig configures the off-path analysis client's circuit
// breaker and commit retry behavior (spec §4.5); it carries no τ-budget
// knob because the cold planner is explicitly unbounded.
type ColdPlannerConfig struct {
	Model                 string  `yaml:"model"`
	MaxCommitAttempts     uint    `yaml:"max_commit_attempts" validate:"required,min=1"`
	BreakerFailureRatio   float64 `yaml:"breaker_failure_ratio" validate:"min=0,max=1"`
	BreakerMinRequests    uint32  `yaml:"breaker_min_requests" validate:"min=1"`
	BreakerOpenTimeoutSec int     `yaml:"breaker_open_timeout_sec" validate:"required,min=1"`
}

// ByzantineConfig sizes the quorum used to aggregate per-domain ring-depth
// contributions into a Byzantine-tolerant consensus estimate each beat
// cycle (spec §4.9).
type ByzantineConfig struct {
	QuorumSize      int     `yaml:"quorum_size" validate:"required,min=1"`
	ThresholdFactor float64 `yaml:"threshold_factor" validate:"min=0"`
}

// Default returns the configuration with the defaults named in spec §6.
func Default() Config {
	return Config{
		Beat: BeatConfig{
			DomainCount:            4,
			RingCapacityPerDomain:  1024,
			HighWaterMarkPerDomain: 819, // ~80% of the default ring capacity
			TicksPerCycle:          8,
		},
		Warm: WarmConfig{EpochTickBudget: 8},
		Monitor: MonitorConfig{
			MaxHistorySize: 100,
		},
		Planner: PlannerConfig{
			SuccessRateAdmitThreshold: 0.7,
			RiskRequiresApproval:      "high",
		},
		Validator: ValidatorConfig{
			MinSectors: 1,
			MaxTicks:   8,
		},
		ColdPlanner: ColdPlannerConfig{
			Model:                 "claude-sonnet-4-5",
			MaxCommitAttempts:     5,
			BreakerFailureRatio:   0.6,
			BreakerMinRequests:    3,
			BreakerOpenTimeoutSec: 30,
		},
		Byzantine: ByzantineConfig{
			QuorumSize:      3,
			ThresholdFactor: 3.0,
		},
	}
}

// Load reads and validates a YAML configuration file, filling unset
// sections from Default().
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, err
	}
	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
