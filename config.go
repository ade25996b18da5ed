package flock

import (
	"math"

	"github.com/pkg/errors"
)

// ErrInvalidConfig is wrapped by every configuration validation error.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the parameters required for setting up a simulation.
type Config struct {
	Seed int64 `toml:"seed"` // seed of the PRNG

	// World parameters
	WorldWidth     float64 `toml:"world_width"`     // unit: world unit
	WorldHeight    float64 `toml:"world_height"`    // unit: world unit
	PeriodicVision bool    `toml:"periodic_vision"` // see across the boundaries

	// Agents parameters
	AgentCount          int        `toml:"agent_count"`
	AgentRadius         float64    `toml:"agent_radius"`          // unit: world unit
	PerceptionRadius    float64    `toml:"perception_radius"`     // unit: world unit
	FieldOfViewDegrees  float64    `toml:"field_of_view_degrees"` // half-width, unit: degree
	MaxSpeed            float64    `toml:"max_speed"`             // unit: world unit/time
	InitialSpeed        float64    `toml:"initial_speed"`         // unit: world unit/time
	TurnRate            float64    `toml:"turn_rate"`             // unit: rad
	MaxTurn             float64    `toml:"max_turn"`              // unit: rad/time, 0 means unlimited
	SpawnRadius         float64    `toml:"spawn_radius"`          // unit: world unit, 0 means whole world
	SeparationDistance  float64    `toml:"separation_distance"`   // unit: world unit, 0 means 2*agent_radius
	MinDistance         float64    `toml:"min_distance"`          // unit: world unit
	ObstacleCount       int        `toml:"obstacle_count"`
	ObstacleRadiusRange [2]float64 `toml:"obstacle_radius_range"` // unit: world unit

	// Time parameters
	Dt        float64 `toml:"dt"`         // duration of time steps
	TickCount int     `toml:"tick_count"` // number of ticks, 0 means until stopped
	Workers   int     `toml:"workers"`    // goroutines evaluating a tick, 0 or 1 means sequential

	// Vision parameters
	Vision           string  `toml:"vision"`            // possible values: cone, occlusion
	OcclusionMethod  string  `toml:"occlusion_method"`  // possible values: march, exact
	OcclusionSamples int     `toml:"occlusion_samples"` // points sampled on target boundary
	RayStep          float64 `toml:"ray_step"`          // unit: world unit
	AgentsOcclude    bool    `toml:"agents_occlude"`

	// Rule weights
	AlignmentWeight   float64 `toml:"alignment_weight"`
	CohesionWeight    float64 `toml:"cohesion_weight"`
	SeparationWeight  float64 `toml:"separation_weight"`
	GradientWeight    float64 `toml:"gradient_weight"`
	ExplorationWeight float64 `toml:"exploration_weight"`

	// Adaptive gradient gains
	SpeedRepulsion         float64 `toml:"speed_repulsion"`
	TurnRepulsion          float64 `toml:"turn_repulsion"`
	SpeedGain              float64 `toml:"speed_gain"`
	HeadingGain            float64 `toml:"heading_gain"`
	GradientOverPopulation bool    `toml:"gradient_over_population"`
}

// DefaultConfig returns the default parameters.
func DefaultConfig() Config {
	return Config{
		Seed:                1,
		WorldWidth:          1200,
		WorldHeight:         800,
		AgentCount:          50,
		AgentRadius:         5,
		PerceptionRadius:    50,
		FieldOfViewDegrees:  50,
		MaxSpeed:            3,
		InitialSpeed:        2,
		TurnRate:            0.1,
		MinDistance:         1e-3,
		ObstacleRadiusRange: [2]float64{4, 8},
		Dt:                  1,
		Vision:              "cone",
		OcclusionMethod:     "march",
		OcclusionSamples:    8,
		RayStep:             1,
		AlignmentWeight:     0.5,
		CohesionWeight:      0.5,
		SeparationWeight:    1.5,
		SpeedRepulsion:      20,
		TurnRepulsion:       20,
		SpeedGain:           10,
		HeadingGain:         10,
	}
}

// Validate checks the configuration and reports the first invalid parameter.
func (c *Config) Validate() error {
	positive := []struct {
		name string
		val  float64
	}{
		{"world_width", c.WorldWidth},
		{"world_height", c.WorldHeight},
		{"max_speed", c.MaxSpeed},
		{"dt", c.Dt},
		{"min_distance", c.MinDistance},
	}
	for _, p := range positive {
		if !(p.val > 0) || math.IsInf(p.val, 0) {
			return errors.Wrapf(ErrInvalidConfig, "%s must be positive and finite, got %v", p.name, p.val)
		}
	}

	nonNegative := []struct {
		name string
		val  float64
	}{
		{"agent_radius", c.AgentRadius},
		{"perception_radius", c.PerceptionRadius},
		{"turn_rate", c.TurnRate},
		{"max_turn", c.MaxTurn},
		{"spawn_radius", c.SpawnRadius},
		{"separation_distance", c.SeparationDistance},
		{"alignment_weight", c.AlignmentWeight},
		{"cohesion_weight", c.CohesionWeight},
		{"separation_weight", c.SeparationWeight},
		{"gradient_weight", c.GradientWeight},
		{"exploration_weight", c.ExplorationWeight},
		{"speed_repulsion", c.SpeedRepulsion},
		{"turn_repulsion", c.TurnRepulsion},
		{"speed_gain", c.SpeedGain},
		{"heading_gain", c.HeadingGain},
	}
	for _, p := range nonNegative {
		if !(p.val >= 0) {
			return errors.Wrapf(ErrInvalidConfig, "%s must not be negative, got %v", p.name, p.val)
		}
	}

	switch {
	case c.AgentCount < 0:
		return errors.Wrapf(ErrInvalidConfig, "agent_count must not be negative, got %d", c.AgentCount)
	case c.ObstacleCount < 0:
		return errors.Wrapf(ErrInvalidConfig, "obstacle_count must not be negative, got %d", c.ObstacleCount)
	case c.TickCount < 0:
		return errors.Wrapf(ErrInvalidConfig, "tick_count must not be negative, got %d", c.TickCount)
	case c.Workers < 0:
		return errors.Wrapf(ErrInvalidConfig, "workers must not be negative, got %d", c.Workers)
	case !(c.FieldOfViewDegrees >= 0 && c.FieldOfViewDegrees <= 180):
		return errors.Wrapf(ErrInvalidConfig, "field_of_view_degrees must be in [0, 180], got %v", c.FieldOfViewDegrees)
	case !(c.InitialSpeed >= 0 && c.InitialSpeed <= c.MaxSpeed):
		return errors.Wrapf(ErrInvalidConfig, "initial_speed must be in [0, max_speed], got %v", c.InitialSpeed)
	}

	switch c.Vision {
	case "cone":
	case "occlusion":
		if c.OcclusionSamples < 1 {
			return errors.Wrapf(ErrInvalidConfig, "occlusion_samples must be at least 1, got %d", c.OcclusionSamples)
		}
		if !(c.RayStep > 0) {
			return errors.Wrapf(ErrInvalidConfig, "ray_step must be positive, got %v", c.RayStep)
		}
		if _, err := parseMethod(c.OcclusionMethod); err != nil {
			return err
		}
	default:
		return errors.Wrapf(ErrInvalidConfig, "bad vision type %q", c.Vision)
	}

	if c.PeriodicVision && 2*c.PerceptionRadius > math.Min(c.WorldWidth, c.WorldHeight) {
		return errors.Wrapf(ErrInvalidConfig, "perception_radius must not exceed half the world with periodic_vision, got %v", c.PerceptionRadius)
	}

	if c.ObstacleCount > 0 {
		lo, hi := c.ObstacleRadiusRange[0], c.ObstacleRadiusRange[1]
		if !(lo > 0 && lo <= hi) {
			return errors.Wrapf(ErrInvalidConfig, "obstacle_radius_range must satisfy 0 < min <= max, got [%v, %v]", lo, hi)
		}
	}
	return nil
}

// FOV returns the half-width of the field of view in radians.
func (c *Config) FOV() float64 {
	return c.FieldOfViewDegrees * math.Pi / 180
}

// Steering returns the steering rules described by the configuration.
// The configuration must be valid.
func (c *Config) Steering() Steering {
	method, _ := parseMethod(c.OcclusionMethod)
	return Steering{
		Vision: Vision{
			Occlusion:     c.Vision == "occlusion",
			Method:        method,
			Samples:       c.OcclusionSamples,
			Step:          c.RayStep,
			AgentsOcclude: c.AgentsOcclude,
		},
		Weights: Weights{
			Alignment:   c.AlignmentWeight,
			Cohesion:    c.CohesionWeight,
			Separation:  c.SeparationWeight,
			Gradient:    c.GradientWeight,
			Exploration: c.ExplorationWeight,
		},
		Gains: Gradient{
			SpeedRepulsion: c.SpeedRepulsion,
			TurnRepulsion:  c.TurnRepulsion,
			SpeedGain:      c.SpeedGain,
			HeadingGain:    c.HeadingGain,
			OverPopulation: c.GradientOverPopulation,
		},
		MaxSpeed:    c.MaxSpeed,
		TurnRate:    c.TurnRate,
		MaxTurn:     c.MaxTurn,
		TooClose:    c.SeparationDistance,
		MinDistance: c.MinDistance,
	}
}

func parseMethod(s string) (OcclusionMethod, error) {
	switch s {
	case "", "march":
		return March, nil
	case "exact":
		return Exact, nil
	}
	return March, errors.Wrapf(ErrInvalidConfig, "bad occlusion method %q", s)
}
