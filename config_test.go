package flock

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	conf := DefaultConfig()
	require.NoError(t, conf.Validate())

	conf.Vision = "occlusion"
	conf.ObstacleCount = 10
	require.NoError(t, conf.Validate())

	conf.PeriodicVision = true
	conf.PerceptionRadius = 400
	require.NoError(t, conf.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero width", func(c *Config) { c.WorldWidth = 0 }},
		{"negative height", func(c *Config) { c.WorldHeight = -1 }},
		{"infinite width", func(c *Config) { c.WorldWidth = math.Inf(1) }},
		{"zero max speed", func(c *Config) { c.MaxSpeed = 0 }},
		{"negative dt", func(c *Config) { c.Dt = -0.1 }},
		{"zero dt", func(c *Config) { c.Dt = 0 }},
		{"NaN dt", func(c *Config) { c.Dt = math.NaN() }},
		{"zero min distance", func(c *Config) { c.MinDistance = 0 }},
		{"negative alignment weight", func(c *Config) { c.AlignmentWeight = -1 }},
		{"negative cohesion weight", func(c *Config) { c.CohesionWeight = -1 }},
		{"negative separation weight", func(c *Config) { c.SeparationWeight = -1 }},
		{"negative gradient weight", func(c *Config) { c.GradientWeight = -1 }},
		{"negative exploration weight", func(c *Config) { c.ExplorationWeight = -1 }},
		{"negative speed gain", func(c *Config) { c.SpeedGain = -1 }},
		{"negative turn rate", func(c *Config) { c.TurnRate = -0.1 }},
		{"negative perception", func(c *Config) { c.PerceptionRadius = -1 }},
		{"field of view too wide", func(c *Config) { c.FieldOfViewDegrees = 181 }},
		{"negative field of view", func(c *Config) { c.FieldOfViewDegrees = -1 }},
		{"initial speed above max", func(c *Config) { c.InitialSpeed = 4 }},
		{"negative agent count", func(c *Config) { c.AgentCount = -1 }},
		{"negative tick count", func(c *Config) { c.TickCount = -1 }},
		{"negative workers", func(c *Config) { c.Workers = -2 }},
		{"unknown vision", func(c *Config) { c.Vision = "xray" }},
		{"unknown occlusion method", func(c *Config) { c.Vision = "occlusion"; c.OcclusionMethod = "guess" }},
		{"no occlusion samples", func(c *Config) { c.Vision = "occlusion"; c.OcclusionSamples = 0 }},
		{"zero ray step", func(c *Config) { c.Vision = "occlusion"; c.RayStep = 0 }},
		{"negative obstacle count", func(c *Config) { c.ObstacleCount = -1 }},
		{"inverted obstacle radius range", func(c *Config) { c.ObstacleCount = 1; c.ObstacleRadiusRange = [2]float64{5, 2} }},
		{"periodic perception wider than half the world", func(c *Config) { c.PeriodicVision = true; c.PerceptionRadius = 401 }},
		{"zero obstacle radius", func(c *Config) { c.ObstacleCount = 1; c.ObstacleRadiusRange = [2]float64{0, 2} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf := DefaultConfig()
			tt.modify(&conf)
			err := conf.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestConfigSteering(t *testing.T) {
	conf := DefaultConfig()
	conf.Vision = "occlusion"
	conf.OcclusionMethod = "exact"
	conf.AgentsOcclude = true

	s := conf.Steering()
	assert.True(t, s.Vision.Occlusion)
	assert.Equal(t, Exact, s.Vision.Method)
	assert.True(t, s.Vision.AgentsOcclude)
	assert.Equal(t, 8, s.Vision.Samples)
	assert.Equal(t, conf.SeparationWeight, s.Separation)
	assert.Equal(t, conf.HeadingGain, s.Gains.HeadingGain)
	assert.InDelta(t, 50*math.Pi/180, conf.FOV(), 1e-12)
}
