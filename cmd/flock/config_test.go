package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flock.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestParseConfig(t *testing.T) {
	path := writeConfig(t, `
agent_count = 120
vision = "occlusion"
obstacle_radius_range = [2.0, 3.5]
agents_occlude = true
output = "out/run.h5"
interval = "20ms"
log_level = "debug"
`)
	conf, err := ParseConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 120, conf.AgentCount)
	assert.Equal(t, "occlusion", conf.Vision)
	assert.Equal(t, [2]float64{2, 3.5}, conf.ObstacleRadiusRange)
	assert.True(t, conf.AgentsOcclude)
	assert.Equal(t, "out/run.h5", conf.Output)
	assert.Equal(t, 20*time.Millisecond, conf.Interval)
	assert.Equal(t, "debug", conf.LogLevel)

	// untouched parameters keep their default
	assert.Equal(t, DefaultConf().MaxSpeed, conf.MaxSpeed)
	assert.Equal(t, DefaultConf().ReportEvery, conf.ReportEvery)
	require.NoError(t, conf.Validate())
}

func TestParseConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"syntax", `agent_count = `},
		{"wrong type", `agent_count = "many"`},
		{"unknown key", `agent_cuont = 10`},
		{"negative interval", `interval = "-1s"`},
		{"negative report", `report_every = -5`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}

	_, err := ParseConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestDefaultConfIsFresh(t *testing.T) {
	a := DefaultConf()
	a.AgentCount = 1
	a.Output = "x.h5"

	b := DefaultConf()
	assert.NotEqual(t, 1, b.AgentCount)
	assert.Empty(t, b.Output)
	require.NoError(t, b.Validate())
}
