package flock

import (
	"context"
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	conf := DefaultConfig()
	conf.WorldWidth = 200
	conf.WorldHeight = 150
	conf.AgentCount = 30
	conf.PerceptionRadius = 40
	conf.FieldOfViewDegrees = 120
	conf.ObstacleCount = 4
	conf.ObstacleRadiusRange = [2]float64{3, 6}
	conf.Vision = "occlusion"
	conf.GradientWeight = 0.1
	conf.Dt = 0.5
	return conf
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	conf := testConfig()
	conf.Dt = -1

	_, err := New(conf)
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNewPlacement(t *testing.T) {
	s, err := New(testConfig())
	require.NoError(t, err)
	require.Len(t, s.Swarm, 30)
	require.Len(t, s.Obstacles, 4)

	for i, o := range s.Obstacles {
		assert.True(t, o.Radius >= 3 && o.Radius <= 6)
		for _, q := range s.Obstacles[i+1:] {
			assert.GreaterOrEqual(t, o.Center.Sub(q.Center).Norm(), o.Radius+q.Radius, "obstacles overlap")
		}
	}
	for _, a := range s.Swarm {
		assert.False(t, s.inObstacle(a.Pos), "agent spawned inside an obstacle")
		assert.Equal(t, 2.0, a.Speed)
		assert.InDelta(t, 2*math.Pi/3, a.FOV, 1e-12)
	}
}

func TestNewSpawnRadius(t *testing.T) {
	conf := testConfig()
	conf.ObstacleCount = 0
	conf.SpawnRadius = 10

	s, err := New(conf)
	require.NoError(t, err)
	for _, a := range s.Swarm {
		assert.InDelta(t, 100, a.Pos.X, 10)
		assert.InDelta(t, 75, a.Pos.Y, 10)
	}
}

func TestNewCannotPlaceObstacles(t *testing.T) {
	conf := testConfig()
	conf.ObstacleCount = 50
	conf.ObstacleRadiusRange = [2]float64{100, 100}

	_, err := New(conf)
	require.Error(t, err)
}

func TestStepInvariants(t *testing.T) {
	conf := testConfig()
	conf.GradientWeight = 1
	s, err := New(conf)
	require.NoError(t, err)

	for k := 0; k < 200; k++ {
		s.Step()
		for i, a := range s.Swarm {
			require.True(t, a.Heading >= 0 && a.Heading < 2*math.Pi, "tick %d agent %d heading %v", k, i, a.Heading)
			require.True(t, a.Speed >= 0 && a.Speed <= conf.MaxSpeed, "tick %d agent %d speed %v", k, i, a.Speed)
			require.True(t, a.Pos.X >= 0 && a.Pos.X < conf.WorldWidth, "tick %d agent %d x %v", k, i, a.Pos.X)
			require.True(t, a.Pos.Y >= 0 && a.Pos.Y < conf.WorldHeight, "tick %d agent %d y %v", k, i, a.Pos.Y)
		}
	}
	assert.Equal(t, 200, s.Tick())
}

func TestStepIsolatedAgents(t *testing.T) {
	conf := testConfig()
	conf.PerceptionRadius = 0
	conf.ObstacleCount = 0
	s, err := New(conf)
	require.NoError(t, err)

	before := append([]Agent(nil), s.Swarm...)
	s.Step()
	for i, a := range s.Swarm {
		assert.LessOrEqual(t, math.Abs(diffAngle(a.Heading, before[i].Heading)), conf.TurnRate+1e-12)
		assert.Equal(t, before[i].Speed, a.Speed)
	}
}

func TestStepIsSimultaneous(t *testing.T) {
	s := &Simulation{
		Swarm:    pair(),
		Env:      Environment{Width: 100, Height: 100},
		Steering: Steering{Weights: Weights{Alignment: 1}, MaxSpeed: 3},
		Dt:       0.5,
	}
	s.Seed(7)
	s.Step()

	// both agents react to the heading the other had before the step
	assert.InDelta(t, math.Pi/2, math.Abs(diffAngle(s.Swarm[0].Heading, 0)), 1e-9)
	assert.InDelta(t, math.Pi/2, math.Abs(diffAngle(s.Swarm[1].Heading, math.Pi)), 1e-9)

	// positions advance along the new headings and wrap
	for i, a := range s.Swarm {
		want := s.Env.Wrap(pair()[i].Pos.Add(unit(a.Heading).Mul(0.5)))
		assert.InDelta(t, want.X, a.Pos.X, 1e-9)
		assert.InDelta(t, want.Y, a.Pos.Y, 1e-9)
	}
}

func TestStepDeterministic(t *testing.T) {
	run := func(workers int) []Snapshot {
		conf := testConfig()
		conf.Workers = workers
		s, err := New(conf)
		require.NoError(t, err)

		var snaps []Snapshot
		err = s.Run(context.Background(), 50, func(snap Snapshot) error {
			snaps = append(snaps, snap)
			return nil
		})
		require.NoError(t, err)
		return snaps
	}

	first := run(1)
	require.Len(t, first, 50)
	assert.Equal(t, first, run(1))
	assert.Equal(t, first, run(4), "parallel evaluation changes results")
}

func TestRunUntilCanceled(t *testing.T) {
	s, err := New(testConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err = s.Run(ctx, 0, func(snap Snapshot) error {
		if snap.Tick == 3 {
			cancel()
		}
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3, s.Tick())
}

func TestRunObserverError(t *testing.T) {
	s, err := New(testConfig())
	require.NoError(t, err)

	boom := errors.New("boom")
	err = s.Run(context.Background(), 10, func(snap Snapshot) error {
		if snap.Tick == 2 {
			return boom
		}
		return nil
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 2, s.Tick())
}

func TestSnapshotIsCopy(t *testing.T) {
	s, err := New(testConfig())
	require.NoError(t, err)

	snap := s.Snapshot()
	s.Step()
	assert.Equal(t, 0, snap.Tick)
	assert.NotEqual(t, snap.Agents, s.Snapshot().Agents)
	assert.Equal(t, s.Swarm[0].Perception, snap.Agents[0].Perception)
}

func TestPolarization(t *testing.T) {
	s := &Simulation{}
	assert.Equal(t, 0.0, s.Polarization())

	s.Swarm = []Agent{{Heading: 1}, {Heading: 1}, {Heading: 1}}
	assert.InDelta(t, 1, s.Polarization(), 1e-12)

	s.Swarm = []Agent{{Heading: 0, Pos: r2.Point{X: 1}}, {Heading: math.Pi}}
	assert.InDelta(t, 0, s.Polarization(), 1e-12)
}
