package flock

import (
	"github.com/golang/geo/r2"
)

// An Agent is a moving point that perceives its neighbors.
type Agent struct {
	Pos        r2.Point // position in world units
	Heading    float64  // direction of travel in radians, in [0, 2π)
	Speed      float64  // world units per unit time
	Radius     float64  // body radius, used for occlusion and distance bands
	Perception float64  // distance beyond which nothing is perceived
	FOV        float64  // half-width of the field of view in radians, π is omnidirectional
}

// Velocity returns the velocity vector of the agent.
func (a Agent) Velocity() r2.Point {
	return unit(a.Heading).Mul(a.Speed)
}

// An Obstacle is an immutable disk that blocks the line of sight.
type Obstacle struct {
	Center r2.Point
	Radius float64
}

// Contains reports whether p lies inside or on the boundary of the obstacle.
func (o Obstacle) Contains(p r2.Point) bool {
	return p.Sub(o.Center).Norm() <= o.Radius
}

// AgentState is the read-only view of an agent handed to observers.
type AgentState struct {
	X          float64
	Y          float64
	Heading    float64
	Speed      float64
	Perception float64
	FOV        float64
}

// A Snapshot is a copy of the committed state of the world after a tick.
// It is safe to retain and read concurrently with later ticks.
type Snapshot struct {
	Tick      int
	Agents    []AgentState
	Obstacles []Obstacle
}

func stateOf(a Agent) AgentState {
	return AgentState{
		X:          a.Pos.X,
		Y:          a.Pos.Y,
		Heading:    a.Heading,
		Speed:      a.Speed,
		Perception: a.Perception,
		FOV:        a.FOV,
	}
}
