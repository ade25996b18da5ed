package flock

import (
	"math"

	"github.com/golang/geo/r2"
)

// Weights are the independent gains of the steering rules.
type Weights struct {
	Alignment   float64 // steer toward the mean heading of neighbors
	Cohesion    float64 // steer toward the centroid of neighbors
	Separation  float64 // steer away from neighbors that are too close
	Gradient    float64 // adaptive speed and heading gradient
	Exploration float64 // random turn applied on top of the rules when neighbors are visible
}

// Gradient contains the gains of the adaptive speed and heading gradient.
// Distance bands are expressed in multiples of the agent's own radius:
// [0, 2r) is too close and [2r, 4r) is the ideal distance.
type Gradient struct {
	SpeedRepulsion float64 // acceleration coefficient for the distance bands
	TurnRepulsion  float64 // angular velocity coefficient for the distance bands
	SpeedGain      float64 // acceleration toward the mean speed
	HeadingGain    float64 // angular velocity toward the mean heading

	// OverPopulation computes the mean speed and heading over every other agent
	// instead of over visible neighbors only.
	OverPopulation bool
}

// Steering contains all the parameters relative to the rules followed by agents.
type Steering struct {
	Vision Vision
	Weights
	Gains Gradient

	MaxSpeed    float64 // speed is clamped to [0, MaxSpeed]
	TurnRate    float64 // bound of the random exploration turn in radians
	MaxTurn     float64 // maximum turning rate in radians per unit time, 0 means unlimited
	TooClose    float64 // separation threshold, 0 means twice the agent radius
	MinDistance float64 // substitute for zero distances
}

// Step computes the new heading and speed of swarm[i] given the state of
// the whole swarm at the beginning of the tick. u is a uniform random
// number in [-1, 1] drawn for this agent and this tick.
// swarm is only read.
func (s *Steering) Step(env Environment, i int, swarm []Agent, obstacles []Obstacle, dt, u float64) (heading, speed float64) {
	p := swarm[i]
	ns := s.Vision.Neighbors(env, i, swarm, obstacles)

	// explore when alone
	if len(ns) == 0 {
		return normalizeAngle(p.Heading + u*s.TurnRate), p.Speed
	}

	var dθ, dv float64
	if s.Alignment != 0 {
		dθ += s.Alignment * s.alignment(p, swarm, ns)
	}
	if s.Cohesion != 0 {
		dθ += s.Cohesion * s.cohesion(env, p, swarm, ns)
	}
	if s.Separation != 0 {
		dθ += s.Separation * s.separation(env, p, swarm, ns)
	}
	if s.Gradient != 0 {
		gθ, gv := s.gradient(env, i, swarm, ns)
		dθ += s.Gradient * gθ
		dv += s.Gradient * gv
	}

	// limit turn
	turn := dθ * dt
	if s.MaxTurn > 0 {
		m := s.MaxTurn * dt
		turn = math.Max(-m, math.Min(m, turn))
	}

	// the exploration turn is a perturbation, not a rate
	turn += s.Exploration * u * s.TurnRate

	heading = normalizeAngle(p.Heading + turn)
	speed = math.Max(0, math.Min(s.MaxSpeed, p.Speed+dv*dt))
	return heading, speed
}

// alignment returns the turn toward the circular mean heading of neighbors.
func (s *Steering) alignment(p Agent, swarm []Agent, ns []int) float64 {
	θs := make([]float64, len(ns))
	for k, j := range ns {
		θs[k] = swarm[j].Heading
	}
	m, ok := circularMean(θs)
	if !ok {
		return 0
	}
	return diffAngle(m, p.Heading)
}

// cohesion returns the turn toward the centroid of neighbors.
func (s *Steering) cohesion(env Environment, p Agent, swarm []Agent, ns []int) float64 {
	var c r2.Point
	for _, j := range ns {
		c = c.Add(env.Vec(p.Pos, swarm[j].Pos))
	}
	if c.Norm() == 0 {
		return 0
	}
	return diffAngle(bearing(c), p.Heading)
}

// separation returns the turn away from neighbors that are too close.
// Closer neighbors contribute more.
func (s *Steering) separation(env Environment, p Agent, swarm []Agent, ns []int) float64 {
	limit := s.TooClose
	if limit == 0 {
		limit = 2 * p.Radius
	}

	var rep r2.Point
	for _, j := range ns {
		away := env.Vec(swarm[j].Pos, p.Pos)
		d := away.Norm()
		if d >= limit {
			continue
		}
		var dir r2.Point
		if d == 0 {
			// coincident, sidestep to the left
			d = s.MinDistance
			dir = unit(p.Heading).Ortho()
		} else {
			dir = away.Mul(1 / d)
		}
		rep = rep.Add(dir.Mul(1 / d))
	}
	if rep.Norm() == 0 {
		return 0
	}
	return diffAngle(bearing(rep), p.Heading)
}

// gradient returns the angular and linear accelerations of the adaptive
// gradient rule: short-range repulsion, mid-range attraction and relaxation
// toward the mean speed and heading.
func (s *Steering) gradient(env Environment, i int, swarm []Agent, ns []int) (dθ, dv float64) {
	p := swarm[i]
	g := s.Gains
	r := p.Radius

	for _, j := range ns {
		v := env.Vec(p.Pos, swarm[j].Pos)
		d := v.Norm()
		α := 0.0
		if d == 0 {
			d = s.MinDistance
		} else {
			α = diffAngle(bearing(v), p.Heading)
		}
		switch {
		case d < 2*r:
			dv -= g.SpeedRepulsion / d
			dθ -= g.TurnRepulsion * α / d
		case d < 4*r:
			dv += g.SpeedRepulsion / d
			dθ += g.TurnRepulsion * α / d
		}
	}

	others := ns
	if g.OverPopulation {
		others = make([]int, 0, len(swarm)-1)
		for j := range swarm {
			if j != i {
				others = append(others, j)
			}
		}
	}

	var sum float64
	θs := make([]float64, len(others))
	for k, j := range others {
		sum += swarm[j].Speed
		θs[k] = swarm[j].Heading
	}
	dv += g.SpeedGain * (sum/float64(len(others)) - p.Speed)
	if m, ok := circularMean(θs); ok {
		dθ += g.HeadingGain * diffAngle(m, p.Heading)
	}
	return dθ, dv
}
