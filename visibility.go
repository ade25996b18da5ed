package flock

import (
	"math"

	"github.com/golang/geo/r2"
)

// An OcclusionMethod selects how a line of sight is tested against occluders.
type OcclusionMethod int

const (
	// March walks along the line of sight in fixed steps and fails as soon as
	// a step lands inside an occluder. It is an approximation whose precision
	// is governed by the step length.
	March OcclusionMethod = iota

	// Exact intersects the line of sight with every occluding disk.
	Exact
)

// Vision contains the parameters of the visibility model.
type Vision struct {
	Occlusion     bool            // test line of sight, not only the field of view
	Method        OcclusionMethod // line of sight test
	Samples       int             // number of points sampled on the target's boundary
	Step          float64         // marching step in world units
	AgentsOcclude bool            // bodies of other agents block the view too
}

// disk is an occluder. owner is the index of the agent whose body it is,
// or -1 for obstacles.
type disk struct {
	center r2.Point
	radius float64
	owner  int
}

// InView reports whether target lies inside the field of view of observer,
// regardless of occlusion.
func InView(env Environment, observer, target Agent) bool {
	v := env.Vec(observer.Pos, target.Pos)
	d := v.Norm()
	if d > observer.Perception {
		return false
	}
	if d == 0 {
		return true
	}
	return math.Abs(diffAngle(bearing(v), observer.Heading)) <= observer.FOV
}

// Visible reports whether observer can perceive target given a set of obstacles.
func (v Vision) Visible(env Environment, observer, target Agent, obstacles []Obstacle) bool {
	if !InView(env, observer, target) {
		return false
	}
	if !v.Occlusion {
		return true
	}
	return v.unobstructed(env, observer, target, occluders(obstacles, nil), -1, -1)
}

// Neighbors returns the indices of the agents of swarm visible from swarm[i].
// The observer is never part of its own neighbors.
func (v Vision) Neighbors(env Environment, i int, swarm []Agent, obstacles []Obstacle) []int {
	var occ []disk
	if v.Occlusion {
		var bodies []Agent
		if v.AgentsOcclude {
			bodies = swarm
		}
		occ = occluders(obstacles, bodies)
	}

	var ns []int
	p := swarm[i]
	for j, q := range swarm {
		if j == i || !InView(env, p, q) {
			continue
		}
		if v.Occlusion && !v.unobstructed(env, p, q, occ, i, j) {
			continue
		}
		ns = append(ns, j)
	}
	return ns
}

// occluders gathers obstacles and agent bodies into a single list.
func occluders(obstacles []Obstacle, bodies []Agent) []disk {
	occ := make([]disk, 0, len(obstacles)+len(bodies))
	for _, o := range obstacles {
		occ = append(occ, disk{center: o.Center, radius: o.Radius, owner: -1})
	}
	for k, a := range bodies {
		if a.Radius > 0 {
			occ = append(occ, disk{center: a.Pos, radius: a.Radius, owner: k})
		}
	}
	return occ
}

// unobstructed reports whether at least one of the points sampled on the
// boundary of target can be reached from the center of observer.
// Occluders owned by agents i and j are ignored.
func (v Vision) unobstructed(env Environment, observer, target Agent, occ []disk, i, j int) bool {
	if len(occ) == 0 {
		return true
	}

	// positions relative to the observer, wrapped when the world is periodic
	from := observer.Pos
	c := from.Add(env.Vec(from, target.Pos))
	for k := 0; k < v.Samples; k++ {
		to := c.Add(unit(2 * math.Pi * float64(k) / float64(v.Samples)).Mul(target.Radius))
		var clear bool
		switch v.Method {
		case Exact:
			clear = v.intersectClear(env, from, to, occ, i, j)
		default:
			clear = v.marchClear(env, from, to, occ, i, j)
		}
		if clear {
			return true
		}
	}
	return false
}

// marchClear walks from from to to and fails at the first step inside an occluder.
func (v Vision) marchClear(env Environment, from, to r2.Point, occ []disk, i, j int) bool {
	d := to.Sub(from)
	l := d.Norm()
	if l == 0 {
		return true
	}
	u := d.Mul(1 / l)
	for n := 1; ; n++ {
		s := float64(n) * v.Step
		if s >= l {
			// overshot the sample point
			return true
		}
		p := from.Add(u.Mul(s))
		for _, o := range occ {
			if o.owner >= 0 && (o.owner == i || o.owner == j) {
				continue
			}
			if env.Dist(o.center, p) <= o.radius {
				return false
			}
		}
	}
}

// intersectClear fails if the segment [from, to] meets any occluder.
func (v Vision) intersectClear(env Environment, from, to r2.Point, occ []disk, i, j int) bool {
	d := to.Sub(from)
	l2 := d.Dot(d)
	mid := from.Add(d.Mul(0.5))
	for _, o := range occ {
		if o.owner >= 0 && (o.owner == i || o.owner == j) {
			continue
		}
		// image of the occluder nearest to the segment
		c := mid.Add(env.Vec(mid, o.center))
		t := 0.0
		if l2 > 0 {
			t = math.Max(0, math.Min(1, c.Sub(from).Dot(d)/l2))
		}
		if c.Sub(from.Add(d.Mul(t))).Norm() <= o.radius {
			return false
		}
	}
	return true
}
