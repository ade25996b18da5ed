// Package flock runs vision-based flocking simulations of point agents.
//
// A fixed number of agents move on a bounded, wraparound plane.
// Each agent perceives the neighbors that fall inside its field of view
// and, optionally, are not hidden behind obstacles. Every time step the
// agents steer according to what they see, all at once, based on the
// state of the swarm at the beginning of the step.
package flock

import (
	"math"

	"github.com/golang/geo/r2"
)

// An Environment contains the geometry of the world.
type Environment struct {
	Width  float64 // extent along x
	Height float64 // extent along y

	// Periodic makes distances and bearings use the shortest
	// displacement across the boundaries. Motion always wraps.
	Periodic bool
}

// Wrap maps a point onto the torus [0, Width) × [0, Height).
func (e Environment) Wrap(p r2.Point) r2.Point {
	return r2.Point{X: wrap(p.X, e.Width), Y: wrap(p.Y, e.Height)}
}

// Vec returns the vector pointing from u to v.
func (e Environment) Vec(u, v r2.Point) r2.Point {
	d := v.Sub(u)
	if !e.Periodic {
		return d
	}
	return r2.Point{X: minImage(d.X, e.Width), Y: minImage(d.Y, e.Height)}
}

// Dist returns the distance between two points.
func (e Environment) Dist(u, v r2.Point) float64 {
	return e.Vec(u, v).Norm()
}

// wrap returns x modulo size in [0, size).
func wrap(x, size float64) float64 {
	x = math.Mod(x, size)
	if x < 0 {
		x += size
	}
	// x+size can round up to size for tiny negative x
	if x >= size {
		x = 0
	}
	return x
}

// minImage returns the shortest representative of a periodic coordinate difference.
func minImage(x, size float64) float64 {
	switch {
	case 2*x <= -size:
		x += size
	case 2*x > size:
		x -= size
	}
	return x
}

// diffAngle returns the difference between two angles in radians.
// The result is between -pi and pi.
func diffAngle(θ, φ float64) float64 {
	return math.Mod(math.Mod(θ-φ, 2*math.Pi)+3*math.Pi, 2*math.Pi) - math.Pi
}

// normalizeAngle maps an angle onto [0, 2π).
func normalizeAngle(θ float64) float64 {
	return wrap(θ, 2*math.Pi)
}

// bearing returns the direction of v in radians.
func bearing(v r2.Point) float64 {
	return math.Atan2(v.Y, v.X)
}

// unit returns the unit vector pointing in direction θ.
func unit(θ float64) r2.Point {
	sin, cos := math.Sincos(θ)
	return r2.Point{X: cos, Y: sin}
}

// circularMean returns the mean direction of a set of angles and false
// if the angles cancel out.
func circularMean(θs []float64) (float64, bool) {
	var sum r2.Point
	for _, θ := range θs {
		sum = sum.Add(unit(θ))
	}
	if sum.Norm() < 1e-12 {
		return 0, false
	}
	return bearing(sum), true
}
