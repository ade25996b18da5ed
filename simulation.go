package flock

import (
	"context"
	"math"
	"math/rand"
	"sync"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
)

// maxPlacementAttempts bounds the rejection sampling of positions, per item.
const maxPlacementAttempts = 1000

// A Simulation contains all the state and parameters of a simulation.
type Simulation struct {
	Swarm     []Agent
	Obstacles []Obstacle
	Env       Environment
	Steering  Steering
	Dt        float64

	// Workers is the number of goroutines evaluating the steering rules
	// during a step. Values below 2 mean sequential evaluation.
	Workers int

	rng  *rand.Rand
	tick int
}

// New validates the configuration and initializes the state and parameters
// of all agents and obstacles.
func New(conf Config) (*Simulation, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	s := &Simulation{
		Env: Environment{
			Width:    conf.WorldWidth,
			Height:   conf.WorldHeight,
			Periodic: conf.PeriodicVision,
		},
		Steering: conf.Steering(),
		Dt:       conf.Dt,
		Workers:  conf.Workers,
		rng:      rand.New(rand.NewSource(conf.Seed)),
	}

	if err := s.placeObstacles(&conf); err != nil {
		return nil, err
	}
	if err := s.placeAgents(&conf); err != nil {
		return nil, err
	}
	return s, nil
}

// placeObstacles draws non-overlapping obstacles uniformly over the world.
func (s *Simulation) placeObstacles(conf *Config) error {
	lo, hi := conf.ObstacleRadiusRange[0], conf.ObstacleRadiusRange[1]
	s.Obstacles = make([]Obstacle, 0, conf.ObstacleCount)
	for attempts := 0; len(s.Obstacles) < conf.ObstacleCount; attempts++ {
		if attempts >= maxPlacementAttempts*conf.ObstacleCount {
			return errors.Errorf("could only place %d of %d obstacles", len(s.Obstacles), conf.ObstacleCount)
		}
		o := Obstacle{
			Center: r2.Point{X: s.rng.Float64() * s.Env.Width, Y: s.rng.Float64() * s.Env.Height},
			Radius: lo + (hi-lo)*s.rng.Float64(),
		}
		if s.overlaps(o) {
			continue
		}
		s.Obstacles = append(s.Obstacles, o)
	}
	return nil
}

func (s *Simulation) overlaps(o Obstacle) bool {
	for _, q := range s.Obstacles {
		if s.Env.Dist(o.Center, q.Center) < o.Radius+q.Radius {
			return true
		}
	}
	return false
}

// placeAgents places agents uniformly over the world, or within a square of
// half-width SpawnRadius around its center, outside of obstacles.
func (s *Simulation) placeAgents(conf *Config) error {
	s.Swarm = make([]Agent, conf.AgentCount)
	c := r2.Point{X: 0.5 * s.Env.Width, Y: 0.5 * s.Env.Height}
	for i := range s.Swarm {
		var pos r2.Point
		for attempts := 0; ; attempts++ {
			if attempts >= maxPlacementAttempts {
				return errors.Errorf("could not place agent %d outside of obstacles", i)
			}
			if conf.SpawnRadius > 0 {
				pos = s.Env.Wrap(r2.Point{
					X: c.X + conf.SpawnRadius*(2*s.rng.Float64()-1),
					Y: c.Y + conf.SpawnRadius*(2*s.rng.Float64()-1),
				})
			} else {
				pos = r2.Point{X: s.rng.Float64() * s.Env.Width, Y: s.rng.Float64() * s.Env.Height}
			}
			if !s.inObstacle(pos) {
				break
			}
		}
		s.Swarm[i] = Agent{
			Pos:        pos,
			Heading:    normalizeAngle(2 * math.Pi * s.rng.Float64()),
			Speed:      conf.InitialSpeed,
			Radius:     conf.AgentRadius,
			Perception: conf.PerceptionRadius,
			FOV:        conf.FOV(),
		}
	}
	return nil
}

func (s *Simulation) inObstacle(p r2.Point) bool {
	for _, o := range s.Obstacles {
		if s.Env.Dist(o.Center, p) <= o.Radius {
			return true
		}
	}
	return false
}

// Seed resets the PRNG used for exploration turns.
func (s *Simulation) Seed(seed int64) {
	s.rng = rand.New(rand.NewSource(seed))
}

// Step runs a single simulation step.
// Every agent steers based on the state of the swarm before the step;
// the new states are committed together once all of them are known.
func (s *Simulation) Step() {
	if s.rng == nil {
		s.Seed(0)
	}

	// draw random numbers in a fixed order so that results do not depend on Workers
	us := make([]float64, len(s.Swarm))
	for i := range us {
		us[i] = 2*s.rng.Float64() - 1
	}

	prev := s.Swarm
	next := make([]Agent, len(prev))
	update := func(i int) {
		a := prev[i]
		a.Heading, a.Speed = s.Steering.Step(s.Env, i, prev, s.Obstacles, s.Dt, us[i])
		a.Pos = s.Env.Wrap(a.Pos.Add(unit(a.Heading).Mul(a.Speed * s.Dt)))
		next[i] = a
	}

	if s.Workers < 2 {
		for i := range prev {
			update(i)
		}
	} else {
		var wg sync.WaitGroup
		chunk := (len(prev) + s.Workers - 1) / s.Workers
		for lo := 0; lo < len(prev); lo += chunk {
			hi := min(lo+chunk, len(prev))
			wg.Add(1)
			go func(lo, hi int) {
				defer wg.Done()
				for i := lo; i < hi; i++ {
					update(i)
				}
			}(lo, hi)
		}
		wg.Wait()
	}

	s.Swarm = next
	s.tick++
}

// Run runs n steps, or steps until ctx is done if n is 0, and hands a
// snapshot to observe after each of them. The context is only checked
// between steps. An error returned by observe stops the run.
func (s *Simulation) Run(ctx context.Context, n int, observe func(Snapshot) error) error {
	for k := 0; n == 0 || k < n; k++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		s.Step()
		if observe == nil {
			continue
		}
		if err := observe(s.Snapshot()); err != nil {
			return errors.Wrapf(err, "observing tick %d", s.tick)
		}
	}
	return nil
}

// Tick returns the number of steps run so far.
func (s *Simulation) Tick() int {
	return s.tick
}

// Snapshot returns a copy of the current state of the world.
func (s *Simulation) Snapshot() Snapshot {
	snap := Snapshot{
		Tick:      s.tick,
		Agents:    make([]AgentState, len(s.Swarm)),
		Obstacles: append([]Obstacle(nil), s.Obstacles...),
	}
	for i, a := range s.Swarm {
		snap.Agents[i] = stateOf(a)
	}
	return snap
}

// Polarization returns the norm of the mean heading vector of the swarm.
// It is 1 if all agents head the same way and close to 0 if headings are disordered.
func (s *Simulation) Polarization() float64 {
	if len(s.Swarm) == 0 {
		return 0
	}
	var sum r2.Point
	for _, a := range s.Swarm {
		sum = sum.Add(unit(a.Heading))
	}
	return sum.Norm() / float64(len(s.Swarm))
}
