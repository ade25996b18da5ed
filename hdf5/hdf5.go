//go:build !nohdf5
// +build !nohdf5

package hdf5

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/PrincetonUniversity/flock"
	"gonum.org/v1/hdf5"
)

// Record runs a simulation and saves every snapshot to an HDF5 file,
// starting with the state before the first step.
func Record(ctx context.Context, s *flock.Simulation, conf *Config) (err error) {
	if conf.Steps <= 0 {
		return fmt.Errorf("hdf5: recording needs a positive number of steps, got %d", conf.Steps)
	}
	if err := os.MkdirAll(filepath.Dir(conf.Output), 0755); err != nil {
		return err
	}

	file, err := hdf5.CreateFile(conf.Output, hdf5.F_ACC_TRUNC)
	if err != nil {
		return err
	}
	defer checkClose(&err, file)

	if err := saveConfig(file, conf); err != nil {
		return err
	}
	if err := saveObstacles(file, s.Obstacles); err != nil {
		return err
	}

	dtype, err := hdf5.NewDatatypeFromValue(dataPoint{})
	if err != nil {
		return err
	}
	defer checkClose(&err, dtype)

	N := uint(len(s.Swarm))
	T := uint(conf.Steps + 1)

	fspace, err := hdf5.CreateSimpleDataspace([]uint{T, N}, nil)
	if err != nil {
		return err
	}
	defer checkClose(&err, fspace)

	if err := fspace.SelectHyperslab([]uint{0, 0}, nil, []uint{1, N}, nil); err != nil {
		return err
	}

	mspace, err := hdf5.CreateSimpleDataspace([]uint{N}, nil)
	if err != nil {
		return err
	}
	defer checkClose(&err, mspace)

	dset, err := file.CreateDataset("agents", dtype, fspace)
	if err != nil {
		return err
	}
	defer checkClose(&err, dset)

	p := make([]dataPoint, 0, N)
	write := func(snap flock.Snapshot) error {
		if err := fspace.SetOffset([]uint{uint(snap.Tick), 0}); err != nil {
			return err
		}
		p = dataPoints(snap, p)
		if err := dset.WriteSubset(&p, mspace, fspace); err != nil {
			return err
		}
		if conf.Progress != nil {
			conf.Progress(snap.Tick)
		}
		return nil
	}

	// ticks are counted from the beginning of the simulation
	first := s.Snapshot()
	first.Tick = 0
	if err := write(first); err != nil {
		return err
	}
	k := 0
	return s.Run(ctx, conf.Steps, func(snap flock.Snapshot) error {
		k++
		snap.Tick = k
		return write(snap)
	})
}

// saveConfig creates a "config" dataset with a null dataspace whose attributes
// reflect the run identifier, the recording time and the whole configuration.
func saveConfig(file *hdf5.File, conf *Config) (err error) {
	null, err := hdf5.CreateDataspace(hdf5.S_NULL)
	if err != nil {
		return err
	}
	defer checkClose(&err, null)

	anytype, err := hdf5.NewDatatypeFromValue(0)
	if err != nil {
		return err
	}
	defer checkClose(&err, anytype)

	dset, err := file.CreateDataset("config", anytype, null)
	if err != nil {
		return err
	}
	defer checkClose(&err, dset)

	attrs := []attribute{
		{"RunID", conf.RunID},
		{"Time", time.Now().String()},
	}
	if conf.Params != nil {
		params, err := attributes(conf.Params)
		if err != nil {
			return err
		}
		attrs = append(attrs, params...)
	}

	scalar, err := hdf5.CreateDataspace(hdf5.S_SCALAR)
	if err != nil {
		return err
	}
	defer checkClose(&err, scalar)

	for _, a := range attrs {
		if err := writeAttribute(dset, scalar, a); err != nil {
			return fmt.Errorf("hdf5: attribute %s: %v", a.Name, err)
		}
	}
	return nil
}

func writeAttribute(dset *hdf5.Dataset, scalar *hdf5.Dataspace, a attribute) (err error) {
	dtype, err := hdf5.NewDatatypeFromValue(a.Value)
	if err != nil {
		return err
	}
	defer checkClose(&err, dtype)

	attr, err := dset.CreateAttribute(a.Name, dtype, scalar)
	if err != nil {
		return err
	}
	defer checkClose(&err, attr)

	switch v := a.Value.(type) {
	case string:
		return attr.Write(&v, dtype)
	case int:
		return attr.Write(&v, dtype)
	case int64:
		return attr.Write(&v, dtype)
	case float64:
		return attr.Write(&v, dtype)
	default:
		return fmt.Errorf("unsupported type %T", a.Value)
	}
}

// saveObstacles writes the static obstacles dataset.
func saveObstacles(file *hdf5.File, obstacles []flock.Obstacle) (err error) {
	if len(obstacles) == 0 {
		return nil
	}

	dtype, err := hdf5.NewDatatypeFromValue(obstaclePoint{})
	if err != nil {
		return err
	}
	defer checkClose(&err, dtype)

	dspace, err := hdf5.CreateSimpleDataspace([]uint{uint(len(obstacles))}, nil)
	if err != nil {
		return err
	}
	defer checkClose(&err, dspace)

	dset, err := file.CreateDataset("obstacles", dtype, dspace)
	if err != nil {
		return err
	}
	defer checkClose(&err, dset)

	p := obstaclePoints(obstacles)
	return dset.Write(&p)
}

// checkClose checks for errors in deferred calls.
func checkClose(err *error, c io.Closer) {
	if cerr := c.Close(); *err == nil {
		*err = cerr
	}
}
