//go:build !nohdf5
// +build !nohdf5

package hdf5

import (
	"fmt"
	"io"

	"github.com/PrincetonUniversity/flock"
	"github.com/golang/geo/r2"
	"gonum.org/v1/hdf5"
)

// A Loader sequentially loads the snapshots of a recording.
type Loader struct {
	i uint // index of current slice
	n uint // total number of slices

	data      []dataPoint // data buffer
	obstacles []flock.Obstacle

	file   *hdf5.File
	dset   *hdf5.Dataset
	fspace *hdf5.Dataspace
	mspace *hdf5.Dataspace
}

// NewLoader opens a recording and returns an initialized loader.
func NewLoader(path string) (l *Loader, err error) {
	l = new(Loader)
	if l.file, err = hdf5.OpenFile(path, hdf5.F_ACC_RDONLY); err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			l.Close()
			l = nil
		}
	}()

	if l.dset, err = l.file.OpenDataset("agents"); err != nil {
		return l, err
	}
	l.fspace = l.dset.Space()
	dims, _, err := l.fspace.SimpleExtentDims()
	if err != nil {
		return l, err
	}
	if len(dims) != 2 {
		return l, fmt.Errorf("loader: agents dataset has %d dimensions, want 2", len(dims))
	}
	l.n = dims[0]

	// a single row of agents is read at a time
	if l.mspace, err = hdf5.CreateSimpleDataspace(dims[1:], nil); err != nil {
		return l, err
	}
	if err = l.fspace.SelectHyperslab([]uint{0, 0}, nil, []uint{1, dims[1]}, nil); err != nil {
		return l, err
	}
	l.data = make([]dataPoint, dims[1])

	err = l.loadObstacles()
	return l, err
}

// loadObstacles reads the obstacles dataset if the recording has one.
func (l *Loader) loadObstacles() (err error) {
	if !l.file.LinkExists("obstacles") {
		return nil
	}
	dset, err := l.file.OpenDataset("obstacles")
	if err != nil {
		return err
	}
	defer checkClose(&err, dset)

	space := dset.Space()
	defer checkClose(&err, space)
	dims, _, err := space.SimpleExtentDims()
	if err != nil {
		return err
	}
	if len(dims) != 1 {
		return fmt.Errorf("loader: expected 1 dimension for obstacles, got %d", len(dims))
	}

	p := make([]obstaclePoint, dims[0])
	if err := dset.Read(&p); err != nil {
		return err
	}
	l.obstacles = make([]flock.Obstacle, len(p))
	for i, o := range p {
		l.obstacles[i] = flock.Obstacle{Center: r2.Point{X: o.X, Y: o.Y}, Radius: o.Radius}
	}
	return nil
}

// Len returns the number of snapshots in the recording.
func (l *Loader) Len() int {
	return int(l.n)
}

// Next loads the next snapshot available and returns io.EOF
// when everything has already been loaded.
func (l *Loader) Next() (flock.Snapshot, error) {
	if l.i >= l.n {
		return flock.Snapshot{}, io.EOF
	}

	start := []uint{l.i, 0}
	if err := l.fspace.SetOffset(start); err != nil {
		return flock.Snapshot{}, err
	}
	if err := l.dset.ReadSubset(&l.data, l.mspace, l.fspace); err != nil {
		return flock.Snapshot{}, err
	}

	snap := flock.Snapshot{
		Tick:      int(l.i),
		Agents:    make([]flock.AgentState, len(l.data)),
		Obstacles: l.obstacles,
	}
	for i, p := range l.data {
		snap.Agents[i] = flock.AgentState(p)
	}
	l.i++
	return snap, nil
}

// Rewind makes the next call to Next return the first snapshot again.
func (l *Loader) Rewind() {
	l.i = 0
}

// Close releases the HDF5 resources held by the loader.
func (l *Loader) Close() (err error) {
	if l.mspace != nil {
		checkClose(&err, l.mspace)
	}
	if l.fspace != nil {
		checkClose(&err, l.fspace)
	}
	if l.dset != nil {
		checkClose(&err, l.dset)
	}
	checkClose(&err, l.file)
	return err
}
