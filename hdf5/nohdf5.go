//go:build nohdf5
// +build nohdf5

package hdf5

import (
	"context"
	"fmt"
	"os"

	"github.com/PrincetonUniversity/flock"
)

// Record returns an error explaining that HDF5 support is disabled.
func Record(ctx context.Context, s *flock.Simulation, conf *Config) error {
	return fmt.Errorf("%s was built without HDF5 support", os.Args[0])
}

// A Loader sequentially loads the snapshots of a recording.
type Loader struct{}

// NewLoader returns an error explaining that HDF5 support is disabled.
func NewLoader(filepath string) (*Loader, error) {
	return nil, fmt.Errorf("%s was built without HDF5 support", os.Args[0])
}

// Len returns the number of snapshots in the recording.
func (l *Loader) Len() int { return 0 }

// Next always reports that HDF5 support is disabled.
func (l *Loader) Next() (flock.Snapshot, error) {
	return flock.Snapshot{}, fmt.Errorf("%s was built without HDF5 support", os.Args[0])
}

// Rewind does nothing.
func (l *Loader) Rewind() {}

// Close does nothing.
func (l *Loader) Close() error { return nil }
