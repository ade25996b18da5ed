// Package hdf5 records simulations to HDF5 files and loads them back.
//
// A recording holds three datasets:
//
//	agents     T × N compound {X, Y, Heading, Speed, Perception, FOV}, one row per tick
//	obstacles  M compound {X, Y, Radius}, absent when there are no obstacles
//	config     null dataspace whose attributes describe the run
package hdf5

import (
	"fmt"
	"reflect"

	"github.com/PrincetonUniversity/flock"
)

// Config holds the parameters of the HDF5 driver.
type Config struct {
	Output   string      // path of output file
	Steps    int         // number of steps recorded after the initial state
	RunID    string      // identifier of the run, stored as an attribute
	Params   interface{} // struct whose fields are stored as attributes
	Progress func(tick int)
}

// A dataPoint is what is recorded in the HDF5 file for each agent at each step.
// This structure is mapped to a compound datatype in HDF5 so member names are important.
type dataPoint struct {
	X          float64
	Y          float64
	Heading    float64
	Speed      float64
	Perception float64
	FOV        float64
}

// An obstaclePoint is the compound datatype of the obstacles dataset.
type obstaclePoint struct {
	X      float64
	Y      float64
	Radius float64
}

func dataPoints(snap flock.Snapshot, p []dataPoint) []dataPoint {
	p = p[:0]
	for _, a := range snap.Agents {
		p = append(p, dataPoint(a))
	}
	return p
}

func obstaclePoints(obstacles []flock.Obstacle) []obstaclePoint {
	p := make([]obstaclePoint, len(obstacles))
	for i, o := range obstacles {
		p[i] = obstaclePoint{X: o.Center.X, Y: o.Center.Y, Radius: o.Radius}
	}
	return p
}

// An attribute is a named scalar value stored on the config dataset.
type attribute struct {
	Name  string
	Value interface{}
}

// attributes flattens the exported fields of a struct into scalar attributes.
// Booleans become 0 or 1 and fixed-size arrays become one attribute per element.
func attributes(v interface{}) ([]attribute, error) {
	rv := reflect.Indirect(reflect.ValueOf(v))
	if rv.Kind() != reflect.Struct {
		return nil, fmt.Errorf("hdf5: expected struct parameters, got %s", rv.Kind())
	}

	var attrs []attribute
	for i := 0; i < rv.NumField(); i++ {
		f := rv.Type().Field(i)
		if f.PkgPath != "" {
			continue
		}
		switch x := rv.Field(i); x.Kind() {
		case reflect.Bool:
			n := 0
			if x.Bool() {
				n = 1
			}
			attrs = append(attrs, attribute{f.Name, n})
		case reflect.Int, reflect.Int64:
			attrs = append(attrs, attribute{f.Name, x.Int()})
		case reflect.Float64:
			attrs = append(attrs, attribute{f.Name, x.Float()})
		case reflect.String:
			attrs = append(attrs, attribute{f.Name, x.String()})
		case reflect.Array:
			for k := 0; k < x.Len(); k++ {
				attrs = append(attrs, attribute{fmt.Sprintf("%s%d", f.Name, k), x.Index(k).Interface()})
			}
		default:
			return nil, fmt.Errorf("hdf5: unsupported parameter %s of kind %s", f.Name, x.Kind())
		}
	}
	return attrs, nil
}
