// Package result writes per-body CSV trajectories and the common
// sim_time.csv time axis, matching the exact column set spec.md §6
// names for each saved step.
package result

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/anupshinde/multibody-sim/integrator"
	"github.com/anupshinde/multibody-sim/multibody"
)

// bodyColumns is the fixed header every per-body CSV carries, in the
// order spec.md §6 lists them.
var bodyColumns = []string{
	"position[x]{base}", "position[y]{base}", "position[z]{base}",
	"velocity[x]{base}", "velocity[y]{base}", "velocity[z]{base}",
	"velocity[x]{body}", "velocity[y]{body}", "velocity[z]{body}",
	"acceleration[x]{base}", "acceleration[y]{base}", "acceleration[z]{base}",
	"acceleration[x]{body}", "acceleration[y]{body}", "acceleration[z]{body}",
	"attitude[x]{base}", "attitude[y]{base}", "attitude[z]{base}", "attitude[w]{base}",
	"angular_rate[x]{body}", "angular_rate[y]{body}", "angular_rate[z]{body}",
	"angular_accel[x]{body}", "angular_accel[y]{body}", "angular_accel[z]{body}",
	"external_force[x]{body}", "external_force[y]{body}", "external_force[z]{body}",
	"external_torque[x]{body}", "external_torque[y]{body}", "external_torque[z]{body}",
}

// OpenError reports a file-system failure opening a result writer
// (spec.md §7's I/O failure exit path).
type OpenError struct {
	Path string
	Err  error
}

func (e OpenError) Error() string { return fmt.Sprintf("result: opening %s: %v", e.Path, e.Err) }
func (e OpenError) Unwrap() error { return e.Err }

// BodyWriter appends one CSV row per saved step for a single body.
type BodyWriter struct {
	name string
	file *os.File
	csv  *csv.Writer
}

// NewBodyWriter creates (or truncates) <dir>/<name>.csv and writes its
// header row.
func NewBodyWriter(dir, name string) (*BodyWriter, error) {
	path := filepath.Join(dir, name+".csv")
	f, err := os.Create(path)
	if err != nil {
		return nil, OpenError{Path: path, Err: err}
	}
	w := csv.NewWriter(f)
	if err := w.Write(bodyColumns); err != nil {
		f.Close()
		return nil, OpenError{Path: path, Err: err}
	}
	return &BodyWriter{name: name, file: f, csv: w}, nil
}

// WriteState appends one row for s.
func (bw *BodyWriter) WriteState(s multibody.BodyState) error {
	qx, qy, qz, qw := s.AttitudeBase.XYZW()
	extForce := s.ExternalSpatialForceBody.Force()
	extTorque := s.ExternalSpatialForceBody.Torque()

	values := make([]float64, 0, len(bodyColumns))
	values = append(values, s.PositionBase[:]...)
	values = append(values, s.VelocityBase[:]...)
	values = append(values, s.VelocityBody[:]...)
	values = append(values, s.AccelerationBase[:]...)
	values = append(values, s.AccelerationBody[:]...)
	values = append(values, qx, qy, qz, qw)
	values = append(values, s.AngularRateBody[:]...)
	values = append(values, s.AngularAccelBody[:]...)
	values = append(values, extForce[:]...)
	values = append(values, extTorque[:]...)

	row := make([]string, len(values))
	for i, v := range values {
		row[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return bw.csv.Write(row)
}

// Flush pushes buffered rows to disk without closing the file.
func (bw *BodyWriter) Flush() error {
	bw.csv.Flush()
	return bw.csv.Error()
}

// Close flushes and closes the underlying file.
func (bw *BodyWriter) Close() error {
	if err := bw.Flush(); err != nil {
		return err
	}
	return bw.file.Close()
}

// SimTimeWriter appends the common time axis every per-body writer's
// rows align to.
type SimTimeWriter struct {
	file *os.File
	csv  *csv.Writer
}

// NewSimTimeWriter creates (or truncates) <dir>/sim_time.csv.
func NewSimTimeWriter(dir string) (*SimTimeWriter, error) {
	path := filepath.Join(dir, "sim_time.csv")
	f, err := os.Create(path)
	if err != nil {
		return nil, OpenError{Path: path, Err: err}
	}
	w := csv.NewWriter(f)
	if err := w.Write([]string{"time"}); err != nil {
		f.Close()
		return nil, OpenError{Path: path, Err: err}
	}
	return &SimTimeWriter{file: f, csv: w}, nil
}

// WriteTime appends one row.
func (tw *SimTimeWriter) WriteTime(t float64) error {
	return tw.csv.Write([]string{strconv.FormatFloat(t, 'g', -1, 64)})
}

func (tw *SimTimeWriter) Flush() error {
	tw.csv.Flush()
	return tw.csv.Error()
}

func (tw *SimTimeWriter) Close() error {
	if err := tw.Flush(); err != nil {
		return err
	}
	return tw.file.Close()
}

// Writers owns one BodyWriter per tracked body plus the shared
// SimTimeWriter, and builds the save-event and post-sim hooks an
// integrator.Driver runs them from.
type Writers struct {
	bodies  []*BodyWriter
	sysBody []*multibody.Body
	simTime *SimTimeWriter
}

// Open creates a CSV writer per body in sys (skipping the immovable
// root, which has no joint driving it) and the shared sim_time.csv,
// all under dir.
func Open(dir string, sys *multibody.System) (*Writers, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, OpenError{Path: dir, Err: err}
	}
	simTime, err := NewSimTimeWriter(dir)
	if err != nil {
		return nil, err
	}
	w := &Writers{simTime: simTime}
	for _, j := range sys.Joints {
		bw, err := NewBodyWriter(dir, j.OuterBody.Name)
		if err != nil {
			w.Close()
			return nil, err
		}
		w.bodies = append(w.bodies, bw)
		w.sysBody = append(w.sysBody, j.OuterBody)
	}
	return w, nil
}

// SaveEvent returns the integrator.Event that appends a row to every
// writer at the configured save.interval/offset.
func (w *Writers) SaveEvent(period, offset float64) integrator.Event {
	return integrator.Event{
		Period: period,
		Offset: offset,
		Fire: func(t float64, x []float64) error {
			if err := w.simTime.WriteTime(t); err != nil {
				return err
			}
			for i, bw := range w.bodies {
				if err := bw.WriteState(w.sysBody[i].State); err != nil {
					return err
				}
			}
			for _, bw := range w.bodies {
				if err := bw.Flush(); err != nil {
					return err
				}
			}
			return w.simTime.Flush()
		},
	}
}

// PostSim flushes and closes every writer; it is the post-sim event
// the integrator fires once after its loop exits.
func (w *Writers) PostSim(t float64, x []float64) error {
	return w.Close()
}

// Close flushes and closes every writer, returning the first error
// encountered while still attempting to close the rest.
func (w *Writers) Close() error {
	var first error
	for _, bw := range w.bodies {
		if err := bw.Close(); err != nil && first == nil {
			first = err
		}
	}
	if w.simTime != nil {
		if err := w.simTime.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
