// Package integrator drives a packed state vector forward in time with
// an embedded Dormand-Prince 5(4) Runge-Kutta method, adapting its own
// step size from the pair's error estimate. It replaces the fixed-step
// classical RK4 used upstream with step-size control, periodic/save
// events fired between accepted steps, and a cancellation token.
package integrator

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
)

// DerivativeFunc evaluates dx/dt at time t for state x. A non-nil error
// is always treated as fatal: the driver wraps it in an
// IntegratorFailureError and stops.
type DerivativeFunc func(t float64, x []float64) ([]float64, error)

// CancelToken reports whether a run in progress should stop. It is
// checked once per accepted step, never mid-step.
type CancelToken interface {
	Cancelled() bool
}

// Event fires Fire the first time the driver's current time reaches or
// passes a multiple of Period offset by Offset, after an accepted step.
// Fire may mutate x in place but must not change its length.
type Event struct {
	Period   float64
	Offset   float64
	Fire     func(t float64, x []float64) error
	nextFire float64
}

// Options bounds the driver's step-size controller.
type Options struct {
	AbsTol float64
	RelTol float64
	HMin   float64
	HMax   float64
	Safety float64
}

// DefaultOptions matches spec.md §6's documented defaults: 1e-10
// absolute and relative tolerance, a PI-controller safety factor of
// 0.9. HMin/HMax have no universal default and are left for the caller
// to size to the problem's natural timescale.
func DefaultOptions() Options {
	return Options{AbsTol: 1e-10, RelTol: 1e-10, Safety: 0.9}
}

// DerivativeNonFiniteError reports that a right-hand-side evaluation
// produced a NaN or Inf component.
type DerivativeNonFiniteError struct {
	Time float64
}

func (e DerivativeNonFiniteError) Error() string {
	return fmt.Sprintf("integrator: non-finite derivative at t=%v", e.Time)
}

// StepSizeUnderflowError reports that the controller shrank the step
// below HMin while trying to satisfy the tolerance.
type StepSizeUnderflowError struct {
	Time float64
	Step float64
}

func (e StepSizeUnderflowError) Error() string {
	return fmt.Sprintf("integrator: step size underflow at t=%v (h=%v)", e.Time, e.Step)
}

// IntegratorFailureError wraps any error returned by the derivative
// function. spec.md §7 classifies rotation-degenerate, inertia-singular,
// and ABA-D-not-invertible conditions as NumericalError, surfacing from
// the right-hand side; the driver has no way to tell those apart from
// a DataError also raised there, so both are fatal here.
type IntegratorFailureError struct {
	Time float64
	Err  error
}

func (e IntegratorFailureError) Error() string {
	return fmt.Sprintf("integrator: failure at t=%v: %v", e.Time, e.Err)
}

func (e IntegratorFailureError) Unwrap() error { return e.Err }

// CancelledError reports a clean stop requested through a CancelToken.
type CancelledError struct {
	Time float64
}

func (e CancelledError) Error() string {
	return fmt.Sprintf("integrator: cancelled at t=%v", e.Time)
}

// Driver advances a state vector with Dormand-Prince 5(4), firing
// Periodic and Save events between accepted steps and PostSim once
// after the loop exits.
type Driver struct {
	Derivative DerivativeFunc
	Options    Options
	Periodic   []Event
	Save       []Event
	PostSim    func(t float64, x []float64) error
	Cancel     CancelToken
	logger     zerolog.Logger
}

// NewDriver constructs a Driver with the given right-hand side and
// controller options. logger receives a diagnostic line per rejected
// step and per terminal condition.
func NewDriver(derivative DerivativeFunc, opts Options, logger zerolog.Logger) *Driver {
	return &Driver{Derivative: derivative, Options: opts, logger: logger}
}

// Dormand-Prince 5(4) Butcher tableau (Dormand & Prince, 1980). b is
// the 5th-order solution weights, bStar the embedded 4th-order
// weights used only to form the error estimate.
var (
	dpC = [7]float64{0, 1.0 / 5, 3.0 / 10, 4.0 / 5, 8.0 / 9, 1, 1}

	dpA = [7][6]float64{
		{},
		{1.0 / 5},
		{3.0 / 40, 9.0 / 40},
		{44.0 / 45, -56.0 / 15, 32.0 / 9},
		{19372.0 / 6561, -25360.0 / 2187, 64448.0 / 6561, -212.0 / 729},
		{9017.0 / 3168, -355.0 / 33, 46732.0 / 5247, 49.0 / 176, -5103.0 / 18656},
		{35.0 / 384, 0, 500.0 / 1113, 125.0 / 192, -2187.0 / 6784, 11.0 / 84},
	}

	dpB = [7]float64{35.0 / 384, 0, 500.0 / 1113, 125.0 / 192, -2187.0 / 6784, 11.0 / 84, 0}

	dpBStar = [7]float64{
		5179.0 / 57600, 0, 7571.0 / 16695, 393.0 / 640,
		-92097.0 / 339200, 187.0 / 2100, 1.0 / 40,
	}
)

// errorOrder is p+1 where p=4 is the order of the embedded solution
// used for the error estimate; the controller scales step size by the
// error norm raised to -1/errorOrder.
const errorOrder = 5

// Run integrates x0 from tStart to tStop, returning the final time
// (equal to tStop unless cancelled or a failure intervenes) and state.
// hInit seeds the first step; it is clamped into [HMin, HMax] like
// every step the controller proposes afterward.
func (d *Driver) Run(x0 []float64, tStart, tStop, hInit float64) (float64, []float64, error) {
	n := len(x0)
	x := append([]float64(nil), x0...)
	t := tStart
	h := d.clampStep(hInit)

	periodic := scheduleEvents(d.Periodic, tStart)
	save := scheduleEvents(d.Save, tStart)

	stages := make([][]float64, 7)
	x5 := make([]float64, n)
	x4 := make([]float64, n)
	stage := make([]float64, n)

	for t < tStop {
		if d.Cancel != nil && d.Cancel.Cancelled() {
			d.logger.Info().Float64("t", t).Msg("integration cancelled")
			return t, x, CancelledError{Time: t}
		}
		if t+h > tStop {
			h = tStop - t
		}

		for {
			ok, err := d.evaluateStages(t, h, x, stages, stage)
			if err != nil {
				return t, x, IntegratorFailureError{Time: t, Err: err}
			}
			if !ok {
				return t, x, DerivativeNonFiniteError{Time: t}
			}

			combine(x, stages, h, dpB[:], x5)
			combine(x, stages, h, dpBStar[:], x4)
			errNorm := errorNorm(x, x5, x4, d.Options.AbsTol, d.Options.RelTol)

			factor := growthFactor(errNorm)
			hProposed := h * d.Options.Safety * factor
			hNext := d.clampStep(hProposed)

			if errNorm <= 1.0 {
				t += h
				copy(x, x5)

				if err := fireEvents(periodic, t, x); err != nil {
					return t, x, IntegratorFailureError{Time: t, Err: err}
				}
				if err := fireEvents(save, t, x); err != nil {
					return t, x, IntegratorFailureError{Time: t, Err: err}
				}

				h = hNext
				break
			}

			d.logger.Debug().Float64("t", t).Float64("h", h).Float64("err", errNorm).Msg("step rejected")
			if hProposed < d.Options.HMin {
				d.logger.Error().Float64("t", t).Float64("h", hProposed).Msg("step size underflow")
				return t, x, StepSizeUnderflowError{Time: t, Step: hProposed}
			}
			h = hNext
		}
	}

	if d.PostSim != nil {
		if err := d.PostSim(t, x); err != nil {
			return t, x, IntegratorFailureError{Time: t, Err: err}
		}
	}
	return t, x, nil
}

// evaluateStages fills stages[0..6] with the derivative at each of the
// tableau's seven evaluation points. It returns ok=false the first time
// any derivative component is non-finite, short-circuiting the rest.
func (d *Driver) evaluateStages(t, h float64, x []float64, stages [][]float64, stage []float64) (bool, error) {
	n := len(x)
	for i := 0; i < 7; i++ {
		for k := 0; k < n; k++ {
			sum := 0.0
			for j := 0; j < i; j++ {
				sum += dpA[i][j] * stages[j][k]
			}
			stage[k] = x[k] + h*sum
		}
		k, err := d.Derivative(t+dpC[i]*h, stage)
		if err != nil {
			return false, err
		}
		if !allFinite(k) {
			return false, nil
		}
		stages[i] = append([]float64(nil), k...)
	}
	return true, nil
}

// combine forms x + h*sum(weights[i]*stages[i]) into out.
func combine(x []float64, stages [][]float64, h float64, weights []float64, out []float64) {
	for k := range x {
		sum := 0.0
		for i, w := range weights {
			if w == 0 {
				continue
			}
			sum += w * stages[i][k]
		}
		out[k] = x[k] + h*sum
	}
}

// errorNorm is the weighted RMS norm of the difference between the
// 5th- and 4th-order solutions (Hairer, Norsett & Wanner's standard
// embedded-pair error measure). A result at or below 1 means the step
// satisfies both tolerances.
func errorNorm(x, x5, x4 []float64, absTol, relTol float64) float64 {
	n := len(x)
	sum := 0.0
	for i := 0; i < n; i++ {
		scale := absTol + relTol*math.Max(math.Abs(x[i]), math.Abs(x5[i]))
		if scale == 0 {
			scale = absTol
		}
		e := (x5[i] - x4[i]) / scale
		sum += e * e
	}
	return math.Sqrt(sum / float64(n))
}

// growthFactor converts a normalized error into a step-size multiplier,
// clamped to [0.2, 2.0] so that (per the acceptance boundary case) an
// accepted step with err just under 1 leaves the next step bounded by
// h*safety*2, and a rejected step never shrinks by more than 5x.
func growthFactor(errNorm float64) float64 {
	if errNorm == 0 {
		return 2.0
	}
	factor := math.Pow(1.0/errNorm, 1.0/errorOrder)
	if factor > 2.0 {
		return 2.0
	}
	if factor < 0.2 {
		return 0.2
	}
	return factor
}

func (d *Driver) clampStep(h float64) float64 {
	if d.Options.HMax > 0 && h > d.Options.HMax {
		return d.Options.HMax
	}
	if d.Options.HMin > 0 && h < d.Options.HMin {
		return d.Options.HMin
	}
	return h
}

func allFinite(v []float64) bool {
	for _, f := range v {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

// scheduleEvents copies events into per-run state seeded with their
// first fire time at or after tStart.
func scheduleEvents(events []Event, tStart float64) []Event {
	out := make([]Event, len(events))
	for i, e := range events {
		e.nextFire = e.Offset
		// A non-positive period marks a one-shot event: it fires once at
		// Offset (or immediately, if that's already past tStart) and
		// never again, rather than looping forever trying to catch up.
		if e.Period <= 0 {
			if e.nextFire < tStart {
				e.nextFire = tStart
			}
			out[i] = e
			continue
		}
		for e.nextFire < tStart {
			e.nextFire += e.Period
		}
		out[i] = e
	}
	return out
}

// fireEvents fires every event in events whose next scheduled time has
// arrived, in ascending fire-time order, repeating until none remain
// due -- covering the case where an event's period is shorter than the
// step that just landed past it.
func fireEvents(events []Event, tNow float64, x []float64) error {
	for {
		due := -1
		for i, e := range events {
			if e.nextFire > tNow {
				continue
			}
			if due == -1 || e.nextFire < events[due].nextFire {
				due = i
			}
		}
		if due == -1 {
			return nil
		}
		if err := events[due].Fire(tNow, x); err != nil {
			return err
		}
		if events[due].Period <= 0 {
			events[due].nextFire = math.Inf(1)
			continue
		}
		events[due].nextFire += events[due].Period
	}
}
