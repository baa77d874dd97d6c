package bridge

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"

	"github.com/anupshinde/multibody-sim/integrator"
	"github.com/anupshinde/multibody-sim/multibody"
	"github.com/anupshinde/multibody-sim/spatial"
)

// Sensor is a pure function of the system's current state plus
// configured Gaussian noise, optionally routed through a delay buffer.
// Noise draws from an injected *rand.Rand so a run seeded identically
// reproduces bit-identical sensor values.
type Sensor struct {
	Name   string
	BodyID uuid.UUID
	Sample func(sys *multibody.System) float64

	NoiseStdDev float64
	RNG         *rand.Rand
	Delay       *DelayedValue

	value float64
}

// Update samples the system at time t, applies noise, and (if a Delay
// buffer is configured) records and re-reads through it, leaving the
// result in Value.
func (s *Sensor) Update(t float64, sys *multibody.System) {
	raw := s.Sample(sys)
	if s.NoiseStdDev > 0 && s.RNG != nil {
		raw += s.RNG.NormFloat64() * s.NoiseStdDev
	}
	if s.Delay != nil {
		s.Delay.Update(t, raw)
		raw = s.Delay.Reading(t)
	}
	s.value = raw
}

// Value returns the sensor's most recently computed reading.
func (s *Sensor) Value() float64 { return s.value }

// Actuator holds a body-frame force/torque command written by flight
// software between dynamics steps, applied to its owning body's
// actuator force ahead of the next ABA pass.
type Actuator struct {
	Name   string
	BodyID uuid.UUID
	Force  [3]float64
	Torque [3]float64
}

// ActuatorBodyNotFoundError reports that an actuator's BodyID does not
// match any body in the system it is being applied to.
type ActuatorBodyNotFoundError struct {
	Actuator string
	BodyID   uuid.UUID
}

func (e ActuatorBodyNotFoundError) Error() string {
	return fmt.Sprintf("bridge: actuator %q: no body with id %s", e.Actuator, e.BodyID)
}

// Apply writes a's current command into its owning body's
// ActuatorForceBody, in the body frame the command is already
// expressed in.
func (a *Actuator) Apply(sys *multibody.System) error {
	body := sys.BodyByID(a.BodyID)
	if body == nil {
		return ActuatorBodyNotFoundError{Actuator: a.Name, BodyID: a.BodyID}
	}
	body.State.ActuatorForceBody = spatial.NewForceVector(a.Torque, a.Force)
	return nil
}

// FlightSoftware is the core's view of an external FSW step: read
// sensor values, write actuator commands. It must be pure with respect
// to its inputs up to those writes and any state it owns internally.
type FlightSoftware func(sensors []*Sensor, actuators []*Actuator)

// Step builds the periodic integrator.Event that drives one FSW cycle:
// update every sensor from the current system state, invoke fsw, then
// apply every actuator's resulting command to its body. It runs at the
// configured period/offset, independent of the integrator's own step
// size, per spec.md §4.K/§6's fsw.period/fsw.offset.
func Step(period, offset float64, sys *multibody.System, sensors []*Sensor, actuators []*Actuator, fsw FlightSoftware) integrator.Event {
	return integrator.Event{
		Period: period,
		Offset: offset,
		Fire: func(t float64, x []float64) error {
			for _, s := range sensors {
				s.Update(t, sys)
			}
			fsw(sensors, actuators)
			for _, a := range actuators {
				if err := a.Apply(sys); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
