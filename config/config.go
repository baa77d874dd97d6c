// Package config loads the nominal-system configuration file (TOML)
// that seeds an integrator run: tolerance/step-size bounds, gravity and
// IGRF truncation and options, the save cadence, and flight-software
// timing. Every field is defaulted before unmarshaling so a partial
// file still produces a runnable configuration.
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Integrator mirrors spec.md §6's integrator.* options.
type Integrator struct {
	AbsTol float64 `toml:"abs_tol"`
	RelTol float64 `toml:"rel_tol"`
	HMin   float64 `toml:"h_min"`
	HMax   float64 `toml:"h_max"`
	Safety float64 `toml:"safety"`
}

// Gravity mirrors spec.md §6's gravity.* options.
type Gravity struct {
	Degree         int  `toml:"degree"`
	Order          int  `toml:"order"`
	AddNewtonian   bool `toml:"add_newtonian"`
	AddCentrifugal bool `toml:"add_centrifugal"`
}

// IGRF mirrors spec.md §6's igrf.* options.
type IGRF struct {
	Degree      int `toml:"degree"`
	Order       int `toml:"order"`
	InitialYear int `toml:"initial_year"`
}

// Save mirrors spec.md §6's save.* options.
type Save struct {
	Interval float64 `toml:"interval"`
}

// FSW mirrors spec.md §6's fsw.* options.
type FSW struct {
	Period float64 `toml:"period"`
	Offset float64 `toml:"offset"`
}

// Config is the top-level nominal-system file: the integrator,
// gravity, IGRF, save, and flight-software sections from spec.md §6.
// EphemerisFile, GravityFile, and IGRFFile name the external data
// files described in §6; TStart/TStop bound the simulated interval.
type Config struct {
	EphemerisFile string `toml:"ephemeris_file"`
	GravityFile   string `toml:"gravity_file"`
	IGRFFile      string `toml:"igrf_file"`
	TStart        float64 `toml:"t_start"`
	TStop         float64 `toml:"t_stop"`

	Integrator Integrator `toml:"integrator"`
	Gravity    Gravity    `toml:"gravity"`
	IGRF       IGRF       `toml:"igrf"`
	Save       Save       `toml:"save"`
	FSW        FSW        `toml:"fsw"`
}

// Default returns a Config with every documented default applied; a
// loaded file's values overwrite these field by field.
func Default() Config {
	return Config{
		Integrator: Integrator{AbsTol: 1e-10, RelTol: 1e-10, HMin: 1e-6, HMax: 60, Safety: 0.9},
		Gravity:    Gravity{Degree: 20, Order: 20, AddNewtonian: true, AddCentrifugal: false},
		IGRF:       IGRF{Degree: 13, Order: 13},
		Save:       Save{Interval: 1.0},
		FSW:        FSW{Period: 1.0, Offset: 0.0},
	}
}

// ParseError reports a malformed configuration file, surfaced
// immediately (spec.md §7's ConfigurationError category: do not start
// integration).
type ParseError struct {
	Path string
	Err  error
}

func (e ParseError) Error() string {
	return fmt.Sprintf("config: parsing %s: %v", e.Path, e.Err)
}

func (e ParseError) Unwrap() error { return e.Err }

// Load reads and unmarshals the TOML file at path over Default(),
// leaving every option the file doesn't set at its documented default.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, ParseError{Path: path, Err: err}
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, ParseError{Path: path, Err: err}
	}
	return cfg, nil
}

// ValidationError reports a failed Validate check: the fields Load
// cannot check, name/range constraints that depend on more than a
// single field's type, surfaced as a ConfigurationError per spec.md §7.
type ValidationError struct {
	Reason string
}

func (e ValidationError) Error() string { return "config: " + e.Reason }

// Validate rejects configurations the ODE driver or field evaluators
// could not run with: non-positive tolerances or step bounds, an
// inverted or empty simulation interval, and h_min exceeding h_max.
func (c Config) Validate() error {
	if c.Integrator.AbsTol <= 0 || c.Integrator.RelTol <= 0 {
		return ValidationError{"integrator.abs_tol and integrator.rel_tol must be positive"}
	}
	if c.Integrator.HMin <= 0 || c.Integrator.HMax <= 0 {
		return ValidationError{"integrator.h_min and integrator.h_max must be positive"}
	}
	if c.Integrator.HMin > c.Integrator.HMax {
		return ValidationError{"integrator.h_min must not exceed integrator.h_max"}
	}
	if c.TStop <= c.TStart {
		return ValidationError{"t_stop must be greater than t_start"}
	}
	if c.Save.Interval <= 0 {
		return ValidationError{"save.interval must be positive"}
	}
	return nil
}
