package magnetics

import (
	"math"
	"strings"
	"testing"
)

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) < tol
}

// axialDipole builds a degree/order-1 model with only g(1,0) set, an
// idealized axial dipole, for testing the field formula's geometry
// independent of any external coefficient file.
func axialDipole(g10 float64) *Model {
	g := [][][]float64{{{0}, {g10, 0}}}
	h := [][][]float64{{{0}, {0, 0}}}
	svg := [][]float64{{0}, {0, 0}}
	svh := [][]float64{{0}, {0, 0}}
	return NewModel(1, 1, EarthRadius, []float64{2020.0}, g, h, svg, svh)
}

func TestAxialDipoleHorizontalAtEquator(t *testing.T) {
	m := axialDipole(-30000.0)
	pos := [3]float64{EarthRadius, 0, 0}
	b, warn, err := m.Field(pos, 2020.0)
	if err != nil {
		t.Fatalf("Field: %v", err)
	}
	if warn != nil {
		t.Fatalf("unexpected warning: %v", warn)
	}
	if !approxEqual(b[0], 0, 1e-6) || !approxEqual(b[1], 0, 1e-6) {
		t.Fatalf("expected zero horizontal-radial components at the equator, got (%v,%v)", b[0], b[1])
	}
	if b[2] <= 0 {
		t.Fatalf("expected a northward (+z) field at the magnetic equator for negative g10, got bz=%v", b[2])
	}
	if !approxEqual(b[2], 30000.0, 1e-6) {
		t.Fatalf("expected |bz| = |g10| = 30000 at the equator, got %v", b[2])
	}
}

func TestEpochTooEarly(t *testing.T) {
	m := axialDipole(-30000.0)
	_, _, err := m.Field([3]float64{EarthRadius, 0, 0}, 2000.0)
	if err == nil {
		t.Fatal("expected an EpochTooEarlyError for a year before the model's coverage")
	}
	if _, ok := err.(EpochTooEarlyError); !ok {
		t.Fatalf("expected EpochTooEarlyError, got %T: %v", err, err)
	}
}

func twoEpochModel() *Model {
	g := [][][]float64{
		{{0}, {-30000.0, 0}},
		{{0}, {-30100.0, 0}},
	}
	h := [][][]float64{
		{{0}, {0, 0}},
		{{0}, {0, 0}},
	}
	svg := [][]float64{{0}, {-20.0, 0}}
	svh := [][]float64{{0}, {0, 0}}
	return NewModel(1, 1, EarthRadius, []float64{2015.0, 2020.0}, g, h, svg, svh)
}

func TestInterpolationBetweenEpochs(t *testing.T) {
	m := twoEpochModel()
	pos := [3]float64{EarthRadius, 0, 0}
	bMid, warn, err := m.Field(pos, 2017.5)
	if err != nil || warn != nil {
		t.Fatalf("Field at midpoint: b=%v warn=%v err=%v", bMid, warn, err)
	}
	// Linear interpolation midway between -30000 and -30100 gives -30050,
	// and field magnitude at the equator equals |g10|.
	if !approxEqual(bMid[2], 30050.0, 1e-6) {
		t.Fatalf("interpolated bz = %v, want 30050", bMid[2])
	}
}

func TestExtrapolationUsesSecularVariation(t *testing.T) {
	m := twoEpochModel()
	pos := [3]float64{EarthRadius, 0, 0}
	b, warn, err := m.Field(pos, 2021.0)
	if err != nil {
		t.Fatalf("Field: %v", err)
	}
	if warn != nil {
		t.Fatalf("unexpected warning within 5 years of the latest epoch: %v", warn)
	}
	// g10(2021) = -30100 + (-20)*(1) = -30120
	if !approxEqual(b[2], 30120.0, 1e-6) {
		t.Fatalf("extrapolated bz = %v, want 30120", b[2])
	}
}

func TestExtrapolationWarningBeyondFiveYears(t *testing.T) {
	m := twoEpochModel()
	pos := [3]float64{EarthRadius, 0, 0}
	_, warn, err := m.Field(pos, 2027.0)
	if err != nil {
		t.Fatalf("Field: %v", err)
	}
	if warn == nil {
		t.Fatal("expected an extrapolation warning more than 5 years past the latest epoch")
	}
}

func TestLoadParsesNOAAFormat(t *testing.T) {
	data := strings.NewReader(strings.Join([]string{
		"header line 1",
		"header line 2",
		"header line 3",
		"g/h n m 2015.0 2020.0 SV",
		"g 1 0 -29442.0 -29404.8 6.0",
		"g 1 1 -1501.0 -1450.9 7.0",
		"h 1 1 4797.1 4652.5 -23.0",
	}, "\n"))
	m, err := Load(data, 1, 1, EarthRadius)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(m.epochs) != 2 || m.epochs[0] != 2015.0 || m.epochs[1] != 2020.0 {
		t.Fatalf("epochs = %v", m.epochs)
	}
	if m.g[1][1][0] != -29404.8 {
		t.Fatalf("g[1][1][0] = %v, want -29404.8", m.g[1][1][0])
	}
	if m.h[1][1][1] != 4652.5 {
		t.Fatalf("h[1][1][1] = %v, want 4652.5", m.h[1][1][1])
	}
	if m.svg[1][0] != 6.0 {
		t.Fatalf("svg[1][0] = %v, want 6.0", m.svg[1][0])
	}
}

func TestLoadRejectsWrongColumnCount(t *testing.T) {
	data := strings.NewReader(strings.Join([]string{
		"header line 1",
		"header line 2",
		"header line 3",
		"g/h n m 2015.0 2020.0 SV",
		"g 1 0 -29442.0 6.0", // missing one epoch column
	}, "\n"))
	if _, err := Load(data, 1, 1, EarthRadius); err == nil {
		t.Fatal("expected an error for a row with the wrong column count")
	}
}
