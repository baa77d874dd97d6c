package gravity

// EarthMu and EarthRadius are the WGS84 constants the degree-4 EGM96
// fixture below was fit against.
const (
	EarthMu     = 3.986004415e14 // m^3/s^2
	EarthRadius = 6.3781363e6    // m
)

// egm96Degree4C and egm96Degree4S are the degree-4, order-4 normalized
// EGM96 coefficients embedded for unit testing. Full-degree EGM96/2008
// tables are external data resources loaded via LoadFile; this low-degree
// slice is small enough to ship as source.
var egm96Degree4C = [][]float64{
	{0, 0, 0, 0, 0},
	{0, 0, 0, 0, 0},
	{-0.000484165371736000, -0.000000000186987636, 0.000002439143523980, 0, 0},
	{0.000000957254173792, 0.000002029988821840, 0.000000904627768605, 0.000000721072657057, 0},
	{0.000000539873863789, -0.000000536321616971, 0.000000350694105785, 0.000000990771803829, -0.000000188560802735},
}

var egm96Degree4S = [][]float64{
	{0, 0, 0, 0, 0},
	{0, 0, 0, 0, 0},
	{0, 0.000119528012031e-5, -0.140016683654000e-5, 0, 0},
	{0, 0.024851315871600e-5, -0.061902594420500e-5, 0.141435626958000e-5, 0},
	{0, -0.047344026585300e-5, 0.066267157254000e-5, -0.020092836917700e-5, 0.030885316933300e-5},
}

// EGM96Degree4 returns the embedded low-degree EGM96 fixture model, truncated
// to degree and order 4, for use in tests that don't have access to the
// full external coefficient file.
func EGM96Degree4() *Model {
	return NewModel(4, 4, EarthMu, EarthRadius, egm96Degree4C, egm96Degree4S)
}
