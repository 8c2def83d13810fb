package domain

import "math"

const (
	// freeSpaceImpedance is the characteristic impedance of free space in
	// ohms, as rounded in the legacy reports.
	freeSpaceImpedance = 3770
	// referenceDensity is the reference power density (W/m²) the
	// percentage is expressed against.
	referenceDensity = 0.20021
)

// PercentOfLimit returns the power density of a field strength of v V/m as a
// percentage of the reference limit.
func PercentOfLimit(v float64) float64 {
	return v * v / freeSpaceImpedance / referenceDensity * 100
}

// Band is one bucket of the exposure color scale.
type Band struct {
	Index int      `json:"index"`
	Min   float64  `json:"-"`
	Max   float64  `json:"-"`
	Hex   string   `json:"hex"`
	RGB   [3]uint8 `json:"rgb"`
}

// NoDataBand is used for missing or out-of-range percentages.
var NoDataBand = Band{Index: 10, Hex: "#C8C8C8", RGB: [3]uint8{200, 200, 200}}

// Bands is the ten-step color scale, lower bound inclusive.
var Bands = []Band{
	{Index: 0, Min: 0, Max: 1, Hex: "#84C2F5", RGB: [3]uint8{132, 194, 245}},
	{Index: 1, Min: 1, Max: 2, Hex: "#489DFF", RGB: [3]uint8{72, 157, 255}},
	{Index: 2, Min: 2, Max: 4, Hex: "#006BD6", RGB: [3]uint8{0, 107, 214}},
	{Index: 3, Min: 4, Max: 8, Hex: "#A9E7A9", RGB: [3]uint8{169, 231, 169}},
	{Index: 4, Min: 8, Max: 15, Hex: "#89DD89", RGB: [3]uint8{137, 221, 137}},
	{Index: 5, Min: 15, Max: 20, Hex: "#4D9623", RGB: [3]uint8{77, 150, 35}},
	{Index: 6, Min: 20, Max: 35, Hex: "#D9FF00", RGB: [3]uint8{217, 255, 0}},
	{Index: 7, Min: 35, Max: 50, Hex: "#F39A6D", RGB: [3]uint8{243, 154, 109}},
	{Index: 8, Min: 50, Max: 100, Hex: "#E68200", RGB: [3]uint8{230, 130, 0}},
	{Index: 9, Min: 100, Max: math.Inf(1), Hex: "#CC0000", RGB: [3]uint8{204, 0, 0}},
}

// ColorBand classifies a percentage of limit. A nil, negative or NaN
// percentage falls in NoDataBand.
func ColorBand(pct *float64) Band {
	if pct == nil || math.IsNaN(*pct) || *pct < 0 {
		return NoDataBand
	}
	for _, b := range Bands {
		if *pct >= b.Min && *pct < b.Max {
			return b
		}
	}
	return Bands[len(Bands)-1]
}
