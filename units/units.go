// Package units attaches physical units to decoded values and converts
// between units of the same dimension.
package units

import (
	"fmt"
	"math"

	gounits "github.com/bcicen/go-units"
)

// Unit is the profile spelling of a unit ("m/s", "bpm", ...).
type Unit string

const (
	None Unit = ""

	Second      Unit = "s"
	Millisecond Unit = "ms"
	Minute      Unit = "min"
	Hour        Unit = "h"
	Year        Unit = "years"

	Meter      Unit = "m"
	Centimeter Unit = "cm"
	Kilometer  Unit = "km"
	Mile       Unit = "mi"
	Foot       Unit = "ft"

	MetersPerSecond   Unit = "m/s"
	KilometersPerHour Unit = "km/h"
	MilesPerHour      Unit = "mph"

	Watt     Unit = "W"
	Kilowatt Unit = "kW"

	Joule       Unit = "J"
	Kilojoule   Unit = "kJ"
	Kilocalorie Unit = "kcal"

	KilocaloriesPerMinute Unit = "kcal/min"

	Kilogram Unit = "kg"
	Gram     Unit = "g"
	Pound    Unit = "lb"

	Celsius    Unit = "C"
	Fahrenheit Unit = "F"
	Kelvin     Unit = "K"

	Volt Unit = "V"

	Percent Unit = "%"

	BeatsPerMinute       Unit = "bpm"
	RevolutionsPerMinute Unit = "rpm"

	Semicircle Unit = "semicircles"
	Degree     Unit = "deg"

	MillimeterOfMercury Unit = "mmHg"
)

// quantity groups units that convert into each other.
type quantity string

const (
	qDuration    quantity = "duration"
	qLength      quantity = "length"
	qSpeed       quantity = "speed"
	qPower       quantity = "power"
	qEnergy      quantity = "energy"
	qEnergyRate  quantity = "energy rate"
	qMass        quantity = "mass"
	qTemperature quantity = "temperature"
	qVoltage     quantity = "voltage"
	qRatio       quantity = "ratio"
	qHeartRate   quantity = "heart rate"
	qCadence     quantity = "cadence"
	qAngle       quantity = "angle"
	qPressure    quantity = "pressure"
)

// ratio places a unit against the base unit of its quantity: one unit
// equals factor base units.
type ratio struct {
	q      quantity
	base   Unit
	factor float64
}

var ratios = map[Unit]ratio{
	Second:      {qDuration, Second, 1},
	Millisecond: {qDuration, Second, 0.001},
	Minute:      {qDuration, Second, 60},
	Hour:        {qDuration, Second, 3600},
	Year:        {qDuration, Second, 365.25 * 86400},

	Meter:      {qLength, Meter, 1},
	Centimeter: {qLength, Meter, 0.01},
	Kilometer:  {qLength, Meter, 1000},
	Mile:       {qLength, Meter, 1609.344},
	Foot:       {qLength, Meter, 0.3048},

	MetersPerSecond:   {qSpeed, MetersPerSecond, 1},
	KilometersPerHour: {qSpeed, MetersPerSecond, 1000.0 / 3600.0},
	MilesPerHour:      {qSpeed, MetersPerSecond, 1609.344 / 3600.0},

	Watt:     {qPower, Watt, 1},
	Kilowatt: {qPower, Watt, 1000},

	Joule:       {qEnergy, Joule, 1},
	Kilojoule:   {qEnergy, Joule, 1000},
	Kilocalorie: {qEnergy, Joule, 4184},

	KilocaloriesPerMinute: {qEnergyRate, KilocaloriesPerMinute, 1},

	Kilogram: {qMass, Kilogram, 1},
	Gram:     {qMass, Kilogram, 0.001},
	Pound:    {qMass, Kilogram, 0.45359237},

	Celsius:    {qTemperature, Celsius, 1},
	Kelvin:     {qTemperature, Celsius, 1},
	Fahrenheit: {qTemperature, Celsius, 1},

	Volt: {qVoltage, Volt, 1},

	Percent: {qRatio, Percent, 1},

	BeatsPerMinute:       {qHeartRate, BeatsPerMinute, 1},
	RevolutionsPerMinute: {qCadence, RevolutionsPerMinute, 1},

	Degree:     {qAngle, Degree, 1},
	Semicircle: {qAngle, Degree, 180.0 / math.Exp2(31)},

	MillimeterOfMercury: {qPressure, MillimeterOfMercury, 1},
}

// registry holds the go-units counterpart of every known unit. Names carry
// a "fit " prefix so they never clash with the library's own catalog.
var registry = map[Unit]gounits.Unit{}

func init() {
	for u := range ratios {
		registry[u] = gounits.NewUnit("fit "+string(u), string(u))
	}
	for u, r := range ratios {
		if u == r.base || r.q == qTemperature {
			continue
		}
		gounits.NewRatioConversion(registry[u], registry[r.base], r.factor)
	}

	c, k, f := registry[Celsius], registry[Kelvin], registry[Fahrenheit]
	gounits.NewConversionFromFn(k, c, func(x float64) float64 { return x - 273.15 }, "x - 273.15")
	gounits.NewConversionFromFn(c, k, func(x float64) float64 { return x + 273.15 }, "x + 273.15")
	gounits.NewConversionFromFn(f, c, func(x float64) float64 { return (x - 32) * 5 / 9 }, "(x - 32) * 5 / 9")
	gounits.NewConversionFromFn(c, f, func(x float64) float64 { return x*9/5 + 32 }, "x * 9 / 5 + 32")
}

// Known reports whether u takes part in conversions.
func (u Unit) Known() bool {
	_, ok := ratios[u]
	return ok
}

func (u Unit) String() string { return string(u) }

// Compatible reports whether a value in a can be expressed in b.
func Compatible(a, b Unit) bool {
	if a == b {
		return true
	}
	ra, okA := ratios[a]
	rb, okB := ratios[b]
	return okA && okB && ra.q == rb.q
}

// Measurement is a value tagged with its unit.
type Measurement struct {
	Value float64 `json:"value"`
	Unit  Unit    `json:"unit,omitempty"`
}

func New(value float64, unit Unit) Measurement {
	return Measurement{Value: value, Unit: unit}
}

// Convert expresses m in unit to. Converting to the unit m already has is
// always allowed, including units outside the conversion table.
func (m Measurement) Convert(to Unit) (Measurement, error) {
	if m.Unit == to {
		return m, nil
	}
	if !m.Unit.Known() {
		return Measurement{}, fmt.Errorf("convert %q to %q: unknown source unit", m.Unit, to)
	}
	if !to.Known() {
		return Measurement{}, fmt.Errorf("convert %q to %q: unknown target unit", m.Unit, to)
	}
	if !Compatible(m.Unit, to) {
		return Measurement{}, fmt.Errorf("convert %q to %q: incompatible units", m.Unit, to)
	}
	v, err := gounits.ConvertFloat(m.Value, registry[m.Unit], registry[to])
	if err != nil {
		return Measurement{}, fmt.Errorf("convert %q to %q: %w", m.Unit, to, err)
	}
	return Measurement{Value: v.Float(), Unit: to}, nil
}

func (m Measurement) String() string {
	if m.Unit == None {
		return fmt.Sprintf("%g", m.Value)
	}
	return fmt.Sprintf("%g %s", m.Value, m.Unit)
}
