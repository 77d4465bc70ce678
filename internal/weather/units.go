package weather

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrIncompatibleUnits is returned when a quantity cannot be converted to the requested unit.
var ErrIncompatibleUnits = errors.New("incompatible units")

// Unit identifies the physical unit of a quantity.
type Unit string

// Units reported by Ambient Weather stations.
const (
	UnitMilePerHour      Unit = "mile_per_hour"
	UnitDegreeFahrenheit Unit = "degree_Fahrenheit"
	UnitInchOfMercury    Unit = "inch_Hg"
	UnitInch             Unit = "inch"
	UnitDegree           Unit = "degree"
	UnitPercent          Unit = "percent"
)

// Conversion targets.
const (
	UnitDegreeCelsius    Unit = "degree_Celsius"
	UnitMeterPerSecond   Unit = "meter_per_second"
	UnitKilometerPerHour Unit = "kilometer_per_hour"
	UnitHectopascal      Unit = "hectopascal"
	UnitMillimeter       Unit = "millimeter"
)

var unitSymbols = map[Unit]string{
	UnitMilePerHour:      "mph",
	UnitDegreeFahrenheit: "°F",
	UnitInchOfMercury:    "inHg",
	UnitInch:             "in",
	UnitDegree:           "°",
	UnitPercent:          "%",
	UnitDegreeCelsius:    "°C",
	UnitMeterPerSecond:   "m/s",
	UnitKilometerPerHour: "km/h",
	UnitHectopascal:      "hPa",
	UnitMillimeter:       "mm",
}

// Symbol returns the short display symbol for the unit.
func (u Unit) Symbol() string {
	if s, ok := unitSymbols[u]; ok {
		return s
	}
	return string(u)
}

type conversion struct {
	from Unit
	to   Unit
}

var conversions = map[conversion]func(float64) float64{
	{UnitDegreeFahrenheit, UnitDegreeCelsius}: func(v float64) float64 { return (v - 32) * 5 / 9 },
	{UnitDegreeCelsius, UnitDegreeFahrenheit}: func(v float64) float64 { return v*9/5 + 32 },
	{UnitMilePerHour, UnitMeterPerSecond}:     func(v float64) float64 { return v * 0.44704 },
	{UnitMeterPerSecond, UnitMilePerHour}:     func(v float64) float64 { return v / 0.44704 },
	{UnitMilePerHour, UnitKilometerPerHour}:   func(v float64) float64 { return v * 1.609344 },
	{UnitKilometerPerHour, UnitMilePerHour}:   func(v float64) float64 { return v / 1.609344 },
	{UnitInchOfMercury, UnitHectopascal}:      func(v float64) float64 { return v * 33.8638866667 },
	{UnitHectopascal, UnitInchOfMercury}:      func(v float64) float64 { return v / 33.8638866667 },
	{UnitInch, UnitMillimeter}:                func(v float64) float64 { return v * 25.4 },
	{UnitMillimeter, UnitInch}:                func(v float64) float64 { return v / 25.4 },
}

// Quantity is a magnitude tagged with its unit.
type Quantity struct {
	Magnitude float64 `json:"value"`
	Unit      Unit    `json:"unit"`
}

// String formats the quantity as "<magnitude> <symbol>".
func (q Quantity) String() string {
	return strconv.FormatFloat(q.Magnitude, 'f', -1, 64) + " " + q.Unit.Symbol()
}

// To converts the quantity to the target unit.
func (q Quantity) To(target Unit) (Quantity, error) {
	if q.Unit == target {
		return q, nil
	}
	convert, ok := conversions[conversion{from: q.Unit, to: target}]
	if !ok {
		return Quantity{}, fmt.Errorf("%w: %s to %s", ErrIncompatibleUnits, q.Unit, target)
	}
	return Quantity{Magnitude: convert(q.Magnitude), Unit: target}, nil
}
