package weather

import (
	"errors"
	"sort"
	"time"
)

// Weather errors.
var (
	ErrMalformedRecord    = errors.New("malformed record")
	ErrInvalidMACAddress  = errors.New("invalid MAC address")
	ErrNoObservations     = errors.New("no observations for device")
	ErrArchiveDisabled    = errors.New("observation archive not configured")
	ErrProviderNotSet     = errors.New("weather provider not configured")
	ErrInvalidHistoryTime = errors.New("history range start is after end")
)

// DateLayout is the layout of the "date" field in observation payloads.
const DateLayout = "2006-01-02T15:04:05.000Z"

// Device is a weather station registered to the account.
type Device struct {
	MACAddress string
	Name       string

	// Set only when the payload carries info.coords.
	Location  *string
	Address   *string
	Elevation *float64
	Latitude  *float64
	Longitude *float64

	LastObservation *Observation
}

// HasCoordinates reports whether both latitude and longitude are known.
func (d *Device) HasCoordinates() bool {
	return d.Latitude != nil && d.Longitude != nil
}

// Observation is a single station reading.
type Observation struct {
	// Date is the observation time in UTC.
	Date time.Time

	// DateUTC is the epoch in milliseconds as reported by the station.
	DateUTC int64

	// Quantities holds the known fields with their units.
	Quantities map[string]Quantity

	// Extra holds every other field verbatim.
	Extra map[string]any
}

// Quantity returns the unit-tagged value of a known field.
func (o *Observation) Quantity(field string) (Quantity, bool) {
	q, ok := o.Quantities[field]
	return q, ok
}

// Field returns the value of any field by its payload name.
// Known fields are returned as Quantity.
func (o *Observation) Field(field string) (any, bool) {
	switch field {
	case FieldDate:
		return o.Date, true
	case FieldDateUTC:
		return o.DateUTC, true
	}
	if q, ok := o.Quantities[field]; ok {
		return q, true
	}
	v, ok := o.Extra[field]
	return v, ok
}

// FieldNames returns the names of all fields set on the observation, sorted.
func (o *Observation) FieldNames() []string {
	names := make([]string, 0, len(o.Quantities)+len(o.Extra)+2)
	names = append(names, FieldDate, FieldDateUTC)
	for name := range o.Quantities {
		names = append(names, name)
	}
	for name := range o.Extra {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Values flattens the observation into field name to bare value.
// Quantities contribute their magnitude only.
func (o *Observation) Values() map[string]any {
	values := make(map[string]any, len(o.Quantities)+len(o.Extra)+2)
	for name, v := range o.Extra {
		values[name] = v
	}
	for name, q := range o.Quantities {
		values[name] = q.Magnitude
	}
	values[FieldDate] = o.Date
	values[FieldDateUTC] = o.DateUTC
	return values
}

// ObservationOptions narrows an observation query.
type ObservationOptions struct {
	// Limit is the maximum number of observations. Zero means DefaultObservationLimit.
	Limit int

	// EndDate returns observations before this time when set.
	EndDate *time.Time
}

// DefaultObservationLimit is one day of five-minute readings.
const DefaultObservationLimit = 288

// HistoryQuery selects archived observations.
type HistoryQuery struct {
	From  time.Time
	To    time.Time
	Limit int
}
