package models

import (
	"time"

	"github.com/ambientwx/ambientwx/internal/weather"
)

// Device is a weather station as returned by GET /v1/devices.
type Device struct {
	MACAddress      string       `json:"macAddress"`
	Name            string       `json:"name"`
	Location        *string      `json:"location,omitempty"`
	Address         *string      `json:"address,omitempty"`
	Elevation       *float64     `json:"elevation,omitempty"`
	Latitude        *float64     `json:"latitude,omitempty"`
	Longitude       *float64     `json:"longitude,omitempty"`
	LastObservation *Observation `json:"lastObservation,omitempty"`
}

// Observation is one station reading with unit-tagged quantities.
type Observation struct {
	Date       time.Time                   `json:"date"`
	DateUTC    int64                       `json:"dateutc"`
	Quantities map[string]weather.Quantity `json:"quantities"`
	Extra      map[string]any              `json:"extra,omitempty"`
}

// DeviceList wraps the devices response.
type DeviceList struct {
	Items []Device `json:"items"`
}

// ObservationList wraps a list of observations for one station.
type ObservationList struct {
	MACAddress string        `json:"macAddress"`
	Source     string        `json:"source"`
	Count      int           `json:"count"`
	Items      []Observation `json:"items"`
}

// Observation sources.
const (
	SourceLive    = "live"
	SourceArchive = "archive"
)

// NewDevice converts a weather.Device into its API model.
func NewDevice(d *weather.Device) Device {
	out := Device{
		MACAddress: d.MACAddress,
		Name:       d.Name,
		Location:   d.Location,
		Address:    d.Address,
		Elevation:  d.Elevation,
		Latitude:   d.Latitude,
		Longitude:  d.Longitude,
	}
	if d.LastObservation != nil {
		obs := NewObservation(d.LastObservation)
		out.LastObservation = &obs
	}
	return out
}

// NewDeviceList converts devices into a DeviceList. The items slice is never nil.
func NewDeviceList(devices []*weather.Device) DeviceList {
	items := make([]Device, 0, len(devices))
	for _, d := range devices {
		items = append(items, NewDevice(d))
	}
	return DeviceList{Items: items}
}

// NewObservation converts a weather.Observation into its API model.
func NewObservation(o *weather.Observation) Observation {
	out := Observation{
		Date:       o.Date.UTC(),
		DateUTC:    o.DateUTC,
		Quantities: o.Quantities,
		Extra:      o.Extra,
	}
	if out.Quantities == nil {
		out.Quantities = map[string]weather.Quantity{}
	}
	return out
}

// NewObservationList converts observations into an ObservationList.
func NewObservationList(mac, source string, observations []*weather.Observation) ObservationList {
	items := make([]Observation, 0, len(observations))
	for _, o := range observations {
		items = append(items, NewObservation(o))
	}
	return ObservationList{MACAddress: mac, Source: source, Count: len(items), Items: items}
}
