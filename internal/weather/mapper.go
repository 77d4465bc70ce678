package weather

import (
	"encoding/json"
	"fmt"
	"time"
)

// MapDevice converts a raw device object into a Device.
func MapDevice(raw map[string]any) (*Device, error) {
	if raw == nil {
		return nil, fmt.Errorf("%w: device is null", ErrMalformedRecord)
	}

	mac, ok := raw["macAddress"].(string)
	if !ok || mac == "" {
		return nil, fmt.Errorf("%w: device missing macAddress", ErrMalformedRecord)
	}

	device := &Device{MACAddress: mac}

	info, err := optionalObject(raw, "info")
	if err != nil {
		return nil, err
	}
	if info != nil {
		device.Name, _ = info["name"].(string)

		coords, err := optionalObject(info, "coords")
		if err != nil {
			return nil, err
		}
		if coords != nil {
			if err := mapCoords(device, coords); err != nil {
				return nil, err
			}
		}
	}

	last, err := optionalObject(raw, "lastData")
	if err != nil {
		return nil, err
	}
	if len(last) > 0 {
		obs, err := MapObservation(last)
		if err != nil {
			return nil, fmt.Errorf("device %s lastData: %w", mac, err)
		}
		device.LastObservation = obs
	}

	return device, nil
}

func mapCoords(device *Device, coords map[string]any) error {
	device.Location = optionalString(coords["location"])
	device.Address = optionalString(coords["address"])

	var err error
	if device.Elevation, err = optionalFloat("elevation", coords["elevation"]); err != nil {
		return err
	}

	latLon, err := optionalObject(coords, "coords")
	if err != nil {
		return err
	}
	if latLon == nil {
		return nil
	}
	if device.Latitude, err = optionalFloat("lat", latLon["lat"]); err != nil {
		return err
	}
	if device.Longitude, err = optionalFloat("lon", latLon["lon"]); err != nil {
		return err
	}
	return nil
}

// MapDevices maps every element of a device list.
func MapDevices(raw []map[string]any) ([]*Device, error) {
	devices := make([]*Device, 0, len(raw))
	for i, item := range raw {
		d, err := MapDevice(item)
		if err != nil {
			return nil, fmt.Errorf("device %d: %w", i, err)
		}
		devices = append(devices, d)
	}
	return devices, nil
}

// MapObservation converts a raw observation object into an Observation.
// Known fields become quantities; null known fields are left out.
func MapObservation(raw map[string]any) (*Observation, error) {
	if raw == nil {
		return nil, fmt.Errorf("%w: observation is null", ErrMalformedRecord)
	}

	dateStr, ok := raw[FieldDate].(string)
	if !ok {
		return nil, fmt.Errorf("%w: observation missing date", ErrMalformedRecord)
	}
	date, err := time.Parse(DateLayout, dateStr)
	if err != nil {
		return nil, fmt.Errorf("%w: date %q: %v", ErrMalformedRecord, dateStr, err)
	}

	obs := &Observation{
		Date:       date.UTC(),
		DateUTC:    date.UnixMilli(),
		Quantities: make(map[string]Quantity),
		Extra:      make(map[string]any),
	}

	for key, value := range raw {
		switch key {
		case FieldDate:
			continue
		case FieldDateUTC:
			if value == nil {
				continue
			}
			ms, err := toFloat(value)
			if err != nil {
				return nil, fmt.Errorf("%w: field %q: %v", ErrMalformedRecord, key, err)
			}
			obs.DateUTC = int64(ms)
			continue
		}

		unit, known := fieldUnits[key]
		if !known {
			obs.Extra[key] = value
			continue
		}
		if value == nil {
			continue
		}
		magnitude, err := toFloat(value)
		if err != nil {
			return nil, fmt.Errorf("%w: field %q: %v", ErrMalformedRecord, key, err)
		}
		obs.Quantities[key] = Quantity{Magnitude: magnitude, Unit: unit}
	}

	return obs, nil
}

// MapObservations maps every element of an observation list.
func MapObservations(raw []map[string]any) ([]*Observation, error) {
	observations := make([]*Observation, 0, len(raw))
	for i, item := range raw {
		obs, err := MapObservation(item)
		if err != nil {
			return nil, fmt.Errorf("observation %d: %w", i, err)
		}
		observations = append(observations, obs)
	}
	return observations, nil
}

func optionalObject(parent map[string]any, key string) (map[string]any, error) {
	v, ok := parent[key]
	if !ok || v == nil {
		return nil, nil
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s is %T, want object", ErrMalformedRecord, key, v)
	}
	return obj, nil
}

func optionalString(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return &s
}

func optionalFloat(name string, v any) (*float64, error) {
	if v == nil {
		return nil, nil
	}
	f, err := toFloat(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedRecord, name, err)
	}
	return &f, nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	default:
		return 0, fmt.Errorf("not a number (%T)", v)
	}
}
