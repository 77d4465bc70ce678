package weather

import "sort"

// Observation field names with a fixed unit.
const (
	FieldWindSpeed     = "windspeedmph"
	FieldWindGust      = "windgustmph"
	FieldMaxDailyGust  = "maxdailygust"
	FieldTemperature   = "tempf"
	FieldTemperatureIn = "tempinf"
	FieldFeelsLike     = "feelsLike"
	FieldDewPoint      = "dewPoint"
	FieldBaromRelative = "baromrelin"
	FieldBaromAbsolute = "baromabsin"
	FieldHourlyRain    = "hourlyrainin"
	FieldDailyRain     = "dailyrainin"
	FieldMonthlyRain   = "monthlyrainin"
	FieldYearlyRain    = "yearlyrainin"
	FieldWindDir       = "winddir"
	FieldWindDirAvg10m = "winddir_avg10m"
	FieldHumidity      = "humidity"
	FieldHumidityIn    = "humidityin"
)

// Timestamp fields present on every observation.
const (
	FieldDate    = "date"
	FieldDateUTC = "dateutc"
)

var fieldUnits = map[string]Unit{
	FieldWindSpeed:     UnitMilePerHour,
	FieldWindGust:      UnitMilePerHour,
	FieldMaxDailyGust:  UnitMilePerHour,
	FieldTemperature:   UnitDegreeFahrenheit,
	FieldTemperatureIn: UnitDegreeFahrenheit,
	FieldFeelsLike:     UnitDegreeFahrenheit,
	FieldDewPoint:      UnitDegreeFahrenheit,
	FieldBaromRelative: UnitInchOfMercury,
	FieldBaromAbsolute: UnitInchOfMercury,
	FieldHourlyRain:    UnitInch,
	FieldDailyRain:     UnitInch,
	FieldMonthlyRain:   UnitInch,
	FieldYearlyRain:    UnitInch,
	FieldWindDir:       UnitDegree,
	FieldWindDirAvg10m: UnitDegree,
	FieldHumidity:      UnitPercent,
	FieldHumidityIn:    UnitPercent,
}

// UnitFor returns the unit of a known field.
func UnitFor(field string) (Unit, bool) {
	u, ok := fieldUnits[field]
	return u, ok
}

// KnownFields returns the names of all unit-tagged fields, sorted.
func KnownFields() []string {
	names := make([]string, 0, len(fieldUnits))
	for name := range fieldUnits {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
