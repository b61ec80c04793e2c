package weather

import "fmt"

// Field names a numeric observation column that can be interpolated or mapped.
type Field string

const (
	FieldTemperature       Field = "temperature"
	FieldGroundTemperature Field = "groundTemperature"
	FieldFeelTemperature   Field = "feelTemperature"
	FieldHumidity          Field = "humidity"
	FieldWindSpeed         Field = "windSpeed"
	FieldRainfallLastHour  Field = "rainfallLastHour"
	FieldSunPower          Field = "sunPower"
	FieldAirPressure       Field = "airPressure"
)

var fields = map[Field]func(Observation) float64{
	FieldTemperature:       func(o Observation) float64 { return o.Temperature },
	FieldGroundTemperature: func(o Observation) float64 { return o.GroundTemperature },
	FieldFeelTemperature:   func(o Observation) float64 { return o.FeelTemperature },
	FieldHumidity:          func(o Observation) float64 { return o.Humidity },
	FieldWindSpeed:         func(o Observation) float64 { return o.WindSpeed },
	FieldRainfallLastHour:  func(o Observation) float64 { return o.RainfallLastHour },
	FieldSunPower:          func(o Observation) float64 { return o.SunPower },
	FieldAirPressure:       func(o Observation) float64 { return o.AirPressure },
}

// ParseField validates a field name coming from a request.
func ParseField(s string) (Field, error) {
	f := Field(s)
	if _, ok := fields[f]; !ok {
		return "", fmt.Errorf("unknown field %q", s)
	}
	return f, nil
}

// Value returns the field of o and false when the feed did not report it.
func (f Field) Value(o Observation) (float64, bool) {
	get, ok := fields[f]
	if !ok {
		return 0, false
	}
	v := get(o)
	if v == MissingValue {
		return 0, false
	}
	return v, true
}
