// Package meteo derives comfort indices from raw station measurements.
package meteo

import "math"

const (
	coldLimitC = 15.0
	warmLimitC = 20.0
)

// ApparentTemperature estimates the perceived temperature in °C from the air
// temperature (°C), relative humidity (%) and wind speed (m/s). At or below
// 15 °C it is the JAG/TI wind chill, at or above 20 °C Steadman's apparent
// temperature, and a linear blend of the two in between.
func ApparentTemperature(tempC, humidityPct, windMS float64) float64 {
	if tempC <= coldLimitC {
		return WindChill(tempC, windMS)
	}
	if tempC >= warmLimitC {
		return Steadman(tempC, humidityPct, windMS)
	}
	w := (tempC - coldLimitC) / (warmLimitC - coldLimitC)
	return WindChill(tempC, windMS)*(1-w) + Steadman(tempC, humidityPct, windMS)*w
}

// WindChill is the JAG/TI formula; wind is given in m/s and converted to km/h.
func WindChill(tempC, windMS float64) float64 {
	v := math.Pow(math.Max(windMS, 0)*3.6, 0.16)
	return 13.12 + 0.6215*tempC - 11.37*v + 0.3965*tempC*v
}

// Steadman is the non-radiative apparent temperature (Australian BoM form).
func Steadman(tempC, humidityPct, windMS float64) float64 {
	return tempC + 0.33*VapourPressure(tempC, humidityPct) - 0.70*windMS - 4.00
}

// VapourPressure returns the water vapour pressure in hPa.
func VapourPressure(tempC, humidityPct float64) float64 {
	e := 6.105 * math.Exp((17.27*tempC)/(237.7+tempC))
	return humidityPct / 100 * e
}
