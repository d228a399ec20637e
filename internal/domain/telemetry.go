package domain

import "strconv"

// TelemetryReading is one IMU record from the buoy device feed.
type TelemetryReading struct {
	Roll   float64 `json:"roll"`
	AccelX float64 `json:"accelX"`
	AccelY float64 `json:"accelY"`
	AccelZ float64 `json:"accelZ"`
}

// TelemetryDisplay is a reading formatted for display.
type TelemetryDisplay struct {
	Roll   string `json:"roll"`
	AccelX string `json:"accelX"`
	AccelY string `json:"accelY"`
	AccelZ string `json:"accelZ"`
}

// NoTelemetry is shown before the first reading arrives.
var NoTelemetry = TelemetryDisplay{Roll: "--", AccelX: "--", AccelY: "--", AccelZ: "--"}

// Display formats every field to two decimal places.
func (r TelemetryReading) Display() TelemetryDisplay {
	return TelemetryDisplay{
		Roll:   formatReading(r.Roll),
		AccelX: formatReading(r.AccelX),
		AccelY: formatReading(r.AccelY),
		AccelZ: formatReading(r.AccelZ),
	}
}

func formatReading(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
