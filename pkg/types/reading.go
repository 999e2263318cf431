package types

import (
	"time"

	"govee-decoder/pkg/govee"
)

// GoveeReading is a decoded advertisement from a single device.
type GoveeReading struct {
	UUID      string    `json:"uuid,omitempty"`
	Address   string    `json:"address"`
	Model     string    `json:"model"`
	TempInC   float64   `json:"tempInC"`
	TempInF   float64   `json:"tempInF"`
	Humidity  float64   `json:"humidity"`
	Battery   int       `json:"battery"`
	RSSI      int16     `json:"rssi"`
	Timestamp time.Time `json:"timestamp"`
}

// NewGoveeReading combines a decoded reading with the advertisement it came from.
func NewGoveeReading(r govee.Reading, model, address, uuid string, rssi int16, at time.Time) GoveeReading {
	return GoveeReading{
		UUID:      uuid,
		Address:   address,
		Model:     model,
		TempInC:   r.TempInC,
		TempInF:   r.TempInF,
		Humidity:  r.Humidity,
		Battery:   r.Battery,
		RSSI:      rssi,
		Timestamp: at,
	}
}
