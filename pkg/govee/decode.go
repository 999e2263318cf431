// Package govee decodes the manufacturer data that Govee thermo-hygrometers
// put in their BLE advertisements.
//
// Payloads are hex strings (either case). Field offsets are counted in hex
// characters, so one byte spans two positions.
package govee

import (
	"fmt"
	"regexp"
	"strings"
)

// Reading is a decoded sensor sample. Values are not range checked: a
// misbehaving device can report a battery above 100 or humidity above 100%.
type Reading struct {
	Humidity float64 `json:"humidity"`
	TempInC  float64 `json:"tempInC"`
	TempInF  float64 `json:"tempInF"`
	Battery  int     `json:"battery"`
}

// DecodeAny decodes payload with the first registered model whose validator
// accepts it.
func DecodeAny(payload string) (Reading, error) {
	m, ok := detect(payload)
	if !ok {
		return Reading{}, &UnsupportedPayloadError{Payload: payload, Len: len(payload)}
	}
	return decodeWith(m, payload)
}

// DecodeForModel decodes payload as the named model without validating it.
func DecodeForModel(name, payload string) (Reading, error) {
	m, ok := Lookup(name)
	if !ok {
		return Reading{}, fmt.Errorf("%w: %q", ErrUnknownModel, name)
	}
	return decodeWith(m, payload)
}

// Detect returns the name of the model that DecodeAny would use for payload.
func Detect(payload string) (string, bool) {
	m, ok := detect(payload)
	if !ok {
		return "", false
	}
	return m.Name, true
}

// DecodeH5074 decodes payload with the H5074 layout, without validating it.
func DecodeH5074(payload string) (Reading, error) { return DecodeForModel(H5074, payload) }

// DecodeH5075 decodes payload with the H5075 layout, without validating it.
func DecodeH5075(payload string) (Reading, error) { return DecodeForModel(H5075, payload) }

// DecodeH5101 decodes payload with the H5101 layout, without validating it.
func DecodeH5101(payload string) (Reading, error) { return DecodeForModel(H5101, payload) }

// DecodeH5179 decodes payload with the H5179 layout, without validating it.
func DecodeH5179(payload string) (Reading, error) { return DecodeForModel(H5179, payload) }

var localNameModel = regexp.MustCompile(`(?i)H5\d{3}`)

// ModelFromLocalName picks a registered model out of an advertised local name
// such as "GVH5075_1A2B" or "Govee_H5074_C3D4".
func ModelFromLocalName(name string) (string, bool) {
	for _, tok := range localNameModel.FindAllString(name, -1) {
		if m, ok := Lookup(strings.ToUpper(tok)); ok {
			return m.Name, true
		}
	}
	return "", false
}

func detect(payload string) (Model, bool) {
	for _, m := range models {
		if m.validate(payload) {
			return m, true
		}
	}
	return Model{}, false
}

func decodeWith(m Model, payload string) (Reading, error) {
	env, err := m.environment(payload, m.Offsets)
	if err != nil {
		return Reading{}, fmt.Errorf("%s environment: %w", m.Name, err)
	}
	battery, err := m.battery(payload, m.Offsets)
	if err != nil {
		return Reading{}, fmt.Errorf("%s battery: %w", m.Name, err)
	}
	return Reading{
		Humidity: env.Humidity,
		TempInC:  env.TempInC,
		TempInF:  env.TempInF,
		Battery:  battery,
	}, nil
}
