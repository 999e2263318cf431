package govee

import "strings"

// Model names.
const (
	H5074 = "H5074"
	H5075 = "H5075"
	H5101 = "H5101"
	H5179 = "H5179"
)

// Model describes how one sensor model lays out its advertisement.
type Model struct {
	Name    string
	Offsets Offsets

	validate    func(payload string) bool
	environment envParser
	battery     batParser
}

// Validate reports whether payload looks like it came from this model.
func (m Model) Validate(payload string) bool {
	return m.validate(payload)
}

// Registration order decides which model wins when validators overlap.
var models = []Model{
	{
		Name:        H5074,
		Offsets:     Offsets{EnvStart: 6, EnvEnd: 14, BatStart: 14, BatEnd: 16},
		validate:    isH5074,
		environment: parseEnvLsbTc,
		battery:     parseBatTwoChar,
	},
	{
		Name:        H5075,
		Offsets:     Offsets{EnvStart: 6, EnvEnd: 12, BatStart: 12, BatEnd: 14},
		validate:    isH5075,
		environment: parseEnvBitwiseAnd,
		battery:     parseBatTwoChar,
	},
	{
		Name:        H5101,
		Offsets:     Offsets{EnvStart: 8, EnvEnd: 14, BatStart: 14, BatEnd: 16},
		validate:    isH5101,
		environment: parseEnvBitwiseAnd,
		battery:     parseBatTwoChar,
	},
	{
		Name:        H5179,
		Offsets:     Offsets{EnvStart: 14, EnvEnd: 20, BatStart: 20, BatEnd: 22},
		validate:    isH5179,
		environment: parseEnvLsbTcExtended,
		battery:     parseBatTwoChar,
	},
}

// Models returns the registered models in dispatch order.
func Models() []Model {
	out := make([]Model, len(models))
	copy(out, models)
	return out
}

// Lookup returns the model registered under name.
func Lookup(name string) (Model, bool) {
	for _, m := range models {
		if m.Name == name {
			return m, true
		}
	}
	return Model{}, false
}

// Marker prefixes, lower case.
const (
	markerH507x = "88ec"
	markerH5101 = "0100"
	markerH5179 = "0188ec"
)

func isH5074(payload string) bool {
	return len(payload) == 18 && hasMarker(payload, markerH507x)
}

func isH5075(payload string) bool {
	return len(payload) == 16 && hasMarker(payload, markerH507x)
}

func isH5101(payload string) bool {
	return len(payload) == 16 && hasMarker(payload, markerH5101)
}

func isH5179(payload string) bool {
	return len(payload) == 22 && hasMarker(payload, markerH5179)
}

func hasMarker(payload, marker string) bool {
	if len(payload) < len(marker) {
		return false
	}
	return strings.EqualFold(payload[:len(marker)], marker)
}
