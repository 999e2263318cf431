package govee

import (
	"fmt"
	"strconv"
)

// Offsets are hex-character indices into a payload, not byte indices.
// Each byte of manufacturer data occupies two characters.
type Offsets struct {
	EnvStart int `json:"env_start"`
	EnvEnd   int `json:"env_end"`
	BatStart int `json:"bat_start"`
	BatEnd   int `json:"bat_end"`
}

type environment struct {
	Humidity float64
	TempInC  float64
	TempInF  float64
}

type envParser func(payload string, off Offsets) (environment, error)

type batParser func(payload string, off Offsets) (int, error)

// parseEnvLsbTc reads a 4-char temperature and a 4-char humidity field, each
// stored little-endian. Temperature is 16-bit two's complement, both in 0.01 units.
func parseEnvLsbTc(payload string, off Offsets) (environment, error) {
	env, err := window(payload, off.EnvStart, off.EnvEnd)
	if err != nil {
		return environment{}, err
	}
	if len(env) < 8 {
		return environment{}, fmt.Errorf("%w: environment window %q shorter than 8 chars", ErrMalformedPayload, env)
	}

	tempLsb, err := reverseHexBytes(env[0:4])
	if err != nil {
		return environment{}, err
	}
	humLsb, err := reverseHexBytes(env[4:8])
	if err != nil {
		return environment{}, err
	}

	rawTemp, err := parseHex(tempLsb)
	if err != nil {
		return environment{}, err
	}
	rawHum, err := parseHex(humLsb)
	if err != nil {
		return environment{}, err
	}

	tempInC := float64(twosComplement(rawTemp, 16)) / 100
	return environment{
		Humidity: float64(rawHum) / 100,
		TempInC:  tempInC,
		TempInF:  tempC2F(tempInC),
	}, nil
}

// parseEnvLsbTcExtended rebuilds temperature and humidity from a 6-char window
// where the middle byte is shared by both fields.
func parseEnvLsbTcExtended(payload string, off Offsets) (environment, error) {
	env, err := window(payload, off.EnvStart, off.EnvEnd)
	if err != nil {
		return environment{}, err
	}
	if len(env) < 6 {
		return environment{}, fmt.Errorf("%w: environment window %q shorter than 6 chars", ErrMalformedPayload, env)
	}

	basis := env[2:4]
	rawTemp, err := parseHex(env[0:2] + basis)
	if err != nil {
		return environment{}, err
	}
	rawHum, err := parseHex(env[4:6] + basis)
	if err != nil {
		return environment{}, err
	}

	tempInC := float64(twosComplement(rawTemp, 16)) / 100
	return environment{
		Humidity: float64(rawHum) / 100,
		TempInC:  tempInC,
		TempInF:  tempC2F(tempInC),
	}, nil
}

// parseEnvBitwiseAnd reads the whole window as one big-endian integer.
// Bit 0x800000 flags a negative temperature; humidity is the last three
// decimal digits in 0.1 units.
func parseEnvBitwiseAnd(payload string, off Offsets) (environment, error) {
	env, err := window(payload, off.EnvStart, off.EnvEnd)
	if err != nil {
		return environment{}, err
	}
	raw, err := parseHex(env)
	if err != nil {
		return environment{}, err
	}

	negative := false
	if raw&0x800000 != 0 {
		negative = true
		raw ^= 0x800000
	}

	tempInC := float64(raw) / 10000
	if negative {
		tempInC = 0 - tempInC
	}
	return environment{
		Humidity: float64(raw%1000) / 10,
		TempInC:  tempInC,
		TempInF:  tempC2F(tempInC),
	}, nil
}

// parseBatTwoChar reads the battery percentage as a single byte. Values are
// not clamped to 0-100.
func parseBatTwoChar(payload string, off Offsets) (int, error) {
	bat, err := window(payload, off.BatStart, off.BatEnd)
	if err != nil {
		return 0, err
	}
	raw, err := parseHex(bat)
	if err != nil {
		return 0, err
	}
	return int(raw), nil
}

// window returns payload[start:end] or ErrMalformedPayload when the range
// does not fit inside the payload.
func window(payload string, start, end int) (string, error) {
	if start < 0 || end < start || end > len(payload) {
		return "", fmt.Errorf("%w: window [%d:%d] out of range for payload of length %d",
			ErrMalformedPayload, start, end, len(payload))
	}
	return payload[start:end], nil
}

func parseHex(s string) (uint64, error) {
	if s == "" {
		return 0, fmt.Errorf("%w: empty hex field", ErrMalformedPayload)
	}
	n, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not hex: %v", ErrMalformedPayload, s, err)
	}
	return n, nil
}

// reverseHexBytes swaps the byte order of a hex string, two characters at a time.
func reverseHexBytes(s string) (string, error) {
	if len(s)%2 != 0 {
		return "", fmt.Errorf("%w: cannot reverse an odd number of hex chars (got %d)", ErrMalformedPayload, len(s))
	}
	out := make([]byte, 0, len(s))
	for i := len(s); i > 0; i -= 2 {
		out = append(out, s[i-2:i]...)
	}
	return string(out), nil
}

func twosComplement(n uint64, width uint) int64 {
	v := int64(n)
	if n&(1<<(width-1)) != 0 {
		v -= 1 << width
	}
	return v
}

func tempC2F(c float64) float64 {
	return (c*9)/5 + 32
}
