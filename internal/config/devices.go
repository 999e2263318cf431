package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"govee-decoder/pkg/govee"
)

// Device is a known sensor, pinned to a model so its payloads skip detection.
type Device struct {
	Address string `yaml:"address"`
	Model   string `yaml:"model"`
	Name    string `yaml:"name"`
}

// DeviceMap indexes known devices by upper-case BLE address.
type DeviceMap map[string]Device

// Lookup finds a device by address, ignoring case.
func (m DeviceMap) Lookup(address string) (Device, bool) {
	d, ok := m[strings.ToUpper(strings.TrimSpace(address))]
	return d, ok
}

type deviceFile struct {
	Devices []Device `yaml:"devices"`
}

// LoadDeviceMap reads a YAML device list. An empty path yields an empty map.
func LoadDeviceMap(path string) (DeviceMap, error) {
	if path == "" {
		return DeviceMap{}, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read device map %s: %w", path, err)
	}
	return ParseDeviceMap(b)
}

func ParseDeviceMap(b []byte) (DeviceMap, error) {
	var f deviceFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse device map: %w", err)
	}

	out := make(DeviceMap, len(f.Devices))
	for i, d := range f.Devices {
		addr := strings.ToUpper(strings.TrimSpace(d.Address))
		if addr == "" {
			return nil, fmt.Errorf("device %d: address is required", i)
		}
		model := strings.ToUpper(strings.TrimSpace(d.Model))
		if _, ok := govee.Lookup(model); !ok {
			return nil, fmt.Errorf("device %s: %w: %q", addr, govee.ErrUnknownModel, d.Model)
		}
		if _, dup := out[addr]; dup {
			return nil, fmt.Errorf("device %s: listed more than once", addr)
		}
		out[addr] = Device{Address: addr, Model: model, Name: strings.TrimSpace(d.Name)}
	}
	return out, nil
}
