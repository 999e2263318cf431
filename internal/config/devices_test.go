package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"govee-decoder/pkg/govee"
)

const sampleDevices = `
devices:
  - address: a4:c1:38:00:11:22
    model: h5075
    name: Living room
  - address: "E3:60:59:AA:BB:CC"
    model: H5179
`

func TestParseDeviceMap(t *testing.T) {
	m, err := ParseDeviceMap([]byte(sampleDevices))
	if err != nil {
		t.Fatalf("ParseDeviceMap() error = %v", err)
	}
	if len(m) != 2 {
		t.Fatalf("len = %d, want 2", len(m))
	}

	d, ok := m.Lookup("A4:c1:38:00:11:22")
	if !ok {
		t.Fatal("Lookup() did not find device regardless of case")
	}
	if d.Model != govee.H5075 || d.Name != "Living room" || d.Address != "A4:C1:38:00:11:22" {
		t.Errorf("device = %+v", d)
	}
	if _, ok := m.Lookup("00:00:00:00:00:00"); ok {
		t.Error("Lookup() found an unlisted device")
	}
}

func TestParseDeviceMap_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "unknown model", yaml: "devices:\n  - address: AA\n    model: H9999\n"},
		{name: "missing address", yaml: "devices:\n  - model: H5075\n"},
		{name: "duplicate", yaml: "devices:\n  - address: aa\n    model: H5075\n  - address: AA\n    model: H5074\n"},
		{name: "not yaml", yaml: "devices: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseDeviceMap([]byte(tt.yaml)); err == nil {
				t.Fatal("ParseDeviceMap() error = nil, want non-nil")
			}
		})
	}

	_, err := ParseDeviceMap([]byte("devices:\n  - address: AA\n    model: H9999\n"))
	if !errors.Is(err, govee.ErrUnknownModel) {
		t.Errorf("error = %v; want ErrUnknownModel", err)
	}
}

func TestLoadDeviceMap(t *testing.T) {
	m, err := LoadDeviceMap("")
	if err != nil || len(m) != 0 {
		t.Fatalf("LoadDeviceMap(\"\") = %v, %v; want empty, nil", m, err)
	}

	path := filepath.Join(t.TempDir(), "devices.yaml")
	if err := os.WriteFile(path, []byte(sampleDevices), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	m, err = LoadDeviceMap(path)
	if err != nil {
		t.Fatalf("LoadDeviceMap() error = %v", err)
	}
	if len(m) != 2 {
		t.Errorf("len = %d, want 2", len(m))
	}

	if _, err := LoadDeviceMap(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadDeviceMap(missing) error = nil, want non-nil")
	}
}
