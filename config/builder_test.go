package config

import (
	"testing"
	"time"

	"github.com/brickbattery/panelcore"
)

func TestBuildDevices(t *testing.T) {
	cfg, err := Parse([]byte(validYAML))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	devices, err := BuildDevices(cfg)
	if err != nil {
		t.Fatalf("BuildDevices() error = %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("len(devices) = %d, want 2", len(devices))
	}

	living := devices[0]
	if living.ID() != "living" {
		t.Errorf("ID() = %q, want living", living.ID())
	}
	if living.Name() != "Living Room" {
		t.Errorf("Name() = %q, want Living Room", living.Name())
	}
	if living.Kind() != panelcore.KindAircon {
		t.Errorf("Kind() = %v, want aircon", living.Kind())
	}
	if living.Timeout() != 5*time.Second {
		t.Errorf("Timeout() = %v, want 5s", living.Timeout())
	}

	solar := devices[1]
	if solar.Kind() != panelcore.KindController {
		t.Errorf("Kind() = %v, want controller", solar.Kind())
	}
	if solar.Group() != "energy" {
		t.Errorf("Group() = %q, want energy", solar.Group())
	}
	fields := solar.NumericFields()
	if len(fields) != 2 || fields[0] != "production" {
		t.Errorf("NumericFields() = %v, want [production consumption]", fields)
	}
}

func TestBuildDevices_DefaultsApplied(t *testing.T) {
	cfg, err := Parse([]byte(`
devices:
  - id: living
    url: http://192.168.1.60
    kind: aircon
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	devices, err := BuildDevices(cfg)
	if err != nil {
		t.Fatalf("BuildDevices() error = %v", err)
	}

	dev := devices[0]
	if dev.Name() != "living" {
		t.Errorf("Name() = %q, want device id as default", dev.Name())
	}
	if dev.Group() != "aircon" {
		t.Errorf("Group() = %q, want kind as default", dev.Group())
	}
}

func TestBuildOptions(t *testing.T) {
	cfg, err := Parse([]byte(validYAML))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	opts, err := BuildOptions(cfg)
	if err != nil {
		t.Fatalf("BuildOptions() error = %v", err)
	}

	p, err := panelcore.New(opts...)
	if err != nil {
		t.Fatalf("New() with built options error = %v", err)
	}
	if p.Port() != 9090 {
		t.Errorf("Port() = %d, want 9090", p.Port())
	}
	if p.ReadInterval() != 5*time.Second {
		t.Errorf("ReadInterval() = %v, want 5s", p.ReadInterval())
	}
	if len(p.Devices()) != 2 {
		t.Errorf("len(Devices()) = %d, want 2", len(p.Devices()))
	}
}
