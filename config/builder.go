package config

import (
	"github.com/brickbattery/panelcore"
)

// BuildDevices converts parsed configuration into SDK Device objects.
func BuildDevices(cfg *Config) ([]panelcore.Device, error) {
	devices := make([]panelcore.Device, 0, len(cfg.Devices))
	for _, dc := range cfg.Devices {
		dev, err := buildDevice(dc)
		if err != nil {
			return nil, err
		}
		devices = append(devices, dev)
	}
	return devices, nil
}

// buildDevice converts a single DeviceConfig to an SDK Device.
func buildDevice(dc DeviceConfig) (panelcore.Device, error) {
	var opts []panelcore.DeviceOption

	if dc.Name != "" {
		opts = append(opts, panelcore.WithName(dc.Name))
	}

	if dc.Group != "" {
		opts = append(opts, panelcore.WithGroup(dc.Group))
	}

	if dc.Timeout != 0 {
		opts = append(opts, panelcore.WithTimeout(dc.Timeout.Duration()))
	}

	if len(dc.NumericFields) > 0 {
		opts = append(opts, panelcore.WithNumericFields(dc.NumericFields...))
	}

	return panelcore.NewDevice(dc.ID, dc.URL, panelcore.DeviceKind(dc.Kind), opts...)
}

// BuildOptions converts parsed configuration into SDK Options, devices
// included.
func BuildOptions(cfg *Config) ([]panelcore.Option, error) {
	devices, err := BuildDevices(cfg)
	if err != nil {
		return nil, err
	}

	opts := []panelcore.Option{
		panelcore.WithDevices(devices...),
		panelcore.WithPort(cfg.Port),
		panelcore.WithReadInterval(cfg.ReadInterval.Duration()),
	}

	if cfg.MaxLatency != 0 {
		opts = append(opts, panelcore.WithMaxLatency(cfg.MaxLatency.Duration()))
	}
	if cfg.Chart.Capacity != 0 {
		opts = append(opts, panelcore.WithChartCapacity(cfg.Chart.Capacity))
	}
	if cfg.Chart.Staleness != 0 {
		opts = append(opts, panelcore.WithChartStaleness(cfg.Chart.Staleness.Duration()))
	}

	return opts, nil
}
