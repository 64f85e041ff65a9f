package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultKp       = 20.0
	DefaultKi       = 0.0
	DefaultKd       = 2.0
	DefaultLimit    = 50.0
	DefaultPeriod   = 0.02
	DefaultBaud     = 115200
	DefaultChannel  = 1
	DefaultCharUUID = "0000ffe1-0000-1000-8000-00805f9b34fb"
)

type Config struct {
	Transport string       `yaml:"transport"` // gatt | rfcomm | serial | none
	Device    DeviceConfig `yaml:"device"`
	Gains     GainsConfig  `yaml:"gains"`
	Setpoint  float64      `yaml:"setpoint"`
	Limit     float64      `yaml:"output_limit"`
	Period    float64      `yaml:"period"` // seconds
}

type DeviceConfig struct {
	Address        string `yaml:"address"`        // BT address, or tty path for serial
	Characteristic string `yaml:"characteristic"` // gatt only
	Channel        uint8  `yaml:"channel"`        // rfcomm only
	Baud           int    `yaml:"baud"`           // serial only
}

type GainsConfig struct {
	Kp float64 `yaml:"kp"`
	Ki float64 `yaml:"ki"`
	Kd float64 `yaml:"kd"`
}

func DefaultConfig() *Config {
	return &Config{
		Transport: "none",
		Device: DeviceConfig{
			Characteristic: DefaultCharUUID,
			Channel:        DefaultChannel,
			Baud:           DefaultBaud,
		},
		Gains: GainsConfig{
			Kp: DefaultKp,
			Ki: DefaultKi,
			Kd: DefaultKd,
		},
		Limit:  DefaultLimit,
		Period: DefaultPeriod,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	switch c.Transport {
	case "gatt", "rfcomm", "serial", "none":
	default:
		return fmt.Errorf("unknown transport: %s", c.Transport)
	}
	if c.Limit < 0 {
		return fmt.Errorf("output_limit must be >= 0, got %g", c.Limit)
	}
	if c.Period <= 0 {
		return fmt.Errorf("period must be positive, got %g", c.Period)
	}
	if c.Transport != "none" && c.Device.Address == "" {
		return fmt.Errorf("transport %s requires a device address", c.Transport)
	}
	if c.Transport == "serial" && c.Device.Baud <= 0 {
		return fmt.Errorf("serial baud must be positive, got %d", c.Device.Baud)
	}
	return nil
}
