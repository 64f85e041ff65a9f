package config

// Preset captures the tuning envelope for a class of hardware: the
// unit the measurement is expressed in, the setpoint range the front
// end should offer, and starting gains.
type Preset struct {
	Unit        string
	SetpointMin float64
	SetpointMax float64
	Gains       GainsConfig
	Limit       float64
}

var Presets = map[string]Preset{
	"balancing-arm": {
		Unit: "degrees", SetpointMin: -90, SetpointMax: 90,
		Gains: GainsConfig{Kp: 20.0, Ki: 0.0, Kd: 2.0}, Limit: 50,
	},
	"dc-motor": {
		Unit: "rpm", SetpointMin: 0, SetpointMax: 6000,
		Gains: GainsConfig{Kp: 0.5, Ki: 0.1, Kd: 0.0}, Limit: 100,
	},
	"esc": {
		Unit: "normalized", SetpointMin: 0, SetpointMax: 1,
		Gains: GainsConfig{Kp: 2.0, Ki: 0.5, Kd: 0.1}, Limit: 1,
	},
	"drone-axis": {
		Unit: "degrees", SetpointMin: -45, SetpointMax: 45,
		Gains: GainsConfig{Kp: 25.0, Ki: 0.0, Kd: 4.0}, Limit: 50,
	},
	"custom": {
		Unit: "user-defined", SetpointMin: -100, SetpointMax: 100,
		Gains: GainsConfig{Kp: DefaultKp, Ki: DefaultKi, Kd: DefaultKd}, Limit: DefaultLimit,
	},
}

func GetPreset(name string) (Preset, bool) {
	p, ok := Presets[name]
	return p, ok
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	return names
}

// Apply copies the preset's tuning into cfg.
func (p Preset) Apply(cfg *Config) {
	cfg.Gains = p.Gains
	cfg.Limit = p.Limit
}
