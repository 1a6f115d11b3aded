package config

import "sort"

// Presets are named overrides applied on top of the loaded configuration.
var Presets = map[string]func(*Config){
	"droid": func(c *Config) {},
	"preview": func(c *Config) {
		c.Camera.Width = 320
		c.Camera.Height = 180
		c.Sim.Substeps = 4
	},
	"offline": func(c *Config) {
		c.Policy.Offline = true
		c.Loop.MaxIterations = 2 * c.Loop.RestartLoopMod
	},
	"smoke": func(c *Config) {
		c.Policy.Offline = true
		c.Camera.Width = 64
		c.Camera.Height = 48
		c.Loop.MaxIterations = 3
	},
}

func GetPreset(name string) func(*Config) {
	return Presets[name]
}

// Apply runs the named preset against c. It reports false for an unknown name.
func (c *Config) Apply(name string) bool {
	p, ok := Presets[name]
	if !ok {
		return false
	}
	p(c)
	return true
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
