package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"covidboard/internal/models"
)

// Preset is a named, reusable filter selection.
//
//	presets:
//	  - name: east-africa
//	    countries: [Kenya, Uganda]
//	    start: 2021-01-01
//	    end: 2021-06-30
type Preset struct {
	Name      string   `yaml:"name" json:"name"`
	Countries []string `yaml:"countries" json:"countries,omitempty"`
	Start     string   `yaml:"start" json:"start,omitempty"`
	End       string   `yaml:"end" json:"end,omitempty"`
}

type presetFile struct {
	Presets []Preset `yaml:"presets"`
}

func LoadPresets(path string) ([]Preset, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "unable to read presets")
	}
	presets, err := ParsePresets(b)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid presets file %s", path)
	}
	return presets, nil
}

func ParsePresets(b []byte) ([]Preset, error) {
	var f presetFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, errors.Wrap(err, "unable to parse presets")
	}

	seen := make(map[string]bool, len(f.Presets))
	for _, p := range f.Presets {
		if p.Name == "" {
			return nil, errors.New("preset without a name")
		}
		if seen[p.Name] {
			return nil, errors.Errorf("duplicate preset %q", p.Name)
		}
		seen[p.Name] = true

		if _, err := p.Apply(models.Criteria{}); err != nil {
			return nil, errors.Wrapf(err, "preset %q", p.Name)
		}
	}
	return f.Presets, nil
}

func FindPreset(presets []Preset, name string) (Preset, bool) {
	for _, p := range presets {
		if p.Name == name {
			return p, true
		}
	}
	return Preset{}, false
}

// Apply overlays the preset on base. Fields the preset leaves empty keep
// base's value.
func (p Preset) Apply(base models.Criteria) (models.Criteria, error) {
	c := base
	if len(p.Countries) > 0 {
		c.Countries = append([]string(nil), p.Countries...)
	}
	if p.Start != "" {
		d, err := models.ParseDate(p.Start)
		if err != nil {
			return c, errors.Wrap(err, "start")
		}
		c.Start = d
	}
	if p.End != "" {
		d, err := models.ParseDate(p.End)
		if err != nil {
			return c, errors.Wrap(err, "end")
		}
		c.End = d
	}
	return c, nil
}
