package prompt

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// NoFormula is the sentinel every profile asks the model to return when the
// image has no math in it.
const NoFormula = "No formula found"

//go:embed profiles.yaml
var catalogYAML []byte

// Profile is one deployment variant: prompt, sampling temperature and the
// guest/standard model pair.
type Profile struct {
	Name          string  `yaml:"-"`
	SystemPrompt  string  `yaml:"system"`
	Temperature   float64 `yaml:"temperature"`
	GuestModel    string  `yaml:"guest_model"`
	StandardModel string  `yaml:"standard_model"`
}

// Overrides come from deployment configuration and win over the catalog.
type Overrides struct {
	GuestModel     string
	StandardModel  string
	TemperatureSet bool
	Temperature    float64
}

type Catalog map[string]Profile

// Parse decodes a catalog document. Every profile must carry a system prompt
// and both model ids.
func Parse(raw []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("prompt catalog: %w", err)
	}
	for name, p := range c {
		p.Name = name
		p.SystemPrompt = strings.TrimSpace(p.SystemPrompt)
		if p.SystemPrompt == "" {
			return nil, fmt.Errorf("prompt catalog: profile %q has no system prompt", name)
		}
		if p.GuestModel == "" || p.StandardModel == "" {
			return nil, fmt.Errorf("prompt catalog: profile %q needs guest_model and standard_model", name)
		}
		c[name] = p
	}
	return c, nil
}

// Builtin returns the catalog compiled into the binary.
func Builtin() (Catalog, error) {
	return Parse(catalogYAML)
}

func (c Catalog) Names() []string {
	names := make([]string, 0, len(c))
	for n := range c {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Resolve picks a profile by name and applies overrides.
func (c Catalog) Resolve(name string, o Overrides) (Profile, error) {
	p, ok := c[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Profile{}, fmt.Errorf("unknown prompt profile %q; use one of %s", name, strings.Join(c.Names(), ", "))
	}
	if o.GuestModel != "" {
		p.GuestModel = o.GuestModel
	}
	if o.StandardModel != "" {
		p.StandardModel = o.StandardModel
	}
	if o.TemperatureSet {
		p.Temperature = o.Temperature
	}
	return p, nil
}
