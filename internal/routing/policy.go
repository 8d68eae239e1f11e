// Package routing decides which provider, model and temperature serve a
// generation task. Decisions are made against an immutable Snapshot of the
// configured policy and the admin override table, so every chunk sees the
// latest configuration without restarting in-flight jobs.
package routing

import (
	"sort"
	"strings"
)

// Built-in fallback used when the policy names no usable provider.
const (
	BuiltinProvider    = "gemini"
	BuiltinModel       = "gemini-2.0-flash"
	BuiltinTemperature = 0.7
)

// Complexity is a coarse hint about how demanding a task is.
type Complexity string

// Complexity hints
const (
	ComplexitySimple   Complexity = "simple"
	ComplexityStandard Complexity = "standard"
	ComplexityComplex  Complexity = "complex"
)

// Source names the resolution step that produced a Decision.
type Source string

// Resolution steps, in precedence order
const (
	SourceOverride   Source = "override"
	SourceMultimodal Source = "multimodal"
	SourceTask       Source = "task"
	SourceComplexity Source = "complexity"
	SourceDefault    Source = "default"
	SourceBuiltin    Source = "builtin"
)

// ModelProfile is a named model configuration of a provider.
type ModelProfile struct {
	Model       string  `mapstructure:"model"       validate:"required"`
	Temperature float64 `mapstructure:"temperature" validate:"gte=0,lte=2"`
}

// ProviderEntry lists the profiles a provider offers.
type ProviderEntry struct {
	DefaultProfile string                  `mapstructure:"default_profile"`
	Profiles       map[string]ModelProfile `mapstructure:"profiles"        validate:"dive"`
}

// profile returns the named profile, falling back to the default profile and
// then to the alphabetically first one.
func (e ProviderEntry) profile(name string) (string, ModelProfile, bool) {
	if p, ok := e.Profiles[name]; ok && name != "" {
		return name, p, true
	}
	if p, ok := e.Profiles[e.DefaultProfile]; ok {
		return e.DefaultProfile, p, true
	}
	if len(e.Profiles) == 0 {
		return "", ModelProfile{}, false
	}
	names := make([]string, 0, len(e.Profiles))
	for n := range e.Profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names[0], e.Profiles[names[0]], true
}

// Policy is the default routing strategy loaded from configuration.
type Policy struct {
	DefaultProvider    string                   `mapstructure:"default_provider"`
	MultimodalProvider string                   `mapstructure:"multimodal_provider"`
	Tasks              map[string]string        `mapstructure:"tasks"`
	Complexity         map[string]string        `mapstructure:"complexity"`
	Providers          map[string]ProviderEntry `mapstructure:"providers" validate:"dive"`
}

// DefaultPolicy returns the policy used when configuration provides none.
func DefaultPolicy() *Policy {
	return &Policy{
		DefaultProvider:    "gemini",
		MultimodalProvider: "gemini",
		Tasks: map[string]string{
			"guide_generation": "gemini",
		},
		Complexity: map[string]string{
			string(ComplexityComplex): "openai",
		},
		Providers: map[string]ProviderEntry{
			"gemini": {
				DefaultProfile: "fast",
				Profiles: map[string]ModelProfile{
					"fast":    {Model: "gemini-2.0-flash", Temperature: 0.7},
					"premium": {Model: "gemini-2.5-pro", Temperature: 0.5},
				},
			},
			"openai": {
				DefaultProfile: "fast",
				Profiles: map[string]ModelProfile{
					"fast":    {Model: "gpt-4o-mini", Temperature: 0.7},
					"premium": {Model: "gpt-4o", Temperature: 0.5},
				},
			},
		},
	}
}

// Normalize lower-cases provider names so lookups are case-insensitive.
func (p *Policy) Normalize() {
	p.DefaultProvider = normalizeName(p.DefaultProvider)
	p.MultimodalProvider = normalizeName(p.MultimodalProvider)
	for k, v := range p.Tasks {
		p.Tasks[k] = normalizeName(v)
	}
	for k, v := range p.Complexity {
		p.Complexity[k] = normalizeName(v)
	}
	if len(p.Providers) > 0 {
		providers := make(map[string]ProviderEntry, len(p.Providers))
		for name, entry := range p.Providers {
			providers[normalizeName(name)] = entry
		}
		p.Providers = providers
	}
}

func normalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Restrict drops providers that are not in available and clears references
// to them, so resolution falls through to a usable step.
func (p *Policy) Restrict(available []string) {
	keep := make(map[string]bool, len(available))
	for _, name := range available {
		keep[normalizeName(name)] = true
	}
	for name := range p.Providers {
		if !keep[name] {
			delete(p.Providers, name)
		}
	}
	if !keep[p.DefaultProvider] {
		p.DefaultProvider = ""
	}
	if !keep[p.MultimodalProvider] {
		p.MultimodalProvider = ""
	}
	for k, v := range p.Tasks {
		if !keep[v] {
			delete(p.Tasks, k)
		}
	}
	for k, v := range p.Complexity {
		if !keep[v] {
			delete(p.Complexity, k)
		}
	}
	if p.DefaultProvider == "" {
		names := make([]string, 0, len(p.Providers))
		for n := range p.Providers {
			names = append(names, n)
		}
		sort.Strings(names)
		if len(names) > 0 {
			p.DefaultProvider = names[0]
		}
	}
}
