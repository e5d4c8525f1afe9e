package tts

import "fmt"

// RegistryConfig holds per-provider credentials and endpoints.
// A provider whose key is empty stays unavailable.
type RegistryConfig struct {
	Default Provider

	ElevenLabsKey     string
	ElevenLabsModel   string
	ElevenLabsBaseURL string

	InworldKey     string
	InworldModel   string
	InworldBaseURL string
}

// Registry resolves a Provider to its configured Synthesizer.
type Registry struct {
	def    Provider
	synths map[Provider]Synthesizer
}

// NewRegistry creates a Registry over the given synthesizers.
// def is used when callers ask for the zero Provider.
func NewRegistry(def Provider, synths ...Synthesizer) *Registry {
	r := &Registry{def: def, synths: make(map[Provider]Synthesizer, len(synths))}
	for _, s := range synths {
		r.synths[s.Provider()] = s
	}
	return r
}

// BuildRegistry creates adapters for every provider that has a key.
func BuildRegistry(cfg RegistryConfig) *Registry {
	var synths []Synthesizer
	if el, err := NewElevenLabs(cfg.ElevenLabsKey,
		WithElevenLabsModel(cfg.ElevenLabsModel),
		WithElevenLabsBaseURL(cfg.ElevenLabsBaseURL),
	); err == nil {
		synths = append(synths, el)
	}
	if iw, err := NewInworld(cfg.InworldKey,
		WithInworldModel(cfg.InworldModel),
		WithInworldBaseURL(cfg.InworldBaseURL),
	); err == nil {
		synths = append(synths, iw)
	}
	return NewRegistry(cfg.Default.Or(ProviderElevenLabs), synths...)
}

// Synthesizer returns the adapter for p, or for the default when p is zero.
// Returns ErrMissingCredentials when that provider has no key configured.
// No network call is made.
func (r *Registry) Synthesizer(p Provider) (Synthesizer, error) {
	p = p.Or(r.def)
	s, ok := r.synths[p]
	if !ok {
		return nil, fmt.Errorf("%s: %w", p, ErrMissingCredentials)
	}
	return s, nil
}

// Available lists configured providers.
func (r *Registry) Available() []Provider {
	out := make([]Provider, 0, len(r.synths))
	for _, p := range []Provider{ProviderElevenLabs, ProviderInworld} {
		if _, ok := r.synths[p]; ok {
			out = append(out, p)
		}
	}
	return out
}
