package tts

import (
	"errors"
	"fmt"
)

// Provider names.
const (
	nameElevenLabs = "elevenlabs"
	nameInworld    = "inworld"
)

// Provider identifies a speech synthesis backend.
// Zero value means "use the configured default".
// Use ParseProvider to create from user input, or the pre-parsed values.
type Provider struct {
	name string
}

// Compile-time interface compliance check.
var _ fmt.Stringer = Provider{}

// ErrUnknownProvider indicates an unrecognized provider name.
var ErrUnknownProvider = errors.New("unknown provider")

// Pre-parsed providers.
var (
	ProviderElevenLabs = Provider{name: nameElevenLabs}
	ProviderInworld    = Provider{name: nameInworld}
)

// ParseProvider validates a provider name. Empty input returns the zero Provider.
func ParseProvider(s string) (Provider, error) {
	switch s {
	case "":
		return Provider{}, nil
	case nameElevenLabs:
		return ProviderElevenLabs, nil
	case nameInworld:
		return ProviderInworld, nil
	}
	return Provider{}, fmt.Errorf("%q (use %q or %q): %w", s, nameElevenLabs, nameInworld, ErrUnknownProvider)
}

// String returns the provider name.
func (p Provider) String() string {
	return p.name
}

// IsZero reports whether no provider was chosen.
func (p Provider) IsZero() bool {
	return p.name == ""
}

// Or returns p, or def when p is zero.
func (p Provider) Or(def Provider) Provider {
	if p.IsZero() {
		return def
	}
	return p
}
