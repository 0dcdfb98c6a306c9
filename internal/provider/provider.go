package provider

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/tts-cli/internal/tts"
)

// Provider is a text-to-speech backend. Implementations must be safe for
// concurrent use; each Synthesize call is independent.
type Provider interface {
	// ID returns the identifier the provider is registered under.
	ID() tts.ProviderID

	// Name returns a human-readable name.
	Name() string

	// Synthesize converts the request into audio. Failures are *tts.TTSError
	// values of one of the provider kinds.
	Synthesize(ctx context.Context, req tts.Request) (tts.Audio, error)

	// IsAvailable reports whether the backend can be used on this host.
	IsAvailable(ctx context.Context) bool
}

var descriptions = map[tts.ProviderID]string{
	tts.ProviderGoogleCloud: "Google Cloud Text-to-Speech API",
	tts.ProviderESpeak:      "eSpeak TTS engine",
	tts.ProviderFestival:    "Festival TTS engine",
	tts.ProviderMacSay:      "macOS built-in TTS",
}

// Describe returns the one-line description of a provider id.
func Describe(id tts.ProviderID) string {
	if d, ok := descriptions[id]; ok {
		return d
	}
	return string(id)
}

// Remote is implemented by providers that call a network service instead of
// a local executable.
type Remote interface {
	Remote() bool
}

// IsRemote reports whether p is a network-backed provider.
func IsRemote(p Provider) bool {
	r, ok := p.(Remote)
	return ok && r.Remote()
}

// Descriptor is the availability snapshot of one provider.
type Descriptor struct {
	ID          tts.ProviderID
	Name        string
	Description string
	Available   bool
	Enabled     bool

	// Remote providers report missing credentials as unavailable; their
	// Synthesize explains the failure itself.
	Remote bool
}

// Usable reports whether requests may be routed to the provider.
func (d Descriptor) Usable() bool {
	return d.Available && d.Enabled
}

// Descriptors is a set of descriptors in registration order.
type Descriptors []Descriptor

// Lookup returns the descriptor for id.
func (ds Descriptors) Lookup(id tts.ProviderID) (Descriptor, bool) {
	for _, d := range ds {
		if d.ID == id {
			return d, true
		}
	}
	return Descriptor{}, false
}

// Registry maps provider ids to implementations. It is populated at startup
// and read-only afterwards.
type Registry struct {
	mu        sync.RWMutex
	providers map[tts.ProviderID]Provider
	order     []tts.ProviderID
}

// NewRegistry creates a registry holding the given providers.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[tts.ProviderID]Provider)}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register adds p, replacing any provider with the same id.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[p.ID()]; !exists {
		r.order = append(r.order, p.ID())
	}
	r.providers[p.ID()] = p
}

// Get returns the provider registered under id.
func (r *Registry) Get(id tts.ProviderID) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[id]
	return p, ok
}

// IDs returns the registered ids in registration order.
func (r *Registry) IDs() []tts.ProviderID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]tts.ProviderID(nil), r.order...)
}

// Probe checks every registered provider once and returns their descriptors
// in registration order. enabled may be nil, in which case every provider is
// enabled. Disabled providers are not probed.
func Probe(ctx context.Context, r *Registry, enabled func(tts.ProviderID) bool) Descriptors {
	ids := r.IDs()
	out := make(Descriptors, len(ids))

	var wg sync.WaitGroup
	for i, id := range ids {
		p, _ := r.Get(id)
		d := Descriptor{
			ID:          id,
			Name:        p.Name(),
			Description: Describe(id),
			Enabled:     enabled == nil || enabled(id),
			Remote:      IsRemote(p),
		}
		out[i] = d
		if !d.Enabled {
			continue
		}

		wg.Add(1)
		go func(i int, p Provider) {
			defer wg.Done()
			out[i].Available = p.IsAvailable(ctx)
		}(i, p)
	}
	wg.Wait()

	for _, d := range out {
		log.Debug("Probed provider", "provider", d.ID, "available", d.Available, "enabled", d.Enabled)
	}
	return out
}
