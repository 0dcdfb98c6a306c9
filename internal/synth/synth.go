package synth

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/muesli/reflow/truncate"

	"github.com/dgnsrekt/tts-cli/internal/cache"
	"github.com/dgnsrekt/tts-cli/internal/provider"
	"github.com/dgnsrekt/tts-cli/internal/tts"
)

// Config holds the collaborators of a Synthesizer.
type Config struct {
	// Store is the audio cache. Nil disables caching.
	Store *cache.Store

	// Registry resolves provider ids to implementations.
	Registry *provider.Registry

	// Providers is the availability snapshot taken at startup. Nil probes
	// the registry once in New.
	Providers provider.Descriptors

	// Retry applies to every provider call.
	Retry RetryPolicy
}

// Synthesizer turns requests into audio, consulting the cache first. It is
// safe for concurrent use.
type Synthesizer struct {
	store     *cache.Store
	registry  *provider.Registry
	providers provider.Descriptors
	retry     RetryPolicy
}

// New creates a Synthesizer.
func New(cfg Config) *Synthesizer {
	if cfg.Registry == nil {
		cfg.Registry = provider.NewRegistry()
	}
	if cfg.Providers == nil {
		cfg.Providers = provider.Probe(context.Background(), cfg.Registry, nil)
	}
	return &Synthesizer{
		store:     cfg.Store,
		registry:  cfg.Registry,
		providers: cfg.Providers,
		retry:     cfg.Retry,
	}
}

// CacheEnabled reports whether a store is attached.
func (s *Synthesizer) CacheEnabled() bool {
	return s.store != nil
}

// Synthesize returns audio for req, from the cache when possible.
//
// On a miss the request goes to its provider; successful audio is stored
// before returning, failures are never stored. If storing fails the audio is
// still returned with Result.CacheErr set. Provider errors keep their kind.
func (s *Synthesizer) Synthesize(ctx context.Context, req tts.Request, policy Policy) (Result, error) {
	if req.IsZero() {
		return Result{}, tts.InvalidRequest("empty request", nil)
	}

	res, err := s.synthesizeOne(ctx, req, policy)
	if err == nil || len(policy.Fallback) == 0 || !canFallBack(err) {
		return res, err
	}

	primaryRes, primaryErr := res, err
	for _, id := range policy.Fallback {
		if id == req.Provider() {
			continue
		}
		alt, altErr := req.WithProvider(id)
		if altErr != nil {
			return primaryRes, altErr
		}

		log.Warn("Falling back to another provider", "from", req.Provider(), "to", id, "error", primaryErr)
		res, err = s.synthesizeOne(ctx, alt, policy)
		if err == nil {
			return res, nil
		}
		log.Debug("Fallback provider failed", "provider", id, "error", err)
		if ctx.Err() != nil {
			break
		}
	}
	return primaryRes, primaryErr
}

func (s *Synthesizer) synthesizeOne(ctx context.Context, req tts.Request, policy Policy) (Result, error) {
	key := cache.DeriveKey(req)
	res := Result{Key: key, Provider: req.Provider()}
	logger := log.With("provider", req.Provider(), "key", key.Short())

	if s.store != nil {
		switch {
		case policy.ForceClear:
			if _, err := s.store.Remove(key); err != nil {
				return res, err
			}
			logger.Debug("Cleared cache entry before synthesis")
		case !policy.Bypass:
			if data, ok := s.store.Get(key); ok {
				logger.Debug("Cache hit", "bytes", len(data))
				res.Audio = tts.NewAudio(data, "")
				res.CacheHit = true
				return res, nil
			}
		}
	}

	p, err := s.resolve(req.Provider())
	if err != nil {
		return res, err
	}

	logger.Debug("Synthesizing", "text", truncate.StringWithTail(req.Text(), 40, "…"))
	audio, attempts, err := s.retry.do(ctx, func(ctx context.Context) (tts.Audio, error) {
		return p.Synthesize(ctx, req)
	})
	res.Attempts = attempts
	if err != nil {
		return res, err
	}
	if audio.Len() == 0 {
		return res, tts.SynthesisFailure(fmt.Sprintf("%s returned no audio", req.Provider()), nil)
	}
	res.Audio = audio

	if s.store != nil {
		if err := s.store.Put(key, audio.Data); err != nil {
			logger.Warn("Could not cache synthesized audio", "error", err)
			res.CacheErr = err
		}
	}
	return res, nil
}

// resolve returns the provider for id if it is registered, enabled and, for
// local providers, available. An unavailable remote provider is still
// returned so it can report its own failure, such as missing credentials.
func (s *Synthesizer) resolve(id tts.ProviderID) (provider.Provider, error) {
	p, ok := s.registry.Get(id)
	if !ok {
		return nil, tts.BackendUnavailable(fmt.Sprintf("provider %s is not registered", id), nil)
	}

	d, ok := s.providers.Lookup(id)
	switch {
	case !ok:
		return nil, tts.BackendUnavailable(fmt.Sprintf("provider %s was not probed", id), nil)
	case !d.Enabled:
		return nil, tts.BackendUnavailable(fmt.Sprintf("provider %s is disabled in the configuration", id), nil)
	case !d.Available && !d.Remote:
		return nil, tts.BackendUnavailable(fmt.Sprintf("provider %s is not available on this system", id), nil)
	}
	return p, nil
}

// ClearRequest removes the cached audio for req. It reports whether an entry
// existed.
func (s *Synthesizer) ClearRequest(req tts.Request) (bool, error) {
	if s.store == nil {
		return false, nil
	}
	return s.store.Remove(cache.DeriveKey(req))
}

// ClearAll removes every cached entry and returns how many were removed.
func (s *Synthesizer) ClearAll() (int, error) {
	if s.store == nil {
		return 0, nil
	}
	return s.store.ClearAll()
}

// Stats summarizes the cache.
func (s *Synthesizer) Stats() (cache.Stats, error) {
	if s.store == nil {
		return cache.Stats{}, nil
	}
	return s.store.Stats()
}

// Providers returns the availability snapshot.
func (s *Synthesizer) Providers() provider.Descriptors {
	return append(provider.Descriptors(nil), s.providers...)
}
