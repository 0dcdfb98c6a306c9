package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/tts-cli/internal/cache"
	"github.com/dgnsrekt/tts-cli/internal/config"
	"github.com/dgnsrekt/tts-cli/internal/provider"
	"github.com/dgnsrekt/tts-cli/internal/synth"
)

// app wires the configured cache, providers and synthesizer together for
// one command invocation.
type app struct {
	store    *cache.Store
	registry *provider.Registry
	synth    *synth.Synthesizer
}

func newApp(ctx context.Context, c config.Config) (*app, error) {
	var store *cache.Store
	if c.Cache.Enabled {
		s, err := openStore(c)
		if err != nil {
			return nil, err
		}
		store = s
	} else {
		log.Debug("Cache disabled by configuration")
	}

	registry := provider.NewDefaultRegistry(c.ProviderSettings(), nil)
	descriptors := provider.Probe(ctx, registry, c.Enabled)

	return &app{
		store:    store,
		registry: registry,
		synth: synth.New(synth.Config{
			Store:     store,
			Registry:  registry,
			Providers: descriptors,
			Retry:     synth.DefaultRetryPolicy(),
		}),
	}, nil
}

func openStore(c config.Config) (*cache.Store, error) {
	sc := cache.DefaultConfig(c.CacheDir())
	sc.CompressionLevel = c.Cache.CompressionLevel
	store, err := cache.NewStore(sc)
	if err != nil {
		return nil, fmt.Errorf("unable to open cache: %w", err)
	}
	return store, nil
}

// Close releases provider clients and the cache.
func (a *app) Close() error {
	errs := []error{closeProviders(a.registry)}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}

func closeProviders(r *provider.Registry) error {
	var errs []error
	for _, id := range r.IDs() {
		p, _ := r.Get(id)
		if c, ok := p.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}
