package synth

import (
	"github.com/dgnsrekt/tts-cli/internal/cache"
	"github.com/dgnsrekt/tts-cli/internal/tts"
)

// Policy is the per-invocation cache and routing policy.
type Policy struct {
	// Bypass skips the cache lookup. The result is still stored and
	// replaces any existing entry.
	Bypass bool

	// ForceClear removes the entry for the request before synthesizing.
	ForceClear bool

	// Fallback lists providers to try, in order, when the requested one
	// fails with a kind that another backend might not share. Empty means
	// no fallback.
	Fallback []tts.ProviderID
}

// Result is the outcome of a successful synthesis.
type Result struct {
	Audio tts.Audio

	// Key is the cache key of the request that produced Audio.
	Key cache.Key

	// Provider is the provider that produced Audio. It differs from the
	// requested one after a fallback.
	Provider tts.ProviderID

	CacheHit bool

	// CacheErr is set when the audio was synthesized but could not be
	// stored. The audio is still valid.
	CacheErr error

	// Attempts is the number of provider calls made; zero on a cache hit.
	Attempts int
}

// fallbackKinds are the failures after which another provider may succeed.
var fallbackKinds = map[tts.ErrorCode]bool{
	tts.ErrorCodeBackendUnavailable: true,
	tts.ErrorCodeNetwork:            true,
	tts.ErrorCodeQuota:              true,
	tts.ErrorCodeSynthesis:          true,
}

func canFallBack(err error) bool {
	return fallbackKinds[tts.CodeOf(err)]
}
