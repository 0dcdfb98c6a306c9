// Package synth ties the cache and the providers together. A Synthesizer
// derives the cache key of a request, serves it from the cache when it can,
// and otherwise routes it to its provider and stores the result.
package synth
