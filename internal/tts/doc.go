// Package tts defines the synthesis request model shared by the cache,
// the providers and the orchestrator: provider ids, normalized requests,
// tagged audio and the error taxonomy.
package tts
