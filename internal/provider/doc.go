// Package provider implements the text-to-speech backends behind a single
// Provider interface: Google Cloud Text-to-Speech over gRPC, and the local
// espeak, Festival and macOS say programs run as subprocesses.
//
// Every failure is a *tts.TTSError whose code tells the caller what kind of
// failure occurred; callers never need to know which backend produced it.
package provider
