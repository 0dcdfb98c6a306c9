// Package playback plays synthesized audio and writes it to files.
package playback
