package playback

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/wav"

	"github.com/dgnsrekt/tts-cli/internal/tts"
)

// The audio device can only be opened once per process, so the oto context
// is shared by every Native player and fixed to the first sample rate used.
var (
	otoOnce sync.Once
	otoCtx  *oto.Context
	otoRate beep.SampleRate
	otoErr  error
)

const (
	nativeChannels   = 2
	nativeFrameBytes = nativeChannels * 2 // signed 16-bit little endian
	resampleQuality  = 4
)

// Native decodes MP3 and WAV in process and plays them on the default
// output device.
type Native struct{}

// Name implements Player.
func (*Native) Name() string { return "builtin" }

// Supports implements Player.
func (*Native) Supports(enc tts.Encoding) bool {
	return enc == tts.EncodingMP3 || enc == tts.EncodingWAV
}

// Available implements Player. Device errors surface from Play.
func (*Native) Available() bool { return true }

// Play implements Player.
func (*Native) Play(ctx context.Context, audio tts.Audio) error {
	streamer, format, err := decode(audio)
	if err != nil {
		return err
	}
	defer func() { _ = streamer.Close() }()

	c, rate, err := outputContext(format.SampleRate)
	if err != nil {
		return err
	}

	var s beep.Streamer = streamer
	if format.SampleRate != rate {
		s = beep.Resample(resampleQuality, format.SampleRate, rate, streamer)
	}

	// The reader must outlive the player; both are released together.
	pcm := newPCMReader(s)
	player := c.NewPlayer(pcm)
	defer func() { _ = player.Close() }()
	player.Play()

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			player.Pause()
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return pcm.Err()
}

func decode(audio tts.Audio) (beep.StreamSeekCloser, beep.Format, error) {
	switch audio.Encoding {
	case tts.EncodingWAV:
		return wav.Decode(bytes.NewReader(audio.Data))
	case tts.EncodingMP3:
		return mp3.Decode(io.NopCloser(bytes.NewReader(audio.Data)))
	default:
		return nil, beep.Format{}, fmt.Errorf("cannot decode %s audio", audio.Encoding)
	}
}

func outputContext(rate beep.SampleRate) (*oto.Context, beep.SampleRate, error) {
	otoOnce.Do(func() {
		var ready chan struct{}
		otoCtx, ready, otoErr = oto.NewContext(&oto.NewContextOptions{
			SampleRate:   int(rate),
			ChannelCount: nativeChannels,
			Format:       oto.FormatSignedInt16LE,
		})
		if otoErr != nil {
			otoErr = fmt.Errorf("failed to open audio device: %w", otoErr)
			return
		}
		<-ready
		otoRate = rate
	})
	return otoCtx, otoRate, otoErr
}

// pcmReader renders a beep stream as interleaved 16-bit stereo PCM.
type pcmReader struct {
	s   beep.Streamer
	buf [][2]float64
	err error
}

func newPCMReader(s beep.Streamer) *pcmReader {
	return &pcmReader{s: s}
}

func (r *pcmReader) Read(p []byte) (int, error) {
	frames := len(p) / nativeFrameBytes
	if frames == 0 {
		return 0, io.ErrShortBuffer
	}
	if cap(r.buf) < frames {
		r.buf = make([][2]float64, frames)
	}
	buf := r.buf[:frames]

	n, ok := r.s.Stream(buf)
	if !ok {
		if err := r.s.Err(); err != nil {
			r.err = err
			return 0, err
		}
		return 0, io.EOF
	}

	for i := 0; i < n; i++ {
		for c := 0; c < nativeChannels; c++ {
			off := i*nativeFrameBytes + c*2
			binary.LittleEndian.PutUint16(p[off:], uint16(toInt16(buf[i][c])))
		}
	}
	return n * nativeFrameBytes, nil
}

// Err returns the stream error that ended playback, if any.
func (r *pcmReader) Err() error {
	return r.err
}

func toInt16(v float64) int16 {
	switch {
	case v > 1:
		v = 1
	case v < -1:
		v = -1
	}
	return int16(v * 32767)
}
