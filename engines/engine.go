// Package engines defines the contract implemented by speech synthesis
// engines and the audio types they produce.
package engines

import (
	"context"
	"time"
)

// Voice describes an installed synthesizer voice.
type Voice struct {
	ID       string // Voice identifier, stable across sessions
	Name     string // Human-readable name
	Language string // Language code (e.g., "en-US")
	Gender   string // Voice gender, empty if unknown
}

// Capabilities describes what an engine can do.
type Capabilities struct {
	SupportsSSML    bool // Engine interprets speech markup natively
	MaxTextLength   int  // Maximum text length per request, 0 = unlimited
	RequiresNetwork bool // Needs internet connection
}

// Config holds engine initialization parameters.
type Config struct {
	Voice      string // Initial voice identifier, empty = engine default
	SampleRate int    // Output sample rate in Hz
}

// Request contains the text and prosody for a single synthesis call.
// Prosody values are percentages in [0, 100] with 50 meaning the voice's
// neutral setting.
type Request struct {
	Text   string
	Pitch  float64
	Rate   float64
	Volume float64
	Voice  Voice
}

// Audio is a synthesized clip: 16-bit little-endian PCM.
type Audio struct {
	Data       []byte
	SampleRate int
	Channels   int
	Duration   time.Duration
}

// Engine is implemented by speech synthesis backends.
type Engine interface {
	// Initialize prepares the engine for use.
	Initialize(cfg Config) error

	// Synthesize converts a single text run to audio.
	Synthesize(ctx context.Context, req Request) (*Audio, error)

	// Voices returns the list of installed voices.
	Voices() []Voice

	// SetVoice selects the active voice for subsequent requests.
	SetVoice(v Voice) error

	// Capabilities reports what the engine supports.
	Capabilities() Capabilities

	// Available reports whether the engine is ready for use.
	Available() bool

	// Shutdown stops the engine and releases its resources.
	Shutdown() error
}

// PCMDuration returns the playback duration of 16-bit PCM data.
func PCMDuration(n, sampleRate, channels int) time.Duration {
	if sampleRate <= 0 || channels <= 0 {
		return 0
	}
	samples := n / (2 * channels)
	return time.Duration(float64(samples) / float64(sampleRate) * float64(time.Second))
}
