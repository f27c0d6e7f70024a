package neosynth

import (
	"fmt"
	"time"
)

// Engine identifiers accepted by Config.Engine.
const (
	EngineEspeak = "espeak"
	EngineMock   = "mock"
)

// Prosody bounds. Values are percentages; 50 is the neutral midpoint.
const (
	ProsodyMin     = 0.0
	ProsodyMax     = 100.0
	ProsodyDefault = 50.0
)

// Config holds synthesizer settings.
type Config struct {
	Engine     string // Engine backend: "espeak" or "mock"
	Voice      string // Initial voice identifier, empty = engine default
	SampleRate int    // Output sample rate in Hz
	Channels   int    // 1 = mono, 2 = stereo

	// Initial prosody, 0-100
	Pitch  float64
	Rate   float64
	Volume float64

	QueueSize        int           // Maximum queued speech segments
	SynthesisTimeout time.Duration // Per-segment synthesis timeout

	EspeakPath string // Path to the espeak-ng binary
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	return Config{
		Engine:           EngineEspeak,
		SampleRate:       22050,
		Channels:         1,
		Pitch:            ProsodyDefault,
		Rate:             ProsodyDefault,
		Volume:           ProsodyDefault,
		QueueSize:        64,
		SynthesisTimeout: 30 * time.Second,
		EspeakPath:       "espeak-ng",
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch c.Engine {
	case EngineEspeak, EngineMock:
	default:
		return fmt.Errorf("unknown engine %q", c.Engine)
	}
	if c.SampleRate < 8000 || c.SampleRate > 48000 {
		return fmt.Errorf("sample rate %d out of range [8000, 48000]", c.SampleRate)
	}
	if c.Channels != 1 && c.Channels != 2 {
		return fmt.Errorf("channels must be 1 or 2, got %d", c.Channels)
	}
	for _, p := range []struct {
		name  string
		value float64
	}{
		{"pitch", c.Pitch},
		{"rate", c.Rate},
		{"volume", c.Volume},
	} {
		if err := validateProsody(p.name, p.value); err != nil {
			return err
		}
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("queue size must be positive, got %d", c.QueueSize)
	}
	if c.SynthesisTimeout <= 0 {
		return fmt.Errorf("synthesis timeout must be positive, got %v", c.SynthesisTimeout)
	}
	return nil
}

// validateProsody rejects prosody values outside [ProsodyMin, ProsodyMax].
func validateProsody(name string, value float64) error {
	if value != value || value < ProsodyMin || value > ProsodyMax {
		return &ParameterError{Name: name, Value: value, Min: ProsodyMin, Max: ProsodyMax}
	}
	return nil
}
