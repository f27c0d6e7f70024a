// Package mock provides a deterministic speech engine for testing.
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/blindpandas/neosynth-go/engines"
)

// Engine implements engines.Engine without producing real speech. It
// returns silence sized to an estimated speaking duration and records
// every request it receives.
type Engine struct {
	mu sync.Mutex

	config      engines.Config
	activeVoice engines.Voice
	delay       time.Duration

	// Failure injection
	failErr error

	// State
	available   bool
	initialized bool
	requests    []engines.Request
}

// New creates a mock engine.
func New() *Engine {
	return &Engine{
		available: true,
		activeVoice: engines.Voice{
			ID:       "mock-voice-1",
			Name:     "Mock Voice 1",
			Language: "en-US",
			Gender:   "neutral",
		},
	}
}

// Initialize prepares the mock engine.
func (e *Engine) Initialize(cfg engines.Config) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 22050
	}
	e.config = cfg
	e.initialized = true

	if cfg.Voice != "" {
		for _, v := range e.voices() {
			if v.ID == cfg.Voice {
				e.activeVoice = v
				return nil
			}
		}
		return fmt.Errorf("voice not found: %s", cfg.Voice)
	}
	return nil
}

// Synthesize returns silence sized to the estimated speaking duration.
func (e *Engine) Synthesize(ctx context.Context, req engines.Request) (*engines.Audio, error) {
	e.mu.Lock()
	e.requests = append(e.requests, req)
	failErr := e.failErr
	delay := e.delay
	sampleRate := e.config.SampleRate
	e.mu.Unlock()

	if sampleRate <= 0 {
		sampleRate = 22050
	}

	if failErr != nil {
		return nil, failErr
	}

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	duration := estimateDuration(req.Text, req.Rate)
	samples := int(duration.Seconds() * float64(sampleRate))

	return &engines.Audio{
		Data:       make([]byte, samples*2),
		SampleRate: sampleRate,
		Channels:   1,
		Duration:   duration,
	}, nil
}

// Voices returns the fixed mock voice set.
func (e *Engine) Voices() []engines.Voice {
	return e.voices()
}

func (e *Engine) voices() []engines.Voice {
	return []engines.Voice{
		{ID: "mock-voice-1", Name: "Mock Voice 1", Language: "en-US", Gender: "neutral"},
		{ID: "mock-voice-2", Name: "Mock Voice 2", Language: "en-GB", Gender: "female"},
		{ID: "mock-voice-3", Name: "Mock Voice 3", Language: "en-US", Gender: "male"},
	}
}

// SetVoice selects the active voice.
func (e *Engine) SetVoice(v engines.Voice) error {
	for _, known := range e.voices() {
		if known.ID == v.ID {
			e.mu.Lock()
			e.activeVoice = known
			e.mu.Unlock()
			return nil
		}
	}
	return fmt.Errorf("voice not found: %s", v.ID)
}

// ActiveVoice returns the currently selected voice.
func (e *Engine) ActiveVoice() engines.Voice {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.activeVoice
}

// Capabilities reports the mock engine's capabilities.
func (e *Engine) Capabilities() engines.Capabilities {
	return engines.Capabilities{
		SupportsSSML:    false,
		MaxTextLength:   10000,
		RequiresNetwork: false,
	}
}

// Available reports the configured availability.
func (e *Engine) Available() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.available
}

// Shutdown marks the engine unavailable.
func (e *Engine) Shutdown() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.available = false
	return nil
}

// Test control methods

// SetDelay sets a simulated processing delay per request.
func (e *Engine) SetDelay(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.delay = d
}

// SetFailure makes every subsequent request fail with err.
func (e *Engine) SetFailure(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failErr = err
}

// ClearFailure resets the engine to normal operation.
func (e *Engine) ClearFailure() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failErr = nil
}

// SetAvailable overrides the availability report.
func (e *Engine) SetAvailable(ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.available = ok
}

// Requests returns a copy of every request received so far.
func (e *Engine) Requests() []engines.Request {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]engines.Request, len(e.requests))
	copy(out, e.requests)
	return out
}

// CallCount returns the number of Synthesize calls.
func (e *Engine) CallCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.requests)
}

// estimateDuration estimates speaking duration for text, scaled by the
// rate percentage (50 = neutral, ~150 words per minute).
func estimateDuration(text string, rate float64) time.Duration {
	words := len(text) / 5 // Rough estimate: 5 chars per word
	if words < 1 {
		words = 1
	}
	wpm := 150.0
	if rate > 0 {
		wpm = 150.0 * (rate / 50.0)
	}
	seconds := float64(words) * 60.0 / wpm
	return time.Duration(seconds * float64(time.Second))
}
