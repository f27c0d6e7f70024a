package neosynth

import (
	"errors"
	"fmt"
)

// Sentinel errors reported by the synthesizer. All are recoverable at
// the call site.
var (
	// ErrInvalidParameter is returned when a prosody setter receives a
	// value outside the accepted range.
	ErrInvalidParameter = errors.New("parameter value out of range")

	// ErrInvalidMarkup is returned when SSML input cannot be parsed.
	ErrInvalidMarkup = errors.New("malformed speech markup")

	// ErrEngineBusy is returned when the speech queue is full.
	ErrEngineBusy = errors.New("speech queue is full")

	// ErrVoiceNotFound is returned when a voice identifier does not
	// match any installed voice.
	ErrVoiceNotFound = errors.New("requested voice not found")

	// ErrEngineNotAvailable is returned when the engine cannot be used.
	ErrEngineNotAvailable = errors.New("speech engine is not available")

	// ErrSynthesizerClosed is returned by operations on a closed
	// synthesizer.
	ErrSynthesizerClosed = errors.New("synthesizer has been closed")

	// ErrNotSpeaking is returned by Pause when nothing is playing.
	ErrNotSpeaking = errors.New("no speech in progress")

	// ErrNotPaused is returned by Resume when playback is not paused.
	ErrNotPaused = errors.New("speech is not paused")

	// ErrEmptyUtterance is returned when an utterance has no segments.
	ErrEmptyUtterance = errors.New("utterance has no content")
)

// ParameterError reports a rejected prosody value. It matches
// ErrInvalidParameter under errors.Is.
type ParameterError struct {
	Name  string  // Parameter name: "pitch", "rate" or "volume"
	Value float64 // The rejected value
	Min   float64
	Max   float64
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("%s %.1f out of range [%.0f, %.0f]", e.Name, e.Value, e.Min, e.Max)
}

func (e *ParameterError) Unwrap() error { return ErrInvalidParameter }

// MarkupError reports rejected SSML input and names the offending
// construct. It matches ErrInvalidMarkup under errors.Is.
type MarkupError struct {
	Construct string
	Err       error
}

func (e *MarkupError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("markup error in %s: %v", e.Construct, e.Err)
	}
	return fmt.Sprintf("markup error in %s", e.Construct)
}

func (e *MarkupError) Unwrap() error { return ErrInvalidMarkup }
