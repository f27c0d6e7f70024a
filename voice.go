package neosynth

import (
	"fmt"

	"github.com/blindpandas/neosynth-go/engines"
)

// Voice describes an installed synthesizer voice.
type Voice = engines.Voice

// Voices returns the engine's installed voices.
func (s *Synthesizer) Voices() []Voice {
	return s.engine.Voices()
}

// Voice returns the active voice.
func (s *Synthesizer) Voice() Voice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.voice
}

// SetVoice selects the active voice for subsequent speech.
func (s *Synthesizer) SetVoice(v Voice) error {
	if err := s.engine.SetVoice(v); err != nil {
		return fmt.Errorf("%w: %s", ErrVoiceNotFound, v.ID)
	}
	s.mu.Lock()
	s.voice = v
	s.mu.Unlock()
	return nil
}

// SetVoiceByID selects a voice using an identifier previously obtained
// from Voices.
func (s *Synthesizer) SetVoiceByID(id string) error {
	for _, v := range s.engine.Voices() {
		if v.ID == id {
			return s.SetVoice(v)
		}
	}
	return fmt.Errorf("%w: %s", ErrVoiceNotFound, id)
}
