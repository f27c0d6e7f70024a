package audio

import (
	"fmt"
	"sync"
)

// MockPlayer is a clock-free player for tests. By default every clip
// completes immediately; with manual mode the test decides when each
// clip finishes, which makes queue behavior observable.
type MockPlayer struct {
	mu sync.Mutex

	manual bool
	active chan struct{}
	paused bool
	closed bool
	volume float64

	// Recorded activity
	clips       [][]byte
	pauseCount  int
	resumeCount int
	stopCount   int

	playErr error
}

// NewMockPlayer creates a mock player in auto-complete mode.
func NewMockPlayer() *MockPlayer {
	return &MockPlayer{volume: 1.0}
}

// SetManual switches the player to manual completion mode.
func (p *MockPlayer) SetManual(manual bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.manual = manual
}

// SetPlayError makes subsequent Play calls fail with err.
func (p *MockPlayer) SetPlayError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playErr = err
}

// Play records the clip and returns its completion channel.
func (p *MockPlayer) Play(pcm []byte) (<-chan struct{}, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, fmt.Errorf("player is closed")
	}
	if p.playErr != nil {
		return nil, p.playErr
	}
	if p.active != nil {
		return nil, fmt.Errorf("a clip is already playing")
	}

	clip := make([]byte, len(pcm))
	copy(clip, pcm)
	p.clips = append(p.clips, clip)

	done := make(chan struct{})
	if p.manual {
		p.active = done
	} else {
		close(done)
	}
	return done, nil
}

// Complete finishes the active clip in manual mode.
func (p *MockPlayer) Complete() {
	p.mu.Lock()
	done := p.active
	p.active = nil
	p.mu.Unlock()
	if done != nil {
		close(done)
	}
}

// Pause records a pause.
func (p *MockPlayer) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.paused {
		return fmt.Errorf("already paused")
	}
	p.paused = true
	p.pauseCount++
	return nil
}

// Resume records a resume.
func (p *MockPlayer) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.paused {
		return fmt.Errorf("not paused")
	}
	p.paused = false
	p.resumeCount++
	return nil
}

// Stop abandons the active clip and signals its completion channel.
func (p *MockPlayer) Stop() error {
	p.mu.Lock()
	done := p.active
	p.active = nil
	p.paused = false
	p.stopCount++
	p.mu.Unlock()
	if done != nil {
		close(done)
	}
	return nil
}

// SetVolume records the volume.
func (p *MockPlayer) SetVolume(v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("volume %.2f out of range [0, 1]", v)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = v
	return nil
}

// Close marks the player unusable.
func (p *MockPlayer) Close() error {
	if err := p.Stop(); err != nil {
		return err
	}
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

// Inspection helpers

// Clips returns copies of every clip played so far.
func (p *MockPlayer) Clips() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]byte, len(p.clips))
	copy(out, p.clips)
	return out
}

// PlayCount returns the number of clips played.
func (p *MockPlayer) PlayCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.clips)
}

// PauseCount returns the number of Pause calls that succeeded.
func (p *MockPlayer) PauseCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pauseCount
}

// ResumeCount returns the number of Resume calls that succeeded.
func (p *MockPlayer) ResumeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resumeCount
}

// StopCount returns the number of Stop calls.
func (p *MockPlayer) StopCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopCount
}

// Volume returns the last volume set.
func (p *MockPlayer) Volume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}
