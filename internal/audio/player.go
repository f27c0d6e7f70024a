// Package audio provides PCM playback and file decoding for the
// synthesizer. It is self-contained: clips are plain 16-bit
// little-endian PCM byte slices.
package audio

import (
	"bytes"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// Config holds output device parameters.
type Config struct {
	SampleRate int // 8000-48000 Hz
	Channels   int // 1 = mono, 2 = stereo
	BufferSize int // Device buffer in bytes, 0 = oto default
}

// DefaultConfig returns the default output configuration: mono at
// 22050 Hz, the native rate of most TTS engines.
func DefaultConfig() Config {
	return Config{
		SampleRate: 22050,
		Channels:   1,
	}
}

// Validate checks the output configuration.
func (c Config) Validate() error {
	if c.SampleRate < 8000 || c.SampleRate > 48000 {
		return fmt.Errorf("sample rate %d out of range [8000, 48000]", c.SampleRate)
	}
	if c.Channels != 1 && c.Channels != 2 {
		return fmt.Errorf("channels must be 1 or 2, got %d", c.Channels)
	}
	return nil
}

// Player plays PCM clips through the system audio device using oto.
// One clip is active at a time; Play reports completion through the
// returned channel so the caller can sequence clips.
type Player struct {
	mu sync.Mutex

	context *oto.Context
	player  *oto.Player
	done    chan struct{}
	volume  float64
	paused  bool
	closed  bool

	sampleRate int
	channels   int
}

// NewPlayer opens the audio device. The oto context is created once and
// reused for every clip.
func NewPlayer(cfg Config) (*Player, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid audio config: %w", err)
	}

	op := &oto.NewContextOptions{
		SampleRate:   cfg.SampleRate,
		ChannelCount: cfg.Channels,
		Format:       oto.FormatSignedInt16LE,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("opening audio device: %w", err)
	}
	<-ready

	return &Player{
		context:    ctx,
		volume:     1.0,
		sampleRate: cfg.SampleRate,
		channels:   cfg.Channels,
	}, nil
}

// Play starts playback of a PCM clip and returns a channel that is
// closed when the clip finishes or is stopped. A clip must finish (or be
// stopped) before the next Play call.
func (p *Player) Play(pcm []byte) (<-chan struct{}, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, fmt.Errorf("player is closed")
	}
	if p.player != nil {
		return nil, fmt.Errorf("a clip is already playing")
	}

	done := make(chan struct{})
	player := p.context.NewPlayer(bytes.NewReader(pcm))
	player.SetVolume(p.volume)
	player.Play()

	p.player = player
	p.done = done
	p.paused = false

	go p.watch(player, done)
	return done, nil
}

// watch polls the device until the clip drains, then signals completion.
func (p *Player) watch(player *oto.Player, done chan struct{}) {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		p.mu.Lock()
		if p.player != player {
			// Stopped and replaced; Stop already signaled done.
			p.mu.Unlock()
			return
		}
		if !p.paused && !player.IsPlaying() && player.BufferedSize() == 0 {
			p.player = nil
			p.done = nil
			p.mu.Unlock()
			_ = player.Close()
			close(done)
			return
		}
		p.mu.Unlock()
	}
}

// Pause suspends the current clip.
func (p *Player) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.player == nil {
		return fmt.Errorf("nothing is playing")
	}
	if p.paused {
		return fmt.Errorf("already paused")
	}
	p.player.Pause()
	p.paused = true
	return nil
}

// Resume continues a paused clip.
func (p *Player) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.player == nil || !p.paused {
		return fmt.Errorf("not paused")
	}
	p.player.Play()
	p.paused = false
	return nil
}

// Stop abandons the current clip, if any, and signals its completion
// channel.
func (p *Player) Stop() error {
	p.mu.Lock()
	player, done := p.player, p.done
	p.player = nil
	p.done = nil
	p.paused = false
	p.mu.Unlock()

	if player != nil {
		_ = player.Close()
		close(done)
	}
	return nil
}

// SetVolume scales playback volume. The range is 0.0 to 1.0.
func (p *Player) SetVolume(v float64) error {
	if v < 0 || v > 1 || math.IsNaN(v) {
		return fmt.Errorf("volume %.2f out of range [0, 1]", v)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = v
	if p.player != nil {
		p.player.SetVolume(v)
	}
	return nil
}

// SampleRate returns the device sample rate.
func (p *Player) SampleRate() int { return p.sampleRate }

// Channels returns the device channel count.
func (p *Player) Channels() int { return p.channels }

// Close stops playback and marks the player unusable. The oto context
// itself has no close operation; it lives for the process.
func (p *Player) Close() error {
	if err := p.Stop(); err != nil {
		return err
	}
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}
