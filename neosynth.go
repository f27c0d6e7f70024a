// Package neosynth is a speech synthesis client library. A Synthesizer
// owns prosody settings and a speech queue, converts plain text, SSML
// markup or structured utterances to audio through a pluggable engine,
// and reports state transitions and bookmark arrivals to a
// caller-supplied EventSink while playback proceeds asynchronously.
package neosynth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/blindpandas/neosynth-go/engines"
	"github.com/blindpandas/neosynth-go/engines/espeak"
	"github.com/blindpandas/neosynth-go/engines/mock"
	"github.com/blindpandas/neosynth-go/internal/audio"
	"github.com/blindpandas/neosynth-go/ssml"
)

// AudioPlayer plays PCM clips. Play returns a channel closed when the
// clip finishes or is stopped; the synthesizer uses it to sequence the
// speech queue.
type AudioPlayer interface {
	Play(pcm []byte) (<-chan struct{}, error)
	Pause() error
	Resume() error
	Stop() error
	SetVolume(v float64) error
	Close() error
}

// elemKind identifies the type of a queued speech element.
type elemKind int

const (
	elemText elemKind = iota
	elemBookmark
	elemBreak
	elemAudioFile
)

// element is one entry in the speech queue. Utterances and SSML
// documents are expanded into elements before being enqueued, so the
// playback goroutine only ever deals with this flat form.
type element struct {
	kind     elemKind
	text     string
	bookmark string
	pause    time.Duration
	path     string
	prosody  *ssml.Prosody // per-segment override from <prosody>
}

// Synthesizer converts text to speech. All methods are safe for
// concurrent use.
//
// Concurrency policy: speak calls append to a bounded FIFO queue drained
// by a single playback goroutine, one element in flight at a time. A
// speak call issued while speech is active is queued behind it; when the
// queue is full the call fails with ErrEngineBusy. Stop flushes the
// queue.
type Synthesizer struct {
	cfg    Config
	engine engines.Engine
	player AudioPlayer
	events *notifier

	mu      sync.Mutex
	queue   []element
	pitch   float64
	rate    float64
	volume  float64
	voice   engines.Voice
	machine *stateMachine
	closed  bool

	// generation invalidates in-flight work on Stop
	gen atomic.Int64

	wake      chan struct{}
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New creates a Synthesizer. The sink is required: the synthesizer
// retains it for its whole lifetime and delivers every notification
// through it.
func New(sink EventSink, opts ...Option) (*Synthesizer, error) {
	if sink == nil {
		return nil, errors.New("neosynth: event sink is required")
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("neosynth: %w", err)
	}
	cfg := o.cfg

	engine := o.engine
	if engine == nil {
		switch cfg.Engine {
		case EngineMock:
			engine = mock.New()
		default:
			espeakCfg := espeak.DefaultConfig()
			espeakCfg.BinaryPath = cfg.EspeakPath
			espeakCfg.Timeout = cfg.SynthesisTimeout
			engine = espeak.New(espeakCfg)
		}
	}
	if err := engine.Initialize(engines.Config{Voice: cfg.Voice, SampleRate: cfg.SampleRate}); err != nil {
		return nil, fmt.Errorf("neosynth: initializing engine: %w", err)
	}
	if !engine.Available() {
		return nil, fmt.Errorf("neosynth: %w", ErrEngineNotAvailable)
	}

	player := o.player
	if player == nil {
		p, err := audio.NewPlayer(audio.Config{SampleRate: cfg.SampleRate, Channels: cfg.Channels})
		if err != nil {
			return nil, fmt.Errorf("neosynth: %w", err)
		}
		player = p
	}
	if err := player.SetVolume(cfg.Volume / ProsodyMax); err != nil {
		return nil, fmt.Errorf("neosynth: %w", err)
	}

	s := &Synthesizer{
		cfg:     cfg,
		engine:  engine,
		player:  player,
		events:  newNotifier(sink, o.logger),
		pitch:   cfg.Pitch,
		rate:    cfg.Rate,
		volume:  cfg.Volume,
		machine: newStateMachine(),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	s.voice = s.resolveVoice(cfg.Voice)

	s.wg.Add(1)
	go s.run()

	s.events.logf(log.DebugLevel, "synthesizer created", "engine", cfg.Engine, "sampleRate", cfg.SampleRate)
	return s, nil
}

// resolveVoice finds the voice the engine is actually using.
func (s *Synthesizer) resolveVoice(id string) engines.Voice {
	voices := s.engine.Voices()
	if id != "" {
		for _, v := range voices {
			if v.ID == id {
				return v
			}
		}
	}
	if len(voices) > 0 {
		return voices[0]
	}
	return engines.Voice{}
}

// SpeakText queues plain text for speech. No markup interpretation
// happens.
func (s *Synthesizer) SpeakText(text string) error {
	return s.enqueue([]element{{kind: elemText, text: text}})
}

// SpeakSSML parses a speech markup document and queues it. Malformed
// markup fails with a MarkupError before anything is queued. Marks in
// the document surface through OnBookmarkReached exactly like utterance
// bookmarks.
func (s *Synthesizer) SpeakSSML(markup string) error {
	els, err := expandSSML(markup)
	if err != nil {
		return err
	}
	return s.enqueue(els)
}

// Speak queues a pre-built utterance. Segments play in order and every
// bookmark is reported at its position. The utterance is snapshotted;
// mutating it afterwards does not affect this call.
func (s *Synthesizer) Speak(u *SpeechUtterance) error {
	if u == nil {
		return ErrEmptyUtterance
	}
	segs := u.snapshot()
	if len(segs) == 0 {
		return ErrEmptyUtterance
	}

	var els []element
	for _, seg := range segs {
		switch seg.kind {
		case segmentText:
			els = append(els, element{kind: elemText, text: seg.value})
		case segmentSSML:
			expanded, err := expandSSML(seg.value)
			if err != nil {
				return err
			}
			els = append(els, expanded...)
		case segmentBookmark:
			els = append(els, element{kind: elemBookmark, bookmark: seg.value})
		case segmentAudio:
			els = append(els, element{kind: elemAudioFile, path: seg.value})
		}
	}
	return s.enqueue(els)
}

// expandSSML parses markup into queue elements.
func expandSSML(markup string) ([]element, error) {
	segs, err := ssml.Parse(markup)
	if err != nil {
		var perr *ssml.ParseError
		if errors.As(err, &perr) {
			return nil, &MarkupError{Construct: perr.Construct, Err: perr.Err}
		}
		return nil, &MarkupError{Construct: "document", Err: err}
	}

	els := make([]element, 0, len(segs))
	for _, seg := range segs {
		switch seg.Kind {
		case ssml.KindText:
			els = append(els, element{kind: elemText, text: seg.Text, prosody: seg.Prosody})
		case ssml.KindMark:
			els = append(els, element{kind: elemBookmark, bookmark: seg.Mark})
		case ssml.KindBreak:
			els = append(els, element{kind: elemBreak, pause: seg.Pause})
		}
	}
	return els, nil
}

// enqueue appends elements to the speech queue atomically: either all
// of them are accepted or none.
func (s *Synthesizer) enqueue(els []element) error {
	if len(els) == 0 {
		return ErrEmptyUtterance
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSynthesizerClosed
	}
	if len(s.queue)+len(els) > s.cfg.QueueSize {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d element(s) would exceed capacity %d", ErrEngineBusy, len(els), s.cfg.QueueSize)
	}
	s.queue = append(s.queue, els...)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return nil
}

// run is the playback goroutine. It drains the queue one element at a
// time and owns the Busy/Ready transitions.
func (s *Synthesizer) run() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
			s.drainQueue()
		}
	}
}

// drainQueue processes queued elements until the queue is empty,
// transitioning to Busy on the first element and back to Ready when
// done.
func (s *Synthesizer) drainQueue() {
	entered := false
	for {
		s.mu.Lock()
		if s.closed || len(s.queue) == 0 {
			notify := entered && s.machine.transition(StateReady)
			s.mu.Unlock()
			if notify {
				s.events.stateChanged(StateReady)
			}
			return
		}
		el := s.queue[0]
		s.queue = s.queue[1:]

		notifyBusy := false
		if !entered {
			entered = true
			if s.machine.state() != StateBusy {
				notifyBusy = s.machine.transition(StateBusy)
			}
		}
		s.mu.Unlock()

		if notifyBusy {
			s.events.stateChanged(StateBusy)
		}
		s.process(el, s.gen.Load())
	}
}

// process performs one queue element.
func (s *Synthesizer) process(el element, gen int64) {
	switch el.kind {
	case elemText:
		s.processText(el, gen)

	case elemBookmark:
		s.events.bookmarkReached(el.bookmark)

	case elemBreak:
		frames := int(el.pause.Seconds() * float64(s.cfg.SampleRate))
		s.playClip(audio.Silence(frames, s.cfg.Channels), gen)

	case elemAudioFile:
		pcm, err := audio.DecodeFile(el.path, s.cfg.SampleRate, s.cfg.Channels)
		if err != nil {
			s.events.logf(log.ErrorLevel, "audio file skipped", "path", el.path, "error", err)
			return
		}
		s.playClip(pcm, gen)
	}
}

// processText synthesizes one text run and plays it.
func (s *Synthesizer) processText(el element, gen int64) {
	s.mu.Lock()
	req := engines.Request{
		Text:   el.text,
		Pitch:  s.pitch,
		Rate:   s.rate,
		Volume: ProsodyDefault, // loudness is applied at the player
		Voice:  s.voice,
	}
	s.mu.Unlock()
	if el.prosody != nil {
		req.Pitch = el.prosody.Pitch
		req.Rate = el.prosody.Rate
		req.Volume = el.prosody.Volume
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SynthesisTimeout)
	clip, err := s.engine.Synthesize(ctx, req)
	cancel()
	if err != nil {
		s.events.logf(log.ErrorLevel, "synthesis failed", "textLength", len(el.text), "error", err)
		return
	}

	pcm := audio.ConvertPCM(clip.Data, clip.SampleRate, clip.Channels, s.cfg.SampleRate, s.cfg.Channels)
	s.playClip(pcm, gen)
}

// playClip plays PCM and waits for completion. A generation bump from
// Stop invalidates the clip before it starts.
func (s *Synthesizer) playClip(pcm []byte, gen int64) {
	if len(pcm) == 0 || s.gen.Load() != gen {
		return
	}
	done, err := s.player.Play(pcm)
	if err != nil {
		s.events.logf(log.ErrorLevel, "playback failed", "bytes", len(pcm), "error", err)
		return
	}
	select {
	case <-done:
	case <-s.done:
		_ = s.player.Stop()
	}
}

// Prosody accessors. Values are percentages in [0, 100]; out-of-range
// input fails with ErrInvalidParameter instead of being clamped, so
// callers notice mistakes.

// SetPitch sets the speaking pitch applied to subsequent speech.
func (s *Synthesizer) SetPitch(value float64) error {
	if err := validateProsody("pitch", value); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pitch = value
	return nil
}

// Pitch returns the current pitch.
func (s *Synthesizer) Pitch() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pitch
}

// SetRate sets the speaking rate applied to subsequent speech.
func (s *Synthesizer) SetRate(value float64) error {
	if err := validateProsody("rate", value); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rate = value
	return nil
}

// Rate returns the current speaking rate.
func (s *Synthesizer) Rate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rate
}

// SetVolume sets playback volume. It takes effect immediately, current
// clip included.
func (s *Synthesizer) SetVolume(value float64) error {
	if err := validateProsody("volume", value); err != nil {
		return err
	}
	if err := s.player.SetVolume(value / ProsodyMax); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volume = value
	return nil
}

// Volume returns the current volume.
func (s *Synthesizer) Volume() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

// State returns the current playback state.
func (s *Synthesizer) State() SynthState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.state()
}

// Pause suspends playback.
func (s *Synthesizer) Pause() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSynthesizerClosed
	}
	if s.machine.state() != StateBusy {
		s.mu.Unlock()
		return ErrNotSpeaking
	}
	if err := s.player.Pause(); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrNotSpeaking, err)
	}
	s.machine.transition(StatePaused)
	s.mu.Unlock()

	s.events.stateChanged(StatePaused)
	return nil
}

// Resume continues paused playback.
func (s *Synthesizer) Resume() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSynthesizerClosed
	}
	if s.machine.state() != StatePaused {
		s.mu.Unlock()
		return ErrNotPaused
	}
	if err := s.player.Resume(); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrNotPaused, err)
	}
	s.machine.transition(StateBusy)
	s.mu.Unlock()

	s.events.stateChanged(StateBusy)
	return nil
}

// Stop drops the current clip and every queued element. The playback
// goroutine then reports the transition back to Ready.
func (s *Synthesizer) Stop() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSynthesizerClosed
	}
	s.queue = nil
	s.mu.Unlock()

	s.gen.Add(1)
	return s.player.Stop()
}

// Close shuts down the playback goroutine, the engine and the player.
// The synthesizer cannot be reused afterwards.
func (s *Synthesizer) Close() error {
	var errs []error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.queue = nil
		s.mu.Unlock()

		close(s.done)
		_ = s.player.Stop()
		s.wg.Wait()

		if err := s.player.Close(); err != nil {
			errs = append(errs, err)
		}
		if err := s.engine.Shutdown(); err != nil {
			errs = append(errs, err)
		}
	})
	return errors.Join(errs...)
}
