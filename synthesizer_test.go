package neosynth_test

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	neosynth "github.com/blindpandas/neosynth-go"
	"github.com/blindpandas/neosynth-go/engines/mock"
	"github.com/blindpandas/neosynth-go/internal/audio"
)

// exampleSSML mirrors the markup a typical caller submits.
const exampleSSML = `
<speak version="1.0" xmlns="http://www.w3.org/2001/10/synthesis" xml:lang="en">
<s>Hello there!</s>
<mark name="mark1"/>
<p>Here comes a scilence</p>
<break time="1500ms"/>
<s>Goodbye!</s>
</speak>`

// recordingSink captures every notification in arrival order.
type recordingSink struct {
	mu     sync.Mutex
	events []string
	logs   []string
}

func newRecordingSink() *recordingSink {
	return &recordingSink{}
}

func (r *recordingSink) OnStateChanged(state neosynth.SynthState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "state:"+state.String())
}

func (r *recordingSink) OnBookmarkReached(bookmark string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "bookmark:"+bookmark)
}

func (r *recordingSink) Log(message string, level log.Level) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, fmt.Sprintf("%s: %s", level, message))
}

// Events returns a copy of the recorded notifications.
func (r *recordingSink) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	copy(out, r.events)
	return out
}

// Logs returns a copy of the recorded log lines.
func (r *recordingSink) Logs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.logs))
	copy(out, r.logs)
	return out
}

// waitReady blocks until the last recorded event is a transition back
// to the ready state.
func (r *recordingSink) waitReady(t *testing.T) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		events := r.Events()
		if len(events) > 0 && events[len(events)-1] == "state:ready" {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for playback to finish, events: %v", r.Events())
}

// newTestSynth builds a synthesizer wired to a mock engine and a mock
// player so tests never touch the audio device.
func newTestSynth(t *testing.T, sink neosynth.EventSink, opts ...neosynth.Option) (*neosynth.Synthesizer, *mock.Engine, *audio.MockPlayer) {
	t.Helper()

	engine := mock.New()
	player := audio.NewMockPlayer()
	opts = append([]neosynth.Option{
		neosynth.WithEngine(engine),
		neosynth.WithPlayer(player),
	}, opts...)

	synth, err := neosynth.New(sink, opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { _ = synth.Close() })
	return synth, engine, player
}

// waitFor polls until the condition holds.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestNewRequiresSink(t *testing.T) {
	if _, err := neosynth.New(nil); err == nil {
		t.Fatal("expected an error for a nil event sink")
	}
}

func TestNewRejectsUnknownVoice(t *testing.T) {
	cfg := neosynth.DefaultConfig()
	cfg.Voice = "no-such-voice"

	_, err := neosynth.New(newRecordingSink(),
		neosynth.WithEngine(mock.New()),
		neosynth.WithPlayer(audio.NewMockPlayer()),
		neosynth.WithConfig(cfg),
	)
	if err == nil {
		t.Fatal("expected an error for an unknown initial voice")
	}
}

func TestProsodyRoundTrip(t *testing.T) {
	synth, _, _ := newTestSynth(t, newRecordingSink())

	if err := synth.SetPitch(50); err != nil {
		t.Fatalf("SetPitch failed: %v", err)
	}
	if err := synth.SetRate(30); err != nil {
		t.Fatalf("SetRate failed: %v", err)
	}
	if err := synth.SetVolume(75); err != nil {
		t.Fatalf("SetVolume failed: %v", err)
	}

	if got := synth.Pitch(); got != 50 {
		t.Errorf("Pitch = %v, want 50", got)
	}
	if got := synth.Rate(); got != 30 {
		t.Errorf("Rate = %v, want 30", got)
	}
	if got := synth.Volume(); got != 75 {
		t.Errorf("Volume = %v, want 75", got)
	}
}

func TestProsodyRejectsOutOfRange(t *testing.T) {
	synth, _, _ := newTestSynth(t, newRecordingSink())

	cases := []struct {
		name string
		set  func(float64) error
	}{
		{"pitch", synth.SetPitch},
		{"rate", synth.SetRate},
		{"volume", synth.SetVolume},
	}
	for _, tc := range cases {
		for _, value := range []float64{-0.1, 100.1, 500} {
			err := tc.set(value)
			if !errors.Is(err, neosynth.ErrInvalidParameter) {
				t.Errorf("set %s to %v: got %v, want ErrInvalidParameter", tc.name, value, err)
			}
			var perr *neosynth.ParameterError
			if !errors.As(err, &perr) {
				t.Errorf("set %s to %v: error is not a ParameterError", tc.name, value)
			} else if perr.Name != tc.name {
				t.Errorf("ParameterError.Name = %q, want %q", perr.Name, tc.name)
			}
		}
	}

	// Rejected values must not stick.
	if got := synth.Rate(); got != neosynth.ProsodyDefault {
		t.Errorf("Rate after rejected set = %v, want %v", got, neosynth.ProsodyDefault)
	}
}

func TestSpeakTextReachesEngine(t *testing.T) {
	sink := newRecordingSink()
	synth, engine, player := newTestSynth(t, sink)

	if err := synth.SetRate(30); err != nil {
		t.Fatal(err)
	}
	if err := synth.SpeakText("Hello"); err != nil {
		t.Fatalf("SpeakText failed: %v", err)
	}
	sink.waitReady(t)

	reqs := engine.Requests()
	if len(reqs) != 1 {
		t.Fatalf("engine received %d requests, want 1", len(reqs))
	}
	if reqs[0].Text != "Hello" {
		t.Errorf("engine received %q, want %q", reqs[0].Text, "Hello")
	}
	if reqs[0].Rate != 30 {
		t.Errorf("request rate = %v, want 30", reqs[0].Rate)
	}
	if player.PlayCount() != 1 {
		t.Errorf("player played %d clips, want 1", player.PlayCount())
	}
}

func TestStateChangeSequence(t *testing.T) {
	sink := newRecordingSink()
	synth, _, _ := newTestSynth(t, sink)

	if err := synth.SpeakText("Hello"); err != nil {
		t.Fatal(err)
	}
	sink.waitReady(t)

	events := sink.Events()
	if len(events) < 2 {
		t.Fatalf("got %d state events, want at least 2: %v", len(events), events)
	}
	if events[0] != "state:busy" {
		t.Errorf("first event = %q, want state:busy", events[0])
	}
	if events[len(events)-1] != "state:ready" {
		t.Errorf("last event = %q, want state:ready", events[len(events)-1])
	}
}

func TestSpeakUtteranceBookmarkOrder(t *testing.T) {
	sink := newRecordingSink()
	synth, _, _ := newTestSynth(t, sink)

	u := neosynth.NewUtterance()
	u.AddText("Hello there.")
	u.AddBookmark("bookmark1")
	u.AddText("And another thing.")
	u.AddBookmark("bookmark2")
	u.AddText("Goodbye!")

	if err := synth.Speak(u); err != nil {
		t.Fatalf("Speak failed: %v", err)
	}
	sink.waitReady(t)

	events := sink.Events()
	first := indexOf(events, "bookmark:bookmark1")
	second := indexOf(events, "bookmark:bookmark2")
	final := indexOf(events, "state:ready")

	if first < 0 || second < 0 {
		t.Fatalf("missing bookmark events: %v", events)
	}
	if first >= second {
		t.Errorf("bookmark1 (index %d) must precede bookmark2 (index %d): %v", first, second, events)
	}
	if second >= final {
		t.Errorf("bookmark2 (index %d) must precede completion (index %d): %v", second, final, events)
	}
}

func TestSpeakSSMLMarkOnce(t *testing.T) {
	sink := newRecordingSink()
	synth, engine, player := newTestSynth(t, sink)

	if err := synth.SpeakSSML(exampleSSML); err != nil {
		t.Fatalf("SpeakSSML failed: %v", err)
	}
	sink.waitReady(t)

	marks := 0
	for _, ev := range sink.Events() {
		if ev == "bookmark:mark1" {
			marks++
		}
	}
	if marks != 1 {
		t.Errorf("mark1 reported %d times, want exactly once", marks)
	}

	var texts []string
	for _, req := range engine.Requests() {
		texts = append(texts, req.Text)
	}
	want := []string{"Hello there!", "Here comes a scilence", "Goodbye!"}
	if len(texts) != len(want) {
		t.Fatalf("engine received %v, want %v", texts, want)
	}
	for i := range want {
		if texts[i] != want[i] {
			t.Errorf("text %d = %q, want %q", i, texts[i], want[i])
		}
	}

	// The 1500ms break renders as silence at the output rate.
	wantBytes := int(1.5*22050) * 2
	found := false
	for _, clip := range player.Clips() {
		if len(clip) == wantBytes {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("no %d-byte silence clip for the 1500ms break", wantBytes)
	}
}

func TestSpeakSSMLMalformed(t *testing.T) {
	synth, _, _ := newTestSynth(t, newRecordingSink())

	err := synth.SpeakSSML(`<speak><shout>Hello</shout></speak>`)
	if !errors.Is(err, neosynth.ErrInvalidMarkup) {
		t.Fatalf("got %v, want ErrInvalidMarkup", err)
	}
	var merr *neosynth.MarkupError
	if !errors.As(err, &merr) {
		t.Fatal("error is not a MarkupError")
	}
	if !strings.Contains(merr.Construct, "shout") {
		t.Errorf("Construct = %q, want it to name the offending element", merr.Construct)
	}
}

func TestQueueFullRejectsSpeak(t *testing.T) {
	cfg := neosynth.DefaultConfig()
	cfg.QueueSize = 2

	sink := newRecordingSink()
	synth, _, player := newTestSynth(t, sink, neosynth.WithConfig(cfg))
	player.SetManual(true)

	if err := synth.SpeakText("one"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "first clip to start", func() bool { return player.PlayCount() == 1 })

	// The worker is blocked on the first clip, so these stay queued.
	if err := synth.SpeakText("two"); err != nil {
		t.Fatal(err)
	}
	if err := synth.SpeakText("three"); err != nil {
		t.Fatal(err)
	}

	if err := synth.SpeakText("four"); !errors.Is(err, neosynth.ErrEngineBusy) {
		t.Errorf("got %v, want ErrEngineBusy", err)
	}

	if err := synth.Stop(); err != nil {
		t.Fatal(err)
	}
	sink.waitReady(t)
}

func TestStopFlushesQueue(t *testing.T) {
	sink := newRecordingSink()
	synth, _, player := newTestSynth(t, sink)
	player.SetManual(true)

	for _, text := range []string{"one", "two", "three"} {
		if err := synth.SpeakText(text); err != nil {
			t.Fatal(err)
		}
	}
	waitFor(t, "first clip to start", func() bool { return player.PlayCount() == 1 })

	if err := synth.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	sink.waitReady(t)

	if got := player.PlayCount(); got != 1 {
		t.Errorf("player played %d clips after Stop, want 1", got)
	}
	if got := synth.State(); got != neosynth.StateReady {
		t.Errorf("State = %v, want ready", got)
	}
}

func TestPauseResume(t *testing.T) {
	sink := newRecordingSink()
	synth, _, player := newTestSynth(t, sink)
	player.SetManual(true)

	if err := synth.SpeakText("Hello"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "clip to start", func() bool { return player.PlayCount() == 1 })

	if err := synth.Pause(); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}
	if got := synth.State(); got != neosynth.StatePaused {
		t.Errorf("State = %v, want paused", got)
	}
	if err := synth.Resume(); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if got := synth.State(); got != neosynth.StateBusy {
		t.Errorf("State = %v, want busy", got)
	}

	player.Complete()
	sink.waitReady(t)

	if player.PauseCount() != 1 || player.ResumeCount() != 1 {
		t.Errorf("pause/resume counts = %d/%d, want 1/1", player.PauseCount(), player.ResumeCount())
	}

	wantPrefix := []string{"state:busy", "state:paused", "state:busy", "state:ready"}
	events := sink.Events()
	if len(events) != len(wantPrefix) {
		t.Fatalf("events = %v, want %v", events, wantPrefix)
	}
	for i := range wantPrefix {
		if events[i] != wantPrefix[i] {
			t.Errorf("event %d = %q, want %q", i, events[i], wantPrefix[i])
		}
	}
}

func TestPauseWhenIdle(t *testing.T) {
	synth, _, _ := newTestSynth(t, newRecordingSink())

	if err := synth.Pause(); !errors.Is(err, neosynth.ErrNotSpeaking) {
		t.Errorf("Pause while idle: got %v, want ErrNotSpeaking", err)
	}
	if err := synth.Resume(); !errors.Is(err, neosynth.ErrNotPaused) {
		t.Errorf("Resume while idle: got %v, want ErrNotPaused", err)
	}
}

func TestVoiceSelection(t *testing.T) {
	synth, _, _ := newTestSynth(t, newRecordingSink())

	voices := synth.Voices()
	if len(voices) == 0 {
		t.Fatal("no voices reported")
	}

	if err := synth.SetVoiceByID("mock-voice-2"); err != nil {
		t.Fatalf("SetVoiceByID failed: %v", err)
	}
	if got := synth.Voice().ID; got != "mock-voice-2" {
		t.Errorf("active voice = %q, want mock-voice-2", got)
	}

	if err := synth.SetVoiceByID("no-such-voice"); !errors.Is(err, neosynth.ErrVoiceNotFound) {
		t.Errorf("got %v, want ErrVoiceNotFound", err)
	}
}

func TestSpeakEmptyUtterance(t *testing.T) {
	synth, _, _ := newTestSynth(t, newRecordingSink())

	if err := synth.Speak(neosynth.NewUtterance()); !errors.Is(err, neosynth.ErrEmptyUtterance) {
		t.Errorf("got %v, want ErrEmptyUtterance", err)
	}
	if err := synth.Speak(nil); !errors.Is(err, neosynth.ErrEmptyUtterance) {
		t.Errorf("got %v, want ErrEmptyUtterance for nil utterance", err)
	}
}

func TestSpeakAfterClose(t *testing.T) {
	synth, _, _ := newTestSynth(t, newRecordingSink())

	if err := synth.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := synth.SpeakText("Hello"); !errors.Is(err, neosynth.ErrSynthesizerClosed) {
		t.Errorf("got %v, want ErrSynthesizerClosed", err)
	}
	// Close is idempotent.
	if err := synth.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}

func TestLogSinkReceivesDiagnostics(t *testing.T) {
	sink := newRecordingSink()
	synth, engine, _ := newTestSynth(t, sink)

	engine.SetFailure(errors.New("engine exploded"))
	if err := synth.SpeakText("Hello"); err != nil {
		t.Fatal(err)
	}
	sink.waitReady(t)

	found := false
	for _, line := range sink.Logs() {
		if strings.Contains(line, "synthesis failed") {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("sink did not receive the failure diagnostic, logs: %v", sink.Logs())
	}
}

func indexOf(events []string, want string) int {
	for i, ev := range events {
		if ev == want {
			return i
		}
	}
	return -1
}
