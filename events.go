package neosynth

import (
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
)

// EventSink receives synthesizer notifications. The synthesizer retains
// the sink for its whole lifetime and delivers callbacks one at a time,
// never concurrently. Callbacks run on the synthesizer's playback
// goroutine (or the goroutine of a control call such as Pause), so
// implementations must not call back into blocking synthesizer
// operations.
type EventSink interface {
	// OnStateChanged is invoked on every playback state transition.
	OnStateChanged(state SynthState)

	// OnBookmarkReached is invoked when playback reaches a bookmark,
	// whether it came from an utterance or an SSML <mark> element.
	OnBookmarkReached(bookmark string)
}

// LogSink is an optional extension of EventSink. When the sink
// implements it, the synthesizer mirrors its structured log records to
// the sink as formatted lines.
type LogSink interface {
	Log(message string, level log.Level)
}

// notifier serializes sink callbacks and mirrors log records. All event
// delivery funnels through it so the one-at-a-time guarantee holds even
// when control calls and the playback goroutine race.
type notifier struct {
	mu      sync.Mutex
	sink    EventSink
	logSink LogSink
	logger  *log.Logger
}

func newNotifier(sink EventSink, logger *log.Logger) *notifier {
	n := &notifier{sink: sink, logger: logger}
	if ls, ok := sink.(LogSink); ok {
		n.logSink = ls
	}
	return n
}

func (n *notifier) stateChanged(state SynthState) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sink.OnStateChanged(state)
}

func (n *notifier) bookmarkReached(bookmark string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sink.OnBookmarkReached(bookmark)
}

// logf writes a structured record and forwards it to the sink when the
// sink asked for diagnostics.
func (n *notifier) logf(level log.Level, msg string, keyvals ...interface{}) {
	n.logger.Log(level, msg, keyvals...)
	if n.logSink != nil {
		line := msg
		for i := 0; i+1 < len(keyvals); i += 2 {
			line += fmt.Sprintf(" %v=%v", keyvals[i], keyvals[i+1])
		}
		n.logSink.Log(line, level)
	}
}
