package neosynth

import "sync"

// segmentKind identifies the type of an utterance segment.
type segmentKind int

const (
	segmentText segmentKind = iota
	segmentSSML
	segmentBookmark
	segmentAudio
)

// segment is one entry in an utterance.
type segment struct {
	kind  segmentKind
	value string // text, markup, bookmark label or file path
}

// SpeechUtterance is an ordered, append-only sequence of speakable
// segments and bookmarks, assembled before being handed to the
// synthesizer. The zero value is usable; NewUtterance exists for
// symmetry with the rest of the API.
//
// The synthesizer snapshots the segments when Speak is called, so
// mutating the utterance afterwards does not affect speech already in
// flight.
type SpeechUtterance struct {
	mu       sync.Mutex
	segments []segment
}

// NewUtterance creates an empty utterance.
func NewUtterance() *SpeechUtterance {
	return &SpeechUtterance{}
}

// AddText appends a plain text run. No markup interpretation happens.
func (u *SpeechUtterance) AddText(text string) {
	u.append(segment{kind: segmentText, value: text})
}

// AddSSML appends a speech markup document. It is parsed when the
// utterance is spoken; malformed markup surfaces as a MarkupError from
// Speak.
func (u *SpeechUtterance) AddSSML(markup string) {
	u.append(segment{kind: segmentSSML, value: markup})
}

// AddBookmark appends a named bookmark. The label is caller-chosen and
// need not be unique; playback reports it through
// EventSink.OnBookmarkReached when the position is reached.
func (u *SpeechUtterance) AddBookmark(bookmark string) {
	u.append(segment{kind: segmentBookmark, value: bookmark})
}

// AddAudio appends a local wav or mp3 file to be spliced into the
// speech stream.
func (u *SpeechUtterance) AddAudio(path string) {
	u.append(segment{kind: segmentAudio, value: path})
}

// AddUtterance appends all of other's segments, draining other.
func (u *SpeechUtterance) AddUtterance(other *SpeechUtterance) {
	if other == nil || other == u {
		return
	}
	other.mu.Lock()
	moved := other.segments
	other.segments = nil
	other.mu.Unlock()

	u.mu.Lock()
	u.segments = append(u.segments, moved...)
	u.mu.Unlock()
}

// Len returns the number of segments added so far.
func (u *SpeechUtterance) Len() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.segments)
}

func (u *SpeechUtterance) append(s segment) {
	u.mu.Lock()
	u.segments = append(u.segments, s)
	u.mu.Unlock()
}

// snapshot returns a copy of the current segments.
func (u *SpeechUtterance) snapshot() []segment {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]segment, len(u.segments))
	copy(out, u.segments)
	return out
}
