// Package ssml parses Speech Synthesis Markup Language documents into an
// ordered list of speakable segments. Only the subset relevant to
// playback is supported: <speak>, <p>, <s>, <mark>, <break> and
// <prosody>. Anything else is rejected rather than silently skipped, so
// callers find out about markup the synthesizer will not honor.
package ssml

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Kind identifies the type of a parsed segment.
type Kind int

const (
	// KindText is a run of speakable text.
	KindText Kind = iota
	// KindMark is a named position reported during playback.
	KindMark
	// KindBreak is a timed pause.
	KindBreak
)

// Pause durations inserted at structural boundaries.
const (
	SentenceBreak  = 200 * time.Millisecond
	ParagraphBreak = 400 * time.Millisecond
	defaultBreak   = 250 * time.Millisecond
)

// Prosody holds effective prosody percentages for a text segment.
// Values are in [0, 100] with 50 meaning neutral.
type Prosody struct {
	Rate   float64
	Pitch  float64
	Volume float64
}

// Segment is one element of a parsed document.
type Segment struct {
	Kind    Kind
	Text    string        // KindText
	Mark    string        // KindMark
	Pause   time.Duration // KindBreak
	Prosody *Prosody      // KindText only, nil = caller defaults
}

// ParseError describes a rejected document and names the offending
// construct.
type ParseError struct {
	Construct string
	Err       error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ssml: %s: %v", e.Construct, e.Err)
	}
	return fmt.Sprintf("ssml: invalid construct %s", e.Construct)
}

func (e *ParseError) Unwrap() error { return e.Err }

// parser carries state through a single Parse call.
type parser struct {
	segments []Segment
	text     strings.Builder
	prosody  []*Prosody // innermost last, nil entries mean inherit
	depth    int
	sawRoot  bool
}

// Parse converts an SSML document into ordered segments. Sentence and
// paragraph ends become short breaks so engines without native markup
// support still produce natural phrasing.
func Parse(markup string) ([]Segment, error) {
	if strings.TrimSpace(markup) == "" {
		return nil, &ParseError{Construct: "document", Err: errors.New("empty input")}
	}

	p := &parser{}
	dec := xml.NewDecoder(strings.NewReader(markup))

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &ParseError{Construct: "document", Err: err}
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if err := p.startElement(t); err != nil {
				return nil, err
			}
		case xml.CharData:
			if p.depth > 0 {
				p.text.Write(t)
			}
		case xml.EndElement:
			p.endElement(t)
		}
	}

	if !p.sawRoot {
		return nil, &ParseError{Construct: "<speak>", Err: errors.New("missing document root")}
	}
	p.flushText()
	return p.segments, nil
}

func (p *parser) startElement(el xml.StartElement) error {
	name := el.Name.Local

	if p.depth == 0 && name != "speak" {
		return &ParseError{Construct: "<" + name + ">", Err: errors.New("document root must be <speak>")}
	}

	switch name {
	case "speak":
		if p.depth != 0 {
			return &ParseError{Construct: "<speak>", Err: errors.New("nested <speak> not allowed")}
		}
		p.sawRoot = true

	case "p", "s":
		p.flushText()

	case "mark":
		name, ok := attr(el, "name")
		if !ok || name == "" {
			return &ParseError{Construct: "<mark>", Err: errors.New("missing required name attribute")}
		}
		p.flushText()
		p.segments = append(p.segments, Segment{Kind: KindMark, Mark: name})

	case "break":
		pause, err := breakDuration(el)
		if err != nil {
			return err
		}
		p.flushText()
		if pause > 0 {
			p.segments = append(p.segments, Segment{Kind: KindBreak, Pause: pause})
		}

	case "prosody":
		pros, err := p.prosodyAttrs(el)
		if err != nil {
			return err
		}
		p.flushText()
		p.prosody = append(p.prosody, pros)
		p.depth++
		return nil

	default:
		return &ParseError{Construct: "<" + name + ">", Err: errors.New("unsupported element")}
	}

	p.depth++
	return nil
}

func (p *parser) endElement(el xml.EndElement) {
	p.depth--
	switch el.Name.Local {
	case "s":
		p.flushText()
		p.segments = append(p.segments, Segment{Kind: KindBreak, Pause: SentenceBreak})
	case "p":
		p.flushText()
		p.segments = append(p.segments, Segment{Kind: KindBreak, Pause: ParagraphBreak})
	case "prosody":
		p.flushText()
		if n := len(p.prosody); n > 0 {
			p.prosody = p.prosody[:n-1]
		}
	}
}

// flushText emits the accumulated character data as a text segment with
// whitespace collapsed.
func (p *parser) flushText() {
	text := strings.Join(strings.Fields(p.text.String()), " ")
	p.text.Reset()
	if text == "" {
		return
	}
	p.segments = append(p.segments, Segment{Kind: KindText, Text: text, Prosody: p.currentProsody()})
}

func (p *parser) currentProsody() *Prosody {
	if len(p.prosody) == 0 {
		return nil
	}
	return p.prosody[len(p.prosody)-1]
}

// prosodyAttrs resolves a <prosody> element against the enclosing
// prosody context.
func (p *parser) prosodyAttrs(el xml.StartElement) (*Prosody, error) {
	base := Prosody{Rate: 50, Pitch: 50, Volume: 50}
	if cur := p.currentProsody(); cur != nil {
		base = *cur
	}
	out := base

	for _, a := range el.Attr {
		var (
			target *float64
			names  map[string]float64
		)
		switch a.Name.Local {
		case "rate":
			target, names = &out.Rate, rateNames
		case "pitch":
			target, names = &out.Pitch, pitchNames
		case "volume":
			target, names = &out.Volume, volumeNames
		default:
			return nil, &ParseError{
				Construct: fmt.Sprintf(`<prosody %s=%q>`, a.Name.Local, a.Value),
				Err:       errors.New("unsupported attribute"),
			}
		}

		v, err := prosodyValue(a.Value, *target, names)
		if err != nil {
			return nil, &ParseError{
				Construct: fmt.Sprintf(`<prosody %s=%q>`, a.Name.Local, a.Value),
				Err:       err,
			}
		}
		*target = v
	}
	return &out, nil
}

var (
	rateNames   = map[string]float64{"x-slow": 10, "slow": 30, "medium": 50, "default": 50, "fast": 70, "x-fast": 90}
	pitchNames  = map[string]float64{"x-low": 10, "low": 30, "medium": 50, "default": 50, "high": 70, "x-high": 90}
	volumeNames = map[string]float64{"silent": 0, "x-soft": 15, "soft": 30, "medium": 50, "default": 50, "loud": 75, "x-loud": 100}
)

// prosodyValue parses a prosody attribute: a named level, an absolute
// percentage ("80%") or a signed offset ("+10%", "-25%") relative to the
// enclosing value. The result is confined to [0, 100].
func prosodyValue(raw string, current float64, names map[string]float64) (float64, error) {
	if v, ok := names[raw]; ok {
		return v, nil
	}

	s := strings.TrimSuffix(raw, "%")
	if s == raw {
		return 0, errors.New("expected a named level or percentage")
	}
	relative := strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.New("malformed percentage")
	}
	if relative {
		v = current + v
	}
	if v < 0 {
		v = 0
	}
	if v > 100 {
		v = 100
	}
	return v, nil
}

var strengthPauses = map[string]time.Duration{
	"none":     0,
	"x-weak":   100 * time.Millisecond,
	"weak":     150 * time.Millisecond,
	"medium":   defaultBreak,
	"strong":   400 * time.Millisecond,
	"x-strong": 700 * time.Millisecond,
}

// breakDuration resolves a <break> element's pause. The time attribute
// wins over strength; with neither the medium pause applies.
func breakDuration(el xml.StartElement) (time.Duration, error) {
	if raw, ok := attr(el, "time"); ok {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			return 0, &ParseError{
				Construct: fmt.Sprintf(`<break time=%q>`, raw),
				Err:       errors.New("malformed duration"),
			}
		}
		return d, nil
	}
	if raw, ok := attr(el, "strength"); ok {
		d, ok := strengthPauses[raw]
		if !ok {
			return 0, &ParseError{
				Construct: fmt.Sprintf(`<break strength=%q>`, raw),
				Err:       errors.New("unknown strength"),
			}
		}
		return d, nil
	}
	return defaultBreak, nil
}

func attr(el xml.StartElement, name string) (string, bool) {
	for _, a := range el.Attr {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}
