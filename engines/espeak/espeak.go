// Package espeak provides a speech engine backed by the espeak-ng
// command line synthesizer. A fresh process is spawned per request,
// which keeps the engine stateless at the cost of startup latency.
package espeak

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/go-audio/wav"

	"github.com/blindpandas/neosynth-go/engines"
)

// Config holds espeak-specific settings.
type Config struct {
	BinaryPath string        // Path to the espeak-ng binary
	Timeout    time.Duration // Per-request subprocess timeout
}

// DefaultConfig returns the default espeak configuration.
func DefaultConfig() Config {
	return Config{
		BinaryPath: "espeak-ng",
		Timeout:    30 * time.Second,
	}
}

// Engine implements engines.Engine using espeak-ng subprocesses.
type Engine struct {
	mu sync.Mutex

	config      Config
	engineCfg   engines.Config
	activeVoice engines.Voice
	voices      []engines.Voice
	initialized bool
}

// New creates an espeak engine with the given configuration.
func New(config Config) *Engine {
	if config.BinaryPath == "" {
		config.BinaryPath = "espeak-ng"
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	return &Engine{config: config}
}

// Initialize discovers installed voices and selects the initial one.
func (e *Engine) Initialize(cfg engines.Config) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	out, err := exec.Command(e.config.BinaryPath, "--voices").Output()
	if err != nil {
		return fmt.Errorf("espeak voice discovery failed: %w", err)
	}
	e.voices = parseVoices(string(out))
	e.engineCfg = cfg
	e.initialized = true

	if cfg.Voice != "" {
		for _, v := range e.voices {
			if v.ID == cfg.Voice {
				e.activeVoice = v
				return nil
			}
		}
		return fmt.Errorf("voice not found: %s", cfg.Voice)
	}
	if len(e.voices) > 0 {
		e.activeVoice = e.voices[0]
		for _, v := range e.voices {
			if strings.HasPrefix(v.Language, "en") {
				e.activeVoice = v
				break
			}
		}
	}
	return nil
}

// Synthesize runs espeak-ng and decodes its WAV output to PCM.
func (e *Engine) Synthesize(ctx context.Context, req engines.Request) (*engines.Audio, error) {
	e.mu.Lock()
	binary := e.config.BinaryPath
	timeout := e.config.Timeout
	voice := e.activeVoice
	e.mu.Unlock()

	if req.Voice.ID != "" {
		voice = req.Voice
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, binary, buildArgs(voice, req)...)
	cmd.Stdin = strings.NewReader(req.Text + "\n")

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("espeak failed: %s: %w", msg, err)
		}
		return nil, fmt.Errorf("espeak failed: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("espeak produced no audio")
	}

	return decodeWAV(out)
}

// buildArgs maps a synthesis request onto espeak-ng flags. Prosody
// percentages translate to espeak's native units: words per minute
// (80-280), pitch 0-99 and amplitude 0-200, with 50% landing on the
// espeak defaults.
func buildArgs(voice engines.Voice, req engines.Request) []string {
	args := []string{"--stdin", "--stdout"}
	if voice.ID != "" {
		args = append(args, "-v", voice.ID)
	}
	args = append(args,
		"-s", fmt.Sprintf("%d", int(80+2*req.Rate)),
		"-p", fmt.Sprintf("%d", int(req.Pitch*99/100)),
		"-a", fmt.Sprintf("%d", int(req.Volume*2)),
	)
	return args
}

// decodeWAV extracts 16-bit PCM from espeak's WAV output.
func decodeWAV(data []byte) (*engines.Audio, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decoding espeak output: %w", err)
	}
	if buf.Format == nil || buf.Format.SampleRate <= 0 {
		return nil, fmt.Errorf("espeak output missing format header")
	}

	pcm := make([]byte, len(buf.Data)*2)
	for i, sample := range buf.Data {
		s := int16(sample)
		pcm[i*2] = byte(s)
		pcm[i*2+1] = byte(s >> 8)
	}

	return &engines.Audio{
		Data:       pcm,
		SampleRate: buf.Format.SampleRate,
		Channels:   buf.Format.NumChannels,
		Duration:   engines.PCMDuration(len(pcm), buf.Format.SampleRate, buf.Format.NumChannels),
	}, nil
}

// Voices returns the voices discovered during initialization.
func (e *Engine) Voices() []engines.Voice {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]engines.Voice, len(e.voices))
	copy(out, e.voices)
	return out
}

// SetVoice selects the active voice.
func (e *Engine) SetVoice(v engines.Voice) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, known := range e.voices {
		if known.ID == v.ID {
			e.activeVoice = known
			return nil
		}
	}
	return fmt.Errorf("voice not found: %s", v.ID)
}

// Capabilities reports what espeak supports.
func (e *Engine) Capabilities() engines.Capabilities {
	return engines.Capabilities{
		SupportsSSML:    true, // espeak-ng -m, unused: markup is parsed upstream
		MaxTextLength:   0,
		RequiresNetwork: false,
	}
}

// Available checks that the espeak binary can run.
func (e *Engine) Available() bool {
	e.mu.Lock()
	binary := e.config.BinaryPath
	e.mu.Unlock()
	return exec.Command(binary, "--version").Run() == nil
}

// Shutdown releases resources. Stateless engine, nothing to do.
func (e *Engine) Shutdown() error {
	return nil
}

// parseVoices parses `espeak-ng --voices` output. Expected columns:
//
//	Pty Language Age/Gender VoiceName File Other
func parseVoices(output string) []engines.Voice {
	var voices []engines.Voice
	lines := strings.Split(output, "\n")
	for i, line := range lines {
		if i == 0 || strings.TrimSpace(line) == "" {
			continue // header
		}
		fields := strings.Fields(line)
		if len(fields) < 5 {
			continue
		}
		voices = append(voices, engines.Voice{
			ID:       fields[4],
			Name:     fields[3],
			Language: fields[1],
			Gender:   parseGender(fields[2]),
		})
	}
	return voices
}

// parseGender extracts the gender from an Age/Gender column like "--/M".
func parseGender(field string) string {
	parts := strings.Split(field, "/")
	if len(parts) != 2 {
		return ""
	}
	switch parts[1] {
	case "M":
		return "male"
	case "F":
		return "female"
	default:
		return ""
	}
}
