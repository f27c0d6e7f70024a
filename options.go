package neosynth

import (
	"github.com/charmbracelet/log"

	"github.com/blindpandas/neosynth-go/engines"
)

// options collects constructor overrides.
type options struct {
	cfg    Config
	logger *log.Logger
	engine engines.Engine
	player AudioPlayer
}

func defaultOptions() options {
	return options{
		cfg:    DefaultConfig(),
		logger: log.Default(),
	}
}

// Option customizes a Synthesizer at construction time.
type Option func(*options)

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithLogger sets the logger used for diagnostics. It defaults to
// log.Default().
func WithLogger(logger *log.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithEngine injects a speech engine, overriding Config.Engine.
func WithEngine(engine engines.Engine) Option {
	return func(o *options) { o.engine = engine }
}

// WithPlayer injects an audio player, bypassing the system audio
// device.
func WithPlayer(player AudioPlayer) Option {
	return func(o *options) { o.player = player }
}
