package neosynth

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/viper"
)

// LoadConfig builds a Config from defaults, the application's Viper
// instance (keys under "neosynth.") and NEOSYNTH_* environment
// variables, in that precedence order.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	applyViper(&cfg)
	if err := applyEnv(&cfg); err != nil {
		return cfg, fmt.Errorf("reading environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid speech configuration: %w", err)
	}
	return cfg, nil
}

// applyViper overlays values from the global Viper instance.
func applyViper(cfg *Config) {
	if viper.IsSet("neosynth.engine") {
		cfg.Engine = viper.GetString("neosynth.engine")
	}
	if viper.IsSet("neosynth.voice") {
		cfg.Voice = viper.GetString("neosynth.voice")
	}
	if viper.IsSet("neosynth.sample_rate") {
		cfg.SampleRate = viper.GetInt("neosynth.sample_rate")
	}
	if viper.IsSet("neosynth.channels") {
		cfg.Channels = viper.GetInt("neosynth.channels")
	}
	if viper.IsSet("neosynth.pitch") {
		cfg.Pitch = viper.GetFloat64("neosynth.pitch")
	}
	if viper.IsSet("neosynth.rate") {
		cfg.Rate = viper.GetFloat64("neosynth.rate")
	}
	if viper.IsSet("neosynth.volume") {
		cfg.Volume = viper.GetFloat64("neosynth.volume")
	}
	if viper.IsSet("neosynth.queue_size") {
		cfg.QueueSize = viper.GetInt("neosynth.queue_size")
	}
	if viper.IsSet("neosynth.synthesis_timeout") {
		cfg.SynthesisTimeout = viper.GetDuration("neosynth.synthesis_timeout")
	}
	if viper.IsSet("neosynth.espeak_path") {
		cfg.EspeakPath = viper.GetString("neosynth.espeak_path")
	}
}

// envOverrides mirrors Config with pointer fields so unset variables
// leave the config untouched.
type envOverrides struct {
	Engine           *string        `env:"NEOSYNTH_ENGINE"`
	Voice            *string        `env:"NEOSYNTH_VOICE"`
	SampleRate       *int           `env:"NEOSYNTH_SAMPLE_RATE"`
	Channels         *int           `env:"NEOSYNTH_CHANNELS"`
	Pitch            *float64       `env:"NEOSYNTH_PITCH"`
	Rate             *float64       `env:"NEOSYNTH_RATE"`
	Volume           *float64       `env:"NEOSYNTH_VOLUME"`
	QueueSize        *int           `env:"NEOSYNTH_QUEUE_SIZE"`
	SynthesisTimeout *time.Duration `env:"NEOSYNTH_SYNTHESIS_TIMEOUT"`
	EspeakPath       *string        `env:"NEOSYNTH_ESPEAK_PATH"`
}

// applyEnv overlays NEOSYNTH_* environment variables.
func applyEnv(cfg *Config) error {
	ov, err := env.ParseAs[envOverrides]()
	if err != nil {
		return err
	}
	if ov.Engine != nil {
		cfg.Engine = *ov.Engine
	}
	if ov.Voice != nil {
		cfg.Voice = *ov.Voice
	}
	if ov.SampleRate != nil {
		cfg.SampleRate = *ov.SampleRate
	}
	if ov.Channels != nil {
		cfg.Channels = *ov.Channels
	}
	if ov.Pitch != nil {
		cfg.Pitch = *ov.Pitch
	}
	if ov.Rate != nil {
		cfg.Rate = *ov.Rate
	}
	if ov.Volume != nil {
		cfg.Volume = *ov.Volume
	}
	if ov.QueueSize != nil {
		cfg.QueueSize = *ov.QueueSize
	}
	if ov.SynthesisTimeout != nil {
		cfg.SynthesisTimeout = *ov.SynthesisTimeout
	}
	if ov.EspeakPath != nil {
		cfg.EspeakPath = *ov.EspeakPath
	}
	return nil
}
