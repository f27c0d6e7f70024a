package audio

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	mp3 "github.com/hajimehoshi/go-mp3"
)

// DecodeFile reads a wav or mp3 file and converts it to 16-bit PCM at
// the requested rate and channel count, ready for the output device.
func DecodeFile(path string, targetRate, targetChannels int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening audio file: %w", err)
	}
	defer f.Close()

	var (
		samples  []int16
		srcRate  int
		channels int
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav":
		samples, srcRate, channels, err = decodeWAVFile(f)
	case ".mp3":
		samples, srcRate, channels, err = decodeMP3File(f)
	default:
		return nil, fmt.Errorf("unsupported audio format %q (want .wav or .mp3)", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
	}

	samples = remixChannels(samples, channels, targetChannels)
	samples = Resample(samples, targetChannels, srcRate, targetRate)
	return samplesToBytes(samples), nil
}

func decodeWAVFile(f *os.File) ([]int16, int, int, error) {
	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, 0, err
	}
	if buf.Format == nil || buf.Format.SampleRate <= 0 || buf.Format.NumChannels <= 0 {
		return nil, 0, 0, fmt.Errorf("missing format header")
	}

	shift := 0
	if buf.SourceBitDepth > 16 {
		shift = int(buf.SourceBitDepth) - 16
	}
	samples := make([]int16, len(buf.Data))
	for i, s := range buf.Data {
		samples[i] = int16(s >> shift)
	}
	return samples, buf.Format.SampleRate, buf.Format.NumChannels, nil
}

// decodeMP3File decodes an mp3 stream. go-mp3 always yields 16-bit
// stereo at the source sample rate.
func decodeMP3File(f *os.File) ([]int16, int, int, error) {
	dec, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, 0, 0, err
	}
	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, 0, 0, err
	}
	return bytesToSamples(raw), dec.SampleRate(), 2, nil
}

// remixChannels converts between mono and stereo interleaved samples.
func remixChannels(samples []int16, from, to int) []int16 {
	if from == to || from <= 0 || to <= 0 {
		return samples
	}
	switch {
	case from == 2 && to == 1:
		out := make([]int16, len(samples)/2)
		for i := range out {
			out[i] = int16((int32(samples[i*2]) + int32(samples[i*2+1])) / 2)
		}
		return out
	case from == 1 && to == 2:
		out := make([]int16, len(samples)*2)
		for i, s := range samples {
			out[i*2] = s
			out[i*2+1] = s
		}
		return out
	default:
		return samples
	}
}

// Resample converts interleaved PCM between sample rates using linear
// interpolation. Quality is adequate for speech; music fidelity is not a
// goal here.
func Resample(samples []int16, channels, srcRate, dstRate int) []int16 {
	if srcRate == dstRate || srcRate <= 0 || dstRate <= 0 || channels <= 0 {
		return samples
	}
	srcFrames := len(samples) / channels
	if srcFrames < 2 {
		return samples
	}
	dstFrames := int(float64(srcFrames) * float64(dstRate) / float64(srcRate))
	out := make([]int16, dstFrames*channels)

	ratio := float64(srcRate) / float64(dstRate)
	for frame := 0; frame < dstFrames; frame++ {
		pos := float64(frame) * ratio
		i := int(pos)
		frac := pos - float64(i)
		if i >= srcFrames-1 {
			i = srcFrames - 2
			frac = 1
		}
		for ch := 0; ch < channels; ch++ {
			a := float64(samples[i*channels+ch])
			b := float64(samples[(i+1)*channels+ch])
			out[frame*channels+ch] = int16(a + (b-a)*frac)
		}
	}
	return out
}

// ConvertPCM adapts a 16-bit PCM clip to the output device's rate and
// channel count.
func ConvertPCM(data []byte, srcRate, srcChannels, dstRate, dstChannels int) []byte {
	if srcRate == dstRate && srcChannels == dstChannels {
		return data
	}
	samples := bytesToSamples(data)
	samples = remixChannels(samples, srcChannels, dstChannels)
	samples = Resample(samples, dstChannels, srcRate, dstRate)
	return samplesToBytes(samples)
}

// Silence returns a PCM clip of silence with the given duration in
// sample frames.
func Silence(frames, channels int) []byte {
	if frames < 0 {
		frames = 0
	}
	return make([]byte, frames*channels*2)
}

func samplesToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}

func bytesToSamples(raw []byte) []int16 {
	out := make([]int16, len(raw)/2)
	for i := range out {
		out[i] = int16(raw[i*2]) | int16(raw[i*2+1])<<8
	}
	return out
}
