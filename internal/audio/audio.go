// Package audio decodes audio files into mono sample buffers and writes
// recordings back out as WAV.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
)

// ErrUnsupportedFormat is returned for files that are neither WAV nor MP3.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Clip is a decoded mono audio buffer.
type Clip struct {
	SampleRate int
	Samples    []float64
}

// Duration returns the clip length in seconds.
func (c *Clip) Duration() float64 {
	if c == nil || c.SampleRate <= 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate)
}

// Window returns the n samples ending at t seconds. Positions before the
// start or past the end read as silence unless loop is set, in which case
// they wrap around.
func (c *Clip) Window(t float64, n int, loop bool) []float64 {
	out := make([]float64, n)
	total := len(c.Samples)
	if total == 0 {
		return out
	}
	end := int(math.Round(t * float64(c.SampleRate)))
	start := end - n
	for i := range out {
		j := start + i
		if loop {
			j = ((j % total) + total) % total
		} else if j < 0 || j >= total {
			continue
		}
		out[i] = c.Samples[j]
	}
	return out
}

// Load decodes a .wav or .mp3 file.
func Load(path string) (*Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".wave":
		clip, err := DecodeWAV(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return clip, nil
	case ".mp3":
		clip, err := DecodeMP3(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return clip, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
}

// DecodeWAV decodes PCM WAV data and mixes all channels down to mono.
func DecodeWAV(r io.ReadSeeker) (*Clip, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, errors.New("invalid WAV file")
	}
	if err := decoder.FwdToPCM(); err != nil {
		return nil, err
	}

	format := decoder.Format()
	bitDepth := int(decoder.SampleBitDepth())
	if bitDepth == 0 {
		return nil, errors.New("unknown bit depth")
	}
	nchannels := format.NumChannels
	if nchannels <= 0 {
		return nil, errors.New("no channels")
	}
	bytesPerSample := (bitDepth-1)/8 + 1
	nsamples := int(decoder.PCMLen()) / bytesPerSample

	buf := &goaudio.IntBuffer{
		Format:         format,
		Data:           make([]int, nsamples),
		SourceBitDepth: bitDepth,
	}
	n, err := decoder.PCMBuffer(buf)
	if err != nil {
		return nil, err
	}
	buf.Data = buf.Data[:n]

	factor := math.Pow(2, float64(bitDepth-1))
	floatBuf := buf.AsFloatBuffer()
	return &Clip{
		SampleRate: format.SampleRate,
		Samples:    downmix(floatBuf.Data, nchannels, factor),
	}, nil
}

// DecodeMP3 decodes an MP3 stream. The decoder always yields 16-bit
// little-endian stereo.
func DecodeMP3(r io.Reader) (*Clip, error) {
	decoder, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, err
	}
	raw, err := io.ReadAll(decoder)
	if err != nil {
		return nil, err
	}

	const nchannels = 2
	interleaved := make([]float64, len(raw)/2)
	for i := range interleaved {
		interleaved[i] = float64(int16(binary.LittleEndian.Uint16(raw[2*i:])))
	}
	return &Clip{
		SampleRate: decoder.SampleRate(),
		Samples:    downmix(interleaved, nchannels, 32768),
	}, nil
}

func downmix(interleaved []float64, nchannels int, scale float64) []float64 {
	nframes := len(interleaved) / nchannels
	out := make([]float64, nframes)
	for i := range out {
		sum := 0.0
		for ch := 0; ch < nchannels; ch++ {
			sum += interleaved[i*nchannels+ch]
		}
		out[i] = sum / float64(nchannels) / scale
	}
	return out
}

// WriteWAV encodes mono samples as 16-bit PCM.
func WriteWAV(w io.WriteSeeker, sampleRate int, samples []float64) error {
	enc := wav.NewEncoder(w, sampleRate, 16, 1, 1)
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: 1,
			SampleRate:  sampleRate,
		},
		Data:           make([]int, len(samples)),
		SourceBitDepth: 16,
	}
	for i, s := range samples {
		buf.Data[i] = int(math.Round(clamp(s) * 32767))
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	return enc.Close()
}

// SaveWAV writes samples to a new file at path.
func SaveWAV(path string, sampleRate int, samples []float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteWAV(f, sampleRate, samples); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func clamp(s float64) float64 {
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}
