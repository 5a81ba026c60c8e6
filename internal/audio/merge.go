package audio

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrNoSegments      = errors.New("audio: no segments to merge")
	ErrArchiveTooLarge = errors.New("audio: merged recording exceeds the size limit")
)

type Role string

const (
	RoleUser   Role = "user"
	RoleSystem Role = "system"
)

// Segment is one recorded utterance or synthesized reply.
type Segment struct {
	Role Role
	At   time.Time
	Data []byte
}

// Clip is a merged recording ready for upload.
type Clip struct {
	Data       []byte
	SampleRate int
	Samples    int
}

func (c *Clip) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(c.Samples) * time.Second / time.Duration(c.SampleRate)
}

// CheckSize returns ErrArchiveTooLarge when the clip is bigger than max bytes.
// A max of zero disables the check.
func (c *Clip) CheckSize(max int) error {
	if max > 0 && len(c.Data) > max {
		return fmt.Errorf("%w: %d > %d bytes", ErrArchiveTooLarge, len(c.Data), max)
	}
	return nil
}

// MergeAndEncode decodes every segment, resamples it to targetRate and
// concatenates the samples in the given order into one mono 16-bit WAV.
// Segments already at targetRate are copied sample for sample.
func MergeAndEncode(segments []Segment, targetRate int) (*Clip, error) {
	if len(segments) == 0 {
		return nil, ErrNoSegments
	}
	if targetRate <= 0 {
		return nil, fmt.Errorf("audio: invalid target rate %d", targetRate)
	}
	var merged []int16
	for i, seg := range segments {
		pcm, err := Decode(seg.Data)
		if err != nil {
			return nil, fmt.Errorf("segment %d (%s): %w", i, seg.Role, err)
		}
		merged = append(merged, Resample(pcm.Samples, pcm.SampleRate, targetRate)...)
	}
	data, err := EncodeWAV(merged, targetRate)
	if err != nil {
		return nil, err
	}
	return &Clip{Data: data, SampleRate: targetRate, Samples: len(merged)}, nil
}

// Resample converts samples between rates by linear interpolation.
func Resample(samples []int16, fromRate, toRate int) []int16 {
	if fromRate == toRate || len(samples) == 0 || fromRate <= 0 || toRate <= 0 {
		return samples
	}
	ratio := float64(fromRate) / float64(toRate)
	n := int(float64(len(samples)) / ratio)
	out := make([]int16, n)
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := pos - float64(idx)
		a, b := float64(samples[idx]), float64(samples[idx+1])
		out[i] = int16(a + frac*(b-a))
	}
	return out
}

// Level is the RMS amplitude of samples in [0, 1].
func Level(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s) / math.MaxInt16
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}
