package audio

import (
	"bytes"
	"errors"
	"math"
	"testing"
)

func tone(n int, amp float64) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(amp * math.MaxInt16 * math.Sin(float64(i)/8))
	}
	return out
}

func mustEncode(t *testing.T, samples []int16, rate int) []byte {
	t.Helper()
	b, err := EncodeWAV(samples, rate)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}
	return b
}

func le16(samples []int16) []byte {
	out := make([]byte, 0, len(samples)*2)
	for _, s := range samples {
		out = append(out, byte(s), byte(s>>8))
	}
	return out
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := tone(1600, 0.5)
	pcm, err := Decode(mustEncode(t, in, 16000))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if pcm.SampleRate != 16000 || len(pcm.Samples) != len(in) {
		t.Fatalf("rate %d len %d", pcm.SampleRate, len(pcm.Samples))
	}
	for i := range in {
		if pcm.Samples[i] != in[i] {
			t.Fatalf("sample %d = %d, want %d", i, pcm.Samples[i], in[i])
		}
	}
}

func TestDecodeRejectsNonWAV(t *testing.T) {
	if _, err := Decode([]byte("OggS not a wav")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestMergeZeroSegmentsFails(t *testing.T) {
	if _, err := MergeAndEncode(nil, 16000); !errors.Is(err, ErrNoSegments) {
		t.Fatalf("err = %v, want ErrNoSegments", err)
	}
}

func TestMergeAtTargetRateConcatenates(t *testing.T) {
	a := tone(800, 0.3)
	b := tone(1200, 0.7)
	c := tone(10, 0.1)
	segs := []Segment{
		{Role: RoleUser, Data: mustEncode(t, a, 16000)},
		{Role: RoleSystem, Data: mustEncode(t, b, 16000)},
		{Role: RoleUser, Data: mustEncode(t, c, 16000)},
	}
	clip, err := MergeAndEncode(segs, 16000)
	if err != nil {
		t.Fatalf("MergeAndEncode: %v", err)
	}
	all := append(append(append([]int16{}, a...), b...), c...)
	if clip.Samples != len(all) {
		t.Errorf("samples = %d, want %d", clip.Samples, len(all))
	}
	if !bytes.HasSuffix(clip.Data, le16(all)) {
		t.Error("merged data chunk is not the concatenation of the inputs")
	}
	if !bytes.Equal(clip.Data, mustEncode(t, all, 16000)) {
		t.Error("merged clip differs from encoding the concatenated samples")
	}
}

func TestMergeResamplesAndMixesDown(t *testing.T) {
	stereo := make([]int16, 4800*2)
	for i := 0; i < 4800; i++ {
		stereo[2*i] = 1000
		stereo[2*i+1] = 3000
	}
	segs := []Segment{
		{Role: RoleUser, Data: mustEncode(t, tone(8000, 0.2), 8000)},
		{Role: RoleSystem, Data: mustEncode(t, tone(48000, 0.2), 48000)},
	}
	clip, err := MergeAndEncode(segs, 16000)
	if err != nil {
		t.Fatalf("MergeAndEncode: %v", err)
	}
	if clip.Samples != 16000+16000 {
		t.Errorf("samples = %d, want 32000", clip.Samples)
	}
	if d := clip.Duration().Seconds(); d != 2 {
		t.Errorf("duration = %vs", d)
	}
	if got := Mixdown(stereo, 2); len(got) != 4800 || got[0] != 2000 {
		t.Errorf("mixdown len %d first %d", len(got), got[0])
	}
}

func TestMergeFailsOnUndecodableSegment(t *testing.T) {
	segs := []Segment{
		{Role: RoleUser, Data: mustEncode(t, tone(100, 0.2), 16000)},
		{Role: RoleSystem, Data: []byte("ID3 mp3 data")},
	}
	if _, err := MergeAndEncode(segs, 16000); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestCheckSize(t *testing.T) {
	clip := &Clip{Data: make([]byte, 100)}
	if err := clip.CheckSize(100); err != nil {
		t.Errorf("at limit: %v", err)
	}
	if err := clip.CheckSize(99); !errors.Is(err, ErrArchiveTooLarge) {
		t.Errorf("over limit: %v", err)
	}
	if err := clip.CheckSize(0); err != nil {
		t.Errorf("disabled: %v", err)
	}
}

func TestResample(t *testing.T) {
	same := []int16{1, 2, 3}
	if got := Resample(same, 16000, 16000); len(got) != 3 || got[2] != 3 {
		t.Errorf("same rate = %v", got)
	}
	if got := Resample(make([]int16, 960), 48000, 16000); len(got) != 320 {
		t.Errorf("downsample len = %d", len(got))
	}
	if got := Resample(nil, 8000, 16000); len(got) != 0 {
		t.Errorf("empty = %v", got)
	}
}

func TestLevel(t *testing.T) {
	if Level(nil) != 0 || Level(make([]int16, 10)) != 0 {
		t.Error("silence should have level 0")
	}
	full := []int16{math.MaxInt16, math.MaxInt16}
	if l := Level(full); l < 0.999 || l > 1.001 {
		t.Errorf("full-scale level = %v", l)
	}
	if Level(tone(1000, 0.5)) <= Level(tone(1000, 0.01)) {
		t.Error("louder tone should have a higher level")
	}
}
