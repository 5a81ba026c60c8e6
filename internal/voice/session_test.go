package voice

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/team-spoved/spoved/internal/audio"
	"github.com/team-spoved/spoved/internal/client"
	"github.com/team-spoved/spoved/internal/device"
	"github.com/team-spoved/spoved/internal/model"
)

const phrase = "I am creating a ticket for you"

func speech(t *testing.T, n, rate int) []byte {
	t.Helper()
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16(8000 * math.Sin(float64(i)/4))
	}
	b, err := audio.EncodeWAV(samples, rate)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}
	return b
}

func loudSamples(n int) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(12000 * math.Sin(float64(i)/3))
	}
	return out
}

type fakeAssistant struct {
	t       *testing.T
	replies []string
	sttErr  error
	block   chan struct{}

	mu      sync.Mutex
	blobs   [][]byte
	prompts []string
	history []string
	turn    int
}

func (f *fakeAssistant) SpeechToText(ctx context.Context, blob []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blobs = append(f.blobs, blob)
	if f.sttErr != nil {
		return "", f.sttErr
	}
	return "the heater in room 12 is broken", nil
}

func (f *fakeAssistant) QueryAI(ctx context.Context, prompt, history string) (*client.QueryAIResponse, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	f.history = append(f.history, history)
	reply := "Can you tell me more?"
	if f.turn < len(f.replies) {
		reply = f.replies[f.turn]
	}
	f.turn++
	return &client.QueryAIResponse{Response: reply, UpdatedHistory: "h" + string(rune('0'+f.turn))}, nil
}

func (f *fakeAssistant) TextToSpeech(ctx context.Context, text string) ([]byte, error) {
	return speech(f.t, 2400, 24000), nil
}

type fakeArchiver struct {
	err error

	mu      sync.Mutex
	uploads []model.MediaUpload
}

func (f *fakeArchiver) Create(ctx context.Context, up model.MediaUpload) (*model.Media, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, up)
	if f.err != nil {
		return nil, f.err
	}
	return &model.Media{MediaID: 99, MediaType: up.MediaType}, nil
}

func (f *fakeArchiver) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.uploads)
}

type gatedPlayer struct {
	release chan struct{}
	mu      sync.Mutex
	plays   int
}

func (p *gatedPlayer) Play(ctx context.Context, clip []byte) error {
	p.mu.Lock()
	p.plays++
	p.mu.Unlock()
	if p.release == nil {
		return nil
	}
	select {
	case <-p.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type recorder struct {
	mu       sync.Mutex
	states   []State
	errs     []error
	quiet    int
	complete chan result
	changed  chan State
}

type result struct {
	media *model.Media
	err   error
}

func newRecorder() *recorder {
	return &recorder{complete: make(chan result, 4), changed: make(chan State, 64)}
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		OnState: func(st State) {
			r.mu.Lock()
			r.states = append(r.states, st)
			r.mu.Unlock()
			r.changed <- st
		},
		OnError: func(err error) {
			r.mu.Lock()
			r.errs = append(r.errs, err)
			r.mu.Unlock()
		},
		OnQuietInput: func() {
			r.mu.Lock()
			r.quiet++
			r.mu.Unlock()
		},
		OnComplete: func(m *model.Media, err error) { r.complete <- result{m, err} },
	}
}

func (r *recorder) waitFor(t *testing.T, st State) {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case got := <-r.changed:
			if got == st {
				return
			}
		case <-timeout:
			t.Fatalf("timed out waiting for state %s", st)
		}
	}
}

func testConfig() Config {
	return Config{
		MaxRecording:     10 * time.Second,
		CompletionPhrase: phrase,
		ArchiveRate:      16000,
		ArchiveMaxBytes:  10 << 20,
		QuietLevel:       0.02,
	}
}

func runTurn(t *testing.T, s *Session) *Turn {
	t.Helper()
	turn, err := s.StartRecording(context.Background())
	if err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := turn.Wait(ctx); err != nil {
		t.Fatalf("turn: %v", err)
	}
	return turn
}

func TestTurnPipeline(t *testing.T) {
	mic := &device.PCMMicrophone{Samples: loudSamples(8000), Rate: 16000}
	ai := &fakeAssistant{t: t}
	arch := &fakeArchiver{}
	rec := newRecorder()
	s := NewSession(mic, &gatedPlayer{}, ai, arch, testConfig(), rec.callbacks())

	turn := runTurn(t, s)
	rec.waitFor(t, StateIdle)

	if turn.Transcript() != "the heater in room 12 is broken" || turn.Reply() != "Can you tell me more?" {
		t.Errorf("turn = %q / %q", turn.Transcript(), turn.Reply())
	}
	msgs := s.Messages()
	if len(msgs) != 2 || msgs[0].Role != audio.RoleUser || msgs[1].Role != audio.RoleSystem {
		t.Fatalf("messages = %+v", msgs)
	}
	if s.History() != "h1" {
		t.Errorf("history = %q", s.History())
	}
	want := []State{StateRecording, StateTranscribing, StateQuerying, StateSynthesizing, StatePlaying, StateIdle}
	rec.mu.Lock()
	got := append([]State(nil), rec.states...)
	rec.mu.Unlock()
	if len(got) != len(want) {
		t.Fatalf("states = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("states = %v, want %v", got, want)
		}
	}
	if s.Completed() || arch.count() != 0 {
		t.Error("no completion phrase, nothing should be archived")
	}

	// The history token from the first reply goes out with the second turn.
	runTurn(t, s)
	if ai.history[1] != "h1" {
		t.Errorf("second turn history = %q", ai.history[1])
	}
}

func TestStartWhileBusyIsNoop(t *testing.T) {
	mic := &device.PCMMicrophone{Samples: loudSamples(1600), Rate: 16000}
	player := &gatedPlayer{release: make(chan struct{})}
	rec := newRecorder()
	s := NewSession(mic, player, &fakeAssistant{t: t}, &fakeArchiver{}, testConfig(), rec.callbacks())

	turn, err := s.StartRecording(context.Background())
	if err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	rec.waitFor(t, StatePlaying)

	if _, err := s.StartRecording(context.Background()); !errors.Is(err, ErrBusy) {
		t.Fatalf("err = %v, want ErrBusy", err)
	}
	if mic.Opens() != 1 {
		t.Errorf("microphone acquired %d times", mic.Opens())
	}
	if s.State() != StatePlaying {
		t.Errorf("state = %s", s.State())
	}

	close(player.release)
	if err := turn.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	rec.waitFor(t, StateIdle)
	if _, err := s.StartRecording(context.Background()); err != nil {
		t.Errorf("start after idle: %v", err)
	}
}

func TestArchiveAfterCompletionPhrase(t *testing.T) {
	mic := &device.PCMMicrophone{Samples: loudSamples(16000), Rate: 16000}
	ai := &fakeAssistant{t: t, replies: []string{
		"Which room is it?",
		"Thanks. i am creating a ticket for you now.",
	}}
	arch := &fakeArchiver{}
	rec := newRecorder()
	s := NewSession(mic, &gatedPlayer{}, ai, arch, testConfig(), rec.callbacks())

	runTurn(t, s)
	rec.waitFor(t, StateIdle)
	if arch.count() != 0 {
		t.Fatal("archived before the completion phrase")
	}

	runTurn(t, s)
	var res result
	select {
	case res = <-rec.complete:
	case <-time.After(5 * time.Second):
		t.Fatal("OnComplete not called")
	}
	if res.err != nil || res.media == nil || res.media.MediaID != 99 {
		t.Fatalf("complete = %+v", res)
	}
	if !s.Completed() {
		t.Error("session not marked completed")
	}
	if arch.count() != 1 {
		t.Fatalf("archive uploads = %d, want 1", arch.count())
	}
	up := arch.uploads[0]
	if up.MediaType != model.MediaTypeAudio || up.BlobType != "audio/wav" {
		t.Errorf("upload = %+v", up)
	}
	pcm, err := audio.Decode(up.Content)
	if err != nil {
		t.Fatalf("decode archive: %v", err)
	}
	// Two user recordings of 1s plus two 0.1s replies resampled from 24kHz.
	if pcm.SampleRate != 16000 || len(pcm.Samples) != 2*16000+2*1600 {
		t.Errorf("archive rate %d samples %d", pcm.SampleRate, len(pcm.Samples))
	}

	rec.waitFor(t, StateIdle)
	if _, err := s.StartRecording(context.Background()); !errors.Is(err, ErrCompleted) {
		t.Errorf("start after completion: %v", err)
	}
	if arch.count() != 1 {
		t.Errorf("archive uploads = %d after completion", arch.count())
	}
}

func TestArchiveTooLargeIsSkipped(t *testing.T) {
	cfg := testConfig()
	cfg.ArchiveMaxBytes = 1000
	mic := &device.PCMMicrophone{Samples: loudSamples(16000), Rate: 16000}
	arch := &fakeArchiver{}
	rec := newRecorder()
	s := NewSession(mic, &gatedPlayer{}, &fakeAssistant{t: t, replies: []string{phrase}}, arch, cfg, rec.callbacks())

	runTurn(t, s)
	res := <-rec.complete
	if !errors.Is(res.err, audio.ErrArchiveTooLarge) || res.media != nil {
		t.Fatalf("complete = %+v", res)
	}
	if arch.count() != 0 {
		t.Error("oversize archive was uploaded")
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.errs) != 1 || !errors.Is(rec.errs[0], audio.ErrArchiveTooLarge) {
		t.Errorf("surfaced errors = %v", rec.errs)
	}
}

func TestArchiveUploadFailureIsSwallowed(t *testing.T) {
	mic := &device.PCMMicrophone{Samples: loudSamples(1600), Rate: 16000}
	arch := &fakeArchiver{err: errors.New("Create media failed: Bad Gateway")}
	rec := newRecorder()
	s := NewSession(mic, &gatedPlayer{}, &fakeAssistant{t: t, replies: []string{phrase}}, arch, testConfig(), rec.callbacks())

	runTurn(t, s)
	res := <-rec.complete
	if res.err == nil || res.media != nil {
		t.Fatalf("complete = %+v", res)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.errs) != 0 {
		t.Errorf("upload failure surfaced: %v", rec.errs)
	}
}

func TestNoSpeechDetected(t *testing.T) {
	mic := &device.PCMMicrophone{Samples: loudSamples(1600), Rate: 16000}
	rec := newRecorder()
	s := NewSession(mic, &gatedPlayer{}, &fakeAssistant{t: t, sttErr: client.ErrNoSpeech}, &fakeArchiver{}, testConfig(), rec.callbacks())

	turn, err := s.StartRecording(context.Background())
	if err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	if err := turn.Wait(context.Background()); !errors.Is(err, client.ErrNoSpeech) {
		t.Fatalf("err = %v, want ErrNoSpeech", err)
	}
	rec.waitFor(t, StateIdle)
	if len(s.Messages()) != 0 {
		t.Errorf("messages = %v", s.Messages())
	}
}

func TestEmptyRecording(t *testing.T) {
	mic := &device.PCMMicrophone{Rate: 16000}
	ai := &fakeAssistant{t: t}
	s := NewSession(mic, &gatedPlayer{}, ai, &fakeArchiver{}, testConfig(), Callbacks{})

	turn, err := s.StartRecording(context.Background())
	if err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	if err := turn.Wait(context.Background()); !errors.Is(err, ErrNoAudio) {
		t.Fatalf("err = %v, want ErrNoAudio", err)
	}
	if len(ai.blobs) != 0 {
		t.Error("empty recording was sent for transcription")
	}
}

func TestRecordingCeilingAndQuietWarning(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRecording = 2 * time.Second // clamped up to 5s
	mic := &device.PCMMicrophone{Samples: make([]int16, 10000), Rate: 1000, Chunk: 100}
	ai := &fakeAssistant{t: t}
	rec := newRecorder()
	s := NewSession(mic, &gatedPlayer{}, ai, &fakeArchiver{}, cfg, rec.callbacks())

	runTurn(t, s)
	pcm, err := audio.Decode(ai.blobs[0])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(pcm.Samples) != 5000 {
		t.Errorf("recorded %d samples, want 5000", len(pcm.Samples))
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.quiet != 1 {
		t.Errorf("quiet warnings = %d, want 1", rec.quiet)
	}
}

func TestClearIgnoresLateResults(t *testing.T) {
	mic := &device.PCMMicrophone{Samples: loudSamples(1600), Rate: 16000}
	ai := &fakeAssistant{t: t, block: make(chan struct{})}
	rec := newRecorder()
	s := NewSession(mic, &gatedPlayer{}, ai, &fakeArchiver{}, testConfig(), rec.callbacks())

	turn, err := s.StartRecording(context.Background())
	if err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	rec.waitFor(t, StateQuerying)
	s.Clear()
	close(ai.block)

	if err := turn.Wait(context.Background()); !errors.Is(err, ErrCleared) {
		t.Fatalf("err = %v, want ErrCleared", err)
	}
	if len(s.Messages()) != 0 || s.History() != "" || s.State() != StateIdle {
		t.Errorf("late result leaked: messages %v history %q state %s", s.Messages(), s.History(), s.State())
	}
}

func TestMicrophonePermissionDenied(t *testing.T) {
	s := NewSession(&device.PCMMicrophone{Denied: true}, &gatedPlayer{}, &fakeAssistant{t: t}, &fakeArchiver{}, testConfig(), Callbacks{})
	if _, err := s.StartRecording(context.Background()); !errors.Is(err, device.ErrPermissionDenied) {
		t.Fatalf("err = %v", err)
	}
	if s.State() != StateIdle {
		t.Errorf("state = %s", s.State())
	}
}
