package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/team-spoved/spoved/internal/audio"
)

// FileSource is a camera backed by files: Still is served for every frame
// and Clip for every finished recording.
type FileSource struct {
	ID     string
	Label  string
	Facing Facing
	Still  string
	Clip   string
}

// FileCamera serves frames and clips from disk. It stands in for real
// hardware on headless hosts and in tests.
type FileCamera struct {
	sources []FileSource

	mu   sync.Mutex
	open map[*fileStream]struct{}
}

func NewFileCamera(sources ...FileSource) *FileCamera {
	return &FileCamera{sources: sources, open: make(map[*fileStream]struct{})}
}

func (c *FileCamera) Devices(ctx context.Context) ([]Info, error) {
	out := make([]Info, 0, len(c.sources))
	for _, s := range c.sources {
		out = append(out, Info{ID: s.ID, Label: s.Label, Kind: KindVideoInput, Facing: s.Facing})
	}
	return out, nil
}

func (c *FileCamera) Open(ctx context.Context, cons CameraConstraints) (VideoStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src, err := c.pick(cons)
	if err != nil {
		return nil, err
	}
	for _, p := range []string{src.Still, src.Clip} {
		if p == "" {
			continue
		}
		if err := readable(p); err != nil {
			return nil, err
		}
	}
	s := &fileStream{cam: c, src: src, active: true}
	c.mu.Lock()
	c.open[s] = struct{}{}
	c.mu.Unlock()
	return s, nil
}

// OpenStreams is the number of streams not yet stopped.
func (c *FileCamera) OpenStreams() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.open)
}

func (c *FileCamera) pick(cons CameraConstraints) (FileSource, error) {
	if len(c.sources) == 0 {
		return FileSource{}, ErrNotFound
	}
	if cons.DeviceID != "" {
		for _, s := range c.sources {
			if s.ID == cons.DeviceID {
				return s, nil
			}
		}
		return FileSource{}, fmt.Errorf("%w: %s", ErrNotFound, cons.DeviceID)
	}
	if cons.Facing != FacingAny {
		for _, s := range c.sources {
			if s.Facing == cons.Facing {
				return s, nil
			}
		}
	}
	return c.sources[0], nil
}

type fileStream struct {
	cam *FileCamera
	src FileSource

	mu     sync.Mutex
	active bool
}

func (s *fileStream) DeviceID() string { return s.src.ID }

func (s *fileStream) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *fileStream) Frame(ctx context.Context) (Media, error) {
	if !s.Active() {
		return Media{}, ErrStopped
	}
	return readMedia(s.src.Still)
}

func (s *fileStream) Record(ctx context.Context) (Recorder, error) {
	if !s.Active() {
		return nil, ErrStopped
	}
	return &fileRecorder{stream: s}, nil
}

func (s *fileStream) Stop() {
	s.mu.Lock()
	s.active = false
	s.mu.Unlock()
	s.cam.mu.Lock()
	delete(s.cam.open, s)
	s.cam.mu.Unlock()
}

type fileRecorder struct {
	stream *fileStream
	once   sync.Once
}

func (r *fileRecorder) Stop() (Media, error) {
	m := Media{}
	err := errors.New("device: recorder already stopped")
	r.once.Do(func() {
		m, err = readMedia(r.stream.src.Clip)
	})
	return m, err
}

func readable(path string) error {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrPermission) {
		return fmt.Errorf("%w: %s", ErrPermissionDenied, path)
	}
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return err
	}
	return f.Close()
}

func readMedia(path string) (Media, error) {
	if path == "" {
		return Media{}, ErrNotFound
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Media{}, fmt.Errorf("device: read %s: %w", path, err)
	}
	return Media{Data: data, MIME: mimeOf(path)}, nil
}

var captureTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webm": "video/webm",
	".mp4":  "video/mp4",
	".wav":  "audio/wav",
	".mp3":  "audio/mpeg",
}

func mimeOf(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if t, ok := captureTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}

// WAVMicrophone streams a WAV file as if it were a live microphone.
type WAVMicrophone struct {
	Path string
	// Chunk is the duration of each Read; defaults to 100ms.
	Chunk time.Duration
	// Realtime paces reads to the wall clock.
	Realtime bool
}

func (m *WAVMicrophone) Open(ctx context.Context, c MicConstraints) (AudioStream, error) {
	if err := readable(m.Path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(m.Path)
	if err != nil {
		return nil, err
	}
	pcm, err := audio.Decode(data)
	if err != nil {
		return nil, err
	}
	samples := pcm.Samples
	rate := pcm.SampleRate
	if c.SampleRate > 0 && c.SampleRate != rate {
		samples = audio.Resample(samples, rate, c.SampleRate)
		rate = c.SampleRate
	}
	chunk := m.Chunk
	if chunk <= 0 {
		chunk = 100 * time.Millisecond
	}
	n := int(int64(rate) * int64(chunk) / int64(time.Second))
	if n < 1 {
		n = 1
	}
	return &pcmStream{samples: samples, rate: rate, chunk: n, every: chunk, realtime: m.Realtime}, nil
}

// PCMMicrophone serves fixed samples; each Open replays them from the start.
type PCMMicrophone struct {
	Samples []int16
	Rate    int
	Chunk   int
	// Denied makes Open fail with ErrPermissionDenied.
	Denied bool

	mu    sync.Mutex
	opens int
}

func (m *PCMMicrophone) Open(ctx context.Context, c MicConstraints) (AudioStream, error) {
	if m.Denied {
		return nil, ErrPermissionDenied
	}
	m.mu.Lock()
	m.opens++
	m.mu.Unlock()
	chunk := m.Chunk
	if chunk <= 0 {
		chunk = m.Rate / 10
	}
	if chunk <= 0 {
		chunk = 1
	}
	return &pcmStream{samples: m.Samples, rate: m.Rate, chunk: chunk}, nil
}

// Opens counts successful acquisitions.
func (m *PCMMicrophone) Opens() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opens
}

type pcmStream struct {
	samples  []int16
	rate     int
	chunk    int
	every    time.Duration
	realtime bool

	mu      sync.Mutex
	pos     int
	stopped bool
}

func (s *pcmStream) SampleRate() int { return s.rate }

func (s *pcmStream) Read(ctx context.Context) ([]int16, error) {
	if s.realtime {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.every):
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil, ErrStopped
	}
	if s.pos >= len(s.samples) {
		return nil, io.EOF
	}
	end := min(s.pos+s.chunk, len(s.samples))
	out := s.samples[s.pos:end]
	s.pos = end
	return out, nil
}

func (s *pcmStream) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
}
