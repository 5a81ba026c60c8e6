// Package capture drives photo and video capture sessions over a camera and
// hands finished assets to the media service.
//
// Both sessions move through idle → streaming → capturing → staged →
// uploading → done. A failed upload returns to staged with the content kept
// so Send can be retried.
package capture

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/team-spoved/spoved/internal/device"
	"github.com/team-spoved/spoved/internal/model"
)

type State string

const (
	StateIdle      State = "idle"
	StateStreaming State = "streaming"
	StateCapturing State = "capturing"
	StateStaged    State = "staged"
	StateUploading State = "uploading"
	StateDone      State = "done"
)

var (
	// ErrPermissionDenied is returned when camera access is refused.
	ErrPermissionDenied = device.ErrPermissionDenied
	ErrNothingStaged    = errors.New("capture: nothing to send")
	ErrNoCamera         = errors.New("capture: no camera available")
)

// InvalidStateError reports an action attempted in the wrong state.
type InvalidStateError struct {
	Action string
	State  State
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("capture: cannot %s while %s", e.Action, e.State)
}

// Uploader creates one media asset per call. *client.MediaClient satisfies it.
type Uploader interface {
	Create(ctx context.Context, up model.MediaUpload) (*model.Media, error)
}

type Option func(*options)

type options struct {
	log    zerolog.Logger
	now    func() time.Time
	onDone func([]*model.Media)
}

func WithLogger(l zerolog.Logger) Option { return func(o *options) { o.log = l } }

func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }

// OnDone is called once after a successful Send with the created media.
func OnDone(fn func([]*model.Media)) Option { return func(o *options) { o.onDone = fn } }

func buildOptions(component string, opts []Option) options {
	o := options{log: zerolog.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	o.log = o.log.With().Str("component", component).Logger()
	return o
}

// camera owns the live stream of one session. Only one stream is held at a
// time; every switch stops the old tracks before opening new ones.
type camera struct {
	dev    device.Camera
	log    zerolog.Logger
	prefer func([]device.Info) string

	stream   device.VideoStream
	devices  []device.Info
	selected string
}

func (c *camera) start(ctx context.Context) error {
	s, err := c.dev.Open(ctx, device.CameraConstraints{DeviceID: c.selected, Facing: device.FacingEnvironment})
	if err != nil {
		return openErr(err)
	}
	c.stream = s

	devs, err := c.dev.Devices(ctx)
	if err != nil {
		c.stop()
		return fmt.Errorf("capture: enumerate devices: %w", err)
	}
	c.devices = videoInputs(devs)
	if len(c.devices) == 0 {
		c.stop()
		return ErrNoCamera
	}
	if c.selected == "" {
		c.selected = c.prefer(c.devices)
	}
	if s.DeviceID() != c.selected {
		return c.bind(ctx, c.selected)
	}
	c.log.Debug().Str("device", c.selected).Msg("camera started")
	return nil
}

func (c *camera) bind(ctx context.Context, id string) error {
	c.stop()
	s, err := c.dev.Open(ctx, device.CameraConstraints{DeviceID: id})
	if err != nil {
		return openErr(err)
	}
	c.stream = s
	c.selected = id
	c.log.Debug().Str("device", id).Msg("camera bound")
	return nil
}

func (c *camera) stop() {
	if c.stream != nil {
		c.stream.Stop()
		c.stream = nil
	}
}

func openErr(err error) error {
	if errors.Is(err, device.ErrPermissionDenied) {
		return fmt.Errorf("camera access denied: %w", err)
	}
	return fmt.Errorf("failed to access camera: %w", err)
}

func videoInputs(devs []device.Info) []device.Info {
	out := make([]device.Info, 0, len(devs))
	for _, d := range devs {
		if d.Kind == device.KindVideoInput {
			out = append(out, d)
		}
	}
	return out
}

func firstDevice(devs []device.Info) string {
	return devs[0].ID
}

// backFirst prefers a rear camera by label, then by facing.
func backFirst(devs []device.Info) string {
	for _, d := range devs {
		if strings.Contains(strings.ToLower(d.Label), "back") {
			return d.ID
		}
	}
	for _, d := range devs {
		if d.Facing == device.FacingEnvironment {
			return d.ID
		}
	}
	return devs[0].ID
}

// session holds what photo and video sessions share.
type session struct {
	mu    sync.Mutex
	state State
	cam   camera
	up    Uploader
	opts  options
}

func (s *session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Devices returns the video inputs found at Start.
func (s *session) Devices() []device.Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]device.Info(nil), s.cam.devices...)
}

func (s *session) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cam.selected
}

// Start acquires the camera. A previously selected device is reused.
func (s *session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle && s.state != StateDone {
		return &InvalidStateError{"start", s.state}
	}
	if err := s.cam.start(ctx); err != nil {
		s.opts.log.Warn().Err(err).Msg("camera start failed")
		return err
	}
	s.state = StateStreaming
	return nil
}

// SwitchDevice rebinds the preview to id, stopping the old stream first.
func (s *session) SwitchDevice(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateStreaming, StateStaged:
	default:
		return &InvalidStateError{"switch camera", s.state}
	}
	if err := s.cam.bind(ctx, id); err != nil {
		s.state = StateIdle
		return err
	}
	return nil
}

// Close releases the camera.
func (s *session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cam.stop()
	if s.state != StateDone {
		s.state = StateIdle
	}
}

// finish stops the camera and marks the session done. The caller invokes
// the done callback after releasing mu.
func (s *session) finish() {
	s.cam.stop()
	s.state = StateDone
}

func (s *session) notifyDone(media []*model.Media) {
	if s.opts.onDone != nil {
		s.opts.onDone(media)
	}
}

func extFor(mime string) string {
	switch {
	case strings.HasPrefix(mime, "image/png"):
		return ".png"
	case strings.HasPrefix(mime, "image/jpeg"):
		return ".jpg"
	case strings.HasPrefix(mime, "image/webp"):
		return ".webp"
	case strings.HasPrefix(mime, "video/mp4"):
		return ".mp4"
	case strings.HasPrefix(mime, "video/webm"):
		return ".webm"
	}
	return ""
}
