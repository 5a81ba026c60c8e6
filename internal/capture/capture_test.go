package capture

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/team-spoved/spoved/internal/device"
	"github.com/team-spoved/spoved/internal/model"
)

type fakeUploader struct {
	mu      sync.Mutex
	uploads []model.MediaUpload
	failAt  map[int]bool
	calls   int
}

func (f *fakeUploader) Create(ctx context.Context, up model.MediaUpload) (*model.Media, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failAt[f.calls] {
		return nil, errors.New("Create media failed: Internal Server Error")
	}
	f.uploads = append(f.uploads, up)
	return &model.Media{MediaID: len(f.uploads), MediaType: up.MediaType, BlobType: up.BlobType}, nil
}

type deniedCamera struct{}

func (deniedCamera) Devices(ctx context.Context) ([]device.Info, error) { return nil, nil }

func (deniedCamera) Open(ctx context.Context, c device.CameraConstraints) (device.VideoStream, error) {
	return nil, device.ErrPermissionDenied
}

func testCamera(t *testing.T) *device.FileCamera {
	t.Helper()
	dir := t.TempDir()
	write := func(name, data string) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(data), 0o644); err != nil {
			t.Fatal(err)
		}
		return p
	}
	return device.NewFileCamera(
		device.FileSource{ID: "front", Label: "Front Camera", Facing: device.FacingUser,
			Still: write("front.jpg", "front-still"), Clip: write("front.webm", "front-clip")},
		device.FileSource{ID: "back", Label: "Back Camera", Facing: device.FacingEnvironment,
			Still: write("back.jpg", "back-still"), Clip: write("back.webm", "back-clip")},
	)
}

func TestPhotoSessionLifecycle(t *testing.T) {
	cam := testCamera(t)
	up := &fakeUploader{}
	var done []*model.Media
	p := NewPhotoSession(cam, up, OnDone(func(m []*model.Media) { done = m }))
	ctx := context.Background()

	if p.State() != StateIdle {
		t.Fatalf("initial state = %s", p.State())
	}
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if p.State() != StateStreaming || p.Selected() != "front" {
		t.Errorf("state %s selected %s", p.State(), p.Selected())
	}
	if len(p.Devices()) != 2 {
		t.Errorf("devices = %v", p.Devices())
	}
	if cam.OpenStreams() != 1 {
		t.Errorf("open streams after start = %d", cam.OpenStreams())
	}

	if _, err := p.Send(ctx); !errors.Is(err, ErrNothingStaged) {
		t.Errorf("send with nothing staged: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := p.Capture(ctx); err != nil {
			t.Fatalf("Capture: %v", err)
		}
	}
	if p.State() != StateStaged || len(p.Photos()) != 2 {
		t.Fatalf("state %s photos %d", p.State(), len(p.Photos()))
	}

	media, err := p.Send(ctx)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(media) != 2 || len(up.uploads) != 2 {
		t.Fatalf("media %d uploads %d", len(media), len(up.uploads))
	}
	for _, u := range up.uploads {
		if u.MediaType != model.MediaTypePhoto || string(u.Content) != "front-still" || u.BlobType != "image/jpeg" {
			t.Errorf("upload = %+v", u)
		}
		if !strings.HasPrefix(u.Filename, "photo-") || !strings.HasSuffix(u.Filename, ".jpg") {
			t.Errorf("filename = %s", u.Filename)
		}
	}
	if p.State() != StateDone || len(done) != 2 {
		t.Errorf("state %s done %d", p.State(), len(done))
	}
	if cam.OpenStreams() != 0 {
		t.Errorf("tracks left open: %d", cam.OpenStreams())
	}
}

func TestPhotoSendFailureKeepsStaged(t *testing.T) {
	cam := testCamera(t)
	up := &fakeUploader{failAt: map[int]bool{2: true}}
	called := false
	p := NewPhotoSession(cam, up, OnDone(func([]*model.Media) { called = true }))
	ctx := context.Background()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := p.Capture(ctx); err != nil {
			t.Fatalf("Capture: %v", err)
		}
	}

	media, err := p.Send(ctx)
	if err == nil {
		t.Fatal("expected upload error")
	}
	if len(media) != 1 {
		t.Errorf("created before failure = %d", len(media))
	}
	if p.State() != StateStaged || len(p.Photos()) != 2 {
		t.Errorf("state %s staged %d", p.State(), len(p.Photos()))
	}
	if called || cam.OpenStreams() != 1 {
		t.Error("failed send must not finish the session")
	}

	media, err = p.Send(ctx)
	if err != nil || len(media) != 2 {
		t.Fatalf("retry: %d, %v", len(media), err)
	}
	if len(up.uploads) != 3 || !called {
		t.Errorf("uploads %d done %v", len(up.uploads), called)
	}
}

func TestSwitchDeviceStopsOldStream(t *testing.T) {
	cam := testCamera(t)
	p := NewPhotoSession(cam, &fakeUploader{})
	ctx := context.Background()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := p.SwitchDevice(ctx, "back"); err != nil {
		t.Fatalf("SwitchDevice: %v", err)
	}
	if p.Selected() != "back" || cam.OpenStreams() != 1 {
		t.Errorf("selected %s open %d", p.Selected(), cam.OpenStreams())
	}
	if err := p.Capture(ctx); err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if got := string(p.Photos()[0].Data); got != "back-still" {
		t.Errorf("photo from %q", got)
	}
	p.Close()
	if cam.OpenStreams() != 0 || p.State() != StateIdle {
		t.Errorf("after Close: open %d state %s", cam.OpenStreams(), p.State())
	}

	// The previously selected device is reused on restart.
	if err := p.Start(ctx); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if p.Selected() != "back" {
		t.Errorf("restart selected %s", p.Selected())
	}
}

func TestPermissionDenied(t *testing.T) {
	p := NewPhotoSession(deniedCamera{}, &fakeUploader{})
	err := p.Start(context.Background())
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("err = %v, want ErrPermissionDenied", err)
	}
	if p.State() != StateIdle {
		t.Errorf("state = %s", p.State())
	}
	v := NewVideoSession(deniedCamera{}, &fakeUploader{})
	if err := v.Start(context.Background()); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("video err = %v", err)
	}
}

func TestVideoSessionLifecycle(t *testing.T) {
	cam := testCamera(t)
	up := &fakeUploader{}
	at := time.Date(2025, time.March, 7, 9, 5, 0, 0, time.UTC)
	var done []*model.Media
	v := NewVideoSession(cam, up,
		WithClock(func() time.Time { return at }),
		OnDone(func(m []*model.Media) { done = m }))
	ctx := context.Background()

	if err := v.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if v.Selected() != "back" {
		t.Errorf("selected = %s, want the back camera", v.Selected())
	}
	if err := v.StopRecording(); err == nil {
		t.Error("stop without recording should fail")
	}
	if err := v.StartRecording(ctx); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	if v.State() != StateCapturing {
		t.Errorf("state = %s", v.State())
	}
	if err := v.StopRecording(); err != nil {
		t.Fatalf("StopRecording: %v", err)
	}
	if c := v.Clip(); c == nil || string(c.Data) != "back-clip" {
		t.Fatalf("clip = %+v", c)
	}

	if err := v.ReRecord(ctx); err != nil {
		t.Fatalf("ReRecord: %v", err)
	}
	if v.Clip() != nil || v.State() != StateStreaming || cam.OpenStreams() != 1 {
		t.Errorf("after re-record: clip %v state %s open %d", v.Clip(), v.State(), cam.OpenStreams())
	}
	if err := v.StartRecording(ctx); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	if err := v.StopRecording(); err != nil {
		t.Fatalf("StopRecording: %v", err)
	}

	m, err := v.Send(ctx)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(up.uploads) != 1 {
		t.Fatalf("uploads = %d", len(up.uploads))
	}
	u := up.uploads[0]
	if u.Filename != "video-09-05-07-03-2025.webm" || u.MediaType != model.MediaTypeVideo || u.BlobType != "video/webm" {
		t.Errorf("upload = %+v", u)
	}
	if m.MediaID != 1 || len(done) != 1 || v.State() != StateDone || cam.OpenStreams() != 0 {
		t.Errorf("media %+v done %d state %s open %d", m, len(done), v.State(), cam.OpenStreams())
	}
}

func TestVideoSendFailureKeepsClip(t *testing.T) {
	cam := testCamera(t)
	up := &fakeUploader{failAt: map[int]bool{1: true}}
	v := NewVideoSession(cam, up)
	ctx := context.Background()
	if err := v.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := v.StartRecording(ctx); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	if err := v.StopRecording(); err != nil {
		t.Fatalf("StopRecording: %v", err)
	}
	if _, err := v.Send(ctx); err == nil {
		t.Fatal("expected upload error")
	}
	if v.State() != StateStaged || v.Clip() == nil || cam.OpenStreams() != 1 {
		t.Errorf("state %s clip %v open %d", v.State(), v.Clip(), cam.OpenStreams())
	}
	if _, err := v.Send(ctx); err != nil {
		t.Fatalf("retry: %v", err)
	}
}

func TestVideoFilename(t *testing.T) {
	got := VideoFilename(time.Date(2024, time.December, 31, 23, 59, 0, 0, time.UTC))
	if got != "video-23-59-31-12-2024.webm" {
		t.Errorf("VideoFilename = %s", got)
	}
}

func TestInvalidStateError(t *testing.T) {
	v := NewVideoSession(testCamera(t), &fakeUploader{})
	err := v.StartRecording(context.Background())
	var ise *InvalidStateError
	if !errors.As(err, &ise) || ise.State != StateIdle {
		t.Fatalf("err = %v", err)
	}
}
