package capture

import (
	"context"
	"fmt"
	"time"

	"github.com/team-spoved/spoved/internal/device"
	"github.com/team-spoved/spoved/internal/model"
)

// VideoFilename names an uploaded clip after the local time it was sent.
func VideoFilename(t time.Time) string {
	return fmt.Sprintf("video-%02d-%02d-%02d-%02d-%d.webm",
		t.Hour(), t.Minute(), t.Day(), int(t.Month()), t.Year())
}

// VideoSession records one clip from the live preview and uploads it.
type VideoSession struct {
	session
	rec  device.Recorder
	clip *device.Media
}

func NewVideoSession(cam device.Camera, up Uploader, opts ...Option) *VideoSession {
	o := buildOptions("capture.video", opts)
	return &VideoSession{session: session{
		state: StateIdle,
		cam:   camera{dev: cam, log: o.log, prefer: backFirst},
		up:    up,
		opts:  o,
	}}
}

func (v *VideoSession) StartRecording(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state != StateStreaming {
		return &InvalidStateError{"start recording", v.state}
	}
	rec, err := v.cam.stream.Record(ctx)
	if err != nil {
		return fmt.Errorf("failed to record video: %w", err)
	}
	v.rec = rec
	v.clip = nil
	v.state = StateCapturing
	return nil
}

// StopRecording finalizes the clip and stages it for preview and upload.
func (v *VideoSession) StopRecording() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state != StateCapturing {
		return &InvalidStateError{"stop recording", v.state}
	}
	clip, err := v.rec.Stop()
	v.rec = nil
	if err != nil {
		v.state = StateStreaming
		return fmt.Errorf("failed to record video: %w", err)
	}
	if len(clip.Data) == 0 {
		v.state = StateStreaming
		return ErrNothingStaged
	}
	if clip.MIME == "" {
		clip.MIME = "video/webm"
	}
	v.clip = &clip
	v.state = StateStaged
	v.opts.log.Debug().Int("bytes", len(clip.Data)).Msg("clip staged")
	return nil
}

// Clip returns the staged recording, or nil.
func (v *VideoSession) Clip() *device.Media {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.clip == nil {
		return nil
	}
	c := *v.clip
	return &c
}

// ReRecord discards the staged clip and restarts the selected camera.
func (v *VideoSession) ReRecord(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state != StateStaged {
		return &InvalidStateError{"re-record", v.state}
	}
	v.clip = nil
	if err := v.cam.bind(ctx, v.cam.selected); err != nil {
		v.state = StateIdle
		return err
	}
	v.state = StateStreaming
	return nil
}

// Send uploads the staged clip in one request.
func (v *VideoSession) Send(ctx context.Context) (*model.Media, error) {
	v.mu.Lock()
	if v.state != StateStaged || v.clip == nil {
		st := v.state
		v.mu.Unlock()
		if st == StateStreaming {
			return nil, ErrNothingStaged
		}
		return nil, &InvalidStateError{"send", st}
	}
	v.state = StateUploading
	clip := *v.clip
	name := VideoFilename(v.opts.now())
	v.mu.Unlock()

	m, err := v.up.Create(ctx, model.MediaUpload{
		Filename:  name,
		MediaType: model.MediaTypeVideo,
		BlobType:  clip.MIME,
		Content:   clip.Data,
	})
	if err != nil {
		v.mu.Lock()
		v.state = StateStaged
		v.mu.Unlock()
		v.opts.log.Warn().Err(err).Str("file", name).Msg("video upload failed")
		return nil, fmt.Errorf("upload failed: %w", err)
	}

	v.mu.Lock()
	v.clip = nil
	v.finish()
	v.mu.Unlock()
	v.opts.log.Info().Int("media_id", m.MediaID).Str("file", name).Msg("video uploaded")
	v.notifyDone([]*model.Media{m})
	return m, nil
}

// Close stops any recording and releases the camera.
func (v *VideoSession) Close() {
	v.mu.Lock()
	if v.rec != nil {
		_, _ = v.rec.Stop()
		v.rec = nil
	}
	v.mu.Unlock()
	v.session.Close()
}
