package capture

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/team-spoved/spoved/internal/device"
	"github.com/team-spoved/spoved/internal/model"
)

// PhotoSession stages stills from the live preview and uploads them one
// request per photo.
type PhotoSession struct {
	session
	photos []device.Media
}

func NewPhotoSession(cam device.Camera, up Uploader, opts ...Option) *PhotoSession {
	o := buildOptions("capture.photo", opts)
	return &PhotoSession{session: session{
		state: StateIdle,
		cam:   camera{dev: cam, log: o.log, prefer: firstDevice},
		up:    up,
		opts:  o,
	}}
}

// Capture grabs the current frame and appends it to the staged photos.
func (p *PhotoSession) Capture(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateStreaming && p.state != StateStaged {
		return &InvalidStateError{"take a photo", p.state}
	}
	prev := p.state
	p.state = StateCapturing
	frame, err := p.cam.stream.Frame(ctx)
	if err != nil {
		p.state = prev
		return fmt.Errorf("capture frame: %w", err)
	}
	p.photos = append(p.photos, frame)
	p.state = StateStaged
	p.opts.log.Debug().Int("staged", len(p.photos)).Msg("photo captured")
	return nil
}

// Photos returns the staged stills.
func (p *PhotoSession) Photos() []device.Media {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]device.Media(nil), p.photos...)
}

// Clear drops the staged photos and keeps streaming.
func (p *PhotoSession) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.photos = nil
	if p.state == StateStaged {
		p.state = StateStreaming
	}
}

// Send uploads every staged photo. Photos already uploaded are removed from
// the staged list, so after a failure a retry sends only the rest.
func (p *PhotoSession) Send(ctx context.Context) ([]*model.Media, error) {
	p.mu.Lock()
	if p.state != StateStaged {
		st := p.state
		p.mu.Unlock()
		if st == StateStreaming {
			return nil, ErrNothingStaged
		}
		return nil, &InvalidStateError{"send", st}
	}
	p.state = StateUploading
	pending := append([]device.Media(nil), p.photos...)
	p.mu.Unlock()

	var created []*model.Media
	for i, photo := range pending {
		m, err := p.up.Create(ctx, model.MediaUpload{
			Filename:  "photo-" + uuid.NewString() + extFor(photo.MIME),
			MediaType: model.MediaTypePhoto,
			BlobType:  photo.MIME,
			Content:   photo.Data,
		})
		if err != nil {
			p.mu.Lock()
			p.photos = pending[i:]
			p.state = StateStaged
			p.mu.Unlock()
			p.opts.log.Warn().Err(err).Int("remaining", len(pending)-i).Msg("photo upload failed")
			return created, fmt.Errorf("upload failed: %w", err)
		}
		created = append(created, m)
	}

	p.mu.Lock()
	p.photos = nil
	p.finish()
	p.mu.Unlock()
	p.opts.log.Info().Int("count", len(created)).Msg("photos uploaded")
	p.notifyDone(created)
	return created, nil
}
