package client

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/team-spoved/spoved/internal/automation"
	"github.com/team-spoved/spoved/internal/model"
)

type MediaClient struct {
	rest
	hook *automation.Client
}

// Create uploads one asset as multipart/form-data. After a successful upload
// the automation webhook is fired; its failure is logged and does not affect
// the returned media.
func (c *MediaClient) Create(ctx context.Context, up model.MediaUpload) (*model.Media, error) {
	if len(up.Content) == 0 {
		return nil, fmt.Errorf("Create media: empty content")
	}
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	filename := up.Filename
	if filename == "" {
		filename = "upload"
	}
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("Create media failed: %w", err)
	}
	if _, err := part.Write(up.Content); err != nil {
		return nil, fmt.Errorf("Create media failed: %w", err)
	}
	if err := w.WriteField("mediaType", string(up.MediaType)); err != nil {
		return nil, fmt.Errorf("Create media failed: %w", err)
	}
	if err := w.WriteField("blobType", up.BlobType); err != nil {
		return nil, fmt.Errorf("Create media failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("Create media failed: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/media", nil, &buf, w.FormDataContentType())
	if err != nil {
		return nil, fmt.Errorf("Create media failed: %w", err)
	}
	var m model.Media
	if err := c.do(req, "Create media", &m); err != nil {
		return nil, err
	}

	if err := c.hook.MediaUploaded(ctx, &m, c.sess.userID(), c.sess.token()); err != nil {
		c.log.Warn().Err(err).Int("media_id", m.MediaID).Msg("automation trigger failed; upload kept")
	}
	return &m, nil
}

func (c *MediaClient) List(ctx context.Context) ([]model.Media, error) {
	var media []model.Media
	if err := c.doJSON(ctx, "List media", http.MethodGet, "/media", nil, nil, &media); err != nil {
		return nil, err
	}
	return media, nil
}

func (c *MediaClient) Get(ctx context.Context, id int) (*model.Media, error) {
	var m model.Media
	if err := c.doJSON(ctx, "Get media", http.MethodGet, idPath("/media", id), nil, nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *MediaClient) UpdateAnalyzed(ctx context.Context, id int, analyzed bool) (*model.Media, error) {
	var m model.Media
	if err := c.doJSON(ctx, "Update analyzed", http.MethodPut, idPath("/media", id)+"/analyzed", nil, analyzed, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *MediaClient) UpdateResult(ctx context.Context, id int, result string) (*model.Media, error) {
	return c.putText(ctx, "Update result", idPath("/media", id)+"/result", result)
}

func (c *MediaClient) UpdateReason(ctx context.Context, id int, reason string) (*model.Media, error) {
	return c.putText(ctx, "Update reason", idPath("/media", id)+"/reason", reason)
}

func (c *MediaClient) putText(ctx context.Context, op, path, text string) (*model.Media, error) {
	req, err := c.newRequest(ctx, http.MethodPut, path, nil, strings.NewReader(text), "text/plain; charset=utf-8")
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w", op, err)
	}
	var m model.Media
	if err := c.do(req, op, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// MediaLabel renders "#<id> <type>" for log lines and tables.
func MediaLabel(m *model.Media) string {
	return "#" + strconv.Itoa(m.MediaID) + " " + string(m.MediaType)
}
