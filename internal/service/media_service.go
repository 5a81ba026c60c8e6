package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/team-spoved/spoved/internal/errs"
	"github.com/team-spoved/spoved/internal/model"
)

type MediaServicer interface {
	Create(ctx context.Context, up model.MediaUpload) (*model.Media, error)
	List(ctx context.Context) ([]model.Media, error)
	GetByID(ctx context.Context, id int) (*model.Media, error)
	ListUnanalyzed(ctx context.Context) ([]model.Media, error)
	SetAnalyzed(ctx context.Context, id int, analyzed bool) (*model.Media, error)
	SetResult(ctx context.Context, id int, result string) (*model.Media, error)
	SetReason(ctx context.Context, id int, reason string) (*model.Media, error)
}

type MediaService struct {
	db  *gorm.DB
	log zerolog.Logger
}

func NewMediaService(db *gorm.DB, log zerolog.Logger) *MediaService {
	return &MediaService{
		db:  db,
		log: log.With().Str("component", "service.media").Logger(),
	}
}

func (s *MediaService) Create(ctx context.Context, up model.MediaUpload) (*model.Media, error) {
	mt, err := model.ParseMediaType(string(up.MediaType))
	if err != nil {
		return nil, invalid(err)
	}
	if len(up.Content) == 0 {
		return nil, invalid(errors.New("file is empty"))
	}
	m := &model.Media{MediaType: mt, Content: up.Content, BlobType: up.BlobType}
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	s.log.Info().Int("media_id", m.MediaID).Str("type", string(m.MediaType)).Int("bytes", len(m.Content)).Msg("media stored")
	return m, nil
}

func (s *MediaService) List(ctx context.Context) ([]model.Media, error) {
	items := []model.Media{}
	if err := s.db.WithContext(ctx).Order("media_id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// ListUnanalyzed returns assets the automation has not processed yet.
func (s *MediaService) ListUnanalyzed(ctx context.Context) ([]model.Media, error) {
	items := []model.Media{}
	if err := s.db.WithContext(ctx).Where("analyzed = ?", false).Order("media_id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *MediaService) GetByID(ctx context.Context, id int) (*model.Media, error) {
	var m model.Media
	if err := s.db.WithContext(ctx).First(&m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrMediaNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (s *MediaService) SetAnalyzed(ctx context.Context, id int, analyzed bool) (*model.Media, error) {
	return s.set(ctx, id, "analyzed", analyzed)
}

func (s *MediaService) SetResult(ctx context.Context, id int, result string) (*model.Media, error) {
	return s.set(ctx, id, "result", result)
}

func (s *MediaService) SetReason(ctx context.Context, id int, reason string) (*model.Media, error) {
	return s.set(ctx, id, "reason", reason)
}

func (s *MediaService) set(ctx context.Context, id int, column string, value any) (*model.Media, error) {
	m, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	// Update with a single column so false and "" are written.
	if err := s.db.WithContext(ctx).Model(m).Update(column, value).Error; err != nil {
		return nil, err
	}
	s.log.Debug().Int("media_id", id).Str("field", column).Msg("media updated")
	return s.GetByID(ctx, id)
}
