package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/team-spoved/spoved/internal/errs"
	"github.com/team-spoved/spoved/internal/events"
	"github.com/team-spoved/spoved/internal/model"
)

// TicketServicer is what the HTTP handlers depend on.
type TicketServicer interface {
	Create(ctx context.Context, req model.CreateTicketRequest) (*model.Ticket, error)
	GetByID(ctx context.Context, id int) (*model.Ticket, error)
	List(ctx context.Context, f model.TicketFilter) ([]model.Ticket, error)
	Assign(ctx context.Context, id, userID int) (*model.Ticket, error)
	UpdateStatus(ctx context.Context, id int, status model.TicketStatus) (*model.Ticket, error)
	Update(ctx context.Context, id int, req model.UpdateTicketRequest) (*model.Ticket, error)
}

type TicketService struct {
	db     *gorm.DB
	events events.TicketPublisher
	log    zerolog.Logger
	now    func() time.Time
}

func NewTicketService(db *gorm.DB, pub events.TicketPublisher, log zerolog.Logger) *TicketService {
	return &TicketService{
		db:     db,
		events: pub,
		log:    log.With().Str("component", "service.tickets").Logger(),
		now:    time.Now,
	}
}

func invalid(err error) error {
	return fmt.Errorf("%w: %v", errs.ErrInvalidArgument, err)
}

// Create stores a new ticket. The creator must exist and the status is
// always OPEN regardless of what the caller sent.
func (s *TicketService) Create(ctx context.Context, req model.CreateTicketRequest) (*model.Ticket, error) {
	if err := req.Validate(); err != nil {
		return nil, invalid(err)
	}
	if err := s.userExists(ctx, req.CreatedBy); err != nil {
		return nil, err
	}
	if req.AssignedTo != nil {
		if err := s.userExists(ctx, *req.AssignedTo); err != nil {
			return nil, err
		}
	}
	t := &model.Ticket{
		AssignedTo:  req.AssignedTo,
		CreatedBy:   req.CreatedBy,
		Title:       req.Title,
		Description: req.Description,
		Status:      model.TicketStatusOpen,
		DueDate:     req.DueDate,
		Location:    req.Location,
		MediaType:   req.MediaType,
		MediaID:     req.MediaID,
	}
	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		return nil, err
	}
	s.log.Info().Int("ticket_id", t.TicketID).Int("created_by", t.CreatedBy).Msg("ticket created")
	s.publish(ctx, events.TicketCreated, t)
	return t, nil
}

func (s *TicketService) GetByID(ctx context.Context, id int) (*model.Ticket, error) {
	var t model.Ticket
	if err := s.db.WithContext(ctx).First(&t, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrTicketNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (s *TicketService) List(ctx context.Context, f model.TicketFilter) ([]model.Ticket, error) {
	items := []model.Ticket{}
	tx := s.db.WithContext(ctx).Model(&model.Ticket{})
	if f.AssignedTo != nil {
		tx = tx.Where("assigned_to = ?", *f.AssignedTo)
	}
	if f.CreatedBy != nil {
		tx = tx.Where("created_by = ?", *f.CreatedBy)
	}
	if f.Status != "" {
		tx = tx.Where("status = ?", f.Status)
	}
	if f.DueDate != nil {
		tx = tx.Where("due_date = ?", *f.DueDate)
	}
	if f.Location != "" {
		tx = tx.Where("location = ?", f.Location)
	}
	if f.MediaType != "" {
		tx = tx.Where("media_type = ?", f.MediaType)
	}
	if err := tx.Order("ticket_id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// Assign sets the assignee. The user must exist.
func (s *TicketService) Assign(ctx context.Context, id, userID int) (*model.Ticket, error) {
	if err := s.userExists(ctx, userID); err != nil {
		return nil, err
	}
	t, err := s.update(ctx, id, map[string]any{"assigned_to": userID})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.TicketAssigned, t)
	return t, nil
}

func (s *TicketService) UpdateStatus(ctx context.Context, id int, status model.TicketStatus) (*model.Ticket, error) {
	st, err := model.ParseTicketStatus(string(status))
	if err != nil {
		return nil, invalid(err)
	}
	t, err := s.update(ctx, id, map[string]any{"status": st})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.TicketStatusChanged, t)
	return t, nil
}

// Update applies a partial edit of the descriptive fields.
func (s *TicketService) Update(ctx context.Context, id int, req model.UpdateTicketRequest) (*model.Ticket, error) {
	if req.Empty() {
		return nil, invalid(errors.New("no fields to update"))
	}
	if err := req.ValidateEdit(s.now()); err != nil {
		return nil, invalid(err)
	}
	t, err := s.update(ctx, id, req.Changes())
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.TicketUpdated, t)
	return t, nil
}

func (s *TicketService) update(ctx context.Context, id int, changes map[string]any) (*model.Ticket, error) {
	t, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(t).Updates(changes).Error; err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

func (s *TicketService) userExists(ctx context.Context, id int) error {
	var n int64
	if err := s.db.WithContext(ctx).Model(&model.User{}).Where("user_id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: user %d does not exist", errs.ErrInvalidArgument, id)
	}
	return nil
}

func (s *TicketService) publish(ctx context.Context, event string, t *model.Ticket) {
	if s.events != nil {
		s.events.PublishTicket(ctx, event, t)
	}
}
