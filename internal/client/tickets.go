package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/team-spoved/spoved/internal/model"
)

type TicketClient struct {
	rest
	now func() time.Time
}

func (c *TicketClient) List(ctx context.Context, f model.TicketFilter) ([]model.Ticket, error) {
	q := url.Values{}
	if f.AssignedTo != nil {
		q.Set("assignedTo", strconv.Itoa(*f.AssignedTo))
	}
	if f.CreatedBy != nil {
		q.Set("createdBy", strconv.Itoa(*f.CreatedBy))
	}
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	if f.DueDate != nil {
		q.Set("dueDate", f.DueDate.String())
	}
	if f.Location != "" {
		q.Set("location", f.Location)
	}
	if f.MediaType != "" {
		q.Set("mediaType", string(f.MediaType))
	}
	var tickets []model.Ticket
	if err := c.doJSON(ctx, "List tickets", http.MethodGet, "/tickets", q, nil, &tickets); err != nil {
		return nil, err
	}
	return tickets, nil
}

func (c *TicketClient) Get(ctx context.Context, id int) (*model.Ticket, error) {
	var t model.Ticket
	if err := c.doJSON(ctx, "Get ticket", http.MethodGet, idPath("/tickets", id), nil, nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *TicketClient) Create(ctx context.Context, req model.CreateTicketRequest) (*model.Ticket, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("Create ticket: %w", err)
	}
	var t model.Ticket
	if err := c.doJSON(ctx, "Create ticket", http.MethodPost, "/tickets", nil, req, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Assign sets the ticket's assignee.
func (c *TicketClient) Assign(ctx context.Context, id, userID int) (*model.Ticket, error) {
	q := url.Values{"userId": {strconv.Itoa(userID)}}
	var t model.Ticket
	if err := c.doJSON(ctx, "Assign ticket", http.MethodPut, idPath("/tickets", id)+"/assign", q, nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *TicketClient) UpdateStatus(ctx context.Context, id int, status model.TicketStatus) (*model.Ticket, error) {
	if _, err := model.ParseTicketStatus(string(status)); err != nil {
		return nil, fmt.Errorf("Update status: %w", err)
	}
	q := url.Values{"status": {string(status)}}
	var t model.Ticket
	if err := c.doJSON(ctx, "Update status", http.MethodPut, idPath("/tickets", id)+"/status", q, nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Update applies an explicit edit. A due date in the past is rejected before
// anything is sent.
func (c *TicketClient) Update(ctx context.Context, id int, req model.UpdateTicketRequest) (*model.Ticket, error) {
	if req.Empty() {
		return nil, fmt.Errorf("Update ticket: no changes")
	}
	if err := req.ValidateEdit(c.now()); err != nil {
		return nil, fmt.Errorf("Update ticket: %w", err)
	}
	var t model.Ticket
	if err := c.doJSON(ctx, "Update ticket", http.MethodPut, idPath("/tickets", id)+"/update", nil, req, &t); err != nil {
		return nil, err
	}
	return &t, nil
}
