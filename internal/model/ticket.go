package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "OPEN"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusFinished   TicketStatus = "FINISHED"
)

func ParseTicketStatus(s string) (TicketStatus, error) {
	st := TicketStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusFinished:
		return st, nil
	}
	return "", fmt.Errorf("invalid status %q: must be OPEN, IN_PROGRESS or FINISHED", s)
}

type MediaType string

const (
	MediaTypePhoto MediaType = "PHOTO"
	MediaTypeVideo MediaType = "VIDEO"
	MediaTypeAudio MediaType = "AUDIO"
)

func ParseMediaType(s string) (MediaType, error) {
	mt := MediaType(strings.ToUpper(strings.TrimSpace(s)))
	switch mt {
	case MediaTypePhoto, MediaTypeVideo, MediaTypeAudio:
		return mt, nil
	}
	return "", fmt.Errorf("invalid media type %q: must be PHOTO, VIDEO or AUDIO", s)
}

var ErrDueDateInPast = errors.New("due date must not be in the past")

type Ticket struct {
	TicketID    int          `gorm:"primaryKey;column:ticket_id" json:"ticketId"`
	AssignedTo  *int         `gorm:"index" json:"assignedTo"`
	CreatedBy   int          `gorm:"index;not null" json:"createdBy"`
	Title       string       `gorm:"type:varchar(999);not null" json:"title"`
	Description string       `gorm:"type:varchar(999);not null" json:"description"`
	Status      TicketStatus `gorm:"type:varchar(32);index;not null" json:"status"`
	DueDate     Date         `gorm:"not null" json:"dueDate"`
	Location    string       `gorm:"type:varchar(999);not null" json:"location"`
	MediaType   MediaType    `gorm:"type:varchar(16);not null" json:"mediaType"`
	MediaID     *int         `json:"mediaId"`
}

func (Ticket) TableName() string { return "tickets" }

// Overdue reports whether an open or in-progress ticket's due date lies
// strictly before today. Unknown statuses are never overdue.
func (t Ticket) Overdue(today Date) bool {
	if t.Status != TicketStatusOpen && t.Status != TicketStatusInProgress {
		return false
	}
	return t.DueDate.Before(today)
}

type CreateTicketRequest struct {
	CreatedBy   int       `json:"createdBy"`
	AssignedTo  *int      `json:"assignedTo"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	DueDate     Date      `json:"dueDate"`
	Location    string    `json:"location"`
	MediaType   MediaType `json:"mediaType"`
	MediaID     *int      `json:"mediaId"`
}

func (r CreateTicketRequest) Validate() error {
	if r.CreatedBy <= 0 {
		return errors.New("createdBy is required")
	}
	if strings.TrimSpace(r.Title) == "" {
		return errors.New("title is required")
	}
	if r.DueDate.IsZero() {
		return errors.New("dueDate is required")
	}
	if strings.TrimSpace(r.Location) == "" {
		return errors.New("location is required")
	}
	if _, err := ParseMediaType(string(r.MediaType)); err != nil {
		return err
	}
	return nil
}

// UpdateTicketRequest is the partial edit applied by PUT /tickets/{id}/update.
// Nil fields are left untouched. Assignee and status are not editable here.
type UpdateTicketRequest struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	DueDate     *Date      `json:"dueDate,omitempty"`
	Location    *string    `json:"location,omitempty"`
	MediaType   *MediaType `json:"mediaType,omitempty"`
	MediaID     *int       `json:"mediaId,omitempty"`
}

func (r UpdateTicketRequest) Empty() bool {
	return r.Title == nil && r.Description == nil && r.DueDate == nil &&
		r.Location == nil && r.MediaType == nil && r.MediaID == nil
}

// ValidateEdit rejects an edit that would move the due date into the past.
func (r UpdateTicketRequest) ValidateEdit(now time.Time) error {
	if r.DueDate != nil && r.DueDate.Before(DateOf(now)) {
		return ErrDueDateInPast
	}
	if r.MediaType != nil {
		if _, err := ParseMediaType(string(*r.MediaType)); err != nil {
			return err
		}
	}
	return nil
}

// Changes returns the column updates for gorm.
func (r UpdateTicketRequest) Changes() map[string]any {
	changes := make(map[string]any)
	if r.Title != nil {
		changes["title"] = *r.Title
	}
	if r.Description != nil {
		changes["description"] = *r.Description
	}
	if r.DueDate != nil {
		changes["due_date"] = *r.DueDate
	}
	if r.Location != nil {
		changes["location"] = *r.Location
	}
	if r.MediaType != nil {
		changes["media_type"] = *r.MediaType
	}
	if r.MediaID != nil {
		changes["media_id"] = *r.MediaID
	}
	return changes
}

// TicketFilter mirrors the query parameters of GET /tickets.
type TicketFilter struct {
	AssignedTo *int
	CreatedBy  *int
	Status     TicketStatus
	DueDate    *Date
	Location   string
	MediaType  MediaType
}
