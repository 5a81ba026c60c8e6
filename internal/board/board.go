// Package board derives the ticket tabs shown to workers and supervisors.
// Everything here is a pure function over an already-fetched list.
package board

import (
	"fmt"
	"sort"
	"strings"

	"github.com/team-spoved/spoved/internal/model"
)

type Tab string

const (
	TabOpen       Tab = "open"
	TabInProgress Tab = "in_progress"
	TabFinished   Tab = "finished"
	TabOverdue    Tab = "overdue"
)

// Tabs is the display order of the filter bar.
var Tabs = []Tab{TabOpen, TabInProgress, TabFinished, TabOverdue}

func ParseTab(s string) (Tab, error) {
	t := Tab(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Tabs {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown tab %q: must be open, in_progress, finished or overdue", s)
}

func (t Tab) Label() string {
	switch t {
	case TabOpen:
		return "Open"
	case TabInProgress:
		return "In Progress"
	case TabFinished:
		return "Finished"
	case TabOverdue:
		return "Overdue"
	}
	return string(t)
}

// Match reports whether tk belongs on tab t as of today. Overdue tickets also
// stay on their status tab.
func (t Tab) Match(tk model.Ticket, today model.Date) bool {
	switch t {
	case TabOpen:
		return tk.Status == model.TicketStatusOpen
	case TabInProgress:
		return tk.Status == model.TicketStatusInProgress
	case TabFinished:
		return tk.Status == model.TicketStatusFinished
	case TabOverdue:
		return tk.Overdue(today)
	}
	return false
}

// Filter returns the tickets on tab t, preserving input order.
func Filter(tickets []model.Ticket, t Tab, today model.Date) []model.Ticket {
	out := make([]model.Ticket, 0, len(tickets))
	for _, tk := range tickets {
		if t.Match(tk, today) {
			out = append(out, tk)
		}
	}
	return out
}

// Counts returns the number of tickets per tab.
func Counts(tickets []model.Ticket, today model.Date) map[Tab]int {
	counts := make(map[Tab]int, len(Tabs))
	for _, t := range Tabs {
		counts[t] = 0
	}
	for _, tk := range tickets {
		for _, t := range Tabs {
			if t.Match(tk, today) {
				counts[t]++
			}
		}
	}
	return counts
}

// SortByDueDate orders tickets by due date, earliest first, then by id. The
// input slice is not modified.
func SortByDueDate(tickets []model.Ticket) []model.Ticket {
	out := make([]model.Ticket, len(tickets))
	copy(out, tickets)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.DueDate.Equal(b.DueDate.Time) {
			return a.DueDate.Before(b.DueDate)
		}
		return a.TicketID < b.TicketID
	})
	return out
}
