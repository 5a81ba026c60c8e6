package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/team-spoved/spoved/internal/board"
	"github.com/team-spoved/spoved/internal/model"
)

var ticketsCmd = &cobra.Command{
	Use:     "tickets",
	Aliases: []string{"ticket"},
	Short:   "List and manage maintenance tickets",
}

var ticketsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tickets, optionally narrowed to one board tab",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		s, err := a.requireSession()
		if err != nil {
			return err
		}
		f, err := ticketFilterFromFlags(cmd)
		if err != nil {
			return err
		}
		// Workers see their own tickets, supervisors the ones they created,
		// unless the filter says otherwise.
		if all, _ := cmd.Flags().GetBool("all"); !all && f.AssignedTo == nil && f.CreatedBy == nil {
			id := s.UserID
			if s.Role == model.RoleWorker {
				f.AssignedTo = &id
			} else {
				f.CreatedBy = &id
			}
		}
		tickets, err := a.client.Tickets.List(cmd.Context(), f)
		if err != nil {
			return err
		}
		today := model.DateOf(time.Now())
		out := cmd.OutOrStdout()
		counts := board.Counts(tickets, today)
		parts := make([]string, 0, len(board.Tabs))
		for _, tab := range board.Tabs {
			parts = append(parts, fmt.Sprintf("%s %d", tab.Label(), counts[tab]))
		}
		fmt.Fprintln(out, strings.Join(parts, " | "))

		if tabFlag, _ := cmd.Flags().GetString("tab"); tabFlag != "" {
			tab, err := board.ParseTab(tabFlag)
			if err != nil {
				return err
			}
			tickets = board.Filter(tickets, tab, today)
		}
		printTickets(out, board.SortByDueDate(tickets), today)
		return nil
	},
}

var ticketsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one ticket",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, id, err := appWithID(args[0])
		if err != nil {
			return err
		}
		t, err := a.client.Tickets.Get(cmd.Context(), id)
		if err != nil {
			return err
		}
		printTickets(cmd.OutOrStdout(), []model.Ticket{*t}, model.DateOf(time.Now()))
		if t.Description != "" {
			fmt.Fprintln(cmd.OutOrStdout(), t.Description)
		}
		return nil
	},
}

var ticketsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a ticket as the signed-in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		s, err := a.requireSession()
		if err != nil {
			return err
		}
		fl := cmd.Flags()
		title, _ := fl.GetString("title")
		desc, _ := fl.GetString("description")
		location, _ := fl.GetString("location")
		dueFlag, _ := fl.GetString("due")
		mediaFlag, _ := fl.GetString("media-type")
		due, err := model.ParseDate(dueFlag)
		if err != nil {
			return err
		}
		mt, err := model.ParseMediaType(mediaFlag)
		if err != nil {
			return err
		}
		req := model.CreateTicketRequest{
			CreatedBy:   s.UserID,
			Title:       title,
			Description: desc,
			DueDate:     due,
			Location:    location,
			MediaType:   mt,
		}
		if fl.Changed("assign") {
			v, _ := fl.GetInt("assign")
			req.AssignedTo = &v
		}
		if fl.Changed("media-id") {
			v, _ := fl.GetInt("media-id")
			req.MediaID = &v
		}
		t, err := a.client.Tickets.Create(cmd.Context(), req)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created ticket #%d (%s)\n", t.TicketID, t.Status)
		return nil
	},
}

var ticketsAssignCmd = &cobra.Command{
	Use:   "assign <id> <userId>",
	Short: "Assign a ticket to a worker",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, id, err := appWithID(args[0])
		if err != nil {
			return err
		}
		userID, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid user id %q", args[1])
		}
		t, err := a.client.Tickets.Assign(cmd.Context(), id, userID)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Ticket #%d assigned to %d\n", t.TicketID, userID)
		return nil
	},
}

var ticketsStatusCmd = &cobra.Command{
	Use:   "status <id> <OPEN|IN_PROGRESS|FINISHED>",
	Short: "Change a ticket's status",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, id, err := appWithID(args[0])
		if err != nil {
			return err
		}
		st, err := model.ParseTicketStatus(args[1])
		if err != nil {
			return err
		}
		t, err := a.client.Tickets.UpdateStatus(cmd.Context(), id, st)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Ticket #%d is now %s\n", t.TicketID, t.Status)
		return nil
	},
}

var ticketsUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Edit a ticket's title, description, due date, location or media",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, id, err := appWithID(args[0])
		if err != nil {
			return err
		}
		req, err := ticketUpdateFromFlags(cmd)
		if err != nil {
			return err
		}
		t, err := a.client.Tickets.Update(cmd.Context(), id, req)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Ticket #%d updated\n", t.TicketID)
		return nil
	},
}

func init() {
	lf := ticketsListCmd.Flags()
	lf.String("tab", "", "open, in_progress, finished or overdue")
	lf.Bool("all", false, "do not default to the signed-in user's tickets")
	lf.Int("assigned-to", 0, "assignee user id")
	lf.Int("created-by", 0, "creator user id")
	lf.String("status", "", "OPEN, IN_PROGRESS or FINISHED")
	lf.String("due", "", "due date (YYYY-MM-DD)")
	lf.String("location", "", "location")
	lf.String("media-type", "", "PHOTO, VIDEO or AUDIO")

	cf := ticketsCreateCmd.Flags()
	cf.String("title", "", "title")
	cf.String("description", "", "description")
	cf.String("location", "", "location")
	cf.String("due", "", "due date (YYYY-MM-DD)")
	cf.String("media-type", string(model.MediaTypePhoto), "PHOTO, VIDEO or AUDIO")
	cf.Int("assign", 0, "assignee user id")
	cf.Int("media-id", 0, "attached media id")
	for _, name := range []string{"title", "location", "due"} {
		_ = ticketsCreateCmd.MarkFlagRequired(name)
	}

	uf := ticketsUpdateCmd.Flags()
	uf.String("title", "", "new title")
	uf.String("description", "", "new description")
	uf.String("location", "", "new location")
	uf.String("due", "", "new due date (YYYY-MM-DD)")
	uf.String("media-type", "", "PHOTO, VIDEO or AUDIO")
	uf.Int("media-id", 0, "attached media id")

	ticketsCmd.AddCommand(ticketsListCmd, ticketsShowCmd, ticketsCreateCmd, ticketsAssignCmd, ticketsStatusCmd, ticketsUpdateCmd)
	rootCmd.AddCommand(ticketsCmd)
}

func appWithID(arg string) (*app, int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		return nil, 0, fmt.Errorf("invalid id %q", arg)
	}
	a, err := newApp()
	if err != nil {
		return nil, 0, err
	}
	if _, err := a.requireSession(); err != nil {
		return nil, 0, err
	}
	return a, id, nil
}

func ticketFilterFromFlags(cmd *cobra.Command) (model.TicketFilter, error) {
	fl := cmd.Flags()
	var f model.TicketFilter
	if fl.Changed("assigned-to") {
		v, _ := fl.GetInt("assigned-to")
		f.AssignedTo = &v
	}
	if fl.Changed("created-by") {
		v, _ := fl.GetInt("created-by")
		f.CreatedBy = &v
	}
	if v, _ := fl.GetString("status"); v != "" {
		st, err := model.ParseTicketStatus(v)
		if err != nil {
			return f, err
		}
		f.Status = st
	}
	if v, _ := fl.GetString("due"); v != "" {
		d, err := model.ParseDate(v)
		if err != nil {
			return f, err
		}
		f.DueDate = &d
	}
	f.Location, _ = fl.GetString("location")
	if v, _ := fl.GetString("media-type"); v != "" {
		mt, err := model.ParseMediaType(v)
		if err != nil {
			return f, err
		}
		f.MediaType = mt
	}
	return f, nil
}

func ticketUpdateFromFlags(cmd *cobra.Command) (model.UpdateTicketRequest, error) {
	fl := cmd.Flags()
	var req model.UpdateTicketRequest
	str := func(name string) *string {
		if !fl.Changed(name) {
			return nil
		}
		v, _ := fl.GetString(name)
		return &v
	}
	req.Title = str("title")
	req.Description = str("description")
	req.Location = str("location")
	if v := str("due"); v != nil {
		d, err := model.ParseDate(*v)
		if err != nil {
			return req, err
		}
		req.DueDate = &d
	}
	if v := str("media-type"); v != nil {
		mt, err := model.ParseMediaType(*v)
		if err != nil {
			return req, err
		}
		req.MediaType = &mt
	}
	if fl.Changed("media-id") {
		v, _ := fl.GetInt("media-id")
		req.MediaID = &v
	}
	return req, nil
}

func printTickets(w io.Writer, tickets []model.Ticket, today model.Date) {
	if len(tickets) == 0 {
		fmt.Fprintln(w, "No tickets")
		return
	}
	rows := make([][]string, 0, len(tickets))
	for _, t := range tickets {
		assignee := "-"
		if t.AssignedTo != nil {
			assignee = strconv.Itoa(*t.AssignedTo)
		}
		due := t.DueDate.String()
		if t.Overdue(today) {
			due = paint(w, text.FgRed, due+" overdue")
		}
		rows = append(rows, []string{
			strconv.Itoa(t.TicketID),
			t.Title,
			string(t.Status),
			due,
			t.Location,
			string(t.MediaType),
			assignee,
		})
	}
	fmt.Fprintln(w, renderTable(
		[]string{"ID", "Title", "Status", "Due", "Location", "Media", "Assignee"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
	))
}
