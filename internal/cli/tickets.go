package cli

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/fabrik-io/fabrik/pkg/protocol"
)

var ticketsStatus string

var ticketsCmd = &cobra.Command{
	Use:   "tickets",
	Short: "List, inspect and develop tickets",
}

var ticketsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tickets, newest first",
	RunE:  runTicketsList,
}

var ticketsShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show ticket details",
	Args:  cobra.ExactArgs(1),
	RunE:  runTicketsShow,
}

var ticketsDevelopCmd = &cobra.Command{
	Use:   "develop [id]",
	Short: "Develop a pending ticket into a project on disk",
	Args:  cobra.ExactArgs(1),
	RunE:  runTicketsDevelop,
}

func init() {
	ticketsListCmd.Flags().StringVarP(&ticketsStatus, "status", "s", "", "Filter by status (pending|in_progress|completed|failed)")

	ticketsCmd.AddCommand(ticketsListCmd)
	ticketsCmd.AddCommand(ticketsShowCmd)
	ticketsCmd.AddCommand(ticketsDevelopCmd)
}

func runTicketsList(cmd *cobra.Command, args []string) error {
	path := "/api/tickets"
	if ticketsStatus != "" {
		path += "?status=" + url.QueryEscape(ticketsStatus)
	}
	body, err := apiGet(path)
	if err != nil {
		return err
	}

	var tickets []protocol.Ticket
	if err := json.Unmarshal(body, &tickets); err != nil {
		return fmt.Errorf("unexpected response: %s", string(body))
	}
	if len(tickets) == 0 {
		fmt.Println("No tickets.")
		return nil
	}
	for _, t := range tickets {
		fmt.Printf("%-10s %-22s %s\n", t.ID, renderStatus(t.Status), t.Title)
	}
	return nil
}

func runTicketsShow(cmd *cobra.Command, args []string) error {
	body, err := apiGet("/api/tickets/" + url.PathEscape(args[0]))
	if err != nil {
		return err
	}

	var t protocol.Ticket
	if err := json.Unmarshal(body, &t); err != nil {
		return fmt.Errorf("unexpected response: %s", string(body))
	}
	printTicket(&t)
	return nil
}

func runTicketsDevelop(cmd *cobra.Command, args []string) error {
	fmt.Printf("Developing %s, this can take a while...\n", args[0])
	body, err := apiPost("/api/tickets/"+url.PathEscape(args[0])+"/develop", nil)
	if err != nil {
		// A failed development still carries the final ticket record.
		var failed struct {
			Ticket *protocol.Ticket `json:"ticket"`
		}
		if json.Unmarshal(body, &failed) == nil && failed.Ticket != nil {
			printTicket(failed.Ticket)
		}
		return err
	}

	var t protocol.Ticket
	if err := json.Unmarshal(body, &t); err != nil {
		return fmt.Errorf("unexpected response: %s", string(body))
	}
	printTicket(&t)
	return nil
}

func printTicket(t *protocol.Ticket) {
	fmt.Printf("Ticket %s\n", t.ID)
	fmt.Printf("  Status:   %s\n", renderStatus(t.Status))
	fmt.Printf("  Title:    %s\n", t.Title)
	fmt.Printf("  Created:  %s\n", t.CreatedAt.Format("2006-01-02 15:04:05"))
	if t.StartedAt != nil {
		fmt.Printf("  Started:  %s\n", t.StartedAt.Format("2006-01-02 15:04:05"))
	}
	if t.CompletedAt != nil {
		fmt.Printf("  Finished: %s\n", t.CompletedAt.Format("2006-01-02 15:04:05"))
	}
	if t.TaskFile != "" {
		fmt.Printf("  Task:     %s\n", t.TaskFile)
	}
	if t.ProjectPath != "" {
		fmt.Printf("  Project:  %s (%d files)\n", t.ProjectPath, t.FilesCreated)
	}
	if t.Error != "" {
		fmt.Printf("  Error:    %s\n", t.Error)
	}
}
