package cli

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/fabrik-io/fabrik/pkg/protocol"
)

var (
	clrGreen  = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	clrYellow = lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#F59E0B"}
	clrRed    = lipgloss.AdaptiveColor{Light: "#B91C1C", Dark: "#F87171"}
	clrBlue   = lipgloss.AdaptiveColor{Light: "#1D4ED8", Dark: "#60A5FA"}
	clrDim    = lipgloss.AdaptiveColor{Light: "#999999", Dark: "#555555"}

	dimStyle = lipgloss.NewStyle().Foreground(clrDim)

	statusStyles = map[protocol.TicketStatus]lipgloss.Style{
		protocol.TicketPending:    lipgloss.NewStyle().Foreground(clrYellow),
		protocol.TicketInProgress: lipgloss.NewStyle().Foreground(clrBlue),
		protocol.TicketCompleted:  lipgloss.NewStyle().Foreground(clrGreen),
		protocol.TicketFailed:     lipgloss.NewStyle().Foreground(clrRed),
	}

	kindStyles = map[protocol.EventKind]lipgloss.Style{
		protocol.EventInfo:    lipgloss.NewStyle().Foreground(clrBlue),
		protocol.EventSuccess: lipgloss.NewStyle().Foreground(clrGreen),
		protocol.EventWarning: lipgloss.NewStyle().Foreground(clrYellow),
		protocol.EventError:   lipgloss.NewStyle().Foreground(clrRed),
	}
)

func renderStatus(s protocol.TicketStatus) string {
	if style, ok := statusStyles[s]; ok {
		return style.Render(string(s))
	}
	return string(s)
}

func renderKind(k protocol.EventKind) string {
	if style, ok := kindStyles[k]; ok {
		return style.Render(string(k))
	}
	return string(k)
}
