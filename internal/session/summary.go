package session

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
)

// WriteSummary renders snap as a player table followed by a status line.
func WriteSummary(w io.Writer, snap Snapshot) {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader([]string{"Slot", "ID", "Name", "Role", "State", "Relay", "Peers", "Fwd", "Acks", "Dropped"})
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)

	for _, p := range snap.Players {
		role := "peer"
		if p.Host {
			role = "host"
		}
		state := p.State
		if !p.Connected {
			state = "-"
		}
		relay := "-"
		if p.RelayOpen {
			relay = fmt.Sprintf("%d", p.ProxyPort)
		}

		tw.Append([]string{
			fmt.Sprintf("%d", p.Slot),
			fmt.Sprintf("%d", p.ID),
			p.Name,
			role,
			state,
			relay,
			joinIDs(p.Peers),
			fmt.Sprintf("%d", p.Relay.Forwarded),
			fmt.Sprintf("%d", p.Relay.Synthesized),
			fmt.Sprintf("%d", p.Relay.Suppressed),
		})
	}
	tw.Render()

	status := "running"
	if snap.Terminated {
		status = "terminated: " + snap.Reason
	}
	fmt.Fprintf(w, "session %s  %d/%d connected  up %s  %s\n",
		snap.SessionID, snap.Connected, snap.Capacity,
		time.Since(snap.StartedAt).Truncate(time.Second), status)
}

func joinIDs(ids []uint32) string {
	if len(ids) == 0 {
		return "-"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(parts, ",")
}
