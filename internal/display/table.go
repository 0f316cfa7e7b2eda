// Package display renders fleet snapshots for a terminal. It owns the
// staleness policy: a device silent for longer than the configured threshold
// is shown offline, while the underlying record keeps its last reported
// status untouched.
package display

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/espfleet/ota-fleet/internal/constants"
	"github.com/espfleet/ota-fleet/internal/models"
)

const clearScreen = "\033[2J\033[H"

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("243"))
	ruleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	busyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	offlineStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

var statusLabels = map[constants.DeviceStatus]string{
	constants.StatusIdle:            "● idle",
	constants.StatusStable:          "● stable",
	constants.StatusConfirmed:       "✓ confirmed",
	constants.StatusDownloading:     "↓ downloading",
	constants.StatusUpdateAvailable: "↑ update avail",
	constants.StatusSelfTestRunning: "⧖ testing",
	constants.StatusRebooting:       "↻ rebooting",
	constants.StatusDownloadFailed:  "✗ dl failed",
	constants.StatusRolledBack:      "⟲ rolled back",
	constants.StatusOffline:         "○ offline",
}

// ConsoleRenderer writes a live fleet table to a terminal, clearing the
// screen between frames like a minimal dashboard.
type ConsoleRenderer struct {
	Out          io.Writer
	OfflineAfter time.Duration
	Clear        bool

	now func() time.Time
}

// NewConsoleRenderer builds a renderer that marks devices offline after the
// given silence threshold.
func NewConsoleRenderer(out io.Writer, offlineAfter time.Duration) *ConsoleRenderer {
	return &ConsoleRenderer{
		Out:          out,
		OfflineAfter: offlineAfter,
		Clear:        true,
		now:          time.Now,
	}
}

// Render draws one frame from a fleet snapshot.
func (r *ConsoleRenderer) Render(records []models.DeviceRecord) {
	var b strings.Builder
	if r.Clear {
		b.WriteString(clearScreen)
	}

	now := r.now()
	rule := ruleStyle.Render(strings.Repeat("─", 96))

	b.WriteString(rule + "\n")
	b.WriteString(titleStyle.Render("  OTA Fleet Monitor") + "\n")
	b.WriteString(fmt.Sprintf("  %s  |  %d devices\n", now.Format("2006-01-02 15:04:05"), len(records)))
	b.WriteString(rule + "\n\n")

	b.WriteString(headerStyle.Render(fmt.Sprintf("%-14s %-10s %-18s %-12s %-7s %-8s %-10s %-16s",
		"Device", "Version", "Status", "Group", "RSSI", "Heap", "Uptime", "IP")) + "\n")
	b.WriteString(rule + "\n")

	for _, rec := range records {
		status := rec.Status
		if r.OfflineAfter > 0 && now.Sub(rec.LastSeen) > r.OfflineAfter {
			status = constants.StatusOffline
		}

		b.WriteString(fmt.Sprintf("%-14s %-10s %s %-12s %-7s %-8s %-10s %-16s\n",
			rec.DeviceID,
			stringOr(rec.Version, "?"),
			styleFor(status).Render(fmt.Sprintf("%-18s", statusLabel(status))),
			stringOr(rec.Group, "?"),
			rssiLabel(rec.RSSI),
			heapLabel(rec.FreeHeap),
			uptimeLabel(rec.UptimeMS),
			stringOr(rec.IP, "?"),
		))
	}

	b.WriteString("\n" + rule + "\n")
	b.WriteString("  Press Ctrl+C to exit\n")

	fmt.Fprint(r.Out, b.String())
}

func statusLabel(status constants.DeviceStatus) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return "? " + string(status)
}

func styleFor(status constants.DeviceStatus) lipgloss.Style {
	switch status {
	case constants.StatusStable, constants.StatusConfirmed, constants.StatusIdle:
		return okStyle
	case constants.StatusDownloading, constants.StatusSelfTestRunning,
		constants.StatusRebooting, constants.StatusUpdateAvailable:
		return busyStyle
	case constants.StatusDownloadFailed, constants.StatusRolledBack:
		return failStyle
	case constants.StatusOffline:
		return offlineStyle
	}
	return lipgloss.NewStyle()
}

func stringOr(val *string, fallback string) string {
	if val == nil || *val == "" {
		return fallback
	}
	return *val
}

func rssiLabel(rssi *int) string {
	if rssi == nil {
		return "?"
	}
	return fmt.Sprintf("%ddB", *rssi)
}

func heapLabel(freeHeap *int64) string {
	if freeHeap == nil || *freeHeap == 0 {
		return "?"
	}
	return fmt.Sprintf("%dKB", *freeHeap/1024)
}

func uptimeLabel(uptimeMS *int64) string {
	if uptimeMS == nil {
		return "?"
	}
	seconds := *uptimeMS / 1000
	switch {
	case seconds < 60:
		return fmt.Sprintf("%ds", seconds)
	case seconds < 3600:
		return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
	case seconds < 86400:
		return fmt.Sprintf("%dh %dm", seconds/3600, (seconds%3600)/60)
	default:
		return fmt.Sprintf("%dd %dh", seconds/86400, (seconds%86400)/3600)
	}
}
