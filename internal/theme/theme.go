package theme

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mailbox-monitor/internal/model"
)

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue   = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen  = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed    = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorGray   = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite  = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorBorder = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// HeaderStyle is used for section headers.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// DetailPanelStyle wraps a single message.
var DetailPanelStyle = lipgloss.NewStyle().
	Padding(0, 1).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

var labelStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorGray).
	Width(9)

// HelpStyle is used for hints and empty-result notes.
var HelpStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

var (
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(ColorRed)
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorGreen)
	unreadStyle  = lipgloss.NewStyle().Bold(true).Foreground(ColorYellow)
)

// Summary renders one message summary as a bordered panel.
func Summary(msg *model.MessageSummary) string {
	if msg == nil {
		return HelpStyle.Render("no message")
	}

	rows := []string{
		field("ID", msg.ID),
		field("Thread", msg.ConversationID),
		field("From", msg.From),
		field("To", strings.Join(msg.ToRecipients, ", ")),
	}
	if len(msg.CcRecipients) > 0 {
		rows = append(rows, field("Cc", strings.Join(msg.CcRecipients, ", ")))
	}
	rows = append(rows, field("Subject", msg.Subject))
	if msg.Body != "" {
		rows = append(rows, "", msg.Body)
	}

	return DetailPanelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// Summaries renders a keyed set of messages in the order given by ids.
func Summaries(title string, ids []string, msgs map[string]model.MessageSummary) string {
	parts := []string{HeaderStyle.Render(fmt.Sprintf("%s (%d)", title, len(ids)))}
	if len(ids) == 0 {
		parts = append(parts, HelpStyle.Render("nothing to show"))
	}
	for _, id := range ids {
		msg := msgs[id]
		parts = append(parts, Summary(&msg))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// Folders renders a folder listing with unread counts.
func Folders(title string, folders []model.Folder) string {
	lines := []string{HeaderStyle.Render(title)}
	if len(folders) == 0 {
		lines = append(lines, HelpStyle.Render("no folders"))
	}
	for _, f := range folders {
		count := fmt.Sprintf("%d/%d", f.UnreadItemCount, f.TotalItemCount)
		if f.UnreadItemCount > 0 {
			count = unreadStyle.Render(count)
		}
		lines = append(lines, fmt.Sprintf("  %-30s %s", f.DisplayName, count))
	}
	return strings.Join(lines, "\n")
}

// Attachments renders attachment metadata.
func Attachments(messageID string, atts []model.Attachment) string {
	lines := []string{HeaderStyle.Render("Attachments of " + messageID)}
	if len(atts) == 0 {
		lines = append(lines, HelpStyle.Render("no attachments"))
	}
	for _, a := range atts {
		lines = append(lines, fmt.Sprintf("  %-30s %-24s %d bytes", a.Name, a.ContentType, a.Size))
	}
	return strings.Join(lines, "\n")
}

// Journal renders consumed messages, newest first.
func Journal(entries []model.JournalEntry) string {
	lines := []string{HeaderStyle.Render("Read journal")}
	if len(entries) == 0 {
		lines = append(lines, HelpStyle.Render("no messages recorded"))
	}
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("  %s  %-14s %-28s %s",
			e.ReadAt.Local().Format("2006-01-02 15:04:05"), e.Folder, e.Sender, e.Subject))
	}
	return strings.Join(lines, "\n")
}

// Success renders a confirmation line.
func Success(msg string) string {
	return successStyle.Render("✓ " + msg)
}

// Error renders an error line.
func Error(err error) string {
	return errorStyle.Render("✗ " + err.Error())
}

func field(label, value string) string {
	return labelStyle.Render(label) + value
}
