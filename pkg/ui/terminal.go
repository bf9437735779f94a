package ui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/pterm/pterm"

	"github.com/arthur-debert/kvsync/pkg/storage"
)

// terminalRenderer styles output with lipgloss and draws listings as
// pterm tables.
type terminalRenderer struct {
	output io.Writer
	styles terminalStyles
}

type terminalStyles struct {
	key      lipgloss.Style
	value    lipgloss.Style
	muted    lipgloss.Style
	created  lipgloss.Style
	modified lipgloss.Style
	deleted  lipgloss.Style
	cleared  lipgloss.Style
	err      lipgloss.Style
}

func newTerminalRenderer(output io.Writer) *terminalRenderer {
	lg := lipgloss.NewRenderer(output)
	kind := lg.NewStyle().Bold(true).Width(9)

	return &terminalRenderer{
		output: output,
		styles: terminalStyles{
			key:      lg.NewStyle().Bold(true),
			value:    lg.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#005F87", Dark: "#87D7FF"}),
			muted:    lg.NewStyle().Faint(true),
			created:  kind.Foreground(lipgloss.AdaptiveColor{Light: "#008700", Dark: "#5FD75F"}),
			modified: kind.Foreground(lipgloss.AdaptiveColor{Light: "#AF8700", Dark: "#FFD75F"}),
			deleted:  kind.Foreground(lipgloss.AdaptiveColor{Light: "#AF0000", Dark: "#FF5F5F"}),
			cleared:  kind.Foreground(lipgloss.AdaptiveColor{Light: "#8700AF", Dark: "#D787FF"}),
			err:      lg.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#AF0000", Dark: "#FF5F5F"}),
		},
	}
}

func (r *terminalRenderer) RenderItem(item Item) error {
	_, err := fmt.Fprintln(r.output, r.styles.value.Render(FormatValue(item.Value)))
	return err
}

func (r *terminalRenderer) RenderItems(items []Item) error {
	if len(items) == 0 {
		_, err := fmt.Fprintln(r.output, r.styles.muted.Render("(no items)"))
		return err
	}

	data := pterm.TableData{{"Key", "Value"}}
	for _, item := range items {
		data = append(data, []string{item.Key, FormatValue(item.Value)})
	}
	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(r.output, table)
	return err
}

func (r *terminalRenderer) RenderEvent(ev storage.Event) error {
	var line string
	switch {
	case ev.Cleared:
		line = r.styles.cleared.Render("cleared") + r.styles.muted.Render("all items removed")
	case ev.Created:
		line = r.styles.created.Render("created") + r.styles.key.Render(ev.Key) + " " +
			r.styles.value.Render(FormatValue(ev.NewValue))
	case ev.Deleted:
		line = r.styles.deleted.Render("deleted") + r.styles.key.Render(ev.Key) + " " +
			r.styles.muted.Render("was "+FormatValue(ev.OldValue))
	case ev.Modified:
		line = r.styles.modified.Render("modified") + r.styles.key.Render(ev.Key) + " " +
			r.styles.muted.Render(FormatValue(ev.OldValue)) + " → " +
			r.styles.value.Render(FormatValue(ev.NewValue))
	default:
		line = ev.Kind()
	}
	_, err := fmt.Fprintln(r.output, line)
	return err
}

func (r *terminalRenderer) RenderMessage(msg string) error {
	_, err := fmt.Fprintln(r.output, msg)
	return err
}

func (r *terminalRenderer) RenderError(err error) error {
	if _, werr := fmt.Fprintln(r.output, r.styles.err.Render("Error: ")+err.Error()); werr != nil {
		return werr
	}
	for _, line := range detailLines(err) {
		if _, werr := fmt.Fprintln(r.output, "  "+r.styles.muted.Render(line)); werr != nil {
			return werr
		}
	}
	return nil
}
