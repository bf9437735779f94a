package ui

import (
	"fmt"
	"io"

	"github.com/arthur-debert/kvsync/pkg/codec"
	"github.com/arthur-debert/kvsync/pkg/storage"
)

// textRenderer writes plain lines, one per item or event.
type textRenderer struct {
	output io.Writer
}

func newTextRenderer(output io.Writer) *textRenderer {
	return &textRenderer{output: output}
}

func (r *textRenderer) RenderItem(item Item) error {
	_, err := fmt.Fprintln(r.output, FormatValue(item.Value))
	return err
}

func (r *textRenderer) RenderItems(items []Item) error {
	for _, item := range items {
		if _, err := fmt.Fprintf(r.output, "%s\t%s\n", item.Key, FormatValue(item.Value)); err != nil {
			return err
		}
	}
	return nil
}

func (r *textRenderer) RenderEvent(ev storage.Event) error {
	_, err := fmt.Fprintln(r.output, DescribeEvent(ev))
	return err
}

func (r *textRenderer) RenderMessage(msg string) error {
	_, err := fmt.Fprintln(r.output, msg)
	return err
}

func (r *textRenderer) RenderError(err error) error {
	if _, werr := fmt.Fprintf(r.output, "Error: %v\n", err); werr != nil {
		return werr
	}
	for _, line := range detailLines(err) {
		if _, werr := fmt.Fprintf(r.output, "  %s\n", line); werr != nil {
			return werr
		}
	}
	return nil
}

// FormatValue renders a decoded value as compact JSON, so strings keep
// their quotes and nil reads as null.
func FormatValue(v any) string {
	s, err := codec.Encode(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return s
}

// DescribeEvent is the one-line plain description of an event.
func DescribeEvent(ev storage.Event) string {
	switch {
	case ev.Cleared:
		return "cleared"
	case ev.Created:
		return fmt.Sprintf("created %s = %s", ev.Key, FormatValue(ev.NewValue))
	case ev.Deleted:
		return fmt.Sprintf("deleted %s (was %s)", ev.Key, FormatValue(ev.OldValue))
	case ev.Modified:
		return fmt.Sprintf("modified %s: %s -> %s", ev.Key, FormatValue(ev.OldValue), FormatValue(ev.NewValue))
	default:
		return ev.Kind()
	}
}
