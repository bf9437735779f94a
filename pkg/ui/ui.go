// Package ui renders items and storage events for the command line in
// terminal, text, JSON or YAML form.
package ui

import (
	"fmt"
	"io"
	"sort"

	"github.com/arthur-debert/kvsync/pkg/errors"
	"github.com/arthur-debert/kvsync/pkg/storage"
)

// Item is one stored key and its decoded value.
type Item struct {
	Key   string `json:"key" yaml:"key"`
	Value any    `json:"value" yaml:"value"`
}

// Renderer is the common interface for all output renderers.
type Renderer interface {
	// RenderItem renders a single item
	RenderItem(item Item) error

	// RenderItems renders a listing
	RenderItems(items []Item) error

	// RenderEvent renders one storage event as it arrives
	RenderEvent(ev storage.Event) error

	// RenderMessage renders a simple message
	RenderMessage(msg string) error

	// RenderError renders an error with appropriate formatting
	RenderError(err error) error
}

// NewRenderer creates a renderer for format. FormatAuto is resolved
// against output first.
func NewRenderer(format Format, output io.Writer) (Renderer, error) {
	switch Resolve(format, output) {
	case FormatTerminal:
		return newTerminalRenderer(output), nil
	case FormatText:
		return newTextRenderer(output), nil
	case FormatJSON:
		return newJSONRenderer(output), nil
	case FormatYAML:
		return newYAMLRenderer(output), nil
	default:
		return nil, errors.Newf(errors.ErrInvalidInput, "unknown format: %v", format)
	}
}

// errorDoc is the structured form of an error.
type errorDoc struct {
	Error   string         `json:"error" yaml:"error"`
	Code    string         `json:"code,omitempty" yaml:"code,omitempty"`
	Details map[string]any `json:"details,omitempty" yaml:"details,omitempty"`
}

func newErrorDoc(err error) errorDoc {
	doc := errorDoc{Error: err.Error()}
	if code := errors.GetErrorCode(err); code != errors.ErrUnknown {
		doc.Code = string(code)
	}
	if details := errors.GetErrorDetails(err); len(details) > 0 {
		doc.Details = details
	}
	return doc
}

// detailLines renders the details of a coded error as sorted
// "key: value" lines.
func detailLines(err error) []string {
	details := errors.GetErrorDetails(err)
	lines := make([]string, 0, len(details))
	for k, v := range details {
		lines = append(lines, fmt.Sprintf("%s: %v", k, v))
	}
	sort.Strings(lines)
	return lines
}
