package ui

import (
	"encoding/json"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/arthur-debert/kvsync/pkg/storage"
)

// jsonRenderer provides JSON output for machine consumption. Events are
// written one per line so a watch stream can be consumed line by line.
type jsonRenderer struct {
	encoder *json.Encoder
	lines   *json.Encoder
}

func newJSONRenderer(output io.Writer) *jsonRenderer {
	encoder := json.NewEncoder(output)
	encoder.SetIndent("", "  ")
	return &jsonRenderer{
		encoder: encoder,
		lines:   json.NewEncoder(output),
	}
}

func (r *jsonRenderer) RenderItem(item Item) error {
	return r.encoder.Encode(item)
}

func (r *jsonRenderer) RenderItems(items []Item) error {
	if items == nil {
		items = []Item{}
	}
	return r.encoder.Encode(items)
}

func (r *jsonRenderer) RenderEvent(ev storage.Event) error {
	return r.lines.Encode(ev)
}

func (r *jsonRenderer) RenderMessage(msg string) error {
	return r.encoder.Encode(map[string]string{"message": msg})
}

func (r *jsonRenderer) RenderError(err error) error {
	return r.encoder.Encode(newErrorDoc(err))
}

// yamlRenderer writes one YAML document per call.
type yamlRenderer struct {
	encoder *yaml.Encoder
}

func newYAMLRenderer(output io.Writer) *yamlRenderer {
	encoder := yaml.NewEncoder(output)
	encoder.SetIndent(2)
	return &yamlRenderer{encoder: encoder}
}

func (r *yamlRenderer) RenderItem(item Item) error {
	return r.encoder.Encode(item)
}

func (r *yamlRenderer) RenderItems(items []Item) error {
	if items == nil {
		items = []Item{}
	}
	return r.encoder.Encode(items)
}

func (r *yamlRenderer) RenderEvent(ev storage.Event) error {
	return r.encoder.Encode(ev)
}

func (r *yamlRenderer) RenderMessage(msg string) error {
	return r.encoder.Encode(map[string]string{"message": msg})
}

func (r *yamlRenderer) RenderError(err error) error {
	return r.encoder.Encode(newErrorDoc(err))
}
