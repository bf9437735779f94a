package ui_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	kverrors "github.com/arthur-debert/kvsync/pkg/errors"
	"github.com/arthur-debert/kvsync/pkg/storage"
	"github.com/arthur-debert/kvsync/pkg/ui"
)

func render(t *testing.T, format ui.Format, fn func(r ui.Renderer) error) string {
	t.Helper()
	var buf bytes.Buffer
	r, err := ui.NewRenderer(format, &buf)
	require.NoError(t, err)
	require.NoError(t, fn(r))
	return buf.String()
}

func TestDescribeEvent(t *testing.T) {
	tests := []struct {
		name string
		ev   storage.Event
		want string
	}{
		{"created", storage.Event{Key: "message", NewValue: "Hello", Created: true}, `created message = "Hello"`},
		{"modified", storage.Event{Key: "n", OldValue: float64(1), NewValue: float64(2), Modified: true}, "modified n: 1 -> 2"},
		{"deleted", storage.Event{Key: "n", OldValue: true, Deleted: true}, "deleted n (was true)"},
		{"cleared", storage.Event{Cleared: true}, "cleared"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ui.DescribeEvent(tt.ev))
		})
	}
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "null", ui.FormatValue(nil))
	assert.Equal(t, `"a<b"`, ui.FormatValue("a<b"))
	assert.Equal(t, `{"a":[1,2]}`, ui.FormatValue(map[string]any{"a": []any{1, 2}}))
}

func TestTextRenderer(t *testing.T) {
	out := render(t, ui.FormatText, func(r ui.Renderer) error {
		if err := r.RenderItem(ui.Item{Key: "k", Value: "v"}); err != nil {
			return err
		}
		return r.RenderItems([]ui.Item{{Key: "a", Value: float64(1)}, {Key: "b", Value: nil}})
	})
	assert.Equal(t, "\"v\"\na\t1\nb\tnull\n", out)

	out = render(t, ui.FormatText, func(r ui.Renderer) error {
		return r.RenderError(errors.New("boom"))
	})
	assert.Equal(t, "Error: boom\n", out)
}

func TestJSONRenderer(t *testing.T) {
	out := render(t, ui.FormatJSON, func(r ui.Renderer) error {
		if err := r.RenderEvent(storage.Event{Key: "a", NewValue: "x", Created: true}); err != nil {
			return err
		}
		return r.RenderEvent(storage.Event{Cleared: true})
	})

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2, "events are one line each")

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "a", first["key"])
	assert.Equal(t, "x", first["newValue"])
	assert.Equal(t, true, first["created"])
	assert.Nil(t, first["oldValue"])

	var cleared map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &cleared))
	assert.Contains(t, cleared, "key")
	assert.Nil(t, cleared["key"], "a cleared event has a null key")
	assert.Equal(t, true, cleared["cleared"])

	out = render(t, ui.FormatJSON, func(r ui.Renderer) error {
		return r.RenderItems(nil)
	})
	assert.JSONEq(t, "[]", out)
}

func TestYAMLRenderer(t *testing.T) {
	out := render(t, ui.FormatYAML, func(r ui.Renderer) error {
		return r.RenderItems([]ui.Item{{Key: "a", Value: "x"}})
	})

	var items []ui.Item
	require.NoError(t, yaml.Unmarshal([]byte(out), &items))
	assert.Equal(t, []ui.Item{{Key: "a", Value: "x"}}, items)
}

func TestTerminalRenderer(t *testing.T) {
	out := render(t, ui.FormatTerminal, func(r ui.Renderer) error {
		for _, ev := range []storage.Event{
			{Key: "a", NewValue: "x", Created: true},
			{Key: "a", OldValue: "x", NewValue: "y", Modified: true},
			{Key: "a", OldValue: "y", Deleted: true},
			{Cleared: true},
		} {
			if err := r.RenderEvent(ev); err != nil {
				return err
			}
		}
		return nil
	})

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "created")
	assert.Contains(t, lines[0], `"x"`)
	assert.Contains(t, lines[1], "modified")
	assert.Contains(t, lines[1], `"y"`)
	assert.Contains(t, lines[2], "deleted")
	assert.Contains(t, lines[3], "cleared")

	out = render(t, ui.FormatTerminal, func(r ui.Renderer) error {
		return r.RenderItems([]ui.Item{{Key: "alpha", Value: float64(1)}})
	})
	assert.Contains(t, out, "Key")
	assert.Contains(t, out, "alpha")

	out = render(t, ui.FormatTerminal, func(r ui.Renderer) error {
		return r.RenderItems(nil)
	})
	assert.Contains(t, out, "no items")
}

func notFound() error {
	return kverrors.Newf(kverrors.ErrNotFound, "item %q not found", "total").
		WithDetail("item", "total").
		WithDetail("prefix", "app:")
}

func TestRenderError(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		out := render(t, ui.FormatText, func(r ui.Renderer) error {
			return r.RenderError(notFound())
		})
		assert.Equal(t, "Error: [NOT_FOUND] item \"total\" not found\n  item: total\n  prefix: app:\n", out)
	})

	t.Run("terminal", func(t *testing.T) {
		out := render(t, ui.FormatTerminal, func(r ui.Renderer) error {
			return r.RenderError(notFound())
		})
		assert.Contains(t, out, "Error: ")
		assert.Contains(t, out, "item: total")
	})

	t.Run("json", func(t *testing.T) {
		out := render(t, ui.FormatJSON, func(r ui.Renderer) error {
			return r.RenderError(notFound())
		})
		assert.JSONEq(t, `{
			"error": "[NOT_FOUND] item \"total\" not found",
			"code": "NOT_FOUND",
			"details": {"item": "total", "prefix": "app:"}
		}`, out)
	})

	t.Run("json plain error", func(t *testing.T) {
		out := render(t, ui.FormatJSON, func(r ui.Renderer) error {
			return r.RenderError(errors.New("boom"))
		})
		assert.JSONEq(t, `{"error": "boom"}`, out)
	})

	t.Run("yaml", func(t *testing.T) {
		out := render(t, ui.FormatYAML, func(r ui.Renderer) error {
			return r.RenderError(notFound())
		})
		var doc map[string]any
		require.NoError(t, yaml.Unmarshal([]byte(out), &doc))
		assert.Equal(t, "NOT_FOUND", doc["code"])
		assert.Equal(t, map[string]any{"item": "total", "prefix": "app:"}, doc["details"])
	})
}

func TestRenderMessage(t *testing.T) {
	out := render(t, ui.FormatText, func(r ui.Renderer) error {
		return r.RenderMessage("Removed total")
	})
	assert.Equal(t, "Removed total\n", out)

	out = render(t, ui.FormatJSON, func(r ui.Renderer) error {
		return r.RenderMessage("Removed total")
	})
	assert.JSONEq(t, `{"message": "Removed total"}`, out)
}
