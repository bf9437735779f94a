// Package codec converts between stored strings and structured values.
//
// Values are stored as JSON text. Decoding is best effort: text that is not
// valid JSON is returned unchanged, tagged as not decoded, so a value
// written by a foreign writer still reaches handlers as a plain string.
package codec

import (
	"bytes"
	"encoding/json"
	stderrors "errors"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/arthur-debert/kvsync/pkg/errors"
)

// Result is the outcome of a decode.
type Result struct {
	// Value is the decoded value, the raw string when decoding fell back,
	// or nil for a missing value.
	Value any
	// Decoded is true when Value came from parsing JSON.
	Decoded bool
}

// Encode serializes v as JSON text. HTML characters are left unescaped so
// the stored text matches what other JSON writers produce.
func Encode(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", errors.Wrapf(err, errors.ErrEncode, "cannot encode %T", v)
	}
	return string(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
}

// Decode decodes a nullable stored value. nil stays nil.
func Decode(raw *string) Result {
	if raw == nil {
		return Result{}
	}
	return DecodeString(*raw)
}

// DecodeString parses s as JSON, falling back to s itself. A number too
// large for a float64 decodes to an infinity of the same sign.
func DecodeString(s string) Result {
	if !gjson.Valid(s) {
		return Result{Value: s}
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		// Into an any, the only type error is a number out of float64
		// range. gjson reads those as infinities.
		var rangeErr *json.UnmarshalTypeError
		if stderrors.As(err, &rangeErr) {
			return Result{Value: gjson.Parse(s).Value(), Decoded: true}
		}
		return Result{Value: s}
	}
	return Result{Value: v, Decoded: true}
}

// Path reads the value at a gjson path inside a JSON document.
func Path(raw, path string) (any, bool) {
	res := gjson.Get(raw, path)
	if !res.Exists() {
		return nil, false
	}
	return res.Value(), true
}

// SetPath returns raw with the value at path replaced by v. A raw value
// that is not a JSON object or array is replaced by a new object.
func SetPath(raw, path string, v any) (string, error) {
	if !gjson.Valid(raw) {
		raw = "{}"
	} else if parsed := gjson.Parse(raw); !parsed.IsObject() && !parsed.IsArray() {
		raw = "{}"
	}
	out, err := sjson.Set(raw, path, v)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrEncode, "cannot set path %q", path)
	}
	return out, nil
}
