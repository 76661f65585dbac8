// Package question holds the work item passed between pipeline stages: an
// opaque JSON object that must carry a non-empty "question" field.
//
// Items keep the object bytes exactly as the model produced them (compacted
// onto a single line) so field order and unknown fields survive every stage.
package question

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// FieldName is the key every valid item must carry.
const FieldName = "question"

var (
	// ErrNotObject indicates the payload is not a JSON object.
	ErrNotObject = errors.New("payload is not a JSON object")
	// ErrMissingQuestion indicates the object lacks a usable "question" field.
	ErrMissingQuestion = errors.New("missing 'question' field")
)

// Item is one question record.
type Item struct {
	raw json.RawMessage
}

// Parse validates raw as a JSON object carrying a non-empty question and
// returns it as an Item.
func Parse(raw []byte) (Item, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Item{}, ErrNotObject
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return Item{}, fmt.Errorf("%w: %v", ErrNotObject, err)
	}
	if !usableQuestion(fields[FieldName]) {
		return Item{}, ErrMissingQuestion
	}
	var compacted bytes.Buffer
	if err := json.Compact(&compacted, trimmed); err != nil {
		return Item{}, fmt.Errorf("%w: %v", ErrNotObject, err)
	}
	return Item{raw: compacted.Bytes()}, nil
}

// MustParse is Parse for fixtures; it panics on invalid input.
func MustParse(raw string) Item {
	item, err := Parse([]byte(raw))
	if err != nil {
		panic(err)
	}
	return item
}

func usableQuestion(value json.RawMessage) bool {
	value = bytes.TrimSpace(value)
	if len(value) == 0 || bytes.Equal(value, []byte("null")) {
		return false
	}
	if value[0] == '"' {
		var text string
		if err := json.Unmarshal(value, &text); err != nil {
			return false
		}
		return strings.TrimSpace(text) != ""
	}
	return true
}

// Raw returns the compact single-line JSON bytes.
func (i Item) Raw() []byte {
	return append([]byte(nil), i.raw...)
}

// Text returns the question text when it is a JSON string, or the raw JSON
// of the field otherwise.
func (i Item) Text() string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(i.raw, &fields); err != nil {
		return ""
	}
	value := fields[FieldName]
	var text string
	if err := json.Unmarshal(value, &text); err == nil {
		return text
	}
	return string(value)
}

// Indented renders the item with two-space indentation for prompts.
func (i Item) Indented() string {
	return indent(i.raw)
}

// MarshalJSON emits the stored bytes unchanged.
func (i Item) MarshalJSON() ([]byte, error) {
	if len(i.raw) == 0 {
		return []byte("null"), nil
	}
	return i.Raw(), nil
}

// Equal reports byte equality of two items.
func (i Item) Equal(other Item) bool {
	return bytes.Equal(i.raw, other.raw)
}

// IndentedList renders items as a two-space indented JSON array.
func IndentedList(items []Item) string {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for idx, item := range items {
		if idx > 0 {
			buf.WriteByte(',')
		}
		buf.Write(item.raw)
	}
	buf.WriteByte(']')
	return indent(buf.Bytes())
}

func indent(raw []byte) string {
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return string(raw)
	}
	return out.String()
}
