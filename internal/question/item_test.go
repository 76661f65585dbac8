package question

import (
	"errors"
	"strings"
	"testing"
)

func TestParseAcceptsObjectWithQuestion(t *testing.T) {
	item, err := Parse([]byte("{\n  \"question\": \"Find x\",\n  \"marks\": 4,\n  \"a\": [1, 2]\n}"))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if got := string(item.Raw()); got != `{"question":"Find x","marks":4,"a":[1,2]}` {
		t.Fatalf("unexpected raw %s", got)
	}
	if item.Text() != "Find x" {
		t.Fatalf("unexpected text %q", item.Text())
	}
}

func TestParsePreservesFieldOrder(t *testing.T) {
	item := MustParse(`{"zeta":1,"question":"Q","alpha":2}`)
	if got := string(item.Raw()); got != `{"zeta":1,"question":"Q","alpha":2}` {
		t.Fatalf("field order changed: %s", got)
	}
}

func TestParseRejects(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want error
	}{
		{name: "array", raw: `[{"question":"Q"}]`, want: ErrNotObject},
		{name: "garbage", raw: `not json`, want: ErrNotObject},
		{name: "truncated", raw: `{"question":"Q"`, want: ErrNotObject},
		{name: "missing", raw: `{"text":"Q"}`, want: ErrMissingQuestion},
		{name: "null", raw: `{"question":null}`, want: ErrMissingQuestion},
		{name: "blank", raw: `{"question":"   "}`, want: ErrMissingQuestion},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.raw))
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestParseAcceptsStructuredQuestion(t *testing.T) {
	item, err := Parse([]byte(`{"question":{"stem":"S","parts":["a"]}}`))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if item.Text() != `{"stem":"S","parts":["a"]}` {
		t.Fatalf("unexpected text %q", item.Text())
	}
}

func TestIndentedList(t *testing.T) {
	items := []Item{MustParse(`{"question":"A"}`), MustParse(`{"question":"<b>&"}`)}
	got := IndentedList(items)
	want := "[\n  {\n    \"question\": \"A\"\n  },\n  {\n    \"question\": \"<b>&\"\n  }\n]"
	if got != want {
		t.Fatalf("unexpected list:\n%s", got)
	}
	if IndentedList(nil) != "[]" {
		t.Fatalf("unexpected empty list %q", IndentedList(nil))
	}
}

func TestIndented(t *testing.T) {
	got := MustParse(`{"question":"Q","marks":2}`).Indented()
	if !strings.Contains(got, "\n  \"marks\": 2\n") {
		t.Fatalf("unexpected indentation:\n%s", got)
	}
}
