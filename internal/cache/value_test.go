package cache

import (
	"errors"
	"testing"
)

func TestJSONKeepsHTMLCharacters(t *testing.T) {
	value, err := JSON(map[string]string{"html": "<b>a & b</b>"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if got, want := string(value.Payload()), `{"html":"<b>a & b</b>"}`; got != want {
		t.Fatalf("payload = %s, want %s", got, want)
	}
	if value.DataType() != DataTypeObject {
		t.Fatalf("expected object, got %s", value.DataType())
	}
}

func TestJSONStringBecomesText(t *testing.T) {
	value, err := JSON("<tag>")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if value.DataType() != DataTypeString || string(value.Payload()) != "<tag>" {
		t.Fatalf("unexpected value %s %q", value.DataType(), value.Payload())
	}
}

func TestRawJSONRejectsNullAndGarbage(t *testing.T) {
	for _, raw := range []string{"null", "{", ""} {
		if _, err := RawJSON([]byte(raw)); !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("RawJSON(%q): expected ErrInvalidArgument, got %v", raw, err)
		}
	}
}
