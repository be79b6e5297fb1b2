package core

import (
	"reflect"
	"strings"
	"testing"
)

func TestEncodeRecord(t *testing.T) {
	tests := []struct {
		name  string
		id    int
		attrs string
		want  string
	}{
		{"with attrs", 1, "name:Ann, age:30", "id:1, name:Ann, age:30"},
		{"trims attrs", 7, "  name:Bo  ", "id:7, name:Bo"},
		{"no attrs", 3, "", "id:3"},
		{"blank attrs", 4, "   ", "id:4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EncodeRecord(tt.id, tt.attrs); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestDecodeRecord(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []Field
	}{
		{
			"canonical",
			"id:1, name:Ann, age:30",
			[]Field{{Name: "id", Value: "1"}, {Name: "name", Value: "Ann"}, {Name: "age", Value: "30"}},
		},
		{
			"legacy separator",
			"id=2, name=Bo",
			[]Field{{Name: "id", Value: "2"}, {Name: "name", Value: "Bo"}},
		},
		{
			"quoted value with comma",
			`id:3, name:"Lee, Cy", city:Oslo`,
			[]Field{{Name: "id", Value: "3"}, {Name: "name", Value: "Lee, Cy", Quoted: true}, {Name: "city", Value: "Oslo"}},
		},
		{
			"value containing separator",
			"id:4, at:10:30",
			[]Field{{Name: "id", Value: "4"}, {Name: "at", Value: "10:30"}},
		},
		{
			"nameless pair and crlf",
			"id:5, orphan,,\r\n",
			[]Field{{Name: "id", Value: "5"}, {Value: "orphan"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecodeRecord(tt.line)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestEncodeFieldsRoundTrip(t *testing.T) {
	line := `id:9, name:"Ann Lee", age:30`
	if got := EncodeFields(DecodeRecord(line)); got != line {
		t.Errorf("Expected %q, got %q", line, got)
	}
}

func TestRecordID(t *testing.T) {
	tests := []struct {
		line string
		id   int
		ok   bool
	}{
		{"id:12, name:Ann", 12, true},
		{"id=7, name=Bo", 7, true},
		{"id:x, name:Ann", 0, false},
		{"name:Ann", 0, false},
		{"id:3", 3, true},
		{"id:4, id:10", 4, true},
	}

	for _, tt := range tests {
		id, ok := RecordID(tt.line)
		if id != tt.id || ok != tt.ok {
			t.Errorf("RecordID(%q): expected (%d, %v), got (%d, %v)", tt.line, tt.id, tt.ok, id, ok)
		}
	}
}

func TestNextID(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
	}{
		{"empty", "", 1},
		{"sequential", "id:1, a:1\nid:2, a:2\n", 3},
		{"gap after delete", "id:1, a:1\nid:5, a:5\n", 6},
		{"max not last", "id:9, a:1\nid:2, a:2\n", 10},
		{"legacy marker", "id=4, a=1\n", 5},
		{"mixed markers", "id=4, a=1\nid:6, a:2\n", 7},
		{"corrupt lines skipped", "garbage\nid:abc\nid:3, a:1\n\n", 4},
		{"only corrupt", "garbage\n", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NextID(strings.NewReader(tt.content)); got != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestSpliceValue(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		field   string
		value   string
		quoted  bool
		want    string
		changed bool
	}{
		{"middle field", "id:1, name:Ann, age:30", "age", "31", false, "id:1, name:Ann, age:31", true},
		{"keeps trailing content", "id:1, age:30, city:Oslo", "age", "31", false, "id:1, age:31, city:Oslo", true},
		{"quoted old value keeps quotes", `id:1, name:"Ann Lee", age:30`, "name", "Bo", false, `id:1, name:"Bo", age:30`, true},
		{"quoted new value", "id:1, name:Ann", "name", "Bo Lee", true, `id:1, name:"Bo Lee"`, true},
		{"legacy separator", "id=1, age=30", "age", "31", false, "id=1, age=31", true},
		{"absent field is a no-op", "id:1, name:Ann", "age", "31", false, "id:1, name:Ann", false},
		{"unterminated quote", `id:1, name:"Ann`, "name", "Bo", false, `id:1, name:"Bo"`, true},
		{"empty old value", "id:1, note:, age:3", "note", "x", false, "id:1, note:x, age:3", true},
		// Substring lookup: "age:" is found inside "page:" first.
		{"substring weakness", "id:1, page:5, age:30", "age", "31", false, "id:1, page:31, age:30", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := SpliceValue(tt.line, tt.field, tt.value, tt.quoted)
			if got != tt.want || changed != tt.changed {
				t.Errorf("Expected (%q, %v), got (%q, %v)", tt.want, tt.changed, got, changed)
			}
		})
	}
}
