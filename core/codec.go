package core

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

const (
	// Separator is written between a field name and its value.
	Separator = ':'
	// LegacySeparator is accepted on read for files written by older releases.
	LegacySeparator = '='

	// PairDelimiter joins the pairs of one record.
	PairDelimiter = ", "

	// IDField is the implicit first field of every record.
	IDField = "id"
)

// Field is one decoded name/value pair of a record.
type Field struct {
	Name   string
	Value  string
	Quoted bool
}

// String returns the canonical encoding of the pair.
func (f Field) String() string {
	if f.Name == "" {
		return f.Value
	}
	return f.Name + string(Separator) + quote(f.Value, f.Quoted)
}

// EncodeRecord builds the line for a new record from its id and the caller's
// free-text pairs. The returned line has no terminator.
func EncodeRecord(id int, attrs string) string {
	line := IDField + string(Separator) + strconv.Itoa(id)
	attrs = strings.TrimSpace(attrs)
	if attrs == "" {
		return line
	}
	return line + PairDelimiter + attrs
}

// EncodeFields joins fields into one record line.
func EncodeFields(fields []Field) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f.String())
	}
	return strings.Join(parts, PairDelimiter)
}

// DecodeRecord splits a line into its fields. Decoding is best effort:
// commas inside double quotes do not split, a pair without a separator is
// kept as a nameless field, and empty pairs are dropped.
func DecodeRecord(line string) []Field {
	var fields []Field
	for _, part := range splitPairs(strings.TrimRight(line, "\r\n")) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		idx := separatorIndex(part)
		if idx < 0 {
			fields = append(fields, Field{Value: part})
			continue
		}
		value, quoted := unquote(part[idx+1:])
		fields = append(fields, Field{
			Name:   strings.TrimSpace(part[:idx]),
			Value:  value,
			Quoted: quoted,
		})
	}
	return fields
}

// RecordID returns the integer following the first id marker of line.
func RecordID(line string) (int, bool) {
	idx := markerIndex(line, IDField)
	if idx < 0 {
		return 0, false
	}
	rest := line[idx+len(IDField)+1:]
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	id, err := strconv.Atoi(rest[:end])
	if err != nil {
		return 0, false
	}
	return id, true
}

// NextID scans every line of r and returns one more than the largest id
// found, or 1 when there is none. Lines without a readable id are skipped.
func NextID(r io.Reader) int {
	maxID := 0
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		if id, ok := RecordID(scanner.Text()); ok && id > maxID {
			maxID = id
		}
	}
	return maxID + 1
}

// SpliceValue replaces the value following the first occurrence of
// field:/field= in line with value. The old value ends at the next comma or
// space, or at the closing quote when it was quoted, in which case the quotes
// are kept. Everything else is preserved. It reports false and returns line
// unchanged when the field does not occur.
func SpliceValue(line, field, value string, quoted bool) (string, bool) {
	idx := markerIndex(line, field)
	if idx < 0 {
		return line, false
	}
	start := idx + len(field) + 1

	if start < len(line) && line[start] == '"' {
		closing := strings.IndexByte(line[start+1:], '"')
		if closing < 0 {
			return line[:start] + quote(value, true), true
		}
		end := start + 1 + closing
		return line[:start+1] + value + line[end:], true
	}

	end := strings.IndexAny(line[start:], ", ")
	if end < 0 {
		end = len(line)
	} else {
		end += start
	}
	return line[:start] + quote(value, quoted) + line[end:], true
}

// markerIndex returns the earliest index of field:/field= in line.
func markerIndex(line, field string) int {
	canonical := strings.Index(line, field+string(Separator))
	legacy := strings.Index(line, field+string(LegacySeparator))
	switch {
	case canonical < 0:
		return legacy
	case legacy < 0:
		return canonical
	default:
		return min(canonical, legacy)
	}
}

func separatorIndex(s string) int {
	return strings.IndexAny(s, string(Separator)+string(LegacySeparator))
}

func splitPairs(line string) []string {
	var parts []string
	inQuote := false
	start := 0
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '"':
			inQuote = !inQuote
		case ',':
			if !inQuote {
				parts = append(parts, line[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, line[start:])
}

func unquote(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1], true
	}
	return s, false
}

func quote(s string, quoted bool) string {
	if quoted {
		return `"` + s + `"`
	}
	return s
}
