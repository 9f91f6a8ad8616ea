package usecase

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/storepulse/backend/internal/domain"
)

// Serializer converts an ordered batch of records into delimited text and
// newline-delimited JSON. It never mutates or reorders its input; both
// outputs are deterministic for a fixed configuration.
type Serializer struct {
	delimiter rune
	quote     rune
	escape    rune
}

// NewSerializer builds a serializer from single-character config strings
// (validated by config.Load).
func NewSerializer(delimiter, quote, escape string) *Serializer {
	return &Serializer{
		delimiter: []rune(delimiter)[0],
		quote:     []rune(quote)[0],
		escape:    []rune(escape)[0],
	}
}

// CSV renders the batch as delimited text. The header row is the union of
// all field names across the batch in first-seen order; fields missing from
// a record render empty.
func (s *Serializer) CSV(records []*domain.Record) ([]byte, error) {
	var headers []string
	seen := make(map[string]bool)
	for _, rec := range records {
		for _, key := range rec.Keys() {
			if !seen[key] {
				seen[key] = true
				headers = append(headers, key)
			}
		}
	}

	var b strings.Builder
	for i, h := range headers {
		if i > 0 {
			b.WriteRune(s.delimiter)
		}
		b.WriteString(s.encodeField(h))
	}
	b.WriteByte('\n')

	for _, rec := range records {
		for i, h := range headers {
			if i > 0 {
				b.WriteRune(s.delimiter)
			}
			value, ok := rec.Get(h)
			if !ok {
				continue
			}
			text, err := fieldText(value)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", h, err)
			}
			b.WriteString(s.encodeField(text))
		}
		b.WriteByte('\n')
	}

	return []byte(b.String()), nil
}

// NDJSON renders one compact JSON object per line in input order, so a
// partially written file stays parseable line by line.
func (s *Serializer) NDJSON(records []*domain.Record) ([]byte, error) {
	var b strings.Builder
	for _, rec := range records {
		line, err := json.Marshal(rec)
		if err != nil {
			return nil, err
		}
		b.Write(line)
		b.WriteByte('\n')
	}
	return []byte(b.String()), nil
}

// encodeField quotes a value when it contains the delimiter, the quote or
// escape character, or a line break. A distinct escape character is doubled
// before quotes are escaped, so the decode side can tell a literal escape
// character from an escape sequence.
func (s *Serializer) encodeField(field string) string {
	needsQuoting := strings.ContainsRune(field, s.delimiter) ||
		strings.ContainsRune(field, s.quote) ||
		strings.ContainsAny(field, "\r\n") ||
		(s.escape != s.quote && strings.ContainsRune(field, s.escape))
	if !needsQuoting {
		return field
	}
	escaped := field
	if s.escape != s.quote {
		escaped = strings.ReplaceAll(escaped, string(s.escape), string(s.escape)+string(s.escape))
	}
	escaped = strings.ReplaceAll(escaped, string(s.quote), string(s.escape)+string(s.quote))
	return string(s.quote) + escaped + string(s.quote)
}

// fieldText flattens a decoded JSON value to its CSV cell representation.
// Nested values render as compact JSON.
func fieldText(value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case bool:
		return strconv.FormatBool(v), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(v), nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}
