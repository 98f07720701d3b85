package flatfile

import "strings"

const (
	delimiter = ','
	quote     = '"'
)

// EncodeRow renders one record as a single comma separated row. Fields holding a
// delimiter, a quote or a line break are quoted and their quotes doubled. A
// single empty field is written as "" so it stays distinct from an empty row.
func EncodeRow(fields []string) string {
	if len(fields) == 1 && fields[0] == "" {
		return `""`
	}
	var b strings.Builder
	for i, field := range fields {
		if i > 0 {
			b.WriteByte(delimiter)
		}
		if !needsQuoting(field) {
			b.WriteString(field)
			continue
		}
		b.WriteByte(quote)
		b.WriteString(strings.ReplaceAll(field, `"`, `""`))
		b.WriteByte(quote)
	}
	return b.String()
}

// DecodeLine splits an encoded row back into its fields. An unterminated quoted
// field is closed by the end of the line. An empty line holds no fields.
func DecodeLine(line string) []string {
	if line == "" {
		return []string{}
	}
	fields := make([]string, 0, 8)
	var b strings.Builder
	inQuotes := false

	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case inQuotes && c == quote && i+1 < len(line) && line[i+1] == quote:
			b.WriteByte(quote)
			i++
		case c == quote:
			inQuotes = !inQuotes
		case c == delimiter && !inQuotes:
			fields = append(fields, b.String())
			b.Reset()
		default:
			b.WriteByte(c)
		}
	}

	return append(fields, b.String())
}

// SplitRows breaks file content into encoded rows. Line breaks inside quoted
// fields belong to the row; a trailing carriage return outside quotes is dropped.
func SplitRows(content string) []string {
	rows := make([]string, 0, 16)
	inQuotes := false
	start := 0

	for i := 0; i < len(content); i++ {
		switch content[i] {
		case quote:
			inQuotes = !inQuotes
		case '\n':
			if inQuotes {
				continue
			}
			rows = append(rows, strings.TrimSuffix(content[start:i], "\r"))
			start = i + 1
		}
	}

	if start < len(content) {
		rows = append(rows, strings.TrimSuffix(content[start:], "\r"))
	}

	return rows
}

func needsQuoting(field string) bool {
	return strings.ContainsAny(field, ",\"\n\r")
}
