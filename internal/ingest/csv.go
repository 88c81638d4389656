package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrEmptyFile is returned when a file has no header row
var ErrEmptyFile = errors.New("file is empty")

// Table is a parsed tabular file: a header and its data rows
type Table struct {
	Header []string
	Rows   [][]string
}

// DecodeCSV reads a spreadsheet export. It strips byte order marks, falls
// back to Windows-1252 for input that is not UTF-8, and picks the delimiter
// among comma, semicolon and tab from the header line.
func DecodeCSV(r io.Reader) (*Table, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	text, err := toUTF8(raw)
	if err != nil {
		return nil, fmt.Errorf("decode file: %w", err)
	}

	reader := csv.NewReader(bytes.NewReader(text))
	reader.Comma = sniffDelimiter(text)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("parse header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse rows: %w", err)
	}
	return &Table{Header: header, Rows: rows}, nil
}

func hasUTF16BOM(b []byte) bool {
	return bytes.HasPrefix(b, []byte{0xFF, 0xFE}) || bytes.HasPrefix(b, []byte{0xFE, 0xFF})
}

func toUTF8(raw []byte) ([]byte, error) {
	if hasUTF16BOM(raw) || utf8.Valid(raw) {
		out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), raw)
		return out, err
	}
	out, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), raw)
	return out, err
}

// sniffDelimiter counts candidate separators outside quotes on the first non-blank line
func sniffDelimiter(text []byte) rune {
	var line []byte
	for _, l := range bytes.Split(text, []byte("\n")) {
		if len(bytes.TrimSpace(l)) > 0 {
			line = l
			break
		}
	}

	counts := map[rune]int{}
	inQuotes := false
	for _, r := range string(line) {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case !inQuotes && (r == ',' || r == ';' || r == '\t'):
			counts[r]++
		}
	}

	best := ','
	for _, c := range []rune{';', '\t'} {
		if counts[c] > counts[best] {
			best = c
		}
	}
	return best
}
