package export

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"
)

// WriteCSV writes records with every field quoted and inner quotes doubled,
// rows separated by "\n" and no trailing newline. No records, no output.
func WriteCSV(w io.Writer, records []Record) error {
	header := Header(records)
	if header == nil {
		return nil
	}
	var b strings.Builder
	writeCSVRow(&b, header)
	row := make([]string, len(header))
	for _, rec := range records {
		for i, key := range header {
			row[i] = rec.Text(key)
		}
		b.WriteByte('\n')
		writeCSVRow(&b, row)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeCSVRow(b *strings.Builder, fields []string) {
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(f, `"`, `""`))
		b.WriteByte('"')
	}
}

// ParseCSV reads a header row and data rows back into records with string
// values.
func ParseCSV(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []Record
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		rec := make(Record, len(header))
		for i, key := range header {
			rec[i] = Field{Key: key, Value: row[i]}
		}
		out = append(out, rec)
	}
}
