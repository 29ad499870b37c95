// Package export renders report rows as CSV, a printable HTML page or an
// XLSX workbook.
package export

import (
	"fmt"
	"time"
)

// Field is one named value of a report row.
type Field struct {
	Key   string
	Value any
}

// Record is an ordered report row. The first record of a set decides the
// columns.
type Record []Field

func (r Record) Keys() []string {
	keys := make([]string, len(r))
	for i, f := range r {
		keys[i] = f.Key
	}
	return keys
}

// Get returns the value stored under key.
func (r Record) Get(key string) (any, bool) {
	for _, f := range r {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Text is the printable form of the value under key; missing keys are empty.
func (r Record) Text(key string) string {
	v, ok := r.Get(key)
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// Header returns the column names of a record set.
func Header(records []Record) []string {
	if len(records) == 0 {
		return nil
	}
	return records[0].Keys()
}

// Filename names a download as prefix-YYYY-MM-DD.ext using the UTC date of now.
func Filename(prefix, ext string, now time.Time) string {
	return fmt.Sprintf("%s-%s.%s", prefix, now.UTC().Format("2006-01-02"), ext)
}

// ShortID is the first eight characters of an id.
func ShortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

// DisplayID shortens an id to eight characters and an ellipsis. Ids of
// eight characters or fewer are returned unchanged.
func DisplayID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8] + "…"
}
