package export

import (
	"bytes"
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func daily() []Record {
	return []Record{
		{{"Date", "2024-05-01"}, {"Completed", 2}, {"In Progress", 1}, {"Failed", 0}, {"Total", 3}},
		{{"Date", "2024-05-02"}, {"Completed", 0}, {"In Progress", 0}, {"Failed", 1}, {"Total", 1}},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, daily()))
	want := `"Date","Completed","In Progress","Failed","Total"` + "\n" +
		`"2024-05-01","2","1","0","3"` + "\n" +
		`"2024-05-02","0","0","1","1"`
	assert.Equal(t, want, buf.String())
}

func TestWriteCSVDoublesQuotes(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []Record{{{"Location", `12 "Old" Rd, Unit 4`}}}))
	assert.Equal(t, "\"Location\"\n\"12 \"\"Old\"\" Rd, Unit 4\"", buf.String())

	back, err := ParseCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, `12 "Old" Rd, Unit 4`, back[0].Text("Location"))
}

func TestWriteCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	assert.Empty(t, buf.String())

	back, err := ParseCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, back)
}

func TestWriteCSVUsesFirstRecordColumns(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []Record{
		{{"A", "1"}, {"B", "2"}},
		{{"B", "3"}, {"C", "4"}},
	}))
	assert.Equal(t, "\"A\",\"B\"\n\"1\",\"2\"\n\"\",\"3\"", buf.String())
}

func TestCSVRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	const alphabet = "abcdefghijklmnopqrstuvwxyz ABCDEFGHIJ0123456789-_.:/"
	word := func() string {
		n := r.Intn(12)
		b := make([]byte, n)
		for i := range b {
			b[i] = alphabet[r.Intn(len(alphabet))]
		}
		return string(b)
	}
	for i := 0; i < 100; i++ {
		cols := 1 + r.Intn(6)
		var records []Record
		n := 1 + r.Intn(10)
		for j := 0; j < n; j++ {
			rec := make(Record, cols)
			for c := range rec {
				rec[c] = Field{Key: fmt.Sprintf("col%d", c), Value: word()}
			}
			records = append(records, rec)
		}
		var buf bytes.Buffer
		require.NoError(t, WriteCSV(&buf, records))
		back, err := ParseCSV(&buf)
		require.NoError(t, err)
		if diff := cmp.Diff(records, back); diff != "" {
			t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestWriteHTML(t *testing.T) {
	var buf bytes.Buffer
	recs := []Record{{{"Location", "<b>1 Main</b>"}, {"Total", 3}}}
	require.NoError(t, WriteHTML(&buf, "Daily Migration Report", recs))
	out := buf.String()
	assert.Contains(t, out, "<title>Daily Migration Report</title>")
	assert.Contains(t, out, "<th>Location</th><th>Total</th>")
	assert.Contains(t, out, "<td>&lt;b&gt;1 Main&lt;/b&gt;</td><td>3</td>")
	assert.Contains(t, out, "border-collapse: collapse")
	assert.Contains(t, out, "window.print()")
}

func TestWriteHTMLEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHTML(&buf, "Empty", nil))
	assert.Contains(t, buf.String(), "No data for the selected filters.")
	assert.NotContains(t, buf.String(), "<table>")
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, "Daily", daily()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Daily")
	require.NoError(t, err)
	want := [][]string{
		{"Date", "Completed", "In Progress", "Failed", "Total"},
		{"2024-05-01", "2", "1", "0", "3"},
		{"2024-05-02", "0", "0", "1", "1"},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestFilename(t *testing.T) {
	now := time.Date(2024, 5, 1, 23, 30, 0, 0, time.FixedZone("PDT", -7*3600))
	assert.Equal(t, "reconciliation-2024-05-02.csv", Filename("reconciliation", "csv", now))
}

func TestShortAndDisplayID(t *testing.T) {
	assert.Equal(t, "abc", DisplayID("abc"))
	assert.Equal(t, "12345678", DisplayID("12345678"))
	assert.Equal(t, "12345678…", DisplayID("123456789"))
	assert.Equal(t, "12345678", ShortID("123456789"))
}
