package export

import (
	"html/template"
	"io"
)

var printTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
  <head>
    <meta charset="utf-8">
    <title>{{.Title}}</title>
    <style>
      body { font-family: Arial, sans-serif; margin: 20px; }
      h1 { color: #333; }
      table { width: 100%; border-collapse: collapse; margin-top: 20px; }
      th, td { border: 1px solid #ddd; padding: 8px; text-align: left; }
      th { background-color: #f2f2f2; }
      @media print { body { margin: 0; } }
    </style>
  </head>
  <body>
    <h1>{{.Title}}</h1>
    {{- if .Header}}
    <table>
      <thead>
        <tr>{{range .Header}}<th>{{.}}</th>{{end}}</tr>
      </thead>
      <tbody>
        {{- range .Rows}}
        <tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
        {{- end}}
      </tbody>
    </table>
    {{- else}}
    <p>No data for the selected filters.</p>
    {{- end}}
    <script>
      window.onload = function() {
        window.print();
      };
    </script>
  </body>
</html>
`))

// WriteHTML renders a print-styled document with one table that opens the
// browser print dialog on load.
func WriteHTML(w io.Writer, title string, records []Record) error {
	header := Header(records)
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		row := make([]string, len(header))
		for i, key := range header {
			row[i] = rec.Text(key)
		}
		rows = append(rows, row)
	}
	return printTemplate.Execute(w, struct {
		Title  string
		Header []string
		Rows   [][]string
	}{title, header, rows})
}
