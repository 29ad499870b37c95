// Package ingest imports assets and their locations from CSV uploads.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"fibermig/internal/model"
)

// Columns is the expected header, in the order the sample file uses.
var Columns = []string{"address", "region", "type", "status", "installation_date", "technician_id", "coordinates_lat", "coordinates_lng"}

var ErrNoDataRows = errors.New("CSV file must contain header row and at least one data row")

// Row is one data line keyed by lower-cased header name.
type Row struct {
	Line   int
	Fields map[string]string
}

func (r Row) get(key string) string { return strings.TrimSpace(r.Fields[key]) }

// Parse reads the header and data rows. Rows whose column count differs
// from the header become errors and are skipped. It fails when there are no
// data rows or when every data row was rejected.
func Parse(r io.Reader) ([]Row, []string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) < 2 {
		return nil, nil, ErrNoDataRows
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.ToLower(strings.TrimSpace(strings.Trim(h, `"`)))
	}

	var (
		rows []Row
		errs []string
	)
	for i, rec := range records[1:] {
		line := i + 2
		if len(rec) != len(header) {
			errs = append(errs, fmt.Sprintf("Row %d: Column count mismatch (expected %d, got %d)", line, len(header), len(rec)))
			continue
		}
		fields := make(map[string]string, len(header))
		for j, h := range header {
			fields[h] = strings.TrimSpace(rec[j])
		}
		rows = append(rows, Row{Line: line, Fields: fields})
	}
	if len(rows) == 0 {
		return nil, errs, fmt.Errorf("CSV parsing errors:\n%s", strings.Join(errs, "\n"))
	}
	return rows, errs, nil
}

// Item is a validated row ready to be stored.
type Item struct {
	Line     int
	Location model.LocationInput
	Asset    model.AssetInput
}

// Convert validates rows and builds the location and asset for each valid
// one. Every problem of a row is reported; invalid rows are skipped.
func Convert(rows []Row) ([]Item, []string) {
	var (
		items []Item
		errs  []string
	)
	for _, row := range rows {
		item, rowErrs := convertRow(row)
		if len(rowErrs) > 0 {
			errs = append(errs, rowErrs...)
			continue
		}
		items = append(items, item)
	}
	return items, errs
}

func convertRow(row Row) (Item, []string) {
	var errs []string
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf("Row %d: ", row.Line)+fmt.Sprintf(format, args...))
	}

	address := row.get("address")
	if address == "" {
		fail("Missing address")
	}

	region := model.Region(row.get("region"))
	switch {
	case region == "":
		fail("Missing region")
	case !region.Valid():
		fail("Invalid region %q. Must be one of: %s", region, join(model.AllRegions))
	}

	assetType, ok := model.ParseAssetType(row.get("type"))
	switch {
	case row.get("type") == "":
		fail("Missing asset type")
	case !ok:
		fail("Invalid asset type %q. Must be one of: %s", row.get("type"), join(model.AllAssetTypes))
	}

	status, ok := model.ParseAssetStatus(row.get("status"))
	switch {
	case row.get("status") == "":
		fail("Missing status")
	case !ok:
		fail("Invalid status %q. Must be one of: %s", row.get("status"), join(model.AllAssetStatuses))
	}

	date := row.get("installation_date")
	if _, err := time.Parse("2006-01-02", date); date != "" && err != nil {
		fail("Invalid date format %q. Use YYYY-MM-DD format", date)
	}

	var coords model.Coordinates
	latText, lngText := row.get("coordinates_lat"), row.get("coordinates_lng")
	if latText != "" && lngText != "" {
		lat, errLat := strconv.ParseFloat(latText, 64)
		lng, errLng := strconv.ParseFloat(lngText, 64)
		if errLat != nil || errLng != nil || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
			fail("Invalid coordinates (lat: %s, lng: %s)", latText, lngText)
		} else {
			coords = model.Coordinates{Lat: lat, Lng: lng}
		}
	}

	if len(errs) > 0 {
		return Item{}, errs
	}
	return Item{
		Line: row.Line,
		Location: model.LocationInput{
			Address:     address,
			Region:      region,
			Coordinates: coords,
			FiberStatus: model.FiberPending,
		},
		Asset: model.AssetInput{
			Type:             assetType,
			Status:           status,
			InstallationDate: date,
			TechnicianID:     row.get("technician_id"),
		},
	}, nil
}

func join[T ~string](vals []T) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}
