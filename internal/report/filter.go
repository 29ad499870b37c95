// Package report aggregates work orders and other entities into the rows
// and figures the dashboard and exports show.
package report

import (
	"fmt"
	"time"

	"fibermig/internal/model"
)

const (
	dateLayout = "2006-01-02"
	// All disables the region and wave filters.
	All = "All"
)

// Filter selects work orders. Empty fields do not filter; Start and End
// are inclusive YYYY-MM-DD bounds on the UTC calendar date of start_time.
// Work orders without start_time always pass the date bounds. Region and
// WaveID exclude work orders whose location cannot be resolved.
type Filter struct {
	Start  string `json:"start_date,omitempty"`
	End    string `json:"end_date,omitempty"`
	Region string `json:"region,omitempty"`
	WaveID string `json:"wave_id,omitempty"`
}

func (f Filter) Validate() error {
	for _, b := range [...]struct{ name, value string }{{"start_date", f.Start}, {"end_date", f.End}} {
		if b.value == "" {
			continue
		}
		if _, err := time.Parse(dateLayout, b.value); err != nil {
			return fmt.Errorf("%s: %q is not a YYYY-MM-DD date", b.name, b.value)
		}
	}
	if f.Start != "" && f.End != "" && f.End < f.Start {
		return fmt.Errorf("end_date %s is before start_date %s", f.End, f.Start)
	}
	if f.Region != "" && f.Region != All && !model.Region(f.Region).Valid() {
		return fmt.Errorf("unknown region %q", f.Region)
	}
	return nil
}

func (f Filter) regionActive() bool { return f.Region != "" && f.Region != All }
func (f Filter) waveActive() bool   { return f.WaveID != "" && f.WaveID != All }

// Apply returns the work orders that pass the filter, in input order.
func (f Filter) Apply(workOrders []model.WorkOrder, locations []model.Location) []model.WorkOrder {
	locByID := indexLocations(locations)
	out := make([]model.WorkOrder, 0, len(workOrders))
	for _, wo := range workOrders {
		if f.match(wo, locByID) {
			out = append(out, wo)
		}
	}
	return out
}

func (f Filter) match(wo model.WorkOrder, locByID map[string]model.Location) bool {
	if wo.StartTime != nil {
		d := dateOf(*wo.StartTime)
		if f.Start != "" && d < f.Start {
			return false
		}
		if f.End != "" && d > f.End {
			return false
		}
	}
	if !f.regionActive() && !f.waveActive() {
		return true
	}
	loc, ok := locByID[wo.LocationID]
	if !ok {
		return false
	}
	if f.regionActive() && string(loc.Region) != f.Region {
		return false
	}
	if f.waveActive() && loc.WaveID != f.WaveID {
		return false
	}
	return true
}

func indexLocations(locations []model.Location) map[string]model.Location {
	m := make(map[string]model.Location, len(locations))
	for _, l := range locations {
		m[l.ID] = l
	}
	return m
}

func dateOf(t time.Time) string { return t.UTC().Format(dateLayout) }
