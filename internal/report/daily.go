package report

import (
	"sort"
	"time"

	"fibermig/internal/export"
	"fibermig/internal/model"
)

// Unscheduled is the bucket for work orders without a start_time. It sorts
// after every date.
const Unscheduled = "unscheduled"

const notAvailable = "N/A"

type DailyRow struct {
	Date       string `json:"date"`
	Completed  int    `json:"completed"`
	InProgress int    `json:"in_progress"`
	Failed     int    `json:"failed"`
	Total      int    `json:"total"`
}

func (r DailyRow) Record() export.Record {
	return export.Record{
		{Key: "Date", Value: r.Date},
		{Key: "Completed", Value: r.Completed},
		{Key: "In Progress", Value: r.InProgress},
		{Key: "Failed", Value: r.Failed},
		{Key: "Total", Value: r.Total},
	}
}

// Daily buckets the filtered work orders by start date, ascending by date
// string. No matching work orders gives an empty slice.
func Daily(workOrders []model.WorkOrder, locations []model.Location, f Filter) []DailyRow {
	buckets := map[string]*DailyRow{}
	for _, wo := range f.Apply(workOrders, locations) {
		key := Unscheduled
		if wo.StartTime != nil {
			key = dateOf(*wo.StartTime)
		}
		row := buckets[key]
		if row == nil {
			row = &DailyRow{Date: key}
			buckets[key] = row
		}
		row.Total++
		switch wo.Status {
		case model.WorkOrderCompleted:
			row.Completed++
		case model.WorkOrderInProgress:
			row.InProgress++
		case model.WorkOrderFailed:
			row.Failed++
		}
	}
	out := make([]DailyRow, 0, len(buckets))
	for _, row := range buckets {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

type WorkOrderRow struct {
	WorkOrderID string                `json:"work_order_id"`
	Address     string                `json:"address"`
	Region      string                `json:"region"`
	Status      model.WorkOrderStatus `json:"status"`
	StartTime   *time.Time            `json:"start_time,omitempty"`
	EndTime     *time.Time            `json:"end_time,omitempty"`
}

func (r WorkOrderRow) Record() export.Record {
	return export.Record{
		{Key: "Work Order ID", Value: export.ShortID(r.WorkOrderID)},
		{Key: "Location", Value: r.Address},
		{Key: "Region", Value: r.Region},
		{Key: "Status", Value: string(r.Status)},
		{Key: "Start Time", Value: formatTime(r.StartTime)},
		{Key: "End Time", Value: formatTime(r.EndTime)},
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return notAvailable
	}
	return t.UTC().Format("2006-01-02 15:04 UTC")
}

// WorkOrderDetail lists the filtered work orders with their location.
func WorkOrderDetail(workOrders []model.WorkOrder, locations []model.Location, f Filter) []WorkOrderRow {
	locByID := indexLocations(locations)
	filtered := f.Apply(workOrders, locations)
	out := make([]WorkOrderRow, 0, len(filtered))
	for _, wo := range filtered {
		row := WorkOrderRow{
			WorkOrderID: wo.ID,
			Address:     notAvailable,
			Region:      notAvailable,
			Status:      wo.Status,
			StartTime:   wo.StartTime,
			EndTime:     wo.EndTime,
		}
		if loc, ok := locByID[wo.LocationID]; ok {
			row.Address, row.Region = loc.Address, string(loc.Region)
		}
		out = append(out, row)
	}
	return out
}

// DailyRecords and WorkOrderRecords convert rows for export.
func DailyRecords(rows []DailyRow) []export.Record {
	out := make([]export.Record, len(rows))
	for i, r := range rows {
		out[i] = r.Record()
	}
	return out
}

func WorkOrderRecords(rows []WorkOrderRow) []export.Record {
	out := make([]export.Record, len(rows))
	for i, r := range rows {
		out[i] = r.Record()
	}
	return out
}
