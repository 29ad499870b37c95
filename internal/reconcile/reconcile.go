// Package reconcile cross-checks asset inventory status against completed
// field work.
package reconcile

import (
	"fibermig/internal/export"
	"fibermig/internal/model"
)

const (
	// NoWorkOrder marks an asset whose location has no work order.
	NoWorkOrder = "No Work Order"
	// NotAvailable stands in for an unresolved location.
	NotAvailable = "N/A"
	// All disables a filter.
	All = "All"
)

// Filter restricts reconciliation to assets at locations in Region.
// Empty or "All" means no restriction.
type Filter struct {
	Region string
}

func (f Filter) active() bool { return f.Region != "" && f.Region != All }

// Row is one reconciled asset.
type Row struct {
	AssetID         string            `json:"asset_id"`
	Type            model.AssetType   `json:"type"`
	Address         string            `json:"address"`
	Region          string            `json:"region"`
	AssetStatus     model.AssetStatus `json:"asset_status"`
	WorkOrderStatus string            `json:"work_order_status"`
	HasCompletedWO  bool              `json:"has_completed_work_order"`
	Discrepancy     bool              `json:"discrepancy"`
}

// DisplayID is the shortened asset id shown in tables.
func (r Row) DisplayID() string { return export.DisplayID(r.AssetID) }

// Record is the export shape of the row.
func (r Row) Record() export.Record {
	return export.Record{
		{Key: "Asset ID", Value: export.ShortID(r.AssetID)},
		{Key: "Type", Value: string(r.Type)},
		{Key: "Location", Value: r.Address},
		{Key: "Region", Value: r.Region},
		{Key: "Asset Status", Value: string(r.AssetStatus)},
		{Key: "Work Order Status", Value: r.WorkOrderStatus},
		{Key: "Has Completed WO", Value: yesNo(r.HasCompletedWO)},
		{Key: "Discrepancy", Value: yesNo(r.Discrepancy)},
	}
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// Compare produces one row per asset, in asset order. An asset is a
// discrepancy when it is not completed although a work order at its
// location is. Only the first Completed work order at the location is
// reported; open ones leave the row at NoWorkOrder.
func Compare(assets []model.Asset, workOrders []model.WorkOrder, locations []model.Location, f Filter) []Row {
	locByID := make(map[string]model.Location, len(locations))
	for _, l := range locations {
		locByID[l.ID] = l
	}
	firstCompleted := map[string]model.WorkOrder{}
	for _, wo := range workOrders {
		if wo.Status == model.WorkOrderCompleted {
			if _, ok := firstCompleted[wo.LocationID]; !ok {
				firstCompleted[wo.LocationID] = wo
			}
		}
	}

	rows := make([]Row, 0, len(assets))
	for _, a := range assets {
		loc, resolved := locByID[a.LocationID]
		if f.active() && (!resolved || string(loc.Region) != f.Region) {
			continue
		}
		row := Row{
			AssetID:         a.ID,
			Type:            a.Type,
			Address:         NotAvailable,
			Region:          NotAvailable,
			AssetStatus:     a.Status,
			WorkOrderStatus: NoWorkOrder,
		}
		if resolved {
			row.Address, row.Region = loc.Address, string(loc.Region)
		}
		if wo, ok := firstCompleted[a.LocationID]; ok {
			row.HasCompletedWO = true
			row.WorkOrderStatus = string(wo.Status)
		}
		row.Discrepancy = a.Status != model.AssetCompleted && row.HasCompletedWO
		rows = append(rows, row)
	}
	return rows
}

// Summary aggregates reconciled rows.
type Summary struct {
	Total         int     `json:"total"`
	Completed     int     `json:"completed"`
	Pending       int     `json:"pending"`
	Discrepancies int     `json:"discrepancies"`
	MatchRate     float64 `json:"match_rate"`
}

// Summarize counts rows; MatchRate is the percentage of rows without a
// discrepancy and 0 for no rows.
func Summarize(rows []Row) Summary {
	s := Summary{Total: len(rows)}
	for _, r := range rows {
		switch r.AssetStatus {
		case model.AssetCompleted:
			s.Completed++
		case model.AssetPending:
			s.Pending++
		}
		if r.Discrepancy {
			s.Discrepancies++
		}
	}
	if s.Total > 0 {
		s.MatchRate = float64(s.Total-s.Discrepancies) / float64(s.Total) * 100
	}
	return s
}

// Records converts rows for export.
func Records(rows []Row) []export.Record {
	out := make([]export.Record, len(rows))
	for i, r := range rows {
		out[i] = r.Record()
	}
	return out
}
