package api

import (
	"bytes"
	"fmt"
	"net/http"

	"fibermig/internal/export"
	"fibermig/internal/reconcile"
	"fibermig/internal/report"
	"fibermig/internal/store"
)

const (
	formatJSON = "json"
	formatCSV  = "csv"
	formatHTML = "html"
	formatXLSX = "xlsx"
)

var contentTypes = map[string]string{
	formatCSV:  "text/csv; charset=utf-8",
	formatHTML: "text/html; charset=utf-8",
	formatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

func reportFilter(r *http.Request) report.Filter {
	q := r.URL.Query()
	return report.Filter{
		Start:  q.Get("start_date"),
		End:    q.Get("end_date"),
		Region: q.Get("region"),
		WaveID: q.Get("wave_id"),
	}
}

func reportFormat(r *http.Request) (string, error) {
	f := r.URL.Query().Get("format")
	switch f {
	case "":
		return formatJSON, nil
	case formatJSON, formatCSV, formatHTML, formatXLSX:
		return f, nil
	}
	return "", fmt.Errorf("unknown format %q (json, csv, html, xlsx)", f)
}

// writeExport renders records in a file format, or body as JSON. The file is
// built in memory first so a render failure can still become a problem.
func (s *Server) writeExport(w http.ResponseWriter, r *http.Request, format, prefix, title string, records []export.Record, body any) {
	if format == formatJSON {
		writeJSON(w, http.StatusOK, body)
		return
	}
	var (
		buf bytes.Buffer
		err error
	)
	switch format {
	case formatCSV:
		err = export.WriteCSV(&buf, records)
	case formatHTML:
		err = export.WriteHTML(&buf, title, records)
	case formatXLSX:
		err = export.WriteXLSX(&buf, title, records)
	}
	if err != nil {
		s.writeError(w, r, "Export failed", err)
		return
	}
	disposition := "attachment"
	if format == formatHTML {
		disposition = "inline"
	}
	w.Header().Set("Content-Type", contentTypes[format])
	w.Header().Set("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, export.Filename(prefix, format, s.now())))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// parseReport reads the filter and format; false means a problem was written.
func parseReport(w http.ResponseWriter, r *http.Request) (report.Filter, string, bool) {
	f := reportFilter(r)
	if err := f.Validate(); err != nil {
		badRequest(w, r, "%v", err)
		return f, "", false
	}
	format, err := reportFormat(r)
	if err != nil {
		badRequest(w, r, "%v", err)
		return f, "", false
	}
	return f, format, true
}

func (s *Server) DailyReportHandler(w http.ResponseWriter, r *http.Request) {
	f, format, ok := parseReport(w, r)
	if !ok {
		return
	}
	snap, err := store.LoadSnapshot(r.Context(), s.Store)
	if err != nil {
		s.writeError(w, r, "Load report data failed", err)
		return
	}
	rows := report.Daily(snap.WorkOrders, snap.Locations, f)
	s.writeExport(w, r, format, "migration-report", "Daily Migration Report", report.DailyRecords(rows),
		map[string]any{"filter": f, "items": rows})
}

func (s *Server) WorkOrderReportHandler(w http.ResponseWriter, r *http.Request) {
	f, format, ok := parseReport(w, r)
	if !ok {
		return
	}
	snap, err := store.LoadSnapshot(r.Context(), s.Store)
	if err != nil {
		s.writeError(w, r, "Load report data failed", err)
		return
	}
	rows := report.WorkOrderDetail(snap.WorkOrders, snap.Locations, f)
	s.writeExport(w, r, format, "work-orders", "Work Order Report", report.WorkOrderRecords(rows),
		map[string]any{"filter": f, "items": rows})
}

type reconciliationResponse struct {
	Region  string            `json:"region"`
	Summary reconcile.Summary `json:"summary"`
	Items   []reconcile.Row   `json:"items"`
}

// reconciliation compares assets against work orders for the region query
// parameter; ok is false when a problem was written.
func (s *Server) reconciliation(w http.ResponseWriter, r *http.Request) (reconciliationResponse, bool) {
	f := reconcile.Filter{Region: r.URL.Query().Get("region")}
	if err := (report.Filter{Region: f.Region}).Validate(); err != nil {
		badRequest(w, r, "%v", err)
		return reconciliationResponse{}, false
	}
	snap, err := store.LoadSnapshot(r.Context(), s.Store)
	if err != nil {
		s.writeError(w, r, "Load reconciliation data failed", err)
		return reconciliationResponse{}, false
	}
	rows := reconcile.Compare(snap.Assets, snap.WorkOrders, snap.Locations, f)
	region := f.Region
	if region == "" {
		region = reconcile.All
	}
	return reconciliationResponse{Region: region, Summary: reconcile.Summarize(rows), Items: rows}, true
}

func (s *Server) ReconciliationHandler(w http.ResponseWriter, r *http.Request) {
	resp, ok := s.reconciliation(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) ReconciliationReportHandler(w http.ResponseWriter, r *http.Request) {
	format, err := reportFormat(r)
	if err != nil {
		badRequest(w, r, "%v", err)
		return
	}
	resp, ok := s.reconciliation(w, r)
	if !ok {
		return
	}
	s.writeExport(w, r, format, "reconciliation", "Reconciliation Report", reconcile.Records(resp.Items), resp)
}

func (s *Server) DashboardHandler(w http.ResponseWriter, r *http.Request) {
	snap, err := store.LoadSnapshot(r.Context(), s.Store)
	if err != nil {
		s.writeError(w, r, "Load dashboard failed", err)
		return
	}
	writeJSON(w, http.StatusOK, report.Dashboard(snap.Assets, snap.WorkOrders, snap.Waves))
}

func (s *Server) FeasibilityHandler(w http.ResponseWriter, r *http.Request) {
	region := r.URL.Query().Get("region")
	if err := (report.Filter{Region: region}).Validate(); err != nil {
		badRequest(w, r, "%v", err)
		return
	}
	locs, err := s.Store.ListLocations(r.Context())
	if err != nil {
		s.writeError(w, r, "Load feasibility failed", err)
		return
	}
	writeJSON(w, http.StatusOK, report.Feasibility(locs, region))
}

func (s *Server) ConsentSummaryHandler(w http.ResponseWriter, r *http.Request) {
	customers, err := s.Store.ListCustomers(r.Context())
	if err != nil {
		s.writeError(w, r, "Load consent summary failed", err)
		return
	}
	writeJSON(w, http.StatusOK, report.Consent(customers))
}

func (s *Server) TechnicianLoadHandler(w http.ResponseWriter, r *http.Request) {
	techs, err := s.Store.ListTechnicians(r.Context())
	if err != nil {
		s.writeError(w, r, "Load technician load failed", err)
		return
	}
	wos, err := s.Store.ListWorkOrders(r.Context())
	if err != nil {
		s.writeError(w, r, "Load technician load failed", err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse[report.TechnicianLoadRow]{Items: report.TechnicianLoad(techs, wos)})
}
