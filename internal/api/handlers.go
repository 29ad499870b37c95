package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"fibermig/internal/events"
	"fibermig/internal/ingest"
	"fibermig/internal/model"
	"fibermig/internal/store"
)

const maxImportBytes = 32 << 20

type listResponse[T any] struct {
	Items []T `json:"items"`
}

// Locations

func (s *Server) ListLocationsHandler(w http.ResponseWriter, r *http.Request) {
	items, err := s.Store.ListLocations(r.Context())
	if err != nil {
		s.writeError(w, r, "List locations failed", err)
		return
	}
	if wave := r.URL.Query().Get("wave_id"); wave != "" {
		filtered := items[:0]
		for _, l := range items {
			if l.WaveID == wave {
				filtered = append(filtered, l)
			}
		}
		items = filtered
	}
	writeJSON(w, http.StatusOK, listResponse[model.Location]{Items: items})
}

func (s *Server) CreateLocationHandler(w http.ResponseWriter, r *http.Request) {
	var in model.LocationInput
	if !validated(w, r, &in) {
		return
	}
	loc, err := s.Store.CreateLocation(r.Context(), in)
	if err != nil {
		s.writeError(w, r, "Create location failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, loc)
}

func (s *Server) LocationFiberStatusHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		FiberStatus model.FiberStatus `json:"fiber_status" validate:"enum"`
	}
	if !validated(w, r, &body) {
		return
	}
	if err := s.Store.UpdateLocationFiberStatus(r.Context(), r.PathValue("id"), body.FiberStatus); err != nil {
		s.writeError(w, r, "Update fiber status failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LocationWaveHandler assigns a location to a wave; an empty wave_id
// removes the assignment.
func (s *Server) LocationWaveHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		WaveID string `json:"wave_id"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.WaveID != "" {
		if _, err := s.Store.GetWave(r.Context(), body.WaveID); err != nil {
			s.writeError(w, r, "Assign wave failed", err)
			return
		}
	}
	if err := s.Store.AssignLocationWave(r.Context(), r.PathValue("id"), body.WaveID); err != nil {
		s.writeError(w, r, "Assign wave failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Assets

// ListAssetsHandler supports region, type and status filters. The region
// filter drops assets whose location is unknown.
func (s *Server) ListAssetsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	region, typ, status := q.Get("region"), q.Get("type"), q.Get("status")
	if region != "" && !model.Region(region).Valid() {
		badRequest(w, r, "unknown region %q", region)
		return
	}
	var (
		wantType   model.AssetType
		wantStatus model.AssetStatus
		ok         bool
	)
	if typ != "" {
		if wantType, ok = model.ParseAssetType(typ); !ok {
			badRequest(w, r, "unknown asset type %q", typ)
			return
		}
	}
	if status != "" {
		if wantStatus, ok = model.ParseAssetStatus(status); !ok {
			badRequest(w, r, "unknown asset status %q", status)
			return
		}
	}

	assets, err := s.Store.ListAssets(r.Context())
	if err != nil {
		s.writeError(w, r, "List assets failed", err)
		return
	}
	var regionOf map[string]model.Region
	if region != "" {
		locs, err := s.Store.ListLocations(r.Context())
		if err != nil {
			s.writeError(w, r, "List assets failed", err)
			return
		}
		regionOf = make(map[string]model.Region, len(locs))
		for _, l := range locs {
			regionOf[l.ID] = l.Region
		}
	}
	items := make([]model.Asset, 0, len(assets))
	for _, a := range assets {
		if wantType != "" && a.Type != wantType {
			continue
		}
		if wantStatus != "" && a.Status != wantStatus {
			continue
		}
		if regionOf != nil && regionOf[a.LocationID] != model.Region(region) {
			continue
		}
		items = append(items, a)
	}
	writeJSON(w, http.StatusOK, listResponse[model.Asset]{Items: items})
}

func (s *Server) CreateAssetHandler(w http.ResponseWriter, r *http.Request) {
	var in model.AssetInput
	if !validated(w, r, &in) {
		return
	}
	a, err := s.Store.CreateAsset(r.Context(), in)
	if err != nil {
		s.writeError(w, r, "Create asset failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) UpdateAssetHandler(w http.ResponseWriter, r *http.Request) {
	var patch model.AssetPatch
	if !validated(w, r, &patch) {
		return
	}
	a, err := s.Store.UpdateAsset(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		s.writeError(w, r, "Update asset failed", err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// ImportAssetsHandler takes a CSV body, either raw or as the "file" part of
// a multipart form. Row and batch failures are reported in the result.
func (s *Server) ImportAssetsHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)
	src := ingest.ReaderSource{Label: "upload", R: r.Body}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		f, hdr, err := r.FormFile("file")
		if err != nil {
			badRequest(w, r, "multipart upload needs a file part: %v", err)
			return
		}
		defer f.Close()
		src = ingest.ReaderSource{Label: "upload:" + hdr.Filename, R: f}
	}
	res, err := s.Importer.Import(r.Context(), src)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"type":   "about:blank",
			"title":  "Import failed",
			"status": http.StatusBadRequest,
			"detail": err.Error(),
			"errors": res.Errors,
		})
		return
	}
	status := http.StatusOK
	if res.Created == 0 && res.Failed > 0 {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, res)
}

// Waves

func (s *Server) ListWavesHandler(w http.ResponseWriter, r *http.Request) {
	items, err := s.Store.ListWaves(r.Context())
	if err != nil {
		s.writeError(w, r, "List waves failed", err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse[model.Wave]{Items: items})
}

func (s *Server) GetWaveHandler(w http.ResponseWriter, r *http.Request) {
	wave, err := s.Store.GetWave(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, "Get wave failed", err)
		return
	}
	writeJSON(w, http.StatusOK, wave)
}

func (s *Server) CreateWaveHandler(w http.ResponseWriter, r *http.Request) {
	var in model.WaveInput
	if !validated(w, r, &in) {
		return
	}
	wave, err := s.Store.CreateWave(r.Context(), in)
	if err != nil {
		s.writeError(w, r, "Create wave failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, wave)
}

func (s *Server) WaveStatusHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status model.WaveStatus `json:"progress_status" validate:"enum"`
	}
	if !validated(w, r, &body) {
		return
	}
	if err := s.Store.UpdateWaveStatus(r.Context(), r.PathValue("id"), body.Status); err != nil {
		s.writeError(w, r, "Update wave status failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Technicians

func (s *Server) ListTechniciansHandler(w http.ResponseWriter, r *http.Request) {
	items, err := s.Store.ListTechnicians(r.Context())
	if err != nil {
		s.writeError(w, r, "List technicians failed", err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse[model.Technician]{Items: items})
}

func (s *Server) CreateTechnicianHandler(w http.ResponseWriter, r *http.Request) {
	var in model.TechnicianInput
	if !validated(w, r, &in) {
		return
	}
	t, err := s.Store.CreateTechnician(r.Context(), in)
	if err != nil {
		s.writeError(w, r, "Create technician failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// Work orders

func (s *Server) ListWorkOrdersHandler(w http.ResponseWriter, r *http.Request) {
	items, err := s.Store.ListWorkOrders(r.Context())
	if err != nil {
		s.writeError(w, r, "List work orders failed", err)
		return
	}
	if st := r.URL.Query().Get("status"); st != "" {
		filtered := items[:0]
		for _, wo := range items {
			if string(wo.Status) == st {
				filtered = append(filtered, wo)
			}
		}
		items = filtered
	}
	writeJSON(w, http.StatusOK, listResponse[model.WorkOrder]{Items: items})
}

func (s *Server) CreateWorkOrderHandler(w http.ResponseWriter, r *http.Request) {
	var in model.WorkOrderInput
	if !validated(w, r, &in) {
		return
	}
	wo, err := s.Store.CreateWorkOrder(r.Context(), in)
	if err != nil {
		s.writeError(w, r, "Create work order failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, wo)
}

func (s *Server) AssignTechnicianHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TechnicianID string `json:"technician_id" validate:"required"`
	}
	if !validated(w, r, &body) {
		return
	}
	if err := s.Store.AssignTechnician(r.Context(), r.PathValue("id"), body.TechnicianID); err != nil {
		s.writeError(w, r, "Assign technician failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type workOrderStatusResponse struct {
	WorkOrder model.WorkOrder `json:"work_order"`
	TaskID    string          `json:"task_id,omitempty"`
}

// WorkOrderStatusHandler updates a work order. Moving to In Progress stamps
// start_time and moving to Completed stamps end_time when the record has
// none and the request does not carry one. When the update enters or
// leaves Completed and the location belongs to a wave, a progress refresh
// task for that wave is started and its id returned.
func (s *Server) WorkOrderStatusHandler(w http.ResponseWriter, r *http.Request) {
	var upd model.WorkOrderStatusUpdate
	if !validated(w, r, &upd) {
		return
	}
	ctx, id := r.Context(), r.PathValue("id")
	before, err := s.Store.GetWorkOrder(ctx, id)
	if err != nil {
		s.writeError(w, r, "Update work order failed", err)
		return
	}
	stampTransition(before, &upd, s.now().UTC())
	if err := s.Store.UpdateWorkOrderStatus(ctx, id, upd); err != nil {
		s.writeError(w, r, "Update work order failed", err)
		return
	}
	after, err := s.Store.GetWorkOrder(ctx, id)
	if err != nil {
		s.writeError(w, r, "Update work order failed", err)
		return
	}
	s.Broker.Publish(events.TopicWaves, events.Event{Type: events.WorkOrderUpdated, Data: map[string]any{
		"work_order_id": after.ID,
		"status":        after.Status,
	}})

	resp := workOrderStatusResponse{WorkOrder: after}
	if completionChanged(before.Status, after.Status) {
		waveID, err := s.waveOfLocation(r, after.LocationID)
		if err != nil {
			// the update itself succeeded; progress catches up on the next refresh
			s.Log.Warn("resolve wave for work order", zap.String("work_order_id", id), zap.Error(err))
		} else if waveID != "" {
			resp.TaskID = s.startRefresh(waveID).ID()
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func stampTransition(before model.WorkOrder, upd *model.WorkOrderStatusUpdate, now time.Time) {
	switch upd.Status {
	case model.WorkOrderInProgress:
		if before.StartTime == nil && upd.StartTime == nil {
			upd.StartTime = &now
		}
	case model.WorkOrderCompleted:
		if before.EndTime == nil && upd.EndTime == nil {
			upd.EndTime = &now
		}
	}
}

// completionChanged reports whether a status change moves a work order into
// or out of Completed, which changes its wave's progress.
func completionChanged(before, after model.WorkOrderStatus) bool {
	return before != after && (before == model.WorkOrderCompleted || after == model.WorkOrderCompleted)
}

func (s *Server) waveOfLocation(r *http.Request, locationID string) (string, error) {
	locs, err := s.Store.ListLocations(r.Context())
	if err != nil {
		return "", err
	}
	for _, l := range locs {
		if l.ID == locationID {
			return l.WaveID, nil
		}
	}
	return "", nil
}

// Customers and consent

func (s *Server) ListCustomersHandler(w http.ResponseWriter, r *http.Request) {
	items, err := s.Store.ListCustomers(r.Context())
	if err != nil {
		s.writeError(w, r, "List customers failed", err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse[model.Customer]{Items: items})
}

func (s *Server) CreateCustomerHandler(w http.ResponseWriter, r *http.Request) {
	var in model.CustomerInput
	if !validated(w, r, &in) {
		return
	}
	c, err := s.Store.CreateCustomer(r.Context(), in)
	if err != nil {
		s.writeError(w, r, "Create customer failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) CustomerConsentHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status model.ConsentStatus `json:"consent_status" validate:"enum"`
	}
	if !validated(w, r, &body) {
		return
	}
	if err := s.Store.UpdateCustomerConsent(r.Context(), r.PathValue("id"), body.Status); err != nil {
		s.writeError(w, r, "Update consent failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) ListConsentLogsHandler(w http.ResponseWriter, r *http.Request) {
	items, err := s.Store.ListConsentLogs(r.Context())
	if err != nil {
		s.writeError(w, r, "List consent logs failed", err)
		return
	}
	if c := r.URL.Query().Get("customer_id"); c != "" {
		filtered := items[:0]
		for _, l := range items {
			if l.CustomerID == c {
				filtered = append(filtered, l)
			}
		}
		items = filtered
	}
	writeJSON(w, http.StatusOK, listResponse[model.ConsentLog]{Items: items})
}

// CreateConsentLogHandler records a consent call and applies its outcome to
// the customer.
func (s *Server) CreateConsentLogHandler(w http.ResponseWriter, r *http.Request) {
	var in model.ConsentInput
	if !validated(w, r, &in) {
		return
	}
	entry, err := s.Store.CreateConsentLog(r.Context(), in)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			badRequest(w, r, "unknown customer %q", in.CustomerID)
			return
		}
		s.writeError(w, r, "Record consent failed", err)
		return
	}
	if err := s.Store.UpdateCustomerConsent(r.Context(), in.CustomerID, in.Status); err != nil {
		s.writeError(w, r, "Record consent failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}
