package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"fibermig/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu          sync.Mutex
	locations   map[string]model.Location
	assets      map[string]model.Asset
	waves       map[string]model.Wave
	technicians map[string]model.Technician
	workOrders  map[string]model.WorkOrder
	customers   map[string]model.Customer
	consentLogs []model.ConsentLog
	order       map[string][]string // table -> ids in insertion order
	now         func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		locations:   map[string]model.Location{},
		assets:      map[string]model.Asset{},
		waves:       map[string]model.Wave{},
		technicians: map[string]model.Technician{},
		workOrders:  map[string]model.WorkOrder{},
		customers:   map[string]model.Customer{},
		order:       map[string][]string{},
		now:         time.Now,
	}
}

func (m *Memory) track(table, id string) { m.order[table] = append(m.order[table], id) }

func listOrdered[T any](m *Memory, table string, src map[string]T, keep func(T) bool) []T {
	out := []T{}
	for _, id := range m.order[table] {
		v, ok := src[id]
		if !ok {
			continue
		}
		if keep == nil || keep(v) {
			out = append(out, v)
		}
	}
	return out
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

// Locations

func (m *Memory) ListLocations(ctx context.Context) ([]model.Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return listOrdered(m, "locations", m.locations, nil), nil
}

func (m *Memory) ListLocationsByWave(ctx context.Context, waveID string) ([]model.Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return listOrdered(m, "locations", m.locations, func(l model.Location) bool { return l.WaveID == waveID }), nil
}

func (m *Memory) CreateLocation(ctx context.Context, in model.LocationInput) (model.Location, error) {
	loc := model.Location{
		ID:          uuid.New().String(),
		Address:     in.Address,
		Region:      in.Region,
		Coordinates: in.Coordinates,
		WaveID:      in.WaveID,
		FiberStatus: defaultFiberStatus(in.FiberStatus),
	}
	if err := model.Validate(loc); err != nil {
		return model.Location{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locations[loc.ID] = loc
	m.track("locations", loc.ID)
	return loc, nil
}

func (m *Memory) UpdateLocationFiberStatus(ctx context.Context, id string, status model.FiberStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	loc, ok := m.locations[id]
	if !ok {
		return ErrNotFound
	}
	loc.FiberStatus = status
	m.locations[id] = loc
	return nil
}

func (m *Memory) AssignLocationWave(ctx context.Context, id, waveID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	loc, ok := m.locations[id]
	if !ok {
		return ErrNotFound
	}
	loc.WaveID = waveID
	m.locations[id] = loc
	return nil
}

// Assets

func (m *Memory) ListAssets(ctx context.Context) ([]model.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return listOrdered(m, "assets", m.assets, nil), nil
}

func newAsset(in model.AssetInput) model.Asset {
	return model.Asset{
		ID:               uuid.New().String(),
		Type:             in.Type,
		LocationID:       in.LocationID,
		Status:           in.Status,
		InstallationDate: in.InstallationDate,
		TechnicianID:     in.TechnicianID,
	}
}

func (m *Memory) CreateAsset(ctx context.Context, in model.AssetInput) (model.Asset, error) {
	a := newAsset(in)
	if err := model.Validate(a); err != nil {
		return model.Asset{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assets[a.ID] = a
	m.track("assets", a.ID)
	return a, nil
}

func (m *Memory) CreateAssets(ctx context.Context, in []model.AssetInput) ([]model.Asset, error) {
	out := make([]model.Asset, 0, len(in))
	for i, ai := range in {
		a := newAsset(ai)
		if err := model.Validate(a); err != nil {
			return nil, fmt.Errorf("asset %d: %w", i+1, err)
		}
		out = append(out, a)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range out {
		m.assets[a.ID] = a
		m.track("assets", a.ID)
	}
	return out, nil
}

func (m *Memory) UpdateAsset(ctx context.Context, id string, patch model.AssetPatch) (model.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assets[id]
	if !ok {
		return model.Asset{}, ErrNotFound
	}
	if patch.Type != nil {
		a.Type = *patch.Type
	}
	if patch.LocationID != nil {
		a.LocationID = *patch.LocationID
	}
	if patch.Status != nil {
		a.Status = *patch.Status
	}
	if patch.InstallationDate != nil {
		a.InstallationDate = *patch.InstallationDate
	}
	if patch.TechnicianID != nil {
		a.TechnicianID = *patch.TechnicianID
	}
	if err := model.Validate(a); err != nil {
		return model.Asset{}, err
	}
	m.assets[id] = a
	return a, nil
}

// Waves

func (m *Memory) ListWaves(ctx context.Context) ([]model.Wave, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return listOrdered(m, "waves", m.waves, nil), nil
}

func (m *Memory) GetWave(ctx context.Context, id string) (model.Wave, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.waves[id]
	if !ok {
		return model.Wave{}, ErrNotFound
	}
	return w, nil
}

func (m *Memory) CreateWave(ctx context.Context, in model.WaveInput) (model.Wave, error) {
	w := model.Wave{
		ID:             uuid.New().String(),
		Name:           in.Name,
		StartDate:      in.StartDate,
		EndDate:        in.EndDate,
		Region:         in.Region,
		CustomerCohort: in.CustomerCohort,
		ProgressStatus: defaultWaveStatus(in.ProgressStatus),
	}
	if err := model.Validate(w); err != nil {
		return model.Wave{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.waves[w.ID] = w
	m.track("waves", w.ID)
	return w, nil
}

func (m *Memory) UpdateWaveStatus(ctx context.Context, id string, status model.WaveStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.waves[id]
	if !ok {
		return ErrNotFound
	}
	w.ProgressStatus = status
	m.waves[id] = w
	return nil
}

func (m *Memory) UpdateWaveProgress(ctx context.Context, id string, percentage int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.waves[id]
	if !ok {
		return ErrNotFound
	}
	w.ProgressPercentage = percentage
	m.waves[id] = w
	return nil
}

// Technicians

func (m *Memory) ListTechnicians(ctx context.Context) ([]model.Technician, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return listOrdered(m, "technicians", m.technicians, nil), nil
}

func (m *Memory) CreateTechnician(ctx context.Context, in model.TechnicianInput) (model.Technician, error) {
	t := model.Technician{ID: uuid.New().String(), Name: in.Name, Phone: in.Phone}
	if err := model.Validate(t); err != nil {
		return model.Technician{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.technicians[t.ID] = t
	m.track("technicians", t.ID)
	return t, nil
}

// Work orders

func (m *Memory) ListWorkOrders(ctx context.Context) ([]model.WorkOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return listOrdered(m, "work_orders", m.workOrders, nil), nil
}

func (m *Memory) ListWorkOrdersByLocations(ctx context.Context, locationIDs []string) ([]model.WorkOrder, error) {
	set := make(map[string]struct{}, len(locationIDs))
	for _, id := range locationIDs {
		set[id] = struct{}{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return listOrdered(m, "work_orders", m.workOrders, func(wo model.WorkOrder) bool {
		_, ok := set[wo.LocationID]
		return ok
	}), nil
}

func (m *Memory) GetWorkOrder(ctx context.Context, id string) (model.WorkOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wo, ok := m.workOrders[id]
	if !ok {
		return model.WorkOrder{}, ErrNotFound
	}
	return wo, nil
}

func (m *Memory) CreateWorkOrder(ctx context.Context, in model.WorkOrderInput) (model.WorkOrder, error) {
	wo := model.WorkOrder{
		ID:           uuid.New().String(),
		LocationID:   in.LocationID,
		TechnicianID: in.TechnicianID,
		Status:       defaultWorkOrderStatus(in.Status),
		StartTime:    utcPtr(in.StartTime),
		EndTime:      utcPtr(in.EndTime),
	}
	if err := model.Validate(wo); err != nil {
		return model.WorkOrder{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workOrders[wo.ID] = wo
	m.track("work_orders", wo.ID)
	return wo, nil
}

func (m *Memory) AssignTechnician(ctx context.Context, workOrderID, technicianID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	wo, ok := m.workOrders[workOrderID]
	if !ok {
		return ErrNotFound
	}
	wo.TechnicianID = technicianID
	m.workOrders[workOrderID] = wo
	return nil
}

func (m *Memory) UpdateWorkOrderStatus(ctx context.Context, id string, upd model.WorkOrderStatusUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	wo, ok := m.workOrders[id]
	if !ok {
		return ErrNotFound
	}
	wo.Status = upd.Status
	if upd.StartTime != nil {
		wo.StartTime = utcPtr(upd.StartTime)
	}
	if upd.EndTime != nil {
		wo.EndTime = utcPtr(upd.EndTime)
	}
	if err := model.Validate(wo); err != nil {
		return err
	}
	m.workOrders[id] = wo
	return nil
}

// Customers & consent

func (m *Memory) ListCustomers(ctx context.Context) ([]model.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return listOrdered(m, "customers", m.customers, nil), nil
}

func (m *Memory) CreateCustomer(ctx context.Context, in model.CustomerInput) (model.Customer, error) {
	c := model.Customer{
		ID:            uuid.New().String(),
		Name:          in.Name,
		Phone:         in.Phone,
		Address:       in.Address,
		ConsentStatus: defaultConsent(in.ConsentStatus),
	}
	if err := model.Validate(c); err != nil {
		return model.Customer{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.customers[c.ID] = c
	m.track("customers", c.ID)
	return c, nil
}

func (m *Memory) UpdateCustomerConsent(ctx context.Context, id string, status model.ConsentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.customers[id]
	if !ok {
		return ErrNotFound
	}
	c.ConsentStatus = status
	m.customers[id] = c
	return nil
}

func (m *Memory) ListConsentLogs(ctx context.Context) ([]model.ConsentLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	// newest first
	out := make([]model.ConsentLog, 0, len(m.consentLogs))
	for i := len(m.consentLogs) - 1; i >= 0; i-- {
		out = append(out, m.consentLogs[i])
	}
	return out, nil
}

func (m *Memory) CreateConsentLog(ctx context.Context, in model.ConsentInput) (model.ConsentLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.customers[in.CustomerID]; !ok {
		return model.ConsentLog{}, ErrNotFound
	}
	cl := model.ConsentLog{
		ID:         uuid.New().String(),
		CustomerID: in.CustomerID,
		AgentName:  in.AgentName,
		Status:     in.Status,
		Timestamp:  m.now().UTC(),
		Notes:      in.Notes,
	}
	if err := model.Validate(cl); err != nil {
		return model.ConsentLog{}, err
	}
	m.consentLogs = append(m.consentLogs, cl)
	return cl, nil
}
