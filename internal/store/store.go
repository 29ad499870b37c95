package store

import (
	"context"
	"errors"
	"time"

	"fibermig/internal/model"
)

// Store is the persistence interface used by the API server, the CLI and
// the progress service.
type Store interface {
	// Locations
	ListLocations(ctx context.Context) ([]model.Location, error)
	ListLocationsByWave(ctx context.Context, waveID string) ([]model.Location, error)
	CreateLocation(ctx context.Context, in model.LocationInput) (model.Location, error)
	UpdateLocationFiberStatus(ctx context.Context, id string, status model.FiberStatus) error
	AssignLocationWave(ctx context.Context, id, waveID string) error

	// Assets
	ListAssets(ctx context.Context) ([]model.Asset, error)
	CreateAsset(ctx context.Context, in model.AssetInput) (model.Asset, error)
	// CreateAssets inserts one batch atomically; either all rows are created or none.
	CreateAssets(ctx context.Context, in []model.AssetInput) ([]model.Asset, error)
	UpdateAsset(ctx context.Context, id string, patch model.AssetPatch) (model.Asset, error)

	// Waves
	ListWaves(ctx context.Context) ([]model.Wave, error)
	GetWave(ctx context.Context, id string) (model.Wave, error)
	CreateWave(ctx context.Context, in model.WaveInput) (model.Wave, error)
	UpdateWaveStatus(ctx context.Context, id string, status model.WaveStatus) error
	UpdateWaveProgress(ctx context.Context, id string, percentage int) error

	// Technicians
	ListTechnicians(ctx context.Context) ([]model.Technician, error)
	CreateTechnician(ctx context.Context, in model.TechnicianInput) (model.Technician, error)

	// Work orders
	ListWorkOrders(ctx context.Context) ([]model.WorkOrder, error)
	ListWorkOrdersByLocations(ctx context.Context, locationIDs []string) ([]model.WorkOrder, error)
	GetWorkOrder(ctx context.Context, id string) (model.WorkOrder, error)
	CreateWorkOrder(ctx context.Context, in model.WorkOrderInput) (model.WorkOrder, error)
	AssignTechnician(ctx context.Context, workOrderID, technicianID string) error
	UpdateWorkOrderStatus(ctx context.Context, id string, upd model.WorkOrderStatusUpdate) error

	// Customers & consent
	ListCustomers(ctx context.Context) ([]model.Customer, error)
	CreateCustomer(ctx context.Context, in model.CustomerInput) (model.Customer, error)
	UpdateCustomerConsent(ctx context.Context, id string, status model.ConsentStatus) error
	ListConsentLogs(ctx context.Context) ([]model.ConsentLog, error)
	CreateConsentLog(ctx context.Context, in model.ConsentInput) (model.ConsentLog, error)

	Ping(ctx context.Context) error
}

var ErrNotFound = errors.New("not found")

// LoadSnapshot fetches the collections the derived reports read.
func LoadSnapshot(ctx context.Context, s Store) (model.Snapshot, error) {
	var (
		snap model.Snapshot
		err  error
	)
	if snap.Locations, err = s.ListLocations(ctx); err != nil {
		return snap, err
	}
	if snap.Waves, err = s.ListWaves(ctx); err != nil {
		return snap, err
	}
	if snap.Assets, err = s.ListAssets(ctx); err != nil {
		return snap, err
	}
	if snap.WorkOrders, err = s.ListWorkOrders(ctx); err != nil {
		return snap, err
	}
	return snap, nil
}

func defaultWorkOrderStatus(s model.WorkOrderStatus) model.WorkOrderStatus {
	if s == "" {
		return model.WorkOrderAssigned
	}
	return s
}

func defaultFiberStatus(s model.FiberStatus) model.FiberStatus {
	if s == "" {
		return model.FiberPending
	}
	return s
}

func defaultWaveStatus(s model.WaveStatus) model.WaveStatus {
	if s == "" {
		return model.WavePlanning
	}
	return s
}

func defaultConsent(s model.ConsentStatus) model.ConsentStatus {
	if s == "" {
		return model.ConsentPending
	}
	return s
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
