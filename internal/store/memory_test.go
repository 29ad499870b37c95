package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fibermig/internal/model"
)

func TestMemoryLocationsAndWaves(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	w, err := m.CreateWave(ctx, model.WaveInput{
		Name: "Wave 1", StartDate: "2024-01-01", EndDate: "2024-03-01",
		Region: model.RegionInterior, CustomerCohort: model.CohortGovernment,
	})
	require.NoError(t, err)
	assert.Equal(t, model.WavePlanning, w.ProgressStatus)

	l1, err := m.CreateLocation(ctx, model.LocationInput{Address: "1 Main St", Region: model.RegionInterior, WaveID: w.ID})
	require.NoError(t, err)
	assert.Equal(t, model.FiberPending, l1.FiberStatus)
	_, err = m.CreateLocation(ctx, model.LocationInput{Address: "2 Side Rd", Region: model.RegionNorth})
	require.NoError(t, err)

	byWave, err := m.ListLocationsByWave(ctx, w.ID)
	require.NoError(t, err)
	require.Len(t, byWave, 1)
	assert.Equal(t, l1.ID, byWave[0].ID)

	require.NoError(t, m.UpdateWaveProgress(ctx, w.ID, 75))
	got, err := m.GetWave(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, 75, got.ProgressPercentage)

	assert.True(t, errors.Is(m.UpdateWaveProgress(ctx, "nope", 1), ErrNotFound))
	_, err = m.GetWave(ctx, "nope")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMemoryCreateLocationValidates(t *testing.T) {
	m := NewMemory()
	_, err := m.CreateLocation(context.Background(), model.LocationInput{Address: "x", Region: "Mars"})
	var verr *model.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestMemoryCreateAssetsIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_, err := m.CreateAssets(ctx, []model.AssetInput{
		{Type: model.AssetCopper, Status: model.AssetPending},
		{Type: "coax", Status: model.AssetPending},
	})
	require.Error(t, err)
	all, _ := m.ListAssets(ctx)
	assert.Empty(t, all)

	out, err := m.CreateAssets(ctx, []model.AssetInput{
		{Type: model.AssetCopper, Status: model.AssetPending},
		{Type: model.AssetFiber, Status: model.AssetActive},
	})
	require.NoError(t, err)
	assert.Len(t, out, 2)
	all, _ = m.ListAssets(ctx)
	assert.Len(t, all, 2)
}

func TestMemoryUpdateAssetPatch(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	a, err := m.CreateAsset(ctx, model.AssetInput{Type: model.AssetCopper, Status: model.AssetPending, LocationID: "loc-1"})
	require.NoError(t, err)

	done := model.AssetCompleted
	got, err := m.UpdateAsset(ctx, a.ID, model.AssetPatch{Status: &done})
	require.NoError(t, err)
	assert.Equal(t, model.AssetCompleted, got.Status)
	assert.Equal(t, "loc-1", got.LocationID)

	_, err = m.UpdateAsset(ctx, "missing", model.AssetPatch{Status: &done})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMemoryWorkOrders(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	start := time.Date(2024, 5, 1, 9, 0, 0, 0, time.FixedZone("PDT", -7*3600))
	wo, err := m.CreateWorkOrder(ctx, model.WorkOrderInput{LocationID: "loc-1", StartTime: &start})
	require.NoError(t, err)
	assert.Equal(t, model.WorkOrderAssigned, wo.Status)
	assert.Equal(t, time.UTC, wo.StartTime.Location())
	_, err = m.CreateWorkOrder(ctx, model.WorkOrderInput{LocationID: "loc-2"})
	require.NoError(t, err)

	byLoc, err := m.ListWorkOrdersByLocations(ctx, []string{"loc-1"})
	require.NoError(t, err)
	assert.Len(t, byLoc, 1)

	end := start.Add(-time.Minute)
	err = m.UpdateWorkOrderStatus(ctx, wo.ID, model.WorkOrderStatusUpdate{Status: model.WorkOrderCompleted, EndTime: &end})
	assert.Error(t, err)

	end = start.Add(2 * time.Hour)
	require.NoError(t, m.UpdateWorkOrderStatus(ctx, wo.ID, model.WorkOrderStatusUpdate{Status: model.WorkOrderCompleted, EndTime: &end}))
	got, err := m.GetWorkOrder(ctx, wo.ID)
	require.NoError(t, err)
	assert.Equal(t, model.WorkOrderCompleted, got.Status)

	require.NoError(t, m.AssignTechnician(ctx, wo.ID, "tech-1"))
	got, _ = m.GetWorkOrder(ctx, wo.ID)
	assert.Equal(t, "tech-1", got.TechnicianID)
}

func TestMemoryConsentLogs(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_, err := m.CreateConsentLog(ctx, model.ConsentInput{CustomerID: "nobody", AgentName: "a", Status: model.ConsentGiven})
	assert.True(t, errors.Is(err, ErrNotFound))

	c, err := m.CreateCustomer(ctx, model.CustomerInput{Name: "Acme Clinic"})
	require.NoError(t, err)
	assert.Equal(t, model.ConsentPending, c.ConsentStatus)

	_, err = m.CreateConsentLog(ctx, model.ConsentInput{CustomerID: c.ID, AgentName: "Sam", Status: model.ConsentDeclined})
	require.NoError(t, err)
	second, err := m.CreateConsentLog(ctx, model.ConsentInput{CustomerID: c.ID, AgentName: "Sam", Status: model.ConsentGiven})
	require.NoError(t, err)

	logs, err := m.ListConsentLogs(ctx)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, second.ID, logs[0].ID)
}

func TestLoadSnapshot(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_, err := m.CreateLocation(ctx, model.LocationInput{Address: "1 Main St", Region: model.RegionNorth})
	require.NoError(t, err)
	_, err = m.CreateWorkOrder(ctx, model.WorkOrderInput{LocationID: "x"})
	require.NoError(t, err)

	snap, err := LoadSnapshot(ctx, m)
	require.NoError(t, err)
	assert.Len(t, snap.Locations, 1)
	assert.Len(t, snap.WorkOrders, 1)
	assert.Empty(t, snap.Waves)
	assert.Empty(t, snap.Assets)
}
