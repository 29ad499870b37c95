package reconcile

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fibermig/internal/model"
)

var locations = []model.Location{
	{ID: "loc-1", Address: "1 Main St", Region: model.RegionInterior},
	{ID: "loc-2", Address: "2 Harbour Rd", Region: model.RegionVancouverIsland},
}

func TestComparePendingAssetWithCompletedWorkOrder(t *testing.T) {
	assets := []model.Asset{{ID: "a1b2c3d4e5f6", Type: model.AssetCopper, LocationID: "loc-1", Status: model.AssetPending}}
	wos := []model.WorkOrder{{ID: "wo1", LocationID: "loc-1", Status: model.WorkOrderCompleted}}

	rows := Compare(assets, wos, locations, Filter{})
	want := []Row{{
		AssetID:         "a1b2c3d4e5f6",
		Type:            model.AssetCopper,
		Address:         "1 Main St",
		Region:          "Interior",
		AssetStatus:     model.AssetPending,
		WorkOrderStatus: "Completed",
		HasCompletedWO:  true,
		Discrepancy:     true,
	}}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "a1b2c3d4…", rows[0].DisplayID())
}

func TestCompareUnresolvedAndUnmatched(t *testing.T) {
	assets := []model.Asset{
		{ID: "a1", Type: model.AssetONT, LocationID: "gone", Status: model.AssetActive},
		{ID: "a2", Type: model.AssetFiber, LocationID: "loc-2", Status: model.AssetCompleted},
	}
	wos := []model.WorkOrder{
		{ID: "w1", LocationID: "loc-2", Status: model.WorkOrderInProgress},
		{ID: "w2", LocationID: "loc-2", Status: model.WorkOrderCompleted},
	}
	rows := Compare(assets, wos, locations, Filter{Region: All})
	require.Len(t, rows, 2)

	assert.Equal(t, NotAvailable, rows[0].Address)
	assert.Equal(t, NotAvailable, rows[0].Region)
	assert.Equal(t, NoWorkOrder, rows[0].WorkOrderStatus)
	assert.False(t, rows[0].Discrepancy)

	// the completed work order wins over an earlier open one
	assert.Equal(t, "Completed", rows[1].WorkOrderStatus)
	assert.True(t, rows[1].HasCompletedWO)
	assert.False(t, rows[1].Discrepancy)
}

func TestCompareOpenWorkOrderIsNotReported(t *testing.T) {
	assets := []model.Asset{{ID: "a1", Type: model.AssetCopper, LocationID: "loc-1", Status: model.AssetPending}}
	wos := []model.WorkOrder{{ID: "w1", LocationID: "loc-1", Status: model.WorkOrderInProgress}}

	rows := Compare(assets, wos, locations, Filter{})
	require.Len(t, rows, 1)
	assert.Equal(t, NoWorkOrder, rows[0].WorkOrderStatus)
	assert.False(t, rows[0].HasCompletedWO)
	assert.False(t, rows[0].Discrepancy)
}

func TestCompareRegionFilter(t *testing.T) {
	assets := []model.Asset{
		{ID: "a1", LocationID: "loc-1", Type: model.AssetCopper, Status: model.AssetPending},
		{ID: "a2", LocationID: "loc-2", Type: model.AssetCopper, Status: model.AssetPending},
		{ID: "a3", LocationID: "gone", Type: model.AssetCopper, Status: model.AssetPending},
	}
	rows := Compare(assets, nil, locations, Filter{Region: "Vancouver Island"})
	require.Len(t, rows, 1)
	assert.Equal(t, "a2", rows[0].AssetID)
}

func TestDiscrepancyProperty(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	locIDs := []string{"loc-1", "loc-2", "loc-3"}
	for i := 0; i < 300; i++ {
		var assets []model.Asset
		nAssets := 1 + r.Intn(6)
		for j := 0; j < nAssets; j++ {
			assets = append(assets, model.Asset{
				ID:         "a",
				LocationID: locIDs[r.Intn(len(locIDs))],
				Status:     model.AllAssetStatuses[r.Intn(len(model.AllAssetStatuses))],
			})
		}
		var wos []model.WorkOrder
		nWOs := r.Intn(6)
		for j := 0; j < nWOs; j++ {
			wos = append(wos, model.WorkOrder{
				LocationID: locIDs[r.Intn(len(locIDs))],
				Status:     model.AllWorkOrderStatuses[r.Intn(len(model.AllWorkOrderStatuses))],
			})
		}
		rows := Compare(assets, wos, locations, Filter{})
		require.Len(t, rows, len(assets))
		for k, a := range assets {
			completedHere := false
			for _, wo := range wos {
				if wo.LocationID == a.LocationID && wo.Status == model.WorkOrderCompleted {
					completedHere = true
				}
			}
			want := a.Status != model.AssetCompleted && completedHere
			if rows[k].Discrepancy != want {
				t.Fatalf("case %d asset %d: discrepancy %v, want %v", i, k, rows[k].Discrepancy, want)
			}
		}
	}
}

func TestSummarize(t *testing.T) {
	rows := []Row{
		{AssetStatus: model.AssetCompleted},
		{AssetStatus: model.AssetPending, Discrepancy: true},
		{AssetStatus: model.AssetPending},
		{AssetStatus: model.AssetFailed},
	}
	s := Summarize(rows)
	assert.Equal(t, Summary{Total: 4, Completed: 1, Pending: 2, Discrepancies: 1, MatchRate: 75}, s)
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)
	assert.Equal(t, 0.0, s.MatchRate)
	assert.Equal(t, 0, s.Total)
}

func TestRecord(t *testing.T) {
	row := Row{
		AssetID: "0123456789ab", Type: model.AssetONT, Address: "1 Main St", Region: "Interior",
		AssetStatus: model.AssetPending, WorkOrderStatus: NoWorkOrder,
	}
	rec := row.Record()
	assert.Equal(t, []string{"Asset ID", "Type", "Location", "Region", "Asset Status", "Work Order Status", "Has Completed WO", "Discrepancy"}, rec.Keys())
	assert.Equal(t, "01234567", rec.Text("Asset ID"))
	assert.Equal(t, "No", rec.Text("Discrepancy"))
	assert.Len(t, Records([]Row{row, row}), 2)
}
