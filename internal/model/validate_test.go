package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateLocation(t *testing.T) {
	loc := Location{ID: "l1", Address: "1 Main St", Region: RegionInterior, FiberStatus: FiberReady}
	require.NoError(t, Validate(loc))

	loc.Region = "Mars"
	loc.Address = ""
	err := Validate(loc)
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Problems, 2)
	assert.Contains(t, err.Error(), `field "region": invalid value "Mars"`)
	assert.Contains(t, err.Error(), `field "address": required`)
}

func TestValidateWaveDates(t *testing.T) {
	w := Wave{
		ID: "w1", Name: "Wave 1", StartDate: "2024-03-01", EndDate: "2024-02-01",
		Region: RegionNorth, CustomerCohort: CohortHospitals, ProgressStatus: WavePlanning,
	}
	err := Validate(w)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "end_date")

	w.EndDate = "2024-03-01"
	assert.NoError(t, Validate(w))

	w.StartDate = "03/01/2024"
	assert.Error(t, Validate(w))
}

func TestValidateWaveProgressBounds(t *testing.T) {
	w := Wave{
		ID: "w1", Name: "Wave 1", StartDate: "2024-01-01", EndDate: "2024-02-01",
		Region: RegionNorth, CustomerCohort: CohortGovernment, ProgressStatus: WaveInProgress,
		ProgressPercentage: 101,
	}
	assert.Error(t, Validate(w))
}

func TestValidateWorkOrderTimes(t *testing.T) {
	start := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	end := start.Add(-time.Hour)
	wo := WorkOrder{ID: "wo1", LocationID: "l1", Status: WorkOrderCompleted, StartTime: &start, EndTime: &end}
	err := Validate(wo)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "end_time")

	end = start.Add(2 * time.Hour)
	assert.NoError(t, Validate(wo))

	wo.StartTime = nil
	assert.NoError(t, Validate(wo))
}

func TestValidateAssetPatch(t *testing.T) {
	bad := AssetType("coax")
	assert.Error(t, Validate(AssetPatch{Type: &bad}))
	assert.NoError(t, Validate(AssetPatch{}))
}

func TestParseAssetTypeCaseInsensitive(t *testing.T) {
	got, ok := ParseAssetType("ont")
	require.True(t, ok)
	assert.Equal(t, AssetONT, got)

	_, ok = ParseAssetType("coax")
	assert.False(t, ok)

	st, ok := ParseAssetStatus("Completed")
	require.True(t, ok)
	assert.Equal(t, AssetCompleted, st)
}
