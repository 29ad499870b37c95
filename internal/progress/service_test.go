package progress

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fibermig/internal/events"
	"fibermig/internal/model"
	"fibermig/internal/store"
)

// flakyStore fails the selected operations.
type flakyStore struct {
	*store.Memory
	failReads  bool
	failWrites bool
}

var errBackend = errors.New("backend unavailable")

func (f *flakyStore) ListLocationsByWave(ctx context.Context, waveID string) ([]model.Location, error) {
	if f.failReads {
		return nil, errBackend
	}
	return f.Memory.ListLocationsByWave(ctx, waveID)
}

func (f *flakyStore) UpdateWaveProgress(ctx context.Context, id string, pct int) error {
	if f.failWrites {
		return errBackend
	}
	return f.Memory.UpdateWaveProgress(ctx, id, pct)
}

type seeded struct {
	store *flakyStore
	wave  model.Wave
	empty model.Wave
}

func seed(t *testing.T) seeded {
	t.Helper()
	ctx := context.Background()
	m := store.NewMemory()
	mkWave := func(name string) model.Wave {
		w, err := m.CreateWave(ctx, model.WaveInput{
			Name: name, StartDate: "2024-01-01", EndDate: "2024-06-30",
			Region: model.RegionInterior, CustomerCohort: model.CohortEnterprise,
		})
		require.NoError(t, err)
		return w
	}
	w, empty := mkWave("Wave 1"), mkWave("Wave 2")
	var locIDs []string
	for _, addr := range []string{"1 Main St", "2 Main St"} {
		l, err := m.CreateLocation(ctx, model.LocationInput{Address: addr, Region: model.RegionInterior, WaveID: w.ID})
		require.NoError(t, err)
		locIDs = append(locIDs, l.ID)
	}
	_, err := m.CreateLocation(ctx, model.LocationInput{Address: "3 Main St", Region: model.RegionInterior, WaveID: empty.ID})
	require.NoError(t, err)
	for i, st := range []model.WorkOrderStatus{model.WorkOrderCompleted, model.WorkOrderCompleted, model.WorkOrderInProgress, model.WorkOrderFailed} {
		_, err := m.CreateWorkOrder(ctx, model.WorkOrderInput{LocationID: locIDs[i%2], Status: st})
		require.NoError(t, err)
	}
	return seeded{store: &flakyStore{Memory: m}, wave: w, empty: empty}
}

func TestRefreshWritesBack(t *testing.T) {
	s := seed(t)
	b := events.NewBroker()
	ch := b.Subscribe(events.TopicWaves)
	defer b.Unsubscribe(events.TopicWaves, ch)

	svc := NewService(s.store, b, nil)
	res := svc.Refresh(context.Background(), s.wave, nil)
	assert.Equal(t, Result{WaveID: s.wave.ID, Percentage: 50, Source: SourceStore}, res)

	got, err := s.store.GetWave(context.Background(), s.wave.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, got.ProgressPercentage)

	evt := <-ch
	assert.Equal(t, events.WaveProgressUpdated, evt.Type)
	assert.Equal(t, 50, evt.Data["progress_percentage"])
}

func TestRefreshWaveWithoutWorkOrders(t *testing.T) {
	s := seed(t)
	res := NewService(s.store, nil, nil).Refresh(context.Background(), s.empty, nil)
	assert.Equal(t, 0, res.Percentage)
	assert.Equal(t, SourceStore, res.Source)
}

func TestRefreshKeepsPreviousOnReadFailure(t *testing.T) {
	s := seed(t)
	s.store.failReads = true
	w := s.wave
	w.ProgressPercentage = 20

	res := NewService(s.store, nil, nil).Refresh(context.Background(), w, nil)
	assert.Equal(t, 20, res.Percentage)
	assert.Equal(t, SourcePrevious, res.Source)
	assert.Contains(t, res.Error, "backend unavailable")
}

func TestRefreshUsesLocalFallbackOnReadFailure(t *testing.T) {
	s := seed(t)
	snap, err := store.LoadSnapshot(context.Background(), s.store.Memory)
	require.NoError(t, err)
	s.store.failReads = true

	res := NewService(s.store, nil, nil).Refresh(context.Background(), s.wave, &snap)
	assert.Equal(t, 50, res.Percentage)
	assert.Equal(t, SourceLocal, res.Source)
	assert.NotEmpty(t, res.Error)
}

func TestRefreshReportsComputedValueOnWriteFailure(t *testing.T) {
	s := seed(t)
	s.store.failWrites = true

	res := NewService(s.store, nil, nil).Refresh(context.Background(), s.wave, nil)
	assert.Equal(t, 50, res.Percentage)
	assert.Equal(t, SourceLocal, res.Source)
	got, _ := s.store.GetWave(context.Background(), s.wave.ID)
	assert.Equal(t, 0, got.ProgressPercentage)
}

func TestRefreshAllKeepsWaveOrder(t *testing.T) {
	s := seed(t)
	svc := NewService(s.store, nil, nil)
	svc.Concurrency = 1
	res := svc.RefreshAll(context.Background(), []model.Wave{s.empty, s.wave}, nil)
	require.Len(t, res, 2)
	assert.Equal(t, s.empty.ID, res[0].WaveID)
	assert.Equal(t, 0, res[0].Percentage)
	assert.Equal(t, s.wave.ID, res[1].WaveID)
	assert.Equal(t, 50, res[1].Percentage)
}

func TestRefreshEverything(t *testing.T) {
	s := seed(t)
	res, err := NewService(s.store, nil, nil).RefreshEverything(context.Background())
	require.NoError(t, err)
	assert.Len(t, res, 2)
}

func TestRefreshWaveNotFound(t *testing.T) {
	s := seed(t)
	_, err := NewService(s.store, nil, nil).RefreshWave(context.Background(), "missing")
	assert.True(t, errors.Is(err, store.ErrNotFound))
}
