package progress

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"fibermig/internal/events"
	"fibermig/internal/metrics"
	"fibermig/internal/model"
	"fibermig/internal/store"
)

// Source tells where a refreshed percentage came from.
type Source string

const (
	// SourceStore: computed from store reads and written back.
	SourceStore Source = "store"
	// SourceLocal: computed from already-fetched data after a store failure.
	SourceLocal Source = "local"
	// SourcePrevious: store failed and no data was at hand; the last known value is kept.
	SourcePrevious Source = "previous"
)

type Result struct {
	WaveID     string `json:"wave_id"`
	Percentage int    `json:"progress_percentage"`
	Source     Source `json:"source"`
	Error      string `json:"error,omitempty"`
}

// Service recomputes and persists wave progress.
type Service struct {
	store store.Store
	pub   events.Publisher
	log   *zap.Logger
	// Concurrency bounds RefreshAll fan-out.
	Concurrency int
}

func NewService(s store.Store, pub events.Publisher, log *zap.Logger) *Service {
	if pub == nil {
		pub = events.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: s, pub: pub, log: log.Named("progress"), Concurrency: 8}
}

// Refresh recomputes one wave's percentage and writes it back. It never
// fails: on a store error the result carries the local calculation over
// fallback (when given) or the wave's previous percentage, with Error set.
func (s *Service) Refresh(ctx context.Context, wave model.Wave, fallback *model.Snapshot) Result {
	res := Result{WaveID: wave.ID}
	pct, err := s.compute(ctx, wave.ID)
	if err == nil {
		err = s.store.UpdateWaveProgress(ctx, wave.ID, pct)
		if err != nil {
			// the reads succeeded, so the computed value is still current
			res.Percentage, res.Source = pct, SourceLocal
		} else {
			res.Percentage, res.Source = pct, SourceStore
		}
	} else if fallback != nil {
		res.Percentage, res.Source = Calculate(wave.ID, fallback.Locations, fallback.WorkOrders), SourceLocal
	} else {
		res.Percentage, res.Source = wave.ProgressPercentage, SourcePrevious
	}
	if err != nil {
		res.Error = err.Error()
		s.log.Warn("wave progress refresh degraded",
			zap.String("wave_id", wave.ID), zap.String("source", string(res.Source)), zap.Error(err))
	}
	metrics.ProgressRefreshes.WithLabelValues(string(res.Source)).Inc()
	s.pub.Publish(events.TopicWaves, events.Event{Type: events.WaveProgressUpdated, Data: map[string]any{
		"wave_id":             res.WaveID,
		"progress_percentage": res.Percentage,
		"source":              string(res.Source),
	}})
	return res
}

func (s *Service) compute(ctx context.Context, waveID string) (int, error) {
	locs, err := s.store.ListLocationsByWave(ctx, waveID)
	if err != nil {
		return 0, fmt.Errorf("list wave locations: %w", err)
	}
	if len(locs) == 0 {
		return 0, nil
	}
	ids := make([]string, len(locs))
	for i, l := range locs {
		ids[i] = l.ID
	}
	wos, err := s.store.ListWorkOrdersByLocations(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("list wave work orders: %w", err)
	}
	return Calculate(waveID, locs, wos), nil
}

// RefreshAll refreshes every wave independently and concurrently. Results
// are in the order of waves.
func (s *Service) RefreshAll(ctx context.Context, waves []model.Wave, fallback *model.Snapshot) []Result {
	out := make([]Result, len(waves))
	g, gctx := errgroup.WithContext(ctx)
	if s.Concurrency > 0 {
		g.SetLimit(s.Concurrency)
	}
	for i, w := range waves {
		g.Go(func() error {
			out[i] = s.Refresh(gctx, w, fallback)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// RefreshWave loads the wave by id and refreshes it.
func (s *Service) RefreshWave(ctx context.Context, waveID string) (Result, error) {
	w, err := s.store.GetWave(ctx, waveID)
	if err != nil {
		return Result{}, err
	}
	return s.Refresh(ctx, w, nil), nil
}

// RefreshEverything loads the current data and refreshes every wave, using
// the loaded data as the local fallback.
func (s *Service) RefreshEverything(ctx context.Context) ([]Result, error) {
	snap, err := store.LoadSnapshot(ctx, s.store)
	if err != nil {
		return nil, err
	}
	return s.RefreshAll(ctx, snap.Waves, &snap), nil
}
