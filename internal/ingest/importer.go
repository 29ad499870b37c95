package ingest

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"fibermig/internal/events"
	"fibermig/internal/metrics"
	"fibermig/internal/model"
	"fibermig/internal/store"
)

const DefaultBatchSize = 100

// Source yields one CSV document.
type Source interface {
	Name() string
	Open(ctx context.Context) (io.ReadCloser, error)
}

// FileSource reads a CSV file from disk.
type FileSource struct{ Path string }

func (s FileSource) Name() string { return "file:" + s.Path }

func (s FileSource) Open(ctx context.Context) (io.ReadCloser, error) { return os.Open(s.Path) }

// ReaderSource wraps an already open body, e.g. an HTTP upload.
type ReaderSource struct {
	Label string
	R     io.Reader
}

func (s ReaderSource) Name() string { return s.Label }

func (s ReaderSource) Open(ctx context.Context) (io.ReadCloser, error) { return io.NopCloser(s.R), nil }

// Result reports an import. Errors lists every row, location and batch
// problem; Failed counts rows that did not become assets.
type Result struct {
	LocationsCreated int      `json:"locations_created"`
	Created          int      `json:"created"`
	Failed           int      `json:"failed"`
	Errors           []string `json:"errors"`
}

type Importer struct {
	store     store.Store
	pub       events.Publisher
	log       *zap.Logger
	BatchSize int
}

func NewImporter(s store.Store, pub events.Publisher, log *zap.Logger) *Importer {
	if pub == nil {
		pub = events.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Importer{store: s, pub: pub, log: log.Named("ingest"), BatchSize: DefaultBatchSize}
}

// Import runs one source through parse, convert and store. The returned
// error is only for a document that cannot be imported at all; per-row and
// per-batch failures are in the result.
func (im *Importer) Import(ctx context.Context, src Source) (Result, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("open %s: %w", src.Name(), err)
	}
	defer rc.Close()

	rows, parseErrs, err := Parse(rc)
	if err != nil {
		return Result{Failed: len(parseErrs), Errors: nonNil(parseErrs)}, err
	}
	res := Result{Failed: len(parseErrs), Errors: append([]string{}, parseErrs...)}

	items, convErrs := Convert(rows)
	res.Failed += len(rows) - len(items)
	res.Errors = append(res.Errors, convErrs...)

	// each asset is linked to the location created from its own row
	assets := make([]model.AssetInput, 0, len(items))
	for _, it := range items {
		loc, err := im.store.CreateLocation(ctx, it.Location)
		if err != nil {
			res.Failed++
			res.Errors = append(res.Errors, fmt.Sprintf("Row %d: create location: %v", it.Line, err))
			continue
		}
		res.LocationsCreated++
		a := it.Asset
		a.LocationID = loc.ID
		assets = append(assets, a)
	}

	size := im.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	for start, n := 0, 1; start < len(assets); start, n = start+size, n+1 {
		end := min(start+size, len(assets))
		batch := assets[start:end]
		created, err := im.store.CreateAssets(ctx, batch)
		if err != nil {
			res.Failed += len(batch)
			res.Errors = append(res.Errors, fmt.Sprintf("Batch %d: %v", n, err))
			continue
		}
		res.Created += len(created)
	}

	metrics.ImportRows.WithLabelValues("created").Add(float64(res.Created))
	metrics.ImportRows.WithLabelValues("failed").Add(float64(res.Failed))
	im.log.Info("import finished",
		zap.String("source", src.Name()),
		zap.Int("created", res.Created),
		zap.Int("failed", res.Failed),
		zap.Int("locations_created", res.LocationsCreated))
	im.pub.Publish(events.TopicWaves, events.Event{Type: events.AssetsImported, Data: map[string]any{
		"created": res.Created,
		"failed":  res.Failed,
	}})
	return res, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
