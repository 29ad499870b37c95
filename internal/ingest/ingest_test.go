package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fibermig/internal/model"
	"fibermig/internal/store"
)

const sample = `address,region,type,status,installation_date,technician_id,coordinates_lat,coordinates_lng
"123 Main St, Vancouver, BC",Lower Mainland,copper,active,2020-01-15,,49.2827,-123.1207
"456 Oak Ave, Victoria, BC",Vancouver Island,FIBER,Completed,2023-06-20,tech-123,48.4284,-123.3656
`

func TestParseQuotedFields(t *testing.T) {
	rows, errs, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)
	assert.Empty(t, errs)
	require.Len(t, rows, 2)
	assert.Equal(t, "123 Main St, Vancouver, BC", rows[0].Fields["address"])
	assert.Equal(t, 3, rows[1].Line)
}

func TestParseColumnMismatch(t *testing.T) {
	in := "address,region,type,status\n1 Main St,North,copper,active\nbroken,row\n"
	rows, errs, err := Parse(strings.NewReader(in))
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, []string{"Row 3: Column count mismatch (expected 4, got 2)"}, errs)
}

func TestParseFailures(t *testing.T) {
	_, _, err := Parse(strings.NewReader("address,region\n"))
	assert.True(t, errors.Is(err, ErrNoDataRows))

	_, errs, err := Parse(strings.NewReader("address,region\na\nb\n"))
	require.Error(t, err)
	assert.Len(t, errs, 2)
	assert.Contains(t, err.Error(), "Row 2: Column count mismatch")
}

func TestConvert(t *testing.T) {
	rows, _, err := Parse(strings.NewReader(sample +
		",Mars,coax,broken,2024/01/01,,abc,1\n" +
		"9 Elm St,North,ont,pending,,,,\n"))
	require.NoError(t, err)

	items, errs := Convert(rows)
	require.Len(t, items, 3)
	assert.Equal(t, model.AssetFiber, items[1].Asset.Type)
	assert.Equal(t, model.AssetCompleted, items[1].Asset.Status)
	assert.Equal(t, "tech-123", items[1].Asset.TechnicianID)
	assert.InDelta(t, 48.4284, items[1].Location.Coordinates.Lat, 1e-9)
	assert.Equal(t, model.FiberPending, items[1].Location.FiberStatus)

	assert.Equal(t, model.AssetONT, items[2].Asset.Type)
	assert.Equal(t, model.Coordinates{}, items[2].Location.Coordinates)

	require.Len(t, errs, 6)
	assert.Equal(t, "Row 4: Missing address", errs[0])
	assert.Contains(t, errs[1], `Row 4: Invalid region "Mars"`)
	assert.Contains(t, errs[2], `Invalid asset type "coax"`)
	assert.Contains(t, errs[3], `Invalid status "broken"`)
	assert.Contains(t, errs[4], "Use YYYY-MM-DD format")
	assert.Contains(t, errs[5], "Invalid coordinates (lat: abc, lng: 1)")
}

// failingAssets rejects every other asset batch.
type failingAssets struct {
	*store.Memory
	calls int
}

func (f *failingAssets) CreateAssets(ctx context.Context, in []model.AssetInput) ([]model.Asset, error) {
	f.calls++
	if f.calls%2 == 0 {
		return nil, errors.New("insert timeout")
	}
	return f.Memory.CreateAssets(ctx, in)
}

func TestImportLinksAssetsToTheirLocations(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	im := NewImporter(m, nil, nil)

	in := sample + ",Mars,copper,active,,,,\n"
	res, err := im.Import(ctx, ReaderSource{Label: "upload", R: strings.NewReader(in)})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 2, res.LocationsCreated)
	assert.Equal(t, 1, res.Failed)
	assert.Len(t, res.Errors, 2)

	locs, _ := m.ListLocations(ctx)
	byID := map[string]model.Location{}
	for _, l := range locs {
		byID[l.ID] = l
	}
	assets, _ := m.ListAssets(ctx)
	require.Len(t, assets, 2)
	for _, a := range assets {
		loc, ok := byID[a.LocationID]
		require.True(t, ok)
		if a.Type == model.AssetCopper {
			assert.Equal(t, "123 Main St, Vancouver, BC", loc.Address)
		} else {
			assert.Equal(t, "456 Oak Ave, Victoria, BC", loc.Address)
		}
	}
}

func TestImportBatchFailureDoesNotAbortOthers(t *testing.T) {
	ctx := context.Background()
	fs := &failingAssets{Memory: store.NewMemory()}
	im := NewImporter(fs, nil, nil)
	im.BatchSize = 2

	var b strings.Builder
	b.WriteString("address,region,type,status\n")
	for i := 0; i < 5; i++ {
		b.WriteString("1 Main St,North,copper,active\n")
	}
	res, err := im.Import(ctx, ReaderSource{Label: "upload", R: strings.NewReader(b.String())})
	require.NoError(t, err)
	// batches: [2 ok] [2 fail] [1 ok]
	assert.Equal(t, 3, res.Created)
	assert.Equal(t, 2, res.Failed)
	assert.Equal(t, []string{"Batch 2: insert timeout"}, res.Errors)
	assert.Equal(t, 5, res.LocationsCreated)
}

func TestImportFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assets.csv")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	res, err := NewImporter(store.NewMemory(), nil, nil).Import(context.Background(), FileSource{Path: path})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)

	_, err = NewImporter(store.NewMemory(), nil, nil).Import(context.Background(), FileSource{Path: filepath.Join(t.TempDir(), "missing.csv")})
	assert.Error(t, err)
}

func TestImportEmptyDocument(t *testing.T) {
	_, err := NewImporter(store.NewMemory(), nil, nil).Import(context.Background(), ReaderSource{R: strings.NewReader("address\n")})
	assert.True(t, errors.Is(err, ErrNoDataRows))
}
