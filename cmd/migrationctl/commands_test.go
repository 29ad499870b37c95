package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fibermig/internal/model"
	"fibermig/internal/store"
)

func runCLI(t *testing.T, st store.Store, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	c := &cli{out: &out, store: st, now: func() time.Time { return time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC) }}
	cmd := newRootCmd(c)
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := cmd.Execute()
	return out.String(), err
}

func seed(t *testing.T) (*store.Memory, model.Wave) {
	t.Helper()
	ctx := context.Background()
	m := store.NewMemory()
	w, err := m.CreateWave(ctx, model.WaveInput{Name: "Wave 1", StartDate: "2024-05-01", EndDate: "2024-06-01", Region: model.RegionNorth, CustomerCohort: model.CohortGovernment})
	require.NoError(t, err)
	loc, err := m.CreateLocation(ctx, model.LocationInput{Address: "1 Main St", Region: model.RegionNorth, WaveID: w.ID})
	require.NoError(t, err)
	start := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	_, err = m.CreateWorkOrder(ctx, model.WorkOrderInput{LocationID: loc.ID, Status: model.WorkOrderCompleted, StartTime: &start})
	require.NoError(t, err)
	_, err = m.CreateWorkOrder(ctx, model.WorkOrderInput{LocationID: loc.ID, Status: model.WorkOrderInProgress})
	require.NoError(t, err)
	_, err = m.CreateWorkOrder(ctx, model.WorkOrderInput{LocationID: loc.ID})
	require.NoError(t, err)
	_, err = m.CreateAsset(ctx, model.AssetInput{Type: model.AssetCopper, Status: model.AssetActive, LocationID: loc.ID})
	require.NoError(t, err)
	return m, w
}

func TestImportCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assets.csv")
	csv := "address,region,type,status\n1 Main St,North,copper,active\n2 Oak Ave,Nowhere,fiber,pending\n"
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o600))

	m := store.NewMemory()
	out, err := runCLI(t, m, "import", path, "--batch-size", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "created 1 assets (1 locations), 1 failed")
	assert.Contains(t, out, `Row 3: Invalid region "Nowhere"`)

	_, err = runCLI(t, m, "import")
	assert.Error(t, err)
}

func TestProgressRefreshCommand(t *testing.T) {
	m, w := seed(t)
	out, err := runCLI(t, m, "progress", "refresh", "--wave", w.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "33%")

	got, err := m.GetWave(context.Background(), w.ID)
	require.NoError(t, err)
	assert.Equal(t, 33, got.ProgressPercentage)

	out, err = runCLI(t, m, "progress", "refresh")
	require.NoError(t, err)
	assert.Contains(t, out, w.ID)

	_, err = runCLI(t, m, "progress", "refresh", "--wave", "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestReportCommand(t *testing.T) {
	m, _ := seed(t)
	out, err := runCLI(t, m, "report", "daily", "--out", "-")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, `"Date","Completed","In Progress","Failed","Total"`), out)
	assert.Contains(t, out, `"2024-05-01","1","0","0","1"`)
	assert.Contains(t, out, `"unscheduled","0","1","0","2"`)

	dir := t.TempDir()
	wd, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	defer func() { _ = os.Chdir(wd) }()
	out, err = runCLI(t, m, "report", "reconciliation", "--format", "html")
	require.NoError(t, err)
	assert.Contains(t, out, "reconciliation-2024-05-02.html")
	body, err := os.ReadFile(filepath.Join(dir, "reconciliation-2024-05-02.html"))
	require.NoError(t, err)
	assert.Contains(t, string(body), "Reconciliation Report")

	_, err = runCLI(t, m, "report", "weekly")
	assert.Error(t, err)
	_, err = runCLI(t, m, "report", "daily", "--format", "pdf", "--out", "-")
	assert.Error(t, err)
	_, err = runCLI(t, m, "report", "daily", "--start", "05/01/2024")
	assert.Error(t, err)
}

func TestReconcileCommand(t *testing.T) {
	m, _ := seed(t)
	out, err := runCLI(t, m, "reconcile", "--region", "North")
	require.NoError(t, err)
	assert.Contains(t, out, "1 Main St")
	assert.Contains(t, out, "1 assets, 0 completed, 0 pending, 1 discrepancies")

	out, err = runCLI(t, m, "reconcile", "--region", "Interior")
	require.NoError(t, err)
	assert.Contains(t, out, "0 assets")
}
