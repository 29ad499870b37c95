//go:build postgres_integration

package store

import (
	"os"
	"testing"

	"go.uber.org/zap"

	"fibermig/internal/model"
)

func TestPostgresConnectivityAndMigrate(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}
	p, err := NewPostgres(t.Context(), dsn, zap.NewNop())
	if err != nil {
		t.Fatalf("NewPostgres: %v", err)
	}
	defer p.Close()
	if err := p.Ping(t.Context()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if err := p.Migrate(t.Context()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	w, err := p.CreateWave(t.Context(), model.WaveInput{
		Name: "integration", StartDate: "2024-01-01", EndDate: "2024-02-01",
		Region: model.RegionNorth, CustomerCohort: model.CohortEnterprise,
	})
	if err != nil {
		t.Fatalf("CreateWave: %v", err)
	}
	if err := p.UpdateWaveProgress(t.Context(), w.ID, 50); err != nil {
		t.Fatalf("UpdateWaveProgress: %v", err)
	}
	got, err := p.GetWave(t.Context(), w.ID)
	if err != nil {
		t.Fatalf("GetWave: %v", err)
	}
	if got.ProgressPercentage != 50 {
		t.Fatalf("want 50, got %d", got.ProgressPercentage)
	}
}
