package report

import (
	"math"

	"fibermig/internal/model"
)

// KPIs are the dashboard headline figures.
type KPIs struct {
	CompletedMigrations int `json:"completed_migrations"`
	InProgress          int `json:"in_progress"`
	FailedInstalls      int `json:"failed_installs"`
	// AverageInstallHours is nil when no completed work order has both timestamps.
	AverageInstallHours *float64 `json:"average_install_hours"`
	AverageWaveProgress float64  `json:"average_wave_progress"`
	Waves               int      `json:"waves"`
}

func Dashboard(assets []model.Asset, workOrders []model.WorkOrder, waves []model.Wave) KPIs {
	var k KPIs
	for _, a := range assets {
		if a.Status == model.AssetCompleted {
			k.CompletedMigrations++
		}
	}
	var (
		timed int
		total float64
	)
	for _, wo := range workOrders {
		switch wo.Status {
		case model.WorkOrderInProgress:
			k.InProgress++
		case model.WorkOrderFailed:
			k.FailedInstalls++
		case model.WorkOrderCompleted:
			if wo.StartTime != nil && wo.EndTime != nil {
				timed++
				total += wo.EndTime.Sub(*wo.StartTime).Hours()
			}
		}
	}
	if timed > 0 {
		avg := round1(total / float64(timed))
		k.AverageInstallHours = &avg
	}
	k.Waves = len(waves)
	if len(waves) > 0 {
		sum := 0
		for _, w := range waves {
			sum += w.ProgressPercentage
		}
		k.AverageWaveProgress = round1(float64(sum) / float64(len(waves)))
	}
	return k
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

type FeasibilitySummary struct {
	Total      int `json:"total"`
	FiberReady int `json:"fiber_ready"`
	Pending    int `json:"pending_feasibility"`
	CopperOnly int `json:"copper_only"`
}

// Feasibility counts locations by fiber status, optionally within one region.
func Feasibility(locations []model.Location, region string) FeasibilitySummary {
	var s FeasibilitySummary
	for _, l := range locations {
		if region != "" && region != All && string(l.Region) != region {
			continue
		}
		s.Total++
		switch l.FiberStatus {
		case model.FiberReady:
			s.FiberReady++
		case model.FiberPending:
			s.Pending++
		case model.FiberCopperOnly:
			s.CopperOnly++
		}
	}
	return s
}

type ConsentSummary struct {
	Consented int `json:"consented"`
	Pending   int `json:"pending"`
	Declined  int `json:"declined"`
}

func Consent(customers []model.Customer) ConsentSummary {
	var s ConsentSummary
	for _, c := range customers {
		switch c.ConsentStatus {
		case model.ConsentGiven:
			s.Consented++
		case model.ConsentPending:
			s.Pending++
		case model.ConsentDeclined:
			s.Declined++
		}
	}
	return s
}

type TechnicianLoadRow struct {
	TechnicianID   string `json:"technician_id"`
	Name           string `json:"name"`
	OpenWorkOrders int    `json:"open_work_orders"`
}

// TechnicianLoad counts each technician's work orders that are not Completed.
func TechnicianLoad(technicians []model.Technician, workOrders []model.WorkOrder) []TechnicianLoadRow {
	open := map[string]int{}
	for _, wo := range workOrders {
		if wo.TechnicianID != "" && wo.Status != model.WorkOrderCompleted {
			open[wo.TechnicianID]++
		}
	}
	out := make([]TechnicianLoadRow, len(technicians))
	for i, t := range technicians {
		out[i] = TechnicianLoadRow{TechnicianID: t.ID, Name: t.Name, OpenWorkOrders: open[t.ID]}
	}
	return out
}
