// Package progress computes wave completion percentages and keeps the
// stored values current.
package progress

import "fibermig/internal/model"

// Calculate returns the share of Completed work orders, in whole percent,
// among the work orders whose location belongs to the wave. It is 0 when
// the wave has no locations or those locations have no work orders.
// Halves round up.
func Calculate(waveID string, locations []model.Location, workOrders []model.WorkOrder) int {
	inWave := make(map[string]struct{})
	for _, l := range locations {
		if l.WaveID == waveID {
			inWave[l.ID] = struct{}{}
		}
	}
	if len(inWave) == 0 {
		return 0
	}
	total, completed := 0, 0
	for _, wo := range workOrders {
		if _, ok := inWave[wo.LocationID]; !ok {
			continue
		}
		total++
		if wo.Status == model.WorkOrderCompleted {
			completed++
		}
	}
	return Percent(completed, total)
}

// Percent is round-half-up(100*part/total) in integer arithmetic, 0 when
// total is 0.
func Percent(part, total int) int {
	if total <= 0 {
		return 0
	}
	return (200*part + total) / (2 * total)
}
