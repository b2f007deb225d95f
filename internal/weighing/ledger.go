// Package weighing derives billable figures from an order's raw scale
// readings. Everything here is a pure function over the order; totals are
// recomputed on demand and never persisted.
package weighing

import "github.com/dcespedes8/avicontrol/internal/domain/models"

// batchBirdsPerCrate is the assumed crate occupancy for batch-mode orders.
const batchBirdsPerCrate = 10

// Totals is the aggregate view of one order's records.
type Totals struct {
	GrossWeight     float64 `json:"grossWeight"`
	TareWeight      float64 `json:"tareWeight"`
	MortalityWeight float64 `json:"mortalityWeight"`
	NetWeight       float64 `json:"netWeight"`

	FullCount      int `json:"fullCount"`
	EmptyCount     int `json:"emptyCount"`
	MortalityCount int `json:"mortalityCount"`

	EstimatedUnits    int     `json:"estimatedUnits"`
	AverageUnitWeight float64 `json:"averageUnitWeight"`
}

// Compute aggregates the order's records. birdsPerCrate is only consulted in
// crate-only mode; batch mode uses the fixed occupancy assumption.
//
// In bird-only mode net weight equals gross weight: birds are on the scale
// directly, so there is no tare and mortality is not subtracted.
func Compute(order models.ClientOrder, birdsPerCrate int) Totals {
	var t Totals

	for _, r := range order.Records {
		switch r.Type {
		case models.RecordFull:
			t.GrossWeight += r.Weight
			t.FullCount += r.Quantity
		case models.RecordEmpty:
			t.TareWeight += r.Weight
			t.EmptyCount += r.Quantity
		case models.RecordMortality:
			t.MortalityWeight += r.Weight
			t.MortalityCount += r.Quantity
		}
	}

	switch order.WeighingMode {
	case models.ModeSoloPollo:
		t.EstimatedUnits = t.FullCount
		t.NetWeight = t.GrossWeight
	case models.ModeSoloJabas:
		t.EstimatedUnits = t.FullCount * birdsPerCrate
		t.NetWeight = t.GrossWeight - t.TareWeight - t.MortalityWeight
	default:
		t.EstimatedUnits = t.FullCount * batchBirdsPerCrate
		t.NetWeight = t.GrossWeight - t.TareWeight - t.MortalityWeight
	}

	if t.EstimatedUnits > 0 {
		t.AverageUnitWeight = t.NetWeight / float64(t.EstimatedUnits)
	}

	return t
}

// BillableWeight is the weight the client pays for. Bird-only sales bill the
// gross weight; every other mode bills net.
func BillableWeight(order models.ClientOrder, birdsPerCrate int) float64 {
	t := Compute(order, birdsPerCrate)
	if order.WeighingMode == models.ModeSoloPollo {
		return t.GrossWeight
	}
	return t.NetWeight
}
