// Package reporting aggregates closed and in-flight orders into the figures
// the back office asks for: per-batch throughput, direct-sale volumes and
// payment standing.
package reporting

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dcespedes8/avicontrol/internal/domain/models"
	sheetsrepo "github.com/dcespedes8/avicontrol/internal/repository/sheets"
	"github.com/dcespedes8/avicontrol/internal/store"
	"github.com/dcespedes8/avicontrol/internal/weighing"
)

const summaryExportRange = "Resumen!A:J"

// Summary aggregates a set of orders.
type Summary struct {
	OrderCount     int     `json:"orderCount"`
	ClosedCount    int     `json:"closedCount"`
	FullCount      int     `json:"fullCount"`
	EmptyCount     int     `json:"emptyCount"`
	MortalityCount int     `json:"mortalityCount"`
	GrossWeight    float64 `json:"grossWeight"`
	TareWeight     float64 `json:"tareWeight"`
	MortalityKg    float64 `json:"mortalityKg"`
	NetWeight      float64 `json:"netWeight"`
	BilledAmount   float64 `json:"billedAmount"`
	PaidAmount     float64 `json:"paidAmount"`
}

// Service computes summaries and optionally exports them.
type Service struct {
	store  *store.Store
	sheets sheetsrepo.Repository
	logger *zap.Logger
}

// NewService wires the reporting service. sheets may be nil, which disables
// export.
func NewService(st *store.Store, sheets sheetsrepo.Repository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: st, sheets: sheets, logger: logger}
}

// Summarize folds the given orders into one Summary. Net weight follows each
// order's own weighing mode.
func (s *Service) Summarize(orders []models.ClientOrder) Summary {
	birds := s.store.Config().BirdsPerCrate
	var sum Summary

	for _, o := range orders {
		t := weighing.Compute(o, birds)
		sum.OrderCount++
		if o.IsClosed() {
			sum.ClosedCount++
		}
		sum.FullCount += t.FullCount
		sum.EmptyCount += t.EmptyCount
		sum.MortalityCount += t.MortalityCount
		sum.GrossWeight += t.GrossWeight
		sum.TareWeight += t.TareWeight
		sum.MortalityKg += t.MortalityWeight
		sum.NetWeight += t.NetWeight

		if o.IsClosed() {
			sum.BilledAmount += weighing.BillableWeight(o, birds) * o.PricePerKg
		}
		for _, p := range o.Payments {
			if o.PaymentStatus == models.PaymentPaid {
				sum.PaidAmount += p.Amount
			}
		}
	}
	return sum
}

// BatchSummary aggregates every order attached to one production batch.
func (s *Service) BatchSummary(batchID string) Summary {
	return s.Summarize(s.store.OrdersByBatch(batchID))
}

// DirectSalesSummary aggregates batchless orders for one weighing mode.
func (s *Service) DirectSalesSummary(mode models.WeighingMode) Summary {
	var direct []models.ClientOrder
	for _, o := range s.store.Orders() {
		if o.BatchID == "" && o.WeighingMode == mode {
			direct = append(direct, o)
		}
	}
	return s.Summarize(direct)
}

// ExportDailySummary appends one row per batch plus a direct-sales row to the
// configured spreadsheet. A nil sheets sink makes this a no-op.
func (s *Service) ExportDailySummary(ctx context.Context) error {
	if s.sheets == nil {
		return nil
	}

	day := time.Now().Format("2006-01-02")
	for _, b := range s.store.Batches() {
		sum := s.BatchSummary(b.ID)
		if sum.OrderCount == 0 {
			continue
		}
		row := summaryRow(day, "LOTE "+b.Name, sum)
		if err := s.sheets.AppendRow(ctx, summaryExportRange, row); err != nil {
			return fmt.Errorf("export batch %s: %w", b.Name, err)
		}
	}

	for _, mode := range []models.WeighingMode{models.ModeSoloPollo, models.ModeSoloJabas} {
		sum := s.DirectSalesSummary(mode)
		if sum.OrderCount == 0 {
			continue
		}
		row := summaryRow(day, "VENTA DIRECTA "+string(mode), sum)
		if err := s.sheets.AppendRow(ctx, summaryExportRange, row); err != nil {
			return fmt.Errorf("export direct sales %s: %w", mode, err)
		}
	}

	s.logger.Info("daily summary exported", zap.String("day", day))
	return nil
}

func summaryRow(day, label string, sum Summary) []interface{} {
	return []interface{}{
		day,
		label,
		sum.OrderCount,
		sum.FullCount,
		fmt.Sprintf("%.2f", sum.GrossWeight),
		fmt.Sprintf("%.2f", sum.TareWeight),
		fmt.Sprintf("%.2f", sum.MortalityKg),
		fmt.Sprintf("%.2f", sum.NetWeight),
		fmt.Sprintf("%.2f", sum.BilledAmount),
		fmt.Sprintf("%.2f", sum.PaidAmount),
	}
}
