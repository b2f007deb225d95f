// Package orders implements the client-order lifecycle: OPEN orders
// accumulate weighing records under the crate-ceiling rules, CLOSED orders
// are read-only with their price frozen.
package orders

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dcespedes8/avicontrol/internal/domain/models"
	"github.com/dcespedes8/avicontrol/internal/store"
	"github.com/dcespedes8/avicontrol/internal/weighing"
)

// ErrOrderClosed rejects any mutation of a closed order.
var ErrOrderClosed = errors.New("order is closed")

// ErrCrateLimitExceeded rejects a record insert that would push the per-type
// crate count past the order's target. Nothing is mutated on rejection.
var ErrCrateLimitExceeded = errors.New("crate limit exceeded")

// ErrBatchFull rejects creating an order on a batch whose crate capacity is
// already consumed by its existing orders.
var ErrBatchFull = errors.New("batch capacity reached")

// ErrOrderNotFound reports an unknown order id.
var ErrOrderNotFound = errors.New("order not found")

// Service coordinates order mutations against the entity store.
type Service struct {
	store  *store.Store
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
}

// NewService wires the order service.
func NewService(st *store.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:  st,
		logger: logger,
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}
}

// CreateInput carries the fields an operator supplies for a new order.
type CreateInput struct {
	ClientName   string
	TargetCrates int
	BatchID      string
	Mode         models.WeighingMode
	CreatedBy    string
}

// Create registers a new open order. When the order belongs to a batch, the
// batch's total crate capacity across all its orders is checked first.
func (s *Service) Create(in CreateInput) (models.ClientOrder, error) {
	if in.ClientName == "" {
		return models.ClientOrder{}, fmt.Errorf("client name is required")
	}
	if in.Mode == "" {
		in.Mode = models.ModeBatch
	}

	if in.BatchID != "" {
		if err := s.checkBatchCapacity(in.BatchID); err != nil {
			return models.ClientOrder{}, err
		}
	}

	order := models.ClientOrder{
		ID:            s.newID(),
		ClientName:    in.ClientName,
		TargetCrates:  in.TargetCrates,
		Status:        models.OrderOpen,
		Records:       []models.WeighingRecord{},
		BatchID:       in.BatchID,
		WeighingMode:  in.Mode,
		PaymentStatus: models.PaymentPending,
		Payments:      []models.Payment{},
		CreatedBy:     in.CreatedBy,
	}
	if err := s.store.SaveOrder(order); err != nil {
		return models.ClientOrder{}, err
	}

	s.logger.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("client", order.ClientName),
		zap.String("mode", string(order.WeighingMode)))
	return order, nil
}

func (s *Service) checkBatchCapacity(batchID string) error {
	var batch models.Batch
	found := false
	for _, b := range s.store.Batches() {
		if b.ID == batchID {
			batch, found = b, true
			break
		}
	}
	if !found || batch.TotalCratesLimit <= 0 {
		return nil
	}

	weighed := 0
	for _, o := range s.store.OrdersByBatch(batchID) {
		for _, r := range o.Records {
			if r.Type == models.RecordFull {
				weighed += r.Quantity
			}
		}
	}
	if weighed >= batch.TotalCratesLimit {
		return fmt.Errorf("%w: batch %s holds %d of %d crates", ErrBatchFull, batch.Name, weighed, batch.TotalCratesLimit)
	}
	return nil
}

// AddRecord appends one weighing to an open order. With a positive crate
// target, FULL inserts are checked against the accumulated full count and
// EMPTY inserts against the empty count; a violating insert is rejected
// whole, never clamped.
func (s *Service) AddRecord(orderID string, weight float64, quantity int, recType models.RecordType) (models.ClientOrder, error) {
	order, ok := s.store.Order(orderID)
	if !ok {
		return models.ClientOrder{}, ErrOrderNotFound
	}
	if order.IsClosed() {
		return models.ClientOrder{}, ErrOrderClosed
	}
	if quantity <= 0 {
		return models.ClientOrder{}, fmt.Errorf("quantity must be positive")
	}
	if weight < 0 {
		return models.ClientOrder{}, fmt.Errorf("weight must not be negative")
	}

	if order.TargetCrates > 0 {
		t := weighing.Compute(order, s.birdsPerCrate())
		switch recType {
		case models.RecordFull:
			if t.FullCount+quantity > order.TargetCrates {
				return models.ClientOrder{}, fmt.Errorf("%w: %d full crates of %d already weighed", ErrCrateLimitExceeded, t.FullCount, order.TargetCrates)
			}
		case models.RecordEmpty:
			if t.EmptyCount+quantity > order.TargetCrates {
				return models.ClientOrder{}, fmt.Errorf("%w: %d empty crates of %d already weighed", ErrCrateLimitExceeded, t.EmptyCount, order.TargetCrates)
			}
		}
	}

	record := models.WeighingRecord{
		ID:        s.newID(),
		Timestamp: s.now().UnixMilli(),
		Weight:    weight,
		Quantity:  quantity,
		Type:      recType,
	}
	order.Records = append([]models.WeighingRecord{record}, order.Records...)

	if err := s.store.SaveOrder(order); err != nil {
		return models.ClientOrder{}, err
	}
	return order, nil
}

// DeleteRecord removes one weighing from an open order.
func (s *Service) DeleteRecord(orderID, recordID string) (models.ClientOrder, error) {
	order, ok := s.store.Order(orderID)
	if !ok {
		return models.ClientOrder{}, ErrOrderNotFound
	}
	if order.IsClosed() {
		return models.ClientOrder{}, ErrOrderClosed
	}

	kept := order.Records[:0]
	for _, r := range order.Records {
		if r.ID != recordID {
			kept = append(kept, r)
		}
	}
	order.Records = kept

	if err := s.store.SaveOrder(order); err != nil {
		return models.ClientOrder{}, err
	}
	return order, nil
}

// Close records a payment and transitions the order to CLOSED, freezing the
// supplied price. Cash settles immediately; credit closes the order but
// leaves the payment status pending. There is no way back to OPEN.
func (s *Service) Close(orderID string, pricePerKg, amount float64, method models.PaymentMethod) (models.ClientOrder, error) {
	order, ok := s.store.Order(orderID)
	if !ok {
		return models.ClientOrder{}, ErrOrderNotFound
	}
	if order.IsClosed() {
		return models.ClientOrder{}, ErrOrderClosed
	}

	if amount <= 0 {
		amount = weighing.BillableWeight(order, s.birdsPerCrate()) * pricePerKg
	}

	order.PricePerKg = pricePerKg
	order.Payments = append(order.Payments, models.Payment{
		ID:        s.newID(),
		Amount:    amount,
		Timestamp: s.now().UnixMilli(),
		Note:      string(method),
	})
	if method == models.PayCash {
		order.PaymentStatus = models.PaymentPaid
	}
	order.Status = models.OrderClosed

	if err := s.store.SaveOrder(order); err != nil {
		return models.ClientOrder{}, err
	}

	s.logger.Info("order closed",
		zap.String("order_id", order.ID),
		zap.Float64("price_per_kg", pricePerKg),
		zap.String("method", string(method)),
		zap.String("payment_status", string(order.PaymentStatus)))
	return order, nil
}

// Totals computes the order's aggregate figures using the configured crate
// occupancy.
func (s *Service) Totals(orderID string) (weighing.Totals, error) {
	order, ok := s.store.Order(orderID)
	if !ok {
		return weighing.Totals{}, ErrOrderNotFound
	}
	return weighing.Compute(order, s.birdsPerCrate()), nil
}

func (s *Service) birdsPerCrate() int {
	n := s.store.Config().BirdsPerCrate
	if n <= 0 {
		n = 10
	}
	return n
}
