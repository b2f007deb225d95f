package models

// OrderStatus is the order lifecycle state. CLOSED is terminal.
type OrderStatus string

const (
	OrderOpen   OrderStatus = "OPEN"
	OrderClosed OrderStatus = "CLOSED"
)

// PaymentStatus tracks settlement independently of the lifecycle state: a
// credit sale closes as CLOSED/PENDING.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentPaid    PaymentStatus = "PAID"
)

// RecordType classifies a single weighing.
type RecordType string

const (
	RecordFull      RecordType = "FULL"
	RecordEmpty     RecordType = "EMPTY"
	RecordMortality RecordType = "MORTALITY"
)

// PaymentMethod tags how a payment settles. Cash settles immediately.
type PaymentMethod string

const (
	PayCash   PaymentMethod = "CASH"
	PayCredit PaymentMethod = "CREDIT"
)

// WeighingRecord is one scale reading covering Quantity crates (or birds, in
// bird-only mode). Immutable once created; it can only be deleted while the
// owning order is still open.
type WeighingRecord struct {
	ID        string     `json:"id" bson:"id"`
	Timestamp int64      `json:"timestamp" bson:"timestamp"`
	Weight    float64    `json:"weight" bson:"weight"`
	Quantity  int        `json:"quantity" bson:"quantity"`
	Type      RecordType `json:"type" bson:"type"`
}

// Payment is an append-only settlement entry on an order.
type Payment struct {
	ID        string  `json:"id" bson:"id"`
	Amount    float64 `json:"amount" bson:"amount"`
	Timestamp int64   `json:"timestamp" bson:"timestamp"`
	Note      string  `json:"note" bson:"note"`
}

// ClientOrder is one client's weighing session. TargetCrates of zero means
// unlimited; a positive value is a hard per-type ceiling enforced at insert
// time. An absent BatchID marks a direct sale.
type ClientOrder struct {
	ID            string           `json:"id" bson:"_id"`
	ClientName    string           `json:"clientName" bson:"clientName"`
	TargetCrates  int              `json:"targetCrates" bson:"targetCrates"`
	PricePerKg    float64          `json:"pricePerKg" bson:"pricePerKg"`
	Status        OrderStatus      `json:"status" bson:"status"`
	Records       []WeighingRecord `json:"records" bson:"records"`
	BatchID       string           `json:"batchId,omitempty" bson:"batchId,omitempty"`
	WeighingMode  WeighingMode     `json:"weighingMode" bson:"weighingMode"`
	PaymentStatus PaymentStatus    `json:"paymentStatus" bson:"paymentStatus"`
	Payments      []Payment        `json:"payments" bson:"payments"`
	CreatedBy     string           `json:"createdBy,omitempty" bson:"createdBy,omitempty"`
}

// EntityID implements sync.Entity.
func (o ClientOrder) EntityID() string { return o.ID }

// IsClosed reports whether the order is read-only.
func (o ClientOrder) IsClosed() bool { return o.Status == OrderClosed }
