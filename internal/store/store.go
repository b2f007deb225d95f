package store

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/dcespedes8/avicontrol/internal/domain/models"
)

// Collection names the four persisted collections.
type Collection string

const (
	CollectionUsers   Collection = "users"
	CollectionBatches Collection = "batches"
	CollectionOrders  Collection = "orders"
	CollectionConfig  Collection = "config"
)

// Storage keys, kept compatible with the legacy device format.
const (
	keyUsers   = "avi_users"
	keyBatches = "avi_batches"
	keyOrders  = "avi_orders"
	keyConfig  = "avi_config"
)

// Mirror receives every local mutation for outward propagation. Deliveries
// run on a single worker goroutine in call order, so two saves of the same
// entity reach the mirror in the order they committed locally. The local
// write has already committed by the time a Mirror sees it; a Mirror failure
// must never surface to the caller.
type Mirror interface {
	Upsert(collection Collection, id string, entity any)
	Remove(collection Collection, id string)
}

// mirrorOp is one queued outward delivery.
type mirrorOp struct {
	remove     bool
	collection Collection
	id         string
	entity     any
}

// Store owns the local collections. All reads degrade to an empty collection
// (or the default config) when the persisted blob is unparseable; a corrupted
// device never crashes the application.
type Store struct {
	kv     *KV
	logger *zap.Logger

	mu sync.Mutex // serializes whole-collection read-modify-write cycles

	obsMu     sync.Mutex
	observers map[int]func(Collection)
	nextObs   int

	mirrorMu sync.RWMutex
	mirror   Mirror
	mirrorCh chan mirrorOp
}

// New wraps an opened KV.
func New(kv *KV, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		kv:        kv,
		logger:    logger,
		observers: make(map[int]func(Collection)),
		mirrorCh:  make(chan mirrorOp, 256),
	}
	go s.mirrorLoop()
	return s
}

// mirrorLoop drains the delivery queue one op at a time. Ordering matters:
// delivering concurrently could land a stale version of an entity on the
// remote after a newer one, which the remote-wins merge would then fold back
// over the newer local copy.
func (s *Store) mirrorLoop() {
	for op := range s.mirrorCh {
		s.mirrorMu.RLock()
		m := s.mirror
		s.mirrorMu.RUnlock()
		if m == nil {
			continue
		}
		if op.remove {
			m.Remove(op.collection, op.id)
		} else {
			m.Upsert(op.collection, op.id, op.entity)
		}
	}
}

// SetMirror installs (or clears, with nil) the outward propagation hook.
func (s *Store) SetMirror(m Mirror) {
	s.mirrorMu.Lock()
	s.mirror = m
	s.mirrorMu.Unlock()
}

// Subscribe registers a collection-changed observer and returns its cancel
// function. Observers fire only after the change has been persisted.
func (s *Store) Subscribe(fn func(Collection)) func() {
	s.obsMu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.obsMu.Unlock()

	return func() {
		s.obsMu.Lock()
		delete(s.observers, id)
		s.obsMu.Unlock()
	}
}

func (s *Store) notify(c Collection) {
	s.obsMu.Lock()
	fns := make([]func(Collection), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.obsMu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}

// mirrorUpsert enqueues an outward write. The buffer absorbs bursts; a full
// queue briefly backpressures the caller rather than reordering deliveries.
func (s *Store) mirrorUpsert(c Collection, id string, entity any) {
	if !s.mirrorInstalled() {
		return
	}
	s.mirrorCh <- mirrorOp{collection: c, id: id, entity: entity}
}

func (s *Store) mirrorRemove(c Collection, id string) {
	if !s.mirrorInstalled() {
		return
	}
	s.mirrorCh <- mirrorOp{remove: true, collection: c, id: id}
}

func (s *Store) mirrorInstalled() bool {
	s.mirrorMu.RLock()
	defer s.mirrorMu.RUnlock()
	return s.mirror != nil
}

// loadList deserializes a collection, substituting an empty slice for missing
// or corrupted blobs.
func loadList[T any](s *Store, key string) []T {
	raw, err := s.kv.Get(key)
	if err != nil {
		s.logger.Warn("collection read failed, using empty", zap.String("key", key), zap.Error(err))
		return nil
	}
	if len(raw) == 0 {
		return nil
	}
	var list []T
	if err := json.Unmarshal(raw, &list); err != nil {
		s.logger.Warn("collection blob corrupted, using empty", zap.String("key", key), zap.Error(err))
		return nil
	}
	return list
}

func saveList[T any](s *Store, key string, list []T) error {
	raw, err := json.Marshal(list)
	if err != nil {
		return err
	}
	return s.kv.Set(key, raw)
}

// upsertByID replaces the element whose id matches, or appends.
func upsertByID[T any](list []T, id func(T) string, item T) []T {
	for i := range list {
		if id(list[i]) == id(item) {
			list[i] = item
			return list
		}
	}
	return append(list, item)
}

func removeByID[T any](list []T, id func(T) string, target string) []T {
	out := list[:0]
	for _, item := range list {
		if id(item) != target {
			out = append(out, item)
		}
	}
	return out
}

// --- Users ---

// Users returns every stored user.
func (s *Store) Users() []models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return loadList[models.User](s, keyUsers)
}

// SaveUser upserts by id and mirrors the write outward.
func (s *Store) SaveUser(u models.User) error {
	s.mu.Lock()
	users := upsertByID(loadList[models.User](s, keyUsers), models.User.EntityID, u)
	err := saveList(s, keyUsers, users)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.mirrorUpsert(CollectionUsers, u.ID, u)
	s.notify(CollectionUsers)
	return nil
}

// DeleteUser removes by id.
func (s *Store) DeleteUser(id string) error {
	s.mu.Lock()
	users := removeByID(loadList[models.User](s, keyUsers), models.User.EntityID, id)
	err := saveList(s, keyUsers, users)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.mirrorRemove(CollectionUsers, id)
	s.notify(CollectionUsers)
	return nil
}

// ReplaceUsers persists a reconciled collection as-is, without mirroring.
// This is the sync engine's persistence path.
func (s *Store) ReplaceUsers(users []models.User) error {
	s.mu.Lock()
	err := saveList(s, keyUsers, users)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.notify(CollectionUsers)
	return nil
}

// --- Batches ---

// Batches returns every stored batch.
func (s *Store) Batches() []models.Batch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return loadList[models.Batch](s, keyBatches)
}

// SaveBatch upserts by id and mirrors the write outward.
func (s *Store) SaveBatch(b models.Batch) error {
	s.mu.Lock()
	batches := upsertByID(loadList[models.Batch](s, keyBatches), models.Batch.EntityID, b)
	err := saveList(s, keyBatches, batches)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.mirrorUpsert(CollectionBatches, b.ID, b)
	s.notify(CollectionBatches)
	return nil
}

// DeleteBatch removes by id.
func (s *Store) DeleteBatch(id string) error {
	s.mu.Lock()
	batches := removeByID(loadList[models.Batch](s, keyBatches), models.Batch.EntityID, id)
	err := saveList(s, keyBatches, batches)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.mirrorRemove(CollectionBatches, id)
	s.notify(CollectionBatches)
	return nil
}

// ReplaceBatches persists a reconciled collection without mirroring.
func (s *Store) ReplaceBatches(batches []models.Batch) error {
	s.mu.Lock()
	err := saveList(s, keyBatches, batches)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.notify(CollectionBatches)
	return nil
}

// --- Orders ---

// Orders returns every stored order.
func (s *Store) Orders() []models.ClientOrder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return loadList[models.ClientOrder](s, keyOrders)
}

// Order returns a single order by id.
func (s *Store) Order(id string) (models.ClientOrder, bool) {
	for _, o := range s.Orders() {
		if o.ID == id {
			return o, true
		}
	}
	return models.ClientOrder{}, false
}

// OrdersByBatch returns the orders attached to one production batch.
func (s *Store) OrdersByBatch(batchID string) []models.ClientOrder {
	var out []models.ClientOrder
	for _, o := range s.Orders() {
		if o.BatchID == batchID {
			out = append(out, o)
		}
	}
	return out
}

// SaveOrder upserts by id and mirrors the write outward.
func (s *Store) SaveOrder(o models.ClientOrder) error {
	s.mu.Lock()
	orders := upsertByID(loadList[models.ClientOrder](s, keyOrders), models.ClientOrder.EntityID, o)
	err := saveList(s, keyOrders, orders)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.mirrorUpsert(CollectionOrders, o.ID, o)
	s.notify(CollectionOrders)
	return nil
}

// DeleteOrder removes by id.
func (s *Store) DeleteOrder(id string) error {
	s.mu.Lock()
	orders := removeByID(loadList[models.ClientOrder](s, keyOrders), models.ClientOrder.EntityID, id)
	err := saveList(s, keyOrders, orders)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.mirrorRemove(CollectionOrders, id)
	s.notify(CollectionOrders)
	return nil
}

// ReplaceOrders persists a reconciled collection without mirroring.
func (s *Store) ReplaceOrders(orders []models.ClientOrder) error {
	s.mu.Lock()
	err := saveList(s, keyOrders, orders)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.notify(CollectionOrders)
	return nil
}

// --- Config ---

// Config returns the device configuration, or the documented defaults when
// the stored blob is absent or unparseable.
func (s *Store) Config() models.AppConfig {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.kv.Get(keyConfig)
	if err != nil || len(raw) == 0 {
		if err != nil {
			s.logger.Warn("config read failed, using defaults", zap.Error(err))
		}
		return models.DefaultAppConfig()
	}
	var cfg models.AppConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		s.logger.Warn("config blob corrupted, using defaults", zap.Error(err))
		return models.DefaultAppConfig()
	}
	return cfg
}

// SaveConfig persists the configuration document.
func (s *Store) SaveConfig(cfg models.AppConfig) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	s.mu.Lock()
	err = s.kv.Set(keyConfig, raw)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.mirrorUpsert(CollectionConfig, "app", cfg)
	s.notify(CollectionConfig)
	return nil
}
