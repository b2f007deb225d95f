package sync

import (
	"context"
	stdsync "sync"
	"time"

	"go.uber.org/zap"

	"github.com/dcespedes8/avicontrol/internal/domain/models"
	"github.com/dcespedes8/avicontrol/internal/repository/mongodb"
	"github.com/dcespedes8/avicontrol/internal/store"
)

// Remote collection names.
const (
	remoteUsers   = "users"
	remoteBatches = "batches"
	remoteOrders  = "orders"
	remoteConfig  = "config"

	// configDocID identifies the single shared settings document.
	configDocID = "app"
)

const writeTimeout = 15 * time.Second

// Notifier delivers operator-visible sync warnings. A total subscription
// failure goes through here; individual write failures are only logged.
type Notifier interface {
	Warn(ctx context.Context, subject, detail string)
}

// ChangeStream is one live change subscription.
type ChangeStream interface {
	Next(ctx context.Context) bool
	Err() error
	Close(ctx context.Context) error
}

// RemoteStore is the slice of the remote document store the session drives:
// upsert-with-merge, delete, full collection fetch into a slice pointer, and
// a change subscription.
type RemoteStore interface {
	Upsert(ctx context.Context, collection, id string, doc any) error
	Delete(ctx context.Context, collection, id string) error
	FetchAll(ctx context.Context, collection string, out any) error
	Watch(ctx context.Context, collection string) (ChangeStream, error)
	Close(ctx context.Context) error
}

// mongoRemote adapts the concrete driver handle to RemoteStore.
type mongoRemote struct {
	*mongodb.Remote
}

func (m mongoRemote) Watch(ctx context.Context, collection string) (ChangeStream, error) {
	return m.Remote.Watch(ctx, collection)
}

func dialMongo(ctx context.Context, cfg models.RemoteConfig) (RemoteStore, error) {
	r, err := mongodb.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return mongoRemote{r}, nil
}

// Session owns the live remote connection and all its subscriptions.
// Start tears down any previous session before connecting, so re-running it
// on every credential change is safe; Stop cancels every watcher and
// disconnects. The session also acts as the store's Mirror, relaying every
// local mutation outward without ever blocking the local write.
type Session struct {
	store    *store.Store
	notifier Notifier
	logger   *zap.Logger
	dial     func(ctx context.Context, cfg models.RemoteConfig) (RemoteStore, error)

	mu     stdsync.Mutex
	remote RemoteStore
	cancel context.CancelFunc
	wg     stdsync.WaitGroup
}

// NewSession wires an idle sync session.
func NewSession(st *store.Store, notifier Notifier, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{store: st, notifier: notifier, logger: logger, dial: dialMongo}
}

// Active reports whether a remote connection is currently established.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remote != nil
}

// Start connects with the supplied credentials and brings every collection
// into the upload/subscribe/reconcile loop. Any prior session is stopped
// first; the sequence is idempotent and safe to re-run at any time.
func (s *Session) Start(ctx context.Context, cfg models.RemoteConfig) error {
	s.Stop()

	connectCtx, cancelConnect := context.WithTimeout(ctx, writeTimeout)
	remote, err := s.dial(connectCtx, cfg)
	cancelConnect()
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	s.remote = remote
	s.cancel = cancel
	s.mu.Unlock()

	s.store.SetMirror(s)

	s.wg.Add(3)
	go runCollection(s, runCtx, remoteUsers, s.store.Users, s.store.ReplaceUsers)
	go runCollection(s, runCtx, remoteBatches, s.store.Batches, s.store.ReplaceBatches)
	go runCollection(s, runCtx, remoteOrders, s.store.Orders, s.store.ReplaceOrders)

	// Config is synced narrowly: a single shared document, push-only, with
	// credentials stripped so they never leave the device.
	s.pushConfig(runCtx)

	s.logger.Info("sync session started", zap.String("database", cfg.Database), zap.String("organization", cfg.Organization))
	return nil
}

// Stop cancels all subscriptions and disconnects. Safe to call when idle.
func (s *Session) Stop() {
	s.mu.Lock()
	remote := s.remote
	cancel := s.cancel
	s.remote = nil
	s.cancel = nil
	s.mu.Unlock()

	if remote == nil {
		return
	}

	s.store.SetMirror(nil)
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()

	closeCtx, cancelClose := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelClose()
	if err := remote.Close(closeCtx); err != nil {
		s.logger.Warn("remote disconnect failed", zap.Error(err))
	}
	s.logger.Info("sync session stopped")
}

func (s *Session) currentRemote() RemoteStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remote
}

// runCollection drives one collection through the full protocol: bulk upload
// of local state, an initial snapshot reconciliation, then a change
// subscription that re-reconciles on every remote mutation.
func runCollection[T Entity](s *Session, ctx context.Context, name string, load func() []T, replace func([]T) error) {
	defer s.wg.Done()

	remote := s.currentRemote()
	if remote == nil {
		return
	}

	bulkUpload(s, ctx, remote, name, load())

	if err := refresh(s, ctx, remote, name, load, replace); err != nil {
		s.logger.Warn("initial snapshot failed", zap.String("collection", name), zap.Error(err))
	}

	cs, err := remote.Watch(ctx, name)
	if err != nil {
		// Without a subscription this collection cannot sync at all, which
		// the operator needs to know about.
		s.logger.Error("change subscription failed", zap.String("collection", name), zap.Error(err))
		s.warn(ctx, "sync subscription failed", name+": "+err.Error())
		return
	}
	defer cs.Close(context.Background())

	for cs.Next(ctx) {
		if err := refresh(s, ctx, remote, name, load, replace); err != nil {
			s.logger.Warn("snapshot reconciliation failed", zap.String("collection", name), zap.Error(err))
		}
	}
	if err := cs.Err(); err != nil && ctx.Err() == nil {
		s.logger.Warn("change stream ended", zap.String("collection", name), zap.Error(err))
	}
}

// bulkUpload pushes every local entity concurrently, fire-and-forget: one
// failed item never aborts the batch. The remote driver's own buffering and
// reconnect behavior is relied upon for retries.
func bulkUpload[T Entity](s *Session, ctx context.Context, remote RemoteStore, name string, items []T) {
	var wg stdsync.WaitGroup
	for _, item := range items {
		wg.Add(1)
		go func(e T) {
			defer wg.Done()
			itemCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			defer cancel()
			if err := remote.Upsert(itemCtx, name, e.EntityID(), e); err != nil {
				s.logger.Warn("bulk upload item failed",
					zap.String("collection", name),
					zap.String("id", e.EntityID()),
					zap.Error(err))
			}
		}(item)
	}
	wg.Wait()
	s.logger.Info("bulk upload finished", zap.String("collection", name), zap.Int("items", len(items)))
}

// refresh fetches the full remote snapshot and folds it into the local
// collection. A fetch error is "no data received" and leaves local state
// untouched; a successful empty snapshot is authoritative and goes through
// the same merge as any other.
func refresh[T Entity](s *Session, ctx context.Context, remote RemoteStore, name string, load func() []T, replace func([]T) error) error {
	snapshot := []T{}
	if err := remote.FetchAll(ctx, name, &snapshot); err != nil {
		return err
	}

	local := load()
	merged := Reconcile(snapshot, local)
	if pending := len(merged) - len(snapshot); pending > 0 {
		s.logger.Debug("retaining pending local entities",
			zap.String("collection", name), zap.Int("pending", pending))
	}
	return replace(merged)
}

func (s *Session) warn(ctx context.Context, subject, detail string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Warn(ctx, subject, detail)
}

// --- store.Mirror ---

// Upsert relays one local save to the remote store. Called on the store's
// fire-and-forget path; failures are logged and swallowed so the committed
// local write is never affected.
func (s *Session) Upsert(collection store.Collection, id string, entity any) {
	remote := s.currentRemote()
	if remote == nil {
		return
	}

	name, ok := remoteName(collection)
	if !ok {
		return
	}

	if collection == store.CollectionConfig {
		if cfg, isCfg := entity.(models.AppConfig); isCfg {
			cfg.Remote = nil
			entity = cfg
			id = configDocID
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := remote.Upsert(ctx, name, id, entity); err != nil {
		s.logger.Warn("remote write failed",
			zap.String("collection", name), zap.String("id", id), zap.Error(err))
	}
}

// Remove relays one local delete to the remote store.
func (s *Session) Remove(collection store.Collection, id string) {
	remote := s.currentRemote()
	if remote == nil {
		return
	}

	name, ok := remoteName(collection)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := remote.Delete(ctx, name, id); err != nil {
		s.logger.Warn("remote delete failed",
			zap.String("collection", name), zap.String("id", id), zap.Error(err))
	}
}

func (s *Session) pushConfig(ctx context.Context) {
	cfg := s.store.Config()
	cfg.Remote = nil

	remote := s.currentRemote()
	if remote == nil {
		return
	}

	pushCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := remote.Upsert(pushCtx, remoteConfig, configDocID, cfg); err != nil {
		s.logger.Warn("config push failed", zap.Error(err))
	}
}

func remoteName(c store.Collection) (string, bool) {
	switch c {
	case store.CollectionUsers:
		return remoteUsers, true
	case store.CollectionBatches:
		return remoteBatches, true
	case store.CollectionOrders:
		return remoteOrders, true
	case store.CollectionConfig:
		return remoteConfig, true
	default:
		return "", false
	}
}
