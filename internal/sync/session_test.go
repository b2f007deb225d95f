package sync

import (
	"context"
	"encoding/json"
	"fmt"
	stdsync "sync"
	"testing"
	"time"

	"github.com/dcespedes8/avicontrol/internal/domain/models"
	"github.com/dcespedes8/avicontrol/internal/store"
)

// fakeRemote is an in-memory RemoteStore: documents keyed by collection and
// id, change streams fed by emit.
type fakeRemote struct {
	mu      stdsync.Mutex
	docs    map[string]map[string]any
	streams map[string][]*fakeStream
	closed  bool
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		docs:    make(map[string]map[string]any),
		streams: make(map[string][]*fakeStream),
	}
}

func (f *fakeRemote) Upsert(_ context.Context, collection, id string, doc any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return fmt.Errorf("write to disconnected remote: %s/%s", collection, id)
	}
	if f.docs[collection] == nil {
		f.docs[collection] = make(map[string]any)
	}
	f.docs[collection][id] = doc
	return nil
}

func (f *fakeRemote) Delete(_ context.Context, collection, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.docs[collection], id)
	return nil
}

func (f *fakeRemote) FetchAll(_ context.Context, collection string, out any) error {
	f.mu.Lock()
	vals := make([]any, 0, len(f.docs[collection]))
	for _, v := range f.docs[collection] {
		vals = append(vals, v)
	}
	f.mu.Unlock()

	raw, err := json.Marshal(vals)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (f *fakeRemote) Watch(_ context.Context, collection string) (ChangeStream, error) {
	s := &fakeStream{events: make(chan struct{}, 1)}
	f.mu.Lock()
	f.streams[collection] = append(f.streams[collection], s)
	f.mu.Unlock()
	return s, nil
}

func (f *fakeRemote) Close(context.Context) error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeRemote) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeRemote) put(collection, id string, doc any) {
	f.mu.Lock()
	if f.docs[collection] == nil {
		f.docs[collection] = make(map[string]any)
	}
	f.docs[collection][id] = doc
	f.mu.Unlock()
}

func (f *fakeRemote) count(collection string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.docs[collection])
}

func (f *fakeRemote) emit(collection string) {
	f.mu.Lock()
	streams := append([]*fakeStream(nil), f.streams[collection]...)
	f.mu.Unlock()
	for _, s := range streams {
		select {
		case s.events <- struct{}{}:
		default:
		}
	}
}

type fakeStream struct {
	events chan struct{}
}

func (s *fakeStream) Next(ctx context.Context) bool {
	select {
	case <-s.events:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *fakeStream) Err() error { return nil }

func (s *fakeStream) Close(context.Context) error { return nil }

func newSessionFixture(t *testing.T) (*Session, *store.Store) {
	t.Helper()
	kv, err := store.OpenKV(t.TempDir())
	if err != nil {
		t.Fatalf("open kv: %v", err)
	}
	t.Cleanup(func() { _ = kv.Close() })
	st := store.New(kv, nil)
	return NewSession(st, nil, nil), st
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func testRemoteConfig() models.RemoteConfig {
	return models.RemoteConfig{URI: "mongodb://x", Database: "avi", Organization: "org1"}
}

func TestStartTearsDownPriorSession(t *testing.T) {
	s, _ := newSessionFixture(t)

	var remotes []*fakeRemote
	s.dial = func(context.Context, models.RemoteConfig) (RemoteStore, error) {
		r := newFakeRemote()
		remotes = append(remotes, r)
		return r, nil
	}

	if err := s.Start(context.Background(), testRemoteConfig()); err != nil {
		t.Fatalf("first start: %v", err)
	}
	if err := s.Start(context.Background(), testRemoteConfig()); err != nil {
		t.Fatalf("second start: %v", err)
	}
	defer s.Stop()

	if len(remotes) != 2 {
		t.Fatalf("dialed %d times, want 2", len(remotes))
	}
	// The second Start disconnected the first session before connecting.
	if !remotes[0].isClosed() {
		t.Error("prior remote connection left open")
	}
	if remotes[1].isClosed() {
		t.Error("live remote connection closed")
	}
	if !s.Active() {
		t.Error("session inactive after start")
	}
}

func TestStopSilencesMirrorAndListeners(t *testing.T) {
	s, st := newSessionFixture(t)
	if err := st.SaveUser(models.User{ID: "u1", Username: "ana", Name: "Ana"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	remote := newFakeRemote()
	s.dial = func(context.Context, models.RemoteConfig) (RemoteStore, error) {
		remote.mu.Lock()
		remote.closed = false
		remote.mu.Unlock()
		return remote, nil
	}

	if err := s.Start(context.Background(), testRemoteConfig()); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, func() bool { return remote.count("users") == 1 }, "bulk upload never reached the remote")

	s.Stop()
	if s.Active() {
		t.Fatal("session still active after stop")
	}
	if !remote.isClosed() {
		t.Fatal("remote connection left open after stop")
	}

	// Local writes after Stop stay local: no mirror, no stale listener.
	if err := st.SaveUser(models.User{ID: "u2", Username: "beto", Name: "Beto"}); err != nil {
		t.Fatalf("save after stop: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if got := remote.count("users"); got != 1 {
		t.Fatalf("remote saw %d users after stop, want 1", got)
	}
}

func TestBulkUploadIsIdempotent(t *testing.T) {
	s, st := newSessionFixture(t)
	for i := 0; i < 3; i++ {
		u := models.User{ID: fmt.Sprintf("u%d", i), Username: fmt.Sprintf("user%d", i), Name: "U"}
		if err := st.SaveUser(u); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	remote := newFakeRemote()
	s.dial = func(context.Context, models.RemoteConfig) (RemoteStore, error) {
		remote.mu.Lock()
		remote.closed = false
		remote.mu.Unlock()
		return remote, nil
	}

	for run := 0; run < 2; run++ {
		if err := s.Start(context.Background(), testRemoteConfig()); err != nil {
			t.Fatalf("start %d: %v", run, err)
		}
		waitFor(t, func() bool { return remote.count("users") == 3 }, "bulk upload incomplete")
		s.Stop()
	}

	// Re-running the identical upload leaves the remote state unchanged.
	if got := remote.count("users"); got != 3 {
		t.Fatalf("remote holds %d users after repeated uploads, want 3", got)
	}
	if got := len(st.Users()); got != 3 {
		t.Fatalf("local store holds %d users, want 3", got)
	}
}

func TestSnapshotsMergeRemoteWins(t *testing.T) {
	s, st := newSessionFixture(t)
	if err := st.SaveUser(models.User{ID: "shared", Username: "shared", Name: "local version"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := st.SaveUser(models.User{ID: "local-only", Username: "pending", Name: "Pending"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	remote := newFakeRemote()
	// The bulk upload would overwrite the conflicting doc, so the remote
	// version arrives through a later change event instead.
	s.dial = func(context.Context, models.RemoteConfig) (RemoteStore, error) {
		return remote, nil
	}

	if err := s.Start(context.Background(), testRemoteConfig()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop()
	waitFor(t, func() bool { return remote.count("users") == 2 }, "bulk upload incomplete")

	remote.put("users", "shared", models.User{ID: "shared", Username: "shared", Name: "remote version"})
	remote.put("users", "remote-only", models.User{ID: "remote-only", Username: "nuevo", Name: "Nuevo"})

	// The subscription may still be registering, so nudge it on every poll.
	waitFor(t, func() bool {
		remote.emit("users")
		byID := make(map[string]models.User)
		for _, u := range st.Users() {
			byID[u.ID] = u
		}
		shared, hasShared := byID["shared"]
		_, hasRemote := byID["remote-only"]
		_, hasPending := byID["local-only"]
		return hasShared && shared.Name == "remote version" && hasRemote && hasPending
	}, "snapshot merge never converged: remote must win on conflict while pending locals survive")
}
