package settings_test

import (
	"context"
	"testing"

	"github.com/dcespedes8/avicontrol/internal/domain/models"
	settingssvc "github.com/dcespedes8/avicontrol/internal/service/settings"
	"github.com/dcespedes8/avicontrol/internal/store"
)

type fakeSync struct {
	started int
	stopped int
	active  bool
}

func (f *fakeSync) Start(context.Context, models.RemoteConfig) error {
	f.started++
	f.active = true
	return nil
}

func (f *fakeSync) Stop() {
	f.stopped++
	f.active = false
}

func (f *fakeSync) Active() bool { return f.active }

func newFixture(t *testing.T) (*settingssvc.Service, *store.Store, *fakeSync) {
	t.Helper()
	kv, err := store.OpenKV(t.TempDir())
	if err != nil {
		t.Fatalf("open kv: %v", err)
	}
	t.Cleanup(func() { _ = kv.Close() })
	st := store.New(kv, nil)
	ctrl := &fakeSync{}
	return settingssvc.NewService(st, ctrl, nil), st, ctrl
}

func TestSavePersistsWithoutTouchingSync(t *testing.T) {
	svc, st, ctrl := newFixture(t)

	cfg := models.DefaultAppConfig()
	cfg.CompanyName = "Granja Sol"
	if err := svc.Save(context.Background(), cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	if got := st.Config().CompanyName; got != "Granja Sol" {
		t.Errorf("company = %q, want Granja Sol", got)
	}
	// Credentials did not change, so the session is left alone.
	if ctrl.started != 0 || ctrl.stopped != 0 {
		t.Errorf("sync touched: started=%d stopped=%d", ctrl.started, ctrl.stopped)
	}
}

func TestSaveClearingCredentialsStopsSync(t *testing.T) {
	svc, st, ctrl := newFixture(t)

	withRemote := models.DefaultAppConfig()
	withRemote.Remote = &models.RemoteConfig{URI: "mongodb://x", Database: "avi", Organization: "org1"}
	if err := st.SaveConfig(withRemote); err != nil {
		t.Fatalf("seed config: %v", err)
	}
	ctrl.active = true

	cleared := withRemote
	cleared.Remote = nil
	if err := svc.Save(context.Background(), cleared); err != nil {
		t.Fatalf("save: %v", err)
	}

	if ctrl.stopped != 1 {
		t.Fatalf("stopped = %d, want 1 after credentials were cleared", ctrl.stopped)
	}
	if got := st.Config(); got.Remote != nil {
		t.Errorf("cleared credentials still stored: %+v", got.Remote)
	}
}

func TestStartFromStored(t *testing.T) {
	svc, st, ctrl := newFixture(t)

	// Without stored credentials boot is a no-op.
	if err := svc.StartFromStored(context.Background()); err != nil {
		t.Fatalf("boot without credentials: %v", err)
	}
	if ctrl.started != 0 {
		t.Fatalf("started = %d, want 0", ctrl.started)
	}

	cfg := models.DefaultAppConfig()
	cfg.Remote = &models.RemoteConfig{URI: "mongodb://x", Database: "avi", Organization: "org1"}
	if err := st.SaveConfig(cfg); err != nil {
		t.Fatalf("seed config: %v", err)
	}

	if err := svc.StartFromStored(context.Background()); err != nil {
		t.Fatalf("boot with credentials: %v", err)
	}
	if ctrl.started != 1 {
		t.Fatalf("started = %d, want 1", ctrl.started)
	}
}
