package users_test

import (
	"errors"
	"testing"

	"github.com/dcespedes8/avicontrol/internal/domain/models"
	usersvc "github.com/dcespedes8/avicontrol/internal/service/users"
	"github.com/dcespedes8/avicontrol/internal/store"
)

func newFixture(t *testing.T) (*usersvc.Service, *store.Store) {
	t.Helper()
	kv, err := store.OpenKV(t.TempDir())
	if err != nil {
		t.Fatalf("open kv: %v", err)
	}
	t.Cleanup(func() { _ = kv.Close() })
	st := store.New(kv, nil)
	return usersvc.NewService(st, nil), st
}

func seedUser(t *testing.T, st *store.Store, u models.User) models.User {
	t.Helper()
	if err := st.SaveUser(u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func TestAuthenticate(t *testing.T) {
	svc, st := newFixture(t)
	seedUser(t, st, models.User{ID: "u1", Username: "ana", Password: "secreta", Name: "Ana"})

	got, err := svc.Authenticate("ana", "secreta")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if got.ID != "u1" {
		t.Errorf("got %s, want u1", got.ID)
	}

	if _, err := svc.Authenticate("ana", "wrong"); !errors.Is(err, usersvc.ErrInvalidCredentials) {
		t.Errorf("wrong password err = %v, want ErrInvalidCredentials", err)
	}
	if _, err := svc.Authenticate("nobody", "secreta"); !errors.Is(err, usersvc.ErrInvalidCredentials) {
		t.Errorf("unknown user err = %v, want ErrInvalidCredentials", err)
	}
}

func TestVisibleTo(t *testing.T) {
	svc, st := newFixture(t)
	admin := seedUser(t, st, models.User{ID: "a1", Username: "admin", Password: "x", Name: "Admin", Role: models.RoleAdmin})
	general := seedUser(t, st, models.User{ID: "g1", Username: "gen", Password: "x", Name: "Gen", Role: models.RoleGeneral})
	seedUser(t, st, models.User{ID: "o1", Username: "op1", Password: "x", Name: "Op1", Role: models.RoleOperator, ParentID: "g1"})
	seedUser(t, st, models.User{ID: "o2", Username: "op2", Password: "x", Name: "Op2", Role: models.RoleOperator, ParentID: "a1"})

	if got := svc.VisibleTo(admin); len(got) != 4 {
		t.Errorf("admin sees %d users, want all 4", len(got))
	}

	got := svc.VisibleTo(general)
	if len(got) != 2 {
		t.Fatalf("general sees %d users, want self plus owned operator", len(got))
	}
	for _, u := range got {
		if u.ID != "g1" && u.ID != "o1" {
			t.Errorf("general should not see %s", u.ID)
		}
	}
}

func TestSavePermissions(t *testing.T) {
	svc, st := newFixture(t)
	admin := seedUser(t, st, models.User{ID: "a1", Username: "admin", Password: "x", Name: "Admin", Role: models.RoleAdmin})
	general := seedUser(t, st, models.User{ID: "g1", Username: "gen", Password: "x", Name: "Gen", Role: models.RoleGeneral})
	operator := seedUser(t, st, models.User{ID: "o1", Username: "op1", Password: "x", Name: "Op1", Role: models.RoleOperator, ParentID: "g1"})

	// Admins create any role.
	created, err := svc.Save(admin, models.User{Username: "gen2", Password: "x", Name: "Gen2", Role: models.RoleGeneral})
	if err != nil {
		t.Fatalf("admin save: %v", err)
	}
	if created.ID == "" {
		t.Error("new account got no id")
	}
	if created.ParentID != admin.ID {
		t.Errorf("parentId = %q, want creator %q", created.ParentID, admin.ID)
	}

	// GENERAL accounts only create operators.
	if _, err := svc.Save(general, models.User{Username: "x2", Password: "x", Name: "X", Role: models.RoleGeneral}); !errors.Is(err, usersvc.ErrForbidden) {
		t.Errorf("general creating general err = %v, want ErrForbidden", err)
	}
	if _, err := svc.Save(general, models.User{Username: "op9", Password: "x", Name: "Op9", Role: models.RoleOperator}); err != nil {
		t.Errorf("general creating operator: %v", err)
	}

	// GENERAL accounts only edit operators they own.
	foreign := seedUser(t, st, models.User{ID: "o3", Username: "op3", Password: "x", Name: "Op3", Role: models.RoleOperator, ParentID: "a1"})
	if _, err := svc.Save(general, foreign); !errors.Is(err, usersvc.ErrForbidden) {
		t.Errorf("editing a foreign operator err = %v, want ErrForbidden", err)
	}
	edited := operator
	edited.Name = "Op1 Nuevo"
	if _, err := svc.Save(general, edited); err != nil {
		t.Errorf("editing an owned operator: %v", err)
	}

	// Operators create nothing.
	if _, err := svc.Save(operator, models.User{Username: "z", Password: "x", Name: "Z", Role: models.RoleOperator}); !errors.Is(err, usersvc.ErrForbidden) {
		t.Errorf("operator save err = %v, want ErrForbidden", err)
	}

	// Every account may edit itself, as long as the role stays put.
	self := general
	self.Password = "nueva"
	saved, err := svc.Save(general, self)
	if err != nil {
		t.Fatalf("self edit: %v", err)
	}
	if saved.Password != "nueva" {
		t.Errorf("self edit password = %q, want nueva", saved.Password)
	}
	escalated := general
	escalated.Role = models.RoleAdmin
	if _, err := svc.Save(general, escalated); !errors.Is(err, usersvc.ErrForbidden) {
		t.Errorf("self escalation err = %v, want ErrForbidden", err)
	}
	opSelf := operator
	opSelf.Name = "Op1 Renombrado"
	if _, err := svc.Save(operator, opSelf); err != nil {
		t.Errorf("operator self edit: %v", err)
	}

	// Incomplete payloads are rejected before any permission logic.
	if _, err := svc.Save(admin, models.User{Username: "incomplete"}); !errors.Is(err, usersvc.ErrMissingFields) {
		t.Errorf("incomplete payload err = %v, want ErrMissingFields", err)
	}
}

func TestDeletePermissions(t *testing.T) {
	svc, st := newFixture(t)
	admin := seedUser(t, st, models.User{ID: "a1", Username: "admin", Password: "x", Name: "Admin", Role: models.RoleAdmin})
	general := seedUser(t, st, models.User{ID: "g1", Username: "gen", Password: "x", Name: "Gen", Role: models.RoleGeneral})
	seedUser(t, st, models.User{ID: "o1", Username: "op1", Password: "x", Name: "Op1", Role: models.RoleOperator, ParentID: "g1"})
	seedUser(t, st, models.User{ID: "o2", Username: "op2", Password: "x", Name: "Op2", Role: models.RoleOperator, ParentID: "a1"})

	// Nobody deletes themselves.
	if err := svc.Delete(admin, admin.ID); !errors.Is(err, usersvc.ErrForbidden) {
		t.Errorf("self delete err = %v, want ErrForbidden", err)
	}

	// GENERAL accounts only delete operators they own.
	if err := svc.Delete(general, "o2"); !errors.Is(err, usersvc.ErrForbidden) {
		t.Errorf("deleting a foreign operator err = %v, want ErrForbidden", err)
	}
	if err := svc.Delete(general, "o1"); err != nil {
		t.Errorf("deleting an owned operator: %v", err)
	}

	// Admins delete anyone else.
	if err := svc.Delete(admin, general.ID); err != nil {
		t.Errorf("admin delete: %v", err)
	}
	if got := len(st.Users()); got != 2 {
		t.Fatalf("store holds %d users, want 2 after deletions", got)
	}
}

func TestMayWeigh(t *testing.T) {
	unrestricted := models.User{ID: "u1"}
	if !unrestricted.MayWeigh(models.ModeSoloPollo) {
		t.Error("empty capability set must allow every mode")
	}

	limited := models.User{ID: "u2", AllowedModes: []models.WeighingMode{models.ModeBatch}}
	if !limited.MayWeigh(models.ModeBatch) {
		t.Error("granted mode denied")
	}
	if limited.MayWeigh(models.ModeSoloJabas) {
		t.Error("ungranted mode allowed")
	}
}
