// Package users enforces the account hierarchy: admins manage everyone,
// GENERAL accounts manage the operators they created, nobody deletes
// themselves.
package users

import (
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dcespedes8/avicontrol/internal/domain/models"
	"github.com/dcespedes8/avicontrol/internal/store"
)

// ErrInvalidCredentials reports a failed login.
var ErrInvalidCredentials = errors.New("invalid username or password")

// ErrForbidden reports an operation the caller's role does not allow.
var ErrForbidden = errors.New("operation not permitted for this user")

// ErrMissingFields reports an incomplete account payload.
var ErrMissingFields = errors.New("username, name and password are required")

// Service manages operator accounts.
type Service struct {
	store  *store.Store
	logger *zap.Logger
}

// NewService wires the user service.
func NewService(st *store.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: st, logger: logger}
}

// Authenticate matches a username/password pair against stored accounts.
func (s *Service) Authenticate(username, password string) (models.User, error) {
	for _, u := range s.store.Users() {
		if u.Username == username && u.Password == password {
			return u, nil
		}
	}
	return models.User{}, ErrInvalidCredentials
}

// ByID looks up a single account.
func (s *Service) ByID(id string) (models.User, bool) {
	for _, u := range s.store.Users() {
		if u.ID == id {
			return u, true
		}
	}
	return models.User{}, false
}

// VisibleTo returns the accounts the caller may see: all of them for admins,
// otherwise the caller plus the accounts it owns.
func (s *Service) VisibleTo(caller models.User) []models.User {
	all := s.store.Users()
	if caller.Role == models.RoleAdmin {
		return all
	}
	var out []models.User
	for _, u := range all {
		if u.ID == caller.ID || u.ParentID == caller.ID {
			out = append(out, u)
		}
	}
	return out
}

// Save creates or edits an account on behalf of caller. Every account may
// edit itself without changing its role; beyond that, non-admin callers may
// only manage operators under their own parentId, and may not grant roles
// above OPERATOR.
func (s *Service) Save(caller models.User, u models.User) (models.User, error) {
	if u.Username == "" || u.Name == "" || u.Password == "" {
		return models.User{}, ErrMissingFields
	}

	if caller.Role != models.RoleAdmin {
		if u.ID == caller.ID {
			if u.Role != caller.Role {
				return models.User{}, ErrForbidden
			}
		} else {
			if caller.Role != models.RoleGeneral || u.Role != models.RoleOperator {
				return models.User{}, ErrForbidden
			}
			if u.ID != "" && !s.owns(caller, u.ID) {
				return models.User{}, ErrForbidden
			}
		}
	}

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.ParentID == "" && caller.ID != u.ID {
		u.ParentID = caller.ID
	}

	if err := s.store.SaveUser(u); err != nil {
		return models.User{}, err
	}
	s.logger.Info("user saved", zap.String("user_id", u.ID), zap.String("role", string(u.Role)))
	return u, nil
}

// Delete removes an account. The caller must be an admin or own the target
// via parentId, and can never delete itself.
func (s *Service) Delete(caller models.User, targetID string) error {
	if targetID == caller.ID {
		return ErrForbidden
	}
	if caller.Role != models.RoleAdmin && !s.owns(caller, targetID) {
		return ErrForbidden
	}
	return s.store.DeleteUser(targetID)
}

func (s *Service) owns(caller models.User, targetID string) bool {
	for _, u := range s.store.Users() {
		if u.ID == targetID {
			return u.ParentID == caller.ID
		}
	}
	return false
}
