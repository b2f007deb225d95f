package store

import (
	"go.uber.org/zap"

	"github.com/dcespedes8/avicontrol/internal/domain/models"
)

// EnsureSeed populates a fresh device with the initial administrator account
// and default configuration. Existing data is never touched.
func (s *Store) EnsureSeed() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if raw, err := s.kv.Get(keyUsers); err == nil && len(raw) == 0 {
		admin := models.User{
			ID:       "admin-1",
			Username: "admin",
			Password: "123",
			Name:     "Administrador Principal",
			Role:     models.RoleAdmin,
		}
		if err := saveList(s, keyUsers, []models.User{admin}); err != nil {
			return err
		}
		s.logger.Info("seeded initial admin user", zap.String("username", admin.Username))
	}

	if raw, err := s.kv.Get(keyConfig); err == nil && len(raw) == 0 {
		cfg := models.DefaultAppConfig()
		blob, err := marshalConfig(cfg)
		if err != nil {
			return err
		}
		if err := s.kv.Set(keyConfig, blob); err != nil {
			return err
		}
		s.logger.Info("seeded default configuration")
	}

	return nil
}

// Reset wipes the device and reseeds it. Remote data is untouched; only this
// device's copy and its connection settings are lost.
func (s *Store) Reset() error {
	s.mu.Lock()
	if err := s.kv.DropAll(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()
	return s.EnsureSeed()
}
