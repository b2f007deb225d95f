// Package settings owns mutation of the device configuration document. Its
// one hard rule: candidate remote credentials are verified with a real
// handshake before they are ever persisted, so a typo cannot put the device
// into a silently-broken sync state.
package settings

import (
	"context"

	"go.uber.org/zap"

	"github.com/dcespedes8/avicontrol/internal/domain/models"
	"github.com/dcespedes8/avicontrol/internal/repository/mongodb"
	"github.com/dcespedes8/avicontrol/internal/store"
)

// SyncController is the slice of the sync session this service drives.
type SyncController interface {
	Start(ctx context.Context, cfg models.RemoteConfig) error
	Stop()
	Active() bool
}

// Service applies configuration changes and keeps the sync session aligned
// with the active credentials.
type Service struct {
	store    *store.Store
	sync     SyncController
	logger   *zap.Logger
	validate func(context.Context, models.RemoteConfig) error
}

// NewService wires the settings service.
func NewService(st *store.Store, sync SyncController, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: st, sync: sync, logger: logger, validate: mongodb.Validate}
}

// Current returns the active configuration.
func (s *Service) Current() models.AppConfig {
	return s.store.Config()
}

// Save validates and persists cfg. When the remote credential bundle changed,
// the new credentials must pass the handshake before anything is written;
// afterwards the sync session is restarted from scratch (or stopped, when
// credentials were cleared). Validation failures block the save entirely.
func (s *Service) Save(ctx context.Context, cfg models.AppConfig) error {
	prev := s.store.Config()

	credsChanged := remoteChanged(prev.Remote, cfg.Remote)
	if credsChanged && cfg.Remote != nil && cfg.Remote.Enabled() {
		if err := s.validate(ctx, *cfg.Remote); err != nil {
			s.logger.Warn("rejected remote credentials", zap.Error(err))
			return err
		}
	}

	if err := s.store.SaveConfig(cfg); err != nil {
		return err
	}

	if !credsChanged {
		return nil
	}

	if cfg.Remote == nil || !cfg.Remote.Enabled() {
		s.sync.Stop()
		s.logger.Info("sync disabled, credentials cleared")
		return nil
	}

	if err := s.sync.Start(ctx, *cfg.Remote); err != nil {
		// Credentials already passed the handshake and the save committed.
		// A failure here is transient; the next restart will retry, so it
		// must not be reported as a failed save.
		s.logger.Error("sync restart failed after credential change", zap.Error(err))
	}
	return nil
}

// StartFromStored brings sync up at boot when stored credentials exist.
func (s *Service) StartFromStored(ctx context.Context) error {
	cfg := s.store.Config()
	if cfg.Remote == nil || !cfg.Remote.Enabled() {
		return nil
	}
	return s.sync.Start(ctx, *cfg.Remote)
}

func remoteChanged(a, b *models.RemoteConfig) bool {
	switch {
	case a == nil && b == nil:
		return false
	case a == nil || b == nil:
		return true
	default:
		return *a != *b
	}
}
