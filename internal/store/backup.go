package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dcespedes8/avicontrol/internal/domain/models"
)

func marshalConfig(cfg models.AppConfig) ([]byte, error) {
	return json.Marshal(cfg)
}

// Export bundles every collection plus a timestamp into a full device backup.
func (s *Store) Export() models.Backup {
	cfg := s.Config()
	return models.Backup{
		ExportedAt: time.Now().UTC(),
		Users:      s.Users(),
		Batches:    s.Batches(),
		Orders:     s.Orders(),
		Config:     &cfg,
	}
}

// ExportJSON serializes the backup bundle.
func (s *Store) ExportJSON() ([]byte, error) {
	return json.MarshalIndent(s.Export(), "", "  ")
}

// Restore applies a backup produced by Export. Every collection present in
// the payload overwrites its local counterpart; absent collections are left
// untouched. The write is transactional: a malformed payload applies nothing.
func (s *Store) Restore(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var b models.Backup
	if err := dec.Decode(&b); err != nil {
		return fmt.Errorf("invalid backup payload: %w", err)
	}
	if b.ExportedAt.IsZero() {
		return fmt.Errorf("invalid backup payload: missing export timestamp")
	}

	entries := make(map[string][]byte)
	put := func(key string, v any) error {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("serialize %s for restore: %w", key, err)
		}
		entries[key] = raw
		return nil
	}

	if b.Users != nil {
		if err := put(keyUsers, b.Users); err != nil {
			return err
		}
	}
	if b.Batches != nil {
		if err := put(keyBatches, b.Batches); err != nil {
			return err
		}
	}
	if b.Orders != nil {
		if err := put(keyOrders, b.Orders); err != nil {
			return err
		}
	}
	if b.Config != nil {
		if err := put(keyConfig, *b.Config); err != nil {
			return err
		}
	}
	if len(entries) == 0 {
		return fmt.Errorf("invalid backup payload: no collections present")
	}

	s.mu.Lock()
	err := s.kv.SetMulti(entries)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.notify(CollectionUsers)
	s.notify(CollectionBatches)
	s.notify(CollectionOrders)
	s.notify(CollectionConfig)
	return nil
}
