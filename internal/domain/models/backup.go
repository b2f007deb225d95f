package models

import "time"

// Backup bundles every collection for a full device export. On restore, each
// non-nil collection overwrites its local counterpart; nil collections are
// left untouched. Restore is all-or-nothing.
type Backup struct {
	ExportedAt time.Time     `json:"exportedAt"`
	Users      []User        `json:"users,omitempty"`
	Batches    []Batch       `json:"batches,omitempty"`
	Orders     []ClientOrder `json:"orders,omitempty"`
	Config     *AppConfig    `json:"config,omitempty"`
}
