package models

// RemoteConfig is the credential bundle for the shared remote document store.
// The zero value means sync is disabled and the device runs local-only.
type RemoteConfig struct {
	URI          string `json:"uri" bson:"uri"`
	Database     string `json:"database" bson:"database"`
	Organization string `json:"organization,omitempty" bson:"organization,omitempty"`
}

// Enabled reports whether credentials are present at all. Presence does not
// imply validity; settings.Service verifies candidates before persisting them.
func (r RemoteConfig) Enabled() bool { return r.URI != "" }

// AppConfig is the process-wide configuration document. Loaded once at
// startup, mutated only through an explicit save.
type AppConfig struct {
	CompanyName            string        `json:"companyName" bson:"companyName"`
	LogoURL                string        `json:"logoUrl" bson:"logoUrl"`
	PrinterConnected       bool          `json:"printerConnected" bson:"printerConnected"`
	ScaleConnected         bool          `json:"scaleConnected" bson:"scaleConnected"`
	DefaultFullCrateBatch  int           `json:"defaultFullCrateBatch" bson:"defaultFullCrateBatch"`
	DefaultEmptyCrateBatch int           `json:"defaultEmptyCrateBatch" bson:"defaultEmptyCrateBatch"`
	BirdsPerCrate          int           `json:"birdsPerCrate" bson:"birdsPerCrate"`
	Remote                 *RemoteConfig `json:"remote,omitempty" bson:"remote,omitempty"`
}

// DefaultAppConfig mirrors the values seeded on a fresh device.
func DefaultAppConfig() AppConfig {
	return AppConfig{
		CompanyName:            "Avícola Demo",
		DefaultFullCrateBatch:  5,
		DefaultEmptyCrateBatch: 10,
		BirdsPerCrate:          10,
	}
}
