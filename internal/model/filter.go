package model

// Page bounds for list queries.
const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100

	// MaxParentOptions caps how many records are considered as parent candidates.
	MaxParentOptions = 1000
)

// ConfigurationFilter holds criteria for listing configurations.
// A zero Limit means no limit.
type ConfigurationFilter struct {
	Active *bool  `json:"active,omitempty"`
	Search string `json:"search,omitempty"` // substring of key or label
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}
