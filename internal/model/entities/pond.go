package entities

import "time"

// DefaultPondSizeRai is used when the registry has no record for a pond.
const DefaultPondSizeRai = 1.0

// PondAttributes are the static attributes registered for a pond.
// Doses scale linearly with SizeRai.
type PondAttributes struct {
	PondID       string    `json:"pond_id"`
	SizeRai      float64   `json:"pond_size_rai"`
	InitialStock int       `json:"initial_stock"`
	RegisteredAt time.Time `json:"date"`
}

// DefaultPond returns the attributes assumed for an unregistered pond.
func DefaultPond(pondID string) PondAttributes {
	return PondAttributes{PondID: pondID, SizeRai: DefaultPondSizeRai}
}
