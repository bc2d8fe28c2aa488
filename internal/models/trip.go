package models

import "time"

// Trip groups the expenses that are settled together.
type Trip struct {
	// ID is the unique identifier for the trip (UUID format).
	ID string `json:"id"`

	// Name is the display name (e.g., "Lisbon 2026"). Generated from the
	// members when left empty.
	Name string `json:"name"`

	// BaseCurrency is the ISO 4217 code balances are settled in.
	BaseCurrency string `json:"base_currency"`

	// Members lists the participant ids of the trip, sorted.
	Members []string `json:"members"`

	CreatedAt time.Time `json:"created_at"`
}
