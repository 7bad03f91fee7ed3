package domain

import "time"

// Currency identifies one of the player's balances.
type Currency string

const (
	CurrencyCash     Currency = "cash"
	CurrencyDiamonds Currency = "diamonds"
	CurrencyXP       Currency = "xp"
)

// IsValid reports whether the currency is one of the known balances.
func (c Currency) IsValid() bool {
	switch c {
	case CurrencyCash, CurrencyDiamonds, CurrencyXP:
		return true
	}
	return false
}

// FurniturePlacement records a single placed furniture item.
type FurniturePlacement struct {
	ItemID   string    `json:"item_id"`
	ItemType string    `json:"item_type"`
	X        float64   `json:"x"`
	Z        float64   `json:"z"`
	Rotation float64   `json:"rotation"`
	PlacedAt time.Time `json:"placed_at"`
}

// PlayerState is the server-authoritative economic state for one player.
// Currencies never go negative, level only moves through the level-up
// validator, and furniture/staff only grow through the purchase validator.
type PlayerState struct {
	UserID    string               `json:"user_id"`
	Cash      int64                `json:"cash"`
	Diamonds  int64                `json:"diamonds"`
	XP        int64                `json:"xp"`
	Level     int                  `json:"level"`
	Furniture []FurniturePlacement `json:"furniture"`
	Staff     map[string]int       `json:"staff"`
	SavedAt   time.Time            `json:"saved_at,omitempty"`
}

// NewPlayerState returns the default state materialized on first read.
func NewPlayerState(userID string) *PlayerState {
	return &PlayerState{
		UserID:   userID,
		Cash:     5000,
		Diamonds: 5,
		XP:       0,
		Level:    1,
		Staff:    make(map[string]int),
	}
}

// Balance returns the player's balance for the given currency.
func (s *PlayerState) Balance(c Currency) int64 {
	switch c {
	case CurrencyCash:
		return s.Cash
	case CurrencyDiamonds:
		return s.Diamonds
	case CurrencyXP:
		return s.XP
	}
	return 0
}

// AddBalance adjusts the balance for the given currency by delta.
func (s *PlayerState) AddBalance(c Currency, delta int64) {
	switch c {
	case CurrencyCash:
		s.Cash += delta
	case CurrencyDiamonds:
		s.Diamonds += delta
	case CurrencyXP:
		s.XP += delta
	}
}

// Clone returns a deep copy so cached state is never aliased by callers.
func (s *PlayerState) Clone() *PlayerState {
	if s == nil {
		return nil
	}
	out := *s
	out.Furniture = make([]FurniturePlacement, len(s.Furniture))
	copy(out.Furniture, s.Furniture)
	out.Staff = make(map[string]int, len(s.Staff))
	for k, v := range s.Staff {
		out.Staff[k] = v
	}
	return &out
}

// ClientState is the snapshot a client reports during a state sync. Only
// the critical fields are compared; everything else the client sends is
// ignored in favor of server truth.
type ClientState struct {
	Cash     int64 `json:"cash"`
	Diamonds int64 `json:"diamonds"`
	XP       int64 `json:"xp"`
	Level    int   `json:"level"`
}
