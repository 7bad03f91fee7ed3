package domain

import (
	"math"
	"time"
)

// ItemKind tags the two purchasable item families.
type ItemKind string

const (
	ItemKindFurniture ItemKind = "furniture"
	ItemKindStaff     ItemKind = "staff"
)

// FurnitureItem is a catalog entry for a placeable item.
type FurnitureItem struct {
	ID          string   `json:"id"`
	Cost        int64    `json:"cost"`
	Currency    Currency `json:"currency,omitempty"`
	UnlockLevel int      `json:"unlock_level,omitempty"`
}

// StaffPolicy is the hiring policy for one staff type. Each additional hire
// of the same type costs floor(BaseCost * Multiplier^hired).
type StaffPolicy struct {
	Type       string  `json:"type"`
	BaseCost   int64   `json:"base_cost"`
	Multiplier float64 `json:"multiplier"`
	MaxCount   int     `json:"max_count"`
}

// PurchaseItem resolves the cost of a purchase against the buyer's state.
// Implementations carry their catalog entry; the decline return covers
// level locks and hire caps, which depend on the state being bought into.
type PurchaseItem interface {
	ResolveCost(state *PlayerState) (cost int64, currency Currency, decline *Decline)
	Apply(state *PlayerState, req PurchaseRequest, now time.Time)
}

// PurchaseRequest is the client's claimed acquisition.
type PurchaseRequest struct {
	ItemType string  `json:"item_type"`
	ItemID   string  `json:"item_id"`
	X        float64 `json:"x,omitempty"`
	Z        float64 `json:"z,omitempty"`
	Rotation float64 `json:"rotation,omitempty"`
}

// FurniturePurchase is a resolved furniture acquisition.
type FurniturePurchase struct {
	Item FurnitureItem
}

// ResolveCost checks the unlock level and returns the fixed catalog cost.
func (p FurniturePurchase) ResolveCost(state *PlayerState) (int64, Currency, *Decline) {
	if p.Item.UnlockLevel > 0 && state.Level < p.Item.UnlockLevel {
		return 0, "", &Decline{
			Code:          DeclineLevelLocked,
			RequiredLevel: p.Item.UnlockLevel,
			CurrentLevel:  state.Level,
		}
	}
	currency := p.Item.Currency
	if currency == "" {
		currency = CurrencyCash
	}
	return p.Item.Cost, currency, nil
}

// Apply appends the placement record. Cost deduction happens in the
// validator after the funds check.
func (p FurniturePurchase) Apply(state *PlayerState, req PurchaseRequest, now time.Time) {
	state.Furniture = append(state.Furniture, FurniturePlacement{
		ItemID:   p.Item.ID,
		ItemType: req.ItemType,
		X:        req.X,
		Z:        req.Z,
		Rotation: req.Rotation,
		PlacedAt: now,
	})
}

// StaffPurchase is a resolved staff hire.
type StaffPurchase struct {
	Policy StaffPolicy
}

// ResolveCost applies the exponential hire scaling and the per-type cap.
func (p StaffPurchase) ResolveCost(state *PlayerState) (int64, Currency, *Decline) {
	hired := state.Staff[p.Policy.Type]
	if hired >= p.Policy.MaxCount {
		return 0, "", &Decline{
			Code:     DeclineMaxReached,
			MaxCount: p.Policy.MaxCount,
		}
	}
	cost := int64(math.Floor(float64(p.Policy.BaseCost) * math.Pow(p.Policy.Multiplier, float64(hired))))
	return cost, CurrencyCash, nil
}

// Apply increments the hired count for the staff type.
func (p StaffPurchase) Apply(state *PlayerState, req PurchaseRequest, now time.Time) {
	if state.Staff == nil {
		state.Staff = make(map[string]int)
	}
	state.Staff[p.Policy.Type]++
}
