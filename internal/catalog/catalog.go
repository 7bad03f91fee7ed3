package catalog

import "github.com/economy-guard/internal/domain"

// Provider resolves purchasable item definitions. The default implementation
// below serves built-in tables; deployments with an external catalog service
// plug in their own implementation at startup.
type Provider interface {
	FurnitureItem(id string) (domain.FurnitureItem, bool)
	StaffPolicy(staffType string) (domain.StaffPolicy, bool)
}

// DefaultProvider serves the built-in furniture and staff tables.
type DefaultProvider struct {
	furniture map[string]domain.FurnitureItem
	staff     map[string]domain.StaffPolicy
}

// NewDefaultProvider creates a provider backed by the built-in tables.
func NewDefaultProvider() *DefaultProvider {
	return &DefaultProvider{
		furniture: defaultFurniture(),
		staff:     defaultStaff(),
	}
}

// FurnitureItem looks up a furniture catalog entry by ID.
func (p *DefaultProvider) FurnitureItem(id string) (domain.FurnitureItem, bool) {
	item, ok := p.furniture[id]
	return item, ok
}

// StaffPolicy looks up the hiring policy for a staff type.
func (p *DefaultProvider) StaffPolicy(staffType string) (domain.StaffPolicy, bool) {
	policy, ok := p.staff[staffType]
	return policy, ok
}

func defaultFurniture() map[string]domain.FurnitureItem {
	items := []domain.FurnitureItem{
		{ID: "table_small", Cost: 250},
		{ID: "table_large", Cost: 600, UnlockLevel: 3},
		{ID: "chair_basic", Cost: 100},
		{ID: "chair_plush", Cost: 350, UnlockLevel: 2},
		{ID: "counter", Cost: 1200, UnlockLevel: 4},
		{ID: "plant", Cost: 80},
		{ID: "jukebox", Cost: 2500, UnlockLevel: 6},
		{ID: "neon_sign", Cost: 40, Currency: domain.CurrencyDiamonds, UnlockLevel: 5},
		{ID: "chandelier", Cost: 25, Currency: domain.CurrencyDiamonds, UnlockLevel: 8},
		{ID: "rug", Cost: 180},
		{ID: "bar_stool", Cost: 150, UnlockLevel: 2},
		{ID: "espresso_machine", Cost: 3000, UnlockLevel: 7},
	}
	m := make(map[string]domain.FurnitureItem, len(items))
	for _, item := range items {
		m[item.ID] = item
	}
	return m
}

func defaultStaff() map[string]domain.StaffPolicy {
	policies := []domain.StaffPolicy{
		{Type: "waiter", BaseCost: 500, Multiplier: 1.5, MaxCount: 8},
		{Type: "barista", BaseCost: 800, Multiplier: 1.6, MaxCount: 6},
		{Type: "cleaner", BaseCost: 300, Multiplier: 1.4, MaxCount: 5},
		{Type: "manager", BaseCost: 2000, Multiplier: 2.0, MaxCount: 2},
	}
	m := make(map[string]domain.StaffPolicy, len(policies))
	for _, policy := range policies {
		m[policy.Type] = policy
	}
	return m
}
