package validator

import (
	"context"
	"time"

	"github.com/economy-guard/internal/domain"
	"github.com/economy-guard/internal/ratelimit"
)

// Purchase validates and applies a furniture or staff acquisition. All
// business-rule failures come back as declines in the result; only
// infrastructure failures are returned as errors.
func (s *Service) Purchase(ctx context.Context, userID string, req domain.PurchaseRequest) (*domain.PurchaseResult, error) {
	if !s.limiter.Allow(userID, ratelimit.ActionPurchase) {
		return &domain.PurchaseResult{
			Decline: &domain.Decline{Code: domain.DeclineRateLimit},
		}, nil
	}

	unlock := s.lockUser(userID)
	defer unlock()

	state, err := s.loadState(ctx, userID)
	if err != nil {
		return nil, err
	}

	item, decline := s.resolveItem(req)
	if decline != nil {
		return &domain.PurchaseResult{Decline: decline}, nil
	}

	cost, currency, decline := item.ResolveCost(state)
	if decline != nil {
		return &domain.PurchaseResult{Decline: decline}, nil
	}

	if available := state.Balance(currency); available < cost {
		return &domain.PurchaseResult{
			Decline: &domain.Decline{
				Code:      domain.DeclineInsufficientFunds,
				Required:  cost,
				Available: available,
			},
		}, nil
	}

	before := domain.BalanceSnapshot(state)
	state.AddBalance(currency, -cost)
	item.Apply(state, req, time.Now())

	if err := s.cache.Put(ctx, state); err != nil {
		return nil, err
	}

	txID := s.recordTransaction(ctx, userID, domain.ActionPurchase, before, domain.BalanceSnapshot(state), map[string]interface{}{
		"item_type": req.ItemType,
		"item_id":   req.ItemID,
		"cost":      cost,
		"currency":  string(currency),
	})

	s.logger.Info("purchase applied",
		"user_id", userID,
		"item_type", req.ItemType,
		"item_id", req.ItemID,
		"cost", cost,
	)

	return &domain.PurchaseResult{
		OK:    true,
		State: state,
		Transaction: &domain.TransactionSummary{
			TransactionID: txID,
			Currency:      currency,
			Amount:        -cost,
			NewBalance:    state.Balance(currency),
		},
	}, nil
}

// resolveItem dispatches on the item kind tag and resolves the catalog
// definition. For staff purchases the item ID is the staff type.
func (s *Service) resolveItem(req domain.PurchaseRequest) (domain.PurchaseItem, *domain.Decline) {
	switch domain.ItemKind(req.ItemType) {
	case domain.ItemKindFurniture:
		def, ok := s.catalog.FurnitureItem(req.ItemID)
		if !ok {
			return nil, &domain.Decline{Code: domain.DeclineInvalidItem}
		}
		return domain.FurniturePurchase{Item: def}, nil
	case domain.ItemKindStaff:
		policy, ok := s.catalog.StaffPolicy(req.ItemID)
		if !ok {
			return nil, &domain.Decline{Code: domain.DeclineInvalidItem}
		}
		return domain.StaffPurchase{Policy: policy}, nil
	default:
		return nil, &domain.Decline{Code: domain.DeclineInvalidType}
	}
}
