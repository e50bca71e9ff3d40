package order

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/nkiryanov/benefitmart/internal/apperrors"
	"github.com/nkiryanov/benefitmart/internal/models"
	"github.com/nkiryanov/benefitmart/internal/repository"
	"github.com/nkiryanov/benefitmart/internal/service/eligibility"
)

// line is an order item resolved against its catalog
type line struct {
	item     models.OrderItem
	total    int64
	display  models.ItemDisplay
	stockFor func(tx repository.Storage) error
}

// Reserve creates order in 'reserved' status and holds its points in the caller's current wallet
// Everything happens in one transaction: catalog rows and the wallet are locked
// till commit, so concurrent orders can't oversell stock or overdraw points
func (s *OrderService) Reserve(ctx context.Context, caller models.Caller, inputs []models.OrderItemInput) (models.Order, error) {
	legacy, marketplace, err := partition(inputs)
	if err != nil {
		return models.Order{}, err
	}

	now := s.now()
	var order models.Order

	err = s.storage.InTx(ctx, func(tx repository.Storage) error {
		lines, err := s.legacyLines(ctx, tx, caller, legacy)
		if err != nil {
			return err
		}

		offeringLines, err := s.marketplaceLines(ctx, tx, caller, marketplace)
		if err != nil {
			return err
		}
		lines = append(lines, offeringLines...)

		if err := s.checkEligibility(ctx, tx, caller, lines); err != nil {
			return err
		}

		var total int64
		for _, l := range lines {
			var ok bool
			if total, ok = models.AddPoints(total, l.total); !ok {
				return apperrors.With(apperrors.ErrInsufficientPoints, "order total exceeds any wallet")
			}
		}

		wallet, err := tx.Wallet().GetCurrentWallet(ctx, caller.ID, caller.TenantID, now, true)
		switch {
		case errors.Is(err, apperrors.ErrWalletNotFound):
			return apperrors.With(apperrors.ErrInsufficientPoints, "wallet not found or expired")
		case err != nil:
			return fmt.Errorf("can't load wallet: %w", err)
		}

		if wallet.Available() < total {
			return apperrors.With(apperrors.ErrInsufficientPoints, "insufficient points: available %d, required %d", wallet.Available(), total)
		}

		order, err = tx.Order().CreateOrder(ctx, models.Order{
			UserID:      caller.ID,
			TenantID:    caller.TenantID,
			WalletID:    wallet.ID,
			Status:      models.OrderStatusReserved,
			TotalPoints: total,
			ReservedAt:  now,
			ExpiresAt:   now.Add(s.reservationTTL),
		})
		if err != nil {
			return fmt.Errorf("can't create order: %w", err)
		}

		items := make([]models.OrderItem, 0, len(lines))
		for _, l := range lines {
			l.item.OrderID = order.ID
			items = append(items, l.item)
		}
		items, err = tx.Order().CreateItems(ctx, items)
		if err != nil {
			return fmt.Errorf("can't create order items: %w", err)
		}

		for i, l := range lines {
			items[i].Display = &l.display

			_, err := tx.Ledger().Append(ctx, models.LedgerEntry{
				WalletID:    wallet.ID,
				TenantID:    caller.TenantID,
				OrderID:     &order.ID,
				Type:        models.LedgerReserve,
				Amount:      l.total,
				Description: fmt.Sprintf("reserve %q x%d", l.display.Name, l.item.Quantity),
			})
			if err != nil {
				return fmt.Errorf("can't append ledger entry: %w", err)
			}
		}

		// Conditional update: a concurrent reservation that slipped in makes it fail
		_, err = tx.Wallet().Reserve(ctx, wallet.ID, total)
		switch {
		case errors.Is(err, apperrors.ErrBalanceInsufficient):
			return apperrors.With(apperrors.ErrInsufficientPoints, "insufficient points: required %d", total)
		case err != nil:
			return fmt.Errorf("can't reserve points: %w", err)
		}

		for _, l := range lines {
			if err := l.stockFor(tx); err != nil {
				return fmt.Errorf("can't take stock: %w", err)
			}
		}

		order.Items = items
		return nil
	})
	if err != nil {
		return models.Order{}, err
	}

	s.logger.Info("Order reserved", "order_id", order.ID, "user_id", caller.ID, "total_points", order.TotalPoints)
	s.publish(ctx, order)

	return order, nil
}

// partition decodes inputs and sums quantities of the same source
// Sources keep the order they first appeared in
func partition(inputs []models.OrderItemInput) ([]models.LegacyItem, []models.MarketplaceItem, error) {
	if len(inputs) == 0 {
		return nil, nil, apperrors.With(apperrors.ErrInvalidRequest, "order must contain at least one item")
	}

	var (
		legacy      []models.LegacyItem
		marketplace []models.MarketplaceItem
	)

	for i, in := range inputs {
		item, err := in.LineItem()
		if err != nil {
			return nil, nil, apperrors.With(apperrors.ErrInvalidRequest, "item %d: %s", i, err)
		}

		switch it := item.(type) {
		case models.LegacyItem:
			idx := slices.IndexFunc(legacy, func(l models.LegacyItem) bool { return l.BenefitID == it.BenefitID })
			if idx >= 0 {
				legacy[idx].Quantity += it.Quantity
				if legacy[idx].Quantity > models.MaxItemQuantity {
					return nil, nil, tooMany(i)
				}
				continue
			}
			legacy = append(legacy, it)

		case models.MarketplaceItem:
			idx := slices.IndexFunc(marketplace, func(m models.MarketplaceItem) bool { return m.TenantOfferingID == it.TenantOfferingID })
			if idx >= 0 {
				marketplace[idx].Quantity += it.Quantity
				if marketplace[idx].Quantity > models.MaxItemQuantity {
					return nil, nil, tooMany(i)
				}
				continue
			}
			marketplace = append(marketplace, it)
		}
	}

	return legacy, marketplace, nil
}

func tooMany(i int) error {
	return apperrors.With(apperrors.ErrInvalidRequest, "item %d: total quantity of the source must be at most %d", i, models.MaxItemQuantity)
}

// priced sets the line total, overflowing totals can't be paid from any wallet
func priced(l line, name string) (line, error) {
	total, ok := l.item.Total()
	if !ok {
		return l, apperrors.With(apperrors.ErrInsufficientPoints, "total of %q exceeds any wallet", name)
	}
	l.total = total
	return l, nil
}

func (s *OrderService) legacyLines(ctx context.Context, tx repository.Storage, caller models.Caller, items []models.LegacyItem) ([]line, error) {
	if len(items) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.BenefitID)
	}

	benefits, err := tx.Catalog().ListActiveBenefits(ctx, caller.TenantID, ids, true)
	if err != nil {
		return nil, fmt.Errorf("can't load benefits: %w", err)
	}
	byID := make(map[uuid.UUID]models.Benefit, len(benefits))
	for _, b := range benefits {
		byID[b.ID] = b
	}

	lines := make([]line, 0, len(items))
	for _, it := range items {
		b, ok := byID[it.BenefitID]
		if !ok {
			return nil, apperrors.With(apperrors.ErrBenefitNotAvailable, "benefit %s is not available", it.BenefitID)
		}
		if b.StockLimit != nil && *b.StockLimit < it.Quantity {
			return nil, apperrors.With(apperrors.ErrStockExceeded, "not enough stock for %q: %d left", b.Name, *b.StockLimit)
		}

		l, err := priced(line{
			item: models.OrderItem{
				BenefitID:   &b.ID,
				Quantity:    it.Quantity,
				PricePoints: b.PricePoints,
			},
			display: models.ItemDisplay{Name: b.Name, Description: b.Description, PricePoints: b.PricePoints},
			stockFor: func(tx repository.Storage) error {
				if b.StockLimit == nil {
					return nil
				}
				return tx.Catalog().AdjustBenefitStock(ctx, b.ID, -it.Quantity)
			},
		}, b.Name)
		if err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}

	return lines, nil
}

// Eligibility gates tenant benefits only, marketplace offerings are open to the whole tenant
func (s *OrderService) checkEligibility(ctx context.Context, tx repository.Storage, caller models.Caller, lines []line) error {
	ids := make([]uuid.UUID, 0, len(lines))
	for _, l := range lines {
		if l.item.BenefitID != nil {
			ids = append(ids, *l.item.BenefitID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	profile, err := eligibility.LoadProfile(ctx, tx.Profile(), caller.ID, caller.TenantID)
	if err != nil {
		return fmt.Errorf("can't load profile: %w", err)
	}
	rules, err := tx.Rules().ListRules(ctx, caller.TenantID, ids)
	if err != nil {
		return fmt.Errorf("can't load eligibility rules: %w", err)
	}
	rulesByBenefit := eligibility.RulesByBenefit(rules)

	for _, l := range lines {
		if l.item.BenefitID == nil {
			continue
		}
		if !eligibility.IsEligible(profile, rulesByBenefit[*l.item.BenefitID]) {
			return apperrors.With(apperrors.ErrBenefitNotEligible, "not eligible for %q", l.display.Name)
		}
	}

	return nil
}

func (s *OrderService) marketplaceLines(ctx context.Context, tx repository.Storage, caller models.Caller, items []models.MarketplaceItem) ([]line, error) {
	// Provider offerings are shared across tenants, so rows are locked in provider offering id order.
	// The tenant offering maps to one provider offering per tenant, the unlocked read only finds that id
	type target struct {
		item       models.MarketplaceItem
		providerID uuid.UUID
	}
	targets := make([]target, 0, len(items))
	for _, it := range items {
		m, err := tx.Catalog().GetMarketplaceOffering(ctx, caller.TenantID, it.TenantOfferingID, false)
		switch {
		case errors.Is(err, apperrors.ErrOfferingNotFound):
			return nil, apperrors.With(apperrors.ErrBenefitNotAvailable, "offering %s is not available", it.TenantOfferingID)
		case err != nil:
			return nil, fmt.Errorf("can't load offering: %w", err)
		}
		targets = append(targets, target{item: it, providerID: m.Offering.ID})
	}
	slices.SortFunc(targets, func(a, b target) int {
		return slices.Compare(a.providerID[:], b.providerID[:])
	})

	offerings := make(map[uuid.UUID]models.MarketplaceOffering, len(items))
	for _, tg := range targets {
		m, err := tx.Catalog().GetMarketplaceOffering(ctx, caller.TenantID, tg.item.TenantOfferingID, true)
		switch {
		case errors.Is(err, apperrors.ErrOfferingNotFound):
			return nil, apperrors.With(apperrors.ErrBenefitNotAvailable, "offering %s is not available", tg.item.TenantOfferingID)
		case err != nil:
			return nil, fmt.Errorf("can't lock offering: %w", err)
		}
		offerings[tg.item.TenantOfferingID] = m
	}

	lines := make([]line, 0, len(items))
	for _, it := range items {
		m := offerings[it.TenantOfferingID]

		if m.Offering.Status != models.OfferingStatusPublished {
			return nil, apperrors.With(apperrors.ErrBenefitNotAvailable, "offering is not published")
		}
		if m.Provider.Status != models.ProviderStatusVerified {
			return nil, apperrors.With(apperrors.ErrBenefitNotAvailable, "provider is not verified")
		}

		price := m.EffectivePrice()
		stock := m.EffectiveStock()
		if stock != nil && *stock < it.Quantity {
			return nil, apperrors.With(apperrors.ErrStockExceeded, "not enough stock for %q: %d left", m.Offering.Name, *stock)
		}

		l, err := priced(line{
			item: models.OrderItem{
				TenantOfferingID:   &m.ID,
				ProviderOfferingID: &m.Offering.ID,
				Quantity:           it.Quantity,
				PricePoints:        price,
			},
			display: models.ItemDisplay{Name: m.Offering.Name, Description: m.Offering.Description, PricePoints: price},
			stockFor: func(tx repository.Storage) error {
				if stock == nil {
					return nil
				}
				return tx.Catalog().AdjustOfferingStock(ctx, m.ID, -it.Quantity)
			},
		}, m.Offering.Name)
		if err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}

	return lines, nil
}
