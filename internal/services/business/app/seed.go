package app

import (
	"context"
	"fmt"

	"github.com/vmitra/vmitra/internal/services/business/catalog"
	"go.uber.org/zap"
)

// SeedResult counts catalog rows written by a seed.
type SeedResult struct {
	Created int
	Updated int
	Removed int
}

// Seed upserts catalog items by ID. With replace, items missing from the
// catalog are deleted first.
func (s *Service) Seed(ctx context.Context, cat catalog.Catalog, replace bool) (result SeedResult, err error) {
	ctx, span := startSpan(ctx, "Seed")
	defer func() { endSpan(span, err) }()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	existing, err := s.store.ListItems(ctx, "")
	if err != nil {
		return SeedResult{}, fmt.Errorf("load inventory: %w", err)
	}
	known := make(map[string]struct{}, len(existing))
	for _, item := range existing {
		known[item.ID] = struct{}{}
	}

	if replace {
		keep := make(map[string]struct{}, len(cat.Items))
		for _, entry := range cat.Items {
			keep[entry.ID] = struct{}{}
		}
		for _, item := range existing {
			if _, ok := keep[item.ID]; ok {
				continue
			}
			if err := s.store.DeleteItem(ctx, item.ID); err != nil {
				return result, fmt.Errorf("remove item %s: %w", item.ID, err)
			}
			delete(known, item.ID)
			result.Removed++
		}
	}

	for _, entry := range cat.Items {
		if _, err := s.putItem(ctx, entry.Input()); err != nil {
			return result, fmt.Errorf("seed %q: %w", entry.Name, err)
		}
		if _, ok := known[entry.ID]; ok && entry.ID != "" {
			result.Updated++
		} else {
			result.Created++
		}
	}
	s.logger.Info("catalog seeded",
		zap.String("shop", cat.Shop),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("removed", result.Removed),
	)
	return result, nil
}

// SeedIfEmpty seeds cat only when the inventory has no items.
func (s *Service) SeedIfEmpty(ctx context.Context, cat catalog.Catalog) (bool, error) {
	items, err := s.store.ListItems(ctx, "")
	if err != nil {
		return false, fmt.Errorf("load inventory: %w", err)
	}
	if len(items) > 0 {
		return false, nil
	}
	if _, err := s.Seed(ctx, cat, false); err != nil {
		return false, err
	}
	return true, nil
}
