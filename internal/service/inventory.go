package service

import (
	"context"
	"fmt"
	"strings"

	"washouse/backend/internal/domain"
	"washouse/backend/internal/store"
	"washouse/backend/internal/xid"
)

func (s *Service) CreateInventoryItem(ctx context.Context, req domain.InventoryItemCreateRequest) (domain.InventoryItem, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.InventoryItem{}, err
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.InventoryItem{}, fmt.Errorf("item name required: %w", store.ErrInvalidOperation)
	}
	if req.PriceCents < 0 || req.CostCents < 0 {
		return domain.InventoryItem{}, fmt.Errorf("price and cost must be non-negative: %w", store.ErrInvalidOperation)
	}
	if req.Stock < 0 {
		return domain.InventoryItem{}, fmt.Errorf("stock must be non-negative: %w", store.ErrInvalidOperation)
	}
	if req.BranchID == "" {
		req.BranchID = s.defaultBranchID
	}
	if _, err := s.repo.GetBranch(ctx, req.BranchID); err != nil {
		return domain.InventoryItem{}, err
	}

	item := domain.InventoryItem{
		ID:         xid.New("ITEM"),
		BranchID:   req.BranchID,
		Name:       req.Name,
		PriceCents: req.PriceCents,
		CostCents:  req.CostCents,
		Stock:      req.Stock,
		Icon:       req.Icon,
	}
	created, err := s.repo.CreateInventoryItem(ctx, item)
	if err != nil {
		return domain.InventoryItem{}, err
	}

	s.logActivity(ctx, created.BranchID, "ITEM_CREATED", fmt.Sprintf("Producto %s agregado", created.Name))
	return *created, nil
}

func (s *Service) GetInventoryItem(ctx context.Context, itemID, branchID string) (domain.InventoryItem, error) {
	if branchID == "" {
		branchID = s.defaultBranchID
	}
	item, err := s.repo.GetInventoryItem(ctx, itemID, branchID)
	if err != nil {
		return domain.InventoryItem{}, err
	}
	return *item, nil
}

func (s *Service) ListInventory(ctx context.Context, branchID string) ([]domain.InventoryItem, error) {
	if branchID == "" {
		branchID = s.defaultBranchID
	}
	return s.repo.ListInventory(ctx, branchID)
}

func (s *Service) UpdateInventoryItem(ctx context.Context, itemID, branchID string, req domain.InventoryItemUpdateRequest) (domain.InventoryItem, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.InventoryItem{}, err
	}
	if branchID == "" {
		branchID = s.defaultBranchID
	}
	item, err := s.repo.GetInventoryItem(ctx, itemID, branchID)
	if err != nil {
		return domain.InventoryItem{}, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.InventoryItem{}, fmt.Errorf("item name required: %w", store.ErrInvalidOperation)
		}
		item.Name = name
	}
	if req.PriceCents != nil {
		if *req.PriceCents < 0 {
			return domain.InventoryItem{}, fmt.Errorf("price must be non-negative: %w", store.ErrInvalidOperation)
		}
		item.PriceCents = *req.PriceCents
	}
	if req.CostCents != nil {
		if *req.CostCents < 0 {
			return domain.InventoryItem{}, fmt.Errorf("cost must be non-negative: %w", store.ErrInvalidOperation)
		}
		item.CostCents = *req.CostCents
	}
	if req.Icon != nil {
		item.Icon = *req.Icon
	}

	updated, err := s.repo.UpdateInventoryItem(ctx, *item)
	if err != nil {
		return domain.InventoryItem{}, err
	}

	s.logActivity(ctx, updated.BranchID, "ITEM_UPDATED", fmt.Sprintf("Producto %s actualizado", updated.Name))
	return *updated, nil
}

func (s *Service) DeleteInventoryItem(ctx context.Context, itemID, branchID string) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	if branchID == "" {
		branchID = s.defaultBranchID
	}
	item, err := s.repo.GetInventoryItem(ctx, itemID, branchID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteInventoryItem(ctx, itemID, branchID); err != nil {
		return err
	}

	s.logActivity(ctx, branchID, "ITEM_DELETED", fmt.Sprintf("Producto %s eliminado", item.Name))
	return nil
}

// AdjustStock applies a signed delta to an item's stock. The store clamps
// the result at zero; the adjusted item is returned.
func (s *Service) AdjustStock(ctx context.Context, itemID, branchID string, req domain.StockAdjustRequest) (domain.InventoryItem, error) {
	if branchID == "" {
		branchID = s.defaultBranchID
	}
	if req.Delta == 0 {
		return domain.InventoryItem{}, fmt.Errorf("delta must be non-zero: %w", store.ErrInvalidOperation)
	}
	item, err := s.repo.AdjustStock(ctx, itemID, branchID, req.Delta)
	if err != nil {
		return domain.InventoryItem{}, err
	}

	s.logActivity(ctx, item.BranchID, "STOCK_ADJUSTED", fmt.Sprintf("Stock de %s ajustado en %d (ahora %d)", item.Name, req.Delta, item.Stock))
	return *item, nil
}

// LoadStandardCatalog seeds the branch with the standard supply catalog,
// skipping items the branch already stocks by name. Safe to call
// repeatedly.
func (s *Service) LoadStandardCatalog(ctx context.Context, branchID string) ([]domain.InventoryItem, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	if branchID == "" {
		branchID = s.defaultBranchID
	}
	if _, err := s.repo.GetBranch(ctx, branchID); err != nil {
		return nil, err
	}

	existing, err := s.repo.ListInventory(ctx, branchID)
	if err != nil {
		return nil, err
	}
	have := make(map[string]bool, len(existing))
	for _, item := range existing {
		have[item.Name] = true
	}

	var added []domain.InventoryItem
	for _, item := range domain.StandardCatalog() {
		if have[item.Name] {
			continue
		}
		item.ID = xid.New("ITEM")
		item.BranchID = branchID
		created, err := s.repo.CreateInventoryItem(ctx, item)
		if err != nil {
			return nil, err
		}
		added = append(added, *created)
	}

	if len(added) > 0 {
		s.logActivity(ctx, branchID, "CATALOG_LOADED", fmt.Sprintf("Catalogo estandar: %d productos agregados", len(added)))
	}
	return added, nil
}
