package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"washouse/backend/internal/directory"
	"washouse/backend/internal/domain"
	"washouse/backend/internal/store"
)

func normalizePhone(raw string) string {
	return directory.NormalizePhone(raw)
}

// ListCustomers returns the derived customer view, rebuilt from the
// order history and override layer. The full directory is cached; branch
// filtering happens after the fold so a filtered request never caches a
// partial view.
func (s *Service) ListCustomers(ctx context.Context, branchID string) ([]domain.Customer, error) {
	customers, ok := s.directory.Cached(ctx)
	if !ok {
		orders, err := s.repo.ListOrders(ctx, "")
		if err != nil {
			return nil, err
		}
		overrides, err := s.repo.ListCustomerOverrides(ctx)
		if err != nil {
			return nil, err
		}
		customers = directory.Build(orders, overrides)
		s.directory.Store(ctx, customers)
	}

	if branchID == "" {
		return customers, nil
	}
	filtered := make([]domain.Customer, 0, len(customers))
	for _, c := range customers {
		if c.RegistrationBranchID == branchID {
			filtered = append(filtered, c)
		}
	}
	return filtered, nil
}

func (s *Service) GetCustomer(ctx context.Context, phone string) (domain.Customer, error) {
	phone = normalizePhone(phone)
	if phone == "" {
		return domain.Customer{}, fmt.Errorf("phone required: %w", store.ErrInvalidOperation)
	}
	customers, err := s.ListCustomers(ctx, "")
	if err != nil {
		return domain.Customer{}, err
	}
	for _, c := range customers {
		if c.Phone == phone {
			return c, nil
		}
	}
	return domain.Customer{}, fmt.Errorf("customer %s: %w", phone, store.ErrNotFound)
}

// UpdateCustomerOverride patches the manual layer on top of the derived
// customer view. Only the fields present in the request change.
func (s *Service) UpdateCustomerOverride(ctx context.Context, phone string, req domain.CustomerOverrideRequest) (domain.Customer, error) {
	phone = normalizePhone(phone)
	if phone == "" {
		return domain.Customer{}, fmt.Errorf("phone required: %w", store.ErrInvalidOperation)
	}

	override := domain.CustomerOverride{}
	if existing, err := s.repo.GetCustomerOverride(ctx, phone); err == nil {
		override = *existing
	} else if !errors.Is(err, store.ErrNotFound) {
		return domain.Customer{}, err
	}

	if req.Name != nil {
		override.Name = strings.TrimSpace(*req.Name)
	}
	if req.Notes != nil {
		override.Notes = *req.Notes
	}
	if req.WeightKg != nil {
		override.WeightKg = *req.WeightKg
	}
	if req.HeightCm != nil {
		override.HeightCm = *req.HeightCm
	}
	if req.RegistrationBranchID != nil {
		if _, err := s.repo.GetBranch(ctx, *req.RegistrationBranchID); err != nil {
			return domain.Customer{}, err
		}
		override.RegistrationBranchID = *req.RegistrationBranchID
	}

	if err := s.repo.UpsertCustomerOverride(ctx, phone, override); err != nil {
		return domain.Customer{}, err
	}

	s.directory.Invalidate(ctx)
	s.logActivity(ctx, override.RegistrationBranchID, "CUSTOMER_UPDATED", fmt.Sprintf("Cliente %s actualizado", phone))
	return s.GetCustomer(ctx, phone)
}
