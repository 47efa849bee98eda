// Package directory derives the customer view from the order history.
// Nothing here is persisted: the fold is recomputed from orders and the
// manual override layer whenever the cached copy is missing or stale.
package directory

import (
	"slices"
	"strings"

	"washouse/backend/internal/domain"
)

// NormalizePhone strips everything but digits so formatting variants of
// the same number fold into one customer.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Build folds the order history into customer records keyed by
// normalized phone, then patches each record with its override. Orders
// without a phone are skipped. Identity fields follow the most recent
// order; when two orders share a timestamp the one processed later wins.
func Build(orders []domain.Order, overrides map[string]domain.CustomerOverride) []domain.Customer {
	byPhone := make(map[string]*domain.Customer)

	for _, order := range orders {
		phone := NormalizePhone(order.CustomerPhone)
		if phone == "" {
			continue
		}

		c, ok := byPhone[phone]
		if !ok {
			c = &domain.Customer{
				Phone:      phone,
				FirstVisit: order.CreatedAt,
				LastVisit:  order.CreatedAt,
			}
			byPhone[phone] = c
		}

		c.TotalSpentCents += order.TotalCents
		c.DebtCents += order.BalanceDueCents
		c.VisitCount++
		c.Orders = append(c.Orders, order)

		if !order.CreatedAt.Before(c.LastVisit) || c.Name == "" {
			c.LastVisit = order.CreatedAt
			c.Name = order.CustomerName
			c.DisplayPhone = order.CustomerPhone
		}
		if !order.CreatedAt.After(c.FirstVisit) || c.RegistrationBranchID == "" {
			c.FirstVisit = order.CreatedAt
			c.RegistrationBranchID = order.BranchID
		}
	}

	// Overrides can exist for phones with no orders yet, for example a
	// registration stamp written before the first order committed.
	for phone, override := range overrides {
		c, ok := byPhone[phone]
		if !ok {
			continue
		}
		if override.Name != "" {
			c.Name = override.Name
		}
		if override.Notes != "" {
			c.Notes = override.Notes
		}
		if override.WeightKg != "" {
			c.WeightKg = override.WeightKg
		}
		if override.HeightCm != "" {
			c.HeightCm = override.HeightCm
		}
		if override.RegistrationBranchID != "" {
			c.RegistrationBranchID = override.RegistrationBranchID
		}
	}

	customers := make([]domain.Customer, 0, len(byPhone))
	for _, c := range byPhone {
		slices.SortFunc(c.Orders, func(a, b domain.Order) int {
			return b.CreatedAt.Compare(a.CreatedAt)
		})
		customers = append(customers, *c)
	}
	slices.SortFunc(customers, func(a, b domain.Customer) int {
		if n := b.LastVisit.Compare(a.LastVisit); n != 0 {
			return n
		}
		return strings.Compare(a.Phone, b.Phone)
	})
	return customers
}
