package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"washouse/backend/internal/domain"
	"washouse/backend/internal/store"
	"washouse/backend/internal/xid"
)

func validSaleType(t string) bool {
	switch t {
	case domain.SaleTypeServiceAdvance, domain.SaleTypeServicePayment, domain.SaleTypeCounterSale, domain.SaleTypeRefund:
		return true
	}
	return false
}

func validPaymentMethod(m string) bool {
	switch m {
	case domain.PaymentMethodCash, domain.PaymentMethodCard, domain.PaymentMethodTransfer:
		return true
	}
	return false
}

// RecordSale appends an entry to the sales ledger. Refunds carry a
// negative amount; every other type a non-negative one. The ledger is
// append-only, so corrections happen via compensating refund entries.
func (s *Service) RecordSale(ctx context.Context, record domain.SaleRecord) (domain.SaleRecord, error) {
	if !validSaleType(record.Type) {
		return domain.SaleRecord{}, fmt.Errorf("unknown sale type %q: %w", record.Type, store.ErrInvalidOperation)
	}
	if !validPaymentMethod(record.Method) {
		return domain.SaleRecord{}, fmt.Errorf("unknown payment method %q: %w", record.Method, store.ErrInvalidOperation)
	}
	if record.Type == domain.SaleTypeRefund {
		if record.AmountCents >= 0 {
			return domain.SaleRecord{}, fmt.Errorf("refund amount must be negative: %w", store.ErrInvalidOperation)
		}
	} else if record.AmountCents < 0 {
		return domain.SaleRecord{}, fmt.Errorf("sale amount must be non-negative: %w", store.ErrInvalidOperation)
	}
	if record.BranchID == "" {
		record.BranchID = s.defaultBranchID
	}
	if _, err := s.repo.GetBranch(ctx, record.BranchID); err != nil {
		return domain.SaleRecord{}, err
	}
	if record.ID == "" {
		record.ID = xid.New("SALE")
	}
	if record.Date.IsZero() {
		record.Date = time.Now().UTC()
	}

	appended, err := s.repo.AppendSale(ctx, record)
	if err != nil {
		return domain.SaleRecord{}, err
	}
	if appended.Type == domain.SaleTypeRefund {
		s.logActivity(ctx, appended.BranchID, "SALE_REFUND", fmt.Sprintf("Reembolso de %d: %s", -appended.AmountCents, appended.Description))
	}
	return *appended, nil
}

func (s *Service) ListSales(ctx context.Context, branchID string, from, to time.Time) ([]domain.SaleRecord, error) {
	return s.repo.ListSales(ctx, branchID, from, to)
}

// RecordExpense appends an expense to the ledger, tagging it with the
// branch's open shift when one exists so the close-out can count it.
func (s *Service) RecordExpense(ctx context.Context, req domain.ExpenseCreateRequest) (domain.ExpenseRecord, error) {
	req.Description = strings.TrimSpace(req.Description)
	if req.Description == "" {
		return domain.ExpenseRecord{}, fmt.Errorf("expense description required: %w", store.ErrInvalidOperation)
	}
	if req.AmountCents <= 0 {
		return domain.ExpenseRecord{}, fmt.Errorf("expense amount must be positive: %w", store.ErrInvalidOperation)
	}
	if req.BranchID == "" {
		req.BranchID = s.defaultBranchID
	}
	if _, err := s.repo.GetBranch(ctx, req.BranchID); err != nil {
		return domain.ExpenseRecord{}, err
	}

	record := domain.ExpenseRecord{
		ID:          xid.New("EXP"),
		Timestamp:   time.Now().UTC(),
		BranchID:    req.BranchID,
		Description: req.Description,
		AmountCents: req.AmountCents,
		Category:    req.Category,
	}
	if shift, err := s.repo.GetActiveShift(ctx, req.BranchID); err == nil {
		record.ShiftID = shift.ID
	} else if !errors.Is(err, store.ErrNotFound) {
		return domain.ExpenseRecord{}, err
	}

	appended, err := s.repo.AppendExpense(ctx, record)
	if err != nil {
		return domain.ExpenseRecord{}, err
	}

	s.logActivity(ctx, appended.BranchID, "EXPENSE_RECORDED", fmt.Sprintf("Gasto de %d: %s", appended.AmountCents, appended.Description))
	return *appended, nil
}

func (s *Service) ListExpenses(ctx context.Context, branchID string, from, to time.Time) ([]domain.ExpenseRecord, error) {
	return s.repo.ListExpenses(ctx, branchID, from, to)
}

// RecordCounterSale sells inventory over the counter with no order
// attached: one counter_sale ledger entry for the total plus a stock
// decrement per line item.
func (s *Service) RecordCounterSale(ctx context.Context, req domain.CounterSaleRequest) (domain.SaleRecord, error) {
	if len(req.Items) == 0 {
		return domain.SaleRecord{}, fmt.Errorf("counter sale needs at least one item: %w", store.ErrInvalidOperation)
	}
	if req.Method == "" {
		req.Method = domain.PaymentMethodCash
	}
	if !validPaymentMethod(req.Method) {
		return domain.SaleRecord{}, fmt.Errorf("unknown payment method %q: %w", req.Method, store.ErrInvalidOperation)
	}
	if req.BranchID == "" {
		req.BranchID = s.defaultBranchID
	}
	if _, err := s.repo.GetBranch(ctx, req.BranchID); err != nil {
		return domain.SaleRecord{}, err
	}

	var total int64
	names := make([]string, 0, len(req.Items))
	for _, item := range req.Items {
		if item.Qty < 1 {
			return domain.SaleRecord{}, fmt.Errorf("item qty must be positive: %w", store.ErrInvalidOperation)
		}
		inv, err := s.repo.GetInventoryItem(ctx, item.ItemID, req.BranchID)
		if err != nil {
			return domain.SaleRecord{}, err
		}
		total += inv.PriceCents * int64(item.Qty)
		names = append(names, fmt.Sprintf("%dx %s", item.Qty, inv.Name))
	}

	record := domain.SaleRecord{
		ID:          xid.New("SALE"),
		Date:        time.Now().UTC(),
		BranchID:    req.BranchID,
		Type:        domain.SaleTypeCounterSale,
		Description: fmt.Sprintf("Venta Mostrador: %s", strings.Join(names, ", ")),
		AmountCents: total,
		Method:      req.Method,
	}
	appended, err := s.repo.AppendSale(ctx, record)
	if err != nil {
		return domain.SaleRecord{}, err
	}

	for _, item := range req.Items {
		if _, err := s.repo.AdjustStock(ctx, item.ItemID, req.BranchID, -item.Qty); err != nil {
			return domain.SaleRecord{}, err
		}
	}

	s.logActivity(ctx, appended.BranchID, "COUNTER_SALE", fmt.Sprintf("Venta mostrador de %d (%s)", appended.AmountCents, appended.Method))
	return *appended, nil
}
