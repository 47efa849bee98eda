package service

import (
	"context"
	"fmt"
	"time"

	"washouse/backend/internal/domain"
	"washouse/backend/internal/store"
	"washouse/backend/internal/xid"
)

// OpenShift starts a cash session for a branch. Only one shift may be
// open per branch at a time.
func (s *Service) OpenShift(ctx context.Context, req domain.ShiftOpenRequest) (domain.Shift, error) {
	if req.InitialCashCents < 0 {
		return domain.Shift{}, fmt.Errorf("initial cash must be non-negative: %w", store.ErrInvalidOperation)
	}
	if req.BranchID == "" {
		req.BranchID = s.defaultBranchID
	}
	if _, err := s.repo.GetBranch(ctx, req.BranchID); err != nil {
		return domain.Shift{}, err
	}

	user := "Sistema"
	if actor, ok := ActorFromContext(ctx); ok {
		user = actor.Username
	}
	if req.OpenedBy != "" {
		user = req.OpenedBy
	}

	shift := domain.Shift{
		ID:               xid.New("SHIFT"),
		BranchID:         req.BranchID,
		OpenedBy:         user,
		StartTime:        time.Now().UTC(),
		InitialCashCents: req.InitialCashCents,
		Status:           domain.ShiftStatusOpen,
	}
	created, err := s.repo.CreateShift(ctx, shift)
	if err != nil {
		return domain.Shift{}, err
	}

	s.logActivity(ctx, created.BranchID, "SHIFT_OPENED", fmt.Sprintf("Turno abierto por %s con fondo de %d", created.OpenedBy, created.InitialCashCents))
	return *created, nil
}

// CloseShift reconciles the branch's open shift against the sales and
// expense ledgers. Totals are computed at close time over the shift
// window rather than accumulated per sale, so the close-out always
// reflects the ledgers as written.
func (s *Service) CloseShift(ctx context.Context, req domain.ShiftCloseRequest) (domain.Shift, error) {
	if req.BranchID == "" {
		req.BranchID = s.defaultBranchID
	}
	if req.DeclaredCashCents < 0 {
		return domain.Shift{}, fmt.Errorf("declared cash must be non-negative: %w", store.ErrInvalidOperation)
	}

	shift, err := s.repo.GetActiveShift(ctx, req.BranchID)
	if err != nil {
		return domain.Shift{}, err
	}

	now := time.Now().UTC()
	sales, err := s.repo.ListSales(ctx, shift.BranchID, shift.StartTime, now)
	if err != nil {
		return domain.Shift{}, err
	}
	expenses, err := s.repo.ListExpenses(ctx, shift.BranchID, shift.StartTime, now)
	if err != nil {
		return domain.Shift{}, err
	}

	closed := *shift
	for _, sale := range sales {
		closed.TotalSalesCents += sale.AmountCents
		closed.SaleCount++
		switch sale.Method {
		case domain.PaymentMethodCash:
			closed.CashSalesCents += sale.AmountCents
		case domain.PaymentMethodCard:
			closed.CardSalesCents += sale.AmountCents
		default:
			closed.TransferSalesCents += sale.AmountCents
		}
	}
	for _, expense := range expenses {
		closed.TotalExpensesCents += expense.AmountCents
	}

	closed.ExpectedDrawerCents = closed.InitialCashCents + closed.CashSalesCents - closed.TotalExpensesCents
	closed.FinalCashCents = req.DeclaredCashCents
	closed.DifferenceCents = req.DeclaredCashCents - closed.ExpectedDrawerCents
	closed.Status = domain.ShiftStatusClosed
	closed.EndedAt = &now
	closed.ClosedBy = req.ClosedBy
	if closed.ClosedBy == "" {
		if actor, ok := ActorFromContext(ctx); ok {
			closed.ClosedBy = actor.Username
		}
	}

	updated, err := s.repo.CloseShift(ctx, closed)
	if err != nil {
		return domain.Shift{}, err
	}

	s.logActivity(ctx, updated.BranchID, "SHIFT_CLOSED", fmt.Sprintf("Turno cerrado con diferencia de %d", updated.DifferenceCents))
	return *updated, nil
}

func (s *Service) GetActiveShift(ctx context.Context, branchID string) (domain.Shift, error) {
	if branchID == "" {
		branchID = s.defaultBranchID
	}
	shift, err := s.repo.GetActiveShift(ctx, branchID)
	if err != nil {
		return domain.Shift{}, err
	}
	return *shift, nil
}

func (s *Service) ListShifts(ctx context.Context, branchID string) ([]domain.Shift, error) {
	return s.repo.ListShifts(ctx, branchID)
}
