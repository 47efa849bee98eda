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

// CreateOrder validates and persists a new order in RECEIVED state. Side
// effects, in order: stock is decremented for supply line items, the
// customer's registration branch is stamped on their first order, an
// advance sale is appended when money was collected, and the activity
// log records the creation. Advance payments may be partial; the balance
// is clamped at zero on overpayment.
func (s *Service) CreateOrder(ctx context.Context, req domain.OrderCreateRequest) (domain.Order, error) {
	if req.BranchID == "" {
		req.BranchID = s.defaultBranchID
	}
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	if req.CustomerName == "" {
		return domain.Order{}, fmt.Errorf("customer name required: %w", store.ErrInvalidOperation)
	}
	if req.TotalCents < 0 {
		return domain.Order{}, fmt.Errorf("total must be non-negative: %w", store.ErrInvalidOperation)
	}
	if req.AdvanceCents < 0 {
		return domain.Order{}, fmt.Errorf("advance must be non-negative: %w", store.ErrInvalidOperation)
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = domain.PaymentMethodCash
	}
	for _, item := range req.Items {
		if item.Qty < 1 {
			return domain.Order{}, fmt.Errorf("item qty must be positive: %w", store.ErrInvalidOperation)
		}
	}
	if _, err := s.repo.GetBranch(ctx, req.BranchID); err != nil {
		return domain.Order{}, err
	}

	user := "Sistema"
	if actor, ok := ActorFromContext(ctx); ok {
		user = actor.Username
	}

	now := time.Now().UTC()
	balance := req.TotalCents - req.AdvanceCents
	if balance < 0 {
		balance = 0
	}

	order := domain.Order{
		ID:              xid.New("ORD"),
		BranchID:        req.BranchID,
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		Items:           req.Items,
		TotalCents:      req.TotalCents,
		AdvanceCents:    req.AdvanceCents,
		BalanceDueCents: balance,
		PaymentMethod:   req.PaymentMethod,
		Status:          domain.OrderStatusReceived,
		MachineID:       req.MachineID,
		CreatedAt:       now,
		StatusHistory: []domain.StatusChange{
			{Status: domain.OrderStatusReceived, Timestamp: now, User: user},
		},
	}

	created, err := s.repo.CreateOrder(ctx, order)
	if err != nil {
		return domain.Order{}, err
	}

	// Supply line items double as inventory ids; unknown ids are service
	// lines and carry no stock. Decrement happens exactly once, here.
	for _, item := range created.Items {
		if item.ServiceID == "" {
			continue
		}
		if _, err := s.repo.AdjustStock(ctx, item.ServiceID, created.BranchID, -item.Qty); err != nil && !errors.Is(err, store.ErrNotFound) {
			return domain.Order{}, err
		}
	}

	s.stampRegistrationBranch(ctx, created.CustomerPhone, created.BranchID)

	if created.AdvanceCents > 0 {
		_, err := s.repo.AppendSale(ctx, domain.SaleRecord{
			ID:          xid.New("SALE"),
			Date:        now,
			BranchID:    created.BranchID,
			Type:        domain.SaleTypeServiceAdvance,
			Description: fmt.Sprintf("Anticipo Orden %s", created.ID),
			AmountCents: created.AdvanceCents,
			Method:      created.PaymentMethod,
			OrderID:     created.ID,
			MachineID:   created.MachineID,
		})
		if err != nil {
			return domain.Order{}, err
		}
	}

	s.directory.Invalidate(ctx)
	s.logActivity(ctx, created.BranchID, "ORDER_CREATED", fmt.Sprintf("Orden %s recibida", created.ID))
	return *created, nil
}

// stampRegistrationBranch records the creating branch as the customer's
// registration branch on their first order. Later orders never move it.
func (s *Service) stampRegistrationBranch(ctx context.Context, rawPhone string, branchID string) {
	phone := normalizePhone(rawPhone)
	if phone == "" {
		return
	}

	override, err := s.repo.GetCustomerOverride(ctx, phone)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return
	}
	if override != nil && override.RegistrationBranchID != "" {
		return
	}

	patched := domain.CustomerOverride{}
	if override != nil {
		patched = *override
	}
	patched.RegistrationBranchID = branchID
	if err := s.repo.UpsertCustomerOverride(ctx, phone, patched); err != nil {
		// Best effort: a missing stamp falls back to earliest-order
		// resolution in the customer view.
		return
	}
}

// AdvanceOrderStatus moves the order to the next status in the fixed
// sequence. Orders already DELIVERED cannot advance, and entering
// DELIVERED requires a settled balance.
func (s *Service) AdvanceOrderStatus(ctx context.Context, orderID string) (domain.Order, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}

	idx := domain.OrderStatusIndex(order.Status)
	if idx < 0 || idx >= len(domain.OrderStatuses)-1 {
		return domain.Order{}, fmt.Errorf("order %s is already %s: %w", orderID, order.Status, store.ErrInvalidOperation)
	}

	next := domain.OrderStatuses[idx+1]
	if next == domain.OrderStatusDelivered && order.BalanceDueCents > 0 {
		return domain.Order{}, fmt.Errorf("order %s has %d cents outstanding: %w", orderID, order.BalanceDueCents, store.ErrPaymentRequired)
	}

	user := "Sistema"
	if actor, ok := ActorFromContext(ctx); ok {
		user = actor.Username
	}

	order.Status = next
	order.StatusHistory = append(order.StatusHistory, domain.StatusChange{
		Status:    next,
		Timestamp: time.Now().UTC(),
		User:      user,
	})

	updated, err := s.repo.UpdateOrder(ctx, *order)
	if err != nil {
		return domain.Order{}, err
	}

	s.logActivity(ctx, updated.BranchID, "ORDER_STATUS", fmt.Sprintf("Orden %s a %s", updated.ID, next))
	return *updated, nil
}

// ApplyOrderPayment collects money against an open balance. The payment
// must be positive and no larger than the balance due; the matching
// service_payment ledger entry is appended before the order is updated.
func (s *Service) ApplyOrderPayment(ctx context.Context, orderID string, req domain.OrderPaymentRequest) (domain.Order, error) {
	if req.AmountCents <= 0 {
		return domain.Order{}, fmt.Errorf("payment must be positive: %w", store.ErrInvalidOperation)
	}
	if req.Method == "" {
		req.Method = domain.PaymentMethodCash
	}

	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order.BalanceDueCents == 0 {
		return domain.Order{}, fmt.Errorf("order %s is already settled: %w", orderID, store.ErrInvalidOperation)
	}
	if req.AmountCents > order.BalanceDueCents {
		return domain.Order{}, fmt.Errorf("payment %d exceeds balance %d: %w", req.AmountCents, order.BalanceDueCents, store.ErrExcessPayment)
	}

	_, err = s.repo.AppendSale(ctx, domain.SaleRecord{
		ID:          xid.New("SALE"),
		Date:        time.Now().UTC(),
		BranchID:    order.BranchID,
		Type:        domain.SaleTypeServicePayment,
		Description: fmt.Sprintf("Pago Saldo Orden %s", order.ID),
		AmountCents: req.AmountCents,
		Method:      req.Method,
		OrderID:     order.ID,
	})
	if err != nil {
		return domain.Order{}, err
	}

	order.BalanceDueCents -= req.AmountCents
	order.AdvanceCents += req.AmountCents

	updated, err := s.repo.UpdateOrder(ctx, *order)
	if err != nil {
		return domain.Order{}, err
	}

	s.directory.Invalidate(ctx)
	s.logActivity(ctx, updated.BranchID, "ORDER_PAYMENT", fmt.Sprintf("Pago de %d para Orden %s (%s)", req.AmountCents, updated.ID, req.Method))
	return *updated, nil
}

func (s *Service) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return *order, nil
}

func (s *Service) ListOrders(ctx context.Context, branchID string) ([]domain.Order, error) {
	return s.repo.ListOrders(ctx, branchID)
}
