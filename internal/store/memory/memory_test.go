package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"washouse/backend/internal/domain"
	"washouse/backend/internal/store"
)

func TestListSalesWindowAndBranchFilter(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	entries := []domain.SaleRecord{
		{BranchID: "main", Type: domain.SaleTypeCounterSale, AmountCents: 100, Method: "cash", Date: base},
		{BranchID: "main", Type: domain.SaleTypeCounterSale, AmountCents: 200, Method: "cash", Date: base.Add(2 * time.Hour)},
		{BranchID: "norte", Type: domain.SaleTypeCounterSale, AmountCents: 300, Method: "cash", Date: base.Add(time.Hour)},
	}
	for _, entry := range entries {
		if _, err := s.AppendSale(ctx, entry); err != nil {
			t.Fatalf("append sale: %v", err)
		}
	}

	all, err := s.ListSales(ctx, "", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("zero bounds must be unbounded, got %d", len(all))
	}

	mainOnly, _ := s.ListSales(ctx, "main", time.Time{}, time.Time{})
	if len(mainOnly) != 2 {
		t.Fatalf("expected 2 main sales, got %d", len(mainOnly))
	}

	windowed, _ := s.ListSales(ctx, "main", base.Add(time.Hour), base.Add(3*time.Hour))
	if len(windowed) != 1 || windowed[0].AmountCents != 200 {
		t.Fatalf("window filter wrong: %+v", windowed)
	}
}

func TestAppendSaleStampsIDAndDate(t *testing.T) {
	s := New()

	sale, err := s.AppendSale(context.Background(), domain.SaleRecord{
		BranchID:    "main",
		Type:        domain.SaleTypeCounterSale,
		AmountCents: 100,
		Method:      "cash",
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if sale.ID == "" || sale.Date.IsZero() {
		t.Fatalf("expected id and date stamped: %+v", sale)
	}
}

func TestCreateShiftEnforcesSingleOpen(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	first := domain.Shift{ID: "SHIFT-1", BranchID: "main", Status: domain.ShiftStatusOpen, StartTime: time.Now().UTC()}
	if _, err := s.CreateShift(ctx, first); err != nil {
		t.Fatalf("first shift: %v", err)
	}

	second := domain.Shift{ID: "SHIFT-2", BranchID: "main", Status: domain.ShiftStatusOpen, StartTime: time.Now().UTC()}
	if _, err := s.CreateShift(ctx, second); !errors.Is(err, store.ErrShiftAlreadyOpen) {
		t.Fatalf("expected ErrShiftAlreadyOpen, got %v", err)
	}

	// A different branch is unaffected.
	other := domain.Shift{ID: "SHIFT-3", BranchID: "norte", Status: domain.ShiftStatusOpen, StartTime: time.Now().UTC()}
	if _, err := s.CreateShift(ctx, other); err != nil {
		t.Fatalf("other branch shift: %v", err)
	}
}

func TestAdjustStockClampsAndReports(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	items, err := s.ListInventory(ctx, "main")
	if err != nil || len(items) == 0 {
		t.Fatalf("seed inventory expected, err=%v", err)
	}
	item := items[0]

	adjusted, err := s.AdjustStock(ctx, item.ID, "main", -(item.Stock + 50))
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if adjusted.Stock != 0 {
		t.Fatalf("expected clamp at 0, got %d", adjusted.Stock)
	}

	adjusted, err = s.AdjustStock(ctx, item.ID, "main", 7)
	if err != nil {
		t.Fatalf("restock: %v", err)
	}
	if adjusted.Stock != 7 {
		t.Fatalf("expected 7 after restock, got %d", adjusted.Stock)
	}

	if _, err := s.AdjustStock(ctx, "missing", "main", 1); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateOrderPersistsLifecycleFieldsOnly(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	created, err := s.CreateOrder(ctx, domain.Order{
		ID:              "ORD-1",
		BranchID:        "main",
		CustomerName:    "Cliente",
		TotalCents:      10000,
		AdvanceCents:    2000,
		BalanceDueCents: 8000,
		Status:          domain.OrderStatusReceived,
		CreatedAt:       time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	mutated := *created
	mutated.Status = domain.OrderStatusWashing
	mutated.AdvanceCents = 5000
	mutated.BalanceDueCents = 5000
	mutated.CustomerName = "Otro Nombre"
	mutated.TotalCents = 99999

	updated, err := s.UpdateOrder(ctx, mutated)
	if err != nil {
		t.Fatalf("update order: %v", err)
	}
	if updated.Status != domain.OrderStatusWashing || updated.BalanceDueCents != 5000 {
		t.Fatalf("lifecycle fields not persisted: %+v", updated)
	}
	if updated.CustomerName != "Cliente" || updated.TotalCents != 10000 {
		t.Fatalf("immutable fields must not change: %+v", updated)
	}
}

func TestDeleteBranchCascadeRemovesDependents(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	if _, err := s.CreateBranch(ctx, domain.Branch{ID: "norte", Name: "Norte"}); err != nil {
		t.Fatalf("create branch: %v", err)
	}
	if _, err := s.CreateOrder(ctx, domain.Order{ID: "ORD-N", BranchID: "norte", CustomerName: "X", CreatedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("create order: %v", err)
	}
	if _, err := s.AppendSale(ctx, domain.SaleRecord{BranchID: "norte", Type: domain.SaleTypeCounterSale, AmountCents: 100, Method: "cash"}); err != nil {
		t.Fatalf("append sale: %v", err)
	}

	if err := s.DeleteBranchCascade(ctx, "norte"); err != nil {
		t.Fatalf("cascade: %v", err)
	}

	if _, err := s.GetBranch(ctx, "norte"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("branch should be gone, got %v", err)
	}
	orders, _ := s.ListOrders(ctx, "norte")
	if len(orders) != 0 {
		t.Fatalf("orders should be gone, got %d", len(orders))
	}
	sales, _ := s.ListSales(ctx, "norte", time.Time{}, time.Time{})
	if len(sales) != 0 {
		t.Fatalf("sales should be gone, got %d", len(sales))
	}
}

func TestActivityLogNewestFirstWithLimit(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Now().UTC()

	for i := 0; i < 5; i++ {
		err := s.AppendActivity(ctx, domain.ActivityLog{
			ID:        string(rune('a' + i)),
			Timestamp: base.Add(time.Duration(i) * time.Second),
			Action:    "TEST",
			BranchID:  "main",
		})
		if err != nil {
			t.Fatalf("append activity: %v", err)
		}
	}

	logs, err := s.ListActivity(ctx, "main", 3)
	if err != nil {
		t.Fatalf("list activity: %v", err)
	}
	if len(logs) != 3 {
		t.Fatalf("expected limit 3, got %d", len(logs))
	}
	if logs[0].Timestamp.Before(logs[1].Timestamp) {
		t.Fatalf("expected newest first")
	}
}
