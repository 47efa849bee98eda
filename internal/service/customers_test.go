package service

import (
	"errors"
	"testing"

	"washouse/backend/internal/domain"
	"washouse/backend/internal/store"
)

func TestListCustomersFoldsOrdersByPhone(t *testing.T) {
	svc := newTestService()
	ctx := hostCtx()

	if _, err := svc.CreateOrder(ctx, domain.OrderCreateRequest{
		CustomerName:  "Laura",
		CustomerPhone: "555-0101",
		TotalCents:    10000,
		AdvanceCents:  10000,
	}); err != nil {
		t.Fatalf("first order: %v", err)
	}
	if _, err := svc.CreateOrder(ctx, domain.OrderCreateRequest{
		CustomerName:  "Laura G.",
		CustomerPhone: "(555) 0101",
		TotalCents:    5000,
	}); err != nil {
		t.Fatalf("second order: %v", err)
	}

	customers, err := svc.ListCustomers(ctx, "")
	if err != nil {
		t.Fatalf("list customers: %v", err)
	}
	if len(customers) != 1 {
		t.Fatalf("expected phone variants folded into 1 customer, got %d", len(customers))
	}

	c := customers[0]
	if c.Phone != "5550101" {
		t.Fatalf("expected digits-only key, got %q", c.Phone)
	}
	if c.VisitCount != 2 {
		t.Fatalf("expected 2 visits, got %d", c.VisitCount)
	}
	if c.TotalSpentCents != 15000 {
		t.Fatalf("expected total spent 15000, got %d", c.TotalSpentCents)
	}
	if c.DebtCents != 5000 {
		t.Fatalf("expected debt 5000, got %d", c.DebtCents)
	}
	if c.RegistrationBranchID != "main" {
		t.Fatalf("expected registration branch main, got %q", c.RegistrationBranchID)
	}
}

func TestGetCustomerNormalizesPhone(t *testing.T) {
	svc := newTestService()
	ctx := hostCtx()

	if _, err := svc.CreateOrder(ctx, domain.OrderCreateRequest{
		CustomerName:  "Jorge",
		CustomerPhone: "5550202",
		TotalCents:    1000,
	}); err != nil {
		t.Fatalf("create order: %v", err)
	}

	c, err := svc.GetCustomer(ctx, "(555) 02-02")
	if err != nil {
		t.Fatalf("get customer: %v", err)
	}
	if c.Name != "Jorge" {
		t.Fatalf("expected Jorge, got %q", c.Name)
	}

	if _, err := svc.GetCustomer(ctx, "0000000"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown phone, got %v", err)
	}
}

func TestUpdateCustomerOverridePatchesView(t *testing.T) {
	svc := newTestService()
	ctx := hostCtx()

	if _, err := svc.CreateOrder(ctx, domain.OrderCreateRequest{
		CustomerName:  "Original",
		CustomerPhone: "5550303",
		TotalCents:    1000,
	}); err != nil {
		t.Fatalf("create order: %v", err)
	}

	name := "Nombre Corregido"
	notes := "Prefiere entrega a domicilio"
	c, err := svc.UpdateCustomerOverride(ctx, "5550303", domain.CustomerOverrideRequest{
		Name:  &name,
		Notes: &notes,
	})
	if err != nil {
		t.Fatalf("update override: %v", err)
	}
	if c.Name != name {
		t.Fatalf("expected override name, got %q", c.Name)
	}
	if c.Notes != notes {
		t.Fatalf("expected notes patched, got %q", c.Notes)
	}
	// Derived aggregates are not disturbed by the patch.
	if c.TotalSpentCents != 1000 || c.VisitCount != 1 {
		t.Fatalf("aggregates changed by override: %+v", c)
	}
}

func TestUpdateCustomerOverrideValidatesBranch(t *testing.T) {
	svc := newTestService()
	ctx := hostCtx()

	if _, err := svc.CreateOrder(ctx, domain.OrderCreateRequest{
		CustomerName:  "Mudanza",
		CustomerPhone: "5550404",
		TotalCents:    1000,
	}); err != nil {
		t.Fatalf("create order: %v", err)
	}

	bogus := "no-existe"
	_, err := svc.UpdateCustomerOverride(ctx, "5550404", domain.CustomerOverrideRequest{
		RegistrationBranchID: &bogus,
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected unknown branch rejected, got %v", err)
	}
}

func TestListCustomersFiltersByRegistrationBranch(t *testing.T) {
	svc := newTestService()
	admin := adminCtx()

	branch, err := svc.CreateBranch(admin, domain.BranchCreateRequest{Name: "Sur"})
	if err != nil {
		t.Fatalf("create branch: %v", err)
	}

	ctx := hostCtx()
	if _, err := svc.CreateOrder(ctx, domain.OrderCreateRequest{
		BranchID:      branch.ID,
		CustomerName:  "Del Sur",
		CustomerPhone: "5550505",
		TotalCents:    1000,
	}); err != nil {
		t.Fatalf("order at sur: %v", err)
	}
	if _, err := svc.CreateOrder(ctx, domain.OrderCreateRequest{
		CustomerName:  "Del Centro",
		CustomerPhone: "5550606",
		TotalCents:    1000,
	}); err != nil {
		t.Fatalf("order at main: %v", err)
	}

	southern, err := svc.ListCustomers(ctx, branch.ID)
	if err != nil {
		t.Fatalf("list filtered: %v", err)
	}
	if len(southern) != 1 || southern[0].Phone != "5550505" {
		t.Fatalf("expected only the sur customer, got %+v", southern)
	}
}
