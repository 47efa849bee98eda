package service

import (
	"errors"
	"strings"
	"testing"

	"washouse/backend/internal/domain"
	"washouse/backend/internal/store"
)

func TestCreateBranchSeedsMachinesAndCatalog(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	branch, err := svc.CreateBranch(ctx, domain.BranchCreateRequest{Name: "Sucursal Norte"})
	if err != nil {
		t.Fatalf("create branch: %v", err)
	}
	if branch.ID != "sucursal-norte" {
		t.Fatalf("expected slug id, got %q", branch.ID)
	}

	machines, err := svc.ListMachines(ctx, branch.ID)
	if err != nil {
		t.Fatalf("list machines: %v", err)
	}
	if len(machines) != 6 {
		t.Fatalf("expected 6 seeded machines, got %d", len(machines))
	}

	items, err := svc.ListInventory(ctx, branch.ID)
	if err != nil {
		t.Fatalf("list inventory: %v", err)
	}
	if len(items) != len(domain.StandardCatalog()) {
		t.Fatalf("expected %d catalog items, got %d", len(domain.StandardCatalog()), len(items))
	}
}

func TestCreateBranchRequiresAdmin(t *testing.T) {
	svc := newTestService()

	_, err := svc.CreateBranch(hostCtx(), domain.BranchCreateRequest{Name: "No Permitida"})
	if err == nil || !strings.Contains(err.Error(), "admin role required") {
		t.Fatalf("expected admin gate, got %v", err)
	}
}

func TestDeleteDefaultBranchRejected(t *testing.T) {
	svc := newTestService()

	err := svc.DeleteBranch(adminCtx(), "main")
	if !errors.Is(err, store.ErrInvalidOperation) {
		t.Fatalf("expected ErrInvalidOperation for default branch, got %v", err)
	}
}

func TestDeleteBranchCascades(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	branch, err := svc.CreateBranch(ctx, domain.BranchCreateRequest{Name: "Efimera"})
	if err != nil {
		t.Fatalf("create branch: %v", err)
	}
	if _, err := svc.CreateOrder(ctx, domain.OrderCreateRequest{
		BranchID:     branch.ID,
		CustomerName: "Cliente",
		TotalCents:   1000,
	}); err != nil {
		t.Fatalf("create order: %v", err)
	}

	if err := svc.DeleteBranch(ctx, branch.ID); err != nil {
		t.Fatalf("delete branch: %v", err)
	}

	if _, err := svc.GetBranch(ctx, branch.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected branch gone, got %v", err)
	}
	orders, err := svc.ListOrders(ctx, branch.ID)
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if len(orders) != 0 {
		t.Fatalf("expected cascaded orders removed, got %d", len(orders))
	}
	machines, _ := svc.ListMachines(ctx, branch.ID)
	if len(machines) != 0 {
		t.Fatalf("expected cascaded machines removed, got %d", len(machines))
	}
}

func TestUpdateBranchPatchesFields(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	name := "Sucursal Principal Renovada"
	branch, err := svc.UpdateBranch(ctx, "main", domain.BranchUpdateRequest{Name: &name})
	if err != nil {
		t.Fatalf("update branch: %v", err)
	}
	if branch.Name != name {
		t.Fatalf("expected name patched, got %q", branch.Name)
	}
	if branch.ID != "main" {
		t.Fatalf("branch id must be immutable, got %q", branch.ID)
	}
}

func TestSetMachineStatus(t *testing.T) {
	svc := newTestService()
	ctx := hostCtx()

	machines, err := svc.ListMachines(ctx, "main")
	if err != nil || len(machines) == 0 {
		t.Fatalf("seeded machines expected, err=%v", err)
	}

	updated, err := svc.SetMachineStatus(ctx, machines[0].ID, domain.MachineStatusRunning)
	if err != nil {
		t.Fatalf("set status: %v", err)
	}
	if updated.Status != domain.MachineStatusRunning {
		t.Fatalf("expected running, got %s", updated.Status)
	}

	if _, err := svc.SetMachineStatus(ctx, machines[0].ID, "exploded"); !errors.Is(err, store.ErrInvalidOperation) {
		t.Fatalf("expected unknown status rejected, got %v", err)
	}
}

func TestLoadStandardCatalogIdempotent(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	before, _ := svc.ListInventory(ctx, "main")

	added, err := svc.LoadStandardCatalog(ctx, "main")
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	if len(added) != 0 {
		t.Fatalf("expected no duplicates on reload, got %d", len(added))
	}

	after, _ := svc.ListInventory(ctx, "main")
	if len(after) != len(before) {
		t.Fatalf("catalog reload changed item count: %d -> %d", len(before), len(after))
	}
}

func TestInventoryCRUDRequiresAdmin(t *testing.T) {
	svc := newTestService()
	ctx := hostCtx()

	_, err := svc.CreateInventoryItem(ctx, domain.InventoryItemCreateRequest{
		BranchID: "main", Name: "Prohibido", PriceCents: 100,
	})
	if err == nil || !strings.Contains(err.Error(), "admin role required") {
		t.Fatalf("expected admin gate on create, got %v", err)
	}

	if err := svc.DeleteInventoryItem(ctx, "whatever", "main"); err == nil || !strings.Contains(err.Error(), "admin role required") {
		t.Fatalf("expected admin gate on delete, got %v", err)
	}
}
