package store

import (
	"context"
	"errors"
	"time"

	"washouse/backend/internal/domain"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidOperation = errors.New("invalid operation")
	ErrExcessPayment    = errors.New("payment exceeds balance due")
	ErrPaymentRequired  = errors.New("balance due must be settled first")
	ErrShiftAlreadyOpen = errors.New("shift already open for branch")
)

// Repository is the persistence boundary for every entity the engine
// owns. Adapters must treat the two ledgers as append-only: no update or
// delete surface exists for SaleRecord and ExpenseRecord.
type Repository interface {
	CreateBranch(ctx context.Context, branch domain.Branch) (*domain.Branch, error)
	GetBranch(ctx context.Context, branchID string) (*domain.Branch, error)
	ListBranches(ctx context.Context) ([]domain.Branch, error)
	UpdateBranch(ctx context.Context, branch domain.Branch) (*domain.Branch, error)
	// DeleteBranchCascade removes the branch together with its machines,
	// inventory rows, shifts, sales and orders.
	DeleteBranchCascade(ctx context.Context, branchID string) error

	CreateMachine(ctx context.Context, machine domain.Machine) (*domain.Machine, error)
	ListMachines(ctx context.Context, branchID string) ([]domain.Machine, error)
	UpdateMachineStatus(ctx context.Context, machineID string, status string) (*domain.Machine, error)

	CreateOrder(ctx context.Context, order domain.Order) (*domain.Order, error)
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
	// ListOrders with an empty branchID returns orders across all branches.
	ListOrders(ctx context.Context, branchID string) ([]domain.Order, error)
	// UpdateOrder persists the mutable slice of an order: status, status
	// history, advance and balance. Everything else is immutable.
	UpdateOrder(ctx context.Context, order domain.Order) (*domain.Order, error)

	AppendSale(ctx context.Context, entry domain.SaleRecord) (*domain.SaleRecord, error)
	ListSales(ctx context.Context, branchID string, from, to time.Time) ([]domain.SaleRecord, error)
	AppendExpense(ctx context.Context, entry domain.ExpenseRecord) (*domain.ExpenseRecord, error)
	ListExpenses(ctx context.Context, branchID string, from, to time.Time) ([]domain.ExpenseRecord, error)

	// CreateShift fails with ErrShiftAlreadyOpen while the branch has an
	// open shift.
	CreateShift(ctx context.Context, shift domain.Shift) (*domain.Shift, error)
	GetActiveShift(ctx context.Context, branchID string) (*domain.Shift, error)
	// CloseShift persists the reconciled shift and clears the open-shift
	// pointer for its branch.
	CloseShift(ctx context.Context, shift domain.Shift) (*domain.Shift, error)
	ListShifts(ctx context.Context, branchID string) ([]domain.Shift, error)

	CreateInventoryItem(ctx context.Context, item domain.InventoryItem) (*domain.InventoryItem, error)
	GetInventoryItem(ctx context.Context, itemID string, branchID string) (*domain.InventoryItem, error)
	ListInventory(ctx context.Context, branchID string) ([]domain.InventoryItem, error)
	UpdateInventoryItem(ctx context.Context, item domain.InventoryItem) (*domain.InventoryItem, error)
	DeleteInventoryItem(ctx context.Context, itemID string, branchID string) error
	// AdjustStock applies delta and clamps the result at zero.
	AdjustStock(ctx context.Context, itemID string, branchID string, delta int) (*domain.InventoryItem, error)

	GetCustomerOverride(ctx context.Context, phoneKey string) (*domain.CustomerOverride, error)
	UpsertCustomerOverride(ctx context.Context, phoneKey string, override domain.CustomerOverride) error
	ListCustomerOverrides(ctx context.Context) (map[string]domain.CustomerOverride, error)

	AppendActivity(ctx context.Context, entry domain.ActivityLog) error
	ListActivity(ctx context.Context, branchID string, limit int) ([]domain.ActivityLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
