package memory

import (
	"context"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"washouse/backend/internal/domain"
	"washouse/backend/internal/store"
	"washouse/backend/internal/xid"
)

// Store is the in-memory Repository adapter used by tests and dev mode.
// All access is serialized through one mutex, which also matches the
// single-writer-per-branch discipline of the engine.
type Store struct {
	mu                sync.RWMutex
	branchesByID      map[string]domain.Branch
	machinesByID      map[string]domain.Machine
	ordersByID        map[string]*domain.Order
	orderIDs          []string
	sales             []domain.SaleRecord
	expenses          []domain.ExpenseRecord
	shiftsByID        map[string]domain.Shift
	openShiftByBranch map[string]string
	inventoryByID     map[string]domain.InventoryItem
	overridesByPhone  map[string]domain.CustomerOverride
	activityLogs      []domain.ActivityLog
	usersByUsername   map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_HOST_PASSWORD
// environment variables. If unset, hardcoded dev defaults are used with a
// warning printed to stdout. These credentials are never used in
// production (the backend uses PostgreSQL when DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	hostPwd := envOr("SEED_HOST_PASSWORD", "host123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_HOST_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_HOST_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"host", hostPwd, "host"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// NewSeeded returns a store pre-loaded with the main branch, its default
// machines, the standard supplies catalog and dev user accounts.
func NewSeeded() *Store {
	s := New()

	main := domain.Branch{
		ID:                           "main",
		Name:                         "Sucursal Principal",
		Address:                      "Calle Principal 123",
		WaterCostPerCycleCents:       1500,
		ElectricityCostPerCycleCents: 2000,
		GasCostPerCycleCents:         3000,
	}
	s.branchesByID[main.ID] = main

	for _, m := range domain.DefaultMachines() {
		m.ID = xid.New("MACH")
		m.BranchID = main.ID
		s.machinesByID[m.ID] = m
	}

	for _, item := range domain.StandardCatalog() {
		item.ID = xid.New("ITEM")
		item.BranchID = main.ID
		s.inventoryByID[item.ID] = item
	}

	s.usersByUsername = seedUsers()
	return s
}

// New returns an empty store with no seed data.
func New() *Store {
	return &Store{
		branchesByID:      make(map[string]domain.Branch),
		machinesByID:      make(map[string]domain.Machine),
		ordersByID:        make(map[string]*domain.Order),
		orderIDs:          make([]string, 0, 64),
		sales:             make([]domain.SaleRecord, 0, 128),
		expenses:          make([]domain.ExpenseRecord, 0, 64),
		shiftsByID:        make(map[string]domain.Shift),
		openShiftByBranch: make(map[string]string),
		inventoryByID:     make(map[string]domain.InventoryItem),
		overridesByPhone:  make(map[string]domain.CustomerOverride),
		activityLogs:      make([]domain.ActivityLog, 0, 128),
		usersByUsername:   make(map[string]domain.UserAccount),
	}
}

func (s *Store) CreateBranch(_ context.Context, branch domain.Branch) (*domain.Branch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if branch.ID == "" || branch.Name == "" {
		return nil, store.ErrInvalidOperation
	}
	if _, exists := s.branchesByID[branch.ID]; exists {
		return nil, store.ErrInvalidOperation
	}

	s.branchesByID[branch.ID] = branch
	created := branch
	return &created, nil
}

func (s *Store) GetBranch(_ context.Context, branchID string) (*domain.Branch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	branch, exists := s.branchesByID[branchID]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyBranch := branch
	return &copyBranch, nil
}

func (s *Store) ListBranches(_ context.Context) ([]domain.Branch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	branches := make([]domain.Branch, 0, len(s.branchesByID))
	for _, b := range s.branchesByID {
		branches = append(branches, b)
	}
	slices.SortFunc(branches, func(a, b domain.Branch) int {
		return cmpString(a.Name, b.Name)
	})
	return branches, nil
}

func (s *Store) UpdateBranch(_ context.Context, branch domain.Branch) (*domain.Branch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if branch.ID == "" || branch.Name == "" {
		return nil, store.ErrInvalidOperation
	}
	if _, exists := s.branchesByID[branch.ID]; !exists {
		return nil, store.ErrNotFound
	}

	s.branchesByID[branch.ID] = branch
	updated := branch
	return &updated, nil
}

func (s *Store) DeleteBranchCascade(_ context.Context, branchID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.branchesByID[branchID]; !exists {
		return store.ErrNotFound
	}
	delete(s.branchesByID, branchID)

	for id, m := range s.machinesByID {
		if m.BranchID == branchID {
			delete(s.machinesByID, id)
		}
	}
	for id, item := range s.inventoryByID {
		if item.BranchID == branchID {
			delete(s.inventoryByID, id)
		}
	}
	for id, shift := range s.shiftsByID {
		if shift.BranchID == branchID {
			delete(s.shiftsByID, id)
		}
	}
	delete(s.openShiftByBranch, branchID)

	kept := s.sales[:0]
	for _, sale := range s.sales {
		if sale.BranchID != branchID {
			kept = append(kept, sale)
		}
	}
	s.sales = kept

	keptExpenses := s.expenses[:0]
	for _, e := range s.expenses {
		if e.BranchID != branchID {
			keptExpenses = append(keptExpenses, e)
		}
	}
	s.expenses = keptExpenses

	keptOrders := s.orderIDs[:0]
	for _, id := range s.orderIDs {
		if order := s.ordersByID[id]; order != nil && order.BranchID == branchID {
			delete(s.ordersByID, id)
			continue
		}
		keptOrders = append(keptOrders, id)
	}
	s.orderIDs = keptOrders

	return nil
}

func (s *Store) CreateMachine(_ context.Context, machine domain.Machine) (*domain.Machine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if machine.ID == "" {
		machine.ID = xid.New("MACH")
	}
	if machine.BranchID == "" || machine.Name == "" {
		return nil, store.ErrInvalidOperation
	}
	if machine.Status == "" {
		machine.Status = domain.MachineStatusAvailable
	}

	s.machinesByID[machine.ID] = machine
	created := machine
	return &created, nil
}

func (s *Store) ListMachines(_ context.Context, branchID string) ([]domain.Machine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	machines := make([]domain.Machine, 0, 8)
	for _, m := range s.machinesByID {
		if branchID != "" && m.BranchID != branchID {
			continue
		}
		machines = append(machines, m)
	}
	slices.SortFunc(machines, func(a, b domain.Machine) int {
		return cmpString(a.Name, b.Name)
	})
	return machines, nil
}

func (s *Store) UpdateMachineStatus(_ context.Context, machineID string, status string) (*domain.Machine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	machine, exists := s.machinesByID[machineID]
	if !exists {
		return nil, store.ErrNotFound
	}
	machine.Status = status
	s.machinesByID[machineID] = machine
	updated := machine
	return &updated, nil
}

func (s *Store) CreateOrder(_ context.Context, order domain.Order) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if order.ID == "" || order.BranchID == "" {
		return nil, store.ErrInvalidOperation
	}
	if _, exists := s.ordersByID[order.ID]; exists {
		return nil, store.ErrInvalidOperation
	}

	stored := order
	stored.Items = slices.Clone(order.Items)
	stored.StatusHistory = slices.Clone(order.StatusHistory)
	s.ordersByID[order.ID] = &stored
	s.orderIDs = append(s.orderIDs, order.ID)

	created := copyOrder(&stored)
	return &created, nil
}

func (s *Store) GetOrder(_ context.Context, orderID string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, exists := s.ordersByID[orderID]
	if !exists {
		return nil, store.ErrNotFound
	}
	copied := copyOrder(order)
	return &copied, nil
}

func (s *Store) ListOrders(_ context.Context, branchID string) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orders := make([]domain.Order, 0, len(s.orderIDs))
	for _, id := range s.orderIDs {
		order := s.ordersByID[id]
		if order == nil {
			continue
		}
		if branchID != "" && order.BranchID != branchID {
			continue
		}
		orders = append(orders, copyOrder(order))
	}
	return orders, nil
}

func (s *Store) UpdateOrder(_ context.Context, order domain.Order) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.ordersByID[order.ID]
	if !exists {
		return nil, store.ErrNotFound
	}

	// Only the mutable slice is written back.
	existing.Status = order.Status
	existing.StatusHistory = slices.Clone(order.StatusHistory)
	existing.AdvanceCents = order.AdvanceCents
	existing.BalanceDueCents = order.BalanceDueCents

	updated := copyOrder(existing)
	return &updated, nil
}

func (s *Store) AppendSale(_ context.Context, entry domain.SaleRecord) (*domain.SaleRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("SALE")
	}
	if entry.Date.IsZero() {
		entry.Date = time.Now().UTC()
	}
	s.sales = append(s.sales, entry)
	appended := entry
	return &appended, nil
}

func (s *Store) ListSales(_ context.Context, branchID string, from, to time.Time) ([]domain.SaleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.SaleRecord, 0, len(s.sales))
	for _, sale := range s.sales {
		if branchID != "" && sale.BranchID != branchID {
			continue
		}
		if !inWindow(sale.Date, from, to) {
			continue
		}
		result = append(result, sale)
	}
	return result, nil
}

func (s *Store) AppendExpense(_ context.Context, entry domain.ExpenseRecord) (*domain.ExpenseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("EXP")
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	s.expenses = append(s.expenses, entry)
	appended := entry
	return &appended, nil
}

func (s *Store) ListExpenses(_ context.Context, branchID string, from, to time.Time) ([]domain.ExpenseRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.ExpenseRecord, 0, len(s.expenses))
	for _, e := range s.expenses {
		if branchID != "" && e.BranchID != branchID {
			continue
		}
		if !inWindow(e.Timestamp, from, to) {
			continue
		}
		result = append(result, e)
	}
	return result, nil
}

func (s *Store) CreateShift(_ context.Context, shift domain.Shift) (*domain.Shift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if shift.ID == "" || shift.BranchID == "" {
		return nil, store.ErrInvalidOperation
	}
	if _, open := s.openShiftByBranch[shift.BranchID]; open {
		return nil, store.ErrShiftAlreadyOpen
	}

	shift.Status = domain.ShiftStatusOpen
	s.shiftsByID[shift.ID] = shift
	s.openShiftByBranch[shift.BranchID] = shift.ID
	created := shift
	return &created, nil
}

func (s *Store) GetActiveShift(_ context.Context, branchID string) (*domain.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	shiftID, open := s.openShiftByBranch[branchID]
	if !open {
		return nil, store.ErrNotFound
	}
	shift := s.shiftsByID[shiftID]
	copyShift := shift
	return &copyShift, nil
}

func (s *Store) CloseShift(_ context.Context, shift domain.Shift) (*domain.Shift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.shiftsByID[shift.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if existing.Status != domain.ShiftStatusOpen {
		return nil, store.ErrInvalidOperation
	}

	shift.Status = domain.ShiftStatusClosed
	s.shiftsByID[shift.ID] = shift
	delete(s.openShiftByBranch, shift.BranchID)
	closed := shift
	return &closed, nil
}

func (s *Store) ListShifts(_ context.Context, branchID string) ([]domain.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	shifts := make([]domain.Shift, 0, len(s.shiftsByID))
	for _, shift := range s.shiftsByID {
		if branchID != "" && shift.BranchID != branchID {
			continue
		}
		shifts = append(shifts, shift)
	}
	slices.SortFunc(shifts, func(a, b domain.Shift) int {
		if a.StartTime.Equal(b.StartTime) {
			return cmpString(b.ID, a.ID)
		}
		if a.StartTime.After(b.StartTime) {
			return -1
		}
		return 1
	})
	return shifts, nil
}

func (s *Store) CreateInventoryItem(_ context.Context, item domain.InventoryItem) (*domain.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.ID == "" {
		item.ID = xid.New("ITEM")
	}
	if item.BranchID == "" || item.Name == "" || item.PriceCents < 0 || item.Stock < 0 {
		return nil, store.ErrInvalidOperation
	}

	s.inventoryByID[item.ID] = item
	created := item
	return &created, nil
}

func (s *Store) GetInventoryItem(_ context.Context, itemID string, branchID string) (*domain.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, exists := s.inventoryByID[itemID]
	if !exists || (branchID != "" && item.BranchID != branchID) {
		return nil, store.ErrNotFound
	}
	copyItem := item
	return &copyItem, nil
}

func (s *Store) ListInventory(_ context.Context, branchID string) ([]domain.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]domain.InventoryItem, 0, len(s.inventoryByID))
	for _, item := range s.inventoryByID {
		if branchID != "" && item.BranchID != branchID {
			continue
		}
		items = append(items, item)
	}
	slices.SortFunc(items, func(a, b domain.InventoryItem) int {
		return cmpString(a.Name, b.Name)
	})
	return items, nil
}

func (s *Store) UpdateInventoryItem(_ context.Context, item domain.InventoryItem) (*domain.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.inventoryByID[item.ID]
	if !exists || existing.BranchID != item.BranchID {
		return nil, store.ErrNotFound
	}
	if item.Name == "" || item.PriceCents < 0 || item.Stock < 0 {
		return nil, store.ErrInvalidOperation
	}

	s.inventoryByID[item.ID] = item
	updated := item
	return &updated, nil
}

func (s *Store) DeleteInventoryItem(_ context.Context, itemID string, branchID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, exists := s.inventoryByID[itemID]
	if !exists || (branchID != "" && item.BranchID != branchID) {
		return store.ErrNotFound
	}
	delete(s.inventoryByID, itemID)
	return nil
}

func (s *Store) AdjustStock(_ context.Context, itemID string, branchID string, delta int) (*domain.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, exists := s.inventoryByID[itemID]
	if !exists || (branchID != "" && item.BranchID != branchID) {
		return nil, store.ErrNotFound
	}

	item.Stock += delta
	if item.Stock < 0 {
		item.Stock = 0
	}
	s.inventoryByID[itemID] = item
	adjusted := item
	return &adjusted, nil
}

func (s *Store) GetCustomerOverride(_ context.Context, phoneKey string) (*domain.CustomerOverride, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	override, exists := s.overridesByPhone[phoneKey]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyOverride := override
	return &copyOverride, nil
}

func (s *Store) UpsertCustomerOverride(_ context.Context, phoneKey string, override domain.CustomerOverride) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if phoneKey == "" {
		return store.ErrInvalidOperation
	}
	s.overridesByPhone[phoneKey] = override
	return nil
}

func (s *Store) ListCustomerOverrides(_ context.Context) (map[string]domain.CustomerOverride, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	overrides := make(map[string]domain.CustomerOverride, len(s.overridesByPhone))
	for phone, o := range s.overridesByPhone {
		overrides[phone] = o
	}
	return overrides, nil
}

func (s *Store) AppendActivity(_ context.Context, entry domain.ActivityLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("LOG")
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	s.activityLogs = append(s.activityLogs, entry)
	return nil
}

func (s *Store) ListActivity(_ context.Context, branchID string, limit int) ([]domain.ActivityLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.ActivityLog, 0, len(s.activityLogs))
	for i := len(s.activityLogs) - 1; i >= 0; i-- {
		entry := s.activityLogs[i]
		if branchID != "" && entry.BranchID != branchID {
			continue
		}
		result = append(result, entry)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.Username == "" || user.Password == "" {
		return store.ErrInvalidOperation
	}
	if _, exists := s.usersByUsername[user.Username]; exists {
		return store.ErrInvalidOperation
	}
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, u := range s.usersByUsername {
		users = append(users, u)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func copyOrder(order *domain.Order) domain.Order {
	copied := *order
	copied.Items = slices.Clone(order.Items)
	copied.StatusHistory = slices.Clone(order.StatusHistory)
	return copied
}

func inWindow(ts time.Time, from, to time.Time) bool {
	if !from.IsZero() && ts.Before(from) {
		return false
	}
	if !to.IsZero() && ts.After(to) {
		return false
	}
	return true
}

func cmpString(a, b string) int {
	return strings.Compare(a, b)
}
