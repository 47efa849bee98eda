// Package postgres implements the repository over PostgreSQL using the
// pgx driver through database/sql. Order line items and status history
// are stored as JSONB; both ledgers are insert-only tables.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"washouse/backend/internal/domain"
	"washouse/backend/internal/store"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreateBranch(ctx context.Context, branch domain.Branch) (*domain.Branch, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO branches (id, name, address, water_cost_cents, electricity_cost_cents, gas_cost_cents, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,now())
	`, branch.ID, branch.Name, branch.Address, branch.WaterCostPerCycleCents, branch.ElectricityCostPerCycleCents, branch.GasCostPerCycleCents)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidOperation
		}
		return nil, err
	}
	created := branch
	return &created, nil
}

func (s *Store) GetBranch(ctx context.Context, branchID string) (*domain.Branch, error) {
	var b domain.Branch
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, address, water_cost_cents, electricity_cost_cents, gas_cost_cents
		FROM branches
		WHERE id = $1
	`, branchID).Scan(&b.ID, &b.Name, &b.Address, &b.WaterCostPerCycleCents, &b.ElectricityCostPerCycleCents, &b.GasCostPerCycleCents)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (s *Store) ListBranches(ctx context.Context) ([]domain.Branch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, address, water_cost_cents, electricity_cost_cents, gas_cost_cents
		FROM branches
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	branches := make([]domain.Branch, 0, 8)
	for rows.Next() {
		var b domain.Branch
		if err := rows.Scan(&b.ID, &b.Name, &b.Address, &b.WaterCostPerCycleCents, &b.ElectricityCostPerCycleCents, &b.GasCostPerCycleCents); err != nil {
			return nil, err
		}
		branches = append(branches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return branches, nil
}

func (s *Store) UpdateBranch(ctx context.Context, branch domain.Branch) (*domain.Branch, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE branches
		SET name = $2, address = $3, water_cost_cents = $4, electricity_cost_cents = $5, gas_cost_cents = $6, updated_at = now()
		WHERE id = $1
	`, branch.ID, branch.Name, branch.Address, branch.WaterCostPerCycleCents, branch.ElectricityCostPerCycleCents, branch.GasCostPerCycleCents)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	updated := branch
	return &updated, nil
}

func (s *Store) DeleteBranchCascade(ctx context.Context, branchID string) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"machines", "inventory_items", "shifts", "sales", "expenses", "orders"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE branch_id = $1`, branchID); err != nil {
			return err
		}
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM branches WHERE id = $1`, branchID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}

	return tx.Commit()
}

func (s *Store) CreateMachine(ctx context.Context, machine domain.Machine) (*domain.Machine, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO machines (id, branch_id, name, kind, status)
		VALUES ($1,$2,$3,$4,$5)
	`, machine.ID, machine.BranchID, machine.Name, machine.Kind, machine.Status)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidOperation
		}
		return nil, err
	}
	created := machine
	return &created, nil
}

func (s *Store) ListMachines(ctx context.Context, branchID string) ([]domain.Machine, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, branch_id, name, kind, status
		FROM machines
		WHERE ($1 = '' OR branch_id = $1)
		ORDER BY name
	`, branchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	machines := make([]domain.Machine, 0, 16)
	for rows.Next() {
		var m domain.Machine
		if err := rows.Scan(&m.ID, &m.BranchID, &m.Name, &m.Kind, &m.Status); err != nil {
			return nil, err
		}
		machines = append(machines, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return machines, nil
}

func (s *Store) UpdateMachineStatus(ctx context.Context, machineID string, status string) (*domain.Machine, error) {
	var m domain.Machine
	err := s.db.QueryRowContext(ctx, `
		UPDATE machines
		SET status = $2
		WHERE id = $1
		RETURNING id, branch_id, name, kind, status
	`, machineID, status).Scan(&m.ID, &m.BranchID, &m.Name, &m.Kind, &m.Status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (s *Store) CreateOrder(ctx context.Context, order domain.Order) (*domain.Order, error) {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return nil, err
	}
	history, err := json.Marshal(order.StatusHistory)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO orders (
			id, branch_id, customer_name, customer_phone, items, total_cents,
			advance_cents, balance_due_cents, payment_method, status, machine_id,
			created_at, status_history
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, order.ID, order.BranchID, order.CustomerName, order.CustomerPhone, items,
		order.TotalCents, order.AdvanceCents, order.BalanceDueCents, order.PaymentMethod,
		order.Status, nullIfEmpty(order.MachineID), order.CreatedAt, history)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidOperation
		}
		return nil, err
	}
	created := order
	return &created, nil
}

const orderColumns = `
	id, branch_id, customer_name, customer_phone, items, total_cents,
	advance_cents, balance_due_cents, payment_method, status, machine_id,
	created_at, status_history
`

func scanOrder(row interface{ Scan(dest ...any) error }) (*domain.Order, error) {
	var o domain.Order
	var items, history []byte
	var machineID sql.NullString
	err := row.Scan(&o.ID, &o.BranchID, &o.CustomerName, &o.CustomerPhone, &items,
		&o.TotalCents, &o.AdvanceCents, &o.BalanceDueCents, &o.PaymentMethod,
		&o.Status, &machineID, &o.CreatedAt, &history)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(history, &o.StatusHistory); err != nil {
		return nil, err
	}
	if machineID.Valid {
		o.MachineID = machineID.String
	}
	o.CreatedAt = o.CreatedAt.UTC()
	return &o, nil
}

func (s *Store) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := scanOrder(s.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return order, nil
}

func (s *Store) ListOrders(ctx context.Context, branchID string) ([]domain.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE ($1 = '' OR branch_id = $1)
		ORDER BY created_at DESC, id
	`, branchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]domain.Order, 0, 64)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *Store) UpdateOrder(ctx context.Context, order domain.Order) (*domain.Order, error) {
	history, err := json.Marshal(order.StatusHistory)
	if err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $2, status_history = $3, advance_cents = $4, balance_due_cents = $5
		WHERE id = $1
	`, order.ID, order.Status, history, order.AdvanceCents, order.BalanceDueCents)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	updated := order
	return &updated, nil
}

func (s *Store) AppendSale(ctx context.Context, entry domain.SaleRecord) (*domain.SaleRecord, error) {
	if entry.Date.IsZero() {
		entry.Date = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sales (id, date, branch_id, type, description, amount_cents, method, order_id, machine_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, entry.ID, entry.Date, entry.BranchID, entry.Type, entry.Description,
		entry.AmountCents, entry.Method, nullIfEmpty(entry.OrderID), nullIfEmpty(entry.MachineID))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidOperation
		}
		return nil, err
	}
	created := entry
	return &created, nil
}

func (s *Store) ListSales(ctx context.Context, branchID string, from, to time.Time) ([]domain.SaleRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, date, branch_id, type, description, amount_cents, method, order_id, machine_id
		FROM sales
		WHERE ($1 = '' OR branch_id = $1)
			AND ($2::timestamptz IS NULL OR date >= $2)
			AND ($3::timestamptz IS NULL OR date <= $3)
		ORDER BY date DESC, id
	`, branchID, nullZeroTime(from), nullZeroTime(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.SaleRecord, 0, 64)
	for rows.Next() {
		var sale domain.SaleRecord
		var orderID, machineID sql.NullString
		if err := rows.Scan(&sale.ID, &sale.Date, &sale.BranchID, &sale.Type, &sale.Description, &sale.AmountCents, &sale.Method, &orderID, &machineID); err != nil {
			return nil, err
		}
		sale.Date = sale.Date.UTC()
		if orderID.Valid {
			sale.OrderID = orderID.String
		}
		if machineID.Valid {
			sale.MachineID = machineID.String
		}
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sales, nil
}

func (s *Store) AppendExpense(ctx context.Context, entry domain.ExpenseRecord) (*domain.ExpenseRecord, error) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO expenses (id, ts, branch_id, amount_cents, description, category, shift_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, entry.ID, entry.Timestamp, entry.BranchID, entry.AmountCents, entry.Description, entry.Category, nullIfEmpty(entry.ShiftID))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidOperation
		}
		return nil, err
	}
	created := entry
	return &created, nil
}

func (s *Store) ListExpenses(ctx context.Context, branchID string, from, to time.Time) ([]domain.ExpenseRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ts, branch_id, amount_cents, description, category, shift_id
		FROM expenses
		WHERE ($1 = '' OR branch_id = $1)
			AND ($2::timestamptz IS NULL OR ts >= $2)
			AND ($3::timestamptz IS NULL OR ts <= $3)
		ORDER BY ts DESC, id
	`, branchID, nullZeroTime(from), nullZeroTime(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	expenses := make([]domain.ExpenseRecord, 0, 32)
	for rows.Next() {
		var expense domain.ExpenseRecord
		var shiftID sql.NullString
		if err := rows.Scan(&expense.ID, &expense.Timestamp, &expense.BranchID, &expense.AmountCents, &expense.Description, &expense.Category, &shiftID); err != nil {
			return nil, err
		}
		expense.Timestamp = expense.Timestamp.UTC()
		if shiftID.Valid {
			expense.ShiftID = shiftID.String
		}
		expenses = append(expenses, expense)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return expenses, nil
}

const shiftColumns = `
	id, branch_id, opened_by, start_time, initial_cash_cents, status,
	ended_at, closed_by, total_sales_cents, cash_sales_cents, card_sales_cents,
	transfer_sales_cents, sale_count, total_expenses_cents,
	expected_drawer_cents, final_cash_cents, difference_cents
`

func scanShift(row interface{ Scan(dest ...any) error }) (*domain.Shift, error) {
	var sh domain.Shift
	var endedAt sql.NullTime
	var closedBy sql.NullString
	err := row.Scan(&sh.ID, &sh.BranchID, &sh.OpenedBy, &sh.StartTime, &sh.InitialCashCents,
		&sh.Status, &endedAt, &closedBy, &sh.TotalSalesCents, &sh.CashSalesCents,
		&sh.CardSalesCents, &sh.TransferSalesCents, &sh.SaleCount, &sh.TotalExpensesCents,
		&sh.ExpectedDrawerCents, &sh.FinalCashCents, &sh.DifferenceCents)
	if err != nil {
		return nil, err
	}
	sh.StartTime = sh.StartTime.UTC()
	if endedAt.Valid {
		t := endedAt.Time.UTC()
		sh.EndedAt = &t
	}
	if closedBy.Valid {
		sh.ClosedBy = closedBy.String
	}
	return &sh, nil
}

func (s *Store) CreateShift(ctx context.Context, shift domain.Shift) (*domain.Shift, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var open int
	err = tx.QueryRowContext(ctx, `
		SELECT count(*) FROM shifts WHERE branch_id = $1 AND status = $2
	`, shift.BranchID, domain.ShiftStatusOpen).Scan(&open)
	if err != nil {
		return nil, err
	}
	if open > 0 {
		return nil, store.ErrShiftAlreadyOpen
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO shifts (id, branch_id, opened_by, start_time, initial_cash_cents, status)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, shift.ID, shift.BranchID, shift.OpenedBy, shift.StartTime, shift.InitialCashCents, shift.Status)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrShiftAlreadyOpen
		}
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	created := shift
	return &created, nil
}

func (s *Store) GetActiveShift(ctx context.Context, branchID string) (*domain.Shift, error) {
	shift, err := scanShift(s.db.QueryRowContext(ctx, `
		SELECT `+shiftColumns+`
		FROM shifts
		WHERE branch_id = $1 AND status = $2
	`, branchID, domain.ShiftStatusOpen))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return shift, nil
}

func (s *Store) CloseShift(ctx context.Context, shift domain.Shift) (*domain.Shift, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE shifts
		SET status = $2, ended_at = $3, closed_by = $4, total_sales_cents = $5,
			cash_sales_cents = $6, card_sales_cents = $7, transfer_sales_cents = $8,
			sale_count = $9, total_expenses_cents = $10, expected_drawer_cents = $11,
			final_cash_cents = $12, difference_cents = $13
		WHERE id = $1 AND status = $14
	`, shift.ID, shift.Status, nullTime(shift.EndedAt), nullIfEmpty(shift.ClosedBy),
		shift.TotalSalesCents, shift.CashSalesCents, shift.CardSalesCents,
		shift.TransferSalesCents, shift.SaleCount, shift.TotalExpensesCents,
		shift.ExpectedDrawerCents, shift.FinalCashCents, shift.DifferenceCents,
		domain.ShiftStatusOpen)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrInvalidOperation
	}
	closed := shift
	return &closed, nil
}

func (s *Store) ListShifts(ctx context.Context, branchID string) ([]domain.Shift, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+shiftColumns+`
		FROM shifts
		WHERE ($1 = '' OR branch_id = $1)
		ORDER BY start_time DESC, id
	`, branchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	shifts := make([]domain.Shift, 0, 32)
	for rows.Next() {
		shift, err := scanShift(rows)
		if err != nil {
			return nil, err
		}
		shifts = append(shifts, *shift)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return shifts, nil
}

func (s *Store) CreateInventoryItem(ctx context.Context, item domain.InventoryItem) (*domain.InventoryItem, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO inventory_items (id, branch_id, name, price_cents, cost_cents, stock, icon)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, item.ID, item.BranchID, item.Name, item.PriceCents, item.CostCents, item.Stock, item.Icon)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidOperation
		}
		return nil, err
	}
	created := item
	return &created, nil
}

func (s *Store) GetInventoryItem(ctx context.Context, itemID string, branchID string) (*domain.InventoryItem, error) {
	var item domain.InventoryItem
	err := s.db.QueryRowContext(ctx, `
		SELECT id, branch_id, name, price_cents, cost_cents, stock, icon
		FROM inventory_items
		WHERE id = $1 AND branch_id = $2
	`, itemID, branchID).Scan(&item.ID, &item.BranchID, &item.Name, &item.PriceCents, &item.CostCents, &item.Stock, &item.Icon)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListInventory(ctx context.Context, branchID string) ([]domain.InventoryItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, branch_id, name, price_cents, cost_cents, stock, icon
		FROM inventory_items
		WHERE ($1 = '' OR branch_id = $1)
		ORDER BY name
	`, branchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.InventoryItem, 0, 32)
	for rows.Next() {
		var item domain.InventoryItem
		if err := rows.Scan(&item.ID, &item.BranchID, &item.Name, &item.PriceCents, &item.CostCents, &item.Stock, &item.Icon); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) UpdateInventoryItem(ctx context.Context, item domain.InventoryItem) (*domain.InventoryItem, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE inventory_items
		SET name = $3, price_cents = $4, cost_cents = $5, stock = $6, icon = $7
		WHERE id = $1 AND branch_id = $2
	`, item.ID, item.BranchID, item.Name, item.PriceCents, item.CostCents, item.Stock, item.Icon)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	updated := item
	return &updated, nil
}

func (s *Store) DeleteInventoryItem(ctx context.Context, itemID string, branchID string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM inventory_items WHERE id = $1 AND branch_id = $2
	`, itemID, branchID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) AdjustStock(ctx context.Context, itemID string, branchID string, delta int) (*domain.InventoryItem, error) {
	var item domain.InventoryItem
	err := s.db.QueryRowContext(ctx, `
		UPDATE inventory_items
		SET stock = GREATEST(stock + $3, 0)
		WHERE id = $1 AND branch_id = $2
		RETURNING id, branch_id, name, price_cents, cost_cents, stock, icon
	`, itemID, branchID, delta).Scan(&item.ID, &item.BranchID, &item.Name, &item.PriceCents, &item.CostCents, &item.Stock, &item.Icon)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetCustomerOverride(ctx context.Context, phoneKey string) (*domain.CustomerOverride, error) {
	var o domain.CustomerOverride
	err := s.db.QueryRowContext(ctx, `
		SELECT name, notes, weight_kg, height_cm, registration_branch_id
		FROM customer_overrides
		WHERE phone = $1
	`, phoneKey).Scan(&o.Name, &o.Notes, &o.WeightKg, &o.HeightCm, &o.RegistrationBranchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

func (s *Store) UpsertCustomerOverride(ctx context.Context, phoneKey string, override domain.CustomerOverride) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customer_overrides (phone, name, notes, weight_kg, height_cm, registration_branch_id, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,now())
		ON CONFLICT (phone)
		DO UPDATE SET name = EXCLUDED.name, notes = EXCLUDED.notes,
			weight_kg = EXCLUDED.weight_kg, height_cm = EXCLUDED.height_cm,
			registration_branch_id = EXCLUDED.registration_branch_id, updated_at = now()
	`, phoneKey, override.Name, override.Notes, override.WeightKg, override.HeightCm, override.RegistrationBranchID)
	return err
}

func (s *Store) ListCustomerOverrides(ctx context.Context) (map[string]domain.CustomerOverride, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT phone, name, notes, weight_kg, height_cm, registration_branch_id
		FROM customer_overrides
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	overrides := make(map[string]domain.CustomerOverride)
	for rows.Next() {
		var phone string
		var o domain.CustomerOverride
		if err := rows.Scan(&phone, &o.Name, &o.Notes, &o.WeightKg, &o.HeightCm, &o.RegistrationBranchID); err != nil {
			return nil, err
		}
		overrides[phone] = o
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return overrides, nil
}

func (s *Store) AppendActivity(ctx context.Context, entry domain.ActivityLog) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activity_logs (id, ts, action, details, username, branch_id)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, entry.ID, entry.Timestamp, entry.Action, entry.Details, entry.User, nullIfEmpty(entry.BranchID))
	return err
}

func (s *Store) ListActivity(ctx context.Context, branchID string, limit int) ([]domain.ActivityLog, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ts, action, details, username, branch_id
		FROM activity_logs
		WHERE ($1 = '' OR branch_id = $1)
		ORDER BY ts DESC, id
		LIMIT $2
	`, branchID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.ActivityLog, 0, limit)
	for rows.Next() {
		var entry domain.ActivityLog
		var branch sql.NullString
		if err := rows.Scan(&entry.ID, &entry.Timestamp, &entry.Action, &entry.Details, &entry.User, &branch); err != nil {
			return nil, err
		}
		entry.Timestamp = entry.Timestamp.UTC()
		if branch.Valid {
			entry.BranchID = branch.String
		}
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrInvalidOperation
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 8)
	for rows.Next() {
		var u domain.UserAccount
		if err := rows.Scan(&u.Username, &u.Password, &u.Role, &u.Active, &u.CreatedAt); err != nil {
			return nil, err
		}
		u.CreatedAt = u.CreatedAt.UTC()
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password = $2 WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullTime(val *time.Time) any {
	if val == nil {
		return nil
	}
	return *val
}

func nullZeroTime(val time.Time) any {
	if val.IsZero() {
		return nil
	}
	return val
}
