package domain

import "time"

// Branch is an independently operated laundry location. Its ID is a slug
// derived from the name at creation time and never changes afterwards.
type Branch struct {
	ID                           string `json:"id"`
	Name                         string `json:"name"`
	Address                      string `json:"address"`
	WaterCostPerCycleCents       int64  `json:"water_cost_per_cycle_cents"`
	ElectricityCostPerCycleCents int64  `json:"electricity_cost_per_cycle_cents"`
	GasCostPerCycleCents         int64  `json:"gas_cost_per_cycle_cents"`
}

type BranchCreateRequest struct {
	Name                         string `json:"name"`
	Address                      string `json:"address"`
	WaterCostPerCycleCents       int64  `json:"water_cost_per_cycle_cents"`
	ElectricityCostPerCycleCents int64  `json:"electricity_cost_per_cycle_cents"`
	GasCostPerCycleCents         int64  `json:"gas_cost_per_cycle_cents"`
}

type BranchUpdateRequest struct {
	Name                         *string `json:"name,omitempty"`
	Address                      *string `json:"address,omitempty"`
	WaterCostPerCycleCents       *int64  `json:"water_cost_per_cycle_cents,omitempty"`
	ElectricityCostPerCycleCents *int64  `json:"electricity_cost_per_cycle_cents,omitempty"`
	GasCostPerCycleCents         *int64  `json:"gas_cost_per_cycle_cents,omitempty"`
}

type Machine struct {
	ID       string `json:"id"`
	BranchID string `json:"branch_id"`
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Status   string `json:"status"`
}

const (
	MachineKindWasher = "washer"
	MachineKindDryer  = "dryer"
)

const (
	MachineStatusAvailable = "available"
	MachineStatusRunning   = "running"
	MachineStatusFinished  = "finished"
)

const (
	OrderStatusReceived  = "RECEIVED"
	OrderStatusWashing   = "WASHING"
	OrderStatusDrying    = "DRYING"
	OrderStatusIroning   = "IRONING"
	OrderStatusCompleted = "COMPLETED"
	OrderStatusDelivered = "DELIVERED"
)

// OrderStatuses is the fixed forward-only lifecycle of an order.
// DELIVERED is terminal.
var OrderStatuses = []string{
	OrderStatusReceived,
	OrderStatusWashing,
	OrderStatusDrying,
	OrderStatusIroning,
	OrderStatusCompleted,
	OrderStatusDelivered,
}

// OrderStatusIndex returns the position of status in the lifecycle, or -1
// if status is not a known order status.
func OrderStatusIndex(status string) int {
	for i, s := range OrderStatuses {
		if s == status {
			return i
		}
	}
	return -1
}

type OrderItem struct {
	ServiceID      string `json:"service_id"`
	Name           string `json:"name"`
	Qty            int    `json:"qty"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	SubtotalCents  int64  `json:"subtotal_cents"`
}

type StatusChange struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	User      string    `json:"user"`
}

type Order struct {
	ID              string         `json:"id"`
	BranchID        string         `json:"branch_id"`
	CustomerName    string         `json:"customer_name"`
	CustomerPhone   string         `json:"customer_phone"`
	Items           []OrderItem    `json:"items"`
	TotalCents      int64          `json:"total_cents"`
	AdvanceCents    int64          `json:"advance_cents"`
	BalanceDueCents int64          `json:"balance_due_cents"`
	PaymentMethod   string         `json:"payment_method"`
	Status          string         `json:"status"`
	MachineID       string         `json:"machine_id,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	StatusHistory   []StatusChange `json:"status_history"`
}

type OrderCreateRequest struct {
	BranchID      string      `json:"branch_id"`
	CustomerName  string      `json:"customer_name"`
	CustomerPhone string      `json:"customer_phone"`
	Items         []OrderItem `json:"items"`
	TotalCents    int64       `json:"total_cents"`
	AdvanceCents  int64       `json:"advance_cents"`
	PaymentMethod string      `json:"payment_method"`
	MachineID     string      `json:"machine_id,omitempty"`
}

type OrderPaymentRequest struct {
	AmountCents int64  `json:"amount_cents"`
	Method      string `json:"method"`
}

type OrderResponse struct {
	Order Order `json:"order"`
}

// Sale record types. Refund entries carry a negative amount; everything
// else is money in.
const (
	SaleTypeServiceAdvance = "service_advance"
	SaleTypeServicePayment = "service_payment"
	SaleTypeCounterSale    = "counter_sale"
	SaleTypeRefund         = "refund"
)

const (
	PaymentMethodCash     = "cash"
	PaymentMethodCard     = "card"
	PaymentMethodTransfer = "transfer"
)

type SaleRecord struct {
	ID          string    `json:"id"`
	Date        time.Time `json:"date"`
	BranchID    string    `json:"branch_id"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	AmountCents int64     `json:"amount_cents"`
	Method      string    `json:"method"`
	OrderID     string    `json:"order_id,omitempty"`
	MachineID   string    `json:"machine_id,omitempty"`
}

type ExpenseRecord struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	BranchID    string    `json:"branch_id"`
	AmountCents int64     `json:"amount_cents"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	ShiftID     string    `json:"shift_id,omitempty"`
}

type ExpenseCreateRequest struct {
	BranchID    string `json:"branch_id"`
	AmountCents int64  `json:"amount_cents"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// RefundRequest reverses money out of the sales ledger. The amount is
// supplied positive and recorded negative; a manager PIN is required.
type RefundRequest struct {
	BranchID    string `json:"branch_id"`
	Description string `json:"description"`
	AmountCents int64  `json:"amount_cents"`
	Method      string `json:"method"`
	OrderID     string `json:"order_id,omitempty"`
	ManagerPIN  string `json:"manager_pin"`
}

type CounterSaleItem struct {
	ItemID string `json:"item_id"`
	Qty    int    `json:"qty"`
}

type CounterSaleRequest struct {
	BranchID string            `json:"branch_id"`
	Items    []CounterSaleItem `json:"items"`
	Method   string            `json:"method"`
}

const (
	ShiftStatusOpen   = "open"
	ShiftStatusClosed = "closed"
)

// Shift is a cash-drawer session. The reconciliation fields are zero while
// the shift is open and filled in at close from the ledgers.
type Shift struct {
	ID                  string     `json:"id"`
	BranchID            string     `json:"branch_id"`
	OpenedBy            string     `json:"opened_by"`
	StartTime           time.Time  `json:"start_time"`
	InitialCashCents    int64      `json:"initial_cash_cents"`
	Status              string     `json:"status"`
	EndedAt             *time.Time `json:"ended_at,omitempty"`
	ClosedBy            string     `json:"closed_by,omitempty"`
	TotalSalesCents     int64      `json:"total_sales_cents"`
	CashSalesCents      int64      `json:"cash_sales_cents"`
	CardSalesCents      int64      `json:"card_sales_cents"`
	TransferSalesCents  int64      `json:"transfer_sales_cents"`
	SaleCount           int        `json:"sale_count"`
	TotalExpensesCents  int64      `json:"total_expenses_cents"`
	ExpectedDrawerCents int64      `json:"expected_drawer_cents"`
	FinalCashCents      int64      `json:"final_cash_cents"`
	DifferenceCents     int64      `json:"difference_cents"`
}

type ShiftOpenRequest struct {
	BranchID         string `json:"branch_id"`
	OpenedBy         string `json:"opened_by"`
	InitialCashCents int64  `json:"initial_cash_cents"`
}

type ShiftCloseRequest struct {
	BranchID          string `json:"branch_id"`
	ClosedBy          string `json:"closed_by"`
	DeclaredCashCents int64  `json:"declared_cash_cents"`
}

type ShiftResponse struct {
	Shift Shift `json:"shift"`
}

type InventoryItem struct {
	ID         string `json:"id"`
	BranchID   string `json:"branch_id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	CostCents  int64  `json:"cost_cents"`
	Stock      int    `json:"stock"`
	Icon       string `json:"icon"`
}

type InventoryItemCreateRequest struct {
	BranchID   string `json:"branch_id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	CostCents  int64  `json:"cost_cents"`
	Stock      int    `json:"stock"`
	Icon       string `json:"icon"`
}

type InventoryItemUpdateRequest struct {
	Name       *string `json:"name,omitempty"`
	PriceCents *int64  `json:"price_cents,omitempty"`
	CostCents  *int64  `json:"cost_cents,omitempty"`
	Stock      *int    `json:"stock,omitempty"`
	Icon       *string `json:"icon,omitempty"`
}

type StockAdjustRequest struct {
	BranchID string `json:"branch_id"`
	Delta    int    `json:"delta"`
}

// CustomerOverride is a manually entered patch layered over the
// order-derived customer view, keyed by digits-only phone number.
type CustomerOverride struct {
	Name                 string `json:"name,omitempty"`
	Notes                string `json:"notes,omitempty"`
	WeightKg             string `json:"weight_kg,omitempty"`
	HeightCm             string `json:"height_cm,omitempty"`
	RegistrationBranchID string `json:"registration_branch_id,omitempty"`
}

type CustomerOverrideRequest struct {
	Name                 *string `json:"name,omitempty"`
	Notes                *string `json:"notes,omitempty"`
	WeightKg             *string `json:"weight_kg,omitempty"`
	HeightCm             *string `json:"height_cm,omitempty"`
	RegistrationBranchID *string `json:"registration_branch_id,omitempty"`
}

// Customer is derived from the order history and never persisted. Numeric
// aggregates always come from orders; identity fields may be overridden.
type Customer struct {
	Phone                string    `json:"phone"`
	DisplayPhone         string    `json:"display_phone"`
	Name                 string    `json:"name"`
	Notes                string    `json:"notes,omitempty"`
	WeightKg             string    `json:"weight_kg,omitempty"`
	HeightCm             string    `json:"height_cm,omitempty"`
	TotalSpentCents      int64     `json:"total_spent_cents"`
	DebtCents            int64     `json:"debt_cents"`
	VisitCount           int       `json:"visit_count"`
	FirstVisit           time.Time `json:"first_visit"`
	LastVisit            time.Time `json:"last_visit"`
	RegistrationBranchID string    `json:"registration_branch_id"`
	Orders               []Order   `json:"orders"`
}

type ActivityLog struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	User      string    `json:"user"`
	BranchID  string    `json:"branch_id"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type HostCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type HostUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}
