package domain

import "time"

type Product struct {
	ID           string  `json:"id"`
	OwnerID      string  `json:"owner_id,omitempty"`
	Name         string  `json:"name"`
	Category     string  `json:"category"`
	CurrentStock float64 `json:"current_stock"`
	Price        float64 `json:"price"`
	Supplier     string  `json:"supplier"`
	ReorderLevel float64 `json:"reorder_level"`
	CreatedAt    int64   `json:"created_at"`
}

// ProductInput carries every writable product field. It is what a validated
// product form produces for both create and edit.
type ProductInput struct {
	Name         string  `json:"name"`
	Category     string  `json:"category"`
	CurrentStock float64 `json:"current_stock"`
	Price        float64 `json:"price"`
	Supplier     string  `json:"supplier"`
	ReorderLevel float64 `json:"reorder_level"`
}

type Sale struct {
	ID              string   `json:"id"`
	OwnerID         string   `json:"owner_id,omitempty"`
	ProductID       string   `json:"product_id"`
	ProductName     string   `json:"product_name"`
	Quantity        int      `json:"quantity"`
	TotalPrice      float64  `json:"total_price"`
	DiscountPercent *float64 `json:"discount_percent,omitempty"`
	CreatedAt       int64    `json:"created_at"`
}

type SaleInput struct {
	ProductID       string   `json:"product_id"`
	ProductName     string   `json:"product_name"`
	Quantity        int      `json:"quantity"`
	TotalPrice      float64  `json:"total_price"`
	DiscountPercent *float64 `json:"discount_percent,omitempty"`
}

type ExpenseCategory string

const (
	ExpenseFuel        ExpenseCategory = "fuel"
	ExpenseIce         ExpenseCategory = "ice"
	ExpenseMaintenance ExpenseCategory = "maintenance"
	ExpenseWages       ExpenseCategory = "wages"
	ExpenseRent        ExpenseCategory = "rent"
	ExpenseOther       ExpenseCategory = "other"
)

var ExpenseCategories = []ExpenseCategory{
	ExpenseFuel,
	ExpenseIce,
	ExpenseMaintenance,
	ExpenseWages,
	ExpenseRent,
	ExpenseOther,
}

var expenseCategoryLabels = map[ExpenseCategory]string{
	ExpenseFuel:        "Fuel",
	ExpenseIce:         "Ice",
	ExpenseMaintenance: "Maintenance",
	ExpenseWages:       "Wages",
	ExpenseRent:        "Rent",
	ExpenseOther:       "Other",
}

func (c ExpenseCategory) Valid() bool {
	_, ok := expenseCategoryLabels[c]
	return ok
}

func (c ExpenseCategory) Label() string {
	if label, ok := expenseCategoryLabels[c]; ok {
		return label
	}
	return expenseCategoryLabels[ExpenseOther]
}

type Expense struct {
	ID        string          `json:"id"`
	OwnerID   string          `json:"owner_id,omitempty"`
	Label     string          `json:"label"`
	Amount    float64         `json:"amount"`
	Category  ExpenseCategory `json:"category"`
	CreatedAt int64           `json:"created_at"`
}

type ExpenseInput struct {
	Label    string          `json:"label"`
	Amount   float64         `json:"amount"`
	Category ExpenseCategory `json:"category"`
}

// Principal is the authenticated identity behind a session.
type Principal struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type UserAccount struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SignupRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   string    `json:"expires_at"`
	Principal   Principal `json:"principal"`
}

type SessionResponse struct {
	Authenticated bool       `json:"authenticated"`
	Principal     *Principal `json:"principal,omitempty"`
}

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

func (t Theme) Valid() bool {
	return t == ThemeLight || t == ThemeDark
}

func (t Theme) Toggled() Theme {
	if t == ThemeDark {
		return ThemeLight
	}
	return ThemeDark
}

type ThemeRequest struct {
	Theme Theme `json:"theme"`
}
