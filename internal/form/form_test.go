package form

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"isdanary/backend/internal/domain"
)

type snapshot map[string]domain.Product

func (s snapshot) Find(id string) (domain.Product, bool) {
	p, ok := s[id]
	return p, ok
}

var shelf = snapshot{
	"p1": {ID: "p1", Name: "Fresh Tilapia", Price: 100, CurrentStock: 5},
	"p2": {ID: "p2", Name: "Bangus", Price: 50, CurrentStock: 0},
}

func num(v float64) *Number {
	n := Number(v)
	return &n
}

func requireField(t *testing.T, err error, field, message string) {
	t.Helper()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
	assert.Equal(t, field, verr.Field)
	assert.Equal(t, message, verr.Message)
}

func TestNumberDecoding(t *testing.T) {
	var body struct {
		A, B, C, D, E, F Number
	}
	require.NoError(t, json.Unmarshal([]byte(`{"A": 12.5, "B": "7", "C": "", "D": null, "E": "abc", "F": "Infinity"}`), &body))
	assert.Equal(t, 12.5, body.A.Float())
	assert.Equal(t, 7.0, body.B.Float())
	assert.Equal(t, 0.0, body.C.Float())
	assert.Equal(t, 0.0, body.D.Float())
	assert.True(t, math.IsNaN(body.E.Float()))
	assert.True(t, math.IsNaN(body.F.Float()))
}

func TestValidateSale(t *testing.T) {
	in, err := ValidateSale(SaleRequest{ProductID: "p1", Quantity: 3, DiscountPercent: num(10)}, shelf)
	require.NoError(t, err)
	assert.Equal(t, "Fresh Tilapia", in.ProductName)
	assert.Equal(t, 3, in.Quantity)
	assert.Equal(t, 270.0, in.TotalPrice)
	require.NotNil(t, in.DiscountPercent)
	assert.Equal(t, 10.0, *in.DiscountPercent)

	in, err = ValidateSale(SaleRequest{ProductID: "p1", Quantity: 5}, shelf)
	require.NoError(t, err)
	assert.Equal(t, 500.0, in.TotalPrice)
	assert.Nil(t, in.DiscountPercent)

	cases := []struct {
		name    string
		req     SaleRequest
		field   string
		message string
	}{
		{"no product", SaleRequest{Quantity: 1}, "product_id", MsgChooseProduct},
		{"unknown product", SaleRequest{ProductID: "gone", Quantity: 1}, "product_id", MsgChooseProduct},
		{"zero quantity", SaleRequest{ProductID: "p1"}, "quantity", MsgQuantityMin},
		{"nan quantity", SaleRequest{ProductID: "p1", Quantity: Number(math.NaN())}, "quantity", MsgQuantityMin},
		{"fractional quantity", SaleRequest{ProductID: "p1", Quantity: 1.5}, "quantity", MsgQuantityWhole},
		{"over stock", SaleRequest{ProductID: "p1", Quantity: 6}, "quantity", MsgNotEnoughStock},
		{"out of stock", SaleRequest{ProductID: "p2", Quantity: 1}, "quantity", MsgNotEnoughStock},
		{"discount above 100", SaleRequest{ProductID: "p1", Quantity: 1, DiscountPercent: num(101)}, "discount_percent", MsgDiscountRange},
		{"negative discount", SaleRequest{ProductID: "p1", Quantity: 1, DiscountPercent: num(-1)}, "discount_percent", MsgDiscountRange},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ValidateSale(tc.req, shelf)
			requireField(t, err, tc.field, tc.message)
		})
	}
}

func TestPreviewSale(t *testing.T) {
	p := PreviewSale(SaleRequest{ProductID: "p1", Quantity: 3, DiscountPercent: num(10)}, shelf)
	assert.Equal(t, 270.0, p.Total)
	assert.Equal(t, "₱270.00", p.TotalLabel)
	assert.Equal(t, 5.0, p.Available)

	p = PreviewSale(SaleRequest{ProductID: "missing", Quantity: 3}, shelf)
	assert.Equal(t, 0.0, p.Total)
	assert.Empty(t, p.ProductName)
}

func TestValidateProduct(t *testing.T) {
	in, err := ValidateProduct(ProductRequest{Name: "  Bangus ", Category: "Milkfish", CurrentStock: 5, Price: 12.5})
	require.NoError(t, err)
	assert.Equal(t, "Bangus", in.Name)
	assert.Equal(t, 5.0, in.CurrentStock)
	assert.Equal(t, 12.5, in.Price)
	assert.Equal(t, 0.0, in.ReorderLevel)

	_, err = ValidateProduct(ProductRequest{Name: "   "})
	requireField(t, err, "name", MsgProductName)
	_, err = ValidateProduct(ProductRequest{Name: "x", CurrentStock: -1})
	requireField(t, err, "current_stock", MsgCurrentStock)
	_, err = ValidateProduct(ProductRequest{Name: "x", Price: Number(math.NaN())})
	requireField(t, err, "price", MsgPrice)
	_, err = ValidateProduct(ProductRequest{Name: "x", ReorderLevel: -0.5})
	requireField(t, err, "reorder_level", MsgReorderLevel)
}

func TestAmountsAreBounded(t *testing.T) {
	_, err := ValidateProduct(ProductRequest{Name: "Tuna", CurrentStock: MaxAmount, Price: MaxAmount, ReorderLevel: MaxAmount})
	require.NoError(t, err)

	_, err = ValidateProduct(ProductRequest{Name: "Tuna", CurrentStock: 10, Price: 1e308})
	requireField(t, err, "price", MsgPriceMax)
	_, err = ValidateProduct(ProductRequest{Name: "Tuna", CurrentStock: MaxAmount + 1})
	requireField(t, err, "current_stock", MsgCurrentStockMax)
	_, err = ValidateProduct(ProductRequest{Name: "Tuna", ReorderLevel: 2e9})
	requireField(t, err, "reorder_level", MsgReorderLevelMax)
	_, err = ValidateExpense(ExpenseRequest{Label: "Boat", Amount: 1e12})
	requireField(t, err, "amount", MsgExpenseAmountMax)

	// A product stored before the bound existed cannot produce an unbounded sale.
	legacy := snapshot{"p9": {ID: "p9", Name: "Tuna", Price: 1e308, CurrentStock: 5}}
	_, err = ValidateSale(SaleRequest{ProductID: "p9", Quantity: 2}, legacy)
	requireField(t, err, "quantity", MsgSaleTotalRange)
}

func TestValidateExpense(t *testing.T) {
	in, err := ValidateExpense(ExpenseRequest{Label: "Ice blocks", Amount: 150})
	require.NoError(t, err)
	assert.Equal(t, domain.ExpenseOther, in.Category)

	in, err = ValidateExpense(ExpenseRequest{Label: "Diesel", Amount: 900, Category: "Fuel"})
	require.NoError(t, err)
	assert.Equal(t, domain.ExpenseFuel, in.Category)

	_, err = ValidateExpense(ExpenseRequest{Label: " ", Amount: 1})
	requireField(t, err, "label", MsgExpenseLabel)
	_, err = ValidateExpense(ExpenseRequest{Label: "x", Amount: 0})
	requireField(t, err, "amount", MsgExpenseAmount)
	_, err = ValidateExpense(ExpenseRequest{Label: "x", Amount: 1, Category: "bait"})
	requireField(t, err, "category", MsgExpenseCategory)
}

func TestValidateSignup(t *testing.T) {
	assert.NoError(t, ValidateSignup(domain.SignupRequest{Email: "a@b.co", Password: "secret", ConfirmPassword: "secret"}))
	requireField(t, ValidateSignup(domain.SignupRequest{Email: "a@b.co", Password: "secret", ConfirmPassword: "secreT"}),
		"confirm_password", "Passwords do not match.")
	requireField(t, ValidateSignup(domain.SignupRequest{Email: "a@b.co", Password: "12345", ConfirmPassword: "12345"}),
		"password", "Password should be at least 6 characters.")
	requireField(t, ValidateLogin(domain.LoginRequest{Email: "a@b.co"}), "email", MsgEmailRequired)
}

func TestMachineLifecycle(t *testing.T) {
	m := NewMachine()
	state, _ := m.State()
	assert.Equal(t, StateIdle, state)

	m.Edit()
	state, _ = m.State()
	assert.Equal(t, StateEditing, state)

	submitted := false
	err := m.Submit(func() error { return invalid("name", MsgProductName) }, func() error {
		submitted = true
		return nil
	})
	requireField(t, err, "name", MsgProductName)
	assert.False(t, submitted, "invalid forms never reach the store")
	state, msg := m.State()
	assert.Equal(t, StateError, state)
	assert.Equal(t, MsgProductName, msg)

	var during State
	err = m.Submit(func() error { return nil }, func() error {
		during, _ = m.State()
		assert.ErrorIs(t, m.Submit(func() error { return nil }, func() error { return nil }), ErrBusy)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, StateSubmitting, during)
	state, msg = m.State()
	assert.Equal(t, StateIdle, state)
	assert.Empty(t, msg)

	err = m.Submit(func() error { return nil }, func() error { return errors.New("Unable to record sale. Please try again.") })
	require.Error(t, err)
	state, msg = m.State()
	assert.Equal(t, StateError, state)
	assert.Equal(t, "Unable to record sale. Please try again.", msg)
}
