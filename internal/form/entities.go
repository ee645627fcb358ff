package form

import (
	"math"
	"strings"

	"isdanary/backend/internal/domain"
	"isdanary/backend/internal/identity"
	"isdanary/backend/internal/metrics"
	"isdanary/backend/internal/session"
)

const (
	MsgChooseProduct   = "Please choose a product."
	MsgQuantityMin     = "Quantity should be at least 1."
	MsgQuantityWhole   = "Quantity should be a whole number."
	MsgNotEnoughStock  = "Not enough stock available for this sale."
	MsgDiscountRange   = "Discount should be between 0 and 100."
	MsgProductName     = "Please enter a product name."
	MsgCurrentStock    = "Current stock should be zero or a positive number."
	MsgPrice           = "Price should be zero or a positive number."
	MsgReorderLevel    = "Reorder level should be zero or a positive number."
	MsgExpenseLabel    = "Please enter a description."
	MsgExpenseAmount   = "Please enter a valid amount."
	MsgExpenseCategory = "Please choose a valid category."
	MsgEmailRequired   = "Please enter your email and password."

	MsgCurrentStockMax  = "Current stock should be at most 1,000,000,000."
	MsgPriceMax         = "Price should be at most 1,000,000,000."
	MsgReorderLevelMax  = "Reorder level should be at most 1,000,000,000."
	MsgExpenseAmountMax = "Amount should be at most 1,000,000,000."
	MsgSaleTotalRange   = "This sale total is too large to record."
)

// MaxAmount bounds every stock, price and amount field so sums and products
// of them stay finite.
const MaxAmount = 1_000_000_000

// ProductLookup resolves a product from the last received snapshot.
type ProductLookup interface {
	Find(id string) (domain.Product, bool)
}

type SaleRequest struct {
	ProductID       string  `json:"product_id"`
	Quantity        Number  `json:"quantity"`
	DiscountPercent *Number `json:"discount_percent,omitempty"`
}

type SalePreview struct {
	ProductID       string  `json:"product_id"`
	ProductName     string  `json:"product_name"`
	UnitPrice       float64 `json:"unit_price"`
	Available       float64 `json:"available"`
	Quantity        int     `json:"quantity"`
	DiscountPercent float64 `json:"discount_percent"`
	Total           float64 `json:"total"`
	TotalLabel      string  `json:"total_label"`
}

// PreviewSale evaluates the discount-aware total for the form as it stands.
// It never fails; an unknown product previews as zero.
func PreviewSale(req SaleRequest, products ProductLookup) SalePreview {
	preview := SalePreview{ProductID: req.ProductID}
	if q := req.Quantity.Float(); !math.IsNaN(q) && q > 0 {
		preview.Quantity = int(math.Floor(q))
	}
	if req.DiscountPercent != nil && !math.IsNaN(req.DiscountPercent.Float()) {
		preview.DiscountPercent = req.DiscountPercent.Float()
	}
	if p, ok := products.Find(req.ProductID); ok {
		preview.ProductName = p.Name
		preview.UnitPrice = p.Price
		preview.Available = p.CurrentStock
		preview.Total = metrics.SaleTotal(p.Price, preview.Quantity, preview.DiscountPercent)
	}
	preview.TotalLabel = metrics.FormatPeso(preview.Total)
	return preview
}

// ValidateSale checks a sale against the last received product snapshot and
// freezes the product name and total into the record to persist. Stock is
// not re-fetched, so a concurrent stock change can slip through.
func ValidateSale(req SaleRequest, products ProductLookup) (domain.SaleInput, error) {
	id := strings.TrimSpace(req.ProductID)
	if id == "" {
		return domain.SaleInput{}, invalid("product_id", MsgChooseProduct)
	}
	product, ok := products.Find(id)
	if !ok {
		return domain.SaleInput{}, invalid("product_id", MsgChooseProduct)
	}

	q := req.Quantity.Float()
	if math.IsNaN(q) || q < 1 {
		return domain.SaleInput{}, invalid("quantity", MsgQuantityMin)
	}
	if q != math.Trunc(q) || q > math.MaxInt32 {
		return domain.SaleInput{}, invalid("quantity", MsgQuantityWhole)
	}
	quantity := int(q)
	if q > product.CurrentStock {
		return domain.SaleInput{}, invalid("quantity", MsgNotEnoughStock)
	}

	var discount *float64
	if req.DiscountPercent != nil {
		d := req.DiscountPercent.Float()
		if math.IsNaN(d) || d < 0 || d > 100 {
			return domain.SaleInput{}, invalid("discount_percent", MsgDiscountRange)
		}
		discount = &d
	}

	applied := 0.0
	if discount != nil {
		applied = *discount
	}
	total := metrics.SaleTotal(product.Price, quantity, applied)
	if math.IsNaN(total) || math.IsInf(total, 0) || total >= math.MaxFloat64 {
		return domain.SaleInput{}, invalid("quantity", MsgSaleTotalRange)
	}
	return domain.SaleInput{
		ProductID:       product.ID,
		ProductName:     product.Name,
		Quantity:        quantity,
		TotalPrice:      total,
		DiscountPercent: discount,
	}, nil
}

type ProductRequest struct {
	Name         string `json:"name"`
	Category     string `json:"category"`
	CurrentStock Number `json:"current_stock"`
	Price        Number `json:"price"`
	Supplier     string `json:"supplier"`
	ReorderLevel Number `json:"reorder_level"`
}

// FromProduct pre-fills an edit form from an existing product.
func FromProduct(p domain.Product) ProductRequest {
	return ProductRequest{
		Name:         p.Name,
		Category:     p.Category,
		CurrentStock: Number(p.CurrentStock),
		Price:        Number(p.Price),
		Supplier:     p.Supplier,
		ReorderLevel: Number(p.ReorderLevel),
	}
}

func boundedAmount(field string, n Number, negative, tooLarge string) error {
	if !nonNegative(n) {
		return invalid(field, negative)
	}
	if n.Float() > MaxAmount {
		return invalid(field, tooLarge)
	}
	return nil
}

func ValidateProduct(req ProductRequest) (domain.ProductInput, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.ProductInput{}, invalid("name", MsgProductName)
	}
	if err := boundedAmount("current_stock", req.CurrentStock, MsgCurrentStock, MsgCurrentStockMax); err != nil {
		return domain.ProductInput{}, err
	}
	if err := boundedAmount("price", req.Price, MsgPrice, MsgPriceMax); err != nil {
		return domain.ProductInput{}, err
	}
	if err := boundedAmount("reorder_level", req.ReorderLevel, MsgReorderLevel, MsgReorderLevelMax); err != nil {
		return domain.ProductInput{}, err
	}
	return domain.ProductInput{
		Name:         name,
		Category:     strings.TrimSpace(req.Category),
		CurrentStock: req.CurrentStock.Float(),
		Price:        req.Price.Float(),
		Supplier:     strings.TrimSpace(req.Supplier),
		ReorderLevel: req.ReorderLevel.Float(),
	}, nil
}

type ExpenseRequest struct {
	Label    string                 `json:"label"`
	Amount   Number                 `json:"amount"`
	Category domain.ExpenseCategory `json:"category"`
}

func ValidateExpense(req ExpenseRequest) (domain.ExpenseInput, error) {
	label := strings.TrimSpace(req.Label)
	if label == "" {
		return domain.ExpenseInput{}, invalid("label", MsgExpenseLabel)
	}
	amount := req.Amount.Float()
	if math.IsNaN(amount) || amount <= 0 {
		return domain.ExpenseInput{}, invalid("amount", MsgExpenseAmount)
	}
	if amount > MaxAmount {
		return domain.ExpenseInput{}, invalid("amount", MsgExpenseAmountMax)
	}
	category := domain.ExpenseCategory(strings.ToLower(strings.TrimSpace(string(req.Category))))
	if category == "" {
		category = domain.ExpenseOther
	}
	if !category.Valid() {
		return domain.ExpenseInput{}, invalid("category", MsgExpenseCategory)
	}
	return domain.ExpenseInput{Label: label, Amount: amount, Category: category}, nil
}

// ValidateSignup runs the checks made before the identity service is asked
// to create an account.
func ValidateSignup(req domain.SignupRequest) error {
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return invalid("email", MsgEmailRequired)
	}
	if req.Password != req.ConfirmPassword {
		return invalid("confirm_password", session.PasswordMismatchMessage)
	}
	if len(req.Password) < identity.MinPasswordLength {
		return invalid("password", session.PasswordLengthMessage)
	}
	return nil
}

func ValidateLogin(req domain.LoginRequest) error {
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return invalid("email", MsgEmailRequired)
	}
	return nil
}
