package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"isdanary/backend/internal/docstore"
	"isdanary/backend/internal/domain"
	"isdanary/backend/internal/form"
	"isdanary/backend/internal/identity"
	"isdanary/backend/internal/live"
	"isdanary/backend/internal/metrics"
	"isdanary/backend/internal/records"
	"isdanary/backend/internal/session"
	"isdanary/backend/internal/theme"
	"isdanary/backend/internal/workspace"
)

var ErrUnauthenticated = errors.New("authentication required")

// AuthError is a failed login or signup. Message is safe to show.
type AuthError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AuthError) Error() string {
	return e.Message
}

func (e *AuthError) Unwrap() error {
	return e.Cause
}

type principalContextKey struct{}

func WithPrincipal(ctx context.Context, p domain.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (domain.Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(domain.Principal)
	return p, ok
}

type Service struct {
	auth   *identity.Manager
	spaces *workspace.Registry
	themes *theme.Service
}

func New(auth *identity.Manager, spaces *workspace.Registry, themes *theme.Service) *Service {
	if themes == nil {
		themes = theme.New(nil)
	}
	return &Service{
		auth:   auth,
		spaces: spaces,
		themes: themes,
	}
}

func (s *Service) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	if err := form.ValidateLogin(req); err != nil {
		return domain.LoginResponse{}, err
	}
	resp, err := s.auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		return domain.LoginResponse{}, authError(err, session.LoginFallbackMessage)
	}
	s.spaces.Acquire(resp.Principal)
	return resp, nil
}

func (s *Service) Signup(ctx context.Context, req domain.SignupRequest) (domain.LoginResponse, error) {
	if err := form.ValidateSignup(req); err != nil {
		return domain.LoginResponse{}, err
	}
	resp, err := s.auth.Signup(ctx, req.Email, req.Password)
	if err != nil {
		return domain.LoginResponse{}, authError(err, session.SignupFallbackMessage)
	}
	s.spaces.Acquire(resp.Principal)
	return resp, nil
}

// Logout revokes the token and tears the principal's workspace down, which
// empties every adapter before its subscription is stopped.
func (s *Service) Logout(ctx context.Context, token string) {
	if err := s.auth.Logout(token); err != nil {
		log.Printf("[service] WARN: logout with unusable token: %v", err)
	}
	if p, ok := PrincipalFromContext(ctx); ok {
		s.spaces.Release(p.ID)
	}
}

// Authenticate resolves a token to its principal.
func (s *Service) Authenticate(token string) (domain.Principal, error) {
	p, _, err := s.auth.ParseToken(token)
	if err != nil {
		return domain.Principal{}, err
	}
	return p, nil
}

func (s *Service) Session(ctx context.Context) domain.SessionResponse {
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		return domain.SessionResponse{Authenticated: false}
	}
	return domain.SessionResponse{Authenticated: true, Principal: &p}
}

// Workspace returns the caller's workspace, opening it if this process has
// not seen the principal since it started.
func (s *Service) Workspace(ctx context.Context) (*workspace.Workspace, error) {
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		return nil, ErrUnauthenticated
	}
	return s.spaces.Acquire(p), nil
}

func (s *Service) Dashboard(ctx context.Context) (DashboardView, error) {
	ws, err := s.Workspace(ctx)
	if err != nil {
		return DashboardView{}, err
	}
	return DashboardView{
		DisplayName: metrics.DisplayName(ws.Principal.Email),
		Dashboard:   ws.Board.Current(),
	}, nil
}

func (s *Service) Products(ctx context.Context, search string, order metrics.SortOrder) (ProductsView, error) {
	ws, err := s.Workspace(ctx)
	if err != nil {
		return ProductsView{}, err
	}
	return buildProductsView(ws, search, order), nil
}

const msgProductNotFound = "Product not found."

// ProductEdit is the product form opened on an existing product.
type ProductEdit struct {
	ID string `json:"id"`
	form.ProductRequest
	Form FormStatus `json:"form"`
}

// EditProduct opens the product form pre-filled from the current snapshot.
func (s *Service) EditProduct(ctx context.Context, id string) (ProductEdit, error) {
	ws, err := s.Workspace(ctx)
	if err != nil {
		return ProductEdit{}, err
	}
	p, ok := ws.Products.Find(id)
	if !ok {
		return ProductEdit{}, &live.MutationError{Message: msgProductNotFound, Cause: docstore.ErrNotFound}
	}
	ws.ProductForm.Edit()
	return ProductEdit{ID: p.ID, ProductRequest: form.FromProduct(p), Form: formStatus(ws.ProductForm)}, nil
}

// SaveProduct creates a product when id is empty and otherwise overwrites
// the product's fields with the form's.
func (s *Service) SaveProduct(ctx context.Context, id string, req form.ProductRequest) (string, error) {
	ws, err := s.Workspace(ctx)
	if err != nil {
		return "", err
	}

	var input domain.ProductInput
	err = ws.ProductForm.Submit(
		func() (err error) {
			input, err = form.ValidateProduct(req)
			return err
		},
		func() (err error) {
			fields := records.ProductFields(input)
			if id == "" {
				id, err = ws.Products.Create(ctx, fields)
				return err
			}
			return ws.Products.Update(ctx, id, fields)
		},
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	ws, err := s.Workspace(ctx)
	if err != nil {
		return err
	}
	return ws.Products.Delete(ctx, id)
}

func (s *Service) Sales(ctx context.Context) (SalesView, error) {
	ws, err := s.Workspace(ctx)
	if err != nil {
		return SalesView{}, err
	}
	return buildSalesView(ws), nil
}

func (s *Service) PreviewSale(ctx context.Context, req form.SaleRequest) (form.SalePreview, error) {
	ws, err := s.Workspace(ctx)
	if err != nil {
		return form.SalePreview{}, err
	}
	return form.PreviewSale(req, ws.Products), nil
}

// RecordSale validates against the current product snapshot and stores the
// sale with its name and total frozen. Product stock is left untouched.
func (s *Service) RecordSale(ctx context.Context, req form.SaleRequest) (string, error) {
	ws, err := s.Workspace(ctx)
	if err != nil {
		return "", err
	}

	var (
		input domain.SaleInput
		id    string
	)
	err = ws.SaleForm.Submit(
		func() (err error) {
			input, err = form.ValidateSale(req, ws.Products)
			return err
		},
		func() (err error) {
			id, err = ws.Sales.Create(ctx, records.SaleFields(input))
			return err
		},
	)
	return id, err
}

func (s *Service) DeleteSale(ctx context.Context, id string) error {
	ws, err := s.Workspace(ctx)
	if err != nil {
		return err
	}
	return ws.Sales.Delete(ctx, id)
}

func (s *Service) Expenses(ctx context.Context) (ExpensesView, error) {
	ws, err := s.Workspace(ctx)
	if err != nil {
		return ExpensesView{}, err
	}
	return buildExpensesView(ws), nil
}

func (s *Service) SaveExpense(ctx context.Context, id string, req form.ExpenseRequest) (string, error) {
	ws, err := s.Workspace(ctx)
	if err != nil {
		return "", err
	}

	var input domain.ExpenseInput
	err = ws.ExpenseForm.Submit(
		func() (err error) {
			input, err = form.ValidateExpense(req)
			return err
		},
		func() (err error) {
			fields := records.ExpenseFields(input)
			if id == "" {
				id, err = ws.Expenses.Create(ctx, fields)
				return err
			}
			return ws.Expenses.Update(ctx, id, fields)
		},
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Service) DeleteExpense(ctx context.Context, id string) error {
	ws, err := s.Workspace(ctx)
	if err != nil {
		return err
	}
	return ws.Expenses.Delete(ctx, id)
}

func (s *Service) Theme(ctx context.Context) (domain.Theme, error) {
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		return "", ErrUnauthenticated
	}
	return s.themes.Get(ctx, p.ID), nil
}

func (s *Service) SetTheme(ctx context.Context, t domain.Theme) (domain.Theme, error) {
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		return "", ErrUnauthenticated
	}
	return s.themes.Set(ctx, p.ID, t)
}

func (s *Service) ToggleTheme(ctx context.Context) (domain.Theme, error) {
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		return "", ErrUnauthenticated
	}
	return s.themes.Toggle(ctx, p.ID)
}

func authError(err error, fallback string) error {
	code := identity.Code(err)
	if code == "" {
		log.Printf("[service] auth failed: %v", err)
	}
	return &AuthError{
		Code:    code,
		Message: session.Message(err, fallback),
		Cause:   fmt.Errorf("identity: %w", err),
	}
}
