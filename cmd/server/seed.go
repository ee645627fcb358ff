package main

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"isdanary/backend/internal/config"
	"isdanary/backend/internal/domain"
	"isdanary/backend/internal/form"
	"isdanary/backend/internal/identity"
	"isdanary/backend/internal/metrics"
	"isdanary/backend/internal/service"
)

type seedOptions struct {
	Email    string
	Password string
}

var demoProducts = []form.ProductRequest{
	{Name: "Fresh Tilapia", Category: "Freshwater", CurrentStock: 40, Price: 140, Supplier: "Laguna Fish Port", ReorderLevel: 10},
	{Name: "Bangus (Milkfish)", Category: "Brackish", CurrentStock: 25, Price: 180, Supplier: "Dagupan Fishpond Co-op", ReorderLevel: 8},
	{Name: "Galunggong", Category: "Saltwater", CurrentStock: 6, Price: 220, Supplier: "Navotas Fish Port", ReorderLevel: 10},
	{Name: "Tamban", Category: "Saltwater", CurrentStock: 30, Price: 90, Supplier: "Navotas Fish Port", ReorderLevel: 5},
	{Name: "Shrimp (Suahe)", Category: "Shellfish", CurrentStock: 4, Price: 480, Supplier: "Bulacan Aquafarm", ReorderLevel: 5},
}

var demoExpenses = []form.ExpenseRequest{
	{Label: "Ice blocks", Amount: 450, Category: domain.ExpenseIce},
	{Label: "Boat fuel", Amount: 1200, Category: domain.ExpenseFuel},
}

// newSeedCommand reads cfg when it runs so the root's persistent flags apply.
func newSeedCommand(cfg *config.Config) *cobra.Command {
	opts := &seedOptions{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create a demo account with sample products and expenses",
		Long: `Create a demo account and fill its inventory with sample fish products.

Seeding is idempotent: an existing account is logged into instead of being
recreated, and sample records are only added when the inventory is empty.

Example:
  isdanary seed --sqlite ./isdanary.db
  isdanary seed --email owner@isdanary.ph --password tilapia123`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := build(*cfg)
			if err != nil {
				return err
			}
			defer a.close()
			return seed(cmd.Context(), a.service, *opts)
		},
	}

	cmd.Flags().StringVar(&opts.Email, "email", "demo@isdanary.ph", "demo account email")
	cmd.Flags().StringVar(&opts.Password, "password", "isdanary123", "demo account password")

	return cmd
}

func seed(ctx context.Context, svc *service.Service, opts seedOptions) error {
	resp, err := svc.Signup(ctx, domain.SignupRequest{Email: opts.Email, Password: opts.Password, ConfirmPassword: opts.Password})
	if identity.Code(err) == identity.CodeEmailInUse {
		resp, err = svc.Login(ctx, domain.LoginRequest{Email: opts.Email, Password: opts.Password})
	}
	if err != nil {
		return fmt.Errorf("demo account: %w", err)
	}
	ctx = service.WithPrincipal(ctx, resp.Principal)
	defer svc.Logout(ctx, resp.AccessToken)

	products, err := svc.Products(ctx, "", metrics.SortNewest)
	if err != nil {
		return err
	}
	if products.Total > 0 {
		log.Printf("[seed] %s already has %d products, skipping", opts.Email, products.Total)
		return nil
	}

	for _, p := range demoProducts {
		if _, err := svc.SaveProduct(ctx, "", p); err != nil {
			return fmt.Errorf("seed product %q: %w", p.Name, err)
		}
	}
	for _, e := range demoExpenses {
		if _, err := svc.SaveExpense(ctx, "", e); err != nil {
			return fmt.Errorf("seed expense %q: %w", e.Label, err)
		}
	}
	log.Printf("[seed] %s seeded with %d products and %d expenses", opts.Email, len(demoProducts), len(demoExpenses))
	return nil
}
