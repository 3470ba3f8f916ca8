// File: internal/usecase/plan_uc_test.go
package usecase

import (
	"errors"
	"testing"

	"github.com/leonart92/pronostiX-sub002/internal/config"
	"github.com/leonart92/pronostiX-sub002/internal/domain"
)

func testPlans() map[string]config.PlanConfig {
	return map[string]config.PlanConfig{
		"monthly": {Name: "Monthly", Amount: 999, Currency: "eur", DurationDays: 30, PriceID: "price_monthly"},
		"yearly":  {Name: "Yearly", Amount: 9990, Currency: "eur", DurationDays: 365, PriceID: "price_yearly"},
	}
}

func TestPlanCatalogLookups(t *testing.T) {
	c, err := NewPlanCatalog(testPlans())
	if err != nil {
		t.Fatalf("NewPlanCatalog: %v", err)
	}

	p, err := c.ByKey("monthly")
	if err != nil {
		t.Fatalf("ByKey: %v", err)
	}
	if p.Amount != 999 || p.DurationDays != 30 {
		t.Fatalf("unexpected plan: %+v", p)
	}

	p, err = c.ByPriceID("price_yearly")
	if err != nil {
		t.Fatalf("ByPriceID: %v", err)
	}
	if p.Key != "yearly" {
		t.Fatalf("expected yearly, got %s", p.Key)
	}

	if _, err := c.ByKey("weekly"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := c.ByPriceID("price_nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPlanCatalogListSortedByAmount(t *testing.T) {
	c, err := NewPlanCatalog(testPlans())
	if err != nil {
		t.Fatalf("NewPlanCatalog: %v", err)
	}
	list := c.List()
	if len(list) != 2 {
		t.Fatalf("expected 2 plans, got %d", len(list))
	}
	if list[0].Key != "monthly" || list[1].Key != "yearly" {
		t.Fatalf("unexpected order: %s, %s", list[0].Key, list[1].Key)
	}
}

func TestPlanCatalogRejectsInvalidPlan(t *testing.T) {
	bad := map[string]config.PlanConfig{
		"broken": {Name: "Broken", Amount: -1, Currency: "eur", DurationDays: 30},
	}
	if _, err := NewPlanCatalog(bad); err == nil {
		t.Fatal("expected error for negative amount")
	}
}
