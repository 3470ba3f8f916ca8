// File: internal/usecase/plan_uc.go
package usecase

import (
	"sort"

	"github.com/leonart92/pronostiX-sub002/internal/config"
	"github.com/leonart92/pronostiX-sub002/internal/domain"
	"github.com/leonart92/pronostiX-sub002/internal/domain/model"
)

// Compile-time check
var _ PlanCatalog = (*planCatalog)(nil)

// PlanCatalog is the static plan lookup: catalog key -> price, duration and
// provider price identifier. No state, no provider calls.
type PlanCatalog interface {
	ByKey(key string) (*model.Plan, error)
	// ByPriceID resolves the catalog entry for a provider price identifier,
	// used when a provider snapshot arrives before any local row exists.
	ByPriceID(priceID string) (*model.Plan, error)
	List() []*model.Plan
}

type planCatalog struct {
	byKey   map[string]*model.Plan
	byPrice map[string]*model.Plan
}

// NewPlanCatalog builds the catalog from configuration.
func NewPlanCatalog(plans map[string]config.PlanConfig) (*planCatalog, error) {
	c := &planCatalog{
		byKey:   make(map[string]*model.Plan, len(plans)),
		byPrice: make(map[string]*model.Plan, len(plans)),
	}
	for key, pc := range plans {
		p, err := model.NewPlan(key, pc.Name, pc.Amount, pc.Currency, pc.DurationDays, pc.PriceID)
		if err != nil {
			return nil, err
		}
		c.byKey[key] = p
		if p.StripePriceID != "" {
			c.byPrice[p.StripePriceID] = p
		}
	}
	return c, nil
}

func (c *planCatalog) ByKey(key string) (*model.Plan, error) {
	p, ok := c.byKey[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func (c *planCatalog) ByPriceID(priceID string) (*model.Plan, error) {
	p, ok := c.byPrice[priceID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func (c *planCatalog) List() []*model.Plan {
	out := make([]*model.Plan, 0, len(c.byKey))
	for _, p := range c.byKey {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Amount < out[j].Amount })
	return out
}
