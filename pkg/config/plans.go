package config

import (
	_ "embed"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

//go:embed plans.yaml
var defaultPlansYAML []byte

// Unlimited marks a plan limit with no ceiling.
const Unlimited = -1

// PlanLimits are the usage limits attached to a plan.
type PlanLimits struct {
	PromptsPerDay   int      `yaml:"prompts_per_day" json:"promptsPerDay"`
	PromptsPerMonth int      `yaml:"prompts_per_month" json:"promptsPerMonth"`
	Topics          int      `yaml:"topics" json:"topicsLimit"`
	// Providers is what the pricing page advertises; prompts are always
	// answered by every configured provider.
	Providers       []string `yaml:"providers" json:"providers"`
	Priority        string   `yaml:"priority" json:"priority"`
}

// Plan is one purchasable subscription tier.
type Plan struct {
	Name        string     `yaml:"name" json:"name"`
	DisplayName string     `yaml:"display_name" json:"displayName"`
	Price       int        `yaml:"price" json:"price"`
	PriceID     string     `yaml:"price_id" json:"priceId,omitempty"`
	Features    []string   `yaml:"features" json:"features"`
	Limits      PlanLimits `yaml:"limits" json:"limits"`
}

// PlanCatalog is the ordered set of plans offered to users.
type PlanCatalog struct {
	plans []Plan
}

type planFile struct {
	Plans []Plan `yaml:"plans"`
}

// LoadPlans parses the plan catalog at path, or the built-in catalog when path is empty.
func LoadPlans(path string) (*PlanCatalog, error) {
	data := defaultPlansYAML
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read plans file: %w", err)
		}
		data = b
	}
	return ParsePlans(data)
}

// ParsePlans parses a YAML plan catalog.
func ParsePlans(data []byte) (*PlanCatalog, error) {
	var f planFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse plans: %w", err)
	}
	if len(f.Plans) == 0 {
		return nil, fmt.Errorf("plan catalog is empty")
	}

	seen := make(map[string]bool, len(f.Plans))
	for _, p := range f.Plans {
		if p.Name == "" {
			return nil, fmt.Errorf("plan without name")
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("duplicate plan %q", p.Name)
		}
		seen[p.Name] = true
	}
	if !seen[DefaultPlan] {
		return nil, fmt.Errorf("plan catalog must define %q", DefaultPlan)
	}

	return &PlanCatalog{plans: f.Plans}, nil
}

// DefaultPlan is assigned to users without a subscription and to unrecognised price ids.
const DefaultPlan = "free"

// Get returns the plan with the given name.
func (c *PlanCatalog) Get(name string) (Plan, bool) {
	for _, p := range c.plans {
		if p.Name == name {
			return p, true
		}
	}
	return Plan{}, false
}

// MustDefault returns the default plan. ParsePlans guarantees it exists.
func (c *PlanCatalog) MustDefault() Plan {
	p, _ := c.Get(DefaultPlan)
	return p
}

// ForPriceID returns the plan billed with the given Stripe price id.
func (c *PlanCatalog) ForPriceID(priceID string) (Plan, bool) {
	if priceID == "" {
		return Plan{}, false
	}
	for _, p := range c.plans {
		if p.PriceID == priceID {
			return p, true
		}
	}
	return Plan{}, false
}

// SetPriceID overrides a plan's price id. Empty ids are ignored.
func (c *PlanCatalog) SetPriceID(name, priceID string) {
	if priceID == "" {
		return
	}
	for i := range c.plans {
		if c.plans[i].Name == name {
			c.plans[i].PriceID = priceID
		}
	}
}

// All returns the plans in catalog order.
func (c *PlanCatalog) All() []Plan {
	return slices.Clone(c.plans)
}
