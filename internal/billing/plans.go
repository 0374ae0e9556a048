// Package billing maps subscription plans to features and keeps the
// subscription table in step with Stripe.
package billing

import (
	"errors"
	"fmt"
	"strings"
)

type Plan string

const (
	PlanNone       Plan = "none"
	PlanBasic      Plan = "basic"
	PlanPremium    Plan = "premium"
	PlanEnterprise Plan = "enterprise"
)

// Unlimited marks a count feature with no cap.
const Unlimited = -1

var ErrUnknownPlan = errors.New("unknown plan")

// Features are the capabilities a plan unlocks.
type Features struct {
	MaxJobsites        int  `json:"maxJobsites"`
	MaxWorkers         int  `json:"maxWorkers"`
	WeatherAlerts      bool `json:"weatherAlerts"`
	EmailNotifications bool `json:"emailNotifications"`
	CustomThresholds   bool `json:"customThresholds"`
	JobsiteOverrides   bool `json:"jobsiteOverrides"`
	PrioritySupport    bool `json:"prioritySupport"`
	APIAccess          bool `json:"apiAccess"`
}

var planFeatures = map[Plan]Features{
	PlanNone: {},
	PlanBasic: {
		MaxJobsites:        1,
		MaxWorkers:         5,
		WeatherAlerts:      true,
		EmailNotifications: true,
	},
	PlanPremium: {
		MaxJobsites:        10,
		MaxWorkers:         50,
		WeatherAlerts:      true,
		EmailNotifications: true,
		CustomThresholds:   true,
		JobsiteOverrides:   true,
	},
	PlanEnterprise: {
		MaxJobsites:        Unlimited,
		MaxWorkers:         Unlimited,
		WeatherAlerts:      true,
		EmailNotifications: true,
		CustomThresholds:   true,
		JobsiteOverrides:   true,
		PrioritySupport:    true,
		APIAccess:          true,
	},
}

// ParsePlan normalizes a plan name. The empty string is PlanNone.
func ParsePlan(s string) (Plan, error) {
	p := Plan(strings.ToLower(strings.TrimSpace(s)))
	if p == "" {
		return PlanNone, nil
	}
	if _, ok := planFeatures[p]; !ok {
		return PlanNone, fmt.Errorf("%w: %q", ErrUnknownPlan, s)
	}
	return p, nil
}

// FeaturesFor returns the features of plan. Unknown plans get the
// features of PlanNone along with ErrUnknownPlan.
func FeaturesFor(plan Plan) (Features, error) {
	f, ok := planFeatures[plan]
	if !ok {
		return planFeatures[PlanNone], fmt.Errorf("%w: %q", ErrUnknownPlan, plan)
	}
	return f, nil
}

// AllowsJobsites reports whether a user on these features may have n
// active jobsites.
func (f Features) AllowsJobsites(n int) bool {
	return f.MaxJobsites == Unlimited || n <= f.MaxJobsites
}

func (f Features) AllowsWorkers(n int) bool {
	return f.MaxWorkers == Unlimited || n <= f.MaxWorkers
}

// Subscription statuses stored alongside the plan.
const (
	StatusActive   = "active"
	StatusCanceled = "canceled"
	StatusPastDue  = "past_due"
)

// Effective returns the plan a stored subscription grants: nothing unless
// it is active.
func Effective(plan, status string) Plan {
	p, err := ParsePlan(plan)
	if err != nil || status != StatusActive {
		return PlanNone
	}
	return p
}

type Cycle string

const (
	CycleMonthly Cycle = "monthly"
	CycleYearly  Cycle = "yearly"
)

func ParseCycle(s string) (Cycle, error) {
	switch c := Cycle(strings.ToLower(strings.TrimSpace(s))); c {
	case "":
		return CycleMonthly, nil
	case CycleMonthly, CycleYearly:
		return c, nil
	default:
		return "", fmt.Errorf("unknown billing cycle %q", s)
	}
}

// Prices holds the Stripe price IDs for each paid plan and cycle.
type Prices map[Plan]map[Cycle]string

// PriceFor returns the configured price ID for a plan and cycle.
func (p Prices) PriceFor(plan Plan, cycle Cycle) (string, bool) {
	id := p[plan][cycle]
	return id, id != ""
}

// PlanForPrice reverses PriceFor.
func (p Prices) PlanForPrice(priceID string) (Plan, Cycle, bool) {
	if priceID == "" {
		return PlanNone, "", false
	}
	for plan, cycles := range p {
		for cycle, id := range cycles {
			if id == priceID {
				return plan, cycle, true
			}
		}
	}
	return PlanNone, "", false
}
