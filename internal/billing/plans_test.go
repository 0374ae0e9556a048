package billing

import (
	"errors"
	"testing"
)

func TestFeaturesFor(t *testing.T) {
	tests := []struct {
		plan        Plan
		maxJobsites int
		alerts      bool
		overrides   bool
	}{
		{PlanNone, 0, false, false},
		{PlanBasic, 1, true, false},
		{PlanPremium, 10, true, true},
		{PlanEnterprise, Unlimited, true, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.plan), func(t *testing.T) {
			f, err := FeaturesFor(tt.plan)
			if err != nil {
				t.Fatalf("FeaturesFor: %v", err)
			}
			if f.MaxJobsites != tt.maxJobsites || f.WeatherAlerts != tt.alerts || f.JobsiteOverrides != tt.overrides {
				t.Errorf("features = %+v", f)
			}
			again, _ := FeaturesFor(tt.plan)
			if again != f {
				t.Error("FeaturesFor is not deterministic")
			}
		})
	}
}

func TestFeaturesFor_Unknown(t *testing.T) {
	f, err := FeaturesFor("platinum")
	if !errors.Is(err, ErrUnknownPlan) {
		t.Fatalf("err = %v, want ErrUnknownPlan", err)
	}
	if f != (Features{}) {
		t.Errorf("unknown plan features = %+v, want none", f)
	}
}

func TestAllowsJobsites(t *testing.T) {
	basic, _ := FeaturesFor(PlanBasic)
	if !basic.AllowsJobsites(1) || basic.AllowsJobsites(2) {
		t.Error("basic should allow exactly one jobsite")
	}
	ent, _ := FeaturesFor(PlanEnterprise)
	if !ent.AllowsJobsites(10_000) {
		t.Error("enterprise should be unlimited")
	}
	none, _ := FeaturesFor(PlanNone)
	if none.AllowsJobsites(1) {
		t.Error("no plan should allow no jobsites")
	}
}

func TestEffective(t *testing.T) {
	if got := Effective("premium", StatusActive); got != PlanPremium {
		t.Errorf("Effective(premium, active) = %q", got)
	}
	if got := Effective("premium", StatusCanceled); got != PlanNone {
		t.Errorf("Effective(premium, canceled) = %q", got)
	}
	if got := Effective("gold", StatusActive); got != PlanNone {
		t.Errorf("Effective(gold, active) = %q", got)
	}
}

func TestPrices(t *testing.T) {
	p := Prices{
		PlanBasic:   {CycleMonthly: "price_basic_m", CycleYearly: "price_basic_y"},
		PlanPremium: {CycleMonthly: "price_prem_m"},
	}
	if id, ok := p.PriceFor(PlanPremium, CycleMonthly); !ok || id != "price_prem_m" {
		t.Errorf("PriceFor = %q, %v", id, ok)
	}
	if _, ok := p.PriceFor(PlanPremium, CycleYearly); ok {
		t.Error("PriceFor should miss unconfigured cycle")
	}
	plan, cycle, ok := p.PlanForPrice("price_basic_y")
	if !ok || plan != PlanBasic || cycle != CycleYearly {
		t.Errorf("PlanForPrice = %q %q %v", plan, cycle, ok)
	}
	if _, _, ok := p.PlanForPrice("price_unknown"); ok {
		t.Error("PlanForPrice should miss unknown price")
	}
}
