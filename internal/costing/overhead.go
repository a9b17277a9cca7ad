package costing

import (
	"github.com/shopspring/decimal"

	"menucost/models"
)

// Overhead is the workspace fixed-cost report.
type Overhead struct {
	FixedTotal        decimal.Decimal `json:"fixed_total"`
	MonthlyLaborHours decimal.Decimal `json:"monthly_labor_hours"`
	PerLaborHour      decimal.Decimal `json:"per_labor_hour"`
}

// ComputeOverhead sums active fixed costs and spreads them over the monthly
// labor hours.
func ComputeOverhead(fixed []models.FixedCost, cfg Config) Overhead {
	total := decimal.Zero
	for _, cost := range fixed {
		if cost.Active {
			total = total.Add(cost.Value)
		}
	}
	report := Overhead{FixedTotal: total, MonthlyLaborHours: cfg.MonthlyLaborHours, PerLaborHour: decimal.Zero}
	if cfg.MonthlyLaborHours.Sign() > 0 {
		report.PerLaborHour = total.DivRound(cfg.MonthlyLaborHours, CostScale)
	}
	return report
}
