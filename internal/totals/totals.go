// Package totals aggregates per-line billing facts of a pay application into
// period totals. It performs no I/O and never fails.
package totals

import (
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/progresspay/pkg/money"
)

// LineItemView is one pay application line joined with its schedule of values item.
type LineItemView struct {
	ScheduledValue          decimal.Decimal
	SOVRetainagePct         decimal.Decimal
	WorkCompletedPrevious   decimal.Decimal
	WorkCompletedThisPeriod decimal.Decimal
	MaterialsStored         decimal.Decimal
	CertifiedThisPeriod     decimal.NullDecimal
	RetainagePctOverride    decimal.NullDecimal
}

// Totals are the aggregated figures of a billing period.
type Totals struct {
	ScheduledValue      decimal.Decimal `json:"scheduled_value"`
	CompletedPrevious   decimal.Decimal `json:"completed_previous"`
	CompletedThisPeriod decimal.Decimal `json:"completed_this_period"`
	MaterialsStored     decimal.Decimal `json:"materials_stored"`
	CertifiedThisPeriod decimal.Decimal `json:"certified_this_period"`
	RetainageHeld       decimal.Decimal `json:"retainage_held"`
	TotalEarned         decimal.Decimal `json:"total_earned"`
	NetPayment          decimal.Decimal `json:"net_payment"`
	PctComplete         decimal.Decimal `json:"pct_complete"`
}

// CertifiedAmount is the amount certified for the line: the override when set,
// otherwise the work completed this period.
func CertifiedAmount(v LineItemView) decimal.Decimal {
	if v.CertifiedThisPeriod.Valid {
		return v.CertifiedThisPeriod.Decimal
	}
	return v.WorkCompletedThisPeriod
}

// RetainagePct is the retainage rate in effect for the line this period.
func RetainagePct(v LineItemView) decimal.Decimal {
	if v.RetainagePctOverride.Valid {
		return v.RetainagePctOverride.Decimal
	}
	return v.SOVRetainagePct
}

// Retainage is the amount withheld on the line this period.
func Retainage(v LineItemView) decimal.Decimal {
	return money.PercentOf(CertifiedAmount(v), RetainagePct(v))
}

// Earned is previous + this period + stored materials for a single line.
func Earned(v LineItemView) decimal.Decimal {
	return v.WorkCompletedPrevious.Add(v.WorkCompletedThisPeriod).Add(v.MaterialsStored)
}

// OverBilled returns how far the line exceeds its scheduled value.
func OverBilled(v LineItemView) (decimal.Decimal, bool) {
	excess := Earned(v).Sub(v.ScheduledValue)
	if excess.IsPositive() {
		return excess, true
	}
	return decimal.Zero, false
}

// Compute aggregates the views. An empty input or zero scheduled value yields
// a zero percent complete.
func Compute(items []LineItemView) Totals {
	t := Totals{
		ScheduledValue:      decimal.Zero,
		CompletedPrevious:   decimal.Zero,
		CompletedThisPeriod: decimal.Zero,
		MaterialsStored:     decimal.Zero,
		CertifiedThisPeriod: decimal.Zero,
		RetainageHeld:       decimal.Zero,
	}

	for _, item := range items {
		t.ScheduledValue = t.ScheduledValue.Add(item.ScheduledValue)
		t.CompletedPrevious = t.CompletedPrevious.Add(item.WorkCompletedPrevious)
		t.CompletedThisPeriod = t.CompletedThisPeriod.Add(item.WorkCompletedThisPeriod)
		t.MaterialsStored = t.MaterialsStored.Add(item.MaterialsStored)
		t.CertifiedThisPeriod = t.CertifiedThisPeriod.Add(CertifiedAmount(item))
		t.RetainageHeld = t.RetainageHeld.Add(Retainage(item))
	}

	t.TotalEarned = t.CompletedPrevious.Add(t.CertifiedThisPeriod).Add(t.MaterialsStored)
	t.NetPayment = t.CertifiedThisPeriod.Sub(t.RetainageHeld)
	t.PctComplete = decimal.Zero
	if !t.ScheduledValue.IsZero() {
		t.PctComplete = t.TotalEarned.Mul(money.Hundred).DivRound(t.ScheduledValue, money.Scale)
	}
	return t
}
