package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/progresspay/internal/totals"
)

// Dates are accepted as YYYY-MM-DD or RFC 3339.
type CreateRequest struct {
	ProjectID      string  `json:"-"`
	PayAppNumber   int     `json:"pay_app_number"`
	PeriodFrom     string  `json:"period_from"`
	PeriodTo       string  `json:"period_to"`
	ContractorName *string `json:"contractor_name"`
	ContractNumber *string `json:"contract_number"`
	Notes          *string `json:"notes"`
}

type ListRequest struct {
	ProjectID string `form:"-"`
	Status    string `form:"status"`
	Order     string `form:"order"`
}

type UpdateRequest struct {
	ID             string  `json:"-"`
	ContractorName *string `json:"contractor_name"`
	ContractNumber *string `json:"contract_number"`
	PeriodFrom     *string `json:"period_from"`
	PeriodTo       *string `json:"period_to"`
	Notes          *string `json:"notes"`
}

// UpdateLineItemRequest leaves nil fields untouched. The Clear flags remove an
// override and may not be combined with a value for the same field.
type UpdateLineItemRequest struct {
	ID                        string           `json:"-"`
	WorkCompletedThisPeriod   *decimal.Decimal `json:"work_completed_this_period"`
	MaterialsStored           *decimal.Decimal `json:"materials_stored"`
	CertifiedThisPeriod       *decimal.Decimal `json:"certified_this_period"`
	RetainagePctOverride      *decimal.Decimal `json:"retainage_pct_override"`
	ClearCertifiedThisPeriod  bool             `json:"clear_certified_this_period"`
	ClearRetainagePctOverride bool             `json:"clear_retainage_pct_override"`
}

type TransitionRequest struct {
	ID          string  `json:"-"`
	Status      string  `json:"status"`
	CertifiedBy *string `json:"certified_by"`
}

// LineItemDetail is a line item with its schedule of values data and derived figures.
type LineItemDetail struct {
	LineItem
	ItemNumber       string          `json:"item_number"`
	Description      string          `json:"description"`
	ScheduledValue   decimal.Decimal `json:"scheduled_value"`
	SOVRetainagePct  decimal.Decimal `json:"sov_retainage_pct"`
	SortOrder        int             `json:"sort_order"`
	CertifiedAmount  decimal.Decimal `json:"certified_amount"`
	RetainagePct     decimal.Decimal `json:"retainage_pct"`
	Retainage        decimal.Decimal `json:"retainage"`
	TotalEarned      decimal.Decimal `json:"total_earned"`
	BalanceToFinish  decimal.Decimal `json:"balance_to_finish"`
	OverBilled       bool            `json:"over_billed"`
	OverBilledAmount decimal.Decimal `json:"over_billed_amount"`
}

// Warning flags a condition the caller should review but that did not block the write.
type Warning struct {
	Code          string          `json:"code"`
	LineItemID    snowflake.ID    `json:"line_item_id"`
	SOVLineItemID snowflake.ID    `json:"sov_line_item_id"`
	ItemNumber    string          `json:"item_number"`
	Amount        decimal.Decimal `json:"amount"`
}

const WarningOverBilled = "overbilled_line_item"

type PayApplicationResponse struct {
	PayApplication
	LineItems []LineItemDetail `json:"line_items"`
	Totals    totals.Totals    `json:"totals"`
	Warnings  []Warning        `json:"warnings"`
}

type UpdateLineItemResponse struct {
	LineItem LineItemDetail `json:"line_item"`
	Totals   totals.Totals  `json:"totals"`
	Warnings []Warning      `json:"warnings"`
}

type Document struct {
	FileName    string
	ContentType string
	Content     []byte
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (PayApplicationResponse, error)
	Get(ctx context.Context, id string) (PayApplicationResponse, error)
	List(ctx context.Context, req ListRequest) ([]PayApplication, error)
	Update(ctx context.Context, req UpdateRequest) (PayApplicationResponse, error)
	UpdateLineItem(ctx context.Context, req UpdateLineItemRequest) (UpdateLineItemResponse, error)
	Transition(ctx context.Context, req TransitionRequest) (PayApplicationResponse, error)
	Delete(ctx context.Context, id string) error
	Totals(ctx context.Context, id string) (totals.Totals, error)
	Document(ctx context.Context, id string) (Document, error)
}

// DocumentRenderer turns a pay application into a printable document.
type DocumentRenderer interface {
	RenderPayApplication(ctx context.Context, payApp PayApplicationResponse) ([]byte, error)
}
