package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// PayApplication is one billing period ("draw") of a project.
type PayApplication struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID          snowflake.ID `gorm:"not null;uniqueIndex:ux_pay_applications_number,priority:1" json:"org_id"`
	ProjectID      snowflake.ID `gorm:"not null;uniqueIndex:ux_pay_applications_number,priority:2" json:"project_id"`
	PayAppNumber   int          `gorm:"not null;uniqueIndex:ux_pay_applications_number,priority:3" json:"pay_app_number"`
	PeriodFrom     time.Time    `gorm:"type:date;not null" json:"period_from"`
	PeriodTo       time.Time    `gorm:"type:date;not null" json:"period_to"`
	Status         Status       `gorm:"type:varchar(16);not null;index" json:"status"`
	ContractorName string       `gorm:"type:varchar(255);not null;default:''" json:"contractor_name"`
	ContractNumber string       `gorm:"type:varchar(64);not null;default:''" json:"contract_number"`
	SubmittedDate  *time.Time   `json:"submitted_date,omitempty"`
	CertifiedDate  *time.Time   `json:"certified_date,omitempty"`
	CertifiedBy    *string      `gorm:"type:varchar(255)" json:"certified_by,omitempty"`
	PaidDate       *time.Time   `json:"paid_date,omitempty"`
	Notes          string       `gorm:"type:text;not null;default:''" json:"notes"`
	CreatedAt      time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time    `gorm:"not null" json:"updated_at"`
}

func (PayApplication) TableName() string { return "pay_applications" }

// LineItem is the billing fact of one schedule of values item for one period.
type LineItem struct {
	ID                      snowflake.ID        `gorm:"primaryKey" json:"id"`
	OrgID                   snowflake.ID        `gorm:"not null" json:"org_id"`
	PayAppID                snowflake.ID        `gorm:"not null;uniqueIndex:ux_pay_app_line_items_sov,priority:1" json:"pay_app_id"`
	SOVLineItemID           snowflake.ID        `gorm:"column:sov_line_item_id;not null;index;uniqueIndex:ux_pay_app_line_items_sov,priority:2" json:"sov_line_item_id"`
	WorkCompletedPrevious   decimal.Decimal     `gorm:"type:numeric(20,2);not null" json:"work_completed_previous"`
	WorkCompletedThisPeriod decimal.Decimal     `gorm:"type:numeric(20,2);not null" json:"work_completed_this_period"`
	MaterialsStored         decimal.Decimal     `gorm:"type:numeric(20,2);not null" json:"materials_stored"`
	CertifiedThisPeriod     decimal.NullDecimal `gorm:"type:numeric(20,2)" json:"certified_this_period"`
	RetainagePctOverride    decimal.NullDecimal `gorm:"type:numeric(7,4)" json:"retainage_pct_override"`
	// Copied from the schedule of values item at certification. Billed
	// periods read these instead of the live item.
	CertifiedScheduledValue decimal.NullDecimal `gorm:"type:numeric(20,2)" json:"-"`
	CertifiedRetainagePct   decimal.NullDecimal `gorm:"type:numeric(7,4)" json:"-"`
	CreatedAt               time.Time           `gorm:"not null" json:"created_at"`
	UpdatedAt               time.Time           `gorm:"not null" json:"updated_at"`
}

func (LineItem) TableName() string { return "pay_app_line_items" }

// LineItemRow is a line item joined with its schedule of values item.
type LineItemRow struct {
	LineItem
	ItemNumber      string
	Description     string
	ScheduledValue  decimal.Decimal
	SOVRetainagePct decimal.Decimal `gorm:"column:sov_retainage_pct"`
	SortOrder       int
}
