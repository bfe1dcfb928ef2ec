package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type WaiverType string

const (
	WaiverConditionalPartial   WaiverType = "conditional_partial"
	WaiverUnconditionalPartial WaiverType = "unconditional_partial"
	WaiverConditionalFinal     WaiverType = "conditional_final"
	WaiverUnconditionalFinal   WaiverType = "unconditional_final"
)

func (t WaiverType) Valid() bool {
	switch t {
	case WaiverConditionalPartial, WaiverUnconditionalPartial, WaiverConditionalFinal, WaiverUnconditionalFinal:
		return true
	}
	return false
}

// LienWaiver releases lien rights up to ThroughDate for one pay application.
// Rows are never updated or deleted.
type LienWaiver struct {
	ID           snowflake.ID    `gorm:"primaryKey" json:"id"`
	OrgID        snowflake.ID    `gorm:"not null" json:"org_id"`
	PayAppID     snowflake.ID    `gorm:"not null;index" json:"pay_app_id"`
	WaiverType   WaiverType      `gorm:"type:varchar(32);not null" json:"waiver_type"`
	Amount       decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"amount"`
	ThroughDate  time.Time       `gorm:"type:date;not null" json:"through_date"`
	ReceivedDate *time.Time      `gorm:"type:date" json:"received_date,omitempty"`
	FileURL      string          `gorm:"type:text;not null;default:''" json:"file_url"`
	Notes        string          `gorm:"type:text;not null;default:''" json:"notes"`
	CreatedAt    time.Time       `gorm:"not null" json:"created_at"`
}

func (LienWaiver) TableName() string { return "lien_waivers" }
