package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// LineItem is one contracted unit of work on a project's schedule of values.
type LineItem struct {
	ID             snowflake.ID    `gorm:"primaryKey" json:"id"`
	OrgID          snowflake.ID    `gorm:"not null;uniqueIndex:ux_sov_line_items_number,priority:1" json:"org_id"`
	ProjectID      snowflake.ID    `gorm:"not null;uniqueIndex:ux_sov_line_items_number,priority:2" json:"project_id"`
	ItemNumber     string          `gorm:"type:varchar(64);not null;uniqueIndex:ux_sov_line_items_number,priority:3" json:"item_number"`
	Description    string          `gorm:"type:text;not null;default:''" json:"description"`
	ScheduledValue decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"scheduled_value"`
	RetainagePct   decimal.Decimal `gorm:"type:numeric(7,4);not null" json:"retainage_pct"`
	SortOrder      int             `gorm:"not null;default:0" json:"sort_order"`
	CreatedAt      time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"not null" json:"updated_at"`
}

func (LineItem) TableName() string { return "sov_line_items" }
