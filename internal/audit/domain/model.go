package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type ActorType string

const (
	ActorTypeUser   ActorType = "user"
	ActorTypeSystem ActorType = "system"
)

// Audit actions recorded by the billing services.
const (
	ActionSOVItemCreated          = "sov_item.created"
	ActionSOVItemUpdated          = "sov_item.updated"
	ActionSOVItemDeleted          = "sov_item.deleted"
	ActionPayApplicationCreated   = "pay_application.created"
	ActionPayApplicationUpdated   = "pay_application.updated"
	ActionPayApplicationDeleted   = "pay_application.deleted"
	ActionPayApplicationSubmitted = "pay_application.submitted"
	ActionPayApplicationCertified = "pay_application.certified"
	ActionPayApplicationPaid      = "pay_application.paid"
	ActionLineItemUpdated         = "pay_app_line_item.updated"
	ActionLienWaiverRecorded      = "lien_waiver.recorded"
)

// Target types of audited records.
const (
	TargetSOVItem        = "sov_line_item"
	TargetPayApplication = "pay_application"
	TargetPayAppLineItem = "pay_app_line_item"
	TargetLienWaiver     = "lien_waiver"
)

type AuditLog struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	OrgID      *snowflake.ID     `gorm:"index" json:"org_id,omitempty"`
	ActorType  string            `gorm:"type:varchar(32);not null" json:"actor_type"`
	ActorID    *string           `json:"actor_id,omitempty"`
	Action     string            `gorm:"type:varchar(64);not null;index" json:"action"`
	TargetType string            `gorm:"type:varchar(64);not null" json:"target_type"`
	TargetID   *string           `gorm:"index" json:"target_id,omitempty"`
	Metadata   datatypes.JSONMap `json:"metadata,omitempty"`
	IPAddress  *string           `json:"ip_address,omitempty"`
	UserAgent  *string           `json:"user_agent,omitempty"`
	CreatedAt  time.Time         `gorm:"not null" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }
