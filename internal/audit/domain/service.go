package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListAuditLogRequest struct {
	Action     string `form:"action"`
	TargetType string `form:"target_type"`
	TargetID   string `form:"target_id"`
	// BeforeID returns entries older than this id; ids are time ordered.
	BeforeID string `form:"before_id"`
	Limit    int    `form:"limit"`
}

type ListAuditLogResponse struct {
	AuditLogs []AuditLog `json:"audit_logs"`
	HasMore   bool       `json:"has_more"`
}

type ListFilter struct {
	OrgID      snowflake.ID
	Action     string
	TargetType string
	TargetID   string
	BeforeID   snowflake.ID
	Limit      int
	// Ascending lists oldest first.
	Ascending bool
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AuditLog) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*AuditLog, error)
}

type Service interface {
	AuditLog(ctx context.Context, orgID *snowflake.ID, actorType string, actorID *string, action string, targetType string, targetID *string, metadata map[string]any) error
	List(ctx context.Context, req ListAuditLogRequest) (ListAuditLogResponse, error)
	// History returns every entry of one record, oldest first.
	History(ctx context.Context, targetType, targetID string) ([]AuditLog, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidCursor       = errors.New("invalid_cursor")
	ErrInvalidAction       = errors.New("invalid_action")
	ErrInvalidTarget       = errors.New("invalid_target")
)
