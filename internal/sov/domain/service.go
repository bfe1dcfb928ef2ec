package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// UpsertRequest creates an item when ID is empty, otherwise updates it.
// Nil fields keep their stored value on update.
type UpsertRequest struct {
	ID             string           `json:"-"`
	ProjectID      string           `json:"project_id"`
	ItemNumber     *string          `json:"item_number"`
	Description    *string          `json:"description"`
	ScheduledValue *decimal.Decimal `json:"scheduled_value"`
	RetainagePct   *decimal.Decimal `json:"retainage_pct"`
	SortOrder      *int             `json:"sort_order"`
}

type UpsertResponse struct {
	Item    LineItem `json:"item"`
	Created bool     `json:"created"`
}

type Service interface {
	Upsert(ctx context.Context, req UpsertRequest) (UpsertResponse, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, projectID string) ([]LineItem, error)
	Get(ctx context.Context, id string) (LineItem, error)
}
