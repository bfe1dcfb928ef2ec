package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// RecordRequest dates are YYYY-MM-DD or RFC 3339.
type RecordRequest struct {
	PayAppID     string           `json:"-"`
	WaiverType   string           `json:"waiver_type"`
	Amount       *decimal.Decimal `json:"amount"`
	ThroughDate  string           `json:"through_date"`
	ReceivedDate *string          `json:"received_date"`
	FileURL      *string          `json:"file_url"`
	Notes        *string          `json:"notes"`
}

type Service interface {
	Record(ctx context.Context, req RecordRequest) (LienWaiver, error)
	List(ctx context.Context, payAppID string) ([]LienWaiver, error)
}
