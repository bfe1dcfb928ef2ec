package repository

import (
	"context"

	"github.com/smallbiznis/progresspay/pkg/db/option"
	"gorm.io/gorm"
)

// Repository is a generic gorm-backed store for simple append-mostly records.
type Repository[T any] interface {
	WithTrx(tx *gorm.DB) Repository[T]
	Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error)
	Create(ctx context.Context, resource *T) error
}
