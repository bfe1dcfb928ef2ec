package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/progresspay/pkg/db/option"
	"gorm.io/gorm"
)

type ListFilter struct {
	OrgID     snowflake.ID
	ProjectID snowflake.ID
	Status    Status
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, payApp *PayApplication) error
	InsertLineItems(ctx context.Context, db *gorm.DB, items []*LineItem) error
	// FindByID returns nil, nil when no pay application matches.
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*PayApplication, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*PayApplication, error)
	FindByNumber(ctx context.Context, db *gorm.DB, orgID, projectID snowflake.ID, number int) (*PayApplication, error)
	NextNumber(ctx context.Context, db *gorm.DB, orgID, projectID snowflake.ID) (int, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter, opts ...option.QueryOption) ([]*PayApplication, error)
	UpdateHeader(ctx context.Context, db *gorm.DB, payApp *PayApplication) error
	// UpdateStatus writes the new status and stamps only while the row still has expected.
	UpdateStatus(ctx context.Context, db *gorm.DB, payApp *PayApplication, expected Status) (int64, error)
	Delete(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, expected Status) (int64, error)

	ListLineItemRows(ctx context.Context, db *gorm.DB, orgID, payAppID snowflake.ID) ([]*LineItemRow, error)
	FindLineItem(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*LineItem, error)
	FindLineItemForUpdate(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*LineItem, error)
	UpdateLineItem(ctx context.Context, db *gorm.DB, item *LineItem) error
	// SnapshotLineItems freezes the scheduled value and retainage percentage
	// of every line of the pay application.
	SnapshotLineItems(ctx context.Context, db *gorm.DB, orgID, payAppID snowflake.ID, at time.Time) error
	DeleteLineItems(ctx context.Context, db *gorm.DB, orgID, payAppID snowflake.ID) error
	// CertifiedToDate sums the certified amount per schedule of values item over
	// every certified or paid pay application of the project.
	CertifiedToDate(ctx context.Context, db *gorm.DB, orgID, projectID snowflake.ID) (map[snowflake.ID]decimal.Decimal, error)
}
