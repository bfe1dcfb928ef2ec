package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, item *LineItem) error
	Update(ctx context.Context, db *gorm.DB, item *LineItem) error
	// FindByID returns nil, nil when the item does not exist in the org.
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*LineItem, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*LineItem, error)
	FindByItemNumber(ctx context.Context, db *gorm.DB, orgID, projectID snowflake.ID, itemNumber string) (*LineItem, error)
	ListByProject(ctx context.Context, db *gorm.DB, orgID, projectID snowflake.ID) ([]*LineItem, error)
	MaxSortOrder(ctx context.Context, db *gorm.DB, orgID, projectID snowflake.ID) (int, error)
	// CountReferences counts pay application line items of any period pointing at the item.
	CountReferences(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error)
	Delete(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (int64, error)
}
