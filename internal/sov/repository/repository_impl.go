package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/progresspay/internal/sov/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const lineItemColumns = `id, org_id, project_id, item_number, description, scheduled_value,
	retainage_pct, sort_order, created_at, updated_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, item *domain.LineItem) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO sov_line_items (`+lineItemColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID,
		item.OrgID,
		item.ProjectID,
		item.ItemNumber,
		item.Description,
		item.ScheduledValue,
		item.RetainagePct,
		item.SortOrder,
		item.CreatedAt,
		item.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, item *domain.LineItem) error {
	return db.WithContext(ctx).Exec(
		`UPDATE sov_line_items
		 SET item_number = ?, description = ?, scheduled_value = ?, retainage_pct = ?,
		     sort_order = ?, updated_at = ?
		 WHERE org_id = ? AND id = ?`,
		item.ItemNumber,
		item.Description,
		item.ScheduledValue,
		item.RetainagePct,
		item.SortOrder,
		item.UpdatedAt,
		item.OrgID,
		item.ID,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.LineItem, error) {
	var item domain.LineItem
	err := db.WithContext(ctx).Raw(
		`SELECT `+lineItemColumns+` FROM sov_line_items WHERE org_id = ? AND id = ?`,
		orgID,
		id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

// FindByIDForUpdate row-locks the item where the dialect supports it.
func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.LineItem, error) {
	var item domain.LineItem
	err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("org_id = ? AND id = ?", orgID, id).
		Take(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

func (r *repo) FindByItemNumber(ctx context.Context, db *gorm.DB, orgID, projectID snowflake.ID, itemNumber string) (*domain.LineItem, error) {
	var item domain.LineItem
	err := db.WithContext(ctx).Raw(
		`SELECT `+lineItemColumns+` FROM sov_line_items
		 WHERE org_id = ? AND project_id = ? AND item_number = ?`,
		orgID,
		projectID,
		itemNumber,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) ListByProject(ctx context.Context, db *gorm.DB, orgID, projectID snowflake.ID) ([]*domain.LineItem, error) {
	var items []*domain.LineItem
	err := db.WithContext(ctx).Raw(
		`SELECT `+lineItemColumns+` FROM sov_line_items
		 WHERE org_id = ? AND project_id = ?
		 ORDER BY sort_order ASC, item_number ASC`,
		orgID,
		projectID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) MaxSortOrder(ctx context.Context, db *gorm.DB, orgID, projectID snowflake.ID) (int, error) {
	var last int
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(MAX(sort_order), 0) FROM sov_line_items WHERE org_id = ? AND project_id = ?`,
		orgID,
		projectID,
	).Scan(&last).Error
	return last, err
}

func (r *repo) CountReferences(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM pay_app_line_items WHERE sov_line_item_id = ?`,
		id,
	).Scan(&count).Error
	return count, err
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`DELETE FROM sov_line_items WHERE org_id = ? AND id = ?`,
		orgID,
		id,
	)
	return res.RowsAffected, res.Error
}
