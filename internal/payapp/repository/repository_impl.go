package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/progresspay/internal/payapp/domain"
	"github.com/smallbiznis/progresspay/internal/totals"
	"github.com/smallbiznis/progresspay/pkg/db/option"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const payAppColumns = `id, org_id, project_id, pay_app_number, period_from, period_to, status,
	contractor_name, contract_number, submitted_date, certified_date, certified_by,
	paid_date, notes, created_at, updated_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, pa *domain.PayApplication) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO pay_applications (`+payAppColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		pa.ID,
		pa.OrgID,
		pa.ProjectID,
		pa.PayAppNumber,
		pa.PeriodFrom,
		pa.PeriodTo,
		pa.Status,
		pa.ContractorName,
		pa.ContractNumber,
		pa.SubmittedDate,
		pa.CertifiedDate,
		pa.CertifiedBy,
		pa.PaidDate,
		pa.Notes,
		pa.CreatedAt,
		pa.UpdatedAt,
	).Error
}

func (r *repo) InsertLineItems(ctx context.Context, db *gorm.DB, items []*domain.LineItem) error {
	if len(items) == 0 {
		return nil
	}
	return db.WithContext(ctx).CreateInBatches(items, 200).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.PayApplication, error) {
	var pa domain.PayApplication
	err := db.WithContext(ctx).Raw(
		`SELECT `+payAppColumns+` FROM pay_applications WHERE org_id = ? AND id = ?`,
		orgID,
		id,
	).Scan(&pa).Error
	if err != nil {
		return nil, err
	}
	if pa.ID == 0 {
		return nil, nil
	}
	return &pa, nil
}

// FindByIDForUpdate row-locks the pay application; SQLite drops the locking clause.
func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.PayApplication, error) {
	var pa domain.PayApplication
	err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("org_id = ? AND id = ?", orgID, id).
		Take(&pa).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &pa, nil
}

func (r *repo) FindByNumber(ctx context.Context, db *gorm.DB, orgID, projectID snowflake.ID, number int) (*domain.PayApplication, error) {
	var pa domain.PayApplication
	err := db.WithContext(ctx).Raw(
		`SELECT `+payAppColumns+` FROM pay_applications
		 WHERE org_id = ? AND project_id = ? AND pay_app_number = ?`,
		orgID,
		projectID,
		number,
	).Scan(&pa).Error
	if err != nil {
		return nil, err
	}
	if pa.ID == 0 {
		return nil, nil
	}
	return &pa, nil
}

func (r *repo) NextNumber(ctx context.Context, db *gorm.DB, orgID, projectID snowflake.ID) (int, error) {
	var next int
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(MAX(pay_app_number), 0) + 1 FROM pay_applications WHERE org_id = ? AND project_id = ?`,
		orgID,
		projectID,
	).Scan(&next).Error
	return next, err
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter, opts ...option.QueryOption) ([]*domain.PayApplication, error) {
	stmt := db.WithContext(ctx).
		Model(&domain.PayApplication{}).
		Where("org_id = ? AND project_id = ?", filter.OrgID, filter.ProjectID)
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	for _, opt := range opts {
		stmt = opt.Apply(stmt)
	}

	var items []*domain.PayApplication
	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpdateHeader(ctx context.Context, db *gorm.DB, pa *domain.PayApplication) error {
	return db.WithContext(ctx).Exec(
		`UPDATE pay_applications
		 SET contractor_name = ?, contract_number = ?, period_from = ?, period_to = ?,
		     notes = ?, updated_at = ?
		 WHERE org_id = ? AND id = ?`,
		pa.ContractorName,
		pa.ContractNumber,
		pa.PeriodFrom,
		pa.PeriodTo,
		pa.Notes,
		pa.UpdatedAt,
		pa.OrgID,
		pa.ID,
	).Error
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, pa *domain.PayApplication, expected domain.Status) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE pay_applications
		 SET status = ?, submitted_date = ?, certified_date = ?, certified_by = ?,
		     paid_date = ?, updated_at = ?
		 WHERE org_id = ? AND id = ? AND status = ?`,
		pa.Status,
		pa.SubmittedDate,
		pa.CertifiedDate,
		pa.CertifiedBy,
		pa.PaidDate,
		pa.UpdatedAt,
		pa.OrgID,
		pa.ID,
		expected,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, expected domain.Status) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`DELETE FROM pay_applications WHERE org_id = ? AND id = ? AND status = ?`,
		orgID,
		id,
		expected,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) ListLineItemRows(ctx context.Context, db *gorm.DB, orgID, payAppID snowflake.ID) ([]*domain.LineItemRow, error) {
	var rows []*domain.LineItemRow
	err := db.WithContext(ctx).Raw(
		`SELECT li.id, li.org_id, li.pay_app_id, li.sov_line_item_id,
		        li.work_completed_previous, li.work_completed_this_period, li.materials_stored,
		        li.certified_this_period, li.retainage_pct_override, li.created_at, li.updated_at,
		        li.certified_scheduled_value, li.certified_retainage_pct,
		        s.item_number, s.description,
		        COALESCE(li.certified_scheduled_value, s.scheduled_value) AS scheduled_value,
		        COALESCE(li.certified_retainage_pct, s.retainage_pct) AS sov_retainage_pct, s.sort_order
		 FROM pay_app_line_items li
		 JOIN sov_line_items s ON s.id = li.sov_line_item_id
		 WHERE li.org_id = ? AND li.pay_app_id = ?
		 ORDER BY s.sort_order ASC, s.item_number ASC`,
		orgID,
		payAppID,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) FindLineItem(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.LineItem, error) {
	return r.findLineItem(db.WithContext(ctx), orgID, id)
}

func (r *repo) FindLineItemForUpdate(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.LineItem, error) {
	return r.findLineItem(db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), orgID, id)
}

func (r *repo) findLineItem(db *gorm.DB, orgID, id snowflake.ID) (*domain.LineItem, error) {
	var item domain.LineItem
	err := db.Where("org_id = ? AND id = ?", orgID, id).Take(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

func (r *repo) UpdateLineItem(ctx context.Context, db *gorm.DB, item *domain.LineItem) error {
	return db.WithContext(ctx).Exec(
		`UPDATE pay_app_line_items
		 SET work_completed_this_period = ?, materials_stored = ?, certified_this_period = ?,
		     retainage_pct_override = ?, updated_at = ?
		 WHERE org_id = ? AND id = ?`,
		item.WorkCompletedThisPeriod,
		item.MaterialsStored,
		item.CertifiedThisPeriod,
		item.RetainagePctOverride,
		item.UpdatedAt,
		item.OrgID,
		item.ID,
	).Error
}

func (r *repo) SnapshotLineItems(ctx context.Context, db *gorm.DB, orgID, payAppID snowflake.ID, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE pay_app_line_items
		 SET certified_scheduled_value = (
		         SELECT s.scheduled_value FROM sov_line_items s WHERE s.id = pay_app_line_items.sov_line_item_id
		     ),
		     certified_retainage_pct = (
		         SELECT s.retainage_pct FROM sov_line_items s WHERE s.id = pay_app_line_items.sov_line_item_id
		     ),
		     updated_at = ?
		 WHERE org_id = ? AND pay_app_id = ?`,
		at,
		orgID,
		payAppID,
	).Error
}

func (r *repo) DeleteLineItems(ctx context.Context, db *gorm.DB, orgID, payAppID snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`DELETE FROM pay_app_line_items WHERE org_id = ? AND pay_app_id = ?`,
		orgID,
		payAppID,
	).Error
}

type certifiedRow struct {
	SOVLineItemID           snowflake.ID `gorm:"column:sov_line_item_id"`
	WorkCompletedThisPeriod decimal.Decimal
	CertifiedThisPeriod     decimal.NullDecimal
}

// CertifiedToDate sums in Go so the certified override resolves through
// totals.CertifiedAmount like everywhere else.
func (r *repo) CertifiedToDate(ctx context.Context, db *gorm.DB, orgID, projectID snowflake.ID) (map[snowflake.ID]decimal.Decimal, error) {
	var rows []certifiedRow
	err := db.WithContext(ctx).Raw(
		`SELECT li.sov_line_item_id, li.work_completed_this_period, li.certified_this_period
		 FROM pay_app_line_items li
		 JOIN pay_applications pa ON pa.id = li.pay_app_id
		 WHERE pa.org_id = ? AND pa.project_id = ? AND pa.status IN (?, ?)`,
		orgID,
		projectID,
		domain.StatusCertified,
		domain.StatusPaid,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make(map[snowflake.ID]decimal.Decimal, len(rows))
	for _, row := range rows {
		certified := totals.CertifiedAmount(totals.LineItemView{
			WorkCompletedThisPeriod: row.WorkCompletedThisPeriod,
			CertifiedThisPeriod:     row.CertifiedThisPeriod,
		})
		out[row.SOVLineItemID] = out[row.SOVLineItemID].Add(certified)
	}
	return out, nil
}
