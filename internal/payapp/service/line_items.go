package service

import (
	"context"

	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/progresspay/internal/audit/domain"
	"github.com/smallbiznis/progresspay/internal/payapp/domain"
	"github.com/smallbiznis/progresspay/internal/totals"
	"github.com/smallbiznis/progresspay/pkg/money"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// UpdateLineItem records progress on a line item of a draft or submitted pay
// application. Nil fields keep their stored value.
func (s *Service) UpdateLineItem(ctx context.Context, req domain.UpdateLineItemRequest) (domain.UpdateLineItemResponse, error) {
	orgID, err := s.orgIDFromContext(ctx)
	if err != nil {
		return domain.UpdateLineItemResponse{}, err
	}
	id, err := parseID(req.ID, domain.ErrLineItemNotFound)
	if err != nil {
		return domain.UpdateLineItemResponse{}, err
	}
	if err := validateLineItemRequest(req); err != nil {
		return domain.UpdateLineItemResponse{}, err
	}

	var (
		updated  domain.LineItem
		parent   domain.PayApplication
		excess   decimal.Decimal
		overBill bool
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		probe, err := s.repo.FindLineItem(ctx, tx, orgID, id)
		if err != nil {
			return err
		}
		if probe == nil {
			return domain.ErrLineItemNotFound
		}

		// Parent first, then the line, matching Delete.
		payApp, err := s.repo.FindByIDForUpdate(ctx, tx, orgID, probe.PayAppID)
		if err != nil {
			return err
		}
		if payApp == nil {
			return domain.ErrNotFound
		}
		if !payApp.Status.Editable() {
			return domain.ErrPayAppNotEditable
		}

		item, err := s.repo.FindLineItemForUpdate(ctx, tx, orgID, id)
		if err != nil {
			return err
		}
		if item == nil {
			return domain.ErrLineItemNotFound
		}
		applyLineItemRequest(item, req)

		sovItem, err := s.sovRepo.FindByID(ctx, tx, orgID, item.SOVLineItemID)
		if err != nil {
			return err
		}
		if sovItem != nil {
			excess, overBill = totals.OverBilled(totals.LineItemView{
				ScheduledValue:          sovItem.ScheduledValue,
				WorkCompletedPrevious:   item.WorkCompletedPrevious,
				WorkCompletedThisPeriod: item.WorkCompletedThisPeriod,
				MaterialsStored:         item.MaterialsStored,
			})
		}
		if overBill && s.rejectOverBilling() {
			s.lifecycle.IncOverBilling("rejected")
			return domain.ErrOverBilledLineItem
		}

		item.UpdatedAt = s.clock.Now()
		if err := s.repo.UpdateLineItem(ctx, tx, item); err != nil {
			return err
		}
		updated = *item
		parent = *payApp
		return nil
	})
	if err != nil {
		return domain.UpdateLineItemResponse{}, s.wrap("update pay application line item", err)
	}

	if overBill {
		s.lifecycle.IncOverBilling("warned")
		s.log.Warn("line item over-billed",
			zap.String("line_item_id", updated.ID.String()),
			zap.String("excess", excess.StringFixed(money.Scale)),
		)
	}
	targetID := updated.ID.String()
	if s.auditSvc != nil {
		_ = s.auditSvc.AuditLog(ctx, &orgID, "", nil, auditdomain.ActionLineItemUpdated, auditdomain.TargetPayAppLineItem, &targetID, map[string]any{
			"pay_app_id":                 parent.ID.String(),
			"work_completed_this_period": updated.WorkCompletedThisPeriod.StringFixed(money.Scale),
			"materials_stored":           updated.MaterialsStored.StringFixed(money.Scale),
			"certified_this_period":      nullString(updated.CertifiedThisPeriod, money.Scale),
			"retainage_pct_override":     nullString(updated.RetainagePctOverride, money.PercentScale),
		})
	}

	resp, err := s.load(ctx, s.db, orgID, parent.ID)
	if err != nil {
		return domain.UpdateLineItemResponse{}, err
	}
	out := domain.UpdateLineItemResponse{Totals: resp.Totals, Warnings: []domain.Warning{}}
	for _, detail := range resp.LineItems {
		if detail.ID == updated.ID {
			out.LineItem = detail
		}
	}
	for _, warning := range resp.Warnings {
		if warning.LineItemID == updated.ID {
			out.Warnings = append(out.Warnings, warning)
		}
	}
	return out, nil
}

func validateLineItemRequest(req domain.UpdateLineItemRequest) error {
	if req.WorkCompletedThisPeriod != nil && !money.ValidAmount(*req.WorkCompletedThisPeriod) {
		return domain.ErrInvalidWorkCompleted
	}
	if req.MaterialsStored != nil && !money.ValidAmount(*req.MaterialsStored) {
		return domain.ErrInvalidMaterialsStored
	}
	if req.CertifiedThisPeriod != nil && !money.ValidAmount(*req.CertifiedThisPeriod) {
		return domain.ErrInvalidCertifiedAmount
	}
	if req.RetainagePctOverride != nil && !money.ValidPercent(*req.RetainagePctOverride) {
		return domain.ErrInvalidRetainagePct
	}
	if req.ClearCertifiedThisPeriod && req.CertifiedThisPeriod != nil {
		return domain.ErrConflictingOverride
	}
	if req.ClearRetainagePctOverride && req.RetainagePctOverride != nil {
		return domain.ErrConflictingOverride
	}
	return nil
}

func applyLineItemRequest(item *domain.LineItem, req domain.UpdateLineItemRequest) {
	if req.WorkCompletedThisPeriod != nil {
		item.WorkCompletedThisPeriod = money.Round(*req.WorkCompletedThisPeriod)
	}
	if req.MaterialsStored != nil {
		item.MaterialsStored = money.Round(*req.MaterialsStored)
	}
	switch {
	case req.ClearCertifiedThisPeriod:
		item.CertifiedThisPeriod = decimal.NullDecimal{}
	case req.CertifiedThisPeriod != nil:
		item.CertifiedThisPeriod = decimal.NewNullDecimal(money.Round(*req.CertifiedThisPeriod))
	}
	switch {
	case req.ClearRetainagePctOverride:
		item.RetainagePctOverride = decimal.NullDecimal{}
	case req.RetainagePctOverride != nil:
		item.RetainagePctOverride = decimal.NewNullDecimal(req.RetainagePctOverride.Round(money.PercentScale))
	}
}

// buildDetails derives per-line figures and the views fed to the totals engine.
func buildDetails(rows []*domain.LineItemRow) ([]domain.LineItemDetail, []totals.LineItemView) {
	details := make([]domain.LineItemDetail, 0, len(rows))
	views := make([]totals.LineItemView, 0, len(rows))
	for _, row := range rows {
		if row == nil {
			continue
		}
		view := totals.LineItemView{
			ScheduledValue:          row.ScheduledValue,
			SOVRetainagePct:         row.SOVRetainagePct,
			WorkCompletedPrevious:   row.WorkCompletedPrevious,
			WorkCompletedThisPeriod: row.WorkCompletedThisPeriod,
			MaterialsStored:         row.MaterialsStored,
			CertifiedThisPeriod:     row.CertifiedThisPeriod,
			RetainagePctOverride:    row.RetainagePctOverride,
		}
		certified := totals.CertifiedAmount(view)
		earned := row.WorkCompletedPrevious.Add(certified).Add(row.MaterialsStored)
		excess, overBilled := totals.OverBilled(view)

		details = append(details, domain.LineItemDetail{
			LineItem:         row.LineItem,
			ItemNumber:       row.ItemNumber,
			Description:      row.Description,
			ScheduledValue:   row.ScheduledValue,
			SOVRetainagePct:  row.SOVRetainagePct,
			SortOrder:        row.SortOrder,
			CertifiedAmount:  certified,
			RetainagePct:     totals.RetainagePct(view),
			Retainage:        totals.Retainage(view),
			TotalEarned:      earned,
			BalanceToFinish:  row.ScheduledValue.Sub(earned),
			OverBilled:       overBilled,
			OverBilledAmount: excess,
		})
		views = append(views, view)
	}
	return details, views
}

func overBillingWarnings(details []domain.LineItemDetail) []domain.Warning {
	warnings := []domain.Warning{}
	for _, detail := range details {
		if !detail.OverBilled {
			continue
		}
		warnings = append(warnings, domain.Warning{
			Code:          domain.WarningOverBilled,
			LineItemID:    detail.ID,
			SOVLineItemID: detail.SOVLineItemID,
			ItemNumber:    detail.ItemNumber,
			Amount:        detail.OverBilledAmount,
		})
	}
	return warnings
}

func nullString(d decimal.NullDecimal, places int32) any {
	if !d.Valid {
		return nil
	}
	return d.Decimal.StringFixed(places)
}
